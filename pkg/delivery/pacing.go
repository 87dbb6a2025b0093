package delivery

import (
	"bytes"
	"io"
	"math"
	"time"
)

const (
	// slotTime is the pacing granularity. Bodies are delivered at most once
	// per slot, which keeps huge bodies at high rates from spinning.
	slotTime = 50 * time.Millisecond

	bytesPerKB = 1000

	// overflowChunk drains bytes beyond a body's declared size. It is also
	// the largest single read, whatever the slot's byte budget.
	overflowChunk = 32 * 1024
)

// plan describes how a body is cut into timed chunks.
//
// Duration pacing (slots > 0) delivers slot i at i*interval, with the
// cumulative byte count reaching size on the last slot. Rate pacing
// (slots == 0) delivers a fixed chunk every interval until EOF.
type plan struct {
	interval time.Duration
	chunk    int64
	slots    int64
	size     int64
}

func newPlan(size int64, responseTime float64) plan {
	if responseTime > 0 {
		total := time.Duration(responseTime * float64(time.Second))
		slots := int64(total / slotTime)
		if slots < 1 {
			slots = 1
		}
		if size > 0 && slots > size {
			slots = size
		}
		return plan{
			interval: total / time.Duration(slots),
			slots:    slots,
			size:     size,
		}
	}

	bytesPerSecond := math.Abs(responseTime) * bytesPerKB
	interval := slotTime
	chunk := int64(math.MaxInt64)
	if perSlot := bytesPerSecond * interval.Seconds(); perSlot < float64(math.MaxInt64) {
		chunk = int64(perSlot)
	}
	if chunk < 1 {
		chunk = 1
		interval = time.Duration(float64(time.Second) / bytesPerSecond)
	}
	return plan{
		interval: interval,
		chunk:    chunk,
		size:     size,
	}
}

// chunkFor returns how many bytes to read for the given 1-based slot.
func (p plan) chunkFor(slot int, sent int64) int64 {
	if p.slots == 0 {
		if p.size < 0 {
			return p.chunk
		}
		return min(p.chunk, p.remaining(sent))
	}
	if int64(slot) >= p.slots {
		return p.remaining(sent)
	}
	target := p.size * int64(slot) / p.slots
	if target < sent {
		return 0
	}
	return target - sent
}

// remaining is the declared size left to send, but never less than
// overflowChunk so a body longer than declared still drains.
func (p plan) remaining(sent int64) int64 {
	return max(p.size-sent, overflowChunk)
}

// expected is the nominal body delivery time under p for a body of size
// bytes.
func (p plan) expected(size int64) time.Duration {
	if p.slots > 0 {
		return p.interval * time.Duration(p.slots)
	}
	if size <= 0 {
		return p.interval
	}
	chunks := size / p.chunk
	if size%p.chunk != 0 {
		chunks++
	}
	return p.interval * time.Duration(chunks)
}

func bytesReader(b []byte) io.Reader {
	return bytes.NewReader(b)
}
