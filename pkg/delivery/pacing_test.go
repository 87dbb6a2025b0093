package delivery

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewPlan_Duration(t *testing.T) {
	p := newPlan(1000, 1)
	assert.Equal(t, int64(20), p.slots)
	assert.Equal(t, slotTime, p.interval)
	assert.Equal(t, time.Second, p.expected(1000))

	var sent int64
	for slot := 1; slot < int(p.slots); slot++ {
		sent += p.chunkFor(slot, sent)
	}
	assert.Equal(t, int64(950), sent)
	assert.Equal(t, int64(overflowChunk), p.chunkFor(int(p.slots), sent))
}

func TestNewPlan_DurationCappedBySize(t *testing.T) {
	p := newPlan(3, 1)
	assert.Equal(t, int64(3), p.slots)
	assert.Equal(t, time.Second/3, p.interval)
	assert.Equal(t, int64(1), p.chunkFor(1, 0))
	assert.Equal(t, int64(1), p.chunkFor(2, 1))
}

func TestNewPlan_DurationShorterThanSlot(t *testing.T) {
	p := newPlan(10_000, 0.01)
	assert.Equal(t, int64(1), p.slots)
	assert.Equal(t, 10*time.Millisecond, p.interval)
	assert.Equal(t, int64(overflowChunk), p.chunkFor(1, 0))
}

func TestNewPlan_Rate(t *testing.T) {
	p := newPlan(-1, -200)
	assert.Zero(t, p.slots)
	assert.Equal(t, slotTime, p.interval)
	assert.Equal(t, int64(10_000), p.chunk)
	assert.Equal(t, int64(10_000), p.chunkFor(7, 123))
	assert.Equal(t, 500*time.Millisecond, p.expected(100_000))
}

func TestNewPlan_VerySlowRate(t *testing.T) {
	// 0.01 KB/s is 10 bytes per second.
	p := newPlan(5, -0.01)
	assert.Equal(t, int64(1), p.chunk)
	assert.Equal(t, 100*time.Millisecond, p.interval)
	assert.Equal(t, 500*time.Millisecond, p.expected(5))
}

func TestPlan_RateMatchesSpeedProfiles(t *testing.T) {
	// 3G at 400 KB/s moves a megabyte in 2.5s.
	p := newPlan(1_000_000, -400)
	assert.Equal(t, int64(20_000), p.chunk)
	assert.Equal(t, 2500*time.Millisecond, p.expected(1_000_000))
}

func TestNewPlan_HugeRateCappedBySize(t *testing.T) {
	p := newPlan(10, -4_000_000)
	assert.Equal(t, int64(200_000_000), p.chunk)
	assert.Equal(t, int64(overflowChunk), p.chunkFor(1, 0))
	assert.Equal(t, slotTime, p.expected(10))

	big := newPlan(1<<30, -4_000_000)
	assert.Equal(t, int64(200_000_000), big.chunkFor(1, 0))
	assert.Equal(t, int64(overflowChunk), big.chunkFor(6, 1<<30-5))
}

func TestNewPlan_RateBeyondInt64(t *testing.T) {
	p := newPlan(-1, -math.MaxFloat64)
	assert.Equal(t, int64(math.MaxInt64), p.chunk)
	assert.Equal(t, slotTime, p.interval)
	assert.Equal(t, slotTime, p.expected(1<<40))
}
