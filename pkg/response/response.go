// Package response describes canned HTTP responses returned by stubs:
// status, headers, body source, simulated timing and simulated errors.
//
// A Response is built once by a stub's responder and then handed to the
// delivery engine, which treats it as read-only.
package response

import (
	"bytes"
	"io"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/jingkaihe/httpstubs/internal/errx"
)

type bodyKind int

const (
	bodyNone bodyKind = iota
	bodyBytes
	bodyFile
	bodyStream
)

// Response is a stubbed response description.
type Response struct {
	statusCode int
	header     http.Header

	kind     bodyKind
	data     []byte
	path     string
	stream   io.Reader
	consumed atomic.Bool
	dataSize int64

	requestTime  time.Duration
	responseTime float64

	err error
}

func newResponse(status int, header map[string]string) *Response {
	h := make(http.Header, len(header))
	for k, v := range header {
		h.Set(k, v)
	}
	return &Response{
		statusCode: status,
		header:     h,
		dataSize:   -1,
	}
}

// New builds a response serving data from memory.
func New(data []byte, status int, header map[string]string) *Response {
	r := newResponse(status, header)
	r.kind = bodyBytes
	r.data = data
	r.dataSize = int64(len(data))
	return r
}

// FromFile builds a response whose body is the file at path. The file is
// opened when delivery starts, so one Response can be delivered many
// times. A missing file surfaces as a delivery error.
func FromFile(path string, status int, header map[string]string) *Response {
	r := newResponse(status, header)
	r.kind = bodyFile
	r.path = path
	if fi, err := os.Stat(path); err == nil && fi.Mode().IsRegular() {
		r.dataSize = fi.Size()
	}
	return r
}

// FromReader builds a response streaming from src. size is the body length
// or -1 when unknown. The reader can be delivered only once; it is closed
// after delivery when it implements io.Closer.
func FromReader(src io.Reader, size int64, status int, header map[string]string) *Response {
	r := newResponse(status, header)
	r.kind = bodyStream
	r.stream = src
	if size < 0 {
		size = -1
	}
	r.dataSize = size
	return r
}

// FromError builds a response that fails with err instead of answering.
func FromError(err error) *Response {
	return &Response{
		header:   make(http.Header),
		dataSize: 0,
		err:      err,
	}
}

func (r *Response) StatusCode() int { return r.statusCode }

// Header returns a copy of the response headers.
func (r *Response) Header() http.Header { return r.header.Clone() }

// DataSize is the body length in bytes, or -1 when unknown.
func (r *Response) DataSize() int64 { return r.dataSize }

func (r *Response) RequestTime() time.Duration { return r.requestTime }

// ResponseTime is the body streaming time in seconds. Negative values are
// a download rate in KB/s.
func (r *Response) ResponseTime() float64 { return r.responseTime }

// Err is the simulated transport error, if any.
func (r *Response) Err() error { return r.err }

// WithHeader sets a header and returns r.
func (r *Response) WithHeader(key, value string) *Response {
	r.header.Set(key, value)
	return r
}

// WithRequestTime sets the delay before headers are delivered. Negative
// values are treated as zero.
func (r *Response) WithRequestTime(d time.Duration) *Response {
	if d < 0 {
		d = 0
	}
	r.requestTime = d
	return r
}

// WithResponseTime sets the body streaming time in seconds; a negative
// value is a rate in KB/s (-200 streams at 200 KB/s). The Speed* constants
// cover common network profiles.
func (r *Response) WithResponseTime(seconds float64) *Response {
	r.responseTime = seconds
	return r
}

// WithTiming sets both the request time and the response time, in seconds.
func (r *Response) WithTiming(requestTime, responseTime float64) *Response {
	return r.WithRequestTime(secondsToDuration(requestTime)).WithResponseTime(responseTime)
}

// WithDuration spreads body delivery over d.
func (r *Response) WithDuration(d time.Duration) *Response {
	if d < 0 {
		d = 0
	}
	return r.WithResponseTime(d.Seconds())
}

// WithRate caps body delivery at kbps kilobytes per second.
func (r *Response) WithRate(kbps float64) *Response {
	if kbps < 0 {
		kbps = -kbps
	}
	if kbps == 0 {
		return r.WithResponseTime(0)
	}
	return r.WithResponseTime(-kbps)
}

// Open returns a fresh reader over the body and its size (-1 if unknown).
// The caller owns the returned reader and must close it.
func (r *Response) Open() (io.ReadCloser, int64, error) {
	switch r.kind {
	case bodyBytes:
		return io.NopCloser(bytes.NewReader(r.data)), int64(len(r.data)), nil
	case bodyFile:
		f, err := os.Open(r.path)
		if err != nil {
			return nil, 0, errx.Wrap(ErrOpenBody, err)
		}
		size := r.dataSize
		if fi, err := f.Stat(); err == nil && fi.Mode().IsRegular() {
			size = fi.Size()
		}
		return f, size, nil
	case bodyStream:
		if !r.consumed.CompareAndSwap(false, true) {
			return nil, 0, ErrBodyConsumed
		}
		if rc, ok := r.stream.(io.ReadCloser); ok {
			return rc, r.dataSize, nil
		}
		return io.NopCloser(r.stream), r.dataSize, nil
	default:
		return http.NoBody, 0, nil
	}
}

// Discard releases a reader source that will never be opened, closing it
// when it implements io.Closer. Bytes and file bodies hold nothing open.
func (r *Response) Discard() {
	if r.kind != bodyStream || !r.consumed.CompareAndSwap(false, true) {
		return
	}
	if c, ok := r.stream.(io.Closer); ok {
		_ = c.Close()
	}
}

func secondsToDuration(s float64) time.Duration {
	if s <= 0 {
		return 0
	}
	return time.Duration(s * float64(time.Second))
}
