// Package delivery simulates network timing for a stubbed response: it
// waits the response's request time, hands headers to the client, then
// paces the body by duration or by rate, and reports completion.
package delivery

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jingkaihe/httpstubs/internal/errx"
	"github.com/jingkaihe/httpstubs/pkg/api"
	"github.com/jingkaihe/httpstubs/pkg/response"
)

// Client receives a stubbed response. Callbacks run on the engine's
// goroutine, one at a time, in this order: Redirected (3xx with Location
// only), ReceivedResponse, ReceivedData (zero or more), Finished. A
// simulated error skips straight to Finished.
//
// Callbacks must not call Engine.Cancel; cancellation waits for the
// callback in flight to return.
type Client interface {
	ReceivedResponse(statusCode int, header http.Header)
	ReceivedData(p []byte)
	Redirected(redirect *http.Request, statusCode int, header http.Header)
	Finished(err error)
}

// Hooks are optional observers fired by the engine. OnFinish fires exactly
// once per delivery, after every client callback, including when the
// delivery was cancelled (err wraps api.ErrCancelled).
type Hooks struct {
	OnRedirect func(redirect *http.Request)
	OnFinish   func(err error)
}

type State int32

const (
	Idle State = iota
	WaitingRequestTime
	DeliveringBody
	Completed
	Errored
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case WaitingRequestTime:
		return "waiting_request_time"
	case DeliveringBody:
		return "delivering_body"
	case Completed:
		return "completed"
	case Errored:
		return "errored"
	default:
		return "unknown"
	}
}

// Engine delivers one response. It is single use.
//
// Once Cancel returns, the client receives no further callbacks.
type Engine struct {
	state   atomic.Int32
	started atomic.Bool
	stopped atomic.Bool

	// emitMu serialises client callbacks against Cancel.
	emitMu sync.Mutex
	cancel chan struct{}
	done   chan struct{}

	logger *slog.Logger
}

func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Engine{
		cancel: make(chan struct{}),
		done:   make(chan struct{}),
		logger: logger.With("component", "delivery"),
	}
}

func (e *Engine) State() State { return State(e.state.Load()) }

// Done is closed once the delivery has finished and OnFinish has returned.
func (e *Engine) Done() <-chan struct{} { return e.done }

// Deliver starts delivering resp to client and returns immediately.
func (e *Engine) Deliver(req *http.Request, resp *response.Response, client Client, hooks Hooks) error {
	if resp == nil {
		return api.ErrNilResponse
	}
	if !e.started.CompareAndSwap(false, true) {
		return api.ErrAlreadyStarted
	}
	if e.stopped.Load() {
		resp.Discard()
		e.state.Store(int32(Errored))
		close(e.done)
		return api.ErrCancelled
	}
	e.state.Store(int32(WaitingRequestTime))
	go e.run(req, resp, client, hooks)
	return nil
}

// Cancel stops the delivery. It is safe to call concurrently with an
// in-flight delivery and more than once.
func (e *Engine) Cancel() {
	if !e.stopped.CompareAndSwap(false, true) {
		return
	}
	close(e.cancel)
	// Wait out a callback that is already running.
	e.emitMu.Lock()
	e.emitMu.Unlock()
}

func (e *Engine) run(req *http.Request, resp *response.Response, client Client, hooks Hooks) {
	defer close(e.done)

	start := time.Now()
	err := e.deliver(req, resp, client, hooks)
	if err != nil {
		e.state.Store(int32(Errored))
	} else {
		e.state.Store(int32(Completed))
	}
	e.logger.Debug("delivery finished",
		"state", e.State().String(),
		"elapsed_ms", time.Since(start).Milliseconds(),
		"error", err,
	)

	if hooks.OnFinish != nil {
		hooks.OnFinish(err)
	}
}

func (e *Engine) deliver(req *http.Request, resp *response.Response, client Client, hooks Hooks) error {
	// Opened before the request-time wait; every exit path closes it.
	var (
		body    io.ReadCloser
		size    int64
		openErr error
	)
	if resp.Err() == nil {
		body, size, openErr = resp.Open()
		if openErr == nil {
			defer body.Close()
		}
	}

	if !e.sleep(resp.RequestTime()) {
		return api.ErrCancelled
	}

	if err := resp.Err(); err != nil {
		return e.fail(client, err)
	}
	if openErr != nil {
		return e.fail(client, openErr)
	}

	status, header := resp.StatusCode(), resp.Header()
	if redirect := redirectRequest(req, status, header); redirect != nil {
		if hooks.OnRedirect != nil {
			hooks.OnRedirect(redirect)
		}
		if !e.emit(func() { client.Redirected(redirect, status, header.Clone()) }) {
			return api.ErrCancelled
		}
	}

	if !e.emit(func() { client.ReceivedResponse(status, header) }) {
		return api.ErrCancelled
	}

	e.state.Store(int32(DeliveringBody))
	if err := e.stream(body, size, resp.ResponseTime(), client); err != nil {
		if errors.Is(err, api.ErrCancelled) {
			return err
		}
		return e.fail(client, err)
	}

	if !e.emit(func() { client.Finished(nil) }) {
		return api.ErrCancelled
	}
	return nil
}

func (e *Engine) fail(client Client, err error) error {
	if !e.emit(func() { client.Finished(err) }) {
		return api.ErrCancelled
	}
	return err
}

// stream paces the body according to responseTime.
func (e *Engine) stream(body io.Reader, size int64, responseTime float64, client Client) error {
	if responseTime == 0 {
		data, err := io.ReadAll(body)
		if err != nil {
			return errx.Wrap(ErrReadBody, err)
		}
		if len(data) > 0 && !e.emit(func() { client.ReceivedData(data) }) {
			return api.ErrCancelled
		}
		return nil
	}

	if responseTime > 0 && size < 0 {
		// Duration pacing needs the total size up front.
		data, err := io.ReadAll(body)
		if err != nil {
			return errx.Wrap(ErrReadBody, err)
		}
		body, size = bytesReader(data), int64(len(data))
	}

	p := newPlan(size, responseTime)
	e.logger.Debug("pacing body",
		"size", size,
		"interval", p.interval,
		"planned_ms", p.expected(size).Milliseconds(),
	)
	br := bufio.NewReader(body)
	if _, err := br.Peek(1); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return errx.Wrap(ErrReadBody, err)
	}

	// Reads go through buf so memory follows the body, not the rate.
	buf := make([]byte, overflowChunk)
	start := time.Now()
	var sent int64
	for slot := 1; ; slot++ {
		if !e.sleepUntil(start.Add(time.Duration(slot) * p.interval)) {
			return api.ErrCancelled
		}

		for budget := p.chunkFor(slot, sent); budget > 0; {
			n, err := io.ReadFull(br, buf[:min(budget, int64(len(buf)))])
			if n > 0 {
				data := bytes.Clone(buf[:n])
				if !e.emit(func() { client.ReceivedData(data) }) {
					return api.ErrCancelled
				}
				sent += int64(n)
				budget -= int64(n)
			}
			if err != nil {
				if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
					return nil
				}
				return errx.Wrap(ErrReadBody, err)
			}
		}
		if _, err := br.Peek(1); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return errx.Wrap(ErrReadBody, err)
		}
	}
}

// emit runs fn unless the engine has been cancelled.
func (e *Engine) emit(fn func()) bool {
	e.emitMu.Lock()
	defer e.emitMu.Unlock()
	if e.stopped.Load() {
		return false
	}
	fn()
	return true
}

func (e *Engine) sleep(d time.Duration) bool {
	if d <= 0 {
		select {
		case <-e.cancel:
			return false
		default:
			return true
		}
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-e.cancel:
		return false
	}
}

func (e *Engine) sleepUntil(deadline time.Time) bool {
	return e.sleep(time.Until(deadline))
}
