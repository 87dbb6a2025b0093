package stub

import (
	"net/http"
	"sync"

	"github.com/jingkaihe/httpstubs/internal/errx"
	"github.com/jingkaihe/httpstubs/pkg/api"
	"github.com/jingkaihe/httpstubs/pkg/delivery"
	"github.com/jingkaihe/httpstubs/pkg/response"
)

// Adapter answers one intercepted request. A transport calls
// ShouldIntercept, then Start if it returned true, and Stop when it no
// longer wants the response.
//
// The matched stub is resolved once and reused, so a registry change
// between ShouldIntercept and Start does not change which stub answers.
type Adapter struct {
	reg    *Registry
	req    *http.Request
	engine *delivery.Engine

	mu        sync.Mutex
	evaluated bool
	matched   bool
	stub      descriptor
	matchErr  error
	resp      *response.Response
	started   bool
	stopped   bool

	doneOnce sync.Once
	done     chan struct{}
}

// NewAdapter binds req to the registry.
func (r *Registry) NewAdapter(req *http.Request) *Adapter {
	return &Adapter{
		reg:    r,
		req:    req,
		engine: delivery.NewEngine(r.logger),
		done:   make(chan struct{}),
	}
}

func (a *Adapter) Request() *http.Request { return a.req }

// ShouldIntercept reports whether a stub will answer the request. The
// first call evaluates predicates; later calls return the same result.
func (a *Adapter) ShouldIntercept() (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.resolveLocked()
	return a.matched, a.matchErr
}

// Stub returns the stub that matched, if any.
func (a *Adapter) Stub() (Info, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.evaluated || !a.matched {
		return Info{}, false
	}
	return a.stub.info(), true
}

// Response returns the response being delivered, or nil before Start.
func (a *Adapter) Response() *response.Response {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.resp
}

func (a *Adapter) resolveLocked() {
	if a.evaluated {
		return
	}
	a.evaluated = true
	a.stub, a.matched, a.matchErr = a.reg.firstMatch(a.req)
}

// Start builds the stub's response, fires the activation callback and
// begins delivery to client. It returns once delivery is scheduled.
func (a *Adapter) Start(client delivery.Client) error {
	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return api.ErrAdapterStopped
	}
	if a.started {
		a.mu.Unlock()
		return api.ErrAlreadyStarted
	}
	a.resolveLocked()
	if a.matchErr != nil {
		err := a.matchErr
		a.mu.Unlock()
		return err
	}
	if !a.matched {
		a.mu.Unlock()
		return api.ErrNotIntercepted
	}
	a.started = true
	d := a.stub
	a.mu.Unlock()

	info := d.info()
	resp, err := respond(d, a.req)
	if err != nil {
		a.closeDone()
		return err
	}

	a.mu.Lock()
	a.resp = resp
	a.mu.Unlock()

	a.reg.logger.Debug("stub activated",
		"id", info.ID,
		"name", info.Name,
		"method", a.req.Method,
		"url", a.req.URL.String(),
	)
	a.reg.notifyActivation(a.req, info, resp)

	hooks := delivery.Hooks{
		OnRedirect: func(redirect *http.Request) {
			a.reg.notifyRedirect(a.req, redirect, info, resp)
		},
		OnFinish: func(err error) {
			a.reg.notifyFinish(a.req, info, resp, err)
			a.closeDone()
		},
	}
	if err := a.engine.Deliver(a.req, resp, client, hooks); err != nil {
		a.reg.notifyFinish(a.req, info, resp, err)
		a.closeDone()
		return err
	}
	return nil
}

// Stop cancels delivery. Once Stop returns the client receives no more
// callbacks. It is safe to call more than once and from any goroutine,
// but not from inside a client callback.
func (a *Adapter) Stop() {
	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return
	}
	a.stopped = true
	started := a.started
	a.mu.Unlock()

	a.engine.Cancel()
	if !started {
		a.closeDone()
	}
}

// Done is closed when the adapter has nothing left to do: after the
// finish callback of a started delivery, or when it was stopped or failed
// before delivering.
func (a *Adapter) Done() <-chan struct{} { return a.done }

// State reports the delivery state.
func (a *Adapter) State() delivery.State { return a.engine.State() }

func (a *Adapter) closeDone() {
	a.doneOnce.Do(func() { close(a.done) })
}

func respond(d descriptor, req *http.Request) (resp *response.Response, err error) {
	if d.responder == nil {
		return nil, errx.Wrap(api.ErrMatchEvaluation, errx.With(api.ErrNilResponse, ": stub %s has no responder", d.id))
	}
	defer func() {
		if p := recover(); p != nil {
			err = errx.With(api.ErrMatchEvaluation, ": responder of stub %s panicked: %v", d.id, p)
		}
	}()
	resp, err = d.responder(req)
	if err != nil {
		return nil, errx.Wrap(api.ErrMatchEvaluation, err)
	}
	if resp == nil {
		return nil, errx.Wrap(api.ErrMatchEvaluation, errx.With(api.ErrNilResponse, ": stub %s", d.id))
	}
	return resp, nil
}
