package stub

import (
	"net/http"

	"github.com/jingkaihe/httpstubs/pkg/response"
)

// ActivationFunc is called when a stub starts answering a request.
type ActivationFunc func(req *http.Request, stub Info, resp *response.Response)

// RedirectFunc is called when a stubbed response is a redirect.
type RedirectFunc func(req, redirect *http.Request, stub Info, resp *response.Response)

// FinishFunc is called once per delivered request, after every client
// callback. err is nil on success, the simulated error, or wraps
// api.ErrCancelled.
type FinishFunc func(req *http.Request, stub Info, resp *response.Response, err error)

// hub holds one callback per event kind. Setting a slot replaces the
// previous callback; nil clears it. Guarded by Registry.mu.
type hub struct {
	onActivation ActivationFunc
	onRedirect   RedirectFunc
	onFinish     FinishFunc
}

// OnActivation sets the activation callback.
func (r *Registry) OnActivation(fn ActivationFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks.onActivation = fn
}

// OnRedirect sets the redirect callback.
func (r *Registry) OnRedirect(fn RedirectFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks.onRedirect = fn
}

// OnFinish sets the finish callback.
func (r *Registry) OnFinish(fn FinishFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks.onFinish = fn
}

// callbacks returns the current slots. Callers invoke them without
// holding the lock so callbacks may use the registry.
func (r *Registry) callbacks() hub {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hooks
}

func (r *Registry) notifyActivation(req *http.Request, stub Info, resp *response.Response) {
	if fn := r.callbacks().onActivation; fn != nil {
		fn(req, stub, resp)
	}
}

func (r *Registry) notifyRedirect(req, redirect *http.Request, stub Info, resp *response.Response) {
	if fn := r.callbacks().onRedirect; fn != nil {
		fn(req, redirect, stub, resp)
	}
}

func (r *Registry) notifyFinish(req *http.Request, stub Info, resp *response.Response, err error) {
	if fn := r.callbacks().onFinish; fn != nil {
		fn(req, stub, resp, err)
	}
}
