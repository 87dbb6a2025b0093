// Package stub holds the ordered stub registry and the adapters that let
// an HTTP transport answer requests from it.
//
// Stubs are matched in registration order and the first predicate that
// returns true wins.
package stub

import (
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"sync"

	"github.com/jingkaihe/httpstubs/internal/errx"
	"github.com/jingkaihe/httpstubs/pkg/api"
)

// Registry is an ordered, concurrency-safe collection of stubs.
type Registry struct {
	mu      sync.Mutex
	stubs   []descriptor
	enabled bool
	hooks   hub

	logger *slog.Logger
}

type Option func(*Registry)

// WithLogger sets the logger used for debug output. The registry never
// logs above Debug.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		enabled: true,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "stub")
	return r
}

// Add appends a stub and returns its ID.
func (r *Registry) Add(p Predicate, resp Responder) ID {
	return r.AddNamed("", p, resp)
}

// AddNamed appends a stub with a display name and returns its ID.
func (r *Registry) AddNamed(name string, p Predicate, resp Responder) ID {
	d := descriptor{
		id:        newID(),
		name:      name,
		predicate: p,
		responder: resp,
	}

	r.mu.Lock()
	r.stubs = append(r.stubs, d)
	count := len(r.stubs)
	r.mu.Unlock()

	r.logger.Debug("stub added", "id", d.id, "name", name, "count", count)
	return d.id
}

// Remove deletes the stub with the given ID and reports whether it was
// registered.
func (r *Registry) Remove(id ID) bool {
	r.mu.Lock()
	i := r.indexOf(id)
	if i >= 0 {
		r.stubs = slices.Delete(r.stubs, i, i+1)
	}
	r.mu.Unlock()

	if i < 0 {
		r.logger.Debug("stub not removed", "id", id, "error", api.ErrStubNotFound)
		return false
	}
	r.logger.Debug("stub removed", "id", id)
	return true
}

// RemoveLast deletes the most recently added stub still registered.
func (r *Registry) RemoveLast() bool {
	r.mu.Lock()
	if len(r.stubs) == 0 {
		r.mu.Unlock()
		return false
	}
	last := r.stubs[len(r.stubs)-1]
	r.stubs = slices.Delete(r.stubs, len(r.stubs)-1, len(r.stubs))
	r.mu.Unlock()

	r.logger.Debug("stub removed", "id", last.id)
	return true
}

// RemoveAll deletes every stub. The enabled flag and callbacks are kept.
func (r *Registry) RemoveAll() {
	r.mu.Lock()
	n := len(r.stubs)
	r.stubs = nil
	r.mu.Unlock()

	r.logger.Debug("stubs cleared", "count", n)
}

// List returns the registered stubs in matching order.
func (r *Registry) List() []Info {
	r.mu.Lock()
	defer r.mu.Unlock()
	infos := make([]Info, len(r.stubs))
	for i, d := range r.stubs {
		infos[i] = d.info()
	}
	return infos
}

// Lookup returns the stub with the given ID.
func (r *Registry) Lookup(id ID) (Info, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i := r.indexOf(id); i >= 0 {
		return r.stubs[i].info(), true
	}
	return Info{}, false
}

// SetName relabels a stub.
func (r *Registry) SetName(id ID, name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.indexOf(id)
	if i < 0 {
		return false
	}
	r.stubs[i].name = name
	return true
}

// SetEnabled turns matching on or off without touching registered stubs.
func (r *Registry) SetEnabled(enabled bool) {
	r.mu.Lock()
	r.enabled = enabled
	r.mu.Unlock()

	r.logger.Debug("stubs toggled", "enabled", enabled)
}

func (r *Registry) Enabled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enabled
}

// FirstMatch returns the first enabled stub whose predicate accepts req.
// Predicates run outside the registry lock, so they may add or remove
// stubs; such changes apply to later lookups. A panicking predicate stops
// the scan and is reported as an error wrapping api.ErrMatchEvaluation.
func (r *Registry) FirstMatch(req *http.Request) (Info, bool, error) {
	d, ok, err := r.firstMatch(req)
	if !ok || err != nil {
		return Info{}, false, err
	}
	return d.info(), true, nil
}

func (r *Registry) firstMatch(req *http.Request) (descriptor, bool, error) {
	r.mu.Lock()
	if !r.enabled {
		r.mu.Unlock()
		return descriptor{}, false, nil
	}
	snapshot := slices.Clone(r.stubs)
	r.mu.Unlock()

	for _, d := range snapshot {
		ok, err := evaluate(d, req)
		if err != nil {
			return descriptor{}, false, err
		}
		if ok {
			return d, true, nil
		}
	}
	return descriptor{}, false, nil
}

func evaluate(d descriptor, req *http.Request) (ok bool, err error) {
	if d.predicate == nil {
		return false, nil
	}
	defer func() {
		if p := recover(); p != nil {
			err = errx.With(api.ErrMatchEvaluation, ": predicate of stub %s panicked: %v", d.id, p)
		}
	}()
	return d.predicate(req), nil
}

func (r *Registry) indexOf(id ID) int {
	return slices.IndexFunc(r.stubs, func(d descriptor) bool { return d.id == id })
}

// String describes the registry for debugging.
func (r *Registry) String() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fmt.Sprintf("stub.Registry{stubs: %d, enabled: %t}", len(r.stubs), r.enabled)
}
