package logging

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/jingkaihe/httpstubs/pkg/api"
	"github.com/jingkaihe/httpstubs/pkg/response"
	"github.com/jingkaihe/httpstubs/pkg/stub"
)

const (
	OutcomeCompleted = "completed"
	OutcomeErrored   = "errored"
	OutcomeCancelled = "cancelled"
)

// Observe installs activation, redirect and finish callbacks on reg that
// turn every notification into one event. It replaces any callbacks
// already set. Emission is best-effort; sink errors are dropped.
func Observe(reg *stub.Registry, emitter *Emitter) {
	o := &observer{emitter: emitter}
	reg.OnActivation(o.activated)
	reg.OnRedirect(o.redirected)
	reg.OnFinish(o.finished)
}

type observer struct {
	emitter *Emitter
	started sync.Map // *http.Request -> time.Time
}

func (o *observer) activated(req *http.Request, s stub.Info, resp *response.Response) {
	o.started.Store(req, time.Now())

	data := &ActivationData{
		RequestData:   requestData(req),
		StatusCode:    resp.StatusCode(),
		BodyBytes:     resp.DataSize(),
		RequestTimeMS: resp.RequestTime().Milliseconds(),
		ResponseTime:  resp.ResponseTime(),
	}
	if err := resp.Err(); err != nil {
		data.Simulated = err.Error()
	}
	summary := fmt.Sprintf("%s %s%s stubbed by %s", data.Method, data.Host, data.Path, label(s))
	_ = o.emitter.Emit(EventStubActivated, summary, toStub(s), nil, data)
}

func (o *observer) redirected(req, redirect *http.Request, s stub.Info, resp *response.Response) {
	data := &RedirectData{
		RequestData: requestData(req),
		StatusCode:  resp.StatusCode(),
		Location:    redirect.URL.String(),
		NextMethod:  redirect.Method,
	}
	summary := fmt.Sprintf("%s %s%s -> %d %s", data.Method, data.Host, data.Path, data.StatusCode, data.Location)
	_ = o.emitter.Emit(EventStubRedirected, summary, toStub(s), nil, data)
}

func (o *observer) finished(req *http.Request, s stub.Info, resp *response.Response, err error) {
	data := &FinishData{
		RequestData: requestData(req),
		StatusCode:  resp.StatusCode(),
		Outcome:     outcome(err),
	}
	if start, ok := o.started.LoadAndDelete(req); ok {
		data.DurationMS = time.Since(start.(time.Time)).Milliseconds()
	}
	if err != nil {
		data.Error = err.Error()
	}

	summary := fmt.Sprintf("%s %s%s %s", data.Method, data.Host, data.Path, data.Outcome)
	if data.Outcome == OutcomeCompleted {
		summary = fmt.Sprintf("%s %s%s -> %d", data.Method, data.Host, data.Path, data.StatusCode)
	}
	_ = o.emitter.Emit(EventStubFinished, summary, toStub(s), tags(err), data)
}

func outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeCompleted
	case errors.Is(err, api.ErrCancelled):
		return OutcomeCancelled
	default:
		return OutcomeErrored
	}
}

func tags(err error) []string {
	if err != nil && !errors.Is(err, api.ErrCancelled) {
		return []string{"error"}
	}
	return nil
}

func requestData(req *http.Request) RequestData {
	d := RequestData{Method: req.Method}
	if d.Method == "" {
		d.Method = http.MethodGet
	}
	if req.URL != nil {
		d.Host = req.URL.Host
		d.Path = req.URL.Path
	}
	if d.Host == "" {
		d.Host = req.Host
	}
	return d
}

func toStub(s stub.Info) Stub {
	return Stub{ID: string(s.ID), Name: s.Name}
}

func label(s stub.Info) string {
	if s.Name != "" {
		return s.Name
	}
	return s.ID.Short()
}
