package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jingkaihe/httpstubs/pkg/response"
	"github.com/jingkaihe/httpstubs/pkg/stub"
)

func newObservedRegistry(t *testing.T) (*stub.Registry, *captureSink) {
	t.Helper()
	reg := stub.NewRegistry()
	sink := &captureSink{}
	Observe(reg, NewEmitter(EmitterConfig{RunID: "run-1"}, sink))
	return reg, sink
}

func get(t *testing.T, c *http.Client, url string) error {
	t.Helper()
	resp, err := c.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, err = io.ReadAll(resp.Body)
	return err
}

// waitEvents waits for finish events, which fire after the body is read.
func waitEvents(t *testing.T, sink *captureSink, n int) []*Event {
	t.Helper()
	require.Eventually(t, func() bool { return len(sink.snapshot()) >= n }, time.Second, 5*time.Millisecond)
	return sink.snapshot()
}

func TestObserve_Completed(t *testing.T) {
	reg, sink := newObservedRegistry(t)
	id := reg.AddNamed("hello", func(*http.Request) bool { return true }, func(*http.Request) (*response.Response, error) {
		return response.New([]byte("hello"), http.StatusOK, nil).WithTiming(0.02, 0), nil
	})

	require.NoError(t, get(t, reg.Client(), "http://api.test/greet"))
	events := waitEvents(t, sink, 2)

	require.Len(t, events, 2)
	activated, finished := events[0], events[1]

	assert.Equal(t, EventStubActivated, activated.EventType)
	assert.Equal(t, string(id), activated.StubID)
	assert.Equal(t, "hello", activated.StubName)
	assert.Equal(t, "GET api.test/greet stubbed by hello", activated.Summary)
	var a ActivationData
	require.NoError(t, json.Unmarshal(activated.Data, &a))
	assert.Equal(t, int64(5), a.BodyBytes)
	assert.Equal(t, int64(20), a.RequestTimeMS)

	assert.Equal(t, EventStubFinished, finished.EventType)
	assert.Equal(t, "GET api.test/greet -> 200", finished.Summary)
	assert.Empty(t, finished.Tags)
	var f FinishData
	require.NoError(t, json.Unmarshal(finished.Data, &f))
	assert.Equal(t, OutcomeCompleted, f.Outcome)
	assert.GreaterOrEqual(t, f.DurationMS, int64(20))
	assert.Empty(t, f.Error)
}

func TestObserve_SimulatedError(t *testing.T) {
	reg, sink := newObservedRegistry(t)
	reg.Add(func(*http.Request) bool { return true }, func(*http.Request) (*response.Response, error) {
		return response.FromError(errors.New("connection reset")), nil
	})

	require.Error(t, get(t, reg.Client(), "http://api.test/"))
	events := waitEvents(t, sink, 2)

	var a ActivationData
	require.NoError(t, json.Unmarshal(events[0].Data, &a))
	assert.Equal(t, "connection reset", a.Simulated)

	assert.Equal(t, []string{"error"}, events[1].Tags)
	var f FinishData
	require.NoError(t, json.Unmarshal(events[1].Data, &f))
	assert.Equal(t, OutcomeErrored, f.Outcome)
	assert.Equal(t, "connection reset", f.Error)
}

func TestObserve_Redirect(t *testing.T) {
	reg, sink := newObservedRegistry(t)
	reg.AddNamed("old", func(r *http.Request) bool { return r.URL.Path == "/old" }, func(*http.Request) (*response.Response, error) {
		return response.New(nil, http.StatusSeeOther, map[string]string{"Location": "/new"}), nil
	})
	reg.AddNamed("new", func(r *http.Request) bool { return r.URL.Path == "/new" }, func(*http.Request) (*response.Response, error) {
		return response.New([]byte("ok"), http.StatusOK, nil), nil
	})

	require.NoError(t, get(t, reg.Client(), "http://api.test/old"))
	events := waitEvents(t, sink, 5)

	var types []string
	for _, e := range events {
		types = append(types, e.EventType)
	}
	assert.Contains(t, types, EventStubRedirected)
	for _, e := range events {
		if e.EventType != EventStubRedirected {
			continue
		}
		var r RedirectData
		require.NoError(t, json.Unmarshal(e.Data, &r))
		assert.Equal(t, "http://api.test/new", r.Location)
		assert.Equal(t, http.MethodGet, r.NextMethod)
		assert.Equal(t, http.StatusSeeOther, r.StatusCode)
		assert.Equal(t, "old", e.StubName)
	}
}

func TestObserve_Cancelled(t *testing.T) {
	reg, sink := newObservedRegistry(t)
	reg.Add(func(*http.Request) bool { return true }, func(*http.Request) (*response.Response, error) {
		return response.New(bytes.Repeat([]byte("x"), 50_000), http.StatusOK, nil).WithRate(10), nil
	})

	resp, err := reg.Client().Get("http://api.test/big")
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	events := waitEvents(t, sink, 2)
	var f FinishData
	require.NoError(t, json.Unmarshal(events[1].Data, &f))
	assert.Equal(t, OutcomeCancelled, f.Outcome)
	assert.Empty(t, events[1].Tags)
}

func TestSlogSink(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	emitter := NewEmitter(EmitterConfig{RunID: "run-7"}, NewSlogSink(logger, slog.LevelInfo))

	require.NoError(t, emitter.Emit(EventStubFinished, "GET a.test/ -> 200", Stub{ID: "abc", Name: "root"}, nil, &FinishData{Outcome: OutcomeCompleted}))
	require.NoError(t, emitter.Close())

	out := buf.String()
	assert.Contains(t, out, `msg="GET a.test/ -> 200"`)
	assert.Contains(t, out, "event_type=stub_finished")
	assert.Contains(t, out, "stub_name=root")
	assert.Contains(t, out, "run_id=run-7")
}
