package stub

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jingkaihe/httpstubs/pkg/api"
	"github.com/jingkaihe/httpstubs/pkg/response"
)

func TestTransport_LoginScenario(t *testing.T) {
	reg := NewRegistry()
	reg.Add(pathIs("/login"), func(*http.Request) (*response.Response, error) {
		return response.JSON(map[string]bool{"ok": true}, http.StatusOK, nil)
	})
	reg.Add(always, respondWith(http.StatusNotFound, "not found"))
	client := reg.Client()

	resp, err := client.Get("http://api.example.com/login")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "200 OK", resp.Status)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.JSONEq(t, `{"ok":true}`, string(body))
	assert.Equal(t, int64(len(body)), resp.ContentLength)

	resp, err = client.Get("http://api.example.com/other")
	require.NoError(t, err)
	body, err = io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not found", string(body))
}

func TestTransport_UnmatchedWithoutFallback(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Client().Get("http://example.com/nothing")
	require.Error(t, err)
	assert.ErrorIs(t, err, api.ErrUnmatchedRequest)
}

func TestTransport_FallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "real")
	}))
	defer srv.Close()

	reg := NewRegistry()
	reg.Add(pathIs("/stubbed"), respondWith(http.StatusTeapot, "stub"))
	client := &http.Client{}
	reg.Install(client)

	resp, err := client.Get(srv.URL + "/real")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "real", string(body))

	resp, err = client.Get(srv.URL + "/stubbed")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusTeapot, resp.StatusCode)
	assert.Equal(t, "stub", string(body))

	reg.SetEnabled(false)
	resp, err = client.Get(srv.URL + "/stubbed")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "real", string(body), "disabled registry passes through")
}

func TestTransport_SimulatedError(t *testing.T) {
	reg := NewRegistry()
	offline := errors.New("the internet connection appears to be offline")
	reg.Add(always, func(*http.Request) (*response.Response, error) {
		return response.FromError(offline), nil
	})

	_, err := reg.Client().Get("http://example.com/")
	require.Error(t, err)
	assert.ErrorIs(t, err, offline)
}

func TestTransport_ResponderError(t *testing.T) {
	reg := NewRegistry()
	reg.Add(always, func(*http.Request) (*response.Response, error) {
		return nil, errors.New("cannot build")
	})

	_, err := reg.Client().Get("http://example.com/")
	assert.ErrorIs(t, err, api.ErrMatchEvaluation)
}

func TestTransport_FollowsRedirect(t *testing.T) {
	reg := NewRegistry()
	reg.Add(pathIs("/old"), func(*http.Request) (*response.Response, error) {
		return response.New(nil, http.StatusFound, map[string]string{"Location": "/new"}), nil
	})
	reg.Add(pathIs("/new"), respondWith(http.StatusOK, "moved here"))
	var redirected string
	reg.OnRedirect(func(_, redirect *http.Request, _ Info, _ *response.Response) {
		redirected = redirect.URL.Path
	})

	resp, err := reg.Client().Get("http://example.com/old")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "moved here", string(body))
	assert.Equal(t, "/new", resp.Request.URL.Path)
	assert.Equal(t, "/new", redirected)
}

func TestTransport_RequestTimeHonoursContext(t *testing.T) {
	reg := NewRegistry()
	reg.Add(always, func(*http.Request) (*response.Response, error) {
		return response.New([]byte("slow"), http.StatusOK, nil).WithRequestTime(5 * time.Second), nil
	})
	finished := make(chan error, 1)
	reg.OnFinish(func(_ *http.Request, _ Info, _ *response.Response, err error) { finished <- err })

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://example.com/", nil)
	require.NoError(t, err)

	start := time.Now()
	_, err = reg.Client().Do(req)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)

	select {
	case err := <-finished:
		assert.ErrorIs(t, err, api.ErrCancelled)
	case <-time.After(time.Second):
		t.Fatal("finish callback did not fire")
	}
}

func TestTransport_ClosingBodyStopsDelivery(t *testing.T) {
	reg := NewRegistry()
	reg.Add(always, func(*http.Request) (*response.Response, error) {
		return response.New([]byte(strings.Repeat("a", 100_000)), http.StatusOK, nil).WithRate(10), nil
	})
	finished := make(chan error, 1)
	reg.OnFinish(func(_ *http.Request, _ Info, _ *response.Response, err error) { finished <- err })

	resp, err := reg.Client().Get("http://example.com/big")
	require.NoError(t, err)
	buf := make([]byte, 10)
	_, err = io.ReadFull(resp.Body, buf)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	select {
	case err := <-finished:
		assert.ErrorIs(t, err, api.ErrCancelled)
	case <-time.After(time.Second):
		t.Fatal("delivery was not cancelled")
	}
}

func TestTransport_PacedBody(t *testing.T) {
	reg := NewRegistry()
	reg.Add(always, func(*http.Request) (*response.Response, error) {
		return response.New([]byte(strings.Repeat("p", 4000)), http.StatusOK, nil).
			WithTiming(0.05, 0.2), nil
	})

	start := time.Now()
	resp, err := reg.Client().Get("http://example.com/")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Len(t, body, 4000)
	assert.InDelta(t, 250, time.Since(start).Milliseconds(), 150)
}

type trackingBody struct {
	io.Reader
	mu     sync.Mutex
	closed bool
}

func (b *trackingBody) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func (b *trackingBody) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

func TestTransport_ClosesRequestBody(t *testing.T) {
	tests := []struct {
		name    string
		stubbed bool
	}{
		{name: "stubbed", stubbed: true},
		{name: "unmatched", stubbed: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := NewRegistry()
			if tt.stubbed {
				reg.Add(always, respondWith(http.StatusCreated, "created"))
			}
			body := &trackingBody{Reader: strings.NewReader(`{"name":"grace"}`)}
			req, err := http.NewRequest(http.MethodPost, "http://api.example.com/users", body)
			require.NoError(t, err)

			resp, err := NewTransport(reg, nil).RoundTrip(req)
			if tt.stubbed {
				require.NoError(t, err)
				_, err = io.ReadAll(resp.Body)
				require.NoError(t, err)
				require.NoError(t, resp.Body.Close())
			} else {
				require.ErrorIs(t, err, api.ErrUnmatchedRequest)
			}
			assert.True(t, body.isClosed())
		})
	}
}

func TestTransport_LeavesCallerRequestUntouched(t *testing.T) {
	var seen *http.Request
	reg := NewRegistry()
	reg.Add(func(r *http.Request) bool {
		seen = r
		rc, err := r.GetBody()
		if err != nil {
			return false
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		return err == nil && string(data) == "payload"
	}, func(r *http.Request) (*response.Response, error) {
		data, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, err
		}
		return response.New(data, http.StatusOK, nil), nil
	})

	body := &trackingBody{Reader: strings.NewReader("payload")}
	req, err := http.NewRequest(http.MethodPut, "http://api.example.com/blob", body)
	require.NoError(t, err)

	resp, err := NewTransport(reg, nil).RoundTrip(req)
	require.NoError(t, err)
	echoed, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	assert.Equal(t, "payload", string(echoed))
	assert.Same(t, req, resp.Request)
	assert.NotSame(t, req, seen)
	assert.Same(t, body, req.Body)
	assert.Nil(t, req.GetBody)
}

func TestTransport_FallbackReceivesBufferedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(w, r.Body)
	}))
	defer srv.Close()

	body := &trackingBody{Reader: strings.NewReader("to origin")}
	req, err := http.NewRequest(http.MethodPost, srv.URL, body)
	require.NoError(t, err)

	resp, err := NewTransport(NewRegistry(), http.DefaultTransport).RoundTrip(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	got, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "to origin", string(got))
	assert.True(t, body.isClosed())
}
