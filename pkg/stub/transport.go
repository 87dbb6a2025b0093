package stub

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"

	"github.com/jingkaihe/httpstubs/internal/errx"
	"github.com/jingkaihe/httpstubs/pkg/api"
)

// Transport is an http.RoundTripper that answers requests from a
// registry. Requests no stub matches go to the fallback.
type Transport struct {
	reg      *Registry
	fallback http.RoundTripper
}

// NewTransport returns a transport backed by reg. A nil fallback makes
// unmatched requests fail with api.ErrUnmatchedRequest.
func NewTransport(reg *Registry, fallback http.RoundTripper) *Transport {
	return &Transport{reg: reg, fallback: fallback}
}

// Client returns an http.Client that only ever answers from the registry.
func (r *Registry) Client() *http.Client {
	return &http.Client{Transport: NewTransport(r, nil)}
}

// Install makes c consult the registry before its current transport.
func (r *Registry) Install(c *http.Client) {
	base := c.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	c.Transport = NewTransport(r, base)
}

func (t *Transport) RoundTrip(orig *http.Request) (*http.Response, error) {
	req, err := bufferBody(orig)
	if err != nil {
		return nil, err
	}

	a := t.reg.NewAdapter(req)
	ok, err := a.ShouldIntercept()
	if err != nil {
		return nil, err
	}
	if !ok {
		if t.fallback == nil {
			return nil, errx.With(api.ErrUnmatchedRequest, ": %s %s", req.Method, req.URL)
		}
		return t.fallback.RoundTrip(req)
	}

	ctx := req.Context()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pr, pw := io.Pipe()
	client := &pipeClient{pw: pw, head: make(chan head, 1)}
	if err := a.Start(client); err != nil {
		pr.Close()
		return nil, err
	}

	var h head
	select {
	case h = <-client.head:
	case <-ctx.Done():
		// Unblock a pending write before cancelling.
		pr.CloseWithError(ctx.Err())
		a.Stop()
		return nil, ctx.Err()
	}
	if h.err != nil {
		pr.Close()
		a.Stop()
		return nil, h.err
	}

	body := &stubBody{pr: pr, adapter: a}
	body.stopAfter = context.AfterFunc(ctx, func() {
		pr.CloseWithError(ctx.Err())
		a.Stop()
	})

	return &http.Response{
		Status:        fmt.Sprintf("%d %s", h.status, http.StatusText(h.status)),
		StatusCode:    h.status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        h.header,
		Body:          body,
		ContentLength: contentLength(h.header, a),
		Request:       orig,
	}, nil
}

// bufferBody reads and closes the caller's body and returns a clone of req
// carrying a replayable copy, so predicates can read the body without
// touching the caller's request.
func bufferBody(req *http.Request) (*http.Request, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return req, nil
	}
	data, err := io.ReadAll(req.Body)
	_ = req.Body.Close()
	if err != nil {
		return nil, errx.Wrap(api.ErrReadRequestBody, err)
	}

	clone := req.Clone(req.Context())
	clone.Body = io.NopCloser(bytes.NewReader(data))
	clone.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}
	clone.ContentLength = int64(len(data))
	return clone, nil
}

func contentLength(header http.Header, a *Adapter) int64 {
	if v := header.Get("Content-Length"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n >= 0 {
			return n
		}
	}
	if resp := a.Response(); resp != nil {
		return resp.DataSize()
	}
	return -1
}

type head struct {
	status int
	header http.Header
	err    error
}

// pipeClient turns delivery callbacks into a response head and a body
// stream.
type pipeClient struct {
	pw       *io.PipeWriter
	head     chan head
	mu       sync.Mutex
	headSent bool
}

func (c *pipeClient) sendHead(h head) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.headSent {
		return false
	}
	c.headSent = true
	c.head <- h
	return true
}

func (c *pipeClient) ReceivedResponse(status int, header http.Header) {
	c.sendHead(head{status: status, header: header})
}

func (c *pipeClient) ReceivedData(p []byte) {
	// A write error means the reader went away; Stop follows.
	_, _ = c.pw.Write(p)
}

// Redirected is a no-op: the response still carries the redirect status
// and Location, and http.Client decides whether to follow it.
func (c *pipeClient) Redirected(*http.Request, int, http.Header) {}

func (c *pipeClient) Finished(err error) {
	if err != nil {
		if !c.sendHead(head{err: err}) {
			c.pw.CloseWithError(err)
		}
		return
	}
	c.pw.Close()
}

// stubBody closes the pipe before stopping the adapter so a delivery
// blocked on a write can observe the cancellation.
type stubBody struct {
	pr        *io.PipeReader
	adapter   *Adapter
	stopAfter func() bool
	once      sync.Once
}

func (b *stubBody) Read(p []byte) (int, error) {
	return b.pr.Read(p)
}

// Close stops delivery and waits for the finish notification, so
// observers have seen the whole exchange once Close returns.
func (b *stubBody) Close() error {
	b.once.Do(func() {
		b.stopAfter()
		b.pr.Close()
		b.adapter.Stop()
		<-b.adapter.Done()
	})
	return nil
}
