package api

import "errors"

// Registry and adapter errors
var (
	ErrStubNotFound     = errors.New("stub not found")
	ErrMatchEvaluation  = errors.New("stub match evaluation failed")
	ErrNilResponse      = errors.New("stub responder returned no response")
	ErrNotIntercepted   = errors.New("request is not intercepted by any stub")
	ErrAlreadyStarted   = errors.New("delivery already started")
	ErrAdapterStopped   = errors.New("adapter already stopped")
	ErrCancelled        = errors.New("stubbed request cancelled")
	ErrUnmatchedRequest = errors.New("no stub matched request and no fallback transport is configured")
	ErrReadRequestBody  = errors.New("read request body")
)

// Configuration errors
var (
	ErrInvalidConfig = errors.New("invalid configuration")
)
