package logging

import (
	"encoding/json"
	"time"
)

// Event is one entry of the stub activity journal.
// Required fields: Timestamp, RunID, Source, EventType, Summary.
type Event struct {
	Timestamp time.Time       `json:"ts"`
	RunID     string          `json:"run_id"`
	Source    string          `json:"source"`
	EventType string          `json:"event_type"`
	Summary   string          `json:"summary"`
	StubID    string          `json:"stub_id,omitempty"`
	StubName  string          `json:"stub_name,omitempty"`
	Tags      []string        `json:"tags,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

const (
	EventStubActivated  = "stub_activated"
	EventStubRedirected = "stub_redirected"
	EventStubFinished   = "stub_finished"
)

// RequestData identifies the intercepted request.
type RequestData struct {
	Method string `json:"method"`
	Host   string `json:"host"`
	Path   string `json:"path"`
}

// ActivationData is the data payload for stub_activated events.
type ActivationData struct {
	RequestData
	StatusCode    int     `json:"status_code,omitempty"`
	BodyBytes     int64   `json:"body_bytes"`
	RequestTimeMS int64   `json:"request_time_ms,omitempty"`
	ResponseTime  float64 `json:"response_time,omitempty"` // seconds, or KB/s when negative
	Simulated     string  `json:"simulated_error,omitempty"`
}

// RedirectData is the data payload for stub_redirected events.
type RedirectData struct {
	RequestData
	StatusCode int    `json:"status_code"`
	Location   string `json:"location"`
	NextMethod string `json:"next_method"`
}

// FinishData is the data payload for stub_finished events.
type FinishData struct {
	RequestData
	StatusCode int    `json:"status_code,omitempty"`
	DurationMS int64  `json:"duration_ms"`
	Outcome    string `json:"outcome"` // "completed", "errored", "cancelled"
	Error      string `json:"error,omitempty"`
}
