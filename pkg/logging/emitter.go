package logging

import (
	"encoding/json"
	"time"

	"github.com/jingkaihe/httpstubs/internal/errx"
)

// DefaultSource is stamped on events when EmitterConfig.Source is empty.
const DefaultSource = "httpstubs"

// EmitterConfig holds the static metadata stamped onto every event.
type EmitterConfig struct {
	RunID  string // Caller-supplied; the CLI uses a fresh UUID per run
	Source string // Component or test suite producing the events
}

// Emitter builds events and dispatches them to one or more sinks.
//
// A nil *Emitter drops every event.
type Emitter struct {
	config EmitterConfig
	sinks  []Sink
	now    func() time.Time
}

func NewEmitter(cfg EmitterConfig, sinks ...Sink) *Emitter {
	if cfg.Source == "" {
		cfg.Source = DefaultSource
	}
	return &Emitter{
		config: cfg,
		sinks:  sinks,
		now:    time.Now,
	}
}

// Stub identifies the stub an event is about. The zero value leaves the
// event's stub fields empty.
type Stub struct {
	ID   string
	Name string
}

// Emit constructs an event with the emitter's static metadata and writes
// it to all sinks.
//
// Parameters:
//   - eventType: one of the Event* constants
//   - summary: human-readable one-line summary
//   - stub: the stub the event concerns
//   - tags: optional tags for filtering (nil is fine)
//   - data: the typed payload (e.g., *FinishData); nil for no payload
//
// Returns the first error encountered. Callers should discard errors
// with _ = (best-effort semantics).
func (e *Emitter) Emit(eventType, summary string, stub Stub, tags []string, data any) error {
	if e == nil {
		return nil
	}
	var rawData json.RawMessage
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return errx.Wrap(ErrMarshalData, err)
		}
		rawData = b
	}

	event := &Event{
		Timestamp: e.now().UTC(),
		RunID:     e.config.RunID,
		Source:    e.config.Source,
		EventType: eventType,
		Summary:   summary,
		StubID:    stub.ID,
		StubName:  stub.Name,
		Tags:      tags,
		Data:      rawData,
	}

	for _, sink := range e.sinks {
		if err := sink.Write(event); err != nil {
			return err
		}
	}
	return nil
}

// Close closes all sinks. Returns the first error encountered.
func (e *Emitter) Close() error {
	var firstErr error
	for _, sink := range e.sinks {
		if err := sink.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
