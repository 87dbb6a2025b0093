package api

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/jingkaihe/httpstubs/internal/errx"
)

const DefaultStatusCode = 200

// StubFile is the on-disk form of a set of stubs (YAML or JSON).
// Stubs are registered in file order, which is also their match priority.
type StubFile struct {
	Stubs []StubConfig `json:"stubs" yaml:"stubs"`
}

type StubConfig struct {
	Name     string         `json:"name,omitempty" yaml:"name,omitempty"`
	Match    MatchConfig    `json:"match" yaml:"match"`
	Response ResponseConfig `json:"response" yaml:"response"`
}

// MatchConfig describes a request predicate. Every non-empty field must
// match; an empty MatchConfig matches all requests.
type MatchConfig struct {
	Methods    []string          `json:"methods,omitempty" yaml:"methods,omitempty"` // empty matches all methods
	Scheme     string            `json:"scheme,omitempty" yaml:"scheme,omitempty"`
	Hosts      []string          `json:"hosts,omitempty" yaml:"hosts,omitempty"` // glob patterns
	Path       string            `json:"path,omitempty" yaml:"path,omitempty"`   // path.Match glob
	PathPrefix string            `json:"path_prefix,omitempty" yaml:"path_prefix,omitempty"`
	PathRegex  string            `json:"path_regex,omitempty" yaml:"path_regex,omitempty"`
	Query      map[string]string `json:"query,omitempty" yaml:"query,omitempty"`
	Headers    map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	JSONPath   map[string]string `json:"json_path,omitempty" yaml:"json_path,omitempty"` // gjson path -> expected string form
	Schema     string            `json:"schema,omitempty" yaml:"schema,omitempty"`       // JSON schema file for the request body
}

// ResponseConfig describes the canned response. At most one body source
// (body, json, file, http_message) may be set. Error replaces the response
// entirely with a simulated transport failure.
type ResponseConfig struct {
	Status      int               `json:"status,omitempty" yaml:"status,omitempty"`
	Headers     map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Body        string            `json:"body,omitempty" yaml:"body,omitempty"`
	JSON        any               `json:"json,omitempty" yaml:"json,omitempty"`
	File        string            `json:"file,omitempty" yaml:"file,omitempty"`
	HTTPMessage string            `json:"http_message,omitempty" yaml:"http_message,omitempty"`
	Encoding    string            `json:"encoding,omitempty" yaml:"encoding,omitempty"` // gzip, br

	// RequestTime is seconds before headers are sent. ResponseTime is
	// seconds spent streaming the body, or a KB/s rate when negative.
	RequestTime  float64 `json:"request_time,omitempty" yaml:"request_time,omitempty"`
	ResponseTime float64 `json:"response_time,omitempty" yaml:"response_time,omitempty"`

	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}

// GetStatus returns the configured status, or DefaultStatusCode when unset.
func (r *ResponseConfig) GetStatus() int {
	if r != nil && r.Status != 0 {
		return r.Status
	}
	return DefaultStatusCode
}

func (r *ResponseConfig) bodySources() []string {
	var sources []string
	if r.Body != "" {
		sources = append(sources, "body")
	}
	if r.JSON != nil {
		sources = append(sources, "json")
	}
	if r.File != "" {
		sources = append(sources, "file")
	}
	if r.HTTPMessage != "" {
		sources = append(sources, "http_message")
	}
	return sources
}

// Validate checks stub config invariants.
func (c *StubConfig) Validate() error {
	if c.Match.PathRegex != "" {
		if _, err := regexp.Compile(c.Match.PathRegex); err != nil {
			return errx.With(ErrInvalidConfig, ": stub %q: match.path_regex: %w", c.Name, err)
		}
	}
	for _, m := range c.Match.Methods {
		if strings.TrimSpace(m) == "" {
			return errx.With(ErrInvalidConfig, ": stub %q: match.methods contains an empty method", c.Name)
		}
	}
	if strings.Contains(c.Match.Scheme, "/") {
		return errx.With(ErrInvalidConfig, ": stub %q: match.scheme %q must not contain '/'", c.Name, c.Match.Scheme)
	}

	r := &c.Response
	if r.RequestTime < 0 {
		return errx.With(ErrInvalidConfig, ": stub %q: response.request_time must be >= 0", c.Name)
	}
	sources := r.bodySources()
	if len(sources) > 1 {
		return errx.With(ErrInvalidConfig, ": stub %q: response sets more than one body source (%s)", c.Name, strings.Join(sources, ", "))
	}
	if r.Error != "" && (len(sources) > 0 || r.Status != 0 || len(r.Headers) > 0) {
		return errx.With(ErrInvalidConfig, ": stub %q: response.error cannot be combined with status, headers or a body", c.Name)
	}
	if r.HTTPMessage != "" && (r.Status != 0 || len(r.Headers) > 0) {
		return errx.With(ErrInvalidConfig, ": stub %q: response.http_message already carries status and headers", c.Name)
	}
	switch strings.ToLower(r.Encoding) {
	case "", "gzip", "br", "identity":
	default:
		return errx.With(ErrInvalidConfig, ": stub %q: unsupported response.encoding %q", c.Name, r.Encoding)
	}
	return nil
}

// Validate checks every stub in the file.
func (f *StubFile) Validate() error {
	for i := range f.Stubs {
		if err := f.Stubs[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

func ParseStubFile(data []byte) (*StubFile, error) {
	var f StubFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, errx.Wrap(ErrInvalidConfig, err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}
