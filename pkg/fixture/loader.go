package fixture

import (
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/jingkaihe/httpstubs/internal/errx"
	"github.com/jingkaihe/httpstubs/pkg/api"
	"github.com/jingkaihe/httpstubs/pkg/match"
	"github.com/jingkaihe/httpstubs/pkg/response"
	"github.com/jingkaihe/httpstubs/pkg/stub"
)

const defaultCacheSize = 128

// Extensions lists the fixture file extensions LoadDir picks up.
var Extensions = []string{MocktailExt, ".yaml", ".yml", ".json"}

// Loader registers stubs from fixture files. Body files referenced by
// stub files are read once and kept in an LRU cache.
type Loader struct {
	logger    *slog.Logger
	cacheSize int
	files     *lru.Cache[string, []byte]
}

type LoaderOption func(*Loader)

func WithLogger(logger *slog.Logger) LoaderOption {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithCacheSize bounds the number of body files kept in memory.
func WithCacheSize(n int) LoaderOption {
	return func(l *Loader) {
		if n > 0 {
			l.cacheSize = n
		}
	}
}

func NewLoader(opts ...LoaderOption) (*Loader, error) {
	l := &Loader{
		logger:    slog.New(slog.DiscardHandler),
		cacheSize: defaultCacheSize,
	}
	for _, opt := range opts {
		opt(l)
	}
	files, err := lru.New[string, []byte](l.cacheSize)
	if err != nil {
		return nil, err
	}
	l.files = files
	l.logger = l.logger.With("component", "fixture")
	return l, nil
}

// pending is a stub built from a fixture but not yet registered.
type pending struct {
	name      string
	predicate stub.Predicate
	responder stub.Responder
}

// LoadFile registers the stubs of one fixture file. The format follows
// the extension: ".tail" for Mocktail, ".yaml"/".yml" or ".json" for stub
// files. Nothing is registered when the file has an error.
func (l *Loader) LoadFile(reg *stub.Registry, path string) ([]stub.ID, error) {
	stubs, err := l.parseFile(path)
	if err != nil {
		return nil, err
	}
	return register(reg, stubs), nil
}

// LoadDir registers the stubs of every fixture file in dir, in file name
// order. Files are parsed concurrently and nothing is registered if any
// fails.
func (l *Loader) LoadDir(reg *stub.Registry, dir string) ([]stub.ID, error) {
	paths, err := listDir(dir, Extensions...)
	if err != nil {
		return nil, err
	}

	parsed := make([][]pending, len(paths))
	var g errgroup.Group
	g.SetLimit(8)
	for i, path := range paths {
		g.Go(func() error {
			stubs, err := l.parseFile(path)
			if err != nil {
				return err
			}
			parsed[i] = stubs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var ids []stub.ID
	for _, stubs := range parsed {
		ids = append(ids, register(reg, stubs)...)
	}
	l.logger.Debug("fixture directory loaded", "dir", dir, "files", len(paths), "stubs", len(ids))
	return ids, nil
}

// Load registers a single fixture file or every fixture in a directory.
func (l *Loader) Load(reg *stub.Registry, path string) ([]stub.ID, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, errx.With(ErrPathNotExist, ": %s", path)
	}
	if fi.IsDir() {
		return l.LoadDir(reg, path)
	}
	return l.LoadFile(reg, path)
}

func register(reg *stub.Registry, stubs []pending) []stub.ID {
	ids := make([]stub.ID, 0, len(stubs))
	for _, p := range stubs {
		ids = append(ids, reg.AddNamed(p.name, p.predicate, p.responder))
	}
	return ids
}

func (l *Loader) parseFile(path string) ([]pending, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case MocktailExt:
		m, err := ReadMocktail(path)
		if err != nil {
			return nil, err
		}
		return []pending{{name: m.Name, predicate: m.Predicate(), responder: m.Responder()}}, nil
	case ".yaml", ".yml", ".json":
		return l.parseStubFile(path)
	default:
		return nil, errx.With(ErrUnknownFormat, ": %s", path)
	}
}

func (l *Loader) parseStubFile(path string) ([]pending, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errx.With(ErrReadStubFile, ": %s: %w", path, err)
	}
	file, err := decodeStubFile(path, data)
	if err != nil {
		return nil, err
	}

	baseDir := filepath.Dir(path)
	stubs := make([]pending, 0, len(file.Stubs))
	for i, cfg := range file.Stubs {
		p, err := l.build(cfg, baseDir)
		if err != nil {
			return nil, errx.With(ErrBuildStub, ": %s: stub %d (%q): %w", path, i, cfg.Name, err)
		}
		stubs = append(stubs, p)
	}
	l.logger.Debug("stub file parsed", "path", path, "stubs", len(stubs))
	return stubs, nil
}

func decodeStubFile(path string, data []byte) (*api.StubFile, error) {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		f, err := api.ParseStubFile(data)
		if err != nil {
			return nil, errx.With(ErrDecodeStubFile, ": %s: %w", path, err)
		}
		return f, nil
	}

	var f api.StubFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errx.With(ErrDecodeStubFile, ": %s: %w", path, errx.Wrap(api.ErrInvalidConfig, err))
	}
	if err := f.Validate(); err != nil {
		return nil, errx.With(ErrDecodeStubFile, ": %s: %w", path, err)
	}
	return &f, nil
}

// build turns a validated stub config into a predicate and a responder.
func (l *Loader) build(cfg api.StubConfig, baseDir string) (pending, error) {
	pred, err := buildPredicate(cfg.Match, baseDir)
	if err != nil {
		return pending{}, err
	}
	resp, err := l.buildResponder(cfg.Response, baseDir)
	if err != nil {
		return pending{}, err
	}
	return pending{name: cfg.Name, predicate: pred, responder: resp}, nil
}

func buildPredicate(m api.MatchConfig, baseDir string) (stub.Predicate, error) {
	var preds []stub.Predicate
	if len(m.Methods) > 0 {
		preds = append(preds, match.Methods(m.Methods...))
	}
	if m.Scheme != "" {
		preds = append(preds, match.Scheme(m.Scheme))
	}
	if len(m.Hosts) > 0 {
		hosts := make([]stub.Predicate, len(m.Hosts))
		for i, h := range m.Hosts {
			hosts[i] = match.HostGlob(h)
		}
		preds = append(preds, match.Or(hosts...))
	}
	if m.Path != "" {
		preds = append(preds, match.PathGlob(m.Path))
	}
	if m.PathPrefix != "" {
		preds = append(preds, match.PathPrefix(m.PathPrefix))
	}
	if m.PathRegex != "" {
		preds = append(preds, match.PathMatches(m.PathRegex))
	}
	for k, v := range m.Query {
		preds = append(preds, match.QueryParam(k, v))
	}
	for k, v := range m.Headers {
		preds = append(preds, match.HeaderEquals(k, v))
	}
	for path, want := range m.JSONPath {
		preds = append(preds, match.JSONPathString(path, want))
	}
	if m.Schema != "" {
		p, err := match.SchemaFile(resolve(baseDir, m.Schema))
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}

	if len(preds) == 0 {
		return match.Any(), nil
	}
	return match.And(preds...), nil
}

func (l *Loader) buildResponder(rc api.ResponseConfig, baseDir string) (stub.Responder, error) {
	timing := func(r *response.Response) (*response.Response, error) {
		r, err := r.Encoded(rc.Encoding)
		if err != nil {
			return nil, err
		}
		return r.WithTiming(rc.RequestTime, rc.ResponseTime), nil
	}

	if rc.Error != "" {
		simulated := errors.New(rc.Error)
		return func(*http.Request) (*response.Response, error) {
			return response.FromError(simulated).WithTiming(rc.RequestTime, 0), nil
		}, nil
	}

	status := rc.GetStatus()
	switch {
	case rc.HTTPMessage != "":
		path := resolve(baseDir, rc.HTTPMessage)
		if _, err := l.readFile(path); err != nil {
			return nil, err
		}
		return func(*http.Request) (*response.Response, error) {
			data, err := l.readFile(path)
			if err != nil {
				return nil, err
			}
			r, err := response.FromHTTPMessage(data)
			if err != nil {
				return nil, err
			}
			return timing(r)
		}, nil
	case rc.File != "":
		path := resolve(baseDir, rc.File)
		if _, err := l.readFile(path); err != nil {
			return nil, err
		}
		return func(*http.Request) (*response.Response, error) {
			data, err := l.readFile(path)
			if err != nil {
				return nil, err
			}
			return timing(response.New(data, status, rc.Headers))
		}, nil
	case rc.JSON != nil:
		// Fail at load time on values that cannot be marshalled.
		if _, err := response.JSON(rc.JSON, status, rc.Headers); err != nil {
			return nil, err
		}
		return func(*http.Request) (*response.Response, error) {
			r, err := response.JSON(rc.JSON, status, rc.Headers)
			if err != nil {
				return nil, err
			}
			return timing(r)
		}, nil
	default:
		body := []byte(rc.Body)
		return func(*http.Request) (*response.Response, error) {
			return timing(response.New(body, status, rc.Headers))
		}, nil
	}
}

// readFile returns the contents of path through the loader's cache.
func (l *Loader) readFile(path string) ([]byte, error) {
	if data, ok := l.files.Get(path); ok {
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errx.Wrap(response.ErrOpenBody, err)
	}
	l.files.Add(path, data)
	return data, nil
}

func resolve(baseDir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}
