// Package fixture registers stubs described by files: Mocktail ".tail"
// files and YAML or JSON stub files.
package fixture

import (
	"bufio"
	"encoding/base64"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"facette.io/natsort"
	"golang.org/x/sync/errgroup"

	"github.com/jingkaihe/httpstubs/internal/errx"
	"github.com/jingkaihe/httpstubs/pkg/response"
	"github.com/jingkaihe/httpstubs/pkg/stub"
)

// MocktailExt is the extension of Mocktail files.
const MocktailExt = ".tail"

const base64Suffix = ";base64"

// Mocktail is a parsed Mocktail file:
//
//	GET                          method regexp
//	^https://api\.test/users$    URL regexp
//	200                          status code
//	Content-Type: application/json
//
//	{"users": []}
//
// Header lines run until the first blank line; the rest is the body. A
// Content-Type ending in ";base64" marks a base64 body, which is decoded
// and the suffix dropped.
type Mocktail struct {
	Name       string
	Method     *regexp.Regexp
	URL        *regexp.Regexp
	StatusCode int
	Header     map[string]string
	Body       []byte
}

// ParseMocktail reads a Mocktail definition.
func ParseMocktail(r io.Reader) (*Mocktail, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 64*1024*1024)
	for sc.Scan() {
		lines = append(lines, strings.TrimSuffix(sc.Text(), "\r"))
	}
	if err := sc.Err(); err != nil {
		return nil, errx.Wrap(ErrFileUnreadable, err)
	}
	if len(lines) < 3 {
		return nil, errx.With(ErrFormatInvalid, ": expected method, URL and status lines, got %d lines", len(lines))
	}

	method, err := regexp.Compile(strings.TrimSpace(lines[0]))
	if err != nil {
		return nil, errx.With(ErrFormatInvalid, ": method pattern: %w", err)
	}
	url, err := regexp.Compile(strings.TrimSpace(lines[1]))
	if err != nil {
		return nil, errx.With(ErrFormatInvalid, ": URL pattern: %w", err)
	}
	status, err := strconv.Atoi(strings.TrimSpace(lines[2]))
	if err != nil {
		return nil, errx.With(ErrFormatInvalid, ": status code %q", lines[2])
	}

	m := &Mocktail{
		Method:     method,
		URL:        url,
		StatusCode: status,
		Header:     map[string]string{},
	}

	i := 3
	for ; i < len(lines); i++ {
		line := lines[i]
		if strings.TrimSpace(line) == "" {
			i++
			break
		}
		name, value, ok := strings.Cut(line, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, errx.With(ErrHeaderInvalid, ": line %d: %q", i+1, line)
		}
		m.Header[http.CanonicalHeaderKey(name)] = strings.TrimSpace(value)
	}
	if i < len(lines) {
		m.Body = []byte(strings.Join(lines[i:], "\n"))
	}

	if ct, ok := m.Header["Content-Type"]; ok && strings.HasSuffix(ct, base64Suffix) {
		decoded, err := base64.StdEncoding.DecodeString(strings.Join(strings.Fields(string(m.Body)), ""))
		if err != nil {
			return nil, errx.With(ErrFormatInvalid, ": base64 body: %w", err)
		}
		m.Body = decoded
		m.Header["Content-Type"] = strings.TrimSuffix(ct, base64Suffix)
	}
	return m, nil
}

// Predicate matches requests whose method and absolute URL match the
// Mocktail patterns.
func (m *Mocktail) Predicate() stub.Predicate {
	return func(r *http.Request) bool {
		method := r.Method
		if method == "" {
			method = http.MethodGet
		}
		return r.URL != nil && m.Method.MatchString(method) && m.URL.MatchString(r.URL.String())
	}
}

// Responder answers with the Mocktail status, headers and body.
func (m *Mocktail) Responder() stub.Responder {
	return func(*http.Request) (*response.Response, error) {
		return response.New(m.Body, m.StatusCode, m.Header), nil
	}
}

// Register adds the Mocktail to reg.
func (m *Mocktail) Register(reg *stub.Registry) stub.ID {
	return reg.AddNamed(m.Name, m.Predicate(), m.Responder())
}

// ReadMocktail parses the Mocktail file at path and names it after the
// file.
func ReadMocktail(path string) (*Mocktail, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errx.With(ErrFileNotExist, ": %s", path)
		}
		return nil, errx.With(ErrFileUnreadable, ": %s: %w", path, err)
	}
	defer f.Close()

	m, err := ParseMocktail(f)
	if err != nil {
		return nil, errx.With(err, " (%s)", path)
	}
	m.Name = filepath.Base(path)
	return m, nil
}

// LoadMocktail registers the Mocktail file at path.
func LoadMocktail(reg *stub.Registry, path string) (stub.ID, error) {
	m, err := ReadMocktail(path)
	if err != nil {
		return "", err
	}
	return m.Register(reg), nil
}

// LoadMocktailDir registers every ".tail" file in dir, in file name order.
// Files are parsed concurrently; nothing is registered if any fails.
func LoadMocktailDir(reg *stub.Registry, dir string) ([]stub.ID, error) {
	paths, err := listDir(dir, MocktailExt)
	if err != nil {
		return nil, err
	}

	tails := make([]*Mocktail, len(paths))
	var g errgroup.Group
	for i, path := range paths {
		g.Go(func() error {
			m, err := ReadMocktail(path)
			if err != nil {
				return err
			}
			tails[i] = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	ids := make([]stub.ID, 0, len(tails))
	for _, m := range tails {
		ids = append(ids, m.Register(reg))
	}
	return ids, nil
}

// listDir returns the paths of regular files in dir with one of the given
// extensions, in natural order (2-a before 10-b).
func listDir(dir string, exts ...string) ([]string, error) {
	fi, err := os.Stat(dir)
	if err != nil {
		return nil, errx.With(ErrPathNotExist, ": %s", dir)
	}
	if !fi.IsDir() {
		return nil, errx.With(ErrPathNotDir, ": %s", dir)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errx.With(ErrPathUnreadable, ": %s: %w", dir, err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if slices.Contains(exts, strings.ToLower(filepath.Ext(e.Name()))) {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	natsort.Sort(paths)
	return paths, nil
}
