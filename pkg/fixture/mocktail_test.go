package fixture

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jingkaihe/httpstubs/pkg/stub"
)

func TestParseMocktail(t *testing.T) {
	m, err := ParseMocktail(strings.NewReader("GET\n^https://api\\.test/users$\r\n200\r\nContent-Type: application/json\nx-trace:  abc \n\n{\n\"a\": 1\n}"))
	require.NoError(t, err)

	assert.Equal(t, 200, m.StatusCode)
	assert.Equal(t, map[string]string{"Content-Type": "application/json", "X-Trace": "abc"}, m.Header)
	assert.Equal(t, "{\n\"a\": 1\n}", string(m.Body))
	assert.True(t, m.Method.MatchString("GET"))
	assert.True(t, m.URL.MatchString("https://api.test/users"))
}

func TestParseMocktail_NoBody(t *testing.T) {
	m, err := ParseMocktail(strings.NewReader("DELETE\n/items/\\d+\n204\n"))
	require.NoError(t, err)
	assert.Equal(t, 204, m.StatusCode)
	assert.Empty(t, m.Header)
	assert.Empty(t, m.Body)
}

func TestParseMocktail_Base64(t *testing.T) {
	m, err := ParseMocktail(strings.NewReader("GET\n\\.png$\n200\nContent-Type: image/png;base64\n\niVBORw0K\nGgo=\n"))
	require.NoError(t, err)
	assert.Equal(t, "image/png", m.Header["Content-Type"])
	assert.Equal(t, []byte("\x89PNG\r\n\x1a\n"), m.Body)
}

func TestParseMocktail_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{"too short", "GET\n/x\n", ErrFormatInvalid},
		{"bad status", "GET\n/x\nOK\n", ErrFormatInvalid},
		{"bad method pattern", "(\n/x\n200\n", ErrFormatInvalid},
		{"bad url pattern", "GET\n[\n200\n", ErrFormatInvalid},
		{"bad header", "GET\n/x\n200\nno colon here\n\nbody", ErrHeaderInvalid},
		{"empty header name", "GET\n/x\n200\n: value\n", ErrHeaderInvalid},
		{"bad base64", "GET\n/x\n200\nContent-Type: text/plain;base64\n\n!!!", ErrFormatInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseMocktail(strings.NewReader(tt.input))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestMocktail_Predicate(t *testing.T) {
	m, err := ParseMocktail(strings.NewReader("POST|PUT\n/login\n201\n"))
	require.NoError(t, err)
	pred := m.Predicate()

	assert.True(t, pred(httptest.NewRequest("POST", "https://auth.test/login", nil)))
	assert.True(t, pred(httptest.NewRequest("PUT", "https://auth.test/v2/login?next=/", nil)))
	assert.False(t, pred(httptest.NewRequest("GET", "https://auth.test/login", nil)))
	assert.False(t, pred(httptest.NewRequest("POST", "https://auth.test/logout", nil)))
}

func TestLoadMocktail(t *testing.T) {
	reg := stub.NewRegistry()
	id, err := LoadMocktail(reg, "testdata/tails/01-users.tail")
	require.NoError(t, err)
	assert.Equal(t, []stub.Info{{ID: id, Name: "01-users.tail"}}, reg.List())

	resp, err := reg.Client().Get("https://api.test/users")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "users", resp.Header.Get("X-Fixture"))
	assert.JSONEq(t, `[{"id":1}]`, string(body))
}

func TestLoadMocktail_Errors(t *testing.T) {
	reg := stub.NewRegistry()

	_, err := LoadMocktail(reg, "testdata/tails/missing.tail")
	assert.ErrorIs(t, err, ErrFileNotExist)

	_, err = LoadMocktail(reg, "testdata/bad/short.tail")
	assert.ErrorIs(t, err, ErrFormatInvalid)
	assert.Contains(t, err.Error(), "short.tail")

	_, err = LoadMocktail(reg, "testdata/bad/header.tail")
	assert.ErrorIs(t, err, ErrHeaderInvalid)

	assert.Empty(t, reg.List())
}

func TestLoadMocktailDir(t *testing.T) {
	reg := stub.NewRegistry()
	ids, err := LoadMocktailDir(reg, "testdata/tails")
	require.NoError(t, err)
	require.Len(t, ids, 3)

	names := make([]string, 0, 3)
	for _, info := range reg.List() {
		names = append(names, info.Name)
	}
	assert.Equal(t, []string{"01-users.tail", "02-login.tail", "03-image.tail"}, names)

	resp, err := reg.Client().Get("https://cdn.test/logo.png")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	assert.Equal(t, []byte("\x89PNG\r\n\x1a\n"), body)
}

func TestLoadMocktailDir_NaturalOrder(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"10-b.tail", "2-a.tail", "1-c.tail", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("GET\n.*\n200\n\n"+name), 0o644))
	}

	reg := stub.NewRegistry()
	_, err := LoadMocktailDir(reg, dir)
	require.NoError(t, err)

	var names []string
	for _, info := range reg.List() {
		names = append(names, info.Name)
	}
	assert.Equal(t, []string{"1-c.tail", "2-a.tail", "10-b.tail"}, names)
}

func TestLoadMocktailDir_Errors(t *testing.T) {
	reg := stub.NewRegistry()

	_, err := LoadMocktailDir(reg, "testdata/nope")
	assert.ErrorIs(t, err, ErrPathNotExist)

	_, err = LoadMocktailDir(reg, "testdata/tails/01-users.tail")
	assert.ErrorIs(t, err, ErrPathNotDir)

	_, err = LoadMocktailDir(reg, "testdata/bad")
	assert.Error(t, err)
	assert.Empty(t, reg.List(), "a bad file registers nothing")
}
