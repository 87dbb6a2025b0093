package match

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"reflect"

	"github.com/tidwall/gjson"
	"github.com/wI2L/jsondiff"

	"github.com/jingkaihe/httpstubs/pkg/stub"
)

// HasBody matches when the request body equals body byte for byte.
func HasBody(body []byte) stub.Predicate {
	return func(r *http.Request) bool {
		got, err := readBody(r)
		return err == nil && bytes.Equal(got, body)
	}
}

// HasJSONBody matches when the request body is JSON equal to v once
// marshalled. Key order and whitespace are ignored.
func HasJSONBody(v any) stub.Predicate {
	want, err := json.Marshal(v)
	if err != nil {
		return never
	}
	return func(r *http.Request) bool {
		got, err := readBody(r)
		if err != nil || !json.Valid(got) {
			return false
		}
		patch, err := jsondiff.CompareJSON(want, got)
		return err == nil && len(patch) == 0
	}
}

// JSONPathExists matches when the gjson path resolves in the JSON body.
func JSONPathExists(path string) stub.Predicate {
	return func(r *http.Request) bool {
		got, err := readBody(r)
		return err == nil && gjson.GetBytes(got, path).Exists()
	}
}

// JSONPathEquals matches when the gjson path resolves to a value equal to
// value, compared as JSON.
func JSONPathEquals(path string, value any) stub.Predicate {
	want, ok := normalizeJSON(value)
	if !ok {
		return never
	}
	return func(r *http.Request) bool {
		got, err := readBody(r)
		if err != nil {
			return false
		}
		res := gjson.GetBytes(got, path)
		if !res.Exists() {
			return false
		}
		return reflect.DeepEqual(res.Value(), want)
	}
}

func normalizeJSON(v any) (any, bool) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, false
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, false
	}
	return out, true
}

// readBody returns the request body and leaves it readable for the next
// predicate and for the responder.
func readBody(r *http.Request) ([]byte, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, nil
	}
	if r.GetBody != nil {
		rc, err := r.GetBody()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}

	data, err := io.ReadAll(r.Body)
	r.Body.Close()
	if err != nil {
		return nil, err
	}
	r.Body = io.NopCloser(bytes.NewReader(data))
	r.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}
	return data, nil
}

// JSONPathString matches when the gjson path resolves to a value whose
// string form is want. Numbers and booleans compare by their JSON text.
func JSONPathString(path, want string) stub.Predicate {
	return func(r *http.Request) bool {
		got, err := readBody(r)
		if err != nil {
			return false
		}
		res := gjson.GetBytes(got, path)
		return res.Exists() && res.String() == want
	}
}
