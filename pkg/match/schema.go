package match

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/jingkaihe/httpstubs/internal/errx"
	"github.com/jingkaihe/httpstubs/pkg/stub"
)

// BodyMatchesSchema matches when the request body is JSON valid against
// schema.
func BodyMatchesSchema(schema *jsonschema.Schema) stub.Predicate {
	if schema == nil {
		return never
	}
	return func(r *http.Request) bool {
		raw, err := readBody(r)
		if err != nil {
			return false
		}
		var payload any
		if err := json.Unmarshal(raw, &payload); err != nil {
			return false
		}
		return schema.Validate(payload) == nil
	}
}

// SchemaFile compiles the JSON schema at path and returns a predicate
// validating request bodies against it.
func SchemaFile(path string) (stub.Predicate, error) {
	schema, err := CompileSchema(path)
	if err != nil {
		return nil, err
	}
	return BodyMatchesSchema(schema), nil
}

// CompileSchema compiles the JSON schema file at path.
func CompileSchema(path string) (*jsonschema.Schema, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errx.Wrap(ErrSchema, err)
	}
	f, err := os.Open(abs)
	if err != nil {
		return nil, errx.Wrap(ErrSchema, err)
	}
	defer f.Close()

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(abs, f); err != nil {
		return nil, errx.Wrap(ErrSchema, err)
	}
	schema, err := compiler.Compile(abs)
	if err != nil {
		return nil, errx.Wrap(ErrSchema, err)
	}
	return schema, nil
}
