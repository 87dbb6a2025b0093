package response

import (
	"encoding/json"

	"github.com/fxamacker/cbor/v2"

	"github.com/jingkaihe/httpstubs/internal/errx"
)

// JSON serialises v as the response body. Content-Type defaults to
// application/json when header does not set it.
func JSON(v any, status int, header map[string]string) (*Response, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, errx.Wrap(ErrMarshalBody, err)
	}
	return withDefaultContentType(New(data, status, header), "application/json"), nil
}

// CBOR serialises v as a CBOR body. Content-Type defaults to
// application/cbor.
func CBOR(v any, status int, header map[string]string) (*Response, error) {
	data, err := cbor.Marshal(v)
	if err != nil {
		return nil, errx.Wrap(ErrMarshalBody, err)
	}
	return withDefaultContentType(New(data, status, header), "application/cbor"), nil
}

func withDefaultContentType(r *Response, contentType string) *Response {
	if r.header.Get("Content-Type") == "" {
		r.header.Set("Content-Type", contentType)
	}
	return r
}
