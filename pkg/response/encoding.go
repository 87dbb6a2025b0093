package response

import (
	"bytes"
	"compress/gzip"
	"io"
	"strconv"
	"strings"

	"github.com/andybalholm/brotli"

	"github.com/jingkaihe/httpstubs/internal/errx"
)

// Encoded compresses an in-memory body with the given content coding
// ("gzip" or "br") and sets Content-Encoding. "identity" and "" are no-ops.
// Only responses built from bytes can be encoded.
func (r *Response) Encoded(encoding string) (*Response, error) {
	encoding = strings.ToLower(strings.TrimSpace(encoding))
	if encoding == "" || encoding == "identity" {
		return r, nil
	}
	if r.kind != bodyBytes {
		return nil, errx.With(ErrUnsupportedEncoding, ": %s requires an in-memory body", encoding)
	}

	var buf bytes.Buffer
	var w io.WriteCloser
	switch encoding {
	case "gzip":
		w = gzip.NewWriter(&buf)
	case "br":
		w = brotli.NewWriter(&buf)
	default:
		return nil, errx.With(ErrUnsupportedEncoding, ": %q", encoding)
	}
	if _, err := w.Write(r.data); err != nil {
		return nil, errx.Wrap(ErrEncodeBody, err)
	}
	if err := w.Close(); err != nil {
		return nil, errx.Wrap(ErrEncodeBody, err)
	}

	r.data = buf.Bytes()
	r.dataSize = int64(len(r.data))
	r.header.Set("Content-Encoding", encoding)
	if r.header.Get("Content-Length") != "" {
		r.header.Set("Content-Length", strconv.Itoa(len(r.data)))
	}
	return r, nil
}
