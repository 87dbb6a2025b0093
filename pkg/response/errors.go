package response

import "errors"

var (
	ErrOpenBody            = errors.New("open response body")
	ErrBodyConsumed        = errors.New("response body stream already consumed")
	ErrMarshalBody         = errors.New("marshal response body")
	ErrInvalidHTTPMessage  = errors.New("invalid HTTP message")
	ErrReadHTTPMessage     = errors.New("read HTTP message file")
	ErrUnsupportedEncoding = errors.New("unsupported content encoding")
	ErrEncodeBody          = errors.New("encode response body")
)
