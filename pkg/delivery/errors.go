package delivery

import "errors"

var (
	ErrReadBody = errors.New("read stubbed response body")
)
