package match

import "errors"

var (
	ErrSchema = errors.New("json schema")
)
