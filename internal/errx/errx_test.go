package errx

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

var errSentinel = errors.New("sentinel")

func TestWrap(t *testing.T) {
	err := Wrap(errSentinel, io.EOF)
	assert.ErrorIs(t, err, errSentinel)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, "sentinel: EOF", err.Error())
}

func TestWrap_NilCause(t *testing.T) {
	assert.Same(t, errSentinel, Wrap(errSentinel, nil))
}

func TestWith(t *testing.T) {
	err := With(errSentinel, ": %s", "detail")
	assert.ErrorIs(t, err, errSentinel)
	assert.Equal(t, "sentinel: detail", err.Error())

	err = With(errSentinel, " %q: %w", "x", io.ErrUnexpectedEOF)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Equal(t, `sentinel "x": unexpected EOF`, err.Error())
}
