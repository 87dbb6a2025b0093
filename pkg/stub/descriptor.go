package stub

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/jingkaihe/httpstubs/pkg/response"
)

// ID identifies a registered stub. It is a lookup key only; the registry
// owns the stub itself.
type ID string

func newID() ID {
	return ID(uuid.NewString())
}

// Short returns the first eight characters of the ID, for display.
func (id ID) Short() string {
	if len(id) <= 8 {
		return string(id)
	}
	return string(id[:8])
}

// Predicate reports whether a stub handles req. Predicates may run more
// than once per request and concurrently with each other.
type Predicate func(req *http.Request) bool

// Responder builds the response for a request its stub matched.
type Responder func(req *http.Request) (*response.Response, error)

// Info is a read-only snapshot of a registered stub.
type Info struct {
	ID   ID
	Name string
}

type descriptor struct {
	id        ID
	name      string
	predicate Predicate
	responder Responder
}

func (d descriptor) info() Info {
	return Info{ID: d.id, Name: d.name}
}
