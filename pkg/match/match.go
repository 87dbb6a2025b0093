// Package match provides request predicates for stubs.
//
// Every function returns a stub.Predicate and can be combined with And,
// Or and Not.
package match

import (
	"net/http"
	"path"
	"regexp"
	"strings"

	"github.com/jingkaihe/httpstubs/pkg/stub"
)

// Any matches every request.
func Any() stub.Predicate {
	return func(*http.Request) bool { return true }
}

// Method matches the request method, case-insensitively.
func Method(method string) stub.Predicate {
	return func(r *http.Request) bool {
		return strings.EqualFold(requestMethod(r), method)
	}
}

func IsGET() stub.Predicate    { return Method(http.MethodGet) }
func IsPOST() stub.Predicate   { return Method(http.MethodPost) }
func IsPUT() stub.Predicate    { return Method(http.MethodPut) }
func IsPATCH() stub.Predicate  { return Method(http.MethodPatch) }
func IsDELETE() stub.Predicate { return Method(http.MethodDelete) }
func IsHEAD() stub.Predicate   { return Method(http.MethodHead) }

// Methods matches any of the given methods. An empty list matches all.
func Methods(methods ...string) stub.Predicate {
	if len(methods) == 0 {
		return Any()
	}
	set := make(map[string]bool, len(methods))
	for _, m := range methods {
		set[strings.ToUpper(m)] = true
	}
	return func(r *http.Request) bool {
		return set[strings.ToUpper(requestMethod(r))]
	}
}

// AbsoluteURL matches the full request URL as a string.
func AbsoluteURL(url string) stub.Predicate {
	return func(r *http.Request) bool {
		return r.URL != nil && r.URL.String() == url
	}
}

// URLMatches matches the full request URL against a regular expression.
// An invalid expression never matches.
func URLMatches(expr string) stub.Predicate {
	re, err := regexp.Compile(expr)
	if err != nil {
		return never
	}
	return func(r *http.Request) bool {
		return r.URL != nil && re.MatchString(r.URL.String())
	}
}

// Scheme matches the URL scheme, case-insensitively. The scheme must not
// contain "://".
func Scheme(scheme string) stub.Predicate {
	return func(r *http.Request) bool {
		return r.URL != nil && strings.EqualFold(r.URL.Scheme, scheme)
	}
}

// Host matches the URL host name without port, case-insensitively.
func Host(host string) stub.Predicate {
	return func(r *http.Request) bool {
		return strings.EqualFold(requestHost(r), host)
	}
}

// HostGlob matches the host name against a pattern with * wildcards,
// such as "*.example.com".
func HostGlob(pattern string) stub.Predicate {
	pattern = strings.ToLower(pattern)
	return func(r *http.Request) bool {
		return matchGlob(pattern, strings.ToLower(requestHost(r)))
	}
}

// Path matches the URL path exactly.
func Path(p string) stub.Predicate {
	return func(r *http.Request) bool {
		return r.URL != nil && r.URL.Path == p
	}
}

// PathGlob matches the URL path with path.Match syntax.
func PathGlob(pattern string) stub.Predicate {
	return func(r *http.Request) bool {
		if r.URL == nil {
			return false
		}
		ok, err := path.Match(pattern, r.URL.Path)
		return err == nil && ok
	}
}

func PathPrefix(prefix string) stub.Predicate {
	return func(r *http.Request) bool {
		return r.URL != nil && strings.HasPrefix(r.URL.Path, prefix)
	}
}

func PathSuffix(suffix string) stub.Predicate {
	return func(r *http.Request) bool {
		return r.URL != nil && strings.HasSuffix(r.URL.Path, suffix)
	}
}

// PathRegexp matches the URL path against re.
func PathRegexp(re *regexp.Regexp) stub.Predicate {
	if re == nil {
		return never
	}
	return func(r *http.Request) bool {
		return r.URL != nil && re.MatchString(r.URL.Path)
	}
}

// PathMatches compiles expr and matches the URL path against it. An
// invalid expression never matches.
func PathMatches(expr string) stub.Predicate {
	re, err := regexp.Compile(expr)
	if err != nil {
		return never
	}
	return PathRegexp(re)
}

// Extension matches the extension of the last path element, without the
// dot, case-insensitively.
func Extension(ext string) stub.Predicate {
	ext = strings.TrimPrefix(ext, ".")
	return func(r *http.Request) bool {
		if r.URL == nil {
			return false
		}
		got := strings.TrimPrefix(path.Ext(r.URL.Path), ".")
		return strings.EqualFold(got, ext)
	}
}

// QueryParams matches when every key is present in the query. A nil value
// requires the key without a value ("?flag"); a non-nil value must equal
// one of the key's values.
func QueryParams(params map[string]*string) stub.Predicate {
	return func(r *http.Request) bool {
		if r.URL == nil {
			return false
		}
		query := r.URL.Query()
		for key, want := range params {
			values, ok := query[key]
			if !ok {
				return false
			}
			if want == nil {
				if !hasEmpty(values) {
					return false
				}
				continue
			}
			if !contains(values, *want) {
				return false
			}
		}
		return true
	}
}

// QueryParam matches a single query parameter value.
func QueryParam(key, value string) stub.Predicate {
	return QueryParams(map[string]*string{key: &value})
}

// HasHeader matches when the request carries the named header.
func HasHeader(name string) stub.Predicate {
	return func(r *http.Request) bool {
		return len(r.Header.Values(name)) > 0
	}
}

// HeaderEquals matches when any value of the named header equals value.
func HeaderEquals(name, value string) stub.Predicate {
	return func(r *http.Request) bool {
		return contains(r.Header.Values(name), value)
	}
}

// And matches when every predicate matches. It stops at the first miss.
func And(preds ...stub.Predicate) stub.Predicate {
	return func(r *http.Request) bool {
		for _, p := range preds {
			if p == nil || !p(r) {
				return false
			}
		}
		return true
	}
}

// Or matches when any predicate matches. It stops at the first hit.
func Or(preds ...stub.Predicate) stub.Predicate {
	return func(r *http.Request) bool {
		for _, p := range preds {
			if p != nil && p(r) {
				return true
			}
		}
		return false
	}
}

func Not(p stub.Predicate) stub.Predicate {
	return func(r *http.Request) bool {
		return p == nil || !p(r)
	}
}

func never(*http.Request) bool { return false }

func requestMethod(r *http.Request) string {
	if r.Method == "" {
		return http.MethodGet
	}
	return r.Method
}

func requestHost(r *http.Request) string {
	if r.URL != nil && r.URL.Host != "" {
		return r.URL.Hostname()
	}
	host := r.Host
	if i := strings.LastIndex(host, ":"); i >= 0 && !strings.Contains(host[i:], "]") {
		host = host[:i]
	}
	return strings.Trim(host, "[]")
}

func contains(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}

func hasEmpty(values []string) bool {
	return contains(values, "")
}
