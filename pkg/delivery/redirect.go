package delivery

import "net/http"

// redirectRequest builds the follow-up request a client would issue for a
// redirect response, or nil when the response is not a followable
// redirect. Method and body rewriting follow net/http's client rules.
func redirectRequest(req *http.Request, status int, header http.Header) *http.Request {
	switch status {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
	default:
		return nil
	}
	loc := header.Get("Location")
	if loc == "" || req == nil || req.URL == nil {
		return nil
	}
	target, err := req.URL.Parse(loc)
	if err != nil {
		return nil
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	keepBody := true
	if status == http.StatusSeeOther ||
		((status == http.StatusMovedPermanently || status == http.StatusFound) &&
			method != http.MethodGet && method != http.MethodHead) {
		method = http.MethodGet
		keepBody = false
	}

	redirect := req.Clone(req.Context())
	redirect.Method = method
	redirect.URL = target
	redirect.Host = ""
	redirect.RequestURI = ""
	redirect.Body = nil
	if keepBody && req.GetBody != nil {
		if body, err := req.GetBody(); err == nil {
			redirect.Body = body
		}
	} else if !keepBody {
		redirect.GetBody = nil
		redirect.ContentLength = 0
		redirect.Header.Del("Content-Type")
		redirect.Header.Del("Content-Length")
	}
	return redirect
}
