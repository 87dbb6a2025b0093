package response

import (
	"bufio"
	"bytes"
	"net/http"
	"net/textproto"
	"os"
	"strconv"
	"strings"

	"github.com/jingkaihe/httpstubs/internal/errx"
)

// FromHTTPMessage builds a response from a raw HTTP response dump such as
// the output of `curl -is URL`: a status line, header lines, a blank line,
// then the body. The body is kept verbatim, so a Transfer-Encoding header
// from the dump is dropped and Content-Length is recomputed.
func FromHTTPMessage(data []byte) (*Response, error) {
	head, body := splitHTTPMessage(data)

	tp := textproto.NewReader(bufio.NewReader(bytes.NewReader(head)))
	statusLine, err := tp.ReadLine()
	if err != nil {
		return nil, errx.Wrap(ErrInvalidHTTPMessage, err)
	}
	status, err := parseStatusLine(statusLine)
	if err != nil {
		return nil, err
	}

	mime, err := tp.ReadMIMEHeader()
	if err != nil {
		return nil, errx.Wrap(ErrInvalidHTTPMessage, err)
	}

	r := New(body, status, nil)
	r.header = http.Header(mime)
	if r.header == nil {
		r.header = make(http.Header)
	}
	r.header.Del("Transfer-Encoding")
	if r.header.Get("Content-Length") != "" {
		r.header.Set("Content-Length", strconv.Itoa(len(body)))
	}
	return r, nil
}

// FromHTTPMessageFile reads a `.response` dump from disk.
func FromHTTPMessageFile(path string) (*Response, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errx.Wrap(ErrReadHTTPMessage, err)
	}
	return FromHTTPMessage(data)
}

// splitHTTPMessage returns the head (status line and headers, including
// the terminating blank line) and the body. Both CRLF and bare LF dumps are
// accepted.
func splitHTTPMessage(data []byte) ([]byte, []byte) {
	crlf := bytes.Index(data, []byte("\r\n\r\n"))
	lf := bytes.Index(data, []byte("\n\n"))
	switch {
	case crlf >= 0 && (lf < 0 || crlf < lf):
		return data[:crlf+4], data[crlf+4:]
	case lf >= 0:
		return data[:lf+2], data[lf+2:]
	default:
		head := append([]byte(nil), bytes.TrimRight(data, "\r\n")...)
		head = append(head, "\r\n\r\n"...)
		return head, nil
	}
}

// parseStatusLine accepts "HTTP/1.1 200 OK" and "HTTP/2 200".
func parseStatusLine(line string) (int, error) {
	fields := strings.Fields(line)
	if len(fields) < 2 || !strings.HasPrefix(fields[0], "HTTP/") {
		return 0, errx.With(ErrInvalidHTTPMessage, ": malformed status line %q", line)
	}
	status, err := strconv.Atoi(fields[1])
	if err != nil || len(fields[1]) != 3 {
		return 0, errx.With(ErrInvalidHTTPMessage, ": malformed status code %q", fields[1])
	}
	return status, nil
}
