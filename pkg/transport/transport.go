// Package transport performs outbound HTTP calls for carrier integrations.
//
// A Doer returns every HTTP status as a Response. Only failures to obtain a
// response at all (network errors, local timeout expiry) are returned as
// errors, always as *Error so callers can tell timeouts apart.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/http"
	"strings"
	"time"
)

// Request is a single outbound call.
type Request struct {
	Method  string
	URL     string
	Header  http.Header
	Body    []byte
	Timeout time.Duration // Zero uses the transport default.
}

// Response is the result of a call that reached the server.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// IsJSON reports whether the response declares a JSON content type.
func (r *Response) IsJSON() bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

// Text returns the body as raw text.
func (r *Response) Text() string {
	return string(r.Body)
}

// DecodeJSON unmarshals the body into v.
func (r *Response) DecodeJSON(v any) error {
	if len(r.Body) == 0 {
		return errors.New("empty response body")
	}
	return json.Unmarshal(r.Body, v)
}

// Doer performs requests.
type Doer interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

// Error is a failure to obtain a response.
type Error struct {
	Method  string
	URL     string
	Timeout bool
	Err     error
}

func (e *Error) Error() string {
	if e.Timeout {
		return fmt.Sprintf("%s %s: timed out: %v", e.Method, e.URL, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsTimeout reports whether err is a transport timeout.
func IsTimeout(err error) bool {
	var tErr *Error
	return errors.As(err, &tErr) && tErr.Timeout
}

func isTimeoutCause(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
