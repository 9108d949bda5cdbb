// © 2024 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package request provides a simplified way to make HTTP requests to package
// index APIs.
package request

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.astrophena.name/pyship/version"
)

// Params defines the parameters needed for making an HTTP request.
type Params struct {
	// Method is the HTTP method (GET, POST, etc.) for the request.
	Method string
	// URL is the target URL of the request.
	URL string
	// Headers is a map of key-value pairs for additional request headers.
	Headers map[string]string
	// Body is any data to be sent in the request body. A [RawBody] is sent
	// as is, url.Values is sent as a query string with Content-Type header
	// set to "application/x-www-form-urlencoded", and anything else is
	// marshaled to JSON.
	Body any
	// Username and Password, if Username is not empty, are sent using HTTP
	// basic authentication.
	Username, Password string
	// HTTPClient is an optional custom http.Client to use for the request.
	// If not provided, DefaultClient will be used.
	HTTPClient *http.Client
	// Scrubber is an optional strings.Replacer that scrubs unwanted data from
	// error messages.
	Scrubber *strings.Replacer
}

// RawBody is a request body with an explicit content type.
type RawBody struct {
	ContentType string
	Data        []byte
}

// DefaultClient is the default [http.Client] used by [Make].
//
// Distribution files can be large, so it is more patient than usual.
var DefaultClient = &http.Client{
	Timeout: 5 * time.Minute,
}

// IgnoreResponse is a type to use with [Make] to skip JSON unmarshaling of the response body.
type IgnoreResponse struct{}

// Bytes is a type to use with [Make] to return the raw response body.
type Bytes []byte

// StatusError represents an error where an HTTP request returned
// an unexpected status code.
type StatusError struct {
	// WantedStatusCode is the HTTP status code that was expected by the caller
	// (e.g., http.StatusOK).
	WantedStatusCode int
	// StatusCode is the actual HTTP status code received in the response.
	StatusCode int
	// Status is the status line text, which package indexes use for error
	// messages.
	Status string
	// Headers are the HTTP headers from the response.
	Headers http.Header
	// Body is the raw body of the HTTP response.
	Body []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("want %d, got %s: %s", e.WantedStatusCode, e.Status, bytes.TrimSpace(e.Body))
}

// Make sends an HTTP request and tries to parse the response.
//
// The Response type parameter determines how the response body is handled:
//
//   - If Response is [IgnoreResponse], the response body is ignored and no parsing is attempted.
//   - If Response is [Bytes], the raw response body is returned without any parsing.
//   - Otherwise, the response body is expected to be JSON and is unmarshaled into a variable of type Response.
//
// For non-200 status codes, it returns a wrapped [*StatusError].
func Make[Response any](ctx context.Context, p Params) (Response, error) {
	var resp Response

	var (
		data        []byte
		contentType string
	)
	if p.Body != nil {
		switch v := p.Body.(type) {
		case RawBody:
			data, contentType = v.Data, v.ContentType
		case url.Values:
			data = []byte(v.Encode())
			contentType = "application/x-www-form-urlencoded"
		default:
			var err error
			data, err = json.Marshal(v)
			if err != nil {
				return resp, scrubErr(err, p.Scrubber)
			}
			contentType = "application/json"
		}
	}

	var br io.Reader
	if data != nil {
		br = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, p.Method, p.URL, br)
	if err != nil {
		return resp, scrubErr(err, p.Scrubber)
	}

	req.Header.Set("User-Agent", userAgent())
	for k, v := range p.Headers {
		req.Header.Set(k, v)
	}
	if data != nil && contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if p.Username != "" {
		req.SetBasicAuth(p.Username, p.Password)
	}

	httpc := DefaultClient
	if p.HTTPClient != nil {
		httpc = p.HTTPClient
	}

	res, err := httpc.Do(req)
	if err != nil {
		return resp, scrubErr(err, p.Scrubber)
	}
	defer res.Body.Close()

	b, err := io.ReadAll(res.Body)
	if err != nil {
		return resp, scrubErr(err, p.Scrubber)
	}

	if res.StatusCode != http.StatusOK {
		return resp, scrubErr(fmt.Errorf("%s %q: %w", p.Method, p.URL, &StatusError{
			WantedStatusCode: http.StatusOK,
			StatusCode:       res.StatusCode,
			Status:           res.Status,
			Headers:          res.Header,
			Body:             b,
		}), p.Scrubber)
	}

	switch v := any(&resp).(type) {
	case *IgnoreResponse:
		return resp, nil
	case *Bytes:
		*v = b
		return resp, nil
	default:
		if err := json.Unmarshal(b, &resp); err != nil {
			return resp, scrubErr(err, p.Scrubber)
		}
	}
	return resp, nil
}

func userAgent() string {
	ua := "pyship"
	if c := version.Version().Commit; c != "" {
		ua += "/" + c
	}
	return ua
}

type scrubbedError struct {
	err      error
	scrubber *strings.Replacer
}

func (se *scrubbedError) Error() string {
	if se.scrubber != nil {
		return se.scrubber.Replace(se.err.Error())
	}
	return se.err.Error()
}

func (se *scrubbedError) Unwrap() error { return se.err }

func scrubErr(err error, scrubber *strings.Replacer) error {
	return &scrubbedError{err: err, scrubber: scrubber}
}
