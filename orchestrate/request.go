package orchestrate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Method is an HTTP method
type Method string

const (
	GET    Method = http.MethodGet
	POST   Method = http.MethodPost
	PUT    Method = http.MethodPut
	DELETE Method = http.MethodDelete
)

const (
	contentTypeJSON = "application/json"
	contentTypeForm = "application/x-www-form-urlencoded"
)

// Request is a mutable HTTP request builder threaded through the start, next
// and signOff stages.
//
// Parameters always go to the query string. The body is either form data
// (Form) or JSON (Body); whichever is set last wins.
type Request struct {
	url     string
	method  Method
	headers http.Header
	params  url.Values
	form    url.Values
	body    map[string]any
	cookies []*http.Cookie
}

// NewRequest creates an empty GET request
func NewRequest() *Request {
	return &Request{
		method:  GET,
		headers: make(http.Header),
		params:  make(url.Values),
	}
}

// SetURL sets the request URL. Query parameters already present in u are kept.
func (r *Request) SetURL(u string) *Request {
	r.url = u
	return r
}

// URL returns the URL without the parameters added through Parameter
func (r *Request) URL() string {
	return r.url
}

// SetMethod sets the HTTP method
func (r *Request) SetMethod(m Method) *Request {
	r.method = m
	return r
}

// Method returns the HTTP method
func (r *Request) Method() Method {
	return r.method
}

// Header sets a header, replacing previous values
func (r *Request) Header(name, value string) *Request {
	r.headers.Set(name, value)
	return r
}

// Headers returns the request headers
func (r *Request) Headers() http.Header {
	return r.headers
}

// Parameter adds a query parameter
func (r *Request) Parameter(name, value string) *Request {
	r.params.Add(name, value)
	return r
}

// Parameters returns the query parameters
func (r *Request) Parameters() url.Values {
	return r.params
}

// Form sets an url-encoded form body and switches the method to POST
func (r *Request) Form(data map[string]string) *Request {
	r.form = make(url.Values, len(data))
	for k, v := range data {
		r.form.Set(k, v)
	}
	r.body = nil
	r.method = POST
	r.headers.Set("Content-Type", contentTypeForm)
	return r
}

// Body sets a JSON body and switches the method to POST
func (r *Request) Body(body map[string]any) *Request {
	r.body = body
	r.form = nil
	r.method = POST
	r.headers.Set("Content-Type", contentTypeJSON)
	return r
}

// JSONBody returns the JSON body, or nil
func (r *Request) JSONBody() map[string]any {
	return r.body
}

// FormData returns the form body, or nil
func (r *Request) FormData() url.Values {
	return r.form
}

// Cookies attaches cookies to the request
func (r *Request) Cookies(cookies ...*http.Cookie) *Request {
	r.cookies = append(r.cookies, cookies...)
	return r
}

// CookieList returns the attached cookies
func (r *Request) CookieList() []*http.Cookie {
	return r.cookies
}

// FullURL returns the URL with the query parameters applied
func (r *Request) FullURL() (string, error) {
	if r.url == "" {
		return "", ErrMissingURL
	}
	u, err := url.Parse(r.url)
	if err != nil {
		return "", fmt.Errorf("invalid request url: %w", err)
	}
	if len(r.params) > 0 {
		q := u.Query()
		for k, vs := range r.params {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// HTTPRequest builds the net/http request
func (r *Request) HTTPRequest(ctx context.Context) (*http.Request, error) {
	full, err := r.FullURL()
	if err != nil {
		return nil, err
	}

	var body io.Reader
	switch {
	case r.body != nil:
		data, err := json.Marshal(r.body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		body = bytes.NewReader(data)
	case r.form != nil:
		body = strings.NewReader(r.form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, string(r.method), full, body)
	if err != nil {
		return nil, err
	}
	req.Header = r.headers.Clone()
	for _, c := range r.cookies {
		req.AddCookie(c)
	}
	return req, nil
}

// redactedURL strips the query string for logging
func (r *Request) redactedURL() string {
	if i := strings.IndexByte(r.url, '?'); i >= 0 {
		return r.url[:i]
	}
	return r.url
}
