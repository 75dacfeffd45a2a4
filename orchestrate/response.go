package orchestrate

import (
	"encoding/json"
	"net/http"
)

// Response is the raw result of sending a Request
type Response struct {
	Request *Request
	Status  int
	Header  http.Header
	Body    []byte
}

// IsSuccess reports a 2xx status
func (r *Response) IsSuccess() bool {
	return r.Status >= 200 && r.Status < 300
}

// JSON decodes the body as a JSON object. An empty body decodes to an empty map.
func (r *Response) JSON() (map[string]any, error) {
	if len(r.Body) == 0 {
		return map[string]any{}, nil
	}
	var out map[string]any
	if err := json.Unmarshal(r.Body, &out); err != nil {
		return nil, &DecodeError{Err: err, Body: r.Body}
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}

// Cookies parses the Set-Cookie headers
func (r *Response) Cookies() []*http.Cookie {
	if r.Header == nil {
		return nil
	}
	return (&http.Response{Header: r.Header}).Cookies()
}
