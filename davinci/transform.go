package davinci

import (
	"net/url"
	"strconv"

	"github.com/pingidentity/ping-go/collector"
	"github.com/pingidentity/ping-go/orchestrate"
)

// Server codes that mean the interaction can no longer continue
var expiredCodes = map[string]bool{
	"1999":            true,
	"requestTimedOut": true,
}

// transform decodes a DaVinci response:
//
//	2xx with form                 -> ContinueNode with collectors
//	2xx COMPLETED with session    -> SuccessNode holding the authorization code
//	3xx to the redirect uri       -> SuccessNode or ErrorNode from the query
//	4xx json                      -> ErrorNode, or FailureNode when expired
//	5xx or non-json error         -> FailureNode wrapping *orchestrate.APIError
//	anything else                 -> ErrorNode "unknown response"
func transform(factory *collector.Factory, resp *orchestrate.Response) orchestrate.Node {
	if resp.Status >= 300 && resp.Status < 400 {
		return redirect(resp)
	}

	body, err := resp.JSON()
	if err != nil {
		if resp.IsSuccess() {
			return unknown(resp, map[string]any{"body": string(resp.Body)})
		}
		return apiFailure(resp)
	}

	if !resp.IsSuccess() {
		if resp.Status >= 500 {
			return apiFailure(resp)
		}
		message := stringOf(body, "message")
		if code := codeOf(body); expiredCodes[code] {
			return &orchestrate.FailureNode{Cause: &ServerError{
				Status:  resp.Status,
				Code:    code,
				Message: message,
				Err:     ErrSessionExpired,
			}}
		}
		return &orchestrate.ErrorNode{Input: body, Message: message, Status: resp.Status}
	}

	if _, ok := body["form"]; ok {
		cs := factory.Parse(body)
		actions := make([]orchestrate.Action, len(cs))
		for i, c := range cs {
			actions[i] = c
		}
		return orchestrate.NewContinueNode(body, actions, nil)
	}

	if stringOf(body, "status") == "COMPLETED" {
		if _, ok := body["session"]; ok {
			code := stringOf(mapOf(body, "authorizeResponse"), "code")
			return &orchestrate.SuccessNode{Input: body, Session: orchestrate.SessionValue(code)}
		}
	}

	return unknown(resp, body)
}

// redirect handles an authorize call answered with a redirect to the
// redirect uri, which happens when the user already has a session.
func redirect(resp *orchestrate.Response) orchestrate.Node {
	location, err := url.Parse(resp.Header.Get("Location"))
	if err != nil || resp.Header.Get("Location") == "" {
		return apiFailure(resp)
	}

	q := location.Query()
	if code := q.Get("code"); code != "" {
		input := map[string]any{
			"authorizeResponse": map[string]any{"code": code, "state": q.Get("state")},
		}
		return &orchestrate.SuccessNode{Input: input, Session: orchestrate.SessionValue(code)}
	}
	if e := q.Get("error"); e != "" {
		message := q.Get("error_description")
		if message == "" {
			message = e
		}
		return &orchestrate.ErrorNode{
			Input:   map[string]any{"error": e, "error_description": q.Get("error_description")},
			Message: message,
			Status:  resp.Status,
		}
	}
	return apiFailure(resp)
}

func unknown(resp *orchestrate.Response, input map[string]any) *orchestrate.ErrorNode {
	return &orchestrate.ErrorNode{Input: input, Message: "unknown response", Status: resp.Status}
}

func apiFailure(resp *orchestrate.Response) *orchestrate.FailureNode {
	return &orchestrate.FailureNode{Cause: &orchestrate.APIError{Status: resp.Status, Body: resp.Body}}
}

// returnedState reads the state echoed in a success response
func returnedState(input map[string]any) string {
	return stringOf(mapOf(input, "authorizeResponse"), "state")
}

func codeOf(body map[string]any) string {
	switch v := body["code"].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}

func stringOf(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func mapOf(m map[string]any, key string) map[string]any {
	v, _ := m[key].(map[string]any)
	return v
}
