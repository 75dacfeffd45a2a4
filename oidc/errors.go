package oidc

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pingidentity/ping-go/orchestrate"
)

var (
	// ErrNoEndpoints is returned when neither a discovery endpoint nor the
	// authorization and token endpoints are configured.
	ErrNoEndpoints = errors.New("oidc: no endpoints configured")

	// ErrNoCode is returned by User.Token when the user has no
	// authorization code and no stored token.
	ErrNoCode = errors.New("oidc: no authorization code")

	// ErrNoRefreshToken is returned by Refresh for a token without a
	// refresh token.
	ErrNoRefreshToken = errors.New("oidc: no refresh token")
)

// TokenError is an OAuth error response from the token endpoint
type TokenError struct {
	Status      int
	Code        string `json:"error"`
	Description string `json:"error_description"`
}

func (e *TokenError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("token error: status %d: %s: %s", e.Status, e.Code, e.Description)
	}
	return fmt.Sprintf("token error: status %d: %s", e.Status, e.Code)
}

// tokenError turns a failed token endpoint response into a *TokenError, or
// an *orchestrate.APIError when the body is not an OAuth error.
func tokenError(resp *orchestrate.Response) error {
	e := &TokenError{Status: resp.Status}
	if err := json.Unmarshal(resp.Body, e); err != nil || e.Code == "" {
		return &orchestrate.APIError{Status: resp.Status, Body: resp.Body}
	}
	return e
}

func decodeJSON(resp *orchestrate.Response, v any) error {
	if err := json.Unmarshal(resp.Body, v); err != nil {
		return &orchestrate.DecodeError{Err: err, Body: resp.Body}
	}
	return nil
}
