package oidc

import (
	"context"
	"fmt"
	"time"

	"github.com/pingidentity/ping-go/orchestrate"
)

// Token is the result of a token endpoint call
type Token struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type,omitempty"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	IDToken      string    `json:"id_token,omitempty"`
	Scope        string    `json:"scope,omitempty"`
	ExpiresIn    int64     `json:"expires_in,omitempty"`
	ExpiresAt    time.Time `json:"expires_at,omitempty"`
}

// Expired reports whether the access token expires within threshold of now.
// A token without expiry never expires.
func (t *Token) Expired(now time.Time, threshold time.Duration) bool {
	if t.ExpiresAt.IsZero() {
		return false
	}
	return !now.Add(threshold).Before(t.ExpiresAt)
}

// Exchange trades an authorization code for tokens
func Exchange(ctx context.Context, client orchestrate.HTTPClient, cfg *Config, code, verifier string) (*Token, error) {
	form := map[string]string{
		"grant_type":   "authorization_code",
		"client_id":    cfg.ClientID,
		"redirect_uri": cfg.RedirectURI,
		"code":         code,
	}
	if verifier != "" {
		form["code_verifier"] = verifier
	}
	return tokenRequest(ctx, client, cfg, form)
}

// Refresh uses the refresh token of t to obtain new tokens. The refresh
// token is kept when the server does not rotate it.
func Refresh(ctx context.Context, client orchestrate.HTTPClient, cfg *Config, t *Token) (*Token, error) {
	if t.RefreshToken == "" {
		return nil, ErrNoRefreshToken
	}
	token, err := tokenRequest(ctx, client, cfg, map[string]string{
		"grant_type":    "refresh_token",
		"client_id":     cfg.ClientID,
		"refresh_token": t.RefreshToken,
	})
	if err != nil {
		return nil, err
	}
	if token.RefreshToken == "" {
		token.RefreshToken = t.RefreshToken
	}
	if token.IDToken == "" {
		token.IDToken = t.IDToken
	}
	return token, nil
}

func tokenRequest(ctx context.Context, client orchestrate.HTTPClient, cfg *Config, form map[string]string) (*Token, error) {
	if cfg.Endpoints.Token == "" {
		return nil, ErrNoEndpoints
	}

	req := orchestrate.NewRequest().
		SetURL(cfg.Endpoints.Token).
		Header("Accept", "application/json").
		Form(form)

	resp, err := client.Send(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	if !resp.IsSuccess() {
		return nil, tokenError(resp)
	}

	var token Token
	if err := decodeJSON(resp, &token); err != nil {
		return nil, err
	}
	if token.AccessToken == "" {
		return nil, &orchestrate.DecodeError{Err: fmt.Errorf("missing access_token"), Body: resp.Body}
	}
	if token.ExpiresIn > 0 {
		token.ExpiresAt = time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)
	}
	return &token, nil
}

// Revoke revokes token at the revocation endpoint. The refresh token is
// revoked when present since that also invalidates its access tokens.
func Revoke(ctx context.Context, client orchestrate.HTTPClient, cfg *Config, t *Token) error {
	if cfg.Endpoints.Revocation == "" {
		return nil
	}

	value, hint := t.AccessToken, "access_token"
	if t.RefreshToken != "" {
		value, hint = t.RefreshToken, "refresh_token"
	}

	req := orchestrate.NewRequest().
		SetURL(cfg.Endpoints.Revocation).
		Form(map[string]string{
			"client_id":       cfg.ClientID,
			"token":           value,
			"token_type_hint": hint,
		})

	resp, err := client.Send(ctx, req)
	if err != nil {
		return fmt.Errorf("revoke failed: %w", err)
	}
	if !resp.IsSuccess() {
		return tokenError(resp)
	}
	return nil
}

// EndSessionRequest builds the end-session call for idToken. It returns nil
// when the provider has no end-session endpoint.
func EndSessionRequest(req *orchestrate.Request, cfg *Config, idToken string) *orchestrate.Request {
	if cfg.Endpoints.EndSession == "" {
		return nil
	}
	req.SetURL(cfg.Endpoints.EndSession).
		SetMethod(orchestrate.GET).
		Parameter("client_id", cfg.ClientID)
	if idToken != "" {
		req.Parameter("id_token_hint", idToken)
	}
	return req
}

// AuthorizeRequest adds the authorization request parameters to req
func AuthorizeRequest(req *orchestrate.Request, cfg *Config, pkce *PKCE, state, nonce string) *orchestrate.Request {
	req.SetURL(cfg.Endpoints.Authorization).
		Parameter("client_id", cfg.ClientID).
		Parameter("response_type", "code").
		Parameter("scope", cfg.Scope()).
		Parameter("redirect_uri", cfg.RedirectURI).
		Parameter("code_challenge", pkce.Challenge).
		Parameter("code_challenge_method", pkce.Method).
		Parameter("state", state)
	if nonce != "" {
		req.Parameter("nonce", nonce)
	}
	if cfg.AcrValues != "" {
		req.Parameter("acr_values", cfg.AcrValues)
	}
	return req
}
