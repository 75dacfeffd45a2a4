package oidc

import (
	"context"
	"fmt"
	"strings"

	"github.com/pingidentity/ping-go/orchestrate"
)

// Endpoints are the OpenID provider URLs used by the client
type Endpoints struct {
	Authorization string `json:"authorization_endpoint"`
	Token         string `json:"token_endpoint"`
	Userinfo      string `json:"userinfo_endpoint,omitempty"`
	EndSession    string `json:"end_session_endpoint,omitempty"`
	Revocation    string `json:"revocation_endpoint,omitempty"`
	Issuer        string `json:"issuer,omitempty"`
}

// Config identifies the OAuth client
type Config struct {
	// DiscoveryEndpoint is the .well-known/openid-configuration URL. When
	// set, empty Endpoints are filled from it.
	DiscoveryEndpoint string
	Endpoints         Endpoints
	ClientID          string
	RedirectURI       string
	Scopes            []string
	AcrValues         string
}

// Scope returns the space separated scope parameter. openid is always
// included.
func (c *Config) Scope() string {
	scopes := []string{"openid"}
	for _, s := range c.Scopes {
		if s != "" && s != "openid" {
			scopes = append(scopes, s)
		}
	}
	return strings.Join(scopes, " ")
}

// Discover fetches the provider metadata from url
func Discover(ctx context.Context, client orchestrate.HTTPClient, url string) (*Endpoints, error) {
	resp, err := client.Send(ctx, orchestrate.NewRequest().SetURL(url).Header("Accept", "application/json"))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch discovery document: %w", err)
	}
	if !resp.IsSuccess() {
		return nil, &orchestrate.APIError{Status: resp.Status, Body: resp.Body}
	}

	var e Endpoints
	if err := decodeJSON(resp, &e); err != nil {
		return nil, err
	}
	if e.Authorization == "" || e.Token == "" {
		return nil, fmt.Errorf("discovery document at %s has no authorization or token endpoint", url)
	}
	return &e, nil
}

// Resolve fills the empty endpoints of c from the discovery document.
// Explicitly configured endpoints take precedence.
func (c *Config) Resolve(ctx context.Context, client orchestrate.HTTPClient) error {
	if c.DiscoveryEndpoint == "" {
		if c.Endpoints.Authorization == "" || c.Endpoints.Token == "" {
			return ErrNoEndpoints
		}
		return nil
	}
	if c.Endpoints.Authorization != "" && c.Endpoints.Token != "" &&
		c.Endpoints.Revocation != "" && c.Endpoints.EndSession != "" {
		return nil
	}

	e, err := Discover(ctx, client, c.DiscoveryEndpoint)
	if err != nil {
		return err
	}
	fill := func(dst *string, src string) {
		if *dst == "" {
			*dst = src
		}
	}
	fill(&c.Endpoints.Authorization, e.Authorization)
	fill(&c.Endpoints.Token, e.Token)
	fill(&c.Endpoints.Userinfo, e.Userinfo)
	fill(&c.Endpoints.EndSession, e.EndSession)
	fill(&c.Endpoints.Revocation, e.Revocation)
	fill(&c.Endpoints.Issuer, e.Issuer)
	return nil
}
