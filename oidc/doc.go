// Package oidc implements the OAuth 2.0 and OpenID Connect calls that close
// out a DaVinci flow: PKCE, discovery, the authorization code exchange,
// refresh, revocation and end-session. User wraps the authorization code
// returned on success and turns it into tokens on first use.
package oidc
