package oidc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pingidentity/ping-go/orchestrate"
	"github.com/pingidentity/ping-go/storage"
)

// provider is a minimal OpenID provider
type provider struct {
	*httptest.Server
	exchanges atomic.Int32
	refreshes atomic.Int32
	revoked   atomic.Value
	expiresIn int
}

func newProvider(t *testing.T) *provider {
	p := &provider{expiresIn: 3600}
	mux := http.NewServeMux()

	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{
			"issuer":                 p.URL,
			"authorization_endpoint": p.URL + "/as/authorize",
			"token_endpoint":         p.URL + "/as/token",
			"userinfo_endpoint":      p.URL + "/as/userinfo",
			"end_session_endpoint":   p.URL + "/as/signoff",
			"revocation_endpoint":    p.URL + "/as/revoke",
		})
	})

	mux.HandleFunc("/as/token", func(w http.ResponseWriter, r *http.Request) {
		if !assert.NoError(t, r.ParseForm()) {
			return
		}
		switch r.PostForm.Get("grant_type") {
		case "authorization_code":
			p.exchanges.Add(1)
			if r.PostForm.Get("code") != "good-code" || r.PostForm.Get("code_verifier") == "" {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"bad code"}`))
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"access_token":  "access-1",
				"refresh_token": "refresh-1",
				"id_token":      "id-1",
				"token_type":    "Bearer",
				"expires_in":    p.expiresIn,
			})
		case "refresh_token":
			p.refreshes.Add(1)
			assert.Equal(t, "refresh-1", r.PostForm.Get("refresh_token"))
			_ = json.NewEncoder(w).Encode(map[string]any{
				"access_token": "access-2",
				"expires_in":   3600,
			})
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	})

	mux.HandleFunc("/as/revoke", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		p.revoked.Store(r.PostForm.Get("token") + ":" + r.PostForm.Get("token_type_hint"))
	})

	mux.HandleFunc("/as/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer access-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"sub":"alice"}`))
	})

	p.Server = httptest.NewServer(mux)
	t.Cleanup(p.Close)
	return p
}

func (p *provider) config() *Config {
	return &Config{
		DiscoveryEndpoint: p.URL + "/.well-known/openid-configuration",
		ClientID:          "client",
		RedirectURI:       "app://callback",
		Scopes:            []string{"openid", "profile"},
	}
}

func httpClient() orchestrate.HTTPClient {
	return orchestrate.NewHTTPClient(orchestrate.WithRetry(0, 0))
}

func TestPKCE(t *testing.T) {
	assert.Equal(t, "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM", challenge("dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"))

	a, err := NewPKCE()
	require.NoError(t, err)
	b, err := NewPKCE()
	require.NoError(t, err)

	assert.Len(t, a.Verifier, 43)
	assert.Equal(t, challenge(a.Verifier), a.Challenge)
	assert.Equal(t, "S256", a.Method)
	assert.NotEqual(t, a.Verifier, b.Verifier)
	assert.NotEqual(t, NewState(), NewState())
}

func TestConfigResolve(t *testing.T) {
	p := newProvider(t)
	ctx := context.Background()

	t.Run("fills endpoints from discovery", func(t *testing.T) {
		cfg := p.config()
		cfg.Endpoints.Token = "https://override.example.com/token"

		require.NoError(t, cfg.Resolve(ctx, httpClient()))
		assert.Equal(t, p.URL+"/as/authorize", cfg.Endpoints.Authorization)
		assert.Equal(t, "https://override.example.com/token", cfg.Endpoints.Token)
		assert.Equal(t, p.URL+"/as/revoke", cfg.Endpoints.Revocation)
		assert.Equal(t, p.URL, cfg.Endpoints.Issuer)
	})

	t.Run("requires endpoints without discovery", func(t *testing.T) {
		cfg := &Config{ClientID: "client"}
		assert.ErrorIs(t, cfg.Resolve(ctx, httpClient()), ErrNoEndpoints)
	})

	t.Run("discovery failure", func(t *testing.T) {
		cfg := &Config{DiscoveryEndpoint: p.URL + "/missing"}
		var apiErr *orchestrate.APIError
		require.ErrorAs(t, cfg.Resolve(ctx, httpClient()), &apiErr)
		assert.Equal(t, http.StatusNotFound, apiErr.Status)
	})

	t.Run("scope always includes openid", func(t *testing.T) {
		assert.Equal(t, "openid profile", (&Config{Scopes: []string{"profile", "openid"}}).Scope())
		assert.Equal(t, "openid", (&Config{}).Scope())
	})
}

func TestTokenCalls(t *testing.T) {
	p := newProvider(t)
	ctx := context.Background()
	cfg := p.config()
	require.NoError(t, cfg.Resolve(ctx, httpClient()))

	t.Run("exchange", func(t *testing.T) {
		token, err := Exchange(ctx, httpClient(), cfg, "good-code", "verifier")
		require.NoError(t, err)
		assert.Equal(t, "access-1", token.AccessToken)
		assert.Equal(t, "id-1", token.IDToken)
		assert.WithinDuration(t, time.Now().Add(time.Hour), token.ExpiresAt, time.Minute)
	})

	t.Run("exchange rejected", func(t *testing.T) {
		_, err := Exchange(ctx, httpClient(), cfg, "bad-code", "verifier")
		var tokenErr *TokenError
		require.ErrorAs(t, err, &tokenErr)
		assert.Equal(t, "invalid_grant", tokenErr.Code)
		assert.Equal(t, http.StatusBadRequest, tokenErr.Status)
	})

	t.Run("refresh keeps refresh and id token", func(t *testing.T) {
		token, err := Refresh(ctx, httpClient(), cfg, &Token{RefreshToken: "refresh-1", IDToken: "id-1"})
		require.NoError(t, err)
		assert.Equal(t, "access-2", token.AccessToken)
		assert.Equal(t, "refresh-1", token.RefreshToken)
		assert.Equal(t, "id-1", token.IDToken)

		_, err = Refresh(ctx, httpClient(), cfg, &Token{})
		assert.ErrorIs(t, err, ErrNoRefreshToken)
	})

	t.Run("revoke prefers refresh token", func(t *testing.T) {
		require.NoError(t, Revoke(ctx, httpClient(), cfg, &Token{AccessToken: "a", RefreshToken: "r"}))
		assert.Equal(t, "r:refresh_token", p.revoked.Load())

		require.NoError(t, Revoke(ctx, httpClient(), cfg, &Token{AccessToken: "a"}))
		assert.Equal(t, "a:access_token", p.revoked.Load())
	})

	t.Run("authorize and end session requests", func(t *testing.T) {
		pkce := &PKCE{Challenge: "chal", Method: ChallengeMethod}
		req := AuthorizeRequest(orchestrate.NewRequest(), cfg, pkce, "st", "")
		q := req.Parameters()
		assert.Equal(t, p.URL+"/as/authorize", req.URL())
		assert.Equal(t, "code", q.Get("response_type"))
		assert.Equal(t, "chal", q.Get("code_challenge"))
		assert.Equal(t, "S256", q.Get("code_challenge_method"))
		assert.Equal(t, "st", q.Get("state"))
		assert.Equal(t, "openid profile", q.Get("scope"))
		assert.False(t, q.Has("nonce"))

		end := EndSessionRequest(orchestrate.NewRequest(), cfg, "id-1")
		require.NotNil(t, end)
		assert.Equal(t, p.URL+"/as/signoff", end.URL())
		assert.Equal(t, "id-1", end.Parameters().Get("id_token_hint"))

		assert.Nil(t, EndSessionRequest(orchestrate.NewRequest(), &Config{}, "id-1"))
	})

	t.Run("token expiry", func(t *testing.T) {
		now := time.Now()
		assert.False(t, (&Token{}).Expired(now, time.Hour))
		assert.True(t, (&Token{ExpiresAt: now.Add(30 * time.Second)}).Expired(now, time.Minute))
		assert.False(t, (&Token{ExpiresAt: now.Add(30 * time.Second)}).Expired(now, 0))
	})
}

func TestUser(t *testing.T) {
	ctx := context.Background()

	t.Run("exchanges once and caches", func(t *testing.T) {
		p := newProvider(t)
		cfg := p.config()
		require.NoError(t, cfg.Resolve(ctx, httpClient()))
		store := storage.NewMemory[Token]()

		u := NewUser("good-code", "verifier", cfg, httpClient(), store)
		assert.Equal(t, "good-code", u.Value())

		first, err := u.Token(ctx)
		require.NoError(t, err)
		second, err := u.Token(ctx)
		require.NoError(t, err)

		assert.Equal(t, first.AccessToken, second.AccessToken)
		assert.Equal(t, int32(1), p.exchanges.Load())
		assert.Empty(t, u.Value())

		stored, ok, err := store.Get(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "access-1", stored.AccessToken)

		info, err := u.Userinfo(ctx)
		require.NoError(t, err)
		assert.Equal(t, "alice", info["sub"])
	})

	t.Run("refreshes an expiring token", func(t *testing.T) {
		p := newProvider(t)
		p.expiresIn = 30
		cfg := p.config()
		require.NoError(t, cfg.Resolve(ctx, httpClient()))

		u := NewUser("good-code", "verifier", cfg, httpClient(), nil)
		first, err := u.Token(ctx)
		require.NoError(t, err)
		assert.Equal(t, "access-1", first.AccessToken)

		second, err := u.Token(ctx)
		require.NoError(t, err)
		assert.Equal(t, "access-2", second.AccessToken)
		assert.Equal(t, "refresh-1", second.RefreshToken)
		assert.Equal(t, int32(1), p.refreshes.Load())
	})

	t.Run("no code", func(t *testing.T) {
		u := NewUser("", "", &Config{}, httpClient(), nil)
		_, err := u.Token(ctx)
		assert.ErrorIs(t, err, ErrNoCode)
	})

	t.Run("logout signs off and forgets the token", func(t *testing.T) {
		store := storage.NewMemory[Token]()
		require.NoError(t, store.Save(ctx, Token{AccessToken: "access"}))

		signedOff := false
		u := NewUser("code", "", &Config{}, httpClient(), store, WithSignOff(func(ctx context.Context) error {
			signedOff = true
			_, ok, _ := store.Get(ctx)
			assert.True(t, ok, "token must still be readable during sign off")
			return nil
		}))

		require.NoError(t, u.Logout(ctx))
		assert.True(t, signedOff)
		assert.Empty(t, u.Value())

		_, ok, err := store.Get(ctx)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}
