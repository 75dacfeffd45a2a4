package ping

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pingidentity/ping-go/collector"
	"github.com/pingidentity/ping-go/davinci"
	"github.com/pingidentity/ping-go/events"
	"github.com/pingidentity/ping-go/oidc"
	"github.com/pingidentity/ping-go/orchestrate"
	"github.com/pingidentity/ping-go/storage"
)

// environment is a fake PingOne environment with a single sign on form
type environment struct {
	*httptest.Server

	mu        sync.Mutex
	state     string
	headers   map[string]string
	cookies   map[string]string
	signedOff bool
}

func newEnvironment(t *testing.T) *environment {
	env := &environment{headers: map[string]string{}, cookies: map[string]string{}}
	record := func(r *http.Request) {
		env.mu.Lock()
		defer env.mu.Unlock()
		env.headers[r.URL.Path] = r.Header.Get("X-Requested-With")
		if c, err := r.Cookie(SessionCookie); err == nil {
			env.cookies[r.URL.Path] = c.Value
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc(DiscoveryPath, func(w http.ResponseWriter, r *http.Request) {
		reply(w, http.StatusOK, map[string]any{
			"authorization_endpoint": env.URL + "/as/authorize",
			"token_endpoint":         env.URL + "/as/token",
			"end_session_endpoint":   env.URL + "/as/signoff",
		})
	})
	mux.HandleFunc("/as/authorize", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		env.mu.Lock()
		env.state = r.URL.Query().Get("state")
		env.mu.Unlock()
		http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: "session-cookie", Path: "/", MaxAge: 3600})
		reply(w, http.StatusOK, map[string]any{
			"id":               "form-1",
			"interactionId":    "int-1",
			"interactionToken": "tok-1",
			"form": map[string]any{
				"name": "Sign On",
				"components": map[string]any{"fields": []any{
					map[string]any{"type": "TEXT", "key": "username", "label": "Username", "required": true},
					map[string]any{"type": "SUBMIT_BUTTON", "key": "submit", "label": "Next"},
				}},
			},
			"_links": map[string]any{"next": map[string]any{"href": env.URL + "/davinci/next"}},
		})
	})
	mux.HandleFunc("/davinci/next", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		env.mu.Lock()
		state := env.state
		env.mu.Unlock()
		reply(w, http.StatusOK, map[string]any{
			"status":            "COMPLETED",
			"session":           map[string]any{"id": "s-1"},
			"authorizeResponse": map[string]any{"code": "code-1", "state": state},
		})
	})
	mux.HandleFunc("/as/token", func(w http.ResponseWriter, r *http.Request) {
		reply(w, http.StatusOK, map[string]any{"access_token": "access", "id_token": "id", "expires_in": 3600})
	})
	mux.HandleFunc("/as/signoff", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		env.mu.Lock()
		env.signedOff = true
		env.mu.Unlock()
	})

	env.Server = httptest.NewServer(mux)
	t.Cleanup(env.Close)
	return env
}

func reply(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(WithClientID("client"))
	assert.ErrorIs(t, err, ErrMissingServer)

	_, err = NewClient(WithServerURL("https://auth.example.com/env"))
	assert.ErrorIs(t, err, ErrMissingClientID)

	client, err := NewClient(WithServerURL("https://auth.example.com/env"), WithClientID("client"))
	require.NoError(t, err)
	assert.Equal(t, []string{"customHeader", "davinci", "cookie"}, client.Workflow().Stages())
	assert.NotNil(t, client.Collectors())
	assert.NoError(t, client.Close())
}

func TestNewClientWithPublisherRegistersEvents(t *testing.T) {
	client, err := NewClient(
		WithServerURL("https://auth.example.com/env"),
		WithClientID("client"),
		WithEventPublisher(events.PublisherFunc(func(context.Context, events.Event) error { return nil })),
	)
	require.NoError(t, err)
	assert.Contains(t, client.Workflow().Stages(), "events")
}

func TestClientSignOn(t *testing.T) {
	env := newEnvironment(t)
	ctx := context.Background()

	cookies := storage.NewMemory[[]orchestrate.StoredCookie]()
	tokens := storage.NewMemory[oidc.Token]()

	var mu sync.Mutex
	var stages []string
	publisher := events.PublisherFunc(func(_ context.Context, e events.Event) error {
		mu.Lock()
		defer mu.Unlock()
		stages = append(stages, e.Stage)
		return nil
	})

	client, err := NewClient(
		WithServerURL(env.URL+"/"),
		WithClientID("client"),
		WithRedirectURI("app://callback"),
		WithHeader("X-Requested-With", "ping-go"),
		WithCookieStorage(cookies),
		WithTokenStorage(tokens),
		WithEventPublisher(publisher),
		WithHTTPClient(orchestrate.NewHTTPClient(orchestrate.WithRetry(0, 0))),
	)
	require.NoError(t, err)

	node := client.Start(ctx)
	cont, ok := node.(*orchestrate.ContinueNode)
	require.True(t, ok, "expected ContinueNode, got %#v", node)

	cs := davinci.Collectors(cont)
	cs.Text("username").Value = "alice"
	cs.Submit("submit").Value = "submit"

	node = cont.Next(ctx)
	success, ok := node.(*orchestrate.SuccessNode)
	require.True(t, ok, "expected SuccessNode, got %#v", node)
	assert.Equal(t, "code-1", success.Session.Value())

	env.mu.Lock()
	assert.Equal(t, "ping-go", env.headers["/as/authorize"])
	assert.Equal(t, "ping-go", env.headers["/davinci/next"])
	assert.Equal(t, "session-cookie", env.cookies["/davinci/next"])
	env.mu.Unlock()

	stored, found, err := cookies.Get(ctx)
	require.NoError(t, err)
	require.True(t, found)
	require.Len(t, stored, 1)
	assert.Equal(t, SessionCookie, stored[0].Name)

	user, ok := client.User()
	require.True(t, ok)
	token, err := user.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "access", token.AccessToken)

	mu.Lock()
	assert.Contains(t, stages, events.StageStart)
	assert.Contains(t, stages, events.StageSuccess)
	mu.Unlock()

	require.NoError(t, client.SignOff(ctx))

	env.mu.Lock()
	assert.True(t, env.signedOff)
	assert.Equal(t, "session-cookie", env.cookies["/as/signoff"])
	env.mu.Unlock()

	_, found, err = cookies.Get(ctx)
	require.NoError(t, err)
	assert.False(t, found)
	_, found, err = tokens.Get(ctx)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestClientCustomCollector(t *testing.T) {
	factory := collector.NewFactory()
	client, err := NewClient(
		WithDiscoveryEndpoint("https://auth.example.com/env"+DiscoveryPath),
		WithClientID("client"),
		WithCollectorFactory(factory),
	)
	require.NoError(t, err)

	require.NoError(t, client.Collectors().Register("CUSTOM", collector.NewTextCollector))
	assert.True(t, factory.IsRegistered("CUSTOM"))
}

func TestClientCircuitBreaker(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		// drop the connection so every discovery fetch is a network failure
		if conn, _, err := w.(http.Hijacker).Hijack(); err == nil {
			_ = conn.Close()
		}
	}))
	t.Cleanup(server.Close)

	client, err := NewClient(
		WithServerURL(server.URL),
		WithClientID("client"),
		WithCircuitBreaker(2, time.Minute),
	)
	require.NoError(t, err)

	ctx := context.Background()
	var failure *orchestrate.FailureNode
	for i := 0; i < 3; i++ {
		node := client.Start(ctx)
		var ok bool
		failure, ok = node.(*orchestrate.FailureNode)
		require.True(t, ok, "expected FailureNode, got %#v", node)
		if errors.Is(failure, orchestrate.ErrCircuitOpen) {
			break
		}
	}
	assert.ErrorIs(t, failure, orchestrate.ErrCircuitOpen)
	assert.Equal(t, int32(2), calls.Load())

	failure, ok := client.Start(ctx).(*orchestrate.FailureNode)
	require.True(t, ok)
	assert.ErrorIs(t, failure, orchestrate.ErrCircuitOpen)
	assert.Equal(t, int32(2), calls.Load())
}
