package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ping "github.com/pingidentity/ping-go"
	"github.com/pingidentity/ping-go/collector"
	"github.com/pingidentity/ping-go/orchestrate"
)

func form(fields ...map[string]any) collector.Collectors {
	return collector.NewFactory().Collect(fields, nil)
}

func TestPrompterFill(t *testing.T) {
	cs := form(
		map[string]any{"type": "LABEL", "key": "intro", "content": "Welcome"},
		map[string]any{"type": "TEXT", "key": "user.name", "label": "Username", "required": true},
		map[string]any{"type": "PASSWORD", "key": "password", "label": "Password"},
		map[string]any{"type": "DROPDOWN", "key": "country", "label": "Country", "options": []any{
			map[string]any{"label": "Norway", "value": "NO"},
			map[string]any{"label": "Canada", "value": "CA"},
		}},
		map[string]any{"type": "SUBMIT_BUTTON", "key": "submit", "label": "Sign On"},
	)

	var out bytes.Buffer
	p := newPrompter(strings.NewReader("alice\nsecret\n2\n"), &out)
	require.NoError(t, p.fill(cs))

	assert.Equal(t, "alice", cs.Text("user.name").Value)
	assert.Equal(t, "secret", cs.Password("password").Value)
	assert.Equal(t, "submit", cs.Submit("submit").Value)
	assert.Equal(t, collector.EventSubmit, cs.EventType())
	assert.Contains(t, out.String(), "Welcome")
	assert.Contains(t, out.String(), "Canada")

	data := cs.AsJSON()
	assert.Equal(t, "submit", data["actionKey"])
	formData := data["formData"].(map[string]any)
	assert.Equal(t, "CA", formData["country"])
	assert.Equal(t, map[string]any{"name": "alice"}, formData["user"])
}

func TestPrompterRepromptsInvalidFields(t *testing.T) {
	cs := form(
		map[string]any{"type": "TEXT", "key": "username", "label": "Username", "required": true},
		map[string]any{"type": "SUBMIT_BUTTON", "key": "submit", "label": "Next"},
	)

	var out bytes.Buffer
	p := newPrompter(strings.NewReader("\nbob\n"), &out)
	require.NoError(t, p.fill(cs))
	assert.Equal(t, "bob", cs.Text("username").Value)
	assert.Equal(t, 2, strings.Count(out.String(), "Username"))
}

func TestPrompterChoosesAction(t *testing.T) {
	cs := form(
		map[string]any{"type": "SUBMIT_BUTTON", "key": "submit", "label": "Sign On"},
		map[string]any{"type": "FLOW_LINK", "key": "forgot", "label": "Forgot password"},
	)

	var out bytes.Buffer
	p := newPrompter(strings.NewReader("9\n2\n"), &out)
	require.NoError(t, p.fill(cs))

	assert.Empty(t, cs.Submit("submit").Value)
	assert.Equal(t, "forgot", cs.Flow("forgot").Value)
	assert.Equal(t, collector.EventAction, cs.EventType())
	assert.Contains(t, out.String(), "Enter a number between 1 and 2")
}

func TestPrompterNoAction(t *testing.T) {
	cs := form(map[string]any{"type": "LABEL", "key": "info", "content": "Nothing to do"})
	p := newPrompter(strings.NewReader(""), &bytes.Buffer{})
	assert.ErrorIs(t, p.fill(cs), errNoAction)
}

func TestPrompterEOF(t *testing.T) {
	cs := form(
		map[string]any{"type": "TEXT", "key": "username", "label": "Username"},
		map[string]any{"type": "SUBMIT_BUTTON", "key": "submit", "label": "Next"},
	)
	p := newPrompter(strings.NewReader(""), &bytes.Buffer{})
	assert.Error(t, p.fill(cs))
}

func TestPrompterDevices(t *testing.T) {
	cs := form(
		map[string]any{"type": "DEVICE_AUTHENTICATION", "key": "device", "label": "Device", "options": []any{
			map[string]any{"type": "EMAIL", "id": "d1", "title": "Email", "value": "a@example.com"},
			map[string]any{"type": "SMS", "id": "d2", "title": "Text", "default": true},
		}},
		map[string]any{"type": "PHONE_NUMBER", "key": "phone", "label": "Phone", "defaultCountryCode": "US"},
		map[string]any{"type": "SUBMIT_BUTTON", "key": "submit", "label": "Next"},
	)

	p := newPrompter(strings.NewReader("\n\n5551234\n"), &bytes.Buffer{})
	require.NoError(t, p.fill(cs))

	device := findOf[*collector.DeviceAuthenticationCollector](t, cs, "device")
	require.NotNil(t, device.Value)
	assert.Equal(t, "d2", device.Value.ID)

	phone := findOf[*collector.PhoneNumberCollector](t, cs, "phone")
	assert.Equal(t, "US", phone.CountryCode)
	assert.Equal(t, "5551234", phone.PhoneNumber)
}

func findOf[T collector.Collector](t *testing.T, cs collector.Collectors, key string) T {
	t.Helper()
	c, ok := cs.Get(key)
	require.True(t, ok, "collector %s", key)
	typed, ok := c.(T)
	require.True(t, ok, "collector %s has type %T", key, c)
	return typed
}

func TestEnvFallback(t *testing.T) {
	t.Setenv("PINGFLOW_CLIENT_ID", "from-env")
	t.Setenv("PINGFLOW_SCOPES", "openid, phone")
	t.Setenv("PINGFLOW_BREAKER_THRESHOLD", "5")

	assert.Equal(t, "from-env", envOr("PINGFLOW_CLIENT_ID", "default"))
	assert.Equal(t, "default", envOr("PINGFLOW_UNSET", "default"))
	assert.Equal(t, []string{"openid", "phone"}, envList("PINGFLOW_SCOPES", nil))
	assert.Equal(t, 5, envInt("PINGFLOW_BREAKER_THRESHOLD", 0))
	assert.Equal(t, 0, envInt("PINGFLOW_CLIENT_ID", 0))

	cmd := newRootCommand()
	flag := cmd.PersistentFlags().Lookup("client-id")
	require.NotNil(t, flag)
	assert.Equal(t, "from-env", flag.DefValue)

	flag = cmd.PersistentFlags().Lookup("breaker-threshold")
	require.NotNil(t, flag)
	assert.Equal(t, "5", flag.DefValue)
}

func TestRunFlowBreakerOpens(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if conn, _, err := w.(http.Hijacker).Hijack(); err == nil {
			_ = conn.Close()
		}
	}))
	t.Cleanup(srv.Close)

	opts := &options{
		server:           srv.URL,
		clientID:         "cli",
		timeout:          time.Second,
		breakerThreshold: 1,
		breakerCooldown:  time.Minute,
	}
	client, cleanup, err := opts.client(context.Background())
	require.NoError(t, err)
	defer cleanup()

	err = runFlow(context.Background(), client, newPrompter(strings.NewReader(""), &bytes.Buffer{}), &bytes.Buffer{})
	assert.ErrorIs(t, err, orchestrate.ErrCircuitOpen)
}

// flowServer answers the first attempt with an error and the second with
// success
func flowServer(t *testing.T) *httptest.Server {
	var (
		mu       sync.Mutex
		state    string
		attempts int
	)
	var srv *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc(ping.DiscoveryPath, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"authorization_endpoint": srv.URL + "/as/authorize",
			"token_endpoint":         srv.URL + "/as/token",
		})
	})
	mux.HandleFunc("/as/authorize", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		state = r.URL.Query().Get("state")
		mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{
			"interactionId": "int-1",
			"form": map[string]any{
				"name": "Sign On",
				"components": map[string]any{"fields": []any{
					map[string]any{"type": "TEXT", "key": "username", "label": "Username"},
					map[string]any{"type": "SUBMIT_BUTTON", "key": "submit", "label": "Next"},
				}},
			},
			"_links": map[string]any{"next": map[string]any{"href": srv.URL + "/next"}},
		})
	})
	mux.HandleFunc("/next", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		attempts++
		first, current := attempts == 1, state
		mu.Unlock()
		if first {
			writeJSON(w, http.StatusBadRequest, map[string]any{"code": "invalidValue", "message": "Unknown user"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"status":            "COMPLETED",
			"session":           map[string]any{"id": "s"},
			"authorizeResponse": map[string]any{"code": "code", "state": current},
		})
	})
	mux.HandleFunc("/as/token", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"access_token": "access", "token_type": "Bearer", "expires_in": 60})
	})
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestRunFlow(t *testing.T) {
	srv := flowServer(t)
	client, err := ping.NewClient(
		ping.WithServerURL(srv.URL),
		ping.WithClientID("cli"),
		ping.WithHTTPClient(orchestrate.NewHTTPClient(orchestrate.WithRetry(0, 0))),
	)
	require.NoError(t, err)

	var out bytes.Buffer
	p := newPrompter(strings.NewReader("mallory\nalice\n"), &out)
	require.NoError(t, runFlow(context.Background(), client, p, &out))

	assert.Contains(t, out.String(), "Sign On")
	assert.Contains(t, out.String(), "Unknown user")
	assert.Contains(t, out.String(), "Signed on")
	assert.Contains(t, out.String(), "Bearer")
}

func TestRunFlowFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	client, err := ping.NewClient(
		ping.WithServerURL(srv.URL),
		ping.WithClientID("cli"),
		ping.WithHTTPClient(orchestrate.NewHTTPClient(orchestrate.WithRetry(0, 0))),
	)
	require.NoError(t, err)

	err = runFlow(context.Background(), client, newPrompter(strings.NewReader(""), &bytes.Buffer{}), &bytes.Buffer{})
	var failure *orchestrate.FailureNode
	assert.ErrorAs(t, err, &failure)
}
