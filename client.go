// Copyright 2024 Ping Go Contributors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ping

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/pingidentity/ping-go/collector"
	"github.com/pingidentity/ping-go/davinci"
	"github.com/pingidentity/ping-go/events"
	"github.com/pingidentity/ping-go/oidc"
	"github.com/pingidentity/ping-go/orchestrate"
	"github.com/pingidentity/ping-go/storage"
)

// DiscoveryPath is appended to the server URL to find the OpenID configuration
const DiscoveryPath = "/as/.well-known/openid-configuration"

// SessionCookie is the PingOne session cookie persisted by default
const SessionCookie = "ST"

var (
	ErrMissingServer   = errors.New("server URL or discovery endpoint is required")
	ErrMissingClientID = errors.New("client ID is required")
)

// Client provides the main entry point for ping-go. It runs DaVinci flows
// against a PingOne environment.
type Client struct {
	workflow   *orchestrate.Workflow
	collectors *collector.Factory
	publisher  events.Publisher
	logger     *slog.Logger
}

// NewClient creates a client with the CustomHeader, DaVinci and Cookie
// modules registered. The Events module is added when a publisher is set.
func NewClient(options ...ClientOption) (*Client, error) {
	cfg := &clientConfig{
		scopes:  []string{"openid"},
		persist: []string{SessionCookie},
		headers: map[string]string{},
		logger:  slog.Default(),
		timeout: orchestrate.DefaultTimeout,
	}
	for _, opt := range options {
		opt(cfg)
	}

	discovery := cfg.discovery
	if discovery == "" && cfg.serverURL != "" {
		discovery = strings.TrimRight(cfg.serverURL, "/") + DiscoveryPath
	}
	if discovery == "" {
		return nil, ErrMissingServer
	}
	if cfg.clientID == "" {
		return nil, ErrMissingClientID
	}

	factory := cfg.collectors
	if factory == nil {
		factory = collector.NewFactory(collector.WithLogger(cfg.logger))
	}
	if cfg.cookieStorage == nil {
		cfg.cookieStorage = storage.NewMemory[[]orchestrate.StoredCookie]()
	}
	if cfg.tokenStorage == nil {
		cfg.tokenStorage = storage.NewMemory[oidc.Token]()
	}

	opts := []orchestrate.Option{
		orchestrate.WithLogger(cfg.logger),
		orchestrate.WithTimeout(cfg.timeout),
		orchestrate.WithModule(orchestrate.CustomHeader,
			orchestrate.WithPriority(orchestrate.CustomHeaderPriority),
			orchestrate.Configure(func(c *orchestrate.CustomHeaderConfig) {
				for name, value := range cfg.headers {
					c.Header(name, value)
				}
			}),
		),
		orchestrate.WithModule(davinci.Module, orchestrate.Configure(func(c *davinci.Config) {
			c.DiscoveryEndpoint = discovery
			c.ClientID = cfg.clientID
			c.RedirectURI = cfg.redirectURI
			c.Scopes = cfg.scopes
			c.AcrValues = cfg.acrValues
			c.Collectors = factory
			c.TokenStorage = cfg.tokenStorage
		})),
		orchestrate.WithModule(orchestrate.Cookie,
			orchestrate.WithPriority(orchestrate.CookiePriority),
			orchestrate.Configure(func(c *orchestrate.CookieConfig) {
				c.Persist = cfg.persist
				c.Storage = cfg.cookieStorage
			}),
		),
	}
	switch {
	case cfg.httpClient != nil:
		opts = append(opts, orchestrate.WithHTTPClient(cfg.httpClient))
	case cfg.breakerThreshold > 0:
		opts = append(opts, orchestrate.WithHTTPClient(orchestrate.NewHTTPClient(
			orchestrate.WithHTTPTimeout(cfg.timeout),
			orchestrate.WithHTTPLogger(cfg.logger),
			orchestrate.WithCircuitBreaker(cfg.breakerThreshold, cfg.breakerCooldown),
		)))
	}
	if cfg.publisher != nil {
		opts = append(opts, orchestrate.WithModule(events.Module, orchestrate.Configure(func(c *events.Config) {
			c.Publisher = cfg.publisher
		})))
	}

	workflow, err := orchestrate.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create workflow: %w", err)
	}

	return &Client{
		workflow:   workflow,
		collectors: factory,
		publisher:  cfg.publisher,
		logger:     cfg.logger,
	}, nil
}

// Start begins a new flow
func (c *Client) Start(ctx context.Context) orchestrate.Node {
	return c.workflow.Start(ctx)
}

// SignOff ends the server session and clears stored tokens and cookies
func (c *Client) SignOff(ctx context.Context) error {
	return c.workflow.SignOff(ctx)
}

// User returns the user signed in by the last successful flow
func (c *Client) User() (*oidc.User, bool) {
	return davinci.User(c.workflow)
}

// Workflow returns the underlying workflow
func (c *Client) Workflow() *orchestrate.Workflow {
	return c.workflow
}

// Collectors returns the collector factory used to parse continue responses.
// Custom field types are registered on it.
func (c *Client) Collectors() *collector.Factory {
	return c.collectors
}

// Close releases the event publisher when it holds a connection
func (c *Client) Close() error {
	if closer, ok := c.publisher.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			return fmt.Errorf("failed to close publisher: %w", err)
		}
	}
	return nil
}

// clientConfig holds client configuration
type clientConfig struct {
	serverURL     string
	discovery     string
	clientID      string
	redirectURI   string
	scopes        []string
	acrValues     string
	persist       []string
	headers       map[string]string
	cookieStorage storage.Storage[[]orchestrate.StoredCookie]
	tokenStorage  storage.Storage[oidc.Token]
	collectors    *collector.Factory
	publisher     events.Publisher
	httpClient    orchestrate.HTTPClient
	logger        *slog.Logger
	timeout       time.Duration

	breakerThreshold int
	breakerCooldown  time.Duration
}

// ClientOption configures the client
type ClientOption func(*clientConfig)

// WithServerURL sets the environment base URL, e.g.
// https://auth.pingone.com/<environment id>
func WithServerURL(url string) ClientOption {
	return func(cfg *clientConfig) {
		cfg.serverURL = url
	}
}

// WithDiscoveryEndpoint sets the OpenID discovery URL. It takes precedence
// over WithServerURL.
func WithDiscoveryEndpoint(url string) ClientOption {
	return func(cfg *clientConfig) {
		cfg.discovery = url
	}
}

// WithClientID sets the OAuth client ID
func WithClientID(id string) ClientOption {
	return func(cfg *clientConfig) {
		cfg.clientID = id
	}
}

// WithRedirectURI sets the OAuth redirect URI
func WithRedirectURI(uri string) ClientOption {
	return func(cfg *clientConfig) {
		cfg.redirectURI = uri
	}
}

// WithScopes sets the requested scopes. openid is always requested.
func WithScopes(scopes ...string) ClientOption {
	return func(cfg *clientConfig) {
		cfg.scopes = scopes
	}
}

// WithAcrValues selects the DaVinci policy to run
func WithAcrValues(acr string) ClientOption {
	return func(cfg *clientConfig) {
		cfg.acrValues = acr
	}
}

// WithPersistedCookies sets the cookie names saved to cookie storage
func WithPersistedCookies(names ...string) ClientOption {
	return func(cfg *clientConfig) {
		cfg.persist = names
	}
}

// WithHeader adds a header to every request
func WithHeader(name, value string) ClientOption {
	return func(cfg *clientConfig) {
		cfg.headers[name] = value
	}
}

// WithCookieStorage sets where session cookies are persisted
func WithCookieStorage(s storage.Storage[[]orchestrate.StoredCookie]) ClientOption {
	return func(cfg *clientConfig) {
		cfg.cookieStorage = s
	}
}

// WithTokenStorage sets where tokens are persisted
func WithTokenStorage(s storage.Storage[oidc.Token]) ClientOption {
	return func(cfg *clientConfig) {
		cfg.tokenStorage = s
	}
}

// WithCollectorFactory replaces the collector factory
func WithCollectorFactory(f *collector.Factory) ClientOption {
	return func(cfg *clientConfig) {
		cfg.collectors = f
	}
}

// WithEventPublisher publishes flow events to p
func WithEventPublisher(p events.Publisher) ClientOption {
	return func(cfg *clientConfig) {
		cfg.publisher = p
	}
}

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(client orchestrate.HTTPClient) ClientOption {
	return func(cfg *clientConfig) {
		cfg.httpClient = client
	}
}

// WithLogger sets a custom logger
func WithLogger(logger *slog.Logger) ClientOption {
	return func(cfg *clientConfig) {
		cfg.logger = logger
	}
}

// WithTimeout sets the HTTP timeout of the default client
func WithTimeout(timeout time.Duration) ClientOption {
	return func(cfg *clientConfig) {
		cfg.timeout = timeout
	}
}

// WithCircuitBreaker makes the default client fail fast with
// orchestrate.ErrCircuitOpen after threshold consecutive network failures,
// until cooldown has passed. It has no effect with WithHTTPClient.
func WithCircuitBreaker(threshold int, cooldown time.Duration) ClientOption {
	return func(cfg *clientConfig) {
		cfg.breakerThreshold = threshold
		cfg.breakerCooldown = cooldown
	}
}
