package davinci

import (
	"context"
	"fmt"

	"github.com/pingidentity/ping-go/collector"
	"github.com/pingidentity/ping-go/oidc"
	"github.com/pingidentity/ping-go/orchestrate"
	"github.com/pingidentity/ping-go/storage"
)

// ResponseMode asks the authorization server to answer with DaVinci JSON
// instead of a login page.
const ResponseMode = "pi.flow"

// Config configures the DaVinci module
type Config struct {
	oidc.Config
	// Collectors builds the collectors of continue responses
	Collectors *collector.Factory
	// TokenStorage caches the tokens of the signed in user
	TokenStorage storage.Storage[oidc.Token]
}

var (
	pkceKey  = orchestrate.NewKey[*oidc.PKCE]("davinci.pkce")
	stateKey = orchestrate.NewKey[string]("davinci.state")

	// UserKey holds the *oidc.User of the last successful flow in the
	// workflow's shared context.
	UserKey = orchestrate.NewKey[*oidc.User]("davinci.user")
)

// Module is the DaVinci protocol module. It registers the only transform
// handler of the workflow.
var Module = orchestrate.NewModule("davinci",
	func() *Config {
		return &Config{
			Collectors:   collector.NewFactory(),
			TokenStorage: storage.NewMemory[oidc.Token](),
		}
	},
	setup,
)

func setup(s *orchestrate.Setup[Config]) {
	cfg := s.Config()
	w := s.Workflow()
	logger := s.Logger()
	if cfg.Collectors == nil {
		cfg.Collectors = collector.NewFactory(collector.WithLogger(logger))
	}
	if cfg.TokenStorage == nil {
		cfg.TokenStorage = storage.NewMemory[oidc.Token]()
	}

	s.Initialize(func(ctx context.Context) error {
		if err := cfg.Resolve(ctx, w.HTTPClient()); err != nil {
			return fmt.Errorf("failed to resolve endpoints: %w", err)
		}
		logger.Debug("endpoints resolved", "authorize", cfg.Endpoints.Authorization, "token", cfg.Endpoints.Token)
		return nil
	})

	s.Start(func(ctx context.Context, fc *orchestrate.FlowContext, req *orchestrate.Request) (*orchestrate.Request, error) {
		pkce, err := oidc.NewPKCE()
		if err != nil {
			return nil, err
		}
		state := oidc.NewState()
		orchestrate.SetValue(fc.Flow, pkceKey, pkce)
		orchestrate.SetValue(fc.Flow, stateKey, state)

		req = oidc.AuthorizeRequest(req, &cfg.Config, pkce, state, "")
		return req.Parameter("response_mode", ResponseMode), nil
	})

	s.Next(func(ctx context.Context, fc *orchestrate.FlowContext, current *orchestrate.ContinueNode, req *orchestrate.Request) (*orchestrate.Request, error) {
		return nextRequest(req, current)
	})

	s.Transform(func(ctx context.Context, fc *orchestrate.FlowContext, resp *orchestrate.Response) (orchestrate.Node, error) {
		return transform(cfg.Collectors, resp), nil
	})

	s.Success(func(ctx context.Context, fc *orchestrate.FlowContext, node *orchestrate.SuccessNode) (*orchestrate.SuccessNode, error) {
		if expected, ok := orchestrate.GetValue(fc.Flow, stateKey); ok {
			if state := returnedState(node.Input); state != "" && state != expected {
				return nil, ErrStateMismatch
			}
		}

		var verifier string
		if pkce, ok := orchestrate.GetValue(fc.Flow, pkceKey); ok {
			verifier = pkce.Verifier
		}

		code := ""
		if node.Session != nil {
			code = node.Session.Value()
		}
		user := oidc.NewUser(code, verifier, &cfg.Config, w.HTTPClient(), cfg.TokenStorage,
			oidc.WithSignOff(w.SignOff),
			oidc.WithUserLogger(logger),
		)
		orchestrate.SetValue(fc.Shared, UserKey, user)

		node.Session = user
		return node, nil
	})

	s.SignOff(func(ctx context.Context, req *orchestrate.Request) (*orchestrate.Request, error) {
		token, ok, err := cfg.TokenStorage.Get(ctx)
		if err != nil {
			logger.Warn("failed to load token for sign off", "error", err)
		}

		idToken := ""
		if ok {
			idToken = token.IDToken
			if err := oidc.Revoke(ctx, w.HTTPClient(), &cfg.Config, &token); err != nil {
				logger.Warn("failed to revoke token", "error", err)
			}
			if err := cfg.TokenStorage.Delete(ctx); err != nil {
				logger.Warn("failed to delete token", "error", err)
			}
		}

		if end := oidc.EndSessionRequest(req, &cfg.Config, idToken); end != nil {
			return end, nil
		}
		return req, nil
	})
}

// Collectors returns the collectors carried by a continue node
func Collectors(node *orchestrate.ContinueNode) collector.Collectors {
	cs := make(collector.Collectors, 0, len(node.Actions))
	for _, a := range node.Actions {
		if c, ok := a.(collector.Collector); ok {
			cs = append(cs, c)
		}
	}
	return cs
}

// User returns the user of the last successful flow of w
func User(w *orchestrate.Workflow) (*oidc.User, bool) {
	return orchestrate.GetValue(w.SharedContext(), UserKey)
}
