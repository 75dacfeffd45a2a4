package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	ping "github.com/pingidentity/ping-go"
	"github.com/pingidentity/ping-go/davinci"
	"github.com/pingidentity/ping-go/events"
	"github.com/pingidentity/ping-go/oidc"
	"github.com/pingidentity/ping-go/orchestrate"
	"github.com/pingidentity/ping-go/storage"
)

var (
	// Version information
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// options holds the flags shared by all commands
type options struct {
	server      string
	clientID    string
	redirectURI string
	scopes      []string
	acr         string
	store       string
	redisURL    string
	amqpURL     string
	timeout     time.Duration
	verbose     bool

	breakerThreshold int
	breakerCooldown  time.Duration
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render(err.Error()))
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "pingflow",
		Short: "Run PingOne DaVinci flows from the terminal",
		Long: `pingflow signs on to a PingOne environment by walking a DaVinci flow.
Every form is rendered as terminal prompts. Flags fall back to PINGFLOW_* environment variables.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildTime),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.server, "server", "s", envOr("PINGFLOW_SERVER", ""), "Environment URL, e.g. https://auth.pingone.com/<env id>")
	flags.StringVar(&opts.clientID, "client-id", envOr("PINGFLOW_CLIENT_ID", ""), "OAuth client ID")
	flags.StringVar(&opts.redirectURI, "redirect-uri", envOr("PINGFLOW_REDIRECT_URI", ""), "OAuth redirect URI")
	flags.StringSliceVar(&opts.scopes, "scopes", envList("PINGFLOW_SCOPES", []string{"openid", "profile", "email"}), "Requested scopes")
	flags.StringVar(&opts.acr, "acr", envOr("PINGFLOW_ACR", ""), "DaVinci policy ID sent as acr_values")
	flags.StringVar(&opts.store, "store", envOr("PINGFLOW_STORE", ""), "SQLite file for cookies and tokens")
	flags.StringVar(&opts.redisURL, "redis", envOr("PINGFLOW_REDIS_URL", ""), "Redis URL for cookies and tokens, instead of --store")
	flags.StringVar(&opts.amqpURL, "amqp", envOr("PINGFLOW_AMQP_URL", ""), "RabbitMQ URL that receives flow events")
	flags.DurationVar(&opts.timeout, "timeout", orchestrate.DefaultTimeout, "HTTP timeout")
	flags.IntVar(&opts.breakerThreshold, "breaker-threshold", envInt("PINGFLOW_BREAKER_THRESHOLD", 0), "Network failures before requests fail fast, 0 disables")
	flags.DurationVar(&opts.breakerCooldown, "breaker-cooldown", 30*time.Second, "How long requests fail fast once the breaker opens")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")

	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Sign on by walking a DaVinci flow",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			client, cleanup, err := opts.client(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			return runFlow(ctx, client, newPrompter(cmd.InOrStdin(), cmd.OutOrStdout()), cmd.OutOrStdout())
		},
	}

	logoutCmd := &cobra.Command{
		Use:   "logout",
		Short: "Sign off and clear stored cookies and tokens",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			client, cleanup, err := opts.client(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := client.SignOff(ctx); err != nil {
				return fmt.Errorf("failed to sign off: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("Signed off"))
			return nil
		},
	}

	rootCmd.AddCommand(startCmd, logoutCmd)
	return rootCmd
}

// client builds a ping client from the flags. cleanup releases the storage
// and publisher connections.
func (o *options) client(ctx context.Context) (*ping.Client, func(), error) {
	level := slog.LevelWarn
	if o.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	clientOpts := []ping.ClientOption{
		ping.WithServerURL(o.server),
		ping.WithClientID(o.clientID),
		ping.WithRedirectURI(o.redirectURI),
		ping.WithScopes(o.scopes...),
		ping.WithAcrValues(o.acr),
		ping.WithHeader("X-Requested-With", "pingflow"),
		ping.WithLogger(logger),
		ping.WithTimeout(o.timeout),
	}
	if o.breakerThreshold > 0 {
		clientOpts = append(clientOpts, ping.WithCircuitBreaker(o.breakerThreshold, o.breakerCooldown))
	}

	var closers []io.Closer
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i].Close(); err != nil {
				logger.Warn("cleanup failed", "error", err)
			}
		}
	}

	stores, closer, err := o.storage()
	if err != nil {
		return nil, nil, err
	}
	if closer != nil {
		closers = append(closers, closer)
	}
	clientOpts = append(clientOpts, stores...)

	if o.amqpURL != "" {
		publisher := events.NewAMQPPublisher(o.amqpURL, events.WithLogger(logger))
		if err := publisher.Connect(ctx); err != nil {
			cleanup()
			return nil, nil, err
		}
		clientOpts = append(clientOpts, ping.WithEventPublisher(publisher))
		closers = append(closers, publisher)
	}

	client, err := ping.NewClient(clientOpts...)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return client, cleanup, nil
}

// storage selects the cookie and token storage. Without --store or --redis
// nothing outlives the process.
func (o *options) storage() ([]ping.ClientOption, io.Closer, error) {
	switch {
	case o.redisURL != "":
		redisOpts, err := redis.ParseURL(o.redisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid redis URL: %w", err)
		}
		rdb := redis.NewClient(redisOpts)
		cookies, err := storage.NewRedis[[]orchestrate.StoredCookie](rdb, "cookies", storage.WithPrefix("pingflow:"))
		if err != nil {
			_ = rdb.Close()
			return nil, nil, err
		}
		tokens, err := storage.NewRedis[oidc.Token](rdb, "tokens", storage.WithPrefix("pingflow:"))
		if err != nil {
			_ = rdb.Close()
			return nil, nil, err
		}
		return []ping.ClientOption{ping.WithCookieStorage(cookies), ping.WithTokenStorage(tokens)}, rdb, nil

	case o.store != "":
		db, err := storage.OpenSQLite(o.store)
		if err != nil {
			return nil, nil, err
		}
		cookies, err := storage.NewSQLite[[]orchestrate.StoredCookie](db, "cookies")
		if err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		tokens, err := storage.NewSQLite[oidc.Token](db, "tokens")
		if err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return []ping.ClientOption{ping.WithCookieStorage(cookies), ping.WithTokenStorage(tokens)}, db, nil
	}
	return nil, nil, nil
}

// runFlow walks the flow until it succeeds or fails. Error nodes are shown
// and the last form is asked again.
func runFlow(ctx context.Context, client *ping.Client, p *prompter, out io.Writer) error {
	var last *orchestrate.ContinueNode
	node := client.Start(ctx)
	for {
		switch n := node.(type) {
		case *orchestrate.ContinueNode:
			last = n
			if name := davinci.Name(n); name != "" {
				fmt.Fprintln(out, titleStyle.Render(name))
			}
			if desc := davinci.Description(n); desc != "" {
				fmt.Fprintln(out, descriptionStyle.Render(desc))
			}
			if err := p.fill(davinci.Collectors(n)); err != nil {
				return err
			}
			node = n.Next(ctx)

		case *orchestrate.ErrorNode:
			fmt.Fprintln(out, errorStyle.Render(n.Message))
			if last == nil {
				return fmt.Errorf("flow stopped: %s", n.Message)
			}
			if err := p.fill(davinci.Collectors(last)); err != nil {
				return err
			}
			node = last.Next(ctx)

		case *orchestrate.SuccessNode:
			return printSuccess(ctx, client, out)

		case *orchestrate.FailureNode:
			return n

		default:
			return fmt.Errorf("unexpected node %T", node)
		}
	}
}

func printSuccess(ctx context.Context, client *ping.Client, out io.Writer) error {
	fmt.Fprintln(out, successStyle.Render("Signed on"))
	user, ok := client.User()
	if !ok {
		return nil
	}
	token, err := user.Token(ctx)
	if err != nil {
		return fmt.Errorf("failed to get token: %w", err)
	}

	lines := []string{
		"Token type: " + token.TokenType,
		"Scope:      " + token.Scope,
	}
	if !token.ExpiresAt.IsZero() {
		lines = append(lines, "Expires:    "+token.ExpiresAt.Format(time.RFC3339))
	}
	lines = append(lines, "Access:     "+truncate(token.AccessToken, 40))
	fmt.Fprintln(out, cardStyle.Render(strings.Join(lines, "\n")))
	return nil
}

func envOr(name, def string) string {
	if v, ok := os.LookupEnv(name); ok && v != "" {
		return v
	}
	return def
}

func envInt(name string, def int) int {
	n, err := strconv.Atoi(envOr(name, ""))
	if err != nil {
		return def
	}
	return n
}

func envList(name string, def []string) []string {
	v := envOr(name, "")
	if v == "" {
		return def
	}
	return strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == ' ' })
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
