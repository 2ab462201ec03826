package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/victimvoice/internal/client"
	"github.com/wolfeidau/victimvoice/internal/config"
	"github.com/wolfeidau/victimvoice/internal/export"
	"github.com/wolfeidau/victimvoice/internal/logger"
	"github.com/wolfeidau/victimvoice/internal/models"
	"github.com/wolfeidau/victimvoice/internal/requests"
	"github.com/wolfeidau/victimvoice/internal/session"
	"github.com/wolfeidau/victimvoice/internal/telemetry"
	"golang.org/x/oauth2"
)

type Globals struct {
	Debug      bool
	Version    string
	ConfigFile string
	Server     string
	TokenDir   string

	// Out receives command output; nil means stdout.
	Out io.Writer
}

func (g *Globals) out() io.Writer {
	if g.Out == nil {
		return os.Stdout
	}
	return g.Out
}

// env is what every command needs once flags and config are resolved.
type env struct {
	cfg      config.Config
	out      io.Writer
	store    *session.Store
	guard    *session.Guard
	notifier *requests.PrintNotifier
	otel     *telemetry.Telemetry
}

func (g *Globals) setup(ctx context.Context) (*env, error) {
	log.Logger = logger.Setup(g.Debug)

	cfg, err := config.Load(g.ConfigFile)
	if err != nil {
		return nil, err
	}
	if g.Server != "" {
		cfg.ServerURL = g.Server
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	if g.TokenDir != "" {
		cfg.TokenDir = g.TokenDir
	}
	if cfg.Debug && !g.Debug {
		log.Logger = logger.Setup(true)
	}

	store, err := session.NewStore(cfg.TokenDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token store: %w", err)
	}

	otel, err := telemetry.Setup(ctx, telemetry.Options{ServiceName: "vvcli", Version: g.Version})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize telemetry, continuing without metrics")
		otel = &telemetry.Telemetry{Metrics: telemetry.NoopMetrics()}
	}

	log.Debug().Str("server", cfg.ServerURL).Str("version", g.Version).Msg("configuration loaded")

	out := g.out()
	return &env{
		cfg:      cfg,
		out:      out,
		store:    store,
		guard:    session.NewGuard(store),
		notifier: requests.NewPrintNotifier(out),
		otel:     otel,
	}, nil
}

func (e *env) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.otel.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to shutdown telemetry")
	}
}

func (e *env) client(tokens oauth2.TokenSource) *client.Client {
	return client.New(client.Config{
		ServerURL:  e.cfg.ServerURL,
		Timeout:    e.cfg.Timeout,
		MaxRetries: e.cfg.MaxRetries,
		CacheDir:   e.cfg.CacheDir,
		Debug:      e.cfg.Debug,
		Metrics:    e.otel.Metrics,
	}, tokens)
}

// session runs the guard for role and turns a redirect into a login hint.
func (e *env) session(role models.Role) (*session.Session, error) {
	sess, err := e.guard.Check(role)
	if err == nil {
		return sess, nil
	}

	var ue *session.UnauthenticatedError
	if errors.As(err, &ue) {
		return nil, fmt.Errorf("%w\n\nRun '%s' to log in", err, loginHint(role))
	}
	return nil, err
}

func loginHint(role models.Role) string {
	if role == models.RoleAdmin {
		return "vvcli admin login --email EMAIL"
	}
	return "vvcli login send-otp --phone PHONE"
}

func (e *env) dates() export.DateOptions {
	return export.DateOptions{Layout: e.cfg.DateLayout}
}
