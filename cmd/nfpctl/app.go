// AngelaMos | 2026
// app.go

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/nfphealth/nfp-backend/internal/client"
	"github.com/nfphealth/nfp-backend/internal/config"
	"github.com/nfphealth/nfp-backend/internal/connectivity"
	"github.com/nfphealth/nfp-backend/internal/core"
	"github.com/nfphealth/nfp-backend/internal/enquiry"
	"github.com/nfphealth/nfp-backend/internal/events"
	"github.com/nfphealth/nfp-backend/internal/guard"
	"github.com/nfphealth/nfp-backend/internal/localstore"
	"github.com/nfphealth/nfp-backend/internal/outbox"
	"github.com/nfphealth/nfp-backend/internal/rating"
	"github.com/nfphealth/nfp-backend/internal/role"
	"github.com/nfphealth/nfp-backend/internal/session"
	"github.com/nfphealth/nfp-backend/internal/submission"
)

// Command annotations read by the guard.
const (
	annotAccess = "nfp.access"
	annotRoles  = "nfp.roles"
	annotNoApp  = "nfp.noapp"

	accessGuest = "guest"
	accessAuth  = "auth"
)

var (
	errSignInRequired = errors.New("sign in required: run `nfpctl login` first")
	errAlreadySigned  = errors.New("already signed in: run `nfpctl logout` first")
	errNotPermitted   = errors.New("your role does not allow this command")
)

// app holds the per-invocation wiring shared by every command.
type app struct {
	configPath string
	jsonOut    bool
	verbose    bool

	out     io.Writer
	cfg     *config.Config
	logger  *slog.Logger
	bus     *events.Bus
	backend localstore.Backend
	closeFn func() error

	client   *client.Client
	session  *session.Session
	pipeline *submission.Pipeline
	outbox   *outbox.Outbox
	ratings  *rating.LocalBook
	monitor  *connectivity.Monitor
}

func (a *app) setup(cmd *cobra.Command) error {
	ctx := cmd.Context()

	_ = godotenv.Load() //nolint:errcheck // .env is optional

	cfg, err := config.LoadClient(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.out = cmd.OutOrStdout()
	a.logger = newLogger(cmd.ErrOrStderr(), cfg.Log.Level, a.verbose)
	a.bus = events.NewBus(a.logger)

	backend, closeFn, err := localstore.Open(ctx, cfg.Store, cfg.Redis)
	if err != nil {
		return fmt.Errorf("open local store: %w", err)
	}
	a.backend = backend
	a.closeFn = closeFn

	a.client, err = client.New(cfg.Client,
		client.WithSubmitURL(cfg.Submission.RemoteURL),
		client.WithSubmitTimeout(cfg.Submission.Timeout),
		client.WithLogger(a.logger),
	)
	if err != nil {
		return err
	}

	a.session = session.New(a.client, a.client,
		session.WithBus(a.bus),
		session.WithLogger(a.logger),
		session.WithAdminDomain(cfg.Admin.EmailDomain),
	)
	if err := a.session.HandleIdentityChange(ctx, a.client.Identity()); err != nil {
		a.logger.DebugContext(ctx, "session resolved without profile", "error", err)
	}

	a.pipeline = submission.New(backend, enquiry.RulesFromConfig(cfg.Submission),
		submission.WithRemote(a.client),
		submission.WithBus(a.bus),
		submission.WithLogger(a.logger),
		submission.WithFallbackDelay(cfg.Submission.FallbackDelay),
	)
	a.outbox = outbox.New(backend, a.pipeline, a.logger)
	a.ratings = rating.NewLocalBook(backend)
	a.monitor = connectivity.NewMonitor(cfg.Client.APIURL, cfg.Connectivity, a.logger)

	return a.authorize(ctx, cmd)
}

func (a *app) close() error {
	if a.closeFn == nil {
		return nil
	}
	return a.closeFn()
}

// authorize applies the command's access annotations through the guard.
func (a *app) authorize(ctx context.Context, cmd *cobra.Command) error {
	route := routeFor(cmd)

	decision, err := guard.Check(ctx, a.session, route)
	if err != nil {
		return err
	}

	switch decision {
	case guard.RedirectLogin:
		a.logger.DebugContext(ctx, "guard redirect", "target", guard.LoginTarget(route))
		return errSignInRequired
	case guard.RedirectHome:
		if route.GuestOnly && a.session.IsAuthenticated() {
			return errAlreadySigned
		}
		return errNotPermitted
	}
	return nil
}

func routeFor(cmd *cobra.Command) guard.Route {
	route := guard.Route{Path: cmd.CommandPath()}

	for c := cmd; c != nil; c = c.Parent() {
		switch c.Annotations[annotAccess] {
		case accessGuest:
			route.GuestOnly = true
		case accessAuth:
			route.RequiresAuth = true
		}
		if roles := c.Annotations[annotRoles]; roles != "" && len(route.Roles) == 0 {
			route.Roles = strings.Split(roles, ",")
			route.RequiresAuth = true
		}
	}
	return route
}

func needsApp(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations[annotNoApp] == "true" {
			return false
		}
	}
	return true
}

func requireAuth(cmd *cobra.Command) *cobra.Command {
	setAnnotation(cmd, annotAccess, accessAuth)
	return cmd
}

func guestOnly(cmd *cobra.Command) *cobra.Command {
	setAnnotation(cmd, annotAccess, accessGuest)
	return cmd
}

func adminOnly(cmd *cobra.Command) *cobra.Command {
	setAnnotation(cmd, annotRoles, role.Admin)
	return cmd
}

func setAnnotation(cmd *cobra.Command, key, value string) {
	if cmd.Annotations == nil {
		cmd.Annotations = map[string]string{}
	}
	cmd.Annotations[key] = value
}

func (a *app) print(v any, text func(w io.Writer) error) error {
	if a.jsonOut || text == nil {
		enc := json.NewEncoder(a.out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	return text(a.out)
}

// explain turns field errors into a readable report.
func explain(err error) error {
	verr, ok := core.AsValidation(err)
	if !ok {
		return err
	}

	var b strings.Builder
	b.WriteString("submission rejected:")
	for _, field := range slices.Sorted(maps.Keys(verr.Fields)) {
		name := field
		if field == core.GlobalField {
			name = "form"
		}
		fmt.Fprintf(&b, "\n  %s: %s", name, verr.Fields[field])
	}
	return errors.New(b.String())
}

func newLogger(w io.Writer, level string, verbose bool) *slog.Logger {
	lvl := slog.LevelWarn
	switch {
	case verbose:
		lvl = slog.LevelDebug
	case level == "debug":
		lvl = slog.LevelDebug
	case level == "error":
		lvl = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
