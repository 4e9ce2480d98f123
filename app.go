package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"tariconnect/config"
	"tariconnect/database"
	"tariconnect/internal/api/webhooks"
	routes "tariconnect/internal/app/http"
	"tariconnect/internal/app/http/middleware"
	"tariconnect/internal/apperr"
	"tariconnect/internal/domain/billing"
	"tariconnect/internal/domain/users"
	"tariconnect/internal/gateway"
	"tariconnect/internal/infra/mpesa"
	"tariconnect/internal/infra/paystack"
	"tariconnect/internal/infra/realtime"
	"tariconnect/internal/infra/stripe"
	"tariconnect/internal/lifecycle"
	"tariconnect/internal/logging"
	"tariconnect/internal/metrics"
	"tariconnect/internal/replication"
	"tariconnect/internal/store"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// app holds the services every command is built from.
type app struct {
	cfg   *config.Config
	log   zerolog.Logger
	store *store.Store
	orch  *lifecycle.Orchestrator
	relay *replication.Relay
	feed  realtime.Feed
	close func()
}

func bootstrap(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	db, err := database.Open(cfg.DBURL)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		return nil, err
	}
	s := store.New(db)

	closers := []func(){}
	if sqlDB, err := db.DB(); err == nil {
		closers = append(closers, func() { _ = sqlDB.Close() })
	}

	hc := gateway.NewHTTPClient(cfg.GatewayTimeout)
	opts := []lifecycle.Option{lifecycle.WithLogger(logger)}
	if cfg.Paystack.Enabled() {
		callback := cfg.Paystack.CallbackURL
		if callback == "" {
			callback = cfg.AppURL + "/billing/callback"
		}
		opts = append(opts, lifecycle.WithCardGateway(billing.MethodPaystack, paystack.New(paystack.Config{
			SecretKey:   cfg.Paystack.SecretKey,
			BaseURL:     cfg.Paystack.BaseURL,
			CallbackURL: callback,
			HTTPClient:  hc,
		})))
	}
	if cfg.Stripe.Enabled() {
		opts = append(opts, lifecycle.WithCardGateway(billing.MethodStripe, stripe.NewCheckout(stripe.Config{
			SecretKey:  cfg.Stripe.SecretKey,
			SuccessURL: cfg.AppURL + "/billing/success?session_id={CHECKOUT_SESSION_ID}",
			CancelURL:  cfg.AppURL + "/billing/cancelled",
		})))
	}
	if cfg.Mpesa.Enabled() {
		opts = append(opts, lifecycle.WithMobileMoney(mpesa.New(mpesa.Config{
			ConsumerKey:    cfg.Mpesa.ConsumerKey,
			ConsumerSecret: cfg.Mpesa.ConsumerSecret,
			ShortCode:      cfg.Mpesa.ShortCode,
			Passkey:        cfg.Mpesa.Passkey,
			CallbackURL:    cfg.Mpesa.CallbackURL,
			BaseURL:        cfg.Mpesa.BaseURL,
			RelayURL:       cfg.Mpesa.RelayURL,
			HTTPClient:     hc,
		})))
	}
	orch := lifecycle.New(s, opts...)

	var mirror interface {
		replication.Mirror
		realtime.Feed
	}
	if cfg.RedisURL != "" {
		rdb, err := realtime.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		closers = append(closers, func() { _ = rdb.Close() })
		mirror = realtime.NewRedisMirror(rdb)
	} else {
		logger.Warn().Msg("REDIS_URL not set; mirroring into process memory")
		mirror = realtime.NewMemory()
	}
	relayCfg := replication.DefaultConfig()
	relayCfg.Interval = cfg.RelayInterval

	return &app{
		cfg:   cfg,
		log:   logger,
		store: s,
		orch:  orch,
		relay: replication.New(s, mirror, relayCfg, logger),
		feed:  mirror,
		close: func() {
			for i := len(closers) - 1; i >= 0; i-- {
				closers[i]()
			}
		},
	}, nil
}

func runMigrate(ctx context.Context) error {
	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.close()
	a.log.Info().Msg("database schema is up to date")
	return nil
}

func runSweep(ctx context.Context, out io.Writer) error {
	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	report, err := a.orch.SweepExpiredTrials(ctx)
	if err != nil {
		return err
	}
	// Drain the removals so the mirror matches before the process exits.
	if _, err := a.relay.RunOnce(ctx); err != nil {
		return err
	}
	return printJSON(out, report)
}

func runReconcile(ctx context.Context, out io.Writer) error {
	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	rec, err := a.relay.Reconcile(ctx)
	if err != nil {
		return err
	}
	if _, err := a.relay.RunOnce(ctx); err != nil {
		return err
	}
	st, err := a.relay.Status(ctx)
	if err != nil {
		return err
	}
	st.Requeued = rec.Requeued
	st.Superseded = rec.Superseded
	return printJSON(out, st)
}

// setRole grants role to an existing user.
func setRole(ctx context.Context, s *store.Store, userID, role string) (*users.User, error) {
	const op = "set user role"
	userID = strings.TrimSpace(userID)
	role = strings.ToLower(strings.TrimSpace(role))
	if userID == "" {
		return nil, apperr.Validation(op, "user id is required")
	}
	if !users.ValidRole(role) {
		return nil, apperr.Validation(op, fmt.Sprintf("role must be %q or %q", users.RoleUser, users.RoleAdmin))
	}
	if err := s.SetUserRole(ctx, userID, role); err != nil {
		return nil, err
	}
	return s.GetUser(ctx, userID)
}

func runSetRole(ctx context.Context, out io.Writer, userID, role string) error {
	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	u, err := setRole(ctx, a.store, userID, role)
	if err != nil {
		return err
	}
	a.log.Info().Str("user_id", u.ID).Str("role", u.Role).Msg("user role updated")
	return printJSON(out, u)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runServe(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	authOpts := []middleware.AuthOption{}
	if a.cfg.FirebaseProjectID != "" {
		authOpts = append(authOpts, middleware.WithFirebase(ctx, a.cfg.FirebaseProjectID))
	}
	if a.cfg.JWTSecret != "" {
		authOpts = append(authOpts, middleware.WithJWTSecret(a.cfg.JWTSecret))
	}

	if a.cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), logging.Middleware(a.log), metrics.Middleware())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Split(a.cfg.CORSOrigin, ","),
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", logging.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", logging.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	routes.RegisterRoutes(r, routes.Deps{
		Store:        a.store,
		Orchestrator: a.orch,
		Relay:        a.relay,
		Feed:         a.feed,
		Auth:         middleware.NewAuthenticator(a.store, authOpts...),
		Webhooks: webhooks.Config{
			PaystackSecret:      a.cfg.Paystack.SecretKey,
			StripeWebhookSecret: a.cfg.Stripe.WebhookSecret,
			MpesaCallbackToken:  a.cfg.Mpesa.CallbackToken,
		},
		MetaDefaults: a.cfg.Meta,
		Logger:       a.log,
	})

	sched, err := schedule(ctx, a)
	if err != nil {
		return err
	}
	sched.Start()
	defer func() { <-sched.Stop().Done() }()

	go a.relay.Run(ctx)

	srv := &http.Server{
		Addr:              ":" + a.cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		// Event streams end when the process is asked to stop.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}
	errCh := make(chan error, 1)
	go func() {
		a.log.Info().Str("addr", srv.Addr).Strs("payment_methods", methodNames(a.orch)).Msg("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// schedule registers the periodic trial sweep and mirror reconciliation.
func schedule(ctx context.Context, a *app) (*cron.Cron, error) {
	cl := logging.CronLogger(a.log)
	c := cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)))

	if _, err := c.AddFunc(a.cfg.TrialSweepCron, func() {
		report, err := a.orch.SweepExpiredTrials(ctx)
		if err != nil {
			a.log.Error().Err(err).Msg("trial sweep failed")
			return
		}
		a.log.Info().Int("purged", report.Purged).Int("skipped", report.Skipped).Int("failed", report.Failed).Msg("trial sweep finished")
	}); err != nil {
		return nil, fmt.Errorf("invalid TRIAL_SWEEP_CRON %q: %w", a.cfg.TrialSweepCron, err)
	}

	if _, err := c.AddFunc(a.cfg.MirrorReconcileCron, func() {
		if _, err := a.relay.Reconcile(ctx); err != nil {
			a.log.Error().Err(err).Msg("mirror reconcile failed")
		}
	}); err != nil {
		return nil, fmt.Errorf("invalid MIRROR_RECONCILE_CRON %q: %w", a.cfg.MirrorReconcileCron, err)
	}
	return c, nil
}

func methodNames(o *lifecycle.Orchestrator) []string {
	out := []string{string(billing.MethodAutomatic)}
	for _, m := range o.Methods() {
		out = append(out, string(m))
	}
	return out
}
