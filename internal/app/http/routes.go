package routes

import (
	"net/http"

	adminapi "tariconnect/internal/api/admin"
	"tariconnect/internal/api/billing"
	"tariconnect/internal/api/events"
	"tariconnect/internal/api/plans"
	settingsapi "tariconnect/internal/api/settings"
	"tariconnect/internal/api/users"
	"tariconnect/internal/api/webhooks"
	"tariconnect/internal/app/http/middleware"
	"tariconnect/internal/domain/settings"
	"tariconnect/internal/infra/realtime"
	"tariconnect/internal/lifecycle"
	"tariconnect/internal/replication"
	"tariconnect/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Deps are the services the HTTP surface is built from.
type Deps struct {
	Store        *store.Store
	Orchestrator *lifecycle.Orchestrator
	Relay        *replication.Relay
	Feed         realtime.Feed
	Auth         *middleware.Authenticator
	Webhooks     webhooks.Config
	MetaDefaults settings.MetaSettings
	Logger       zerolog.Logger
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	userH := users.NewHandler(d.Orchestrator, d.Store)
	billingH := billing.NewHandler(d.Orchestrator, d.Store)
	plansH := plans.NewHandler(d.Store)
	settingsH := settingsapi.NewHandler(d.Store, d.MetaDefaults)
	adminH := adminapi.NewHandler(d.Orchestrator, d.Store, d.Relay)
	hooks := webhooks.NewHandler(d.Orchestrator, d.Webhooks, d.Logger)
	eventsH := events.NewHandler(d.Feed, d.Logger)

	// Webhooks need the raw body for signature checks, so they bypass sanitizing.
	r.POST("/webhooks/paystack", hooks.Paystack)
	r.POST("/webhooks/mpesa", hooks.Mpesa)
	r.POST("/webhooks/stripe", hooks.Stripe)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	public := r.Group("/")
	public.Use(middleware.SanitizeAndCleanInputMiddleware())
	public.GET("/plans", plansH.ListPlans)
	public.GET("/plans/:id", plansH.GetPlan)

	// Authenticated
	auth := r.Group("/")
	auth.Use(d.Auth.AuthMiddleware(), middleware.SanitizeAndCleanInputMiddleware())
	auth.POST("/account/provision", userH.Provision)
	auth.GET("/me", userH.Me)

	auth.GET("/subscription", billingH.GetSubscription)
	auth.POST("/subscription/ensure", billingH.EnsureSubscription)
	auth.POST("/subscription", billingH.Subscribe)
	auth.POST("/subscription/change-plan", billingH.ChangePlan)
	auth.POST("/subscription/cancel", billingH.Cancel)
	auth.POST("/subscription/renew", billingH.Renew)
	auth.GET("/subscription/events", eventsH.Stream)

	auth.GET("/payments", billingH.GetPaymentHistory)
	auth.GET("/payments/:id", billingH.GetPayment)
	auth.POST("/payments/:id/verify", billingH.VerifyPayment)
	auth.GET("/invoices", billingH.ListInvoices)

	// Subscribed users
	subscribed := auth.Group("/")
	subscribed.Use(middleware.RequireActiveSubscription(d.Store))
	subscribed.GET("/settings/meta", settingsH.GetMeta)
	subscribed.PUT("/settings/meta", settingsH.SaveMeta)

	// Admin routes
	admin := r.Group("/admin")
	admin.Use(d.Auth.AuthMiddleware(), middleware.RequireRole("admin"), middleware.SanitizeAndCleanInputMiddleware())
	admin.GET("/payments", adminH.ListAllPayments)
	admin.PUT("/plans/:id", plansH.UpsertPlan)
	admin.POST("/trials/sweep", adminH.SweepTrials)
	admin.GET("/mirror", adminH.MirrorStatus)
	admin.POST("/mirror/reconcile", adminH.ReconcileMirror)
}
