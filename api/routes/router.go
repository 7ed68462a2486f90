package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/vendorledger/api/controllers"
	analyticscontrollers "github.com/angelmondragon/vendorledger/api/controllers/analytics"
	settlementcontrollers "github.com/angelmondragon/vendorledger/api/controllers/settlements"
	withdrawalcontrollers "github.com/angelmondragon/vendorledger/api/controllers/withdrawals"
	"github.com/angelmondragon/vendorledger/api/middleware"
	"github.com/angelmondragon/vendorledger/internal/analytics"
	"github.com/angelmondragon/vendorledger/internal/balances"
	"github.com/angelmondragon/vendorledger/internal/cashevents"
	"github.com/angelmondragon/vendorledger/internal/creditguard"
	"github.com/angelmondragon/vendorledger/internal/notifications"
	"github.com/angelmondragon/vendorledger/internal/reporting"
	"github.com/angelmondragon/vendorledger/internal/settlements"
	"github.com/angelmondragon/vendorledger/internal/vendors"
	"github.com/angelmondragon/vendorledger/internal/withdrawals"
	"github.com/angelmondragon/vendorledger/pkg/config"
	"github.com/angelmondragon/vendorledger/pkg/enums"
	"github.com/angelmondragon/vendorledger/pkg/logger"
	"github.com/angelmondragon/vendorledger/pkg/metrics"
	"github.com/angelmondragon/vendorledger/pkg/outbox"
)

// Store backs idempotent replay and rate limiting.
type Store interface {
	middleware.ResponseStore
	middleware.WindowCounter
}

// Services holds the domain services exposed over HTTP. A nil analytics
// service disables the analytics route with a 503.
type Services struct {
	Vendors       vendors.Service
	Balances      balances.Service
	CashEvents    cashevents.Service
	CreditGuard   creditguard.Service
	Settlements   settlements.Service
	Withdrawals   withdrawals.Service
	Reporting     reporting.Service
	Notifications notifications.Service
	Analytics     analytics.Service
	DeadLetters   outbox.DeadLetters
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	store Store,
	readiness map[string]controllers.Pinger,
	registry *prometheus.Registry,
	svc Services,
) http.Handler {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.AccessLog(logg, metrics.NewHTTPMetrics(registry)),
		middleware.CORS(cfg.App),
	)

	submissionPolicy := middleware.NewRateLimitPolicy(
		"submission",
		cfg.RateLimit.Window,
		cfg.RateLimit.SubmissionIPMax,
		cfg.RateLimit.SubmissionVendorMax,
	)
	internalPolicy := middleware.NewRateLimitPolicy(
		"internal",
		cfg.RateLimit.Window,
		cfg.RateLimit.InternalIPMax,
		0,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readiness))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(logg, enums.ActorRoleAdmin))
		r.Use(middleware.Idempotency(store, logg))

		r.Route("/settlements", func(r chi.Router) {
			r.Get("/pending", settlementcontrollers.AdminListPending(svc.Settlements, logg))
			r.Get("/dashboard", controllers.AdminDashboard(svc.Reporting, logg))
			r.Get("/vendors", controllers.AdminVendorBalances(svc.Reporting, logg))
			r.Get("/{settlementId}", settlementcontrollers.AdminGet(svc.Settlements, logg))
			r.Post("/{settlementId}/approve", settlementcontrollers.AdminApprove(svc.Settlements, logg))
			r.Post("/{settlementId}/reject", settlementcontrollers.AdminReject(svc.Settlements, logg))
		})

		r.Route("/withdrawals", func(r chi.Router) {
			r.Get("/pending", withdrawalcontrollers.AdminListPending(svc.Withdrawals, logg))
			r.Get("/{withdrawalId}", withdrawalcontrollers.AdminGet(svc.Withdrawals, logg))
			r.Post("/{withdrawalId}/approve", withdrawalcontrollers.AdminApprove(svc.Withdrawals, logg))
			r.Post("/{withdrawalId}/reject", withdrawalcontrollers.AdminReject(svc.Withdrawals, logg))
		})

		r.Route("/vendors", func(r chi.Router) {
			r.Post("/", controllers.AdminRegisterVendor(svc.Vendors, logg))
			r.Route("/{vendorId}", func(r chi.Router) {
				r.Get("/", controllers.AdminGetVendor(svc.Vendors, logg))
				r.Get("/balance", controllers.AdminVendorBalance(svc.Balances, logg))
				r.Post("/reconcile", controllers.AdminReconcileVendor(svc.Balances, logg))
				r.Post("/cash-limit", controllers.AdminUpdateCashLimit(svc.CreditGuard, logg))
				r.Post("/block", controllers.AdminBlockVendor(svc.CreditGuard, logg))
				r.Post("/unblock", controllers.AdminUnblockVendor(svc.CreditGuard, logg))
				r.Get("/cash-events", controllers.AdminListCashEvents(svc.CashEvents, logg))
				r.Post("/cash-events", controllers.AdminRecordCashEvent(svc.CashEvents, logg))
			})
		})

		r.Get("/analytics/ledger", analyticscontrollers.LedgerAnalytics(svc.Analytics, logg))

		r.Route("/outbox/dlq", func(r chi.Router) {
			r.Get("/", controllers.AdminListDeadLetters(svc.DeadLetters, logg))
			r.Post("/{eventId}/replay", controllers.AdminReplayDeadLetter(svc.DeadLetters, logg))
		})
	})

	r.Route("/api/v1/vendor", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(logg, enums.ActorRoleVendor))
		r.Use(middleware.VendorContext(logg))
		r.Use(middleware.Idempotency(store, logg))

		r.Get("/balance", controllers.VendorBalance(svc.Balances, logg))
		r.Get("/cash-events", controllers.VendorListCashEvents(svc.CashEvents, logg))

		r.Route("/settlements", func(r chi.Router) {
			r.With(middleware.RateLimit(submissionPolicy, store, logg)).Post("/", settlementcontrollers.VendorSubmit(svc.Settlements, logg))
			r.Get("/", settlementcontrollers.VendorList(svc.Settlements, logg))
			r.Get("/{settlementId}", settlementcontrollers.VendorGet(svc.Settlements, logg))
		})

		r.Route("/withdrawals", func(r chi.Router) {
			r.With(middleware.RateLimit(submissionPolicy, store, logg)).Post("/", withdrawalcontrollers.VendorRequest(svc.Withdrawals, logg))
			r.Get("/", withdrawalcontrollers.VendorList(svc.Withdrawals, logg))
			r.Get("/{withdrawalId}", withdrawalcontrollers.VendorGet(svc.Withdrawals, logg))
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(svc.Notifications, logg))
			r.Get("/unread-count", controllers.UnreadNotificationCount(svc.Notifications, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(svc.Notifications, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(svc.Notifications, logg))
		})
	})

	r.Route("/api/internal/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(logg, enums.ActorRoleSystem))
		r.Use(middleware.RateLimit(internalPolicy, store, logg))
		r.Use(middleware.Idempotency(store, logg))

		r.Post("/cash-events", controllers.InternalRecordCashEvent(svc.CashEvents, logg))
	})

	return r
}
