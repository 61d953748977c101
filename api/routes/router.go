package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/paygate-backend/api/controllers"
	webhookcontrollers "github.com/angelmondragon/paygate-backend/api/controllers/webhooks"
	"github.com/angelmondragon/paygate-backend/api/middleware"
	"github.com/angelmondragon/paygate-backend/internal/reconcile"
	"github.com/angelmondragon/paygate-backend/pkg/config"
	"github.com/angelmondragon/paygate-backend/pkg/db"
	"github.com/angelmondragon/paygate-backend/pkg/logger"
	"github.com/angelmondragon/paygate-backend/pkg/redis"
)

type signingSecret struct {
	secret string
}

func (s signingSecret) WebhookSigningSecret() string {
	return s.secret
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	reconcileService *reconcile.Service,
	deliveryGuard *reconcile.IdempotencyGuard,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/processor", webhookcontrollers.ProcessorWebhook(
			reconcileService,
			signingSecret{secret: cfg.Webhook.SigningSecret},
			deliveryGuard,
			logg,
		))
	})

	return r
}
