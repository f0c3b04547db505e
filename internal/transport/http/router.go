// Package httptransport is the thin HTTP layer. Handlers delegate to domain
// services without embedding business logic, so transport concerns stay
// isolated.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	respond "custodia/internal/transport/http/json"
	"custodia/pkg/platform/middleware/auth"
	"custodia/pkg/platform/middleware/metadata"
	"custodia/pkg/platform/middleware/request"
)

// RouterConfig carries the cross-cutting dependencies for the router.
type RouterConfig struct {
	Logger         *slog.Logger
	Validator      auth.Validator
	Metadata       *metadata.Middleware
	RequestMetrics *request.Metrics
	RequestTimeout time.Duration
	MaxBodyBytes   int64
}

// NewRouter wires all public endpoints with the middleware stack. Everything
// under /v1 requires a bearer identity; only /health is anonymous.
func NewRouter(records *RecordHandler, consents *ConsentHandler, cfg RouterConfig) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = maxContentBytes
	}
	if cfg.Metadata == nil {
		cfg.Metadata = metadata.NewMiddleware(nil)
	}

	r := chi.NewRouter()
	r.Use(request.Recovery(cfg.Logger))
	r.Use(request.RequestID)
	r.Use(request.FixedClock)
	r.Use(cfg.Metadata.Handler)
	r.Use(request.Logger(cfg.Logger))
	r.Use(request.Timeout(cfg.RequestTimeout))
	r.Use(request.ContentTypeJSON)
	r.Use(request.BodyLimit(cfg.MaxBodyBytes))
	r.Use(request.LatencyMiddleware(cfg.RequestMetrics))

	r.Get("/health", handleHealth)

	r.Route("/v1", func(api chi.Router) {
		api.Use(auth.RequireAuth(cfg.Validator, cfg.Logger))
		records.Register(api)
		consents.Register(api)
	})

	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	respond.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
