package httpx

import (
	"log/slog"
	"net/http"

	"github.com/target/bulkmove/internal/service"
)

// RouterServices holds the dependencies the HTTP surface needs.
type RouterServices struct {
	Transfers    *service.TransferService
	HealthChecks []HealthCheck
	Logger       *slog.Logger
}

// NewRouter builds the ServeMux with logging and panic recovery applied.
func NewRouter(svcs RouterServices) http.Handler {
	logger := svcs.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "http")

	mux := http.NewServeMux()

	health := &HealthHandlers{Checks: svcs.HealthChecks}
	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("HEAD /healthz", health.Healthz)

	if svcs.Transfers != nil {
		th := &TransferHandlers{Svc: svcs.Transfers}
		mux.HandleFunc("POST /api/transfers", th.Start)
		mux.HandleFunc("GET /api/transfers", th.List)
		mux.HandleFunc("GET /api/transfers/{id}", th.Status)
		mux.HandleFunc("POST /api/transfers/{id}/cancel", th.Cancel)

		ch := &CollectionHandlers{Svc: svcs.Transfers}
		mux.HandleFunc("GET /api/collections", ch.List)
		mux.HandleFunc("GET /api/collections/{id}", ch.Members)
	}

	return Chain(mux, Recover(logger), Logging(logger))
}
