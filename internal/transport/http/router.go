package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/iliamunaev/payment-orchestration/internal/middleware"
)

// Routes served by NewRouter.
const (
	PathBlocking    = "/payments/process-blocking"
	PathNonBlocking = "/payments/process-nonblocking"
	PathHealth      = "/health"
	PathStats       = "/debug/stats"
)

// NewRouter mounts h on a chi router with access logging and panic recovery.
func NewRouter(h *Handler, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logging(logger))
	r.Use(chimw.Recoverer)

	r.Get(PathHealth, HandleHealth)
	r.Get(PathStats, h.HandleStats)
	r.Post(PathBlocking, h.HandleBlocking)
	r.Post(PathNonBlocking, h.HandleNonBlocking)

	return r
}
