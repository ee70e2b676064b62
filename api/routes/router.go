package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/partdash/partdash-backend/api/controllers"
	"github.com/partdash/partdash-backend/api/middleware"
	"github.com/partdash/partdash-backend/pkg/config"
	"github.com/partdash/partdash-backend/pkg/logger"
)

// Services carries the wired service layer into the router.
type Services struct {
	Cancellations controllers.CancellationService
	Compensation  controllers.CompensationService
	Disputes      controllers.DisputeService
	Sweeps        controllers.SweepRunner
}

// Deps carries the infrastructure handles the router exposes directly.
type Deps struct {
	ReadyChecks map[string]controllers.Pinger
	Metrics     http.Handler
}

func NewRouter(cfg *config.Config, logg *logger.Logger, svcs Services, deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.ReadyChecks))
	})

	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/orders/{orderId}", func(r chi.Router) {
			r.Post("/cancellations", controllers.CancelOrder(svcs.Cancellations, logg))
			r.Post("/disputes", controllers.OpenDispute(svcs.Disputes, logg))
		})

		r.Route("/disputes/{disputeId}", func(r chi.Router) {
			r.Post("/response", controllers.RecordGarageResponse(svcs.Disputes, logg))
			r.Post("/resolution", controllers.ResolveDispute(svcs.Disputes, logg))
		})

		r.Route("/compensations", func(r chi.Router) {
			r.Get("/pending", controllers.ListCompensationReviews(svcs.Compensation, logg))
			r.Post("/{orderId}/decision", controllers.DecideCompensation(svcs.Compensation, logg))
		})
	})

	// Operator-only surface; fronted by the internal load balancer.
	r.Route("/internal", func(r chi.Router) {
		r.Post("/sweeps/{name}", controllers.TriggerSweep(svcs.Sweeps, logg))
	})

	return r
}
