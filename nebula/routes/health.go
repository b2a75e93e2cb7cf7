package routes

import (
	"nebula/nebula/controllers"

	"github.com/go-chi/chi/v5"
)

// HealthRoutes answers GET and HEAD so load balancer probes need no body.
func HealthRoutes(ctrl *controllers.HealthController) chi.Router {
	r := chi.NewRouter()
	r.Get("/", ctrl.HealthCheck)
	r.Head("/", ctrl.HealthCheck)
	return r
}
