package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/operatornet/fedgate/internal/httpserver/deps"
	"github.com/operatornet/fedgate/internal/httpserver/handlers"
)

func init() { Register(registerFederation) }

func registerFederation(r chi.Router, d deps.Deps) {
	r.Post("/register_domain", handlers.RegisterDomain(d))
	r.Delete("/unregister_domain", handlers.UnregisterDomain(d))
	r.Post("/create_service_announcement", handlers.CreateServiceAnnouncement(d))
	r.Post("/place_bid", handlers.PlaceBid(d))
	r.Post("/choose_provider", handlers.ChooseProvider(d))
	r.Post("/send_endpoint_info", handlers.SendEndpointInfo(d))
	r.Post("/service_deployed", handlers.ServiceDeployed(d))
}
