package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/operatornet/fedgate/internal/httpserver/deps"
	"github.com/operatornet/fedgate/internal/httpserver/handlers"
)

func init() { Register(registerSubscriptions) }

func registerSubscriptions(r chi.Router, d deps.Deps) {
	r.Post("/subscriptions", handlers.CreateSubscription(d))
	r.Get("/subscriptions", handlers.ListSubscriptions(d))
	r.Delete("/subscriptions/{id}", handlers.DeleteSubscription(d))
}
