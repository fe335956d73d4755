package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/operatornet/fedgate/internal/httpserver/deps"
	"github.com/operatornet/fedgate/internal/httpserver/handlers"
)

func init() { Register(registerQueries) }

func registerQueries(r chi.Router, d deps.Deps) {
	r.Get("/web3_info", handlers.Web3Info(d))
	r.Get("/tx_receipt", handlers.TxReceipt(d))
	r.Get("/service_announcements", handlers.ServiceAnnouncements(d))
	r.Get("/bids", handlers.Bids(d))
	r.Get("/is_winner", handlers.IsWinner(d))
	r.Get("/winner_status", handlers.WinnerStatus(d))
	r.Get("/service_state", handlers.ServiceState(d))
	r.Get("/service_info", handlers.ServiceInfo(d))
}
