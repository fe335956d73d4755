package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/operatornet/fedgate/internal/httpserver/deps"
)

func init() { Register(registerLedger) }

// registerLedger exposes the embedded node under /ledger so that peer
// gateways can point their FEDGATE_LEDGER_URL here. No-op in remote mode.
func registerLedger(r chi.Router, d deps.Deps) {
	if d.LedgerHandler == nil {
		return
	}
	r.Mount("/ledger", d.LedgerHandler)
}
