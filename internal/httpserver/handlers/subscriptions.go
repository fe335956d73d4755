package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/operatornet/fedgate/internal/fault"
	"github.com/operatornet/fedgate/internal/httpserver/deps"
	"github.com/operatornet/fedgate/internal/logger"
)

type subscriptionCreated struct {
	SubscriptionID string `json:"subscription_id"`
}

func CreateSubscription(d deps.Deps) http.HandlerFunc {
	type body struct {
		EventName   string `json:"event_name"`
		CallbackURL string `json:"callback_url"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var b body
		if err := decodeBody(r, &b); err != nil {
			writeFault(w, err)
			return
		}
		if b.EventName == "" || b.CallbackURL == "" {
			writeValidation(w, "event_name and callback_url are required")
			return
		}

		// The watermark starts at current height so the subscriber only
		// sees events sealed after this call.
		height, err := d.Node.Height(r.Context())
		if err != nil {
			writeFault(w, fault.New(fault.KindLedgerUnavailable, "%v", err))
			return
		}
		sub, err := d.Registry.Create(r.Context(), b.EventName, b.CallbackURL, height)
		if err != nil {
			writeFault(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, subscriptionCreated{SubscriptionID: sub.ID})
	}
}

func ListSubscriptions(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, d.Registry.List())
	}
}

func DeleteSubscription(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := d.Registry.Delete(r.Context(), id); err != nil {
			writeFault(w, err)
			return
		}
		d.Logger.Debug("subscription removed via API",
			logger.String("subscription_id", id))
		w.WriteHeader(http.StatusNoContent)
	}
}
