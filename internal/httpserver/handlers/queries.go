package handlers

import (
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/operatornet/fedgate/internal/contract"
	"github.com/operatornet/fedgate/internal/httpserver/deps"
)

type isWinnerResponse struct {
	IsWinner string `json:"is_winner"` // "yes" or "no"
}

type serviceStateResponse struct {
	ServiceState string `json:"service_state"`
}

type winnerStatusResponse struct {
	Winner string `json:"winner"` // "yes" once a provider has been chosen
}

func Web3Info(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		info, err := d.Facade.NodeInfo(r.Context())
		if err != nil {
			writeFault(w, err)
			return
		}
		writeJSON(w, http.StatusOK, info)
	}
}

func TxReceipt(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimSpace(r.URL.Query().Get("tx_hash"))
		if raw == "" {
			writeValidation(w, "tx_hash query parameter is required")
			return
		}
		receipt, err := d.Facade.TxReceipt(r.Context(), common.HexToHash(raw))
		if err != nil {
			writeFault(w, err)
			return
		}
		writeJSON(w, http.StatusOK, receipt)
	}
}

func ServiceAnnouncements(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		onlyOpen := r.URL.Query().Get("only_open") == "true"
		anns, err := d.Facade.Announcements(r.Context(), onlyOpen)
		if err != nil {
			writeFault(w, err)
			return
		}
		writeJSON(w, http.StatusOK, anns)
	}
}

func Bids(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		serviceID, ok := requireServiceID(w, r)
		if !ok {
			return
		}
		bids, err := d.Facade.Bids(r.Context(), serviceID)
		if err != nil {
			writeFault(w, err)
			return
		}
		writeJSON(w, http.StatusOK, bids)
	}
}

func IsWinner(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		serviceID, ok := requireServiceID(w, r)
		if !ok {
			return
		}
		win, err := d.Facade.IsWinner(r.Context(), serviceID)
		if err != nil {
			writeFault(w, err)
			return
		}
		answer := "no"
		if win {
			answer = "yes"
		}
		writeJSON(w, http.StatusOK, isWinnerResponse{IsWinner: answer})
	}
}

// WinnerStatus answers whether a provider has been chosen for the service,
// regardless of who is asking. Providers poll it before calling is_winner.
func WinnerStatus(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		serviceID, ok := requireServiceID(w, r)
		if !ok {
			return
		}
		state, err := d.Facade.ServiceState(r.Context(), serviceID)
		if err != nil {
			writeFault(w, err)
			return
		}
		answer := "no"
		if state != contract.StateOpen {
			answer = "yes"
		}
		writeJSON(w, http.StatusOK, winnerStatusResponse{Winner: answer})
	}
}

func ServiceState(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		serviceID, ok := requireServiceID(w, r)
		if !ok {
			return
		}
		state, err := d.Facade.ServiceState(r.Context(), serviceID)
		if err != nil {
			writeFault(w, err)
			return
		}
		writeJSON(w, http.StatusOK, serviceStateResponse{ServiceState: state.String()})
	}
}

func ServiceInfo(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		serviceID, ok := requireServiceID(w, r)
		if !ok {
			return
		}
		info, err := d.Facade.ServiceInfo(r.Context(), serviceID)
		if err != nil {
			writeFault(w, err)
			return
		}
		writeJSON(w, http.StatusOK, info)
	}
}

func requireServiceID(w http.ResponseWriter, r *http.Request) (string, bool) {
	serviceID := strings.TrimSpace(r.URL.Query().Get("service_id"))
	if serviceID == "" {
		writeValidation(w, "service_id query parameter is required")
		return "", false
	}
	return serviceID, true
}
