// Package ledgerhttp exposes a ledger node over JSON HTTP so that peer
// gateways can share one embedded node instead of each running their own.
package ledgerhttp

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	"github.com/operatornet/fedgate/internal/contract"
	"github.com/operatornet/fedgate/internal/fault"
	"github.com/operatornet/fedgate/internal/ledger"
	"github.com/operatornet/fedgate/internal/logger"
)

type submitResponse struct {
	TxHash common.Hash `json:"tx_hash"`
}

type heightResponse struct {
	Height uint64 `json:"height"`
}

type nonceResponse struct {
	Nonce uint64 `json:"nonce"`
}

type callRequest struct {
	Caller common.Address `json:"caller"`
	Call   contract.Call  `json:"call"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Handler serves a node's full Reader+Writer surface. Mounted by the app
// under /ledger when running the embedded node.
func Handler(node ledger.Node, log logger.Logger) http.Handler {
	r := chi.NewRouter()
	r.Post("/tx", submitTx(node, log))
	r.Get("/height", getHeight(node))
	r.Get("/block/{number}", getBlock(node))
	r.Get("/receipt/{hash}", getReceipt(node))
	r.Get("/nonce/{address}", getNonce(node))
	r.Post("/call", doCall(node))
	r.Get("/info", getInfo(node))
	return r
}

func submitTx(node ledger.Node, log logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var tx ledger.Tx
		if err := json.NewDecoder(r.Body).Decode(&tx); err != nil {
			writeError(w, http.StatusBadRequest, "malformed transaction: "+err.Error())
			return
		}
		hash, err := node.Submit(r.Context(), &tx)
		if err != nil {
			if errors.Is(err, ledger.ErrRejected) {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		log.Debug("transaction accepted",
			logger.String("tx_hash", hash.Hex()),
			logger.String("method", tx.Call.Method))
		writeJSON(w, http.StatusAccepted, submitResponse{TxHash: hash})
	}
}

func getHeight(node ledger.Node) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h, err := node.Height(r.Context())
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, heightResponse{Height: h})
	}
}

func getBlock(node ledger.Node) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		number, err := strconv.ParseUint(chi.URLParam(r, "number"), 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "block number must be a non-negative integer")
			return
		}
		block, err := node.Block(r.Context(), number)
		if err != nil {
			writeNodeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, block)
	}
}

func getReceipt(node ledger.Node) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hash := common.HexToHash(chi.URLParam(r, "hash"))
		receipt, err := node.Receipt(r.Context(), hash)
		if err != nil {
			writeNodeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, receipt)
	}
}

func getNonce(node ledger.Node) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		addr := common.HexToAddress(chi.URLParam(r, "address"))
		nonce, err := node.Nonce(r.Context(), addr)
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, nonceResponse{Nonce: nonce})
	}
}

func doCall(node ledger.Node) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req callRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "malformed call: "+err.Error())
			return
		}
		result, err := node.Call(r.Context(), req.Caller, req.Call)
		if err != nil {
			if errors.Is(err, ledger.ErrUnavailable) {
				writeError(w, http.StatusServiceUnavailable, err.Error())
				return
			}
			// Contract faults travel as their "Kind: message" string and
			// are re-typed client side.
			writeError(w, fault.HTTPStatus(fault.KindOf(err)), err.Error())
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(result)
	}
}

func getInfo(node ledger.Node) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		info, err := node.Info(r.Context())
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, info)
	}
}

// writeNodeError maps the reader sentinels onto statuses the Client decodes
// back: 404 not found, 202 still pending.
func writeNodeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrPending):
		writeError(w, http.StatusAccepted, err.Error())
	case errors.Is(err, ledger.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusServiceUnavailable, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
