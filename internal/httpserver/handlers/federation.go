package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/operatornet/fedgate/internal/contract"
	"github.com/operatornet/fedgate/internal/fault"
	"github.com/operatornet/fedgate/internal/httpserver/deps"
	"github.com/operatornet/fedgate/internal/logger"
)

type txResponse struct {
	TxHash common.Hash `json:"tx_hash"`
}

type announcementResponse struct {
	TxHash    common.Hash `json:"tx_hash"`
	ServiceID string      `json:"service_id"`
}

func RegisterDomain(d deps.Deps) http.HandlerFunc {
	type body struct {
		Name string `json:"name"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var b body
		if err := decodeBody(r, &b); err != nil {
			writeFault(w, err)
			return
		}
		if b.Name == "" {
			writeValidation(w, "name is required")
			return
		}
		res, err := d.Submitter.Do(r.Context(), contract.NewRegisterDomain(b.Name))
		if err != nil {
			writeFault(w, err)
			return
		}
		d.Logger.Info("domain registered",
			logger.String("name", b.Name),
			logger.String("tx_hash", res.TxHash.Hex()))
		writeJSON(w, http.StatusOK, txResponse{TxHash: res.TxHash})
	}
}

func UnregisterDomain(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := d.Submitter.Do(r.Context(), contract.NewUnregisterDomain())
		if err != nil {
			writeFault(w, err)
			return
		}
		d.Logger.Info("domain unregistered",
			logger.String("tx_hash", res.TxHash.Hex()))
		writeJSON(w, http.StatusOK, txResponse{TxHash: res.TxHash})
	}
}

func CreateServiceAnnouncement(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req contract.Requirements
		if err := decodeBody(r, &req); err != nil {
			writeFault(w, err)
			return
		}
		res, err := d.Submitter.Do(r.Context(), contract.NewCreateAnnouncement(req))
		if err != nil {
			writeFault(w, err)
			return
		}
		var created contract.CreateResult
		if err := json.Unmarshal(res.Receipt.Result, &created); err != nil {
			writeFault(w, fault.New(fault.KindSubmission, "decode announcement result: %v", err))
			return
		}
		d.Logger.Info("service announcement created",
			logger.String("service_id", created.ServiceID),
			logger.String("tx_hash", res.TxHash.Hex()))
		writeJSON(w, http.StatusOK, announcementResponse{
			TxHash:    res.TxHash,
			ServiceID: created.ServiceID,
		})
	}
}

func PlaceBid(d deps.Deps) http.HandlerFunc {
	type body struct {
		ServiceID string `json:"service_id"`
		Price     uint64 `json:"service_price"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var b body
		if err := decodeBody(r, &b); err != nil {
			writeFault(w, err)
			return
		}
		if b.ServiceID == "" {
			writeValidation(w, "service_id is required")
			return
		}
		res, err := d.Submitter.Do(r.Context(), contract.NewPlaceBid(b.ServiceID, b.Price))
		if err != nil {
			writeFault(w, err)
			return
		}
		d.Logger.Info("bid placed",
			logger.String("service_id", b.ServiceID),
			logger.Uint64("service_price", b.Price),
			logger.String("tx_hash", res.TxHash.Hex()))
		writeJSON(w, http.StatusOK, txResponse{TxHash: res.TxHash})
	}
}

func ChooseProvider(d deps.Deps) http.HandlerFunc {
	type body struct {
		ServiceID string `json:"service_id"`
		BidIndex  *int   `json:"bid_index"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var b body
		if err := decodeBody(r, &b); err != nil {
			writeFault(w, err)
			return
		}
		if b.ServiceID == "" || b.BidIndex == nil {
			writeValidation(w, "service_id and bid_index are required")
			return
		}
		res, err := d.Submitter.Do(r.Context(), contract.NewChooseProvider(b.ServiceID, *b.BidIndex))
		if err != nil {
			writeFault(w, err)
			return
		}
		d.Logger.Info("provider chosen",
			logger.String("service_id", b.ServiceID),
			logger.Int("bid_index", *b.BidIndex),
			logger.String("tx_hash", res.TxHash.Hex()))
		writeJSON(w, http.StatusOK, txResponse{TxHash: res.TxHash})
	}
}

func SendEndpointInfo(d deps.Deps) http.HandlerFunc {
	type body struct {
		ServiceID        string `json:"service_id"`
		ServiceCatalogDB string `json:"service_catalog_db"`
		TopologyDB       string `json:"topology_db"`
		NSDID            string `json:"nsd_id"`
		NSID             string `json:"ns_id"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var b body
		if err := decodeBody(r, &b); err != nil {
			writeFault(w, err)
			return
		}
		if b.ServiceID == "" {
			writeValidation(w, "service_id is required")
			return
		}
		ep := contract.Endpoint{
			ServiceCatalogDB: b.ServiceCatalogDB,
			TopologyDB:       b.TopologyDB,
			NSDID:            b.NSDID,
			NSID:             b.NSID,
		}
		res, err := d.Submitter.Do(r.Context(), contract.NewSendEndpointInfo(b.ServiceID, ep))
		if err != nil {
			writeFault(w, err)
			return
		}
		d.Logger.Info("endpoint info sent",
			logger.String("service_id", b.ServiceID),
			logger.String("tx_hash", res.TxHash.Hex()))
		writeJSON(w, http.StatusOK, txResponse{TxHash: res.TxHash})
	}
}

func ServiceDeployed(d deps.Deps) http.HandlerFunc {
	type body struct {
		ServiceID     string `json:"service_id"`
		FederatedHost string `json:"federated_host"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var b body
		if err := decodeBody(r, &b); err != nil {
			writeFault(w, err)
			return
		}
		if b.ServiceID == "" || b.FederatedHost == "" {
			writeValidation(w, "service_id and federated_host are required")
			return
		}
		res, err := d.Submitter.Do(r.Context(), contract.NewServiceDeployed(b.ServiceID, b.FederatedHost))
		if err != nil {
			writeFault(w, err)
			return
		}
		d.Logger.Info("service deployment confirmed",
			logger.String("service_id", b.ServiceID),
			logger.String("federated_host", b.FederatedHost),
			logger.String("tx_hash", res.TxHash.Hex()))
		writeJSON(w, http.StatusOK, txResponse{TxHash: res.TxHash})
	}
}
