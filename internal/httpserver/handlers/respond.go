package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/operatornet/fedgate/internal/fault"
)

type errorBody struct {
	Kind    fault.Kind `json:"kind"`
	Message string     `json:"message"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeFault renders any error as the gateway's error envelope. Errors that
// carry no fault kind come out as Unknown / 500.
func writeFault(w http.ResponseWriter, err error) {
	kind := fault.KindOf(err)
	writeJSON(w, fault.HTTPStatus(kind), errorEnvelope{Error: errorBody{
		Kind:    kind,
		Message: err.Error(),
	}})
}

func writeValidation(w http.ResponseWriter, msg string) {
	writeFault(w, fault.New(fault.KindValidation, "%s", msg))
}

// decodeBody reads a JSON request body into dst, rejecting unknown fields.
func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fault.New(fault.KindValidation, "malformed request body: %v", err)
	}
	return nil
}
