package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"moneywise/internal/core"
	"moneywise/internal/log"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

func writeErrorBody(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, errorBody{Error: errorDetail{Kind: kind, Message: message}})
}

// statusFor maps an error kind to its HTTP status.
func statusFor(kind core.Kind) int {
	switch kind {
	case core.KindNotFound:
		return http.StatusNotFound
	case core.KindValidation:
		return http.StatusUnprocessableEntity
	case core.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError translates err into the JSON error envelope. Internal errors are
// logged with their cause and answered with a generic message.
func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	var malformed errMalformed
	if errors.As(err, &malformed) {
		writeErrorBody(w, http.StatusBadRequest, "malformed", malformed.Error())
		return
	}

	kind := core.KindOf(err)
	if kind == core.KindInternal {
		log.NewStructuredLogger(log.FromContext(r.Context())).
			LogError(r.Context(), "Request failed", err, log.ComponentHTTP, op,
				log.NewFields().WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, ""))
	}
	writeErrorBody(w, statusFor(kind), kind.String(), core.PublicMessage(err))
}
