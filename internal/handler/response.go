// Package handler provides HTTP handlers for the Casebook API.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/prn-tf/casebook/internal/domain"
)

// errorBody is the JSON error envelope returned on every failure.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// writeJSON writes a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		if err := json.NewEncoder(w).Encode(body); err != nil {
			log.Error().Err(err).Msg("failed to encode response")
		}
	}
}

// writeError classifies err and writes the matching status and envelope.
// Storage-kind errors hide their detail behind a generic message so
// infrastructure internals never reach clients.
func writeError(w http.ResponseWriter, err error) {
	kind := domain.KindOf(err)

	status := http.StatusInternalServerError
	switch kind {
	case domain.KindValidation:
		status = http.StatusBadRequest
	case domain.KindConflict:
		status = http.StatusConflict
	case domain.KindNotFound:
		status = http.StatusNotFound
	}

	detail := errorDetail{Kind: string(kind)}
	if kind == domain.KindStorage {
		detail.Message = "internal server error"
	} else {
		detail.Message = err.Error()
		var de *domain.Error
		if errors.As(err, &de) {
			detail.Message = de.Message
			detail.Field = de.Field
		}
	}

	writeJSON(w, status, errorBody{Error: detail})
}
