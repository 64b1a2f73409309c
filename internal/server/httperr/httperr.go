// Package httperr renders the {kind, message} error envelope shared by the
// HTTP handlers and middleware.
package httperr

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/authplane/authplane/internal/apperr"
)

// Envelope is the wire form of every error response.
type Envelope struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func statusOf(kind apperr.Kind) int {
	switch kind {
	case apperr.KindBadRequest:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// WriteError classifies err and writes the envelope. Internal errors hide
// their message from the caller and are logged instead.
func WriteError(w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)
	message := err.Error()
	if kind == apperr.KindInternal {
		log.Printf("ERROR: %v", err)
		message = "internal error"
	}
	write(w, statusOf(kind), Envelope{Kind: string(kind), Message: message})
}

// WriteKind writes an envelope with an explicit kind and message.
func WriteKind(w http.ResponseWriter, kind, message string) {
	write(w, statusOf(apperr.Kind(kind)), Envelope{Kind: kind, Message: message})
}

func write(w http.ResponseWriter, status int, body Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("ERROR: write error envelope: %v", err)
	}
}
