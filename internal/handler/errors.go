package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"rewardhub/internal/service"
)

// errorBody is the JSON shape of every failed response.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Fields  []string `json:"fields,omitempty"`
}

// Messages for failures whose error text is not meant for users.
const (
	msgPersistence = "Something went wrong on our side. Please try again in a moment."
	msgRateLimited = "Too many requests. Please slow down."
)

// statusFor maps a service error kind to an HTTP status.
func statusFor(kind string) int {
	switch kind {
	case "unauthenticated":
		return http.StatusUnauthorized
	case "forbidden":
		return http.StatusForbidden
	case "insufficient_funds":
		return http.StatusPaymentRequired
	case "not_eligible":
		return http.StatusUnprocessableEntity
	case "not_available":
		return http.StatusLocked
	case "invalid_transition", "conflict":
		return http.StatusConflict
	case "validation":
		return http.StatusBadRequest
	case "not_found":
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// writeError maps err to a status and a specific message. Persistence
// failures are logged and answered with a generic message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := service.ErrorKind(err)
	detail := errorDetail{Code: kind, Message: err.Error()}

	var verr *service.ValidationError
	if errors.As(err, &verr) {
		detail.Fields = verr.Fields
	}

	if kind == "persistence" {
		log.Error().
			Err(err).
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("path", r.URL.Path).
			Msg("Request failed")
		detail.Message = msgPersistence
	}

	writeJSON(w, statusFor(kind), errorBody{Error: detail})
}
