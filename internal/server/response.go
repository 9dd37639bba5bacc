package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/koustreak/pgedit/internal/errs"
	"github.com/koustreak/pgedit/internal/logger"
)

// errorBody is the failure shape every endpoint shares.
type errorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Kind    string `json:"kind,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

func (s *Server) respond(w http.ResponseWriter, r *http.Request, status int, data any) {
	if err := writeJSON(w, status, data); err != nil {
		logger.FromContext(r.Context()).With().Err(err).Logger().Warn("failed to encode response")
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	var kind string
	var e *errs.Error
	if errors.As(err, &e) {
		kind = e.Kind.String()
	}
	s.respond(w, r, statusFor(err), errorBody{Error: errs.UserMessage(err), Kind: kind})
}

func statusFor(err error) int {
	switch errs.KindOf(err) {
	case errs.ErrKindInvalidInput:
		return http.StatusBadRequest
	case errs.ErrKindNotFound:
		return http.StatusNotFound
	case errs.ErrKindConflict:
		return http.StatusConflict
	case errs.ErrKindPermissionDenied:
		return http.StatusForbidden
	case errs.ErrKindConnectionUnavailable, errs.ErrKindConnectionFailed:
		return http.StatusServiceUnavailable
	case errs.ErrKindTimeout:
		return http.StatusGatewayTimeout
	case errs.ErrKindValidationFailure, errs.ErrKindStatementFailure, errs.ErrKindRollbackFailure:
		return http.StatusUnprocessableEntity
	case errs.ErrKindMetadataFetchFailure, errs.ErrKindQueryFailed:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
