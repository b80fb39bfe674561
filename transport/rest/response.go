package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rocketscienceinc/tictactoe-arena/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-arena/internal/service"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, apperror.ErrInvalidMove),
		errors.Is(err, apperror.ErrIllegalMove),
		errors.Is(err, apperror.ErrUnknownDifficulty),
		errors.Is(err, apperror.ErrResetNotSupported):
		return http.StatusBadRequest
	case errors.Is(err, apperror.ErrMatchNotFound),
		errors.Is(err, apperror.ErrSessionNotFound),
		errors.Is(err, apperror.ErrParticipantNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperror.ErrMatchNotJoinable),
		errors.Is(err, apperror.ErrMatchExists):
		return http.StatusConflict
	case errors.Is(err, service.ErrRoomIDsExhausted):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps domain errors to status codes. Internal errors are logged by the caller and hidden.
func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		writeMessage(w, status, http.StatusText(status))
		return
	}

	writeMessage(w, status, err.Error())
}
