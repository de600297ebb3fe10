package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"
)

type errorResponse struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, obj any) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(obj); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

// writeError maps domain error codes onto HTTP statuses. Unknown
// errors are reported as 500 without leaking their message.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	msg := "internal server error"

	var eb *errbuilder.ErrBuilder
	if errors.As(err, &eb) {
		msg = eb.Msg
		switch errbuilder.CodeOf(err) {
		case errbuilder.CodeInvalidArgument:
			status = http.StatusBadRequest
		case errbuilder.CodeNotFound:
			status = http.StatusNotFound
		case errbuilder.CodeAlreadyExists:
			status = http.StatusConflict
		case errbuilder.CodePermissionDenied:
			status = http.StatusForbidden
		case errbuilder.CodeFailedPrecondition:
			status = http.StatusPreconditionFailed
		case errbuilder.CodeDeadlineExceeded:
			status = http.StatusRequestTimeout
		case errbuilder.CodeUnauthenticated:
			status = http.StatusUnauthorized
		default:
			msg = "internal server error"
		}
	}
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg("handler error")
	}
	writeJSON(w, status, errorResponse{Message: msg, Code: status})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Message: "malformed request body",
			Code:    http.StatusBadRequest,
		})
		return false
	}
	return true
}
