package common

import (
	"encoding/json"
	"errors"
	"net/http"

	"sheet_judge/internal/platform/logger"
)

const internalErrorMessage = "Internal server error"

type ErrorResponse struct {
	Error string `json:"error"`
}

func RespondWithError(w http.ResponseWriter, code int, message string) {
	RespondWithJSON(w, code, ErrorResponse{Error: message})
}

func RespondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "Failed to marshal JSON response"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

// RespondWithServiceError writes err as {"error": ...}. A 500 shows a static message unless
// err is an *Error of kind ErrInternalServer. With exposeDebug set, 503 responses also carry
// the collaborator error text.
func RespondWithServiceError(w http.ResponseWriter, r *http.Request, err error, exposeDebug bool) {
	code := HTTPStatusFromError(err)
	msg := UserMessage(err)

	if code >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error("request failed",
			"status", code, "error", err, "debug", DebugInfo(err))
	}

	switch {
	case code == http.StatusInternalServerError:
		if msg == "" || !errors.Is(err, ErrInternalServer) {
			msg = internalErrorMessage
		}
	case code == http.StatusServiceUnavailable && exposeDebug:
		if dbg := DebugInfo(err); dbg != nil && dbg != err {
			msg += ": " + dbg.Error()
		}
	case msg == "":
		msg = err.Error()
	}
	RespondWithError(w, code, msg)
}
