package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/tokenkeeper/internal/common"
)

// envelope is the shape of every response body.
type envelope struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeOK(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Code: common.CodeOK, Data: data})
}

func writeError(w http.ResponseWriter, err error) {
	code := common.Code(err)
	msg := err.Error()
	if code == common.CodeInternal {
		msg = "internal error"
	}
	writeJSON(w, httpStatus(err), envelope{Code: code, Message: msg})
}

func writeBadRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, envelope{Code: common.CodeInvalidRequest, Message: msg})
}

func httpStatus(err error) int {
	switch {
	case errors.Is(err, common.ErrAccountDeactivated):
		return http.StatusForbidden
	case common.Code(err) == common.CodeInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusUnauthorized
	}
}
