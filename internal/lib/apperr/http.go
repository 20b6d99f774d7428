package apperr

import (
	"encoding/json"
	"net/http"
)

type body struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

type envelope struct {
	Error body `json:"error"`
}

// Write пишет ошибку в ответ в едином формате
func Write(w http.ResponseWriter, e *Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.Status())
	_ = json.NewEncoder(w).Encode(envelope{Error: body{Code: e.Code, Message: e.Message, Details: e.Details}})
}
