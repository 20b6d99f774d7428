package handlers

import (
	"log/slog"
	"net/http"
)

func HealthHandler(log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(log, w, http.StatusOK, map[string]string{"status": "healthy"})
	}
}
