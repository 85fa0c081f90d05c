package handler

import (
	"encoding/json"
	"net/http"

	"fractureapi/internal/dto"
	"fractureapi/internal/service"
)

// HomeHandler is the liveness probe. It does not look at model state.
func HomeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, dto.MessageResponse{Message: "Backend Running Successfully"})
	}
}

// ReadinessHandler reports 200 once every artifact is loaded, 503 otherwise.
func ReadinessHandler(manager *service.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		readiness := manager.Readiness()

		if !readiness.Ready {
			writeJSON(w, http.StatusServiceUnavailable, dto.ReadinessResponse{Status: "not_ready", Artifacts: readiness.Artifacts})
			return
		}
		writeJSON(w, http.StatusOK, dto.ReadinessResponse{Status: "ready", Artifacts: readiness.Artifacts})
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
