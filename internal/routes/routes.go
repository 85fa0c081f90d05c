package routes

import (
	"net/http"

	"fractureapi/internal/config"
	"fractureapi/internal/handler"
	"fractureapi/internal/logger"
	"fractureapi/internal/middleware"
	"fractureapi/internal/service"
	"fractureapi/internal/service/websocket"
)

// SetupRoutes registers the API endpoints and wraps the mux with CORS,
// request IDs and access logging.
func SetupRoutes(manager *service.Manager, hub *websocket.HubService, cfg *config.Config, logger *logger.Logger) http.Handler {
	mux := http.NewServeMux()

	// Health
	mux.HandleFunc("GET /{$}", handler.HomeHandler())
	mux.HandleFunc("GET /ready", handler.ReadinessHandler(manager))

	// Inference
	mux.HandleFunc("POST /predict", handler.PredictHandler(manager, cfg, logger))

	// Live feed of prediction outcomes
	mux.HandleFunc("GET /api/events", handler.EventsWebsocketHandler(hub, logger))

	return middleware.CORS(middleware.RequestID(middleware.AccessLog(logger)(mux)))
}
