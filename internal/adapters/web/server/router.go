package server

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lcalzada-xor/connd/internal/adapters/web/middleware"
)

// servicePattern captures a display path without its leading slash.
const servicePattern = "/api/services/{path:.+}"

func SetupRoutes(s *Server) *mux.Router {
	r := mux.NewRouter()

	r.Handle("/api/login", middleware.RateLimitMiddleware(s.loginLimiter)(http.HandlerFunc(s.AuthHandler.HandleLogin))).Methods(http.MethodPost)
	r.HandleFunc("/api/logout", s.AuthHandler.HandleLogout).Methods(http.MethodPost)

	// Everything below resolves the caller; anonymous calls are left to the
	// security modules to judge.
	api := r.NewRoute().Subrouter()
	api.Use(middleware.AuthMiddleware(s.AuthService))

	protected := api.NewRoute().Subrouter()
	protected.Use(middleware.RequireCaller)

	protected.HandleFunc("/api/me", s.AuthHandler.HandleMe).Methods(http.MethodGet)
	protected.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	if s.WSManager != nil {
		protected.HandleFunc("/ws", s.WSManager.HandleWebSocket)
	}
	if s.AuditHandler != nil {
		protected.HandleFunc("/api/audit-logs", s.AuditHandler.HandleGetLogs).Methods(http.MethodGet)
	}

	h := s.ServiceHandler
	api.HandleFunc("/api/services", h.HandleList).Methods(http.MethodGet)
	api.HandleFunc(servicePattern+"/properties/{name}", h.HandleSetProperty).Methods(http.MethodPut)
	api.HandleFunc(servicePattern+"/move-{direction:before|after}", h.HandleMove).Methods(http.MethodPost)
	api.HandleFunc(servicePattern+"/{action:connect|disconnect|remove}", h.HandleAction).Methods(http.MethodPost)
	api.HandleFunc(servicePattern, h.HandleGet).Methods(http.MethodGet)

	return r
}
