package server

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/lcalzada-xor/connd/internal/adapters/web/handlers"
	"github.com/lcalzada-xor/connd/internal/adapters/web/middleware"
	"github.com/lcalzada-xor/connd/internal/adapters/web/websocket"
	"github.com/lcalzada-xor/connd/internal/core/ports"
)

// Server handles HTTP and WebSocket connections.
type Server struct {
	Addr        string
	AuthService ports.AuthService
	WSManager   *websocket.WSManager

	ServiceHandler *handlers.ServiceHandler
	AuthHandler    *handlers.AuthHandler
	AuditHandler   *handlers.AuditHandler

	loginLimiter *middleware.RateLimiter
	srv          *http.Server
}

// NewServer creates a new web server. audit may be nil, in which case the
// audit endpoint is not routed.
func NewServer(addr string, manager ports.ServiceManager, authService ports.AuthService, audit ports.AuditService, wsManager *websocket.WSManager) *Server {
	s := &Server{
		Addr:           addr,
		AuthService:    authService,
		WSManager:      wsManager,
		ServiceHandler: handlers.NewServiceHandler(manager),
		AuthHandler:    handlers.NewAuthHandler(authService),
		loginLimiter:   middleware.NewRateLimiter(5, time.Minute),
	}
	if audit != nil {
		s.AuditHandler = handlers.NewAuditHandler(audit)
	}
	return s
}

// Handler returns the instrumented router.
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(SetupRoutes(s), "connd-web")
}

// Run serves on Addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, lis)
}

// Serve serves on lis until ctx is cancelled, then shuts down gracefully. It
// returns once in-flight requests have finished or the shutdown timed out.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	go s.loginLimiter.Run(ctx)

	s.srv = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		log.Println("[WEB] shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if s.WSManager != nil {
			s.WSManager.Close()
		}
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("[WEB] shutdown error: %v", err)
		}
	}()

	log.Printf("[WEB] listening on %s", lis.Addr())
	if err := s.srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-stopped
	return nil
}
