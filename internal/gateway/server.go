// Package gateway serves the HTTP and websocket surface over the
// OpenGoat facade.
package gateway

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"

	v1 "opengoat/api/v1"
	"opengoat/internal/config"
	"opengoat/internal/gateway/middleware"
	"opengoat/internal/gateway/websocket"
	"opengoat/internal/service"
	"opengoat/pkg/logger"
)

// Server is the gateway HTTP server.
type Server struct {
	cfg     *config.Config
	svc     *service.Service
	hub     *websocket.Hub
	router  *mux.Router
	handler http.Handler
	limiter *middleware.RateLimiter

	httpServer *http.Server
}

// NewServer wires the middleware chain and routes over the facade.
func NewServer(cfg *config.Config, svc *service.Service) *Server {
	router := mux.NewRouter()
	hub := websocket.NewHub()
	limiter := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	creds := middleware.CredentialsFunc(svc.VerifyAuth)

	handler := middleware.Recovery(
		middleware.Logging(
			middleware.CORS(
				limiter.RateLimit(
					middleware.Auth(creds)(
						middleware.Version(config.Version)(router),
					),
				),
			),
		),
	)

	v1.NewRouter(svc, hub).RegisterRoutes(router)
	router.HandleFunc("/api/v1/ws", func(w http.ResponseWriter, r *http.Request) {
		websocket.ServeWs(hub, w, r)
	})

	return &Server{
		cfg:     cfg,
		svc:     svc,
		hub:     hub,
		router:  router,
		handler: handler,
		limiter: limiter,
		httpServer: &http.Server{
			Handler:     handler,
			ReadTimeout: 60 * time.Second,
			IdleTimeout: 120 * time.Second,
		},
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Gateway.Host, s.cfg.Gateway.Port)
	s.httpServer.Addr = addr

	go s.hub.Run()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", addr).Msg("gateway listening")
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("gateway: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		return s.shutdown()
	})
	return g.Wait()
}

func (s *Server) shutdown() error {
	logger.Info().Msg("gateway shutting down")
	s.limiter.Stop()
	s.hub.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("gateway shutdown: %w", err)
	}
	return nil
}

// Handler exposes the full middleware chain, mainly for tests.
func (s *Server) Handler() http.Handler { return s.handler }

// Hub exposes the websocket hub so run events can be published.
func (s *Server) Hub() *websocket.Hub { return s.hub }
