package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"dt-server/config"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

type DiseaseTrendHttpServer struct {
	router    *Router
	muxRouter *mux.Router
	cfg       config.ServerConfig
	log       *logrus.Entry
}

func NewDiseaseTrendHttpServer(router *Router, muxRouter *mux.Router, cfg config.ServerConfig, logger *logrus.Logger) *DiseaseTrendHttpServer {
	return &DiseaseTrendHttpServer{
		router:    router,
		muxRouter: muxRouter,
		cfg:       cfg,
		log:       logger.WithField("component", "DiseaseTrendHttpServer"),
	}
}

// Start serves until ctx is cancelled, then shuts down gracefully within the
// configured timeout.
func (s *DiseaseTrendHttpServer) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Address, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Start on an existing listener.
func (s *DiseaseTrendHttpServer) Serve(ctx context.Context, ln net.Listener) error {
	s.router.RegisterRoutes()

	srv := &http.Server{
		Handler:      s.muxRouter,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("address", ln.Addr().String()).Info("Starting server")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.log.Info("Shutting down the server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	<-errCh
	s.log.Info("Server exiting")
	return nil
}
