package cmd

import (
	"context"
	"errors"
	"fmt"
	nethttp "net/http"
	"nexatrade/internal/delivery/http"
	"time"

	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

type HTTPServer struct {
	ctx     context.Context
	appDep  *AppDependency
	handler *http.HttpAPIHandler
}

func NewHTTPServer(ctx context.Context, appDep *AppDependency, handler *http.HttpAPIHandler) *HTTPServer {
	return &HTTPServer{
		ctx:     ctx,
		appDep:  appDep,
		handler: handler,
	}
}

func (s *HTTPServer) Start() error {
	s.handler.SetupRoutes()

	address := fmt.Sprintf(":%d", s.appDep.cfg.API.Port)
	s.appDep.log.Info("Starting HTTP server", zap.String("address", address))

	if err := s.appDep.echo.Start(address); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Stop() error {
	s.appDep.log.Info("Shutting down HTTP server")

	ctx, cancel := context.WithTimeout(s.ctx, shutdownTimeout)
	defer cancel()

	if err := s.appDep.echo.Shutdown(ctx); err != nil {
		s.appDep.log.Error("HTTP server shutdown failed", zap.Error(err))
		return err
	}
	s.appDep.log.Info("HTTP server stopped")
	return nil
}
