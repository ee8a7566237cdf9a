package server

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// waitForShutdown returns a channel that fires on an interrupt or terminate signal.
func waitForShutdown() <-chan os.Signal {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	return quit
}

// shutdownServices closes live attempts, the event bus and the tracer.
func (s *Server) shutdownServices(ctx context.Context) {
	if report := s.injector.ShutdownWithContext(ctx); report != nil && !report.Succeed {
		slog.Error("Service shutdown reported errors", "error", report.Error())
	}
}
