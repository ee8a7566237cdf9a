package main

import (
	"log/slog"
	"os"

	"github.com/nfrund/signin/internal/app"
	"github.com/nfrund/signin/internal/config"
	"github.com/nfrund/signin/internal/logging"
	"github.com/nfrund/signin/internal/server"
)

// Version can be set at build time.
// Example: go build -ldflags "-X 'main.Version=1.2.0'"
var Version string

func main() {
	cfg := config.New()
	logger := logging.New(cfg)

	if err := cfg.Validate(true); err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}
	if Version != "" {
		app.Version = Version
	}

	// Create a new server instance.
	s, err := server.New(app.New(cfg, logger))
	if err != nil {
		slog.Error("Failed to build server", "error", err)
		os.Exit(1)
	}

	// Register all application routes.
	s.RegisterRoutes()

	// Start the server.
	if err := s.Start(); err != nil {
		slog.Error("Server stopped", "error", err)
		os.Exit(1)
	}
}
