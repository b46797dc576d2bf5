package bootstrap

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brianYuDesign/balance-engine/pkg"
	"github.com/brianYuDesign/balance-engine/pkg/mlog"
	"github.com/brianYuDesign/balance-engine/pkg/mopentelemetry"
	"github.com/gofiber/fiber/v2"
)

// Server represents the HTTP server of the request ingress.
type Server struct {
	app           *fiber.App
	serverAddress string
	logger        mlog.Logger
	telemetry     *mopentelemetry.Telemetry
}

// ServerAddress returns the server address.
func (s *Server) ServerAddress() string {
	return s.serverAddress
}

// NewServer creates an instance of Server.
func NewServer(cfg *Config, app *fiber.App, logger mlog.Logger, telemetry *mopentelemetry.Telemetry) *Server {
	serverAddress := cfg.ServerAddress
	if serverAddress == "" {
		serverAddress = ":3000"
	}

	return &Server{
		app:           app,
		serverAddress: serverAddress,
		logger:        logger,
		telemetry:     telemetry,
	}
}

// Run serves until interrupted, then shuts the listener down gracefully.
func (s *Server) Run(_ *pkg.Launcher) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)

	go func() {
		errCh <- s.app.Listen(s.serverAddress)
	}()

	s.logger.Infof("Server listening on %s", s.serverAddress)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Server: shutting down...")

	if err := s.app.ShutdownWithTimeout(5 * time.Second); err != nil {
		return err
	}

	s.telemetry.ShutdownTelemetry()

	return s.logger.Sync()
}
