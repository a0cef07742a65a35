package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/lumenbrowser/lumen/backend/internal/infrastructure/config"
	"github.com/lumenbrowser/lumen/backend/internal/infrastructure/logging"
	"github.com/lumenbrowser/lumen/backend/internal/server"
)

func main() {
	port := flag.String("port", "", "listen port (overrides PORT)")
	endpoint := flag.String("node", "", "blockchain node endpoint (overrides GATEWAY_ENDPOINT)")
	network := flag.String("network", "", "network name (overrides GATEWAY_NETWORK)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		cfg = config.Default()
	}
	if *port != "" {
		cfg.Server.Port = *port
	}
	if *endpoint != "" {
		cfg.Gateway.Endpoint = *endpoint
	}
	if *network != "" {
		cfg.Gateway.Network = *network
	}

	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})
	if err != nil {
		logger = logging.NewDefault()
	}
	defer logger.Sync()

	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize wallet core", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		logger.Fatal("wallet core exited", zap.Error(err))
	}
}
