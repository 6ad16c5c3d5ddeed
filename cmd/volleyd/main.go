// Package main provides the volleyball game server binary. It accepts control
// connections over TCP and game datagrams over UDP.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/volleyball/internal/config"
	"github.com/cory-johannsen/volleyball/internal/observability"
	"github.com/cory-johannsen/volleyball/internal/server"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "", "path to configuration file; empty uses defaults and VOLLEY_ environment overrides")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting volleyball server",
		zap.String("udp_addr", cfg.UDP.Addr()),
		zap.String("control_addr", cfg.Control.Addr()),
		zap.String("snapshot_revision", cfg.Match.SnapshotRevision),
	)

	game, err := server.NewGame(cfg, logger)
	if err != nil {
		logger.Fatal("binding sockets", zap.Error(err))
	}

	logger.Info("volleyball server initialized",
		zap.Duration("startup", time.Since(start)),
		zap.String("udp_addr", game.UDPAddr()),
		zap.String("control_addr", game.ControlAddr()),
	)

	if err := game.Run(context.Background()); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
