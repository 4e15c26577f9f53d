package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/bjtj/bjtj/internal/auth"
	"github.com/bjtj/bjtj/internal/game"
	"github.com/bjtj/bjtj/internal/server"
	"github.com/bjtj/bjtj/internal/service"
	"github.com/bjtj/bjtj/internal/settle"
	"github.com/bjtj/bjtj/internal/store"
)

var CLI struct {
	Config   string `short:"c" long:"config" default:"bjtj.hcl" help:"Path to HCL configuration file"`
	Addr     string `short:"a" long:"addr" help:"Server address to bind to (overrides config)"`
	LogLevel string `short:"l" long:"log-level" help:"Log level (overrides config)"`
	StateDir string `short:"s" long:"state-dir" help:"Game state directory (overrides config)"`
}

func main() {
	ctx := kong.Parse(&CLI)

	// Load configuration
	cfg, err := server.LoadConfig(CLI.Config)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		ctx.Exit(1)
	}

	// Apply command line overrides
	if CLI.LogLevel != "" {
		cfg.Server.LogLevel = CLI.LogLevel
	}
	if CLI.StateDir != "" {
		cfg.Store.Dir = CLI.StateDir
	}

	if err := cfg.Validate(); err != nil {
		fmt.Printf("Invalid configuration: %v\n", err)
		ctx.Exit(1)
	}

	// Setup logging
	logger := log.New(os.Stderr)
	switch cfg.Server.LogLevel {
	case "debug":
		logger.SetLevel(log.DebugLevel)
	case "info":
		logger.SetLevel(log.InfoLevel)
	case "warn":
		logger.SetLevel(log.WarnLevel)
	case "error":
		logger.SetLevel(log.ErrorLevel)
	default:
		logger.SetLevel(log.InfoLevel)
	}

	addr := cfg.ListenAddress()
	if CLI.Addr != "" {
		addr = CLI.Addr
	}

	st, err := store.NewFileStore(cfg.Store.Dir)
	if err != nil {
		logger.Error("Failed to open state directory", "dir", cfg.Store.Dir, "error", err)
		ctx.Exit(1)
	}

	var verifier auth.Verifier = auth.NewNoopVerifier()
	if cfg.Auth.URL != "" {
		verifier = auth.NewHTTPVerifier(cfg.Auth.URL, cfg.Auth.Secret)
	} else {
		logger.Warn("No auth url configured, accepting any well-formed autograph")
	}

	var gateway settle.Gateway = settle.NewNoopGateway()
	if cfg.Settlement.URL != "" {
		gateway = settle.NewHTTPGateway(cfg.Settlement.URL, cfg.Settlement.Secret, quartz.NewReal())
	} else {
		logger.Warn("No settlement url configured, cash-outs are simulated")
	}

	hub := server.NewHub(logger)
	bus := game.NewEventBus()
	bus.Subscribe(hub)

	engine := game.NewEngine(cfg.GameRules(), logger, game.WithEventBus(bus))
	svc := service.NewService(engine, st, verifier, gateway, logger)
	srv := server.NewServer(addr, svc, hub, logger)

	logger.Info("Starting blackjack server",
		"addr", addr,
		"stateDir", cfg.Store.Dir,
		"decks", cfg.GameRules().Decks)

	runCtx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := srv.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Server stopped", "error", err)
		ctx.Exit(1)
	}
	logger.Info("Server shut down")
}
