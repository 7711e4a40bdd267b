package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"golang.org/x/sync/errgroup"

	"github.com/lox/cardroom/internal/ledger"
	"github.com/lox/cardroom/internal/server"
	"github.com/lox/cardroom/internal/store"
)

// version is set by ldflags during build
var version = "dev"

var CLI struct {
	Version  kong.VersionFlag `short:"v" help:"Show version"`
	Config   string           `short:"c" default:"cardroom.hcl" help:"Path to HCL configuration file"`
	Host     string           `help:"Host to bind to (overrides config)"`
	Port     int              `short:"p" help:"Port to bind to (overrides config)"`
	LogLevel string           `short:"l" help:"Log level (overrides config)"`
	Redis    string           `help:"Redis URL for room snapshots (overrides config)"`
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("cardroom-server"),
		kong.Description("Real-time multiplayer card game server"),
		kong.UsageOnError(),
		kong.Vars{"version": version},
	)
	ctx.FatalIfErrorf(run())
}

func run() error {
	cfg, err := server.LoadConfig(CLI.Config)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if CLI.Host != "" {
		cfg.Server.Host = CLI.Host
	}
	if CLI.Port != 0 {
		cfg.Server.Port = CLI.Port
	}
	if CLI.LogLevel != "" {
		cfg.Server.LogLevel = CLI.LogLevel
	}
	if CLI.Redis != "" {
		cfg.Server.RedisURL = CLI.Redis
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

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

	logger.Info("starting cardroom server",
		"addr", cfg.ListenAddress(), "rooms", len(cfg.Rooms), "version", version)

	var roomStore store.RoomStore = store.NewMemory()
	if cfg.Server.RedisURL != "" {
		redisCfg := store.DefaultRedisConfig()
		redisCfg.URL = cfg.Server.RedisURL
		redisStore, err := store.NewRedis(redisCfg)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		roomStore = redisStore
		logger.Info("room snapshots mirrored to redis", "url", cfg.Server.RedisURL)
	}
	defer func() { _ = roomStore.Close() }()

	clock := quartz.NewReal()
	books := ledger.NewRetrier(ledger.NewMemory(), logger, clock)
	defer books.Close()

	wsServer := server.NewServer(cfg.ListenAddress(), logger)
	service := server.NewGameService(cfg, wsServer, books, roomStore, logger, clock)
	wsServer.SetService(service)
	defer service.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(wsServer.Start)
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		return wsServer.Stop()
	})

	return g.Wait()
}
