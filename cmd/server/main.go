package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/chitti-game/chitti-server/internal/config"
	"github.com/chitti-game/chitti-server/internal/game"
	"github.com/chitti-game/chitti-server/internal/gateway"
	"github.com/chitti-game/chitti-server/internal/repository"
	"github.com/chitti-game/chitti-server/internal/server"
	"github.com/chitti-game/chitti-server/internal/vote"
)

var (
	configPath = flag.String("config", "config/config.yaml", "path to configuration file")
	version    = "dev" // set via ldflags during build
)

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := initLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting Chitti server",
		zap.String("version", version),
		zap.String("config", *configPath),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	store, err := repository.Open(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal("failed to open directory store", zap.Error(err))
	}
	defer store.Close()

	users, usersErr := store.UserCount(ctx)
	chats, chatsErr := store.ChatCount(ctx)
	if err := multierr.Combine(usersErr, chatsErr); err != nil {
		logger.Warn("failed to count directory entries", zap.Error(err))
	} else {
		logger.Info("directory store ready",
			zap.String("driver", cfg.Database.Driver),
			zap.Int64("users", users),
			zap.Int64("chats", chats),
		)
	}

	games := game.NewManager(logger, game.WithMinPlayers(cfg.Game.MinPlayers))
	votes := vote.New(vote.DefaultQuorum)
	logger.Info("session manager initialized",
		zap.Int("min_players", cfg.Game.MinPlayers),
		zap.Int("vote_quorum", votes.Quorum()),
	)

	gw := gateway.New(gateway.Config{
		ReadLimit:      cfg.Server.WebSocket.ReadLimit,
		AllowedOrigins: cfg.Server.WebSocket.AllowedOrigins,
		OwnerID:        game.PlayerID(cfg.Bot.OwnerID),
	}, logger)

	bot := server.New(games, votes, store, gw, gw, server.Config{
		Symbols:         cfg.Symbols(),
		CommandCooldown: cfg.Game.CommandCooldown,
		DMCacheTTL:      cfg.Game.DMCacheTTL,
		DMCacheSize:     cfg.Game.DMCacheSize,
		BotName:         cfg.Bot.Name,
	}, logger)
	gw.SetHandler(bot)

	grpcServer, healthServer := server.NewGRPCServer(logger)
	lis, err := net.Listen("tcp", cfg.Server.GRPC.Address)
	if err != nil {
		logger.Fatal("failed to listen", zap.Error(err))
	}

	go func() {
		logger.Info("starting gRPC health server", zap.String("address", cfg.Server.GRPC.Address))
		if serveErr := grpcServer.Serve(lis); serveErr != nil {
			logger.Error("gRPC server error", zap.Error(serveErr))
		}
	}()

	mux := http.NewServeMux()
	mux.Handle(cfg.Server.WebSocket.Path, gw)
	httpServer := &http.Server{
		Addr:              cfg.Server.WebSocket.Address,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting WebSocket server",
			zap.String("address", cfg.Server.WebSocket.Address),
			zap.String("path", cfg.Server.WebSocket.Path),
		)
		if wsErr := httpServer.ListenAndServe(); wsErr != nil && !errors.Is(wsErr, http.ErrServerClosed) {
			logger.Error("WebSocket server error", zap.Error(wsErr))
		}
	}()

	logger.Info("Chitti server initialized", zap.String("version", version))

	sig := <-sigChan
	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	logger.Info("shutting down gracefully...")
	cancel()
	healthServer.Shutdown()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("websocket shutdown incomplete", zap.Error(err))
	}
	gw.Close()

	logger.Info("ending live sessions", zap.Int("sessions", games.Count()))
	for _, g := range games.Games() {
		if _, err := games.End(g.ChatID()); err != nil && !errors.Is(err, game.ErrNoActiveSession) {
			logger.Warn("failed to end session", zap.Int64("chat_id", int64(g.ChatID())), zap.Error(err))
		}
	}

	grpcServer.GracefulStop()

	logger.Info("Chitti server stopped")
}

// initLogger initializes the zap logger based on configuration
func initLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
