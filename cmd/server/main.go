package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"rosenkoenig/internal/config"
	"rosenkoenig/internal/database"
	"rosenkoenig/internal/handlers"
	"rosenkoenig/internal/realtime"
	"rosenkoenig/internal/repository"
	"rosenkoenig/internal/rules"
	"rosenkoenig/internal/security"
	"rosenkoenig/internal/service"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database with config (supports sqlite, postgres, mysql)
	db, err := database.InitializeWithConfig(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()
	logger.Info("database connection established", zap.String("type", cfg.DatabaseType))

	applied, err := db.RunMigrations(ctx, cfg.MigrationsPath)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	logger.Info("migrations completed", zap.Strings("applied", applied))

	key, err := cfg.SigningKey()
	if err != nil {
		return err
	}
	tokens := security.NewTokenIssuer(key, cfg.TokenTTL)

	store := repository.NewStore(db)
	feed := realtime.NewFeed(logger.Named("feed"))
	defer feed.Close()

	// The turn function is either the local rule engine or a remote endpoint
	var turns rules.Function
	var local *service.LocalTurns
	if cfg.PlayTurnURL != "" {
		credential := func() (string, error) {
			return tokens.IssueService("play-turn")
		}
		turns = rules.NewRemote(cfg.PlayTurnURL, credential, cfg.PlayTurnTTL)
		logger.Info("using remote turn function", zap.String("url", cfg.PlayTurnURL))
	} else {
		engine, err := rules.LoadEngine(cfg.RulesScript)
		if err != nil {
			return fmt.Errorf("failed to load rules: %w", err)
		}
		local = service.NewLocalTurns(store, engine, feed, logger.Named("turns"))
		turns = local
		logger.Info("using local rule engine", zap.String("script", engine.Name()))
	}

	games := service.NewGameService(store, turns, feed, logger.Named("games"))
	limiter := security.NewRateLimiter(cfg.RateLimit, cfg.RateWindow)
	hub := realtime.NewHub(feed, handlers.OriginChecker(cfg.AllowedOrigins), logger.Named("hub"))

	routerCfg := handlers.RouterConfig{
		Games:          games,
		Hub:            hub,
		Tokens:         tokens,
		Limiter:        limiter,
		DB:             db,
		AllowedOrigins: cfg.AllowedOrigins,
		Logger:         logger.Named("http"),
	}
	if local != nil {
		routerCfg.Turns = local
	}

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      handlers.NewRouter(routerCfg),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("server starting", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		limiter.Run(gctx)
		return nil
	})

	if cfg.PGNotify {
		bridge, err := realtime.NewPGBridge(cfg.DatabaseURL, feed, store, logger.Named("pgnotify"))
		if err != nil {
			return err
		}
		g.Go(func() error {
			return bridge.Run(gctx)
		})
	}

	return g.Wait()
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
	}
	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	zcfg.Level = level
	return zcfg.Build()
}
