package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hackathon-leaderboard/internal/auth"
	"github.com/hackathon-leaderboard/internal/config"
	"github.com/hackathon-leaderboard/internal/domain"
	"github.com/hackathon-leaderboard/internal/handler"
	"github.com/hackathon-leaderboard/internal/kafka"
	"github.com/hackathon-leaderboard/internal/metrics"
	"github.com/hackathon-leaderboard/internal/notify"
	"github.com/hackathon-leaderboard/internal/postgres"
	"github.com/hackathon-leaderboard/internal/redis"
	"github.com/hackathon-leaderboard/internal/service"
	"github.com/hackathon-leaderboard/internal/websocket"
	"github.com/hackathon-leaderboard/internal/worker"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	// Setup structured logging
	logger := newLogger("info")
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Warn("failed to load config file, using defaults", "error", err)
		cfg = config.DefaultConfig()
	}
	logger = newLogger(cfg.Log.Level)
	slog.SetDefault(logger)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	seed, err := loadSeed(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to load seed data", "error", err)
		os.Exit(1)
	}

	tokens := auth.NewProvider(cfg.Auth.JWTSecret)

	notifier, err := notify.New(&cfg.Notify, tokens, logger)
	if err != nil {
		logger.Error("failed to create notifier", "error", err)
		os.Exit(1)
	}
	logger.Info("score notifications configured", "mode", cfg.Notify.Mode, "timeout", cfg.Notify.Timeout)

	// Initialize the board
	board := service.NewBoard(seed, notifier, cfg.Notify.Timeout, &cfg.Leaderboard, logger)
	logger.Info("board initialized",
		"teams", len(seed.Teams),
		"rounds", len(seed.Rounds),
		"allow_out_of_range_scores", cfg.Leaderboard.AllowOutOfRangeScores,
	)

	// Initialize WebSocket hub
	wsHub := websocket.NewHub(board, logger)
	go wsHub.Run()
	board.SetHub(wsHub)
	logger.Info("WebSocket hub initialized")

	httpHandler := handler.NewHandler(board, tokens, wsHub, cfg, logger)

	if cfg.Metrics.Enabled {
		m := metrics.New()
		board.SetRecorder(m)
		httpHandler.SetMetrics(m)
	}

	// Initialize the Redis standings mirror
	var mirrorWorker *worker.MirrorWorker
	if cfg.Redis.Enabled {
		logger.Info("connecting to Redis", "addr", cfg.Redis.Addr)
		mirror, err := redis.NewStandingsMirror(&cfg.Redis, logger)
		if err != nil {
			logger.Warn("failed to connect to Redis, continuing without standings mirror", "error", err)
		} else {
			defer mirror.Close()
			logger.Info("connected to Redis")
			board.SetMirror(mirror)
			httpHandler.SetMirror(mirror)

			if cfg.Mirror.Enabled {
				mirrorWorker = worker.NewMirrorWorker(board, &cfg.Mirror, logger)
				if err := mirrorWorker.Start(ctx); err != nil {
					logger.Error("failed to start mirror worker", "error", err)
					os.Exit(1)
				}
			} else if err := board.RepublishStandings(ctx); err != nil {
				logger.Warn("failed to publish initial standings", "error", err)
			}
		}
	}

	// Initialize Kafka consumer for judge score edits
	var kafkaConsumer *kafka.Consumer
	if cfg.Kafka.Enabled {
		logger.Info("initializing Kafka consumer",
			"brokers", cfg.Kafka.Brokers,
			"topic", cfg.Kafka.Topic,
		)
		var err error
		kafkaConsumer, err = kafka.NewConsumer(&cfg.Kafka, board, logger)
		if err != nil {
			logger.Warn("failed to create Kafka consumer, continuing without Kafka", "error", err)
		} else {
			if err := kafkaConsumer.Start(); err != nil {
				logger.Warn("failed to start Kafka consumer, continuing without Kafka", "error", err)
				kafkaConsumer = nil
			} else {
				logger.Info("Kafka consumer started successfully")
			}
		}
	}

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      httpHandler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting HTTP server", "port", cfg.Server.Port)
		logger.Info("WebSocket endpoint available at /ws")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	// Stop WebSocket hub
	wsHub.Stop()

	// Stop Kafka consumer
	if kafkaConsumer != nil {
		if err := kafkaConsumer.Stop(); err != nil {
			logger.Error("failed to stop Kafka consumer", "error", err)
		}
	}

	// Stop mirror worker
	if mirrorWorker != nil {
		if err := mirrorWorker.Stop(); err != nil {
			logger.Error("failed to stop mirror worker", "error", err)
		}
	}

	// Shutdown HTTP server
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown server", "error", err)
	}

	logger.Info("server stopped")
}

// loadSeed returns the reference data the board starts from
func loadSeed(ctx context.Context, cfg *config.Config, logger *slog.Logger) (domain.Seed, error) {
	if cfg.Leaderboard.SeedSource != config.SeedSourcePostgres {
		return domain.DefaultSeed(), nil
	}

	logger.Info("connecting to PostgreSQL", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
	repo, err := postgres.NewRepository(&cfg.Postgres, logger)
	if err != nil {
		return domain.Seed{}, err
	}
	defer repo.Close()

	if err := repo.RunMigrations(ctx); err != nil {
		return domain.Seed{}, err
	}
	if _, err := repo.SeedIfEmpty(ctx, domain.DefaultSeed()); err != nil {
		return domain.Seed{}, err
	}

	seed, err := repo.LoadSeed(ctx)
	if err != nil {
		return domain.Seed{}, err
	}
	logger.Info("loaded seed from PostgreSQL", "teams", len(seed.Teams), "rounds", len(seed.Rounds))
	return seed, nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: lvl,
	}))
}
