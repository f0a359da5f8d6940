package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sawpanic/rankforum/internal/config"
	"github.com/sawpanic/rankforum/internal/forum"
	"github.com/sawpanic/rankforum/internal/infrastructure/cache"
	"github.com/sawpanic/rankforum/internal/infrastructure/db"
	apihttp "github.com/sawpanic/rankforum/internal/interfaces/http"
	"github.com/sawpanic/rankforum/internal/interfaces/http/handlers"
	"github.com/sawpanic/rankforum/internal/metrics"
	"github.com/sawpanic/rankforum/internal/persistence/postgres"
	"github.com/sawpanic/rankforum/internal/ratelimit"
)

func serveCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), configPath)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "config.yaml", "path to configuration file")
	return cmd
}

func serve(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	var (
		recorder forum.Recorder = forum.NopRecorder{}
		manager  *db.Manager
		store    *postgres.Store
	)
	if cfg.Database.Enabled {
		manager, err = db.NewManager(cfg.Database)
		if err != nil {
			return fmt.Errorf("database init failed: %w", err)
		}
		defer manager.Close()
		store = postgres.NewStore(manager.DB(), manager.QueryTimeout())
		recorder = store
	}

	engine := forum.New(recorder)

	if store != nil {
		snapshot, err := store.Load(ctx)
		if err != nil {
			return fmt.Errorf("state load failed: %w", err)
		}
		engine.Restore(snapshot)
		accounts, fields, targets, votes, banned := engine.Stats()
		log.Info().
			Int("accounts", accounts).
			Int("fields", fields).
			Int("targets", targets).
			Int("votes", votes).
			Int("banned", banned).
			Msg("State restored")
	}

	var scoreCache *cache.ScoreCache
	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()
		scoreCache = cache.NewScoreCache(client, cache.Options{TTL: cfg.Redis.TTL})
	} else {
		scoreCache = cache.NewScoreCache(nil, cache.Options{TTL: cfg.Redis.TTL})
	}

	reg := metrics.NewRegistry(nil)

	limiter := ratelimit.NewLimiter(cfg.Limits.VotesPerSecond, cfg.Limits.VoteBurst)
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if dropped := limiter.Sweep(time.Hour); dropped > 0 {
					log.Debug().Int("dropped", dropped).Msg("Swept idle rate limit buckets")
				}
			}
		}
	}()

	h := handlers.NewHandlers(handlers.Config{
		Engine:       engine,
		Scores:       scoreCache,
		Metrics:      reg,
		Limiter:      limiter,
		DB:           manager,
		MaxBodyBytes: cfg.Limits.MaxBodyBytes,
	})

	server := apihttp.NewServer(apihttp.ServerConfig{
		Addr:           cfg.Server.Addr,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		RequestTimeout: 5 * time.Second,
	}, h, reg)

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
