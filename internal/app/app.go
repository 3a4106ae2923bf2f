package app

import (
	"context"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/driftchat/drift-server/internal/access"
	"github.com/driftchat/drift-server/internal/auth"
	"github.com/driftchat/drift-server/internal/config"
	"github.com/driftchat/drift-server/internal/filestore"
	"github.com/driftchat/drift-server/internal/ratelimit"
	"github.com/driftchat/drift-server/internal/rtc"
	"github.com/driftchat/drift-server/internal/rtc/handlers"
	"github.com/driftchat/drift-server/internal/store"
	"github.com/driftchat/drift-server/internal/store/sqlite"
	transporthttp "github.com/driftchat/drift-server/internal/transport/http"
)

// App wires together storage, the realtime core and the transport layer.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	store           store.Store
	localCounters   *ratelimit.LocalStore
	redisClient     *redis.Client
	log             *zerolog.Logger
}

// New constructs the application with the provided configuration.
func New(cfg config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")

	gate := auth.NewGate(&auth.Config{
		Secret:   []byte(cfg.JWT.Secret),
		Issuer:   cfg.JWT.Issuer,
		Audience: cfg.JWT.Audience,
		TTL:      24 * time.Hour,
	})

	// Redis backs the rate-limit counters when configured, so quotas hold
	// across replicas. Without it counters live in process memory.
	var (
		counters      ratelimit.CounterStore
		localCounters *ratelimit.LocalStore
		redisClient   *redis.Client
	)
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		counters = ratelimit.NewRedisStore(redisClient, "drift")
		logger.Info().Str("addr", cfg.Redis.Addr).Msg("rate limit counters in redis")
	} else {
		localCounters = ratelimit.NewLocalStore()
		counters = localCounters
		logger.Info().Msg("rate limit counters in memory")
	}
	limiter := ratelimit.NewLimiter(counters, cfg.RateLimit.Quota, cfg.RateLimit.Window, logger)

	resolver := access.NewResolver(st)
	registry := rtc.NewRegistry(logger)
	dispatcher := rtc.NewDispatcher(limiter, logger)
	handlers.New(st, resolver, registry, cfg.HistoryPageSize, logger).Register(dispatcher)

	files, err := filestore.NewDisk(cfg.UploadDir, "/files")
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("init filestore: %w", err)
	}

	server := transporthttp.NewServer(transporthttp.Deps{
		Gate:     gate,
		WS:       transporthttp.NewWSHandler(gate, registry, dispatcher, logger),
		Channels: transporthttp.NewChannelHandlers(st, resolver, registry, logger),
		Servers:  transporthttp.NewServerHandlers(st, resolver, registry, logger),
		Messages: transporthttp.NewMessageHandlers(st, resolver, registry, files, logger),
	}, cfg, logger)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		store:           st,
		localCounters:   localCounters,
		redisClient:     redisClient,
		log:             logger,
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal
// error.
func (a *App) Run(ctx context.Context) error {
	if a.localCounters != nil {
		a.localCounters.StartSweep(ctx, time.Minute)
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := a.server.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		a.cleanup()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.cleanup()
			return err
		}

		a.cleanup()
		return <-serverErr
	}
}

// cleanup closes the store and auxiliary clients.
func (a *App) cleanup() {
	if a.localCounters != nil {
		a.localCounters.Close()
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close redis client")
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
