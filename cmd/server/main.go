package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/focusnest/wellness-service/internal/achievement"
	"github.com/focusnest/wellness-service/internal/cachestats"
	"github.com/focusnest/wellness-service/internal/config"
	"github.com/focusnest/wellness-service/internal/effectiveness"
	"github.com/focusnest/wellness-service/internal/httpapi"
	"github.com/focusnest/wellness-service/internal/media"
	"github.com/focusnest/wellness-service/internal/metrics"
	"github.com/focusnest/wellness-service/internal/notification"
	"github.com/focusnest/wellness-service/internal/session"
	"github.com/focusnest/wellness-service/internal/social"
	sharedauth "github.com/focusnest/wellness-service/shared-libs/auth"
	"github.com/focusnest/wellness-service/shared-libs/envconfig"
	"github.com/focusnest/wellness-service/shared-libs/logging"
	"github.com/focusnest/wellness-service/shared-libs/ratelimit"
	sharedserver "github.com/focusnest/wellness-service/shared-libs/server"
)

const serviceName = "wellness-service"

type repositories struct {
	achievements  achievement.Repository
	sessions      session.Repository
	social        social.Repository
	notifications notification.Repository
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := envconfig.LoadDotEnv(); err != nil {
		panic(fmt.Errorf("dotenv error: %w", err))
	}
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Errorf("config error: %w", err))
	}

	logger := logging.NewLogger(serviceName)
	loc, err := cfg.StreakLocation()
	if err != nil {
		panic(fmt.Errorf("streak timezone: %w", err))
	}

	repos, closeRepos, err := newRepositories(ctx, cfg)
	if err != nil {
		panic(fmt.Errorf("repository init error: %w", err))
	}
	defer closeRepos()

	var shutdownHooks []func(context.Context)

	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb, err = newRedisClient(ctx, cfg.Redis)
		if err != nil {
			panic(fmt.Errorf("redis init error: %w", err))
		}
		shutdownHooks = append(shutdownHooks, func(context.Context) { _ = rdb.Close() })
	}

	m := metrics.New()

	achievementService, err := achievement.NewService(repos.achievements, achievement.NewSystemClock(), achievement.NewUUIDGenerator(), logger)
	if err != nil {
		panic(fmt.Errorf("achievement service init error: %w", err))
	}
	if cfg.SeedDefaults {
		created, err := achievementService.SeedDefaults(ctx)
		if err != nil {
			panic(fmt.Errorf("seed achievements: %w", err))
		}
		logger.Info("achievement catalogue seeded", slog.Int("created", created))
	}

	var notifyOpts []notification.Option
	if rdb != nil {
		notifyOpts = append(notifyOpts, notification.WithPublisher(notification.NewRedisPublisher(rdb)))
	}
	if cfg.Push.Enabled {
		sender, err := notification.NewFCMSender(ctx, cfg.GCPProjectID, cfg.Push.CredentialsFile, logger)
		if err != nil {
			panic(fmt.Errorf("fcm init error: %w", err))
		}
		dispatcher := notification.NewDispatcher(sender, logger, cfg.Push.Workers, cfg.Push.QueueSize)
		notifyOpts = append(notifyOpts, notification.WithDispatcher(dispatcher))
		shutdownHooks = append([]func(context.Context){dispatcher.Stop}, shutdownHooks...)
	}
	notificationService, err := notification.NewService(repos.notifications, repos.achievements, notification.NewSystemClock(), notification.NewUUIDGenerator(), logger, notifyOpts...)
	if err != nil {
		panic(fmt.Errorf("notification service init error: %w", err))
	}

	processor, err := achievement.NewProcessor(repos.achievements, achievement.NewSystemClock(), logger,
		achievement.WithNotifier(notificationService),
		achievement.WithRecorder(m),
	)
	if err != nil {
		panic(fmt.Errorf("processor init error: %w", err))
	}

	sessionService, err := session.NewService(repos.sessions, processor, session.NewSystemClock(), session.NewUUIDGenerator(), loc, logger)
	if err != nil {
		panic(fmt.Errorf("session service init error: %w", err))
	}
	effectivenessService, err := effectiveness.NewService(sessionService)
	if err != nil {
		panic(fmt.Errorf("effectiveness service init error: %w", err))
	}
	socialService, err := social.NewService(repos.social, processor, social.NewSystemClock(), logger)
	if err != nil {
		panic(fmt.Errorf("social service init error: %w", err))
	}

	var statsStore cachestats.Store = cachestats.NewMemoryStore()
	if rdb != nil {
		statsStore = cachestats.NewRedisStore(rdb)
	}
	cacheStatsService, err := cachestats.NewService(statsStore)
	if err != nil {
		panic(fmt.Errorf("cache stats service init error: %w", err))
	}

	icons := media.NewResolver(nil, cfg.Icons.SignedURLTTL, logger)
	if cfg.Icons.Bucket != "" {
		resolver, closeStorage, err := media.NewGCSResolver(ctx, cfg.Icons.Bucket, cfg.Icons.SignedURLTTL, logger)
		if err != nil {
			panic(fmt.Errorf("storage init error: %w", err))
		}
		icons = resolver
		shutdownHooks = append(shutdownHooks, func(context.Context) { _ = closeStorage() })
	}

	verifier, err := sharedauth.NewVerifier(sharedauth.Config{
		Mode:     cfg.Auth.Mode,
		JWKSURL:  cfg.Auth.JWKSURL,
		Audience: cfg.Auth.Audience,
		Issuer:   cfg.Auth.Issuer,
	})
	if err != nil {
		panic(fmt.Errorf("auth verifier error: %w", err))
	}

	limiter := ratelimit.New(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	go limiter.Cleanup(ctx, time.Minute)

	router := sharedserver.NewRouter(serviceName, func(r chi.Router) {
		r.Handle("/metrics", m.Handler(cfg.Metrics.User, cfg.Metrics.Pass))

		r.Group(func(r chi.Router) {
			r.Use(sharedauth.Middleware(verifier))
			r.Use(limiter.Middleware)

			httpapi.RegisterRoutes(r, httpapi.Services{
				Achievements:  achievementService,
				Sessions:      sessionService,
				Effectiveness: effectivenessService,
				Social:        socialService,
				Notifications: notificationService,
				CacheStats:    cacheStatsService,
				Icons:         icons,
			}, cfg.Auth.AdminIDs, logger)
		})
	}, m.Middleware)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	if err := sharedserver.Run(ctx, srv, logger, shutdownHooks...); err != nil && !errors.Is(err, http.ErrServerClosed) {
		panic(err)
	}
}

func newRepositories(ctx context.Context, cfg config.Config) (repositories, func(), error) {
	switch cfg.DataStore {
	case config.DataStoreFirestore:
		databaseID := cfg.Firestore.DatabaseID
		if cfg.Firestore.EmulatorHost != "" {
			if err := os.Setenv("FIRESTORE_EMULATOR_HOST", cfg.Firestore.EmulatorHost); err != nil {
				return repositories{}, nil, fmt.Errorf("set FIRESTORE_EMULATOR_HOST: %w", err)
			}
			databaseID = firestore.DefaultDatabaseID
		}
		if databaseID == "" {
			databaseID = firestore.DefaultDatabaseID
		}

		client, err := firestore.NewClientWithDatabase(ctx, cfg.GCPProjectID, databaseID)
		if err != nil {
			return repositories{}, nil, fmt.Errorf("firestore client: %w", err)
		}

		repos := repositories{
			achievements:  achievement.NewFirestoreRepository(client, achievement.NewSystemClock()),
			sessions:      session.NewFirestoreRepository(client),
			social:        social.NewFirestoreRepository(client),
			notifications: notification.NewFirestoreRepository(client),
		}
		cleanup := func() {
			_ = client.Close()
		}
		return repos, cleanup, nil
	default:
		repos := repositories{
			achievements:  achievement.NewMemoryRepository(),
			sessions:      session.NewMemoryRepository(),
			social:        social.NewMemoryRepository(),
			notifications: notification.NewMemoryRepository(),
		}
		return repos, func() {}, nil
	}
}

func newRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return rdb, nil
}
