package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	_ "github.com/redmonkez12/agenda-api/docs" // Swagger docs
	"github.com/redmonkez12/agenda-api/internal/agenda"
	"github.com/redmonkez12/agenda-api/internal/auth"
	"github.com/redmonkez12/agenda-api/internal/blob"
	"github.com/redmonkez12/agenda-api/internal/cleanup"
	"github.com/redmonkez12/agenda-api/internal/config"
	"github.com/redmonkez12/agenda-api/internal/database"
	"github.com/redmonkez12/agenda-api/internal/health"
	httpServer "github.com/redmonkez12/agenda-api/internal/http"
	"github.com/redmonkez12/agenda-api/internal/logging"
	"github.com/redmonkez12/agenda-api/internal/mongodb"
	"github.com/redmonkez12/agenda-api/internal/ratelimit"
	"github.com/redmonkez12/agenda-api/internal/user"
)

// @title           Agenda API
// @version         1.0
// @description     Calendar backend with events, attendees, photos, tasks and reminders.

// @contact.name   API Support
// @contact.email  support@example.com

// @license.name  MIT
// @license.url   https://opensource.org/licenses/MIT

// @host      localhost:8080
// @BasePath  /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the access token.

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-Api-Key

// @securityDefinitions.basic BasicAuth

func main() {
	if err := run(); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

// stores holds the repositories of the selected driver.
type stores struct {
	users   user.Repository
	apiKeys auth.APIKeyRepository
	ledger  auth.RevocationLedger
	agenda  agenda.Repositories
	ping    health.CheckFunc
	close   func() error
}

func run() error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := logging.NewLogger(cfg.Server.IsDevelopment())
	logger.Info("starting application",
		"env", cfg.Server.Env,
		"port", cfg.Server.Port,
		"store", cfg.Store.Driver,
		"blob", cfg.Blob.Driver,
	)

	st, err := openStores(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer func() {
		if err := st.close(); err != nil {
			logger.Error("failed to close store", "error", err)
		}
	}()

	blobs, err := openBlobStore(ctx, cfg.Blob)
	if err != nil {
		return fmt.Errorf("failed to initialize blob store: %w", err)
	}

	checker := health.NewChecker(0)
	checker.Add(cfg.Store.Driver, st.ping)

	ledger := st.ledger
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = initRedis(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("failed to initialize Redis: %w", err)
		}
		defer redisClient.Close()

		ledger = auth.NewCachedLedger(ledger, redisClient, logger)
		checker.Add("redis", func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	} else {
		logger.Warn("redis disabled, rate limiting is off")
	}
	rateLimiter := ratelimit.NewLimiter(redisClient, cfg.RateLimit.MaxRequests, cfg.RateLimit.Window)

	tokenConfig := auth.TokenConfig{
		Issuer:    cfg.Auth.Issuer,
		Audience:  cfg.Auth.Audience,
		Secret:    cfg.Auth.JWTSecret,
		ExpiresIn: cfg.Auth.AccessTokenDuration,
	}
	keys := auth.NewKeyService(st.apiKeys, nil)
	authService := auth.NewService(st.users, keys, ledger, auth.NewTokenService(), tokenConfig, logger)
	gate := auth.NewGate(keys, ledger, tokenConfig, cfg.Auth.AdminUser, cfg.Auth.AdminPassword)

	engine := agenda.NewEngine(st.agenda, st.users, blobs, agenda.Config{
		MaxPhotos:    cfg.Agenda.MaxPhotos,
		MaxPhotoSize: cfg.Agenda.MaxPhotoSize,
		PresignTTL:   cfg.Blob.PresignTTL,
	}, logger)

	cleanupService := cleanup.NewService(st.agenda.Events, blobs, logger,
		cleanup.Collection{Name: "killedToken", Sweeper: ledger},
		cleanup.Collection{Name: "user", Sweeper: st.users},
		cleanup.Collection{Name: "event", Sweeper: st.agenda.Events},
		cleanup.Collection{Name: "task", Sweeper: st.agenda.Tasks},
		cleanup.Collection{Name: "reminder", Sweeper: st.agenda.Reminders},
		cleanup.Collection{Name: "attendee", Sweeper: st.agenda.Attendees},
	)

	router := httpServer.NewRouter(cfg, httpServer.Handlers{
		Auth:    auth.NewHandler(authService, rateLimiter, logger),
		Agenda:  agenda.NewHandler(engine, logger),
		Cleanup: cleanup.NewHandler(cleanupService),
		Health:  checker,
		Gate:    gate,
	}, logger)

	server := httpServer.NewServer(
		":"+cfg.Server.Port,
		router,
		cfg.Server.ReadTimeout,
		cfg.Server.WriteTimeout,
		logger,
	)

	schedulerCtx, stopScheduler := context.WithCancel(ctx)
	defer stopScheduler()
	go cleanup.NewScheduler(cleanupService, cfg.Cleanup.Interval, cfg.Cleanup.Retention, logger).Run(schedulerCtx)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		logger.Info("received signal", "signal", sig.String())

		stopScheduler()

		shutdownCtx, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		// photo deletions still in flight
		if err := engine.Wait(shutdownCtx); err != nil {
			logger.Warn("background work did not finish", "error", err)
		}
	}

	return nil
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	switch cfg.Store.Driver {
	case config.DriverPostgres:
		return openPostgres(ctx, cfg.Database)
	case config.DriverMongo:
		return openMongo(ctx, cfg.Mongo)
	case config.DriverMemory:
		return &stores{
			users:   user.NewMemoryRepository(),
			apiKeys: auth.NewMemoryAPIKeyRepository(),
			ledger:  auth.NewMemoryLedger(),
			agenda:  agenda.NewMemoryRepositories(),
			ping:    func(context.Context) error { return nil },
			close:   func() error { return nil },
		}, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// openPostgres connects, applies migrations and returns the bun repositories
func openPostgres(ctx context.Context, cfg config.DatabaseConfig) (*stores, error) {
	sqlDB, err := sql.Open("postgres", cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)

	if err := database.Migrate(ctx, sqlDB); err != nil {
		sqlDB.Close()
		return nil, err
	}

	db := database.NewBunDB(sqlDB)

	return &stores{
		users:   user.NewBunRepository(db),
		apiKeys: auth.NewBunAPIKeyRepository(db),
		ledger:  auth.NewBunLedger(db),
		agenda:  agenda.NewBunRepositories(db),
		ping:    sqlDB.PingContext,
		close:   db.Close,
	}, nil
}

// openMongo connects, creates indexes and returns the mongo repositories
func openMongo(ctx context.Context, cfg config.MongoConfig) (*stores, error) {
	client, err := mongodb.Connect(ctx, cfg.URI)
	if err != nil {
		return nil, err
	}

	db := client.Database(cfg.Database)
	if err := mongodb.EnsureIndexes(ctx, db); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	return &stores{
		users:   user.NewMongoRepository(db),
		apiKeys: auth.NewMongoAPIKeyRepository(db),
		ledger:  auth.NewMongoLedger(db),
		agenda:  agenda.NewMongoRepositories(db),
		ping: func(ctx context.Context) error {
			return client.Ping(ctx, nil)
		},
		close: func() error {
			return client.Disconnect(context.Background())
		},
	}, nil
}

func openBlobStore(ctx context.Context, cfg config.BlobConfig) (blob.Store, error) {
	switch cfg.Driver {
	case config.DriverS3:
		return blob.NewS3Store(blob.S3Config{
			Endpoint:     cfg.Endpoint,
			Region:       cfg.Region,
			AccessKey:    cfg.AccessKey,
			SecretKey:    cfg.SecretKey,
			Bucket:       cfg.Bucket,
			UsePathStyle: cfg.UsePathStyle,
		}), nil
	case config.DriverMinio:
		store, err := blob.NewMinioStore(blob.MinioConfig{
			Endpoint:  cfg.Endpoint,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			Bucket:    cfg.Bucket,
			Region:    cfg.Region,
			UseSSL:    cfg.UseSSL,
		})
		if err != nil {
			return nil, err
		}
		if err := store.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return store, nil
	case config.DriverMemory:
		return blob.NewMemoryStore(), nil
	default:
		return nil, errors.New("unknown blob driver " + cfg.Driver)
	}
}

// initRedis initializes the Redis connection and returns a Redis client
func initRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return client, nil
}
