package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"

	_ "github.com/redmonkez12/taskhive/docs" // Swagger docs (generated)
	"github.com/redmonkez12/taskhive/internal/auth"
	"github.com/redmonkez12/taskhive/internal/config"
	"github.com/redmonkez12/taskhive/internal/database"
	"github.com/redmonkez12/taskhive/internal/email"
	"github.com/redmonkez12/taskhive/internal/group"
	httpServer "github.com/redmonkez12/taskhive/internal/http"
	"github.com/redmonkez12/taskhive/internal/logging"
	"github.com/redmonkez12/taskhive/internal/notify"
	"github.com/redmonkez12/taskhive/internal/ratelimit"
	"github.com/redmonkez12/taskhive/internal/task"
	"github.com/redmonkez12/taskhive/internal/user"
)

// @title           TaskHive API
// @version         1.0
// @description     A multi-tenant task management API with session-family authentication, group membership, and a task lifecycle state machine.

// @contact.name   API Support
// @contact.email  support@taskhive.dev

// @license.name  MIT
// @license.url   https://opensource.org/licenses/MIT

// @host      localhost:8080
// @BasePath  /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the access token.

func main() {
	if err := run(); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	logger := logging.NewLogger(cfg.Server.IsDevelopment())
	logger.Info("starting application",
		"env", cfg.Server.Env,
		"port", cfg.Server.Port,
		"token_scheme", cfg.Auth.TokenScheme,
	)

	// Initialize database connection
	db, err := initDB(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	// Initialize Redis connection
	redisClient, err := initRedis(cfg.Redis)
	if err != nil {
		return fmt.Errorf("failed to initialize Redis: %w", err)
	}
	defer redisClient.Close()

	// Initialize repositories
	userRepo := user.NewRepository(db)
	sessionRepo := auth.NewRepository(db)
	actionTokenRepo := auth.NewActionTokenRepository(db)
	groupRepo := group.NewRepository(db)
	taskRepo := task.NewRepository(db)

	// Initialize rate limiter
	rateLimiter := ratelimit.NewLimiter(redisClient)

	// Initialize token service for the configured scheme
	tokenService, err := newTokenService(cfg.Auth)
	if err != nil {
		return fmt.Errorf("failed to initialize token service: %w", err)
	}

	// Initialize notification queue and email worker
	queue := notify.NewQueue(redisClient, cfg.Email.QueueKey)
	emailService := email.NewService(
		cfg.Email.SMTPHost,
		cfg.Email.SMTPPort,
		cfg.Email.SMTPUser,
		cfg.Email.SMTPPassword,
		cfg.Email.FrontendURL,
	)
	consumer := notify.NewConsumer(redisClient, cfg.Email.QueueKey, emailService.Handle, logger)

	consumerCtx, stopConsumer := context.WithCancel(context.Background())
	defer stopConsumer()
	go consumer.Run(consumerCtx)

	// Expired refresh and action tokens pile up otherwise
	go runTokenJanitor(consumerCtx, sessionRepo, logger)

	// Initialize services
	authService := auth.NewService(
		userRepo,
		sessionRepo,
		actionTokenRepo,
		tokenService,
		queue,
		logger,
		cfg.Auth.AccessTokenDuration,
		cfg.Auth.RefreshTokenDuration,
	)
	groupService := group.NewService(groupRepo, userRepo)
	taskService := task.NewService(
		taskRepo,
		groupService,
		userRepo,
		queue,
		logger,
		cfg.Features.TaskAssignment,
	)

	// Initialize HTTP handlers
	authHandler := auth.NewHandler(
		authService,
		userRepo,
		rateLimiter,
		logger,
		!cfg.Server.IsDevelopment(), // isProduction
		cfg.Auth.AccessTokenDuration,
		cfg.Auth.RefreshTokenDuration,
	)
	groupHandler := group.NewHandler(groupService, logger)
	taskHandler := task.NewHandler(taskService, logger)
	authMiddleware := auth.NewMiddleware(tokenService)

	// Initialize router
	router := httpServer.NewRouter(cfg, authHandler, groupHandler, taskHandler, authMiddleware, logger)

	// Initialize HTTP server
	serverAddr := ":" + cfg.Server.Port
	server := httpServer.NewServer(
		serverAddr,
		router,
		cfg.Server.ReadTimeout,
		cfg.Server.WriteTimeout,
	)

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Start()
	}()

	// Wait for interrupt signal or server error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		log.Printf("Received signal: %v", sig)

		// Stop the notification worker before the server drains
		stopConsumer()

		// Graceful shutdown with timeout
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// runTokenJanitor deletes expired token rows on an hourly cadence
func runTokenJanitor(ctx context.Context, sessions *auth.Repository, logger *logging.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := sessions.DeleteExpired(ctx); err != nil {
				logger.Warn("failed to delete expired tokens", "error", err.Error())
			}
		}
	}
}

// newTokenService builds the codec selected by TOKEN_SCHEME
func newTokenService(cfg config.AuthConfig) (auth.TokenService, error) {
	switch cfg.TokenScheme {
	case "paseto":
		return auth.NewPasetoService(cfg.AccessSecret, cfg.RefreshSecret)
	default:
		return auth.NewJWTService(cfg.AccessSecret, cfg.RefreshSecret)
	}
}

// initDB initializes the database connection and returns a Bun DB instance
func initDB(cfg config.DatabaseConfig) (*bun.DB, error) {
	sqlDB, err := sql.Open("postgres", cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Verify connection
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Set connection pool settings
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	return database.NewBunDB(sqlDB), nil
}

// initRedis initializes the Redis connection and returns a Redis client
func initRedis(cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Verify connection
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return client, nil
}
