package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"tldrchinese/internal/config"
	"tldrchinese/internal/infrastructure/delivery"
	"tldrchinese/internal/infrastructure/images"
	"tldrchinese/internal/infrastructure/llm"
	"tldrchinese/internal/infrastructure/lock"
	"tldrchinese/internal/infrastructure/scheduler"
	"tldrchinese/internal/infrastructure/source"
	"tldrchinese/internal/infrastructure/storage"
	"tldrchinese/internal/logging"
	"tldrchinese/internal/server"
	"tldrchinese/internal/usecase"
)

// Application wires configuration to use cases and lifecycle orchestration.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	db        *sql.DB
	redis     *redis.Client
	server    *server.Server
	scheduler *usecase.Scheduler
}

// New builds the runnable application instance.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	location := cfg.Source.Location()

	assembler := usecase.NewAssembler(usecase.AssemblerDeps{
		Fetcher:    source.NewFetcher(cfg.Source.BaseURL, nil, logging.Component(baseLogger, "source.fetcher")),
		Parser:     source.NewParser(logging.Component(baseLogger, "source.parser")),
		Translator: llm.NewDeepSeekTranslator(cfg.DeepSeek, logging.Component(baseLogger, "llm.translator")),
		Images:     images.NewResolver(nil, logging.Component(baseLogger, "images")),
		Headline:   llm.NewGeminiHeadline(cfg.Gemini, logging.Component(baseLogger, "llm.headline")),
		Store:      storage.NewDigestStore(db),
		Lock:       lock.NewRedisLock(redisClient, logging.Component(baseLogger, "lock")),
		Location:   location,
		Logger:     logging.Component(baseLogger, "assembler"),
	})

	subscribers := storage.NewSubscriberStore(db)
	mailer := delivery.NewMailgun(cfg.Mailgun.Domain, cfg.Mailgun.APIKey, logging.Component(baseLogger, "mailgun"))

	newsletter := usecase.NewNewsletter(usecase.NewsletterDeps{
		Assembler:   assembler,
		Subscribers: subscribers,
		Mailer:      mailer,
		FrontendURL: cfg.Server.FrontendURL,
		BackendURL:  cfg.Server.BackendURL,
		Logger:      logging.Component(baseLogger, "newsletter"),
	})

	dailyJob := usecase.NewScheduler(
		scheduler.NewCronScheduler(cfg.Scheduler.CronExpression, location),
		newsletter,
		logging.Component(baseLogger, "scheduler"),
	)

	httpServer := server.New(server.Deps{
		Assembler:     assembler,
		Subscribers:   subscribers,
		Confirmations: mailer,
		Location:      location,
		BackendURL:    cfg.Server.BackendURL,
		Logger:        logging.Component(baseLogger, "server"),
	})

	return &Application{
		cfg:       cfg,
		logger:    baseLogger,
		db:        db,
		redis:     redisClient,
		server:    httpServer,
		scheduler: dailyJob,
	}, nil
}

// Run starts the daily scheduler and serves HTTP until ctx is cancelled.
func (a *Application) Run(ctx context.Context) error {
	if err := a.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.server.Start(a.cfg.Server.ListenAddr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.scheduler.Stop(shutdownCtx); err != nil {
		a.logger.Warn("scheduler stop failed", "error", err)
	}
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("server shutdown failed", "error", err)
	}

	return nil
}

// Close releases the database and redis connections.
func (a *Application) Close() error {
	if err := a.redis.Close(); err != nil {
		a.logger.Warn("redis close failed", "error", err)
	}
	return a.db.Close()
}
