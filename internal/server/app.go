// Package server wires configuration, storage, the answering service and
// the HTTP API into a runnable application.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/gophchat/internal/logging"
	"github.com/dmitrijs2005/gophchat/internal/server/answer"
	"github.com/dmitrijs2005/gophchat/internal/server/auth"
	"github.com/dmitrijs2005/gophchat/internal/server/config"
	"github.com/dmitrijs2005/gophchat/internal/server/export"
	"github.com/dmitrijs2005/gophchat/internal/server/httpapi"
	"github.com/dmitrijs2005/gophchat/internal/server/lease"
	"github.com/dmitrijs2005/gophchat/internal/server/memstore"
	"github.com/dmitrijs2005/gophchat/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophchat/internal/server/services"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

type store interface {
	services.ConversationStore
	services.UserStore
}

type App struct {
	config  *config.Config
	logger  logging.Logger
	server  *httpapi.HTTPServer
	closers []io.Closer
}

// NewApp builds every component named by c. Logs go to w.
func NewApp(ctx context.Context, c *config.Config, w io.Writer) (*App, error) {
	logger, err := logging.New(c.LogLevel, c.LogFormat, w)
	if err != nil {
		return nil, err
	}

	app := &App{config: c, logger: logger}

	st, err := app.openStore(ctx)
	if err != nil {
		app.Close()
		return nil, err
	}

	tokens, err := auth.NewTokenManager([]byte(c.SecretKey), c.TokenValidityDuration)
	if err != nil {
		app.Close()
		return nil, err
	}

	provider, err := answer.New(answer.Settings{
		Provider:     c.AIProvider,
		BaseURL:      c.AIBaseURL,
		APIKey:       c.AIAPIKey,
		Model:        c.AIModel,
		SystemPrompt: c.AISystemPrompt,
		Timeout:      c.AITimeout,
	})
	if err != nil {
		app.Close()
		return nil, err
	}

	locker, err := app.newLocker(ctx)
	if err != nil {
		app.Close()
		return nil, err
	}

	var exporter *export.Exporter
	if c.ExportEnabled() {
		exporter, err = export.New(ctx, st, export.Settings{
			Region:       c.S3Region,
			Bucket:       c.S3Bucket,
			AccessKey:    c.S3AccessKey,
			SecretKey:    c.S3SecretKey,
			BaseEndpoint: c.S3BaseEndpoint,
		})
		if err != nil {
			app.Close()
			return nil, err
		}
	}

	queries := services.NewQueryOrchestrator(st, provider, logger,
		services.WithHistoryLimit(c.HistoryLimit),
		services.WithAITimeout(c.AITimeout),
		services.WithLocker(locker),
	)

	app.server = httpapi.NewHTTPServer(c.HTTPAddr, logger, httpapi.Deps{
		Users:         services.NewUserService(st, tokens, logger),
		Queries:       queries,
		Conversations: st,
		Exporter:      exporter,
		Tokens:        tokens,
		CORSOrigins:   c.CORSAllowedOrigins,
	})

	logger.Info(ctx, "app configured",
		"storage", c.StorageBackend,
		"ai_provider", c.AIProvider,
		"lease", c.LeaseBackend,
		"export", c.ExportEnabled(),
	)
	return app, nil
}

func (app *App) openStore(ctx context.Context) (store, error) {
	switch app.config.StorageBackend {
	case config.StorageBackendMemory:
		app.logger.Warn(ctx, "using in-memory storage, data is lost on restart")
		return memstore.New(), nil
	case config.StorageBackendPostgres:
		db, err := sql.Open("pgx", app.config.DatabaseDSN)
		if err != nil {
			return nil, fmt.Errorf("db init error: %w", err)
		}
		app.closers = append(app.closers, db)

		if err := db.PingContext(ctx); err != nil {
			return nil, fmt.Errorf("db ping error: %w", err)
		}

		m := repomanager.NewPostgresRepositoryManager()
		if err := m.RunMigrations(ctx, db); err != nil {
			return nil, fmt.Errorf("db migration error: %w", err)
		}
		return services.NewSQLStore(db, m), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", app.config.StorageBackend)
	}
}

func (app *App) newLocker(ctx context.Context) (lease.Locker, error) {
	switch app.config.LeaseBackend {
	case config.LeaseBackendNone, "":
		return lease.Nop{}, nil
	case config.LeaseBackendLocal:
		return lease.NewLocal(), nil
	case config.LeaseBackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     app.config.RedisAddr,
			Password: app.config.RedisPassword,
			DB:       app.config.RedisDB,
		})
		app.closers = append(app.closers, client)

		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis ping error: %w", err)
		}
		return lease.NewRedis(client, app.config.LeaseTTL), nil
	default:
		return nil, fmt.Errorf("unknown lease backend %q", app.config.LeaseBackend)
	}
}

// Close releases the database pool and the redis client, if any.
func (app *App) Close() error {
	var errs []error
	for i := len(app.closers) - 1; i >= 0; i-- {
		errs = append(errs, app.closers[i].Close())
	}
	app.closers = nil
	return errors.Join(errs...)
}

// Run serves until ctx is canceled or the process receives SIGINT or
// SIGTERM.
func (app *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	app.logger.Info(ctx, "Starting app...")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return app.server.Run(gctx)
	})

	err := g.Wait()
	if cerr := app.Close(); cerr != nil {
		app.logger.Error(ctx, "closing resources", "error", cerr)
	}

	app.logger.Info(context.WithoutCancel(ctx), "App stopped")
	return err
}
