package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	auth "github.com/goliatone/go-auth-client"
	"github.com/goliatone/go-auth-client/activitymap"
	"github.com/goliatone/go-auth-client/config"
	"github.com/goliatone/go-auth-client/redisstore"
	"github.com/goliatone/go-auth-client/repository"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// App bundles everything a command needs.
type App struct {
	Options config.Options
	Service *auth.Service
	Guard   *auth.Guard
	Logger  *zap.Logger

	closers []func() error
}

// Close releases the slot backend and flushes the logger.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type appKey struct{}

// WithApp stores app on ctx.
func WithApp(ctx context.Context, app *App) context.Context {
	return context.WithValue(ctx, appKey{}, app)
}

// AppFromContext returns the App stored by WithApp.
func AppFromContext(ctx context.Context) (*App, error) {
	app, ok := ctx.Value(appKey{}).(*App)
	if !ok || app == nil {
		return nil, fmt.Errorf("authctl not initialized")
	}
	return app, nil
}

// Bootstrap builds an App from opts and recovers any persisted session.
func Bootstrap(ctx context.Context, opts config.Options) (*App, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := newLogger(opts.Debug)
	if err != nil {
		return nil, err
	}

	app := &App{Options: opts, Logger: logger}
	app.closers = append(app.closers, func() error {
		_ = logger.Sync()
		return nil
	})

	slots, closeSlots, err := openSlots(ctx, opts.Store)
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	if closeSlots != nil {
		app.closers = append(app.closers, closeSlots)
	}

	provider := auth.NewZapProvider(logger)
	store := auth.NewStore(slots, auth.WithStoreLogger(provider.GetLogger("auth.store")))
	authorizer := auth.NewBearerAuthorizer(nil).WithScheme(opts.GetAuthScheme())
	api := auth.NewHTTPAPI(opts, auth.WithAPILogger(provider.GetLogger("auth.api")))

	activity := logger.Named("auth.activity")
	activityOpts := []activitymap.Option{
		activitymap.WithChannel(opts.Activity.Channel),
		activitymap.WithActorFallback(opts.Activity.ActorFallback),
	}
	app.Service = auth.NewService(store, api,
		auth.WithLoggerProvider(provider),
		auth.WithAuthorizer(authorizer),
		auth.WithRevokeOnUnauthorized(opts.RevokeOnUnauthorized),
		auth.WithActivitySink(auth.ActivitySinkFunc(func(_ context.Context, event auth.ActivityEvent) error {
			record := activitymap.Normalize(event, activityOpts...)
			activity.Debug(record.Verb,
				zap.String("channel", record.Channel),
				zap.String("actor_id", record.ActorID),
				zap.String("object_type", record.ObjectType),
				zap.String("object_id", record.ObjectID),
				zap.Any("metadata", record.Metadata),
				zap.Time("occurred_at", record.OccurredAt),
			)
			return nil
		})),
	)
	app.Guard = auth.NewGuardFromConfig(opts)

	if app.Service.Recover(ctx) {
		role, _ := app.Service.CurrentRole()
		logger.Debug("session recovered", zap.String("role", role.String()))
	}
	return app, nil
}

func newLogger(debug bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	if debug {
		cfg = zap.NewDevelopmentConfig()
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}

func openSlots(ctx context.Context, opts config.StoreOptions) (auth.SlotStorage, func() error, error) {
	switch opts.Driver {
	case config.StoreMemory:
		return auth.NewMemorySlots(), nil, nil

	case config.StoreRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     opts.RedisAddr,
			Password: opts.RedisPassword,
			DB:       opts.RedisDB,
		})
		prefix := opts.RedisPrefix
		if ns := strings.TrimSpace(opts.Namespace); ns != "" && ns != repository.DefaultNamespace {
			prefix += ns + ":"
		}
		slots := redisstore.NewSlotStore(client).WithPrefix(prefix).WithTTL(opts.RedisTTL)
		return slots, client.Close, nil

	case config.StoreSQLite:
		if err := ensureDir(opts.SQLiteDSN); err != nil {
			return nil, nil, err
		}
		db, err := repository.OpenSQLite(opts.SQLiteDSN)
		if err != nil {
			return nil, nil, err
		}
		repo := repository.NewSlotRepository(db, repository.WithNamespace(opts.Namespace))
		if err := repo.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return repo, db.Close, nil
	}
	return nil, nil, fmt.Errorf("unsupported store driver %q", opts.Driver)
}

// ensureDir creates the parent directory of a file DSN.
func ensureDir(dsn string) error {
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" || strings.Contains(path, ":memory:") || strings.HasPrefix(path, "mode=memory") {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create session directory: %w", err)
	}
	return nil
}
