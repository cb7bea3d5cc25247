// Package bootstrap wires configuration into the running import pipeline.
// Both the HTTP server and the import CLI start from Setup.
package bootstrap

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/beneficiary-import/internal/archive"
	"github.com/ignite/beneficiary-import/internal/config"
	"github.com/ignite/beneficiary-import/internal/notify"
	"github.com/ignite/beneficiary-import/internal/pkg/distlock"
	"github.com/ignite/beneficiary-import/internal/pkg/logger"
	"github.com/ignite/beneficiary-import/internal/pkg/metrics"
	"github.com/ignite/beneficiary-import/internal/repository/postgres"
	"github.com/ignite/beneficiary-import/internal/service/importing"
)

// Deps holds the long-lived connections an import process needs. Redis,
// Archiver and Notifier are nil when not configured.
type Deps struct {
	Config   *config.Config
	DB       *sql.DB
	Redis    *redis.Client
	Archiver *archive.S3Archiver
	Notifier *notify.SESNotifier
}

// ConfigureLogging applies the logging section of the config.
func ConfigureLogging(cfg config.LoggingConfig) {
	logger.SetLevel(logger.ParseLevel(cfg.Level))
	logger.SetRedactPII(cfg.Redact())
}

// Setup opens the database and the optional collaborators. Failing to reach
// Redis, S3 or SES is logged and the feature is left off; failing to reach
// PostgreSQL is fatal.
func Setup(ctx context.Context, cfg *config.Config) (*Deps, error) {
	db, err := OpenDatabase(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	d := &Deps{Config: cfg, DB: db, Redis: ConnectRedis(ctx, cfg.Redis)}

	if cfg.Archive.Enabled {
		a, err := archive.NewS3Archiver(ctx, cfg.Archive)
		if err != nil {
			logger.Warn("upload archiving disabled", "error", err)
		} else {
			d.Archiver = a
			logger.Info("upload archiving enabled", "bucket", a.Bucket())
		}
	}
	if cfg.Notify.Enabled {
		n, err := notify.NewSESNotifier(ctx, cfg.Notify)
		if err != nil {
			logger.Warn("import notifications disabled", "error", err)
		} else {
			d.Notifier = n
			logger.Info("import notifications enabled", "recipients", len(cfg.Notify.Recipients))
		}
	}
	return d, nil
}

// OpenDatabase opens and pings the PostgreSQL pool.
func OpenDatabase(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	if cfg.URL == "" {
		return nil, errors.New("database url is required (set DATABASE_URL)")
	}
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "ping database")
	}
	return db, nil
}

// ConnectRedis returns a connected client, or nil when Redis is not
// configured or unreachable. Import locks then fall back to PostgreSQL
// advisory locks.
func ConnectRedis(ctx context.Context, cfg config.RedisConfig) *redis.Client {
	if cfg.Addr == "" {
		return nil
	}
	var opts *redis.Options
	if parsed, err := redis.ParseURL(cfg.Addr); err == nil {
		opts = parsed
	} else {
		opts = &redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis unreachable, falling back to postgres advisory locks", "addr", cfg.Addr, "error", err)
		client.Close()
		return nil
	}
	logger.Info("redis connected, distributed import locks enabled", "addr", cfg.Addr)
	return client
}

// ImportService builds the import service over these dependencies. reg may be
// nil to skip metrics.
func (d *Deps) ImportService(reg prometheus.Registerer) *importing.Service {
	svc := importing.NewService(postgres.NewBeneficiaryRepo(d.DB))

	rc, db, ttl := d.Redis, d.DB, d.Config.Import.LockTTL()
	svc.SetLocker(func(key string) importing.Lock {
		return distlock.NewLock(rc, db, key, ttl)
	})
	if d.Archiver != nil {
		svc.SetArchiver(d.Archiver)
	}
	if d.Notifier != nil {
		svc.SetNotifier(d.Notifier)
	}
	if reg != nil {
		svc.SetMetrics(metrics.NewImports(reg))
	}
	return svc
}

// Close releases the connections.
func (d *Deps) Close() {
	if d.Redis != nil {
		d.Redis.Close()
	}
	if d.DB != nil {
		d.DB.Close()
	}
}
