// Package metricsbuilder assembles the analysis service from configuration.
package metricsbuilder

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/park285/chess-metrics/internal/config"
	"github.com/park285/chess-metrics/internal/msgcat"
	"github.com/park285/chess-metrics/internal/rules"
	"github.com/park285/chess-metrics/internal/service/analysis"
	"github.com/park285/chess-metrics/internal/service/cache"
)

type Deps struct {
	Service  *analysis.Service
	Engine   rules.Engine
	Cache    *cache.CacheService
	Repo     analysis.Repository
	Messages *msgcat.Catalog

	db *sql.DB
}

// Close releases the cache client and the database pool, if any.
func (d *Deps) Close() error {
	var firstErr error
	if d.Cache != nil {
		if err := d.Cache.Close(); err != nil {
			firstErr = err
		}
	}
	if d.db != nil {
		if err := d.db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func New(cfg *config.AppConfig, logger *zap.Logger) (*Deps, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	engine, err := rules.New(cfg.RulesEngine)
	if err != nil {
		return nil, fmt.Errorf("init rules engine: %w", err)
	}

	messages, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}

	deps := &Deps{Engine: engine, Messages: messages}

	// Cache (Redis optional)
	if cfg.RedisURL != "" {
		cconf, perr := parseRedisURL(cfg.RedisURL)
		if perr != nil {
			return nil, fmt.Errorf("parse redis url: %w", perr)
		}
		deps.Cache, err = cache.NewCacheService(*cconf, logger)
		if err != nil {
			return nil, fmt.Errorf("init cache: %w", err)
		}
	} else {
		logger.Info("REDIS_URL not set, metric reports are not cached")
	}

	// Repository (Postgres optional, memory otherwise)
	if cfg.DatabaseURL != "" {
		db, err := openPostgres(cfg.DatabaseURL)
		if err != nil {
			_ = deps.Close()
			return nil, err
		}
		deps.db = db
		deps.Repo = analysis.NewRepository(db)
	} else {
		logger.Info("DATABASE_URL not set, using in-memory analysis history")
		deps.Repo = analysis.NewMemoryRepository()
	}

	svcCfg := analysis.Config{
		CacheTTL:     cfg.CacheTTL(),
		HistoryLimit: cfg.HistoryLimit,
	}
	deps.Service, err = analysis.NewService(engine, deps.Cache, deps.Repo, analysis.NewBoardRenderer(), svcCfg, logger)
	if err != nil {
		_ = deps.Close()
		return nil, err
	}

	logger.Info("analysis service ready",
		zap.String("engine", engine.Name()),
		zap.Bool("cache", deps.Cache != nil),
		zap.Bool("postgres", deps.db != nil),
	)
	return deps, nil
}

func openPostgres(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	// basic pool settings
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := analysis.EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func parseRedisURL(raw string) (*cache.CacheConfig, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	host := u.Hostname()
	if host == "" {
		return nil, fmt.Errorf("missing redis host")
	}
	portStr := u.Port()
	if portStr == "" {
		portStr = "6379"
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, err
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			db = n
		}
	}
	pass, _ := u.User.Password()
	return &cache.CacheConfig{Host: host, Port: port, Password: pass, DB: db}, nil
}
