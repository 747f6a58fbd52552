package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/conneroisu/frontpage/internal/cobj"
	"github.com/conneroisu/frontpage/internal/config"
	"github.com/conneroisu/frontpage/internal/document"
	"github.com/conneroisu/frontpage/internal/events"
	"github.com/conneroisu/frontpage/internal/frontend"
	"github.com/conneroisu/frontpage/internal/locking"
	"github.com/conneroisu/frontpage/internal/logging"
	"github.com/conneroisu/frontpage/internal/metrics"
	"github.com/conneroisu/frontpage/internal/pagecache"
	"github.com/conneroisu/frontpage/internal/tstree"
)

// app holds the collaborators shared by the commands.
type app struct {
	cfg      *config.Config
	logger   logging.Logger
	setup    *tstree.Live
	cache    pagecache.Store
	locker   locking.Locker
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	redis    redis.UniversalClient
	handler  *frontend.Handler
}

type appOptions struct {
	// memoryOnly ignores configured redis backends.
	memoryOnly bool
	errorPage  func(w http.ResponseWriter, r *http.Request, status int, err error)
}

func newLogger(cfg config.LogConfig) (logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	return logging.NewLogger(&logging.LoggerConfig{
		Level:  level,
		Format: cfg.Format,
		Output: os.Stderr,
	}), nil
}

// newApp loads the setup tree and wires the page handler.
func newApp(cfg *config.Config, logger logging.Logger, opts appOptions) (*app, error) {
	locale, err := document.ParseLocale(cfg.Site.Locale)
	if err != nil {
		return nil, err
	}
	tree, err := tstree.LoadFile(cfg.Site.SetupFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load setup: %w", err)
	}

	a := &app{
		cfg:      cfg,
		logger:   logger,
		setup:    tstree.NewLive(tree),
		registry: prometheus.NewRegistry(),
	}
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if a.metrics, err = metrics.New(a.registry); err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	cacheBackend, lockBackend := cfg.Cache.Backend, cfg.Lock.Backend
	if opts.memoryOnly {
		cacheBackend, lockBackend = config.BackendMemory, config.BackendMemory
	}
	if cacheBackend == config.BackendRedis || lockBackend == config.BackendRedis {
		a.redis = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    []string{cfg.Cache.Redis.Addr},
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
		})
	}

	switch cacheBackend {
	case config.BackendRedis:
		a.cache = pagecache.NewRedisStore(a.redis, cfg.Cache.Redis.Prefix)
	default:
		a.cache = pagecache.NewMemoryStore(cfg.Cache.MaxSize, cfg.Cache.TTL)
	}
	switch lockBackend {
	case config.BackendRedis:
		a.locker = locking.NewRedisLocker(a.redis, locking.RedisLockerConfig{TTL: cfg.Lock.TTL})
	default:
		a.locker = locking.NewMemoryLocker()
	}

	a.handler = frontend.NewHandler(frontend.Config{
		PublicDir:    cfg.Site.PublicDir,
		TempDir:      cfg.Site.TempDir,
		Locale:       locale,
		AbsRefPrefix: cfg.Site.AbsRefPrefix,
		CacheTTL:     cfg.Cache.TTL,
		LockTimeout:  cfg.Lock.Timeout,
	}, frontend.Options{
		Setup:     a.setup,
		Evaluator: cobj.New(logger),
		Cache:     a.cache,
		Locker:    a.locker,
		Events:    events.NewDispatcher(),
		Metrics:   a.metrics,
		Logger:    logger,
		ErrorPage: opts.errorPage,
	})
	return a, nil
}

// ping reports whether the redis backend answers.
func (a *app) ping(ctx context.Context) error {
	return a.redis.Ping(ctx).Err()
}

func (a *app) Close() error {
	if a.redis == nil {
		return nil
	}
	return a.redis.Close()
}
