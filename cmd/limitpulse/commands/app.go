package commands

import (
	"github.com/wendao/limitpulse/internal/archive"
	"github.com/wendao/limitpulse/internal/calendar"
	"github.com/wendao/limitpulse/internal/dispatch"
	"github.com/wendao/limitpulse/internal/feed"
	"github.com/wendao/limitpulse/internal/health"
	"github.com/wendao/limitpulse/internal/pipeline"
	"github.com/wendao/limitpulse/internal/retry"
	"github.com/wendao/limitpulse/internal/store"
	"github.com/wendao/limitpulse/pkg/config"
	"github.com/wendao/limitpulse/pkg/database"
	"github.com/wendao/limitpulse/pkg/httputil"
	"github.com/wendao/limitpulse/pkg/logger"
	"github.com/wendao/limitpulse/pkg/redis"
)

// app holds the wired components a command needs. Commands build only the
// pieces they use and must call close when done.
type app struct {
	cfg      *config.Config
	logger   *logger.Logger
	tracker  *health.Tracker
	sched    *dispatch.Scheduler
	store    *store.Store
	pipeline *pipeline.Pipeline
	archive  *archive.Repository // nil unless a database is configured

	db    *database.DB
	redis *redis.Client
}

// newApp wires the full acquisition stack from config. The Postgres
// archive and the Redis cache are attached only when configured.
func newApp(cfg *config.Config, log *logger.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: log}

	a.tracker = health.NewTracker()
	retrier := retry.New(retry.StrategyFromConfig(cfg.Retry), a.tracker, log)
	a.sched = dispatch.New(dispatch.ConfigFrom(cfg.Dispatch), retrier, log)

	locations := []store.Location{
		store.NewFileLocation("primary", cfg.Store.PrimaryDir),
		store.NewFileLocation("backup", cfg.Store.BackupDir),
	}

	redisClient, err := redis.New(cfg)
	if err != nil {
		a.close()
		return nil, err
	}
	a.redis = redisClient
	if redisClient.Enabled() {
		cache := redis.NewCache(redisClient, "limitpulse")
		// The cache serves dashboard reads first; files stay authoritative.
		locations = append([]store.Location{store.NewRedisLocation(cache)}, locations...)
	}

	st, err := store.New(log, locations...)
	if err != nil {
		a.close()
		return nil, err
	}
	a.store = st

	var archiver pipeline.Archiver
	if cfg.Database.Enabled() {
		db, err := database.New(cfg)
		if err != nil {
			a.close()
			return nil, err
		}
		a.db = db
		a.archive = archive.NewRepository(db.Pool)
		archiver = a.archive
	}

	httpClient := httputil.New(log, cfg.Feeds.Timeout)
	sources := []feed.Source{
		feed.NewShanghaiClient(httpClient, cfg.Feeds.ShanghaiBaseURL, log),
		feed.NewEastmoneyClient(httpClient, cfg.Feeds.EastmoneyBaseURL, cfg.Feeds.PageSize, log),
	}

	p, err := pipeline.New(calendar.New(), a.sched, sources, st, archiver, log)
	if err != nil {
		a.close()
		return nil, err
	}
	a.pipeline = p

	return a, nil
}

func (a *app) close() {
	if a.sched != nil {
		a.sched.Shutdown()
	}
	if a.db != nil {
		a.db.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
}
