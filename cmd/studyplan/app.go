package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/conorfennell/studyplan/internal/cache"
	"github.com/conorfennell/studyplan/internal/config"
	"github.com/conorfennell/studyplan/internal/domain"
	"github.com/conorfennell/studyplan/internal/logger"
	"github.com/conorfennell/studyplan/internal/progress"
	"github.com/conorfennell/studyplan/internal/review"
	"github.com/conorfennell/studyplan/internal/schedule"
	"github.com/conorfennell/studyplan/internal/storage"
	"github.com/conorfennell/studyplan/internal/storage/postgres"
	"github.com/conorfennell/studyplan/internal/sync"
)

// backend is what both storage drivers provide.
type backend interface {
	review.Repository
	sync.SourceRepository
	sync.StateRepository
	InsertSource(ctx context.Context, ownerID, path string, sourceType domain.SourceType) (int64, error)
	FindSourceByPath(ctx context.Context, ownerID, path string) (*domain.Source, error)
	DeleteSource(ctx context.Context, id int64) error
}

// app holds the components wired for one invocation.
type app struct {
	cfg        *config.Config
	loc        *time.Location
	logger     *zap.Logger
	db         backend
	store      *review.Store
	aggregator *progress.Aggregator
	reconciler *sync.Reconciler
	runner     *sync.Runner
	closers    []func()
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	log, err := logger.New(cfg.Env)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, loc: loc, logger: log}
	a.closers = append(a.closers, func() { _ = log.Sync() })

	if err := a.openBackend(ctx); err != nil {
		a.close()
		return nil, err
	}

	notifier := review.NewNotifier()
	a.store = review.NewStore(a.db, log,
		review.WithPlanner(schedule.NewPlanner(loc)),
		review.WithNotifier(notifier),
	)

	a.aggregator = progress.NewAggregator(a.store, cache.NewLRU(cfg.Cache.Capacity, cfg.Cache.TTL), log,
		progress.WithTTL(cfg.Cache.TTL),
		progress.WithLocation(loc),
	)
	a.aggregator.Watch(notifier)

	a.reconciler = sync.NewReconciler(a.store, a.db, log)
	a.runner = sync.NewRunner(a.db, a.reconciler, log,
		sync.WithReposDir(cfg.Sync.ReposDir),
		sync.WithWorkers(cfg.Sync.Workers),
		sync.WithLocation(loc),
	)
	return a, nil
}

func (a *app) openBackend(ctx context.Context) error {
	switch a.cfg.DB.Driver {
	case "postgres":
		pool, err := postgres.NewPool(ctx, a.cfg.DB.DSN, postgres.PoolConfig{
			MaxConns:        int32(a.cfg.DB.MaxConns),
			MaxConnLifetime: a.cfg.DB.MaxConnLifetime,
		})
		if err != nil {
			return fmt.Errorf("connecting to postgres: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		if err := postgres.EnsureSchema(ctx, pool); err != nil {
			return err
		}
		a.db = postgres.NewRepository(pool)
	default:
		db, err := storage.Open(a.cfg.DB.DSN)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, func() { _ = db.Close() })
		a.db = db
	}
	a.logger.Debug("backend ready", zap.String("driver", a.cfg.DB.Driver))
	return nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// appKey stores the app in a command's context.
type appKey struct{}

func appFrom(cmd *cobra.Command) *app {
	return cmd.Context().Value(appKey{}).(*app)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parseTime accepts RFC3339 or a calendar date, which means midnight in loc.
func parseTime(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation("2006-01-02", s, loc)
	if err != nil {
		return time.Time{}, &domain.ValidationError{Field: "time", Reason: fmt.Sprintf("cannot parse %q", s)}
	}
	return t, nil
}

// timeFlag reads an optional time flag, defaulting to now.
func timeFlag(cmd *cobra.Command, name string, loc *time.Location) (time.Time, error) {
	s, _ := cmd.Flags().GetString(name)
	if s == "" {
		return time.Now(), nil
	}
	return parseTime(s, loc)
}
