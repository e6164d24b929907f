package sync

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/conorfennell/studyplan/internal/domain"
	"github.com/conorfennell/studyplan/internal/gitsource"
	"github.com/conorfennell/studyplan/internal/plan"
)

// SourceRepository lists the registered plan sources.
type SourceRepository interface {
	GetAllSources(ctx context.Context) ([]domain.Source, error)
	UpdateSourceLastScanned(ctx context.Context, id int64, at time.Time) error
}

// GitSyncFunc brings a local checkout of a git source up to date.
type GitSyncFunc func(ctx context.Context, repoURL, localPath string, logger *zap.Logger) error

// Runner reads every registered source and reconciles each owner's tasks.
// Owners are reconciled in parallel.
type Runner struct {
	sources    SourceRepository
	reconciler *Reconciler
	logger     *zap.Logger

	reposDir string
	workers  int
	loc      *time.Location
	gitSync  GitSyncFunc
	now      func() time.Time
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithReposDir sets where git sources are checked out.
func WithReposDir(dir string) RunnerOption {
	return func(r *Runner) { r.reposDir = dir }
}

// WithWorkers bounds how many owners are reconciled at once.
func WithWorkers(n int) RunnerOption {
	return func(r *Runner) { r.workers = n }
}

// WithLocation sets the location of zone-less plan dates.
func WithLocation(loc *time.Location) RunnerOption {
	return func(r *Runner) { r.loc = loc }
}

// WithGitSync replaces the git client.
func WithGitSync(fn GitSyncFunc) RunnerOption {
	return func(r *Runner) { r.gitSync = fn }
}

// NewRunner creates a Runner.
func NewRunner(sources SourceRepository, reconciler *Reconciler, logger *zap.Logger, opts ...RunnerOption) *Runner {
	r := &Runner{
		sources:    sources,
		reconciler: reconciler,
		logger:     logger,
		reposDir:   "repos",
		workers:    4,
		loc:        time.UTC,
		gitSync:    gitsource.Sync,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run syncs all sources and returns one report per owner, in the order the
// source repository lists them.
func (r *Runner) Run(ctx context.Context) ([]Report, error) {
	sources, err := r.sources.GetAllSources(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing sources: %w", err)
	}
	if len(sources) == 0 {
		r.logger.Info("no sources configured")
		return nil, nil
	}

	if err := os.MkdirAll(r.reposDir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("creating repos directory: %w", err)
	}

	var owners []string
	byOwner := make(map[string][]domain.Source)
	for _, s := range sources {
		if _, ok := byOwner[s.OwnerID]; !ok {
			owners = append(owners, s.OwnerID)
		}
		byOwner[s.OwnerID] = append(byOwner[s.OwnerID], s)
	}

	reports := make([]Report, len(owners))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, r.workers))
	for i, owner := range owners {
		g.Go(func() error {
			report, err := r.runOwner(ctx, owner, byOwner[owner])
			reports[i] = report
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return reports, err
	}
	return reports, nil
}

// RunOwner syncs only the sources of one owner.
func (r *Runner) RunOwner(ctx context.Context, ownerID string) (Report, error) {
	sources, err := r.sources.GetAllSources(ctx)
	if err != nil {
		return Report{OwnerID: ownerID}, fmt.Errorf("listing sources: %w", err)
	}
	var own []domain.Source
	for _, s := range sources {
		if s.OwnerID == ownerID {
			own = append(own, s)
		}
	}
	return r.runOwner(ctx, ownerID, own)
}

func (r *Runner) runOwner(ctx context.Context, ownerID string, sources []domain.Source) (Report, error) {
	var (
		tasks    []domain.PlanTask
		failures []error
	)
	for _, source := range sources {
		r.logger.Info("syncing source",
			zap.Int64("id", source.ID),
			zap.String("owner_id", ownerID),
			zap.String("type", string(source.Type)),
			zap.String("path", source.Path),
		)

		dir, err := r.checkout(ctx, source)
		if err != nil {
			r.logger.Error("fetching source failed", zap.String("path", source.Path), zap.Error(err))
			failures = append(failures, err)
			continue
		}

		sourceTasks, err := plan.ParseDir(dir, r.loc)
		tasks = append(tasks, sourceTasks...)
		if err != nil {
			r.logger.Warn("plan files had errors", zap.String("path", source.Path), zap.Error(err))
			failures = append(failures, fmt.Errorf("source %s: %w", source.Path, err))
			continue
		}

		if err := r.sources.UpdateSourceLastScanned(ctx, source.ID, r.now()); err != nil {
			r.logger.Warn("failed to update last scanned for source", zap.Int64("source_id", source.ID), zap.Error(err))
		}
	}

	return r.reconciler.Reconcile(ctx, ownerID, tasks, failures...)
}

// checkout returns the local directory holding a source's plan files.
func (r *Runner) checkout(ctx context.Context, source domain.Source) (string, error) {
	if source.Type != domain.SourceGit {
		return source.Path, nil
	}

	localPath, err := gitURLToLocalPath(r.reposDir, source.Path)
	if err != nil {
		return "", err
	}
	if err := r.gitSync(ctx, source.Path, localPath, r.logger); err != nil {
		return "", err
	}
	return localPath, nil
}

func gitURLToLocalPath(baseDir, repoURL string) (string, error) {
	parsedURL, err := url.Parse(repoURL)
	if err != nil || (parsedURL.Scheme != "https" && parsedURL.Scheme != "http") {
		if strings.Contains(repoURL, "@") {
			parts := strings.Split(repoURL, ":")
			if len(parts) == 2 {
				hostAndUser := strings.Split(parts[0], "@")
				if len(hostAndUser) == 2 {
					host := hostAndUser[1]
					repoPath := strings.TrimSuffix(parts[1], ".git")
					return filepath.Join(baseDir, host, repoPath), nil
				}
			}
		}
		return "", fmt.Errorf("could not parse git URL: %s", repoURL)
	}

	sanitizedPath := strings.TrimSuffix(parsedURL.Path, ".git")
	return filepath.Join(baseDir, parsedURL.Host, sanitizedPath), nil
}
