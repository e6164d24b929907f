// Package sync mirrors imported study-plan tasks into review items.
package sync

import (
	"context"
	"errors"
	"fmt"
	gosync "sync"
	"time"

	"go.uber.org/zap"

	"github.com/conorfennell/studyplan/internal/domain"
	"github.com/conorfennell/studyplan/internal/fingerprint"
	"github.com/conorfennell/studyplan/internal/review"
)

// FollowUpOffsets are the days after a task's date at which follow-up
// reviews are scheduled.
var FollowUpOffsets = []int{1, 7, 30}

// ItemStore is the part of the review store the reconciler writes through.
type ItemStore interface {
	Get(ctx context.Context, ownerID, itemID string) (*domain.ReviewItem, error)
	Create(ctx context.Context, item *domain.ReviewItem) (*domain.ReviewItem, error)
}

// StateRepository remembers when an owner was last fully reconciled.
type StateRepository interface {
	LastSyncAt(ctx context.Context, ownerID string) (*time.Time, error)
	SetLastSyncAt(ctx context.Context, ownerID string, at time.Time) error
}

// Report summarises one reconciliation run for one owner.
type Report struct {
	OwnerID    string     `json:"owner_id"`
	Tasks      int        `json:"tasks"`
	Created    int        `json:"created"`
	Existing   int        `json:"existing"`
	Skipped    int        `json:"skipped"`
	Failed     int        `json:"failed"`
	Errors     []error    `json:"-"`
	LastSyncAt *time.Time `json:"last_sync_at,omitempty"`
}

// Err joins every error collected during the run.
func (r *Report) Err() error {
	return errors.Join(r.Errors...)
}

func (r *Report) fail(err error) {
	r.Failed++
	r.Errors = append(r.Errors, err)
}

// Reconciler creates the anchor and follow-up items of plan tasks. Items are
// keyed by deterministic ids so reruns only fill in what is missing.
type Reconciler struct {
	store  ItemStore
	state  StateRepository
	logger *zap.Logger
	now    func() time.Time

	mu    gosync.Mutex
	locks map[string]*gosync.Mutex
}

// ReconcilerOption configures a Reconciler.
type ReconcilerOption func(*Reconciler)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) ReconcilerOption {
	return func(r *Reconciler) { r.now = now }
}

// NewReconciler creates a Reconciler.
func NewReconciler(store ItemStore, state StateRepository, logger *zap.Logger, opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{
		store:  store,
		state:  state,
		logger: logger,
		now:    time.Now,
		locks:  make(map[string]*gosync.Mutex),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reconcile mirrors tasks into the owner's review items. Failures of single
// tasks are collected in the report and never abort the batch. prior carries
// failures that happened before the tasks were available, such as unreadable
// plan files; like task failures they hold back lastSyncAt. The returned error
// is reserved for cancellation and for failing to record the sync time.
func (r *Reconciler) Reconcile(ctx context.Context, ownerID string, tasks []domain.PlanTask, prior ...error) (Report, error) {
	unlock := r.lock(ownerID)
	defer unlock()

	report := Report{OwnerID: ownerID, Tasks: len(tasks)}
	for _, err := range prior {
		report.fail(err)
	}

	now := r.now()
	for _, task := range tasks {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		r.reconcileTask(ctx, ownerID, task, now, &report)
	}

	if report.Failed == 0 {
		if err := r.state.SetLastSyncAt(ctx, ownerID, now); err != nil {
			return report, fmt.Errorf("recording sync time for %s: %w", ownerID, err)
		}
		report.LastSyncAt = &now
	} else {
		last, err := r.state.LastSyncAt(ctx, ownerID)
		if err != nil {
			r.logger.Warn("reading last sync time failed", zap.String("owner_id", ownerID), zap.Error(err))
		}
		report.LastSyncAt = last
	}

	r.logger.Info("reconciliation complete",
		zap.String("owner_id", ownerID),
		zap.Int("tasks", report.Tasks),
		zap.Int("created", report.Created),
		zap.Int("existing", report.Existing),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
	)
	return report, nil
}

func (r *Reconciler) reconcileTask(ctx context.Context, ownerID string, task domain.PlanTask, now time.Time, report *Report) {
	if task.SourceTaskID == "" {
		task.SourceTaskID = fingerprint.TaskID(task)
	}
	if err := domain.Validate(&task); err != nil {
		report.fail(fmt.Errorf("task %q: %w", task.SourceTaskID, err))
		return
	}

	r.ensure(ctx, ownerID, task, 0, domain.OriginPlanAnchor, task.Date, report)

	for _, offset := range FollowUpOffsets {
		at := task.Date.AddDate(0, 0, offset)
		if !at.After(now) {
			report.Skipped++
			continue
		}
		r.ensure(ctx, ownerID, task, offset, domain.OriginPlanFollowUp, at, report)
	}
}

// ensure creates the item for task at offset unless it already exists.
func (r *Reconciler) ensure(
	ctx context.Context,
	ownerID string,
	task domain.PlanTask,
	offset int,
	origin domain.Origin,
	at time.Time,
	report *Report,
) {
	id := fingerprint.ItemID(ownerID, task.SourceTaskID, offset)

	_, err := r.store.Get(ctx, ownerID, id)
	switch {
	case err == nil:
		report.Existing++
		return
	case !errors.Is(err, domain.ErrNotFound):
		report.fail(fmt.Errorf("task %q offset %d: %w", task.SourceTaskID, offset, err))
		return
	}

	_, err = r.store.Create(ctx, &domain.ReviewItem{
		ID:           id,
		OwnerID:      ownerID,
		Kind:         domain.KindPlanTask,
		SubjectLabel: task.Subject,
		TopicLabel:   task.Title,
		NextReviewAt: at,
		Origin:       origin,
		SourceTaskID: task.SourceTaskID,
	})
	if errors.Is(err, review.ErrItemExists) {
		// Another run created it between the lookup and the insert.
		report.Existing++
		return
	}
	if err != nil {
		r.logger.Warn("creating plan item failed",
			zap.String("owner_id", ownerID),
			zap.String("source_task_id", task.SourceTaskID),
			zap.Int("offset_days", offset),
			zap.Error(err),
		)
		report.fail(fmt.Errorf("task %q offset %d: %w", task.SourceTaskID, offset, err))
		return
	}
	report.Created++
}

func (r *Reconciler) lock(ownerID string) func() {
	r.mu.Lock()
	m, ok := r.locks[ownerID]
	if !ok {
		m = &gosync.Mutex{}
		r.locks[ownerID] = m
	}
	r.mu.Unlock()

	m.Lock()
	return m.Unlock
}
