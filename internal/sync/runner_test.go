package sync

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/conorfennell/studyplan/internal/domain"
)

func writePlan(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestRunnerReconcilesLocalAndGitSources(t *testing.T) {
	store, db := newBackend(t)
	ctx := context.Background()

	localDir := t.TempDir()
	writePlan(t, localDir, "week1.md", "ID: a\nT: Alkenes\nD: 2026-02-11\n")

	_, err := db.InsertSource(ctx, "u1", localDir, domain.SourceLocal)
	require.NoError(t, err)
	_, err = db.InsertSource(ctx, "u2", "https://github.com/example/plans.git", domain.SourceGit)
	require.NoError(t, err)

	var cloned string
	fakeGit := func(_ context.Context, repoURL, localPath string, _ *zap.Logger) error {
		cloned = repoURL
		if err := os.MkdirAll(localPath, 0o755); err != nil {
			return err
		}
		return os.WriteFile(filepath.Join(localPath, "plan.md"), []byte("ID: b\nT: Vectors\nD: 2026-02-12\n"), 0o644)
	}

	reposDir := filepath.Join(t.TempDir(), "repos")
	runner := NewRunner(db, NewReconciler(store, db, zap.NewNop(), WithClock(clock)), zap.NewNop(),
		WithReposDir(reposDir),
		WithGitSync(fakeGit),
		WithWorkers(2),
	)
	runner.now = clock

	reports, err := runner.Run(ctx)
	require.NoError(t, err)
	require.Len(t, reports, 2)

	assert.Equal(t, "u1", reports[0].OwnerID)
	assert.Equal(t, 4, reports[0].Created)
	assert.Equal(t, "u2", reports[1].OwnerID)
	assert.Equal(t, 4, reports[1].Created)
	assert.Equal(t, "https://github.com/example/plans.git", cloned)
	assert.DirExists(t, filepath.Join(reposDir, "github.com", "example", "plans"))

	sources, err := db.GetAllSources(ctx)
	require.NoError(t, err)
	for _, s := range sources {
		require.NotNil(t, s.LastScanned, s.Path)
		assert.True(t, now.Equal(*s.LastScanned))
	}

	again, err := runner.Run(ctx)
	require.NoError(t, err)
	for _, r := range again {
		assert.Zero(t, r.Created)
	}
}

func TestRunnerSourceFailureHoldsBackSyncTime(t *testing.T) {
	store, db := newBackend(t)
	ctx := context.Background()

	goodDir := t.TempDir()
	writePlan(t, goodDir, "plan.md", "ID: a\nT: Alkenes\nD: 2026-02-11\n")
	_, err := db.InsertSource(ctx, "u1", goodDir, domain.SourceLocal)
	require.NoError(t, err)
	_, err = db.InsertSource(ctx, "u1", "git@github.com:example/private.git", domain.SourceGit)
	require.NoError(t, err)

	failingGit := func(context.Context, string, string, *zap.Logger) error {
		return errors.New("authentication required")
	}
	runner := NewRunner(db, NewReconciler(store, db, zap.NewNop(), WithClock(clock)), zap.NewNop(),
		WithReposDir(t.TempDir()),
		WithGitSync(failingGit),
	)

	report, err := runner.RunOwner(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 4, report.Created, "the healthy source is still reconciled")
	assert.Equal(t, 1, report.Failed)
	assert.ErrorContains(t, report.Err(), "authentication required")
	assert.Nil(t, report.LastSyncAt)
}

func TestRunnerNoSources(t *testing.T) {
	store, db := newBackend(t)
	runner := NewRunner(db, NewReconciler(store, db, zap.NewNop()), zap.NewNop(), WithReposDir(t.TempDir()))

	reports, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, reports)
}

func TestGitURLToLocalPath(t *testing.T) {
	testCases := []struct {
		url      string
		expected string
		wantErr  bool
	}{
		{url: "https://github.com/example/plans.git", expected: filepath.Join("repos", "github.com", "example", "plans")},
		{url: "http://git.local/team/plans", expected: filepath.Join("repos", "git.local", "team", "plans")},
		{url: "git@github.com:example/plans.git", expected: filepath.Join("repos", "github.com", "example", "plans")},
		{url: "not a url", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.url, func(t *testing.T) {
			got, err := gitURLToLocalPath("repos", tc.url)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}
}
