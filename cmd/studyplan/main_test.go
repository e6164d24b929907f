package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conorfennell/studyplan/internal/domain"
	"github.com/conorfennell/studyplan/internal/progress"
)

// run executes one CLI invocation against dbPath and returns stdout.
func run(t *testing.T, dbPath string, args ...string) []byte {
	t.Helper()
	root, cleanup := newRootCmd()
	defer cleanup()

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs(append([]string{"--db.dsn", dbPath, "--owner", "u1"}, args...))
	require.NoError(t, root.Execute())
	return out.Bytes()
}

func TestCLIItemLifecycle(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "studyplan.db")

	var item domain.ReviewItem
	require.NoError(t, json.Unmarshal(run(t, dbPath, "add", "--subject", "Chemistry", "--at", "2026-02-01"), &item))
	assert.Equal(t, 0, item.Stage)

	require.NoError(t, json.Unmarshal(run(t, dbPath, "review", item.ID), &item))
	assert.Equal(t, 1, item.Stage)

	require.NoError(t, json.Unmarshal(run(t, dbPath, "snooze", item.ID), &item))
	assert.Equal(t, 0, item.Stage)

	require.NoError(t, json.Unmarshal(run(t, dbPath, "complete", item.ID), &item))
	assert.True(t, item.Completed)

	var st progress.Stats
	require.NoError(t, json.Unmarshal(run(t, dbPath, "stats"), &st))
	assert.Equal(t, progress.Stats{TotalScheduled: 1, TotalCompleted: 1, ProgressPercentage: 100}, st)

	var due []domain.ReviewItem
	require.NoError(t, json.Unmarshal(run(t, dbPath, "due"), &due))
	assert.Empty(t, due)
}

func TestCLISyncPlanIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "studyplan.db")
	planPath := filepath.Join(dir, "plan.md")
	require.NoError(t, os.WriteFile(planPath, []byte("ID: far\nT: Revision\nD: 2099-01-01\n"), 0o644))

	var first, second struct {
		Created int `json:"created"`
		Failed  int `json:"failed"`
	}
	require.NoError(t, json.Unmarshal(run(t, dbPath, "sync", "--plan", planPath), &first))
	assert.Equal(t, 4, first.Created)
	assert.Zero(t, first.Failed)

	require.NoError(t, json.Unmarshal(run(t, dbPath, "sync", "--plan", planPath), &second))
	assert.Zero(t, second.Created)
}

func TestCLIRequiresOwner(t *testing.T) {
	root, cleanup := newRootCmd()
	defer cleanup()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"--db.dsn", filepath.Join(t.TempDir(), "x.db"), "due"})
	assert.ErrorIs(t, root.Execute(), errNoOwner)
}
