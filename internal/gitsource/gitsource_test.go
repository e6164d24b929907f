package gitsource

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func commitFile(t *testing.T, repo *git.Repository, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))

	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add(name)
	require.NoError(t, err)
	_, err = wt.Commit("update "+name, &git.CommitOptions{
		Author: &object.Signature{Name: "plan", Email: "plan@example.com", When: time.Now()},
	})
	require.NoError(t, err)
}

func TestSyncClonesThenPulls(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available for the file transport")
	}

	origin := t.TempDir()
	repo, err := git.PlainInit(origin, false)
	require.NoError(t, err)
	commitFile(t, repo, origin, "week1.md", "ID: a\nT: First\nD: 2026-03-01\n")

	local := filepath.Join(t.TempDir(), "checkout")
	ctx := context.Background()

	require.NoError(t, Sync(ctx, origin, local, zap.NewNop()))
	assert.FileExists(t, filepath.Join(local, "week1.md"))

	require.NoError(t, Sync(ctx, origin, local, zap.NewNop()), "already up to date is not an error")

	commitFile(t, repo, origin, "week2.md", "ID: b\nT: Second\nD: 2026-03-08\n")
	require.NoError(t, Sync(ctx, origin, local, zap.NewNop()))
	assert.FileExists(t, filepath.Join(local, "week2.md"))
}

func TestSyncRejectsNonRepository(t *testing.T) {
	local := t.TempDir()
	err := Sync(context.Background(), "https://example.invalid/plans.git", local, zap.NewNop())
	assert.ErrorContains(t, err, "failed to open existing repo")
}
