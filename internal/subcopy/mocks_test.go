package subcopy

import (
	"context"
	"testing"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/stretchr/testify/require"
)

// mockDelegate replaces the interactive subprocesses with configurable hooks.
// Hooks receive the scratch directory and return the exit code the real
// subprocess would have produced.
type mockDelegate struct {
	shellCalls  int
	rebaseCalls int
	inProgress  bool
	lastDir     string

	onShell  func(dir string) int
	onRebase func(dir, upstream string) int
}

func (m *mockDelegate) Shell(ctx context.Context, dir string) (int, error) {
	m.shellCalls++
	m.lastDir = dir
	if m.onShell != nil {
		return m.onShell(dir), nil
	}
	return 0, nil
}

func (m *mockDelegate) InteractiveRebase(ctx context.Context, dir, upstream string) (int, error) {
	m.rebaseCalls++
	m.lastDir = dir
	if m.onRebase != nil {
		return m.onRebase(dir, upstream), nil
	}
	return 0, nil
}

func (m *mockDelegate) RebaseInProgress(dir string) bool {
	return m.inProgress
}

// finishRebase fast-forwards the scratch repository's current branch to a new
// commit containing files, the state a completed rebase leaves behind: HEAD
// off the local commit, no rebase markers, working tree holding the result.
func finishRebase(t *testing.T, dir string, files map[string]string) {
	t.Helper()

	repo, err := gogit.PlainOpen(dir)
	require.NoError(t, err)
	head, err := repo.Head()
	require.NoError(t, err)

	wt, err := repo.Worktree()
	require.NoError(t, err)
	require.NoError(t, wt.Checkout(&gogit.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName(upstreamBranch),
		Force:  true,
	}))

	result := commitFiles(t, repo, dir, files, "replayed local changes")

	require.NoError(t, repo.Storer.SetReference(plumbing.NewHashReference(head.Name(), result)))
	require.NoError(t, wt.Checkout(&gogit.CheckoutOptions{Branch: head.Name(), Force: true}))
}
