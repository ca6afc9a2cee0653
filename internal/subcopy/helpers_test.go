package subcopy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-billy/v5/osfs"
	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/stretchr/testify/require"
)

// initUpstream creates a repository with the given files committed and
// returns its path (usable as a clone URL) and the head commit.
func initUpstream(t *testing.T, files map[string]string) (string, plumbing.Hash) {
	t.Helper()

	dir := t.TempDir()
	repo, err := gogit.PlainInit(dir, false)
	require.NoError(t, err)

	hash := commitFiles(t, repo, dir, files, "initial import")
	return dir, hash
}

// commitFiles writes files into the repository's working tree and commits
// everything, returning the new commit.
func commitFiles(t *testing.T, repo *gogit.Repository, dir string, files map[string]string, msg string) plumbing.Hash {
	t.Helper()

	for p, content := range files {
		full := filepath.Join(dir, filepath.FromSlash(p))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}

	wt, err := repo.Worktree()
	require.NoError(t, err)
	require.NoError(t, wt.AddWithOptions(&gogit.AddOptions{All: true}))

	hash, err := wt.Commit(msg, commitOpts())
	require.NoError(t, err)
	return hash
}

// openUpstream reopens an upstream repository created by initUpstream.
func openUpstream(t *testing.T, dir string) *gogit.Repository {
	t.Helper()

	repo, err := gogit.PlainOpen(dir)
	require.NoError(t, err)
	return repo
}

// newTestApp builds an App rooted at a fresh destination repository, with an
// isolated cache and a mock delegate in place of the interactive subprocesses.
func newTestApp(t *testing.T) (*App, *mockDelegate) {
	t.Helper()

	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, gogit.GitDirName), 0o755))

	d := &mockDelegate{}
	app := &App{
		root:     root,
		fs:       osfs.New(root),
		cache:    NewCache(t.TempDir()),
		delegate: d,
		cfg:      &Config{},
	}
	return app, d
}

// destPath returns an absolute destination path inside the App's root, the
// form command arguments arrive in when given as absolute paths.
func destPath(a *App, rel string) string {
	return filepath.Join(a.root, filepath.FromSlash(rel))
}

// readDest reads a file under the App's root.
func readDest(t *testing.T, a *App, rel string) string {
	t.Helper()

	data, err := os.ReadFile(filepath.Join(a.root, filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(data)
}

// writeDest writes a file under the App's root, creating parent directories.
func writeDest(t *testing.T, a *App, rel, content string) {
	t.Helper()

	full := filepath.Join(a.root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}
