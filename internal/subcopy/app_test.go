package subcopy

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddExtractsAndTracks(t *testing.T) {
	url, hash := initUpstream(t, map[string]string{
		"lib/util/a.txt":      "alpha\n",
		"lib/util/deep/b.txt": "beta\n",
		"README.md":           "readme\n",
	})
	app, _ := newTestApp(t)

	require.NoError(t, app.Add(context.Background(), url, "master", "lib/util", destPath(app, "util"), false))

	assert.Equal(t, "alpha\n", readDest(t, app, "util/a.txt"))
	assert.Equal(t, "beta\n", readDest(t, app, "util/deep/b.txt"))

	m, err := LoadManifest(app.fs)
	require.NoError(t, err)
	entry := m.Find("util")
	require.NotNil(t, entry)
	assert.Equal(t, url, entry.SourceURL)
	assert.Equal(t, "lib/util", entry.SourcePath)
	assert.Equal(t, hash.String(), entry.Revision)
}

func TestAddRejectsTrackedDestination(t *testing.T) {
	url, _ := initUpstream(t, map[string]string{"a.txt": "alpha\n"})
	app, _ := newTestApp(t)

	ctx := context.Background()
	require.NoError(t, app.Add(ctx, url, "master", "a.txt", destPath(app, "a.txt"), false))

	err := app.Add(ctx, url, "master", "a.txt", destPath(app, "a.txt"), true)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDestinationExists)

	m, err := LoadManifest(app.fs)
	require.NoError(t, err)
	assert.Len(t, m.Copies(), 1)
}

func TestAddRejectsExistingDestination(t *testing.T) {
	url, _ := initUpstream(t, map[string]string{"a.txt": "alpha\n"})
	app, _ := newTestApp(t)
	writeDest(t, app, "a.txt", "mine\n")

	err := app.Add(context.Background(), url, "master", "a.txt", destPath(app, "a.txt"), false)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDestinationExists)
	assert.Equal(t, "mine\n", readDest(t, app, "a.txt"))

	// No manifest may be written when the extraction is refused.
	_, err = LoadManifest(app.fs)
	assert.ErrorIs(t, err, ErrManifestNotFound)
}

func TestAddForceOverwritesAndCreatesParents(t *testing.T) {
	url, _ := initUpstream(t, map[string]string{"a.txt": "alpha\n"})
	app, _ := newTestApp(t)
	writeDest(t, app, "vendor/files/a.txt", "mine\n")

	err := app.Add(context.Background(), url, "master", "a.txt", destPath(app, "vendor/files/a.txt"), true)
	require.NoError(t, err)
	assert.Equal(t, "alpha\n", readDest(t, app, "vendor/files/a.txt/a.txt"))
}

func TestAddWithoutParentDirectory(t *testing.T) {
	url, _ := initUpstream(t, map[string]string{"a.txt": "alpha\n"})
	app, _ := newTestApp(t)

	err := app.Add(context.Background(), url, "master", "a.txt", destPath(app, "no/parent/a.txt"), false)
	require.Error(t, err)
}

func TestAddRejectsNestedDestination(t *testing.T) {
	url, _ := initUpstream(t, map[string]string{"lib/a.txt": "alpha\n"})
	app, _ := newTestApp(t)

	ctx := context.Background()
	require.NoError(t, app.Add(ctx, url, "master", "lib", destPath(app, "vendor"), false))

	err := app.Add(ctx, url, "master", "lib/a.txt", destPath(app, "vendor/a.txt"), true)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNestedTracking)
}

func TestAddRejectsEscapingDestination(t *testing.T) {
	url, _ := initUpstream(t, map[string]string{"a.txt": "alpha\n"})
	app, _ := newTestApp(t)

	outside := filepath.Join(filepath.Dir(app.root), "outside")
	err := app.Add(context.Background(), url, "master", "a.txt", outside, false)
	require.Error(t, err)
}

func TestGetLeavesNoManifest(t *testing.T) {
	url, _ := initUpstream(t, map[string]string{"a.txt": "alpha\n"})
	app, _ := newTestApp(t)

	require.NoError(t, app.Get(context.Background(), url, "master", "a.txt", destPath(app, "copied"), false))

	assert.Equal(t, "alpha\n", readDest(t, app, "copied/a.txt"))
	_, err := LoadManifest(app.fs)
	assert.ErrorIs(t, err, ErrManifestNotFound)
}

func TestGetSingleFilePlacedUnderDestination(t *testing.T) {
	url, _ := initUpstream(t, map[string]string{"scripts/run.sh": "#!/bin/sh\n"})
	app, _ := newTestApp(t)

	require.NoError(t, app.Get(context.Background(), url, "master", "scripts/run.sh", destPath(app, "run.sh"), false))

	// A file source creates a directory at the destination holding the blob
	// under its base name, the same shape directory extraction produces.
	info, err := os.Lstat(filepath.Join(app.root, "run.sh"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, "#!/bin/sh\n", readDest(t, app, "run.sh/run.sh"))
}

func TestFetchRestoresRecordedRevision(t *testing.T) {
	url, hash := initUpstream(t, map[string]string{
		"lib/a.txt": "alpha\n",
		"lib/b.txt": "beta\n",
	})
	app, _ := newTestApp(t)

	ctx := context.Background()
	require.NoError(t, app.Add(ctx, url, "master", "lib", destPath(app, "lib"), false))

	// Local damage: edit one file, delete another, add a stray one.
	writeDest(t, app, "lib/a.txt", "edited\n")
	require.NoError(t, os.Remove(filepath.Join(app.root, "lib/b.txt")))
	writeDest(t, app, "lib/stray.txt", "stray\n")

	require.NoError(t, app.Fetch(ctx, destPath(app, "lib")))

	assert.Equal(t, "alpha\n", readDest(t, app, "lib/a.txt"))
	assert.Equal(t, "beta\n", readDest(t, app, "lib/b.txt"))
	_, err := os.Lstat(filepath.Join(app.root, "lib/stray.txt"))
	assert.True(t, os.IsNotExist(err))

	m, err := LoadManifest(app.fs)
	require.NoError(t, err)
	assert.Equal(t, hash.String(), m.Find("lib").Revision)
}

func TestFetchUntracked(t *testing.T) {
	app, _ := newTestApp(t)

	err := app.Fetch(context.Background(), destPath(app, "nothing"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingTracking)
}

func TestListReturnsInsertionOrder(t *testing.T) {
	url, _ := initUpstream(t, map[string]string{"a.txt": "alpha\n", "b.txt": "beta\n"})
	app, _ := newTestApp(t)

	ctx := context.Background()
	require.NoError(t, app.Add(ctx, url, "master", "b.txt", destPath(app, "second.txt"), false))
	require.NoError(t, app.Add(ctx, url, "master", "a.txt", destPath(app, "first.txt"), false))

	copies, err := app.List()
	require.NoError(t, err)
	require.Len(t, copies, 2)
	assert.Equal(t, "second.txt", copies[0].DestPath)
	assert.Equal(t, "first.txt", copies[1].DestPath)
}

func TestListWithoutManifest(t *testing.T) {
	app, _ := newTestApp(t)

	copies, err := app.List()
	require.NoError(t, err)
	assert.Empty(t, copies)
}

func TestShellReconcilesWorkingTree(t *testing.T) {
	url, hash := initUpstream(t, map[string]string{"lib/a.txt": "alpha\n"})
	app, d := newTestApp(t)

	ctx := context.Background()
	require.NoError(t, app.Add(ctx, url, "master", "lib", destPath(app, "lib"), false))
	writeDest(t, app, "lib/a.txt", "locally edited\n")

	d.onShell = func(dir string) int {
		// Simulate the user editing inside the session.
		require.NoError(t, os.WriteFile(filepath.Join(dir, "session.txt"), []byte("from session\n"), 0o644))
		return 0
	}

	code, err := app.Shell(ctx, destPath(app, "lib"))
	require.NoError(t, err)
	assert.Zero(t, code)

	assert.Equal(t, "locally edited\n", readDest(t, app, "lib/a.txt"))
	assert.Equal(t, "from session\n", readDest(t, app, "lib/session.txt"))

	// The scratch repository itself never leaks into the destination.
	_, serr := os.Lstat(filepath.Join(app.root, "lib/.git"))
	assert.True(t, os.IsNotExist(serr))

	// Success removes the scratch directory and never touches the manifest.
	_, serr = os.Lstat(d.lastDir)
	assert.True(t, os.IsNotExist(serr))
	m, err := LoadManifest(app.fs)
	require.NoError(t, err)
	assert.Equal(t, hash.String(), m.Find("lib").Revision)
}

func TestShellPropagatesExitCode(t *testing.T) {
	url, _ := initUpstream(t, map[string]string{"lib/a.txt": "alpha\n"})
	app, d := newTestApp(t)

	ctx := context.Background()
	require.NoError(t, app.Add(ctx, url, "master", "lib", destPath(app, "lib"), false))

	d.onShell = func(dir string) int { return 3 }

	code, err := app.Shell(ctx, destPath(app, "lib"))
	require.NoError(t, err)
	assert.Equal(t, 3, code)
}

func TestShellUntracked(t *testing.T) {
	app, d := newTestApp(t)

	_, err := app.Shell(context.Background(), destPath(app, "nothing"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingTracking)
	assert.Zero(t, d.shellCalls)
}

func TestFindRepoRootWalksUp(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0o755))
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	found, err := FindRepoRoot(nested)
	require.NoError(t, err)
	assert.Equal(t, root, found)

	_, err = FindRepoRoot(t.TempDir())
	require.Error(t, err)
}
