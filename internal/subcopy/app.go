// This file contains the App facade: one value wiring the manifest, the
// cache, and the delegate together, with one method per CLI command.
package subcopy

import (
	"context"
	"errors"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	gogit "github.com/go-git/go-git/v5"
	"github.com/rs/zerolog/log"
)

// App executes subcopy operations against one destination repository.
// All cross-invocation state lives in the manifest file and the on-disk
// cache; an App loads, acts, and persists atomically.
type App struct {
	// root is the destination repository root, or "" when the process runs
	// outside a repository (only Get works then).
	root string

	fs       billy.Filesystem
	cache    *Cache
	delegate Delegate
	cfg      *Config
}

// New builds an App from the process environment. Running outside a git
// repository is allowed; commands that need the manifest will fail with a
// descriptive error.
func New(ctx context.Context) (*App, error) {
	cfg, err := LoadConfig(ctx)
	if err != nil {
		return nil, err
	}

	base, err := os.Getwd()
	if err != nil {
		return nil, WrapError(err, "failed to get working directory")
	}

	root, err := FindRepoRoot(base)
	if err != nil {
		log.Debug().Str("dir", base).Msg("not inside a git repository")
		root = ""
	} else {
		base = root
	}

	return &App{
		root:     root,
		fs:       osfs.New(base),
		cache:    NewCache(cfg.CacheDir),
		delegate: &gitDelegate{gitBin: cfg.GitBin, shell: cfg.Shell},
		cfg:      cfg,
	}, nil
}

// FindRepoRoot walks up from dir until it finds a directory containing a
// .git entry.
func FindRepoRoot(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", WrapError(err, "failed to resolve directory")
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, gogit.GitDirName)); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("not inside a git repository")
		}
		dir = parent
	}
}

func (a *App) requireRepo() error {
	if a.root == "" {
		return errors.New("not inside a git repository")
	}
	return nil
}

// relDest canonicalizes a user-supplied destination path to a slash-separated
// path relative to the App's root, rejecting paths that escape it.
func (a *App) relDest(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", WrapErrorf(err, "failed to resolve %q", p)
	}
	base := a.root
	if base == "" {
		base, err = os.Getwd()
		if err != nil {
			return "", WrapError(err, "failed to get working directory")
		}
	}
	rel, err := filepath.Rel(base, abs)
	if err != nil {
		return "", WrapErrorf(err, "failed to relativize %q", p)
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", WrapErrorf(errors.New("outside repository"), "destination %q", p)
	}
	return rel, nil
}

// tracked loads the manifest and looks up a destination, mapping both a
// missing manifest and a missing entry to ErrMissingTracking.
func (a *App) tracked(rel string) (*Manifest, *TrackedCopy, error) {
	m, err := LoadManifest(a.fs)
	if errors.Is(err, ErrManifestNotFound) {
		return nil, nil, WrapErrorf(ErrMissingTracking, "%s", rel)
	}
	if err != nil {
		return nil, nil, err
	}
	entry := m.Find(rel)
	if entry == nil {
		return nil, nil, WrapErrorf(ErrMissingTracking, "%s", rel)
	}
	return m, entry, nil
}

// materialize extracts sourcePath at the handle's revision into rel,
// enforcing the destination-exists policy and performing an atomic swap.
// The destination is always a directory: a file source produces rel holding
// the blob under its base name.
func (a *App) materialize(handle *CacheHandle, sourcePath, rel string, force bool) error {
	if _, err := a.fs.Lstat(rel); err == nil && !force {
		return WrapErrorf(ErrDestinationExists, "%s already exists (use --force to overwrite)", rel)
	}

	parent := path.Dir(rel)
	if parent != "." {
		if force {
			if err := a.fs.MkdirAll(parent, 0o755); err != nil {
				return WrapErrorf(err, "failed to create parent directory %q", parent)
			}
		} else if _, err := a.fs.Stat(parent); err != nil {
			return WrapErrorf(err, "parent directory of %s does not exist", rel)
		}
	}

	return stageReplace(a.fs, rel, func(out billy.Filesystem) error {
		return extractSnapshot(handle.Repo, handle.Hash, sourcePath, out)
	})
}

// Get copies sourcePath at rev from url into dest without recording
// anything in the manifest.
func (a *App) Get(ctx context.Context, url, rev, sourcePath, dest string, force bool) error {
	rel, err := a.relDest(dest)
	if err != nil {
		return err
	}
	handle, err := a.cache.Ensure(ctx, url, rev)
	if err != nil {
		return err
	}
	if err := a.materialize(handle, sourcePath, rel, force); err != nil {
		return err
	}
	log.Info().Str("dest", rel).Str("rev", handle.Hash.String()).Msg("extracted")
	return nil
}

// Add copies sourcePath at rev from url into dest and records the copy in
// the manifest. The manifest write is the last step; any earlier failure
// leaves prior state intact.
func (a *App) Add(ctx context.Context, url, rev, sourcePath, dest string, force bool) error {
	if err := a.requireRepo(); err != nil {
		return err
	}
	rel, err := a.relDest(dest)
	if err != nil {
		return err
	}

	m, err := LoadManifest(a.fs)
	if errors.Is(err, ErrManifestNotFound) {
		m = &Manifest{}
	} else if err != nil {
		return err
	}
	if m.Find(rel) != nil {
		return WrapErrorf(ErrDestinationExists, "%s is already tracked", rel)
	}

	handle, err := a.cache.Ensure(ctx, url, rev)
	if err != nil {
		return err
	}

	entry := TrackedCopy{
		SourceURL:  url,
		Revision:   handle.Hash.String(),
		SourcePath: path.Clean(filepath.ToSlash(sourcePath)),
		DestPath:   rel,
	}
	if err := m.Upsert(entry); err != nil {
		return err
	}

	if err := a.materialize(handle, sourcePath, rel, force); err != nil {
		return err
	}
	if err := m.Save(a.fs); err != nil {
		return err
	}

	log.Info().Str("dest", rel).Str("rev", entry.Revision).Msg("tracked")
	return nil
}

// Fetch re-extracts a tracked copy at its recorded revision, overwriting the
// destination, and re-affirms the revision in the manifest.
func (a *App) Fetch(ctx context.Context, dest string) error {
	if err := a.requireRepo(); err != nil {
		return err
	}
	rel, err := a.relDest(dest)
	if err != nil {
		return err
	}
	m, entry, err := a.tracked(rel)
	if err != nil {
		return err
	}

	handle, err := a.cache.Ensure(ctx, entry.SourceURL, entry.Revision)
	if err != nil {
		return err
	}
	if err := a.materialize(handle, entry.SourcePath, rel, true); err != nil {
		return err
	}

	entry.Revision = handle.Hash.String()
	if err := m.Upsert(*entry); err != nil {
		return err
	}
	return m.Save(a.fs)
}

// List returns all tracked copies in manifest order. A repository without a
// manifest lists nothing.
func (a *App) List() ([]TrackedCopy, error) {
	if err := a.requireRepo(); err != nil {
		return nil, err
	}
	m, err := LoadManifest(a.fs)
	if errors.Is(err, ErrManifestNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m.Copies(), nil
}

// Shell stages a checkout of a tracked copy's upstream snapshot, overlays
// the destination's current content as uncommitted changes, and drops the
// user into an interactive shell there. On exit the working tree (minus the
// scratch .git) replaces the destination. The returned code mirrors the
// shell's exit status; the manifest is never mutated.
func (a *App) Shell(ctx context.Context, dest string) (int, error) {
	if err := a.requireRepo(); err != nil {
		return 0, err
	}
	rel, err := a.relDest(dest)
	if err != nil {
		return 0, err
	}
	_, entry, err := a.tracked(rel)
	if err != nil {
		return 0, err
	}

	handle, err := a.cache.Ensure(ctx, entry.SourceURL, entry.Revision)
	if err != nil {
		return 0, err
	}
	sc, err := newStagedCheckout(handle, entry.SourcePath)
	if err != nil {
		return 0, err
	}

	destFS, err := a.fs.Chroot(rel)
	if err != nil {
		return 0, WrapErrorf(err, "failed to open destination %q", rel)
	}
	if err := sc.overlay(destFS); err != nil {
		return 0, err
	}

	cs, err := sc.changeset()
	if err != nil {
		return 0, err
	}
	log.Info().Int("changes", len(cs)).Str("dir", sc.dir).Msg("session staged")
	for _, c := range cs {
		log.Debug().Str("kind", c.Kind.String()).Str("path", c.Path).Msg("divergence")
	}

	code, err := a.delegate.Shell(ctx, sc.dir)
	if err != nil {
		log.Warn().Str("dir", sc.dir).Msg("scratch directory kept for inspection")
		return 0, err
	}

	if err := a.reconcile(sc, rel); err != nil {
		log.Warn().Str("dir", sc.dir).Msg("scratch directory kept for inspection")
		return code, err
	}
	sc.cleanup()
	return code, nil
}

// reconcile copies the session's final working tree back over the
// destination, staged and swapped atomically.
func (a *App) reconcile(sc *stagedCheckout, rel string) error {
	return stageReplace(a.fs, rel, func(out billy.Filesystem) error {
		return copyTree(sc.fs, out, skipGitDir)
	})
}
