// This file contains the extractor: materializing an upstream path at a
// revision into a destination filesystem, and the scratch-then-rename
// staging that keeps destination swaps atomic.
package subcopy

import (
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// extractSnapshot writes the content of sourcePath at the given commit into
// the root of out. A directory source copies its full subtree, preserving
// relative structure, modes, and symlinks; a file source copies a single
// blob named after its base name. Returns ErrPathNotFound if sourcePath does
// not exist at the revision.
func extractSnapshot(repo *gogit.Repository, hash plumbing.Hash, sourcePath string, out billy.Filesystem) error {
	commit, err := repo.CommitObject(hash)
	if err != nil {
		return WrapErrorf(ErrResolveFailed, "no commit %s", hash)
	}
	tree, err := commit.Tree()
	if err != nil {
		return WrapErrorf(err, "failed to read tree of %s", hash)
	}

	sourcePath = path.Clean(filepath.ToSlash(sourcePath))
	if sourcePath == "." || sourcePath == "" {
		return writeTree(tree, out)
	}

	if f, ferr := tree.File(sourcePath); ferr == nil {
		return writeBlob(f, path.Base(sourcePath), out)
	}

	sub, err := tree.Tree(sourcePath)
	if err != nil {
		return WrapErrorf(ErrPathNotFound, "%s does not exist at %s", sourcePath, hash)
	}
	return writeTree(sub, out)
}

// writeTree copies every blob reachable from tree into out, keeping paths
// relative to the tree root.
func writeTree(tree *object.Tree, out billy.Filesystem) error {
	return tree.Files().ForEach(func(f *object.File) error {
		return writeBlob(f, f.Name, out)
	})
}

func writeBlob(f *object.File, name string, out billy.Filesystem) error {
	if dir := path.Dir(name); dir != "." {
		if err := out.MkdirAll(dir, 0o755); err != nil {
			return WrapErrorf(err, "failed to create directory %q", dir)
		}
	}

	if f.Mode == filemode.Symlink {
		target, err := f.Contents()
		if err != nil {
			return WrapErrorf(err, "failed to read symlink %q", name)
		}
		return out.Symlink(target, name)
	}

	mode, err := f.Mode.ToOSFileMode()
	if err != nil {
		return WrapErrorf(err, "unsupported mode for %q", name)
	}

	r, err := f.Reader()
	if err != nil {
		return WrapErrorf(err, "failed to read blob %q", name)
	}
	defer r.Close()

	dst, err := out.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return WrapErrorf(err, "failed to create %q", name)
	}
	if _, err := io.Copy(dst, r); err != nil {
		dst.Close()
		return WrapErrorf(err, "failed to write %q", name)
	}
	return dst.Close()
}

const (
	stageSuffix = ".subcopy-stage"
	oldSuffix   = ".subcopy-old"
)

// stageReplace builds the new destination content in a sibling scratch
// directory via fill, then swaps it into place with renames. Any failure
// before the swap leaves the prior destination untouched; observers see
// either the old content or the new content, never a mix.
func stageReplace(fsys billy.Filesystem, destPath string, fill func(billy.Filesystem) error) error {
	stage := destPath + stageSuffix
	_ = util.RemoveAll(fsys, stage)

	if err := fsys.MkdirAll(stage, 0o755); err != nil {
		return WrapErrorf(err, "failed to create staging directory %q", stage)
	}
	stageFS, err := fsys.Chroot(stage)
	if err != nil {
		return WrapErrorf(err, "failed to enter staging directory %q", stage)
	}
	if err := fill(stageFS); err != nil {
		_ = util.RemoveAll(fsys, stage)
		return err
	}

	if _, err := fsys.Lstat(destPath); err == nil {
		old := destPath + oldSuffix
		_ = util.RemoveAll(fsys, old)
		if err := fsys.Rename(destPath, old); err != nil {
			_ = util.RemoveAll(fsys, stage)
			return WrapErrorf(err, "failed to move aside %q", destPath)
		}
		if err := fsys.Rename(stage, destPath); err != nil {
			// Put the prior content back rather than leaving nothing.
			_ = fsys.Rename(old, destPath)
			_ = util.RemoveAll(fsys, stage)
			return WrapErrorf(err, "failed to move %q into place", destPath)
		}
		_ = util.RemoveAll(fsys, old)
		return nil
	}

	if err := fsys.Rename(stage, destPath); err != nil {
		_ = util.RemoveAll(fsys, stage)
		return WrapErrorf(err, "failed to move %q into place", destPath)
	}
	return nil
}

// copyTree mirrors the full content of src into dst, preserving file modes
// and symlinks. Paths for which skip returns true are not copied; skip may
// be nil.
func copyTree(src, dst billy.Filesystem, skip func(string) bool) error {
	return util.Walk(src, ".", func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return WrapErrorf(err, "failed to walk %q", p)
		}
		if p == "." || p == "" {
			return nil
		}
		p = filepath.ToSlash(p)
		if skip != nil && skip(p) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		switch {
		case info.IsDir():
			if err := dst.MkdirAll(p, 0o755); err != nil {
				return WrapErrorf(err, "failed to create directory %q", p)
			}
		case info.Mode()&os.ModeSymlink != 0:
			target, lerr := src.Readlink(p)
			if lerr != nil {
				return WrapErrorf(lerr, "failed to read symlink %q", p)
			}
			if err := dst.Symlink(target, p); err != nil {
				return WrapErrorf(err, "failed to create symlink %q", p)
			}
		default:
			data, rerr := util.ReadFile(src, p)
			if rerr != nil {
				return WrapErrorf(rerr, "failed to read %q", p)
			}
			if dir := path.Dir(p); dir != "." {
				if err := dst.MkdirAll(dir, 0o755); err != nil {
					return WrapErrorf(err, "failed to create directory %q", dir)
				}
			}
			if err := util.WriteFile(dst, p, data, info.Mode().Perm()); err != nil {
				return WrapErrorf(err, "failed to write %q", p)
			}
		}
		return nil
	})
}

// clearTree removes every entry at the root of fsys except the git directory.
func clearTree(fsys billy.Filesystem) error {
	entries, err := fsys.ReadDir(".")
	if err != nil {
		return WrapError(err, "failed to list working tree")
	}
	for _, entry := range entries {
		if entry.Name() == gogit.GitDirName {
			continue
		}
		if err := util.RemoveAll(fsys, entry.Name()); err != nil {
			return WrapErrorf(err, "failed to remove %q", entry.Name())
		}
	}
	return nil
}

// skipGitDir is a copyTree filter excluding the scratch repository's own
// .git directory.
func skipGitDir(p string) bool {
	return p == gogit.GitDirName || strings.HasPrefix(p, gogit.GitDirName+"/")
}
