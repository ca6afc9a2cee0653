// This file contains the staged checkout used by the shell and rebase
// sessions: a throwaway git repository holding the upstream snapshot as a
// real commit, with the destination's content layered on top.
package subcopy

import (
	"fmt"
	"os"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/rs/zerolog/log"
)

// stagedCheckout is a scratch repository whose HEAD is a clean snapshot of
// the upstream source path at a recorded revision. Sessions overlay the
// destination's content as working-tree changes (shell) or as a commit on
// top (rebase), run the interactive delegate, and reconcile the result.
//
// The scratch directory is only removed on success; any failure or abort
// leaves it on disk for manual inspection and recovery.
type stagedCheckout struct {
	dir  string
	fs   billy.Filesystem
	repo *gogit.Repository
	wt   *gogit.Worktree
}

// signature is the author identity for the synthetic commits that sessions
// create. Nothing outside the scratch repository ever sees them.
func signature() *object.Signature {
	return &object.Signature{
		Name:  "git-subcopy",
		Email: "git-subcopy@localhost",
		When:  time.Now(),
	}
}

func commitOpts() *gogit.CommitOptions {
	return &gogit.CommitOptions{
		Author:            signature(),
		Committer:         signature(),
		AllowEmptyCommits: true,
	}
}

// newStagedCheckout creates a scratch repository and commits the upstream
// snapshot of sourcePath at the handle's revision as its initial commit.
func newStagedCheckout(handle *CacheHandle, sourcePath string) (*stagedCheckout, error) {
	dir, err := os.MkdirTemp("", "git-subcopy-")
	if err != nil {
		return nil, WrapError(err, "failed to create scratch directory")
	}

	repo, err := gogit.PlainInit(dir, false)
	if err != nil {
		return nil, WrapError(err, "failed to init scratch repository")
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, WrapError(err, "failed to open scratch worktree")
	}

	sc := &stagedCheckout{dir: dir, fs: osfs.New(dir), repo: repo, wt: wt}
	if _, err := sc.commitSnapshot(handle, sourcePath); err != nil {
		return nil, err
	}

	log.Debug().Str("dir", dir).Str("rev", handle.Hash.String()).Msg("staged upstream snapshot")
	return sc, nil
}

// commitSnapshot replaces the working tree with the upstream snapshot of
// sourcePath at the handle's revision and commits it.
func (sc *stagedCheckout) commitSnapshot(handle *CacheHandle, sourcePath string) (plumbing.Hash, error) {
	if err := clearTree(sc.fs); err != nil {
		return plumbing.ZeroHash, err
	}
	if err := extractSnapshot(handle.Repo, handle.Hash, sourcePath, sc.fs); err != nil {
		return plumbing.ZeroHash, err
	}
	if err := sc.wt.AddWithOptions(&gogit.AddOptions{All: true}); err != nil {
		return plumbing.ZeroHash, WrapError(err, "failed to stage snapshot")
	}
	hash, err := sc.wt.Commit(fmt.Sprintf("Import upstream data at revision %s", handle.Hash), commitOpts())
	if err != nil {
		return plumbing.ZeroHash, WrapError(err, "failed to commit snapshot")
	}
	return hash, nil
}

// overlay replaces the working tree content with the destination's current
// content, leaving it uncommitted. Upstream files the destination no longer
// has show up as deletions.
func (sc *stagedCheckout) overlay(destFS billy.Filesystem) error {
	if err := clearTree(sc.fs); err != nil {
		return err
	}
	return copyTree(destFS, sc.fs, nil)
}

// changeset computes how the overlaid content diverges from HEAD, which is
// the clean upstream snapshot.
func (sc *stagedCheckout) changeset() (Changeset, error) {
	status, err := sc.wt.Status()
	if err != nil {
		return nil, WrapError(err, "failed to read session status")
	}
	return changesetFromStatus(status), nil
}

// commitOverlay commits the overlaid destination content on top of HEAD.
func (sc *stagedCheckout) commitOverlay(destPath string) (plumbing.Hash, error) {
	if err := sc.wt.AddWithOptions(&gogit.AddOptions{All: true}); err != nil {
		return plumbing.ZeroHash, WrapError(err, "failed to stage local changes")
	}
	hash, err := sc.wt.Commit(fmt.Sprintf("Local changes to %s", destPath), commitOpts())
	if err != nil {
		return plumbing.ZeroHash, WrapError(err, "failed to commit local changes")
	}
	return hash, nil
}

// cleanup removes the scratch directory. Callers only invoke it on success.
func (sc *stagedCheckout) cleanup() {
	if err := os.RemoveAll(sc.dir); err != nil {
		log.Warn().Err(err).Str("dir", sc.dir).Msg("failed to remove scratch directory")
	}
}
