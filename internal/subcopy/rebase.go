// This file contains the rebase session: replaying the destination's local
// changes onto a new upstream revision through git's own interactive rebase
// machinery, then reconciling the result.
package subcopy

import (
	"context"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/rs/zerolog/log"
)

// upstreamBranch is the scratch branch holding the new upstream snapshot.
// The local branch (scratch HEAD) carries the destination's changes as a
// commit so that git's native conflict machinery runs unmodified.
const upstreamBranch = "upstream"

// Rebase replays a tracked copy's local changes onto newRev.
//
// The staged checkout gets three commits: the upstream snapshot at the
// recorded revision (merge base), the snapshot at newRev on the upstream
// branch, and the destination's current content on the local branch. The
// interactive rebase of the local branch onto upstream then runs with real
// history to work against; the user resolves conflicts with git's own
// continue/abort primitives.
//
// Only a completed rebase mutates anything: the final tree replaces the
// destination and the manifest's revision is updated, in that order, as the
// last steps. An aborted or unfinished rebase returns ErrRebaseAborted and
// leaves the manifest, the destination, and the scratch directory untouched.
func (a *App) Rebase(ctx context.Context, dest, newRev string) error {
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

	oldHandle, err := a.cache.Ensure(ctx, entry.SourceURL, entry.Revision)
	if err != nil {
		return err
	}
	newHandle, err := a.cache.Ensure(ctx, entry.SourceURL, newRev)
	if err != nil {
		return err
	}
	if newHandle.Hash == oldHandle.Hash {
		log.Info().Str("rev", newHandle.Hash.String()).Msg("already at requested revision")
		return nil
	}

	sc, err := newStagedCheckout(oldHandle, entry.SourcePath)
	if err != nil {
		return err
	}

	localBranch, err := sc.repo.Head()
	if err != nil {
		return WrapError(err, "failed to read scratch HEAD")
	}
	base := localBranch.Hash()

	// Upstream branch: base snapshot plus the newRev snapshot on top, so
	// the rebase sees the real upstream delta with base as merge base.
	upstreamRef := plumbing.NewBranchReferenceName(upstreamBranch)
	if err := sc.repo.Storer.SetReference(plumbing.NewHashReference(upstreamRef, base)); err != nil {
		return WrapError(err, "failed to create upstream branch")
	}
	if err := sc.wt.Checkout(&gogit.CheckoutOptions{Branch: upstreamRef}); err != nil {
		return WrapError(err, "failed to check out upstream branch")
	}
	if _, err := sc.commitSnapshot(newHandle, entry.SourcePath); err != nil {
		return err
	}

	// Local branch: base snapshot plus the destination's current content.
	if err := sc.wt.Checkout(&gogit.CheckoutOptions{Branch: localBranch.Name(), Force: true}); err != nil {
		return WrapError(err, "failed to check out local branch")
	}
	destFS, err := a.fs.Chroot(rel)
	if err != nil {
		return WrapErrorf(err, "failed to open destination %q", rel)
	}
	if err := sc.overlay(destFS); err != nil {
		return err
	}
	localCommit, err := sc.commitOverlay(rel)
	if err != nil {
		return err
	}

	log.Info().
		Str("from", oldHandle.Hash.String()).
		Str("onto", newHandle.Hash.String()).
		Str("dir", sc.dir).
		Msg("starting interactive rebase")

	code, err := a.delegate.InteractiveRebase(ctx, sc.dir, upstreamBranch)
	if err != nil {
		log.Warn().Str("dir", sc.dir).Msg("scratch directory kept for inspection")
		return err
	}
	if code != 0 && a.delegate.RebaseInProgress(sc.dir) {
		// The rebase stopped on conflicts. Hand the user a shell so they
		// can run git rebase --continue or --abort themselves.
		log.Info().Msg("rebase stopped; resolve conflicts then exit the shell (git rebase --continue / --abort)")
		if _, err := a.delegate.Shell(ctx, sc.dir); err != nil {
			log.Warn().Str("dir", sc.dir).Msg("scratch directory kept for inspection")
			return err
		}
	}

	done, err := rebaseCompleted(sc.dir, localCommit, a.delegate)
	if err != nil {
		return err
	}
	if !done {
		log.Warn().Str("dir", sc.dir).Msg("scratch directory kept for inspection")
		return WrapErrorf(ErrRebaseAborted, "rebase of %s onto %s", rel, newRev)
	}

	if err := a.reconcile(sc, rel); err != nil {
		log.Warn().Str("dir", sc.dir).Msg("scratch directory kept for inspection")
		return err
	}

	entry.Revision = newHandle.Hash.String()
	if err := m.Upsert(*entry); err != nil {
		return err
	}
	if err := m.Save(a.fs); err != nil {
		return err
	}

	sc.cleanup()
	log.Info().Str("dest", rel).Str("rev", entry.Revision).Msg("rebased")
	return nil
}

// rebaseCompleted interprets the delegate's final on-disk state. The rebase
// succeeded when no rebase state markers remain and HEAD moved off the local
// commit; HEAD still at the local commit means the user ran git rebase
// --abort.
func rebaseCompleted(dir string, localCommit plumbing.Hash, d Delegate) (bool, error) {
	if d.RebaseInProgress(dir) {
		return false, nil
	}

	// Reopen rather than trusting cached state from before the subprocess.
	repo, err := gogit.PlainOpen(dir)
	if err != nil {
		return false, WrapError(err, "failed to reopen scratch repository")
	}
	head, err := repo.Head()
	if err != nil {
		return false, WrapError(err, "failed to read scratch HEAD")
	}
	return head.Hash() != localCommit, nil
}
