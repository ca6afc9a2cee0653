// This file contains the delegate engine boundary: the interactive
// subprocesses whose exit state the session engine interprets. Everything
// here blocks until the user exits; there is deliberately no timeout.
package subcopy

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"

	gogit "github.com/go-git/go-git/v5"
)

// Delegate is the capability surface the session engine requires from the
// external version-control engine for its interactive phases. Every call may
// block indefinitely and end by user interruption; the returned int is the
// subprocess exit code.
type Delegate interface {
	// Shell runs an interactive shell in dir and blocks until it exits.
	Shell(ctx context.Context, dir string) (int, error)

	// InteractiveRebase starts an interactive rebase of the current branch
	// onto upstream in dir and blocks until the rebase process exits. A
	// nonzero code usually means the rebase stopped on conflicts.
	InteractiveRebase(ctx context.Context, dir, upstream string) (int, error)

	// RebaseInProgress reports whether dir holds on-disk rebase state
	// markers, i.e. a rebase that has neither finished nor been aborted.
	RebaseInProgress(dir string) bool
}

// gitDelegate drives the system git binary and the user's shell with
// inherited stdio.
type gitDelegate struct {
	gitBin string
	shell  string
}

func (d *gitDelegate) run(ctx context.Context, dir, name string, args ...string) (int, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	err := cmd.Run()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	if err != nil {
		return 0, WrapErrorf(err, "failed to run %s", name)
	}
	return 0, nil
}

func (d *gitDelegate) Shell(ctx context.Context, dir string) (int, error) {
	return d.run(ctx, dir, d.shell)
}

func (d *gitDelegate) InteractiveRebase(ctx context.Context, dir, upstream string) (int, error) {
	return d.run(ctx, dir, d.gitBin, "rebase", "--interactive", upstream)
}

func (d *gitDelegate) RebaseInProgress(dir string) bool {
	for _, marker := range []string{"rebase-merge", "rebase-apply"} {
		if _, err := os.Stat(filepath.Join(dir, gogit.GitDirName, marker)); err == nil {
			return true
		}
	}
	return false
}
