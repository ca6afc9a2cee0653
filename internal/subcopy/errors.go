// This file contains the sentinel errors of the synchronization engine.
// All errors can be checked using errors.Is() for programmatic handling.
package subcopy

import (
	"errors"
	"fmt"
)

// Common sentinel errors that can be checked with errors.Is().
// Command-level code maps these to exit messages; nothing is swallowed.

// ErrManifestNotFound is returned when the destination repository has no
// .gitcopies file yet. Callers adding the first copy treat this as an empty
// manifest; every other command treats it as ErrMissingTracking.
var ErrManifestNotFound = errors.New("manifest not found")

// ErrMissingTracking is returned when a command targets a destination path
// that is not recorded in the manifest.
var ErrMissingTracking = errors.New("destination is not tracked")

// ErrDestinationExists is returned when an add would overwrite existing
// content or an already-tracked destination.
var ErrDestinationExists = errors.New("destination already exists")

// ErrNestedTracking is returned when a destination path would nest inside,
// or contain, another tracked destination. Overlapping copies have no sane
// merge policy, so they are rejected outright.
var ErrNestedTracking = errors.New("destination overlaps a tracked copy")

// ErrPathNotFound is returned when the requested source path does not exist
// in the upstream tree at the requested revision.
var ErrPathNotFound = errors.New("path not found at revision")

// ErrFetchFailed is returned when cloning or fetching an upstream repository
// fails (network, auth, remote not found). Re-running the command retries;
// there is no internal retry loop.
var ErrFetchFailed = errors.New("fetch failed")

// ErrResolveFailed is returned when a revision specification cannot be
// resolved to a commit, even after refreshing the cache.
var ErrResolveFailed = errors.New("cannot resolve revision")

// ErrRebaseAborted is returned when the user abandons an interactive rebase.
// This is a valid terminal outcome, not a bug: the manifest and the
// destination tree are left exactly as they were.
var ErrRebaseAborted = errors.New("rebase aborted")

// WrapError wraps an error with additional context while preserving
// the ability to check against sentinel errors using errors.Is().
func WrapError(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// WrapErrorf wraps an error with formatted additional context while preserving
// the ability to check against sentinel errors using errors.Is().
func WrapErrorf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}
