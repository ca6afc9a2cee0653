// Package subcopy implements the synchronization engine behind git-subcopy.
//
// A subcopy is a single file or directory copied out of an upstream git
// repository into a destination repository, together with a record of where
// it came from (URL, revision, source path). The records live in a
// .gitcopies file at the destination repository root, formatted as a git
// config file so it stays human-readable and diff-friendly.
//
// The package is organized around four pieces:
//
//   - Manifest: loads, queries, and atomically saves the .gitcopies records.
//   - Cache: keeps bare mirror clones of upstream repositories under the
//     user's cache directory, keyed by URL, refreshed only when a requested
//     revision is absent.
//   - Extraction: materializes a path of an upstream tree at a revision into
//     a destination directory, staged in a scratch location and swapped in
//     with renames so a crash never leaves a half-written destination.
//   - Sessions: the shell and rebase workflows. Both stage a throwaway git
//     repository holding the upstream snapshot, layer the destination's
//     current content on top, and hand control to an interactive subprocess
//     (the user's shell, or git rebase). Conflict resolution is git's job,
//     not ours; the engine only interprets the session's final state and
//     copies the result back.
//
// All non-interactive git work goes through go-git. The manifest and the
// destination tree are accessed through billy filesystems; the pure data
// paths (manifest, snapshot writing, tree copying) work against in-memory
// filesystems in tests, while the staged atomic swap needs real directory
// renames and runs on osfs.
package subcopy
