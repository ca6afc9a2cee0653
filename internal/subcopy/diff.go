// This file contains changeset computation: how the destination's current
// content diverges from the upstream snapshot it was extracted from.
package subcopy

import (
	"sort"
	"strings"

	gogit "github.com/go-git/go-git/v5"
)

// ChangeKind classifies a single divergence from the upstream snapshot.
type ChangeKind int

const (
	// ChangeAdded marks a file present in the destination but not upstream.
	ChangeAdded ChangeKind = iota

	// ChangeModified marks a file whose destination content differs.
	ChangeModified

	// ChangeDeleted marks an upstream file the destination no longer has.
	ChangeDeleted
)

// String returns the git-style single letter code for the change kind.
func (k ChangeKind) String() string {
	switch k {
	case ChangeAdded:
		return "A"
	case ChangeModified:
		return "M"
	case ChangeDeleted:
		return "D"
	default:
		return "?"
	}
}

// Change is one file-level divergence between the destination content and
// the upstream snapshot it was extracted from.
type Change struct {
	Path string
	Kind ChangeKind
}

// Changeset is the set of changes to replay onto a fresh checkout of the
// source tree, sorted by path. Additions, modifications, and deletions are
// all represented; no superset/subset relationship between the trees is
// assumed.
type Changeset []Change

// String renders the changeset in git status short format, one line per file.
func (cs Changeset) String() string {
	var b strings.Builder
	for _, c := range cs {
		b.WriteString(c.Kind.String())
		b.WriteString(" ")
		b.WriteString(c.Path)
		b.WriteString("\n")
	}
	return b.String()
}

// changesetFromStatus converts a worktree status into a Changeset. The
// status is taken in a staged checkout whose HEAD is the clean upstream
// snapshot and whose working tree is the destination's content, so worktree
// codes map directly onto divergences from upstream.
func changesetFromStatus(status gogit.Status) Changeset {
	var cs Changeset
	for p, fs := range status {
		switch fs.Worktree {
		case gogit.Untracked:
			cs = append(cs, Change{Path: p, Kind: ChangeAdded})
		case gogit.Modified:
			cs = append(cs, Change{Path: p, Kind: ChangeModified})
		case gogit.Deleted:
			cs = append(cs, Change{Path: p, Kind: ChangeDeleted})
		}
	}
	sort.Slice(cs, func(i, j int) bool { return cs[i].Path < cs[j].Path })
	return cs
}
