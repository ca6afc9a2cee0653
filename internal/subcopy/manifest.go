// This file contains the manifest store: the persisted record of tracked
// copies. Pure data access, no git semantics.
package subcopy

import (
	"os"
	"strings"

	"github.com/go-git/go-billy/v5"
	gitcfg "github.com/go-git/go-git/v5/plumbing/format/config"
)

// ManifestName is the manifest file name at the destination repository root.
const ManifestName = ".gitcopies"

// manifestSection is the git-config section holding one subsection per copy:
//
//	[subcopy "dest/util"]
//		url = https://example.com/repo.git
//		rev = 0123abcd...
//		sourcePath = lib/util
const manifestSection = "subcopy"

// TrackedCopy is one managed file/directory mapping between an upstream
// repository location and a destination path.
type TrackedCopy struct {
	// SourceURL is the upstream repository location.
	SourceURL string

	// Revision is the commit hash last synchronized. It is always a commit
	// that existed in SourceURL's history when it was recorded; a pending
	// rebase target is never written until the rebase completes.
	Revision string

	// SourcePath is the path within the upstream tree, slash-separated.
	SourcePath string

	// DestPath is the path within the destination tree, slash-separated and
	// relative to the repository root. Unique across the manifest.
	DestPath string
}

// Manifest is the ordered collection of tracked copies for one destination
// repository. The zero value is an empty manifest.
type Manifest struct {
	copies []TrackedCopy
}

// LoadManifest reads the manifest from the root of the given filesystem.
// Returns ErrManifestNotFound if no manifest file exists.
func LoadManifest(fsys billy.Filesystem) (*Manifest, error) {
	f, err := fsys.Open(ManifestName)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, WrapErrorf(ErrManifestNotFound, "no %s in repository root", ManifestName)
		}
		return nil, WrapErrorf(err, "failed to open %s", ManifestName)
	}
	defer f.Close()

	cfg := gitcfg.New()
	if err := gitcfg.NewDecoder(f).Decode(cfg); err != nil {
		return nil, WrapErrorf(err, "failed to parse %s", ManifestName)
	}

	m := &Manifest{}
	for _, sub := range cfg.Section(manifestSection).Subsections {
		m.copies = append(m.copies, TrackedCopy{
			SourceURL:  sub.Option("url"),
			Revision:   sub.Option("rev"),
			SourcePath: sub.Option("sourcePath"),
			DestPath:   sub.Name,
		})
	}
	return m, nil
}

// Copies returns the tracked copies in insertion order.
func (m *Manifest) Copies() []TrackedCopy {
	out := make([]TrackedCopy, len(m.copies))
	copy(out, m.copies)
	return out
}

// Find returns the tracked copy for an exact destination path match,
// or nil if the path is not tracked.
func (m *Manifest) Find(destPath string) *TrackedCopy {
	for i := range m.copies {
		if m.copies[i].DestPath == destPath {
			return &m.copies[i]
		}
	}
	return nil
}

// Upsert inserts a copy or replaces the existing record with the same
// DestPath, preserving insertion order for all other entries. A destination
// nesting inside (or containing) a different tracked destination is rejected
// with ErrNestedTracking.
func (m *Manifest) Upsert(entry TrackedCopy) error {
	for i := range m.copies {
		if m.copies[i].DestPath == entry.DestPath {
			m.copies[i] = entry
			return nil
		}
		if pathsOverlap(m.copies[i].DestPath, entry.DestPath) {
			return WrapErrorf(ErrNestedTracking, "%s overlaps tracked copy %s", entry.DestPath, m.copies[i].DestPath)
		}
	}
	m.copies = append(m.copies, entry)
	return nil
}

// Save writes the manifest atomically: the new content is encoded into a
// temporary file which is then renamed over the manifest, so a crash never
// leaves a half-written file and a failed write leaves the prior file intact.
func (m *Manifest) Save(fsys billy.Filesystem) error {
	cfg := gitcfg.New()
	for _, c := range m.copies {
		sub := cfg.Section(manifestSection).Subsection(c.DestPath)
		sub.SetOption("url", c.SourceURL)
		sub.SetOption("rev", c.Revision)
		sub.SetOption("sourcePath", c.SourcePath)
	}

	tmp, err := fsys.TempFile(".", ManifestName+"-")
	if err != nil {
		return WrapErrorf(err, "failed to create temporary %s", ManifestName)
	}
	tmpName := tmp.Name()

	if err := gitcfg.NewEncoder(tmp).Encode(cfg); err != nil {
		tmp.Close()
		_ = fsys.Remove(tmpName)
		return WrapErrorf(err, "failed to encode %s", ManifestName)
	}
	if err := tmp.Close(); err != nil {
		_ = fsys.Remove(tmpName)
		return WrapErrorf(err, "failed to write %s", ManifestName)
	}

	if err := fsys.Rename(tmpName, ManifestName); err != nil {
		_ = fsys.Remove(tmpName)
		return WrapErrorf(err, "failed to replace %s", ManifestName)
	}
	return nil
}

// pathsOverlap reports whether one slash-separated path is equal to or an
// ancestor of the other. "." is the repository root and contains everything.
func pathsOverlap(a, b string) bool {
	if a == b || a == "." || b == "." {
		return true
	}
	return strings.HasPrefix(a, b+"/") || strings.HasPrefix(b, a+"/")
}
