// This file contains the cache manager: bare mirror clones of upstream
// repositories, shared across invocations and keyed by source URL.
package subcopy

import (
	"context"
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/rs/zerolog/log"
)

// Cache maintains bare mirror clones under a single directory. Entries are
// keyed by URL alone so repeated revisions of the same source reuse history.
//
// The cache is shared mutable state with no locking: concurrent invocations
// against the same cache directory may race. Single-process use only.
type Cache struct {
	dir string
}

// CacheHandle is an opened cache entry together with the commit the caller
// asked for, resolved against the entry's full ref set.
type CacheHandle struct {
	// Repo is the bare mirror repository.
	Repo *gogit.Repository

	// Hash is the resolved commit for the requested revision.
	Hash plumbing.Hash

	path string
}

// NewCache returns a cache rooted at dir. The directory is created lazily on
// the first clone.
func NewCache(dir string) *Cache {
	return &Cache{dir: dir}
}

// entryPath derives the on-disk location of a cache entry. URL-safe base64
// keeps arbitrary URLs filesystem-clean while staying reversible.
func (c *Cache) entryPath(url string) string {
	return filepath.Join(c.dir, base64.RawURLEncoding.EncodeToString([]byte(url)))
}

// Ensure returns a handle to a local bare mirror containing rev.
//
// A missing entry triggers a full mirror clone; an existing entry that lacks
// rev triggers an incremental fetch. A failed clone removes its partial
// directory so it never poses as a valid entry; a failed fetch leaves the
// previously valid entry untouched. Resolution failures after a refresh
// surface as ErrResolveFailed.
func (c *Cache) Ensure(ctx context.Context, url, rev string) (*CacheHandle, error) {
	path := c.entryPath(url)

	repo, err := gogit.PlainOpen(path)
	switch {
	case errors.Is(err, gogit.ErrRepositoryNotExists):
		log.Debug().Str("url", url).Str("path", path).Msg("cloning into cache")
		if mkErr := os.MkdirAll(c.dir, 0o755); mkErr != nil {
			return nil, WrapError(mkErr, "failed to create cache directory")
		}
		repo, err = gogit.PlainCloneContext(ctx, path, true, &gogit.CloneOptions{
			URL:    url,
			Mirror: true,
		})
		if err != nil {
			// A partial clone must never pose as a valid cache entry.
			_ = os.RemoveAll(path)
			return nil, WrapErrorf(ErrFetchFailed, "failed to clone %s: %v", url, err)
		}

	case err != nil:
		return nil, WrapErrorf(err, "failed to open cache entry for %s", url)

	default:
		// Refresh only when the requested revision is absent.
		if _, rerr := repo.ResolveRevision(plumbing.Revision(rev)); rerr != nil {
			log.Debug().Str("url", url).Str("rev", rev).Msg("revision absent from cache, fetching")
			ferr := repo.FetchContext(ctx, &gogit.FetchOptions{
				RemoteName: gogit.DefaultRemoteName,
				Force:      true,
				Tags:       gogit.AllTags,
			})
			if ferr != nil && !errors.Is(ferr, gogit.NoErrAlreadyUpToDate) {
				return nil, WrapErrorf(ErrFetchFailed, "failed to fetch %s: %v", url, ferr)
			}
		}
	}

	hash, err := repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return nil, WrapErrorf(ErrResolveFailed, "revision %q not found in %s", rev, url)
	}

	return &CacheHandle{Repo: repo, Hash: *hash, path: path}, nil
}
