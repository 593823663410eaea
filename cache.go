package ddelta

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// cacheEntry is one block's bookkeeping record in the on-disk index.
// The cache itself is content-addressed by CRC-32 (the file name
// already encodes the key); the index exists so tooling can list or
// garbage-collect the cache without re-statting every file.
type cacheEntry struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// blockCache is the filesystem-resident, CRC-indexed cache of
// previously reconstructed block files described in spec §3 ("a
// filesystem-resident cache of previously reconstructed block files
// keyed by their target CRC-32"). It generalizes the teacher's
// in-memory Cache/LocalCache (cache.go) to disk, since the applier's
// recovery path must survive across separate block files rather than
// a single process's heap.
type blockCache struct {
	dir       string
	indexPath string
	index     map[uint32]cacheEntry
}

func openBlockCache(dir string) (*blockCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, newErr(KindNewIO, "creating block cache directory", err)
	}
	c := &blockCache{
		dir:       dir,
		indexPath: filepath.Join(dir, "index.msgpack"),
		index:     make(map[uint32]cacheEntry),
	}
	if raw, err := os.ReadFile(c.indexPath); err == nil {
		if err := msgpack.Unmarshal(raw, &c.index); err != nil {
			return nil, newErr(KindNewIO, "decoding block cache index", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, newErr(KindNewIO, "reading block cache index", err)
	}
	return c, nil
}

func (c *blockCache) pathFor(crc uint32) string {
	return filepath.Join(c.dir, fmt.Sprintf("%d.block", crc))
}

// Lookup returns the path of a previously cached block for crc, if
// one exists.
func (c *blockCache) Lookup(crc uint32) (string, bool) {
	entry, ok := c.index[crc]
	if !ok {
		return "", false
	}
	if _, err := os.Stat(entry.Path); err != nil {
		delete(c.index, crc)
		return "", false
	}
	return entry.Path, true
}

// Promote renames tmpPath, a just-finished block file, into the
// cache under crc and records it in the index.
func (c *blockCache) Promote(tmpPath string, crc uint32) error {
	dst := c.pathFor(crc)
	info, err := os.Stat(tmpPath)
	if err != nil {
		return newErr(KindNewIO, "stat block before promotion", err)
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		return newErr(KindNewIO, "promoting block into cache", err)
	}
	c.index[crc] = cacheEntry{Path: dst, Size: info.Size(), ModTime: time.Now()}
	return c.persist()
}

// Remove deletes a cache entry and its backing file.
func (c *blockCache) Remove(crc uint32) {
	if entry, ok := c.index[crc]; ok {
		os.Remove(entry.Path)
		delete(c.index, crc)
	}
}

func (c *blockCache) persist() error {
	raw, err := msgpack.Marshal(c.index)
	if err != nil {
		return newErr(KindNewIO, "encoding block cache index", err)
	}
	if err := os.WriteFile(c.indexPath, raw, 0o644); err != nil {
		return newErr(KindNewIO, "writing block cache index", err)
	}
	return nil
}
