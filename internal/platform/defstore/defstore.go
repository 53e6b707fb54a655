// Package defstore reads named configuration documents (algorithm, CAP,
// category, axis and substitution definitions) and caches what engines build
// from them.
package defstore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

// ErrNotFound is returned when a named document does not exist in a Source.
var ErrNotFound = errors.New("definition not found")

// Source is a read-only, path-addressed store of definition documents.
// Paths use forward slashes and are relative to the source root.
type Source interface {
	ReadFile(name string) ([]byte, error)
	// List returns the base names (without extension) of the files in dir
	// whose extension is one of exts. A missing dir yields an empty list.
	List(dir string, exts ...string) ([]string, error)
}

// FSSource adapts an fs.FS (os.DirFS, embed.FS, fstest.MapFS) to Source.
type FSSource struct {
	fsys fs.FS
}

// NewFSSource wraps fsys.
func NewFSSource(fsys fs.FS) *FSSource {
	return &FSSource{fsys: fsys}
}

// NewDirSource reads definitions from a directory on disk.
func NewDirSource(dir string) (*FSSource, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("definitions dir %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("definitions dir %s: not a directory", dir)
	}
	return NewFSSource(os.DirFS(dir)), nil
}

func (s *FSSource) ReadFile(name string) ([]byte, error) {
	data, err := fs.ReadFile(s.fsys, name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
		}
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	return data, nil
}

func (s *FSSource) List(dir string, exts ...string) ([]string, error) {
	entries, err := fs.ReadDir(s.fsys, dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing %s: %w", dir, err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := path.Ext(entry.Name())
		if !hasExt(ext, exts) {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), ext))
	}
	sort.Strings(names)
	return names, nil
}

// Stat returns the file info for name without reading it.
func (s *FSSource) Stat(name string) (fs.FileInfo, error) {
	return fs.Stat(s.fsys, name)
}

// Stater is implemented by sources that can check for a document without
// reading it.
type Stater interface {
	Stat(name string) (fs.FileInfo, error)
}

// Exists reports whether name is a document in src. Sources without Stat
// fall back to a full read.
func Exists(src Source, name string) bool {
	if st, ok := src.(Stater); ok {
		info, err := st.Stat(name)
		return err == nil && !info.IsDir()
	}
	_, err := src.ReadFile(name)
	return err == nil
}

func hasExt(ext string, exts []string) bool {
	if len(exts) == 0 {
		return true
	}
	for _, e := range exts {
		if strings.EqualFold(ext, e) {
			return true
		}
	}
	return false
}

// Cache is a per-engine read-through cache keyed by definition name.
// Concurrent first loads of the same name share one call to load; failed
// loads are not cached.
type Cache[T any] struct {
	mu    sync.RWMutex
	items map[string]T
	group singleflight.Group
}

// NewCache creates an empty cache.
func NewCache[T any]() *Cache[T] {
	return &Cache[T]{items: make(map[string]T)}
}

// Get returns the cached value for name, calling load on a miss.
func (c *Cache[T]) Get(name string, load func() (T, error)) (T, error) {
	c.mu.RLock()
	v, ok := c.items[name]
	c.mu.RUnlock()
	if ok {
		return v, nil
	}

	res, err, _ := c.group.Do(name, func() (interface{}, error) {
		c.mu.RLock()
		v, ok := c.items[name]
		c.mu.RUnlock()
		if ok {
			return v, nil
		}

		loaded, err := load()
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.items[name] = loaded
		c.mu.Unlock()
		return loaded, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	out, _ := res.(T)
	return out, nil
}

// Put stores v under name, replacing any cached value.
func (c *Cache[T]) Put(name string, v T) {
	c.mu.Lock()
	c.items[name] = v
	c.mu.Unlock()
}

// Len returns the number of cached entries.
func (c *Cache[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Names returns the cached names in sorted order.
func (c *Cache[T]) Names() []string {
	c.mu.RLock()
	names := make([]string, 0, len(c.items))
	for n := range c.items {
		names = append(names, n)
	}
	c.mu.RUnlock()
	sort.Strings(names)
	return names
}
