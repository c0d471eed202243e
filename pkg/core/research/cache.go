package research

import (
	"crypto/md5"
	"fmt"
	"os"
	"path/filepath"
)

// TextCache provides file-based caching for extracted filing text, so that
// repeated chunk requests against the same filing do not refetch it.
type TextCache struct {
	cacheDir string
}

// NewTextCache creates a cache rooted at dir. An empty dir returns nil,
// which every method treats as a disabled cache.
func NewTextCache(dir string) *TextCache {
	if dir == "" {
		return nil
	}
	os.MkdirAll(dir, 0755)
	return &TextCache{cacheDir: dir}
}

// cacheKey generates a unique key for a filing URL.
func (c *TextCache) cacheKey(url string) string {
	return fmt.Sprintf("%x", md5.Sum([]byte(url)))
}

func (c *TextCache) filePath(url string) string {
	return filepath.Join(c.cacheDir, c.cacheKey(url)+".txt")
}

// Get retrieves cached text for a filing URL.
// Returns empty string if not cached.
func (c *TextCache) Get(url string) string {
	if c == nil {
		return ""
	}
	data, err := os.ReadFile(c.filePath(url))
	if err != nil {
		return ""
	}
	return string(data)
}

// Set stores extracted text in the cache.
func (c *TextCache) Set(url, text string) error {
	if c == nil {
		return nil
	}
	return os.WriteFile(c.filePath(url), []byte(text), 0644)
}

// Has checks if a filing URL is cached.
func (c *TextCache) Has(url string) bool {
	if c == nil {
		return false
	}
	_, err := os.Stat(c.filePath(url))
	return err == nil
}

// Clear removes all cached files. The cache remains usable afterwards.
func (c *TextCache) Clear() error {
	if c == nil {
		return nil
	}
	if err := os.RemoveAll(c.cacheDir); err != nil {
		return err
	}
	return os.MkdirAll(c.cacheDir, 0755)
}
