package caching

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Page variants stored side by side for one URL.
const (
	VariantStatic   = "static"
	VariantSnapshot = "snapshot"
)

// Cache provides a simple file-based cache with a TTL.
type Cache struct {
	path string
	ttl  time.Duration
}

// NewCache creates a new Cache instance.
// The cache path will be created if it doesn't exist.
func NewCache(path string, ttl time.Duration) (*Cache, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return &Cache{
		path: path,
		ttl:  ttl,
	}, nil
}

// key hashes the URL and variant into a filename.
func (c *Cache) key(url, variant string) string {
	hash := sha256.Sum256([]byte(url + "\x00" + variant))
	return fmt.Sprintf("%x", hash)
}

// Get retrieves an item from the cache.
// It returns the data and true if the item is found and not expired.
// Otherwise, it returns nil and false.
func (c *Cache) Get(url, variant string) ([]byte, bool) {
	filePath := filepath.Join(c.path, c.key(url, variant))

	info, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return nil, false // Cache miss
	}
	if err != nil {
		return nil, false
	}

	// Check if expired
	if time.Since(info.ModTime()) > c.ttl {
		return nil, false // Cache miss (expired)
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, false // Cache miss (read error)
	}

	return data, true // Cache hit
}

// Set adds an item to the cache.
func (c *Cache) Set(url, variant string, data []byte) error {
	filePath := filepath.Join(c.path, c.key(url, variant))
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write to cache: %w", err)
	}
	return nil
}

// Purge removes every cached page.
func (c *Cache) Purge() error {
	entries, err := os.ReadDir(c.path)
	if err != nil {
		return fmt.Errorf("failed to read cache directory: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(c.path, e.Name())); err != nil {
			return fmt.Errorf("failed to remove cache entry: %w", err)
		}
	}
	return nil
}

// Delete removes every variant cached for url.
func (c *Cache) Delete(url string) error {
	for _, v := range []string{VariantStatic, VariantSnapshot} {
		err := os.Remove(filepath.Join(c.path, c.key(url, v)))
		if err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove cache entry: %w", err)
		}
	}
	return nil
}
