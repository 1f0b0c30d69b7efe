package caching

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestCacheRoundTrip(t *testing.T) {
	c, err := NewCache(filepath.Join(t.TempDir(), "pages"), time.Hour)
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}

	if _, ok := c.Get("https://example.com", VariantStatic); ok {
		t.Fatal("expected a miss on an empty cache")
	}
	if err := c.Set("https://example.com", VariantStatic, []byte("<html>static</html>")); err != nil {
		t.Fatalf("Set: %v", err)
	}

	data, ok := c.Get("https://example.com", VariantStatic)
	if !ok || string(data) != "<html>static</html>" {
		t.Fatalf("Get = %q, %v", data, ok)
	}
	if _, ok := c.Get("https://example.com", VariantSnapshot); ok {
		t.Error("variants must not share entries")
	}
}

func TestCacheExpiry(t *testing.T) {
	dir := t.TempDir()
	c, err := NewCache(dir, time.Minute)
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	if err := c.Set("u", VariantStatic, []byte("x")); err != nil {
		t.Fatalf("Set: %v", err)
	}

	old := time.Now().Add(-2 * time.Minute)
	path := filepath.Join(dir, c.key("u", VariantStatic))
	if err := os.Chtimes(path, old, old); err != nil {
		t.Fatalf("Chtimes: %v", err)
	}
	if _, ok := c.Get("u", VariantStatic); ok {
		t.Error("expected an expired entry to miss")
	}
}

func TestCachePurge(t *testing.T) {
	c, err := NewCache(t.TempDir(), time.Hour)
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	c.Set("a", VariantStatic, []byte("1"))
	c.Set("b", VariantSnapshot, []byte("2"))

	if err := c.Purge(); err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if _, ok := c.Get("a", VariantStatic); ok {
		t.Error("expected purge to remove entries")
	}
}

func TestCacheDelete(t *testing.T) {
	c, err := NewCache(t.TempDir(), time.Hour)
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	c.Set("a", VariantStatic, []byte("1"))
	c.Set("a", VariantSnapshot, []byte("2"))
	c.Set("b", VariantStatic, []byte("3"))

	if err := c.Delete("a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok := c.Get("a", VariantSnapshot); ok {
		t.Error("expected both variants of a to be removed")
	}
	if _, ok := c.Get("b", VariantStatic); !ok {
		t.Error("expected b to survive")
	}
	if err := c.Delete("missing"); err != nil {
		t.Errorf("Delete of a missing url: %v", err)
	}
}
