package models

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	tests := []struct {
		name      string
		file      string
		body      string
		wantWidth int
		wantGroup float64
		wantAge   time.Duration
		wantErr   bool
	}{
		{
			name:      "yaml",
			file:      "config.yaml",
			body:      "viewport:\n  width: 390\nengine:\n  group_threshold: 0.8\ncache:\n  max_age: 10m\n",
			wantWidth: 390,
			wantGroup: 0.8,
			wantAge:   10 * time.Minute,
		},
		{
			name:      "toml",
			file:      "config.toml",
			body:      "[viewport]\nwidth = 1024\n\n[engine]\nmax_scan_elements = 500\n",
			wantWidth: 1024,
			wantGroup: 0.7,
			wantAge:   time.Hour,
		},
		{
			name:    "unknown extension",
			file:    "config.ini",
			body:    "width=1",
			wantErr: true,
		},
		{
			name:    "malformed yaml",
			file:    "config.yml",
			body:    "viewport: [",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadConfig(writeConfig(t, tt.file, tt.body))
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("LoadConfig: %v", err)
			}
			if cfg.Viewport.Width != tt.wantWidth {
				t.Errorf("width = %d, want %d", cfg.Viewport.Width, tt.wantWidth)
			}
			if cfg.Viewport.Height != 800 {
				t.Errorf("height = %d, want default 800", cfg.Viewport.Height)
			}
			if cfg.Engine.GroupThreshold != tt.wantGroup {
				t.Errorf("group threshold = %v, want %v", cfg.Engine.GroupThreshold, tt.wantGroup)
			}
			if cfg.Cache.MaxAge != tt.wantAge {
				t.Errorf("max age = %v, want %v", cfg.Cache.MaxAge, tt.wantAge)
			}
			if cfg.Engine.AnchorAttribute != DefaultAnchorAttribute {
				t.Errorf("anchor attribute = %q", cfg.Engine.AnchorAttribute)
			}
		})
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Engine.MaxScanElements != 20000 || cfg.Viewport.Width != 1280 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if !cfg.Engine.UseNativeXPath() {
		t.Error("native XPath should be on by default")
	}

	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestOutcomeOf(t *testing.T) {
	tests := []struct {
		err  error
		want Outcome
	}{
		{nil, OutcomeOK},
		{fmt.Errorf("wrap: %w", ErrStale), OutcomeStale},
		{fmt.Errorf("wrap: %w", ErrExhausted), OutcomeExhausted},
		{ErrUnsupported, OutcomeUnsupported},
		{ErrNotFound, OutcomeNotFound},
		{errors.New("anything else"), OutcomeNotFound},
	}
	for _, tt := range tests {
		if got := OutcomeOf(tt.err); got != tt.want {
			t.Errorf("OutcomeOf(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}

	if NewErrorInfo(nil) != nil {
		t.Error("NewErrorInfo(nil) should be nil")
	}
	info := NewErrorInfo(ErrStale, "reload the page")
	if info.Type != "stale" || len(info.SuggestedActions) != 1 {
		t.Errorf("unexpected info: %+v", info)
	}
}
