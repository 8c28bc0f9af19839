package config

import (
	"path/filepath"
	"testing"
)

func TestValidateConfigPath_RejectsOutsidePaths(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	tests := []struct {
		name string
		path string
	}{
		{"sibling prefix", "/etc/membank../etc/passwd"},
		{"parent escape", filepath.Join(home, ".config", "membank", "..", "..", "..", "etc", "passwd")},
		{"unrelated dir", "/tmp/config.yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := validateConfigPath(tt.path); err == nil {
				t.Errorf("expected error for %s", tt.path)
			}
		})
	}
}

func TestValidateConfigPath_AllowsValidPaths(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	validPaths := []string{
		filepath.Join(home, ".config", "membank", "config.yaml"),
		filepath.Join(home, ".config", "membank", "subdir", "config.yaml"),
		"/etc/membank/config.yaml",
	}

	for _, path := range validPaths {
		t.Run(path, func(t *testing.T) {
			if err := validateConfigPath(path); err != nil {
				t.Errorf("valid path rejected: %s, error: %v", path, err)
			}
		})
	}
}
