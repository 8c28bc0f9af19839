package state

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// normalize returns the absolute, cleaned form of p. Symlinks are resolved
// in the deepest existing ancestor and the missing tail is re-appended, so a
// path that does not exist yet still matches bindings made through a link.
func normalize(p string) (string, error) {
	expanded, err := expandHome(p)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(expanded)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path %q: %w", p, err)
	}
	return resolveExisting(abs), nil
}

func resolveExisting(abs string) string {
	var rest []string
	for cur := abs; ; {
		if resolved, err := filepath.EvalSymlinks(cur); err == nil {
			return filepath.Join(append([]string{resolved}, rest...)...)
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return abs
		}
		rest = append([]string{filepath.Base(cur)}, rest...)
		cur = parent
	}
}

func expandHome(p string) (string, error) {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~")), nil
}

// validateVault checks that vaultPath is an existing directory and returns
// its normalized form.
func validateVault(vaultPath string) (string, error) {
	if strings.TrimSpace(vaultPath) == "" {
		return "", fmt.Errorf("%w: empty path", ErrInvalidVaultPath)
	}
	vault, err := normalize(vaultPath)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(vault)
	if err != nil {
		return "", fmt.Errorf("%w: %s does not exist", ErrInvalidVaultPath, vault)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: %s is not a directory", ErrInvalidVaultPath, vault)
	}
	return vault, nil
}
