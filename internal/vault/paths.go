package vault

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// ValidateNotePath checks that notePath names a file inside the vault and
// returns it cleaned and slash-separated.
func ValidateNotePath(notePath string) (string, error) {
	if strings.TrimSpace(notePath) == "" {
		return "", ErrEmptyPath
	}

	slashed := filepath.ToSlash(notePath)
	if path.IsAbs(slashed) || filepath.IsAbs(notePath) || filepath.VolumeName(notePath) != "" {
		return "", fmt.Errorf("%w: %s", ErrAbsolutePath, notePath)
	}

	// Check every element before cleaning so "a/../../b" is caught too.
	for _, elem := range strings.Split(slashed, "/") {
		if elem == ".." {
			return "", fmt.Errorf("%w: %s", ErrPathTraversal, notePath)
		}
	}

	cleaned := path.Clean(slashed)
	if cleaned == "." {
		return "", ErrEmptyPath
	}
	return cleaned, nil
}
