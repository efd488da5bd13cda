package utils

import (
	"os"
	"path/filepath"
	"strings"
)

// ExpandPath resolves a leading ~ and returns an absolute, cleaned path.
func ExpandPath(p string) (string, error) {
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		p = filepath.Join(home, strings.TrimPrefix(p, "~"))
	}
	return filepath.Abs(p)
}
