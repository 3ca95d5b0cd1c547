package catalog

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// SaveToken writes token to path, readable by the owner only.
func SaveToken(path, token string) error {
	if err := os.WriteFile(path, []byte(token), 0o600); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	return nil
}

// LoadToken reads a token written by SaveToken. A missing or blank file is
// ErrNoToken.
func LoadToken(path string) (string, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("%w: %s does not exist", ErrNoToken, path)
	}
	if err != nil {
		return "", fmt.Errorf("load token: %w", err)
	}
	token := strings.TrimSpace(string(b))
	if token == "" {
		return "", fmt.Errorf("%w: %s is empty", ErrNoToken, path)
	}
	return token, nil
}
