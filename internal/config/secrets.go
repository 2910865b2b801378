package config

import (
	"fmt"
	"os"
	"strings"
)

// ResolveSecret reads one of the keeper's secrets (the broker password
// BACA_BROKER_PASSWORD, the API credentials BACA_ADMIN_PASS and
// friends) using the *_FILE convention: if envName+"_FILE" is set, the
// secret is read from that file path, which is how container secret
// mounts deliver it. Otherwise the value of envName itself is used.
// Returns empty string if neither is set and an error only if a named
// file cannot be read.
func ResolveSecret(envName string) (string, error) {
	fileEnv := envName + "_FILE"
	if filePath := os.Getenv(fileEnv); filePath != "" {
		content, err := os.ReadFile(filePath)
		if err != nil {
			return "", fmt.Errorf("failed to read secret from %s=%s: %w", fileEnv, filePath, err)
		}
		return strings.TrimSpace(string(content)), nil
	}

	return os.Getenv(envName), nil
}

// MustResolveSecret is like ResolveSecret but logs and exits on error.
// Use this for secrets the keeper cannot start without.
func MustResolveSecret(envName string) string {
	value, err := ResolveSecret(envName)
	if err != nil {
		// Log error without exposing secret content
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	return value
}
