// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads index credentials from a directory of plain-text files.
// Each file holds one secret: the filename is the key and the trimmed
// contents are the value.
package secrets

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdiddy/esgf-harvest/internal/logging"
)

// GlobusToken is the key of the bearer token sent to Globus Search indices.
const GlobusToken = "globus-token"

// EnvPrefix is prepended to the upper-cased key when looking up a secret in
// the environment, e.g. ESGF_HARVEST_GLOBUS_TOKEN.
const EnvPrefix = "ESGF_HARVEST_"

// Load reads all files in dir and returns a map of filename to trimmed contents.
// A missing directory is not an error. Unreadable files are logged and skipped.
func Load(ctx context.Context, dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	log := logging.FromContext(ctx)
	secrets := make(map[string]string)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			log.Warn().Str("secret", name).Err(err).Msg("could not read secret")
			continue
		}
		if value := strings.TrimSpace(string(data)); value != "" {
			secrets[name] = value
		}
	}
	return secrets, nil
}

// Lookup returns the secret named key, preferring the environment over the
// loaded files.
func Lookup(loaded map[string]string, key string) string {
	env := EnvPrefix + strings.ToUpper(strings.ReplaceAll(key, "-", "_"))
	if v := strings.TrimSpace(os.Getenv(env)); v != "" {
		return v
	}
	return loaded[key]
}
