//go:build mage

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Search runs a reconciled search using the FACETS environment variable,
// e.g. FACETS="experiment_id=historical variable_id=tas", and saves the
// result to datasets/latest.yaml.
func Search() error {
	mg.Deps(Build, Init)
	facets := os.Getenv("FACETS")
	if facets == "" {
		return fmt.Errorf("set FACETS to one or more name=value constraints")
	}
	args := []string{"search", "--output", filepath.Join("datasets", "latest.yaml")}
	for _, f := range strings.Fields(facets) {
		args = append(args, "--facet", f)
	}
	return sh.RunV(filepath.Join(binDir, binName), args...)
}

// Fetch downloads the files of datasets/latest.yaml into esgf-cache/.
func Fetch() error {
	mg.Deps(Build, Init)
	return sh.RunV(filepath.Join(binDir, binName), "fetch",
		"--datasets", filepath.Join("datasets", "latest.yaml"),
		"--cache-dir", "esgf-cache")
}
