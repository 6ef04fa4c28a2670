// Package site locates the stack's working directory and validates the site
// files that define the running stack.
package site

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-multierror"
)

// ErrNotFound indicates no working directory could be resolved.
var ErrNotFound = errors.New("stack directory not found")

// Resolver locates the working directory that holds the compose stack.
type Resolver struct {
	// EnvVar is the environment variable that, when set, overrides discovery.
	EnvVar string
	// Marker is the file whose presence identifies a stack directory.
	Marker string
	// Default is used when neither the override nor the ancestor walk match.
	Default string
	// Getenv is injected so resolution is testable without process state.
	Getenv func(string) string
}

// Resolve returns the working directory, trying in order: the environment
// override, the nearest ancestor of startDir (inclusive) containing the
// marker file, and the fixed default. Pure lookup; no side effects.
func (r *Resolver) Resolve(startDir string) (string, error) {
	getenv := r.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}

	if dir := getenv(r.EnvVar); dir != "" {
		if fileExists(filepath.Join(dir, r.Marker)) {
			return dir, nil
		}
		return "", fmt.Errorf("%w: %s=%s has no %s", ErrNotFound, r.EnvVar, dir, r.Marker)
	}

	dir := startDir
	for {
		if fileExists(filepath.Join(dir, r.Marker)) {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	if fileExists(filepath.Join(r.Default, r.Marker)) {
		return r.Default, nil
	}

	return "", fmt.Errorf("%w: no %s in %s, its ancestors, or %s", ErrNotFound, r.Marker, startDir, r.Default)
}

// EnsureSiteFiles verifies that every required site file exists in dir. All
// missing files are collected into one aggregate error so a single failed run
// reports the complete list.
func EnsureSiteFiles(dir string, files []string) error {
	var result *multierror.Error
	for _, name := range files {
		if !fileExists(filepath.Join(dir, name)) {
			result = multierror.Append(result, fmt.Errorf("missing site file: %s", filepath.Join(dir, name)))
		}
	}
	return result.ErrorOrNil()
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
