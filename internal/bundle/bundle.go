// Package bundle defines the on-disk layout of backup bundles and the
// packaging transform between a staging tree and its single archive file.
//
// Exactly one "latest" archive exists per bundle kind; staging and packing
// always replace the previous bundle of that kind.
package bundle

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind selects a bundle layout.
type Kind string

const (
	// KindFull bundles site files, the database dump, and optionally raw
	// volume snapshots.
	KindFull Kind = "full"
	// KindData bundles only the database dump.
	KindData Kind = "data"
)

// Subdirectories of a staging tree.
const (
	SiteFilesDir = "site_files"
	DBDir        = "db"
	MetaDir      = "meta"
	VolumesDir   = "volumes"

	ManifestName = "manifest.txt"
)

const timeLayout = "2006-01-02 15:04:05"

// Store owns the backup directory holding staging trees and archives.
type Store struct {
	dir   string
	names map[Kind]string
}

// NewStore creates a Store rooted at dir. fullName and dataName are the
// staging directory (and archive base) names for the two bundle kinds.
func NewStore(dir, fullName, dataName string) *Store {
	return &Store{
		dir: dir,
		names: map[Kind]string{
			KindFull: fullName,
			KindData: dataName,
		},
	}
}

// Name returns the staging directory name for a kind. The archive's sole
// top-level entry carries the same name.
func (s *Store) Name(kind Kind) string {
	return s.names[kind]
}

// StagingDir returns the staging tree path for a kind.
func (s *Store) StagingDir(kind Kind) string {
	return filepath.Join(s.dir, s.Name(kind))
}

// ArchivePath returns the canonical archive path for a kind.
func (s *Store) ArchivePath(kind Kind) string {
	return filepath.Join(s.dir, s.Name(kind)+".tar.gz")
}

// ArchiveExists reports whether the latest archive for a kind is present.
func (s *Store) ArchiveExists(kind Kind) bool {
	info, err := os.Stat(s.ArchivePath(kind))
	return err == nil && !info.IsDir()
}

// Stage removes any previous staging tree of the given kind and recreates an
// empty tree with the fixed subdirectory layout. Destructive by design.
func (s *Store) Stage(kind Kind) (string, error) {
	root := s.StagingDir(kind)
	if err := os.RemoveAll(root); err != nil {
		return "", fmt.Errorf("clear staging dir: %w", err)
	}

	subdirs := []string{DBDir, MetaDir}
	if kind == KindFull {
		subdirs = append(subdirs, SiteFilesDir)
	}
	for _, sub := range subdirs {
		if err := os.MkdirAll(filepath.Join(root, sub), 0755); err != nil {
			return "", fmt.Errorf("create staging dir: %w", err)
		}
	}
	return root, nil
}

// Manifest describes a captured bundle.
type Manifest struct {
	BundleID string
	Time     time.Time
	Type     string
	Workdir  string
}

// NewManifest builds a manifest for a capture happening now.
func NewManifest(bundleType, workdir string) Manifest {
	return Manifest{
		BundleID: uuid.New().String(),
		Time:     time.Now(),
		Type:     bundleType,
		Workdir:  workdir,
	}
}

// WriteManifest writes the manifest as plain key=value lines under meta/.
func WriteManifest(stagingDir string, m Manifest) error {
	lines := fmt.Sprintf("backup_time=%s\ntype=%s\nworkdir=%s\nbundle=%s\n",
		m.Time.Format(timeLayout), m.Type, m.Workdir, m.BundleID)
	path := filepath.Join(stagingDir, MetaDir, ManifestName)
	return os.WriteFile(path, []byte(lines), 0644)
}

// ReadManifest parses a manifest file. Unknown keys are ignored.
func ReadManifest(path string) (Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return Manifest{}, err
	}
	defer func() { _ = f.Close() }()

	var m Manifest
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		switch key {
		case "backup_time":
			if ts, err := time.ParseInLocation(timeLayout, value, time.Local); err == nil {
				m.Time = ts
			}
		case "type":
			m.Type = value
		case "workdir":
			m.Workdir = value
		case "bundle":
			m.BundleID = value
		}
	}
	return m, scanner.Err()
}

// CopySiteFiles copies each named site file from workdir into the staging
// tree's site_files directory.
func CopySiteFiles(stagingDir, workdir string, files []string) error {
	for _, name := range files {
		src := filepath.Join(workdir, name)
		dst := filepath.Join(stagingDir, SiteFilesDir, name)
		if err := copyFile(src, dst); err != nil {
			return fmt.Errorf("copy site file %s: %w", name, err)
		}
	}
	return nil
}

// RestoreSiteFiles copies each site file present in the extracted bundle back
// into workdir. Files absent from the bundle are left untouched; partial
// bundles are tolerated.
func RestoreSiteFiles(extractedDir, workdir string, files []string) ([]string, error) {
	var restored []string
	for _, name := range files {
		src := filepath.Join(extractedDir, SiteFilesDir, name)
		if _, err := os.Stat(src); err != nil {
			continue
		}
		if err := copyFile(src, filepath.Join(workdir, name)); err != nil {
			return restored, fmt.Errorf("restore site file %s: %w", name, err)
		}
		restored = append(restored, name)
	}
	return restored, nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, info.Mode().Perm())
}
