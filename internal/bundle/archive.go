package bundle

import (
	"archive/tar"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrCorruptArchive indicates an archive extracted cleanly but did not
// contain the expected staging directory as its top-level entry.
var ErrCorruptArchive = errors.New("archive does not contain the expected bundle directory")

// Pack produces the single compressed archive for the staging tree, with the
// tree's base name as the sole top-level entry. Any stale archive is removed
// first so an interrupted run cannot leave a half-overwritten file behind.
func (s *Store) Pack(kind Kind) (string, error) {
	stagingDir := s.StagingDir(kind)
	archivePath := s.ArchivePath(kind)

	if err := os.Remove(archivePath); err != nil && !os.IsNotExist(err) {
		return "", fmt.Errorf("remove stale archive: %w", err)
	}

	out, err := os.Create(archivePath)
	if err != nil {
		return "", fmt.Errorf("create archive: %w", err)
	}
	defer func() { _ = out.Close() }()

	gzw := gzip.NewWriter(out)
	tw := tar.NewWriter(gzw)

	base := filepath.Base(stagingDir)
	err = filepath.Walk(stagingDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(stagingDir, path)
		if err != nil {
			return err
		}
		name := base
		if rel != "." {
			name = filepath.Join(base, rel)
		}

		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(name)
		if info.IsDir() {
			hdr.Name += "/"
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		_, err = io.Copy(tw, f)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("pack %s: %w", base, err)
	}

	if err := tw.Close(); err != nil {
		return "", err
	}
	if err := gzw.Close(); err != nil {
		return "", err
	}
	if err := out.Close(); err != nil {
		return "", err
	}
	return archivePath, nil
}

// Unpack extracts an archive into a fresh temporary directory and returns the
// path of the expected top-level bundle directory inside it, plus the temp
// root so the caller can clean up on success. Extraction never happens in
// place over the working directory.
func Unpack(archivePath, wantName string) (extractedDir, tmpRoot string, err error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return "", "", fmt.Errorf("open archive: %w", err)
	}
	defer func() { _ = f.Close() }()

	tmpRoot, err = os.MkdirTemp("", "relayops-restore-")
	if err != nil {
		return "", "", fmt.Errorf("create extraction dir: %w", err)
	}

	gzr, err := gzip.NewReader(f)
	if err != nil {
		_ = os.RemoveAll(tmpRoot)
		return "", "", fmt.Errorf("read archive: %w", err)
	}
	defer func() { _ = gzr.Close() }()

	tr := tar.NewReader(gzr)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			_ = os.RemoveAll(tmpRoot)
			return "", "", fmt.Errorf("read archive: %w", err)
		}

		target, err := securePath(tmpRoot, hdr.Name)
		if err != nil {
			_ = os.RemoveAll(tmpRoot)
			return "", "", err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				_ = os.RemoveAll(tmpRoot)
				return "", "", err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				_ = os.RemoveAll(tmpRoot)
				return "", "", err
			}
			if err := writeEntry(target, tr, hdr.FileInfo().Mode().Perm()); err != nil {
				_ = os.RemoveAll(tmpRoot)
				return "", "", err
			}
		}
	}

	extractedDir = filepath.Join(tmpRoot, wantName)
	if info, err := os.Stat(extractedDir); err != nil || !info.IsDir() {
		// Leave tmpRoot for inspection; the caller decides what to do with
		// a foreign or malformed archive.
		return "", tmpRoot, fmt.Errorf("%w: wanted %s in %s", ErrCorruptArchive, wantName, archivePath)
	}
	return extractedDir, tmpRoot, nil
}

func writeEntry(target string, r io.Reader, mode os.FileMode) error {
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()
	if _, err := io.Copy(out, r); err != nil {
		return err
	}
	return out.Close()
}

// securePath rejects entries that would escape the extraction root.
func securePath(root, name string) (string, error) {
	target := filepath.Join(root, filepath.FromSlash(name))
	if !strings.HasPrefix(target, filepath.Clean(root)+string(os.PathSeparator)) {
		return "", fmt.Errorf("archive entry escapes extraction dir: %s", name)
	}
	return target, nil
}
