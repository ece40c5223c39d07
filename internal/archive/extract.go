// Package archive extracts uploaded ZIP archives and locates the CSV files
// inside them.
package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// MaxExtractBytes caps the total uncompressed size written by Extract.
var MaxExtractBytes int64 = 1 << 30

var (
	// ErrUnsafePath is returned for entries that would land outside the target dir.
	ErrUnsafePath = errors.New("unsafe path in archive")
	// ErrArchiveTooLarge is returned when the uncompressed total exceeds MaxExtractBytes.
	ErrArchiveTooLarge = errors.New("archive exceeds extraction size limit")
)

// ExtractFile reads a ZIP archive from disk and extracts it into dir.
func ExtractFile(path, dir string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read archive: %w", err)
	}
	return Extract(data, dir)
}

// Extract unpacks the ZIP bytes into dir, creating it if needed, and returns dir.
// Existing files with the same name are overwritten.
func Extract(data []byte, dir string) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	// ErrInsecurePath still yields a usable reader; safeJoin rejects those entries.
	if err != nil && !(errors.Is(err, zip.ErrInsecurePath) && zr != nil) {
		return "", fmt.Errorf("open zip: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create extract dir: %w", err)
	}
	root, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve extract dir: %w", err)
	}

	var written int64
	for _, f := range zr.File {
		target, err := safeJoin(root, f.Name)
		if err != nil {
			return "", err
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return "", fmt.Errorf("create dir %s: %w", f.Name, err)
			}
			continue
		}
		n, err := extractEntry(f, target, MaxExtractBytes-written)
		written += n
		if err != nil {
			return "", err
		}
	}
	return dir, nil
}

func extractEntry(f *zip.File, target string, budget int64) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return 0, fmt.Errorf("create dir for %s: %w", f.Name, err)
	}
	rc, err := f.Open()
	if err != nil {
		return 0, fmt.Errorf("open entry %s: %w", f.Name, err)
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", f.Name, err)
	}
	// one extra byte tells us the budget was exceeded
	n, copyErr := io.Copy(out, io.LimitReader(rc, budget+1))
	closeErr := out.Close()
	if copyErr != nil {
		return n, fmt.Errorf("extract %s: %w", f.Name, copyErr)
	}
	if closeErr != nil {
		return n, fmt.Errorf("close %s: %w", f.Name, closeErr)
	}
	if n > budget {
		_ = os.Remove(target)
		return n, fmt.Errorf("%w (%d bytes)", ErrArchiveTooLarge, MaxExtractBytes)
	}
	return n, nil
}

// safeJoin resolves an archive entry name under root, rejecting zip-slip.
func safeJoin(root, name string) (string, error) {
	name = strings.ReplaceAll(name, `\`, "/")
	if strings.HasPrefix(name, "/") || filepath.IsAbs(name) || filepath.VolumeName(name) != "" {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}
	target := filepath.Join(root, filepath.FromSlash(name))
	rel, err := filepath.Rel(root, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}
	return target, nil
}
