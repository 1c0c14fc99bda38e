// Package archive unpacks uploaded ZIP archives into a scratch directory.
package archive

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/a3tai/doi-metadata-extractor/internal/security"
)

const (
	dirPerm  = 0o750
	filePerm = 0o640
)

var (
	// ErrInvalidArchive is returned when the input is not a readable ZIP file
	ErrInvalidArchive = errors.New("invalid ZIP archive")
	// ErrUnsafePath is returned for entries that would land outside the destination
	ErrUnsafePath = errors.New("unsafe path in archive")
	// ErrEntryTooLarge is returned for entries above the per-entry limit
	ErrEntryTooLarge = errors.New("archive entry too large")
	// ErrArchiveTooLarge is returned when the total uncompressed size exceeds the limit
	ErrArchiveTooLarge = errors.New("archive too large")
)

// Limits bounds the uncompressed size of an archive. Zero means unlimited.
type Limits struct {
	MaxEntrySize int64
	MaxTotalSize int64
}

// Entry is one file written to disk
type Entry struct {
	Name string // name inside the archive, slash separated
	Path string // path on disk
	Size int64
}

// Extract unpacks the archive read from r into dest. Every entry path is
// checked before anything is written, so an unsafe archive leaves dest
// untouched. Directories and symlinks are not materialised.
func Extract(ctx context.Context, r io.ReaderAt, size int64, dest string, limits Limits) ([]Entry, error) {
	zr, err := zip.NewReader(r, size)
	if errors.Is(err, zip.ErrInsecurePath) {
		return nil, fmt.Errorf("%w: %v", ErrUnsafePath, err)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArchive, err)
	}

	guard, err := security.NewPathGuard(dest)
	if err != nil {
		return nil, err
	}

	type planned struct {
		file *zip.File
		path string
	}

	plan := make([]planned, 0, len(zr.File))
	var total uint64
	for _, f := range zr.File {
		path, err := guard.Join(f.Name)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnsafePath, err)
		}

		if !f.Mode().IsRegular() || strings.HasSuffix(f.Name, "/") {
			continue
		}

		if limits.MaxEntrySize > 0 && f.UncompressedSize64 > uint64(limits.MaxEntrySize) {
			return nil, fmt.Errorf("%w: %s is %d bytes (max: %d bytes)",
				ErrEntryTooLarge, f.Name, f.UncompressedSize64, limits.MaxEntrySize)
		}

		total += f.UncompressedSize64
		if limits.MaxTotalSize > 0 && total > uint64(limits.MaxTotalSize) {
			return nil, fmt.Errorf("%w: more than %d bytes uncompressed", ErrArchiveTooLarge, limits.MaxTotalSize)
		}

		plan = append(plan, planned{file: f, path: path})
	}

	entries := make([]Entry, 0, len(plan))
	for _, p := range plan {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		written, err := extractFile(p.file, p.path, limits.MaxEntrySize)
		if err != nil {
			return nil, err
		}

		entries = append(entries, Entry{Name: p.file.Name, Path: p.path, Size: written})
	}

	return entries, nil
}

// ExtractFile unpacks the ZIP file at path into dest
func ExtractFile(ctx context.Context, path, dest string, limits Limits) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open archive: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("cannot access archive: %w", err)
	}

	return Extract(ctx, f, info.Size(), dest, limits)
}

// extractFile copies one entry to disk. The declared size in the central
// directory is not trusted, so the copy itself is bounded too.
func extractFile(f *zip.File, path string, maxSize int64) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(path), dirPerm); err != nil {
		return 0, fmt.Errorf("cannot create directory for %s: %w", f.Name, err)
	}

	rc, err := f.Open()
	if err != nil {
		return 0, fmt.Errorf("%w: open %s: %v", ErrInvalidArchive, f.Name, err)
	}
	defer rc.Close()

	out, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, filePerm)
	if err != nil {
		return 0, fmt.Errorf("cannot create %s: %w", path, err)
	}
	defer out.Close()

	var src io.Reader = rc
	if maxSize > 0 {
		src = io.LimitReader(rc, maxSize+1)
	}

	written, err := io.Copy(out, src)
	if err != nil {
		return written, fmt.Errorf("%w: read %s: %v", ErrInvalidArchive, f.Name, err)
	}
	if maxSize > 0 && written > maxSize {
		return written, fmt.Errorf("%w: %s exceeds %d bytes", ErrEntryTooLarge, f.Name, maxSize)
	}

	return written, out.Close()
}
