package services

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"document-extraction-platform/internal/logger"
	"document-extraction-platform/models"
)

// ArchiveExpander unpacks ZIP uploads into per-run temp directories and
// registers every extracted file with the lifecycle manager.
type ArchiveExpander struct {
	tempRoot  string
	lifecycle *FileLifecycle
}

func NewArchiveExpander(tempRoot string, lifecycle *FileLifecycle) *ArchiveExpander {
	return &ArchiveExpander{tempRoot: tempRoot, lifecycle: lifecycle}
}

// IsArchive reports whether the filename should be expanded rather than
// converted directly.
func IsArchive(filename string) bool {
	return hasExtension(filename, ".zip")
}

// Expand unpacks the archive at path and returns one entry per usable file
// inside it, recursing into nested archives. Hidden entries and metadata
// directories (base name starting with "." or "__") are skipped. A malformed
// archive yields an empty list; expansion failures never abort a run.
func (ae *ArchiveExpander) Expand(path, archiveName string) []models.FileEntry {
	dest := filepath.Join(ae.tempRoot, uuid.New().String())
	if err := os.MkdirAll(dest, 0o755); err != nil {
		logger.Warn("failed to create extraction directory", "archive", archiveName, "error", err)
		return nil
	}

	entries, err := ae.expandInto(path, archiveName, dest)
	if err != nil {
		logger.Warn("failed to expand archive", "archive", archiveName, "error", err)
		return nil
	}
	logger.Info("expanded archive", "archive", archiveName, "files", len(entries))
	return entries
}

func (ae *ArchiveExpander) expandInto(path, archiveName, dest string) ([]models.FileEntry, error) {
	reader, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	defer reader.Close()

	var entries []models.FileEntry
	for _, f := range reader.File {
		if f.FileInfo().IsDir() || skipArchiveEntry(f.Name) {
			continue
		}

		extracted, err := ae.extractFile(f, dest)
		if err != nil {
			logger.Warn("failed to extract archive entry",
				"archive", archiveName, "entry", f.Name, "error", err)
			continue
		}

		if IsArchive(f.Name) {
			nested := filepath.ToSlash(f.Name)
			inner, err := ae.expandInto(extracted, archiveName+" → "+nested, dest)
			if err != nil {
				logger.Warn("failed to expand nested archive",
					"archive", archiveName, "entry", f.Name, "error", err)
				continue
			}
			entries = append(entries, inner...)
			continue
		}

		entry := models.NewArchiveEntry(extracted, archiveName, filepath.ToSlash(f.Name))
		if ae.lifecycle != nil {
			ae.lifecycle.Track(entry.Path)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// skipArchiveEntry filters hidden files and archive metadata such as
// __MACOSX and .DS_Store, checking every path segment.
func skipArchiveEntry(name string) bool {
	for _, part := range strings.Split(filepath.ToSlash(name), "/") {
		if strings.HasPrefix(part, ".") || strings.HasPrefix(part, "__") {
			return true
		}
	}
	return false
}

// extractFile writes one archive entry under dest with a unique name. The
// original entry path is flattened; provenance lives in the display name.
func (ae *ArchiveExpander) extractFile(f *zip.File, dest string) (string, error) {
	src, err := f.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open archive entry: %w", err)
	}
	defer src.Close()

	target := filepath.Join(dest, uuid.New().String()+filepath.Ext(f.Name))
	out, err := os.Create(target)
	if err != nil {
		return "", fmt.Errorf("failed to create extracted file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, src); err != nil {
		os.Remove(target)
		return "", fmt.Errorf("failed to write extracted file: %w", err)
	}
	return target, nil
}
