package versionlist

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/distribox/distribox/internal/history"
)

// filePerms and dirPerms match the permissions used across the repository
// for metadata files (§6 VersionList.txt lives under `.Distribox/`).
const (
	filePerms = 0o644
	dirPerms  = 0o755
)

// document is the on-disk JSON shape of VersionList.txt: a flat list of
// histories, each its own FileID plus ordered event log. This is the
// "structured text form (JSON-equivalent object graph)" §6 specifies.
type document struct {
	Histories []documentHistory `json:"histories"`
}

type documentHistory struct {
	FileID uuid.UUID       `json:"file_id"`
	Events []history.Event `json:"events"`
}

// Flush serializes the Version List and writes it atomically to path
// (temp-file-then-rename, the same pattern used by the blob pool and
// grounded on the teacher's SessionStore.Save).
func (l *List) Flush(path string) error {
	l.mu.Lock()
	doc := document{Histories: make([]documentHistory, 0, len(l.byID))}

	for id, h := range l.byID {
		doc.Histories = append(doc.Histories, documentHistory{FileID: id, Events: h.Events()})
	}
	l.mu.Unlock()

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("versionlist: marshaling: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, dirPerms); err != nil {
		return fmt.Errorf("versionlist: creating metadata dir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "versionlist-*.tmp")
	if err != nil {
		return fmt.Errorf("versionlist: creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)

		return fmt.Errorf("versionlist: writing temp file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("versionlist: closing temp file: %w", err)
	}

	if err := os.Chmod(tmpPath, filePerms); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("versionlist: setting permissions: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("versionlist: renaming temp file into place: %w", err)
	}

	if l.logger != nil {
		l.logger.Debug("version list flushed", slog.String("path", path), slog.Int("histories", len(doc.Histories)))
	}

	return nil
}

// Load reads a previously flushed VersionList.txt and rebuilds both the
// primary and secondary indices. A missing file is treated as an empty
// list (first run on a fresh sync root), not an error.
func Load(path string, logger *slog.Logger) (*List, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(logger), nil
		}

		return nil, fmt.Errorf("versionlist: reading %s: %w", path, err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("versionlist: parsing %s: %w", path, err)
	}

	l := New(logger)

	for _, dh := range doc.Histories {
		h := history.FromEvents(dh.FileID, dh.Events)
		l.byID[h.ID()] = h

		if h.Alive() {
			l.byName[h.CurrentName()] = h
		}
	}

	if logger != nil {
		logger.Debug("version list loaded", slog.String("path", path), slog.Int("histories", len(l.byID)))
	}

	return l, nil
}
