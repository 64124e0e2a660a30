package queue

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// writeAtomic serializes v to a sibling temp file and renames it over path,
// matching the atomic temp+rename discipline used across the daemon's
// on-disk documents (§3, §6, §9).
func writeAtomic(path string, v any) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating queue directory: %w", err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling queue document: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".queue.json.tmp.*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}

	return nil
}

// readDocument loads the live queue document. A missing file reads as an
// empty document rather than an error, matching first-run behavior.
func readDocument(path string) (Document, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is operator-controlled state directory
	if err != nil {
		if os.IsNotExist(err) {
			return Document{Version: 1, Tasks: []Task{}}, nil
		}
		return Document{}, fmt.Errorf("reading queue document: %w", err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("parsing queue document: %w", err)
	}

	return doc, nil
}

// readArchive loads an archive document, treating a missing file as empty.
func readArchive(path string) (ArchiveDocument, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is operator-controlled state directory
	if err != nil {
		if os.IsNotExist(err) {
			return ArchiveDocument{Version: 1, Tasks: []ArchivedTask{}}, nil
		}
		return ArchiveDocument{}, fmt.Errorf("reading archive document: %w", err)
	}

	var doc ArchiveDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return ArchiveDocument{}, fmt.Errorf("parsing archive document: %w", err)
	}

	return doc, nil
}
