package repository

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gradcafe_scraper/internal/models"
)

// CorpusStore persists a JSON array of T at a single path.
// Writes go through a temporary file in the same directory and are renamed
// into place, so readers never observe a half-written corpus.
type CorpusStore[T any] struct {
	path   string
	indent string
	logger *slog.Logger
}

// NewRawCorpus stores scraped entries, newest first.
func NewRawCorpus(path string, logger *slog.Logger) *CorpusStore[models.RawEntry] {
	return newCorpusStore[models.RawEntry](path, 2, logger)
}

// NewCleanedCorpus stores the deduplicated cleaned records.
func NewCleanedCorpus(path string, logger *slog.Logger) *CorpusStore[models.CleanedRecord] {
	return newCorpusStore[models.CleanedRecord](path, 4, logger)
}

func newCorpusStore[T any](path string, indent int, logger *slog.Logger) *CorpusStore[T] {
	if logger == nil {
		logger = slog.Default()
	}
	return &CorpusStore[T]{
		path:   path,
		indent: strings.Repeat(" ", indent),
		logger: logger.With("corpus", path),
	}
}

// Path returns the file backing the store.
func (s *CorpusStore[T]) Path() string {
	return s.path
}

// Load returns the stored items. A missing, unreadable or malformed file
// yields an empty list; the condition is logged, never returned.
func (s *CorpusStore[T]) Load() []T {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("could not read corpus, starting empty", "err", err)
		}
		return []T{}
	}

	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		s.logger.Warn("corpus is not a JSON list of records, starting empty", "err", err)
		return []T{}
	}
	if items == nil {
		return []T{}
	}
	return items
}

// Save replaces the stored corpus with items.
func (s *CorpusStore[T]) Save(items []T) error {
	if items == nil {
		items = []T{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", s.indent)
	if err := enc.Encode(items); err != nil {
		return fmt.Errorf("encode corpus: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create corpus directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp corpus: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp corpus: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp corpus: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp corpus: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace corpus: %w", err)
	}
	return nil
}
