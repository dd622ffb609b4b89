package delivery

import (
	"context"
	"os"
	"path/filepath"

	"oracle/internal/domain/report"
	"oracle/internal/render"
	"oracle/pkg/errors"
)

// FileWriter persists rendered markdown reports to a directory
type FileWriter struct {
	dir string
}

// NewFileWriter creates a file-based notifier writing into dir
func NewFileWriter(dir string) (*FileWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create reports dir %s", dir)
	}
	return &FileWriter{dir: dir}, nil
}

// Name implements Notifier
func (w *FileWriter) Name() string { return "file" }

// Notify implements Notifier. Reruns overwrite the previous file: the file
// on disk always mirrors the store's current record.
func (w *FileWriter) Notify(ctx context.Context, rec *report.Record) error {
	path := filepath.Join(w.dir, render.Filename(rec))

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(render.Markdown(rec)), 0o644); err != nil {
		return errors.Wrapf(err, "write report %s", path)
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.Wrapf(err, "finalize report %s", path)
	}
	return nil
}
