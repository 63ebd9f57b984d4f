// Package sink persists accepted record sets to disk.
package sink

import (
	"encoding/csv"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/use-agent/chartfetch/models"
)

// WriteCSV writes a record set to path as CSV, header first. The parent
// directory is created if missing and an existing file is truncated, so
// re-running a job with identical data produces a byte-identical file.
// An empty record set is refused rather than written as a header-only file.
func WriteCSV(path string, rs *models.RecordSet, log *slog.Logger) error {
	if rs.Empty() {
		return models.NewScrapeError(
			models.ErrCodeEmptyResult,
			"refusing to write empty record set to "+path,
			nil,
		)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return models.NewScrapeError(models.ErrCodeIO, "failed to create "+dir, err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return models.NewScrapeError(models.ErrCodeIO, "failed to create "+path, err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(rs.Columns); err != nil {
		f.Close()
		return models.NewScrapeError(models.ErrCodeIO, "failed to write header to "+path, err)
	}
	for _, rec := range rs.Records {
		if err := w.Write(rec); err != nil {
			f.Close()
			return models.NewScrapeError(models.ErrCodeIO, "failed to write record to "+path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return models.NewScrapeError(models.ErrCodeIO, "failed to flush "+path, err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		return models.NewScrapeError(models.ErrCodeIO, "failed to sync "+path, err)
	}
	if err := f.Close(); err != nil {
		return models.NewScrapeError(models.ErrCodeIO, "failed to close "+path, err)
	}

	log.Info("records written",
		"path", path,
		"records", rs.Len(),
		"columns", len(rs.Columns))
	return nil
}
