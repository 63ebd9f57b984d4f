package sink

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/use-agent/chartfetch/models"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func salesSet() *models.RecordSet {
	return &models.RecordSet{
		Columns: []string{"Game", "Total Sales (M)"},
		Records: []models.Record{
			{"Mario Kart 8 Deluxe", "64.27"},
			{"Animal Crossing, New Horizons", "47.44"},
		},
	}
}

func TestWriteCSV_HeaderAndRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sales.csv")

	if err := WriteCSV(path, salesSet(), discardLogger()); err != nil {
		t.Fatalf("WriteCSV() error = %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	want := "Game,Total Sales (M)\n" +
		"Mario Kart 8 Deluxe,64.27\n" +
		"\"Animal Crossing, New Horizons\",47.44\n"
	if string(got) != want {
		t.Errorf("file content = %q, want %q", got, want)
	}
}

func TestWriteCSV_RefusesEmptySet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.csv")

	err := WriteCSV(path, &models.RecordSet{Columns: []string{"Game"}}, discardLogger())

	var serr *models.ScrapeError
	if !errors.As(err, &serr) || serr.Code != models.ErrCodeEmptyResult {
		t.Fatalf("error = %v, want EMPTY_RESULT", err)
	}
	if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
		t.Error("no file may be created for an empty set")
	}
}

func TestWriteCSV_RefusesNilSet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nil.csv")

	err := WriteCSV(path, nil, discardLogger())

	var serr *models.ScrapeError
	if !errors.As(err, &serr) || serr.Code != models.ErrCodeEmptyResult {
		t.Fatalf("error = %v, want EMPTY_RESULT", err)
	}
}

func TestWriteCSV_CreatesParentDirs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "raw", "sales.csv")

	if err := WriteCSV(path, salesSet(), discardLogger()); err != nil {
		t.Fatalf("WriteCSV() error = %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected file under created dirs: %v", err)
	}
}

func TestWriteCSV_IdempotentRerun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sales.csv")

	if err := WriteCSV(path, salesSet(), discardLogger()); err != nil {
		t.Fatalf("first WriteCSV() error = %v", err)
	}
	first, _ := os.ReadFile(path)

	if err := WriteCSV(path, salesSet(), discardLogger()); err != nil {
		t.Fatalf("second WriteCSV() error = %v", err)
	}
	second, _ := os.ReadFile(path)

	if !bytes.Equal(first, second) {
		t.Error("same record set must produce a byte-identical file")
	}
}

func TestWriteCSV_TruncatesOldContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sales.csv")

	if err := WriteCSV(path, salesSet(), discardLogger()); err != nil {
		t.Fatalf("WriteCSV() error = %v", err)
	}

	small := &models.RecordSet{
		Columns: []string{"Game"},
		Records: []models.Record{{"Celeste"}},
	}
	if err := WriteCSV(path, small, discardLogger()); err != nil {
		t.Fatalf("WriteCSV() error = %v", err)
	}

	got, _ := os.ReadFile(path)
	want := "Game\nCeleste\n"
	if string(got) != want {
		t.Errorf("file content = %q, want shorter run to fully replace the file", got)
	}
}
