package extract

import (
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/use-agent/chartfetch/models"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func salesSource() *models.Source {
	return &models.Source{
		Name:       "sales",
		MinColumns: 3,
		Fields: []models.FieldSpec{
			{Name: "Game", Cell: 1},
			{Name: "Total Sales (M)", Cell: 2},
		},
	}
}

func TestRecords_MapsCellsToFields(t *testing.T) {
	rows := []models.RawRow{
		{"1", "Mario Kart 8 Deluxe", "64.27"},
	}

	rs := Records(rows, salesSource(), discardLogger())

	if rs.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", rs.Len())
	}
	wantCols := []string{"Game", "Total Sales (M)"}
	for i, c := range wantCols {
		if rs.Columns[i] != c {
			t.Errorf("Columns[%d] = %q, want %q", i, rs.Columns[i], c)
		}
	}
	rec := rs.Records[0]
	if rec[0] != "Mario Kart 8 Deluxe" || rec[1] != "64.27" {
		t.Errorf("record = %v, want mapped cells 1 and 2", rec)
	}
}

func TestRecords_SkipsMalformedRows(t *testing.T) {
	var rows []models.RawRow
	for i := 0; i < 50; i++ {
		if i == 10 || i == 25 || i == 40 {
			rows = append(rows, models.RawRow{"short"})
			continue
		}
		rows = append(rows, models.RawRow{fmt.Sprintf("%d", i), fmt.Sprintf("Game %d", i), "1.00"})
	}

	rs := Records(rows, salesSource(), discardLogger())

	if rs.Len() != 47 {
		t.Fatalf("Len() = %d, want 47", rs.Len())
	}
	// Order of the survivors is input order.
	if rs.Records[0][0] != "Game 0" {
		t.Errorf("first record = %v, want Game 0", rs.Records[0])
	}
	if rs.Records[46][0] != "Game 49" {
		t.Errorf("last record = %v, want Game 49", rs.Records[46])
	}
}

func TestRecords_SchemaFromFirstAcceptedRow(t *testing.T) {
	rows := []models.RawRow{
		{"malformed"},
		{"2", "Zelda", "29.81"},
	}

	rs := Records(rows, salesSource(), discardLogger())

	if rs.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", rs.Len())
	}
	if len(rs.Columns) != 2 {
		t.Errorf("schema should be fixed by the first accepted row, got %v", rs.Columns)
	}
}

func TestRecords_AllRejected(t *testing.T) {
	rows := []models.RawRow{{"a"}, {"b"}, nil}

	rs := Records(rows, salesSource(), discardLogger())

	if !rs.Empty() {
		t.Errorf("expected empty set, got %d records", rs.Len())
	}
	if rs.Columns != nil {
		t.Errorf("no accepted row, so no schema; got %v", rs.Columns)
	}
}

func TestRecords_NoRows(t *testing.T) {
	rs := Records(nil, salesSource(), discardLogger())
	if !rs.Empty() {
		t.Errorf("expected empty set for no input, got %d records", rs.Len())
	}
}

func TestRecords_SkipRows(t *testing.T) {
	src := salesSource()
	src.SkipRows = 2

	rows := []models.RawRow{
		{"h1", "Header", "x"}, // well-formed but positionally skipped
		{"h2", "Header", "x"},
		{"1", "Splatoon 3", "12.13"},
	}

	rs := Records(rows, src, discardLogger())

	if rs.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", rs.Len())
	}
	if rs.Records[0][0] != "Splatoon 3" {
		t.Errorf("record = %v, want the row after the skipped ones", rs.Records[0])
	}
}

func TestRecords_SkipRowsBeyondInput(t *testing.T) {
	src := salesSource()
	src.SkipRows = 10

	rs := Records([]models.RawRow{{"1", "Pikmin 4", "3.0"}}, src, discardLogger())

	if !rs.Empty() {
		t.Errorf("skip beyond input should yield empty set, got %d", rs.Len())
	}
}

func TestRecords_ExtraCellsIgnored(t *testing.T) {
	rows := []models.RawRow{
		{"1", "Metroid Dread", "3.07", "extra", "cells"},
	}

	rs := Records(rows, salesSource(), discardLogger())

	if rs.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", rs.Len())
	}
	if len(rs.Records[0]) != 2 {
		t.Errorf("record width = %d, want one value per field", len(rs.Records[0]))
	}
}
