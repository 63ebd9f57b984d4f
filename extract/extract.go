// Package extract converts harvested table rows into schema-fixed records.
package extract

import (
	"log/slog"

	"github.com/use-agent/chartfetch/models"
)

// Records maps raw rows onto the source's field layout.
//
// Leading src.SkipRows rows are dropped unseen. A row with fewer cells than
// src.MinColumns is logged and skipped; one malformed row never voids the
// batch. The first accepted row fixes the column schema for the whole set,
// and rows are emitted in input order, without reordering or deduplication.
// When every row is rejected the returned set is empty and the caller must
// treat the run as failed, not as a table with zero entries.
func Records(rows []models.RawRow, src *models.Source, log *slog.Logger) *models.RecordSet {
	if n := src.SkipRows; n > 0 {
		if n >= len(rows) {
			rows = nil
		} else {
			rows = rows[n:]
		}
	}

	rs := &models.RecordSet{}
	skipped := 0
	for i, row := range rows {
		if len(row) < src.MinColumns {
			skipped++
			log.Warn("skipping row with insufficient cells",
				"source", src.Name,
				"row", i,
				"cells", len(row),
				"want", src.MinColumns,
			)
			continue
		}
		if rs.Columns == nil {
			rs.Columns = fieldNames(src.Fields)
		}
		rec := make(models.Record, len(src.Fields))
		for j, f := range src.Fields {
			rec[j] = row[f.Cell]
		}
		rs.Records = append(rs.Records, rec)
	}

	if skipped > 0 {
		log.Info("dropped malformed rows",
			"source", src.Name,
			"dropped", skipped,
			"kept", rs.Len(),
		)
	}
	return rs
}

func fieldNames(fields []models.FieldSpec) []string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	return names
}
