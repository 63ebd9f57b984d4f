package models

// FieldSpec binds one output column to a cell position in a raw row.
type FieldSpec struct {
	Name string
	Cell int
}

// Source describes one scrape target: where to navigate, how to recognize
// that the page has rendered its data, how to slice it into rows and cells,
// and how cells map onto output columns.
type Source struct {
	Name string
	URL  string

	// ReadySelector is the structural marker whose presence means the
	// page is ready for harvesting.
	ReadySelector string

	// RowSelector matches one element per table row.
	RowSelector string

	// CellSelector matches every cell inside a row, in document order.
	// Leave empty when CellSelectors is used instead.
	CellSelector string

	// CellSelectors names one sub-element per cell position, for listing
	// markup without a uniform cell tag. A missing sub-element truncates
	// the row at that position.
	CellSelectors []string

	// SkipRows drops this many leading rows (header rows are positional,
	// not sniffed).
	SkipRows int

	// MinColumns is the cell count below which a row is rejected.
	MinColumns int

	// Fields maps cell positions to output columns, in output order.
	Fields []FieldSpec
}
