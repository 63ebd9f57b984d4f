package models

// RawRow is the ordered cell text harvested from one table row, before any
// schema is applied.
type RawRow []string

// Record is one normalized row. Values are positional: index i holds the
// value for the owning RecordSet's Columns[i].
type Record []string

// RecordSet is an ordered batch of records sharing one column schema. The
// schema is fixed by the first accepted row of a batch and never changes
// afterwards.
type RecordSet struct {
	Columns []string
	Records []Record
}

// Len returns the number of records in the set.
func (rs *RecordSet) Len() int {
	if rs == nil {
		return 0
	}
	return len(rs.Records)
}

// Empty reports whether the set holds no records.
func (rs *RecordSet) Empty() bool {
	return rs.Len() == 0
}

// Filter keeps only the records for which keep returns true, preserving
// their relative order.
func (rs *RecordSet) Filter(keep func(Record) bool) {
	if rs == nil {
		return
	}
	kept := rs.Records[:0]
	for _, rec := range rs.Records {
		if keep(rec) {
			kept = append(kept, rec)
		}
	}
	rs.Records = kept
}
