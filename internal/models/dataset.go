package models

import "sort"

// Row is one input record together with its line in the source file
type Row struct {
	Line   int
	Values RawRecord
}

// Dataset is a loaded tabular export: the header in file order and every data row
type Dataset struct {
	Source  string
	Headers []string
	Rows    []Row
}

// NewDataset builds a dataset from in-memory records. When headers is nil the
// union of record keys is used, sorted. Rows are numbered as if a header line
// preceded them.
func NewDataset(headers []string, records ...RawRecord) *Dataset {
	if headers == nil {
		headers = HeadersOf(records)
	}
	rows := make([]Row, len(records))
	for i, r := range records {
		rows[i] = Row{Line: i + 2, Values: r}
	}
	return &Dataset{Headers: headers, Rows: rows}
}

// Len returns the number of data rows
func (d *Dataset) Len() int {
	return len(d.Rows)
}

// HeadersOf returns the sorted union of column names across records
func HeadersOf(records []RawRecord) []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range records {
		for k := range r {
			if !seen[k] {
				seen[k] = true
				out = append(out, k)
			}
		}
	}
	sort.Strings(out)
	return out
}
