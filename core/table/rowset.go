// Package table holds the decoded tabular content of one catalog's
// input file. Row-sets are owned by the caller; the engine never
// mutates them.
package table

// Cell is one raw column value. A nil cell is a null; an empty string
// is a present-but-empty value (both count as missing for required
// checks, but they are distinct in diagnostics).
type Cell struct {
	Raw  string
	Null bool
}

// String creates a present cell
func String(v string) Cell {
	return Cell{Raw: v}
}

// Null creates a null cell
func Null() Cell {
	return Cell{Null: true}
}

// IsMissing reports whether the cell counts as absent: null or empty
func (c Cell) IsMissing() bool {
	return c.Null || c.Raw == ""
}

// RowSet is the decoded tabular content of one catalog's input file
type RowSet struct {
	// Columns are the actual column names, in file order
	Columns []string

	// Rows are positional records aligned with Columns
	Rows [][]Cell
}

// New creates an empty row-set with the given columns
func New(columns ...string) *RowSet {
	return &RowSet{Columns: columns}
}

// Append adds one row. Short rows are padded with nulls so that a
// ragged record still lines up positionally for diagnostics; the
// structural column-count check works on Columns, not on row width.
func (r *RowSet) Append(cells ...Cell) {
	if len(cells) < len(r.Columns) {
		padded := make([]Cell, len(r.Columns))
		copy(padded, cells)
		for i := len(cells); i < len(r.Columns); i++ {
			padded[i] = Null()
		}
		cells = padded
	}
	r.Rows = append(r.Rows, cells)
}

// AppendStrings adds one row of present cells
func (r *RowSet) AppendStrings(values ...string) {
	cells := make([]Cell, len(values))
	for i, v := range values {
		cells[i] = String(v)
	}
	r.Append(cells...)
}

// ColumnIndex returns the position of a column, or -1
func (r *RowSet) ColumnIndex(name string) int {
	for i, c := range r.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Column returns all cells of one column in row order
func (r *RowSet) Column(name string) ([]Cell, bool) {
	idx := r.ColumnIndex(name)
	if idx < 0 {
		return nil, false
	}
	out := make([]Cell, len(r.Rows))
	for i, row := range r.Rows {
		if idx < len(row) {
			out[i] = row[idx]
		} else {
			out[i] = Null()
		}
	}
	return out, true
}

// Len returns the number of rows
func (r *RowSet) Len() int {
	return len(r.Rows)
}
