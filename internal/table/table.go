package table

import (
	"fmt"
	"strconv"
	"time"
)

// Type tags the inferred kind of a column.
type Type string

const (
	TypeText   Type = "text"
	TypeNumber Type = "number"
	TypeDate   Type = "date"
)

// Column holds one typed column with a parallel null mask. Exactly one of
// the value slices is populated, matching Type.
type Column struct {
	Name    string
	Type    Type
	Text    []string
	Numbers []float64
	Dates   []time.Time
	Nulls   []bool
}

// Table is an in-memory column-oriented dataset.
type Table struct {
	Columns []Column
}

// NumRows returns the row count.
func (t *Table) NumRows() int {
	if len(t.Columns) == 0 {
		return 0
	}
	return len(t.Columns[0].Nulls)
}

// NumCols returns the column count.
func (t *Table) NumCols() int {
	return len(t.Columns)
}

// ColumnNames returns the column names in order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Column returns the named column, or nil when absent.
func (t *Table) Column(name string) *Column {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i]
		}
	}
	return nil
}

// SelectRows builds a new table containing the given row indexes, in order.
func (t *Table) SelectRows(idx []int) *Table {
	out := &Table{Columns: make([]Column, len(t.Columns))}
	for ci, col := range t.Columns {
		nc := Column{Name: col.Name, Type: col.Type, Nulls: make([]bool, len(idx))}
		switch col.Type {
		case TypeNumber:
			nc.Numbers = make([]float64, len(idx))
			for i, ri := range idx {
				nc.Numbers[i] = col.Numbers[ri]
				nc.Nulls[i] = col.Nulls[ri]
			}
		case TypeDate:
			nc.Dates = make([]time.Time, len(idx))
			for i, ri := range idx {
				nc.Dates[i] = col.Dates[ri]
				nc.Nulls[i] = col.Nulls[ri]
			}
		default:
			nc.Text = make([]string, len(idx))
			for i, ri := range idx {
				nc.Text[i] = col.Text[ri]
				nc.Nulls[i] = col.Nulls[ri]
			}
		}
		out.Columns[ci] = nc
	}
	return out
}

// SelectColumns builds a new table with only the named columns, in the
// requested order. Unknown names yield an error.
func (t *Table) SelectColumns(names []string) (*Table, error) {
	out := &Table{Columns: make([]Column, 0, len(names))}
	for _, name := range names {
		col := t.Column(name)
		if col == nil {
			return nil, fmt.Errorf("unknown column %q", name)
		}
		out.Columns = append(out.Columns, *col)
	}
	return out, nil
}

// IsNull reports whether the cell at row i is missing.
func (c *Column) IsNull(i int) bool {
	return c.Nulls[i]
}

// CellString renders the cell at row i as text; missing cells render empty.
func (c *Column) CellString(i int) string {
	if c.Nulls[i] {
		return ""
	}
	switch c.Type {
	case TypeNumber:
		return strconv.FormatFloat(c.Numbers[i], 'f', -1, 64)
	case TypeDate:
		return c.Dates[i].UTC().Format(time.RFC3339)
	default:
		return c.Text[i]
	}
}

// CellValue returns the cell at row i as a JSON-portable value (float64,
// string, or nil for missing).
func (c *Column) CellValue(i int) any {
	if c.Nulls[i] {
		return nil
	}
	switch c.Type {
	case TypeNumber:
		return c.Numbers[i]
	case TypeDate:
		return c.Dates[i].UTC().Format(time.RFC3339)
	default:
		return c.Text[i]
	}
}

// appendCell appends a raw text cell to the column, used while building
// text columns before type inference.
func (c *Column) appendText(value string, null bool) {
	c.Text = append(c.Text, value)
	c.Nulls = append(c.Nulls, null)
}
