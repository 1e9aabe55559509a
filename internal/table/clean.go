package table

import (
	"strings"
	"time"
)

// dateLayouts are tried in order when promoting a text column to dates.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
}

// Clean normalizes a freshly decoded table: trims whitespace on text cells,
// removes exact duplicate rows, and promotes text columns whose every value
// parses as a date. Returns the cleaned table and the number of duplicate
// rows removed.
func Clean(t *Table) (*Table, int) {
	trimText(t)

	keep, removed := dedupeRows(t)
	cleaned := t.SelectRows(keep)

	for i := range cleaned.Columns {
		promoteDates(&cleaned.Columns[i])
	}
	return cleaned, removed
}

func trimText(t *Table) {
	for ci := range t.Columns {
		col := &t.Columns[ci]
		if col.Type != TypeText {
			continue
		}
		for i, v := range col.Text {
			if col.Nulls[i] {
				continue
			}
			trimmed := strings.TrimSpace(v)
			col.Text[i] = trimmed
			if trimmed == "" {
				col.Nulls[i] = true
			}
		}
	}
}

func dedupeRows(t *Table) ([]int, int) {
	rows := t.NumRows()
	seen := make(map[string]struct{}, rows)
	keep := make([]int, 0, rows)
	removed := 0

	var sb strings.Builder
	for i := 0; i < rows; i++ {
		sb.Reset()
		for ci := range t.Columns {
			col := &t.Columns[ci]
			if col.Nulls[i] {
				sb.WriteString("\x00")
			} else {
				sb.WriteString(col.CellString(i))
			}
			sb.WriteString("\x1f")
		}
		key := sb.String()
		if _, dup := seen[key]; dup {
			removed++
			continue
		}
		seen[key] = struct{}{}
		keep = append(keep, i)
	}
	return keep, removed
}

// promoteDates converts a text column to a date column when every
// non-missing value parses under a single shared layout. Columns with any
// unparseable value are left as text; this is best effort.
func promoteDates(c *Column) {
	if c.Type != TypeText {
		return
	}

	hasValue := false
	for i := range c.Text {
		if !c.Nulls[i] {
			hasValue = true
			break
		}
	}
	if !hasValue {
		return
	}

	for _, layout := range dateLayouts {
		dates, ok := parseAll(c, layout)
		if ok {
			c.Type = TypeDate
			c.Dates = dates
			c.Text = nil
			return
		}
	}
}

func parseAll(c *Column, layout string) ([]time.Time, bool) {
	dates := make([]time.Time, len(c.Text))
	for i, raw := range c.Text {
		if c.Nulls[i] {
			continue
		}
		parsed, err := time.Parse(layout, raw)
		if err != nil {
			return nil, false
		}
		dates[i] = parsed
	}
	return dates, true
}
