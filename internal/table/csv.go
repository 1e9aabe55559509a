package table

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

var (
	// ErrEmptyInput indicates a CSV stream with no data at all.
	ErrEmptyInput = errors.New("csv input is empty")
	// ErrMalformed indicates input that could not be parsed as CSV.
	ErrMalformed = errors.New("malformed csv")
	// ErrNoColumns indicates a header row with no usable columns.
	ErrNoColumns = errors.New("csv has no columns")
)

// DecodeCSV parses a full CSV stream (header row required) into a typed
// table. Columns where every non-empty cell parses as a number become
// number columns; everything else stays text. Empty cells are missing,
// and a fully blank line after the header decodes as an all-missing row.
func DecodeCSV(r io.Reader) (*Table, error) {
	header, records, err := readAll(r, -1)
	if err != nil {
		return nil, err
	}

	cols := make([]Column, len(header))
	for i, name := range header {
		cols[i] = Column{Name: name, Type: TypeText}
	}
	for _, record := range records {
		for i := range cols {
			value := ""
			if i < len(record) {
				value = record[i]
			}
			cols[i].appendText(value, strings.TrimSpace(value) == "")
		}
	}

	t := &Table{Columns: cols}
	for i := range t.Columns {
		inferNumber(&t.Columns[i])
	}
	return t, nil
}

// PreviewCSV reads only the header and up to maxRows records, enough to
// confirm the stream parses as tabular data with at least one column.
func PreviewCSV(r io.Reader, maxRows int) ([]string, error) {
	header, _, err := readAll(r, maxRows)
	if err != nil {
		return nil, err
	}
	return header, nil
}

// readAll parses the stream into a header plus data records. encoding/csv
// silently skips fully blank lines, which would make a one-column missing
// value unrepresentable, so blank lines found via reader offsets are kept
// as nil records and decode to all-missing rows.
func readAll(r io.Reader, maxRows int) ([]string, [][]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil, ErrEmptyInput
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	names := make([]string, 0, len(header))
	for i, raw := range header {
		name := strings.TrimSpace(raw)
		if name == "" {
			name = fmt.Sprintf("column_%d", i+1)
		}
		names = append(names, name)
	}
	if len(names) == 0 {
		return nil, nil, ErrNoColumns
	}

	offset := reader.InputOffset()
	var records [][]string
	for maxRows < 0 || len(records) < maxRows {
		record, err := reader.Read()
		if err == io.EOF {
			records = appendBlankRecords(records, countBlankLines(data[offset:]), maxRows)
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		next := reader.InputOffset()
		records = appendBlankRecords(records, countBlankLines(data[offset:next]), maxRows)
		offset = next
		records = append(records, record)
	}
	return names, records, nil
}

// countBlankLines counts the empty lines csv.Reader skipped at the start of
// the byte span it consumed for a record.
func countBlankLines(span []byte) int {
	n := 0
	for {
		switch {
		case bytes.HasPrefix(span, []byte("\r\n")):
			span = span[2:]
		case bytes.HasPrefix(span, []byte("\n")):
			span = span[1:]
		default:
			return n
		}
		n++
	}
}

func appendBlankRecords(records [][]string, n, maxRows int) [][]string {
	for ; n > 0; n-- {
		if maxRows >= 0 && len(records) >= maxRows {
			break
		}
		records = append(records, nil)
	}
	return records
}

// inferNumber promotes a text column to number when every non-missing cell
// parses as a float.
func inferNumber(c *Column) {
	hasValue := false
	numbers := make([]float64, len(c.Text))
	for i, raw := range c.Text {
		if c.Nulls[i] {
			continue
		}
		parsed, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return
		}
		numbers[i] = parsed
		hasValue = true
	}
	if !hasValue {
		return
	}
	c.Type = TypeNumber
	c.Numbers = numbers
	c.Text = nil
}
