// Package parquetio encodes cleaned tables to and from parquet, the
// columnar format used for persisted dataset artifacts.
package parquetio

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/parquet-go/parquet-go"

	"datachat-backend/internal/table"
)

// columnsMetadataKey carries column order and type tags in the parquet
// footer, since parquet groups sort fields alphabetically.
const columnsMetadataKey = "datachat.columns"

type columnTag struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

const writeBatchSize = 1024

// Encode writes the table to w as parquet. Numbers become optional doubles;
// text and dates become optional strings (dates in RFC 3339).
func Encode(w io.Writer, t *table.Table) error {
	group := parquet.Group{}
	tags := make([]columnTag, 0, t.NumCols())
	for i := range t.Columns {
		col := &t.Columns[i]
		switch col.Type {
		case table.TypeNumber:
			group[col.Name] = parquet.Optional(parquet.Leaf(parquet.DoubleType))
		default:
			group[col.Name] = parquet.Optional(parquet.String())
		}
		tags = append(tags, columnTag{Name: col.Name, Type: string(col.Type)})
	}

	tagJSON, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("marshal column tags: %w", err)
	}

	schema := parquet.NewSchema("dataset", group)
	writer := parquet.NewGenericWriter[map[string]any](w, schema,
		parquet.KeyValueMetadata(columnsMetadataKey, string(tagJSON)))

	rows := t.NumRows()
	batch := make([]map[string]any, 0, writeBatchSize)
	for ri := 0; ri < rows; ri++ {
		row := make(map[string]any, t.NumCols())
		for ci := range t.Columns {
			col := &t.Columns[ci]
			if col.IsNull(ri) {
				continue
			}
			switch col.Type {
			case table.TypeNumber:
				row[col.Name] = col.Numbers[ri]
			case table.TypeDate:
				row[col.Name] = col.Dates[ri].UTC().Format(time.RFC3339)
			default:
				row[col.Name] = col.Text[ri]
			}
		}
		batch = append(batch, row)
		if len(batch) == writeBatchSize {
			if _, err := writer.Write(batch); err != nil {
				return fmt.Errorf("write parquet rows: %w", err)
			}
			batch = batch[:0]
		}
	}
	if len(batch) > 0 {
		if _, err := writer.Write(batch); err != nil {
			return fmt.Errorf("write parquet rows: %w", err)
		}
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return nil
}

// Decode reads a parquet payload back into a table, restoring column order
// and type tags from footer metadata when present.
func Decode(data []byte) (*table.Table, error) {
	file, err := parquet.OpenFile(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open parquet: %w", err)
	}

	fields := file.Schema().Fields()
	cols := make([]table.Column, len(fields))
	numeric := make([]bool, len(fields))
	for i, field := range fields {
		kind := table.TypeText
		if field.Type().Kind() == parquet.Double {
			kind = table.TypeNumber
			numeric[i] = true
		}
		cols[i] = table.Column{Name: field.Name(), Type: kind}
	}

	for _, rowGroup := range file.RowGroups() {
		if err := readRowGroup(rowGroup, cols, numeric); err != nil {
			return nil, err
		}
	}

	t := &table.Table{Columns: cols}
	return restoreColumnTags(t, file)
}

func readRowGroup(rowGroup parquet.RowGroup, cols []table.Column, numeric []bool) error {
	rows := rowGroup.Rows()
	defer rows.Close()

	buf := make([]parquet.Row, 256)
	for {
		n, err := rows.ReadRows(buf)
		for _, row := range buf[:n] {
			for _, value := range row {
				ci := value.Column()
				if ci < 0 || ci >= len(cols) {
					continue
				}
				col := &cols[ci]
				if value.IsNull() {
					col.Nulls = append(col.Nulls, true)
					if numeric[ci] {
						col.Numbers = append(col.Numbers, 0)
					} else {
						col.Text = append(col.Text, "")
					}
					continue
				}
				col.Nulls = append(col.Nulls, false)
				if numeric[ci] {
					col.Numbers = append(col.Numbers, value.Double())
				} else {
					col.Text = append(col.Text, value.String())
				}
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read parquet rows: %w", err)
		}
	}
}

// restoreColumnTags reorders columns and re-applies date types using the
// footer metadata written by Encode. Files written elsewhere decode in
// schema order with dates left as text.
func restoreColumnTags(t *table.Table, file *parquet.File) (*table.Table, error) {
	raw, ok := file.Lookup(columnsMetadataKey)
	if !ok || raw == "" {
		return t, nil
	}

	var tags []columnTag
	if err := json.Unmarshal([]byte(raw), &tags); err != nil {
		return t, nil
	}

	ordered := make([]table.Column, 0, len(tags))
	for _, tag := range tags {
		col := t.Column(tag.Name)
		if col == nil {
			return nil, fmt.Errorf("parquet metadata references unknown column %q", tag.Name)
		}
		restored := *col
		if table.Type(tag.Type) == table.TypeDate && restored.Type == table.TypeText {
			dates := make([]time.Time, len(restored.Text))
			valid := true
			for i, v := range restored.Text {
				if restored.Nulls[i] {
					continue
				}
				parsed, err := time.Parse(time.RFC3339, v)
				if err != nil {
					valid = false
					break
				}
				dates[i] = parsed
			}
			if valid {
				restored.Type = table.TypeDate
				restored.Dates = dates
				restored.Text = nil
			}
		}
		ordered = append(ordered, restored)
	}
	return &table.Table{Columns: ordered}, nil
}
