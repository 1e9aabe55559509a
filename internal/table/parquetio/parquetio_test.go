package parquetio

import (
	"bytes"
	"strings"
	"testing"

	"datachat-backend/internal/table"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	input := "name,salary,joined\nalice,100,2023-01-15\nbob,200,2023-06-30\ncarol,,2024-02-01\n"
	tbl, err := table.DecodeCSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("DecodeCSV: %v", err)
	}
	cleaned, _ := table.Clean(tbl)

	var buf bytes.Buffer
	if err := Encode(&buf, cleaned); err != nil {
		t.Fatalf("Encode: %v", err)
	}

	decoded, err := Decode(buf.Bytes())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if decoded.NumRows() != 3 || decoded.NumCols() != 3 {
		t.Fatalf("expected 3x3 table, got %dx%d", decoded.NumRows(), decoded.NumCols())
	}

	// Column order must survive the round trip.
	names := decoded.ColumnNames()
	if names[0] != "name" || names[1] != "salary" || names[2] != "joined" {
		t.Fatalf("column order not preserved: %v", names)
	}

	salary := decoded.Column("salary")
	if salary.Type != table.TypeNumber {
		t.Fatalf("expected number column, got %s", salary.Type)
	}
	if salary.Numbers[0] != 100 || salary.Numbers[1] != 200 {
		t.Fatalf("unexpected salary values: %v", salary.Numbers)
	}
	if !salary.IsNull(2) {
		t.Fatalf("expected missing salary to stay missing")
	}

	joined := decoded.Column("joined")
	if joined.Type != table.TypeDate {
		t.Fatalf("expected date column after decode, got %s", joined.Type)
	}
	if joined.Dates[0].Year() != 2023 {
		t.Fatalf("unexpected date: %v", joined.Dates[0])
	}

	name := decoded.Column("name")
	if name.Type != table.TypeText || name.Text[1] != "bob" {
		t.Fatalf("unexpected name column: %+v", name)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := Decode([]byte("not a parquet file")); err == nil {
		t.Fatalf("expected decode of garbage to fail")
	}
}
