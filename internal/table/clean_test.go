package table

import (
	"fmt"
	"strings"
	"testing"
)

func TestCleanRemovesExactDuplicates(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("id,name,score\n")
	for i := 0; i < 95; i++ {
		fmt.Fprintf(&sb, "%d,user%d,%d\n", i, i, i*2)
	}
	// Five exact duplicates of existing rows.
	for i := 0; i < 5; i++ {
		fmt.Fprintf(&sb, "%d,user%d,%d\n", i, i, i*2)
	}

	tbl, err := DecodeCSV(strings.NewReader(sb.String()))
	if err != nil {
		t.Fatalf("DecodeCSV: %v", err)
	}
	if tbl.NumRows() != 100 {
		t.Fatalf("expected 100 raw rows, got %d", tbl.NumRows())
	}

	cleaned, removed := Clean(tbl)
	if removed != 5 {
		t.Fatalf("expected 5 duplicates removed, got %d", removed)
	}
	if cleaned.NumRows() != 95 {
		t.Fatalf("expected 95 rows after cleaning, got %d", cleaned.NumRows())
	}
}

func TestCleanTrimsWhitespace(t *testing.T) {
	input := "name,city\n  alice  ,Paris\nbob,  Lyon\n"
	tbl, err := DecodeCSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("DecodeCSV: %v", err)
	}

	cleaned, _ := Clean(tbl)
	if got := cleaned.Column("name").Text[0]; got != "alice" {
		t.Fatalf("expected trimmed name, got %q", got)
	}
	if got := cleaned.Column("city").Text[1]; got != "Lyon" {
		t.Fatalf("expected trimmed city, got %q", got)
	}
}

func TestCleanPromotesDateColumns(t *testing.T) {
	input := "event,when\nsignup,2023-01-15\npurchase,2023-06-30\nchurn,\n"
	tbl, err := DecodeCSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("DecodeCSV: %v", err)
	}

	cleaned, _ := Clean(tbl)
	when := cleaned.Column("when")
	if when.Type != TypeDate {
		t.Fatalf("expected date column, got %s", when.Type)
	}
	if !when.IsNull(2) {
		t.Fatalf("expected empty date cell to stay missing")
	}
	if when.Dates[0].Year() != 2023 || when.Dates[0].Month() != 1 {
		t.Fatalf("unexpected parsed date: %v", when.Dates[0])
	}
}

func TestCleanLeavesUnparseableDatesAsText(t *testing.T) {
	input := "when\n2023-01-15\nnot a date\n"
	tbl, err := DecodeCSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("DecodeCSV: %v", err)
	}

	cleaned, _ := Clean(tbl)
	if got := cleaned.Column("when").Type; got != TypeText {
		t.Fatalf("expected text column, got %s", got)
	}
}
