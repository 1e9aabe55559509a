package query

import (
	"fmt"
	"sort"
	"time"

	"datachat-backend/internal/table"
)

var dateLiteralLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"}

// Result is the outcome of evaluating a query: a scalar or a derived table.
type Result struct {
	Scalar any
	Table  *table.Table
}

// IsScalar reports whether the result is a single value.
func (r Result) IsScalar() bool {
	return r.Table == nil
}

// Eval runs a parsed query against a table.
func Eval(q *Query, t *table.Table) (Result, error) {
	if q.Scalar != nil {
		val, err := evalAggregate(*q.Scalar, t, allRows(t))
		if err != nil {
			return Result{}, err
		}
		return Result{Scalar: val}, nil
	}

	cur := t
	for _, stage := range q.Stages {
		var err error
		switch {
		case stage.Filter != nil:
			cur, err = evalFilter(stage.Filter, cur)
		case stage.Select != nil:
			cur, err = cur.SelectColumns(stage.Select.Columns)
		case stage.GroupBy != nil:
			cur, err = evalGroupBy(stage.GroupBy, cur)
		case stage.Sort != nil:
			cur, err = evalSort(stage.Sort, cur)
		case stage.Head != nil:
			cur = evalHead(stage.Head.N, cur)
		}
		if err != nil {
			return Result{}, err
		}
	}
	return Result{Table: cur}, nil
}

func allRows(t *table.Table) []int {
	idx := make([]int, t.NumRows())
	for i := range idx {
		idx[i] = i
	}
	return idx
}

func evalFilter(f *FilterStage, t *table.Table) (*table.Table, error) {
	col := t.Column(f.Column)
	if col == nil {
		return nil, fmt.Errorf("unknown column %q in filter", f.Column)
	}

	match, err := buildMatcher(col, f)
	if err != nil {
		return nil, err
	}

	var keep []int
	for i := 0; i < t.NumRows(); i++ {
		if col.IsNull(i) {
			continue
		}
		if match(i) {
			keep = append(keep, i)
		}
	}
	return t.SelectRows(keep), nil
}

func buildMatcher(col *table.Column, f *FilterStage) (func(int) bool, error) {
	switch col.Type {
	case table.TypeNumber:
		if !f.Value.IsNumber {
			return nil, fmt.Errorf("column %q is numeric but filter value %q is not", f.Column, f.Value.Text)
		}
		want := f.Value.Number
		return func(i int) bool { return compareFloats(col.Numbers[i], want, f.Op) }, nil
	case table.TypeDate:
		if f.Value.IsNumber {
			return nil, fmt.Errorf("column %q holds dates; use a quoted date literal", f.Column)
		}
		want, err := parseDateLiteral(f.Value.Text)
		if err != nil {
			return nil, fmt.Errorf("column %q holds dates: %w", f.Column, err)
		}
		return func(i int) bool { return compareDates(col.Dates[i], want, f.Op) }, nil
	default:
		if f.Value.IsNumber {
			return nil, fmt.Errorf("column %q holds text but filter value is numeric", f.Column)
		}
		want := f.Value.Text
		return func(i int) bool { return compareStrings(col.Text[i], want, f.Op) }, nil
	}
}

func compareFloats(a, b float64, op CompareOp) bool {
	switch op {
	case OpEq:
		return a == b
	case OpNe:
		return a != b
	case OpGt:
		return a > b
	case OpGe:
		return a >= b
	case OpLt:
		return a < b
	default:
		return a <= b
	}
}

func compareStrings(a, b string, op CompareOp) bool {
	switch op {
	case OpEq:
		return a == b
	case OpNe:
		return a != b
	case OpGt:
		return a > b
	case OpGe:
		return a >= b
	case OpLt:
		return a < b
	default:
		return a <= b
	}
}

func compareDates(a, b time.Time, op CompareOp) bool {
	switch op {
	case OpEq:
		return a.Equal(b)
	case OpNe:
		return !a.Equal(b)
	case OpGt:
		return a.After(b)
	case OpGe:
		return !a.Before(b)
	case OpLt:
		return a.Before(b)
	default:
		return !a.After(b)
	}
}

func parseDateLiteral(s string) (time.Time, error) {
	for _, layout := range dateLiteralLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse %q as a date", s)
}

// evalGroupBy produces a two-column table: the group key column (original
// type preserved) and one aggregate column. Rows with a missing group key are
// dropped. Groups come out sorted by key, ascending.
func evalGroupBy(g *GroupByStage, t *table.Table) (*table.Table, error) {
	keyCol := t.Column(g.Column)
	if keyCol == nil {
		return nil, fmt.Errorf("unknown column %q in groupby", g.Column)
	}

	groups := make(map[string][]int)
	var order []string
	for i := 0; i < t.NumRows(); i++ {
		if keyCol.IsNull(i) {
			continue
		}
		key := keyCol.CellString(i)
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], i)
	}
	sort.Slice(order, func(a, b int) bool {
		ra, rb := groups[order[a]][0], groups[order[b]][0]
		switch keyCol.Type {
		case table.TypeNumber:
			return keyCol.Numbers[ra] < keyCol.Numbers[rb]
		case table.TypeDate:
			return keyCol.Dates[ra].Before(keyCol.Dates[rb])
		default:
			return keyCol.Text[ra] < keyCol.Text[rb]
		}
	})

	aggCol := table.Column{Name: g.Agg.OutputName(), Type: table.TypeNumber}
	outKey := table.Column{Name: keyCol.Name, Type: keyCol.Type}

	for _, key := range order {
		rows := groups[key]
		val, err := evalAggregate(g.Agg, t, rows)
		if err != nil {
			return nil, err
		}

		first := rows[0]
		switch keyCol.Type {
		case table.TypeNumber:
			outKey.Numbers = append(outKey.Numbers, keyCol.Numbers[first])
		case table.TypeDate:
			outKey.Dates = append(outKey.Dates, keyCol.Dates[first])
		default:
			outKey.Text = append(outKey.Text, keyCol.Text[first])
		}
		outKey.Nulls = append(outKey.Nulls, false)

		num, null := toFloat(val)
		aggCol.Numbers = append(aggCol.Numbers, num)
		aggCol.Nulls = append(aggCol.Nulls, null)
	}

	return &table.Table{Columns: []table.Column{outKey, aggCol}}, nil
}

// evalAggregate computes an aggregate over the given row subset.
func evalAggregate(a Aggregate, t *table.Table, rows []int) (any, error) {
	if a.Fn == "count" && a.Column == "" {
		return len(rows), nil
	}

	col := t.Column(a.Column)
	if col == nil {
		return nil, fmt.Errorf("unknown column %q in %s", a.Column, a.Fn)
	}

	switch a.Fn {
	case "count":
		n := 0
		for _, i := range rows {
			if !col.IsNull(i) {
				n++
			}
		}
		return n, nil
	case "nunique":
		seen := make(map[string]struct{})
		for _, i := range rows {
			if !col.IsNull(i) {
				seen[col.CellString(i)] = struct{}{}
			}
		}
		return len(seen), nil
	}

	if col.Type != table.TypeNumber {
		return nil, fmt.Errorf("%s requires a numeric column, %q is %s", a.Fn, a.Column, col.Type)
	}
	var values []float64
	for _, i := range rows {
		if !col.IsNull(i) {
			values = append(values, col.Numbers[i])
		}
	}
	if len(values) == 0 {
		return nil, nil
	}

	switch a.Fn {
	case "mean":
		return table.Mean(values), nil
	case "sum":
		sum := 0.0
		for _, v := range values {
			sum += v
		}
		return sum, nil
	case "min":
		m := values[0]
		for _, v := range values[1:] {
			if v < m {
				m = v
			}
		}
		return m, nil
	case "max":
		m := values[0]
		for _, v := range values[1:] {
			if v > m {
				m = v
			}
		}
		return m, nil
	case "median":
		sorted := append([]float64(nil), values...)
		sort.Float64s(sorted)
		return table.Quantile(sorted, 0.5), nil
	case "std":
		return table.Std(values), nil
	default:
		return nil, fmt.Errorf("unknown aggregate %q", a.Fn)
	}
}

func toFloat(val any) (float64, bool) {
	switch v := val.(type) {
	case float64:
		return v, false
	case int:
		return float64(v), false
	default:
		return 0, true
	}
}

func evalSort(s *SortStage, t *table.Table) (*table.Table, error) {
	col := t.Column(s.Column)
	if col == nil {
		return nil, fmt.Errorf("unknown column %q in sort", s.Column)
	}

	idx := allRows(t)
	less := func(a, b int) bool {
		// a and b are positions in idx, not row numbers.
		ra, rb := idx[a], idx[b]
		// Missing cells sort last regardless of direction.
		if col.IsNull(ra) != col.IsNull(rb) {
			return !col.IsNull(ra)
		}
		if col.IsNull(ra) {
			return false
		}
		var before bool
		switch col.Type {
		case table.TypeNumber:
			before = col.Numbers[ra] < col.Numbers[rb]
		case table.TypeDate:
			before = col.Dates[ra].Before(col.Dates[rb])
		default:
			before = col.Text[ra] < col.Text[rb]
		}
		if s.Desc {
			return !before && !cellEqual(col, ra, rb)
		}
		return before
	}
	sort.SliceStable(idx, less)
	return t.SelectRows(idx), nil
}

func cellEqual(c *table.Column, a, b int) bool {
	switch c.Type {
	case table.TypeNumber:
		return c.Numbers[a] == c.Numbers[b]
	case table.TypeDate:
		return c.Dates[a].Equal(c.Dates[b])
	default:
		return c.Text[a] == c.Text[b]
	}
}

func evalHead(n int, t *table.Table) *table.Table {
	if n >= t.NumRows() {
		return t
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return t.SelectRows(idx)
}
