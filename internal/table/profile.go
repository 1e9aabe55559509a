package table

import (
	"math"
	"sort"
	"time"
)

// Summary describes table-level statistics.
type Summary struct {
	TotalRows     int `json:"total_rows"`
	TotalColumns  int `json:"total_columns"`
	MemoryUsage   int `json:"memory_usage"`
	DuplicateRows int `json:"duplicate_rows"`
}

// Profile is the full profiling payload for a cleaned table. Column details
// are generic maps because the numeric fields differ by column kind and the
// payload crosses a JSON boundary into the job result.
type Profile struct {
	Summary       Summary                   `json:"summary"`
	Columns       map[string]map[string]any `json:"columns"`
	MissingValues map[string]int            `json:"missing_values"`
}

const topValueCount = 5

// BuildProfile computes the profile of a cleaned table. duplicateRows is the
// count removed during cleaning, reported in the summary.
func BuildProfile(t *Table, duplicateRows int) Profile {
	rows := t.NumRows()
	profile := Profile{
		Summary: Summary{
			TotalRows:     rows,
			TotalColumns:  t.NumCols(),
			MemoryUsage:   memoryEstimate(t),
			DuplicateRows: duplicateRows,
		},
		Columns:       make(map[string]map[string]any, t.NumCols()),
		MissingValues: make(map[string]int, t.NumCols()),
	}

	for i := range t.Columns {
		col := &t.Columns[i]
		info := profileColumn(col, rows)
		profile.Columns[col.Name] = info
		profile.MissingValues[col.Name] = info["missing"].(int)
	}
	return profile
}

func profileColumn(c *Column, rows int) map[string]any {
	missing := 0
	for _, null := range c.Nulls {
		if null {
			missing++
		}
	}

	pct := 0.0
	if rows > 0 {
		pct = round2(float64(missing) / float64(rows) * 100)
	}

	info := map[string]any{
		"dtype":              string(c.Type),
		"total":              rows,
		"missing":            missing,
		"missing_percentage": pct,
		"unique":             distinctCount(c),
	}

	switch c.Type {
	case TypeNumber:
		addNumericStats(info, c)
	case TypeDate:
		addDateStats(info, c)
	default:
		info["top_values"] = topValues(c)
	}
	return info
}

func addNumericStats(info map[string]any, c *Column) {
	values := make([]float64, 0, len(c.Numbers))
	for i, v := range c.Numbers {
		if !c.Nulls[i] {
			values = append(values, v)
		}
	}
	if len(values) == 0 {
		info["mean"] = nil
		info["std"] = nil
		info["min"] = nil
		info["max"] = nil
		info["percentiles"] = map[string]any{"25": nil, "50": nil, "75": nil}
		return
	}

	sort.Float64s(values)
	info["mean"] = Mean(values)
	info["std"] = Std(values)
	info["min"] = values[0]
	info["max"] = values[len(values)-1]
	info["percentiles"] = map[string]any{
		"25": Quantile(values, 0.25),
		"50": Quantile(values, 0.50),
		"75": Quantile(values, 0.75),
	}
}

func addDateStats(info map[string]any, c *Column) {
	var minDate, maxDate time.Time
	found := false
	for i, v := range c.Dates {
		if c.Nulls[i] {
			continue
		}
		if !found || v.Before(minDate) {
			minDate = v
		}
		if !found || v.After(maxDate) {
			maxDate = v
		}
		found = true
	}
	if !found {
		info["min_date"] = nil
		info["max_date"] = nil
		return
	}
	info["min_date"] = minDate.UTC().Format(time.RFC3339)
	info["max_date"] = maxDate.UTC().Format(time.RFC3339)
}

func topValues(c *Column) map[string]int {
	counts := make(map[string]int)
	for i, v := range c.Text {
		if !c.Nulls[i] {
			counts[v]++
		}
	}

	type pair struct {
		value string
		count int
	}
	pairs := make([]pair, 0, len(counts))
	for v, n := range counts {
		pairs = append(pairs, pair{v, n})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].count != pairs[j].count {
			return pairs[i].count > pairs[j].count
		}
		return pairs[i].value < pairs[j].value
	})

	top := make(map[string]int, topValueCount)
	for i, p := range pairs {
		if i >= topValueCount {
			break
		}
		top[p.value] = p.count
	}
	return top
}

func distinctCount(c *Column) int {
	seen := make(map[string]struct{})
	for i := range c.Nulls {
		if c.Nulls[i] {
			continue
		}
		seen[c.CellString(i)] = struct{}{}
	}
	return len(seen)
}

func memoryEstimate(t *Table) int {
	total := 0
	for i := range t.Columns {
		col := &t.Columns[i]
		switch col.Type {
		case TypeNumber, TypeDate:
			total += 8 * len(col.Nulls)
		default:
			for _, v := range col.Text {
				total += len(v) + 16
			}
		}
		total += len(col.Nulls)
	}
	return total
}

// Mean returns the arithmetic mean of values. Caller guarantees non-empty.
func Mean(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Std returns the sample standard deviation (n-1 denominator), matching the
// convention of mainstream dataframe libraries. Returns 0 for fewer than two
// values.
func Std(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean := Mean(values)
	sum := 0.0
	for _, v := range values {
		d := v - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)-1))
}

// Quantile returns the q-quantile of sorted values using linear
// interpolation. Caller guarantees values is sorted and non-empty.
func Quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q * float64(len(sorted)-1)
	lower := int(math.Floor(pos))
	frac := pos - float64(lower)
	if lower+1 >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	return sorted[lower] + frac*(sorted[lower+1]-sorted[lower])
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
