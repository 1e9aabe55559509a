// Package query implements the restricted analysis language the LLM is asked
// to emit. A query assigns a pipeline to result:
//
//	result = filter(salary >= 1000) | groupby(dept, mean(salary)) | sort(mean_salary, desc) | head(5)
//
// or a scalar aggregate over the whole table:
//
//	result = mean(salary)
//
// The language is deliberately not general-purpose: every operation is an
// enumerable stage over named columns, so model output can be executed
// without evaluating arbitrary code.
package query

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// ErrNoResult indicates the code never assigns the result variable.
var ErrNoResult = errors.New("no result produced: the final statement must assign result")

// Aggregate names accepted both as scalar queries and inside groupby.
var aggregateFns = map[string]bool{
	"mean":    true,
	"sum":     true,
	"min":     true,
	"max":     true,
	"median":  true,
	"std":     true,
	"nunique": true,
	"count":   true,
}

// CompareOp is a filter comparison operator.
type CompareOp string

const (
	OpEq CompareOp = "=="
	OpNe CompareOp = "!="
	OpGt CompareOp = ">"
	OpGe CompareOp = ">="
	OpLt CompareOp = "<"
	OpLe CompareOp = "<="
)

// Literal is a filter comparison operand.
type Literal struct {
	IsNumber bool
	Number   float64
	Text     string
}

// Aggregate is a column aggregation, e.g. mean(salary) or count().
type Aggregate struct {
	Fn     string
	Column string
}

// OutputName returns the column name an aggregate produces in groupby output.
func (a Aggregate) OutputName() string {
	if a.Column == "" {
		return a.Fn
	}
	return a.Fn + "_" + a.Column
}

// Stage is one pipeline step.
type Stage struct {
	Filter  *FilterStage
	Select  *SelectStage
	GroupBy *GroupByStage
	Sort    *SortStage
	Head    *HeadStage
}

type FilterStage struct {
	Column string
	Op     CompareOp
	Value  Literal
}

type SelectStage struct {
	Columns []string
}

type GroupByStage struct {
	Column string
	Agg    Aggregate
}

type SortStage struct {
	Column string
	Desc   bool
}

type HeadStage struct {
	N int
}

// Query is a parsed result assignment: either a whole-table scalar aggregate
// or a stage pipeline.
type Query struct {
	Scalar *Aggregate
	Stages []Stage
}

// Parse parses generated code. The code may contain multiple newline-separated
// statements; only the final one is evaluated and it must assign result.
func Parse(code string) (*Query, error) {
	stmt := finalStatement(code)
	if stmt == "" {
		return nil, ErrNoResult
	}

	rest, ok := strings.CutPrefix(stmt, "result")
	if !ok {
		return nil, ErrNoResult
	}
	rest = strings.TrimSpace(rest)
	rest, ok = strings.CutPrefix(rest, "=")
	if !ok || strings.HasPrefix(rest, "=") {
		return nil, ErrNoResult
	}

	return parsePipeline(strings.TrimSpace(rest))
}

// finalStatement returns the last non-empty, non-comment line.
func finalStatement(code string) string {
	lines := strings.Split(code, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "//") {
			continue
		}
		return line
	}
	return ""
}

func parsePipeline(src string) (*Query, error) {
	parts, err := splitPipeline(src)
	if err != nil {
		return nil, err
	}

	q := &Query{}
	for _, part := range parts {
		fn, args, err := parseCall(part)
		if err != nil {
			return nil, err
		}

		if aggregateFns[fn] {
			if len(parts) > 1 {
				return nil, fmt.Errorf("aggregate %s cannot be part of a pipeline; use groupby(col, %s(col)) instead", fn, fn)
			}
			agg, err := buildAggregate(fn, args)
			if err != nil {
				return nil, err
			}
			q.Scalar = &agg
			return q, nil
		}

		stage, err := buildStage(fn, args)
		if err != nil {
			return nil, err
		}
		q.Stages = append(q.Stages, stage)
	}

	if len(q.Stages) == 0 {
		return nil, fmt.Errorf("empty query")
	}
	return q, nil
}

// splitPipeline splits on | outside of quotes and parentheses.
func splitPipeline(src string) ([]string, error) {
	var parts []string
	depth := 0
	var quote rune
	start := 0
	for i, r := range src {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"':
			quote = r
		case r == '(':
			depth++
		case r == ')':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("unbalanced parentheses")
			}
		case r == '|' && depth == 0:
			parts = append(parts, strings.TrimSpace(src[start:i]))
			start = i + 1
		}
	}
	if depth != 0 || quote != 0 {
		return nil, fmt.Errorf("unterminated expression")
	}
	parts = append(parts, strings.TrimSpace(src[start:]))
	for _, p := range parts {
		if p == "" {
			return nil, fmt.Errorf("empty pipeline stage")
		}
	}
	return parts, nil
}

// parseCall splits "fn(args)" into the function name and raw argument string.
func parseCall(src string) (string, string, error) {
	open := strings.IndexByte(src, '(')
	if open < 0 || !strings.HasSuffix(src, ")") {
		return "", "", fmt.Errorf("expected a call like fn(...), got %q", src)
	}
	fn := strings.TrimSpace(src[:open])
	if !isIdent(fn) {
		return "", "", fmt.Errorf("invalid function name %q", fn)
	}
	args := strings.TrimSpace(src[open+1 : len(src)-1])
	return strings.ToLower(fn), args, nil
}

func buildAggregate(fn, args string) (Aggregate, error) {
	if fn == "count" {
		if args != "" && !isIdent(args) {
			return Aggregate{}, fmt.Errorf("count takes no argument or a column name, got %q", args)
		}
		return Aggregate{Fn: fn, Column: args}, nil
	}
	if !isIdent(args) {
		return Aggregate{}, fmt.Errorf("%s expects a single column name, got %q", fn, args)
	}
	return Aggregate{Fn: fn, Column: args}, nil
}

func buildStage(fn, args string) (Stage, error) {
	switch fn {
	case "filter":
		f, err := parseFilter(args)
		if err != nil {
			return Stage{}, err
		}
		return Stage{Filter: f}, nil
	case "select":
		cols, err := splitArgs(args)
		if err != nil || len(cols) == 0 {
			return Stage{}, fmt.Errorf("select expects column names, got %q", args)
		}
		for _, col := range cols {
			if !isIdent(col) {
				return Stage{}, fmt.Errorf("invalid column name %q in select", col)
			}
		}
		return Stage{Select: &SelectStage{Columns: cols}}, nil
	case "groupby":
		return parseGroupBy(args)
	case "sort":
		return parseSort(args)
	case "head":
		n, err := strconv.Atoi(args)
		if err != nil || n < 0 {
			return Stage{}, fmt.Errorf("head expects a non-negative integer, got %q", args)
		}
		return Stage{Head: &HeadStage{N: n}}, nil
	default:
		return Stage{}, fmt.Errorf("unknown operation %q", fn)
	}
}

func parseFilter(args string) (*FilterStage, error) {
	for _, op := range []CompareOp{OpGe, OpLe, OpEq, OpNe, OpGt, OpLt} {
		idx := strings.Index(args, string(op))
		if idx < 0 {
			continue
		}
		col := strings.TrimSpace(args[:idx])
		rawVal := strings.TrimSpace(args[idx+len(op):])
		if !isIdent(col) {
			return nil, fmt.Errorf("invalid column name %q in filter", col)
		}
		lit, err := parseLiteral(rawVal)
		if err != nil {
			return nil, err
		}
		return &FilterStage{Column: col, Op: op, Value: lit}, nil
	}
	return nil, fmt.Errorf("filter expects col <op> value, got %q", args)
}

func parseGroupBy(args string) (Stage, error) {
	comma := strings.IndexByte(args, ',')
	if comma < 0 {
		return Stage{}, fmt.Errorf("groupby expects groupby(col, agg(col)), got %q", args)
	}
	col := strings.TrimSpace(args[:comma])
	if !isIdent(col) {
		return Stage{}, fmt.Errorf("invalid column name %q in groupby", col)
	}
	fn, aggArgs, err := parseCall(strings.TrimSpace(args[comma+1:]))
	if err != nil {
		return Stage{}, fmt.Errorf("groupby aggregate: %w", err)
	}
	if !aggregateFns[fn] {
		return Stage{}, fmt.Errorf("unknown aggregate %q in groupby", fn)
	}
	agg, err := buildAggregate(fn, aggArgs)
	if err != nil {
		return Stage{}, err
	}
	return Stage{GroupBy: &GroupByStage{Column: col, Agg: agg}}, nil
}

func parseSort(args string) (Stage, error) {
	parts, err := splitArgs(args)
	if err != nil || len(parts) == 0 || len(parts) > 2 {
		return Stage{}, fmt.Errorf("sort expects sort(col) or sort(col, desc), got %q", args)
	}
	if !isIdent(parts[0]) {
		return Stage{}, fmt.Errorf("invalid column name %q in sort", parts[0])
	}
	desc := false
	if len(parts) == 2 {
		switch strings.ToLower(parts[1]) {
		case "desc":
			desc = true
		case "asc":
		default:
			return Stage{}, fmt.Errorf("sort direction must be asc or desc, got %q", parts[1])
		}
	}
	return Stage{Sort: &SortStage{Column: parts[0], Desc: desc}}, nil
}

func parseLiteral(src string) (Literal, error) {
	if src == "" {
		return Literal{}, fmt.Errorf("missing filter value")
	}
	if len(src) >= 2 {
		if (src[0] == '\'' && src[len(src)-1] == '\'') || (src[0] == '"' && src[len(src)-1] == '"') {
			return Literal{Text: src[1 : len(src)-1]}, nil
		}
	}
	if num, err := strconv.ParseFloat(src, 64); err == nil {
		return Literal{IsNumber: true, Number: num}, nil
	}
	return Literal{}, fmt.Errorf("invalid filter value %q: quote string and date literals", src)
}

// splitArgs splits a comma-separated argument list outside of quotes.
func splitArgs(args string) ([]string, error) {
	if strings.TrimSpace(args) == "" {
		return nil, nil
	}
	var out []string
	var quote rune
	start := 0
	for i, r := range args {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"':
			quote = r
		case r == ',':
			out = append(out, strings.TrimSpace(args[start:i]))
			start = i + 1
		}
	}
	if quote != 0 {
		return nil, fmt.Errorf("unterminated string in arguments")
	}
	out = append(out, strings.TrimSpace(args[start:]))
	return out, nil
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if unicode.IsLetter(r) || r == '_' {
			continue
		}
		if i > 0 && unicode.IsDigit(r) {
			continue
		}
		return false
	}
	return true
}
