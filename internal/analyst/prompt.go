package analyst

import (
	"fmt"
	"strings"

	"datachat-backend/internal/table"
)

const promptTemplate = `You are a data analyst. You answer questions about a table by writing a single
query in the restricted language described below. Reply with the query only,
no explanation.

The table has these columns:
%s

Language rules:
- The final statement must assign to result, e.g. result = mean(salary)
- Scalar aggregates over the whole table: mean(col), sum(col), min(col),
  max(col), median(col), std(col), nunique(col), count()
- Or a pipeline of stages separated by |:
    filter(col op value)   op is one of == != > >= < <= ; quote strings and
                           dates, e.g. filter(region == 'north'),
                           filter(hired >= '2021-01-01')
    select(colA, colB)     keep only the named columns
    groupby(col, agg(col)) one aggregate per group, e.g. groupby(dept, mean(salary));
                           the aggregate column is named agg_col, e.g. mean_salary
    sort(col)              ascending; sort(col, desc) for descending
    head(n)                first n rows
- Example: result = filter(salary >= 1000) | groupby(dept, mean(salary)) | sort(mean_salary, desc) | head(5)

Question: %s
`

// buildPrompt renders the code-generation prompt from the table schema and
// the user question.
func buildPrompt(t *table.Table, question string) string {
	var schema strings.Builder
	for _, col := range t.Columns {
		fmt.Fprintf(&schema, "- %s (%s)\n", col.Name, col.Type)
	}
	return fmt.Sprintf(promptTemplate, schema.String(), question)
}

// stripCodeFences removes a surrounding markdown code fence, if any.
func stripCodeFences(code string) string {
	code = strings.TrimSpace(code)
	if !strings.HasPrefix(code, "```") {
		return code
	}
	code = strings.TrimPrefix(code, "```")
	if nl := strings.IndexByte(code, '\n'); nl >= 0 {
		first := strings.TrimSpace(code[:nl])
		if first == "" || isLanguageTag(first) {
			code = code[nl+1:]
		}
	}
	code = strings.TrimSuffix(strings.TrimSpace(code), "```")
	return strings.TrimSpace(code)
}

func isLanguageTag(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}
