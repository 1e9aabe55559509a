package analyst

import (
	"strings"
	"testing"

	"datachat-backend/internal/table"
)

func TestStripCodeFences(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"result = mean(salary)", "result = mean(salary)"},
		{"```\nresult = mean(salary)\n```", "result = mean(salary)"},
		{"```python\nresult = mean(salary)\n```", "result = mean(salary)"},
		{"  ```sql\nresult = count()\n```  ", "result = count()"},
	}
	for _, tc := range cases {
		if got := stripCodeFences(tc.in); got != tc.want {
			t.Fatalf("stripCodeFences(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestBuildPromptListsSchemaAndQuestion(t *testing.T) {
	tbl := &table.Table{Columns: []table.Column{
		{Name: "dept", Type: table.TypeText},
		{Name: "salary", Type: table.TypeNumber},
		{Name: "hired", Type: table.TypeDate},
	}}

	prompt := buildPrompt(tbl, "who earns the most?")
	for _, want := range []string{"- dept (text)", "- salary (number)", "- hired (date)", "who earns the most?", "result ="} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt)
		}
	}
}
