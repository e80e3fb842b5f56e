package generator

import (
	"context"
	"strings"
)

// MockLLM is an offline stand-in that never calls a provider. It answers
// with a Python script that prints the request.
type MockLLM struct{}

func (m MockLLM) Complete(_ context.Context, prompt Prompt) (string, error) {
	var sb strings.Builder
	sb.WriteString("```python\n")
	sb.WriteString("# Script generado sin conexión\n")
	sb.WriteString("print(")
	sb.WriteString(quotePython(prompt.User))
	sb.WriteString(")\n```\n")
	return sb.String(), nil
}

func quotePython(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "`", "'")
	return `"` + r.Replace(s) + `"`
}
