package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRender(t *testing.T) {
	context := map[string]any{
		"name":  "Ada",
		"score": 42.0,
		"vip":   true,
		"deal": map[string]any{
			"stage": "won",
		},
	}

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain text untouched", "hello world", "hello world"},
		{"single variable", "hello {{name}}", "hello Ada"},
		{"multiple variables", "{{name}} scored {{score}}", "Ada scored 42"},
		{"whitespace inside braces", "hi {{ name }}", "hi Ada"},
		{"dotted path", "stage: {{deal.stage}}", "stage: won"},
		{"boolean value", "vip={{vip}}", "vip=true"},
		{"unresolved renders empty", "hi {{missing}}!", "hi !"},
		{"unresolved dotted path", "{{deal.amount}}", ""},
		{"mixed resolved and unresolved", "{{name}}-{{missing}}-{{score}}", "Ada--42"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Render(tt.input, context))
		})
	}
}

func TestRender_NilContext(t *testing.T) {
	assert.Equal(t, "hi ", Render("hi {{name}}", nil))
}

func TestRenderPayload(t *testing.T) {
	context := map[string]any{"first_name": "Ada", "company": "Omni"}

	payload := map[string]string{
		"subject": "Welcome {{first_name}}",
		"body":    "Thanks for trying {{company}}, {{first_name}}. {{signature}}",
	}

	rendered := RenderPayload(payload, context)

	assert.Equal(t, "Welcome Ada", rendered["subject"])
	assert.Equal(t, "Thanks for trying Omni, Ada. ", rendered["body"])
}
