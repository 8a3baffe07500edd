// Package template provides payload interpolation for action nodes.
//
// Placeholders use the {{variable}} form and resolve against the execution
// context, with dotted paths into nested maps. An unresolved placeholder
// renders as the empty string rather than failing the action; the workflow
// editor cannot guarantee every referenced variable exists by send time.
package template

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/omniflowhq/omniflow/pkg/models"
)

var placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.\-]+)\s*\}\}`)

// Render substitutes every {{variable}} placeholder in input with its context
// value. Missing variables substitute as "".
func Render(input string, context map[string]any) string {
	if !strings.Contains(input, "{{") {
		return input
	}

	return placeholderPattern.ReplaceAllStringFunc(input, func(match string) string {
		name := placeholderPattern.FindStringSubmatch(match)[1]

		value, ok := models.LookupField(context, name)
		if !ok || value == nil {
			return ""
		}

		return formatValue(value)
	})
}

// RenderPayload renders every value of an action payload template against the
// context, returning a new map.
func RenderPayload(payload map[string]string, context map[string]any) map[string]string {
	rendered := make(map[string]string, len(payload))
	for key, value := range payload {
		rendered[key] = Render(value, context)
	}

	return rendered
}

// formatValue keeps numbers readable: JSON decoding hands every number over
// as float64, and "42" reads better than "42.000000" inside a message.
func formatValue(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
