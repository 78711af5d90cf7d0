// Package expr evaluates the data-binding expressions stored on template field
// mappings. The language has exactly two constructs: dotted property paths
// ("client.firstName") and "+" concatenation of paths and quoted literals.
// Anything else is treated as a path and resolves to nil.
package expr

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Context is the data graph an expression is evaluated against.
type Context map[string]any

// TimeLayout is the ISO-8601 form dates are rendered in.
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

// Evaluate resolves expression against data. A single path returns the
// referenced scalar unchanged (dates as ISO-8601 strings) or nil when any
// step is missing. A concatenation always returns a string, with missing
// segments rendered as "".
func Evaluate(expression string, data Context) any {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return nil
	}

	segments := split(expression)
	if len(segments) == 1 {
		return segment(segments[0], data)
	}

	var b strings.Builder
	for _, s := range segments {
		b.WriteString(Stringify(segment(s, data)))
	}
	return b.String()
}

// split breaks expression on "+" operators that are outside quoted literals.
func split(expression string) []string {
	var (
		out   []string
		quote rune
		start int
	)
	for i, r := range expression {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"':
			quote = r
		case r == '+':
			out = append(out, strings.TrimSpace(expression[start:i]))
			start = i + 1
		}
	}
	return append(out, strings.TrimSpace(expression[start:]))
}

func segment(s string, data Context) any {
	if lit, ok := literal(s); ok {
		return lit
	}
	return lookup(s, data)
}

func literal(s string) (string, bool) {
	if len(s) < 2 {
		return "", false
	}
	q := s[0]
	if (q == '\'' || q == '"') && s[len(s)-1] == q {
		return s[1 : len(s)-1], true
	}
	return "", false
}

func lookup(path string, data Context) any {
	if path == "" {
		return nil
	}
	var cur any = map[string]any(data)
	for _, part := range strings.Split(path, ".") {
		switch m := cur.(type) {
		case map[string]any:
			cur = m[part]
		case Context:
			cur = m[part]
		default:
			return nil
		}
		if cur == nil {
			return nil
		}
	}
	return scalar(cur)
}

func scalar(v any) any {
	switch t := v.(type) {
	case time.Time:
		return t.UTC().Format(TimeLayout)
	case *time.Time:
		if t == nil {
			return nil
		}
		return t.UTC().Format(TimeLayout)
	}
	return v
}

// Stringify renders a resolved value for a PDF field. nil renders as "".
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case time.Time, *time.Time:
		return Stringify(scalar(t))
	case fmt.Stringer:
		return t.String()
	}
	return fmt.Sprint(v)
}
