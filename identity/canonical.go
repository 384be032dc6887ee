package identity

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// canonicalize renders a value tree into a deterministic string form.
// Map keys are emitted sorted; list elements are rendered first and then
// sorted, so element order never affects the result.
func canonicalize(v any) string {
	var b strings.Builder
	writeCanonical(&b, v)
	return b.String()
}

func writeCanonical(b *strings.Builder, v any) {
	switch x := v.(type) {
	case nil:
		b.WriteString("null")
	case string:
		b.WriteString(strconv.Quote(x))
	case bool:
		b.WriteString(strconv.FormatBool(x))
	case int:
		b.WriteString(strconv.Itoa(x))
	case int64:
		b.WriteString(strconv.FormatInt(x, 10))
	case float64:
		b.WriteString(strconv.FormatFloat(x, 'g', -1, 64))
	case *int:
		if x == nil {
			b.WriteString("null")
		} else {
			b.WriteString(strconv.Itoa(*x))
		}
	case *int64:
		if x == nil {
			b.WriteString("null")
		} else {
			b.WriteString(strconv.FormatInt(*x, 10))
		}
	case *float64:
		if x == nil {
			b.WriteString("null")
		} else {
			b.WriteString(strconv.FormatFloat(*x, 'g', -1, 64))
		}
	case []string:
		rendered := make([]string, len(x))
		for i, s := range x {
			rendered[i] = strconv.Quote(s)
		}
		sort.Strings(rendered)
		b.WriteByte('[')
		b.WriteString(strings.Join(rendered, ","))
		b.WriteByte(']')
	case []any:
		rendered := make([]string, len(x))
		for i, e := range x {
			var eb strings.Builder
			writeCanonical(&eb, e)
			rendered[i] = eb.String()
		}
		sort.Strings(rendered)
		b.WriteByte('[')
		b.WriteString(strings.Join(rendered, ","))
		b.WriteByte(']')
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(strconv.Quote(k))
			b.WriteByte(':')
			writeCanonical(b, x[k])
		}
		b.WriteByte('}')
	default:
		// Unreachable for the pick trees this package builds.
		fmt.Fprintf(b, "%v", x)
	}
}
