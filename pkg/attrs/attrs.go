// Package attrs reads values back out of slog-style key/value lists.
package attrs

import "fmt"

// ExtractString returns the value stored under key in a list laid out as
// [key1, value1, key2, value2, ...]. Strings and fmt.Stringer values are
// returned as text; a missing key or any other value type yields "".
func ExtractString(attrs []any, key string) string {
	for i := 0; i+1 < len(attrs); i += 2 {
		k, ok := attrs[i].(string)
		if !ok || k != key {
			continue
		}
		switch v := attrs[i+1].(type) {
		case string:
			return v
		case fmt.Stringer:
			return v.String()
		}
	}
	return ""
}
