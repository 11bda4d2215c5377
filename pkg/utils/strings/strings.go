package strings

import (
	"strings"
)

// supply suffix if text has not.
//
// args:
//   - text: target text
//   - suffix: suffix
//
// return:
//
//	text same as input when that has suffix.
//	otherwise, text + suffix.
func SupplySuffix(text, suffix string) string {
	if strings.HasSuffix(text, suffix) {
		return text
	}
	return text + suffix
}

// like strings.Split(s, sep), but return empty slice when s == ""
func SplitIfNotEmpty(s string, sep string) []string {
	if s == "" {
		return []string{}
	}
	return strings.Split(s, sep)
}

// SplitTrimmed splits s by sep, trims spaces of each item and drops empty items.
//
// example:
//
//	SplitTrimmed(" a, b ,,c ", ",")  // -> []string{"a", "b", "c"}
func SplitTrimmed(s string, sep string) []string {
	ret := []string{}
	for _, item := range strings.Split(s, sep) {
		if item = strings.TrimSpace(item); item != "" {
			ret = append(ret, item)
		}
	}
	return ret
}
