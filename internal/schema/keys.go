package schema

import (
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Separator joins the path segments of a flattened column name.
const Separator = "__"

// MaxKeyLength is the length (in characters) below which a flattened key is
// kept as is.
const MaxKeyLength = 255

// JoinKey builds the flattened column name for a nested path. Keys that reach
// MaxKeyLength are shortened segment by segment, left to right: a segment is
// reduced to the lowercased capitals of its camel-cased form, or to its first
// three characters when that leaves a single character or less.
func JoinKey(path []string) string {
	key := strings.Join(path, Separator)
	if utf8.RuneCountInString(key) < MaxKeyLength {
		return key
	}

	reduced := slices.Clone(path)
	for i := range reduced {
		if utf8.RuneCountInString(strings.Join(reduced, Separator)) < MaxKeyLength {
			break
		}
		short := stripLower(camelize(reduced[i]))
		if utf8.RuneCountInString(short) > 1 {
			reduced[i] = strings.ToLower(short)
		} else {
			reduced[i] = strings.ToLower(firstRunes(reduced[i], 3))
		}
	}
	return strings.Join(reduced, Separator)
}

// camelize upper-cases the first character and every character following an
// underscore, dropping that underscore: "order_line_item" -> "OrderLineItem".
func camelize(s string) string {
	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(runes); i++ {
		switch {
		case i == 0:
			b.WriteRune(unicode.ToUpper(runes[i]))
		case runes[i] == '_' && i+1 < len(runes):
			b.WriteRune(unicode.ToUpper(runes[i+1]))
			i++
		default:
			b.WriteRune(runes[i])
		}
	}
	return b.String()
}

func stripLower(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' {
			return -1
		}
		return r
	}, s)
}

func firstRunes(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
