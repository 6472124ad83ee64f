package metrics

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

var kindLabels = map[string]string{
	KindTimeout:           "Request timed out",
	KindConnectionRefused: "Connection refused",
	KindDNS:               "DNS lookup failed",
	KindCanceled:          "Request canceled",
	KindTemplate:          "Template resolution failed",
	KindTransport:         "Transport error",
}

// FriendlyErrorName returns a display label for an error kind. Kinds without
// a fixed label are shown in sentence case with separators replaced by spaces.
func FriendlyErrorName(kind string) string {
	kind = strings.TrimSpace(kind)
	if label, ok := kindLabels[kind]; ok {
		return label
	}
	words := strings.FieldsFunc(strings.ToLower(kind), func(r rune) bool {
		return r == '_' || r == '-' || unicode.IsSpace(r)
	})
	if len(words) == 0 {
		return "Unknown error"
	}
	first, size := utf8.DecodeRuneInString(words[0])
	words[0] = string(unicode.ToUpper(first)) + words[0][size:]
	return strings.Join(words, " ")
}
