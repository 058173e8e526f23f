package db

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Slugify 将标题转换为 URL 安全的小写连字符形式。结果对同一输入稳定，且 Slugify(Slugify(x)) == Slugify(x)。
func Slugify(input string) string {
	stripped, _, err := transform.String(
		transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC),
		input,
	)
	if err != nil {
		stripped = input
	}

	var builder strings.Builder
	builder.Grow(len(stripped))
	pendingDash := false
	for _, r := range strings.ToLower(stripped) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingDash && builder.Len() > 0 {
				builder.WriteByte('-')
			}
			builder.WriteRune(r)
			pendingDash = false
			continue
		}
		pendingDash = true
	}
	return builder.String()
}
