// Package markdown renders summaries for Telegram's MarkdownV2 dialect.
package markdown

import "strings"

// Taken from https://core.telegram.org/bots/api#markdownv2-style.
const mdV2SpecialChars = `_*[]()~>#+-=|{}.!\` + "`"

//nolint:gochecknoglobals // Lookup table meant to be immutable.
var mdV2Lookup = func() [256]bool {
	var m [256]bool
	for _, c := range []byte(mdV2SpecialChars) {
		m[c] = true
	}
	return m
}()

func EscapeV2(input string) string {
	return escapeWith(input, &mdV2Lookup)
}

func escapeWith(input string, lookup *[256]bool) string {
	charsToEscape := 0

	for i := range len(input) {
		if lookup[input[i]] {
			charsToEscape++
		}
	}
	if charsToEscape == 0 {
		return input
	}

	var b strings.Builder
	b.Grow(len(input) + charsToEscape)

	for i := range len(input) {
		c := input[i]
		if lookup[c] {
			b.WriteByte('\\')
		}
		b.WriteByte(c)
	}

	return b.String()
}

//nolint:gochecknoglobals // Lookup table meant to be immutable.
var codeLookup = func() [256]bool {
	var m [256]bool
	m['`'] = true
	m['\\'] = true
	return m
}()

// escapeCode escapes text inside a code span, where only ` and \ are special.
func escapeCode(input string) string {
	return escapeWith(input, &codeLookup)
}

func Bold(text string) string {
	return "*" + EscapeV2(text) + "*"
}

// Link renders an inline link. Inside the URL only ) and \ are escaped.
func Link(text, url string) string {
	url = strings.NewReplacer(`\`, `\\`, `)`, `\)`).Replace(url)
	return "[" + EscapeV2(text) + "](" + url + ")"
}
