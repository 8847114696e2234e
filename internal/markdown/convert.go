package markdown

import (
	"regexp"
	"strings"
)

var (
	headingRe = regexp.MustCompile(`^#{1,6}\s+(.+?)\s*#*$`)
	inlineRe  = regexp.MustCompile(`\*\*(.+?)\*\*|__(.+?)__|` + "`([^`]+)`")
	bulletRe  = regexp.MustCompile(`^[-*+]\s+`)
)

// FromCommonMark converts the markdown a model writes into MarkdownV2.
// Headings and bold become bold, bullets become "•", inline code is kept
// and everything else is escaped.
func FromCommonMark(md string) string {
	lines := strings.Split(strings.ReplaceAll(md, "\r\n", "\n"), "\n")

	inFence := false
	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			inFence = !inFence
			lines[i] = "```"
			continue
		}
		if inFence {
			lines[i] = escapeCode(line)
			continue
		}
		lines[i] = convertLine(line)
	}

	if inFence {
		lines = append(lines, "```")
	}

	return strings.Join(lines, "\n")
}

func convertLine(line string) string {
	trimmed := strings.TrimLeft(line, " \t")
	indent := line[:len(line)-len(trimmed)]

	if m := headingRe.FindStringSubmatch(trimmed); m != nil {
		return Bold(strings.ReplaceAll(m[1], "**", ""))
	}

	if loc := bulletRe.FindStringIndex(trimmed); loc != nil {
		return indent + "• " + inline(trimmed[loc[1]:])
	}

	return inline(line)
}

func inline(s string) string {
	matches := inlineRe.FindAllStringSubmatchIndex(s, -1)
	if matches == nil {
		return EscapeV2(s)
	}

	var b strings.Builder
	last := 0

	for _, m := range matches {
		b.WriteString(EscapeV2(s[last:m[0]]))

		switch {
		case m[2] >= 0:
			b.WriteString(Bold(s[m[2]:m[3]]))
		case m[4] >= 0:
			b.WriteString(Bold(s[m[4]:m[5]]))
		default:
			b.WriteString("`" + escapeCode(s[m[6]:m[7]]) + "`")
		}

		last = m[1]
	}

	b.WriteString(EscapeV2(s[last:]))

	return b.String()
}
