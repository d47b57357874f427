package document

import (
	"regexp"
	"strings"
	"time"
)

// TimestampLayout is the layout of log header timestamps, without the " UTC" suffix.
const TimestampLayout = "2006-01-02 15:04:05"

const (
	notVerifiedPlaceholder = "_Not yet verified_"
	notProvidedPlaceholder = "_Not yet provided_"
	logSeparator           = "---"
)

var (
	sectionHeadingRe = regexp.MustCompile(`^## (.+)$`)
	todoRe           = regexp.MustCompile(`^- \[([xX ])\] (.+)$`)

	logHeaderRe   = regexp.MustCompile(`^### → (.+) \[(.+)\]$`)
	logAuthorRe   = regexp.MustCompile(`^\*by @(.+)\*$`)
	logMessageRe  = regexp.MustCompile(`^\*\*Message\*\*: (.+)$`)
	logSubEntryRe = regexp.MustCompile(`^#### (.+)$`)

	conditionHeaderRe = regexp.MustCompile(`^### CONDITION: (.+)$`)
	verifiedRe        = regexp.MustCompile(`(?i)^- \[([x ])\] VERIFIED\s*$`)
	signedOffRe       = regexp.MustCompile(`^\*\*Signed-off by:\*\*\s*(.*)$`)
	requirementsRe    = regexp.MustCompile(`^\*\*Requirements:\*\*\s*(.*)$`)
	evidenceRe        = regexp.MustCompile(`^\*\*Evidence:\*\*\s*(.*)$`)
	anyHeadingRe      = regexp.MustCompile(`^#{1,6} `)
)

// clean strips the carriage return left by CRLF bodies. Raw lines keep it.
func clean(line string) string {
	return strings.TrimSuffix(line, "\r")
}

func splitLines(raw string) []string {
	return strings.Split(raw, "\n")
}

// headingTitle returns the title of a "## " heading line.
func headingTitle(line string) (string, bool) {
	m := sectionHeadingRe.FindStringSubmatch(clean(line))
	if m == nil {
		return "", false
	}
	title := strings.TrimSpace(m[1])
	if title == "" {
		return "", false
	}
	return title, true
}

func isLogHeading(line string) bool {
	title, ok := headingTitle(line)
	return ok && title == LogSectionTitle
}

func isSeparator(line string) bool {
	return strings.TrimSpace(line) == logSeparator
}

func parseTodoLine(line string) (text string, checked bool, ok bool) {
	m := todoRe.FindStringSubmatch(clean(line))
	if m == nil {
		return "", false, false
	}
	text = strings.TrimSpace(m[2])
	if text == "" {
		return "", false, false
	}
	return text, m[1] != " ", true
}

func formatTodo(t Todo) string {
	if t.Checked {
		return "- [x] " + t.Text
	}
	return "- [ ] " + t.Text
}

// fenceMask flags every line that is part of a fenced code block, fence
// markers included. Flagged lines are opaque to the parser.
func fenceMask(lines []string) []bool {
	mask, _ := scanFences(lines)
	return mask
}

// scanFences is fenceMask that also returns the opening run ("```", "~~~~")
// of a fence still open after the last line, or "" if every fence is closed.
func scanFences(lines []string) ([]bool, string) {
	mask := make([]bool, len(lines))
	var marker, opener string
	for i, line := range lines {
		trimmed := strings.TrimLeft(clean(line), " ")
		if len(clean(line))-len(trimmed) > 3 {
			if marker != "" {
				mask[i] = true
			}
			continue
		}
		switch {
		case marker == "" && (strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~")):
			marker = trimmed[:3]
			opener = trimmed[:len(trimmed)-len(strings.TrimLeft(trimmed, marker[:1]))]
			mask[i] = true
		case marker != "":
			mask[i] = true
			if strings.HasPrefix(trimmed, marker) && strings.TrimSpace(strings.TrimLeft(trimmed, marker[:1])) == "" {
				marker, opener = "", ""
			}
		}
	}
	return mask, opener
}

// closeOpenFence terminates a code fence left open at the end of lines, so
// that anything appended after it is read as markdown again.
func closeOpenFence(lines []string) []string {
	_, opener := scanFences(lines)
	if opener == "" {
		return lines
	}
	p := lastContentIndex(lines)
	return insertAt(lines, p, opener+carriage(lines[p-1]))
}

// parseTimestamp accepts "YYYY-MM-DD HH:MM:SS" with an optional " UTC" suffix.
func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, " UTC")
	return time.ParseInLocation(TimestampLayout, s, time.UTC)
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout) + " UTC"
}

// fieldValue maps the literal placeholders to the empty value.
func fieldValue(s string) string {
	s = strings.TrimSpace(s)
	switch s {
	case notVerifiedPlaceholder, notProvidedPlaceholder:
		return ""
	}
	return s
}

func orPlaceholder(value, placeholder string) string {
	if value == "" {
		return placeholder
	}
	return value
}

// lastContentIndex returns the index just past the last non-blank line.
func lastContentIndex(lines []string) int {
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.TrimSpace(lines[i]) != "" {
			return i + 1
		}
	}
	return 0
}

// insertAt returns lines with extra spliced in before index p.
func insertAt(lines []string, p int, extra ...string) []string {
	out := make([]string, 0, len(lines)+len(extra))
	out = append(out, lines[:p]...)
	out = append(out, extra...)
	return append(out, lines[p:]...)
}
