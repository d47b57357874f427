package document

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxBodyLength is the tracker's issue body ceiling, in characters.
const MaxBodyLength = 65536

// SizeLimitError reports a body that would exceed MaxBodyLength.
type SizeLimitError struct {
	Size  int
	Limit int
}

func (e *SizeLimitError) Error() string {
	return fmt.Sprintf("issue body would be %d characters, exceeding the %d character limit", e.Size, e.Limit)
}

// CheckSize returns a *SizeLimitError when body is longer than MaxBodyLength.
func CheckSize(body string) error {
	if n := utf8.RuneCountInString(body); n > MaxBodyLength {
		return &SizeLimitError{Size: n, Limit: MaxBodyLength}
	}
	return nil
}

// Markdown returns the entry in the layout used inside the Log section,
// starting with its "---" separator.
func (e LogEntry) Markdown() string {
	return strings.Join(e.lines(), "\n")
}

func (e LogEntry) lines() []string {
	out := []string{
		logSeparator,
		fmt.Sprintf("### → %s [%s]", e.ToState, formatTimestamp(e.Timestamp)),
		"",
		fmt.Sprintf("*by @%s*", e.Author),
	}
	if msg := singleLine(e.Message); msg != "" {
		out = append(out, "", "**Message**: "+msg)
	}
	for _, sub := range e.SubEntries {
		out = append(out, "", "#### "+sub.Title)
		if content := strings.TrimSpace(sub.Content); content != "" {
			out = append(out, "")
			out = append(out, splitLines(content)...)
		}
	}
	return out
}

// singleLine folds a message onto one line; the message field is line-oriented.
func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// AppendLogEntry appends entry to the end of the body's Log section, creating
// the section when the body has none. Everything else in the body, including
// malformed log content, is kept verbatim.
func AppendLogEntry(rawBody string, entry LogEntry) (string, error) {
	lines := closeOpenFence(splitLines(rawBody))
	fence := fenceMask(lines)

	logStart := -1
	for i, line := range lines {
		if !fence[i] && isLogHeading(line) {
			logStart = i
		}
	}

	var out string
	if logStart < 0 {
		base := strings.TrimRight(strings.Join(lines, "\n"), " \t\r\n")
		parts := []string{"## " + LogSectionTitle, ""}
		parts = append(parts, entry.lines()...)
		out = strings.Join(parts, "\n") + "\n"
		if base != "" {
			out = base + "\n\n" + out
		}
	} else {
		logEnd := len(lines)
		for i := logStart + 1; i < len(lines); i++ {
			if !fence[i] {
				if _, ok := headingTitle(lines[i]); ok {
					logEnd = i
					break
				}
			}
		}
		section := appendToLog(lines[logStart:logEnd], entry)
		merged := make([]string, 0, len(lines)+len(section))
		merged = append(merged, lines[:logStart]...)
		merged = append(merged, section...)
		merged = append(merged, lines[logEnd:]...)
		out = strings.Join(merged, "\n")
	}

	if err := CheckSize(out); err != nil {
		return "", err
	}
	return out, nil
}

// appendToLog inserts entry after the last non-blank line of a Log section,
// keeping the blank lines that separated it from what follows.
func appendToLog(section []string, entry LogEntry) []string {
	p := lastContentIndex(section)
	tail := section[p:]
	if len(tail) == 0 {
		tail = []string{""}
	}
	out := make([]string, 0, len(section)+len(tail)+8)
	out = append(out, section[:p]...)
	out = append(out, "")
	out = append(out, entry.lines()...)
	return append(out, tail...)
}

// Render regenerates the body. Regions the caller did not touch are copied
// from the parsed source; checklist items and condition fields are rewritten
// in place, and new items, conditions, sections and log entries are added.
func Render(doc *Document) string {
	var out []string

	pendingConds := make([]*Condition, 0)
	byText := make(map[string]*Condition, len(doc.Conditions))
	for _, c := range doc.Conditions {
		byText[c.Text] = c
		if c.SourceLine == 0 {
			pendingConds = append(pendingConds, c)
		}
	}
	conditionsHome := doc.FindSection(ConditionsSectionTitle)
	rewritten := map[string]bool{}

	emptyBody := len(doc.layout) == 0 && len(doc.prelude) == 1 && doc.prelude[0] == ""
	if doc.prelude != nil && !emptyBody && strings.TrimSpace(strings.Join(doc.prelude, "\n")) == doc.PreludeText {
		out = append(out, rewriteConditions(doc.prelude, byText, rewritten)...)
	} else if doc.PreludeText != "" {
		out = append(out, splitLines(doc.PreludeText)...)
		out = append(out, "")
	}

	inLayout := map[*Section]bool{}
	present := map[*Section]bool{}
	for _, s := range doc.Sections {
		present[s] = true
	}
	lastLog := -1
	for i, b := range doc.layout {
		if b.section != nil {
			inLayout[b.section] = true
		} else {
			lastLog = i
		}
	}

	var added []*Section
	for _, s := range doc.Sections {
		if !inLayout[s] {
			added = append(added, s)
		}
	}
	emitAdded := func() {
		if len(added) > 0 {
			out = closeOpenFence(out)
		}
		for _, s := range added {
			out = ensureBlank(out)
			out = append(out, renderSection(s, conditionsHome, pendingConds, byText, rewritten)...)
		}
		added = nil
	}

	if conditionsHome == nil && len(pendingConds) > 0 {
		conditionsHome = &Section{Title: ConditionsSectionTitle}
		added = append(added, conditionsHome)
	}

	var newEntries []LogEntry
	if doc.parsedLogEntries < len(doc.LogEntries) {
		newEntries = doc.LogEntries[doc.parsedLogEntries:]
	}

	for i, b := range doc.layout {
		if b.section != nil {
			if present[b.section] {
				out = append(out, renderSection(b.section, conditionsHome, pendingConds, byText, rewritten)...)
			}
			continue
		}
		if i == lastLog && i == len(doc.layout)-1 {
			emitAdded()
		}
		logLines := b.log
		if i == lastLog && len(newEntries) > 0 {
			logLines = closeOpenFence(logLines)
			for _, e := range newEntries {
				logLines = appendToLog(logLines, e)
			}
		}
		out = append(out, logLines...)
	}
	emitAdded()

	if lastLog < 0 && len(newEntries) > 0 {
		out = ensureBlank(closeOpenFence(out))
		out = append(out, "## "+LogSectionTitle, "")
		for j, e := range newEntries {
			if j > 0 {
				out = append(out, "")
			}
			out = append(out, e.lines()...)
		}
		out = append(out, "")
	}

	return strings.Join(out, "\n")
}

// ensureBlank makes sure the next emitted line is preceded by a blank line.
func ensureBlank(out []string) []string {
	if len(out) == 0 || strings.TrimSpace(out[len(out)-1]) == "" {
		return out
	}
	return append(out, "")
}

func renderSection(s *Section, home *Section, pending []*Condition, byText map[string]*Condition, rewritten map[string]bool) []string {
	var extra []string
	for _, t := range s.Todos {
		if t.SourceLine == 0 {
			extra = append(extra, formatTodo(t))
		}
	}
	if s == home {
		for _, c := range pending {
			extra = append(extra, "")
			extra = append(extra, conditionBlock(c)...)
		}
	}

	sourced := s.lines != nil && strings.TrimSpace(strings.Join(s.lines, "\n")) == s.Body
	if !sourced {
		out := []string{"## " + s.Title, ""}
		var body []string
		if s.Body != "" {
			body = rewriteConditions(retick(s, splitLines(s.Body)), byText, rewritten)
		}
		body = append(body, extra...)
		// drop a leading blank left by a condition block in an empty section
		for len(body) > 0 && strings.TrimSpace(body[0]) == "" {
			body = body[1:]
		}
		out = append(out, body...)
		return append(out, "")
	}

	heading := s.heading
	if title, ok := headingTitle(heading); !ok || title != s.Title {
		heading = "## " + s.Title
	}

	lines := append([]string(nil), s.lines...)
	fence := fenceMask(lines)
	for _, t := range s.Todos {
		if t.SourceLine == 0 {
			continue
		}
		idx := t.SourceLine - s.startLine - 1
		if idx < 0 || idx >= len(lines) || fence[idx] {
			continue
		}
		text, checked, ok := parseTodoLine(lines[idx])
		if ok && (text != t.Text || checked != t.Checked) {
			lines[idx] = formatTodo(t) + carriage(lines[idx])
		}
	}
	lines = rewriteConditions(lines, byText, rewritten)
	if len(extra) > 0 {
		lines = insertAt(lines, lastContentIndex(lines), extra...)
	}
	return append([]string{heading}, lines...)
}

// retick carries checklist state onto a body the caller replaced. Each parsed
// item is matched, in order, to the first unused body line equal to its
// source line.
func retick(s *Section, body []string) []string {
	fence := fenceMask(body)
	used := make([]bool, len(body))
	for _, t := range s.Todos {
		idx := t.SourceLine - s.startLine - 1
		if t.SourceLine == 0 || idx < 0 || idx >= len(s.lines) {
			continue
		}
		orig := strings.TrimSpace(s.lines[idx])
		for j, line := range body {
			if used[j] || fence[j] || strings.TrimSpace(line) != orig {
				continue
			}
			used[j] = true
			text, checked, ok := parseTodoLine(line)
			if ok && (text != t.Text || checked != t.Checked) {
				body[j] = formatTodo(t) + carriage(line)
			}
			break
		}
	}
	return body
}

// carriage returns the "\r" a CRLF line ends with, so rewrites keep line endings.
func carriage(line string) string {
	if strings.HasSuffix(line, "\r") {
		return "\r"
	}
	return ""
}

func conditionBlock(c *Condition) []string {
	return []string{
		"### CONDITION: " + c.Text,
		"",
		verifiedLine(c.Verified),
		"**Signed-off by:** " + orPlaceholder(c.SignedOffBy, notVerifiedPlaceholder),
		"**Requirements:** " + orPlaceholder(c.Requirements, notProvidedPlaceholder),
		"**Evidence:** " + orPlaceholder(c.Evidence, notProvidedPlaceholder),
	}
}

func verifiedLine(v bool) string {
	if v {
		return "- [x] VERIFIED"
	}
	return "- [ ] VERIFIED"
}

// rewriteConditions rewrites the four fields of every known condition block
// in lines, leaving all other lines untouched. Each condition is rewritten
// once; later duplicates are copied as they are.
func rewriteConditions(lines []string, byText map[string]*Condition, rewritten map[string]bool) []string {
	if len(byText) == 0 {
		return lines
	}
	fence := fenceMask(lines)
	out := make([]string, 0, len(lines))
	for i := 0; i < len(lines); i++ {
		out = append(out, lines[i])
		if fence[i] {
			continue
		}
		m := conditionHeaderRe.FindStringSubmatch(clean(lines[i]))
		if m == nil {
			continue
		}
		text := strings.TrimSpace(m[1])
		c := byText[text]
		if c == nil || rewritten[text] {
			continue
		}
		rewritten[text] = true

		end := i + 1
		for end < len(lines) {
			l := clean(lines[end])
			if fence[end] || anyHeadingRe.MatchString(l) || isSeparator(l) {
				break
			}
			end++
		}
		out = append(out, rewriteConditionFields(lines[i+1:end], c)...)
		i = end - 1
	}
	return out
}

func rewriteConditionFields(block []string, c *Condition) []string {
	out := append([]string(nil), block...)
	type field struct {
		match   func(string) (string, bool)
		want    string
		line    string
		present bool
	}
	fields := []*field{
		{
			match: func(l string) (string, bool) {
				m := verifiedRe.FindStringSubmatch(l)
				if m == nil {
					return "", false
				}
				return fmt.Sprint(m[1] != " "), true
			},
			want: fmt.Sprint(c.Verified),
			line: verifiedLine(c.Verified),
		},
		{
			match: submatch(signedOffRe),
			want:  c.SignedOffBy,
			line:  "**Signed-off by:** " + orPlaceholder(c.SignedOffBy, notVerifiedPlaceholder),
		},
		{
			match: submatch(requirementsRe),
			want:  c.Requirements,
			line:  "**Requirements:** " + orPlaceholder(c.Requirements, notProvidedPlaceholder),
		},
		{
			match: submatch(evidenceRe),
			want:  c.Evidence,
			line:  "**Evidence:** " + orPlaceholder(c.Evidence, notProvidedPlaceholder),
		},
	}

	lastField := -1
	for i, raw := range out {
		for _, f := range fields {
			if f.present {
				continue
			}
			got, ok := f.match(clean(raw))
			if !ok {
				continue
			}
			f.present = true
			lastField = i
			if got != f.want {
				out[i] = f.line + carriage(raw)
			}
			break
		}
	}

	var missing []string
	for _, f := range fields {
		if !f.present && f.want != "" && f.want != "false" {
			missing = append(missing, f.line)
		}
	}
	if len(missing) == 0 {
		return out
	}
	if lastField < 0 {
		return insertAt(out, 0, missing...)
	}
	return insertAt(out, lastField+1, missing...)
}

func submatch(re *regexp.Regexp) func(string) (string, bool) {
	return func(l string) (string, bool) {
		m := re.FindStringSubmatch(l)
		if m == nil {
			return "", false
		}
		return fieldValue(m[1]), true
	}
}
