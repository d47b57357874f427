package document

import (
	"errors"
	"fmt"
	"strings"

	"github.com/danielolaszy/ghflow/internal/logging"
)

// SkipError describes a unit of the body the parser could not use.
type SkipError struct {
	Line   int
	Reason string
}

func (e *SkipError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
}

// errEmptyBlock marks a log block with no content; it is skipped silently.
var errEmptyBlock = errors.New("empty log block")

// region is a heading-delimited span of lines. start is the heading index,
// or -1 for the prelude.
type region struct {
	title string
	start int
	end   int
}

// Parse converts a raw issue body into a Document. It never fails: malformed
// log blocks and duplicate conditions are skipped and listed in Warnings.
func Parse(raw string) *Document {
	lines := splitLines(raw)
	fence := fenceMask(lines)
	doc := &Document{}

	regions := splitRegions(lines, fence)
	inLog := make([]bool, len(lines))
	for _, r := range regions {
		if r.start >= 0 && r.title == LogSectionTitle {
			for i := r.start; i < r.end; i++ {
				inLog[i] = true
			}
		}
	}

	conditionLines := extractConditions(doc, lines, fence, inLog)

	var lastLog []LogEntry
	for _, r := range regions {
		switch {
		case r.start < 0:
			doc.prelude = lines[:r.end]
			doc.PreludeText = strings.TrimSpace(strings.Join(doc.prelude, "\n"))
		case r.title == LogSectionTitle:
			raw := lines[r.start:r.end]
			doc.layout = append(doc.layout, block{log: raw})
			lastLog = parseLogSection(doc, raw, fence[r.start:r.end], r.start+1)
		default:
			s := &Section{
				Title:     r.title,
				heading:   lines[r.start],
				startLine: r.start + 1,
				lines:     lines[r.start+1 : r.end],
			}
			s.Body = strings.TrimSpace(strings.Join(s.lines, "\n"))
			for i := r.start + 1; i < r.end; i++ {
				if fence[i] || conditionLines[i] {
					continue
				}
				if text, checked, ok := parseTodoLine(lines[i]); ok {
					s.Todos = append(s.Todos, Todo{Text: text, Checked: checked, SourceLine: i + 1})
				}
			}
			doc.Sections = append(doc.Sections, s)
			doc.layout = append(doc.layout, block{section: s})
		}
	}

	// With several Log sections the last one supplies the entries.
	doc.LogEntries = lastLog
	doc.parsedLogEntries = len(lastLog)
	return doc
}

// splitRegions cuts the body at every "## " heading outside a code fence.
func splitRegions(lines []string, fence []bool) []region {
	regions := []region{{start: -1}}
	for i, line := range lines {
		if fence[i] {
			continue
		}
		title, ok := headingTitle(line)
		if !ok {
			continue
		}
		regions[len(regions)-1].end = i
		regions = append(regions, region{title: title, start: i})
	}
	regions[len(regions)-1].end = len(lines)
	return regions
}

// extractConditions scans the whole body outside the Log section for
// condition blocks. It returns the lines that belong to condition fields so
// they are not mistaken for checklist items.
func extractConditions(doc *Document, lines []string, fence, inLog []bool) []bool {
	owned := make([]bool, len(lines))
	var cur *Condition
	seen := map[string]bool{}
	var set struct{ verified, signed, reqs, evidence bool }

	for i, line := range lines {
		if fence[i] || inLog[i] {
			cur = nil
			continue
		}
		l := clean(line)
		if m := conditionHeaderRe.FindStringSubmatch(l); m != nil {
			text := strings.TrimSpace(m[1])
			owned[i] = true
			set.verified, set.signed, set.reqs, set.evidence = false, false, false, false
			if seen[text] {
				logging.Warn("duplicate condition skipped", "condition", text, "line", i+1)
				doc.Warnings = append(doc.Warnings, (&SkipError{Line: i + 1, Reason: fmt.Sprintf("duplicate condition %q", text)}).Error())
				cur = &Condition{} // consume its fields without recording them
				continue
			}
			seen[text] = true
			cur = &Condition{Text: text, SourceLine: i + 1}
			doc.Conditions = append(doc.Conditions, cur)
			continue
		}
		if cur == nil {
			continue
		}
		if anyHeadingRe.MatchString(l) || isSeparator(l) {
			cur = nil
			continue
		}
		switch {
		case !set.verified && verifiedRe.MatchString(l):
			m := verifiedRe.FindStringSubmatch(l)
			cur.Verified = m[1] != " "
			set.verified = true
		case !set.signed && signedOffRe.MatchString(l):
			cur.SignedOffBy = fieldValue(signedOffRe.FindStringSubmatch(l)[1])
			set.signed = true
		case !set.reqs && requirementsRe.MatchString(l):
			cur.Requirements = fieldValue(requirementsRe.FindStringSubmatch(l)[1])
			set.reqs = true
		case !set.evidence && evidenceRe.MatchString(l):
			cur.Evidence = fieldValue(evidenceRe.FindStringSubmatch(l)[1])
			set.evidence = true
		default:
			continue
		}
		owned[i] = true
	}
	return owned
}

// parseLogSection parses the raw lines of a Log section (heading first).
// firstLine is the 1-based number of the heading line.
func parseLogSection(doc *Document, raw []string, fence []bool, firstLine int) []LogEntry {
	var entries []LogEntry
	start := 1
	flush := func(end int) {
		entry, err := parseLogBlock(raw[start:end], fence[start:end], firstLine+start)
		switch {
		case err == nil:
			entries = append(entries, entry)
		case errors.Is(err, errEmptyBlock):
		default:
			logging.Warn("skipping malformed log block", "error", err)
			doc.Warnings = append(doc.Warnings, err.Error())
		}
	}
	for i := 1; i < len(raw); i++ {
		if !fence[i] && isSeparator(raw[i]) {
			flush(i)
			start = i + 1
		}
	}
	flush(len(raw))
	return entries
}

// parseLogBlock parses one "---"-delimited block. lineNo is the 1-based body
// line number of lines[0].
func parseLogBlock(lines []string, fence []bool, lineNo int) (LogEntry, error) {
	if strings.TrimSpace(strings.Join(lines, "")) == "" {
		return LogEntry{}, errEmptyBlock
	}

	var entry LogEntry
	var haveHeader, haveAuthor bool
	var sub *LogSubEntry
	var content []string

	closeSub := func() {
		if sub != nil {
			sub.Content = strings.TrimSpace(strings.Join(content, "\n"))
			entry.SubEntries = append(entry.SubEntries, *sub)
		}
		sub, content = nil, nil
	}

	for i, line := range lines {
		l := clean(line)
		if fence[i] {
			if sub != nil {
				content = append(content, l)
			}
			continue
		}
		if m := logSubEntryRe.FindStringSubmatch(l); m != nil {
			closeSub()
			sub = &LogSubEntry{Title: strings.TrimSpace(m[1])}
			continue
		}
		if sub != nil {
			content = append(content, l)
			continue
		}
		if m := logHeaderRe.FindStringSubmatch(l); m != nil && !haveHeader {
			ts, err := parseTimestamp(m[2])
			if err != nil {
				return LogEntry{}, &SkipError{Line: lineNo + i, Reason: fmt.Sprintf("invalid timestamp %q", m[2])}
			}
			entry.ToState = strings.TrimSpace(m[1])
			entry.Timestamp = ts
			haveHeader = true
			continue
		}
		if m := logAuthorRe.FindStringSubmatch(l); m != nil && !haveAuthor {
			entry.Author = strings.TrimSpace(m[1])
			haveAuthor = true
			continue
		}
		if m := logMessageRe.FindStringSubmatch(l); m != nil && entry.Message == "" {
			entry.Message = strings.TrimSpace(m[1])
		}
	}
	closeSub()

	if !haveHeader {
		return LogEntry{}, &SkipError{Line: lineNo, Reason: "log block has no transition header"}
	}
	if !haveAuthor {
		return LogEntry{}, &SkipError{Line: lineNo, Reason: "log block has no author line"}
	}
	return entry, nil
}
