// Package document models an issue body as a semi-structured markdown document.
//
// A body is split into a free-text prelude, "## " sections carrying checklist
// items, "### CONDITION:" verification blocks, and a reserved "## Log" section
// holding an append-only record of workflow transitions. Parse keeps every
// source line so that Render reproduces untouched regions byte for byte.
package document

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// LogSectionTitle is the reserved, case-sensitive title of the audit log section.
const LogSectionTitle = "Log"

// ConditionsSectionTitle is the section new condition blocks are written to.
const ConditionsSectionTitle = "Conditions"

// Todo is a single "- [ ]" or "- [x]" checklist line.
type Todo struct {
	Text    string
	Checked bool

	// SourceLine is the 1-based line number in the parsed body, or 0 for
	// items added after parsing.
	SourceLine int
}

// Section is a "## "-headed block of the body.
type Section struct {
	Title string

	// Body is the raw text between the heading and the next heading, trimmed.
	Body string

	Todos []Todo

	heading   string   // raw heading line
	startLine int      // 1-based line number of the heading
	lines     []string // raw lines after the heading, nil for new sections
}

// TotalTodos returns the number of checklist items in the section.
func (s *Section) TotalTodos() int {
	return len(s.Todos)
}

// CompletedTodos returns the number of checked items in the section.
func (s *Section) CompletedTodos() int {
	n := 0
	for _, t := range s.Todos {
		if t.Checked {
			n++
		}
	}
	return n
}

// CompletionPercentage returns round(completed/total*100), or 0 for a section
// without checklist items.
func (s *Section) CompletionPercentage() int {
	total := s.TotalTodos()
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(s.CompletedTodos()) / float64(total) * 100))
}

// Condition is a named verification gate with requirements, evidence and sign-off.
type Condition struct {
	// Text identifies the condition and is unique within a Document.
	Text         string
	Verified     bool
	SignedOffBy  string
	Requirements string
	Evidence     string

	// SourceLine is the 1-based line of the "### CONDITION:" header, or 0 if
	// the condition was added after parsing.
	SourceLine int
}

// LogSubEntry is a "#### "-headed detail block inside a log entry.
type LogSubEntry struct {
	Title   string
	Content string
}

// LogEntry records one workflow transition.
type LogEntry struct {
	ToState    string
	Timestamp  time.Time
	Author     string
	Message    string
	SubEntries []LogSubEntry
}

// NewLogEntry builds a log entry, rejecting missing target state or author.
func NewLogEntry(toState, author, message string, at time.Time, subs ...LogSubEntry) (LogEntry, error) {
	toState = strings.TrimSpace(toState)
	author = strings.TrimPrefix(strings.TrimSpace(author), "@")
	if toState == "" {
		return LogEntry{}, errors.New("log entry requires a target state")
	}
	if author == "" {
		return LogEntry{}, errors.New("log entry requires an author")
	}
	for _, sub := range subs {
		if strings.TrimSpace(sub.Title) == "" {
			return LogEntry{}, errors.New("log sub-entry requires a title")
		}
	}
	return LogEntry{
		ToState:    toState,
		Timestamp:  at.UTC(),
		Author:     author,
		Message:    strings.TrimSpace(message),
		SubEntries: subs,
	}, nil
}

// Document is the parsed representation of one issue body.
type Document struct {
	PreludeText string
	Sections    []*Section
	LogEntries  []LogEntry
	Conditions  []*Condition

	// Warnings lists the units the parser skipped.
	Warnings []string

	prelude          []string
	layout           []block
	parsedLogEntries int
}

// block is one top-level region of the parsed body in source order.
type block struct {
	section *Section
	log     []string // raw lines of a Log section, heading included
}

// FindSection returns the first section whose title matches title
// case-insensitively, or nil.
func FindSection(doc *Document, title string) *Section {
	return doc.FindSection(title)
}

// FindSection returns the first section whose title matches title
// case-insensitively, or nil.
func (d *Document) FindSection(title string) *Section {
	title = strings.TrimSpace(title)
	for _, s := range d.Sections {
		if strings.EqualFold(s.Title, title) {
			return s
		}
	}
	return nil
}

// AddSection appends a new section. Sections titled "Log" are rejected because
// that title is reserved for the audit log.
func (d *Document) AddSection(title, body string) (*Section, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, errors.New("section title is required")
	}
	if title == LogSectionTitle {
		return nil, fmt.Errorf("section title %q is reserved", LogSectionTitle)
	}
	s := &Section{Title: title, Body: strings.TrimSpace(body)}
	d.Sections = append(d.Sections, s)
	return s, nil
}

// AllTodos returns every checklist item across all sections in document order.
func (d *Document) AllTodos() []Todo {
	var todos []Todo
	for _, s := range d.Sections {
		todos = append(todos, s.Todos...)
	}
	return todos
}

// UncheckedTodos returns the items that are not yet checked.
func (d *Document) UncheckedTodos() []Todo {
	var open []Todo
	for _, t := range d.AllTodos() {
		if !t.Checked {
			open = append(open, t)
		}
	}
	return open
}

// FindCondition returns the condition with the given text, or nil.
func (d *Document) FindCondition(text string) *Condition {
	text = strings.TrimSpace(text)
	for _, c := range d.Conditions {
		if c.Text == text {
			return c
		}
	}
	return nil
}

// UnverifiedConditions returns the conditions that have not been signed off.
func (d *Document) UnverifiedConditions() []*Condition {
	var open []*Condition
	for _, c := range d.Conditions {
		if !c.Verified {
			open = append(open, c)
		}
	}
	return open
}

// AppendLog adds an entry after all existing entries.
func (d *Document) AppendLog(entry LogEntry) {
	d.LogEntries = append(d.LogEntries, entry)
}
