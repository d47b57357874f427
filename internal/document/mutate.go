package document

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrNoEvidence is returned when verifying a condition that has no evidence.
var ErrNoEvidence = errors.New("no evidence provided")

// AddTodo appends an unchecked item to the named section, creating the section
// when it does not exist.
func (d *Document) AddTodo(sectionTitle, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return errors.New("todo text is required")
	}
	if strings.Contains(text, "\n") {
		return errors.New("todo text must be a single line")
	}
	s := d.FindSection(sectionTitle)
	if s == nil {
		var err error
		if s, err = d.AddSection(sectionTitle, ""); err != nil {
			return err
		}
	}
	s.Todos = append(s.Todos, Todo{Text: text})
	return nil
}

// SetTodo checks or unchecks one item. ref is either the exact item text or
// its 1-based position across all sections.
func (d *Document) SetTodo(ref string, checked bool) (Todo, error) {
	ref = strings.TrimSpace(ref)
	if n, err := strconv.Atoi(ref); err == nil {
		i := 0
		for _, s := range d.Sections {
			for j := range s.Todos {
				i++
				if i == n {
					s.Todos[j].Checked = checked
					return s.Todos[j], nil
				}
			}
		}
		if d.findTodo(ref) == nil {
			return Todo{}, fmt.Errorf("todo #%d not found (issue has %d todos)", n, i)
		}
	}
	t := d.findTodo(ref)
	if t == nil {
		return Todo{}, fmt.Errorf("todo %q not found", ref)
	}
	t.Checked = checked
	return *t, nil
}

func (d *Document) findTodo(text string) *Todo {
	for _, s := range d.Sections {
		for j := range s.Todos {
			if s.Todos[j].Text == text {
				return &s.Todos[j]
			}
		}
	}
	return nil
}

// AddCondition registers a new unverified condition. The block is written to
// the Conditions section, which is created when missing.
func (d *Document) AddCondition(text, requirements string) (*Condition, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("condition text is required")
	}
	if strings.Contains(text, "\n") {
		return nil, errors.New("condition text must be a single line")
	}
	if d.FindCondition(text) != nil {
		return nil, fmt.Errorf("condition %q already exists", text)
	}
	if d.FindSection(ConditionsSectionTitle) == nil {
		if _, err := d.AddSection(ConditionsSectionTitle, ""); err != nil {
			return nil, err
		}
	}
	c := &Condition{Text: text, Requirements: singleLine(requirements)}
	d.Conditions = append(d.Conditions, c)
	return c, nil
}

// AttachEvidence records evidence for a condition, replacing any earlier value.
func (d *Document) AttachEvidence(text, evidence string) (*Condition, error) {
	c := d.FindCondition(text)
	if c == nil {
		return nil, fmt.Errorf("condition %q not found", strings.TrimSpace(text))
	}
	evidence = singleLine(evidence)
	if evidence == "" {
		return nil, errors.New("evidence is required")
	}
	c.Evidence = evidence
	return c, nil
}

// VerifyCondition signs off a condition. It fails with ErrNoEvidence until
// evidence has been attached.
func (d *Document) VerifyCondition(text, signer string) (*Condition, error) {
	c := d.FindCondition(text)
	if c == nil {
		return nil, fmt.Errorf("condition %q not found", strings.TrimSpace(text))
	}
	if strings.TrimSpace(c.Evidence) == "" {
		return nil, fmt.Errorf("cannot verify condition %q: %w", c.Text, ErrNoEvidence)
	}
	signer = strings.TrimSpace(signer)
	if signer == "" {
		return nil, errors.New("signer is required")
	}
	if !strings.HasPrefix(signer, "@") {
		signer = "@" + signer
	}
	c.Verified = true
	c.SignedOffBy = signer
	return c, nil
}
