// Package models defines data structures shared across the application.
package models

const (
	// StateOpen is the tracker state of an open issue.
	StateOpen = "open"

	// StateClosed is the tracker state of a closed issue.
	StateClosed = "closed"
)

// Issue is the slice of a tracker issue the workflow core reads and writes.
type Issue struct {
	// Number is the issue number in the tracker (e.g., 42)
	Number int

	// Title is the issue's title or summary
	Title string

	// Body is the full markdown body of the issue
	Body string

	// State is "open" or "closed"
	State string

	// Labels is a slice of label names attached to the issue
	Labels []string
}

// IsClosed reports whether the tracker considers the issue closed.
func (i *Issue) IsClosed() bool {
	return i.State == StateClosed
}
