package cmd

import (
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/danielolaszy/ghflow/internal/workflow"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

var (
	colorEnabled = true

	headerStyle = lipgloss.NewStyle().Bold(true)
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("34"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)

	// State colors follow the lifecycle from grey through blue to green.
	stateStyles = map[workflow.State]lipgloss.Style{
		workflow.Backlog:                    lipgloss.NewStyle().Foreground(lipgloss.Color("242")),
		workflow.Planning:                   lipgloss.NewStyle().Foreground(lipgloss.Color("110")),
		workflow.AwaitingPlanApproval:       lipgloss.NewStyle().Foreground(lipgloss.Color("226")),
		workflow.PlanApproved:               lipgloss.NewStyle().Foreground(lipgloss.Color("44")),
		workflow.InProgress:                 lipgloss.NewStyle().Foreground(lipgloss.Color("33")),
		workflow.AwaitingCompletionApproval: lipgloss.NewStyle().Foreground(lipgloss.Color("208")),
		workflow.Closed:                     lipgloss.NewStyle().Foreground(lipgloss.Color("34")),
	}
)

// DisableColor strips all styling from command output.
func DisableColor() {
	colorEnabled = false
	lipgloss.SetColorProfile(termenv.Ascii)
	headerStyle = lipgloss.NewStyle()
	labelStyle = lipgloss.NewStyle()
	dimStyle = lipgloss.NewStyle()
	okStyle = lipgloss.NewStyle()
	warnStyle = lipgloss.NewStyle()
	errorStyle = lipgloss.NewStyle()
	stateStyles = map[workflow.State]lipgloss.Style{}
}

func stateText(s workflow.State) string {
	if style, ok := stateStyles[s]; ok {
		return style.Render(string(s))
	}
	return string(s)
}

// renderMarkdown renders markdown for the terminal. It returns the input
// unchanged when color is off or rendering fails.
func renderMarkdown(markdown string) string {
	if !colorEnabled {
		return markdown
	}

	const maxReadableWidth = 100
	wrapWidth := 80
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		wrapWidth = w
	}
	if wrapWidth > maxReadableWidth {
		wrapWidth = maxReadableWidth
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(wrapWidth),
	)
	if err != nil {
		return markdown
	}
	rendered, err := renderer.Render(markdown)
	if err != nil {
		return markdown
	}
	return rendered
}
