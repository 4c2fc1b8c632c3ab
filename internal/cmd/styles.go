package cmd

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/javajack/xlbuild/template"
)

// Ayu palette, adaptive between light and dark terminals.
var (
	colorPass   = lipgloss.AdaptiveColor{Light: "#86b300", Dark: "#c2d94c"}
	colorWarn   = lipgloss.AdaptiveColor{Light: "#f2ae49", Dark: "#ffb454"}
	colorFail   = lipgloss.AdaptiveColor{Light: "#f07171", Dark: "#f07178"}
	colorMuted  = lipgloss.AdaptiveColor{Light: "#828c99", Dark: "#6c7680"}
	colorAccent = lipgloss.AdaptiveColor{Light: "#399ee6", Dark: "#59c2ff"}
)

var (
	passStyle   = lipgloss.NewStyle().Foreground(colorPass)
	warnStyle   = lipgloss.NewStyle().Foreground(colorWarn)
	failStyle   = lipgloss.NewStyle().Foreground(colorFail)
	mutedStyle  = lipgloss.NewStyle().Foreground(colorMuted)
	accentStyle = lipgloss.NewStyle().Foreground(colorAccent)
	boldStyle   = lipgloss.NewStyle().Bold(true)
)

const (
	iconPass = "✓"
	iconWarn = "⚠"
	iconFail = "✖"
)

// renderIssue formats one validation issue with severity coloring.
func renderIssue(i template.Issue) string {
	tag := failStyle.Render("[ERROR]")
	if i.Severity == template.SeverityWarning {
		tag = warnStyle.Render("[WARN]")
	}
	return fmt.Sprintf("%s %s: %s", tag, accentStyle.Render(i.Location), i.Message)
}
