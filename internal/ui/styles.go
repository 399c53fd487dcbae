// Package ui holds the terminal styles shared by the CLI commands.
package ui

import "github.com/charmbracelet/lipgloss"

var (
	Green  = lipgloss.Color("#a6e3a1")
	Yellow = lipgloss.Color("#f9e2af")
	Red    = lipgloss.Color("#f38ba8")
	Blue   = lipgloss.Color("#74c7ec")
	Gray   = lipgloss.Color("#a6adc8")

	Pass   = lipgloss.NewStyle().Foreground(Green)
	Warn   = lipgloss.NewStyle().Foreground(Yellow)
	Err    = lipgloss.NewStyle().Foreground(Red).Bold(true)
	Accent = lipgloss.NewStyle().Foreground(Blue).Bold(true)
	Muted  = lipgloss.NewStyle().Foreground(Gray)

	Done    = lipgloss.NewStyle().Foreground(Gray).Strikethrough(true)
	Heading = lipgloss.NewStyle().Foreground(Blue).Bold(true).Underline(true)
)

// RenderPass styles a success line.
func RenderPass(s string) string { return Pass.Render(s) }

// RenderWarn styles a warning line.
func RenderWarn(s string) string { return Warn.Render(s) }

// RenderErr styles an error line.
func RenderErr(s string) string { return Err.Render(s) }

// RenderAccent styles an emphasized fragment.
func RenderAccent(s string) string { return Accent.Render(s) }

// RenderMuted styles secondary detail.
func RenderMuted(s string) string { return Muted.Render(s) }

// Checkbox renders a task completion marker.
func Checkbox(done bool) string {
	if done {
		return Pass.Render("[x]")
	}
	return "[ ]"
}
