// Package ui holds the terminal styling shared by fintrack commands.
package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/muesli/termenv"
	"github.com/shopspring/decimal"
	"golang.org/x/term"
)

func init() {
	if !ShouldUseColor() {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
}

// ShouldUseColor follows NO_COLOR and CLICOLOR_FORCE, then falls back to
// whether stdout is a terminal.
func ShouldUseColor() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if os.Getenv("CLICOLOR_FORCE") != "" {
		return true
	}
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// IsInteractive reports whether stdin is a terminal a form can read from.
func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

var (
	ColorPass   = lipgloss.AdaptiveColor{Light: "#2e7d32", Dark: "#8bd17c"}
	ColorWarn   = lipgloss.AdaptiveColor{Light: "#b26a00", Dark: "#ffb454"}
	ColorFail   = lipgloss.AdaptiveColor{Light: "#c62828", Dark: "#f07178"}
	ColorAccent = lipgloss.AdaptiveColor{Light: "#1565c0", Dark: "#59c2ff"}
	ColorMuted  = lipgloss.AdaptiveColor{Light: "#757575", Dark: "#8a919a"}

	PassStyle   = lipgloss.NewStyle().Foreground(ColorPass)
	WarnStyle   = lipgloss.NewStyle().Foreground(ColorWarn)
	FailStyle   = lipgloss.NewStyle().Foreground(ColorFail)
	AccentStyle = lipgloss.NewStyle().Foreground(ColorAccent)
	MutedStyle  = lipgloss.NewStyle().Foreground(ColorMuted)
	BoldStyle   = lipgloss.NewStyle().Bold(true)
)

func RenderPass(s string) string   { return PassStyle.Render(s) }
func RenderWarn(s string) string   { return WarnStyle.Render(s) }
func RenderFail(s string) string   { return FailStyle.Render(s) }
func RenderAccent(s string) string { return AccentStyle.Render(s) }
func RenderMuted(s string) string  { return MutedStyle.Render(s) }
func RenderBold(s string) string   { return BoldStyle.Render(s) }

// RenderAmount formats an amount with two decimals, green for income and red
// for expenses.
func RenderAmount(d decimal.Decimal) string {
	s := d.StringFixed(2)
	switch d.Sign() {
	case 1:
		return PassStyle.Render("+" + s)
	case -1:
		return FailStyle.Render(s)
	default:
		return s
	}
}

// Table renders rows under headers with a rounded border.
func Table(headers []string, rows [][]string) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(MutedStyle).
		Headers(headers...)
	for _, row := range rows {
		t.Row(row...)
	}
	return t.String()
}
