package ui

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/shopspring/decimal"
)

func TestMain(m *testing.M) {
	lipgloss.SetColorProfile(termenv.Ascii)
	m.Run()
}

func TestShouldUseColor(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	t.Setenv("CLICOLOR_FORCE", "1")
	if ShouldUseColor() {
		t.Error("NO_COLOR should win over CLICOLOR_FORCE")
	}

	t.Setenv("NO_COLOR", "")
	if !ShouldUseColor() {
		t.Error("CLICOLOR_FORCE should enable color")
	}
}

func TestRenderAmount(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"500", "+500.00"},
		{"-12.5", "-12.50"},
		{"0", "0.00"},
	}
	for _, tt := range tests {
		got := RenderAmount(decimal.RequireFromString(tt.in))
		if got != tt.want {
			t.Errorf("RenderAmount(%s) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTable(t *testing.T) {
	out := Table([]string{"ID", "NOTE"}, [][]string{{"a1", "coffee"}, {"b2", "rent"}})
	for _, want := range []string{"ID", "NOTE", "a1", "coffee", "b2", "rent"} {
		if !strings.Contains(out, want) {
			t.Errorf("Table() missing %q:\n%s", want, out)
		}
	}
}
