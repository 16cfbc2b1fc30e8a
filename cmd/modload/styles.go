// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Color palette shared by all CLI output.
const (
	ColorPrimary   = lipgloss.Color("#7C3AED")
	ColorMuted     = lipgloss.Color("#6B7280")
	ColorSuccess   = lipgloss.Color("#10B981")
	ColorError     = lipgloss.Color("#EF4444")
	ColorWarning   = lipgloss.Color("#F59E0B")
	ColorHighlight = lipgloss.Color("#3B82F6")
)

var (
	// TitleStyle is for primary headers and section titles.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary)

	// SubtitleStyle is for secondary headers and descriptions.
	SubtitleStyle = lipgloss.NewStyle().
			Foreground(ColorMuted)

	// SuccessStyle marks compiled, valid and reloaded items.
	SuccessStyle = lipgloss.NewStyle().
			Foreground(ColorSuccess)

	// ErrorStyle is for error messages and failure indicators.
	ErrorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorError)

	// WarningStyle marks stale caches and skipped items.
	WarningStyle = lipgloss.NewStyle().
			Foreground(ColorWarning)

	// KeyStyle is for module names and namespace keys.
	KeyStyle = lipgloss.NewStyle().
			Foreground(ColorHighlight)
)

// label renders text in style and pads it to width cells.
func label(style lipgloss.Style, text string, width int) string {
	return style.Render(text) + strings.Repeat(" ", max(width-lipgloss.Width(text), 0))
}
