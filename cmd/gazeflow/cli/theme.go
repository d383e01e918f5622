// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Theme is the palette for command reports. ANSI 256 codes, so it
// renders the same in most terminals.
type Theme struct {
	Header  lipgloss.Color
	Faint   lipgloss.Color
	Accent  lipgloss.Color
	Success lipgloss.Color
	Failure lipgloss.Color
}

// DefaultTheme is used by every command.
var DefaultTheme = Theme{
	Header:  lipgloss.Color("75"),
	Faint:   lipgloss.Color("243"),
	Accent:  lipgloss.Color("214"),
	Success: lipgloss.Color("78"),
	Failure: lipgloss.Color("203"),
}

// Table renders rows under a bold header with columns padded to their
// widest cell. Cells are measured with lipgloss, so styled text and
// wide characters line up.
type Table struct {
	Headers []string
	Rows    [][]string
	Theme   Theme
}

// Render returns the table as text, one line per row.
func (t Table) Render() string {
	widths := make([]int, len(t.Headers))
	for i, header := range t.Headers {
		widths[i] = lipgloss.Width(header)
	}
	for _, row := range t.Rows {
		for i, cell := range row {
			if i < len(widths) {
				widths[i] = max(widths[i], lipgloss.Width(cell))
			}
		}
	}

	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(t.Theme.Header)
	var builder strings.Builder
	builder.WriteString(t.line(t.Headers, widths, headerStyle))
	for _, row := range t.Rows {
		builder.WriteString(t.line(row, widths, lipgloss.NewStyle()))
	}
	return builder.String()
}

func (t Table) line(cells []string, widths []int, style lipgloss.Style) string {
	parts := make([]string, len(widths))
	for i := range widths {
		cell := ""
		if i < len(cells) {
			cell = cells[i]
		}
		if i == len(widths)-1 {
			parts[i] = style.Render(cell)
			continue
		}
		parts[i] = style.Width(widths[i]).Render(cell)
	}
	return strings.TrimRight(strings.Join(parts, "  "), " ") + "\n"
}

// Heading renders a section title.
func (t Theme) Heading(text string) string {
	return lipgloss.NewStyle().Bold(true).Foreground(t.Accent).Render(text)
}

// Dim renders secondary text.
func (t Theme) Dim(text string) string {
	return lipgloss.NewStyle().Foreground(t.Faint).Render(text)
}

// Good renders text in the success color.
func (t Theme) Good(text string) string {
	return lipgloss.NewStyle().Foreground(t.Success).Render(text)
}

// Bad renders text in the failure color.
func (t Theme) Bad(text string) string {
	return lipgloss.NewStyle().Foreground(t.Failure).Render(text)
}
