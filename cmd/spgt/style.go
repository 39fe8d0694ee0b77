package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	accent      = lipgloss.Color("#8BC34A")
	destructive = lipgloss.Color("#e53935")
	muted       = lipgloss.Color("#6b7785")

	successStyle = lipgloss.NewStyle().Foreground(accent).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(destructive).Bold(true)
	headerStyle  = lipgloss.NewStyle().Bold(true).Underline(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(muted)
)

// renderCounts renders a relation -> count table, one relation per line.
func renderCounts(counts map[string]int) string {
	keys := make([]string, 0, len(counts))
	width := 0
	for k := range counts {
		keys = append(keys, k)
		if len(k) > width {
			width = len(k)
		}
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		sb.WriteString(fmt.Sprintf("  %-*s %s\n", width, k, mutedStyle.Render(fmt.Sprintf("%d", counts[k]))))
	}
	return sb.String()
}
