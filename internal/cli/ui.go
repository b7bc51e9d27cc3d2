package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/soyeahso/helix/internal/domain"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED")).
			Padding(0, 1)

	assistantStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EF4444")).
			Bold(true)

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280"))

	stepStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#3B82F6")).
			Padding(0, 1).
			Width(72)
)

// renderSequence draws each step of seq as a bordered card.
func renderSequence(seq *domain.Sequence) string {
	if seq == nil {
		return mutedStyle.Render("(no sequence yet)")
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("%s (#%d)", seq.Title, seq.ID)))
	b.WriteString("\n")
	for i, st := range seq.Steps {
		header := fmt.Sprintf("Step %d · %s · +%d days", i+1, st.Type, st.Delay)
		body := header + "\n\n" + st.Content
		if st.PersonalizationTips != "" {
			body += "\n\n" + mutedStyle.Render("Tips: "+st.PersonalizationTips)
		}
		b.WriteString(stepStyle.Render(body))
		b.WriteString("\n")
	}
	return b.String()
}
