package main

import (
	"fmt"
	"github.com/charmbracelet/lipgloss"
	"io"
	"strings"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86")).
			Background(lipgloss.Color("235")).
			Padding(0, 1)

	itemStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	metaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	urlStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("33"))

	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196")).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("196")).
			Padding(0, 1)

	footerStyle = lipgloss.NewStyle().
			Italic(true).
			Foreground(lipgloss.Color("214"))
)

func renderState(w io.Writer, title string, st SearchState) {
	header := title
	if st.Query != "" {
		header = fmt.Sprintf("%s: %q (%s)", title, st.Query, st.Kind)
	}
	fmt.Fprintln(w, titleStyle.Render(header))

	for i, item := range st.Items {
		fmt.Fprintln(w, renderItem(i+1, item))
	}
	if st.Error != nil {
		fmt.Fprintln(w, errorStyle.Render(errorText(*st.Error)))
	}
	if len(st.Items) == 0 && st.Error == nil {
		fmt.Fprintln(w, metaStyle.Render("No results"))
		return
	}
	fmt.Fprintln(w, footerStyle.Render(fmt.Sprintf("Showing %d of %d results", len(st.Items), st.TotalResults)))
}

func renderItem(n int, item Media) string {
	switch m := item.(type) {
	case PexelsPhoto:
		name := m.Alt
		if name == "" {
			name = fmt.Sprintf("Photo %d", m.Id)
		}
		return fmt.Sprintf("%3d. %s %s\n     %s",
			n,
			itemStyle.Render(name),
			metaStyle.Render(fmt.Sprintf("by %s, %dx%d", m.Photographer, m.Width, m.Height)),
			urlStyle.Render(m.Url))
	case PexelsVideo:
		return fmt.Sprintf("%3d. %s %s\n     %s",
			n,
			itemStyle.Render(fmt.Sprintf("Video %d", m.Id)),
			metaStyle.Render(fmt.Sprintf("by %s, %ds, %dx%d", m.User.Name, m.Duration, m.Width, m.Height)),
			urlStyle.Render(m.Url))
	}
	return fmt.Sprintf("%3d. %d", n, item.MediaID())
}

func errorText(e ApiError) string {
	var b strings.Builder
	b.WriteString(e.Message)
	if e.IsAuth() {
		b.WriteString("\nCheck your Pexels API key (pexels.com.key or PEXELS_API_KEY).")
	}
	return b.String()
}
