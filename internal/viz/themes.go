package viz

import "github.com/charmbracelet/lipgloss"

// Theme defines the colors of the live view.
type Theme struct {
	Name      string
	Primary   lipgloss.Color
	Secondary lipgloss.Color
	Accent    lipgloss.Color
	Text      lipgloss.Color
	Muted     lipgloss.Color
	Warning   lipgloss.Color
}

var (
	ThemeCyberpunk = Theme{
		Name:      "cyberpunk",
		Primary:   lipgloss.Color("#ff00ff"),
		Secondary: lipgloss.Color("#00ffff"),
		Accent:    lipgloss.Color("#ffff00"),
		Text:      lipgloss.Color("#ffffff"),
		Muted:     lipgloss.Color("#666666"),
		Warning:   lipgloss.Color("#ff8800"),
	}

	ThemeRetroGreen = Theme{
		Name:      "retro",
		Primary:   lipgloss.Color("#00ff00"),
		Secondary: lipgloss.Color("#00cc00"),
		Accent:    lipgloss.Color("#88ff88"),
		Text:      lipgloss.Color("#00ff00"),
		Muted:     lipgloss.Color("#005500"),
		Warning:   lipgloss.Color("#ffff00"),
	}

	ThemeOcean = Theme{
		Name:      "ocean",
		Primary:   lipgloss.Color("#0077be"),
		Secondary: lipgloss.Color("#00a8cc"),
		Accent:    lipgloss.Color("#ffd700"),
		Text:      lipgloss.Color("#e0f0ff"),
		Muted:     lipgloss.Color("#4488aa"),
		Warning:   lipgloss.Color("#ffcc00"),
	}

	CurrentTheme = ThemeCyberpunk

	Themes = []Theme{
		ThemeCyberpunk,
		ThemeRetroGreen,
		ThemeOcean,
	}
)

func GetTheme(name string) Theme {
	for _, t := range Themes {
		if t.Name == name {
			return t
		}
	}
	return ThemeCyberpunk
}

func SetTheme(name string) {
	CurrentTheme = GetTheme(name)
}

// NextTheme switches to the theme after the current one.
func NextTheme() {
	for i, t := range Themes {
		if t.Name == CurrentTheme.Name {
			CurrentTheme = Themes[(i+1)%len(Themes)]
			return
		}
	}
	CurrentTheme = Themes[0]
}

func ThemeNames() []string {
	names := make([]string, len(Themes))
	for i, t := range Themes {
		names[i] = t.Name
	}
	return names
}

type styles struct {
	canvas, stats, header, label, value, graph, help, status, warn lipgloss.Style
}

func themeStyles(t Theme) styles {
	return styles{
		canvas: lipgloss.NewStyle().Padding(1, 2).Foreground(t.Secondary),
		stats: lipgloss.NewStyle().Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(t.Muted).Padding(1, 2).Width(45),
		header: lipgloss.NewStyle().Foreground(t.Primary).Bold(true).MarginBottom(1),
		label:  lipgloss.NewStyle().Foreground(t.Muted).Width(14),
		value:  lipgloss.NewStyle().Foreground(t.Text),
		graph:  lipgloss.NewStyle().Foreground(t.Accent).Padding(1, 0),
		help:   lipgloss.NewStyle().Foreground(t.Muted).MarginTop(1),
		status: lipgloss.NewStyle().Foreground(t.Secondary).Bold(true),
		warn:   lipgloss.NewStyle().Foreground(t.Warning).Bold(true),
	}
}
