package viz

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/flexsim/internal/config"
	"github.com/san-kum/flexsim/internal/scenario"
)

var (
	titleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#00cccc")).Bold(true)
	subStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#666688"))
	cursorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#00ffff")).Bold(true)
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#ffffff")).Bold(true)
	descStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff88ff"))
	idleStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#555566"))
	keyStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#00aaaa")).Bold(true)
)

var scenarioInfo = map[string]string{
	"rope":  "pinned chain, bending",
	"cloth": "sheet, wind, aerodynamics",
	"jelly": "shape matching cube",
	"fluid": "position based fluid",
	"pile":  "granular self collision",
}

const (
	stateMenu = iota
	statePresets
	stateSim
)

// menu picks a scenario and preset, then hands over to the live view.
type menu struct {
	registry  *scenario.Registry
	state     int
	cursor    int
	scenarios []string
	selected  string
	presets   []string
	live      Model
	err       error
}

func NewInteractiveApp(r *scenario.Registry) *menu {
	return &menu{registry: r, scenarios: r.ListScenarios()}
}

func (m menu) Init() tea.Cmd { return nil }

func (m menu) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.state == stateSim {
		next, cmd := m.live.Update(msg)
		m.live = next.(Model)
		return m, cmd
	}
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	items := m.scenarios
	if m.state == statePresets {
		items = m.presets
	}
	switch key.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.state, m.cursor = stateMenu, 0
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(items)-1 {
			m.cursor++
		}
	case "enter", " ":
		if len(items) == 0 {
			return m, nil
		}
		if m.state == stateMenu {
			m.selected = items[m.cursor]
			m.presets = append([]string{"default"}, config.ListPresets(m.selected)...)
			m.state, m.cursor = statePresets, 0
			return m, nil
		}
		return m.start(items[m.cursor])
	}
	return m, nil
}

func (m menu) start(preset string) (menu, tea.Cmd) {
	cfg := config.GetPreset(m.selected, preset)
	if cfg == nil {
		cfg = config.DefaultConfig()
		cfg.Scenario = m.selected
	}
	live, err := NewModel(m.registry, cfg)
	if err != nil {
		m.err = err
		return m, nil
	}
	m.live, m.state, m.err = live, stateSim, nil
	return m, m.live.Init()
}

func (m menu) View() string {
	if m.state == stateSim {
		return m.live.View()
	}
	var b strings.Builder
	title, sub, items := "FLEXSIM", "particle constraint solver", m.scenarios
	if m.state == statePresets {
		title, sub, items = strings.ToUpper(m.selected), scenarioInfo[m.selected], m.presets
	}
	b.WriteString("\n\n    " + titleStyle.Render(title) + "\n    " + subStyle.Render(sub) + "\n    " + subStyle.Render("─────────────────────────") + "\n\n")
	for i, name := range items {
		desc := ""
		if m.state == stateMenu {
			desc = scenarioInfo[name]
		}
		if i == m.cursor {
			b.WriteString(fmt.Sprintf("    %s %s  %s\n", cursorStyle.Render("▸"), selectedStyle.Render(fmt.Sprintf("%-12s", name)), descStyle.Render(desc)))
		} else {
			b.WriteString(fmt.Sprintf("    %s  %s\n", idleStyle.Render(fmt.Sprintf("  %-12s", name)), idleStyle.Render(desc)))
		}
	}
	if m.err != nil {
		b.WriteString("\n    " + descStyle.Render(m.err.Error()) + "\n")
	}
	b.WriteString("\n    " + keyStyle.Render("j/k") + idleStyle.Render(" navigate  ") + keyStyle.Render("enter") + idleStyle.Render(" select  ") + keyStyle.Render("esc") + idleStyle.Render(" back  ") + keyStyle.Render("q") + idleStyle.Render(" quit") + "\n")
	return b.String()
}

func RunInteractive(r *scenario.Registry) error {
	_, err := tea.NewProgram(NewInteractiveApp(r), tea.WithAltScreen()).Run()
	return err
}
