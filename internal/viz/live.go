package viz

import (
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/time/rate"

	"github.com/san-kum/flexsim/internal/config"
	"github.com/san-kum/flexsim/internal/metrics"
	"github.com/san-kum/flexsim/internal/scenario"
	"github.com/san-kum/flexsim/internal/solver"
)

const (
	width           = 80
	height          = 24
	historyCapacity = 600
	frameRate       = 60
	gifRate         = 15
)

type TickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(time.Second/frameRate, func(t time.Time) tea.Msg { return TickMsg(t) })
}

// Model steps a scene in real time and draws it.
type Model struct {
	registry *scenario.Registry
	cfg      *config.Config
	scene    *scenario.Scene
	updater  *solver.Updater
	energy   *metrics.KineticEnergy

	width, height int
	canvas        *Canvas
	camera        *Camera
	running       bool
	wind          bool
	simTime       float64
	energyHistory []float64
	err           error

	recording bool
	capture   *rate.Limiter
	frames    []*image.Paletted
	showHelp  bool
}

// NewModel builds cfg's scenario and frames the camera on it.
func NewModel(r *scenario.Registry, cfg *config.Config) (Model, error) {
	m := Model{
		registry: r,
		cfg:      cfg,
		width:    width,
		height:   height,
		canvas:   NewCanvas(width, height),
		camera:   NewCamera(),
		running:  true,
		wind:     true,
		capture:  rate.NewLimiter(gifRate, 1),
	}
	if err := m.reset(); err != nil {
		return Model{}, err
	}
	return m, nil
}

func (m *Model) reset() error {
	sc, err := m.registry.Build(m.cfg)
	if err != nil {
		return err
	}
	m.scene = sc
	m.updater = solver.NewUpdater(float32(m.cfg.Dt), m.cfg.Substeps, sc.Solver)
	m.updater.AdvanceWorld = true
	m.energy = metrics.NewKineticEnergy()
	m.simTime = 0
	m.energyHistory = m.energyHistory[:0]
	m.err = nil

	lo, hi := bounds(sc.Solver.Snapshot().Positions)
	if sc.Floor.Valid() {
		lo[1] = min(lo[1], 0)
	}
	m.camera.Frame(lo, hi)
	return nil
}

func bounds(ps []mgl32.Vec3) (lo, hi mgl32.Vec3) {
	if len(ps) == 0 {
		return mgl32.Vec3{-1, -1, -1}, mgl32.Vec3{1, 1, 1}
	}
	lo, hi = ps[0], ps[0]
	for _, p := range ps[1:] {
		for a := 0; a < 3; a++ {
			lo[a] = min(lo[a], p[a])
			hi[a] = max(hi[a], p[a])
		}
	}
	return lo, hi
}

func (m Model) Init() tea.Cmd { return tick() }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ":
			m.running = !m.running
		case "r":
			if err := m.reset(); err != nil {
				m.err = err
			}
		case "w":
			m.toggleWind()
		case "g":
			if m.recording {
				m.err = m.saveGIF("simulation.gif")
				m.recording = false
				m.frames = nil
			} else {
				m.recording = true
				m.frames = make([]*image.Paletted, 0)
			}
		case "?":
			m.showHelp = !m.showHelp
		case "t":
			NextTheme()
		case "left", "h":
			m.camera.Orbit(-0.1, 0)
		case "right", "l":
			m.camera.Orbit(0.1, 0)
		case "up", "k":
			m.camera.Orbit(0, 0.1)
		case "down", "j":
			m.camera.Orbit(0, -0.1)
		case "+", "=":
			m.camera.ZoomIn()
		case "-", "_":
			m.camera.ZoomOut()
		}
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
	case TickMsg:
		if m.running && m.err == nil {
			m.step(1.0 / frameRate)
		}
		m.draw()
		if m.recording && m.capture.Allow() {
			m.captureFrame()
		}
		return m, tick()
	}
	return m, nil
}

func (m *Model) resize(w, h int) {
	// the stats panel takes about 50 columns
	cw, ch := w-54, h-4
	if cw < 20 || ch < 8 {
		return
	}
	m.width, m.height = cw, ch
	m.canvas = NewCanvas(cw, ch)
}

// step advances the scene by one frame of wall time.
func (m *Model) step(frameDt float32) {
	steps, err := m.updater.Update(frameDt)
	if err != nil {
		m.err = err
		m.running = false
		return
	}
	if steps == 0 {
		return
	}
	s := m.scene.Solver
	m.simTime += float64(steps) * m.cfg.Dt
	m.energy.Reset()
	m.energy.Observe(s.Particles(), s.Stats(), m.simTime)
	m.energyHistory = append(m.energyHistory, m.energy.Value())
	if len(m.energyHistory) > historyCapacity {
		m.energyHistory = m.energyHistory[1:]
	}
}

func (m *Model) toggleWind() {
	m.wind = !m.wind
	wind := mgl32.Vec4{}
	if m.wind {
		wind = mgl32.Vec3(m.cfg.Scene.Wind).Vec4(0)
	}
	pd := m.scene.Solver.Particles()
	for _, i := range m.scene.Particles {
		pd.Wind[i] = wind
	}
}

func (m *Model) draw() {
	m.canvas.Clear()
	snap := m.scene.Solver.Snapshot()
	if m.scene.Floor.Valid() {
		// floor outline at y = 0
		const e = 2
		c := []mgl32.Vec3{{-e, 0, -e}, {e, 0, -e}, {e, 0, e}, {-e, 0, e}}
		for i := range c {
			RenderLine(m.canvas, m.camera, c[i], c[(i+1)%len(c)])
		}
	}
	RenderParticles(m.canvas, m.camera, snap.Positions, m.cfg.Scene.Radius)
}

func (m Model) View() string {
	st := themeStyles(CurrentTheme)
	canvasView := st.canvas.Render(m.canvas.String())

	status := "RUNNING"
	switch {
	case m.err != nil:
		status = "ERROR"
	case !m.running:
		status = "PAUSED"
	case m.recording:
		status = "RECORDING"
	}

	var s strings.Builder
	s.WriteString(st.header.Render(strings.ToUpper(m.scene.Name)) + "\n")
	s.WriteString(st.status.Render(status) + "\n\n")
	if m.err != nil {
		s.WriteString(st.warn.Render(m.err.Error()) + "\n\n")
	}
	if len(m.energyHistory) > 1 {
		s.WriteString(st.graph.Render(Plot(m.energyHistory, "Kinetic energy", 30, 4)) + "\n\n")
	}

	stats := m.scene.Solver.Stats()
	row := func(label, value string) {
		s.WriteString(st.label.Render(label) + st.value.Render(value) + "\n")
	}
	row("Time", fmt.Sprintf("%.2fs", m.simTime))
	row("Steps", fmt.Sprintf("%d", stats.Steps))
	row("Particles", fmt.Sprintf("%d", len(m.scene.Particles)))
	row("Contacts", fmt.Sprintf("%d / %d", stats.ParticleContacts, stats.ColliderContacts))
	row("Fluid pairs", fmt.Sprintf("%d", stats.FluidPairs))
	row("Sleeping", fmt.Sprintf("%d", stats.SleepingParticles))
	row("Overflow", fmt.Sprintf("%d", stats.BatchOverflow))
	row("Wind", fmt.Sprintf("%v", m.wind))
	row("Theme", CurrentTheme.Name)

	s.WriteString(st.help.Render("─────────────────────\nSP:Pause R:Reset Q:Quit\nT:Theme  G:Record W:Wind\n←↑↓→:Orbit +-:Zoom ?:Help"))
	mainView := lipgloss.JoinHorizontal(lipgloss.Top, canvasView, st.stats.Render(s.String()))
	if m.showHelp {
		return `
╔══════════════════════════════════════╗
║           KEYBOARD SHORTCUTS         ║
╠══════════════════════════════════════╣
║  Space    - Pause/Resume             ║
║  R        - Rebuild the scene        ║
║  Q        - Quit                     ║
║  W        - Toggle wind              ║
║  Arrows   - Orbit the camera         ║
║  + / -    - Zoom                     ║
║  G        - Toggle GIF recording     ║
║  T        - Cycle themes             ║
║  ?        - Toggle this help         ║
╚══════════════════════════════════════╝
` + "\n\n" + mainView
	}
	return mainView
}

// captureFrame rasterises the canvas, one 4x4 block per Braille dot.
func (m *Model) captureFrame() {
	const dotSize = 4
	sw, sh := m.canvas.Dots()
	img := image.NewPaletted(image.Rect(0, 0, sw*dotSize, sh*dotSize), color.Palette{color.Black, color.White})
	for y := 0; y < sh; y++ {
		for x := 0; x < sw; x++ {
			if !m.canvas.IsSet(x, y) {
				continue
			}
			for py := 0; py < dotSize; py++ {
				for px := 0; px < dotSize; px++ {
					img.SetColorIndex(x*dotSize+px, y*dotSize+py, 1)
				}
			}
		}
	}
	m.frames = append(m.frames, img)
}

func (m *Model) saveGIF(path string) error {
	if len(m.frames) == 0 {
		return nil
	}
	anim := gif.GIF{LoopCount: 0}
	for _, frame := range m.frames {
		anim.Image = append(anim.Image, frame)
		anim.Delay = append(anim.Delay, 100/gifRate)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return gif.EncodeAll(f, &anim)
}

// RunLive shows cfg's scenario until the user quits.
func RunLive(r *scenario.Registry, cfg *config.Config) error {
	m, err := NewModel(r, cfg)
	if err != nil {
		return err
	}
	_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}
