package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/san-kum/flexsim/internal/config"
	"github.com/san-kum/flexsim/internal/export"
	"github.com/san-kum/flexsim/internal/metrics"
	"github.com/san-kum/flexsim/internal/scenario"
	"github.com/san-kum/flexsim/internal/solver"
	"github.com/san-kum/flexsim/internal/storage"
	"github.com/san-kum/flexsim/internal/viz"
)

var (
	dataDir    string
	debug      bool
	configFile string
	preset     string
	dt         float64
	duration   float64
	substeps   int
	seed       int64
	count      int
	sampleStep int
	plot       bool
	plotAxis   int
	particle   int
	trajectory int
	outFile    string
	copies     int
	workers    int
	frameIndex int
	camYaw     float64
	camPitch   float64
	theme      string

	logger = zap.NewNop()
)

func unwrap[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "flexsim",
		Short: "particle constraint simulation lab",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if debug {
				logger = unwrap(zap.NewDevelopment())
			} else {
				logger = unwrap(zap.NewProduction())
			}
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logger.Sync()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return viz.RunInteractive(scenario.NewRegistry())
		},
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".flexsim", "data directory")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug log output")

	runCmd := &cobra.Command{
		Use:   "run [scenario]",
		Short: "run a scenario and store the trajectory",
		Args:  cobra.ExactArgs(1),
		RunE:  runScenario,
	}
	sceneFlags(runCmd)
	runCmd.Flags().IntVar(&sampleStep, "sample", 1, "record a frame every n steps")
	runCmd.Flags().BoolVar(&plot, "plot", false, "plot the first particle after the run")
	runCmd.Flags().IntVar(&plotAxis, "axis", 1, "coordinate to plot (0 x, 1 y, 2 z)")

	liveCmd := &cobra.Command{
		Use:   "live [scenario]",
		Short: "run a scenario with live visualization",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, args[0])
			if err != nil {
				return err
			}
			if theme != "" {
				viz.SetTheme(theme)
			}
			return viz.RunLive(scenario.NewRegistry(), cfg)
		},
	}
	sceneFlags(liveCmd)
	liveCmd.Flags().StringVar(&theme, "theme", "", fmt.Sprintf("color theme %v", viz.ThemeNames()))

	benchCmd := &cobra.Command{
		Use:   "bench [scenario]",
		Short: "step independent copies of a scenario concurrently",
		Args:  cobra.ExactArgs(1),
		RunE:  benchScenario,
	}
	sceneFlags(benchCmd)
	benchCmd.Flags().IntVar(&copies, "copies", 4, "number of independent solvers")
	benchCmd.Flags().IntVar(&workers, "workers", 0, "solvers stepped at once (0 for all)")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		RunE:  listRuns,
	}

	scenariosCmd := &cobra.Command{
		Use:   "scenarios",
		Short: "list available scenarios",
		Run: func(cmd *cobra.Command, args []string) {
			for _, name := range scenario.NewRegistry().ListScenarios() {
				fmt.Println(name)
			}
		},
	}

	presetsCmd := &cobra.Command{
		Use:   "presets [scenario]",
		Short: "list available presets for a scenario",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			presets := config.ListPresets(args[0])
			if len(presets) == 0 {
				fmt.Printf("no presets for scenario: %s\n", args[0])
				return nil
			}
			fmt.Printf("presets for %s:\n", args[0])
			for _, p := range presets {
				fmt.Printf("  %s\n", p)
			}
			return nil
		},
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot one coordinate of a stored particle",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().IntVar(&particle, "particle", 0, "particle column to plot")
	plotCmd.Flags().IntVar(&plotAxis, "axis", 1, "coordinate to plot (0 x, 1 y, 2 z)")

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export a stored run to JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}
	exportCmd.Flags().StringVarP(&outFile, "out", "o", "", "output file (stdout when empty)")

	exportSVGCmd := &cobra.Command{
		Use:   "export-svg [run_id]",
		Short: "render a stored frame or trajectory to SVG",
		Args:  cobra.ExactArgs(1),
		RunE:  exportSVG,
	}
	exportSVGCmd.Flags().StringVarP(&outFile, "out", "o", "", "output file (stdout when empty)")
	exportSVGCmd.Flags().IntVar(&frameIndex, "frame", -1, "frame to render (negative counts from the end)")
	exportSVGCmd.Flags().IntVar(&trajectory, "trajectory", -1, "draw the x-y path of this particle column instead of a frame")
	exportSVGCmd.Flags().Float64Var(&camYaw, "yaw", 0.4, "camera yaw")
	exportSVGCmd.Flags().Float64Var(&camPitch, "pitch", 0.3, "camera pitch")

	rootCmd.AddCommand(runCmd, liveCmd, benchCmd, listCmd, scenariosCmd, presetsCmd, plotCmd, exportCmd, exportSVGCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func sceneFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml or toml)")
	cmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
	cmd.Flags().Float64Var(&dt, "dt", config.DefaultDt, "step length")
	cmd.Flags().Float64Var(&duration, "time", config.DefaultDuration, "duration")
	cmd.Flags().IntVar(&substeps, "substeps", config.DefaultSubsteps, "substeps per step")
	cmd.Flags().Int64Var(&seed, "seed", time.Now().UnixNano(), "random seed")
	cmd.Flags().IntVar(&count, "count", config.DefaultCount, "particles per scene edge")
}

// resolveConfig starts from a preset, a config file or the defaults, then
// applies any flag the user set explicitly.
func resolveConfig(cmd *cobra.Command, name string) (*config.Config, error) {
	var cfg *config.Config
	switch {
	case configFile != "":
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	case preset != "":
		cfg = config.GetPreset(name, preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets(name))
		}
	default:
		cfg = config.DefaultConfig()
	}
	cfg.Scenario = name

	flags := cmd.Flags()
	if flags.Changed("dt") {
		cfg.Dt = dt
	}
	if flags.Changed("time") {
		cfg.Duration = duration
	}
	if flags.Changed("substeps") {
		cfg.Substeps = substeps
	}
	if flags.Changed("seed") || cfg.Seed == 0 {
		cfg.Seed = seed
	}
	if flags.Changed("count") {
		cfg.Scene.Count = count
	}
	return cfg, cfg.Validate()
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func runScenario(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, args[0])
	if err != nil {
		return err
	}

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	sc, err := scenario.NewRegistry().Build(cfg, solver.WithLogger(logger))
	if err != nil {
		return err
	}
	params, _ := cfg.SolverParameters()
	exp := scenario.NewExperiment(sc, metrics.Default(params.Gravity)...)
	exp.SampleEvery(sampleStep)

	logger.Info("Run start",
		zap.String("scenario", cfg.Scenario),
		zap.Int("particles", len(sc.Particles)),
		zap.Int("steps", cfg.Steps()))
	fmt.Printf("running %s simulation...\n", cfg.Scenario)

	ctx, cancel := signalContext()
	defer cancel()
	start := time.Now()
	result, err := exp.Run(ctx)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	runID, err := st.Save(cfg, result)
	if err != nil {
		return err
	}

	stats := sc.Solver.Stats()
	fmt.Printf("completed in %v\n", elapsed)
	fmt.Printf("run id: %s\n", runID)
	fmt.Printf("steps: %d, particles: %d\n", stats.Steps, len(sc.Particles))
	printMetrics(result.Metrics)

	if plot && len(result.Frames) > 0 {
		fmt.Println()
		fmt.Println(viz.Plot(viz.Column(result.Frames, 0, plotAxis), axisCaption(0, plotAxis), 80, 12))
	}
	return nil
}

func printMetrics(ms map[string]float64) {
	names := make([]string, 0, len(ms))
	for name := range ms {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Println("\nmetrics:")
	for _, name := range names {
		fmt.Printf("  %s: %.6f\n", name, ms[name])
	}
}

func axisCaption(p, axis int) string {
	return fmt.Sprintf("particle %d %c vs time", p, "xyz"[axis%3])
}

func benchScenario(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, args[0])
	if err != nil {
		return err
	}
	if copies < 1 {
		return fmt.Errorf("copies must be positive, got %d", copies)
	}

	r := scenario.NewRegistry()
	solvers := make([]*solver.Solver, copies)
	particles := 0
	for i := range solvers {
		sc, err := r.Build(cfg, solver.WithLogger(logger.With(zap.Int("copy", i))))
		if err != nil {
			return err
		}
		solvers[i] = sc.Solver
		particles += len(sc.Particles)
	}

	ens := solver.NewEnsemble(solvers...)
	ens.SetLimit(workers)

	ctx, cancel := signalContext()
	defer cancel()
	steps := cfg.Steps()
	start := time.Now()
	if err := ens.Run(ctx, steps, float32(cfg.Dt), cfg.Substeps); err != nil {
		return err
	}
	elapsed := time.Since(start)

	total := steps * copies
	fmt.Printf("scenario: %s\n", cfg.Scenario)
	fmt.Printf("solvers: %d, particles: %d, steps each: %d\n", copies, particles, steps)
	fmt.Printf("elapsed: %v\n", elapsed)
	fmt.Printf("steps/sec: %.0f\n", float64(total)/elapsed.Seconds())
	fmt.Printf("realtime factor: %.2fx\n", cfg.Duration*float64(copies)/elapsed.Seconds())
	return nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	runs, err := storage.New(dataDir).List()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSCENARIO\tTIME\tDURATION\tDT\tSUBSTEPS\tPARTICLES")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.2fs\t%.4fs\t%d\t%d\n",
			run.ID,
			run.Scenario,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Duration,
			run.Dt,
			run.Substeps,
			run.Particles,
		)
	}
	return w.Flush()
}

// loadRun rebuilds a result from a stored run.
func loadRun(runID string) (*config.Config, *scenario.Result, error) {
	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return nil, nil, err
	}
	times, frames, err := st.LoadFrames(runID)
	if err != nil {
		return nil, nil, err
	}
	cfg := meta.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
		cfg.Scenario, cfg.Dt, cfg.Duration, cfg.Substeps = meta.Scenario, meta.Dt, meta.Duration, meta.Substeps
	}
	return cfg, &scenario.Result{
		Scenario: meta.Scenario,
		Times:    times,
		Frames:   frames,
		Metrics:  meta.Metrics,
	}, nil
}

func plotRun(cmd *cobra.Command, args []string) error {
	_, res, err := loadRun(args[0])
	if err != nil {
		return err
	}
	series := viz.Column(res.Frames, particle, plotAxis)
	if len(series) == 0 {
		return fmt.Errorf("no data to plot")
	}
	fmt.Printf("run: %s\n", args[0])
	fmt.Printf("scenario: %s\n", res.Scenario)
	fmt.Printf("samples: %d\n\n", len(series))
	fmt.Println(viz.Plot(series, axisCaption(particle, plotAxis), 80, 12))
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	cfg, res, err := loadRun(args[0])
	if err != nil {
		return err
	}
	if outFile == "" {
		return storage.WriteJSON(os.Stdout, cfg, res)
	}
	if err := storage.ExportJSON(outFile, cfg, res); err != nil {
		return err
	}
	fmt.Printf("exported to %s\n", outFile)
	return nil
}

func exportSVG(cmd *cobra.Command, args []string) error {
	cfg, res, err := loadRun(args[0])
	if err != nil {
		return err
	}
	if len(res.Frames) == 0 {
		return fmt.Errorf("run %s has no frames", args[0])
	}

	const width, height = 800, 600
	var svg string
	if trajectory >= 0 {
		svg = export.TrajectoryToSVG(res.Frames, trajectory, 0, 1, width, height, string(viz.CurrentTheme.Secondary))
	} else {
		k := frameIndex
		if k < 0 {
			k += len(res.Frames)
		}
		if k < 0 || k >= len(res.Frames) {
			return fmt.Errorf("frame %d out of range [0, %d)", frameIndex, len(res.Frames))
		}
		frame := res.Frames[k]
		if len(frame) == 0 {
			return fmt.Errorf("frame %d is empty", k)
		}
		cam := viz.NewCamera()
		lo, hi := frame[0], frame[0]
		for _, p := range frame {
			for a := 0; a < 3; a++ {
				lo[a], hi[a] = min(lo[a], p[a]), max(hi[a], p[a])
			}
		}
		cam.Frame(lo, hi)
		cam.Orbit(float32(camYaw), float32(camPitch)-cam.Pitch)
		svg = export.SnapshotToSVG(frame, cam, width, height, cfg.Scene.Radius, string(viz.CurrentTheme.Primary))
	}
	if svg == "" {
		return fmt.Errorf("nothing to render")
	}

	if outFile == "" {
		fmt.Println(svg)
		return nil
	}
	if err := os.WriteFile(outFile, []byte(svg), 0644); err != nil {
		return err
	}
	fmt.Printf("exported to %s\n", outFile)
	return nil
}
