package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/diffbot/internal/config"
	"github.com/san-kum/diffbot/internal/dynamo"
	"github.com/san-kum/diffbot/internal/hal"
	"github.com/san-kum/diffbot/internal/integrators"
	"github.com/san-kum/diffbot/internal/metrics"
	"github.com/san-kum/diffbot/internal/optim"
	"github.com/san-kum/diffbot/internal/plant"
	"github.com/san-kum/diffbot/internal/robot"
	"github.com/san-kum/diffbot/internal/safety"
	"github.com/san-kum/diffbot/internal/storage"
	"github.com/san-kum/diffbot/internal/viz"
)

var (
	dataDir    string
	logLevel   string
	devLog     bool
	dt         float64
	duration   float64
	integrator string
	configFile string
	preset     string
	realtime   bool
	plotAfter  bool
	noSave     bool
	grace      float64
	columns    string
	width      int
	outFile    string
	omegaGrid  string
	zetaGrid   string
	fTaskGrid  string
	sGrid      string
	workers    int
)

var traceColumns = []string{
	"q_ref_l", "q_ref_r", "q_l", "q_r", "qd_l", "qd_r", "torque_l", "torque_r", "x", "y", "phi",
}

func main() {
	rootCmd := &cobra.Command{
		Use:          "diffbot",
		Short:        "differential-drive robot control and safety core",
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".diffbot", "data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&devLog, "dev", false, "human readable development logging")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "power up the robot and run it against the simulated plant",
		Args:  cobra.NoArgs,
		RunE:  runRobot,
	}
	runCmd.Flags().Float64Var(&dt, "dt", config.DefaultDt, "task period in seconds")
	runCmd.Flags().Float64Var(&duration, "time", config.DefaultDuration, "duration in seconds")
	runCmd.Flags().StringVar(&integrator, "integrator", "rk4", fmt.Sprintf("plant integrator %v", integrators.Names()))
	runCmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	runCmd.Flags().StringVar(&preset, "preset", "default", "preset configuration")
	runCmd.Flags().BoolVar(&realtime, "realtime", false, "tick on the wall clock instead of free running")
	runCmd.Flags().BoolVar(&plotAfter, "plot", false, "plot the run when done")
	runCmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the run")
	runCmd.Flags().Float64Var(&grace, "grace", 5, "seconds allowed to reach SystemOff after the run ends")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot run traces",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringVar(&columns, "columns", "x,phi,qd_l,torque_l", "comma separated trace columns")
	plotCmd.Flags().IntVar(&width, "width", 80, "plot width")

	levelsCmd := &cobra.Command{
		Use:   "levels",
		Short: "print the safety level table",
		Args:  cobra.NoArgs,
		RunE:  printLevels,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range config.ListPresets() {
				cfg := config.GetPreset(name)
				fmt.Printf("  %-10s %s\n", name, viz.Subtle.Render(describe(cfg)))
			}
			return nil
		},
	}

	configCmd := &cobra.Command{
		Use:   "config [preset]",
		Short: "print a preset as yaml",
		Args:  cobra.MaximumNArgs(1),
		RunE:  dumpConfig,
	}
	configCmd.Flags().StringVarP(&outFile, "out", "o", "", "write to file instead of stdout")

	tuneCmd := &cobra.Command{
		Use:   "tune",
		Short: "grid search the controller gains for the lowest tracking error",
		Args:  cobra.NoArgs,
		RunE:  tuneGains,
	}
	tuneCmd.Flags().StringVar(&preset, "preset", "default", "preset configuration")
	tuneCmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	tuneCmd.Flags().Float64Var(&dt, "dt", config.DefaultDt, "task period in seconds")
	tuneCmd.Flags().Float64Var(&duration, "time", config.DefaultDuration, "duration in seconds")
	tuneCmd.Flags().StringVar(&integrator, "integrator", "rk4", "plant integrator")
	tuneCmd.Flags().StringVar(&omegaGrid, "omega0", "5,10,15,20", "comma separated omega0 values")
	tuneCmd.Flags().StringVar(&zetaGrid, "zeta", "0.5,0.7,1.0", "comma separated zeta values")
	tuneCmd.Flags().StringVar(&fTaskGrid, "f-task", "50,100,200", "comma separated f_task values (discrete form)")
	tuneCmd.Flags().StringVar(&sGrid, "s", "3,5,8", "comma separated s values (discrete form)")
	tuneCmd.Flags().IntVar(&workers, "workers", 0, "concurrent evaluations (0 = one per CPU)")

	rootCmd.AddCommand(runCmd, listCmd, plotCmd, levelsCmd, presetsCmd, configCmd, tuneCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger() (*zap.SugaredLogger, error) {
	level, err := zap.ParseAtomicLevel(logLevel)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	if devLog {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = level
	l, err := zc.Build()
	if err != nil {
		return nil, err
	}
	return l.Sugar(), nil
}

// loadConfig layers preset, config file and explicit flags, in that order.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.GetPreset(preset)
	if cfg == nil {
		return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
	}

	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	if cmd.Flags().Changed("dt") {
		cfg.Dt = dt
	}
	if cmd.Flags().Changed("time") {
		cfg.Duration = duration
	}
	if cmd.Flags().Changed("integrator") {
		cfg.Integrator = integrator
	}
	return cfg, cfg.Validate()
}

func describe(cfg *config.Config) string {
	return fmt.Sprintf("%.0fs, dt %g, %s controller, %s plant, %d script steps",
		cfg.Duration, cfg.Dt, cfg.Controller.Form, cfg.Integrator, len(cfg.Script))
}

// recorder collects the trace, level changes and run metrics from the
// robot's tick callback.
type recorder struct {
	trace   *storage.Trace
	changes []storage.LevelChange
	metrics []dynamo.Metric
	plant   *plant.Sim
	last    string
}

func (r *recorder) observe(s robot.Sample) {
	lvl := s.Level.ID()
	if lvl != r.last {
		r.changes = append(r.changes, storage.LevelChange{Time: s.Time, From: r.last, To: lvl})
		r.last = lvl
	}

	x := r.plant.State()
	u := dynamo.Control{s.Torque[0], s.Torque[1]}
	for _, m := range r.metrics {
		m.Observe(x, u, s.Time)
	}

	r.trace.Append(s.Time, lvl,
		s.Reference[0], s.Reference[1],
		s.Measured[0], s.Measured[1],
		s.Speed[0], s.Speed[1],
		s.Torque[0], s.Torque[1],
		s.Pose.GrR[0], s.Pose.GrR[1], s.Pose.Phi,
	)
}

func runRobot(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	sim, err := plant.NewSim(plant.NewWheels(cfg.Plant.Inertia, cfg.Plant.Friction), cfg.Integrator, cfg.Dt)
	if err != nil {
		return err
	}
	io := hal.NewSim(
		[]string{cfg.HAL.ButtonPause, cfg.HAL.ButtonMode},
		[]string{cfg.HAL.LEDGreen, cfg.HAL.LEDRed},
	)

	speed := max(abs(cfg.Motion.LeftSpeed), abs(cfg.Motion.RightSpeed))
	rec := &recorder{
		trace:   storage.NewTrace(traceColumns...),
		metrics: metrics.Defaults(cfg.Plant.Inertia, 1.2*speed),
		plant:   sim,
	}

	reg := prometheus.NewRegistry()
	r, err := robot.New(cfg, robot.Options{
		HAL:      io,
		Plant:    sim,
		Logger:   logger,
		Registry: reg,
		OnTick:   rec.observe,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Println(viz.Title.Render("diffbot") + " " + viz.Subtle.Render(describe(cfg)))
	start := time.Now()

	r.PowerUp()
	if realtime {
		runCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.Duration*float64(time.Second)))
		err = r.Run(runCtx)
		cancel()
	} else {
		_, err = r.RunSteps(ctx, cfg.Ticks())
	}
	if err != nil && ctx.Err() == nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	// Leave the robot in SystemOff: abort, then brake and shut down.
	r.Shutdown()
	if _, err := r.RunSteps(context.Background(), int(grace/cfg.Dt)); err != nil {
		return err
	}
	if r.Level() != r.Levels().SystemOff {
		logger.Warnw("Robot did not reach SystemOff within the grace period", "level", r.Level().ID(), "grace", grace)
	}
	elapsed := time.Since(start)

	pose := r.Pipeline().Pose()
	meta := storage.RunMetadata{
		Preset:         preset,
		Timestamp:      time.Now(),
		Dt:             cfg.Dt,
		Duration:       cfg.Duration,
		Ticks:          int(r.Executor().Ticks()),
		Integrator:     cfg.Integrator,
		ControllerForm: cfg.Controller.Form,
		FinalLevel:     r.Level().ID(),
		FinalPose:      storage.Pose{X: pose.GrR[0], Y: pose.GrR[1], Phi: pose.Phi},
		Levels:         rec.changes,
		Metrics:        make(map[string]float64),
	}
	for _, m := range rec.metrics {
		meta.Metrics[m.Name()] = m.Value()
	}

	fmt.Printf("completed %d ticks in %v\n", meta.Ticks, elapsed.Round(time.Millisecond))
	printSummary(r, io, cfg, meta)

	if err := printRegistry(reg); err != nil {
		return err
	}

	if !noSave {
		st := storage.New(dataDir)
		if err := st.Init(); err != nil {
			return err
		}
		id, err := st.Save(meta, rec.trace)
		if err != nil {
			return err
		}
		fmt.Println(viz.Metric("run id", id))
	}

	if plotAfter {
		out, err := viz.Plot(rec.trace, []string{"x", "phi", "qd_l", "torque_l"}, viz.PlotOptions{})
		if err != nil {
			return err
		}
		fmt.Print(out)
	}
	return nil
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func printSummary(r *robot.Robot, io *hal.Sim, cfg *config.Config, meta storage.RunMetadata) {
	green, _ := io.Output(cfg.HAL.LEDGreen)
	red, _ := io.Output(cfg.HAL.LEDRed)

	var lines []string
	lines = append(lines, viz.Metric("level", viz.LevelBadge(r.Level().Name(), green, red)))
	lines = append(lines, viz.Metric("pose", fmt.Sprintf("x=%.4f y=%.4f phi=%.4f", meta.FinalPose.X, meta.FinalPose.Y, meta.FinalPose.Phi)))
	for _, name := range sortedKeys(meta.Metrics) {
		lines = append(lines, viz.Metric(name, fmt.Sprintf("%.6f", meta.Metrics[name])))
	}
	var path []string
	for _, c := range meta.Levels {
		path = append(path, c.To)
	}
	lines = append(lines, viz.Metric("levels", strings.Join(path, " → ")))
	fmt.Println(viz.Panel.Render(strings.Join(lines, "\n")))
}

func printRegistry(reg *prometheus.Registry) error {
	samples, err := metrics.Snapshot(reg)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "METRIC\tLABELS\tVALUE")
	for _, s := range samples {
		if s.Value == 0 {
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%g\n", s.Name, s.Labels, s.Value)
	}
	return w.Flush()
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPRESET\tTIME\tDURATION\tDT\tINTEG\tCTRL\tFINAL")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.2fs\t%.4fs\t%s\t%s\t%s\n",
			shortID(run.ID),
			run.Preset,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Duration,
			run.Dt,
			run.Integrator,
			run.ControllerForm,
			run.FinalLevel,
		)
	}

	return w.Flush()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func plotRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runID, err := st.Resolve(args[0])
	if err != nil {
		return err
	}
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	trace, err := st.LoadTrace(runID)
	if err != nil {
		return err
	}

	fmt.Println(viz.HeaderStyle.Render("run " + meta.ID))
	fmt.Println(viz.Metric("samples", fmt.Sprint(trace.Len())))
	fmt.Println(viz.Metric("levels", viz.Timeline(trace)))
	fmt.Println()

	out, err := viz.Plot(trace, strings.Split(columns, ","), viz.PlotOptions{Width: width})
	if err != nil {
		return err
	}
	fmt.Print(out)
	return nil
}

func printLevels(cmd *cobra.Command, args []string) error {
	cfg := config.DefaultConfig()
	noop := func() {}
	s, err := robot.NewSafety(cfg.Supervisor, cfg.HAL, robot.Hooks{
		StartControl: noop,
		StopControl:  noop,
		StopExecutor: noop,
		MotorsHalted: func() bool { return true },
	})
	if err != nil {
		return err
	}

	props := s.Properties
	for _, l := range props.Levels() {
		green := outputValue(l, cfg.HAL.LEDGreen)
		red := outputValue(l, cfg.HAL.LEDRed)
		op := ""
		if s.Levels.Operational(l) {
			op = viz.Subtle.Render(" (control running)")
		}
		fmt.Printf("%d %s%s\n", l.Index(), viz.LevelBadge(l.ID(), green, red), op)

		for _, name := range props.Inputs() {
			a, _ := l.InputAction(name)
			if a.Checked {
				fmt.Printf("    check %s == %t -> %s\n", name, a.Expected, a.Event.ID())
			}
		}
		for _, t := range props.Transitions(l) {
			tag := ""
			if t.Broadcast {
				tag = viz.Subtle.Render(" [range]")
			}
			if t.Kind == safety.Private {
				tag += viz.Subtle.Render(" [private]")
			}
			fmt.Printf("    %-15s -> %s%s\n", t.Event.ID(), t.Target.ID(), tag)
		}
	}
	return nil
}

func outputValue(l *safety.Level, name string) bool {
	a, ok := l.OutputAction(name)
	return ok && a.Value
}

func dumpConfig(cmd *cobra.Command, args []string) error {
	name := "default"
	if len(args) > 0 {
		name = args[0]
	}
	cfg := config.GetPreset(name)
	if cfg == nil {
		return fmt.Errorf("unknown preset: %s (available: %v)", name, config.ListPresets())
	}
	if outFile != "" {
		return config.Save(outFile, cfg)
	}
	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return err
	}
	return enc.Close()
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func parseGrid(flag, s string) ([]float64, error) {
	var out []float64
	for _, part := range strings.Split(s, ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, fmt.Errorf("--%s: %w", flag, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func tuneGains(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	var grids optim.Grids
	for _, p := range []struct {
		flag, value string
		dst         *[]float64
	}{
		{"omega0", omegaGrid, &grids.Omega0},
		{"zeta", zetaGrid, &grids.Zeta},
		{"f-task", fTaskGrid, &grids.FTask},
		{"s", sGrid, &grids.S},
	} {
		if *p.dst, err = parseGrid(p.flag, p.value); err != nil {
			return err
		}
	}

	g, err := optim.NewTuningSearch(cfg, grids)
	if err != nil {
		return err
	}
	g.SetWorkers(workers)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	start := time.Now()
	res, err := g.Search(ctx, optim.TrackingObjective(cfg))
	if err != nil {
		return err
	}

	fmt.Printf("evaluated %d gain sets in %v (%d failed)\n", res.Evaluated, time.Since(start).Round(time.Millisecond), res.Failed)
	lines := []string{viz.Metric("form", cfg.Controller.Form)}
	for _, name := range sortedKeys(res.Params) {
		lines = append(lines, viz.Metric(name, fmt.Sprintf("%g", res.Params[name])))
	}
	lines = append(lines, viz.Metric("rms tracking error", fmt.Sprintf("%.6f rad", res.Value)))
	fmt.Println(viz.Panel.Render(strings.Join(lines, "\n")))
	return nil
}
