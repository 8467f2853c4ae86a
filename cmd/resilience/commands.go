package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/GoSim-25-26J-441/resilience-core/internal/engine"
	"github.com/GoSim-25-26J-441/resilience-core/internal/improvement"
	"github.com/GoSim-25-26J-441/resilience-core/pkg/config"
	"github.com/GoSim-25-26J-441/resilience-core/pkg/logger"
	"github.com/GoSim-25-26J-441/resilience-core/pkg/models"
)

// estimateOptions holds the flags of the estimate command. A flag only
// overrides the scenario when it is set on the command line.
type estimateOptions struct {
	samples   int
	pFail     float64
	model     string
	seed      int64
	workers   int
	chunkSize int
	repl      bool
	out       string
	precision int
	format    string
	progress  bool
}

func newRootCmd() *cobra.Command {
	var logLevel string
	root := &cobra.Command{
		Use:   "resilience",
		Short: "Estimate microservice availability under random container failures",
		Long: `resilience runs a Monte-Carlo fault-injection estimate over a service
dependency graph: every trial kills a fraction of the containers and checks
which endpoints can still reach all the services they need.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger.SetDefault(logger.NewText(logLevel, cmd.ErrOrStderr()))
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	root.AddCommand(newEstimateCmd(), newValidateCmd(), newCompareCmd(), newSweepCmd())
	return root
}

func newEstimateCmd() *cobra.Command {
	opts := &estimateOptions{}
	cmd := &cobra.Command{
		Use:   "estimate <scenario.yaml>",
		Short: "Run the estimator on a scenario and print the report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEstimate(cmd, args[0], opts)
		},
	}

	f := cmd.Flags()
	f.IntVar(&opts.samples, "samples", 0, "number of trials (default: scenario, else 500000)")
	f.Float64Var(&opts.pFail, "p-fail", 0, "fraction of containers killed per trial (default: scenario, else 0.30)")
	f.StringVar(&opts.model, "model", "", "failure model: without_replacement or independent")
	f.Int64Var(&opts.seed, "seed", 0, "random seed (default: scenario, else 16)")
	f.IntVar(&opts.workers, "workers", 0, "worker goroutines (default: GOMAXPROCS)")
	f.IntVar(&opts.chunkSize, "chunk-size", 0, "trials per work unit")
	f.BoolVar(&opts.repl, "repl", false, "use the scenario's replica table")
	f.StringVarP(&opts.out, "out", "o", "", "also write the JSON report to this file")
	f.IntVar(&opts.precision, "precision", 3, "decimal places of the estimates, negative for full precision")
	f.StringVar(&opts.format, "format", "json", "output format: json or text")
	f.BoolVar(&opts.progress, "progress", false, "report progress on stderr")
	return cmd
}

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <scenario.yaml>",
		Short: "Check a scenario without running it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scenario, err := config.LoadScenario(args[0])
			if err != nil {
				return err
			}
			eng, err := engine.FromScenario(scenario)
			if err != nil {
				return err
			}
			p := eng.Params()
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (client %s, %d endpoints, model %s, p_fail %g, %d samples, seed %d)\n",
				args[0], p.Client, len(scenario.Endpoints), p.Model, p.PFail, p.Samples, p.Seed)
			return nil
		},
	}
	return cmd
}

// applyOverrides copies the flags set on the command line into the scenario
func applyOverrides(cmd *cobra.Command, scenario *config.Scenario, opts *estimateOptions) error {
	const op = "resilience estimate"
	flags := cmd.Flags()
	sim := &scenario.Simulation

	if flags.Changed("samples") {
		if opts.samples <= 0 {
			return models.NewConfigurationError(op, "--samples must be positive, got %d", opts.samples)
		}
		sim.SetSamples(opts.samples)
	}
	if flags.Changed("p-fail") {
		if !(opts.pFail > 0 && opts.pFail <= 1) {
			return models.NewConfigurationError(op, "--p-fail must be in (0, 1], got %v", opts.pFail)
		}
		sim.SetPFail(opts.pFail)
	}
	if flags.Changed("model") {
		sim.Model = opts.model
	}
	if flags.Changed("seed") {
		seed := opts.seed
		sim.Seed = &seed
	}
	if flags.Changed("workers") {
		sim.Workers = opts.workers
	}
	if flags.Changed("chunk-size") {
		sim.ChunkSize = opts.chunkSize
	}
	if flags.Changed("repl") {
		scenario.Replication.Enabled = opts.repl
	}
	return nil
}

func runEstimate(cmd *cobra.Command, path string, opts *estimateOptions) error {
	if opts.format != "json" && opts.format != "text" {
		return fmt.Errorf("unknown output format %q", opts.format)
	}

	scenario, err := config.LoadScenario(path)
	if err != nil {
		return err
	}
	if err := applyOverrides(cmd, scenario, opts); err != nil {
		return err
	}

	eng, err := engine.FromScenario(scenario)
	if err != nil {
		return err
	}
	if opts.progress {
		eng.OnProgress(progressPrinter(cmd.ErrOrStderr()))
	}

	report, err := eng.Run(cmd.Context())
	if err != nil {
		return err
	}
	if opts.precision >= 0 {
		report = report.Round(opts.precision)
	}

	raw, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	raw = append(raw, '\n')
	if opts.out != "" {
		if err := os.WriteFile(opts.out, raw, 0o644); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
	}

	if opts.format == "text" {
		return writeTextReport(cmd.OutOrStdout(), report)
	}
	_, err = cmd.OutOrStdout().Write(raw)
	return err
}

// progressPrinter reports every whole ten percent of finished trials
func progressPrinter(w io.Writer) engine.ProgressFunc {
	lastDecile := 0
	return func(done, total int) {
		decile := done * 10 / total
		if decile == lastDecile {
			return
		}
		lastDecile = decile
		fmt.Fprintf(w, "progress: %d/%d trials (%d%%)\n", done, total, decile*10)
	}
}

func writeTextReport(w io.Writer, r *models.Report) error {
	fmt.Fprintf(w, "client %s, model %s, p_fail %g, %d samples, seed %d, %d containers",
		r.Client, r.Model, r.PFail, r.Samples, r.Seed, r.TotalContainers)
	if r.KilledPerTrial > 0 {
		fmt.Fprintf(w, ", %d killed per trial", r.KilledPerTrial)
	}
	fmt.Fprintln(w)
	if r.Degenerate {
		fmt.Fprintln(w, "warning: no containers to fail, every service stays available")
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ENDPOINT\tWEIGHT\tAVAILABILITY\tCI95")
	for _, ep := range r.Endpoints {
		fmt.Fprintf(tw, "%s\t%g\t%g\t±%g\n", ep.Name, ep.Weight, ep.Probability, ep.CI95)
	}
	fmt.Fprintf(tw, "R_avg\t\t%g\t±%g\n", r.RAvg, r.RAvgCI95)
	return tw.Flush()
}

func newCompareCmd() *cobra.Command {
	var (
		samples   int
		precision int
	)
	cmd := &cobra.Command{
		Use:   "compare <scenario.yaml>",
		Short: "Compare the scenario without and with its replica table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scenario, err := config.LoadScenario(args[0])
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("samples") {
				if samples <= 0 {
					return models.NewConfigurationError("resilience compare", "--samples must be positive, got %d", samples)
				}
				scenario.Simulation.SetSamples(samples)
			}

			c, err := improvement.CompareReplication(cmd.Context(), scenario)
			if err != nil {
				return err
			}
			if precision >= 0 {
				c.Baseline = c.Baseline.Round(precision)
				c.Candidate = c.Candidate.Round(precision)
			}

			w := cmd.OutOrStdout()
			tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ENDPOINT\tNO REPL\tREPL\tDIFF\tSIGNIFICANT")
			for _, ep := range c.Endpoints {
				fmt.Fprintf(tw, "%s\t%.*f\t%.*f\t%+.*f\t%t\n", ep.Name,
					digits(precision), ep.Baseline, digits(precision), ep.Candidate, digits(precision), ep.Diff, ep.Significant)
			}
			fmt.Fprintf(tw, "R_avg\t%g\t%g\t%+.*f\t%t\n",
				c.Baseline.RAvg, c.Candidate.RAvg, digits(precision), c.RAvgDiff, c.Significant)
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(w, "containers: %d -> %d\n", c.Baseline.TotalContainers, c.Candidate.TotalContainers)
			return nil
		},
	}
	f := cmd.Flags()
	f.IntVar(&samples, "samples", 0, "number of trials per run")
	f.IntVar(&precision, "precision", 3, "decimal places of the estimates, negative for full precision")
	return cmd
}

func newSweepCmd() *cobra.Command {
	var (
		samples        int
		from, to, step float64
		parallel       int
		repl           bool
		format         string
	)
	cmd := &cobra.Command{
		Use:   "sweep <scenario.yaml>",
		Short: "Estimate the scenario over a range of failure fractions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "json" && format != "text" {
				return fmt.Errorf("unknown output format %q", format)
			}
			pFails, err := improvement.SweepRange(from, to, step)
			if err != nil {
				return err
			}
			scenario, err := config.LoadScenario(args[0])
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("samples") {
				if samples <= 0 {
					return models.NewConfigurationError("resilience sweep", "--samples must be positive, got %d", samples)
				}
				scenario.Simulation.SetSamples(samples)
			}
			if cmd.Flags().Changed("repl") {
				scenario.Replication.Enabled = repl
			}

			points, err := improvement.Sweep(cmd.Context(), scenario, pFails, parallel)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if format == "json" {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(points)
			}
			tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "P_FAIL\tR_AVG\tCI95")
			for _, pt := range points {
				fmt.Fprintf(tw, "%.2f\t%.4f\t±%.4f\n", pt.PFail, pt.Report.RAvg, pt.Report.RAvgCI95)
			}
			return tw.Flush()
		},
	}
	f := cmd.Flags()
	f.IntVar(&samples, "samples", 0, "number of trials per point")
	f.Float64Var(&from, "from", 0.1, "first failure fraction")
	f.Float64Var(&to, "to", 0.5, "last failure fraction")
	f.Float64Var(&step, "step", 0.1, "failure fraction increment")
	f.IntVar(&parallel, "parallel", 1, "points estimated at the same time")
	f.BoolVar(&repl, "repl", false, "use the scenario's replica table")
	f.StringVar(&format, "format", "text", "output format: json or text")
	return cmd
}

// digits maps a negative precision to enough places for a float64 fraction
func digits(precision int) int {
	if precision < 0 {
		return 15
	}
	return precision
}
