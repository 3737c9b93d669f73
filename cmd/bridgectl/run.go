package main

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/wippyai/objbridge/internal/scenario"
	"github.com/wippyai/objbridge/metrics"
)

var runCmd = &cobra.Command{
	Use:   "run <scenario.yaml>",
	Short: "Execute a scenario and print the resulting wrappers",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runScenario(cmd.OutOrStdout(), args[0])
	},
}

// session is a loaded scenario wired to a metrics registry.
type session struct {
	sc     *scenario.Scenario
	runner *scenario.Runner
	reg    *prometheus.Registry
}

func openSession(path string) (*session, error) {
	sc, err := scenario.Load(path)
	if err != nil {
		return nil, err
	}

	collector := metrics.NewCollector()
	reg := prometheus.NewRegistry()
	collector.Register(reg)

	r, err := scenario.New(sc, scenario.Options{
		Logger:   logger.Named("scenario"),
		Observer: collector,
	})
	if err != nil {
		return nil, fmt.Errorf("set up scenario: %w", err)
	}
	return &session{sc: sc, runner: r, reg: reg}, nil
}

func runScenario(w io.Writer, path string) error {
	s, err := openSession(path)
	if err != nil {
		return err
	}

	runErr := s.runner.Run()

	name := s.sc.Name
	if name == "" {
		name = path
	}
	fmt.Fprintf(w, "Scenario: %s (%d/%d steps)\n\n", name, s.runner.Executed(), len(s.sc.Steps))
	if err := printReport(w, s.runner); err != nil {
		return err
	}

	closeErr := s.runner.Close()
	fmt.Fprintf(w, "\nNative objects left: %d\n", s.runner.LiveBlocks())

	if viper.GetBool("metrics") {
		if err := printMetrics(w, s.reg); err != nil {
			return err
		}
	}

	if runErr != nil {
		return runErr
	}
	if closeErr != nil {
		return fmt.Errorf("teardown: %w", closeErr)
	}
	return nil
}

func printReport(w io.Writer, r *scenario.Runner) error {
	rows := r.Rows()
	if len(rows) == 0 {
		fmt.Fprintln(w, "No objects created")
		return nil
	}

	table := tablewriter.NewWriter(w)
	table.Header(cells(scenario.Header())...)
	for _, row := range rows {
		if err := table.Append(cells(row.Strings())...); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}

	forest := r.Forest()
	if forest == "" {
		forest = "(empty)\n"
	}
	fmt.Fprintf(w, "\nForest:\n%s", forest)
	return nil
}

func cells(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}

func printMetrics(w io.Writer, reg *prometheus.Registry) error {
	families, err := reg.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	fmt.Fprintln(w, "\nMetrics:")
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
