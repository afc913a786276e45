package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/charlie-robison/pythia/internal/research"
	"github.com/charlie-robison/pythia/internal/store"
)

var (
	researchInput  string
	researchOutput string
)

var researchCmd = &cobra.Command{
	Use:   "research",
	Short: "Run the research pipeline on an event file",
	Long:  "Fans out per-event web research, synthesizes a cross-event report, and records the run.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("research"); err != nil {
			return err
		}

		var in research.Input
		if err := readYAML(researchInput, &in); err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		researcher, reasoner := newCompleters()
		agent := research.NewAgent(cfg.Research.AgentConfig(), researcher, reasoner)

		out, err := runRecorded(ctx, st, store.RunKindResearch, in, func() (*research.Output, error) {
			return agent.Run(ctx, in)
		})
		if err != nil {
			return err
		}

		zap.L().Info("research complete",
			zap.Int("sub_events", len(out.SubEventResearch)),
			zap.Int("relationships", len(out.Relationships)),
		)

		return writeResult(researchOutput, out)
	},
}

// runRecorded wraps a pipeline execution in a run record: created before,
// completed or failed after.
func runRecorded[T any](ctx context.Context, st store.Store, kind store.RunKind, input any, fn func() (*T, error)) (*T, error) {
	inputJSON, err := json.Marshal(input)
	if err != nil {
		return nil, eris.Wrap(err, "marshal input")
	}

	run, err := st.CreateRun(ctx, kind, inputJSON)
	if err != nil {
		return nil, eris.Wrap(err, "create run")
	}
	zap.L().Info("run started", zap.String("run_id", run.ID), zap.String("kind", string(kind)))

	out, err := fn()
	if err != nil {
		if ferr := st.FailRun(ctx, run.ID, err.Error()); ferr != nil {
			zap.L().Warn("record run failure", zap.String("run_id", run.ID), zap.Error(ferr))
		}
		return nil, err
	}

	resultJSON, err := json.Marshal(out)
	if err != nil {
		return nil, eris.Wrap(err, "marshal result")
	}
	if err := st.CompleteRun(ctx, run.ID, resultJSON); err != nil {
		return nil, eris.Wrap(err, "complete run")
	}

	return out, nil
}

// readYAML loads a YAML input file into dst.
func readYAML(path string, dst any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return eris.Wrapf(err, "read %s", path)
	}
	if err := yaml.Unmarshal(data, dst); err != nil {
		return eris.Wrapf(err, "parse %s", path)
	}
	return nil
}

// writeResult writes the report as indented JSON to path, or stdout when
// path is empty.
func writeResult(path string, v any) error {
	out := os.Stdout
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return eris.Wrapf(err, "create %s", path)
		}
		defer f.Close() //nolint:errcheck
		out = f
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	researchCmd.Flags().StringVar(&researchInput, "input", "", "YAML file with main_event and sub_events (required)")
	researchCmd.Flags().StringVar(&researchOutput, "output", "", "write report JSON to file (default stdout)")
	_ = researchCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(researchCmd)
}
