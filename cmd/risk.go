package main

import (
	"encoding/json"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/charlie-robison/pythia/internal/risk"
	"github.com/charlie-robison/pythia/internal/store"
)

var (
	riskInput       string
	riskOutput      string
	riskResearchRun string
)

var riskCmd = &cobra.Command{
	Use:   "risk",
	Short: "Run the risk pipeline on a market file",
	Long:  "Analyzes markets in batches against prior research and produces a YES/NO signal per market.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("risk"); err != nil {
			return err
		}

		var in risk.Input
		if err := readYAML(riskInput, &in); err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		// Feed a prior research run's report into the preprocessor.
		if riskResearchRun != "" {
			researchOut, err := loadResearchResult(cmd, st, riskResearchRun)
			if err != nil {
				return err
			}
			in.ResearchOutput = researchOut
		}

		_, completer := newCompleters()
		agent := risk.NewAgent(cfg.Risk.AgentConfig(), completer)

		out, err := runRecorded(ctx, st, store.RunKindRisk, in, func() (*risk.Output, error) {
			return agent.Run(ctx, in)
		})
		if err != nil {
			return err
		}

		zap.L().Info("risk analysis complete", zap.Int("signals", len(out.Signals)))

		return writeResult(riskOutput, out)
	},
}

// loadResearchResult fetches a completed research run's report as the
// loosely-typed JSON the risk preprocessor expects.
func loadResearchResult(cmd *cobra.Command, st store.Store, runID string) (map[string]any, error) {
	run, err := st.GetRun(cmd.Context(), runID)
	if err != nil {
		return nil, eris.Wrapf(err, "load research run %s", runID)
	}
	if run.Kind != store.RunKindResearch {
		return nil, eris.Errorf("run %s is a %s run, not research", runID, run.Kind)
	}
	if run.Status != store.RunStatusComplete {
		return nil, eris.Errorf("research run %s is %s, not complete", runID, run.Status)
	}

	var out map[string]any
	if err := json.Unmarshal(run.Result, &out); err != nil {
		return nil, eris.Wrapf(err, "parse research run %s result", runID)
	}
	return out, nil
}

func init() {
	riskCmd.Flags().StringVar(&riskInput, "input", "", "YAML file with markets and optional main_event (required)")
	riskCmd.Flags().StringVar(&riskOutput, "output", "", "write report JSON to file (default stdout)")
	riskCmd.Flags().StringVar(&riskResearchRun, "research-run", "", "ID of a completed research run to use as context")
	_ = riskCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(riskCmd)
}
