package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/charlie-robison/pythia/internal/report"
	"github.com/charlie-robison/pythia/internal/research"
	"github.com/charlie-robison/pythia/internal/risk"
	"github.com/charlie-robison/pythia/internal/store"
)

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export <run-id>",
	Short: "Export a completed run's report as an XLSX workbook",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "load run")
		}
		if run.Status != store.RunStatusComplete {
			return eris.Errorf("run %s is %s, not complete", run.ID, run.Status)
		}

		f, err := os.Create(exportOut)
		if err != nil {
			return eris.Wrapf(err, "create %s", exportOut)
		}
		defer f.Close() //nolint:errcheck

		switch run.Kind {
		case store.RunKindResearch:
			var out research.Output
			if err := json.Unmarshal(run.Result, &out); err != nil {
				return eris.Wrap(err, "parse research result")
			}
			err = report.WriteResearchXLSX(f, &out)
		case store.RunKindRisk:
			var out risk.Output
			if err := json.Unmarshal(run.Result, &out); err != nil {
				return eris.Wrap(err, "parse risk result")
			}
			err = report.WriteRiskXLSX(f, &out)
		default:
			return eris.Errorf("unknown run kind: %s", run.Kind)
		}
		if err != nil {
			return eris.Wrap(err, "write workbook")
		}

		zap.L().Info("report exported", zap.String("run_id", run.ID), zap.String("path", exportOut))
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "report.xlsx", "output workbook path")
	rootCmd.AddCommand(exportCmd)
}
