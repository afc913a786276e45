package risk

import (
	"context"

	"go.uber.org/zap"

	"github.com/charlie-robison/pythia/internal/llm"
	"github.com/charlie-robison/pythia/internal/pipeline"
)

const reconciliationMaxTokens = 4096

// reconciled is the result of the cross-market review stage.
type reconciled struct {
	Signals         []MarketSignal
	OverallAnalysis string
}

// reconciler runs the final single-call stage: one completion reviewing all
// draft signals together. It never fails; on exhaustion the drafts pass
// through unreviewed.
type reconciler struct {
	completer llm.Completer
	budget    pipeline.Budget
}

func (r *reconciler) run(ctx context.Context, drafts []MarketSignal, main *MainEventInfo, d digest) (reconciled, bool) {
	return pipeline.Aggregate(ctx, "risk: reconciliation", drafts,
		func(ctx context.Context, drafts []MarketSignal) (reconciled, error) {
			return r.reconcile(ctx, drafts, main, d)
		},
		r.budget,
		func(drafts []MarketSignal, cause error) reconciled {
			zap.L().Warn("reconciliation unavailable, passing draft signals through", zap.Error(cause))
			return reconciled{
				Signals: drafts,
				OverallAnalysis: "Draft signals were not checked for cross-market " +
					"consistency; the reconciliation step could not be completed.",
			}
		},
	)
}

func (r *reconciler) reconcile(ctx context.Context, drafts []MarketSignal, main *MainEventInfo, d digest) (reconciled, error) {
	completion, err := r.completer.Complete(ctx, llm.Request{
		System:    reconciliationSystemPrompt,
		Prompt:    reconciliationPrompt(drafts, main, d),
		MaxTokens: reconciliationMaxTokens,
		Stage:     "risk: reconciliation",
	})
	if err != nil {
		return reconciled{}, err
	}

	var raw map[string]any
	if err := llm.ExtractJSON(completion.Text, &raw); err != nil {
		return reconciled{}, err
	}

	signals, err := signalsFromReply(raw)
	if err != nil {
		return reconciled{}, err
	}

	return reconciled{
		Signals:         signals,
		OverallAnalysis: llm.AsString(raw["overall_analysis"]),
	}, nil
}
