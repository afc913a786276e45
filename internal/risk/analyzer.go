package risk

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/charlie-robison/pythia/internal/llm"
	"github.com/charlie-robison/pythia/internal/pipeline"
)

const analysisMaxTokens = 2048

// analyzer runs the batched market analysis stage: markets are split into
// fixed-size batches and each batch is analyzed in one completion, fanned
// out under the pipeline budget.
type analyzer struct {
	completer llm.Completer
	budget    pipeline.Budget
	batchSize int
}

// run analyzes every market and returns exactly one draft signal per input
// market, in input order. A batch whose analysis fails outright yields
// conservative NO signals for its markets.
func (a *analyzer) run(ctx context.Context, in Input, d digest) []MarketSignal {
	batches := splitBatches(in.Markets, a.batchSize)

	units := make([]pipeline.Unit[[]Market], len(batches))
	for i, batch := range batches {
		units[i] = pipeline.Unit[[]Market]{
			ID:      fmt.Sprintf("batch-%d", i+1),
			Title:   fmt.Sprintf("markets %s..%s", batch[0].ID, batch[len(batch)-1].ID),
			Payload: batch,
		}
	}

	zap.L().Info("starting market analysis",
		zap.Int("markets", len(in.Markets)),
		zap.Int("batches", len(batches)))

	outcomes := pipeline.FanOut(ctx, units,
		func(ctx context.Context, unit pipeline.Unit[[]Market]) ([]MarketSignal, error) {
			return a.analyzeBatch(ctx, unit.Payload, in.MainEvent, d)
		},
		a.budget)

	signals := make([]MarketSignal, 0, len(in.Markets))
	for i, o := range outcomes {
		if o.OK() {
			signals = append(signals, o.Value...)
			continue
		}
		zap.L().Warn("batch analysis failed, defaulting its markets to NO",
			zap.String("batch", o.UnitID),
			zap.Error(o.Err))
		for _, m := range batches[i] {
			signals = append(signals, conservativeSignal(m))
		}
	}
	return signals
}

// analyzeBatch runs one batch completion and normalizes its reply to exactly
// one signal per market in the batch.
func (a *analyzer) analyzeBatch(ctx context.Context, batch []Market, main *MainEventInfo, d digest) ([]MarketSignal, error) {
	completion, err := a.completer.Complete(ctx, llm.Request{
		System:    analysisSystemPrompt,
		Prompt:    batchPrompt(batch, main, d),
		MaxTokens: analysisMaxTokens,
		Stage:     "risk: batch analysis",
	})
	if err != nil {
		return nil, err
	}

	parsed, err := parseSignals(completion.Text)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]Market, len(batch))
	ids := make([]string, len(batch))
	for i, m := range batch {
		byID[m.ID] = m
		ids[i] = m.ID
	}

	normalized := pipeline.NormalizeEntries(ids, parsed,
		func(s MarketSignal) string { return s.MarketID },
		func(id string) MarketSignal { return conservativeSignal(byID[id]) },
	)

	// Question text and price come from the input, never from the model.
	for i := range normalized {
		m := byID[normalized[i].MarketID]
		normalized[i].Question = m.Question
		normalized[i].CurrentPrice = m.CurrentPrice
	}
	return normalized, nil
}

// parseSignals extracts draft signals from a model reply, applying the
// conservative field defaults.
func parseSignals(text string) ([]MarketSignal, error) {
	var raw map[string]any
	if err := llm.ExtractJSON(text, &raw); err != nil {
		return nil, err
	}
	return signalsFromReply(raw)
}

func signalsFromReply(raw map[string]any) ([]MarketSignal, error) {
	entries := llm.AsMapList(raw["signals"])
	if entries == nil {
		return nil, pipeline.Malformed(nil, "risk: reply carries no signals list")
	}

	signals := make([]MarketSignal, 0, len(entries))
	for _, m := range entries {
		signals = append(signals, MarketSignal{
			MarketID:   llm.AsString(m["market_id"]),
			Prediction: ParsePrediction(llm.AsString(m["prediction"])),
			Confidence: ParseConfidence(llm.AsString(m["confidence"])),
			Rationale:  rationaleOrDefault(llm.AsString(m["rationale"])),
		})
	}
	return signals, nil
}

func rationaleOrDefault(r string) string {
	if r == "" {
		return "No rationale provided."
	}
	return r
}

// conservativeSignal is the degraded signal for a market whose analysis
// never completed.
func conservativeSignal(m Market) MarketSignal {
	return MarketSignal{
		MarketID:     m.ID,
		Question:     m.Question,
		Prediction:   PredictionNo,
		Confidence:   ConfidenceLow,
		Rationale:    "Defaulting to NO until analysis can be completed.",
		CurrentPrice: m.CurrentPrice,
	}
}

// splitBatches chunks markets into batches of at most size, preserving
// order.
func splitBatches(markets []Market, size int) [][]Market {
	if size <= 0 {
		size = defaultBatchSize
	}
	var batches [][]Market
	for start := 0; start < len(markets); start += size {
		end := start + size
		if end > len(markets) {
			end = len(markets)
		}
		batches = append(batches, markets[start:end])
	}
	return batches
}
