package risk

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/charlie-robison/pythia/internal/llm"
	"github.com/charlie-robison/pythia/internal/pipeline"
)

// Config tunes one risk agent. Zero values take the risk defaults, which are
// tighter than the research pipeline's: batches are cheap and the whole run
// is expected inside 90 seconds.
type Config struct {
	Budget      pipeline.Budget
	BatchSize   int
	MaxFindings int
}

const defaultBatchSize = 5

func (c Config) withDefaults() Config {
	if c.Budget.PerTaskTimeout <= 0 {
		c.Budget.PerTaskTimeout = 45 * time.Second
	}
	if c.Budget.StageTimeout <= 0 {
		c.Budget.StageTimeout = 30 * time.Second
	}
	if c.Budget.TotalTimeout <= 0 {
		c.Budget.TotalTimeout = 90 * time.Second
	}
	c.Budget = c.Budget.WithDefaults()
	if c.BatchSize <= 0 {
		c.BatchSize = defaultBatchSize
	}
	if c.MaxFindings <= 0 {
		c.MaxFindings = defaultMaxFindings
	}
	return c
}

// Agent runs the three-stage risk pipeline end to end. Like the research
// agent, it only fails on invalid input; collaborator failures and timeouts
// degrade the report toward conservative NO signals.
type Agent struct {
	cfg      Config
	analyzer *analyzer
	reviewer *reconciler
}

// NewAgent builds a risk agent on one reasoning completer.
func NewAgent(cfg Config, completer llm.Completer) *Agent {
	cfg = cfg.withDefaults()
	return &Agent{
		cfg:      cfg,
		analyzer: &analyzer{completer: completer, budget: cfg.Budget, batchSize: cfg.BatchSize},
		reviewer: &reconciler{completer: completer, budget: cfg.Budget},
	}
}

// Run executes the full pipeline for one input.
func (a *Agent) Run(ctx context.Context, in Input) (*Output, error) {
	tracker := pipeline.NewTracker("risk")

	tracker.Enter(pipeline.StatePreprocessing)
	in, err := in.Normalize()
	if err != nil {
		return nil, eris.Wrap(err, "risk: invalid input")
	}
	d := preprocess(in.ResearchOutput, a.cfg.MaxFindings)

	ctx, cancel := context.WithTimeout(ctx, a.cfg.Budget.TotalTimeout)
	defer cancel()

	started := time.Now()
	zap.L().Info("risk run starting",
		zap.Int("markets", len(in.Markets)),
		zap.String("research_sentiment", d.Sentiment))

	tracker.Enter(pipeline.StateFanningOut)
	drafts := a.analyzer.run(ctx, in, d)
	tracker.TimedOut(ctx)

	tracker.Enter(pipeline.StateAggregating)
	rec, degraded := a.reviewer.run(ctx, drafts, in.MainEvent, d)
	tracker.TimedOut(ctx)

	tracker.Enter(pipeline.StateAssembling)
	out := assemble(in, rec)

	if tracker.TimedOut(ctx) {
		out.OverallAnalysis = timeoutNarrative(a.cfg.Budget.TotalTimeout, out.OverallAnalysis)
	}
	tracker.Enter(pipeline.StateDone)

	zap.L().Info("risk run finished",
		zap.Duration("elapsed", time.Since(started)),
		zap.String("state", tracker.State().String()),
		zap.Bool("degraded_reconciliation", degraded))
	return out, nil
}

// assemble is a pure transformation from reconciled signals to the report:
// exactly one signal per input market, in input order, with conservative
// placeholders for anything the review dropped or mis-keyed.
func assemble(in Input, rec reconciled) *Output {
	byID := make(map[string]Market, len(in.Markets))
	ids := make([]string, len(in.Markets))
	for i, m := range in.Markets {
		byID[m.ID] = m
		ids[i] = m.ID
	}

	signals := pipeline.NormalizeEntries(ids, rec.Signals,
		func(s MarketSignal) string { return s.MarketID },
		func(id string) MarketSignal { return conservativeSignal(byID[id]) },
	)
	for i := range signals {
		m := byID[signals[i].MarketID]
		signals[i].Question = m.Question
		signals[i].CurrentPrice = m.CurrentPrice
		if signals[i].Rationale == "" {
			signals[i].Rationale = "No rationale provided."
		}
	}

	overall := rec.OverallAnalysis
	if overall == "" {
		overall = "Analysis unavailable."
	}

	return &Output{
		Signals:           signals,
		OverallAnalysis:   overall,
		AnalysisTimestamp: time.Now().UTC().Format(time.RFC3339),
		Disclaimer:        Disclaimer,
	}
}

func timeoutNarrative(total time.Duration, overall string) string {
	note := fmt.Sprintf("Risk pipeline timed out after %s. Signals may be incomplete or conservative defaults.", total)
	if overall == "" || overall == "Analysis unavailable." {
		return note
	}
	return note + "\n\n" + overall
}
