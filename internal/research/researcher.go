package research

import (
	"context"

	"go.uber.org/zap"

	"github.com/charlie-robison/pythia/internal/llm"
	"github.com/charlie-robison/pythia/internal/pipeline"
)

const (
	mainUnitID = "__main__"

	researchMaxTokens = 2048
)

// researcher runs stage 1: one live research completion per event, fanned
// out under the pipeline budget.
type researcher struct {
	completer llm.Completer
	budget    pipeline.Budget
}

// run researches the main event (if any) and every sub-event concurrently.
// It always returns one outcome per unit; failures surface as failed
// outcomes, never as an error.
func (r *researcher) run(ctx context.Context, in Input) []pipeline.Outcome[rawResearch] {
	units := buildUnits(in)

	zap.L().Info("starting event research",
		zap.Int("events", len(units)),
		zap.Bool("live_search", r.completer.Searching()))

	return pipeline.FanOut(ctx, units, r.research, r.budget)
}

// buildUnits lays out the fan-out units: main event first when present,
// then sub-events in input order.
func buildUnits(in Input) []pipeline.Unit[eventQuery] {
	units := make([]pipeline.Unit[eventQuery], 0, len(in.SubEvents)+1)
	if in.MainEvent != nil {
		units = append(units, pipeline.Unit[eventQuery]{
			ID:    mainUnitID,
			Title: in.MainEvent.Title,
			Payload: eventQuery{
				Title:       in.MainEvent.Title,
				Description: in.MainEvent.Description,
				Main:        true,
			},
		})
	}
	for _, sub := range in.SubEvents {
		units = append(units, pipeline.Unit[eventQuery]{
			ID:    sub.ID,
			Title: sub.Title,
			Payload: eventQuery{
				Title:       sub.Title,
				Description: sub.Description,
			},
		})
	}
	return units
}

func (r *researcher) research(ctx context.Context, unit pipeline.Unit[eventQuery]) (rawResearch, error) {
	var prompt string
	if unit.Payload.Main {
		prompt = mainEventPrompt(MainEvent{Title: unit.Payload.Title, Description: unit.Payload.Description})
	} else {
		prompt = subEventPrompt(
			SubEvent{ID: unit.ID, Title: unit.Payload.Title, Description: unit.Payload.Description},
			nil,
		)
	}

	completion, err := r.completer.Complete(ctx, llm.Request{
		System:    researchSystemPrompt,
		Prompt:    prompt,
		MaxTokens: researchMaxTokens,
		Stage:     "research: event research",
	})
	if err != nil {
		return rawResearch{}, err
	}

	zap.L().Debug("event research complete",
		zap.String("event_id", unit.ID),
		zap.Int("links", len(completion.Links)))
	return rawResearch{Text: completion.Text, Links: completion.Links}, nil
}
