package research

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/charlie-robison/pythia/internal/llm"
	"github.com/charlie-robison/pythia/internal/pipeline"
)

const (
	synthesisMaxTokens = 4096

	// fallbackExcerptLen bounds how much raw research text survives into a
	// degraded per-event summary.
	fallbackExcerptLen = 3000
)

// synthesized is the parsed result of the synthesis completion, before
// assembly joins it back to the raw stage-1 data.
type synthesized struct {
	Main          *eventAnalysis
	Subs          []eventAnalysis
	Relationships []Relationship
	Synthesis     string
}

// eventAnalysis is the per-event slice of the synthesis output.
type eventAnalysis struct {
	SubEventID         string
	Summary            string
	KeyFindings        []string
	Sentiment          Sentiment
	SentimentRationale string
}

// synthesizer runs stage 2: one reasoning completion over all raw research,
// degrading to excerpt-based summaries when the call cannot succeed.
type synthesizer struct {
	completer   llm.Completer
	budget      pipeline.Budget
	maxFindings int
	maxLinks    int
}

// synthesize structures the raw research. It never fails: on exhaustion the
// fallback builds per-event summaries from raw text excerpts.
func (s *synthesizer) synthesize(ctx context.Context, in Input, mainRaw string, subRaw []stageText) (synthesized, bool) {
	prompt := synthesisPrompt(in, mainRaw, subRaw, s.maxFindings, s.maxLinks)

	out, degraded := pipeline.Aggregate(ctx, "research: synthesis", prompt,
		func(ctx context.Context, prompt string) (synthesized, error) {
			completion, err := s.completer.Complete(ctx, llm.Request{
				System:    synthesisSystemPrompt,
				Prompt:    prompt,
				MaxTokens: synthesisMaxTokens,
				Stage:     "research: synthesis",
			})
			if err != nil {
				return synthesized{}, err
			}
			return parseSynthesis(completion.Text, in)
		},
		s.budget,
		func(_ string, cause error) synthesized {
			zap.L().Warn("synthesis degraded to raw excerpts", zap.Error(cause))
			return fallbackSynthesis(in, mainRaw, subRaw)
		},
	)
	return out, degraded
}

// parseSynthesis extracts the structured analysis from the model's JSON
// reply. Field-level sloppiness is tolerated; a reply with no recognizable
// shape is malformed and triggers a retry.
func parseSynthesis(text string, in Input) (synthesized, error) {
	var raw map[string]any
	if err := llm.ExtractJSON(text, &raw); err != nil {
		return synthesized{}, err
	}

	var out synthesized
	out.Synthesis = llm.AsString(raw["synthesis"])

	if m := llm.AsMap(raw["main_event_analysis"]); m != nil && in.MainEvent != nil {
		a := parseAnalysis(m)
		out.Main = &a
	}

	// Some replies key the list as "sub_event_research" instead.
	subs := llm.AsMapList(raw["sub_event_analyses"])
	if subs == nil {
		subs = llm.AsMapList(raw["sub_event_research"])
	}
	for _, m := range subs {
		out.Subs = append(out.Subs, parseAnalysis(m))
	}

	for _, m := range llm.AsMapList(raw["relationships"]) {
		out.Relationships = append(out.Relationships, Relationship{
			SubEventID:          llm.AsString(m["sub_event_id"]),
			RelationshipSummary: llm.AsString(m["relationship_summary"]),
			InfluencingNews:     llm.AsString(m["influencing_news"]),
		})
	}

	if out.Synthesis == "" && out.Main == nil && len(out.Subs) == 0 {
		return synthesized{}, pipeline.Malformed(nil, "research: synthesis reply has no usable fields")
	}
	return out, nil
}

func parseAnalysis(m map[string]any) eventAnalysis {
	return eventAnalysis{
		SubEventID:         llm.AsString(m["sub_event_id"]),
		Summary:            llm.AsString(m["summary"]),
		KeyFindings:        llm.AsStringList(m["key_findings"]),
		Sentiment:          ParseSentiment(llm.AsString(m["sentiment"])),
		SentimentRationale: llm.AsString(m["sentiment_rationale"]),
	}
}

// fallbackSynthesis builds a degraded result straight from the raw research
// text: each event gets an excerpt as its summary and neutral sentiment.
func fallbackSynthesis(in Input, mainRaw string, subRaw []stageText) synthesized {
	var out synthesized
	out.Synthesis = "Synthesis unavailable; per-event summaries are raw research excerpts."

	if in.MainEvent != nil {
		out.Main = &eventAnalysis{
			Summary:            excerpt(mainRaw),
			Sentiment:          SentimentNeutral,
			SentimentRationale: "Sentiment could not be determined.",
		}
	}
	for _, sr := range subRaw {
		out.Subs = append(out.Subs, eventAnalysis{
			SubEventID:         sr.ID,
			Summary:            excerpt(sr.Text),
			Sentiment:          SentimentNeutral,
			SentimentRationale: "Sentiment could not be determined.",
		})
	}
	return out
}

func excerpt(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	if len(text) > fallbackExcerptLen {
		return text[:fallbackExcerptLen]
	}
	return text
}
