package research

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/charlie-robison/pythia/internal/llm"
	"github.com/charlie-robison/pythia/internal/pipeline"
)

// Config tunes one research agent. Zero values take pipeline defaults.
type Config struct {
	Budget         pipeline.Budget
	MaxNewsLinks   int
	MaxKeyFindings int
}

const (
	defaultMaxNewsLinks   = 8
	defaultMaxKeyFindings = 7
)

func (c Config) withDefaults() Config {
	c.Budget = c.Budget.WithDefaults()
	if c.MaxNewsLinks <= 0 {
		c.MaxNewsLinks = defaultMaxNewsLinks
	}
	if c.MaxKeyFindings <= 0 {
		c.MaxKeyFindings = defaultMaxKeyFindings
	}
	return c
}

// Agent runs the two-stage research pipeline end to end. It never returns an
// error for collaborator failures or timeouts; those degrade the report.
type Agent struct {
	cfg        Config
	researcher *researcher
	reasoner   llm.Completer
}

// NewAgent builds a research agent. researchCompleter handles the fan-out
// stage (the extended live-lookup variant when available); reasoner handles
// synthesis and should be the plain variant.
func NewAgent(cfg Config, researchCompleter, reasoner llm.Completer) *Agent {
	cfg = cfg.withDefaults()
	return &Agent{
		cfg:        cfg,
		researcher: &researcher{completer: researchCompleter, budget: cfg.Budget},
		reasoner:   reasoner,
	}
}

// Run executes the full pipeline for one input. The only error it returns is
// input validation; everything past that point degrades instead of failing.
func (a *Agent) Run(ctx context.Context, in Input) (*Output, error) {
	tracker := pipeline.NewTracker("research")

	tracker.Enter(pipeline.StatePreprocessing)
	in, err := in.Normalize()
	if err != nil {
		return nil, eris.Wrap(err, "research: invalid input")
	}

	ctx, cancel := context.WithTimeout(ctx, a.cfg.Budget.TotalTimeout)
	defer cancel()

	started := time.Now()
	zap.L().Info("research run starting",
		zap.Int("sub_events", len(in.SubEvents)),
		zap.Bool("main_event", in.MainEvent != nil))

	tracker.Enter(pipeline.StateFanningOut)
	outcomes := a.researcher.run(ctx, in)
	mainRaw, subRaw, links := splitOutcomes(in, outcomes)
	tracker.TimedOut(ctx)

	tracker.Enter(pipeline.StateAggregating)
	syn, degraded := a.synthesizer().synthesize(ctx, in, mainRaw, subRaw)
	tracker.TimedOut(ctx)

	tracker.Enter(pipeline.StateAssembling)
	out := assemble(in, syn, subRaw, links, a.cfg)

	if tracker.TimedOut(ctx) {
		out.Synthesis = timeoutNarrative(a.cfg.Budget.TotalTimeout, out.Synthesis)
	}
	tracker.Enter(pipeline.StateDone)

	zap.L().Info("research run finished",
		zap.Duration("elapsed", time.Since(started)),
		zap.String("state", tracker.State().String()),
		zap.Bool("degraded_synthesis", degraded))
	return out, nil
}

func (a *Agent) synthesizer() *synthesizer {
	return &synthesizer{
		completer:   a.reasoner,
		budget:      a.cfg.Budget,
		maxFindings: a.cfg.MaxKeyFindings,
		maxLinks:    a.cfg.MaxNewsLinks,
	}
}

// splitOutcomes separates the positional fan-out outcomes back into main
// event text, per-sub-event texts, and per-unit citation links. Failed
// outcomes contribute empty text; synthesis and assembly treat that as
// "research unavailable".
func splitOutcomes(in Input, outcomes []pipeline.Outcome[rawResearch]) (mainRaw string, subRaw []stageText, links map[string][]llm.Link) {
	links = make(map[string][]llm.Link, len(outcomes))

	i := 0
	if in.MainEvent != nil {
		if outcomes[0].OK() {
			mainRaw = outcomes[0].Value.Text
			links[mainUnitID] = outcomes[0].Value.Links
		}
		i = 1
	}

	subRaw = make([]stageText, 0, len(in.SubEvents))
	for _, sub := range in.SubEvents {
		st := stageText{ID: sub.ID, Title: sub.Title}
		if i < len(outcomes) && outcomes[i].OK() {
			st.Text = outcomes[i].Value.Text
			links[sub.ID] = outcomes[i].Value.Links
		}
		subRaw = append(subRaw, st)
		i++
	}
	return mainRaw, subRaw, links
}

// assemble is a pure transformation from pipeline results to the report.
// Every requested sub-event appears exactly once, in input order, and every
// textual field has a deterministic fallback.
func assemble(in Input, syn synthesized, subRaw []stageText, links map[string][]llm.Link, cfg Config) *Output {
	out := &Output{
		Synthesis:         syn.Synthesis,
		Relationships:     nil,
		ResearchTimestamp: time.Now().UTC().Format(time.RFC3339),
		Disclaimer:        Disclaimer,
	}
	if out.Synthesis == "" {
		out.Synthesis = "No synthesis available."
	}

	rawByID := make(map[string]stageText, len(subRaw))
	for _, sr := range subRaw {
		rawByID[sr.ID] = sr
	}

	if in.MainEvent != nil {
		mer := &MainEventResearch{
			EventTitle: in.MainEvent.Title,
			NewsLinks:  capLinks(links[mainUnitID], cfg.MaxNewsLinks),
			Sentiment:  SentimentNeutral,
		}
		if syn.Main != nil {
			mer.Summary = syn.Main.Summary
			mer.KeyFindings = capFindings(syn.Main.KeyFindings, cfg.MaxKeyFindings)
			mer.Sentiment = syn.Main.Sentiment
			mer.SentimentRationale = syn.Main.SentimentRationale
		}
		if mer.Summary == "" {
			mer.Summary = "No research available"
		}
		out.MainEventResearch = mer
	}

	ids := make([]string, len(in.SubEvents))
	titleByID := make(map[string]string, len(in.SubEvents))
	for i, sub := range in.SubEvents {
		ids[i] = sub.ID
		titleByID[sub.ID] = sub.Title
	}

	analyses := pipeline.NormalizeEntries(ids, syn.Subs,
		func(a eventAnalysis) string { return a.SubEventID },
		func(id string) eventAnalysis { return eventAnalysis{SubEventID: id, Sentiment: SentimentNeutral} },
	)

	out.SubEventResearch = make([]SubEventResearch, 0, len(ids))
	for i, a := range analyses {
		id := ids[i]
		ser := SubEventResearch{
			SubEventID:         id,
			SubEventTitle:      titleByID[id],
			Summary:            a.Summary,
			KeyFindings:        capFindings(a.KeyFindings, cfg.MaxKeyFindings),
			NewsLinks:          capLinks(links[id], cfg.MaxNewsLinks),
			Sentiment:          a.Sentiment,
			SentimentRationale: a.SentimentRationale,
		}
		if ser.Sentiment == "" {
			ser.Sentiment = SentimentNeutral
		}
		ser.Summary = summaryOrFallback(ser.Summary, rawByID[id].Text)
		out.SubEventResearch = append(out.SubEventResearch, ser)
	}

	if in.MainEvent != nil {
		out.Relationships = normalizeRelationships(ids, titleByID, syn.Relationships)
	}
	return out
}

// summaryOrFallback picks the per-event summary: the synthesized one, then a
// raw research excerpt, then a fixed marker.
func summaryOrFallback(summary, raw string) string {
	if strings.TrimSpace(summary) != "" {
		return summary
	}
	if e := excerpt(raw); e != "" {
		return e
	}
	return "No research available"
}

func normalizeRelationships(ids []string, titleByID map[string]string, rels []Relationship) []Relationship {
	normalized := pipeline.NormalizeEntries(ids, rels,
		func(r Relationship) string { return r.SubEventID },
		func(id string) Relationship {
			return Relationship{
				SubEventID:          id,
				RelationshipSummary: "No relationship analysis available.",
			}
		},
	)
	for i := range normalized {
		normalized[i].SubEventTitle = titleByID[normalized[i].SubEventID]
		if normalized[i].RelationshipSummary == "" {
			normalized[i].RelationshipSummary = "No relationship analysis available."
		}
	}
	return normalized
}

func capLinks(links []llm.Link, max int) []NewsLink {
	if len(links) > max {
		links = links[:max]
	}
	out := make([]NewsLink, 0, len(links))
	for _, l := range links {
		title := l.Title
		if title == "" {
			title = l.URL
		}
		out = append(out, NewsLink{Title: title, URL: l.URL})
	}
	return out
}

func capFindings(findings []string, max int) []string {
	out := make([]string, 0, len(findings))
	for _, f := range findings {
		if strings.TrimSpace(f) == "" {
			continue
		}
		out = append(out, f)
		if len(out) == max {
			break
		}
	}
	return out
}

func timeoutNarrative(total time.Duration, synthesis string) string {
	note := fmt.Sprintf("Research pipeline timed out after %s. Results may be incomplete.", total)
	if synthesis == "" || synthesis == "No synthesis available." {
		return note
	}
	return note + "\n\n" + synthesis
}
