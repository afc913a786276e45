package risk

import (
	"fmt"
	"strings"
)

const analysisSystemPrompt = `You are a risk manager for prediction market
positions. You weigh research evidence against market prices and produce
conservative, well-reasoned trading signals. You respond with JSON only.`

const reconciliationSystemPrompt = `You are a senior risk manager reviewing
draft trading signals for cross-market consistency. Mutually exclusive
markets must not both carry confident YES signals. You respond with JSON
only.`

// batchPrompt asks the model to produce one signal per market in a batch,
// grounded in the research digest.
func batchPrompt(markets []Market, main *MainEventInfo, d digest) string {
	var b strings.Builder

	if main != nil {
		fmt.Fprintf(&b, "Event: %s\n", main.Title)
		if main.Description != "" {
			fmt.Fprintf(&b, "Description: %s\n", main.Description)
		}
		b.WriteString("\n")
	}

	b.WriteString("=== RESEARCH SUMMARY ===\n")
	b.WriteString(d.Summary)
	b.WriteString("\n\n")
	if len(d.KeyFindings) > 0 {
		b.WriteString("Key findings:\n")
		for _, f := range d.KeyFindings {
			fmt.Fprintf(&b, "- %s\n", f)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Overall research sentiment: %s\n\n", d.Sentiment)

	b.WriteString("=== MARKETS ===\n")
	for _, m := range markets {
		fmt.Fprintf(&b, "- id: %s\n  question: %s\n", m.ID, m.Question)
		if m.Description != "" {
			fmt.Fprintf(&b, "  description: %s\n", m.Description)
		}
		if m.CurrentPrice != nil {
			fmt.Fprintf(&b, "  current YES price: %.3f\n", *m.CurrentPrice)
		}
	}

	b.WriteString(`
For each market above, decide whether the evidence supports YES or NO and
how confident the analysis is. Respond with a single JSON object:

{
  "signals": [
    {
      "market_id": "the id shown above",
      "prediction": "yes|no",
      "confidence": "high|medium|low",
      "rationale": "one or two sentences grounded in the research"
    }
  ]
}

Include exactly one entry per market. Default to NO with low confidence when
the evidence is thin. Respond with JSON only.`)
	return b.String()
}

// reconciliationPrompt asks the model to review all draft signals together
// and resolve cross-market inconsistencies.
func reconciliationPrompt(signals []MarketSignal, main *MainEventInfo, d digest) string {
	var b strings.Builder

	if main != nil {
		fmt.Fprintf(&b, "Event: %s\n\n", main.Title)
	}
	b.WriteString("Research sentiment: " + d.Sentiment + "\n\n")

	b.WriteString("=== DRAFT SIGNALS ===\n")
	for _, s := range signals {
		fmt.Fprintf(&b, "- market_id: %s\n  question: %s\n  prediction: %s (%s confidence)\n  rationale: %s\n",
			s.MarketID, s.Question, s.Prediction, s.Confidence, s.Rationale)
		if s.CurrentPrice != nil {
			fmt.Fprintf(&b, "  current YES price: %.3f\n", *s.CurrentPrice)
		}
	}

	b.WriteString(`
Review the draft signals as a set. If mutually exclusive markets both carry
YES signals, or the confidences are inconsistent with the shared research,
adjust them. Otherwise keep them as drafted. Respond with a single JSON
object:

{
  "signals": [
    {
      "market_id": "the id shown above",
      "prediction": "yes|no",
      "confidence": "high|medium|low",
      "rationale": "final rationale, adjusted if needed"
    }
  ],
  "overall_analysis": "a short portfolio-level narrative across all markets"
}

Include exactly one entry per market. Respond with JSON only.`)
	return b.String()
}
