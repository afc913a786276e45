package research

import (
	"fmt"
	"strings"
)

const researchSystemPrompt = `You are a research analyst covering prediction markets.
You gather current, factual information about real-world events and report it
plainly, with sources. You never speculate beyond what the evidence supports.`

const synthesisSystemPrompt = `You are a senior research analyst. You turn raw
research notes about prediction market events into structured JSON analysis.
You respond with JSON only, no prose before or after.`

// mainEventPrompt asks the live-lookup model to research the parent event.
func mainEventPrompt(ev MainEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Research the following prediction market event:\n\n")
	fmt.Fprintf(&b, "Event: %s\n", ev.Title)
	if ev.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", ev.Description)
	}
	b.WriteString(`
Find the latest news and developments relevant to this event. Cover:
1. A summary of the current state of the event
2. Key recent developments and facts, with dates where known
3. Market-relevant signals (polls, official statements, data releases)
4. The overall direction the evidence points

Report plain factual findings. Cite your sources.`)
	return b.String()
}

// subEventPrompt asks the live-lookup model to research a single sub-event,
// optionally in the context of the main event.
func subEventPrompt(ev SubEvent, main *MainEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Research the following prediction market question:\n\n")
	fmt.Fprintf(&b, "Question: %s\n", ev.Title)
	if ev.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", ev.Description)
	}
	if main != nil {
		fmt.Fprintf(&b, "\nThis question belongs to the broader event: %s\n", main.Title)
	}
	b.WriteString(`
Find the latest news and developments bearing directly on this question. Cover:
1. A summary of where things currently stand
2. Key recent developments and facts, with dates where known
3. Evidence for and against the question resolving YES
4. The overall direction the evidence points

Report plain factual findings. Cite your sources.`)
	return b.String()
}

// synthesisPrompt asks the reasoning model to structure all raw research into
// the report schema. The expected JSON shape differs depending on whether a
// main event was researched.
func synthesisPrompt(in Input, mainRaw string, subRaw []stageText, maxFindings, maxLinks int) string {
	var b strings.Builder

	if in.MainEvent != nil {
		fmt.Fprintf(&b, "Main event: %s\n\n", in.MainEvent.Title)
		b.WriteString("=== MAIN EVENT RESEARCH ===\n")
		if mainRaw != "" {
			b.WriteString(mainRaw)
		} else {
			b.WriteString("(research unavailable)")
		}
		b.WriteString("\n\n")
	}

	for _, sr := range subRaw {
		fmt.Fprintf(&b, "=== SUB-EVENT RESEARCH: %s (id: %s) ===\n", sr.Title, sr.ID)
		if sr.Text != "" {
			b.WriteString(sr.Text)
		} else {
			b.WriteString("(research unavailable)")
		}
		b.WriteString("\n\n")
	}

	b.WriteString("Analyze all of the research above and respond with a single JSON object:\n\n{\n")
	if in.MainEvent != nil {
		fmt.Fprintf(&b, `  "main_event_analysis": {
    "summary": "concise summary of the main event research",
    "key_findings": ["up to %d key findings"],
    "sentiment": "very_bearish|bearish|neutral|bullish|very_bullish",
    "sentiment_rationale": "one or two sentences"
  },
`, maxFindings)
	}
	fmt.Fprintf(&b, `  "sub_event_analyses": [
    {
      "sub_event_id": "the id shown above",
      "summary": "concise summary for this sub-event",
      "key_findings": ["up to %d key findings"],
      "sentiment": "very_bearish|bearish|neutral|bullish|very_bullish",
      "sentiment_rationale": "one or two sentences"
    }
  ],
`, maxFindings)
	if in.MainEvent != nil {
		b.WriteString(`  "relationships": [
    {
      "sub_event_id": "the id shown above",
      "relationship_summary": "how this sub-event relates to the main event",
      "influencing_news": "news items that drive both"
    }
  ],
`)
	}
	b.WriteString(`  "synthesis": "overall narrative tying the research together"
}

Include one entry in "sub_event_analyses" for every sub-event shown above.
Use only the sentiment values listed. Respond with JSON only.`)

	return b.String()
}

// stageText pairs a fan-out unit with its raw research text for synthesis.
type stageText struct {
	ID    string
	Title string
	Text  string
}
