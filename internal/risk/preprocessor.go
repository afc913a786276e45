package risk

import (
	"math"
	"strings"

	"github.com/charlie-robison/pythia/internal/llm"
	"github.com/charlie-robison/pythia/internal/research"
)

// defaultMaxFindings caps how many deduplicated key findings the digest
// carries into analysis prompts.
const defaultMaxFindings = 20

// preprocess condenses a research report (as loose JSON) into the digest fed
// to every analysis batch. It is a pure transformation: it cannot fail, and
// missing or foreign-shaped research degrades field by field.
func preprocess(researchOut map[string]any, maxFindings int) digest {
	if maxFindings <= 0 {
		maxFindings = defaultMaxFindings
	}

	main := llm.AsMap(researchOut["main_event_research"])
	subs := llm.AsMapList(researchOut["sub_event_research"])

	return digest{
		Summary:     digestSummary(researchOut, main, subs),
		KeyFindings: digestFindings(main, subs, maxFindings),
		Sentiment:   digestSentiment(main, subs),
	}
}

// digestSummary picks the research summary by priority: the synthesis, then
// the main event summary, then concatenated sub-event summaries, then a
// fixed marker.
func digestSummary(researchOut, main map[string]any, subs []map[string]any) string {
	if s := strings.TrimSpace(llm.AsString(researchOut["synthesis"])); s != "" {
		return s
	}
	if s := strings.TrimSpace(llm.AsString(main["summary"])); s != "" {
		return s
	}

	var parts []string
	for _, sub := range subs {
		s := strings.TrimSpace(llm.AsString(sub["summary"]))
		if s == "" {
			continue
		}
		if title := llm.AsString(sub["sub_event_title"]); title != "" {
			s = title + ": " + s
		}
		parts = append(parts, s)
	}
	if len(parts) > 0 {
		return strings.Join(parts, "\n")
	}
	return "No research summary available."
}

// noFindingsMarker backfills an empty digest so analysis prompts always
// carry at least one finding.
const noFindingsMarker = "No key findings available from research."

// digestFindings merges key findings, main event first, deduplicated by
// exact string match, capped at maxFindings. Case variants are distinct
// findings and all survive.
func digestFindings(main map[string]any, subs []map[string]any, maxFindings int) []string {
	var merged []string
	merged = append(merged, llm.AsStringList(main["key_findings"])...)
	for _, sub := range subs {
		merged = append(merged, llm.AsStringList(sub["key_findings"])...)
	}

	seen := make(map[string]bool, len(merged))
	findings := make([]string, 0, maxFindings)
	for _, f := range merged {
		if seen[f] {
			continue
		}
		seen[f] = true
		findings = append(findings, f)
		if len(findings) == maxFindings {
			break
		}
	}
	if len(findings) == 0 {
		return []string{noFindingsMarker}
	}
	return findings
}

// digestSentiment picks the overall sentiment: the main event's when stated,
// otherwise the rounded average of sub-event sentiments on the 5-point
// ordinal scale, otherwise neutral. Averages round half away from zero so a
// bearish/neutral split reads bearish, not neutral.
func digestSentiment(main map[string]any, subs []map[string]any) string {
	if s, ok := research.LookupSentiment(llm.AsString(main["sentiment"])); ok {
		return string(s)
	}

	var sum, n int
	for _, sub := range subs {
		s, ok := research.LookupSentiment(llm.AsString(sub["sentiment"]))
		if !ok {
			continue
		}
		sum += s.Ordinal()
		n++
	}
	if n == 0 {
		return string(research.SentimentNeutral)
	}

	// Average relative to neutral so rounding is symmetric around the
	// middle of the scale.
	neutral := research.SentimentNeutral.Ordinal()
	mean := float64(sum)/float64(n) - float64(neutral)
	rounded := neutral + int(math.Round(math.Abs(mean))*sign(mean))
	return string(research.SentimentFromOrdinal(rounded))
}

func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}
