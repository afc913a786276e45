// Package risk implements the three-stage risk management pipeline: a pure
// preprocessing pass over prior research, batched market analysis, and a
// cross-market reconciliation step producing final trading signals.
package risk

import (
	"strings"

	"github.com/rotisserie/eris"

	"github.com/charlie-robison/pythia/internal/research"
)

// Prediction is the direction of a trading signal.
type Prediction string

const (
	PredictionYes Prediction = "yes"
	PredictionNo  Prediction = "no"
)

// ParsePrediction parses a prediction, defaulting to NO for anything
// unrecognized. NO is the conservative direction.
func ParsePrediction(s string) Prediction {
	if Prediction(strings.TrimSpace(strings.ToLower(s))) == PredictionYes {
		return PredictionYes
	}
	return PredictionNo
}

// Confidence grades how strongly the analysis supports a signal.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// ParseConfidence parses a confidence grade, defaulting to low.
func ParseConfidence(s string) Confidence {
	switch Confidence(strings.TrimSpace(strings.ToLower(s))) {
	case ConfidenceHigh:
		return ConfidenceHigh
	case ConfidenceMedium:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// Market is one market to produce a signal for.
type Market struct {
	ID           string   `json:"id" yaml:"id"`
	Question     string   `json:"question" yaml:"question"`
	Description  string   `json:"description,omitempty" yaml:"description"`
	CurrentPrice *float64 `json:"current_price,omitempty" yaml:"current_price"`
}

// MainEventInfo carries the parent event context, when known.
type MainEventInfo struct {
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description,omitempty" yaml:"description"`
}

// Input is the top-level input to the risk agent. ResearchOutput is the
// research report as loosely-typed JSON; the preprocessor tolerates partial
// or foreign shapes.
type Input struct {
	Markets        []Market       `json:"markets" yaml:"markets"`
	MainEvent      *MainEventInfo `json:"main_event,omitempty" yaml:"main_event"`
	ResearchOutput map[string]any `json:"research_output,omitempty" yaml:"research_output"`
}

// Normalize validates the input and fills empty market IDs from question
// text. It returns a copy; the caller's value is untouched.
func (in Input) Normalize() (Input, error) {
	if len(in.Markets) == 0 {
		return in, eris.New("risk: at least one market is required")
	}
	markets := make([]Market, len(in.Markets))
	copy(markets, in.Markets)
	for i := range markets {
		if markets[i].Question == "" {
			return in, eris.Errorf("risk: market %d has no question", i)
		}
		if markets[i].ID == "" {
			markets[i].ID = research.Slugify(markets[i].Question)
		}
	}
	in.Markets = markets
	return in, nil
}

// MarketSignal is the final recommendation for one market.
type MarketSignal struct {
	MarketID     string     `json:"market_id"`
	Question     string     `json:"question"`
	Prediction   Prediction `json:"prediction"`
	Confidence   Confidence `json:"confidence"`
	Rationale    string     `json:"rationale"`
	CurrentPrice *float64   `json:"current_price,omitempty"`
}

// Disclaimer is attached to every risk report.
const Disclaimer = "These signals are for informational purposes only and do not " +
	"constitute financial advice. Prediction markets carry substantial risk " +
	"of loss. Always do your own research before trading."

// Output is the assembled risk report. Exactly one signal exists per input
// market, in input order.
type Output struct {
	Signals           []MarketSignal `json:"market_signals"`
	OverallAnalysis   string         `json:"overall_analysis"`
	AnalysisTimestamp string         `json:"analysis_timestamp"`
	Disclaimer        string         `json:"disclaimer"`
}

// digest is the preprocessor's condensed view of the research, fed to every
// analysis batch.
type digest struct {
	Summary     string
	KeyFindings []string
	Sentiment   string
}
