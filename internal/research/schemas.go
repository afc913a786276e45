// Package research implements the two-stage event research pipeline:
// parallel live-lookup research on every event, one synthesis completion
// over all of it, then pure assembly into a structured report.
package research

import (
	"strings"
	"unicode"

	"github.com/rotisserie/eris"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/charlie-robison/pythia/internal/llm"
)

// Sentiment is the research sentiment on a 5-point ordinal scale.
type Sentiment string

const (
	SentimentVeryBearish Sentiment = "very_bearish"
	SentimentBearish     Sentiment = "bearish"
	SentimentNeutral     Sentiment = "neutral"
	SentimentBullish     Sentiment = "bullish"
	SentimentVeryBullish Sentiment = "very_bullish"
)

// sentimentOrder is the ordinal scale used for averaging.
var sentimentOrder = []Sentiment{
	SentimentVeryBearish,
	SentimentBearish,
	SentimentNeutral,
	SentimentBullish,
	SentimentVeryBullish,
}

// ParseSentiment parses a sentiment string, defaulting to neutral for
// anything unrecognized.
func ParseSentiment(s string) Sentiment {
	v, ok := LookupSentiment(s)
	if !ok {
		return SentimentNeutral
	}
	return v
}

// LookupSentiment parses a sentiment string, reporting whether it was a
// valid scale value.
func LookupSentiment(s string) (Sentiment, bool) {
	v := Sentiment(strings.TrimSpace(strings.ToLower(s)))
	for _, known := range sentimentOrder {
		if v == known {
			return v, true
		}
	}
	return SentimentNeutral, false
}

// Ordinal returns the sentiment's index on the 5-point scale.
func (s Sentiment) Ordinal() int {
	for i, known := range sentimentOrder {
		if s == known {
			return i
		}
	}
	return 2 // neutral
}

// SentimentFromOrdinal maps a scale index back to a sentiment, clamping out
// of range values.
func SentimentFromOrdinal(i int) Sentiment {
	if i < 0 {
		i = 0
	}
	if i >= len(sentimentOrder) {
		i = len(sentimentOrder) - 1
	}
	return sentimentOrder[i]
}

// MainEvent is the parent event being researched.
type MainEvent struct {
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description,omitempty" yaml:"description"`
}

// SubEvent is a single market question to research. ID is auto-generated
// from the title when not provided.
type SubEvent struct {
	ID          string `json:"id,omitempty" yaml:"id"`
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description,omitempty" yaml:"description"`
}

// Input is the top-level input to the research agent: either main event plus
// sub-events, or sub-events alone.
type Input struct {
	MainEvent *MainEvent `json:"main_event,omitempty" yaml:"main_event"`
	SubEvents []SubEvent `json:"sub_events" yaml:"sub_events"`
}

// Normalize validates the input and fills in missing sub-event IDs from
// title slugs. It returns a copy; the caller's value is untouched.
func (in Input) Normalize() (Input, error) {
	if len(in.SubEvents) == 0 {
		return in, eris.New("research: at least one sub-event is required")
	}
	subs := make([]SubEvent, len(in.SubEvents))
	copy(subs, in.SubEvents)
	for i := range subs {
		if subs[i].Title == "" {
			return in, eris.Errorf("research: sub-event %d has no title", i)
		}
		if subs[i].ID == "" {
			subs[i].ID = Slugify(subs[i].Title)
		}
	}
	in.SubEvents = subs
	return in, nil
}

const maxSlugLen = 60

// Slugify derives a stable id from a title: diacritics stripped, lowercased,
// runs of non-alphanumerics collapsed to single dashes, capped at 60 chars.
func Slugify(title string) string {
	stripped, _, err := transform.String(transform.Chain(
		norm.NFD,
		runes.Remove(runes.In(unicode.Mn)),
		norm.NFC,
	), title)
	if err != nil {
		stripped = title
	}

	var b strings.Builder
	lastDash := true // suppress a leading dash
	for _, r := range strings.ToLower(stripped) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}

	slug := strings.Trim(b.String(), "-")
	if len(slug) > maxSlugLen {
		slug = strings.Trim(slug[:maxSlugLen], "-")
	}
	return slug
}

// NewsLink is one cited source from the live research stage.
type NewsLink struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// MainEventResearch is the analyzed research for the main event.
type MainEventResearch struct {
	EventTitle         string     `json:"event_title"`
	Summary            string     `json:"summary"`
	KeyFindings        []string   `json:"key_findings"`
	NewsLinks          []NewsLink `json:"news_links"`
	Sentiment          Sentiment  `json:"sentiment"`
	SentimentRationale string     `json:"sentiment_rationale"`
}

// SubEventResearch is the analyzed research for one sub-event.
type SubEventResearch struct {
	SubEventID         string     `json:"sub_event_id"`
	SubEventTitle      string     `json:"sub_event_title"`
	Summary            string     `json:"summary"`
	KeyFindings        []string   `json:"key_findings"`
	NewsLinks          []NewsLink `json:"news_links"`
	Sentiment          Sentiment  `json:"sentiment"`
	SentimentRationale string     `json:"sentiment_rationale"`
}

// Relationship describes how a sub-event connects to the main event.
type Relationship struct {
	SubEventID          string `json:"sub_event_id"`
	SubEventTitle       string `json:"sub_event_title"`
	RelationshipSummary string `json:"relationship_summary"`
	InfluencingNews     string `json:"influencing_news"`
}

// Disclaimer is attached to every research report.
const Disclaimer = "This research is for informational purposes only and does not " +
	"constitute financial advice. Prediction markets carry risk. " +
	"Always do your own research before making any decisions."

// Output is the assembled research report.
type Output struct {
	MainEventResearch *MainEventResearch `json:"main_event_research,omitempty"`
	SubEventResearch  []SubEventResearch `json:"sub_event_research"`
	Relationships     []Relationship     `json:"relationships,omitempty"`
	Synthesis         string             `json:"synthesis"`
	ResearchTimestamp string             `json:"research_timestamp"`
	Disclaimer        string             `json:"disclaimer"`
}

// rawResearch is the untreated output of one live research call.
type rawResearch struct {
	Text  string
	Links []llm.Link
}

// eventQuery is the fan-out unit payload for stage 1.
type eventQuery struct {
	Title       string
	Description string
	Main        bool
}
