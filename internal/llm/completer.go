// Package llm abstracts the completion service behind a single Completer
// interface with two variants: an extended one that performs live web
// lookups and returns citation metadata (Perplexity), and a plain one that
// does pure text generation (Anthropic). The pipelines depend only on the
// interface; the variant is selected once at construction time.
package llm

import (
	"context"

	"github.com/charlie-robison/pythia/internal/pipeline"
	"github.com/charlie-robison/pythia/pkg/anthropic"
	"github.com/charlie-robison/pythia/pkg/perplexity"
)

// Request is one completion call. Stage labels the pipeline stage for cost
// attribution logging.
type Request struct {
	System    string
	Prompt    string
	MaxTokens int
	Stage     string
}

// Link is one cited source returned by the extended variant.
type Link struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Completion is the result of one completion call. Links is empty for the
// plain variant.
type Completion struct {
	Text  string
	Links []Link
}

// Completer is the single collaborator capability the pipelines invoke.
// Implementations must honor ctx; failures are reported as errors carrying
// the pipeline taxonomy.
type Completer interface {
	Complete(ctx context.Context, req Request) (*Completion, error)

	// Searching reports whether completions perform live lookups and
	// return citation links.
	Searching() bool
}

const defaultMaxTokens = 4096

// plainCompleter generates text with the Anthropic API. No live lookups,
// no citations.
type plainCompleter struct {
	client anthropic.Client
	model  string
}

// NewPlain creates the plain (pure text generation) variant.
func NewPlain(client anthropic.Client, model string) Completer {
	return &plainCompleter{client: client, model: model}
}

func (c *plainCompleter) Searching() bool { return false }

func (c *plainCompleter) Complete(ctx context.Context, req Request) (*Completion, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	mr := anthropic.MessageRequest{
		Model:     c.model,
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.Message{
			{Role: "user", Content: req.Prompt},
		},
	}
	if req.System != "" {
		mr.System = []anthropic.SystemBlock{{Text: req.System}}
	}

	resp, err := c.client.CreateMessage(ctx, mr)
	if err != nil {
		return nil, pipeline.Classify(err, "llm: anthropic completion")
	}

	stage := req.Stage
	if stage == "" {
		stage = "completion"
	}
	resp.Usage.LogCost(c.model, stage)

	return &Completion{Text: anthropic.ExtractText(resp)}, nil
}

// searchingCompleter answers with live web lookups via Perplexity and maps
// its search results to citation links.
type searchingCompleter struct {
	client perplexity.Client
	model  string
}

// NewSearching creates the extended (live lookup) variant.
func NewSearching(client perplexity.Client, model string) Completer {
	return &searchingCompleter{client: client, model: model}
}

func (c *searchingCompleter) Searching() bool { return true }

func (c *searchingCompleter) Complete(ctx context.Context, req Request) (*Completion, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	messages := make([]perplexity.Message, 0, 2)
	if req.System != "" {
		messages = append(messages, perplexity.Message{Role: "system", Content: req.System})
	}
	messages = append(messages, perplexity.Message{Role: "user", Content: req.Prompt})

	resp, err := c.client.ChatCompletion(ctx, perplexity.ChatCompletionRequest{
		Model:     c.model,
		Messages:  messages,
		MaxTokens: &maxTokens,
	})
	if err != nil {
		return nil, pipeline.Classify(err, "llm: perplexity completion")
	}
	if len(resp.Choices) == 0 {
		return nil, pipeline.Malformed(nil, "llm: perplexity returned no choices")
	}

	out := &Completion{Text: resp.Choices[0].Message.Content}
	seen := make(map[string]bool, len(resp.SearchResults))
	for _, sr := range resp.SearchResults {
		if sr.URL == "" || seen[sr.URL] {
			continue
		}
		seen[sr.URL] = true
		out.Links = append(out.Links, Link{Title: sr.Title, URL: sr.URL})
	}
	return out, nil
}

// Pick returns the completer to use for live research given what is
// configured: the extended variant when available, otherwise the plain one.
func Pick(extended, plain Completer) Completer {
	if extended != nil {
		return extended
	}
	return plain
}
