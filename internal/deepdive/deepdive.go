// Package deepdive performs comprehensive one-shot research on a single
// topic: several diverse query angles, parallel searches through the shared
// research tracker, and a synthesized analysis.
package deepdive

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"parley/internal/oracle"
	"parley/internal/prompt"
	"parley/internal/research"
)

const (
	// maxAngles is how many research angles one dive generates.
	maxAngles = 5
	// defaultConcurrency bounds parallel searches to stay inside oracle
	// rate limits.
	defaultConcurrency = 2
)

// summaryFallback is returned when the synthesis call fails; the sources
// themselves are still useful.
const summaryFallback = "Error generating summary. See sources below."

// Report is the result of one deep dive.
type Report struct {
	Topic   string
	Queries []string
	Sources []research.Result
	Summary string
}

// Diver runs deep-dive research using the shared tracker, so dives show up
// in the same activity view as regular turns.
type Diver struct {
	oracle      oracle.Client
	tracker     *research.Tracker
	log         *zap.Logger
	concurrency int
}

// NewDiver creates a deep-dive runner.
func NewDiver(client oracle.Client, tracker *research.Tracker, log *zap.Logger) *Diver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Diver{
		oracle:      client,
		tracker:     tracker,
		log:         log,
		concurrency: defaultConcurrency,
	}
}

// Dive researches the topic from several angles and synthesizes a summary.
func (d *Diver) Dive(ctx context.Context, topic string) (*Report, error) {
	if strings.TrimSpace(topic) == "" {
		return nil, fmt.Errorf("deep dive topic is empty")
	}

	queries := d.angleQueries(ctx, topic)

	// Searches are independent of each other; run them in parallel but
	// keep the results in query order.
	resultsByQuery := make([][]research.Result, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)
	for i, query := range queries {
		g.Go(func() error {
			resultsByQuery[i] = d.tracker.Search(gctx, query)
			return nil
		})
	}
	_ = g.Wait() // searches absorb their own failures

	var sources []research.Result
	for _, results := range resultsByQuery {
		sources = append(sources, results...)
	}

	return &Report{
		Topic:   topic,
		Queries: queries,
		Sources: sources,
		Summary: d.summarize(ctx, topic, sources),
	}, nil
}

// angleQueries asks the oracle for diverse research angles, falling back to
// the bare topic when the call fails.
func (d *Diver) angleQueries(ctx context.Context, topic string) []string {
	reply, err := d.oracle.Generate(ctx, prompt.DeepDiveQueries(topic), oracle.Options{
		Temperature: 0.4,
		MaxTokens:   200,
	})
	if err != nil {
		d.log.Warn("angle query generation failed", zap.String("topic", topic), zap.Error(err))
		return []string{topic}
	}

	var queries []string
	for _, line := range strings.Split(strings.TrimSpace(reply), "\n") {
		q := strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "0123456789.- "))
		if q == "" {
			continue
		}
		queries = append(queries, q)
		if len(queries) == maxAngles {
			break
		}
	}
	if len(queries) == 0 {
		return []string{topic}
	}
	return queries
}

// summarize synthesizes the sources into a sectioned analysis.
func (d *Diver) summarize(ctx context.Context, topic string, sources []research.Result) string {
	findings := make([]prompt.Finding, 0, len(sources))
	for _, src := range sources {
		findings = append(findings, prompt.Finding{Title: src.Title, Snippet: src.Snippet})
	}

	summary, err := d.oracle.Generate(ctx, prompt.DeepDiveSummary(topic, findings), oracle.Options{
		Temperature: 0.3,
		MaxTokens:   1000,
	})
	if err != nil {
		d.log.Warn("summary generation failed", zap.String("topic", topic), zap.Error(err))
		return summaryFallback
	}
	return summary
}

// Render formats the report as plain text for terminal display.
func (r *Report) Render() string {
	var b strings.Builder
	rule := strings.Repeat("=", 80)

	fmt.Fprintf(&b, "%s\nCOMPREHENSIVE ANALYSIS: %s\n%s\n\n%s\n\n", rule, r.Topic, rule, r.Summary)
	fmt.Fprintf(&b, "%s\nSOURCES (%d found)\n%s\n\n", rule, len(r.Sources), rule)
	for i, src := range r.Sources {
		fmt.Fprintf(&b, "[%d] %s\n    %s\n    Type: %s\n\n", i+1, src.Title, src.Snippet, src.SourceType)
	}
	return b.String()
}
