// Package responder drives one conversational turn end-to-end on a
// rate-limited cadence: watch the transcript for changes, research the
// topics it raises, generate a spoken-ready answer, then extract structured
// insights. Readers observe results through immutable published snapshots
// and are never blocked by the loop.
package responder

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"parley/internal/insight"
	"parley/internal/oracle"
	"parley/internal/prompt"
	"parley/internal/research"
	"parley/internal/transcript"
)

const (
	// DefaultResponseInterval is the minimum wall-clock spacing between
	// the start of consecutive turns.
	DefaultResponseInterval = 2 * time.Second

	// contextWindow bounds the conversation context to the most recent
	// transcript snapshots, oldest evicted first.
	contextWindow = 10

	// researchContextEntries is how many recent context entries feed the
	// research phase.
	researchContextEntries = 3
)

// PublishedState is the externally visible result of the most recent
// successful turn. It is replaced as a unit; a failed turn leaves the
// previous snapshot untouched.
type PublishedState struct {
	Response string
	Sources  []research.Result
	Context  []string
	Insights insight.Insights
}

// Config tunes a Responder.
type Config struct {
	ResponseInterval time.Duration // 0 means DefaultResponseInterval
	EnableResearch   bool
	Temperature      float64 // 0 means 0.6
	MaxTokens        int     // 0 means 500
}

// Responder is the orchestrator loop. Construct with New, drive with Run on
// a dedicated goroutine, and read from any goroutine via State, Queries,
// Insights, and ResearchActivity.
type Responder struct {
	oracle    oracle.Client
	source    transcript.Source
	tracker   *research.Tracker
	extractor *insight.Extractor
	log       *zap.Logger

	enableResearch bool
	temperature    float64
	maxTokens      int
	interval       atomic.Int64 // nanoseconds

	published atomic.Pointer[PublishedState]

	mu             sync.Mutex
	contextEntries []string
	queries        []string
	generation     uint64
}

// New creates a responder. tracker may be nil when research is disabled;
// extractor is required.
func New(client oracle.Client, source transcript.Source, tracker *research.Tracker, extractor *insight.Extractor, cfg Config, log *zap.Logger) *Responder {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Responder{
		oracle:         client,
		source:         source,
		tracker:        tracker,
		extractor:      extractor,
		log:            log,
		enableResearch: cfg.EnableResearch && tracker != nil,
		temperature:    cfg.Temperature,
		maxTokens:      cfg.MaxTokens,
	}
	if r.temperature == 0 {
		r.temperature = 0.6
	}
	if r.maxTokens == 0 {
		r.maxTokens = 500
	}
	interval := cfg.ResponseInterval
	if interval == 0 {
		interval = DefaultResponseInterval
	}
	r.interval.Store(int64(interval))
	r.published.Store(&PublishedState{Response: prompt.InitialResponse})
	return r
}

// Run blocks, processing turns until ctx is done. The loop has no terminal
// state of its own: every oracle failure is logged and absorbed, and only
// context cancellation returns.
func (r *Responder) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.source.Changes():
			start := time.Now()
			r.cycle(ctx)
			r.sleepRemainder(ctx, time.Since(start))
		}
	}
}

// cycle performs one turn: research, generation, publish, insights.
func (r *Responder) cycle(ctx context.Context) {
	gen := r.currentGeneration()
	transcriptText := r.source.Transcript()

	var outcome research.Outcome
	if r.enableResearch {
		outcome = r.tracker.Research(ctx, transcriptText, r.recentContext())
		r.setQueries(outcome.Queries)
	}

	response := r.generate(ctx, transcriptText, outcome)
	if response == "" {
		// Failed turn: nothing is published, context and insights stay as
		// they were, and the rate limit still applies.
		return
	}

	if !r.publish(gen, response, outcome.Sources, transcriptText) {
		r.log.Info("discarding stale publish after clear")
		return
	}

	// Insight extraction runs after the response is visible; its failure
	// never rolls the response back.
	insights := r.extractor.Extract(ctx, transcriptText)
	r.publishInsights(gen, insights)
}

// generate calls the oracle with the research-augmented or plain prompt and
// extracts the spoken-ready answer.
func (r *Responder) generate(ctx context.Context, transcriptText string, outcome research.Outcome) string {
	var p string
	if outcome.HasResearch {
		p = prompt.Research(transcriptText, outcome.Queries, outcome.Findings())
	} else {
		p = prompt.Conversation(transcriptText)
	}

	reply, err := r.oracle.Generate(ctx, p, oracle.Options{
		Temperature: r.temperature,
		MaxTokens:   r.maxTokens,
	})
	if err != nil {
		r.log.Warn("response generation failed", zap.Error(err))
		return ""
	}
	return extractBracketed(reply)
}

// extractBracketed returns the substring between the first '[' and the
// first ']' after it. Replies without such a pair are used verbatim.
func extractBracketed(reply string) string {
	open := strings.Index(reply, "[")
	if open >= 0 {
		if end := strings.Index(reply[open+1:], "]"); end >= 0 {
			return reply[open+1 : open+1+end]
		}
	}
	return reply
}

// publish swaps in a new snapshot and appends the turn's transcript to the
// conversation context, unless a clear has superseded this turn.
func (r *Responder) publish(gen uint64, response string, sources []research.Result, transcriptText string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if gen != r.generation {
		return false
	}

	r.contextEntries = append(r.contextEntries, transcriptText)
	if len(r.contextEntries) > contextWindow {
		r.contextEntries = r.contextEntries[len(r.contextEntries)-contextWindow:]
	}

	r.published.Store(&PublishedState{
		Response: response,
		Sources:  sources,
		Context:  append([]string(nil), r.contextEntries...),
		Insights: r.published.Load().Insights,
	})
	return true
}

// publishInsights re-publishes the current snapshot with fresh insights,
// unless a clear has superseded this turn.
func (r *Responder) publishInsights(gen uint64, insights insight.Insights) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if gen != r.generation {
		return
	}
	prev := r.published.Load()
	r.published.Store(&PublishedState{
		Response: prev.Response,
		Sources:  prev.Sources,
		Context:  prev.Context,
		Insights: insights,
	})
}

// sleepRemainder enforces the minimum spacing between turns. The sleep
// floor is zero: a turn that overran its interval starts the next wait
// immediately.
func (r *Responder) sleepRemainder(ctx context.Context, elapsed time.Duration) {
	d := remaining(r.ResponseInterval(), elapsed)
	if d == 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// remaining computes the rate-limit sleep, floored at zero.
func remaining(interval, elapsed time.Duration) time.Duration {
	if d := interval - elapsed; d > 0 {
		return d
	}
	return 0
}

// recentContext joins the last few context entries for the research phase.
func (r *Responder) recentContext() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	entries := r.contextEntries
	if len(entries) > researchContextEntries {
		entries = entries[len(entries)-researchContextEntries:]
	}
	return strings.Join(entries, "\n")
}

func (r *Responder) currentGeneration() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.generation
}

func (r *Responder) setQueries(queries []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queries = append([]string(nil), queries...)
}

// State returns the latest published snapshot. The snapshot is immutable;
// callers may retain it.
func (r *Responder) State() *PublishedState {
	return r.published.Load()
}

// Queries returns the research queries of the most recent turn, populated
// regardless of whether the turn published.
func (r *Responder) Queries() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.queries...)
}

// Insights returns the most recently extracted insights.
func (r *Responder) Insights() insight.Insights {
	return r.extractor.Current()
}

// ResearchActivity returns the tracker's activity snapshot, or a zero
// snapshot when research is disabled.
func (r *Responder) ResearchActivity() research.Activity {
	if !r.enableResearch {
		return research.Activity{}
	}
	return r.tracker.Activity()
}

// RegisterResearchObserver forwards to the tracker when research is
// enabled.
func (r *Responder) RegisterResearchObserver(fn func()) {
	if r.enableResearch {
		r.tracker.RegisterObserver(fn)
	}
}

// SetResponseInterval adjusts the rate limit. Takes effect on the next
// computed sleep, not retroactively.
func (r *Responder) SetResponseInterval(d time.Duration) {
	if d < 0 {
		d = 0
	}
	r.interval.Store(int64(d))
}

// ResponseInterval returns the current rate-limit interval.
func (r *Responder) ResponseInterval() time.Duration {
	return time.Duration(r.interval.Load())
}

// ClearContext empties the conversation context, published sources and
// queries, and forwards the clear to the research tracker and insight
// extractor. A turn in flight when the clear lands is discarded at publish
// time rather than resurrecting stale state.
func (r *Responder) ClearContext() {
	r.mu.Lock()
	r.generation++
	r.contextEntries = nil
	r.queries = nil
	prev := r.published.Load()
	r.published.Store(&PublishedState{Response: prev.Response})
	r.mu.Unlock()

	if r.tracker != nil {
		r.tracker.Clear()
	}
	r.extractor.Clear()
}
