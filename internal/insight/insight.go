// Package insight converts free-form conversation transcript into
// structured insights (topics, decisions, open questions, action items)
// via one oracle call per distinct transcript value.
package insight

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"parley/internal/oracle"
	"parley/internal/prompt"
)

// minTranscriptLen guards against analyzing transcripts too short to carry
// any structure.
const minTranscriptLen = 50

// Priority of an action item.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// ActionItem is a task or commitment surfaced from the conversation.
// Completed is mutated by callers once an item is surfaced, never by this
// package.
type ActionItem struct {
	ID         string
	Text       string
	Priority   Priority
	AssignedTo string
	CreatedAt  time.Time
	Completed  bool
}

// Insights is the structured view of one analyzed transcript. It is
// replaced wholesale on each successful extraction, never merged.
type Insights struct {
	KeyTopics       []string
	DecisionsMade   []string
	QuestionsRaised []string
	ActionItems     []ActionItem
}

// Extractor analyzes transcripts with strict at-most-once-per-value
// semantics: a given transcript string triggers at most one oracle call,
// even if that call fails.
type Extractor struct {
	oracle oracle.Client
	log    *zap.Logger

	mu           sync.Mutex
	current      Insights
	lastAnalyzed string
}

// NewExtractor creates an insight extractor backed by the given oracle.
func NewExtractor(client oracle.Client, log *zap.Logger) *Extractor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Extractor{oracle: client, log: log}
}

// Extract analyzes the transcript and returns the current insights.
// Short transcripts and transcripts identical to the last analyzed value
// return the previous insights without an oracle call. The transcript is
// recorded as analyzed before the oracle call, so a transient failure is
// not retried until the transcript changes again.
func (e *Extractor) Extract(ctx context.Context, transcript string) Insights {
	e.mu.Lock()
	if len(transcript) < minTranscriptLen || transcript == e.lastAnalyzed {
		current := e.current
		e.mu.Unlock()
		return current
	}
	e.lastAnalyzed = transcript
	e.mu.Unlock()

	reply, err := e.oracle.Generate(ctx, prompt.InsightExtraction(transcript), oracle.Options{
		Temperature: 0.2,
		MaxTokens:   500,
	})
	if err != nil {
		e.log.Warn("insight extraction failed", zap.Error(err))
		return e.Current()
	}

	parsed := Parse(reply)

	e.mu.Lock()
	e.current = parsed
	e.mu.Unlock()
	return parsed
}

// Current returns the most recently extracted insights.
func (e *Extractor) Current() Insights {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

// Clear resets to empty insights and forgets the last analyzed transcript.
func (e *Extractor) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.current = Insights{}
	e.lastAnalyzed = ""
}
