// Package research turns conversation transcripts into search queries,
// executes them against the generation oracle, and maintains a thread-safe
// view of in-flight and historical research for concurrent readers.
package research

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"parley/internal/oracle"
	"parley/internal/prompt"
)

const (
	// maxQueries bounds how many searches one turn may dispatch.
	maxQueries = 3
	// snippetLimit is the stored snippet length before truncation.
	snippetLimit = 300
	// recentWindow is how many history entries an activity snapshot reports.
	recentWindow = 5
)

// SourceType tags where a research result came from.
type SourceType string

const (
	SourceTypeWeb        SourceType = "web"
	SourceTypeAIResearch SourceType = "ai_research"
)

// Result is a single research source. Immutable once created.
type Result struct {
	Title      string
	URL        string
	Snippet    string
	SourceType SourceType
	Timestamp  time.Time
}

// HistoryEntry records one completed search. Entries are append-only and
// never mutated after creation.
type HistoryEntry struct {
	Query     string
	Results   []Result
	Timestamp time.Time
}

// Outcome is the unit handed from research to response generation.
type Outcome struct {
	Queries     []string
	Sources     []Result
	HasResearch bool
}

// Activity is a consistent snapshot of research state for status readers.
type Activity struct {
	ActiveSearches []string
	RecentSearches []string
	TotalSources   int
}

// Findings converts sources to the shape prompts embed.
func (o Outcome) Findings() []prompt.Finding {
	findings := make([]prompt.Finding, 0, len(o.Sources))
	for _, src := range o.Sources {
		findings = append(findings, prompt.Finding{Title: src.Title, Snippet: src.Snippet})
	}
	return findings
}

// Tracker owns the set of in-flight and historical research queries.
// All exported methods are safe for concurrent use; the lock is never held
// across an oracle call.
type Tracker struct {
	oracle oracle.Client
	log    *zap.Logger

	mu        sync.Mutex
	history   []HistoryEntry
	active    []string
	observers []func()
}

// NewTracker creates a research tracker backed by the given oracle.
func NewTracker(client oracle.Client, log *zap.Logger) *Tracker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Tracker{oracle: client, log: log}
}

// RegisterObserver adds a callback invoked after every state change.
// Callbacks run under the tracker lock and must not call back into the
// tracker; panics are recovered and logged so one bad observer cannot halt
// notification of the rest.
func (t *Tracker) RegisterObserver(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.observers = append(t.observers, fn)
}

// notifyLocked fans out to observers. Caller holds t.mu.
func (t *Tracker) notifyLocked() {
	for _, fn := range t.observers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					t.log.Warn("research observer panicked", zap.Any("panic", r))
				}
			}()
			fn()
		}()
	}
}

// ExtractQueries asks the oracle which topics in the transcript need
// research. Returns at most three queries; an oracle failure or the NONE
// sentinel yields none.
func (t *Tracker) ExtractQueries(ctx context.Context, transcript, conversationContext string) []string {
	reply, err := t.oracle.Generate(ctx, prompt.QueryExtraction(transcript, conversationContext), oracle.Options{
		Temperature: 0.3,
		MaxTokens:   150,
	})
	if err != nil {
		t.log.Warn("query extraction failed", zap.Error(err))
		return nil
	}
	return parseQueries(reply)
}

// parseQueries converts the oracle's reply into a bounded query list.
func parseQueries(reply string) []string {
	trimmed := strings.TrimSpace(reply)
	if trimmed == "" || trimmed == prompt.QuerySentinel {
		return nil
	}

	var queries []string
	for _, line := range strings.Split(trimmed, "\n") {
		q := strings.TrimSpace(line)
		q = strings.TrimSpace(strings.TrimLeft(q, "-*"))
		if q == "" {
			continue
		}
		queries = append(queries, q)
		if len(queries) == maxQueries {
			break
		}
	}
	return queries
}

// Search executes one research query. The query is visible in the active
// set for the duration of the oracle call and is removed on both success
// and failure.
func (t *Tracker) Search(ctx context.Context, query string) []Result {
	t.mu.Lock()
	t.active = append(t.active, query)
	t.notifyLocked()
	t.mu.Unlock()

	reply, err := t.oracle.Generate(ctx, prompt.SourceResearch(query), oracle.Options{
		Temperature: 0.2,
		MaxTokens:   400,
	})
	if err != nil {
		t.log.Warn("search failed", zap.String("query", query), zap.Error(err))
		t.mu.Lock()
		t.removeActiveLocked(query)
		t.notifyLocked()
		t.mu.Unlock()
		return nil
	}

	results := []Result{{
		Title:      "Research: " + query,
		URL:        "search:" + strings.ReplaceAll(query, " ", "+"),
		Snippet:    truncateSnippet(reply),
		SourceType: SourceTypeAIResearch,
		Timestamp:  time.Now(),
	}}

	t.mu.Lock()
	t.history = append(t.history, HistoryEntry{
		Query:     query,
		Results:   results,
		Timestamp: time.Now(),
	})
	t.removeActiveLocked(query)
	t.notifyLocked()
	t.mu.Unlock()

	return results
}

// removeActiveLocked removes the first occurrence of query. Caller holds t.mu.
func (t *Tracker) removeActiveLocked(query string) {
	for i, q := range t.active {
		if q == query {
			t.active = append(t.active[:i], t.active[i+1:]...)
			return
		}
	}
}

// truncateSnippet bounds stored prose at snippetLimit characters, marking
// truncation with an ellipsis.
func truncateSnippet(text string) string {
	runes := []rune(text)
	if len(runes) <= snippetLimit {
		return text
	}
	return string(runes[:snippetLimit]) + "..."
}

// Research extracts queries and runs each search sequentially. A zero-query
// turn performs no oracle calls beyond the extraction call itself.
func (t *Tracker) Research(ctx context.Context, transcript, conversationContext string) Outcome {
	queries := t.ExtractQueries(ctx, transcript, conversationContext)
	if len(queries) == 0 {
		return Outcome{}
	}

	var sources []Result
	for _, query := range queries {
		sources = append(sources, t.Search(ctx, query)...)
	}

	return Outcome{Queries: queries, Sources: sources, HasResearch: true}
}

// Activity returns a consistent snapshot of research state without
// mutating it.
func (t *Tracker) Activity() Activity {
	t.mu.Lock()
	defer t.mu.Unlock()

	act := Activity{
		ActiveSearches: append([]string(nil), t.active...),
	}

	start := len(t.history) - recentWindow
	if start < 0 {
		start = 0
	}
	for _, entry := range t.history[start:] {
		act.RecentSearches = append(act.RecentSearches, entry.Query)
	}
	for _, entry := range t.history {
		act.TotalSources += len(entry.Results)
	}
	return act
}

// AllSources returns the flattened history in chronological order.
func (t *Tracker) AllSources() []Result {
	t.mu.Lock()
	defer t.mu.Unlock()

	var all []Result
	for _, entry := range t.history {
		all = append(all, entry.Results...)
	}
	return all
}

// History returns a copy of the search history in chronological order.
func (t *Tracker) History() []HistoryEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]HistoryEntry(nil), t.history...)
}

// Clear empties history and the active set and notifies observers.
func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.history = nil
	t.active = nil
	t.notifyLocked()
}
