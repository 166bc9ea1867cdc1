package responder

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"parley/internal/insight"
	"parley/internal/oracle"
	"parley/internal/prompt"
	"parley/internal/research"
	"parley/internal/transcript"
)

// routingOracle answers each pipeline prompt kind with a scripted reply.
type routingOracle struct {
	mu            sync.Mutex
	queryReply    string
	searchReply   string
	responseReply string
	responseErr   error
	insightReply  string
	prompts       []string
}

func newRoutingOracle() *routingOracle {
	return &routingOracle{
		queryReply:    "NONE",
		searchReply:   "research prose",
		responseReply: "[a spoken answer]",
		insightReply:  "KEY TOPICS:\n- NONE\n",
	}
}

func (o *routingOracle) Generate(ctx context.Context, p string, opts oracle.Options) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.prompts = append(o.prompts, p)

	switch {
	case strings.HasPrefix(p, "Analyze this conversation and identify"):
		return o.queryReply, nil
	case strings.HasPrefix(p, "Research the following topic"):
		return o.searchReply, nil
	case strings.HasPrefix(p, "Analyze this conversation transcript"):
		return o.insightReply, nil
	default:
		return o.responseReply, o.responseErr
	}
}

func (o *routingOracle) lastResponsePrompt() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := len(o.prompts) - 1; i >= 0; i-- {
		if strings.HasPrefix(o.prompts[i], "You are an assistant") {
			return o.prompts[i]
		}
	}
	return ""
}

func newTestResponder(orc oracle.Client, source transcript.Source, enableResearch bool) *Responder {
	tracker := research.NewTracker(orc, zap.NewNop())
	extractor := insight.NewExtractor(orc, zap.NewNop())
	return New(orc, source, tracker, extractor, Config{
		ResponseInterval: time.Millisecond,
		EnableResearch:   enableResearch,
	}, zap.NewNop())
}

func TestExtractBracketed(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  string
	}{
		{"bracketed", "sure thing [the answer] hope that helps", "the answer"},
		{"bracketless verbatim", "Here is your answer without brackets", "Here is your answer without brackets"},
		{"open without close", "partial [answer", "partial [answer"},
		{"close before open", "weird ] then [real one]", "real one"},
		{"empty brackets", "nothing [] here", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractBracketed(tt.reply))
		})
	}
}

func TestRemaining(t *testing.T) {
	assert.Equal(t, time.Second, remaining(2*time.Second, time.Second))
	assert.Equal(t, time.Duration(0), remaining(2*time.Second, 2*time.Second))
	assert.Equal(t, time.Duration(0), remaining(2*time.Second, 3*time.Second))
}

func TestCyclePublish(t *testing.T) {
	t.Run("successful turn publishes response and context", func(t *testing.T) {
		orc := newRoutingOracle()
		buf := transcript.NewBuffer()
		r := newTestResponder(orc, buf, false)

		buf.Append("Speaker: what is the capital of France?")
		r.cycle(context.Background())

		state := r.State()
		assert.Equal(t, "a spoken answer", state.Response)
		require.Len(t, state.Context, 1)
		assert.Equal(t, "Speaker: what is the capital of France?", state.Context[0])
	})

	t.Run("initial state holds the ready message", func(t *testing.T) {
		orc := newRoutingOracle()
		r := newTestResponder(orc, transcript.NewBuffer(), false)
		assert.Equal(t, prompt.InitialResponse, r.State().Response)
	})

	t.Run("failed generation leaves previous state untouched", func(t *testing.T) {
		orc := newRoutingOracle()
		buf := transcript.NewBuffer()
		r := newTestResponder(orc, buf, false)

		buf.Append("Speaker: first question")
		r.cycle(context.Background())
		published := r.State()

		orc.mu.Lock()
		orc.responseErr = &oracle.Error{Kind: oracle.KindQuota}
		orc.mu.Unlock()

		buf.Append("Speaker: second question")
		r.cycle(context.Background())

		assert.Same(t, published, r.State())
		assert.Len(t, r.State().Context, 1)
	})

	t.Run("empty bracket reply treated as failed turn", func(t *testing.T) {
		orc := newRoutingOracle()
		orc.responseReply = "[]"
		buf := transcript.NewBuffer()
		r := newTestResponder(orc, buf, false)

		buf.Append("Speaker: anything")
		r.cycle(context.Background())
		assert.Equal(t, prompt.InitialResponse, r.State().Response)
	})

	t.Run("context bounded to ten entries oldest first", func(t *testing.T) {
		orc := newRoutingOracle()
		buf := transcript.NewBuffer()
		r := newTestResponder(orc, buf, false)

		for i := 0; i < 14; i++ {
			buf.Append(fmt.Sprintf("line %d", i))
			r.cycle(context.Background())
		}

		state := r.State()
		require.Len(t, state.Context, 10)
		assert.True(t, strings.HasSuffix(state.Context[9], "line 13"))
		// The oldest retained entry is the turn four cycles in.
		assert.True(t, strings.HasSuffix(state.Context[0], "line 4"))
	})
}

func TestPromptSelection(t *testing.T) {
	t.Run("plain template when research finds nothing", func(t *testing.T) {
		orc := newRoutingOracle() // queryReply NONE
		buf := transcript.NewBuffer()
		r := newTestResponder(orc, buf, true)

		buf.Append("just chatting, nothing factual")
		r.cycle(context.Background())

		p := orc.lastResponsePrompt()
		assert.NotContains(t, p, "RESEARCH FINDINGS")
		assert.Empty(t, r.Queries())
	})

	t.Run("research template embeds queries and findings", func(t *testing.T) {
		orc := newRoutingOracle()
		orc.queryReply = "capital of France"
		buf := transcript.NewBuffer()
		r := newTestResponder(orc, buf, true)

		buf.Append("Speaker: what is the capital of France?")
		r.cycle(context.Background())

		p := orc.lastResponsePrompt()
		assert.Contains(t, p, "RESEARCH FINDINGS")
		assert.Contains(t, p, "Research: capital of France")
		assert.Contains(t, p, "research prose")
		assert.Equal(t, []string{"capital of France"}, r.Queries())

		state := r.State()
		require.Len(t, state.Sources, 1)
		assert.Equal(t, research.SourceTypeAIResearch, state.Sources[0].SourceType)
	})
}

func TestInsightsFollowPublish(t *testing.T) {
	orc := newRoutingOracle()
	orc.insightReply = "KEY TOPICS:\n- capitals\nDECISIONS:\n- NONE\n"
	buf := transcript.NewBuffer()
	r := newTestResponder(orc, buf, false)

	buf.Append(strings.Repeat("Speaker: tell me about European capitals. ", 3))
	r.cycle(context.Background())

	assert.Equal(t, []string{"capitals"}, r.State().Insights.KeyTopics)
	assert.Equal(t, []string{"capitals"}, r.Insights().KeyTopics)
}

func TestClearContext(t *testing.T) {
	t.Run("clears context sources queries and downstream state", func(t *testing.T) {
		orc := newRoutingOracle()
		orc.queryReply = "some query"
		buf := transcript.NewBuffer()
		r := newTestResponder(orc, buf, true)

		buf.Append("Speaker: researched question here")
		r.cycle(context.Background())
		require.NotEmpty(t, r.State().Sources)

		r.ClearContext()

		state := r.State()
		assert.Empty(t, state.Context)
		assert.Empty(t, state.Sources)
		assert.Empty(t, r.Queries())
		assert.NotEmpty(t, state.Response) // response survives a clear
		assert.Zero(t, r.ResearchActivity().TotalSources)
		assert.Empty(t, r.Insights().KeyTopics)
	})

	t.Run("in-flight turn discarded after clear", func(t *testing.T) {
		orc := newRoutingOracle()
		buf := transcript.NewBuffer()
		r := newTestResponder(orc, buf, false)

		buf.Append("Speaker: question")
		gen := r.currentGeneration()
		r.ClearContext()

		// Simulate the publish step of a turn that started before the clear.
		published := r.publish(gen, "stale answer", nil, "stale transcript")
		assert.False(t, published)
		assert.Empty(t, r.State().Context)
		assert.NotEqual(t, "stale answer", r.State().Response)
	})
}

func TestSetResponseInterval(t *testing.T) {
	r := newTestResponder(newRoutingOracle(), transcript.NewBuffer(), false)
	r.SetResponseInterval(5 * time.Second)
	assert.Equal(t, 5*time.Second, r.ResponseInterval())
	r.SetResponseInterval(-time.Second)
	assert.Equal(t, time.Duration(0), r.ResponseInterval())
}

func TestRunLoop(t *testing.T) {
	// go.opencensus.io starts a worker goroutine in package init that can
	// never be stopped; ignore it per goleak's documented guidance.
	defer goleak.VerifyNone(t, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))

	orc := newRoutingOracle()
	buf := transcript.NewBuffer()
	r := newTestResponder(orc, buf, false)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.Run(ctx)
	}()

	buf.Append("Speaker: hello there, first question")
	require.Eventually(t, func() bool {
		return r.State().Response == "a spoken answer"
	}, 3*time.Second, 5*time.Millisecond)

	// A second change triggers a second turn after the rate limit.
	orc.mu.Lock()
	orc.responseReply = "[a second answer]"
	orc.mu.Unlock()
	buf.Append("Speaker: a follow-up question")
	require.Eventually(t, func() bool {
		return r.State().Response == "a second answer"
	}, 3*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}
