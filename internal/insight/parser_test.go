package insight

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleReply = `Here is my analysis of the conversation.

ACTION ITEMS:
- [Priority: high] [Alice] Send the report by Friday
- [Priority: low] Review the onboarding doc
- NONE

KEY TOPICS:
- Quarterly planning
- Hiring pipeline

DECISIONS:
- Ship the beta next week

QUESTIONS:
- Who owns the migration runbook?
`

func TestParse(t *testing.T) {
	insights := Parse(sampleReply)

	t.Run("action item with priority and assignee", func(t *testing.T) {
		require.Len(t, insights.ActionItems, 2)
		first := insights.ActionItems[0]
		assert.Equal(t, "Send the report by Friday", first.Text)
		assert.Equal(t, PriorityHigh, first.Priority)
		assert.Equal(t, "Alice", first.AssignedTo)
		assert.False(t, first.Completed)
		assert.NotEmpty(t, first.ID)
		assert.False(t, first.CreatedAt.IsZero())
	})

	t.Run("assignee defaults when only priority bracket present", func(t *testing.T) {
		second := insights.ActionItems[1]
		assert.Equal(t, "Review the onboarding doc", second.Text)
		assert.Equal(t, PriorityLow, second.Priority)
		assert.Equal(t, "you", second.AssignedTo)
	})

	t.Run("sections collected", func(t *testing.T) {
		assert.Equal(t, []string{"Quarterly planning", "Hiring pipeline"}, insights.KeyTopics)
		assert.Equal(t, []string{"Ship the beta next week"}, insights.DecisionsMade)
		assert.Equal(t, []string{"Who owns the migration runbook?"}, insights.QuestionsRaised)
	})
}

func TestParseEdgeCases(t *testing.T) {
	t.Run("none lines filtered from every section", func(t *testing.T) {
		insights := Parse("KEY TOPICS:\n- NONE\n\nDECISIONS:\n- none\n\nQUESTIONS:\n- None\n")
		assert.Empty(t, insights.KeyTopics)
		assert.Empty(t, insights.DecisionsMade)
		assert.Empty(t, insights.QuestionsRaised)
	})

	t.Run("lines before any header ignored", func(t *testing.T) {
		insights := Parse("- stray item\nKEY TOPICS:\n- real topic\n")
		assert.Equal(t, []string{"real topic"}, insights.KeyTopics)
	})

	t.Run("non-dash lines under a section ignored", func(t *testing.T) {
		insights := Parse("KEY TOPICS:\nsome commentary\n- topic\n")
		assert.Equal(t, []string{"topic"}, insights.KeyTopics)
	})

	t.Run("priority defaults to medium", func(t *testing.T) {
		insights := Parse("ACTION ITEMS:\n- [Bob] Call the vendor\n")
		require.Len(t, insights.ActionItems, 1)
		assert.Equal(t, PriorityMedium, insights.ActionItems[0].Priority)
		assert.Equal(t, "Bob", insights.ActionItems[0].AssignedTo)
	})

	t.Run("priority pattern is case-insensitive", func(t *testing.T) {
		insights := Parse("ACTION ITEMS:\n- [priority: HIGH] Escalate the incident\n")
		require.Len(t, insights.ActionItems, 1)
		assert.Equal(t, PriorityHigh, insights.ActionItems[0].Priority)
	})

	t.Run("item empty after bracket stripping discarded", func(t *testing.T) {
		insights := Parse("ACTION ITEMS:\n- [Priority: high] [Alice]\n")
		assert.Empty(t, insights.ActionItems)
	})

	t.Run("unstructured reply yields empty insights", func(t *testing.T) {
		insights := Parse("The conversation was pleasant but uneventful.")
		assert.Empty(t, insights.KeyTopics)
		assert.Empty(t, insights.ActionItems)
	})
}
