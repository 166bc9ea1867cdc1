package insight

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Section headers the oracle is instructed to emit. A line must match one
// of these exactly (after trimming) to switch the active section.
const (
	sectionActionItems = "ACTION ITEMS:"
	sectionKeyTopics   = "KEY TOPICS:"
	sectionDecisions   = "DECISIONS:"
	sectionQuestions   = "QUESTIONS:"
)

// noneToken marks an intentionally empty section in the oracle's reply.
const noneToken = "NONE"

var (
	priorityPattern = regexp.MustCompile(`(?i)\[priority:\s*(high|medium|low)\]`)
	bracketPattern  = regexp.MustCompile(`\[([^\]\[]*)\]`)
)

// Parse converts the oracle's sectioned reply into Insights using a
// line-oriented state machine: exact header lines switch the current
// section, dash-prefixed lines under a section accumulate as items, and
// everything else is ignored.
func Parse(text string) Insights {
	sections := map[string][]string{}

	current := ""
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		switch line {
		case sectionActionItems, sectionKeyTopics, sectionDecisions, sectionQuestions:
			current = line
			continue
		}
		if current == "" || !strings.HasPrefix(line, "-") {
			continue
		}
		item := strings.TrimLeft(line, "- ")
		if item == "" {
			continue
		}
		sections[current] = append(sections[current], item)
	}

	insights := Insights{
		KeyTopics:       dropNone(sections[sectionKeyTopics]),
		DecisionsMade:   dropNone(sections[sectionDecisions]),
		QuestionsRaised: dropNone(sections[sectionQuestions]),
	}

	for _, item := range sections[sectionActionItems] {
		if strings.EqualFold(item, noneToken) {
			continue
		}
		if action, ok := parseActionItem(item); ok {
			insights.ActionItems = append(insights.ActionItems, action)
		}
	}

	return insights
}

// parseActionItem extracts priority, assignee, and clean text from one raw
// action item line. Items whose text is empty after stripping all bracketed
// groups are discarded.
func parseActionItem(item string) (ActionItem, bool) {
	priority := PriorityMedium
	if m := priorityPattern.FindStringSubmatch(item); m != nil {
		priority = Priority(strings.ToLower(m[1]))
	}

	assignee := "you"
	for _, m := range bracketPattern.FindAllStringSubmatch(item, -1) {
		group := strings.TrimSpace(m[1])
		if strings.HasPrefix(strings.ToLower(group), "priority") {
			continue
		}
		assignee = group
		break
	}

	text := strings.TrimSpace(bracketPattern.ReplaceAllString(item, ""))
	if text == "" {
		return ActionItem{}, false
	}

	return ActionItem{
		ID:         uuid.NewString(),
		Text:       text,
		Priority:   priority,
		AssignedTo: assignee,
		CreatedAt:  time.Now(),
	}, true
}

// dropNone filters the sentinel lines out of a section's item list.
func dropNone(items []string) []string {
	var kept []string
	for _, item := range items {
		if strings.EqualFold(item, noneToken) {
			continue
		}
		kept = append(kept, item)
	}
	return kept
}
