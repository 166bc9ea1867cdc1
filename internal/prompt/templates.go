// Package prompt holds the instruction templates sent to the generation
// oracle. Keeping them in one place decouples prompt wording from the
// components that issue the calls.
package prompt

import (
	"fmt"
	"strings"
)

// InitialResponse is published before the first successful cycle.
const InitialResponse = "I'm ready to help you answer questions. Just speak naturally."

// QuerySentinel is the literal reply meaning "no research needed".
const QuerySentinel = "NONE"

// Finding is the slice of a research source that gets embedded in prompts.
type Finding struct {
	Title   string
	Snippet string
}

// Conversation builds the plain response-generation prompt.
func Conversation(transcript string) string {
	return fmt.Sprintf(`You are an assistant helping the user (microphone) answer questions being asked by the speaker. Your goal is to provide natural, conversational responses that the user can read aloud regardless of how technical the question might be.

Here is the conversation transcript:
%s

Please provide a helpful response that the user can read verbatim to answer the speaker's question. Your response should:
1. Sound natural and conversational
2. Be appropriately detailed but concise enough to be spoken
3. Address the question directly even if the transcription is imperfect
4. Maintain context from previous exchanges for any follow-up questions

Give your response in square brackets. DO NOT ask for clarification or suggest that the user ask for repetition. Simply provide the best possible answer based on available information.`, transcript)
}

// Research builds the response-generation prompt augmented with research
// findings, instructing the oracle to cite them naturally.
func Research(transcript string, researched []string, findings []Finding) string {
	var sources strings.Builder
	if len(findings) > 0 {
		sources.WriteString("\n\nRESEARCH FINDINGS:\n")
		for i, f := range findings {
			fmt.Fprintf(&sources, "\n[Source %d] %s\n%s\n", i+1, f.Title, f.Snippet)
		}
	}

	var queries string
	if len(researched) > 0 {
		queries = fmt.Sprintf("\n\nResearched topics: %s", strings.Join(researched, ", "))
	}

	return fmt.Sprintf(`You are an assistant helping the user (microphone) answer questions being asked by the speaker. You have access to real-time research to provide accurate, well-informed responses.

Here is the conversation transcript:
%s%s%s

Using the research findings above, provide a helpful, ACCURATE response that the user can read verbatim. Your response should:
1. Sound natural and conversational
2. Be factually accurate and cite the research when relevant (e.g., "According to recent information...")
3. Be concise enough to be spoken aloud
4. Address the question directly with authoritative information
5. Maintain context from previous exchanges

IMPORTANT: Base your answer on the research findings provided. If the research doesn't fully answer the question, acknowledge this naturally.

Give your response in square brackets. Provide the best possible answer based on the research and conversation context.`, transcript, queries, sources.String())
}

// QueryExtraction asks the oracle which topics in the conversation need
// real-time research, returning at most three queries or the sentinel.
func QueryExtraction(transcript, conversationContext string) string {
	return fmt.Sprintf(`Analyze this conversation and identify what topics need real-time research to provide an accurate, helpful response.

Conversation:
%s

Previous context:
%s

Extract 0-3 specific search queries that would help answer questions or provide accurate information.
Only suggest searches for:
- Factual claims that need verification
- Technical topics that need current/accurate information
- Specific questions about products, companies, or recent events
- Complex topics that benefit from authoritative sources

Return ONLY the search queries, one per line. If no research is needed, return "NONE".
Be specific and focused. Examples:
- "latest Python 3.12 features"
- "GPT-4 API pricing 2024"
- "difference between REST and GraphQL"`, transcript, conversationContext)
}

// SourceResearch asks the oracle to produce citable research prose for a
// single query.
func SourceResearch(query string) string {
	return fmt.Sprintf(`Research the following topic and provide authoritative information with sources:

Query: %s

Provide a comprehensive answer based on reliable sources. Include:
1. Key facts and findings
2. Important context
3. Recent developments (if applicable)

Format your response as factual information that could be cited.`, query)
}

// InsightExtraction asks the oracle for the four labeled insight sections.
func InsightExtraction(transcript string) string {
	return fmt.Sprintf(`Analyze this conversation transcript and extract structured insights:

%s

Provide:
1. ACTION ITEMS: Tasks, TODOs, or commitments mentioned (who should do what)
2. KEY TOPICS: Main discussion points (3-5 topics)
3. DECISIONS: Any decisions or conclusions reached
4. QUESTIONS: Unanswered questions or topics needing follow-up

Format your response as:

ACTION ITEMS:
- [Priority: high/medium/low] [Person] Action description
- ...

KEY TOPICS:
- Topic 1
- Topic 2
...

DECISIONS:
- Decision 1
- Decision 2
...

QUESTIONS:
- Question 1
- Question 2
...

Only include items that are clearly present. Use "NONE" for empty sections.`, transcript)
}

// DeepDiveQueries asks for five diverse research angles on a topic.
func DeepDiveQueries(topic string) string {
	return fmt.Sprintf(`Generate 5 specific, diverse research queries to thoroughly understand this topic: "%s"

The queries should cover:
1. Basic definition and overview
2. Technical details or mechanisms
3. Real-world applications or examples
4. Recent developments or current state (2024-2026)
5. Related concepts or comparisons

Return only the queries, one per line.`, topic)
}

// DeepDiveSummary asks for a structured analysis synthesized from sources.
func DeepDiveSummary(topic string, findings []Finding) string {
	parts := make([]string, 0, len(findings))
	for i, f := range findings {
		parts = append(parts, fmt.Sprintf("Source %d: %s\n%s", i+1, f.Title, f.Snippet))
	}

	return fmt.Sprintf(`Based on the following research sources about "%s", create a comprehensive, well-structured analysis:

%s

Provide:
1. **Overview**: Clear explanation of what this is
2. **Key Points**: Important facts and concepts (bullet points)
3. **Details**: Technical or nuanced information
4. **Current State**: Recent developments or current status
5. **Practical Implications**: Real-world applications or significance

Format with clear sections. Be thorough but concise.`, topic, strings.Join(parts, "\n\n"))
}
