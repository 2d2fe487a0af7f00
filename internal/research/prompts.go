package research

import (
	"fmt"
	"strings"

	"deepresearch/internal/state"
)

// Prompt builders for every LLM interaction. Prompts always state the
// target language last so a provider that trails off still sees it.

func planPrompt(topic, language string, minSections, maxSections int) string {
	return fmt.Sprintf(`You are a research planner. Break the topic below into between %d and %d focused report sections.
Each section needs a short title and a one-sentence description of what it should cover.
Order sections from foundational to specific.

Topic: %s

Respond in %s.`, minSections, maxSections, topic, language)
}

func initialQueryPrompt(topic string, section *state.Section, language string) string {
	return fmt.Sprintf(`Generate ONE web search query to research the following report section.
Return only the query itself: no quotes, no markdown, no explanation.

Topic: %s
Section: %s
Section scope: %s

The query should be in %s.`, topic, section.Title, section.Description, language)
}

func regenerateQueryPrompt(original, topic string, section *state.Section, language string) string {
	return fmt.Sprintf(`The search query below returned no useful results. Generate ONE alternative query
for the same section using different phrasing or angle. Return only the query itself:
no quotes, no markdown, no explanation.

Failed query: %s
Topic: %s
Section: %s
Section scope: %s

The query should be in %s.`, original, topic, section.Title, section.Description, language)
}

func relevancePrompt(query string, result state.SearchResult) string {
	return fmt.Sprintf(`Rate how relevant this search result is to the query, from 0.0 (unrelated) to 1.0 (directly on topic).

Query: %s
Result title: %s
Result snippet: %s`, query, result.Title, result.Snippet)
}

func chunkSummaryPrompt(query, chunk, language string) string {
	return fmt.Sprintf(`Summarize the information in the following text that is relevant to the research query.
If nothing is relevant, respond with exactly: NO RELEVANT INFORMATION

Research query: %s

Text:
%s

Respond in %s.`, query, chunk, language)
}

func consolidatePrompt(query string, partials []string, language string) string {
	return fmt.Sprintf(`Combine the partial summaries below into one coherent summary answering the research query.
Remove repetition, keep every distinct fact, do not invent information.

Research query: %s

Partial summaries:
%s

Respond in %s.`, query, strings.Join(partials, "\n---\n"), language)
}

func kgExtractionPrompt(text string, sources []string) string {
	return fmt.Sprintf(`Extract entities and relationships from the text below as a knowledge graph.
For each entity provide: id (lowercase snake_case identifier), label (display name), type (person, organization, concept, place, event, technology, or other).
For each relationship provide: source (entity id), target (entity id), label (verb phrase).
Only extract what is explicitly stated.

Source URLs: %s

Text:
%s`, strings.Join(sources, ", "), text)
}

func reflectionPrompt(topic string, section *state.Section, summary, language string) string {
	return fmt.Sprintf(`You are evaluating research coverage for a report section.

Topic: %s
Section: %s
Section scope: %s

Information gathered so far:
%s

Decide whether the gathered information sufficiently covers the section scope.
Respond with EXACTLY two lines:
EVALUATION: CONTINUE or CONCLUDE
QUERY: a follow-up search query in %s if CONTINUE, or None if CONCLUDE`, topic, section.Title, section.Description, summary, language)
}

func reportPrompt(topic string, sections []*state.Section, numberedSources []string, language string) string {
	var body strings.Builder
	for _, sec := range sections {
		if sec.Status != state.SectionCompleted {
			continue
		}
		fmt.Fprintf(&body, "### %s\n%s\n\n", sec.Title, sec.Summary)
	}

	citation := "Do not use any citations; no sources were gathered."
	sourceList := ""
	if len(numberedSources) > 0 {
		citation = "Cite sources inline using [n] or [n, m] markers referring STRICTLY to the numbered source list. Never cite a number outside the list."
		sourceList = "\n\nNumbered sources:\n" + strings.Join(numberedSources, "\n")
	}

	return fmt.Sprintf(`Write a complete research report on the topic below using only the gathered section material.
Use markdown with a # title and ## section headings matching the section titles.
%s
Do not fabricate information beyond the material provided.

Topic: %s

Gathered material:
%s%s

Write the report in %s.`, citation, topic, body.String(), sourceList, language)
}

func followUpPrompt(report, question, language string) string {
	return fmt.Sprintf(`Answer the question using only the research report below. If the report does not
contain the answer, say so plainly.

Report:
%s

Question: %s

Answer in %s.`, report, question, language)
}
