package search

import (
	"context"
	"fmt"
	"log"
	"strings"
	"unicode"
)

const (
	maxConversationThemes = 5
	maxSuggestedTopics    = 3
	maxContextSnippets    = 3
	snippetWordWindow     = 50
	themeMinLength        = 5
	relevanceBoostCap     = 0.2
)

// stopWords are the common function words excluded from theme extraction.
var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "are": {}, "but": {}, "not": {},
	"you": {}, "all": {}, "can": {}, "had": {}, "her": {}, "was": {},
	"one": {}, "our": {}, "out": {}, "has": {}, "his": {}, "how": {},
	"that": {}, "this": {}, "with": {}, "have": {}, "from": {}, "they": {},
	"been": {}, "were": {}, "said": {}, "each": {}, "will": {}, "what": {},
	"their": {}, "would": {}, "there": {}, "could": {}, "other": {},
	"about": {}, "which": {}, "after": {}, "first": {}, "where": {},
	"these": {}, "those": {}, "being": {}, "every": {}, "might": {},
	"shall": {}, "still": {}, "under": {}, "while": {}, "should": {},
	"because": {}, "through": {}, "before": {}, "between": {}, "really": {},
	"always": {}, "going": {}, "doing": {}, "think": {}, "thing": {},
	"things": {}, "something": {}, "please": {}, "thanks": {}, "hello": {},
	"maybe": {}, "actually": {}, "want": {}, "need": {}, "help": {},
}

// ConversationSearch wraps the search engine with dialogue awareness: the
// query is enriched with themes from recent turns and results are annotated
// with a relevance re-score, context snippets and follow-up questions. It is
// a pure pipeline; embedding and search failures propagate unchanged.
type ConversationSearch struct {
	engine *Engine
	logger *log.Logger
}

// NewConversationSearch builds the conversation-aware wrapper.
func NewConversationSearch(engine *Engine, logger *log.Logger) *ConversationSearch {
	if logger == nil {
		logger = log.New(log.Writer(), "[CONVSEARCH] ", log.LstdFlags)
	}
	return &ConversationSearch{engine: engine, logger: logger}
}

// Search runs the four-step conversation-aware pipeline: contextual query
// construction, vector search, relevance re-scoring, and enrichment with
// snippets and suggested questions.
func (c *ConversationSearch) Search(ctx context.Context, query ConversationQuery) ([]ConversationResult, error) {
	if query.TopicDescription == "" {
		return nil, fmt.Errorf("topic description must not be empty")
	}
	if query.ProjectID == "" {
		return nil, fmt.Errorf("project_id required")
	}

	themes := extractConversationThemes(query.ConversationHistory)
	contextualQuery := buildContextualQuery(query.TopicDescription, themes)

	opts := DefaultOptions()
	if query.Options != nil {
		opts = query.Options.normalize()
	}

	results, err := c.engine.SearchContent(ctx, contextualQuery, query.ProjectID, query.SourceTypes, opts)
	if err != nil {
		return nil, err
	}

	return enhanceResultsWithContext(results, themes, query.TopicDescription), nil
}

// extractConversationThemes collects up to five distinct content words from
// the dialogue turns in order: lower-cased tokens longer than four
// characters that are not stop words.
func extractConversationThemes(history []ConversationMessage) []string {
	if len(history) == 0 {
		return nil
	}
	seen := make(map[string]struct{})
	var themes []string
	for _, msg := range history {
		for _, token := range tokenize(msg.Content) {
			if len(token) < themeMinLength {
				continue
			}
			if _, stop := stopWords[token]; stop {
				continue
			}
			if _, dup := seen[token]; dup {
				continue
			}
			seen[token] = struct{}{}
			themes = append(themes, token)
			if len(themes) >= maxConversationThemes {
				return themes
			}
		}
	}
	return themes
}

// buildContextualQuery appends the conversation themes to the topic
// description; without themes the query is used verbatim.
func buildContextualQuery(topicDescription string, themes []string) string {
	if len(themes) == 0 {
		return topicDescription
	}
	return topicDescription + "\n\nRelated context: " + strings.Join(themes, ", ")
}

// enhanceResultsWithContext annotates each result in input order: a
// relevance score boosted by theme overlap, snippets drawn from the leading
// results, and up to three suggested follow-up questions.
func enhanceResultsWithContext(results []Result, themes []string, topicDescription string) []ConversationResult {
	snippets := collectContextSnippets(results)
	questions := buildSuggestedQuestions(results, topicDescription)

	enhanced := make([]ConversationResult, 0, len(results))
	for _, res := range results {
		enhanced = append(enhanced, ConversationResult{
			Result:             res,
			RelevanceScore:     boostRelevance(res, themes),
			ContextSnippets:    snippets,
			SuggestedQuestions: questions,
		})
	}
	return enhanced
}

// boostRelevance adds up to +0.20 to the similarity, proportional to how
// many conversation themes appear in the result text, clamped to 1.0. With
// no history the score equals the similarity.
func boostRelevance(res Result, themes []string) float64 {
	if len(themes) == 0 {
		return res.Similarity
	}
	lower := strings.ToLower(res.Content)
	matched := 0
	for _, theme := range themes {
		if strings.Contains(lower, theme) {
			matched++
		}
	}
	score := res.Similarity + relevanceBoostCap*float64(matched)/float64(len(themes))
	if score > 1 {
		score = 1
	}
	return score
}

// collectContextSnippets extracts a window of up to 50 words centered on the
// midpoint of each of the first three results' text.
func collectContextSnippets(results []Result) []string {
	limit := maxContextSnippets
	if len(results) < limit {
		limit = len(results)
	}
	snippets := make([]string, 0, limit)
	for _, res := range results[:limit] {
		snippets = append(snippets, centeredSnippet(res.Content, snippetWordWindow))
	}
	return snippets
}

func centeredSnippet(text string, window int) string {
	words := strings.Fields(text)
	if len(words) <= window {
		return strings.Join(words, " ")
	}
	mid := len(words) / 2
	start := mid - window/2
	if start < 0 {
		start = 0
	}
	end := start + window
	if end > len(words) {
		end = len(words)
	}
	return strings.Join(words[start:end], " ")
}

// buildSuggestedQuestions derives up to three follow-up questions from the
// top topics found across all result text. No topics, no questions.
func buildSuggestedQuestions(results []Result, topicDescription string) []string {
	seen := make(map[string]struct{})
	var topics []string
	for _, res := range results {
		for _, token := range tokenize(res.Content) {
			if len(token) < themeMinLength {
				continue
			}
			if _, stop := stopWords[token]; stop {
				continue
			}
			if _, dup := seen[token]; dup {
				continue
			}
			seen[token] = struct{}{}
			topics = append(topics, token)
			if len(topics) >= maxSuggestedTopics {
				break
			}
		}
		if len(topics) >= maxSuggestedTopics {
			break
		}
	}
	if len(topics) == 0 {
		return nil
	}
	return []string{
		fmt.Sprintf("What are the key aspects of %s?", strings.Join(topics, ", ")),
		fmt.Sprintf("How do these topics relate to %s?", topicDescription),
		"What are the main challenges or opportunities in this area?",
	}
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
