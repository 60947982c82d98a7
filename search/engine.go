package search

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/arthur-debert/docstore/internal/value"
	"github.com/arthur-debert/docstore/types"
)

// Engine ranks the documents of a provider against a free-text query
type Engine struct {
	provider DocumentProvider
}

// NewEngine creates a new search engine with the given document provider
func NewEngine(provider DocumentProvider) *Engine {
	return &Engine{
		provider: provider,
	}
}

// Search performs a search and returns results ordered by descending score.
// Documents with equal scores keep provider order.
func (e *Engine) Search(ctx context.Context, options SearchOptions) ([]SearchResult, error) {
	tokens := e.tokens(options)
	if len(tokens) == 0 {
		return []SearchResult{}, nil
	}

	documents, err := e.provider.SearchDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get documents: %w", err)
	}

	results := []SearchResult{}
	for _, doc := range documents {
		if result := e.searchDocument(doc, tokens, options); result != nil {
			results = append(results, *result)
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if options.MaxResults > 0 && len(results) > options.MaxResults {
		results = results[:options.MaxResults]
	}
	return results, nil
}

func (e *Engine) tokens(options SearchOptions) []string {
	if options.CaseSensitive {
		return strings.Fields(options.Query)
	}
	return Tokenize(options.Query)
}

// searchDocument returns a result when every token occurs in at least one
// searched field
func (e *Engine) searchDocument(doc types.Document, tokens []string, options SearchOptions) *SearchResult {
	fields := options.Fields
	if len(fields) == 0 {
		fields = leafPaths(doc)
	}

	best := make([]float64, len(tokens))
	var matched []string
	var highlights map[string]string
	if options.EnableHighlight {
		highlights = make(map[string]string)
	}

	for i, field := range fields {
		text := fieldText(doc, field)
		if text == "" {
			continue
		}
		hit := false
		for t, tok := range tokens {
			if !contains(text, tok, options.CaseSensitive) {
				continue
			}
			hit = true
			if s := calculateScore(text, tok, i == 0, options.CaseSensitive); s > best[t] {
				best[t] = s
			}
		}
		if !hit {
			continue
		}
		matched = append(matched, field)
		if options.EnableHighlight {
			highlights[field] = highlight(text, tokens, options)
		}
	}

	total := 0.0
	for _, s := range best {
		if s == 0 {
			return nil
		}
		total += s
	}

	return &SearchResult{
		Document:      doc,
		Score:         total / float64(len(tokens)),
		Highlights:    highlights,
		MatchedFields: matched,
	}
}

// fieldText joins the string forms of every value at path
func fieldText(doc types.Document, path string) string {
	var parts []string
	for _, v := range value.Collect(doc, path) {
		parts = leaves(v, parts)
	}
	return strings.Join(parts, " ")
}

func contains(text, token string, caseSensitive bool) bool {
	if caseSensitive {
		return strings.Contains(text, token)
	}
	return strings.Contains(value.Fold(text), token)
}

// calculateScore computes a relevance score for a token found in a field
func calculateScore(fieldValue, token string, primary, caseSensitive bool) float64 {
	if !caseSensitive {
		fieldValue = value.Fold(fieldValue)
	}
	baseScore := 0.5

	// Boost the first searched field
	if primary {
		baseScore = 0.7
	}

	// Boost whole-word matches
	for _, w := range strings.Fields(fieldValue) {
		if strings.Trim(w, ".,;:!?\"'()") == token {
			baseScore += 0.1
			break
		}
	}

	// Boost if match is at the beginning
	if strings.HasPrefix(fieldValue, token) {
		baseScore += 0.1
	}

	// Boost if the token takes up a large portion of the field
	if coverage := float64(len(token)) / float64(len(fieldValue)); coverage > 0.5 {
		baseScore += 0.1
	}

	if baseScore > 1.0 {
		baseScore = 1.0
	}
	return baseScore
}

// highlight wraps every occurrence of every token with the configured markers
func highlight(text string, tokens []string, options SearchOptions) string {
	startMarker := options.HighlightStartMarker
	endMarker := options.HighlightEndMarker
	if startMarker == "" {
		startMarker = "**"
	}
	if endMarker == "" {
		endMarker = "**"
	}

	searchText := text
	if !options.CaseSensitive {
		searchText = strings.ToLower(text)
	}
	if len(searchText) != len(text) {
		// folding changed byte offsets; skip highlighting rather than misplace markers
		return text
	}

	marked := make([]bool, len(text))
	for _, tok := range tokens {
		if !options.CaseSensitive {
			tok = strings.ToLower(tok)
		}
		if tok == "" {
			continue
		}
		for i := 0; i+len(tok) <= len(searchText); {
			j := strings.Index(searchText[i:], tok)
			if j < 0 {
				break
			}
			for k := i + j; k < i+j+len(tok); k++ {
				marked[k] = true
			}
			i += j + len(tok)
		}
	}

	var builder strings.Builder
	in := false
	for i := 0; i < len(text); i++ {
		if marked[i] && !in {
			builder.WriteString(startMarker)
			in = true
		}
		if !marked[i] && in {
			builder.WriteString(endMarker)
			in = false
		}
		builder.WriteByte(text[i])
	}
	if in {
		builder.WriteString(endMarker)
	}
	return builder.String()
}
