package search

import (
	"context"

	"github.com/arthur-debert/docstore/types"
)

// SearchOptions configures search behavior
type SearchOptions struct {
	// Query is the search term(s) to look for. Every whitespace-separated
	// token must occur for a document to match.
	Query string

	// Fields lists the dotted paths to search in.
	// Empty searches every leaf value of the document except _id.
	Fields []string

	// CaseSensitive controls whether search is case-sensitive
	CaseSensitive bool

	// EnableHighlight includes highlighted match text in results
	EnableHighlight bool

	// HighlightStartMarker and HighlightEndMarker wrap highlighted matches.
	// Both default to "**".
	HighlightStartMarker string
	HighlightEndMarker   string

	// MaxResults limits the number of search results. Zero means no limit.
	MaxResults int
}

// SearchResult is one matching document with its relevance
type SearchResult struct {
	// Document is the matched document
	Document types.Document

	// Score represents match relevance (0.0 to 1.0, higher is better)
	Score float64

	// Highlights maps field path to text with match markers
	Highlights map[string]string

	// MatchedFields lists the fields that contained at least one token
	MatchedFields []string
}

// DocumentProvider supplies the documents to search
type DocumentProvider interface {
	SearchDocuments(ctx context.Context) ([]types.Document, error)
}

// DocumentProviderFunc adapts a function to DocumentProvider
type DocumentProviderFunc func(ctx context.Context) ([]types.Document, error)

// SearchDocuments implements DocumentProvider
func (f DocumentProviderFunc) SearchDocuments(ctx context.Context) ([]types.Document, error) {
	return f(ctx)
}
