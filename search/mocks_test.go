package search

import (
	"context"

	"github.com/arthur-debert/docstore/types"
)

// MockDocumentProvider implements DocumentProvider for testing
type MockDocumentProvider struct {
	documents []types.Document
	err       error
}

// NewMockDocumentProvider creates a new mock with the given documents
func NewMockDocumentProvider(documents []types.Document) *MockDocumentProvider {
	return &MockDocumentProvider{
		documents: documents,
	}
}

// SetError configures the mock to return an error
func (m *MockDocumentProvider) SetError(err error) {
	m.err = err
}

// SearchDocuments returns the mock documents or error
func (m *MockDocumentProvider) SearchDocuments(context.Context) ([]types.Document, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.documents, nil
}

// SampleDocuments provides sample documents for testing
func SampleDocuments() []types.Document {
	return []types.Document{
		{
			"_id":   "1",
			"title": "Important Meeting",
			"body":  "Discuss quarterly budget and planning",
			"tags":  []any{"work", "finance"},
			"owner": map[string]any{"name": "alice"},
		},
		{
			"_id":   "2",
			"title": "Budget Review",
			"body":  "Review the meeting notes from last quarter",
			"tags":  []any{"finance"},
			"owner": map[string]any{"name": "bob"},
		},
		{
			"_id":   "3",
			"title": "Team Standup",
			"body":  "Daily standup meeting for development team",
			"tags":  []any{"work"},
			"owner": map[string]any{"name": "alice"},
		},
		{
			"_id":   "4",
			"title": "MEETING",
			"body":  "All caps meeting title for testing",
			"owner": map[string]any{"name": "carol"},
		},
	}
}
