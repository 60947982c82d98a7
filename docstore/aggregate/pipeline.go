// Package aggregate interprets aggregation pipelines over in-memory
// document arrays.
//
// A pipeline is an ordered list of single-key stage objects. Each stage
// consumes the array produced by the previous one. Stages the interpreter
// does not know pass the array through unchanged.
package aggregate

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/arthur-debert/docstore/docstore/filter"
	"github.com/arthur-debert/docstore/internal/value"
	"github.com/arthur-debert/docstore/types"
)

// Source resolves the foreign collection of a $lookup stage. The bool
// result is false when no collection is registered under name.
type Source interface {
	Documents(ctx context.Context, name string) ([]types.Document, bool, error)
}

// SourceFunc adapts a function to Source
type SourceFunc func(ctx context.Context, name string) ([]types.Document, bool, error)

// Documents calls f
func (f SourceFunc) Documents(ctx context.Context, name string) ([]types.Document, bool, error) {
	return f(ctx, name)
}

// Option configures pipeline parsing
type Option func(*Pipeline)

// WithLogger sets the logger used for stage-level diagnostics
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithTextFields sets the fields searched by $text inside $match stages
func WithTextFields(fields []string) Option {
	return func(p *Pipeline) {
		p.textFields = fields
	}
}

// Pipeline is a parsed aggregation pipeline
type Pipeline struct {
	stages     []stage
	logger     *slog.Logger
	textFields []string
}

type stage interface {
	run(ctx context.Context, docs []types.Document, src Source) ([]types.Document, error)
}

// Parse builds a Pipeline from a list of stage objects
func Parse(pipeline any, opts ...Option) (*Pipeline, error) {
	p := &Pipeline{logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	if pipeline == nil {
		return p, nil
	}
	items, ok := value.Elements(pipeline)
	if !ok {
		return nil, fmt.Errorf("pipeline must be an array, got %T", pipeline)
	}
	for i, item := range items {
		fields, ok := value.Fields(item)
		if !ok || len(fields) != 1 {
			return nil, fmt.Errorf("stage %d must be an object with exactly one key", i)
		}
		s, err := p.parseStage(fields[0].Key, fields[0].Value)
		if err != nil {
			return nil, fmt.Errorf("stage %d (%s): %w", i, fields[0].Key, err)
		}
		p.stages = append(p.stages, s)
	}
	return p, nil
}

func (p *Pipeline) parseStage(name string, arg any) (stage, error) {
	switch name {
	case "$match":
		f, err := filter.Parse(arg, filter.WithTextFields(p.textFields))
		if err != nil {
			return nil, err
		}
		return matchStage{f: f}, nil
	case "$group":
		return parseGroup(arg)
	case "$sort":
		return parseSort(arg)
	case "$project":
		return parseProject(arg)
	case "$addFields", "$set":
		return parseAddFields(arg)
	case "$limit":
		n, err := count(arg)
		if err != nil {
			return nil, err
		}
		return limitStage{n: n}, nil
	case "$skip":
		n, err := count(arg)
		if err != nil {
			return nil, err
		}
		return skipStage{n: n}, nil
	case "$unwind":
		return parseUnwind(arg)
	case "$lookup":
		return parseLookup(arg, p.logger)
	case "$count":
		field, ok := arg.(string)
		if !ok || field == "" {
			return nil, fmt.Errorf("$count needs a field name")
		}
		return countStage{field: field}, nil
	}
	return passStage{name: name, logger: p.logger}, nil
}

func count(arg any) (int, error) {
	n, ok := value.ToNumber(arg)
	if !ok || n < 0 {
		return 0, fmt.Errorf("expected a non-negative number, got %v", arg)
	}
	return int(n), nil
}

// Len returns the number of stages
func (p *Pipeline) Len() int {
	return len(p.stages)
}

// Run executes the pipeline over docs. The input slice and its documents are
// not modified; stages that reshape documents work on copies.
func (p *Pipeline) Run(ctx context.Context, docs []types.Document, src Source) ([]types.Document, error) {
	cur := append([]types.Document(nil), docs...)
	for _, s := range p.stages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		next, err := s.run(ctx, cur, src)
		if err != nil {
			return nil, err
		}
		cur = next
	}
	if cur == nil {
		cur = []types.Document{}
	}
	return cur, nil
}
