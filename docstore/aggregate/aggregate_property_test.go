package aggregate

import (
	"context"
	"fmt"
	"testing"

	"github.com/arthur-debert/docstore/types"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// Grouping by a field and summing another yields one bucket per distinct
// key, in first-seen order, whose totals add up to the per-key sums.
func TestPropertyGroupSumMatchesManualSum(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	pipeline := []any{map[string]any{"$group": map[string]any{
		"_id":   "$k",
		"total": map[string]any{"$sum": "$n"},
	}}}
	p, err := Parse(pipeline)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	properties.Property("$group/$sum agrees with a manual reduction", prop.ForAll(
		func(keys []int, amounts []int) bool {
			docs := make([]types.Document, 0, len(keys))
			sums := map[string]float64{}
			var order []string
			for i, k := range keys {
				n := 0
				if i < len(amounts) {
					n = amounts[i]
				}
				key := fmt.Sprintf("k%d", k)
				if _, seen := sums[key]; !seen {
					order = append(order, key)
				}
				sums[key] += float64(n)
				docs = append(docs, types.Document{"_id": fmt.Sprint(i), "k": key, "n": float64(n)})
			}

			out, err := p.Run(context.Background(), docs, nil)
			if err != nil || len(out) != len(order) {
				return false
			}
			for i, d := range out {
				if d["_id"] != order[i] || d["total"] != sums[order[i]] {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 4)),
		gen.SliceOf(gen.IntRange(-50, 50)),
	))

	properties.TestingRun(t)
}
