package formats

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/arthur-debert/docstore/internal/value"
	"github.com/arthur-debert/docstore/types"
)

// maxCellWidth truncates long cells so rows stay on one line
const maxCellWidth = 40

// Table renders top-level fields as aligned columns, _id first. Nested
// values are shown as compact JSON. It is output only.
var Table = &Format{
	Name: "table",
	Encode: func(w io.Writer, docs []types.Document) error {
		cols := columns(docs)
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, strings.Join(cols, "\t"))
		for _, d := range docs {
			cells := make([]string, len(cols))
			for i, c := range cols {
				cells[i] = cell(d, c)
			}
			fmt.Fprintln(tw, strings.Join(cells, "\t"))
		}
		return tw.Flush()
	},
}

func columns(docs []types.Document) []string {
	seen := map[string]bool{}
	var rest []string
	hasID := false
	for _, d := range docs {
		for k := range d {
			if k == types.IDField {
				hasID = true
				continue
			}
			if !seen[k] {
				seen[k] = true
				rest = append(rest, k)
			}
		}
	}
	sort.Strings(rest)
	if hasID {
		return append([]string{types.IDField}, rest...)
	}
	return rest
}

func cell(d types.Document, col string) string {
	v, ok := d[col]
	if !ok {
		return ""
	}
	if v == nil {
		return "null"
	}
	s := strings.NewReplacer("\t", " ", "\n", " ").Replace(value.ToString(v))
	if len([]rune(s)) > maxCellWidth {
		s = string([]rune(s)[:maxCellWidth-1]) + "…"
	}
	return s
}

func init() {
	mustRegister(Table)
}
