// Package rules holds the rewrites that move work into scan requests and pick
// physical join strategies.
//
// A rule only proposes alternatives. Apply never modifies the node it is
// given and never decides whether a proposal is better; callers cost the
// proposals (see rel.CumulativeCost) and keep what they like.
package rules

import (
	"fmt"
	"strings"

	"github.com/roach88/pushplan/internal/rel"
)

// Rule is one rewrite.
type Rule interface {
	// Name identifies the rule in traces and scenario files.
	Name() string
	// Match reports whether Apply can produce anything for n.
	Match(n rel.Node) bool
	// Apply returns equivalent alternatives to n. The result has the same
	// row type as n.
	Apply(n rel.Node) ([]rel.Node, error)
}

// All returns every rule in a fixed order.
func All() []Rule {
	return []Rule{
		JoinSort{},
		ServerJoin{},
		JoinSingleValueAggregateMerge{},
		ForwardTableScan{},
		ReverseTableScan{},
		FilterScanMerge{},
		ServerProject{},
		ServerAggregate{},
		AddScanLimit{},
		CompactClientSort{},
		InnerSortRemove{},
	}
}

// ByName resolves rule names (case-insensitive). An empty list selects all
// rules.
func ByName(names ...string) ([]Rule, error) {
	if len(names) == 0 {
		return All(), nil
	}
	index := map[string]Rule{}
	for _, r := range All() {
		index[strings.ToLower(r.Name())] = r
	}
	out := make([]Rule, 0, len(names))
	for _, name := range names {
		r, ok := index[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return nil, fmt.Errorf("unknown rule %q", name)
		}
		out = append(out, r)
	}
	return out, nil
}

// toClient moves n to the client unless it already is there.
func toClient(n rel.Node) rel.Node {
	if n.Convention().IsServerSide() {
		return rel.NewToClient(n)
	}
	return n
}

// underToClient returns the server-side input of a ToClient converter.
func underToClient(n rel.Node) (rel.Node, bool) {
	tc, ok := n.(*rel.ToClient)
	if !ok {
		return nil, false
	}
	return tc.Input, true
}
