package engine

import (
	"github.com/roach88/pushplan/internal/rel"
	"github.com/roach88/pushplan/internal/rules"
)

// site is one place a rule matches: the node, and the input indices that
// lead to it from the root.
type site struct {
	rule rules.Rule
	node rel.Node
	path []int
}

// matchSites lists every (node, rule) pair that matches in root. Nodes are
// visited in pre-order and rules in the order given, so the list is
// deterministic.
func matchSites(root rel.Node, ruleSet []rules.Rule) []site {
	var sites []site
	var walk func(n rel.Node, path []int)
	walk = func(n rel.Node, path []int) {
		for _, r := range ruleSet {
			if r.Match(n) {
				sites = append(sites, site{rule: r, node: n, path: path})
			}
		}
		for i, in := range n.Inputs() {
			walk(in, append(path[:len(path):len(path)], i))
		}
	}
	walk(root, nil)
	return sites
}

// replaceAt returns root with the node at path replaced by repl. Ancestors
// are copied with WithInputs; root itself is never modified.
func replaceAt(root rel.Node, path []int, repl rel.Node) rel.Node {
	if len(path) == 0 {
		return repl
	}
	inputs := append([]rel.Node(nil), root.Inputs()...)
	inputs[path[0]] = replaceAt(inputs[path[0]], path[1:], repl)
	return root.WithInputs(inputs...)
}
