package queryir

import (
	"slices"
)

// Walk visits n and its descendants depth-first, parents before children.
// Returning false from visit prunes the subtree.
func Walk(n Node, visit func(Node) bool) {
	if n == nil || !visit(n) {
		return
	}
	if call, ok := n.(*Call); ok {
		for _, op := range call.Operands {
			Walk(op, visit)
		}
	}
}

// InputsUsed returns the sorted, distinct input indices n references.
func InputsUsed(nodes ...Node) []int {
	seen := map[int]bool{}
	for _, n := range nodes {
		Walk(n, func(x Node) bool {
			if ref, ok := x.(*InputRef); ok {
				seen[ref.Index] = true
			}
			return true
		})
	}
	out := make([]int, 0, len(seen))
	for idx := range seen {
		out = append(out, idx)
	}
	slices.Sort(out)
	return out
}

// HasCorrelation reports whether n reads a correlated outer row.
func HasCorrelation(n Node) bool {
	found := false
	Walk(n, func(x Node) bool {
		if _, ok := x.(*FieldAccess); ok {
			found = true
		}
		return !found
	})
	return found
}

// Remap rewrites every InputRef through mapping (old index to new index).
// Indices absent from mapping are left untouched.
func Remap(n Node, mapping map[int]int) Node {
	switch x := n.(type) {
	case *InputRef:
		if to, ok := mapping[x.Index]; ok {
			return &InputRef{Index: to, DataType: x.DataType}
		}
		return x
	case *Call:
		operands := make([]Node, len(x.Operands))
		for i, op := range x.Operands {
			operands[i] = Remap(op, mapping)
		}
		return &Call{Op: x.Op, Operands: operands, DataType: x.DataType}
	}
	return n
}

// Shift offsets every InputRef at or above from by delta.
func Shift(n Node, from, delta int) Node {
	switch x := n.(type) {
	case *InputRef:
		if x.Index >= from {
			return &InputRef{Index: x.Index + delta, DataType: x.DataType}
		}
		return x
	case *Call:
		operands := make([]Node, len(x.Operands))
		for i, op := range x.Operands {
			operands[i] = Shift(op, from, delta)
		}
		return &Call{Op: x.Op, Operands: operands, DataType: x.DataType}
	}
	return n
}

// JoinInfo splits a join condition into equi-join keys and the remainder.
type JoinInfo struct {
	// LeftKeys and RightKeys are pairwise equal. Right keys are numbered
	// within the right input (not the joined row).
	LeftKeys  []int
	RightKeys []int
	// Remaining is the non-equi part of the condition, nil when there is none.
	Remaining Node
}

// IsEqui reports whether the condition is made only of key equalities.
func (j JoinInfo) IsEqui() bool {
	return j.Remaining == nil
}

// AnalyzeJoin extracts equi-join keys from condition over a joined row whose
// first leftCount columns come from the left input.
func AnalyzeJoin(condition Node, leftCount int) JoinInfo {
	var info JoinInfo
	var rest []Node
	for _, conj := range Conjunctions(condition) {
		l, r, ok := equiKey(conj, leftCount)
		if !ok {
			rest = append(rest, conj)
			continue
		}
		info.LeftKeys = append(info.LeftKeys, l)
		info.RightKeys = append(info.RightKeys, r-leftCount)
	}
	info.Remaining = And(rest...)
	return info
}

func equiKey(n Node, leftCount int) (int, int, bool) {
	call, ok := n.(*Call)
	if !ok || call.Op != OpEquals || len(call.Operands) != 2 {
		return 0, 0, false
	}
	a, aok := call.Operands[0].(*InputRef)
	b, bok := call.Operands[1].(*InputRef)
	if !aok || !bok {
		return 0, 0, false
	}
	switch {
	case a.Index < leftCount && b.Index >= leftCount:
		return a.Index, b.Index, true
	case b.Index < leftCount && a.Index >= leftCount:
		return b.Index, a.Index, true
	}
	return 0, 0, false
}
