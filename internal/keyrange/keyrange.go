// Package keyrange extracts row-key ranges from scan filters.
//
// Conjuncts of the form `pk op constant` (either operand order) that
// constrain a leading prefix of the row key are turned into per-slot ranges
// the store can seek to; everything else stays in the residual filter.
// Constants are literals, foldable expressions, or correlated fields bound
// through a Binder.
package keyrange

import (
	"strings"

	"github.com/roach88/pushplan/internal/catalog"
	"github.com/roach88/pushplan/internal/ir"
	"github.com/roach88/pushplan/internal/queryir"
	"github.com/roach88/pushplan/internal/translate"
)

// Bound is one end of a key range. A nil Value means unbounded.
type Bound struct {
	Value     ir.Datum
	Inclusive bool
}

// Range is the set of values allowed for one row-key slot.
type Range struct {
	Lower, Upper Bound
}

// Everything is the unconstrained range.
var Everything = Range{}

// Point is the single-value range [v, v].
func Point(v ir.Datum) Range {
	return Range{Lower: Bound{Value: v, Inclusive: true}, Upper: Bound{Value: v, Inclusive: true}}
}

// IsPoint reports whether r contains exactly one value.
func (r Range) IsPoint() bool {
	if r.Lower.Value == nil || r.Upper.Value == nil || !r.Lower.Inclusive || !r.Upper.Inclusive {
		return false
	}
	c, err := ir.Compare(r.Lower.Value, r.Upper.Value)
	return err == nil && c == 0
}

// IsEverything reports whether r is unbounded on both ends.
func (r Range) IsEverything() bool {
	return r.Lower.Value == nil && r.Upper.Value == nil
}

// IsEmpty reports whether no value satisfies r.
func (r Range) IsEmpty() bool {
	if r.Lower.Value == nil || r.Upper.Value == nil {
		return false
	}
	c, err := ir.Compare(r.Lower.Value, r.Upper.Value)
	if err != nil {
		return false
	}
	return c > 0 || (c == 0 && !(r.Lower.Inclusive && r.Upper.Inclusive))
}

// intersect narrows r by other. ok is false when the bounds are of
// incomparable types.
func (r Range) intersect(other Range) (Range, bool) {
	out := r
	if other.Lower.Value != nil {
		if out.Lower.Value == nil {
			out.Lower = other.Lower
		} else {
			c, err := ir.Compare(other.Lower.Value, out.Lower.Value)
			if err != nil {
				return r, false
			}
			if c > 0 || (c == 0 && !other.Lower.Inclusive) {
				out.Lower = other.Lower
			}
		}
	}
	if other.Upper.Value != nil {
		if out.Upper.Value == nil {
			out.Upper = other.Upper
		} else {
			c, err := ir.Compare(other.Upper.Value, out.Upper.Value)
			if err != nil {
				return r, false
			}
			if c < 0 || (c == 0 && !other.Upper.Inclusive) {
				out.Upper = other.Upper
			}
		}
	}
	return out, true
}

func (r Range) String() string {
	if r.IsPoint() {
		return r.Lower.Value.String()
	}
	var b strings.Builder
	if r.Lower.Value == nil || !r.Lower.Inclusive {
		b.WriteByte('(')
	} else {
		b.WriteByte('[')
	}
	if r.Lower.Value == nil {
		b.WriteByte('*')
	} else {
		b.WriteString(r.Lower.Value.String())
	}
	b.WriteString(" - ")
	if r.Upper.Value == nil {
		b.WriteByte('*')
	} else {
		b.WriteString(r.Upper.Value.String())
	}
	if r.Upper.Value == nil || !r.Upper.Inclusive {
		b.WriteByte(')')
	} else {
		b.WriteByte(']')
	}
	return b.String()
}

// Slot is the range of one row-key column.
type Slot struct {
	Column string
	Order  ir.SortOrder
	Range  Range
}

// ScanRanges is the row-key restriction of a scan.
type ScanRanges struct {
	// Slots holds the ranges of the bound key prefix, in key order.
	Slots []Slot
	// PKCount is the number of row-key columns of the table.
	PKCount int
	// Degenerate is set when the filter can match no row.
	Degenerate bool
}

// BoundPKCount is the number of leading row-key columns the ranges constrain.
func (s ScanRanges) BoundPKCount() int { return len(s.Slots) }

// IsPointLookup reports whether every row-key column is pinned to a single
// value, so the scan reads at most one row.
func (s ScanRanges) IsPointLookup() bool {
	if s.Degenerate || s.PKCount == 0 || len(s.Slots) != s.PKCount {
		return false
	}
	for _, slot := range s.Slots {
		if !slot.Range.IsPoint() {
			return false
		}
	}
	return true
}

// IsEverything reports whether the scan is unrestricted.
func (s ScanRanges) IsEverything() bool {
	return !s.Degenerate && len(s.Slots) == 0
}

// Equal reports whether s and other restrict the scan identically.
func (s ScanRanges) Equal(other ScanRanges) bool {
	return s.String() == other.String() && s.PKCount == other.PKCount
}

func (s ScanRanges) String() string {
	if s.Degenerate {
		return "DEGENERATE"
	}
	if len(s.Slots) == 0 {
		return "EVERYTHING"
	}
	parts := make([]string, len(s.Slots))
	for i, slot := range s.Slots {
		parts[i] = slot.Range.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// Binder supplies values for correlated fields. Returning false leaves any
// conjunct that reads the field in the residual filter.
type Binder func(f *queryir.FieldAccess) (ir.Datum, bool)

// SampleBinder binds every correlated field to a representative value of its
// type. It is used to estimate ranges before the outer row is known.
func SampleBinder(f *queryir.FieldAccess) (ir.Datum, bool) {
	return f.DataType.SampleValue(), true
}

// Result is the outcome of pushing a filter into key ranges.
type Result struct {
	Ranges ScanRanges
	// Remainder holds the conjuncts that must still be evaluated per row, or
	// nil when the ranges capture the whole filter.
	Remainder queryir.Node
}

// constraint is one `pk op value` conjunct.
type constraint struct {
	slot int
	rng  Range
	node queryir.Node
}

// Push extracts key ranges for table from filter, whose input references are
// column positions of table. bind may be nil.
func Push(table *catalog.Table, filter queryir.Node, bind Binder) Result {
	pk := table.PKIndices()
	res := Result{Ranges: ScanRanges{PKCount: len(pk)}}

	conjuncts := queryir.Conjunctions(filter)
	perSlot := make(map[int][]constraint)
	var rest []queryir.Node
	for _, c := range conjuncts {
		con, ok := keyConstraint(table, c, bind)
		if !ok {
			rest = append(rest, c)
			continue
		}
		perSlot[con.slot] = append(perSlot[con.slot], con)
	}

	// Walk the key prefix: every slot up to and including the first
	// non-point range is bound.
	for slot := 0; slot < len(pk); slot++ {
		cons, ok := perSlot[slot]
		if !ok {
			break
		}
		rng := Everything
		usable := true
		for _, con := range cons {
			if rng, usable = rng.intersect(con.rng); !usable {
				break
			}
		}
		if !usable {
			break
		}
		delete(perSlot, slot)
		if rng.IsEmpty() {
			res.Ranges.Degenerate = true
		}
		col := table.Columns[pk[slot]]
		res.Ranges.Slots = append(res.Ranges.Slots, Slot{Column: col.Name, Order: col.SortOrder, Range: rng})
		if !rng.IsPoint() {
			break
		}
	}

	// Constraints past the bound prefix still filter rows.
	for _, cons := range perSlot {
		for _, con := range cons {
			rest = append(rest, con.node)
		}
	}
	res.Remainder = queryir.And(ordered(conjuncts, rest)...)
	return res
}

// ordered returns the members of subset in their order within all.
func ordered(all, subset []queryir.Node) []queryir.Node {
	in := make(map[queryir.Node]bool, len(subset))
	for _, n := range subset {
		in[n] = true
	}
	var out []queryir.Node
	for _, n := range all {
		if in[n] {
			out = append(out, n)
		}
	}
	return out
}

func keyConstraint(table *catalog.Table, n queryir.Node, bind Binder) (constraint, bool) {
	call, ok := n.(*queryir.Call)
	if !ok || !call.Op.IsComparison() || call.Op == queryir.OpNotEquals || len(call.Operands) != 2 {
		return constraint{}, false
	}
	op := call.Op
	ref, isRef := call.Operands[0].(*queryir.InputRef)
	other := call.Operands[1]
	if !isRef {
		ref, isRef = call.Operands[1].(*queryir.InputRef)
		other = call.Operands[0]
		op = op.Reverse()
	}
	if !isRef {
		return constraint{}, false
	}
	slot := table.PKPosition(ref.Index)
	if slot < 0 {
		return constraint{}, false
	}
	v, ok := constantValue(other, bind)
	if !ok || ir.IsNull(v) {
		return constraint{}, false
	}
	if _, err := ir.Compare(v, table.Columns[ref.Index].Type.SampleValue()); err != nil {
		return constraint{}, false
	}

	con := constraint{slot: slot, node: n}
	switch op {
	case queryir.OpEquals:
		con.rng = Point(v)
	case queryir.OpGreaterThan:
		con.rng = Range{Lower: Bound{Value: v}}
	case queryir.OpGreaterThanOrEqual:
		con.rng = Range{Lower: Bound{Value: v, Inclusive: true}}
	case queryir.OpLessThan:
		con.rng = Range{Upper: Bound{Value: v}}
	case queryir.OpLessThanOrEqual:
		con.rng = Range{Upper: Bound{Value: v, Inclusive: true}}
	default:
		return constraint{}, false
	}
	return con, true
}

func constantValue(n queryir.Node, bind Binder) (ir.Datum, bool) {
	switch x := n.(type) {
	case *queryir.Literal:
		return x.Value, true
	case *queryir.FieldAccess:
		if bind == nil {
			return nil, false
		}
		return bind(x)
	case *queryir.Call:
		if len(queryir.InputsUsed(x)) > 0 || queryir.HasCorrelation(x) {
			return nil, false
		}
		return translate.Fold(x)
	}
	return nil, false
}
