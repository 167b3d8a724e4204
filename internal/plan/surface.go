package plan

import "github.com/roach88/pushplan/internal/expression"

// Surface is what the runtime needs to start executing a fragment tree: the
// base table reference and the outermost filter, limit and projector.
type Surface struct {
	Table     TableRef
	Timestamp int64
	Families  []string
	Filter    expression.Expression
	Order     ScanOrder
	Limit     *int64
	Projector *TupleProjector
}

// SurfaceOf summarizes f. Table, timestamp, families and order come from the
// base scan; filter, limit and projector are the outermost ones found walking
// down from f.
func SurfaceOf(f Fragment) Surface {
	var s Surface
	if base := BaseScan(f); base != nil {
		s.Table = base.Table
		s.Timestamp = base.Table.Timestamp
		s.Families = base.Families
		s.Order = base.Order
	}
	for cur := f; cur != nil; cur = delegate(cur) {
		if s.Filter == nil {
			s.Filter = ownFilter(cur)
		}
		if s.Limit == nil {
			s.Limit = Limit(cur)
		}
		if s.Projector == nil {
			s.Projector = ownProjector(cur)
		}
	}
	return s
}

func delegate(f Fragment) Fragment {
	switch x := f.(type) {
	case *ClientScanFragment:
		return x.Input
	case *AggregateFragment:
		return x.Input
	case *HashJoinFragment:
		return x.Delegate
	case *MergeJoinFragment:
		return x.Left
	case *TupleProjectionFragment:
		return x.Delegate
	}
	return nil
}

func ownFilter(f Fragment) expression.Expression {
	switch x := f.(type) {
	case *ScanFragment:
		return x.Filter
	case *ClientScanFragment:
		return x.Filter
	case *HashJoinFragment:
		return x.PostFilter
	case *MergeJoinFragment:
		return x.PostFilter
	case *TupleProjectionFragment:
		return x.PostFilter
	}
	return nil
}

func ownProjector(f Fragment) *TupleProjector {
	switch x := f.(type) {
	case *ScanFragment:
		return x.Projector
	case *HashJoinFragment:
		return x.Projector
	case *TupleProjectionFragment:
		return x.Projector
	}
	return nil
}
