package rules

import (
	"github.com/roach88/pushplan/internal/plan"
	"github.com/roach88/pushplan/internal/rel"
	"github.com/roach88/pushplan/internal/translate"
)

// ForwardTableScan replaces a sort over an unordered scan with a scan in
// row-key order when the table's key order satisfies the sort. A sort that
// also limits rows stays, without a collation.
type ForwardTableScan struct{}

func (ForwardTableScan) Name() string { return "ForwardTableScan" }

func (ForwardTableScan) Match(n rel.Node) bool {
	_, ok := orderedScan(n, plan.ScanOrderForward)
	return ok
}

func (ForwardTableScan) Apply(n rel.Node) ([]rel.Node, error) {
	return applyOrderedScan(n, plan.ScanOrderForward), nil
}

// ReverseTableScan is ForwardTableScan for sorts the reversed key order
// satisfies.
type ReverseTableScan struct{}

func (ReverseTableScan) Name() string { return "ReverseTableScan" }

func (ReverseTableScan) Match(n rel.Node) bool {
	_, ok := orderedScan(n, plan.ScanOrderReverse)
	return ok
}

func (ReverseTableScan) Apply(n rel.Node) ([]rel.Node, error) {
	return applyOrderedScan(n, plan.ScanOrderReverse), nil
}

// orderedScan returns the scan below sort n re-created in order, when that
// order satisfies the sort.
func orderedScan(n rel.Node, order plan.ScanOrder) (*rel.TableScan, bool) {
	sort, ok := n.(*rel.ClientSort)
	if !ok || len(sort.Order) == 0 {
		return nil, false
	}
	scan, ok := clientScan(sort.Input)
	if !ok || scan.Order != plan.ScanOrderNone || scan.RowLimit != nil {
		return nil, false
	}
	candidate := rel.NewTableScan(scan.Table, scan.Filter, order, nil)
	if !candidate.Collation().Satisfies(sort.Order) {
		return nil, false
	}
	return candidate, true
}

func applyOrderedScan(n rel.Node, order plan.ScanOrder) []rel.Node {
	scan, ok := orderedScan(n, order)
	if !ok {
		return nil
	}
	sort := n.(*rel.ClientSort)
	var out rel.Node = toClient(scan)
	if sort.Offset != nil || sort.Fetch != nil {
		out = rel.NewClientSort(out, rel.SortSpec{Offset: sort.Offset, Fetch: sort.Fetch})
	}
	return []rel.Node{out}
}

// clientScan returns the scan a client operator reads, looking through the
// ToClient converter.
func clientScan(n rel.Node) (*rel.TableScan, bool) {
	if in, ok := underToClient(n); ok {
		n = in
	}
	scan, ok := n.(*rel.TableScan)
	return scan, ok
}

// FilterScanMerge evaluates a client filter inside the scan it reads, where
// it can also narrow the key ranges.
type FilterScanMerge struct{}

func (FilterScanMerge) Name() string { return "FilterScanMerge" }

func (FilterScanMerge) Match(n rel.Node) bool {
	f, ok := n.(*rel.Filter)
	if !ok || !translate.IsSupported(f.Condition) {
		return false
	}
	scan, ok := clientScan(f.Input)
	return ok && scan.Filter == nil && scan.RowLimit == nil
}

func (FilterScanMerge) Apply(n rel.Node) ([]rel.Node, error) {
	f := n.(*rel.Filter)
	scan, _ := clientScan(f.Input)
	merged := rel.NewTableScan(scan.Table, f.Condition, scan.Order, nil)
	return []rel.Node{toClient(merged)}, nil
}

// AddScanLimit copies the fetch of a sort into the scan below it, so each
// region stops early. The sort stays to apply the limit across regions. It
// only applies when the scan already delivers rows in the sort's order.
type AddScanLimit struct{}

func (AddScanLimit) Name() string { return "AddScanLimit" }

func (AddScanLimit) Match(n rel.Node) bool {
	sort, ok := n.(*rel.ClientSort)
	if !ok || sort.Fetch == nil || sort.Offset != nil {
		return false
	}
	if !sort.Input.Collation().Satisfies(sort.Order) {
		return false
	}
	_, _, ok = limitableScan(sort.Input)
	return ok
}

func (AddScanLimit) Apply(n rel.Node) ([]rel.Node, error) {
	sort := n.(*rel.ClientSort)
	scan, project, ok := limitableScan(sort.Input)
	if !ok {
		return nil, nil
	}
	var server rel.Node = rel.NewTableScan(scan.Table, scan.Filter, scan.Order, sort.Fetch)
	if project != nil {
		server = project.WithInputs(server)
	}
	return []rel.Node{sort.WithInputs(toClient(server))}, nil
}

// limitableScan matches ToClient(TableScan) and ToClient(ServerProject(
// TableScan)) over a scan without a limit.
func limitableScan(n rel.Node) (*rel.TableScan, *rel.ServerProject, bool) {
	in, ok := underToClient(n)
	if !ok {
		return nil, nil, false
	}
	var project *rel.ServerProject
	if p, ok := in.(*rel.ServerProject); ok {
		project, in = p, p.Input
	}
	scan, ok := in.(*rel.TableScan)
	if !ok || scan.RowLimit != nil {
		return nil, nil, false
	}
	return scan, project, true
}
