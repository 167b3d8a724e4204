package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pushplan/internal/rel"
	"github.com/roach88/pushplan/internal/rules"
)

func TestMatchSites_PreOrder(t *testing.T) {
	root := parseTree(t, logicalJoin)
	sites := matchSites(root, rules.All())

	require.Len(t, sites, 2)
	assert.Equal(t, "JoinSort", sites[0].rule.Name())
	assert.Equal(t, "ServerJoin", sites[1].rule.Name())
	assert.Empty(t, sites[0].path)
}

func TestMatchSites_Paths(t *testing.T) {
	root := parseTree(t, "ClientJoin(condition=[=($0, $2)], joinType=[inner])\n"+
		"  ClientSort(collation=[[0]])\n"+
		"    ToClient()\n"+
		"      TableScan(table=[[phoenix, BTABLE]])\n"+
		"  ClientSort(collation=[[0]])\n"+
		"    ToClient()\n"+
		"      TableScan(table=[[phoenix, DTABLE]])\n")

	sites := matchSites(root, []rules.Rule{rules.ForwardTableScan{}, rules.ReverseTableScan{}})
	require.Len(t, sites, 2)
	assert.Equal(t, []int{0}, sites[0].path)
	assert.Equal(t, "ForwardTableScan", sites[0].rule.Name())
	assert.Equal(t, []int{1}, sites[1].path)
	assert.Equal(t, "ReverseTableScan", sites[1].rule.Name())
}

func TestReplaceAt(t *testing.T) {
	root := parseTree(t, sortedScan)
	scan := root.Inputs()[0].Inputs()[0].(*rel.TableScan)
	limit := int64(5)
	repl := rel.NewTableScan(scan.Table, nil, scan.Order, &limit)

	got := replaceAt(root, []int{0, 0}, repl)
	assert.Equal(t,
		"ClientSort(collation=[[0, 1]])\n"+
			"  ToClient()\n"+
			"    TableScan(table=[[phoenix, ATABLE]], limit=[5])\n",
		rel.Explain(got))
	assert.Equal(t, sortedScan, rel.Explain(root))

	assert.Same(t, repl, replaceAt(root, nil, repl))
}

func TestExploreQueue_FIFO(t *testing.T) {
	q := newExploreQueue()
	a, b := &Candidate{Ordinal: 0}, &Candidate{Ordinal: 1}
	q.Enqueue(a)
	q.Enqueue(b)
	assert.Equal(t, 2, q.Len())

	got, ok := q.TryDequeue()
	require.True(t, ok)
	assert.Same(t, a, got)
	got, ok = q.TryDequeue()
	require.True(t, ok)
	assert.Same(t, b, got)

	_, ok = q.TryDequeue()
	assert.False(t, ok)
	assert.Equal(t, 0, q.Len())
}
