package store

import (
	"context"
	"reflect"
	"testing"
)

func TestTableStats_Upsert(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	writes := []TableStats{
		{Table: "BTABLE", RowCount: 10, Seq: 1},
		{Table: "ATABLE", RowCount: 500, Seq: 2},
		{Table: "BTABLE", RowCount: 25, Seq: 3},
	}
	for _, w := range writes {
		if err := s.WriteTableStats(ctx, w); err != nil {
			t.Fatalf("WriteTableStats(%+v) failed: %v", w, err)
		}
	}

	got, err := s.ReadTableStats(ctx)
	if err != nil {
		t.Fatalf("ReadTableStats() failed: %v", err)
	}
	want := []TableStats{
		{Table: "ATABLE", RowCount: 500, Seq: 2},
		{Table: "BTABLE", RowCount: 25, Seq: 3},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ReadTableStats() = %+v, want %+v", got, want)
	}

	counts, err := s.RowCounts(ctx)
	if err != nil {
		t.Fatalf("RowCounts() failed: %v", err)
	}
	if !reflect.DeepEqual(counts, map[string]float64{"ATABLE": 500, "BTABLE": 25}) {
		t.Errorf("RowCounts() = %v", counts)
	}
}

func TestTableStats_RejectsNegative(t *testing.T) {
	s := createTestStore(t)

	if err := s.WriteTableStats(context.Background(), TableStats{Table: "A", RowCount: -1}); err == nil {
		t.Error("WriteTableStats() with a negative count should fail")
	}
}

func TestTableStats_Delete(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	if err := s.WriteTableStats(ctx, TableStats{Table: "A", RowCount: 1, Seq: 1}); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteTableStats(ctx, "A"); err != nil {
		t.Fatalf("DeleteTableStats() failed: %v", err)
	}
	if err := s.DeleteTableStats(ctx, "never-written"); err != nil {
		t.Fatalf("DeleteTableStats() of a missing table failed: %v", err)
	}

	got, err := s.ReadTableStats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("stats left after delete: %+v", got)
	}
}
