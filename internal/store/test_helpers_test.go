package store

import (
	"path/filepath"
	"testing"
)

// createTestStore opens a fresh store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestCompilation builds a compilation with two candidates: a costed
// winner and an infinite loser.
func createTestCompilation(sessionID string, seq int64) Compilation {
	return Compilation{
		SessionID:       sessionID,
		Seq:             seq,
		Root:            "ClientSort(fetch=[10])\n  ToClient()\n    TableScan(table=[[phoenix, ATABLE]])\n",
		Fingerprint:     "root-" + sessionID,
		Rules:           []string{"AddScanLimit", "InnerSortRemove"},
		Status:          StatusOK,
		Chosen:          1,
		CompilerVersion: "0.1.0",
		FragmentVersion: "1",
		Candidates: []Candidate{
			{
				Ordinal:     0,
				Explain:     "ClientSort(fetch=[10])\n  ToClient()\n    TableScan(table=[[phoenix, ATABLE]])\n",
				Fingerprint: "c0",
				Derivation:  []string{},
				Infinite:    true,
			},
			{
				Ordinal:     1,
				Explain:     "ClientSort(fetch=[10])\n  ToClient()\n    TableScan(table=[[phoenix, ATABLE]], limit=[10])\n",
				Fingerprint: "c1",
				Derivation:  []string{"AddScanLimit"},
				Rows:        10,
				CPU:         20.5,
				IO:          0,
				Plan:        "CLIENT SCAN OVER ATABLE LIMIT 10",
				PlanJSON:    `{"kind":"scan"}`,
			},
		},
	}
}
