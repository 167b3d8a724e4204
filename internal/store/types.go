package store

import "errors"

// Compilation statuses.
const (
	StatusOK     = "ok"
	StatusNoPlan = "no_plan"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Compilation is the stored record of one optimizer session.
type Compilation struct {
	SessionID   string
	Seq         int64
	Root        string // explain text of the tree the session started from
	Fingerprint string // fingerprint of Root
	Rules       []string
	Status      string
	Error       string
	// Chosen is the ordinal of the winning candidate, -1 when none won.
	Chosen          int
	CompilerVersion string
	FragmentVersion string
	Candidates      []Candidate
}

// Candidate is one alternative a session costed.
type Candidate struct {
	Ordinal     int
	Explain     string
	Fingerprint string
	// Derivation lists the rules applied, in order, to reach this tree from
	// the root.
	Derivation []string
	Rows       float64
	CPU        float64
	IO         float64
	Infinite   bool
	Plan       string // formatted fragment, empty when lowering failed
	PlanJSON   string // canonical JSON description of the fragment
	Error      string
}

// TableStats is a stored row count for one table.
type TableStats struct {
	Table    string
	RowCount float64
	Seq      int64
}
