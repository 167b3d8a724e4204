package testutil

// FixedSessionGenerator hands out the same session ID every time, so golden
// output that mentions it stays byte-identical between runs.
//
// It satisfies engine.SessionIDGenerator and is safe for concurrent use.
type FixedSessionGenerator struct {
	id string
}

// DefaultSessionID is what NewFixedSessionGenerator("") hands out.
const DefaultSessionID = "00000000-0000-7000-8000-000000000000"

// NewFixedSessionGenerator returns a generator for id. Scenario files set it
// with
//
//	session: "00000000-0000-7000-8000-000000000001"
func NewFixedSessionGenerator(id string) *FixedSessionGenerator {
	if id == "" {
		id = DefaultSessionID
	}
	return &FixedSessionGenerator{id: id}
}

// Generate returns the fixed ID.
func (g *FixedSessionGenerator) Generate() string {
	return g.id
}
