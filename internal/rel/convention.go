package rel

// Convention is the physical location an operator executes at.
type Convention int

const (
	// ConventionNone marks logical operators that have no lowering.
	ConventionNone Convention = iota
	// ConventionServer runs next to the data, inside a scan request.
	ConventionServer
	// ConventionServerJoin runs on the probe side of a server hash join.
	ConventionServerJoin
	// ConventionClient runs on the query issuer.
	ConventionClient
	// ConventionProjectable is a server join whose output a server
	// projection may still be serialized into.
	ConventionProjectable
)

func (c Convention) String() string {
	switch c {
	case ConventionServer:
		return "SERVER"
	case ConventionServerJoin:
		return "SERVERJOIN"
	case ConventionClient:
		return "CLIENT"
	case ConventionProjectable:
		return "PROJECTABLE"
	}
	return "NONE"
}

// IsServerSide reports whether rows of c are still inside a scan request,
// so a ToClient converter may sit on top.
func (c Convention) IsServerSide() bool {
	return c == ConventionServer || c == ConventionServerJoin || c == ConventionProjectable
}
