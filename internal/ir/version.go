package ir

// Version constants recorded alongside stored compilations.
const (
	// FragmentVersion is the description format version of compiled fragments.
	FragmentVersion = "1"

	// CompilerVersion is the pushplan compiler version.
	CompilerVersion = "0.1.0"
)
