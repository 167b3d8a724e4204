package rel

import "slices"

// Context is the lowering state a parent hands to its input. It is a value:
// each descent derives a new Context and nothing restores the old one.
type Context struct {
	// RetainPKColumns keeps row-key columns as the row key of a projected
	// table instead of copying them into the projected values.
	RetainPKColumns bool
	// ForceProject makes a scan serialize a projector over all its columns
	// and expose the projected layout.
	ForceProject bool
	// NeededColumns are the input columns the parent reads. Nil means all.
	NeededColumns []int
}

// RootContext is the context a plan root is lowered under.
func RootContext() Context {
	return Context{RetainPKColumns: true}
}

// WithRetainPKColumns returns a copy of c with the retain flag set to v.
func (c Context) WithRetainPKColumns(v bool) Context {
	c.RetainPKColumns = v
	return c
}

// WithForceProject returns a copy of c with the projection flag set to v.
func (c Context) WithForceProject(v bool) Context {
	c.ForceProject = v
	return c
}

// WithNeededColumns returns a copy of c reading only cols.
func (c Context) WithNeededColumns(cols []int) Context {
	c.NeededColumns = slices.Clone(cols)
	return c
}
