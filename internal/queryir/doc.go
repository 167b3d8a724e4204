// Package queryir provides the scalar-expression vocabulary of the relational
// algebra that pushplan lowers.
//
// An external optimizer hands pushplan trees of relational operators whose
// predicates, projections and join conditions are scalar expressions over
// positional input columns. This package defines those expressions and the
// small descriptors that travel with operators (collations, aggregate calls,
// join types, row types).
//
// SEALED INTERFACES:
//
// Node is a sealed interface using the marker method pattern. Only InputRef,
// Literal, Call and FieldAccess implement it, and a Call carries an Op from a
// closed enumeration. Consumers switch exhaustively:
//
//	switch n := node.(type) {
//	case *InputRef:
//	    // positional input column
//	case *Literal:
//	    // typed constant
//	case *Call:
//	    // operator application, switch on n.Op
//	case *FieldAccess:
//	    // field of a correlated outer row
//	}
//
// POSITIONAL INDICES:
//
// InputRef indices are positions in the input row type, not names. Operators
// that prune or reorder columns renumber every dependent expression with
// Shift or Remap so indices stay valid.
//
// TEXT FORM:
//
// String renders expressions the way explain output shows them:
//
//	=($2, 'a')
//	AND(>($0, 10), <>($1, null:VARCHAR))
//	CAST($0):INTEGER
//	$cor0.$1
//
// Parse reads the same form back, given the input row type.
package queryir
