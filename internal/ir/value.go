package ir

import (
	"slices"
	"unicode/utf16"
)

// Value is a sealed interface over the canonical description tree.
// Plan trees and compiled fragments describe themselves as Values so they can
// be fingerprinted and rendered as JSON deterministically.
// Only Null, String, Int, Bool, List and Object implement it. There is no
// float variant: floating point values are described by their literal text.
type Value interface {
	value()
}

// Null is an explicit absent value.
type Null struct{}

// String is a text value.
type String string

// Int is an integer value.
type Int int64

// Bool is a boolean value.
type Bool bool

// List is an ordered sequence of values.
type List []Value

// Object maps keys to values. Use SortedKeys for deterministic iteration.
type Object map[string]Value

func (Null) value()   {}
func (String) value() {}
func (Int) value()    {}
func (Bool) value()   {}
func (List) value()   {}
func (Object) value() {}

// Strings builds a List of String values.
func Strings(ss ...string) List {
	out := make(List, len(ss))
	for i, s := range ss {
		out[i] = String(s)
	}
	return out
}

// Ints builds a List of Int values.
func Ints(ns ...int) List {
	out := make(List, len(ns))
	for i, n := range ns {
		out[i] = Int(n)
	}
	return out
}

// SortedKeys returns keys in RFC 8785 canonical order (UTF-16 code units).
func (obj Object) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

// compareKeysRFC8785 compares strings by UTF-16 code units. Go's native string
// order is by UTF-8 bytes, which differs for supplementary characters.
func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))
	for i := 0; i < min(len(a16), len(b16)); i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	}
	return 0
}
