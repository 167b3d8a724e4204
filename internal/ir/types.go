package ir

import (
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/apd/v3"
)

// DataType is a SQL scalar type understood by the store.
type DataType int

const (
	// TypeUnknown is the type of an untyped NULL literal. It coerces to anything.
	TypeUnknown DataType = iota
	TypeBoolean
	TypeInteger
	TypeLong
	TypeDouble
	TypeDecimal
	TypeDate
	TypeTime
	TypeTimestamp
	TypeChar
	TypeVarchar
	TypeBinary
)

var typeNames = map[DataType]string{
	TypeUnknown:   "NULL",
	TypeBoolean:   "BOOLEAN",
	TypeInteger:   "INTEGER",
	TypeLong:      "BIGINT",
	TypeDouble:    "DOUBLE",
	TypeDecimal:   "DECIMAL",
	TypeDate:      "DATE",
	TypeTime:      "TIME",
	TypeTimestamp: "TIMESTAMP",
	TypeChar:      "CHAR",
	TypeVarchar:   "VARCHAR",
	TypeBinary:    "VARBINARY",
}

// typeAliases maps every accepted spelling to its type.
var typeAliases = map[string]DataType{
	"NULL":      TypeUnknown,
	"BOOLEAN":   TypeBoolean,
	"INTEGER":   TypeInteger,
	"INT":       TypeInteger,
	"BIGINT":    TypeLong,
	"LONG":      TypeLong,
	"DOUBLE":    TypeDouble,
	"FLOAT":     TypeDouble,
	"DECIMAL":   TypeDecimal,
	"NUMERIC":   TypeDecimal,
	"DATE":      TypeDate,
	"TIME":      TypeTime,
	"TIMESTAMP": TypeTimestamp,
	"CHAR":      TypeChar,
	"VARCHAR":   TypeVarchar,
	"VARBINARY": TypeBinary,
	"BINARY":    TypeBinary,
}

func (t DataType) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("DataType(%d)", int(t))
}

// ParseDataType resolves a type name (case-insensitive).
func ParseDataType(name string) (DataType, error) {
	t, ok := typeAliases[strings.ToUpper(strings.TrimSpace(name))]
	if !ok {
		return TypeUnknown, fmt.Errorf("unknown data type %q", name)
	}
	return t, nil
}

// IsNumeric reports whether t participates in numeric arithmetic.
func (t DataType) IsNumeric() bool {
	switch t {
	case TypeInteger, TypeLong, TypeDouble, TypeDecimal:
		return true
	}
	return false
}

// IsIntegral reports whether t is an exact whole-number type.
func (t DataType) IsIntegral() bool {
	return t == TypeInteger || t == TypeLong
}

// IsTemporal reports whether t is a date/time type.
func (t DataType) IsTemporal() bool {
	switch t {
	case TypeDate, TypeTime, TypeTimestamp:
		return true
	}
	return false
}

// IsString reports whether t is a character type.
func (t DataType) IsString() bool {
	return t == TypeChar || t == TypeVarchar
}

// IsCoercibleTo reports whether a value of type t converts implicitly and
// losslessly to target.
func (t DataType) IsCoercibleTo(target DataType) bool {
	if t == target || t == TypeUnknown {
		return true
	}
	switch t {
	case TypeInteger:
		return target == TypeLong || target == TypeDouble || target == TypeDecimal
	case TypeLong:
		return target == TypeDouble || target == TypeDecimal
	case TypeDouble:
		return target == TypeDecimal
	case TypeDate, TypeTime:
		return target == TypeTimestamp
	case TypeChar:
		return target == TypeVarchar
	}
	return false
}

// IsCastableTo reports whether an explicit CAST from t to target is allowed.
// Casts may lose precision; rounding is inserted by the translator.
func (t DataType) IsCastableTo(target DataType) bool {
	if t.IsCoercibleTo(target) {
		return true
	}
	switch {
	case t.IsNumeric() && target.IsNumeric():
		return true
	case t.IsTemporal() && target.IsTemporal():
		return true
	case t.IsString() && target.IsString():
		return true
	case t == TypeDecimal && target.IsTemporal(), t.IsTemporal() && target == TypeDecimal:
		return true
	case t == TypeTimestamp && target.IsIntegral():
		return true
	}
	return false
}

// SampleValue returns a representative non-null value of type t. It stands in
// for correlated variables that are unbound while estimating scan ranges.
func (t DataType) SampleValue() Datum {
	switch t {
	case TypeBoolean:
		return DBool(true)
	case TypeInteger:
		return DInteger(1)
	case TypeLong:
		return DLong(1)
	case TypeDouble:
		return DDouble(1)
	case TypeDecimal:
		return NewDecimal(apd.New(1, 0))
	case TypeDate:
		return DDate(time.Date(1970, 1, 2, 0, 0, 0, 0, time.UTC))
	case TypeTime:
		return DTime(time.Date(1970, 1, 1, 0, 0, 1, 0, time.UTC))
	case TypeTimestamp:
		return DTimestamp(time.Date(1970, 1, 1, 0, 0, 0, 1_000_000, time.UTC))
	case TypeChar:
		return DChar("a")
	case TypeVarchar:
		return DVarchar("a")
	case TypeBinary:
		return DBinary{0x01}
	}
	return DNull{}
}

// SortOrder is the physical encoding direction of a value in a row key.
type SortOrder int

const (
	Ascending SortOrder = iota
	Descending
)

func (s SortOrder) String() string {
	if s == Descending {
		return "DESC"
	}
	return "ASC"
}

// Determinism classifies how stable an expression's value is.
type Determinism int

const (
	// DeterminismAlways means the value depends only on its inputs.
	DeterminismAlways Determinism = iota
	// DeterminismPerStatement means the value is fixed for one statement execution.
	DeterminismPerStatement
	// DeterminismPerRow means the value may change on every evaluation.
	DeterminismPerRow
)

// Combine returns the weaker of two determinism classes.
func (d Determinism) Combine(other Determinism) Determinism {
	if other > d {
		return other
	}
	return d
}

func (d Determinism) String() string {
	switch d {
	case DeterminismPerStatement:
		return "PER_STATEMENT"
	case DeterminismPerRow:
		return "PER_ROW"
	}
	return "ALWAYS"
}
