package ir

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/apd/v3"
)

// Datum is a sealed interface over runtime scalar values.
// Only the D* types in this file implement it.
type Datum interface {
	datum()
	// Type is the natural SQL type of the value.
	Type() DataType
	// String renders the value as a literal in explain output.
	String() string
}

// DNull is the SQL NULL value.
type DNull struct{}

// DBool is a BOOLEAN value.
type DBool bool

// DInteger is a 32-bit INTEGER value.
type DInteger int32

// DLong is a 64-bit BIGINT value.
type DLong int64

// DDouble is a DOUBLE value.
type DDouble float64

// DDecimal is an arbitrary precision DECIMAL value. The wrapped decimal is
// never mutated after construction.
type DDecimal struct {
	d *apd.Decimal
}

// DDate is a DATE value, always UTC midnight.
type DDate time.Time

// DTime is a TIME value on 1970-01-01 UTC.
type DTime time.Time

// DTimestamp is a TIMESTAMP value in UTC.
type DTimestamp time.Time

// DChar is a CHAR value.
type DChar string

// DVarchar is a VARCHAR value.
type DVarchar string

// DBinary is a VARBINARY value.
type DBinary []byte

func (DNull) datum()      {}
func (DBool) datum()      {}
func (DInteger) datum()   {}
func (DLong) datum()      {}
func (DDouble) datum()    {}
func (DDecimal) datum()   {}
func (DDate) datum()      {}
func (DTime) datum()      {}
func (DTimestamp) datum() {}
func (DChar) datum()      {}
func (DVarchar) datum()   {}
func (DBinary) datum()    {}

func (DNull) Type() DataType      { return TypeUnknown }
func (DBool) Type() DataType      { return TypeBoolean }
func (DInteger) Type() DataType   { return TypeInteger }
func (DLong) Type() DataType      { return TypeLong }
func (DDouble) Type() DataType    { return TypeDouble }
func (DDecimal) Type() DataType   { return TypeDecimal }
func (DDate) Type() DataType      { return TypeDate }
func (DTime) Type() DataType      { return TypeTime }
func (DTimestamp) Type() DataType { return TypeTimestamp }
func (DChar) Type() DataType      { return TypeChar }
func (DVarchar) Type() DataType   { return TypeVarchar }
func (DBinary) Type() DataType    { return TypeBinary }

const (
	dateLayout      = "2006-01-02"
	timeLayout      = "15:04:05.999"
	timestampLayout = "2006-01-02 15:04:05.999"
)

func (DNull) String() string { return "null" }

func (b DBool) String() string { return strconv.FormatBool(bool(b)) }

func (i DInteger) String() string { return strconv.FormatInt(int64(i), 10) }

func (l DLong) String() string { return strconv.FormatInt(int64(l), 10) }

func (f DDouble) String() string { return strconv.FormatFloat(float64(f), 'E', -1, 64) }

func (d DDecimal) String() string {
	s := d.d.Text('f')
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

func (d DDate) String() string { return "DATE '" + time.Time(d).Format(dateLayout) + "'" }

func (t DTime) String() string { return "TIME '" + time.Time(t).Format(timeLayout) + "'" }

func (t DTimestamp) String() string {
	return "TIMESTAMP '" + time.Time(t).Format(timestampLayout) + "'"
}

func (c DChar) String() string { return quoteString(string(c)) }

func (v DVarchar) String() string { return quoteString(string(v)) }

func (b DBinary) String() string { return "X'" + strings.ToUpper(hex.EncodeToString(b)) + "'" }

func quoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// NewDecimal wraps d. The caller must not mutate d afterwards.
func NewDecimal(d *apd.Decimal) DDecimal {
	return DDecimal{d: d}
}

// ParseDecimal parses a decimal literal.
func ParseDecimal(s string) (DDecimal, error) {
	d, _, err := apd.NewFromString(s)
	if err != nil {
		return DDecimal{}, fmt.Errorf("invalid decimal %q: %w", s, err)
	}
	return DDecimal{d: d}, nil
}

// Decimal returns a copy of the wrapped decimal.
func (d DDecimal) Decimal() *apd.Decimal {
	out := new(apd.Decimal)
	if d.d != nil {
		out.Set(d.d)
	}
	return out
}

// ParseDate parses a YYYY-MM-DD literal.
func ParseDate(s string) (DDate, error) {
	t, err := time.ParseInLocation(dateLayout, s, time.UTC)
	if err != nil {
		return DDate{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return DDate(t), nil
}

// ParseTime parses an HH:MM:SS[.fff] literal.
func ParseTime(s string) (DTime, error) {
	t, err := time.ParseInLocation(timeLayout, s, time.UTC)
	if err != nil {
		return DTime{}, fmt.Errorf("invalid time %q: %w", s, err)
	}
	return DTime(time.Date(1970, 1, 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)), nil
}

// ParseTimestamp parses a YYYY-MM-DD HH:MM:SS[.fff] literal.
func ParseTimestamp(s string) (DTimestamp, error) {
	t, err := time.ParseInLocation(timestampLayout, s, time.UTC)
	if err != nil {
		return DTimestamp{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return DTimestamp(t), nil
}

// IsNull reports whether d is NULL (or absent).
func IsNull(d Datum) bool {
	if d == nil {
		return true
	}
	_, ok := d.(DNull)
	return ok
}

// ToDecimal converts a numeric or temporal datum to a decimal. Temporal values
// convert to epoch milliseconds.
func ToDecimal(d Datum) (*apd.Decimal, error) {
	switch v := d.(type) {
	case DInteger:
		return apd.New(int64(v), 0), nil
	case DLong:
		return apd.New(int64(v), 0), nil
	case DDouble:
		out := new(apd.Decimal)
		if _, err := out.SetFloat64(float64(v)); err != nil {
			return nil, err
		}
		return out, nil
	case DDecimal:
		return v.Decimal(), nil
	case DDate:
		return apd.New(time.Time(v).UnixMilli(), 0), nil
	case DTime:
		return apd.New(time.Time(v).UnixMilli(), 0), nil
	case DTimestamp:
		return apd.New(time.Time(v).UnixMilli(), 0), nil
	}
	return nil, fmt.Errorf("%s is not numeric", d.Type())
}

// ToFloat converts a numeric datum to float64.
func ToFloat(d Datum) (float64, error) {
	switch v := d.(type) {
	case DInteger:
		return float64(v), nil
	case DLong:
		return float64(v), nil
	case DDouble:
		return float64(v), nil
	case DDecimal:
		return v.d.Float64()
	}
	return 0, fmt.Errorf("%s is not numeric", d.Type())
}

// ToInt converts an integral datum to int64.
func ToInt(d Datum) (int64, error) {
	switch v := d.(type) {
	case DInteger:
		return int64(v), nil
	case DLong:
		return int64(v), nil
	case DDecimal:
		return v.d.Int64()
	case DDouble:
		f := float64(v)
		if f != math.Trunc(f) || f > math.MaxInt64 || f < math.MinInt64 {
			return 0, fmt.Errorf("%v is not a whole number", f)
		}
		return int64(f), nil
	}
	return 0, fmt.Errorf("%s is not integral", d.Type())
}

// ToTime extracts the instant of a temporal datum.
func ToTime(d Datum) (time.Time, error) {
	switch v := d.(type) {
	case DDate:
		return time.Time(v), nil
	case DTime:
		return time.Time(v), nil
	case DTimestamp:
		return time.Time(v), nil
	}
	return time.Time{}, fmt.Errorf("%s is not temporal", d.Type())
}

// Compare orders two non-null datums of comparable types. Numeric values
// compare across types by value; CHAR and VARCHAR compare as strings.
func Compare(a, b Datum) (int, error) {
	at, bt := a.Type(), b.Type()
	switch {
	case at.IsNumeric() && bt.IsNumeric():
		ad, err := ToDecimal(a)
		if err != nil {
			return 0, err
		}
		bd, err := ToDecimal(b)
		if err != nil {
			return 0, err
		}
		return ad.Cmp(bd), nil
	case at.IsTemporal() && bt.IsTemporal():
		ta, _ := ToTime(a)
		tb, _ := ToTime(b)
		return ta.Compare(tb), nil
	case at.IsString() && bt.IsString():
		return strings.Compare(stringOf(a), stringOf(b)), nil
	case at == TypeBoolean && bt == TypeBoolean:
		ab, bb := bool(a.(DBool)), bool(b.(DBool))
		switch {
		case ab == bb:
			return 0, nil
		case !ab:
			return -1, nil
		}
		return 1, nil
	case at == TypeBinary && bt == TypeBinary:
		return bytes.Compare(a.(DBinary), b.(DBinary)), nil
	}
	return 0, fmt.Errorf("cannot compare %s with %s", at, bt)
}

func stringOf(d Datum) string {
	switch v := d.(type) {
	case DChar:
		return string(v)
	case DVarchar:
		return string(v)
	}
	return d.String()
}
