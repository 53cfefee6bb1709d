package group

import (
	"bytes"
	"errors"
	"fmt"
)

// DataType identifies the type of a column, or of a Mixed cell.
type DataType uint8

const (
	TypeInt DataType = iota
	TypeBool
	TypeFloat
	TypeDouble
	TypeString
	TypeBinary
	TypeOldDateTime
	TypeTimestamp
	TypeTable
	TypeMixed
	TypeLink
	TypeLinkList
)

// String returns the lowercase name of the type.
func (t DataType) String() string {
	switch t {
	case TypeInt:
		return "int"
	case TypeBool:
		return "bool"
	case TypeFloat:
		return "float"
	case TypeDouble:
		return "double"
	case TypeString:
		return "string"
	case TypeBinary:
		return "binary"
	case TypeOldDateTime:
		return "olddatetime"
	case TypeTimestamp:
		return "timestamp"
	case TypeTable:
		return "table"
	case TypeMixed:
		return "mixed"
	case TypeLink:
		return "link"
	case TypeLinkList:
		return "linklist"
	default:
		return fmt.Sprintf("datatype(%d)", uint8(t))
	}
}

func (t DataType) valid() bool { return t <= TypeLinkList }

func (t DataType) isLinkType() bool { return t == TypeLink || t == TypeLinkList }

// LinkType controls ownership semantics of a link column.
type LinkType uint8

const (
	// LinkWeak links never delete their target.
	LinkWeak LinkType = iota
	// LinkStrong links own their target: a row loses its last strong
	// backlink, it is removed (cascading).
	LinkStrong
)

// Timestamp is a point in time with nanosecond precision.
type Timestamp struct {
	Seconds     int64
	Nanoseconds int32
}

// Equal reports value equality.
func (t Timestamp) Equal(o Timestamp) bool {
	return t.Seconds == o.Seconds && t.Nanoseconds == o.Nanoseconds
}

// Mixed is a dynamically typed cell value: a tagged union over the
// scalar types plus an embedded (empty) subtable marker. It is never
// null; the containing column tracks nullness separately.
type Mixed struct {
	Type      DataType
	Int       int64 // TypeInt and TypeOldDateTime
	Bool      bool
	Float     float32
	Double    float64
	String    string
	Binary    []byte
	Timestamp Timestamp
}

// MixedInt returns a Mixed holding an integer.
func MixedInt(v int64) Mixed { return Mixed{Type: TypeInt, Int: v} }

// MixedBool returns a Mixed holding a boolean.
func MixedBool(v bool) Mixed { return Mixed{Type: TypeBool, Bool: v} }

// MixedFloat returns a Mixed holding a float.
func MixedFloat(v float32) Mixed { return Mixed{Type: TypeFloat, Float: v} }

// MixedDouble returns a Mixed holding a double.
func MixedDouble(v float64) Mixed { return Mixed{Type: TypeDouble, Double: v} }

// MixedString returns a Mixed holding a string.
func MixedString(v string) Mixed { return Mixed{Type: TypeString, String: v} }

// MixedBinary returns a Mixed holding a binary blob.
func MixedBinary(v []byte) Mixed { return Mixed{Type: TypeBinary, Binary: v} }

// MixedOldDateTime returns a Mixed holding an old-style datetime.
func MixedOldDateTime(v int64) Mixed { return Mixed{Type: TypeOldDateTime, Int: v} }

// MixedTimestamp returns a Mixed holding a timestamp.
func MixedTimestamp(v Timestamp) Mixed { return Mixed{Type: TypeTimestamp, Timestamp: v} }

// MixedSubtable returns a Mixed marking an embedded empty subtable.
func MixedSubtable() Mixed { return Mixed{Type: TypeTable} }

// Equal reports value equality.
func (m Mixed) Equal(o Mixed) bool {
	if m.Type != o.Type {
		return false
	}
	switch m.Type {
	case TypeInt, TypeOldDateTime:
		return m.Int == o.Int
	case TypeBool:
		return m.Bool == o.Bool
	case TypeFloat:
		return m.Float == o.Float
	case TypeDouble:
		return m.Double == o.Double
	case TypeString:
		return m.String == o.String
	case TypeBinary:
		return bytes.Equal(m.Binary, o.Binary)
	case TypeTimestamp:
		return m.Timestamp.Equal(o.Timestamp)
	case TypeTable:
		return true
	default:
		return false
	}
}

//
// Errors
//

var (
	// ErrIndexOutOfRange reports an out-of-range table, column or row index.
	ErrIndexOutOfRange = errors.New("index out of range")
	// ErrTypeMismatch reports an operation applied to a column of the wrong type.
	ErrTypeMismatch = errors.New("column type mismatch")
	// ErrDetached reports use of an accessor whose row or table is gone.
	ErrDetached = errors.New("accessor is detached")
	// ErrNotNullable reports a null assignment to a non-nullable column.
	ErrNotNullable = errors.New("column is not nullable")
	// ErrInvalidArgument reports a structurally invalid request.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNoSearchIndex reports a keyed operation on a column without a search index.
	ErrNoSearchIndex = errors.New("column has no search index")
	// ErrCrossTableLink reports removal of a table that is still a link target.
	ErrCrossTableLink = errors.New("table is the target of cross-table links")
)
