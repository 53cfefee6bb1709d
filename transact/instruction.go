// Package transact implements the changeset wire format: an Encoder
// that observes mutations of a group and serializes them as an
// instruction stream, a Parser that walks a serialized changeset, and
// an Applier that replays one against an isomorphic target group.
package transact

import (
	"errors"

	"github.com/nielsenko/realm-core/group"
)

// FormatVersion is the changeset format understood by this package.
// Every changeset begins with it, followed by the transaction version
// it produces.
const FormatVersion = 1

var (
	// ErrCorruptChangeset reports a structurally invalid instruction
	// stream: truncation, an unknown tag, or a malformed operand.
	ErrCorruptChangeset = errors.New("transact: corrupt changeset")
	// ErrUnsupportedFormat reports a changeset header with a format
	// version this package does not understand.
	ErrUnsupportedFormat = errors.New("transact: unsupported changeset format")
	// ErrBadInstruction reports a well-formed instruction that cannot
	// be applied to the target group (wrong schema, bad index).
	ErrBadInstruction = errors.New("transact: instruction does not apply")
)

// Instruction tags. One byte each; operands follow as zigzag varints,
// unsigned varints, fixed-width little-endian floats and
// length-prefixed byte strings.
const (
	// Group-level schema.
	instrInsertGroupLevelTable byte = 0x01
	instrEraseGroupLevelTable  byte = 0x02
	instrRenameGroupLevelTable byte = 0x03
	instrMoveGroupLevelTable   byte = 0x04

	// Cursors.
	instrSelectTable    byte = 0x0A
	instrSelectLinkList byte = 0x0B
	instrSelectColumn   byte = 0x0C

	// Table-level schema.
	instrInsertColumn      byte = 0x10
	instrEraseColumn       byte = 0x11
	instrRenameColumn      byte = 0x12
	instrMoveColumn        byte = 0x13
	instrAddSearchIndex    byte = 0x14
	instrRemoveSearchIndex byte = 0x15

	// Rows.
	instrInsertEmptyRows byte = 0x20
	instrEraseRows       byte = 0x21
	instrClearTable      byte = 0x22
	instrOptimizeTable   byte = 0x23
	instrAddRowWithKey   byte = 0x24
	instrMergeRows       byte = 0x25

	// Cells.
	instrSetInt          byte = 0x30
	instrSetIntUnique    byte = 0x31
	instrSetBool         byte = 0x32
	instrSetFloat        byte = 0x33
	instrSetDouble       byte = 0x34
	instrSetString       byte = 0x35
	instrSetStringUnique byte = 0x36
	instrSetBinary       byte = 0x37
	instrSetOldDateTime  byte = 0x38
	instrSetTimestamp    byte = 0x39
	instrSetMixed        byte = 0x3A
	instrSetNull         byte = 0x3B
	instrSetNullUnique   byte = 0x3C

	// String edits.
	instrInsertSubstring byte = 0x40
	instrEraseSubstring  byte = 0x41

	// Links.
	instrSetLink     byte = 0x50
	instrNullifyLink byte = 0x51

	// Link lists (operate on the selected list).
	instrLinkListInsert byte = 0x60
	instrLinkListSet    byte = 0x61
	instrLinkListErase  byte = 0x62
	instrLinkListMove   byte = 0x63
	instrLinkListSwap   byte = 0x64
	instrLinkListClear  byte = 0x65
)

// PathEntry is one step of a select-table subtable path.
type PathEntry struct {
	Col, Row int
}

// ColumnInfo is the wire form of a column descriptor. Link targets are
// carried as group-level table positions; subtable descriptors nest.
type ColumnInfo struct {
	Name        string
	Type        group.DataType
	Nullable    bool
	SearchIndex bool

	// Link and LinkList columns only.
	Target   int
	LinkType group.LinkType

	// Subtable columns only.
	SubSpec []ColumnInfo
}

// Column attribute flags, packed into one byte after the type.
const (
	colFlagNullable byte = 1 << 0
	colFlagStrong   byte = 1 << 1
	colFlagIndexed  byte = 1 << 2
)

// Handler receives one callback per instruction during a parse, in
// stream order. Cursor instructions arrive like any other; a handler
// that applies instructions keeps the selected table and list as its
// own state. Returning an error aborts the parse.
type Handler interface {
	InsertGroupLevelTable(ndx int, name string) error
	EraseGroupLevelTable(ndx int) error
	RenameGroupLevelTable(ndx int, name string) error
	MoveGroupLevelTable(from, to int) error

	SelectTable(root int, path []PathEntry) error
	SelectColumn(ndx int) error
	SelectLinkList(col, row int) error

	InsertColumn(ndx int, info ColumnInfo) error
	EraseColumn(ndx int) error
	RenameColumn(ndx int, name string) error
	MoveColumn(from, to int) error
	AddSearchIndex(ndx int) error
	RemoveSearchIndex(ndx int) error

	InsertEmptyRows(ndx, n int) error
	EraseRows(ndx, n int, moveLastOver bool) error
	ClearTable() error
	OptimizeTable() error
	AddRowWithKey(col int, key int64) error
	MergeRows(from, to int) error

	SetInt(col, row int, v int64) error
	SetIntUnique(col, row int, v int64) error
	SetBool(col, row int, v bool) error
	SetFloat(col, row int, v float32) error
	SetDouble(col, row int, v float64) error
	SetString(col, row int, v string) error
	SetStringUnique(col, row int, v string) error
	SetBinary(col, row int, v []byte) error
	SetOldDateTime(col, row int, v int64) error
	SetTimestamp(col, row int, v group.Timestamp) error
	SetMixed(col, row int, v group.Mixed) error
	SetNull(col, row int) error
	SetNullUnique(col, row int) error

	InsertSubstring(col, row, pos int, s string) error
	EraseSubstring(col, row, pos, size int) error

	SetLink(col, row, target int) error
	NullifyLink(col, row int) error

	LinkListInsert(ndx, target int) error
	LinkListSet(ndx, target int) error
	LinkListErase(ndx int) error
	LinkListMove(from, to int) error
	LinkListSwap(a, b int) error
	LinkListClear() error
}
