package transact

import (
	"fmt"

	"github.com/nielsenko/realm-core/group"
	"github.com/nielsenko/realm-core/internal/intenc"
)

// Parser walks a serialized changeset in a single pass, dispatching
// one Handler callback per instruction. No instruction tree is built;
// operands are decoded straight off the buffer.
type Parser struct {
	r       *intenc.Reader
	version uint64
}

// NewParser validates the changeset header and positions the parser on
// the first instruction.
func NewParser(changeset []byte) (*Parser, error) {
	r := intenc.NewReader(changeset)
	format := r.Uint()
	version := r.Uint()
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrCorruptChangeset, err)
	}
	if format != FormatVersion {
		return nil, fmt.Errorf("%w: format %d", ErrUnsupportedFormat, format)
	}
	return &Parser{r: r, version: version}, nil
}

// Version returns the transaction version the changeset produces.
func (p *Parser) Version() uint64 { return p.version }

// Parse dispatches every remaining instruction to h. It stops at the
// first handler error, which it returns as-is; a malformed stream
// yields ErrCorruptChangeset.
func (p *Parser) Parse(h Handler) error {
	for p.r.Remaining() > 0 {
		off := p.r.Offset()
		tag := p.r.Byte()
		if err := p.instruction(tag, h); err != nil {
			return err
		}
		if err := p.r.Err(); err != nil {
			return fmt.Errorf("%w: instruction 0x%02x at offset %d: %v", ErrCorruptChangeset, tag, off, err)
		}
	}
	return nil
}

func (p *Parser) instruction(tag byte, h Handler) error {
	r := p.r
	switch tag {
	case instrInsertGroupLevelTable:
		ndx := r.Index()
		name := r.String()
		if r.Err() != nil {
			return nil
		}
		return h.InsertGroupLevelTable(ndx, name)
	case instrEraseGroupLevelTable:
		ndx := r.Index()
		if r.Err() != nil {
			return nil
		}
		return h.EraseGroupLevelTable(ndx)
	case instrRenameGroupLevelTable:
		ndx := r.Index()
		name := r.String()
		if r.Err() != nil {
			return nil
		}
		return h.RenameGroupLevelTable(ndx, name)
	case instrMoveGroupLevelTable:
		from, to := r.Index(), r.Index()
		if r.Err() != nil {
			return nil
		}
		return h.MoveGroupLevelTable(from, to)

	case instrSelectTable:
		root := r.Index()
		n := r.Index()
		if r.Err() != nil || n > r.Remaining() {
			r.Fail()
			return nil
		}
		path := make([]PathEntry, n)
		for i := range path {
			path[i] = PathEntry{Col: r.Index(), Row: r.Index()}
		}
		if r.Err() != nil {
			return nil
		}
		return h.SelectTable(root, path)
	case instrSelectColumn:
		ndx := r.Index()
		if r.Err() != nil {
			return nil
		}
		return h.SelectColumn(ndx)
	case instrSelectLinkList:
		col, row := r.Index(), r.Index()
		if r.Err() != nil {
			return nil
		}
		return h.SelectLinkList(col, row)

	case instrInsertColumn:
		ndx := r.Index()
		info, ok := p.readColumnInfo(0)
		if !ok {
			return nil
		}
		return h.InsertColumn(ndx, info)
	case instrEraseColumn:
		ndx := r.Index()
		if r.Err() != nil {
			return nil
		}
		return h.EraseColumn(ndx)
	case instrRenameColumn:
		ndx := r.Index()
		name := r.String()
		if r.Err() != nil {
			return nil
		}
		return h.RenameColumn(ndx, name)
	case instrMoveColumn:
		from, to := r.Index(), r.Index()
		if r.Err() != nil {
			return nil
		}
		return h.MoveColumn(from, to)
	case instrAddSearchIndex:
		ndx := r.Index()
		if r.Err() != nil {
			return nil
		}
		return h.AddSearchIndex(ndx)
	case instrRemoveSearchIndex:
		ndx := r.Index()
		if r.Err() != nil {
			return nil
		}
		return h.RemoveSearchIndex(ndx)

	case instrInsertEmptyRows:
		ndx, n := r.Index(), r.Index()
		if r.Err() != nil {
			return nil
		}
		return h.InsertEmptyRows(ndx, n)
	case instrEraseRows:
		ndx, n := r.Index(), r.Index()
		mlo := r.Bool()
		if r.Err() != nil {
			return nil
		}
		return h.EraseRows(ndx, n, mlo)
	case instrClearTable:
		return h.ClearTable()
	case instrOptimizeTable:
		return h.OptimizeTable()
	case instrAddRowWithKey:
		col := r.Index()
		key := r.Int()
		if r.Err() != nil {
			return nil
		}
		return h.AddRowWithKey(col, key)
	case instrMergeRows:
		from, to := r.Index(), r.Index()
		if r.Err() != nil {
			return nil
		}
		return h.MergeRows(from, to)

	case instrSetInt:
		col, row := r.Index(), r.Index()
		v := r.Int()
		if r.Err() != nil {
			return nil
		}
		return h.SetInt(col, row, v)
	case instrSetIntUnique:
		col, row := r.Index(), r.Index()
		v := r.Int()
		if r.Err() != nil {
			return nil
		}
		return h.SetIntUnique(col, row, v)
	case instrSetBool:
		col, row := r.Index(), r.Index()
		v := r.Bool()
		if r.Err() != nil {
			return nil
		}
		return h.SetBool(col, row, v)
	case instrSetFloat:
		col, row := r.Index(), r.Index()
		v := r.Float()
		if r.Err() != nil {
			return nil
		}
		return h.SetFloat(col, row, v)
	case instrSetDouble:
		col, row := r.Index(), r.Index()
		v := r.Double()
		if r.Err() != nil {
			return nil
		}
		return h.SetDouble(col, row, v)
	case instrSetString:
		col, row := r.Index(), r.Index()
		v := r.String()
		if r.Err() != nil {
			return nil
		}
		return h.SetString(col, row, v)
	case instrSetStringUnique:
		col, row := r.Index(), r.Index()
		v := r.String()
		if r.Err() != nil {
			return nil
		}
		return h.SetStringUnique(col, row, v)
	case instrSetBinary:
		col, row := r.Index(), r.Index()
		v := r.Bytes()
		if r.Err() != nil {
			return nil
		}
		return h.SetBinary(col, row, v)
	case instrSetOldDateTime:
		col, row := r.Index(), r.Index()
		v := r.Int()
		if r.Err() != nil {
			return nil
		}
		return h.SetOldDateTime(col, row, v)
	case instrSetTimestamp:
		col, row := r.Index(), r.Index()
		sec := r.Int()
		ns := r.Int()
		if r.Err() != nil {
			return nil
		}
		return h.SetTimestamp(col, row, group.Timestamp{Seconds: sec, Nanoseconds: int32(ns)})
	case instrSetMixed:
		col, row := r.Index(), r.Index()
		v, ok := p.readMixed()
		if !ok {
			return nil
		}
		return h.SetMixed(col, row, v)
	case instrSetNull:
		col, row := r.Index(), r.Index()
		if r.Err() != nil {
			return nil
		}
		return h.SetNull(col, row)
	case instrSetNullUnique:
		col, row := r.Index(), r.Index()
		if r.Err() != nil {
			return nil
		}
		return h.SetNullUnique(col, row)

	case instrInsertSubstring:
		col, row := r.Index(), r.Index()
		pos := r.Index()
		s := r.String()
		if r.Err() != nil {
			return nil
		}
		return h.InsertSubstring(col, row, pos, s)
	case instrEraseSubstring:
		col, row := r.Index(), r.Index()
		pos, size := r.Index(), r.Index()
		if r.Err() != nil {
			return nil
		}
		return h.EraseSubstring(col, row, pos, size)

	case instrSetLink:
		col, row := r.Index(), r.Index()
		target := r.Int()
		if r.Err() != nil {
			return nil
		}
		return h.SetLink(col, row, int(target))
	case instrNullifyLink:
		col, row := r.Index(), r.Index()
		if r.Err() != nil {
			return nil
		}
		return h.NullifyLink(col, row)

	case instrLinkListInsert:
		ndx, target := r.Index(), r.Index()
		if r.Err() != nil {
			return nil
		}
		return h.LinkListInsert(ndx, target)
	case instrLinkListSet:
		ndx, target := r.Index(), r.Index()
		if r.Err() != nil {
			return nil
		}
		return h.LinkListSet(ndx, target)
	case instrLinkListErase:
		ndx := r.Index()
		if r.Err() != nil {
			return nil
		}
		return h.LinkListErase(ndx)
	case instrLinkListMove:
		from, to := r.Index(), r.Index()
		if r.Err() != nil {
			return nil
		}
		return h.LinkListMove(from, to)
	case instrLinkListSwap:
		a, b := r.Index(), r.Index()
		if r.Err() != nil {
			return nil
		}
		return h.LinkListSwap(a, b)
	case instrLinkListClear:
		return h.LinkListClear()
	}
	r.Fail()
	return nil
}

// readColumnInfo decodes one column descriptor, recursing into
// subtable descriptors. Nesting is bounded to reject malicious input.
func (p *Parser) readColumnInfo(depth int) (ColumnInfo, bool) {
	const maxDescriptorDepth = 16
	r := p.r
	if depth > maxDescriptorDepth {
		r.Fail()
		return ColumnInfo{}, false
	}
	var info ColumnInfo
	info.Name = r.String()
	typ := group.DataType(r.Byte())
	flags := r.Byte()
	if r.Err() != nil {
		return ColumnInfo{}, false
	}
	info.Type = typ
	info.Nullable = flags&colFlagNullable != 0
	info.SearchIndex = flags&colFlagIndexed != 0
	if flags&colFlagStrong != 0 {
		info.LinkType = group.LinkStrong
	}
	switch typ {
	case group.TypeLink, group.TypeLinkList:
		info.Target = r.Index()
	case group.TypeTable:
		n := r.Index()
		if r.Err() != nil || n > r.Remaining() {
			r.Fail()
			return ColumnInfo{}, false
		}
		for i := 0; i < n; i++ {
			sub, ok := p.readColumnInfo(depth + 1)
			if !ok {
				return ColumnInfo{}, false
			}
			info.SubSpec = append(info.SubSpec, sub)
		}
	}
	if r.Err() != nil {
		return ColumnInfo{}, false
	}
	return info, true
}

func (p *Parser) readMixed() (group.Mixed, bool) {
	r := p.r
	typ := group.DataType(r.Byte())
	if r.Err() != nil {
		return group.Mixed{}, false
	}
	v := group.Mixed{Type: typ}
	switch typ {
	case group.TypeInt, group.TypeOldDateTime:
		v.Int = r.Int()
	case group.TypeBool:
		v.Bool = r.Bool()
	case group.TypeFloat:
		v.Float = r.Float()
	case group.TypeDouble:
		v.Double = r.Double()
	case group.TypeString:
		v.String = r.String()
	case group.TypeBinary:
		v.Binary = r.Bytes()
	case group.TypeTimestamp:
		v.Timestamp.Seconds = r.Int()
		v.Timestamp.Nanoseconds = int32(r.Int())
	case group.TypeTable:
	default:
		r.Fail()
		return group.Mixed{}, false
	}
	if r.Err() != nil {
		return group.Mixed{}, false
	}
	return v, true
}
