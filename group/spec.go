package group

// ColumnSpec describes one column: its name, type and attributes. For
// link columns Target names the group-level target table; for subtable
// columns SubSpec carries the full nested descriptor.
type ColumnSpec struct {
	Name     string
	Type     DataType
	Nullable bool

	// Link and LinkList columns only.
	Target   *Table
	LinkType LinkType

	// Subtable columns only.
	SubSpec []ColumnSpec

	// Search index, required by set-unique and add-row-with-key.
	SearchIndex bool
}

// IntColumn returns a non-nullable integer column spec.
func IntColumn(name string) ColumnSpec { return ColumnSpec{Name: name, Type: TypeInt} }

// NullableIntColumn returns a nullable integer column spec.
func NullableIntColumn(name string) ColumnSpec {
	return ColumnSpec{Name: name, Type: TypeInt, Nullable: true}
}

// BoolColumn returns a boolean column spec.
func BoolColumn(name string) ColumnSpec { return ColumnSpec{Name: name, Type: TypeBool} }

// FloatColumn returns a float column spec.
func FloatColumn(name string) ColumnSpec { return ColumnSpec{Name: name, Type: TypeFloat} }

// DoubleColumn returns a double column spec.
func DoubleColumn(name string) ColumnSpec { return ColumnSpec{Name: name, Type: TypeDouble} }

// StringColumn returns a non-nullable string column spec.
func StringColumn(name string) ColumnSpec { return ColumnSpec{Name: name, Type: TypeString} }

// NullableStringColumn returns a nullable string column spec.
func NullableStringColumn(name string) ColumnSpec {
	return ColumnSpec{Name: name, Type: TypeString, Nullable: true}
}

// BinaryColumn returns a non-nullable binary column spec.
func BinaryColumn(name string) ColumnSpec { return ColumnSpec{Name: name, Type: TypeBinary} }

// NullableBinaryColumn returns a nullable binary column spec.
func NullableBinaryColumn(name string) ColumnSpec {
	return ColumnSpec{Name: name, Type: TypeBinary, Nullable: true}
}

// OldDateTimeColumn returns an old-style datetime column spec.
func OldDateTimeColumn(name string) ColumnSpec {
	return ColumnSpec{Name: name, Type: TypeOldDateTime}
}

// TimestampColumn returns a nullable timestamp column spec.
func TimestampColumn(name string) ColumnSpec {
	return ColumnSpec{Name: name, Type: TypeTimestamp, Nullable: true}
}

// MixedColumn returns a mixed column spec.
func MixedColumn(name string) ColumnSpec { return ColumnSpec{Name: name, Type: TypeMixed} }

// SubtableColumn returns a subtable column spec with the given nested
// descriptor.
func SubtableColumn(name string, sub []ColumnSpec) ColumnSpec {
	return ColumnSpec{Name: name, Type: TypeTable, SubSpec: sub}
}

// LinkColumn returns a weak link column spec pointing at target.
func LinkColumn(name string, target *Table) ColumnSpec {
	return ColumnSpec{Name: name, Type: TypeLink, Nullable: true, Target: target}
}

// StrongLinkColumn returns an owning link column spec pointing at target.
func StrongLinkColumn(name string, target *Table) ColumnSpec {
	return ColumnSpec{Name: name, Type: TypeLink, Nullable: true, Target: target, LinkType: LinkStrong}
}

// LinkListColumn returns a weak link-list column spec pointing at target.
func LinkListColumn(name string, target *Table) ColumnSpec {
	return ColumnSpec{Name: name, Type: TypeLinkList, Target: target}
}

// StrongLinkListColumn returns an owning link-list column spec pointing
// at target.
func StrongLinkListColumn(name string, target *Table) ColumnSpec {
	return ColumnSpec{Name: name, Type: TypeLinkList, Target: target, LinkType: LinkStrong}
}

// specEqual compares two specs for replication fidelity. Link targets
// compare by position in their respective groups, not by pointer.
func specEqual(a, b ColumnSpec) bool {
	if a.Name != b.Name || a.Type != b.Type || a.Nullable != b.Nullable ||
		a.LinkType != b.LinkType || a.SearchIndex != b.SearchIndex {
		return false
	}
	if (a.Target == nil) != (b.Target == nil) {
		return false
	}
	if a.Target != nil && a.Target.Index() != b.Target.Index() {
		return false
	}
	if len(a.SubSpec) != len(b.SubSpec) {
		return false
	}
	for i := range a.SubSpec {
		if !specEqual(a.SubSpec[i], b.SubSpec[i]) {
			return false
		}
	}
	return true
}
