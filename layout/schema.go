package layout

import (
	"fmt"
	"sort"

	"memview/process"
)

// FieldType names how the bytes of a schema field are interpreted.
type FieldType string

const (
	U8      FieldType = "u8"
	U16     FieldType = "u16"
	U32     FieldType = "u32"
	U64     FieldType = "u64"
	I32     FieldType = "i32"
	I64     FieldType = "i64"
	F32     FieldType = "f32"
	F64     FieldType = "f64"
	Bool    FieldType = "bool"
	Pointer FieldType = "ptr"

	// StdString and StdWString are std::string / std::wstring stored in place.
	StdString  FieldType = "string"
	StdWString FieldType = "wstring"

	// NameRef and WNameRef are pointers to immutable NUL-terminated strings,
	// resolved once per pointer through an identity cache.
	NameRef  FieldType = "name_ref"
	WNameRef FieldType = "wname_ref"

	// StdVector is a std::vector stored in place; Element names its element type.
	StdVector FieldType = "vector"

	// Enum is an integer (Element: u8, u16 or u32, default u32) with named Variants.
	Enum FieldType = "enum"
)

// Width returns the number of bytes a field of this type occupies in its struct.
func (t FieldType) Width() process.ProcessMemorySize {
	switch t {
	case U8, Bool:
		return 1
	case U16:
		return 2
	case U32, I32, F32:
		return 4
	case U64, I64, F64, Pointer, NameRef, WNameRef:
		return 8
	case StdString, StdWString:
		return SizeOf[String]()
	case StdVector:
		return SizeOf[Vector]()
	}
	return 0
}

// Scalar reports whether t can be a container element or an enum representation.
func (t FieldType) Scalar() bool {
	switch t {
	case U8, U16, U32, U64, I32, I64, F32, F64, Pointer:
		return true
	}
	return false
}

// Field locates one member of a remote struct.
type Field struct {
	Offset   uint64           `toml:"offset"`
	Type     FieldType        `toml:"type"`
	Element  FieldType        `toml:"element"`
	Child    string           `toml:"child"`
	Identity bool             `toml:"identity"`
	Variants map[string]int64 `toml:"variants"`
}

// Width returns the in-struct width of the field.
func (f Field) Width() process.ProcessMemorySize {
	if f.Type == Enum {
		return f.EnumType().Width()
	}
	return f.Type.Width()
}

// EnumType is the integer representation of an enum field.
func (f Field) EnumType() FieldType {
	if f.Element == "" {
		return U32
	}
	return f.Element
}

// Variant maps an enum value to its name. Values missing from the table
// return process.ErrUnknownVariant.
func (f Field) Variant(value int64) (string, error) {
	for name, v := range f.Variants {
		if v == value {
			return name, nil
		}
	}
	return fmt.Sprintf("unknown(0x%x)", value), fmt.Errorf("%w: 0x%x", process.ErrUnknownVariant, value)
}

// Struct is the schema of one remote struct: its size and named fields.
// Views of an AlwaysRefresh struct re-read it on every refresh, not only
// when its address changes.
type Struct struct {
	Size          uint64           `toml:"size"`
	AlwaysRefresh bool             `toml:"always_refresh"`
	Fields        map[string]Field `toml:"fields"`
}

// FieldNames returns the field names ordered by offset, then name.
func (s Struct) FieldNames() []string {
	names := make([]string, 0, len(s.Fields))
	for name := range s.Fields {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		a, b := s.Fields[names[i]], s.Fields[names[j]]
		if a.Offset != b.Offset {
			return a.Offset < b.Offset
		}
		return names[i] < names[j]
	})
	return names
}

// Schema maps struct names to their layouts. It is supplied by configuration,
// so updating offsets never touches the decoders.
type Schema map[string]Struct

// Lookup returns the named struct.
func (s Schema) Lookup(name string) (Struct, error) {
	st, ok := s[name]
	if !ok {
		return Struct{}, fmt.Errorf("layout %q is not defined", name)
	}
	return st, nil
}

// Validate checks that every field fits in its struct, has a known type and
// that every child layout exists.
func (s Schema) Validate() error {
	for name, st := range s {
		if st.Size == 0 {
			return fmt.Errorf("layout %q: size must be set", name)
		}
		for fieldName, f := range st.Fields {
			width := f.Width()
			if width == 0 {
				return fmt.Errorf("layout %q field %q: unknown type %q", name, fieldName, f.Type)
			}
			if f.Offset+uint64(width) > st.Size {
				return fmt.Errorf("layout %q field %q: offset 0x%x+%d exceeds size 0x%x", name, fieldName, f.Offset, width, st.Size)
			}
			switch f.Type {
			case StdVector:
				if !f.Element.Scalar() {
					return fmt.Errorf("layout %q field %q: vector element %q is not a scalar type", name, fieldName, f.Element)
				}
				if f.Child != "" && f.Element != Pointer {
					return fmt.Errorf("layout %q field %q: child structs need a ptr element", name, fieldName)
				}
			case Enum:
				if !f.EnumType().Scalar() || f.EnumType().Width() > 4 {
					return fmt.Errorf("layout %q field %q: enum representation %q", name, fieldName, f.EnumType())
				}
			}
			if f.Child != "" {
				if f.Type != StdVector && f.Type != Pointer {
					return fmt.Errorf("layout %q field %q: only ptr and vector fields can have a child", name, fieldName)
				}
				if _, ok := s[f.Child]; !ok {
					return fmt.Errorf("layout %q field %q: child layout %q is not defined", name, fieldName, f.Child)
				}
			}
		}
	}
	return nil
}
