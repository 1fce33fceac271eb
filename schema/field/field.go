package field

import (
	"fmt"
	"slices"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// A Type represents a field type.
type Type uint8

// List of field types.
const (
	TypeInvalid Type = iota
	TypeString
	TypeText
	TypeInt
	TypeFloat
	TypeBool
	TypeTime
	TypeDate
	TypeJSON
	TypeUUID
	TypeFile
)

var typeNames = [...]string{
	TypeInvalid: "invalid",
	TypeString:  "string",
	TypeText:    "text",
	TypeInt:     "int",
	TypeFloat:   "float",
	TypeBool:    "bool",
	TypeTime:    "time",
	TypeDate:    "date",
	TypeJSON:    "json",
	TypeUUID:    "uuid",
	TypeFile:    "file",
}

// String returns the string representation of a type.
func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return typeNames[TypeInvalid]
}

// ParseType returns the type named s.
func ParseType(s string) (Type, bool) {
	for t, name := range typeNames {
		if name == strings.ToLower(s) && t != int(TypeInvalid) {
			return Type(t), true
		}
	}
	return TypeInvalid, false
}

// MarshalText encodes the type name.
func (t Type) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText decodes a type name.
func (t *Type) UnmarshalText(b []byte) error {
	if string(b) == TypeInvalid.String() {
		*t = TypeInvalid
		return nil
	}
	v, ok := ParseType(string(b))
	if !ok {
		return fmt.Errorf("field: unknown type %q", b)
	}
	*t = v
	return nil
}

// TimeLike reports whether values of the type are ordered points in time.
func (t Type) TimeLike() bool { return t == TypeTime || t == TypeDate }

// Numeric reports whether the type holds numbers.
func (t Type) Numeric() bool { return t == TypeInt || t == TypeFloat }

// ComparisonOps lists the comparison filter operators.
var ComparisonOps = []string{"gt", "ge", "lt", "le", "eq", "ne"}

// Info holds the extra information of a single field.
type Info struct {
	Type Type
	// Comparisons lists the comparison operators exposed as filters.
	// Time-like fields expose all of them when empty.
	Comparisons []string
	// Disk names the storage disk of file fields.
	Disk string
	// Sanitize strips markup from string values before they are persisted.
	Sanitize bool
	// Nullable reports whether the column accepts NULL.
	Nullable bool
}

// Infos maps field names to their extra information.
type Infos map[string]Info

// String returns the info of a short string field.
func String() Info { return Info{Type: TypeString} }

// Text returns the info of a long text field.
func Text() Info { return Info{Type: TypeText} }

// Int returns the info of an integer field.
func Int() Info { return Info{Type: TypeInt} }

// Float returns the info of a floating point field.
func Float() Info { return Info{Type: TypeFloat} }

// Bool returns the info of a boolean field.
func Bool() Info { return Info{Type: TypeBool} }

// Time returns the info of a timestamp field.
func Time() Info { return Info{Type: TypeTime} }

// Date returns the info of a date field.
func Date() Info { return Info{Type: TypeDate} }

// JSON returns the info of a JSON field.
func JSON() Info { return Info{Type: TypeJSON} }

// UUID returns the info of a UUID field.
func UUID() Info { return Info{Type: TypeUUID} }

// File returns the info of a file field. File fields hold the stored
// location of an uploaded file.
func File() Info { return Info{Type: TypeFile} }

// OnDisk sets the storage disk of a file field.
func (i Info) OnDisk(disk string) Info {
	i.Disk = disk
	return i
}

// Comparable exposes the given comparison operators as filters.
func (i Info) Comparable(ops ...string) Info {
	i.Comparisons = ops
	return i
}

// Sanitized strips markup from values before they are persisted.
func (i Info) Sanitized() Info {
	i.Sanitize = true
	return i
}

// Optional marks the field as nullable.
func (i Info) Optional() Info {
	i.Nullable = true
	return i
}

// Ops returns the comparison operators exposed for the field.
func (i Info) Ops() []string {
	if len(i.Comparisons) > 0 {
		return i.Comparisons
	}
	if i.Type.TimeLike() {
		return ComparisonOps
	}
	return nil
}

// HasOp reports whether op is exposed for the field.
func (i Info) HasOp(op string) bool {
	return slices.Contains(i.Ops(), op)
}

var strict = bluemonday.StrictPolicy()

// Clean applies the sanitizer of the field to v.
func (i Info) Clean(v any) any {
	s, ok := v.(string)
	if !ok || !i.Sanitize {
		return v
	}
	return strict.Sanitize(s)
}

// Files returns the names of file fields, sorted.
func (is Infos) Files() []string {
	var names []string
	for name, i := range is {
		if i.Type == TypeFile {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}
