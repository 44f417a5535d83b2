// Package value implements OksData, the tagged union that backs every
// attribute and relationship slot in an Object, plus the Range constraint
// compiler that validates it (spec §3 Value, §4.2 Range).
//
// The union is centrally switched here — in the constructors, the
// equality helper, and the range validator — while kind conversion
// (schema.Convert) and index ordering (schema's less) live in the schema
// package (spec §9
// "Dispatch over primitive types"). schema.Attribute and object.Object
// both depend on this package; this package depends on neither, breaking
// what would otherwise be an import cycle through two narrow interfaces,
// ClassHandle and ObjectHandle, that schema.Class and object.Object
// satisfy.
package value

import "fmt"

// Kind discriminates the variant held by a Data value.
type Kind int

const (
	KindInvalid Kind = iota
	KindI8
	KindI16
	KindI32
	KindI64
	KindU8
	KindU16
	KindU32
	KindU64
	KindFloat32
	KindFloat64
	KindBool
	KindDate // day count since the OKS epoch
	KindTime // 64-bit timestamp, seconds since Unix epoch
	KindString
	KindEnum  // index into the owning attribute's enumerator table
	KindClass // pointer to a Class (value of a `class`-typed attribute)
	KindList  // homogeneous list of Data

	// Relationship reference shapes (GLOSSARY).
	KindResolved     // live pointer to an Object
	KindSemiResolved // Class known, object id pending
	KindUnresolved   // class name + object id, neither known
)

// ParseKind maps an XML `type` attribute tag (spec §6, the same
// vocabulary Kind.String produces) back to a Kind. Reports false for an
// unrecognized tag.
func ParseKind(tag string) (Kind, bool) {
	switch tag {
	case "s8":
		return KindI8, true
	case "s16":
		return KindI16, true
	case "s32":
		return KindI32, true
	case "s64":
		return KindI64, true
	case "u8":
		return KindU8, true
	case "u16":
		return KindU16, true
	case "u32":
		return KindU32, true
	case "u64":
		return KindU64, true
	case "float":
		return KindFloat32, true
	case "double":
		return KindFloat64, true
	case "bool":
		return KindBool, true
	case "date":
		return KindDate, true
	case "time":
		return KindTime, true
	case "string":
		return KindString, true
	case "enum":
		return KindEnum, true
	case "class":
		return KindClass, true
	}
	return KindInvalid, false
}

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindI8:
		return "s8"
	case KindI16:
		return "s16"
	case KindI32:
		return "s32"
	case KindI64:
		return "s64"
	case KindU8:
		return "u8"
	case KindU16:
		return "u16"
	case KindU32:
		return "u32"
	case KindU64:
		return "u64"
	case KindFloat32:
		return "float"
	case KindFloat64:
		return "double"
	case KindBool:
		return "bool"
	case KindDate:
		return "date"
	case KindTime:
		return "time"
	case KindString:
		return "string"
	case KindEnum:
		return "enum"
	case KindClass:
		return "class"
	case KindList:
		return "list"
	case KindResolved, KindSemiResolved, KindUnresolved:
		return "class-ref"
	}
	return "unknown"
}

// ClassHandle is the subset of schema.Class a Value needs: its name, for
// unresolved/semi-resolved comparison, and relationship-compatibility
// checks performed in the object package.
type ClassHandle interface {
	ClassName() string
}

// ObjectHandle is the subset of object.Object a resolved reference needs.
type ObjectHandle interface {
	ClassName() string
	ObjectID() string
}

// Data is a single attribute/relationship value. Exactly one group of
// fields is meaningful for a given Kind; Go has no tagged union, so this
// is a plain one-field-per-variant struct, populated and read through
// Kind-dispatched accessors rather than an interface or generic box.
type Data struct {
	Kind Kind

	i   int64
	u   uint64
	f   float64
	b   bool
	s   string
	cls ClassHandle

	list []Data

	resolved     ObjectHandle
	semiClass    ClassHandle
	semiOrUnresC string // class name, unresolved only
	refObjectID  string
}

// --- constructors ---

func Int(kind Kind, v int64) Data   { return Data{Kind: kind, i: v} }
func Uint(kind Kind, v uint64) Data { return Data{Kind: kind, u: v} }
func Float32V(v float32) Data       { return Data{Kind: KindFloat32, f: float64(v)} }
func Float64V(v float64) Data       { return Data{Kind: KindFloat64, f: v} }
func Bool(v bool) Data              { return Data{Kind: KindBool, b: v} }
func Date(days int64) Data          { return Data{Kind: KindDate, i: days} }
func Time(ts int64) Data            { return Data{Kind: KindTime, i: ts} }
func String(v string) Data          { return Data{Kind: KindString, s: v} }
func Enum(index int64) Data         { return Data{Kind: KindEnum, i: index} }
func Class(c ClassHandle) Data      { return Data{Kind: KindClass, cls: c} }
func List(items []Data) Data        { return Data{Kind: KindList, list: items} }

// Resolved returns a reference value pointing at a live object.
func Resolved(obj ObjectHandle) Data {
	return Data{Kind: KindResolved, resolved: obj}
}

// SemiResolved returns a reference value whose target Class is known but
// whose object has not yet been materialized.
func SemiResolved(cls ClassHandle, id string) Data {
	return Data{Kind: KindSemiResolved, semiClass: cls, refObjectID: id}
}

// Unresolved returns a reference value that names its target only by
// class name and object id.
func Unresolved(className, id string) Data {
	return Data{Kind: KindUnresolved, semiOrUnresC: className, refObjectID: id}
}

// Zero returns the zero Data for a given kind (used for schema-default
// initialization of attributes with no init-value and for empty
// relationship slots).
func Zero(kind Kind) Data {
	switch kind {
	case KindString:
		return String("")
	case KindBool:
		return Bool(false)
	case KindList:
		return List(nil)
	default:
		return Data{Kind: kind}
	}
}

// --- accessors ---

func (d Data) Int() int64       { return d.i }
func (d Data) Uint() uint64     { return d.u }
func (d Data) Float() float64   { return d.f }
func (d Data) BoolVal() bool    { return d.b }
func (d Data) Str() string      { return d.s }
func (d Data) ClassVal() ClassHandle { return d.cls }
func (d Data) Items() []Data    { return d.list }

// ResolvedObject returns the live object pointer of a KindResolved value.
func (d Data) ResolvedObject() ObjectHandle { return d.resolved }

// RefClassName returns the class name of an unresolved reference, or the
// ClassHandle's name for a semi-resolved one.
func (d Data) RefClassName() string {
	switch d.Kind {
	case KindUnresolved:
		return d.semiOrUnresC
	case KindSemiResolved:
		if d.semiClass != nil {
			return d.semiClass.ClassName()
		}
	case KindResolved:
		if d.resolved != nil {
			return d.resolved.ClassName()
		}
	}
	return ""
}

// RefClass returns the resolved Class of a semi-resolved reference, or nil.
func (d Data) RefClass() ClassHandle { return d.semiClass }

// RefObjectID returns the object id named by an unresolved or
// semi-resolved reference, or the live object's id for a resolved one.
func (d Data) RefObjectID() string {
	switch d.Kind {
	case KindResolved:
		if d.resolved != nil {
			return d.resolved.ObjectID()
		}
		return ""
	default:
		return d.refObjectID
	}
}

// IsRef reports whether d holds one of the three reference shapes.
func (d Data) IsRef() bool {
	switch d.Kind {
	case KindResolved, KindSemiResolved, KindUnresolved:
		return true
	}
	return false
}

// IsEmptyRef reports whether a single-valued relationship slot is the
// null reference (no Kind set at all — the zero value of Data).
func (d Data) IsEmptyRef() bool { return d.Kind == KindInvalid }

// NullRef returns the null single-valued relationship reference.
func NullRef() Data { return Data{} }

// Equal implements the GLOSSARY's "pointer comparison by id" rule: object
// references compare by (class_name, object_id), never by Go pointer
// identity, except that a resolved-vs-resolved comparison may take a fast
// pointer-equal shortcut first. This keeps round-trip equality working
// across load/save cycles (spec §9).
func (a Data) Equal(b Data) bool {
	if a.Kind != b.Kind {
		if a.IsRef() && b.IsRef() {
			return a.RefClassName() == b.RefClassName() && a.RefObjectID() == b.RefObjectID()
		}
		return false
	}
	switch a.Kind {
	case KindInvalid:
		return true
	case KindI8, KindI16, KindI32, KindI64, KindDate, KindTime, KindEnum:
		return a.i == b.i
	case KindU8, KindU16, KindU32, KindU64:
		return a.u == b.u
	case KindFloat32, KindFloat64:
		return a.f == b.f
	case KindBool:
		return a.b == b.b
	case KindString:
		return a.s == b.s
	case KindClass:
		if a.cls == nil || b.cls == nil {
			return a.cls == b.cls
		}
		return a.cls.ClassName() == b.cls.ClassName()
	case KindList:
		if len(a.list) != len(b.list) {
			return false
		}
		for i := range a.list {
			if !a.list[i].Equal(b.list[i]) {
				return false
			}
		}
		return true
	case KindResolved:
		if a.resolved == b.resolved {
			return true
		}
		return a.RefClassName() == b.RefClassName() && a.RefObjectID() == b.RefObjectID()
	case KindSemiResolved, KindUnresolved:
		return a.RefClassName() == b.RefClassName() && a.RefObjectID() == b.RefObjectID()
	}
	return false
}

// String renders a debug form, used in diagnostics and tests.
func (d Data) String() string {
	switch d.Kind {
	case KindInvalid:
		return "<null>"
	case KindString:
		return fmt.Sprintf("%q", d.s)
	case KindBool:
		return fmt.Sprintf("%v", d.b)
	case KindI8, KindI16, KindI32, KindI64, KindDate, KindTime, KindEnum:
		return fmt.Sprintf("%d", d.i)
	case KindU8, KindU16, KindU32, KindU64:
		return fmt.Sprintf("%d", d.u)
	case KindFloat32, KindFloat64:
		return fmt.Sprintf("%g", d.f)
	case KindClass:
		if d.cls != nil {
			return "class:" + d.cls.ClassName()
		}
		return "class:<nil>"
	case KindList:
		return fmt.Sprintf("%v", d.list)
	case KindResolved:
		return fmt.Sprintf("ref:%s/%s", d.RefClassName(), d.RefObjectID())
	case KindSemiResolved:
		return fmt.Sprintf("semi-ref:%s/%s", d.RefClassName(), d.RefObjectID())
	case KindUnresolved:
		return fmt.Sprintf("unresolved-ref:%s/%s", d.RefClassName(), d.RefObjectID())
	}
	return "<?>"
}

// IsSigned, IsUnsigned, IsInteger, IsNumeric classify primitive kinds for
// Range compilation and cvt.
func (k Kind) IsSigned() bool {
	switch k {
	case KindI8, KindI16, KindI32, KindI64:
		return true
	}
	return false
}

func (k Kind) IsUnsigned() bool {
	switch k {
	case KindU8, KindU16, KindU32, KindU64:
		return true
	}
	return false
}

func (k Kind) IsInteger() bool { return k.IsSigned() || k.IsUnsigned() }

func (k Kind) IsFloat() bool {
	return k == KindFloat32 || k == KindFloat64
}

func (k Kind) IsNumeric() bool { return k.IsInteger() || k.IsFloat() }

// AsFloat returns the value's numeric magnitude as a float64, for Range
// comparisons across signed/unsigned/float kinds. Non-numeric kinds
// return (0, false).
func (d Data) AsFloat() (float64, bool) {
	switch {
	case d.Kind.IsSigned() || d.Kind == KindDate || d.Kind == KindTime || d.Kind == KindEnum:
		return float64(d.i), true
	case d.Kind.IsUnsigned():
		return float64(d.u), true
	case d.Kind.IsFloat():
		return d.f, true
	}
	return 0, false
}
