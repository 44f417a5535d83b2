package schema

// ChangeKind enumerates the propagation events registrate_class_change
// dispatches (spec §4.3). Structural kinds (the *List variants, plus
// SuperClasses, AttributeCardinality and RelationshipHighCC) force a
// closure rebuild of the class and every one of its
// subclasses before notification; the rest only notify.
type ChangeKind int

const (
	ChangeSuperClasses ChangeKind = iota
	ChangeDescription
	ChangeAbstract

	ChangeAttributesList
	ChangeAttributeType
	ChangeAttributeRange
	ChangeAttributeFormat
	ChangeAttributeCardinality
	ChangeAttributeInitValue
	ChangeAttributeDescription
	ChangeAttributeNoNull

	ChangeRelationshipsList
	ChangeRelationshipClassType
	ChangeRelationshipDescription
	ChangeRelationshipLowCC
	ChangeRelationshipHighCC
	ChangeRelationshipComposite
	ChangeRelationshipExclusive
	ChangeRelationshipDependent

	ChangeMethodsList
	ChangeMethodDescription
	ChangeMethodImplementation
)

// structural reports whether kind invalidates closures and therefore
// requires a full registrate_class + registrate_instances pass.
func (k ChangeKind) structural() bool {
	switch k {
	case ChangeSuperClasses, ChangeAttributesList, ChangeRelationshipsList, ChangeMethodsList,
		ChangeAttributeCardinality, ChangeRelationshipHighCC:
		return true
	}
	return false
}

// Severity mirrors okserr.Severity without importing the okserr package
// (schema is a lower layer; the kernel converts at its boundary).
type Severity int

const (
	SeverityWarning Severity = iota
	SeverityError
)

// ClassResolver looks a class up by name, used to resolve direct
// super-class names and relationship target-class names at closure time.
type ClassResolver interface {
	ResolveClass(name string) (*Class, bool)
}

// ChangeListener receives class lifecycle and modification notifications
// (spec §4.6 "Notifications" — the class-registry half: class created,
// class modified, class deleted).
type ChangeListener interface {
	OnClassCreated(c *Class)
	OnClassModified(c *Class, kind ChangeKind, hint string)
	OnClassDeleted(c *Class)
}

// Reshaper is implemented by whatever owns live Objects — the kernel —
// and knows how to move or convert an Object's slots when its class's
// closure changes (spec §4.3 registrate_instances). Class itself never
// touches object.Object, keeping the schema/object import graph acyclic.
type Reshaper interface {
	ReshapeInstances(c *Class) error
}

// Diagnostics accumulates non-fatal schema diagnostics, such as the
// cardinality-override warning (spec §4.3) — wired to an okserr.Sink at
// the kernel boundary.
type Diagnostics interface {
	Diagnose(sev Severity, format string, args ...any)
}

// Host is everything a Class needs from its owning kernel. A Kernel value
// satisfies it in full; tests may supply a narrower fake.
type Host interface {
	ClassResolver
	ChangeListener
	Reshaper
	Diagnostics
}
