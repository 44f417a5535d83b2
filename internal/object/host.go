// Package object implements the Object runtime: a live instance's
// identity, its flat slot array, its reverse composite references, and
// the construction, mutation, and destruction operations spec §4.4
// describes (Object's transactional RCR updates, cascading destroy,
// identity collision-breaking).
package object

import "oks/internal/schema"

// Severity is an alias for schema.Severity: object already depends on
// schema for Class/Attribute/Relationship, so there is no import-cycle
// reason to mirror the type here, and aliasing (rather than redeclaring)
// lets a single Kernel method satisfy both schema.Host's and object.Host's
// Diagnose — two distinct-but-identically-shaped Severity types could not
// both be satisfied by one method of that name.
type Severity = schema.Severity

const (
	SeverityWarning = schema.SeverityWarning
	SeverityError   = schema.SeverityError
)

// Host is everything an Object needs from its owning kernel: lifecycle
// notifications (spec §4.6 "Notifications"), the inherited-id-check and
// duplicate-id-allowance toggles (spec §3 Object invariant, §6 "object
// duplicate-id allowance"), and a diagnostics sink.
type Host interface {
	NotifyCreate(o *Object)
	NotifyChange(o *Object)
	NotifyDelete(o *Object)
	InheritedIDCheck() bool
	AllowDuplicateObjectID() bool
	Diagnose(sev Severity, format string, args ...any)
}

// RCR is a reverse composite reference: the back-pointer a composite
// relationship's target carries to its parent (spec §3 Object, GLOSSARY
// "RCR").
type RCR struct {
	Parent       *Object
	Relationship *schema.Relationship
}
