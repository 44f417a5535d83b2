package schema

import (
	"fmt"
	"sync"
)

// Cardinality is the low or high bound of a Relationship (spec §3).
type Cardinality int

const (
	CardinalityZero Cardinality = iota
	CardinalityOne
	CardinalityMany
)

func ParseLowCardinality(s string) (Cardinality, error) {
	switch s {
	case "zero":
		return CardinalityZero, nil
	case "one":
		return CardinalityOne, nil
	}
	return CardinalityZero, fmt.Errorf("schema: invalid low-cc %q", s)
}

func ParseHighCardinality(s string) (Cardinality, error) {
	switch s {
	case "one":
		return CardinalityOne, nil
	case "many":
		return CardinalityMany, nil
	}
	return CardinalityOne, fmt.Errorf("schema: invalid high-cc %q", s)
}

// Relationship is a schema member describing a reference slot (spec §3
// Relationship).
type Relationship struct {
	mu sync.RWMutex

	name            string
	description     string
	targetClassName string
	targetClass     *Class

	lowCC  Cardinality
	highCC Cardinality

	composite bool
	exclusive bool
	dependent bool
	ordered   bool

	owner *Class
}

// NewRelationship constructs a Relationship from its XML-grammar fields.
// The target class is resolved lazily, at RegistrateClass time, since the
// named class may not be registered yet when the relationship is parsed.
func NewRelationship(name, description, targetClassName string, lowCC, highCC Cardinality, composite, exclusive, dependent, ordered bool) (*Relationship, error) {
	if err := validateMemberName(name, maxAttributeNameLen); err != nil {
		return nil, err
	}
	if len(description) > maxDescriptionLen {
		return nil, fmt.Errorf("schema: relationship %q description exceeds %d bytes", name, maxDescriptionLen)
	}
	if targetClassName == "" {
		return nil, fmt.Errorf("schema: relationship %q: class-type must not be empty", name)
	}
	if dependent && !composite {
		return nil, fmt.Errorf("schema: relationship %q: is-dependent requires is-composite", name)
	}
	if exclusive && !composite {
		return nil, fmt.Errorf("schema: relationship %q: is-exclusive requires is-composite", name)
	}
	return &Relationship{
		name:            name,
		description:     description,
		targetClassName: targetClassName,
		lowCC:           lowCC,
		highCC:          highCC,
		composite:       composite,
		exclusive:       exclusive,
		dependent:       dependent,
		ordered:         ordered,
	}, nil
}

func (r *Relationship) Name() string              { return r.name }
func (r *Relationship) Description() string       { return r.description }
func (r *Relationship) TargetClassName() string    { return r.targetClassName }
func (r *Relationship) LowCC() Cardinality         { return r.lowCC }
func (r *Relationship) HighCC() Cardinality        { return r.highCC }
func (r *Relationship) Composite() bool            { return r.composite }
func (r *Relationship) Exclusive() bool            { return r.exclusive }
func (r *Relationship) Dependent() bool            { return r.dependent }
func (r *Relationship) Ordered() bool              { return r.ordered }

// TargetClass returns the resolved target Class, or nil if the owning
// class's schema closure has not been (re)computed since this
// relationship was added or its target-class changed.
func (r *Relationship) TargetClass() *Class {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.targetClass
}

// resolveTarget is called by Class.registrateClassLocked to fill
// targetClass from the host's class registry. A miss is a schema-error
// (spec §7 "unresolvable class-type of relationship") surfaced by the
// caller.
func (r *Relationship) resolveTarget(resolver ClassResolver) error {
	c, ok := resolver.ResolveClass(r.targetClassName)
	if !ok {
		return fmt.Errorf("schema: relationship %q: unresolvable class-type %q", r.name, r.targetClassName)
	}
	r.mu.Lock()
	r.targetClass = c
	r.mu.Unlock()
	return nil
}

// AcceptsTarget reports whether cls is assignable to this relationship's
// target (equal to, or a subclass of, targetClass per spec §4.4 "Relationship
// mutation").
func (r *Relationship) AcceptsTarget(cls *Class) bool {
	r.mu.RLock()
	target := r.targetClass
	r.mu.RUnlock()
	if target == nil || cls == nil {
		return false
	}
	if cls == target {
		return true
	}
	for _, s := range cls.AllSuperClasses() {
		if s == target {
			return true
		}
	}
	return false
}

func (r *Relationship) notify(kind ChangeKind) {
	if r.owner == nil {
		return
	}
	r.owner.lockFile()
	defer r.owner.unlockFile()
	r.owner.propagate(kind, r.name)
}

// SetDescription validates and assigns a new description, then notifies.
func (r *Relationship) SetDescription(desc string) error {
	if len(desc) > maxDescriptionLen {
		return fmt.Errorf("schema: relationship %q description exceeds %d bytes", r.name, maxDescriptionLen)
	}
	r.mu.Lock()
	r.description = desc
	r.mu.Unlock()
	r.notify(ChangeRelationshipDescription)
	return nil
}

// SetHighCC changes the high-cardinality bound; this is structural (it
// may change a many-valued slot to single-valued or vice versa) and
// triggers registrate_instances via the owning class.
func (r *Relationship) SetHighCC(cc Cardinality) {
	r.mu.Lock()
	r.highCC = cc
	r.mu.Unlock()
	r.notify(ChangeRelationshipHighCC)
}
