package object

import (
	"fmt"

	"oks/internal/schema"
	"oks/internal/value"
)

// SetRef assigns a single-valued relationship slot (low/high cardinality
// at most one). Per spec §4.4 "RCR updates are fully transactional": if
// acquiring the new RCR fails (target rejects it because of exclusivity),
// the old RCR is left untouched and no partial state is visible.
func (o *Object) SetRef(relName string, target *Object) error {
	slot, ok := o.cls.SlotOf(relName)
	if !ok || slot.Rel == nil {
		return fmt.Errorf("object: %s/%s: %q is not a relationship", o.cls.Name(), o.id, relName)
	}
	rel := slot.Rel
	if rel.HighCC() == schema.CardinalityMany {
		return fmt.Errorf("object: %s/%s: %q is many-valued, use Add/Remove", o.cls.Name(), o.id, relName)
	}
	if target != nil && !rel.AcceptsTarget(target.Class()) {
		return fmt.Errorf("object: %s/%s: %q does not accept class %q", o.cls.Name(), o.id, relName, target.Class().Name())
	}

	o.mu.RLock()
	oldVal := o.data[slot.Index]
	o.mu.RUnlock()
	var oldTarget *Object
	if h, ok := oldVal.ResolvedObject().(*Object); ok {
		oldTarget = h
	}
	if oldTarget == target {
		return nil
	}

	if rel.Composite() && target != nil {
		if err := target.addRCR(o, rel); err != nil {
			return err
		}
	}

	o.lockFile()
	o.mu.Lock()
	if target == nil {
		o.data[slot.Index] = value.NullRef()
	} else {
		o.data[slot.Index] = value.Resolved(target)
	}
	o.mu.Unlock()
	o.unlockFile()

	if rel.Composite() && oldTarget != nil {
		oldTarget.removeRCR(o, rel)
	}

	if o.host != nil {
		o.host.NotifyChange(o)
	}
	return nil
}

// Ref reads a single-valued relationship slot, returning nil if unset.
func (o *Object) Ref(relName string) (*Object, error) {
	d, err := o.Get(relName)
	if err != nil {
		return nil, err
	}
	h, _ := d.ResolvedObject().(*Object)
	return h, nil
}

// RefList reads a many-valued relationship slot.
func (o *Object) RefList(relName string) ([]*Object, error) {
	d, err := o.Get(relName)
	if err != nil {
		return nil, err
	}
	out := make([]*Object, 0, len(d.Items()))
	for _, item := range d.Items() {
		if h, ok := item.ResolvedObject().(*Object); ok {
			out = append(out, h)
		}
	}
	return out, nil
}

// AddRef appends target to a many-valued relationship (spec §4.4
// "Add/Remove"). The RCR is acquired before the slot is mutated so a
// rejected RCR leaves the list untouched.
func (o *Object) AddRef(relName string, target *Object) error {
	slot, ok := o.cls.SlotOf(relName)
	if !ok || slot.Rel == nil {
		return fmt.Errorf("object: %s/%s: %q is not a relationship", o.cls.Name(), o.id, relName)
	}
	rel := slot.Rel
	if rel.HighCC() != schema.CardinalityMany {
		return fmt.Errorf("object: %s/%s: %q is single-valued, use SetRef", o.cls.Name(), o.id, relName)
	}
	if target == nil {
		return fmt.Errorf("object: %s/%s: cannot add a nil target to %q", o.cls.Name(), o.id, relName)
	}
	if !rel.AcceptsTarget(target.Class()) {
		return fmt.Errorf("object: %s/%s: %q does not accept class %q", o.cls.Name(), o.id, relName, target.Class().Name())
	}

	if rel.Composite() {
		if err := target.addRCR(o, rel); err != nil {
			return err
		}
	}

	o.lockFile()
	o.mu.Lock()
	items := append([]value.Data{}, o.data[slot.Index].Items()...)
	items = append(items, value.Resolved(target))
	o.data[slot.Index] = value.List(items)
	o.mu.Unlock()
	o.unlockFile()

	if o.host != nil {
		o.host.NotifyChange(o)
	}
	return nil
}

// RemoveRef removes target from a many-valued relationship, releasing
// its RCR if the relationship is composite.
func (o *Object) RemoveRef(relName string, target *Object) error {
	slot, ok := o.cls.SlotOf(relName)
	if !ok || slot.Rel == nil {
		return fmt.Errorf("object: %s/%s: %q is not a relationship", o.cls.Name(), o.id, relName)
	}
	rel := slot.Rel

	o.lockFile()
	o.mu.Lock()
	src := o.data[slot.Index].Items()
	items := make([]value.Data, 0, len(src))
	removed := false
	for _, item := range src {
		if h, ok := item.ResolvedObject().(*Object); ok && h == target {
			removed = true
			continue
		}
		items = append(items, item)
	}
	o.data[slot.Index] = value.List(items)
	o.mu.Unlock()
	o.unlockFile()

	if removed && rel.Composite() {
		target.removeRCR(o, rel)
	}
	if removed && o.host != nil {
		o.host.NotifyChange(o)
	}
	return nil
}

// addRCR records that parent now references o through rel. Exclusive
// composite relationships (spec §4.3 "exclusive") allow at most one live
// RCR for that relationship at a time; acquiring a second one fails so
// the caller can revert anything it already did this call.
func (o *Object) addRCR(parent *Object, rel *schema.Relationship) error {
	o.rcrMu.Lock()
	defer o.rcrMu.Unlock()
	if rel.Exclusive() {
		for _, r := range o.rcrs {
			if r.Relationship == rel && r.Parent != parent {
				return fmt.Errorf("object: %s/%s: exclusive relationship %q already claimed by %s/%s",
					o.cls.Name(), o.id, rel.Name(), r.Parent.Class().Name(), r.Parent.ID())
			}
		}
	}
	o.rcrs = append(o.rcrs, RCR{Parent: parent, Relationship: rel})
	return nil
}

func (o *Object) removeRCR(parent *Object, rel *schema.Relationship) {
	o.rcrMu.Lock()
	defer o.rcrMu.Unlock()
	out := o.rcrs[:0]
	for _, r := range o.rcrs {
		if r.Parent == parent && r.Relationship == rel {
			continue
		}
		out = append(out, r)
	}
	o.rcrs = out
}

// RCRs returns a snapshot of the reverse composite references pointing
// at o, used by cascading destruction to decide whether a dependent
// target still has a live owner.
func (o *Object) RCRs() []RCR {
	o.rcrMu.Lock()
	defer o.rcrMu.Unlock()
	return append([]RCR{}, o.rcrs...)
}
