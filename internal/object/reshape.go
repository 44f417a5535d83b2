package object

import (
	"oks/internal/schema"
	"oks/internal/value"
)

// Reshape rebuilds o's data array against cls's current closure after a
// structural schema change (spec §4.3 "registrate_instances"): a member
// present in both the old and new layout is moved in place, converting
// through schema.Convert when its attribute type changed or remapping
// cardinality when its relationship's high-cc changed; a newly added
// member gets its schema default; a member dropped from the closure is
// simply not copied forward. An attribute conversion failure aborts the
// reshape and leaves o untouched, matching spec §4.3's "raise an
// exception and abort the schema change".
func (o *Object) Reshape(cls *schema.Class) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	newSize := cls.InstanceSize()
	newData := make([]value.Data, newSize)

	for _, a := range cls.AllAttributes() {
		slot, _ := cls.SlotOf(a.Name())
		if oldSlot, ok := cls.PreviousSlotOf(a.Name()); ok && oldSlot.Attr != nil {
			old := o.data[oldSlot.Index]
			if oldSlot.Attr.Kind() == a.Kind() {
				newData[slot.Index] = old
				continue
			}
			converted, err := schema.Convert(old, a)
			if err != nil {
				return err
			}
			newData[slot.Index] = converted
			continue
		}
		newData[slot.Index] = a.DefaultValue()
	}

	for _, r := range cls.AllRelationships() {
		slot, _ := cls.SlotOf(r.Name())
		if oldSlot, ok := cls.PreviousSlotOf(r.Name()); ok && oldSlot.Rel != nil {
			newData[slot.Index] = remapCardinality(o.data[oldSlot.Index], oldSlot.Rel, r)
			continue
		}
		if r.HighCC() == schema.CardinalityMany {
			newData[slot.Index] = value.List(nil)
		} else {
			newData[slot.Index] = value.NullRef()
		}
	}

	o.data = newData
	o.cls = cls
	return nil
}

// remapCardinality converts a relationship slot's value when its
// high-cardinality changed between the old and new schema (spec §4.3
// "cardinality conversion for relationships").
func remapCardinality(old value.Data, oldRel, newRel *schema.Relationship) value.Data {
	if oldRel.HighCC() == newRel.HighCC() {
		return old
	}
	if newRel.HighCC() == schema.CardinalityMany {
		if old.IsEmptyRef() {
			return value.List(nil)
		}
		return value.List([]value.Data{old})
	}
	items := old.Items()
	if len(items) == 0 {
		return value.NullRef()
	}
	return items[0]
}
