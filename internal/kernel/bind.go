package kernel

import (
	"oks/internal/object"
	"oks/internal/okserr"
	"oks/internal/schema"
	"oks/internal/value"
)

// bindObjects implements spec §4.6's bind pass: every relationship slot
// an object was given as an Unresolved (class-name, id) pair during
// parsing is looked up against the schema/object registries exactly
// once, after every file in the load batch has finished parsing, so
// parse order never changes which references resolve. A target class
// that cannot be resolved is a fatal bind-error; a target object that
// cannot be found is a warning when the relationship's low cardinality
// permits emptiness, and a fatal error otherwise.
func (k *Kernel) bindObjects(objs []*object.Object, sink *okserr.Sink) {
	for _, o := range objs {
		k.bindOneObject(o, sink)
	}
}

func (k *Kernel) bindOneObject(o *object.Object, sink *okserr.Sink) {
	cls := o.Class()
	for _, rel := range cls.AllRelationships() {
		slot, ok := cls.SlotOf(rel.Name())
		if !ok {
			continue
		}
		cur := o.GetAt(slot.Index)

		if rel.HighCC() == schema.CardinalityMany {
			pending := cur.Items()
			o.SetSlotByIndex(slot.Index, value.List(nil))
			for _, item := range pending {
				if !item.IsRef() {
					continue
				}
				target, ok := k.resolveRef(item, rel, o, sink)
				if !ok {
					continue
				}
				if err := o.AddRef(rel.Name(), target); err != nil {
					sink.Add(&okserr.BindError{
						Class: cls.Name(), ObjectID: o.ID(), Relation: rel.Name(),
						Reason: err.Error(), Sev: okserr.Error,
					})
				}
			}
			continue
		}

		if !cur.IsRef() {
			continue
		}
		o.SetSlotByIndex(slot.Index, value.NullRef())
		target, ok := k.resolveRef(cur, rel, o, sink)
		if !ok {
			continue
		}
		if err := o.SetRef(rel.Name(), target); err != nil {
			sink.Add(&okserr.BindError{
				Class: cls.Name(), ObjectID: o.ID(), Relation: rel.Name(),
				Reason: err.Error(), Sev: okserr.Error,
			})
		}
	}
}

// resolveRef looks a single reference value up against the schema/object
// registries, reporting through sink and returning ok=false if it cannot
// be resolved.
func (k *Kernel) resolveRef(d value.Data, rel *schema.Relationship, o *object.Object, sink *okserr.Sink) (*object.Object, bool) {
	className, id := d.RefClassName(), d.RefObjectID()

	targetClass, found := k.ResolveClass(className)
	if !found {
		sink.Add(&okserr.BindError{
			Class: o.Class().Name(), ObjectID: o.ID(), Relation: rel.Name(),
			Reason: "unresolvable target class " + className, Sev: okserr.Error,
		})
		return nil, false
	}

	handle, found := targetClass.GetObject(id)
	if !found {
		sev := okserr.Error
		if rel.LowCC() == schema.CardinalityZero {
			sev = okserr.Warning
		}
		sink.Add(&okserr.BindError{
			Class: o.Class().Name(), ObjectID: o.ID(), Relation: rel.Name(),
			Reason: "unresolvable target object " + className + "/" + id, Sev: sev,
		})
		return nil, false
	}

	target, ok := handle.(*object.Object)
	if !ok {
		sink.Add(&okserr.BindError{
			Class: o.Class().Name(), ObjectID: o.ID(), Relation: rel.Name(),
			Reason: "target object handle is not a live object", Sev: okserr.Error,
		})
		return nil, false
	}

	if !rel.AcceptsTarget(target.Class()) {
		sink.Add(&okserr.BindError{
			Class: o.Class().Name(), ObjectID: o.ID(), Relation: rel.Name(),
			Reason: "target class " + target.Class().Name() + " is not assignable to " + rel.TargetClassName(),
			Sev:    okserr.Error,
		})
		return nil, false
	}
	return target, true
}
