package object

import "oks/internal/schema"

// Destroy implements spec §4.4 "Destruction": the object is removed from
// its class registry, the kernel is notified so it can forget the
// object's id and any references to it, outgoing composite RCRs the
// object held on its targets are released, and any dependent target left
// with no remaining RCR is destroyed transitively in the same call.
func (o *Object) Destroy() {
	o.cls.RemoveObject(o.id)

	for _, rel := range o.cls.AllRelationships() {
		if !rel.Composite() {
			continue
		}
		slot, _ := o.cls.SlotOf(rel.Name())
		val := o.GetAt(slot.Index)
		var targets []*Object
		if rel.HighCC() == schema.CardinalityMany {
			for _, item := range val.Items() {
				if h, ok := item.ResolvedObject().(*Object); ok {
					targets = append(targets, h)
				}
			}
		} else if h, ok := val.ResolvedObject().(*Object); ok {
			targets = append(targets, h)
		}

		for _, target := range targets {
			target.removeRCR(o, rel)
			if rel.Dependent() && len(target.RCRs()) == 0 {
				target.Destroy()
			}
		}
	}

	if o.host != nil {
		o.host.NotifyDelete(o)
	}
}
