package object

import (
	"oks/internal/schema"
	"oks/internal/value"
)

// SetSlotByIndex assigns d directly into slot index without coercion,
// range validation, or change-notify. It exists for the XML data-file
// parser (spec §4.4 "From XML"): an object built with NewBare is filled
// slot-by-slot as the parser streams `<attr>`/`<rel>` children, and only
// Finalize treats the object as live. Ordinary mutation goes through Set/
// SetRef/AddRef/RemoveRef instead.
func (o *Object) SetSlotByIndex(index int, d value.Data) {
	o.mu.Lock()
	o.data[index] = d
	o.mu.Unlock()
}

// ResetForReparse clears o's slots and re-binds it to cls (which may have
// a different instance size than before, if the schema changed between
// loads), keeping o's identity and registry entry intact. It exists for
// Kernel.ReloadData's in-place re-parse step (spec §4.6 "Reload" step 5):
// any live reference elsewhere that already points at o keeps pointing at
// o's current data once the reload parser has refilled its slots,
// instead of going stale the way discarding o and building a replacement
// would.
func (o *Object) ResetForReparse(cls *schema.Class) {
	o.mu.Lock()
	o.cls = cls
	o.data = make([]value.Data, cls.InstanceSize())
	o.mu.Unlock()
}

// ClearRCRs drops every reverse composite reference held on o, used by
// Kernel.ReloadData step 4: candidates about to be re-parsed have their
// RCRs cleared first, so the parents that re-establish a composite
// relationship to them during the bind pass that follows can reinstall a
// fresh RCR without tripping the exclusive-relationship collision check
// against the stale one.
func (o *Object) ClearRCRs() {
	o.rcrMu.Lock()
	o.rcrs = nil
	o.rcrMu.Unlock()
}
