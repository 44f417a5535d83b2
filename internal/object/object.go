package object

import (
	"fmt"
	"sync"

	"oks/internal/schema"
	"oks/internal/value"
)

// Object is a runtime instance: identity (class + id), a flat slot array
// whose layout is dictated by the class, a list of RCRs, and a
// back-pointer to its source file (spec §3 Object).
type Object struct {
	mu sync.RWMutex

	cls *schema.Class
	id  string

	// dupIndex is the N an auto-assigned id landed on after breaking a
	// collision by appending "^N"; -1 if the id was not renamed. Kept so
	// diagnostics and reload can reconstruct the same choice
	// deterministically (spec.md §9 supplemented from original_source/).
	dupIndex int

	data []value.Data

	file schema.FileWriteLocker

	rcrMu sync.Mutex
	rcrs  []RCR

	userData any
	tag      int

	host Host
}

// ClassName and ObjectID satisfy value.ObjectHandle, letting resolved
// references and Class's object registry hold an Object without either
// package importing the other's concrete type.
func (o *Object) ClassName() string { return o.cls.ClassName() }
func (o *Object) ObjectID() string  { return o.id }

// Class, ID, DupIndex, File, Tag, UserData are the plain accessors.
func (o *Object) Class() *schema.Class { return o.cls }
func (o *Object) ID() string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.id
}
func (o *Object) DupIndex() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.dupIndex
}
func (o *Object) Tag() int { return o.tag }
func (o *Object) SetTag(t int) { o.tag = t }
func (o *Object) UserData() any { return o.userData }
func (o *Object) SetUserData(v any) { o.userData = v }

func (o *Object) SetFile(f schema.FileWriteLocker) {
	o.mu.Lock()
	o.file = f
	o.mu.Unlock()
}

// File returns the data File this object belongs to, used by a per-file
// save to select only the objects whose back-pointer equals the target
// file.
func (o *Object) File() schema.FileWriteLocker {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.file
}

func (o *Object) lockFile() {
	if o.file != nil {
		o.file.LockWrite()
	}
}

func (o *Object) unlockFile() {
	if o.file != nil {
		o.file.MarkUpdated()
		o.file.UnlockWrite()
	}
}

// New constructs an Object from schema defaults (spec §4.4 "From schema
// default"): allocates slots, copies each attribute's precomputed
// initial Value, initializes relationship slots empty, assigns identity,
// inserts into the class registry, marks the file updated, and fires the
// create notification.
func New(cls *schema.Class, requestedID string, host Host, file schema.FileWriteLocker) (*Object, error) {
	id, dupIndex, err := assignIdentity(cls, requestedID, host)
	if err != nil {
		return nil, err
	}

	attrs := cls.AllAttributes()
	rels := cls.AllRelationships()
	data := make([]value.Data, len(attrs)+len(rels))
	for _, a := range attrs {
		slot, _ := cls.SlotOf(a.Name())
		data[slot.Index] = a.DefaultValue()
	}
	for _, r := range rels {
		slot, _ := cls.SlotOf(r.Name())
		if r.HighCC() == schema.CardinalityMany {
			data[slot.Index] = value.List(nil)
		} else {
			data[slot.Index] = value.NullRef()
		}
	}

	o := &Object{cls: cls, id: id, dupIndex: dupIndex, data: data, file: file, host: host}
	if err := cls.AddObject(o); err != nil {
		return nil, err
	}
	o.lockFile()
	o.unlockFile()
	if host != nil {
		host.NotifyCreate(o)
	}
	return o, nil
}

// NewBare constructs an Object with empty/zero slots and registers it,
// without firing a create-notify. Used by the XML data-file parser (spec
// §4.4 "From XML"), which fills slots as it streams `<attr>`/`<rel>`
// children and only then is ready for the object to be considered live;
// the parser calls Finalize once parsing completes successfully.
func NewBare(cls *schema.Class, requestedID string, host Host, file schema.FileWriteLocker) (*Object, error) {
	id, dupIndex, err := assignIdentity(cls, requestedID, host)
	if err != nil {
		return nil, err
	}
	data := make([]value.Data, cls.InstanceSize())
	o := &Object{cls: cls, id: id, dupIndex: dupIndex, data: data, file: file, host: host}
	if err := cls.AddObject(o); err != nil {
		return nil, err
	}
	return o, nil
}

// Finalize fires the create notification for an object built with
// NewBare, once the parser has finished filling its slots.
func (o *Object) Finalize() {
	o.lockFile()
	o.unlockFile()
	if o.host != nil {
		o.host.NotifyCreate(o)
	}
}

// assignIdentity implements spec §4.4 "Identity assignment": an empty
// requested id gets a unique one by appending "^N" to a seed and
// incrementing N until the class registry has no collision; when
// inherited-id-check mode is on, a supplied id that collides anywhere in
// the class's inheritance hierarchy fails construction outright.
func assignIdentity(cls *schema.Class, requestedID string, host Host) (string, int, error) {
	cls.LockUniqueID()
	defer cls.UnlockUniqueID()

	checkInherited := host != nil && host.InheritedIDCheck()
	idCollides := func(id string) bool {
		if cls.HasID(id) {
			return true
		}
		if checkInherited {
			for _, anc := range cls.InheritanceHierarchy() {
				if anc != cls && anc.HasID(id) {
					return true
				}
			}
		}
		return false
	}

	if requestedID != "" {
		if idCollides(requestedID) {
			return "", -1, fmt.Errorf("object: class %q: id %q already in use", cls.Name(), requestedID)
		}
		return requestedID, -1, nil
	}

	seed := cls.Name()
	n := 0
	for {
		candidate := fmt.Sprintf("%s^%d", seed, n)
		if !idCollides(candidate) {
			if n == 0 {
				return candidate, -1, nil
			}
			return candidate, n, nil
		}
		n++
	}
}

// Get returns the Value at the slot named name.
func (o *Object) Get(name string) (value.Data, error) {
	slot, ok := o.cls.SlotOf(name)
	if !ok {
		return value.Data{}, fmt.Errorf("object: %s/%s: no member %q", o.cls.Name(), o.id, name)
	}
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.data[slot.Index], nil
}

// GetAt returns the Value at a known slot index (spec §4.4 "get_value(odi)").
func (o *Object) GetAt(index int) value.Data {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.data[index]
}

// Set assigns a new Value to an attribute slot (spec §4.4 "Slot access"):
// coerces d to the attribute's kind via schema.Convert if needed,
// validates against the attribute's range, takes the file write lock,
// maintains any ordered index on this attribute, and fires change-notify.
func (o *Object) Set(name string, d value.Data) error {
	slot, ok := o.cls.SlotOf(name)
	if !ok || slot.Attr == nil {
		return fmt.Errorf("object: %s/%s: %q is not an attribute", o.cls.Name(), o.id, name)
	}
	attr := slot.Attr

	converted := d
	if !attr.MultiValued() && d.Kind != value.KindInvalid && d.Kind != attr.Kind() {
		var err error
		converted, err = schema.Convert(d, attr)
		if err != nil {
			return fmt.Errorf("object: %s/%s: %w", o.cls.Name(), o.id, err)
		}
	}
	if err := attr.Validate(converted); err != nil {
		return fmt.Errorf("object: %s/%s: %w", o.cls.Name(), o.id, err)
	}

	var idx *schema.OrderedIndex
	if o.cls.HasIndex(name) {
		idx = o.cls.Index(name)
	}

	o.lockFile()
	o.mu.Lock()
	old := o.data[slot.Index]
	if idx != nil {
		idx.Remove(old, o)
	}
	o.data[slot.Index] = converted
	if idx != nil {
		idx.Insert(converted, o)
	}
	o.mu.Unlock()
	o.unlockFile()

	if o.host != nil {
		o.host.NotifyChange(o)
	}
	return nil
}
