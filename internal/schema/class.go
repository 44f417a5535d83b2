package schema

import (
	"fmt"
	"sync"

	"oks/internal/value"
)

// maxClassNameLen bounds a Class name the same way maxAttributeNameLen
// bounds a member name.
const maxClassNameLen = 128

// FileWriteLocker is the subset of file.File a schema member needs to
// serialize mutation against other members sharing the same schema file
// (spec §4.2 "Setters on schema members ... acquire a write lock on the
// owning File"). This is a distinct concern from file.File's on-disk
// advisory lock.
type FileWriteLocker interface {
	LockWrite()
	UnlockWrite()
	MarkUpdated()
}

// SlotInfo locates one member's slot in an Object's data array (spec §3
// Class "slot directory"). Exactly one of Attr/Rel is non-nil.
type SlotInfo struct {
	Index int
	Attr  *Attribute
	Rel   *Relationship
}

// Class is a named schema node (spec §3 Class): its own direct members,
// plus the closures materialized by RegistrateClass.
type Class struct {
	mu sync.RWMutex

	name        string
	description string
	abstract    bool

	file FileWriteLocker
	host Host

	superNames    []string
	resolvedSuper []*Class
	directAttrs   []*Attribute
	directRels    []*Relationship
	directMethods []*Method

	allSuper   []*Class
	allSub     []*Class
	allAttrs   []*Attribute
	allRels    []*Relationship
	allMethods []*Method

	slots        map[string]SlotInfo
	instanceSize int

	// previousSlots is the slot layout this class had immediately before
	// its most recent structural change, snapshotted by registrateClassLocked
	// so a Reshaper can move/convert each live Object's data in place
	// (spec §4.3 registrate_instances). Nil before the first registration.
	previousSlots map[string]SlotInfo

	objMu   sync.RWMutex
	objects map[string]value.ObjectHandle

	idMu sync.Mutex // per-class unique-id mutex, spec §5

	indexes map[string]*OrderedIndex
}

// NewClass constructs a bare Class with no closures computed yet. The
// kernel is expected to register every class by name before calling
// RegistrateClass on any of them, so super-class and relationship target
// resolution always sees a complete name space (spec §4.6 load order).
func NewClass(name, description string, abstract bool, superNames []string, host Host) (*Class, error) {
	if err := validateMemberName(name, maxClassNameLen); err != nil {
		return nil, err
	}
	if len(description) > maxDescriptionLen {
		return nil, fmt.Errorf("schema: class %q description exceeds %d bytes", name, maxDescriptionLen)
	}
	return &Class{
		name:        name,
		description: description,
		abstract:    abstract,
		superNames:  append([]string(nil), superNames...),
		host:        host,
		objects:     make(map[string]value.ObjectHandle),
	}, nil
}

// SetFile attaches the schema File this class belongs to, used by
// lockFile/unlockFile for member-setter propagation.
func (c *Class) SetFile(f FileWriteLocker) {
	c.mu.Lock()
	c.file = f
	c.mu.Unlock()
}

// File returns the schema File this class belongs to, used by a per-file
// save to select only the classes whose back-pointer equals the target
// file (spec §4.6 "A per-file save writes only classes ... whose file
// back-pointer equals the target file handle").
func (c *Class) File() FileWriteLocker {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.file
}

func (c *Class) lockFile() {
	if c.file != nil {
		c.file.LockWrite()
	}
}

func (c *Class) unlockFile() {
	if c.file != nil {
		c.file.MarkUpdated()
		c.file.UnlockWrite()
	}
}

func (c *Class) ClassName() string { return c.name }

func (c *Class) Name() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.name
}

func (c *Class) Description() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.description
}

func (c *Class) Abstract() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.abstract
}

func (c *Class) SuperClassNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.superNames...)
}

func (c *Class) AllSuperClasses() []*Class {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]*Class(nil), c.allSuper...)
}

func (c *Class) AllSubClasses() []*Class {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]*Class(nil), c.allSub...)
}

func (c *Class) AllAttributes() []*Attribute {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]*Attribute(nil), c.allAttrs...)
}

func (c *Class) AllRelationships() []*Relationship {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]*Relationship(nil), c.allRels...)
}

func (c *Class) AllMethods() []*Method {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]*Method(nil), c.allMethods...)
}

func (c *Class) InstanceSize() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.instanceSize
}

// SlotOf looks up a member's slot by name.
func (c *Class) SlotOf(name string) (SlotInfo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.slots[name]
	return s, ok
}

// PreviousSlotOf looks up a member's slot in the layout this class had
// immediately before its most recent structural change, for a Reshaper
// moving live Objects into the new layout (spec §4.3 registrate_instances).
func (c *Class) PreviousSlotOf(name string) (SlotInfo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.previousSlots[name]
	return s, ok
}

func (c *Class) directAttributesSnapshot() []*Attribute {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]*Attribute(nil), c.directAttrs...)
}

func (c *Class) directRelationshipsSnapshot() []*Relationship {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]*Relationship(nil), c.directRels...)
}

func (c *Class) directMethodsSnapshot() []*Method {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]*Method(nil), c.directMethods...)
}

// DirectAttributes, DirectRelationships, and DirectMethods expose this
// class's own declared members (as opposed to the inherited closure
// AllAttributes/AllRelationships/AllMethods return), used by the schema
// file writer: a per-file save re-serializes what this class declared,
// not what it inherited.
func (c *Class) DirectAttributes() []*Attribute         { return c.directAttributesSnapshot() }
func (c *Class) DirectRelationships() []*Relationship   { return c.directRelationshipsSnapshot() }
func (c *Class) DirectMethods() []*Method               { return c.directMethodsSnapshot() }

func (c *Class) hasDirectMemberLocked(name string) bool {
	for _, a := range c.directAttrs {
		if a.name == name {
			return true
		}
	}
	for _, r := range c.directRels {
		if r.name == name {
			return true
		}
	}
	return false
}

// --- direct member mutation ---

// AddAttribute appends a to the direct attribute list and propagates a
// structural change.
func (c *Class) AddAttribute(a *Attribute) error {
	c.mu.Lock()
	if c.hasDirectMemberLocked(a.name) {
		c.mu.Unlock()
		return fmt.Errorf("schema: class %q: duplicate member name %q", c.name, a.name)
	}
	a.owner = c
	c.directAttrs = append(c.directAttrs, a)
	c.mu.Unlock()
	c.propagate(ChangeAttributesList, a.name)
	return nil
}

// RemoveAttribute deletes a direct attribute by name and propagates.
func (c *Class) RemoveAttribute(name string) error {
	c.mu.Lock()
	idx := -1
	for i, a := range c.directAttrs {
		if a.name == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		c.mu.Unlock()
		return fmt.Errorf("schema: class %q: no direct attribute %q", c.name, name)
	}
	c.directAttrs = append(c.directAttrs[:idx], c.directAttrs[idx+1:]...)
	c.mu.Unlock()
	c.propagate(ChangeAttributesList, name)
	return nil
}

// AddRelationship appends r to the direct relationship list and
// propagates a structural change. r's target class is resolved the next
// time RegistrateClass runs.
func (c *Class) AddRelationship(r *Relationship) error {
	c.mu.Lock()
	if c.hasDirectMemberLocked(r.name) {
		c.mu.Unlock()
		return fmt.Errorf("schema: class %q: duplicate member name %q", c.name, r.name)
	}
	r.owner = c
	c.directRels = append(c.directRels, r)
	c.mu.Unlock()
	c.propagate(ChangeRelationshipsList, r.name)
	return nil
}

// RemoveRelationship deletes a direct relationship by name and propagates.
func (c *Class) RemoveRelationship(name string) error {
	c.mu.Lock()
	idx := -1
	for i, r := range c.directRels {
		if r.name == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		c.mu.Unlock()
		return fmt.Errorf("schema: class %q: no direct relationship %q", c.name, name)
	}
	c.directRels = append(c.directRels[:idx], c.directRels[idx+1:]...)
	c.mu.Unlock()
	c.propagate(ChangeRelationshipsList, name)
	return nil
}

// AddMethod appends m to the direct method list and propagates.
func (c *Class) AddMethod(m *Method) error {
	c.mu.Lock()
	for _, existing := range c.directMethods {
		if existing.name == m.name {
			c.mu.Unlock()
			return fmt.Errorf("schema: class %q: duplicate method name %q", c.name, m.name)
		}
	}
	m.owner = c
	c.directMethods = append(c.directMethods, m)
	c.mu.Unlock()
	c.propagate(ChangeMethodsList, m.name)
	return nil
}

// AddAttributeRaw, AddRelationshipRaw, AddMethodRaw, and
// SetSuperClassesRaw append direct members without triggering propagate's
// immediate registrate_class/reshape pass. The file loader uses these
// while a class's full member set is still being parsed: a relationship
// added one at a time through AddRelationship would have its target
// resolved before sibling classes later in the same file (or a sibling
// file) are registered with the host, breaking any forward reference.
// The loader calls RegistrateClass once per class, after every class in
// the load batch has been inserted into the host's registry.
func (c *Class) AddAttributeRaw(a *Attribute) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hasDirectMemberLocked(a.name) {
		return fmt.Errorf("schema: class %q: duplicate member name %q", c.name, a.name)
	}
	a.owner = c
	c.directAttrs = append(c.directAttrs, a)
	return nil
}

func (c *Class) AddRelationshipRaw(r *Relationship) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hasDirectMemberLocked(r.name) {
		return fmt.Errorf("schema: class %q: duplicate member name %q", c.name, r.name)
	}
	r.owner = c
	c.directRels = append(c.directRels, r)
	return nil
}

func (c *Class) AddMethodRaw(m *Method) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, existing := range c.directMethods {
		if existing.name == m.name {
			return fmt.Errorf("schema: class %q: duplicate method name %q", c.name, m.name)
		}
	}
	m.owner = c
	c.directMethods = append(c.directMethods, m)
	return nil
}

func (c *Class) SetSuperClassesRaw(names []string) {
	c.mu.Lock()
	c.superNames = append([]string(nil), names...)
	c.mu.Unlock()
}

// SetSuperClasses replaces the direct super-class name list and
// propagates a structural change; names are re-resolved on the next
// RegistrateClass.
func (c *Class) SetSuperClasses(names []string) {
	c.mu.Lock()
	c.superNames = append([]string(nil), names...)
	c.mu.Unlock()
	c.propagate(ChangeSuperClasses, "")
}

// SetDescription validates and assigns, then notifies (non-structural).
func (c *Class) SetDescription(desc string) error {
	if len(desc) > maxDescriptionLen {
		return fmt.Errorf("schema: class %q description exceeds %d bytes", c.name, maxDescriptionLen)
	}
	c.mu.Lock()
	c.description = desc
	c.mu.Unlock()
	c.propagate(ChangeDescription, "")
	return nil
}

// SetAbstract assigns the abstract flag and notifies (non-structural).
func (c *Class) SetAbstract(v bool) {
	c.mu.Lock()
	c.abstract = v
	c.mu.Unlock()
	c.propagate(ChangeAbstract, "")
}

// propagate is registrate_class_change's single entry point (spec §4.3):
// structural kinds recompute this class's and its subclasses' closures
// and reshape their live instances before notification; every kind
// notifies the host once the internal update is complete.
func (c *Class) propagate(kind ChangeKind, hint string) {
	if kind.structural() {
		c.mu.Lock()
		err := c.registrateClassLocked()
		subs := append([]*Class(nil), c.allSub...)
		c.mu.Unlock()
		if err != nil && c.host != nil {
			c.host.Diagnose(SeverityError, "class %q: %v", c.name, err)
		}
		for _, s := range subs {
			s.mu.Lock()
			serr := s.registrateClassLocked()
			s.mu.Unlock()
			if serr != nil && c.host != nil {
				c.host.Diagnose(SeverityError, "class %q (subclass of %q): %v", s.name, c.name, serr)
			}
			if c.host != nil {
				c.host.ReshapeInstances(s)
			}
		}
		if c.host != nil {
			c.host.ReshapeInstances(c)
		}
	}
	if c.host != nil {
		c.host.OnClassModified(c, kind, hint)
	}
}

// RegistrateClass (re)computes this class's closures: all_super_classes,
// all_attributes, all_relationships, all_methods, data_info/instance_size
// (spec §4.3 "Closures"). Callers must have already registered every
// class by name with the host before calling this on any of them.
func (c *Class) RegistrateClass() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.registrateClassLocked()
}

func (c *Class) registrateClassLocked() error {
	resolvedSuper := make([]*Class, 0, len(c.superNames))
	for _, name := range c.superNames {
		sc, ok := c.host.ResolveClass(name)
		if !ok {
			return fmt.Errorf("unresolvable super-class %q", name)
		}
		resolvedSuper = append(resolvedSuper, sc)
	}
	c.resolvedSuper = resolvedSuper

	c.allSuper = computeAllSuper(c.host, resolvedSuper)

	c.allAttrs = c.mergeAttributes(c.allSuper, c.directAttrs)
	c.allRels = c.mergeRelationships(c.allSuper, c.directRels)
	c.allMethods = c.mergeMethods(c.allSuper, c.directMethods)

	for _, r := range c.allRels {
		if err := r.resolveTarget(c.host); err != nil {
			return fmt.Errorf("class %q: %w", c.name, err)
		}
	}

	c.previousSlots = c.slots

	slots := make(map[string]SlotInfo, len(c.allAttrs)+len(c.allRels))
	idx := 0
	for _, a := range c.allAttrs {
		slots[a.name] = SlotInfo{Index: idx, Attr: a}
		idx++
	}
	for _, r := range c.allRels {
		slots[r.name] = SlotInfo{Index: idx, Rel: r}
		idx++
	}
	c.slots = slots
	c.instanceSize = idx
	return nil
}

// computeAllSuper implements the base-first, deduplicated DFS over direct
// super classes (spec §4.3 "all_super_classes"). Ancestors are looked up
// by name through resolver, so the result does not depend on whether
// they have been registrated yet.
func computeAllSuper(resolver ClassResolver, direct []*Class) []*Class {
	visited := make(map[*Class]bool)
	var order []*Class
	var visit func(c *Class)
	visit = func(c *Class) {
		if visited[c] {
			return
		}
		visited[c] = true
		for _, name := range c.superNames {
			if s, ok := resolver.ResolveClass(name); ok {
				visit(s)
			}
		}
		order = append(order, c)
	}
	for _, s := range direct {
		visit(s)
	}
	return order
}

// mergeAttributes implements the inherited-first, direct-overrides rule
// (spec §4.3 "all_attributes"), diagnosing cardinality disagreements
// between successive overriders along the way (spec §4.3 "Cardinality
// override rule").
func (c *Class) mergeAttributes(ancestors []*Class, direct []*Attribute) []*Attribute {
	var order []string
	first := make(map[string]bool)
	best := make(map[string]*Attribute)

	consider := func(a *Attribute) {
		if !first[a.name] {
			first[a.name] = true
			order = append(order, a.name)
		} else if prev := best[a.name]; prev != a && prev.multiValued != a.multiValued && c.host != nil {
			c.host.Diagnose(SeverityWarning,
				"class %q: attribute %q multi-valued flag overridden (was %v, now %v); using most specific",
				c.name, a.name, prev.multiValued, a.multiValued)
		}
		best[a.name] = a
	}
	for _, anc := range ancestors {
		for _, a := range anc.directAttributesSnapshot() {
			consider(a)
		}
	}
	for _, a := range direct {
		consider(a)
	}
	result := make([]*Attribute, len(order))
	for i, n := range order {
		result[i] = best[n]
	}
	return result
}

// mergeRelationships mirrors mergeAttributes for relationships, comparing
// high-cardinality across overriders.
func (c *Class) mergeRelationships(ancestors []*Class, direct []*Relationship) []*Relationship {
	var order []string
	first := make(map[string]bool)
	best := make(map[string]*Relationship)

	consider := func(r *Relationship) {
		if !first[r.name] {
			first[r.name] = true
			order = append(order, r.name)
		} else if prev := best[r.name]; prev != r && prev.highCC != r.highCC && c.host != nil {
			c.host.Diagnose(SeverityWarning,
				"class %q: relationship %q high-cardinality overridden (was %v, now %v); using most specific",
				c.name, r.name, prev.highCC, r.highCC)
		}
		best[r.name] = r
	}
	for _, anc := range ancestors {
		for _, r := range anc.directRelationshipsSnapshot() {
			consider(r)
		}
	}
	for _, r := range direct {
		consider(r)
	}
	result := make([]*Relationship, len(order))
	for i, n := range order {
		result[i] = best[n]
	}
	return result
}

func (c *Class) mergeMethods(ancestors []*Class, direct []*Method) []*Method {
	var order []string
	first := make(map[string]bool)
	best := make(map[string]*Method)
	consider := func(m *Method) {
		if !first[m.name] {
			first[m.name] = true
			order = append(order, m.name)
		}
		best[m.name] = m
	}
	for _, anc := range ancestors {
		for _, m := range anc.directMethodsSnapshot() {
			consider(m)
		}
	}
	for _, m := range direct {
		consider(m)
	}
	result := make([]*Method, len(order))
	for i, n := range order {
		result[i] = best[n]
	}
	return result
}

// RebuildSubClasses recomputes all_sub_classes from the full set of
// loaded classes (spec §4.3: "rebuilt across all loaded classes after any
// schema change"). The kernel calls this on every class after any
// structural change anywhere in the schema.
func (c *Class) RebuildSubClasses(all []*Class) {
	var subs []*Class
	for _, other := range all {
		if other == c {
			continue
		}
		for _, s := range other.AllSuperClasses() {
			if s == c {
				subs = append(subs, other)
				break
			}
		}
	}
	c.mu.Lock()
	c.allSub = subs
	c.mu.Unlock()
}

// --- object registry (spec §4.3 "Objects") ---

// AddObject inserts obj into the per-class registry. It is an error if an
// object with the same id is already present.
func (c *Class) AddObject(obj value.ObjectHandle) error {
	c.objMu.Lock()
	defer c.objMu.Unlock()
	if _, exists := c.objects[obj.ObjectID()]; exists {
		return fmt.Errorf("schema: class %q: object %q already registered", c.name, obj.ObjectID())
	}
	c.objects[obj.ObjectID()] = obj
	return nil
}

// RemoveObject erases obj from the registry. It is a precondition that
// the object is present.
func (c *Class) RemoveObject(id string) {
	c.objMu.Lock()
	defer c.objMu.Unlock()
	delete(c.objects, id)
}

// GetObject is an O(1) lookup under the registry's read lock.
func (c *Class) GetObject(id string) (value.ObjectHandle, bool) {
	c.objMu.RLock()
	defer c.objMu.RUnlock()
	obj, ok := c.objects[id]
	return obj, ok
}

// Objects returns a snapshot of every object currently registered to this
// class (not its subclasses).
func (c *Class) Objects() []value.ObjectHandle {
	c.objMu.RLock()
	defer c.objMu.RUnlock()
	out := make([]value.ObjectHandle, 0, len(c.objects))
	for _, o := range c.objects {
		out = append(out, o)
	}
	return out
}

// HasID reports whether id is already registered, used by identity
// assignment's collision-breaking loop (spec §4.4).
func (c *Class) HasID(id string) bool {
	c.objMu.RLock()
	defer c.objMu.RUnlock()
	_, ok := c.objects[id]
	return ok
}

// LockUniqueID and UnlockUniqueID guard the per-class unique-id mutex
// from spec §5, serializing the whole "probe a seed, increment N until
// no collision, then register" sequence so two concurrent inserts never
// pick the same auto-assigned id.
func (c *Class) LockUniqueID()   { c.idMu.Lock() }
func (c *Class) UnlockUniqueID() { c.idMu.Unlock() }

// InheritanceHierarchy returns the vector consulted when
// "test-duplicated-objects-via-inheritance" mode is enabled (spec §3
// Object invariant). It is this class plus every class in its
// super/sub closure.
func (c *Class) InheritanceHierarchy() []*Class {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Class, 0, len(c.allSuper)+len(c.allSub)+1)
	out = append(out, c)
	out = append(out, c.allSuper...)
	out = append(out, c.allSub...)
	return out
}

// Index returns the optional per-attribute ordered index for attrName,
// creating it on first use. This is the one indexing mechanism spec §1's
// Non-goals permit beyond the base object registry.
func (c *Class) Index(attrName string) *OrderedIndex {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.indexes == nil {
		c.indexes = make(map[string]*OrderedIndex)
	}
	idx, ok := c.indexes[attrName]
	if !ok {
		idx = newOrderedIndex(attrName)
		c.indexes[attrName] = idx
	}
	return idx
}

// HasIndex reports whether attrName currently has a built index, without
// creating one.
func (c *Class) HasIndex(attrName string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.indexes[attrName]
	return ok
}
