package object

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oks/internal/schema"
	"oks/internal/value"
)

// fakeSchemaHost satisfies schema.Host: it resolves classes from an
// explicit registry and records diagnostics instead of dispatching them
// anywhere real.
type fakeSchemaHost struct {
	mu          sync.Mutex
	classes     map[string]*schema.Class
	diagnostics []string
}

func newFakeSchemaHost() *fakeSchemaHost {
	return &fakeSchemaHost{classes: make(map[string]*schema.Class)}
}

func (h *fakeSchemaHost) register(c *schema.Class) { h.classes[c.Name()] = c }

func (h *fakeSchemaHost) ResolveClass(name string) (*schema.Class, bool) {
	c, ok := h.classes[name]
	return c, ok
}
func (h *fakeSchemaHost) OnClassCreated(c *schema.Class)                                    {}
func (h *fakeSchemaHost) OnClassModified(c *schema.Class, kind schema.ChangeKind, hint string) {}
func (h *fakeSchemaHost) OnClassDeleted(c *schema.Class)                                    {}
func (h *fakeSchemaHost) ReshapeInstances(c *schema.Class) error                            { return nil }
func (h *fakeSchemaHost) Diagnose(sev schema.Severity, format string, args ...any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.diagnostics = append(h.diagnostics, format)
}

func (h *fakeSchemaHost) registrateAll(t *testing.T) {
	t.Helper()
	all := make([]*schema.Class, 0, len(h.classes))
	for _, c := range h.classes {
		all = append(all, c)
	}
	for _, c := range all {
		require.NoError(t, c.RegistrateClass())
	}
	for _, c := range all {
		c.RebuildSubClasses(all)
	}
}

// fakeObjHost satisfies object.Host: it records lifecycle notifications
// instead of dispatching them to a real kernel.
type fakeObjHost struct {
	mu        sync.Mutex
	created   []string
	changed   []string
	deleted   []string
	inherited bool
}

func (h *fakeObjHost) NotifyCreate(o *Object) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.created = append(h.created, o.ID())
}
func (h *fakeObjHost) NotifyChange(o *Object) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.changed = append(h.changed, o.ID())
}
func (h *fakeObjHost) NotifyDelete(o *Object) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.deleted = append(h.deleted, o.ID())
}
func (h *fakeObjHost) InheritedIDCheck() bool       { return h.inherited }
func (h *fakeObjHost) AllowDuplicateObjectID() bool { return false }
func (h *fakeObjHost) Diagnose(sev Severity, format string, args ...any) {}

func mustAttr(t *testing.T, name string, kind value.Kind, rangeText, initText string) *schema.Attribute {
	t.Helper()
	a, err := schema.NewAttribute(name, "", kind, false, false, false, schema.FormatDec, initText, rangeText)
	require.NoError(t, err)
	return a
}

func TestNewAssignsDefaultsAndUniqueID(t *testing.T) {
	sh := newFakeSchemaHost()
	cls, err := schema.NewClass("Widget", "", false, nil, sh)
	require.NoError(t, err)
	sh.register(cls)
	require.NoError(t, cls.AddAttribute(mustAttr(t, "count", value.KindI32, "", "7")))
	sh.registrateAll(t)

	oh := &fakeObjHost{}
	o1, err := New(cls, "", oh, nil)
	require.NoError(t, err)
	assert.Equal(t, "Widget^0", o1.ID())
	assert.Equal(t, -1, o1.DupIndex())
	d, err := o1.Get("count")
	require.NoError(t, err)
	assert.Equal(t, int64(7), d.Int())

	o2, err := New(cls, "", oh, nil)
	require.NoError(t, err)
	assert.Equal(t, "Widget^1", o2.ID())

	assert.Equal(t, []string{"Widget^0", "Widget^1"}, oh.created)
}

func TestSetValidatesRangeAndConverts(t *testing.T) {
	sh := newFakeSchemaHost()
	cls, err := schema.NewClass("Gadget", "", false, nil, sh)
	require.NoError(t, err)
	sh.register(cls)
	require.NoError(t, cls.AddAttribute(mustAttr(t, "level", value.KindI64, "1..10", "")))
	sh.registrateAll(t)

	o, err := New(cls, "g1", &fakeObjHost{}, nil)
	require.NoError(t, err)

	require.NoError(t, o.Set("level", value.Int(value.KindI32, 5)))
	d, err := o.Get("level")
	require.NoError(t, err)
	assert.Equal(t, value.KindI64, d.Kind)
	assert.Equal(t, int64(5), d.Int())

	assert.Error(t, o.Set("level", value.Int(value.KindI32, 99)))
}

func TestCompositeRefTransferAndDestroyCascade(t *testing.T) {
	sh := newFakeSchemaHost()
	child, err := schema.NewClass("Child", "", false, nil, sh)
	require.NoError(t, err)
	sh.register(child)
	parent, err := schema.NewClass("Parent", "", false, nil, sh)
	require.NoError(t, err)
	sh.register(parent)

	rel, err := schema.NewRelationship("kid", "", "Child", schema.CardinalityZero, schema.CardinalityOne, true, false, true, false)
	require.NoError(t, err)
	require.NoError(t, parent.AddRelationship(rel))
	sh.registrateAll(t)

	oh := &fakeObjHost{}
	p1, err := New(parent, "p1", oh, nil)
	require.NoError(t, err)
	c1, err := New(child, "c1", oh, nil)
	require.NoError(t, err)

	require.NoError(t, p1.SetRef("kid", c1))
	require.Len(t, c1.RCRs(), 1)

	p1.Destroy()
	assert.Contains(t, oh.deleted, "p1")
	assert.Contains(t, oh.deleted, "c1")
}

func TestExclusiveCompositeRejectsSecondOwner(t *testing.T) {
	sh := newFakeSchemaHost()
	child, err := schema.NewClass("Child", "", false, nil, sh)
	require.NoError(t, err)
	sh.register(child)
	parent, err := schema.NewClass("Parent", "", false, nil, sh)
	require.NoError(t, err)
	sh.register(parent)

	rel, err := schema.NewRelationship("kid", "", "Child", schema.CardinalityZero, schema.CardinalityOne, true, true, false, false)
	require.NoError(t, err)
	require.NoError(t, parent.AddRelationship(rel))
	sh.registrateAll(t)

	oh := &fakeObjHost{}
	p1, err := New(parent, "p1", oh, nil)
	require.NoError(t, err)
	p2, err := New(parent, "p2", oh, nil)
	require.NoError(t, err)
	c1, err := New(child, "c1", oh, nil)
	require.NoError(t, err)

	require.NoError(t, p1.SetRef("kid", c1))
	assert.Error(t, p2.SetRef("kid", c1))
}

func TestManyValuedAddRemove(t *testing.T) {
	sh := newFakeSchemaHost()
	child, err := schema.NewClass("Item", "", false, nil, sh)
	require.NoError(t, err)
	sh.register(child)
	parent, err := schema.NewClass("Basket", "", false, nil, sh)
	require.NoError(t, err)
	sh.register(parent)

	rel, err := schema.NewRelationship("items", "", "Item", schema.CardinalityZero, schema.CardinalityMany, false, false, false, false)
	require.NoError(t, err)
	require.NoError(t, parent.AddRelationship(rel))
	sh.registrateAll(t)

	oh := &fakeObjHost{}
	b, err := New(parent, "b1", oh, nil)
	require.NoError(t, err)
	i1, err := New(child, "i1", oh, nil)
	require.NoError(t, err)
	i2, err := New(child, "i2", oh, nil)
	require.NoError(t, err)

	require.NoError(t, b.AddRef("items", i1))
	require.NoError(t, b.AddRef("items", i2))
	items, err := b.RefList("items")
	require.NoError(t, err)
	assert.Len(t, items, 2)

	require.NoError(t, b.RemoveRef("items", i1))
	items, err = b.RefList("items")
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, "i2", items[0].ID())
}
