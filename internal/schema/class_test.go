package schema

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oks/internal/value"
)

// fakeHost is a minimal Host for schema-package tests: it resolves
// classes from an explicit registry and records diagnostics/notifications
// instead of dispatching them anywhere real.
type fakeHost struct {
	mu          sync.Mutex
	classes     map[string]*Class
	diagnostics []string
	modified    []ChangeKind
	reshaped    []string
}

func newFakeHost() *fakeHost {
	return &fakeHost{classes: make(map[string]*Class)}
}

func (h *fakeHost) register(c *Class) { h.classes[c.name] = c }

func (h *fakeHost) ResolveClass(name string) (*Class, bool) {
	c, ok := h.classes[name]
	return c, ok
}

func (h *fakeHost) OnClassCreated(c *Class) {}
func (h *fakeHost) OnClassModified(c *Class, kind ChangeKind, hint string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.modified = append(h.modified, kind)
}
func (h *fakeHost) OnClassDeleted(c *Class) {}

func (h *fakeHost) ReshapeInstances(c *Class) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.reshaped = append(h.reshaped, c.name)
	return nil
}

func (h *fakeHost) Diagnose(sev Severity, format string, args ...any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.diagnostics = append(h.diagnostics, format)
}

func (h *fakeHost) registrateAll(t *testing.T) {
	t.Helper()
	all := make([]*Class, 0, len(h.classes))
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

func mustAttr(t *testing.T, name string, kind value.Kind, rangeText, initText string) *Attribute {
	t.Helper()
	a, err := NewAttribute(name, "", kind, false, false, false, FormatDec, initText, rangeText)
	require.NoError(t, err)
	return a
}

type fakeObject struct {
	cls *Class
	id  string
}

func (o *fakeObject) ClassName() string { return o.cls.ClassName() }
func (o *fakeObject) ObjectID() string  { return o.id }

func TestClosureInheritanceBaseFirst(t *testing.T) {
	host := newFakeHost()
	base, err := NewClass("Base", "", false, nil, host)
	require.NoError(t, err)
	mid, err := NewClass("Mid", "", false, []string{"Base"}, host)
	require.NoError(t, err)
	leaf, err := NewClass("Leaf", "", false, []string{"Mid"}, host)
	require.NoError(t, err)
	host.register(base)
	host.register(mid)
	host.register(leaf)
	host.registrateAll(t)

	all := leaf.AllSuperClasses()
	require.Len(t, all, 2)
	assert.Equal(t, "Base", all[0].Name())
	assert.Equal(t, "Mid", all[1].Name())
}

func TestAllAttributesInheritedFirstDirectOverrides(t *testing.T) {
	host := newFakeHost()
	base, err := NewClass("Base", "", false, nil, host)
	require.NoError(t, err)
	host.register(base)

	xAttr := mustAttr(t, "x", value.KindU32, "", "")
	require.NoError(t, base.AddAttribute(xAttr))

	leaf, err := NewClass("Leaf", "", false, []string{"Base"}, host)
	require.NoError(t, err)
	host.register(leaf)
	host.registrateAll(t)

	yAttr := mustAttr(t, "y", value.KindU32, "", "")
	require.NoError(t, leaf.AddAttribute(yAttr))

	names := []string{}
	for _, a := range leaf.AllAttributes() {
		names = append(names, a.Name())
	}
	assert.Equal(t, []string{"x", "y"}, names)

	slot, ok := leaf.SlotOf("x")
	require.True(t, ok)
	assert.Equal(t, 0, slot.Index)
	slot, ok = leaf.SlotOf("y")
	require.True(t, ok)
	assert.Equal(t, 1, slot.Index)
	assert.Equal(t, 2, leaf.InstanceSize())
}

func TestCardinalityOverrideDiagnostic(t *testing.T) {
	host := newFakeHost()
	parent, err := NewClass("Parent", "", false, nil, host)
	require.NoError(t, err)
	host.register(parent)
	target, err := NewClass("Target", "", false, nil, host)
	require.NoError(t, err)
	host.register(target)

	baseRel, err := NewRelationship("kids", "", "Target", CardinalityZero, CardinalityOne, true, false, false, false)
	require.NoError(t, err)
	require.NoError(t, parent.AddRelationship(baseRel))

	child, err := NewClass("Child", "", false, []string{"Parent"}, host)
	require.NoError(t, err)
	host.register(child)
	host.registrateAll(t)

	overrideRel, err := NewRelationship("kids", "", "Target", CardinalityZero, CardinalityMany, true, false, false, false)
	require.NoError(t, err)
	require.NoError(t, child.AddRelationship(overrideRel))

	require.NotEmpty(t, host.diagnostics)

	slot, ok := child.SlotOf("kids")
	require.True(t, ok)
	assert.Equal(t, CardinalityMany, slot.Rel.HighCC())
}

func TestObjectRegistryUniqueness(t *testing.T) {
	host := newFakeHost()
	c, err := NewClass("A", "", false, nil, host)
	require.NoError(t, err)
	host.register(c)
	host.registrateAll(t)

	o1 := &fakeObject{cls: c, id: "a1"}
	require.NoError(t, c.AddObject(o1))
	o2 := &fakeObject{cls: c, id: "a1"}
	assert.Error(t, c.AddObject(o2))

	got, ok := c.GetObject("a1")
	require.True(t, ok)
	assert.Equal(t, "a1", got.ObjectID())

	c.RemoveObject("a1")
	_, ok = c.GetObject("a1")
	assert.False(t, ok)
}

func TestRelationshipAcceptsSubclassTarget(t *testing.T) {
	host := newFakeHost()
	target, err := NewClass("Target", "", false, nil, host)
	require.NoError(t, err)
	host.register(target)
	sub, err := NewClass("SubTarget", "", false, []string{"Target"}, host)
	require.NoError(t, err)
	host.register(sub)
	owner, err := NewClass("Owner", "", false, nil, host)
	require.NoError(t, err)
	host.register(owner)

	rel, err := NewRelationship("ref", "", "Target", CardinalityZero, CardinalityOne, false, false, false, false)
	require.NoError(t, err)
	require.NoError(t, owner.AddRelationship(rel))
	host.registrateAll(t)

	assert.True(t, rel.AcceptsTarget(target))
	assert.True(t, rel.AcceptsTarget(sub))
}
