package kernel

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"oks/internal/file"
	"oks/internal/object"
	"oks/internal/value"
)

func fileOpenForTest(path string) (*file.File, error) {
	return file.Open(filepath.Base(path), path, file.FormatData)
}

func newTestKernel(t *testing.T) *Kernel {
	t.Helper()
	return NewKernel(Settings{PoolSize: 1}, nil)
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const headerTag = `<header author="t" host="h" created="20240101T000000" type="" logical-name="" format="" item-count="0"/>`

// Scenario 1 (spec §8): range-validated attribute with an init value.
func TestScenario1_AttributeRangeAndInit(t *testing.T) {
	dir := t.TempDir()
	schemaPath := writeFile(t, dir, "a.schema.xml", `<oks-schema>
  `+headerTag+`
  <class name="A">
    <attribute name="x" type="u32" init-value="5" range="1..10"/>
  </class>
</oks-schema>
`)

	k := newTestKernel(t)
	require.NoError(t, k.Load([]string{schemaPath}))

	cls, ok := k.ResolveClass("A")
	require.True(t, ok)

	o, err := object.New(cls, "a1", k, nil)
	require.NoError(t, err)

	v, err := o.Get("x")
	require.NoError(t, err)
	require.Equal(t, uint64(5), v.Uint())

	err = o.Set("x", value.Uint(value.KindU32, 11))
	require.Error(t, err)

	require.NoError(t, o.Set("x", value.Uint(value.KindU32, 10)))
	v, err = o.Get("x")
	require.NoError(t, err)
	require.Equal(t, uint64(10), v.Uint())
}

// Scenario 2 (spec §8): composite-many round-trip through save+reload.
func TestScenario2_CompositeManySaveReload(t *testing.T) {
	dir := t.TempDir()
	schemaPath := writeFile(t, dir, "b.schema.xml", `<oks-schema>
  `+headerTag+`
  <class name="Child"/>
  <class name="Parent">
    <relationship name="kids" class-type="Child" low-cc="zero" high-cc="many" is-composite="true"/>
  </class>
</oks-schema>
`)

	k := newTestKernel(t)
	require.NoError(t, k.Load([]string{schemaPath}))

	parentCls, _ := k.ResolveClass("Parent")
	childCls, _ := k.ResolveClass("Child")

	dataPath := filepath.Join(dir, "b.data.xml")
	f, err := fileOpenForTest(dataPath)
	require.NoError(t, err)

	p, err := object.New(parentCls, "p", k, f)
	require.NoError(t, err)
	c1, err := object.New(childCls, "c1", k, f)
	require.NoError(t, err)
	c2, err := object.New(childCls, "c2", k, f)
	require.NoError(t, err)

	require.NoError(t, p.AddRef("kids", c1))
	require.NoError(t, p.AddRef("kids", c2))

	// Register the data file so SaveAllData/Load see it.
	k.objectsMu.Lock()
	k.dataFiles[dataPath] = f
	k.objectsMu.Unlock()

	require.NoError(t, k.SaveAllSchema())
	require.NoError(t, k.SaveAllData())

	k2 := newTestKernel(t)
	require.NoError(t, k2.Load([]string{schemaPath, dataPath}))

	parentCls2, _ := k2.ResolveClass("Parent")
	handle, ok := parentCls2.GetObject("p")
	require.True(t, ok)
	p2 := handle.(*object.Object)

	kids, err := p2.RefList("kids")
	require.NoError(t, err)
	require.Len(t, kids, 2)
	require.Equal(t, "c1", kids[0].ID())
	require.Equal(t, "c2", kids[1].ID())

	for _, kid := range kids {
		rcrs := kid.RCRs()
		require.Len(t, rcrs, 1)
		require.Equal(t, "p", rcrs[0].Parent.ID())
		require.Equal(t, "kids", rcrs[0].Relationship.Name())
	}
}

// Scenario 3 (spec §8): a composite-exclusive relationship rejects a
// second owner, leaving the first attachment unchanged.
func TestScenario3_ExclusiveCompositeRejectsSecondOwner(t *testing.T) {
	dir := t.TempDir()
	schemaPath := writeFile(t, dir, "c.schema.xml", `<oks-schema>
  `+headerTag+`
  <class name="Child"/>
  <class name="Parent">
    <relationship name="owned" class-type="Child" low-cc="zero" high-cc="one" is-composite="true" is-exclusive="true"/>
  </class>
</oks-schema>
`)

	k := newTestKernel(t)
	require.NoError(t, k.Load([]string{schemaPath}))

	parentCls, _ := k.ResolveClass("Parent")
	childCls, _ := k.ResolveClass("Child")

	p1, err := object.New(parentCls, "p1", k, nil)
	require.NoError(t, err)
	p2, err := object.New(parentCls, "p2", k, nil)
	require.NoError(t, err)
	child, err := object.New(childCls, "child", k, nil)
	require.NoError(t, err)

	require.NoError(t, p1.SetRef("owned", child))
	require.Error(t, p2.SetRef("owned", child))

	ref, err := p1.Ref("owned")
	require.NoError(t, err)
	require.Equal(t, "child", ref.ID())

	ref2, err := p2.Ref("owned")
	require.NoError(t, err)
	require.Nil(t, ref2)
}

// Scenario 4 (spec §8): destroying the sole composite-dependent owner
// cascades to the child.
func TestScenario4_DependentCascadeDestroy(t *testing.T) {
	dir := t.TempDir()
	schemaPath := writeFile(t, dir, "d.schema.xml", `<oks-schema>
  `+headerTag+`
  <class name="Child"/>
  <class name="Parent">
    <relationship name="owned" class-type="Child" low-cc="zero" high-cc="one" is-composite="true" is-dependent="true"/>
  </class>
</oks-schema>
`)

	k := newTestKernel(t)
	require.NoError(t, k.Load([]string{schemaPath}))

	parentCls, _ := k.ResolveClass("Parent")
	childCls, _ := k.ResolveClass("Child")

	p, err := object.New(parentCls, "p", k, nil)
	require.NoError(t, err)
	child, err := object.New(childCls, "child", k, nil)
	require.NoError(t, err)
	require.NoError(t, p.SetRef("owned", child))

	p.Destroy()

	_, found := childCls.GetObject("child")
	require.False(t, found)
}

// Scenario 5 (spec §8): a reference into a not-yet-included file resolves
// only after a reload adds the missing include.
func TestScenario5_DeferredBindThenReloadResolves(t *testing.T) {
	dir := t.TempDir()
	schemaPath := writeFile(t, dir, "e.schema.xml", `<oks-schema>
  `+headerTag+`
  <class name="Widget"/>
  <class name="Gadget">
    <relationship name="partner" class-type="Widget" low-cc="zero" high-cc="one"/>
  </class>
</oks-schema>
`)
	widgetsPath := writeFile(t, dir, "widgets.data.xml", `<oks-data>
  `+headerTag+`
  <obj class="Widget" id="w1"/>
</oks-data>
`)
	gadgetsPath := filepath.Join(dir, "gadgets.data.xml")
	writeGadgetsFile(t, gadgetsPath, nil)

	k := newTestKernel(t)
	require.NoError(t, k.Load([]string{schemaPath, gadgetsPath}))

	gadgetCls, _ := k.ResolveClass("Gadget")
	handle, ok := gadgetCls.GetObject("g1")
	require.True(t, ok)
	g1 := handle.(*object.Object)

	ref, err := g1.Ref("partner")
	require.NoError(t, err)
	require.Nil(t, ref)

	writeGadgetsFile(t, gadgetsPath, []string{"widgets.data.xml"})
	require.NoError(t, k.ReloadData([]string{gadgetsPath}))

	ref, err = g1.Ref("partner")
	require.NoError(t, err)
	require.NotNil(t, ref)
	require.Equal(t, "w1", ref.ID())
}

func writeGadgetsFile(t *testing.T, path string, includes []string) {
	t.Helper()
	inc := ""
	if len(includes) > 0 {
		inc = "\n    <include><file path=\"" + includes[0] + "\"/></include>"
	}
	header := `<header author="t" host="h" created="20240101T000000" type="" logical-name="" format="" item-count="0">` + inc + `
  </header>`
	if len(includes) == 0 {
		header = headerTag
	}
	content := `<oks-data>
  ` + header + `
  <obj class="Gadget" id="g1">
    <rel name="partner" class="Widget" id="w1"/>
  </obj>
</oks-data>
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// Scenario 6 (spec §8): date attributes round-trip through ISO basic form.
func TestScenario6_DateRoundTrip(t *testing.T) {
	dir := t.TempDir()
	schemaPath := writeFile(t, dir, "f.schema.xml", `<oks-schema>
  `+headerTag+`
  <class name="Event">
    <attribute name="d" type="date" init-value="20240131"/>
  </class>
</oks-schema>
`)

	k := newTestKernel(t)
	require.NoError(t, k.Load([]string{schemaPath}))

	cls, _ := k.ResolveClass("Event")
	dataPath := filepath.Join(dir, "f.data.xml")
	f, err := fileOpenForTest(dataPath)
	require.NoError(t, err)

	o, err := object.New(cls, "e1", k, f)
	require.NoError(t, err)
	original, err := o.Get("d")
	require.NoError(t, err)

	k.objectsMu.Lock()
	k.dataFiles[dataPath] = f
	k.objectsMu.Unlock()
	require.NoError(t, k.SaveAllSchema())
	require.NoError(t, k.SaveAllData())

	raw, err := os.ReadFile(dataPath)
	require.NoError(t, err)
	require.Contains(t, string(raw), `val="20240131"`)

	k2 := newTestKernel(t)
	require.NoError(t, k2.Load([]string{schemaPath, dataPath}))
	cls2, _ := k2.ResolveClass("Event")
	handle, ok := cls2.GetObject("e1")
	require.True(t, ok)
	o2 := handle.(*object.Object)
	reloaded, err := o2.Get("d")
	require.NoError(t, err)
	require.True(t, original.Equal(reloaded))
}
