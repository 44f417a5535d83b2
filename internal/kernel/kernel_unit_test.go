package kernel

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"oks/internal/object"
)

// Load of a path that resolves to nothing produces an error, not a panic
// or a silent no-op (spec §4.6 "get_file_path" failure lists every path
// tried).
func TestLoad_MissingFileReturnsError(t *testing.T) {
	k := newTestKernel(t)
	err := k.Load([]string{filepath.Join(t.TempDir(), "does-not-exist.schema.xml")})
	require.Error(t, err)
}

// A class name declared in two loaded schema files is rejected by
// default, and the second file's registration never lands.
func TestLoad_DuplicateClassRejectedByDefault(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.schema.xml", `<oks-schema>
  `+headerTag+`
  <class name="Dup"/>
</oks-schema>
`)
	b := writeFile(t, dir, "b.schema.xml", `<oks-schema>
  `+headerTag+`
  <class name="Dup"/>
</oks-schema>
`)

	k := newTestKernel(t)
	err := k.Load([]string{a, b})
	require.Error(t, err)
}

// The same duplicate-class scenario succeeds, with the second
// declaration winning, once AllowDuplicateClass is set (spec §6 "schema
// duplicate-class allowance").
func TestLoad_DuplicateClassAllowedWhenConfigured(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.schema.xml", `<oks-schema>
  `+headerTag+`
  <class name="Dup">
    <attribute name="only_in_a" type="u32" init-value="1"/>
  </class>
</oks-schema>
`)
	b := writeFile(t, dir, "b.schema.xml", `<oks-schema>
  `+headerTag+`
  <class name="Dup"/>
</oks-schema>
`)

	k := NewKernel(Settings{PoolSize: 1, AllowDuplicateClass: true}, nil)
	require.NoError(t, k.Load([]string{a, b}))

	cls, ok := k.ResolveClass("Dup")
	require.True(t, ok)
	_, hasA := cls.SlotOf("only_in_a")
	require.False(t, hasA, "second declaration should have replaced the first")
}

// With a repository root and strict-paths on, a file outside the root is
// rejected even though it exists on disk (spec §6 "repository root").
func TestLoad_StrictPathsRejectsOutsideRepoRoot(t *testing.T) {
	repo := t.TempDir()
	outside := t.TempDir()

	schemaPath := writeFile(t, outside, "g.schema.xml", `<oks-schema>
  `+headerTag+`
  <class name="G"/>
</oks-schema>
`)

	k := NewKernel(Settings{PoolSize: 1, RepoRoot: repo, StrictPaths: true}, nil)
	err := k.Load([]string{schemaPath})
	require.Error(t, err)
}

// A required (low-cc one) relationship left unresolved after the bind
// pass is a fatal error; the same dangling reference on a zero-or-one
// relationship is merely a warning and Load succeeds.
func TestLoad_BindSeverityFollowsLowCardinality(t *testing.T) {
	dir := t.TempDir()
	schemaPath := writeFile(t, dir, "h.schema.xml", `<oks-schema>
  `+headerTag+`
  <class name="Target"/>
  <class name="Required">
    <relationship name="must" class-type="Target" low-cc="one" high-cc="one"/>
  </class>
  <class name="Optional">
    <relationship name="maybe" class-type="Target" low-cc="zero" high-cc="one"/>
  </class>
</oks-schema>
`)

	optionalDataPath := writeFile(t, dir, "optional.data.xml", `<oks-data>
  `+headerTag+`
  <obj class="Optional" id="o1">
    <rel name="maybe" class="Target" id="missing"/>
  </obj>
</oks-data>
`)
	k1 := newTestKernel(t)
	require.NoError(t, k1.Load([]string{schemaPath, optionalDataPath}))

	requiredDataPath := writeFile(t, dir, "required.data.xml", `<oks-data>
  `+headerTag+`
  <obj class="Required" id="r1">
    <rel name="must" class="Target" id="missing"/>
  </obj>
</oks-data>
`)
	k2 := newTestKernel(t)
	err := k2.Load([]string{schemaPath, requiredDataPath})
	require.Error(t, err)
}

// ReloadData refuses to reload a schema file or a path that was never
// loaded as a data file (spec §4.6 "Reload" applies to data files only).
func TestReloadData_RejectsNonDataFile(t *testing.T) {
	dir := t.TempDir()
	schemaPath := writeFile(t, dir, "i.schema.xml", `<oks-schema>
  `+headerTag+`
  <class name="Plain"/>
</oks-schema>
`)

	k := newTestKernel(t)
	require.NoError(t, k.Load([]string{schemaPath}))

	require.Error(t, k.ReloadData([]string{schemaPath}))
	require.Error(t, k.ReloadData([]string{filepath.Join(dir, "never-loaded.data.xml")}))
}

// A duplicate object id parsed within a single load batch fails the load
// by default, and is tolerated (with a renamed id) once
// AllowDuplicateObjectID is set (spec §6 "object duplicate-id
// allowance").
func TestLoad_DuplicateObjectIDHonorsSetting(t *testing.T) {
	dir := t.TempDir()
	schemaPath := writeFile(t, dir, "j.schema.xml", `<oks-schema>
  `+headerTag+`
  <class name="Thing"/>
</oks-schema>
`)
	dataPath := writeFile(t, dir, "j.data.xml", `<oks-data>
  `+headerTag+`
  <obj class="Thing" id="same"/>
</oks-data>
`)

	k := newTestKernel(t)
	require.NoError(t, k.Load([]string{schemaPath}))
	thingCls, ok := k.ResolveClass("Thing")
	require.True(t, ok)
	_, err := object.New(thingCls, "same", k, nil)
	require.NoError(t, err)

	err = k.Load([]string{dataPath})
	require.Error(t, err)

	k2 := NewKernel(Settings{PoolSize: 1, AllowDuplicateObjectID: true}, nil)
	require.NoError(t, k2.Load([]string{schemaPath}))
	thingCls2, ok := k2.ResolveClass("Thing")
	require.True(t, ok)
	_, err = object.New(thingCls2, "same", k2, nil)
	require.NoError(t, err)

	require.NoError(t, k2.Load([]string{dataPath}))
	objs := thingCls2.Objects()
	require.Len(t, objs, 2)
}

// SaveSchemaAs/SaveDataAs rewrite only the target file's own classes and
// objects, leaving every other loaded file untouched (spec §4.6
// "save_as").
func TestSaveAs_OnlyTouchesTargetFile(t *testing.T) {
	dir := t.TempDir()
	schemaA := writeFile(t, dir, "k1.schema.xml", `<oks-schema>
  `+headerTag+`
  <class name="FromA"/>
</oks-schema>
`)
	schemaB := writeFile(t, dir, "k2.schema.xml", `<oks-schema>
  `+headerTag+`
  <class name="FromB"/>
</oks-schema>
`)

	k := newTestKernel(t)
	require.NoError(t, k.Load([]string{schemaA, schemaB}))

	renamedPath := filepath.Join(dir, "k1-renamed.schema.xml")
	require.NoError(t, k.SaveSchemaAs(schemaA, renamedPath))

	raw, err := os.ReadFile(renamedPath)
	require.NoError(t, err)
	require.Contains(t, string(raw), `name="FromA"`)
	require.NotContains(t, string(raw), `name="FromB"`)

	_, err = os.Stat(schemaA)
	require.True(t, os.IsNotExist(err), "save_as should have moved the file, not copied it")

	rawB, err := os.ReadFile(schemaB)
	require.NoError(t, err)
	require.Contains(t, string(rawB), `name="FromB"`)
}
