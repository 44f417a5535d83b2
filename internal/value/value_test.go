package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClass struct{ name string }

func (c *fakeClass) ClassName() string { return c.name }

type fakeObject struct {
	cls *fakeClass
	id  string
}

func (o *fakeObject) ClassName() string { return o.cls.ClassName() }
func (o *fakeObject) ObjectID() string  { return o.id }

func TestDataEqualPrimitives(t *testing.T) {
	assert.True(t, Int(KindI32, 5).Equal(Int(KindI32, 5)))
	assert.False(t, Int(KindI32, 5).Equal(Int(KindI32, 6)))
	assert.True(t, String("a").Equal(String("a")))
	assert.False(t, String("a").Equal(String("b")))
	assert.True(t, NullRef().Equal(NullRef()))
}

func TestDataEqualReferencesAcrossShapes(t *testing.T) {
	geo := &fakeClass{name: "Geometry"}
	obj := &fakeObject{cls: geo, id: "det-1"}

	resolved := Resolved(obj)
	semi := SemiResolved(geo, "det-1")
	unresolved := Unresolved("Geometry", "det-1")

	assert.True(t, resolved.Equal(semi))
	assert.True(t, semi.Equal(unresolved))
	assert.True(t, resolved.Equal(unresolved))

	other := Unresolved("Geometry", "det-2")
	assert.False(t, resolved.Equal(other))
}

func TestDataListEqual(t *testing.T) {
	a := List([]Data{Int(KindI32, 1), Int(KindI32, 2)})
	b := List([]Data{Int(KindI32, 1), Int(KindI32, 2)})
	c := List([]Data{Int(KindI32, 1), Int(KindI32, 3)})
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
}

func TestRangeEqualSet(t *testing.T) {
	rg, err := CompileRange(KindI32, "1,2,5")
	require.NoError(t, err)
	assert.NoError(t, rg.Validate(Int(KindI32, 2)))
	assert.Error(t, rg.Validate(Int(KindI32, 3)))
}

func TestRangeInterval(t *testing.T) {
	rg, err := CompileRange(KindU32, "1..10,20..30")
	require.NoError(t, err)
	assert.NoError(t, rg.Validate(Uint(KindU32, 5)))
	assert.NoError(t, rg.Validate(Uint(KindU32, 25)))
	assert.Error(t, rg.Validate(Uint(KindU32, 15)))
}

func TestRangeLessGreaterEqual(t *testing.T) {
	rg, err := CompileRange(KindFloat64, "<=0.0,>=100.0")
	require.NoError(t, err)
	assert.NoError(t, rg.Validate(Float64V(-5)))
	assert.NoError(t, rg.Validate(Float64V(150)))
	assert.Error(t, rg.Validate(Float64V(50)))
}

func TestRangeStringRegex(t *testing.T) {
	rg, err := CompileRange(KindString, `^[a-z]+$,^[A-Z]+$`)
	require.NoError(t, err)
	assert.NoError(t, rg.Validate(String("abc")))
	assert.NoError(t, rg.Validate(String("ABC")))
	assert.Error(t, rg.Validate(String("abc123")))
}

func TestRangeEmptyIsPermissive(t *testing.T) {
	rg, err := CompileRange(KindI32, "")
	require.NoError(t, err)
	assert.True(t, rg.IsEmpty())
	assert.NoError(t, rg.Validate(Int(KindI32, -999)))
}
