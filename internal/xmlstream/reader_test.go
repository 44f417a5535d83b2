package xmlstream

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReaderStartTagAndAttrs(t *testing.T) {
	src := `<class name="A" is-abstract="false">
  <attribute name="x" type="u32" range="1..10" init-value="5"/>
</class>`
	r := NewReader(strings.NewReader(src), "test.xml")

	tag, err := r.NextStartTag()
	require.NoError(t, err)
	assert.Equal(t, "class", tag)

	name, val, err := r.NextAttr()
	require.NoError(t, err)
	assert.Equal(t, "name", name)
	assert.Equal(t, "A", val)

	name, val, err = r.NextAttr()
	require.NoError(t, err)
	assert.Equal(t, "is-abstract", name)
	assert.Equal(t, "false", val)

	name, _, err = r.NextAttr()
	require.NoError(t, err)
	assert.Equal(t, CloseAttr, name)

	tag, err = r.NextStartTag()
	require.NoError(t, err)
	assert.Equal(t, "attribute", tag)

	for _, want := range [][2]string{
		{"name", "x"}, {"type", "u32"}, {"range", "1..10"}, {"init-value", "5"},
	} {
		n, v, err := r.NextAttr()
		require.NoError(t, err)
		assert.Equal(t, want[0], n)
		assert.Equal(t, want[1], v)
	}
	n, _, err := r.NextAttr()
	require.NoError(t, err)
	assert.Equal(t, SelfCloseAttr, n)

	require.NoError(t, r.NextEndTag("class"))
}

func TestReaderEntityEscaping(t *testing.T) {
	r := NewReader(strings.NewReader(`"a &amp; b &lt;c&gt;"`), "test.xml")
	v, err := r.ReadQuoted()
	require.NoError(t, err)
	assert.Equal(t, `a & b <c>`, v)
}

func TestReaderLineColumn(t *testing.T) {
	r := NewReader(strings.NewReader("<a>\n<b>"), "t.xml")
	_, err := r.NextStartTag()
	require.NoError(t, err)
	n, _, err := r.NextAttr()
	require.NoError(t, err)
	require.Equal(t, CloseAttr, n)
	assert.Equal(t, 1, r.Line())

	_, err = r.NextStartTag()
	require.NoError(t, err)
	assert.Equal(t, 2, r.Line())
}

func TestReaderMalformedTagReportsPosition(t *testing.T) {
	r := NewReader(strings.NewReader("not-xml"), "bad.xml")
	_, err := r.NextStartTag()
	require.Error(t, err)
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "bad.xml", pe.File)
}

func TestWriterRoundTrip(t *testing.T) {
	var sb strings.Builder
	w := NewWriter(&sb)
	w.PutStartTag("attribute")
	w.PutAttr("name", `a "quoted" & <tricky> value`)
	w.PutLastTag()
	require.NoError(t, w.Err())

	got := sb.String()
	assert.Contains(t, got, "&quot;")
	assert.Contains(t, got, "&amp;")
	assert.Contains(t, got, "&lt;")
	assert.Contains(t, got, "&gt;")

	r := NewReader(strings.NewReader(got), "rt.xml")
	tag, err := r.NextStartTag()
	require.NoError(t, err)
	assert.Equal(t, "attribute", tag)
	_, v, err := r.NextAttr()
	require.NoError(t, err)
	assert.Equal(t, `a "quoted" & <tricky> value`, v)
}
