package kernel

import (
	"io"

	"oks/internal/schema"
	"oks/internal/value"
	"oks/internal/xmlstream"
)

// ReadSchema parses an `oks-schema` document (spec §6 "File format
// (schema)") into a slice of un-registrated Classes plus the file Header.
// Classes are returned in document order and are not yet inserted into
// any Host's registry or RegistrateClass'd — the caller
// (Kernel.loadSchemaFiles) owns that sequencing, since super-class and relationship target names
// may forward-reference a class appearing later in the same file or in a
// sibling file.
func ReadSchema(src io.Reader, path string, host schema.Host) ([]*schema.Class, Header, error) {
	r := xmlstream.NewReader(src, path)
	root, err := r.NextStartTag()
	if err != nil {
		return nil, Header{}, err
	}
	if root != "oks-schema" {
		return nil, Header{}, r.Errf("expected <oks-schema>, got <%s>", root)
	}
	if _, _, err := readTagAttrs(r); err != nil {
		return nil, Header{}, err
	}

	h, err := readHeader(r)
	if err != nil {
		return nil, Header{}, err
	}

	var classes []*schema.Class
	for {
		name, end, err := r.NextChildOrEnd("oks-schema")
		if err != nil {
			return nil, Header{}, err
		}
		if end {
			return classes, h, nil
		}
		if name != "class" {
			return nil, Header{}, r.Errf("oks-schema: unexpected child <%s>", name)
		}
		c, err := readClass(r, host)
		if err != nil {
			return nil, Header{}, err
		}
		classes = append(classes, c)
	}
}

func readClass(r *xmlstream.Reader, host schema.Host) (*schema.Class, error) {
	attrs, selfClosed, err := readTagAttrs(r)
	if err != nil {
		return nil, err
	}
	abstract, err := parseBoolAttr(attrs, "is-abstract", false)
	if err != nil {
		return nil, err
	}

	var superNames []string
	c, err := schema.NewClass(attrs["name"], attrs["description"], abstract, nil, host)
	if err != nil {
		return nil, err
	}
	if selfClosed {
		return c, nil
	}

	for {
		name, end, err := r.NextChildOrEnd("class")
		if err != nil {
			return nil, err
		}
		if end {
			c.SetSuperClassesRaw(superNames)
			return c, nil
		}
		switch name {
		case "superclass":
			sAttrs, _, err := readTagAttrs(r)
			if err != nil {
				return nil, err
			}
			superNames = append(superNames, sAttrs["name"])
		case "attribute":
			a, err := readAttribute(r)
			if err != nil {
				return nil, err
			}
			if err := c.AddAttributeRaw(a); err != nil {
				return nil, err
			}
		case "relationship":
			rel, err := readRelationship(r)
			if err != nil {
				return nil, err
			}
			if err := c.AddRelationshipRaw(rel); err != nil {
				return nil, err
			}
		case "method":
			m, err := readMethod(r)
			if err != nil {
				return nil, err
			}
			if err := c.AddMethodRaw(m); err != nil {
				return nil, err
			}
		default:
			return nil, r.Errf("class %q: unexpected child <%s>", attrs["name"], name)
		}
	}
}

func readAttribute(r *xmlstream.Reader) (*schema.Attribute, error) {
	attrs, selfClosed, err := readTagAttrs(r)
	if err != nil {
		return nil, err
	}
	if !selfClosed {
		if err := skipChildren(r, "attribute"); err != nil {
			return nil, err
		}
	}
	kind, ok := value.ParseKind(attrs["type"])
	if !ok {
		return nil, r.Errf("attribute %q: unknown type %q", attrs["name"], attrs["type"])
	}
	format, err := schema.ParseNumberFormat(attrs["format"])
	if err != nil {
		return nil, err
	}
	multi, err := parseBoolAttr(attrs, "is-multi-value", false)
	if err != nil {
		return nil, err
	}
	noNull, err := parseBoolAttr(attrs, "is-not-null", false)
	if err != nil {
		return nil, err
	}
	ordered, err := parseBoolAttr(attrs, "ordered", false)
	if err != nil {
		return nil, err
	}
	return schema.NewAttribute(attrs["name"], attrs["description"], kind, multi, noNull, ordered, format,
		attrs["init-value"], attrs["range"])
}

func readRelationship(r *xmlstream.Reader) (*schema.Relationship, error) {
	attrs, selfClosed, err := readTagAttrs(r)
	if err != nil {
		return nil, err
	}
	if !selfClosed {
		if err := skipChildren(r, "relationship"); err != nil {
			return nil, err
		}
	}
	lowCC, err := schema.ParseLowCardinality(orDefault(attrs["low-cc"], "zero"))
	if err != nil {
		return nil, err
	}
	highCC, err := schema.ParseHighCardinality(orDefault(attrs["high-cc"], "one"))
	if err != nil {
		return nil, err
	}
	composite, err := parseBoolAttr(attrs, "is-composite", false)
	if err != nil {
		return nil, err
	}
	exclusive, err := parseBoolAttr(attrs, "is-exclusive", false)
	if err != nil {
		return nil, err
	}
	dependent, err := parseBoolAttr(attrs, "is-dependent", false)
	if err != nil {
		return nil, err
	}
	ordered, err := parseBoolAttr(attrs, "ordered", false)
	if err != nil {
		return nil, err
	}
	return schema.NewRelationship(attrs["name"], attrs["description"], attrs["class-type"],
		lowCC, highCC, composite, exclusive, dependent, ordered)
}

func readMethod(r *xmlstream.Reader) (*schema.Method, error) {
	attrs, selfClosed, err := readTagAttrs(r)
	if err != nil {
		return nil, err
	}
	var impls []schema.MethodImplementation
	if !selfClosed {
		for {
			name, end, err := r.NextChildOrEnd("method")
			if err != nil {
				return nil, err
			}
			if end {
				break
			}
			if name != "method-implementation" {
				return nil, r.Errf("method %q: unexpected child <%s>", attrs["name"], name)
			}
			implAttrs, implSelfClosed, err := readTagAttrs(r)
			if err != nil {
				return nil, err
			}
			if !implSelfClosed {
				if err := skipChildren(r, "method-implementation"); err != nil {
					return nil, err
				}
			}
			impls = append(impls, schema.MethodImplementation{
				Language:  implAttrs["language"],
				Prototype: implAttrs["prototype"],
				Body:      implAttrs["body"],
			})
		}
	}
	return schema.NewMethod(attrs["name"], attrs["description"], impls)
}

// skipChildren drains every remaining child of an already-open tag whose
// attribute set has been read in full, until its end tag is reached —
// used for grammar elements whose children this implementation does not
// interpret.
func skipChildren(r *xmlstream.Reader, parent string) error {
	for {
		_, end, err := r.NextChildOrEnd(parent)
		if err != nil {
			return err
		}
		if end {
			return nil
		}
		if _, _, err := readTagAttrs(r); err != nil {
			return err
		}
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// WriteSchema serializes classes (each by its direct, not inherited,
// members) into the `oks-schema` document shape (spec §6).
func WriteSchema(dst io.Writer, classes []*schema.Class, h Header) error {
	w := xmlstream.NewWriter(dst)
	w.PutStartTag("oks-schema")
	w.PutOpenClose()
	w.PutEOL()
	writeHeader(w, h)
	for _, c := range classes {
		writeClass(w, c)
	}
	w.PutEndTag("oks-schema")
	w.PutEOL()
	return w.Errf()
}

func writeClass(w *xmlstream.Writer, c *schema.Class) {
	w.PutIndent(1)
	w.PutStartTag("class")
	w.PutAttr("name", c.Name())
	w.PutAttr("description", c.Description())
	if c.Abstract() {
		w.PutAttr("is-abstract", "true")
	}
	w.PutOpenClose()
	w.PutEOL()
	for _, superName := range c.SuperClassNames() {
		w.PutIndent(2)
		w.PutStartTag("superclass")
		w.PutAttr("name", superName)
		w.PutLastTag()
		w.PutEOL()
	}
	for _, a := range c.DirectAttributes() {
		writeAttribute(w, a)
	}
	for _, rel := range c.DirectRelationships() {
		writeRelationship(w, rel)
	}
	for _, m := range c.DirectMethods() {
		writeMethod(w, m)
	}
	w.PutIndent(1)
	w.PutEndTag("class")
	w.PutEOL()
}

func writeAttribute(w *xmlstream.Writer, a *schema.Attribute) {
	w.PutIndent(2)
	w.PutStartTag("attribute")
	w.PutAttr("name", a.Name())
	w.PutAttr("description", a.Description())
	w.PutAttr("type", a.Kind().String())
	w.PutAttr("range", a.RangeText())
	if !a.MultiValued() && !a.InitValue().Equal(a.EmptyValue()) {
		w.PutAttr("init-value", renderScalar(a, a.InitValue()))
	}
	w.PutAttr("format", a.Format().String())
	if a.MultiValued() {
		w.PutAttr("is-multi-value", "true")
	}
	if a.NoNull() {
		w.PutAttr("is-not-null", "true")
	}
	if a.Ordered() {
		w.PutAttr("ordered", "true")
	}
	w.PutLastTag()
	w.PutEOL()
}

func writeRelationship(w *xmlstream.Writer, r *schema.Relationship) {
	w.PutIndent(2)
	w.PutStartTag("relationship")
	w.PutAttr("name", r.Name())
	w.PutAttr("description", r.Description())
	w.PutAttr("class-type", r.TargetClassName())
	w.PutAttr("low-cc", lowCCName(r.LowCC()))
	w.PutAttr("high-cc", highCCName(r.HighCC()))
	if r.Composite() {
		w.PutAttr("is-composite", "true")
	}
	if r.Exclusive() {
		w.PutAttr("is-exclusive", "true")
	}
	if r.Dependent() {
		w.PutAttr("is-dependent", "true")
	}
	if r.Ordered() {
		w.PutAttr("ordered", "true")
	}
	w.PutLastTag()
	w.PutEOL()
}

func lowCCName(c schema.Cardinality) string {
	if c == schema.CardinalityOne {
		return "one"
	}
	return "zero"
}

func highCCName(c schema.Cardinality) string {
	if c == schema.CardinalityMany {
		return "many"
	}
	return "one"
}

func writeMethod(w *xmlstream.Writer, m *schema.Method) {
	w.PutIndent(2)
	w.PutStartTag("method")
	w.PutAttr("name", m.Name())
	w.PutAttr("description", m.Description())
	impls := m.Implementations()
	if len(impls) == 0 {
		w.PutLastTag()
		w.PutEOL()
		return
	}
	w.PutOpenClose()
	w.PutEOL()
	for _, impl := range impls {
		w.PutIndent(3)
		w.PutStartTag("method-implementation")
		w.PutAttr("language", impl.Language)
		w.PutAttr("prototype", impl.Prototype)
		w.PutAttr("body", impl.Body)
		w.PutLastTag()
		w.PutEOL()
	}
	w.PutIndent(2)
	w.PutEndTag("method")
	w.PutEOL()
}
