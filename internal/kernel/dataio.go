package kernel

import (
	"fmt"
	"io"
	"strconv"

	"oks/internal/object"
	"oks/internal/okserr"
	"oks/internal/schema"
	"oks/internal/value"
	"oks/internal/xmlstream"
)

// ReadData parses an `oks-data` document in the "normal" format (spec §6
// "File format (data, normal)") into a slice of live Objects plus the
// file Header. Every relationship slot is populated as an Unresolved
// reference regardless of whether its target happens to already be
// registered: spec §4.6 "Load" resolves references uniformly in the
// bind_objects pass once every file in the load batch has parsed, rather
// than opportunistically at parse time, so parse order never changes the
// outcome. The "compact" and "extended" data formats (spec §6) are not
// implemented; see DESIGN.md for that scope decision.
func ReadData(src io.Reader, path string, resolver schema.ClassResolver, host object.Host, f schema.FileWriteLocker) ([]*object.Object, Header, error) {
	created, _, h, err := readDataCommon(src, path, resolver, host, f, nil)
	return created, h, err
}

// reuseFunc looks an already-live Object up by (class, id) for
// ReadDataReload's in-place re-parse step; the bool reports a hit.
type reuseFunc func(className, id string) (*object.Object, bool)

// ReadDataReload mirrors ReadData for Kernel.ReloadData (spec §4.6
// "Reload" step 5, "stream the objects: if (class, id) is in the
// candidate map, locate the existing Object, clear its slots, re-parse
// in place ... otherwise construct a new Object"). reuse is consulted for
// every <obj>; a hit clears and refills that Object's slots in place, so
// any live reference elsewhere that already points at it keeps pointing
// at current data instead of going stale. created holds objects that did
// not match reuse; reparsed holds objects that did.
func ReadDataReload(src io.Reader, path string, resolver schema.ClassResolver, host object.Host, f schema.FileWriteLocker, reuse reuseFunc) (created, reparsed []*object.Object, header Header, err error) {
	return readDataCommon(src, path, resolver, host, f, reuse)
}

func readDataCommon(src io.Reader, path string, resolver schema.ClassResolver, host object.Host, f schema.FileWriteLocker, reuse reuseFunc) (created, reparsed []*object.Object, header Header, err error) {
	r := xmlstream.NewReader(src, path)
	root, err := r.NextStartTag()
	if err != nil {
		return nil, nil, Header{}, err
	}
	if root != "oks-data" {
		return nil, nil, Header{}, r.Errf("expected <oks-data>, got <%s>", root)
	}
	if _, _, err := readTagAttrs(r); err != nil {
		return nil, nil, Header{}, err
	}

	h, err := readHeader(r)
	if err != nil {
		return nil, nil, Header{}, err
	}

	for {
		name, end, err := r.NextChildOrEnd("oks-data")
		if err != nil {
			return nil, nil, Header{}, err
		}
		if end {
			return created, reparsed, h, nil
		}
		if name != "obj" {
			return nil, nil, Header{}, r.Errf("oks-data: unexpected child <%s>", name)
		}
		o, wasNew, err := readObject(r, resolver, host, f, reuse)
		if err != nil {
			return nil, nil, Header{}, err
		}
		if wasNew {
			created = append(created, o)
		} else {
			reparsed = append(reparsed, o)
		}
	}
}

func readObject(r *xmlstream.Reader, resolver schema.ClassResolver, host object.Host, f schema.FileWriteLocker, reuse reuseFunc) (*object.Object, bool, error) {
	attrs, selfClosed, err := readTagAttrs(r)
	if err != nil {
		return nil, false, err
	}
	className, id := attrs["class"], attrs["id"]
	cls, ok := resolver.ResolveClass(className)
	if !ok {
		return nil, false, &okserr.SchemaError{Class: className, Reason: fmt.Sprintf("object %q: unresolvable class", id)}
	}

	var o *object.Object
	wasNew := true
	if reuse != nil {
		if existing, found := reuse(className, id); found {
			existing.ResetForReparse(cls)
			existing.SetFile(f)
			o, wasNew = existing, false
		}
	}
	if o == nil {
		renameOnCollision := id != "" && cls.HasID(id) && host.AllowDuplicateObjectID()
		dupID := id
		if renameOnCollision {
			id = ""
		}
		o, err = object.NewBare(cls, id, host, f)
		if err != nil {
			return nil, false, err
		}
		if renameOnCollision {
			host.Diagnose(schema.SeverityWarning, "object %s/%s: duplicate id, renamed to %s/%s", className, dupID, className, o.ID())
		}
	}

	if selfClosed {
		finishParsedObject(o, f, wasNew)
		return o, wasNew, nil
	}
	for {
		name, end, err := r.NextChildOrEnd("obj")
		if err != nil {
			return nil, false, err
		}
		if end {
			finishParsedObject(o, f, wasNew)
			return o, wasNew, nil
		}
		switch name {
		case "attr":
			if err := readAttrValue(r, cls, o, host, resolver); err != nil {
				return nil, false, err
			}
		case "rel":
			if err := readRelValue(r, cls, o, host); err != nil {
				return nil, false, err
			}
		default:
			return nil, false, r.Errf("object %s/%s: unexpected child <%s>", className, id, name)
		}
	}
}

// finishParsedObject fires the create-notify for a freshly constructed
// object, or just marks the file updated for one reparsed in place — the
// reload caller fires change-notify once, after RCR bookkeeping and
// binding have both settled, rather than per-object here.
func finishParsedObject(o *object.Object, f schema.FileWriteLocker, wasNew bool) {
	if wasNew {
		o.Finalize()
		return
	}
	f.MarkUpdated()
}

func readAttrValue(r *xmlstream.Reader, cls *schema.Class, o *object.Object, host object.Host, resolver schema.ClassResolver) error {
	tagAttrs, selfClosed, err := readTagAttrs(r)
	if err != nil {
		return err
	}
	name, typeText := tagAttrs["name"], tagAttrs["type"]
	valText, hasVal := tagAttrs["val"]

	slot, ok := cls.SlotOf(name)
	if !ok || slot.Attr == nil {
		if !selfClosed {
			if err := skipValueList(r, "attr", "data"); err != nil {
				return err
			}
		}
		if host != nil {
			host.Diagnose(schema.SeverityWarning, "object %s/%s: discarding unknown attribute %q", cls.Name(), o.ID(), name)
		}
		return nil
	}
	attr := slot.Attr

	if attr.MultiValued() {
		var items []value.Data
		if !selfClosed {
			for {
				childName, end, err := r.NextChildOrEnd("attr")
				if err != nil {
					return err
				}
				if end {
					break
				}
				if childName != "data" {
					return r.Errf("attribute %q: unexpected child <%s>", name, childName)
				}
				dAttrs, _, err := readTagAttrs(r)
				if err != nil {
					return err
				}
				d, err := parseScalarOrClassValue(attr, dAttrs["type"], dAttrs["val"], resolver)
				if err != nil {
					return &okserr.ValueError{Attribute: name, Reason: err.Error()}
				}
				items = append(items, d)
			}
		}
		o.SetSlotByIndex(slot.Index, value.List(items))
		return nil
	}

	if !selfClosed {
		if err := skipChildren(r, "attr"); err != nil {
			return err
		}
	}
	if !hasVal {
		o.SetSlotByIndex(slot.Index, attr.EmptyValue())
		return nil
	}
	d, err := parseScalarOrClassValue(attr, typeText, valText, resolver)
	if err != nil {
		return &okserr.ValueError{Attribute: name, Reason: err.Error()}
	}
	o.SetSlotByIndex(slot.Index, d)
	return nil
}

// parseScalarOrClassValue dispatches a `class`-kind attribute (whose
// literal names a schema Class, not a scalar) to resolver, and everything
// else to parseAttrValue.
func parseScalarOrClassValue(attr *schema.Attribute, typeText, valText string, resolver schema.ClassResolver) (value.Data, error) {
	if attr.Kind() == value.KindClass {
		if valText == "" {
			return value.Data{Kind: value.KindClass}, nil
		}
		target, ok := resolver.ResolveClass(valText)
		if !ok {
			return value.Data{}, fmt.Errorf("unresolvable class %q", valText)
		}
		return value.Class(target), nil
	}
	return parseAttrValue(attr, typeText, valText)
}

// parseAttrValue parses valText against typeText if given (spec §6 "A
// type omitted or `-` means take schema default"), converting through
// schema.Convert when the parsed literal's kind differs from attr's
// declared kind (spec §4.4 "mismatched type causes the parser to
// construct a temporary scratch Attribute and convert through Value.cvt").
func parseAttrValue(attr *schema.Attribute, typeText, valText string) (value.Data, error) {
	kind := attr.Kind()
	if typeText != "" && typeText != "-" {
		if k, ok := value.ParseKind(typeText); ok {
			kind = k
		}
	}
	raw, err := schema.ParseLiteral(kind, valText, attr.Enumerators())
	if err != nil {
		return value.Data{}, err
	}
	if kind != attr.Kind() {
		return schema.Convert(raw, attr)
	}
	return raw, nil
}

func readRelValue(r *xmlstream.Reader, cls *schema.Class, o *object.Object, host object.Host) error {
	tagAttrs, selfClosed, err := readTagAttrs(r)
	if err != nil {
		return err
	}
	name := tagAttrs["name"]
	slot, ok := cls.SlotOf(name)
	if !ok || slot.Rel == nil {
		if !selfClosed {
			if err := skipValueList(r, "rel", "ref"); err != nil {
				return err
			}
		}
		if host != nil {
			host.Diagnose(schema.SeverityWarning, "object %s/%s: discarding unknown relationship %q", cls.Name(), o.ID(), name)
		}
		return nil
	}
	rel := slot.Rel

	if rel.HighCC() == schema.CardinalityMany {
		var items []value.Data
		if !selfClosed {
			for {
				childName, end, err := r.NextChildOrEnd("rel")
				if err != nil {
					return err
				}
				if end {
					break
				}
				if childName != "ref" {
					return r.Errf("relationship %q: unexpected child <%s>", name, childName)
				}
				refAttrs, _, err := readTagAttrs(r)
				if err != nil {
					return err
				}
				items = append(items, value.Unresolved(orDefault(refAttrs["class"], rel.TargetClassName()), refAttrs["id"]))
			}
		}
		o.SetSlotByIndex(slot.Index, value.List(items))
		return nil
	}

	if !selfClosed {
		if err := skipChildren(r, "rel"); err != nil {
			return err
		}
	}
	if tagAttrs["id"] == "" {
		o.SetSlotByIndex(slot.Index, value.NullRef())
		return nil
	}
	o.SetSlotByIndex(slot.Index, value.Unresolved(orDefault(tagAttrs["class"], rel.TargetClassName()), tagAttrs["id"]))
	return nil
}

// skipValueList drains a multi-valued attr/rel tag's child elements
// (named childTag) for a member this implementation does not recognize.
func skipValueList(r *xmlstream.Reader, parent, childTag string) error {
	for {
		name, end, err := r.NextChildOrEnd(parent)
		if err != nil {
			return err
		}
		if end {
			return nil
		}
		if name != childTag {
			return r.Errf("%s: unexpected child <%s>", parent, name)
		}
		if _, _, err := readTagAttrs(r); err != nil {
			return err
		}
	}
}

// WriteData serializes objs into the `oks-data` "normal" format (spec §6).
func WriteData(dst io.Writer, objs []*object.Object, h Header) error {
	w := xmlstream.NewWriter(dst)
	w.PutStartTag("oks-data")
	w.PutOpenClose()
	w.PutEOL()
	writeHeader(w, h)
	for _, o := range objs {
		writeObject(w, o)
	}
	w.PutEndTag("oks-data")
	w.PutEOL()
	return w.Errf()
}

func writeObject(w *xmlstream.Writer, o *object.Object) {
	cls := o.Class()
	w.PutIndent(1)
	w.PutStartTag("obj")
	w.PutAttr("class", cls.Name())
	w.PutAttr("id", o.ID())
	w.PutOpenClose()
	w.PutEOL()
	for _, a := range cls.AllAttributes() {
		slot, _ := cls.SlotOf(a.Name())
		writeAttrValue(w, a, o.GetAt(slot.Index))
	}
	for _, rel := range cls.AllRelationships() {
		slot, _ := cls.SlotOf(rel.Name())
		writeRelValue(w, rel, o.GetAt(slot.Index))
	}
	w.PutIndent(1)
	w.PutEndTag("obj")
	w.PutEOL()
}

func writeAttrValue(w *xmlstream.Writer, a *schema.Attribute, d value.Data) {
	w.PutIndent(2)
	w.PutStartTag("attr")
	w.PutAttr("name", a.Name())
	w.PutAttr("type", a.Kind().String())
	if !a.MultiValued() {
		w.PutAttr("val", renderScalar(a, d))
		w.PutLastTag()
		w.PutEOL()
		return
	}
	items := d.Items()
	if len(items) == 0 {
		w.PutLastTag()
		w.PutEOL()
		return
	}
	w.PutOpenClose()
	w.PutEOL()
	for _, item := range items {
		w.PutIndent(3)
		w.PutStartTag("data")
		w.PutAttr("val", renderScalar(a, item))
		w.PutLastTag()
		w.PutEOL()
	}
	w.PutIndent(2)
	w.PutEndTag("attr")
	w.PutEOL()
}

func writeRelValue(w *xmlstream.Writer, rel *schema.Relationship, d value.Data) {
	w.PutIndent(2)
	w.PutStartTag("rel")
	w.PutAttr("name", rel.Name())
	if rel.HighCC() != schema.CardinalityMany {
		if !d.IsEmptyRef() {
			w.PutAttr("class", d.RefClassName())
			w.PutAttr("id", d.RefObjectID())
		}
		w.PutLastTag()
		w.PutEOL()
		return
	}
	items := d.Items()
	if len(items) == 0 {
		w.PutLastTag()
		w.PutEOL()
		return
	}
	w.PutOpenClose()
	w.PutEOL()
	for _, item := range items {
		w.PutIndent(3)
		w.PutStartTag("ref")
		w.PutAttr("class", item.RefClassName())
		w.PutAttr("id", item.RefObjectID())
		w.PutLastTag()
		w.PutEOL()
	}
	w.PutIndent(2)
	w.PutEndTag("rel")
	w.PutEOL()
}

// renderScalar formats d in the textual literal form the schema/data
// grammar expects, the inverse of parseAttrValue/schema.ParseLiteral,
// using ISO date/time encoding (spec §6 "Date/time encoding") and the
// attribute's enumerator name where one matches the stored index.
func renderScalar(a *schema.Attribute, d value.Data) string {
	switch d.Kind {
	case value.KindString:
		return d.Str()
	case value.KindBool:
		return strconv.FormatBool(d.BoolVal())
	case value.KindI8, value.KindI16, value.KindI32, value.KindI64:
		return strconv.FormatInt(d.Int(), 10)
	case value.KindU8, value.KindU16, value.KindU32, value.KindU64:
		return strconv.FormatUint(d.Uint(), 10)
	case value.KindFloat32:
		return strconv.FormatFloat(d.Float(), 'g', -1, 32)
	case value.KindFloat64:
		return strconv.FormatFloat(d.Float(), 'g', -1, 64)
	case value.KindDate:
		return schema.FormatDateISO(d.Int())
	case value.KindTime:
		return schema.FormatTimeISO(d.Int())
	case value.KindEnum:
		enumerators := a.Enumerators()
		if idx := d.Int(); idx >= 0 && int(idx) < len(enumerators) {
			return enumerators[idx]
		}
		return strconv.FormatInt(d.Int(), 10)
	case value.KindClass:
		if cls := d.ClassVal(); cls != nil {
			return cls.ClassName()
		}
		return ""
	default:
		return fmt.Sprintf("%v", d)
	}
}
