package kernel

import (
	"fmt"
	"strconv"
	"time"

	"oks/internal/xmlstream"
)

// Header is the metadata every OKS file carries ahead of its class or
// object list (spec §6 "Header tag carries creation metadata, type,
// format name, item count, include list"), shared between the schema and
// data readers/writers.
type Header struct {
	Author      string
	Host        string
	Created     time.Time
	Type        string
	LogicalName string
	Format      string
	ItemCount   int
	Includes    []string
}

func readTagAttrs(r *xmlstream.Reader) (map[string]string, bool, error) {
	attrs := make(map[string]string)
	for {
		name, val, err := r.NextAttr()
		if err != nil {
			return nil, false, err
		}
		switch name {
		case xmlstream.CloseAttr:
			return attrs, false, nil
		case xmlstream.SelfCloseAttr:
			return attrs, true, nil
		}
		attrs[name] = val
	}
}

func parseBoolAttr(attrs map[string]string, key string, def bool) (bool, error) {
	v, ok := attrs[key]
	if !ok || v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("kernel: attribute %q: bad boolean %q: %w", key, v, err)
	}
	return b, nil
}

func parseIntAttr(attrs map[string]string, key string, def int) (int, error) {
	v, ok := attrs[key]
	if !ok || v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("kernel: attribute %q: bad integer %q: %w", key, v, err)
	}
	return n, nil
}

// readHeader consumes the `<header ...>` tag that opens every OKS file,
// including its `<include><file path=.../></include>` block, and leaves
// the reader positioned right after `</header>`.
func readHeader(r *xmlstream.Reader) (Header, error) {
	name, err := r.NextStartTag()
	if err != nil {
		return Header{}, err
	}
	if name != "header" {
		return Header{}, r.Errf("expected <header>, got <%s>", name)
	}
	attrs, selfClosed, err := readTagAttrs(r)
	if err != nil {
		return Header{}, err
	}
	h := Header{
		Author:      attrs["author"],
		Host:        attrs["host"],
		Type:        attrs["type"],
		LogicalName: attrs["logical-name"],
		Format:      attrs["format"],
	}
	if attrs["created"] != "" {
		t, err := time.Parse("20060102T150405", attrs["created"])
		if err != nil {
			return Header{}, fmt.Errorf("kernel: header: bad created timestamp %q: %w", attrs["created"], err)
		}
		h.Created = t
	}
	h.ItemCount, err = parseIntAttr(attrs, "item-count", 0)
	if err != nil {
		return Header{}, err
	}
	if selfClosed {
		return h, nil
	}
	for {
		childName, end, err := r.NextChildOrEnd("header")
		if err != nil {
			return Header{}, err
		}
		if end {
			return h, nil
		}
		if childName != "include" {
			return Header{}, r.Errf("header: unexpected child <%s>", childName)
		}
		path, err := readIncludeFile(r)
		if err != nil {
			return Header{}, err
		}
		h.Includes = append(h.Includes, path)
		if err := r.NextEndTag("include"); err != nil {
			return Header{}, err
		}
	}
}

// readIncludeFile reads the single `<file path=.../>` child of one
// `<include>` block.
func readIncludeFile(r *xmlstream.Reader) (string, error) {
	name, err := r.NextStartTag()
	if err != nil {
		return "", err
	}
	if name != "file" {
		return "", r.Errf("include: expected <file>, got <%s>", name)
	}
	attrs, selfClosed, err := readTagAttrs(r)
	if err != nil {
		return "", err
	}
	if !selfClosed {
		if err := r.NextEndTag("file"); err != nil {
			return "", err
		}
	}
	return attrs["path"], nil
}

// writeHeader emits the `<header>` tag plus its include block.
func writeHeader(w *xmlstream.Writer, h Header) {
	w.PutIndent(1)
	w.PutStartTag("header")
	w.PutAttr("author", h.Author)
	w.PutAttr("host", h.Host)
	w.PutAttr("created", h.Created.UTC().Format("20060102T150405"))
	w.PutAttr("type", h.Type)
	w.PutAttr("logical-name", h.LogicalName)
	w.PutAttr("format", h.Format)
	w.PutAttr("item-count", strconv.Itoa(h.ItemCount))
	if len(h.Includes) == 0 {
		w.PutLastTag()
		w.PutEOL()
		return
	}
	w.PutOpenClose()
	w.PutEOL()
	for _, inc := range h.Includes {
		w.PutIndent(2)
		w.PutStartTag("include")
		w.PutOpenClose()
		w.PutStartTag("file")
		w.PutAttr("path", inc)
		w.PutLastTag()
		w.PutEndTag("include")
		w.PutEOL()
	}
	w.PutIndent(1)
	w.PutEndTag("header")
	w.PutEOL()
}
