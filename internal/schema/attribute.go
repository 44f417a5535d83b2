package schema

import (
	"fmt"
	"strings"
	"sync"

	"oks/internal/value"
)

// maxAttributeNameLen and maxDescriptionLen enforce the length limits
// spec §3 puts on Attribute members.
const (
	maxAttributeNameLen = 128
	maxDescriptionLen   = 2000
)

// NumberFormat selects how an integer-kind attribute is printed on save.
type NumberFormat int

const (
	FormatDec NumberFormat = iota
	FormatOct
	FormatHex
)

func (f NumberFormat) String() string {
	switch f {
	case FormatOct:
		return "oct"
	case FormatHex:
		return "hex"
	default:
		return "dec"
	}
}

func ParseNumberFormat(s string) (NumberFormat, error) {
	switch s {
	case "", "dec":
		return FormatDec, nil
	case "oct":
		return FormatOct, nil
	case "hex":
		return FormatHex, nil
	}
	return FormatDec, fmt.Errorf("schema: unknown integer format %q", s)
}

// Attribute is a schema member describing one slot of a class's data
// array (spec §3 Attribute).
type Attribute struct {
	mu sync.RWMutex

	name        string
	description string
	kind        value.Kind // primitive tag, or KindString/KindEnum/KindClass
	multiValued bool
	noNull      bool
	ordered     bool
	format      NumberFormat

	initValueText string
	rangeText     string
	rng           *value.Range
	enumerators   []string

	initValue      value.Data
	emptyInitValue value.Data

	owner *Class
}

// NewAttribute constructs an Attribute from its XML-grammar fields (spec
// §6). Validation (name length, range compile, enumerator non-empty) runs
// immediately; construction fails the same way a setter would.
func NewAttribute(name, description string, kind value.Kind, multiValued, noNull, ordered bool, format NumberFormat, initValueText, rangeText string) (*Attribute, error) {
	if err := validateMemberName(name, maxAttributeNameLen); err != nil {
		return nil, err
	}
	if len(description) > maxDescriptionLen {
		return nil, fmt.Errorf("schema: attribute %q description exceeds %d bytes", name, maxDescriptionLen)
	}
	a := &Attribute{
		name:          name,
		description:   description,
		kind:          kind,
		multiValued:   multiValued,
		noNull:        noNull,
		ordered:       ordered,
		format:        format,
		initValueText: initValueText,
		rangeText:     rangeText,
	}
	if err := a.compileRange(rangeText); err != nil {
		return nil, err
	}
	if err := a.compileInitValue(); err != nil {
		return nil, err
	}
	return a, nil
}

func validateMemberName(name string, max int) error {
	if name == "" {
		return fmt.Errorf("schema: member name must not be empty")
	}
	if len(name) > max {
		return fmt.Errorf("schema: member name %q exceeds %d bytes", name, max)
	}
	return nil
}

// compileRange applies the implicit-range and enum-range rules from spec
// §4.2 and compiles the result.
func (a *Attribute) compileRange(text string) error {
	compileText := text
	switch a.kind {
	case value.KindBool:
		text = "true,false"
		compileText = text
	case value.KindEnum:
		a.enumerators = splitEnumerators(text)
		if len(a.enumerators) == 0 {
			return fmt.Errorf("schema: attribute %q: enum range must not be empty", a.name)
		}
		compileText = fmt.Sprintf("0..%d", len(a.enumerators)-1)
	}
	rng, err := value.CompileRange(rangeKind(a.kind), compileText)
	if err != nil {
		return fmt.Errorf("schema: attribute %q: %w", a.name, err)
	}
	a.rangeText = text
	a.rng = rng
	return nil
}

// rangeKind maps an enum-kind attribute onto the integer range compiler
// (enumerators are validated by index, not compiled as regex/string
// clauses) and otherwise returns kind unchanged.
func rangeKind(kind value.Kind) value.Kind {
	if kind == value.KindEnum {
		return value.KindI32
	}
	return kind
}

func splitEnumerators(text string) []string {
	var out []string
	for _, tok := range strings.Split(text, ",") {
		tok = strings.TrimSpace(tok)
		if tok != "" {
			out = append(out, tok)
		}
	}
	return out
}

// compileInitValue parses initValueText into the cached initValue/
// emptyInitValue pair used by Object construction from schema default
// (spec §4.4).
func (a *Attribute) compileInitValue() error {
	a.emptyInitValue = value.Zero(a.kind)
	if a.multiValued {
		a.initValue = value.List(nil)
		return nil
	}
	if a.initValueText == "" {
		a.initValue = a.emptyInitValue
		return nil
	}
	d, err := ParseLiteral(a.kind, a.initValueText, a.enumerators)
	if err != nil {
		return fmt.Errorf("schema: attribute %q: bad init-value: %w", a.name, err)
	}
	a.initValue = d
	return nil
}

// ParseLiteral parses a single textual literal against kind, resolving
// enum literals against enumerators by name or numeric index. Shared by
// Attribute's init-value compiler and the XML object parser (for
// single-valued `val="..."` attributes).
func ParseLiteral(kind value.Kind, text string, enumerators []string) (value.Data, error) {
	if kind == value.KindEnum {
		for i, e := range enumerators {
			if e == text {
				return value.Enum(int64(i)), nil
			}
		}
	}
	return parseScalarLiteral(kind, text)
}

func (a *Attribute) Name() string             { return a.name }
func (a *Attribute) Description() string      { return a.description }
func (a *Attribute) Kind() value.Kind         { return a.kind }
func (a *Attribute) MultiValued() bool        { return a.multiValued }
func (a *Attribute) NoNull() bool             { return a.noNull }
func (a *Attribute) Ordered() bool            { return a.ordered }
func (a *Attribute) Format() NumberFormat     { return a.format }
func (a *Attribute) RangeText() string        { return a.rangeText }
func (a *Attribute) Range() *value.Range      { return a.rng }
func (a *Attribute) Enumerators() []string    { return a.enumerators }
func (a *Attribute) InitValue() value.Data    { return a.initValue }
func (a *Attribute) EmptyValue() value.Data   { return a.emptyInitValue }

// DefaultValue returns the value a newly constructed Object should store
// in this attribute's slot: the compiled init-value for a single-valued
// attribute, or an empty list for a multi-valued one.
func (a *Attribute) DefaultValue() value.Data {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.multiValued {
		return value.List(nil)
	}
	return a.initValue
}

// SetRange recompiles the attribute's Range and propagates the change
// (spec §4.2 "set_range recompiles Range").
func (a *Attribute) SetRange(text string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	prevText, prevRng := a.rangeText, a.rng
	if err := a.compileRange(text); err != nil {
		a.rangeText, a.rng = prevText, prevRng
		return err
	}
	a.notify(ChangeAttributeRange)
	return nil
}

// SetDescription validates and assigns a new description, then notifies.
func (a *Attribute) SetDescription(desc string) error {
	if len(desc) > maxDescriptionLen {
		return fmt.Errorf("schema: attribute %q description exceeds %d bytes", a.name, maxDescriptionLen)
	}
	a.mu.Lock()
	a.description = desc
	a.mu.Unlock()
	a.notify(ChangeAttributeDescription)
	return nil
}

// SetNoNull assigns the not-null flag and notifies.
func (a *Attribute) SetNoNull(v bool) {
	a.mu.Lock()
	a.noNull = v
	a.mu.Unlock()
	a.notify(ChangeAttributeNoNull)
}

// SetFormat assigns the integer print format and notifies.
func (a *Attribute) SetFormat(f NumberFormat) {
	a.mu.Lock()
	a.format = f
	a.mu.Unlock()
	a.notify(ChangeAttributeFormat)
}

func (a *Attribute) notify(kind ChangeKind) {
	if a.owner == nil {
		return
	}
	a.owner.lockFile()
	defer a.owner.unlockFile()
	a.owner.propagate(kind, a.name)
}

// Validate checks d against the attribute's range and null constraints,
// returning a *value.Range-flavored error on violation (spec §4.4 "set
// performs ... range validation").
func (a *Attribute) Validate(d value.Data) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.noNull && d.IsEmptyRef() {
		return fmt.Errorf("schema: attribute %q: value required", a.name)
	}
	if a.rng == nil || a.rng.IsEmpty() {
		return nil
	}
	if d.Kind == value.KindList {
		for _, item := range d.Items() {
			if err := a.rng.Validate(item); err != nil {
				return err
			}
		}
		return nil
	}
	return a.rng.Validate(d)
}
