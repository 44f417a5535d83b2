package value

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Range is the compiled form of an attribute's range constraint string
// (spec §4.2). The grammar admits five overlapping constraint shapes, any
// of which may be combined with commas in the source text:
//
//	"1,2,5"        equal-set: value must equal one of these
//	"<=10"         less-or-equal-set
//	">=0"          greater-or-equal-set
//	"1..10"        one or more closed intervals
//	"^[a-z]+$"     one or more regular expressions (string attributes only)
//
// Range compiles the source once and evaluates membership with a single
// short-circuiting Validate call: the predicate is built once at
// schema-parse time rather than re-parsed on every value checked against
// it.
type Range struct {
	src string

	kind Kind

	equals   []Data
	leSet    []float64
	geSet    []float64
	interval []interval
	regexes  []*regexp.Regexp
}

type interval struct{ lo, hi float64 }

// IsEmpty reports whether no constraint was configured (any value of the
// attribute's kind is admissible).
func (rg *Range) IsEmpty() bool {
	return rg == nil || (len(rg.equals) == 0 && len(rg.leSet) == 0 &&
		len(rg.geSet) == 0 && len(rg.interval) == 0 && len(rg.regexes) == 0)
}

// String returns the original, uncompiled range source text.
func (rg *Range) String() string {
	if rg == nil {
		return ""
	}
	return rg.src
}

// CompileRange parses src against kind and returns the compiled Range. An
// empty src compiles to an always-permissive Range. kind must be a
// primitive, non-reference value kind; KindString additionally admits the
// regex clauses.
func CompileRange(kind Kind, src string) (*Range, error) {
	rg := &Range{src: src, kind: kind}
	src = strings.TrimSpace(src)
	if src == "" {
		return rg, nil
	}
	for _, clause := range splitClauses(src) {
		clause = strings.TrimSpace(clause)
		if clause == "" {
			continue
		}
		switch {
		case strings.HasPrefix(clause, "<="):
			v, err := parseBound(kind, clause[2:])
			if err != nil {
				return nil, fmt.Errorf("range %q: %w", src, err)
			}
			rg.leSet = append(rg.leSet, v)
		case strings.HasPrefix(clause, ">="):
			v, err := parseBound(kind, clause[2:])
			if err != nil {
				return nil, fmt.Errorf("range %q: %w", src, err)
			}
			rg.geSet = append(rg.geSet, v)
		case strings.Contains(clause, ".."):
			parts := strings.SplitN(clause, "..", 2)
			if len(parts) != 2 {
				return nil, fmt.Errorf("range %q: malformed interval %q", src, clause)
			}
			lo, err := parseBound(kind, parts[0])
			if err != nil {
				return nil, fmt.Errorf("range %q: %w", src, err)
			}
			hi, err := parseBound(kind, parts[1])
			if err != nil {
				return nil, fmt.Errorf("range %q: %w", src, err)
			}
			rg.interval = append(rg.interval, interval{lo: lo, hi: hi})
		case kind == KindString:
			re, err := regexp.Compile(clause)
			if err != nil {
				return nil, fmt.Errorf("range %q: bad regex %q: %w", src, clause, err)
			}
			rg.regexes = append(rg.regexes, re)
		default:
			d, err := parseLiteral(kind, clause)
			if err != nil {
				return nil, fmt.Errorf("range %q: %w", src, err)
			}
			rg.equals = append(rg.equals, d)
		}
	}
	return rg, nil
}

// splitClauses splits on top-level commas, the separator between
// independent range clauses in the source grammar.
func splitClauses(src string) []string {
	return strings.Split(src, ",")
}

func parseBound(kind Kind, s string) (float64, error) {
	s = strings.TrimSpace(s)
	if kind == KindFloat32 || kind == KindFloat64 {
		return strconv.ParseFloat(s, 64)
	}
	if kind.IsUnsigned() {
		v, err := strconv.ParseUint(s, 0, 64)
		return float64(v), err
	}
	v, err := strconv.ParseInt(s, 0, 64)
	return float64(v), err
}

func parseLiteral(kind Kind, s string) (Data, error) {
	switch kind {
	case KindString:
		return String(strings.Trim(s, `"'`)), nil
	case KindBool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return Data{}, err
		}
		return Bool(b), nil
	case KindFloat32:
		f, err := strconv.ParseFloat(s, 32)
		if err != nil {
			return Data{}, err
		}
		return Float32V(float32(f)), nil
	case KindFloat64:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Data{}, err
		}
		return Float64V(f), nil
	case KindEnum:
		v, err := strconv.ParseInt(s, 0, 64)
		if err != nil {
			return Data{}, err
		}
		return Enum(v), nil
	default:
		if kind.IsUnsigned() {
			v, err := strconv.ParseUint(s, 0, 64)
			if err != nil {
				return Data{}, err
			}
			return Uint(kind, v), nil
		}
		v, err := strconv.ParseInt(s, 0, 64)
		if err != nil {
			return Data{}, err
		}
		return Int(kind, v), nil
	}
}

// Validate reports whether d satisfies the range, short-circuiting on the
// first matching bucket (spec §4.2 "a value is valid if it satisfies any
// configured clause, in equal/le/ge/interval/regex order").
func (rg *Range) Validate(d Data) error {
	if rg.IsEmpty() {
		return nil
	}
	if rg.kind == KindString {
		return rg.validateString(d)
	}
	for _, eq := range rg.equals {
		if eq.Equal(d) {
			return nil
		}
	}
	mag, ok := d.AsFloat()
	if !ok {
		return fmt.Errorf("range: value %s is not numeric", d)
	}
	for _, le := range rg.leSet {
		if mag <= le {
			return nil
		}
	}
	for _, ge := range rg.geSet {
		if mag >= ge {
			return nil
		}
	}
	for _, iv := range rg.interval {
		if mag >= iv.lo && mag <= iv.hi {
			return nil
		}
	}
	return fmt.Errorf("range: value %s out of range %q", d, rg.src)
}

func (rg *Range) validateString(d Data) error {
	s := d.Str()
	for _, re := range rg.regexes {
		if re.MatchString(s) {
			return nil
		}
	}
	return fmt.Errorf("range: string %q does not satisfy range %q", s, rg.src)
}
