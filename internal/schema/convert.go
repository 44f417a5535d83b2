package schema

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"oks/internal/value"
)

// parseScalarLiteral parses a single non-enum textual literal against
// kind. Shared by Attribute's init-value compiler, the data-file parser's
// handling of "type omitted" defaults, and Convert's last-resort
// string round-trip.
func parseScalarLiteral(kind value.Kind, text string) (value.Data, error) {
	switch kind {
	case value.KindString:
		return value.String(text), nil
	case value.KindBool:
		b, err := strconv.ParseBool(text)
		if err != nil {
			return value.Data{}, err
		}
		return value.Bool(b), nil
	case value.KindFloat32:
		f, err := strconv.ParseFloat(text, 32)
		if err != nil {
			return value.Data{}, err
		}
		return value.Float32V(float32(f)), nil
	case value.KindFloat64:
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return value.Data{}, err
		}
		return value.Float64V(f), nil
	case value.KindDate:
		d, err := ParseDate(text)
		if err != nil {
			return value.Data{}, err
		}
		return value.Date(d), nil
	case value.KindTime:
		ts, err := ParseTime(text)
		if err != nil {
			return value.Data{}, err
		}
		return value.Time(ts), nil
	default:
		if kind.IsUnsigned() {
			v, err := strconv.ParseUint(text, 0, 64)
			if err != nil {
				return value.Data{}, err
			}
			return value.Uint(kind, v), nil
		}
		v, err := strconv.ParseInt(text, 0, 64)
		if err != nil {
			return value.Data{}, err
		}
		return value.Int(kind, v), nil
	}
}

// oksDateEpoch is day zero for the date encoding's day-count form.
var oksDateEpoch = time.Date(1970, time.January, 1, 0, 0, 0, 0, time.UTC)

// ParseDate accepts ISO basic (YYYYMMDD) and, per spec §9 "Legacy
// date/time format", an older slash form (YYYY/MM/DD), returning the
// number of days since the epoch. The legacy reader is kept: spec.md
// never lists it as a Non-goal, only raises it as an open question.
func ParseDate(text string) (int64, error) {
	var t time.Time
	var err error
	switch {
	case len(text) == 8 && !strings.Contains(text, "/"):
		t, err = time.Parse("20060102", text)
	case strings.Contains(text, "/"):
		t, err = time.Parse("2006/01/02", text)
	default:
		return 0, fmt.Errorf("schema: malformed date %q", text)
	}
	if err != nil {
		return 0, fmt.Errorf("schema: malformed date %q: %w", text, err)
	}
	days := int64(t.Sub(oksDateEpoch).Hours() / 24)
	return days, nil
}

// FormatDateISO renders a day count in ISO basic form (YYYYMMDD).
func FormatDateISO(days int64) string {
	t := oksDateEpoch.AddDate(0, 0, int(days))
	return t.Format("20060102")
}

// ParseTime accepts ISO basic (YYYYMMDDTHHMMSS) and the legacy
// slash/colon form (YYYY/MM/DD HH:MM:SS), returning a Unix timestamp.
func ParseTime(text string) (int64, error) {
	var t time.Time
	var err error
	switch {
	case strings.Contains(text, "T"):
		t, err = time.Parse("20060102T150405", text)
	case strings.Contains(text, "/"):
		t, err = time.Parse("2006/01/02 15:04:05", text)
	default:
		return 0, fmt.Errorf("schema: malformed time %q", text)
	}
	if err != nil {
		return 0, fmt.Errorf("schema: malformed time %q: %w", text, err)
	}
	return t.Unix(), nil
}

// FormatTimeISO renders a Unix timestamp in ISO basic form
// (YYYYMMDDTHHMMSS).
func FormatTimeISO(ts int64) string {
	return time.Unix(ts, 0).UTC().Format("20060102T150405")
}

// Convert implements Value.cvt from spec §4.4: coerce d, whose
// discriminator may differ from target's declared kind, into a Data
// value compatible with target's slot. Used both when a setter receives
// a mismatched-kind value and when the data-file parser hits a
// mismatched-type <attr> (constructing a temporary scratch Attribute
// per spec §4.4 "From XML").
func Convert(d value.Data, target *Attribute) (value.Data, error) {
	target.mu.RLock()
	kind := target.kind
	enumerators := target.enumerators
	target.mu.RUnlock()

	if d.Kind == kind {
		return d, nil
	}
	if kind == value.KindEnum {
		if d.Kind == value.KindString {
			for i, e := range enumerators {
				if e == d.Str() {
					return value.Enum(int64(i)), nil
				}
			}
		}
		return value.Data{}, fmt.Errorf("schema: cannot convert %s to enum %v", d, enumerators)
	}
	if kind == value.KindString {
		return value.String(d.String()), nil
	}
	if mag, ok := d.AsFloat(); ok && kind.IsNumeric() {
		return numericFromFloat(kind, mag), nil
	}
	if d.Kind == value.KindString {
		return parseScalarLiteral(kind, d.Str())
	}
	return value.Data{}, fmt.Errorf("schema: cannot convert %s value to %s", d.Kind, kind)
}

func numericFromFloat(kind value.Kind, mag float64) value.Data {
	switch {
	case kind == value.KindFloat32:
		return value.Float32V(float32(mag))
	case kind == value.KindFloat64:
		return value.Float64V(mag)
	case kind.IsUnsigned():
		return value.Uint(kind, uint64(mag))
	default:
		return value.Int(kind, int64(mag))
	}
}
