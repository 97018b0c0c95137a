// Package typemap classifies engine type names into value families and
// decodes raw driver values accordingly.
package typemap

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Family groups engine types that decode to the same Go type.
type Family int

const (
	Other Family = iota
	Integer
	Float
	Binary
	Character
	Temporal
	Boolean
	Null
)

func (f Family) String() string {
	switch f {
	case Integer:
		return "integer"
	case Float:
		return "float"
	case Binary:
		return "binary"
	case Character:
		return "character"
	case Temporal:
		return "temporal"
	case Boolean:
		return "boolean"
	case Null:
		return "null"
	default:
		return "other"
	}
}

// families covers both DatabaseTypeName spellings and information_schema
// data_type spellings.
var families = map[string]Family{
	"int2": Integer, "int4": Integer, "int8": Integer,
	"smallint": Integer, "integer": Integer, "bigint": Integer,
	"serial": Integer, "bigserial": Integer, "smallserial": Integer, "oid": Integer,

	"float4": Float, "float8": Float, "real": Float, "double precision": Float,
	"numeric": Float, "decimal": Float, "money": Float,

	"bytea": Binary,

	"varchar": Character, "character varying": Character, "bpchar": Character,
	"char": Character, "character": Character, "text": Character, "name": Character,
	"citext": Character, "uuid": Character,

	"date": Temporal, "time": Temporal, "timetz": Temporal,
	"timestamp": Temporal, "timestamptz": Temporal,
	"timestamp without time zone": Temporal, "timestamp with time zone": Temporal,
	"time without time zone": Temporal, "time with time zone": Temporal,

	"bool": Boolean, "boolean": Boolean,

	"void": Null, "unknown": Null,
}

// Lookup returns the family registered for an engine type name.
func Lookup(name string) (Family, bool) {
	f, ok := families[strings.ToLower(strings.TrimSpace(name))]
	return f, ok
}

// Of is Lookup with Other as the fallback.
func Of(name string) Family {
	f, _ := Lookup(name)
	return f
}

// Decode converts a raw driver value into the canonical Go type of its family.
func Decode(f Family, v any) any {
	if v == nil {
		return nil
	}
	switch f {
	case Null:
		return nil
	case Integer:
		switch x := v.(type) {
		case int64:
			return x
		case int:
			return int64(x)
		case int32:
			return int64(x)
		case int16:
			return int64(x)
		case float64:
			return int64(x)
		case []byte:
			if n, err := strconv.ParseInt(string(x), 10, 64); err == nil {
				return n
			}
		case string:
			if n, err := strconv.ParseInt(x, 10, 64); err == nil {
				return n
			}
		}
	case Float:
		switch x := v.(type) {
		case float64:
			return x
		case float32:
			return float64(x)
		case int64:
			return float64(x)
		case []byte:
			if n, err := strconv.ParseFloat(string(x), 64); err == nil {
				return n
			}
		case string:
			if n, err := strconv.ParseFloat(x, 64); err == nil {
				return n
			}
		}
	case Binary:
		switch x := v.(type) {
		case []byte:
			return x
		case string:
			return []byte(x)
		}
	case Character:
		switch x := v.(type) {
		case string:
			return x
		case []byte:
			return string(x)
		default:
			return fmt.Sprint(x)
		}
	case Temporal:
		switch x := v.(type) {
		case time.Time:
			return x
		case []byte:
			if t, ok := parseTime(string(x)); ok {
				return t
			}
		case string:
			if t, ok := parseTime(x); ok {
				return t
			}
		}
	case Boolean:
		switch x := v.(type) {
		case bool:
			return x
		case []byte:
			if b, err := strconv.ParseBool(string(x)); err == nil {
				return b
			}
		case string:
			if b, err := strconv.ParseBool(x); err == nil {
				return b
			}
		}
	default:
		if b, ok := v.([]byte); ok {
			return string(b)
		}
	}
	return v
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

func parseTime(s string) (time.Time, bool) {
	for _, l := range timeLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

var canonicalNames = map[string]string{
	"int2":        "smallint",
	"int4":        "integer",
	"int":         "integer",
	"int8":        "bigint",
	"float4":      "real",
	"float8":      "double precision",
	"float":       "double precision",
	"decimal":     "numeric",
	"bool":        "boolean",
	"varchar":     "character varying",
	"bpchar":      "character",
	"char":        "character",
	"timestamp":   "timestamp without time zone",
	"timestamptz": "timestamp with time zone",
	"time":        "time without time zone",
	"timetz":      "time with time zone",
	"serial":      "integer",
	"bigserial":   "bigint",
	"smallserial": "smallint",
}

// Canonical rewrites an engine type name into the spelling format_type
// reports, so declared and catalog types can be compared as strings.
// Modifiers are kept: "timestamptz(3)" becomes "timestamp(3) with time zone".
func Canonical(sqlType string) string {
	s := strings.ToLower(strings.Join(strings.Fields(sqlType), " "))
	base, mod := s, ""
	if i := strings.IndexByte(s, '('); i >= 0 {
		if j := strings.IndexByte(s[i:], ')'); j >= 0 {
			base = strings.TrimSpace(s[:i]) + s[i+j+1:]
			mod = strings.ReplaceAll(s[i:i+j+1], " ", "")
		}
	}
	base = strings.TrimSpace(base)
	if c, ok := canonicalNames[base]; ok {
		base = c
	}
	if mod == "" {
		return base
	}
	for _, suffix := range []string{" without time zone", " with time zone"} {
		if strings.HasSuffix(base, suffix) {
			return strings.TrimSuffix(base, suffix) + mod + suffix
		}
	}
	return base + mod
}
