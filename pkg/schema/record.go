package schema

// DefaultValue computes the value a field takes when a record omits it, and
// the value backfilled into existing rows when the column is added.
func DefaultValue(f Field) any {
	if f.DefaultFunc != nil {
		return f.DefaultFunc()
	}
	if f.Default != nil {
		return f.Default
	}
	switch {
	case f.Type.IsIntegerFamily():
		return 0
	case f.Type == Boolean:
		return false
	default:
		return ""
	}
}

// HasImplicitDefault reports whether f has a default the database accepts.
// Datetime and other fields without a declared default only have the empty
// string fallback, which those column types reject; such fields are left to
// the database instead of being filled or backfilled.
func HasImplicitDefault(f Field) bool {
	if f.AutoIncrement {
		return false
	}
	if f.Type != DateTime && f.Type != Other {
		return true
	}
	s, ok := DefaultValue(f).(string)
	return !ok || s != ""
}

// NewRecord fills the physical fields missing from in with their defaults.
// Auto-increment fields and fields without an implicit default are left to
// the database, and unknown keys are dropped.
func NewRecord(t Table, in map[string]any) map[string]any {
	out := make(map[string]any, len(t.Fields))
	for _, f := range t.Physical() {
		if v, ok := in[f.Name]; ok {
			out[f.Name] = v
			continue
		}
		if !HasImplicitDefault(f) {
			continue
		}
		out[f.Name] = DefaultValue(f)
	}
	return out
}

// ClientView returns a copy of rec without server-only and reserved fields.
func ClientView(t Table, rec map[string]any) map[string]any {
	hidden := make(map[string]struct{})
	for _, f := range t.Fields {
		if f.ServerOnly || f.Reserved {
			hidden[f.Name] = struct{}{}
		}
	}
	out := make(map[string]any, len(rec))
	for k, v := range rec {
		if _, skip := hidden[k]; skip {
			continue
		}
		out[k] = v
	}
	return out
}
