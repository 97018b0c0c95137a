package config

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ErrUnknownKey is returned by Set and Get for names File does not have.
var ErrUnknownKey = errors.New("unknown config key")

type accessor struct {
	get func(f *File) string
	set func(f *File, v string) error
}

func stringKey(p func(f *File) *string) accessor {
	return accessor{
		get: func(f *File) string { return *p(f) },
		set: func(f *File, v string) error { *p(f) = v; return nil },
	}
}

func boolKey(p func(f *File) *bool) accessor {
	return accessor{
		get: func(f *File) string { return strconv.FormatBool(*p(f)) },
		set: func(f *File, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("parse %q as bool: %w", v, err)
			}
			*p(f) = b
			return nil
		},
	}
}

var keys = map[string]accessor{
	"dsn":           stringKey(func(f *File) *string { return &f.DSN }),
	"driver":        stringKey(func(f *File) *string { return &f.Driver }),
	"namespace":     stringKey(func(f *File) *string { return &f.Namespace }),
	"logLevel":      stringKey(func(f *File) *string { return &f.LogLevel }),
	"logFormat":     stringKey(func(f *File) *string { return &f.LogFormat }),
	"metricsAddr":   stringKey(func(f *File) *string { return &f.MetricsAddr }),
	"transactional": boolKey(func(f *File) *bool { return &f.Transactional }),
	"strictRenames": boolKey(func(f *File) *bool { return &f.StrictRenames }),
	"files": {
		get: func(f *File) string { return strings.Join(f.Files, ",") },
		set: func(f *File, v string) error {
			f.Files = nil
			for _, p := range strings.Split(v, ",") {
				if p = strings.TrimSpace(p); p != "" {
					f.Files = append(f.Files, p)
				}
			}
			return nil
		},
	},
}

// Keys lists the settable names, sorted.
func Keys() []string {
	out := make([]string, 0, len(keys))
	for k := range keys {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Set assigns value to the field named key. files takes a comma separated list.
func (f *File) Set(key, value string) error {
	a, ok := keys[key]
	if !ok {
		return fmt.Errorf("%w %q", ErrUnknownKey, key)
	}
	return a.set(f, value)
}

// Get renders the field named key.
func (f *File) Get(key string) (string, error) {
	a, ok := keys[key]
	if !ok {
		return "", fmt.Errorf("%w %q", ErrUnknownKey, key)
	}
	return a.get(f), nil
}
