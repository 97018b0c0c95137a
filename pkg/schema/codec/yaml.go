// Package codec reads and writes table declarations as YAML.
package codec

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/faciam-dev/schemasync/pkg/schema"
)

const currentVersion = "1.0"

// ErrUnsupportedVersion is returned for files written by a newer format.
var ErrUnsupportedVersion = errors.New("unsupported schema file version")

type schemaFile struct {
	Version string      `yaml:"version"`
	Tables  []tableYAML `yaml:"tables"`
}

type tableYAML struct {
	Name       string           `yaml:"name"`
	PrimaryKey string           `yaml:"primaryKey,omitempty"`
	Indexes    []string         `yaml:"indexes,omitempty"`
	Fields     []fieldYAML      `yaml:"fields"`
	Seed       []map[string]any `yaml:"seed,omitempty"`
}

type fieldYAML struct {
	Name          string `yaml:"name"`
	Type          string `yaml:"type"`
	Size          int    `yaml:"size,omitempty"`
	AutoIncrement bool   `yaml:"autoIncrement,omitempty"`
	PrimaryKey    bool   `yaml:"primaryKey,omitempty"`
	Default       any    `yaml:"default,omitempty"`
	Generate      string `yaml:"generate,omitempty"`
	SQLType       string `yaml:"sqlType,omitempty"`
	Reserved      bool   `yaml:"reserved,omitempty"`
	ClientOnly    bool   `yaml:"clientOnly,omitempty"`
	ServerOnly    bool   `yaml:"serverOnly,omitempty"`
}

var generators = map[string]func() any{
	"uuid": func() any { return uuid.NewString() },
	"now":  func() any { return time.Now().UTC() },
}

// EncodeYAML renders tables in the current file format. Function defaults
// and seeding hooks have no YAML form and are omitted.
func EncodeYAML(tables []schema.Table) ([]byte, error) {
	f := schemaFile{Version: currentVersion}
	for _, t := range tables {
		ty := tableYAML{Name: t.Name, PrimaryKey: t.PrimaryKey, Indexes: t.Indexes}
		for _, fd := range t.Fields {
			ty.Fields = append(ty.Fields, fieldYAML{
				Name:          fd.Name,
				Type:          string(fd.Type),
				Size:          fd.Size,
				AutoIncrement: fd.AutoIncrement,
				PrimaryKey:    fd.PrimaryKey,
				Default:       fd.Default,
				SQLType:       fd.SQLType,
				Reserved:      fd.Reserved,
				ClientOnly:    fd.ClientOnly,
				ServerOnly:    fd.ServerOnly,
			})
		}
		f.Tables = append(f.Tables, ty)
	}
	return yaml.Marshal(f)
}

// DecodeYAML parses a schema file. Every decoded table is validated.
func DecodeYAML(b []byte) ([]schema.Table, error) {
	var f schemaFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("decode schema file: %w", err)
	}
	if err := checkVersion(f.Version); err != nil {
		return nil, err
	}
	tables := make([]schema.Table, 0, len(f.Tables))
	for _, ty := range f.Tables {
		t := schema.Table{Name: ty.Name, PrimaryKey: ty.PrimaryKey, Indexes: ty.Indexes}
		for _, fy := range ty.Fields {
			fd, err := decodeField(ty.Name, fy)
			if err != nil {
				return nil, err
			}
			t.Fields = append(t.Fields, fd)
		}
		if len(ty.Seed) > 0 {
			t.OnCreate = seedRows(ty.Seed)
		}
		if err := t.Validate(); err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return tables, nil
}

func decodeField(table string, fy fieldYAML) (schema.Field, error) {
	typ, err := schema.ParseFieldType(fy.Type)
	if err != nil {
		return schema.Field{}, fmt.Errorf("%s.%s: %w", table, fy.Name, err)
	}
	fd := schema.Field{
		Name:          fy.Name,
		Type:          typ,
		Size:          fy.Size,
		AutoIncrement: fy.AutoIncrement,
		PrimaryKey:    fy.PrimaryKey,
		Default:       fy.Default,
		SQLType:       fy.SQLType,
		Reserved:      fy.Reserved,
		ClientOnly:    fy.ClientOnly,
		ServerOnly:    fy.ServerOnly,
	}
	if fy.Generate != "" {
		gen, ok := generators[strings.ToLower(fy.Generate)]
		if !ok {
			return schema.Field{}, fmt.Errorf("%w: %s.%s: unknown generator %q", schema.ErrInvalidSchema, table, fy.Name, fy.Generate)
		}
		fd.DefaultFunc = gen
	}
	return fd, nil
}

func checkVersion(v string) error {
	if v == "" {
		return nil
	}
	got, err := semver.NewVersion(normalize(v))
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrUnsupportedVersion, v, err)
	}
	cur := semver.MustParse(normalize(currentVersion))
	if got.Major() > cur.Major() {
		return fmt.Errorf("%w: %s (supported %s)", ErrUnsupportedVersion, v, currentVersion)
	}
	return nil
}

func normalize(s string) string {
	if strings.Count(s, ".") == 1 {
		return s + ".0"
	}
	return s
}

func seedRows(rows []map[string]any) schema.SeedFunc {
	return func(ctx context.Context, s schema.Seeder) error {
		for i, r := range rows {
			if err := s.Insert(ctx, r); err != nil {
				return fmt.Errorf("seed row %d: %w", i, err)
			}
		}
		return nil
	}
}
