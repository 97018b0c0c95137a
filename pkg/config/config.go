package config

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// File is the on-disk configuration of schemactl.
type File struct {
	DSN           string   `yaml:"dsn,omitempty"`
	Driver        string   `yaml:"driver,omitempty"`
	Namespace     string   `yaml:"namespace,omitempty"`
	Transactional bool     `yaml:"transactional,omitempty"`
	StrictRenames bool     `yaml:"strictRenames,omitempty"`
	LogLevel      string   `yaml:"logLevel,omitempty"`
	LogFormat     string   `yaml:"logFormat,omitempty"`
	Files         []string `yaml:"files,omitempty"`
	MetricsAddr   string   `yaml:"metricsAddr,omitempty"`
}

// Path returns the default configuration path.
func Path() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".schemasync", "config.yaml"), nil
}

// Load reads the configuration at path, or at Path when path is empty.
// A missing file yields an empty configuration.
func Load(path string) (*File, error) {
	if path == "" {
		p, err := Path()
		if err != nil {
			return nil, err
		}
		path = p
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &File{}, nil
		}
		return nil, err
	}
	var f File
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// Save writes f to path atomically.
func Save(path string, f *File) error {
	if path == "" {
		p, err := Path()
		if err != nil {
			return err
		}
		path = p
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	b, err := yaml.Marshal(f)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
