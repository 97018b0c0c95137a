package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/faciam-dev/schemasync/internal/logger"
	"github.com/faciam-dev/schemasync/pkg/config"
	"github.com/faciam-dev/schemasync/pkg/driver"
	"github.com/faciam-dev/schemasync/pkg/schema"
	"github.com/faciam-dev/schemasync/pkg/schema/codec"
)

// setup resolves configuration and installs the process logger.
func setup(cmd *cobra.Command) (config.Resolved, *zap.SugaredLogger, error) {
	r, err := config.Resolve(cmd)
	if err != nil {
		return config.Resolved{}, nil, err
	}
	l, err := logger.New(r.LogLevel, r.LogFormat)
	if err != nil {
		return config.Resolved{}, nil, err
	}
	logger.Set(l)
	return r, l, nil
}

func connect(ctx context.Context, r config.Resolved) (*driver.SQL, func(), error) {
	if r.DSN == "" {
		return nil, nil, errors.New("database DSN not set (--db, SCHEMASYNC_DSN or config)")
	}
	name := r.Driver
	if name == "" {
		name = "postgres"
	}
	db, err := driver.Open(ctx, name, r.DSN)
	if err != nil {
		return nil, nil, err
	}
	logger.L.Debugw("connected", "driver", name, "namespace", r.Namespace)
	return driver.New(db), func() { db.Close() }, nil
}

func loadTables(files []string) ([]schema.Table, error) {
	if len(files) == 0 {
		return nil, errors.New("no schema files given (--file, SCHEMASYNC_FILES or config)")
	}
	var out []schema.Table
	for _, f := range files {
		b, err := os.ReadFile(f)
		if err != nil {
			return nil, err
		}
		tables, err := codec.DecodeYAML(b)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f, err)
		}
		out = append(out, tables...)
	}
	return out, nil
}

func outputFormat(cmd *cobra.Command) (string, error) {
	out, _ := cmd.Flags().GetString("output")
	switch out {
	case "", "table":
		return "table", nil
	case "json", "yaml":
		return out, nil
	}
	return "", fmt.Errorf("--output must be table, json or yaml")
}
