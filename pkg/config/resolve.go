package config

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/faciam-dev/schemasync/pkg/util"
)

// Resolved is the effective configuration after merging flags, environment
// and the config file, in that order of precedence.
type Resolved struct {
	DSN           string
	Driver        string
	Namespace     string
	Transactional bool
	StrictRenames bool
	LogLevel      string
	LogFormat     string
	Files         []string
	MetricsAddr   string
}

// Resolve merges the flags of cmd with SCHEMASYNC_* variables and the file
// named by --config.
func Resolve(cmd *cobra.Command) (Resolved, error) {
	path := stringFlag(cmd, "config")
	cfg, err := Load(path)
	if err != nil {
		return Resolved{}, fmt.Errorf("load config: %w", err)
	}

	r := Resolved{
		DSN:         firstNonEmpty(stringFlag(cmd, "db"), util.GetEnv("SCHEMASYNC_DSN", ""), cfg.DSN),
		Driver:      firstNonEmpty(stringFlag(cmd, "driver"), util.GetEnv("SCHEMASYNC_DRIVER", ""), cfg.Driver),
		Namespace:   firstNonEmpty(stringFlag(cmd, "namespace"), util.GetEnv("SCHEMASYNC_NAMESPACE", ""), cfg.Namespace, "public"),
		LogLevel:    firstNonEmpty(stringFlag(cmd, "log-level"), util.GetEnv("SCHEMASYNC_LOG_LEVEL", ""), cfg.LogLevel, "info"),
		LogFormat:   firstNonEmpty(stringFlag(cmd, "log-format"), util.GetEnv("SCHEMASYNC_LOG_FORMAT", ""), cfg.LogFormat, "console"),
		MetricsAddr: firstNonEmpty(stringFlag(cmd, "metrics-addr"), util.GetEnv("SCHEMASYNC_METRICS_ADDR", ""), cfg.MetricsAddr),
	}
	r.Transactional = boolFlag(cmd, "transactional", util.GetEnvBool("SCHEMASYNC_TRANSACTIONAL", cfg.Transactional))
	r.StrictRenames = boolFlag(cmd, "strict", util.GetEnvBool("SCHEMASYNC_STRICT_RENAMES", cfg.StrictRenames))

	r.Files = cfg.Files
	if env := util.GetEnvList("SCHEMASYNC_FILES"); len(env) > 0 {
		r.Files = env
	}
	if f := cmd.Flags().Lookup("file"); f != nil && f.Changed {
		r.Files, _ = cmd.Flags().GetStringSlice("file")
	}

	if r.Driver == "" && r.DSN != "" {
		d, err := util.DetectDriver(r.DSN)
		if err != nil {
			return Resolved{}, err
		}
		r.Driver = d
	}
	r.DSN = util.NormalizeDSN(r.DSN)
	return r, nil
}

func stringFlag(cmd *cobra.Command, name string) string {
	f := cmd.Flags().Lookup(name)
	if f == nil {
		return ""
	}
	return f.Value.String()
}

func boolFlag(cmd *cobra.Command, name string, def bool) bool {
	f := cmd.Flags().Lookup(name)
	if f == nil || !f.Changed {
		return def
	}
	v, _ := cmd.Flags().GetBool(name)
	return v
}

func firstNonEmpty(ss ...string) string {
	for _, s := range ss {
		if strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}
