package util

import (
	"fmt"
	"net/url"
	"strings"
)

// DetectDriver returns the database/sql driver name for a DSN. URL DSNs are
// matched by scheme; key=value DSNs are assumed to be PostgreSQL.
func DetectDriver(dsn string) (string, error) {
	if !strings.Contains(dsn, "://") {
		if strings.Contains(dsn, "=") {
			return "postgres", nil
		}
		return "", fmt.Errorf("cannot detect driver for dsn")
	}
	parsedURL, err := url.Parse(dsn)
	if err != nil {
		return "", err
	}
	switch parsedURL.Scheme {
	case "postgres", "postgresql":
		return "postgres", nil
	case "pgx":
		return "pgx", nil
	default:
		return "", fmt.Errorf("unsupported scheme: %s", parsedURL.Scheme)
	}
}

// NormalizeDSN rewrites pgx:// DSNs into the postgres:// form both drivers accept.
func NormalizeDSN(dsn string) string {
	if strings.HasPrefix(dsn, "pgx://") {
		return "postgres://" + strings.TrimPrefix(dsn, "pgx://")
	}
	return dsn
}
