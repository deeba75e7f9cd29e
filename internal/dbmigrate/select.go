package dbmigrate

import (
	"errors"

	"github.com/fdg312/coach-nutrition/internal/config"
)

const DefaultMigrationsDir = "migrations"

var (
	ErrNoDatabaseURL     = errors.New("no database URL configured (set DATABASE_URL_DIRECT or DATABASE_URL)")
	ErrDirectURLRequired = errors.New("DATABASE_URL_DIRECT is required for DDL/migrations")
)

// Target is the connection goose runs against.
type Target struct {
	URL     string
	Source  string // env var the URL came from
	Warning string
}

// SelectTarget picks the URL to migrate with: DIRECT, then DATABASE_URL,
// then POOLED with a warning. With strict set only DIRECT is accepted.
func SelectTarget(cfg *config.Config, strict bool) (Target, error) {
	candidates := []Target{
		{URL: cfg.DatabaseURLDirect, Source: "DATABASE_URL_DIRECT"},
		{URL: cfg.DatabaseURLRaw, Source: "DATABASE_URL"},
		{URL: cfg.DatabaseURLPooled, Source: "DATABASE_URL_POOLED",
			Warning: "using pooled connection for DDL is not recommended; set DATABASE_URL_DIRECT"},
	}
	if strict {
		candidates = candidates[:1]
	}

	for _, c := range candidates {
		if c.URL != "" {
			return c, nil
		}
	}
	if strict {
		return Target{}, ErrDirectURLRequired
	}
	return Target{}, ErrNoDatabaseURL
}
