// Package migrations embeds the schema for each supported SQL dialect.
//
// ORDERING:
// Files are named NNNN_description.sql and applied in ascending version
// order. Each backend applies them inside its own transaction and records
// the version in schema_migrations, so a migration runs at most once.
package migrations

import (
	"embed"
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"
)

//go:embed postgres/*.sql sqlite/*.sql
var files embed.FS

// Dialect selects a migration directory.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// Migration is one versioned schema change.
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// Load returns the migrations for dialect sorted by version.
func Load(dialect Dialect) ([]Migration, error) {
	dir := string(dialect)
	entries, err := files.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("migrations: reading %s: %w", dir, err)
	}

	seen := make(map[int]string)
	var out []Migration
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}

		prefix, rest, ok := strings.Cut(name, "_")
		if !ok {
			return nil, fmt.Errorf("migrations: %s: missing version prefix", name)
		}
		version, err := strconv.Atoi(prefix)
		if err != nil {
			return nil, fmt.Errorf("migrations: %s: invalid version: %w", name, err)
		}
		if prev, dup := seen[version]; dup {
			return nil, fmt.Errorf("migrations: version %d used by %s and %s", version, prev, name)
		}
		seen[version] = name

		content, err := files.ReadFile(path.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("migrations: reading %s: %w", name, err)
		}

		out = append(out, Migration{
			Version: version,
			Name:    strings.TrimSuffix(rest, ".sql"),
			SQL:     string(content),
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}
