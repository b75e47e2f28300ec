package config

import (
	"github.com/vaibhaw-/BrokR/internal/brokr/dberr"
)

// Resolve maps an optional alias to exactly one descriptor.
//
// An explicit alias must exist in the configured set. When the alias is
// omitted: a lone configured database is used automatically; otherwise the
// configured default_db is used; otherwise resolution is ambiguous (zero
// databases, or several with no default) and fails rather than guessing.
func (c *Config) Resolve(alias string) (DatabaseCfg, error) {
	if alias != "" {
		db, ok := c.Databases[alias]
		if !ok {
			return DatabaseCfg{}, dberr.New(dberr.KindUnknownAlias, "unknown database alias %q", alias)
		}
		return db, nil
	}

	if len(c.Databases) == 1 {
		for _, db := range c.Databases {
			return db, nil
		}
	}

	if c.DefaultDB != "" {
		db, ok := c.Databases[c.DefaultDB]
		if !ok {
			return DatabaseCfg{}, dberr.New(dberr.KindUnknownAlias, "default_db %q is not a configured alias", c.DefaultDB)
		}
		return db, nil
	}

	return DatabaseCfg{}, dberr.New(dberr.KindAmbiguousDefault,
		"no database alias given and no unambiguous default (%d configured)", len(c.Databases))
}
