package sqldb

import (
	"net/url"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/kartikbazzad/bunbase/trinodbc/internal/engine"
	_ "modernc.org/sqlite"
)

// SQLite returns the dialect for embedded SQLite databases. catalog is the
// database file; without one every session gets its own in-memory database,
// shared between the session's pooled connections. Session properties are
// applied as pragmas.
func SQLite() Dialect {
	return Dialect{
		Name:       "sqlite",
		DriverName: "sqlite",
		Build:      sqliteDSN,
	}
}

func sqliteDSN(p engine.Params) (string, func(), error) {
	q := url.Values{}
	name := p.Catalog
	if name == "" {
		name = uuid.NewString()
		q.Set("mode", "memory")
		q.Set("cache", "shared")
	}

	keys := make([]string, 0, len(p.SessionProperties))
	for k := range p.SessionProperties {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		q.Add("_pragma", k+"("+p.SessionProperties[k]+")")
	}

	dsn := "file:" + strings.TrimPrefix(name, "file:")
	if len(q) > 0 {
		dsn += "?" + q.Encode()
	}
	return dsn, nil, nil
}
