package sqldb

import (
	"net"
	"net/url"
	"strconv"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/kartikbazzad/bunbase/trinodbc/internal/engine"
)

// Postgres returns the dialect for PostgreSQL servers, driven through pgx.
// catalog selects the database and schema becomes the search_path; session
// properties are sent as runtime parameters.
func Postgres() Dialect {
	return Dialect{
		Name:       "postgres",
		DriverName: "pgx",
		Build:      postgresDSN,
	}
}

func postgresDSN(p engine.Params) (string, func(), error) {
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(p.Host, strconv.Itoa(p.Port)),
		User:   url.User(p.User),
		Path:   "/" + p.Catalog,
	}
	if p.HasCredentials() {
		u.User = url.UserPassword(p.User, p.Password)
	}

	q := url.Values{}
	switch {
	case p.HTTPScheme != "https":
		q.Set("sslmode", "disable")
	case !p.VerifyTLS():
		q.Set("sslmode", "require")
	default:
		q.Set("sslmode", "verify-full")
	}
	if p.Schema != "" {
		q.Set("search_path", p.Schema)
	}
	for k, v := range p.SessionProperties {
		q.Set(k, v)
	}
	q.Set("application_name", TrinoSource)
	u.RawQuery = q.Encode()

	return u.String(), nil, nil
}
