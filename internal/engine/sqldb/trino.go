package sqldb

import (
	"crypto/tls"
	"net"
	"net/http"
	"net/url"
	"strconv"

	"github.com/google/uuid"
	"github.com/kartikbazzad/bunbase/trinodbc/internal/engine"
	"github.com/trinodb/trino-go-client/trino"
)

// TrinoSource is reported to the coordinator as the client source.
const TrinoSource = "trinodbc"

// Trino returns the dialect for Trino coordinators.
func Trino() Dialect {
	return Dialect{
		Name:       "trino",
		DriverName: "trino",
		Build:      trinoDSN,
	}
}

func trinoDSN(p engine.Params) (string, func(), error) {
	server := url.URL{
		Scheme: p.HTTPScheme,
		Host:   net.JoinHostPort(p.Host, strconv.Itoa(p.Port)),
		User:   url.User(p.User),
	}
	if p.HasCredentials() {
		server.User = url.UserPassword(p.User, p.Password)
	}

	cfg := trino.Config{
		ServerURI:         server.String(),
		Source:            TrinoSource,
		Catalog:           p.Catalog,
		Schema:            p.Schema,
		SessionProperties: p.SessionProperties,
	}

	release := func() {}
	if !p.VerifyTLS() {
		// A per-session client keeps the insecure transport from leaking
		// into other sessions.
		name := "trinodbc-" + uuid.NewString()
		client := &http.Client{
			Transport: &http.Transport{
				Proxy:           http.ProxyFromEnvironment,
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec // requested by the client via verify=false
			},
		}
		if err := trino.RegisterCustomClient(name, client); err != nil {
			return "", nil, err
		}
		cfg.CustomClientName = name
		release = func() { trino.DeregisterCustomClient(name) }
	}

	dsn, err := cfg.FormatDSN()
	if err != nil {
		release()
		return "", nil, err
	}
	return dsn, release, nil
}
