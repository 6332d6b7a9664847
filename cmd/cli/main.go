package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kartikbazzad/bunbase/trinodbc/internal/auth"
	"github.com/kartikbazzad/bunbase/trinodbc/pkg/client"
	"github.com/spf13/cobra"
)

const defaultServer = "http://localhost:8991"

var (
	serverURL string
	token     string
	timeout   time.Duration

	conn     connFlags
	pageSize int
)

// connFlags are the connection parameters shared by query and shell.
type connFlags struct {
	engine     string
	host       string
	port       int
	user       string
	password   string
	catalog    string
	schema     string
	httpScheme string
	insecure   bool
	session    []string
}

func (f connFlags) params() (client.Params, error) {
	p := client.Params{
		Engine:     f.engine,
		Host:       f.host,
		Port:       f.port,
		User:       f.user,
		Password:   f.password,
		Catalog:    f.catalog,
		Schema:     f.schema,
		HTTPScheme: f.httpScheme,
	}
	if f.insecure {
		v := false
		p.Verify = &v
	}
	if len(f.session) > 0 {
		p.SessionProperties = make(map[string]string, len(f.session))
		for _, kv := range f.session {
			k, v, ok := strings.Cut(kv, "=")
			if !ok || k == "" {
				return client.Params{}, fmt.Errorf("invalid session property %q, want key=value", kv)
			}
			p.SessionProperties[k] = v
		}
	}
	return p, nil
}

var rootCmd = &cobra.Command{
	Use:           "trinodbc",
	Short:         "trinodbc command-line client",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func newClient() *client.Client {
	c := client.New(serverURL, client.WithToken(token))
	c.HTTPClient.Timeout = timeout
	return c
}

func addConnFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&conn.engine, "engine", "", "Query engine: trino, postgres or sqlite (server default trino)")
	f.StringVar(&conn.host, "host", "", "Engine host")
	f.IntVar(&conn.port, "port", 0, "Engine port")
	f.StringVar(&conn.user, "user", "", "Engine user")
	f.StringVar(&conn.password, "password", os.Getenv("TRINODBC_PASSWORD"), "Engine password (or TRINODBC_PASSWORD)")
	f.StringVar(&conn.catalog, "catalog", "", "Catalog (database file for sqlite)")
	f.StringVar(&conn.schema, "schema", "", "Schema")
	f.StringVar(&conn.httpScheme, "http-scheme", "", "http or https")
	f.BoolVar(&conn.insecure, "insecure", false, "Skip TLS certificate verification")
	f.StringArrayVar(&conn.session, "session", nil, "Session property key=value (repeatable)")
	f.IntVar(&pageSize, "page-size", 1000, "Rows per fetch")
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&serverURL, "server", envOr("TRINODBC_SERVER", defaultServer), "trinodbc server URL (or TRINODBC_SERVER)")
	pf.StringVar(&token, "token", os.Getenv("TRINODBC_TOKEN"), "JWT bearer token (or TRINODBC_TOKEN)")
	pf.DurationVar(&timeout, "timeout", 5*time.Minute, "HTTP request timeout")

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show server status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := newClient().Status(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %s\n", st.Name, st.Version, st.Status)
			return nil
		},
	}

	queryCmd := &cobra.Command{
		Use:   "query SQL",
		Short: "Run one statement and print every row",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := conn.params()
			if err != nil {
				return err
			}
			s, err := openSession(cmd.Context(), newClient(), params)
			if err != nil {
				return err
			}
			defer s.close()
			return s.run(cmd.Context(), cmd.OutOrStdout(), args[0], pageSize)
		},
	}
	addConnFlags(queryCmd)

	shellCmd := &cobra.Command{
		Use:   "shell",
		Short: "Interactive SQL shell",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := conn.params()
			if err != nil {
				return err
			}
			return runShell(cmd.Context(), newClient(), params, pageSize)
		},
	}
	addConnFlags(shellCmd)

	var (
		secret  string
		subject string
		ttl     time.Duration
	)
	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for a server started with TRINODBC_AUTH_JWT_SECRET",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tok, err := auth.NewToken([]byte(secret), subject, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	tokenCmd.Flags().StringVar(&secret, "secret", os.Getenv("TRINODBC_AUTH_JWT_SECRET"), "Signing secret (or TRINODBC_AUTH_JWT_SECRET)")
	tokenCmd.Flags().StringVar(&subject, "subject", "trinodbc-cli", "Token subject")
	tokenCmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")

	rootCmd.AddCommand(statusCmd, queryCmd, shellCmd, tokenCmd)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
