package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/kartikbazzad/bunbase/trinodbc/pkg/client"
)

// session is one server-side connection with a single cursor.
type session struct {
	c        *client.Client
	connID   string
	cursorID string
}

func openSession(ctx context.Context, c *client.Client, params client.Params) (*session, error) {
	connID, err := c.OpenConnection(ctx, params)
	if err != nil {
		return nil, err
	}
	cursorID, err := c.OpenCursor(ctx, connID)
	if err != nil {
		_, _ = c.CloseConnection(context.Background(), connID)
		return nil, err
	}
	return &session{c: c, connID: connID, cursorID: cursorID}, nil
}

// close releases the connection; the server closes the cursor with it.
func (s *session) close() {
	_, _ = s.c.CloseConnection(context.Background(), s.connID)
}

// run executes query and prints every page of the result to w.
func (s *session) run(ctx context.Context, w io.Writer, query string, pageSize int) error {
	res, err := s.c.Execute(ctx, s.cursorID, query, nil)
	if err != nil {
		return err
	}

	names := make([]string, len(res.Columns))
	for i, col := range res.Columns {
		names[i] = col.Name
	}

	var rows [][]string
	for {
		page, err := s.c.Fetch(ctx, s.cursorID, pageSize)
		if err != nil {
			return err
		}
		for _, r := range page.Rows {
			rows = append(rows, rowCells(names, r))
		}
		if !page.HasMore {
			break
		}
	}

	if len(names) == 0 {
		if res.RowCount >= 0 {
			fmt.Fprintf(w, "OK, %d rows affected\n", res.RowCount)
		} else {
			fmt.Fprintln(w, "OK")
		}
		return nil
	}
	return printTable(w, names, rows)
}

// rowCells renders one fetched row in column order.
func rowCells(names []string, row any) []string {
	switch r := row.(type) {
	case map[string]any:
		cells := make([]string, len(names))
		for i, n := range names {
			cells[i] = cell(r[n])
		}
		return cells
	case []any:
		cells := make([]string, len(r))
		for i, v := range r {
			cells[i] = cell(v)
		}
		return cells
	default:
		return []string{cell(r)}
	}
}

func cell(v any) string {
	if v == nil {
		return "NULL"
	}
	return fmt.Sprint(v)
}

func printTable(w io.Writer, names []string, rows [][]string) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(names, "\t"))
	sep := make([]string, len(names))
	for i, n := range names {
		sep[i] = strings.Repeat("-", max(len(n), 3))
	}
	fmt.Fprintln(tw, strings.Join(sep, "\t"))
	for _, r := range rows {
		fmt.Fprintln(tw, strings.Join(r, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	suffix := "s"
	if len(rows) == 1 {
		suffix = ""
	}
	_, err := fmt.Fprintf(w, "(%d row%s)\n", len(rows), suffix)
	return err
}
