package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/kartikbazzad/bunbase/trinodbc/pkg/client"
	"github.com/peterh/liner"
)

const (
	prompt         = "trinodbc> "
	continuePrompt = "       -> "
)

func historyPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".trinodbc_history")
}

func runShell(ctx context.Context, c *client.Client, params client.Params, pageSize int) error {
	s, err := openSession(ctx, c, params)
	if err != nil {
		return err
	}
	defer s.close()

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	hist := historyPath()
	if hist != "" {
		if f, err := os.Open(hist); err == nil {
			_, _ = line.ReadHistory(f)
			f.Close()
		}
		defer func() {
			if f, err := os.Create(hist); err == nil {
				_, _ = line.WriteHistory(f)
				f.Close()
			}
		}()
	}

	fmt.Printf("Connected (%s). End statements with ';', \\info shows the connection, \\q quits.\n", s.connID)

	var buf statementBuffer
	for {
		p := prompt
		if !buf.empty() {
			p = continuePrompt
		}
		input, err := line.Prompt(p)
		if errors.Is(err, liner.ErrPromptAborted) {
			buf.reset()
			continue
		}
		if errors.Is(err, io.EOF) {
			fmt.Println()
			return nil
		}
		if err != nil {
			return err
		}

		if buf.empty() {
			switch strings.TrimSpace(input) {
			case "":
				continue
			case `\q`, "quit", "exit":
				return nil
			case `\info`:
				line.AppendHistory(input)
				printInfo(ctx, os.Stdout, s)
				continue
			}
		}

		for _, stmt := range buf.add(input) {
			line.AppendHistory(stmt + ";")
			if err := s.run(ctx, os.Stdout, stmt, pageSize); err != nil {
				fmt.Fprintln(os.Stderr, "error:", err)
			}
		}
	}
}

func printInfo(ctx context.Context, w io.Writer, s *session) {
	info, err := s.c.ConnectionInfo(ctx, s.connID)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return
	}
	out, _ := json.MarshalIndent(info, "", "  ")
	fmt.Fprintf(w, "connection %s\n%s\n", s.connID, out)
}

// statementBuffer accumulates input lines and yields complete statements.
// A statement ends at a semicolon outside single quotes, double quotes and
// -- comments.
type statementBuffer struct {
	sb strings.Builder
}

func (b *statementBuffer) empty() bool {
	return strings.TrimSpace(b.sb.String()) == ""
}

func (b *statementBuffer) reset() {
	b.sb.Reset()
}

func (b *statementBuffer) add(line string) []string {
	if b.sb.Len() > 0 {
		b.sb.WriteByte('\n')
	}
	b.sb.WriteString(line)

	text := b.sb.String()
	var stmts []string
	var quote rune
	comment := false
	start := 0
	for i, r := range text {
		switch {
		case comment:
			if r == '\n' {
				comment = false
			}
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"':
			quote = r
		case r == '-' && strings.HasPrefix(text[i:], "--"):
			comment = true
		case r == ';':
			if stmt := strings.TrimSpace(text[start:i]); stmt != "" {
				stmts = append(stmts, stmt)
			}
			start = i + 1
		}
	}

	rest := text[start:]
	b.sb.Reset()
	if strings.TrimSpace(rest) != "" {
		b.sb.WriteString(strings.TrimLeft(rest, " \t\n"))
	}
	return stmts
}
