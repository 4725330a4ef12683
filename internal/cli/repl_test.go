package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/eventql/eventql-sub000/internal/config"
	"github.com/eventql/eventql-sub000/internal/logger"
	"github.com/eventql/eventql-sub000/pkg/catalog"
	"github.com/eventql/eventql-sub000/pkg/runtime"
	"github.com/eventql/eventql-sub000/pkg/storage"
)

func newTestREPL(t *testing.T) (*REPL, *bytes.Buffer) {
	t.Helper()
	tbl := storage.NewMemTable("users", []storage.Field{
		{Name: "id", Type: catalog.TypeInteger},
		{Name: "name", Type: catalog.TypeString},
	})
	for i, name := range []string{"alice", "bob"} {
		if err := tbl.AddRow([]catalog.Value{catalog.NewInteger(int64(i + 1)), catalog.NewString(name)}); err != nil {
			t.Fatalf("AddRow: %v", err)
		}
	}
	repo := storage.NewTableRepository()
	repo.AddTable(tbl)

	var out bytes.Buffer
	repl := NewREPL(config.Default(), logger.NewNop(), runtime.NewRuntime(), repo)
	repl.SetOutput(&out)
	return repl, &out
}

func TestREPLCommands(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string // substrings that should appear in output
		fails    bool
	}{
		{
			name:     "help command",
			input:    "HELP;\n",
			expected: []string{"csql Commands", "\\dt"},
		},
		{
			name:     "select",
			input:    "SELECT name FROM users WHERE id = 2;\n",
			expected: []string{"| name |", "| bob  |", "1 row(s)"},
		},
		{
			name:     "multi-line select",
			input:    "SELECT count(1)\nFROM users\n;\n",
			expected: []string{"| 2 ", "1 row(s)"},
		},
		{
			name:     "list tables",
			input:    "\\dt\n",
			expected: []string{"table_name", "users"},
		},
		{
			name:     "describe table",
			input:    "\\d users\n",
			expected: []string{"column_name", "id", "INTEGER", "STRING"},
		},
		{
			name:     "explain",
			input:    "\\explain SELECT id FROM users\n",
			expected: []string{"explain", "SequentialScan"},
		},
		{
			name:     "timing toggle",
			input:    "\\timing\nSELECT 1;\n",
			expected: []string{"Timing is on.", "Time: "},
		},
		{
			name:     "config",
			input:    "\\config\n",
			expected: []string{"Constant Folding: true"},
		},
		{
			name:     "unknown table",
			input:    "SELECT * FROM nope;\n",
			expected: []string{"TableNotFoundError: table not found: 'nope'"},
			fails:    true,
		},
		{
			name:     "parse error",
			input:    "SELECT FROM;\n",
			expected: []string{"ParseError"},
			fails:    true,
		},
		{
			name:     "unknown backslash command",
			input:    "\\foo\n",
			expected: []string{"Unknown command: \\foo"},
			fails:    true,
		},
		{
			name:     "comments are skipped",
			input:    "-- a comment\nSELECT 7;\n",
			expected: []string{"| 7 |"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repl, out := newTestREPL(t)
			err := repl.RunScript(strings.NewReader(tt.input))
			if tt.fails && err == nil {
				t.Error("expected RunScript to report a failure")
			}
			if !tt.fails && err != nil {
				t.Fatalf("RunScript() error = %v\n%s", err, out.String())
			}
			for _, exp := range tt.expected {
				if !strings.Contains(out.String(), exp) {
					t.Errorf("expected output to contain %q, got:\n%s", exp, out.String())
				}
			}
		})
	}
}

func TestREPLExitStopsScript(t *testing.T) {
	repl, out := newTestREPL(t)
	if err := repl.RunScript(strings.NewReader("SELECT 1;\nEXIT;\nSELECT 'after';\n")); err != nil {
		t.Fatalf("RunScript() error = %v", err)
	}
	if strings.Contains(out.String(), "after") {
		t.Errorf("statements after EXIT should not run:\n%s", out.String())
	}
}

func TestREPLTrailingStatementWithoutSemicolon(t *testing.T) {
	repl, out := newTestREPL(t)
	if err := repl.RunScript(strings.NewReader("SELECT 'tail'")); err != nil {
		t.Fatalf("RunScript() error = %v", err)
	}
	if !strings.Contains(out.String(), "tail") {
		t.Errorf("unterminated final statement should still run:\n%s", out.String())
	}
}

func TestQuoteTableName(t *testing.T) {
	tests := map[string]string{
		"users":    "`users`",
		"users;":   "`users`",
		"`events`": "`events`",
	}
	for in, want := range tests {
		if got := quoteTableName(in); got != want {
			t.Errorf("quoteTableName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTableNames(t *testing.T) {
	repl, _ := newTestREPL(t)
	names := repl.tableNames("")
	if len(names) != 1 || names[0] != "users" {
		t.Errorf("tableNames = %v", names)
	}
}
