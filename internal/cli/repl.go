// Package cli provides the interactive csql shell.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/eventql/eventql-sub000/internal/config"
	"github.com/eventql/eventql-sub000/internal/logger"
	"github.com/eventql/eventql-sub000/pkg/catalog"
	"github.com/eventql/eventql-sub000/pkg/runtime"
	"github.com/eventql/eventql-sub000/pkg/storage"
)

const (
	prompt         = "csql> "
	continuePrompt = "   -> "
)

// REPL implements the Read-Eval-Print Loop of the csql shell.
type REPL struct {
	config *config.Config
	log    *logger.Logger
	rt     *runtime.Runtime
	tables storage.TableProvider
	out    io.Writer
	timing bool
	rl     *readline.Instance

	onResult func(commandResult)
}

// NewREPL creates a shell that queries tables.
func NewREPL(cfg *config.Config, log *logger.Logger, rt *runtime.Runtime, tables storage.TableProvider) *REPL {
	return &REPL{
		config: cfg,
		log:    log,
		rt:     rt,
		tables: tables,
		out:    os.Stdout,
	}
}

// SetOutput redirects query results and messages.
func (r *REPL) SetOutput(w io.Writer) {
	r.out = w
}

// Run starts the REPL loop
func (r *REPL) Run() error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		HistoryFile:     getHistoryFile(),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete:    r.newCompleter(),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize readline: %w", err)
	}
	defer rl.Close()
	r.rl = rl

	r.printWelcome()

	var buf strings.Builder
	for {
		if buf.Len() > 0 {
			rl.SetPrompt(continuePrompt)
		} else {
			rl.SetPrompt(prompt)
		}

		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			if buf.Len() > 0 {
				buf.Reset()
				fmt.Fprintln(r.out, "^C")
			}
			continue
		} else if err == io.EOF {
			fmt.Fprintln(r.out, "\nGoodbye!")
			return nil
		} else if err != nil {
			return fmt.Errorf("readline error: %w", err)
		}

		if r.handleLine(&buf, line) {
			fmt.Fprintln(r.out, "Goodbye!")
			return nil
		}
	}
}

// RunScript executes the statements read from in without prompting. It
// stops at EOF or an exit command and reports whether any command failed.
func (r *REPL) RunScript(in io.Reader) error {
	var buf strings.Builder
	failed := 0
	r.onResult = func(res commandResult) {
		if res == commandError {
			failed++
		}
	}
	defer func() { r.onResult = nil }()

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		if r.handleLine(&buf, scanner.Text()) {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	if rest := strings.TrimSpace(buf.String()); rest != "" {
		r.record(r.processCommand(rest))
	}
	if failed > 0 {
		return fmt.Errorf("%d command(s) failed", failed)
	}
	return nil
}

// handleLine appends line to buf and runs the buffered input once it is
// complete. Backslash commands run immediately, SQL waits for the closing ;.
func (r *REPL) handleLine(buf *strings.Builder, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "--") {
		return false
	}
	buf.WriteString(line)
	input := buf.String()
	if !strings.HasPrefix(input, "\\") && !strings.HasSuffix(input, ";") {
		buf.WriteString(" ")
		return false
	}
	buf.Reset()

	res := r.processCommand(input)
	r.record(res)
	return res == commandExit
}

func (r *REPL) record(res commandResult) {
	if r.onResult != nil {
		r.onResult(res)
	}
}

type commandResult int

const (
	commandOK commandResult = iota
	commandExit
	commandError
)

func (r *REPL) processCommand(input string) commandResult {
	input = strings.TrimSpace(input)
	if strings.HasPrefix(input, "\\") {
		return r.handleBackslashCommand(input)
	}

	switch strings.ToUpper(strings.TrimSuffix(input, ";")) {
	case "EXIT", "QUIT":
		return commandExit
	case "HELP":
		r.printHelp()
		return commandOK
	}
	return r.runQuery(input)
}

func (r *REPL) handleBackslashCommand(input string) commandResult {
	input = strings.TrimSuffix(strings.TrimSpace(input), ";")
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return commandOK
	}

	switch cmd := strings.ToLower(parts[0]); cmd {
	case "\\q", "\\quit", "\\exit":
		return commandExit

	case "\\?", "\\help":
		r.printHelp()
		return commandOK

	case "\\dt", "\\tables":
		return r.runQuery("SHOW TABLES")

	case "\\d":
		if len(parts) < 2 {
			fmt.Fprintln(r.out, "Usage: \\d <table_name>")
			return commandError
		}
		return r.runQuery("DESCRIBE " + quoteTableName(parts[1]))

	case "\\explain":
		if len(parts) < 2 {
			fmt.Fprintln(r.out, "Usage: \\explain <query>")
			return commandError
		}
		return r.runQuery("EXPLAIN " + strings.TrimSpace(input[len(parts[0]):]))

	case "\\timing":
		r.timing = !r.timing
		state := "off"
		if r.timing {
			state = "on"
		}
		fmt.Fprintf(r.out, "Timing is %s.\n", state)
		return commandOK

	case "\\config":
		r.printConfig()
		return commandOK

	case "\\clear":
		fmt.Fprint(r.out, "\033[H\033[2J")
		return commandOK

	default:
		fmt.Fprintf(r.out, "Unknown command: %s\n", cmd)
		fmt.Fprintln(r.out, "Type \\? for help")
		return commandError
	}
}

// runQuery executes every statement of query and prints one table per
// statement.
func (r *REPL) runQuery(query string) commandResult {
	ctx := context.Background()
	if r.config != nil && r.config.Query.TimeoutSec > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(r.config.Query.TimeoutSec)*time.Second)
		defer cancel()
	}

	start := time.Now()
	results, err := r.rt.Execute(ctx, r.tables, query)
	for _, res := range results {
		if perr := res.DebugPrint(r.out); perr != nil {
			return commandError
		}
	}
	if err != nil {
		if r.log != nil {
			r.log.Debug("query failed", "query", query, "error", err)
		}
		fmt.Fprintf(r.out, "%s: %v\n", catalog.KindOf(err), err)
		return commandError
	}
	if r.timing {
		fmt.Fprintf(r.out, "Time: %s\n", time.Since(start).Round(time.Microsecond))
	}
	return commandOK
}

func quoteTableName(name string) string {
	if strings.HasPrefix(name, "`") {
		return name
	}
	return "`" + strings.TrimSuffix(name, ";") + "`"
}

func (r *REPL) printWelcome() {
	fmt.Fprintln(r.out, "csql interactive shell")
	fmt.Fprintln(r.out, "Type HELP; or \\? for available commands")
}

func (r *REPL) printHelp() {
	fmt.Fprintln(r.out, `
csql Commands
=============

Queries:
  SELECT ... FROM table [WHERE] [GROUP BY] [ORDER BY] [LIMIT]
  SELECT fn(col) WITHIN RECORD FROM table
  SHOW TABLES
  DESCRIBE table
  EXPLAIN SELECT ...

Backslash Commands:
  \dt, \tables                     List all tables
  \d <table>                       Describe a table
  \explain <query>                 Show the query plan
  \timing                          Toggle query timing
  \config                          Show configuration
  \clear                           Clear screen
  \?, \help                        Show this help
  \q, \quit                        Exit

Note: queries must end with ; (semicolon)
      Backslash commands do not need ;`)
}

func (r *REPL) printConfig() {
	if r.config == nil {
		fmt.Fprintln(r.out, "no configuration loaded")
		return
	}
	fmt.Fprintln(r.out, "\nCurrent Configuration")
	fmt.Fprintln(r.out, "=====================")
	fmt.Fprintf(r.out, "Query:\n")
	fmt.Fprintf(r.out, "  Constant Folding: %t\n", r.config.Query.ConstantFolding)
	fmt.Fprintf(r.out, "  Timeout:          %ds\n", r.config.Query.TimeoutSec)
	fmt.Fprintf(r.out, "\nTables:\n")
	for _, t := range r.config.Tables {
		fmt.Fprintf(r.out, "  %-16s  %s (%s)\n", t.Name, t.Path, t.Format)
	}
	fmt.Fprintf(r.out, "\nLogging:\n")
	fmt.Fprintf(r.out, "  Level:            %s\n", r.config.Log.Level)
	fmt.Fprintf(r.out, "  Format:           %s\n", r.config.Log.Format)
	fmt.Fprintf(r.out, "  Output:           %s\n", r.config.Log.Output)
	fmt.Fprintln(r.out)
}

func getHistoryFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return home + "/.csql_history"
}

func (r *REPL) tableNames(string) []string {
	var names []string
	if r.tables == nil {
		return names
	}
	for _, t := range r.tables.ListTables() {
		names = append(names, t.Name)
	}
	return names
}

// newCompleter creates an auto-completer for the REPL
func (r *REPL) newCompleter() *readline.PrefixCompleter {
	return readline.NewPrefixCompleter(
		readline.PcItem("SELECT"),
		readline.PcItem("SHOW", readline.PcItem("TABLES")),
		readline.PcItem("DESCRIBE", readline.PcItemDynamic(r.tableNames)),
		readline.PcItem("EXPLAIN", readline.PcItem("SELECT")),
		readline.PcItem("HELP"),
		readline.PcItem("EXIT"),
		readline.PcItem("QUIT"),
		readline.PcItem("\\dt"),
		readline.PcItem("\\d", readline.PcItemDynamic(r.tableNames)),
		readline.PcItem("\\explain"),
		readline.PcItem("\\timing"),
		readline.PcItem("\\config"),
		readline.PcItem("\\clear"),
		readline.PcItem("\\help"),
		readline.PcItem("\\q"),
	)
}
