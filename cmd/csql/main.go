// csql - SQL queries over CSV, JSON, YAML and Parquet files
// Main entry point for the shell and the query server.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/eventql/eventql-sub000/internal/cli"
	"github.com/eventql/eventql-sub000/internal/config"
	"github.com/eventql/eventql-sub000/internal/logger"
	"github.com/eventql/eventql-sub000/internal/server"
	"github.com/eventql/eventql-sub000/pkg/catalog"
	"github.com/eventql/eventql-sub000/pkg/runtime"
	"github.com/eventql/eventql-sub000/pkg/storage"
)

var (
	version   = "0.1.0"
	buildDate = "dev"

	cfgFile      string
	logLevel     string
	execute      string
	scriptFile   string
	outputFormat string
	noFolding    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "csql",
		Short: "csql - SQL over flat and nested data files",
		Long: `csql runs SELECT queries over CSV, JSON, YAML and Parquet files,
including aggregation over nested records with WITHIN RECORD.

Start the interactive shell:
  csql --config csql.yaml

Run a single query:
  csql -e "SELECT count(1) FROM events"`,
		Run: runShell,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&cfgFile, "config", "c", "", "config file path")
	flags.StringVar(&logLevel, "log-level", "", "override the configured log level")
	flags.BoolVar(&noFolding, "no-constant-folding", false, "disable constant folding in the planner")
	rootCmd.Flags().StringVarP(&execute, "execute", "e", "", "execute the given statements and exit")
	rootCmd.Flags().StringVarP(&scriptFile, "file", "f", "", "execute statements from a file and exit")

	queryCmd := &cobra.Command{
		Use:   "query <sql>",
		Short: "Execute statements and print the results",
		Args:  cobra.ExactArgs(1),
		Run:   runQuery,
	}
	queryCmd.Flags().StringVarP(&outputFormat, "output", "o", "table", "output format: table or json")
	rootCmd.AddCommand(queryCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "eval <expression>",
		Short: "Evaluate a constant expression",
		Args:  cobra.ExactArgs(1),
		Run:   runEval,
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "tables",
		Short: "List the configured tables",
		Run: func(cmd *cobra.Command, args []string) {
			env := setup()
			defer env.close()
			runStatements(env, "SHOW TABLES")
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP query server",
		Run:   runServer,
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "hash-password <password>",
		Short: "Print a bcrypt hash for the server users section",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			hash, err := server.HashPassword(args[0])
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			fmt.Println(hash)
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("csql %s (built %s)\n", version, buildDate)
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "init [config-file]",
		Short: "Write a default configuration file",
		Args:  cobra.MaximumNArgs(1),
		Run:   initConfig,
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type environment struct {
	cfg  *config.Config
	log  *logger.Logger
	rt   *runtime.Runtime
	repo *storage.TableRepository
}

func (e *environment) close() {
	_ = e.log.Sync()
}

// setup loads the configuration, creates the logger and registers every
// configured table. It exits the process on failure.
func setup() *environment {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if noFolding {
		cfg.Query.ConstantFolding = false
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format, cfg.Log.Output)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		os.Exit(1)
	}

	repo := storage.NewTableRepository()
	if err := config.LoadTables(repo, cfg.Tables, log); err != nil {
		log.Error("Failed to load tables", "error", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	rt := runtime.NewRuntime(
		runtime.WithLogger(log.Named("runtime")),
		runtime.WithConstantFolding(cfg.Query.ConstantFolding),
	)
	return &environment{cfg: cfg, log: log, rt: rt, repo: repo}
}

func runShell(cmd *cobra.Command, args []string) {
	env := setup()
	defer env.close()

	repl := cli.NewREPL(env.cfg, env.log, env.rt, env.repo)
	switch {
	case execute != "":
		runStatements(env, execute)
		return
	case scriptFile != "":
		f, err := os.Open(scriptFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		if err := repl.RunScript(f); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	env.log.Info("Starting csql shell", "version", version, "tables", len(env.cfg.Tables))
	if err := repl.Run(); err != nil {
		env.log.Error("REPL error", "error", err)
		os.Exit(1)
	}
}

func runQuery(cmd *cobra.Command, args []string) {
	env := setup()
	defer env.close()
	runStatements(env, args[0])
}

func queryContext(cfg *config.Config) (context.Context, context.CancelFunc) {
	if cfg.Query.TimeoutSec > 0 {
		return context.WithTimeout(context.Background(), time.Duration(cfg.Query.TimeoutSec)*time.Second)
	}
	return context.WithCancel(context.Background())
}

func runStatements(env *environment, query string) {
	ctx, cancel := queryContext(env.cfg)
	defer cancel()

	results, err := env.rt.Execute(ctx, env.repo, query)
	if outputFormat == "json" {
		printJSON(results)
	} else {
		for _, r := range results {
			_ = r.DebugPrint(os.Stdout)
		}
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", catalog.KindOf(err), err)
		os.Exit(1)
	}
}

func printJSON(results []*runtime.ResultList) {
	type table struct {
		Columns []string   `json:"columns"`
		Rows    [][]string `json:"rows"`
	}
	out := make([]table, 0, len(results))
	for _, r := range results {
		t := table{Columns: r.Columns(), Rows: make([][]string, r.NumRows())}
		for i := range t.Rows {
			t.Rows[i] = r.Row(i)
		}
		out = append(out, t)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(out)
}

func runEval(cmd *cobra.Command, args []string) {
	env := setup()
	defer env.close()

	ctx, cancel := queryContext(env.cfg)
	defer cancel()

	txn := env.rt.NewTransaction(ctx, env.repo)
	v, err := runtime.EvaluateConstExpression(txn, args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", catalog.KindOf(err), err)
		os.Exit(1)
	}
	fmt.Println(v.String())
}

func runServer(cmd *cobra.Command, args []string) {
	env := setup()
	defer env.close()

	env.log.Info("Starting csql server",
		"version", version,
		"host", env.cfg.Server.Host,
		"port", env.cfg.Server.Port,
		"tables", len(env.cfg.Tables),
	)

	srv := server.New(env.cfg, env.log, env.rt, env.repo)
	if err := srv.Start(); err != nil {
		env.log.Error("Failed to start server", "error", err)
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	env.log.Info("Received signal, shutting down", "signal", sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		env.log.Error("Shutdown error", "error", err)
	}
	env.log.Info("csql shutdown complete")
}

func initConfig(cmd *cobra.Command, args []string) {
	path := "csql.yaml"
	if len(args) > 0 {
		path = args[0]
	}
	if _, err := os.Stat(path); err == nil {
		fmt.Fprintf(os.Stderr, "Error: %s already exists\n", path)
		os.Exit(1)
	}

	if err := config.CreateDefaultConfig(path, nil); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Created config file: %s\n", path)
	fmt.Printf("Add your tables and start the shell with: csql --config %s\n", path)
}
