package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/alecthomas/kong"
	"go.uber.org/zap"

	"github.com/reldb/reldb/internal/parser"
	"github.com/reldb/reldb/internal/pkg/logging"
	"github.com/reldb/reldb/internal/reldb"
)

const cliName = "reldb"

var cli struct {
	File     string `short:"f" default:"reldb.db" help:"Database file path."`
	LogLevel string `name:"log-level" default:"info" help:"Log level (debug, info, warn, error)."`
	NoSync   bool   `help:"Skip fsync after every page write."`
}

func printPrompt() {
	fmt.Print(cliName, "> ")
}

type metaCommand int

const (
	Unknown metaCommand = iota + 1
	Help
	Exit
	ListTables
)

func isMetaCommand(input string) bool {
	return len(input) > 0 && input[:1] == "."
}

func doMetaCommand(input string) metaCommand {
	switch strings.ToLower(input) {
	case "help":
		return Help
	case "exit":
		return Exit
	case "tables":
		return ListTables
	default:
		return Unknown
	}
}

func main() {
	kong.Parse(&cli,
		kong.Name(cliName),
		kong.Description("Minimal single file relational database."),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logConf := logging.DefaultConfig()
	level, err := logging.ParseLevel(cli.LogLevel)
	if err != nil {
		panic(err)
	}
	logConf.Level = zap.NewAtomicLevelAt(level)
	logger, err := logConf.Build()
	if err != nil {
		panic(err)
	}
	defer logger.Sync() // flushes buffer, if any

	dbFile, err := os.OpenFile(cli.File, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		panic(err)
	}
	defer dbFile.Close()

	aDatabase, err := reldb.OpenDatabase(ctx, logger, dbFile, parser.New(), reldb.WithSyncWrites(!cli.NoSync))
	if err != nil {
		panic(err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		repl(ctx, aDatabase)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigChan:
	case <-done:
	}

	if err := aDatabase.Close(); err != nil {
		fmt.Printf("error closing database: %s\n", err)
	}
	cancel()
}

func repl(ctx context.Context, aDatabase *reldb.Database) {
	reader := bufio.NewScanner(os.Stdin)
	printPrompt()

	for reader.Scan() {
		if ctx.Err() != nil {
			return
		}

		input := strings.TrimSpace(reader.Text())
		if isMetaCommand(input) {
			switch doMetaCommand(input[1:]) {
			case Help:
				fmt.Println(".help    - Show available commands")
				fmt.Println(".exit    - Closes program")
				fmt.Println(".tables  - List all tables in the current database")
			case Exit:
				return
			case ListTables:
				for _, table := range aDatabase.TableNames() {
					fmt.Println(table)
				}
			case Unknown:
				fmt.Printf("Unrecognized meta command: %s\n", input)
			}
		} else if input != "" {
			runStatement(ctx, aDatabase, input)
		}
		printPrompt()
	}
	// Print an additional line if we encountered an EOF character
	fmt.Println()
}

func runStatement(ctx context.Context, aDatabase *reldb.Database, sql string) {
	aResult, err := aDatabase.Execute(ctx, sql)
	if err != nil {
		fmt.Printf("Error: %s\n", err)
		return
	}
	if aResult.Rows == nil {
		fmt.Printf("Rows affected: %d\n", aResult.RowsAffected)
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 4, 4, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(aResult.Columns, "\t"))
	count := 0
	for {
		aRow, err := aResult.Rows(ctx)
		if err == reldb.ErrNoMoreRows {
			break
		}
		if err != nil {
			fmt.Printf("Error: %s\n", err)
			return
		}
		fmt.Fprintln(w, formatRow(aRow))
		count += 1
	}
	w.Flush()
	fmt.Printf("(%d rows)\n", count)
}

func formatRow(aRow reldb.Row) string {
	fields := make([]string, 0, len(aRow.Values))
	for _, value := range aRow.Values {
		if value == nil {
			fields = append(fields, "NULL")
			continue
		}
		fields = append(fields, fmt.Sprintf("%v", value))
	}
	return strings.Join(fields, "\t")
}
