// minidb is the line-oriented shell over the storage engine: insert and
// select statements plus a few meta commands. It is a thin dispatcher; all
// engine behavior lives in the btree, pager and row packages.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"go.uber.org/zap"

	"minidb/btree"
	"minidb/pager"
	"minidb/row"
)

func main() {
	maxPages := flag.Uint("max-pages", pager.DefaultMaxPages, "maximum number of pages in the database file")
	verbose := flag.Bool("v", false, "log engine activity")
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: minidb [flags] <dbfile>")
		os.Exit(2)
	}

	logger := zap.NewNop()
	if *verbose {
		l, err := zap.NewDevelopment()
		if err != nil {
			fmt.Fprintf(os.Stderr, "minidb: logger: %v\n", err)
			os.Exit(1)
		}
		logger = l
		defer logger.Sync()
	}

	table, err := btree.Open(flag.Arg(0),
		btree.WithMaxPages(uint32(*maxPages)),
		btree.WithLogger(logger))
	if err != nil {
		fmt.Fprintf(os.Stderr, "minidb: %v\n", err)
		os.Exit(1)
	}

	rl, err := readline.New("db > ")
	if err != nil {
		table.Close()
		fmt.Fprintf(os.Stderr, "minidb: %v\n", err)
		os.Exit(1)
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			break
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, ".") {
			if doMetaCommand(line, table) {
				break
			}
			continue
		}
		doStatement(line, table)
	}

	if err := table.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "minidb: close: %v\n", err)
		os.Exit(1)
	}
}

// doMetaCommand runs a dot command and reports whether the shell should exit.
func doMetaCommand(line string, table *btree.Table) bool {
	switch line {
	case ".exit":
		return true
	case ".btree":
		fmt.Println("Tree:")
		if err := table.Dump(os.Stdout); err != nil {
			fmt.Printf("Error: %v\n", err)
		}
	case ".constants":
		fmt.Println("Constants:")
		fmt.Println(btree.Constants())
	default:
		fmt.Printf("Unrecognized command '%s'.\n", line)
	}
	return false
}

func doStatement(line string, table *btree.Table) {
	fields := strings.Fields(line)
	switch strings.ToLower(fields[0]) {
	case "insert":
		execInsert(fields, table)
	case "select":
		execSelect(table)
	default:
		fmt.Printf("Unrecognized keyword at start of '%s'.\n", line)
	}
}

func execInsert(fields []string, table *btree.Table) {
	if len(fields) != 4 {
		fmt.Println("Syntax error. Could not parse statement.")
		return
	}
	id, err := strconv.ParseUint(fields[1], 10, 32)
	if err != nil {
		fmt.Println("Syntax error. Could not parse statement.")
		return
	}
	r, err := row.New(uint32(id), fields[2], fields[3])
	if err != nil {
		if errors.Is(err, row.ErrStringTooLong) {
			fmt.Println("String is too long.")
		} else {
			fmt.Printf("Error: %v\n", err)
		}
		return
	}
	switch err := table.Insert(r); {
	case err == nil:
		fmt.Println("Executed.")
	case errors.Is(err, btree.ErrDuplicateKey):
		fmt.Println("Error: Duplicate key.")
	case errors.Is(err, btree.ErrTableFull):
		fmt.Println("Error: Table full.")
	default:
		fmt.Printf("Error: %v\n", err)
	}
}

func execSelect(table *btree.Table) {
	rows, err := table.Scan()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	for _, r := range rows {
		fmt.Printf("(%d, %s, %s)\n", r.ID, r.Username, r.Email)
	}
	fmt.Println("Executed.")
}
