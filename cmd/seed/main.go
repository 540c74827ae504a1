// Seed program: fills a database file with generated rows so a multi-level
// tree can be produced and inspected.
// Run: go run ./cmd/seed -db demo.db -n 500 -shuffle
// Then: go run ./cmd/minidb demo.db and use .btree to look at the result.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"

	"go.uber.org/zap"

	"minidb/btree"
	"minidb/pager"
	"minidb/row"
)

func main() {
	dbPath := flag.String("db", "demo.db", "database file to seed")
	count := flag.Int("n", 500, "number of rows to insert")
	shuffle := flag.Bool("shuffle", false, "insert keys in random order")
	maxPages := flag.Uint("max-pages", pager.DefaultMaxPages, "maximum number of pages in the database file")
	dump := flag.Bool("dump", false, "print the tree structure after seeding")
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	table, err := btree.Open(*dbPath,
		btree.WithMaxPages(uint32(*maxPages)),
		btree.WithLogger(logger))
	if err != nil {
		log.Fatalf("open %s: %v", *dbPath, err)
	}

	ids := make([]uint32, *count)
	for i := range ids {
		ids[i] = uint32(i + 1)
	}
	if *shuffle {
		rand.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
	}

	inserted, skipped := 0, 0
	for _, id := range ids {
		r, err := seedRow(id)
		if err != nil {
			log.Fatalf("row %d: %v", id, err)
		}
		switch err := table.Insert(r); {
		case err == nil:
			inserted++
		case errors.Is(err, btree.ErrDuplicateKey):
			// Re-seeding an existing file; the row is already there.
			skipped++
		case errors.Is(err, btree.ErrTableFull):
			log.Fatalf("table full after %d rows", inserted)
		default:
			log.Fatalf("insert %d: %v", id, err)
		}
	}

	if *dump {
		if err := table.Dump(os.Stdout); err != nil {
			log.Fatalf("dump: %v", err)
		}
	}
	if err := table.Close(); err != nil {
		log.Fatalf("close: %v", err)
	}
	fmt.Printf("Seeded %s: %d inserted, %d already present.\n", *dbPath, inserted, skipped)
}

func seedRow(id uint32) (row.Row, error) {
	return row.New(id, fmt.Sprintf("user%d", id), fmt.Sprintf("user%d@example.com", id))
}
