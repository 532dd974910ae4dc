// Command seed creates and populates a SQLite authoring store with the
// bundled demo content so the server and MCP binaries have something to
// serve out of the box.
package main

import (
	"context"
	"flag"
	"log"

	"github.com/clinsafe-server/internal/authoring"
)

func main() {
	dbPath := flag.String("db", "clinsafe.db", "path of the SQLite store to create")
	flag.Parse()

	ctx := context.Background()
	if err := authoring.SeedSQLite(ctx, *dbPath, authoring.DemoKnowledgeSet(), authoring.DemoRules()); err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	log.Printf("Seeded %s with demo knowledge and rules", *dbPath)
}
