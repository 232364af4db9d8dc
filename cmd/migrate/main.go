package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	flag "github.com/spf13/pflag"

	"dispatchdesk.io/internal/migrate"
	"dispatchdesk.io/internal/obs"
)

func main() {
	var (
		dsn     = flag.String("dsn", os.Getenv("DISPATCH_DB_DSN"), "PostgreSQL DSN")
		timeout = flag.Duration("timeout", 30*time.Second, "overall deadline")
		verbose = flag.BoolP("verbose", "v", false, "log every statement")
	)
	flag.Parse()
	log := obs.NewLogger(obs.Options{Level: "info", Format: "text"})

	if *dsn == "" {
		log.Fatal("missing DSN: provide via --dsn or DISPATCH_DB_DSN")
	}
	if flag.NArg() == 0 {
		log.Fatal("usage: migrate [up|down|status]")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	db, err := sql.Open("pgx", *dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	mgr, err := migrate.NewManager(db, migrate.WithLogger(log), migrate.WithVerbose(*verbose))
	if err != nil {
		log.Fatalf("init migrations: %v", err)
	}

	var lines []string
	switch flag.Arg(0) {
	case "up":
		lines, err = mgr.Up(ctx)
	case "down":
		var line string
		line, err = mgr.Down(ctx)
		if line != "" {
			lines = []string{line}
		}
	case "status":
		lines, err = mgr.Status(ctx)
	default:
		log.Fatalf("unknown command %q", flag.Arg(0))
	}
	if err != nil {
		log.Fatalf("migrate %s: %v", flag.Arg(0), err)
	}
	for _, l := range lines {
		fmt.Println(l)
	}
}
