package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mcdev12/trivia/go/internal/dbconfig"
	"github.com/mcdev12/trivia/go/internal/questions"
)

func main() {
	ctx := context.Background()

	// 1) Load the YAML bank, or the built-in one when no path is given
	var (
		bank *questions.Bank
		err  error
	)
	if len(os.Args) > 1 {
		bank, err = questions.LoadBank(os.Args[1], nil)
	} else {
		bank, err = questions.DefaultBank(nil)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "load questions: %v\n", err)
		os.Exit(1)
	}

	// 2) Connect using shared dbconfig
	cfg := dbconfig.NewConfigFromEnv()
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	store := questions.NewPGStore(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	// 3) Insert and count
	var (
		all      = bank.All()
		inserted int
		skipped  int
		errs     int
	)
	for _, q := range all {
		ok, err := store.Insert(ctx, q)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error inserting question %s: %v\n", q.ID, err)
			errs++
			continue
		}
		if ok {
			inserted++
		} else {
			skipped++
		}
	}

	// 4) Print summary
	fmt.Printf(
		"Questions seed complete: %d total, %d inserted, %d skipped, %d errors\n",
		len(all), inserted, skipped, errs,
	)
}
