package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mcdev12/smashquiz/go/internal/dbconfig"
	"github.com/mcdev12/smashquiz/go/internal/quiz/config"
	"github.com/mcdev12/smashquiz/go/internal/quiz/settings"
)

func main() {
	path := flag.String("file", "", "settings JSON ({\"rule\":...,\"names\":[...]}); defaults from config when empty")
	force := flag.Bool("force", false, "overwrite an existing record")
	flag.Parse()

	// 1) Resolve the record to seed
	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	record := settings.Settings{Rule: cfg.DefaultRule(), Names: cfg.DefaultTeams()}
	if *path != "" {
		data, err := os.ReadFile(*path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "read JSON: %v\n", err)
			os.Exit(1)
		}
		if err := json.Unmarshal(data, &record); err != nil {
			fmt.Fprintf(os.Stderr, "unmarshal JSON: %v\n", err)
			os.Exit(1)
		}
	}
	if err := record.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid settings: %v\n", err)
		os.Exit(1)
	}
	value, err := json.Marshal(record)
	if err != nil {
		fmt.Fprintf(os.Stderr, "marshal JSON: %v\n", err)
		os.Exit(1)
	}

	// 2) Connect using shared dbconfig
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbconfig.NewConfigFromEnv().DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	// 3) Create the table and write the record
	if _, err := pool.Exec(ctx, settings.Schema); err != nil {
		fmt.Fprintf(os.Stderr, "create schema: %v\n", err)
		os.Exit(1)
	}

	conflict := "DO NOTHING"
	if *force {
		conflict = "DO UPDATE SET value = EXCLUDED.value, updated_at = now()"
	}
	cmdTag, err := pool.Exec(ctx, `
        INSERT INTO quiz_settings (key, value, updated_at)
        VALUES ($1, $2, now())
        ON CONFLICT (key) `+conflict,
		settings.StorageKey, string(value),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error writing settings: %v\n", err)
		os.Exit(1)
	}

	// 4) Print summary
	status := "skipped (already present, use -force to overwrite)"
	if cmdTag.RowsAffected() == 1 {
		status = "written"
	}
	fmt.Printf("Settings seed complete: key %s %s, %d teams\n", settings.StorageKey, status, len(record.Names))
}
