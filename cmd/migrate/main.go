package main

import (
	"database/sql"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

// Applies the .sql files under the migrations directory in lexical
// order, tracking applied files in schema_migrations so reruns are safe.
func main() {
	var dirFlag string
	flag.StringVar(&dirFlag, "dir", "db/migrations", "directory containing .sql migration files")
	flag.Parse()

	_ = godotenv.Load()

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		exitWithError(fmt.Errorf("DATABASE_URL is required"))
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		exitWithError(fmt.Errorf("open database: %w", err))
	}
	defer db.Close()

	db.SetConnMaxLifetime(time.Minute)
	if err := db.Ping(); err != nil {
		exitWithError(fmt.Errorf("connect database: %w", err))
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		filename   text PRIMARY KEY,
		applied_at timestamptz NOT NULL DEFAULT now()
	)`); err != nil {
		exitWithError(fmt.Errorf("ensure schema_migrations: %w", err))
	}

	files, err := filepath.Glob(filepath.Join(dirFlag, "*.sql"))
	if err != nil {
		exitWithError(fmt.Errorf("list migrations: %w", err))
	}
	if len(files) == 0 {
		exitWithError(fmt.Errorf("no .sql files in %s", dirFlag))
	}
	sort.Strings(files)

	applied := 0
	for _, path := range files {
		name := filepath.Base(path)

		var exists bool
		if err := db.QueryRow(`SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE filename = $1)`, name).Scan(&exists); err != nil {
			exitWithError(fmt.Errorf("check %s: %w", name, err))
		}
		if exists {
			continue
		}

		contents, err := os.ReadFile(path)
		if err != nil {
			exitWithError(fmt.Errorf("read %s: %w", name, err))
		}

		tx, err := db.Begin()
		if err != nil {
			exitWithError(fmt.Errorf("begin %s: %w", name, err))
		}
		if _, err := tx.Exec(string(contents)); err != nil {
			_ = tx.Rollback()
			exitWithError(fmt.Errorf("apply %s: %w", name, err))
		}
		if _, err := tx.Exec(`INSERT INTO schema_migrations (filename) VALUES ($1)`, name); err != nil {
			_ = tx.Rollback()
			exitWithError(fmt.Errorf("record %s: %w", name, err))
		}
		if err := tx.Commit(); err != nil {
			exitWithError(fmt.Errorf("commit %s: %w", name, err))
		}

		fmt.Printf("applied %s\n", name)
		applied++
	}

	if applied == 0 {
		fmt.Println("database is up to date")
	} else {
		fmt.Printf("%d migration(s) applied\n", applied)
	}
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
