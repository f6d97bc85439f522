// Command export dumps the conversation audit trail as CSV to stdout or a
// file.
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/evalscience/deepgov-bot/core/database"
	"github.com/evalscience/deepgov-bot/store"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run() error {
	out := flag.String("o", "", "output file (default stdout)")
	flag.Parse()

	_ = godotenv.Load()

	var dbCfg database.Config
	if err := envconfig.Process("", &dbCfg); err != nil {
		return fmt.Errorf("load db config: %w", err)
	}
	db, err := database.Connect(dbCfg)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	rows, err := store.NewResponses(db).List(ctx)
	if err != nil {
		return err
	}

	var dst io.Writer = os.Stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer func() { _ = f.Close() }()
		dst = f
	}

	w := csv.NewWriter(dst)
	if err := w.Write([]string{"user_id", "chat_id", "response_id", "created_at"}); err != nil {
		return err
	}
	for _, r := range rows {
		record := []string{
			r.UserID,
			strconv.FormatInt(r.ChatID, 10),
			r.ResponseID,
			r.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}

	fmt.Fprintf(os.Stderr, "exported %d rows\n", len(rows))
	return nil
}
