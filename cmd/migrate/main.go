package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	migrate "github.com/rubenv/sql-migrate"

	"github.com/hackgods/doctor-appointment-booking/internal/db"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	down := flag.Bool("down", false, "roll migrations back instead of applying them")
	steps := flag.Int("steps", 0, "maximum number of migrations to run, 0 for all")
	flag.Parse()

	_ = godotenv.Load()
	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	dir := migrate.Up
	if *down {
		dir = migrate.Down
	}

	n, err := db.Migrate(pool, dir, *steps)
	if err != nil {
		log.Fatalf("migrate: %v", err)
	}
	log.Printf("applied %d migrations", n)
}
