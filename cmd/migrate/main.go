// Command migrate applies the remote schema for the registry.
package main

import (
	"context"
	"log"
	"os"
	"time"

	"sentraumkm.org/internal/config"
	"sentraumkm.org/internal/migrate"
	"sentraumkm.org/internal/registry/pg"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if !cfg.RemoteEnabled() {
		log.Fatal("SENTRA_PG_DSN is not set; nothing to migrate")
	}

	store, err := pg.Open(cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("open postgres: %v", err)
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	mgr := migrate.NewManager(store.DB())

	cmd := "up"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}
	switch cmd {
	case "up":
		if err := mgr.Up(ctx); err != nil {
			log.Fatalf("migrate up: %v", err)
		}
		log.Println("migrations applied")
	case "status":
		applied, err := mgr.Status(ctx)
		if err != nil {
			log.Fatalf("migrate status: %v", err)
		}
		if len(applied) == 0 {
			log.Println("no migrations applied")
			return
		}
		for _, name := range applied {
			log.Println(name)
		}
	default:
		log.Fatalf("unknown command %q (want up or status)", cmd)
	}
}
