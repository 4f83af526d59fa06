// Command smoke-registry runs the end-to-end partition visibility scenario
// against a throwaway local store and prints each step.
package main

import (
	"context"
	"log"
	"os"
	"path/filepath"

	"sentraumkm.org/internal/identity"
	"sentraumkm.org/internal/kv"
	"sentraumkm.org/internal/registry"
	"sentraumkm.org/internal/registry/local"
)

func main() {
	dir, err := os.MkdirTemp("", "sentra-smoke-*")
	if err != nil {
		log.Fatalf("temp dir: %v", err)
	}
	defer os.RemoveAll(dir)

	blobs, err := kv.OpenSQLite(filepath.Join(dir, "state.db"))
	if err != nil {
		log.Fatalf("open state store: %v", err)
	}
	defer blobs.Close()

	manager, err := identity.NewManager(blobs, identity.DefaultDirectory())
	if err != nil {
		log.Fatalf("identity: %v", err)
	}
	svc := registry.NewLocal(local.New(blobs, manager), manager)
	ctx := context.Background()

	if err := manager.Register("sari", "rahasia1", "Sari Wulandari", "04"); err != nil {
		log.Fatalf("register: %v", err)
	}
	user, err := manager.Login("sari", "rahasia1", "")
	if err != nil {
		log.Fatalf("login: %v", err)
	}
	log.Printf("logged in as %s (partition %s)", user.Username, user.Partition)

	created, err := svc.Create(ctx, registry.Business{
		Name:   "Warung Sari",
		Status: registry.StatusActive,
	}, user.ID)
	if err != nil {
		log.Fatalf("create: %v", err)
	}
	log.Printf("created record %s", created.ID)

	mine, err := svc.List(ctx, registry.Query{OwnerID: user.ID})
	if err != nil || len(mine) != 1 || mine[0].Status != registry.StatusActive {
		log.Fatalf("owner list: got %d records, err %v", len(mine), err)
	}
	log.Printf("owner sees %d record(s)", len(mine))

	sameRW, err := svc.List(ctx, registry.Query{Partition: "04"})
	if err != nil || len(sameRW) != 1 || sameRW[0].ID != created.ID {
		log.Fatalf("partition 04 list: got %d records, err %v", len(sameRW), err)
	}
	log.Printf("partition 04 admin sees the record")

	otherRW, err := svc.List(ctx, registry.Query{Partition: "01"})
	if err != nil || len(otherRW) != 0 {
		log.Fatalf("partition 01 list: got %d records, err %v", len(otherRW), err)
	}
	log.Printf("partition 01 admin sees nothing")

	log.Println("OK: partition visibility scenario passed")
}
