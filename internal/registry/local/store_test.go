package local

import (
	"context"
	"errors"
	"testing"

	"sentraumkm.org/internal/identity"
	"sentraumkm.org/internal/kv"
	"sentraumkm.org/internal/registry"
)

type fakeOwners struct {
	partitions map[string][]string
}

func (f fakeOwners) OwnerByID(id string) (identity.Owner, bool, error) {
	return identity.Owner{}, false, nil
}

func (f fakeOwners) OwnersInPartition(partition string) ([]string, error) {
	return f.partitions[partition], nil
}

func TestCreateAndListScopedByOwner(t *testing.T) {
	s := New(kv.NewMemory(), fakeOwners{})
	ctx := context.Background()

	a, err := s.Create(ctx, registry.Business{Name: "Warung Sari", Status: registry.StatusActive, OwnerID: "owner-a"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if a.ID == "" {
		t.Fatal("expected a generated id")
	}
	if _, err := s.Create(ctx, registry.Business{Name: "Bengkel Budi", Status: registry.StatusActive, OwnerID: "owner-b"}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	mine, err := s.List(ctx, registry.Query{OwnerID: "owner-a"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(mine) != 1 || mine[0].Name != "Warung Sari" {
		t.Fatalf("owner scoping broken: %+v", mine)
	}

	all, err := s.List(ctx, registry.Query{})
	if err != nil {
		t.Fatalf("List unscoped: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("unscoped local list should return everything, got %d", len(all))
	}
}

func TestListByPartitionTwoHop(t *testing.T) {
	owners := fakeOwners{partitions: map[string][]string{
		"04": {"owner-a", "owner-c"},
		"01": {"owner-b"},
	}}
	s := New(kv.NewMemory(), owners)
	ctx := context.Background()

	for _, rec := range []registry.Business{
		{Name: "Warung Sari", Status: registry.StatusActive, OwnerID: "owner-a"},
		{Name: "Bengkel Budi", Status: registry.StatusActive, OwnerID: "owner-b"},
		{Name: "Toko Citra", Status: registry.StatusInactive, OwnerID: "owner-c"},
	} {
		if _, err := s.Create(ctx, rec); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	got, err := s.List(ctx, registry.Query{Partition: "04"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("partition 04 should see 2 records, got %d", len(got))
	}
	for _, rec := range got {
		if rec.OwnerID == "owner-b" {
			t.Fatalf("record from another partition leaked: %+v", rec)
		}
	}

	empty, err := s.List(ctx, registry.Query{Partition: "09"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("unknown partition should see nothing, got %+v", empty)
	}
}

func TestUpdateRequiresMatchingOwner(t *testing.T) {
	s := New(kv.NewMemory(), fakeOwners{})
	ctx := context.Background()

	created, err := s.Create(ctx, registry.Business{Name: "Warung Sari", Status: registry.StatusActive, OwnerID: "owner-a"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := s.Update(ctx, created.ID, created, "owner-b"); !errors.Is(err, registry.ErrNotFound) {
		t.Fatalf("wrong owner must read as NotFound, got %v", err)
	}

	created.Status = registry.StatusTemporarilyClosed
	updated, err := s.Update(ctx, created.ID, created, "owner-a")
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Status != registry.StatusTemporarilyClosed {
		t.Fatalf("update not applied: %+v", updated)
	}
	if updated.OwnerID != "owner-a" || updated.ID != created.ID {
		t.Fatalf("identity fields must be immutable: %+v", updated)
	}
}

func TestDeleteIsScopedAndIdempotentInEffect(t *testing.T) {
	s := New(kv.NewMemory(), fakeOwners{})
	ctx := context.Background()

	created, err := s.Create(ctx, registry.Business{Name: "Warung Sari", Status: registry.StatusActive, OwnerID: "owner-a"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := s.Delete(ctx, created.ID, "owner-b"); !errors.Is(err, registry.ErrNotFound) {
		t.Fatalf("wrong owner must read as NotFound, got %v", err)
	}
	if err := s.Delete(ctx, created.ID, "owner-a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(ctx, created.ID, "owner-a"); !errors.Is(err, registry.ErrNotFound) {
		t.Fatalf("second delete must report NotFound, got %v", err)
	}
}

func TestGetByIDNeverLeaksAcrossOwners(t *testing.T) {
	s := New(kv.NewMemory(), fakeOwners{})
	ctx := context.Background()

	created, err := s.Create(ctx, registry.Business{Name: "Warung Sari", Status: registry.StatusActive, OwnerID: "owner-a"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := s.GetByID(ctx, created.ID, "owner-b"); !errors.Is(err, registry.ErrNotFound) {
		t.Fatalf("foreign owner must get NotFound, got %v", err)
	}
	got, err := s.GetByID(ctx, created.ID, "owner-a")
	if err != nil || got.Name != "Warung Sari" {
		t.Fatalf("owner read failed: %+v %v", got, err)
	}
	unscoped, err := s.GetByID(ctx, created.ID, "")
	if err != nil || unscoped.ID != created.ID {
		t.Fatalf("unscoped read failed: %+v %v", unscoped, err)
	}
}

func TestDataSurvivesNewStoreOverSameBlobs(t *testing.T) {
	blobs := kv.NewMemory()
	ctx := context.Background()

	first := New(blobs, fakeOwners{})
	created, err := first.Create(ctx, registry.Business{Name: "Warung Sari", Status: registry.StatusActive, OwnerID: "owner-a"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	second := New(blobs, fakeOwners{})
	got, err := second.GetByID(ctx, created.ID, "owner-a")
	if err != nil || got.Name != "Warung Sari" {
		t.Fatalf("record lost across store instances: %+v %v", got, err)
	}
}
