// Package local implements the registry fallback store over the durable
// key-value blob store. The whole collection is serialized under one fixed
// key; that read-modify-write is guarded by an in-process mutex, while
// cross-process races stay out of scope on the single-device assumption.
package local

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"sentraumkm.org/internal/ids"
	"sentraumkm.org/internal/kv"
	"sentraumkm.org/internal/registry"
)

const recordsKey = "umkm_records"

// Store is the device-local registry backend.
type Store struct {
	mu     sync.Mutex
	blobs  kv.Store
	owners registry.OwnerSource
}

var _ registry.Store = (*Store)(nil)

// New builds a local store. owners resolves partition membership for
// partition-scoped lists.
func New(blobs kv.Store, owners registry.OwnerSource) *Store {
	return &Store{blobs: blobs, owners: owners}
}

func (s *Store) List(ctx context.Context, q registry.Query) ([]registry.Business, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := s.load()
	if err != nil {
		return nil, err
	}
	switch {
	case q.Partition != "":
		members, err := s.owners.OwnersInPartition(q.Partition)
		if err != nil {
			return nil, err
		}
		var out []registry.Business
		for _, rec := range all {
			if slices.Contains(members, rec.OwnerID) {
				out = append(out, rec)
			}
		}
		return out, nil
	case q.OwnerID != "":
		var out []registry.Business
		for _, rec := range all {
			if rec.OwnerID == q.OwnerID {
				out = append(out, rec)
			}
		}
		return out, nil
	default:
		// Unscoped local reads return everything; the store only ever holds
		// this device's own records.
		return all, nil
	}
}

func (s *Store) Create(ctx context.Context, rec registry.Business) (registry.Business, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := s.load()
	if err != nil {
		return registry.Business{}, err
	}
	rec.ID = ids.New()
	// No created/updated timestamps: the local store does not guarantee them.
	all = append([]registry.Business{rec}, all...)
	if err := s.save(all); err != nil {
		return registry.Business{}, err
	}
	return rec, nil
}

func (s *Store) Update(ctx context.Context, id string, rec registry.Business, ownerID string) (registry.Business, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := s.load()
	if err != nil {
		return registry.Business{}, err
	}
	for i := range all {
		if all[i].ID != id || all[i].OwnerID != ownerID {
			continue
		}
		rec.ID = all[i].ID
		rec.OwnerID = all[i].OwnerID
		rec.CreatedAt = all[i].CreatedAt
		if rec.RegisteredAt.IsZero() {
			rec.RegisteredAt = all[i].RegisteredAt
		}
		all[i] = rec
		if err := s.save(all); err != nil {
			return registry.Business{}, err
		}
		return all[i], nil
	}
	return registry.Business{}, registry.ErrNotFound
}

func (s *Store) Delete(ctx context.Context, id, ownerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := s.load()
	if err != nil {
		return err
	}
	kept := all[:0:0]
	for _, rec := range all {
		if rec.ID == id && rec.OwnerID == ownerID {
			continue
		}
		kept = append(kept, rec)
	}
	if len(kept) == len(all) {
		return registry.ErrNotFound
	}
	return s.save(kept)
}

func (s *Store) GetByID(ctx context.Context, id, ownerID string) (registry.Business, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := s.load()
	if err != nil {
		return registry.Business{}, err
	}
	for _, rec := range all {
		if rec.ID != id {
			continue
		}
		if ownerID != "" && rec.OwnerID != ownerID {
			return registry.Business{}, registry.ErrNotFound
		}
		return rec, nil
	}
	return registry.Business{}, registry.ErrNotFound
}

func (s *Store) load() ([]registry.Business, error) {
	raw, ok, err := s.blobs.Get(recordsKey)
	if err != nil {
		return nil, fmt.Errorf("local: load records: %w", err)
	}
	if !ok || raw == "" {
		return nil, nil
	}
	var all []registry.Business
	if err := json.Unmarshal([]byte(raw), &all); err != nil {
		return nil, fmt.Errorf("local: decode records: %w", err)
	}
	return all, nil
}

func (s *Store) save(all []registry.Business) error {
	data, err := json.Marshal(all)
	if err != nil {
		return fmt.Errorf("local: encode records: %w", err)
	}
	if err := s.blobs.Set(recordsKey, string(data)); err != nil {
		return fmt.Errorf("local: save records: %w", err)
	}
	return nil
}
