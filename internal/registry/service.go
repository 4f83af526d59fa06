package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sentraumkm.org/internal/identity"
	"sentraumkm.org/internal/ids"
	"sentraumkm.org/internal/obs"
)

// Service enforces owner/partition scoping and the fallback policy on top
// of the selected backend. Reads and creates degrade to the local store
// when the remote store fails; updates and deletes fail loudly instead,
// because silently diverging a mutation between backends would be
// undetectable data loss.
type Service struct {
	primary  Store
	fallback Store       // non-nil only when primary is remote
	remote   RemoteStore // same object as primary in dual mode
	owners   OwnerSource
	now      func() time.Time
}

// NewLocal builds a service backed only by the device-local store.
func NewLocal(local Store, owners OwnerSource) *Service {
	return &Service{primary: local, owners: owners, now: time.Now}
}

// NewDual builds a service that prefers the remote store and falls back to
// the local one on read/create failures.
func NewDual(remote RemoteStore, local Store, owners OwnerSource) *Service {
	return &Service{primary: remote, fallback: local, remote: remote, owners: owners, now: time.Now}
}

// RemoteEnabled reports which backend mode the service was built with.
func (s *Service) RemoteEnabled() bool { return s.fallback != nil }

// List returns records scoped by owner or partition. With a remote backend
// an unscoped query yields no rows; only the local store answers unscoped
// reads, since it holds nothing but the device's own data.
func (s *Service) List(ctx context.Context, q Query) ([]Business, error) {
	if q.OwnerID != "" && !ids.IsOwner(q.OwnerID) {
		return nil, ErrInvalidOwner
	}
	recs, err := s.primary.List(ctx, q)
	if err != nil && s.fallback != nil {
		obs.Fallback("list")
		return s.fallback.List(ctx, q)
	}
	return recs, err
}

// Create stores a new record for ownerID. A remote failure is absorbed by
// re-executing the write locally; the caller never sees it as an error.
func (s *Service) Create(ctx context.Context, rec Business, ownerID string) (Business, error) {
	if !ids.IsOwner(ownerID) {
		return Business{}, ErrInvalidOwner
	}
	if !rec.Status.Valid() {
		return Business{}, ErrInvalidStatus
	}
	rec.OwnerID = ownerID
	if rec.RegisteredAt.IsZero() {
		rec.RegisteredAt = s.now().UTC()
	}

	if s.remote != nil {
		// Identities authenticate locally but must exist remotely before a
		// record can reference them. The upsert is idempotent; a failed sync
		// surfaces on the insert attempt instead.
		s.syncOwner(ctx, ownerID)
	}

	created, err := s.primary.Create(ctx, rec)
	if err != nil && s.fallback != nil {
		obs.Fallback("create")
		return s.fallback.Create(ctx, rec)
	}
	return created, err
}

// Update rewrites the record's attributes, scoped by record id AND owner
// id. A right-id/wrong-owner match is NotFound, never a partial result.
func (s *Service) Update(ctx context.Context, id string, rec Business, ownerID string) (Business, error) {
	if !ids.IsOwner(ownerID) {
		return Business{}, ErrInvalidOwner
	}
	if !rec.Status.Valid() {
		return Business{}, ErrInvalidStatus
	}
	updated, err := s.primary.Update(ctx, id, rec, ownerID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Business{}, err
		}
		if s.fallback != nil {
			return Business{}, fmt.Errorf("%w: update %s: %v", ErrBackendUnavailable, id, err)
		}
		return Business{}, err
	}
	return updated, nil
}

// Delete removes the record, scoped by record id AND owner id. Deleting an
// id that is already gone reports NotFound so callers can tell the two
// outcomes apart.
func (s *Service) Delete(ctx context.Context, id, ownerID string) error {
	if !ids.IsOwner(ownerID) {
		return ErrInvalidOwner
	}
	err := s.primary.Delete(ctx, id, ownerID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		if s.fallback != nil {
			return fmt.Errorf("%w: delete %s: %v", ErrBackendUnavailable, id, err)
		}
		return err
	}
	return nil
}

// GetByID fetches one record. When ownerID is supplied, a record owned by
// someone else resolves to NotFound; existence is never confirmed to a
// non-owner.
func (s *Service) GetByID(ctx context.Context, id, ownerID string) (Business, error) {
	if ownerID != "" && !ids.IsOwner(ownerID) {
		return Business{}, ErrInvalidOwner
	}
	rec, err := s.primary.GetByID(ctx, id, ownerID)
	if err != nil && !errors.Is(err, ErrNotFound) && s.fallback != nil {
		obs.Fallback("get")
		return s.fallback.GetByID(ctx, id, ownerID)
	}
	return rec, err
}

func (s *Service) syncOwner(ctx context.Context, ownerID string) {
	owner, ok, err := s.owners.OwnerByID(ownerID)
	if err != nil || !ok {
		owner = identity.Owner{ID: ownerID, Role: identity.RoleUser}
	}
	if err := s.remote.EnsureOwner(ctx, owner); err != nil {
		obs.LogEvent(map[string]any{
			"level":    "warn",
			"msg":      "owner sync failed",
			"owner_id": ownerID,
			"error":    err.Error(),
		})
	}
}
