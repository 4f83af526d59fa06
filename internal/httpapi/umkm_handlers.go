package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"sentraumkm.org/internal/audit"
	"sentraumkm.org/internal/identity"
	"sentraumkm.org/internal/registry"
)

type listBusinessesResponse struct {
	Items []registry.Business `json:"items"`
	AsOf  time.Time           `json:"as_of"`
}

func (a *API) handleCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listBusinesses(w, r)
	case http.MethodPost:
		a.createBusiness(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleResource(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/umkm/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		a.getBusiness(w, r, id)
	case http.MethodPut:
		a.updateBusiness(w, r, id)
	case http.MethodDelete:
		a.deleteBusiness(w, r, id)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

// listBusinesses answers the two read views: a user sees their own
// records, an admin sees every record in their partition.
func (a *API) listBusinesses(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var q registry.Query
	if p.Role == identity.RoleAdmin {
		q.Partition = p.Partition
	} else {
		q.OwnerID = p.ID
	}

	items, err := a.registry.List(r.Context(), q)
	if err != nil {
		handleRegistryError(w, r, err)
		return
	}
	if items == nil {
		items = []registry.Business{}
	}
	writeJSON(w, http.StatusOK, listBusinessesResponse{
		Items: items,
		AsOf:  time.Now().UTC(),
	})
}

func (a *API) createBusiness(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var rec registry.Business
	if err := decodeJSON(w, r, &rec); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(rec.Name) == "" {
		writeError(w, r, http.StatusBadRequest, "name is required")
		return
	}
	if rec.Status == "" {
		rec.Status = registry.StatusActive
	}

	// Admins may register a record on behalf of a user in their partition;
	// everyone else owns what they create.
	ownerID := p.ID
	if p.Role == identity.RoleAdmin && rec.OwnerID != "" {
		ownerID = rec.OwnerID
	}

	created, err := a.registry.Create(r.Context(), rec, ownerID)
	if err != nil {
		handleRegistryError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "umkm.created", map[string]any{
		"record_id": created.ID,
		"owner_id":  created.OwnerID,
		"name":      created.Name,
	})
	writeJSON(w, http.StatusCreated, created)
}

func (a *API) getBusiness(w http.ResponseWriter, r *http.Request, id string) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	if p.Role == identity.RoleAdmin {
		// Admins read unscoped, then the record's owner must fall inside
		// their partition for it to exist from their point of view.
		rec, err := a.registry.GetByID(r.Context(), id, "")
		if err != nil {
			handleRegistryError(w, r, err)
			return
		}
		owner, found, err := a.identity.OwnerByID(rec.OwnerID)
		if err != nil {
			writeError(w, r, http.StatusInternalServerError, "internal error")
			return
		}
		if !found || owner.Partition != p.Partition {
			writeError(w, r, http.StatusNotFound, registry.ErrNotFound.Error())
			return
		}
		writeJSON(w, http.StatusOK, rec)
		return
	}

	rec, err := a.registry.GetByID(r.Context(), id, p.ID)
	if err != nil {
		handleRegistryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (a *API) updateBusiness(w http.ResponseWriter, r *http.Request, id string) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var rec registry.Business
	if err := decodeJSON(w, r, &rec); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if rec.Status == "" {
		rec.Status = registry.StatusActive
	}

	updated, err := a.registry.Update(r.Context(), id, rec, p.ID)
	if err != nil {
		handleRegistryError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "umkm.updated", map[string]any{
		"record_id": updated.ID,
		"owner_id":  updated.OwnerID,
	})
	writeJSON(w, http.StatusOK, updated)
}

func (a *API) deleteBusiness(w http.ResponseWriter, r *http.Request, id string) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	if err := a.registry.Delete(r.Context(), id, p.ID); err != nil {
		handleRegistryError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "umkm.deleted", map[string]any{
		"record_id": id,
		"owner_id":  p.ID,
	})
	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted"})
}

func handleRegistryError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, registry.ErrInvalidOwner), errors.Is(err, registry.ErrInvalidStatus):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, registry.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, registry.ErrBackendUnavailable):
		writeError(w, r, http.StatusBadGateway, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
