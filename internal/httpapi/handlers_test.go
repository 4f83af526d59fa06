package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"sentraumkm.org/internal/identity"
	"sentraumkm.org/internal/kv"
	"sentraumkm.org/internal/registry"
	"sentraumkm.org/internal/registry/local"
)

func newTestAPI(t *testing.T) (*API, http.Handler) {
	t.Helper()
	blobs := kv.NewMemory()
	manager, err := identity.NewManager(blobs, identity.DefaultDirectory())
	if err != nil {
		t.Fatalf("identity.NewManager: %v", err)
	}
	tokens, err := identity.NewTokens("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("identity.NewTokens: %v", err)
	}
	svc := registry.NewLocal(local.New(blobs, manager), manager)
	api := New(manager, tokens, svc, ReadyProbe{}, "test")
	return api, api.Handler()
}

func doJSON(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set(authHeader, bearer+token)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode response (%d): %v: %s", rr.Code, err, rr.Body.String())
	}
}

func loginToken(t *testing.T, h http.Handler, username, secret, partition string) (string, identity.Principal) {
	t.Helper()
	rr := doJSON(t, h, http.MethodPost, "/v1/auth/login", "", loginRequest{
		Username: username, Secret: secret, Partition: partition,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("login %s: %d %s", username, rr.Code, rr.Body.String())
	}
	var resp loginResponse
	decodeBody(t, rr, &resp)
	return resp.Token, resp.Principal
}

func TestAuthFlowAndRecordLifecycle(t *testing.T) {
	_, h := newTestAPI(t)

	rr := doJSON(t, h, http.MethodPost, "/v1/auth/register", "", registerRequest{
		Username: "sari", Secret: "rahasia1", Name: "Sari Wulandari", Partition: "04",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("register: %d %s", rr.Code, rr.Body.String())
	}

	token, p := loginToken(t, h, "sari", "rahasia1", "")
	if p.Role != identity.RoleUser || p.Partition != "04" {
		t.Fatalf("unexpected principal: %+v", p)
	}

	rr = doJSON(t, h, http.MethodPost, "/v1/umkm", token, registry.Business{
		Name: "Warung Sari", Category: "Kuliner", Status: registry.StatusActive,
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rr.Code, rr.Body.String())
	}
	var created registry.Business
	decodeBody(t, rr, &created)
	if created.ID == "" || created.OwnerID != p.ID {
		t.Fatalf("unexpected record: %+v", created)
	}

	rr = doJSON(t, h, http.MethodGet, "/v1/umkm", token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("list: %d %s", rr.Code, rr.Body.String())
	}
	var listed listBusinessesResponse
	decodeBody(t, rr, &listed)
	if len(listed.Items) != 1 || listed.Items[0].ID != created.ID {
		t.Fatalf("unexpected list: %+v", listed)
	}

	created.Status = registry.StatusTemporarilyClosed
	rr = doJSON(t, h, http.MethodPut, "/v1/umkm/"+created.ID, token, created)
	if rr.Code != http.StatusOK {
		t.Fatalf("update: %d %s", rr.Code, rr.Body.String())
	}
	var updated registry.Business
	decodeBody(t, rr, &updated)
	if updated.Status != registry.StatusTemporarilyClosed {
		t.Fatalf("update not applied: %+v", updated)
	}

	rr = doJSON(t, h, http.MethodDelete, "/v1/umkm/"+created.ID, token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("delete: %d %s", rr.Code, rr.Body.String())
	}
	rr = doJSON(t, h, http.MethodDelete, "/v1/umkm/"+created.ID, token, nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("second delete must be 404, got %d", rr.Code)
	}
}

func TestAdminPartitionVisibility(t *testing.T) {
	_, h := newTestAPI(t)

	rr := doJSON(t, h, http.MethodPost, "/v1/auth/register", "", registerRequest{
		Username: "sari", Secret: "rahasia1", Name: "Sari", Partition: "04",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("register: %d", rr.Code)
	}
	userToken, user := loginToken(t, h, "sari", "rahasia1", "")

	rr = doJSON(t, h, http.MethodPost, "/v1/umkm", userToken, registry.Business{
		Name: "Warung Sari", Status: registry.StatusActive,
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rr.Code, rr.Body.String())
	}
	var created registry.Business
	decodeBody(t, rr, &created)

	sameRWToken, admin04 := loginToken(t, h, "admin", "admin", "04")
	if admin04.Role != identity.RoleAdmin || !admin04.MustRotateSecret {
		t.Fatalf("unexpected admin principal: %+v", admin04)
	}
	rr = doJSON(t, h, http.MethodGet, "/v1/umkm", sameRWToken, nil)
	var sameRW listBusinessesResponse
	decodeBody(t, rr, &sameRW)
	if len(sameRW.Items) != 1 || sameRW.Items[0].ID != created.ID {
		t.Fatalf("partition 04 admin should see the record: %+v", sameRW)
	}
	rr = doJSON(t, h, http.MethodGet, "/v1/umkm/"+created.ID, sameRWToken, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("partition 04 admin get: %d %s", rr.Code, rr.Body.String())
	}

	otherRWToken, _ := loginToken(t, h, "admin", "admin", "01")
	rr = doJSON(t, h, http.MethodGet, "/v1/umkm", otherRWToken, nil)
	var otherRW listBusinessesResponse
	decodeBody(t, rr, &otherRW)
	if len(otherRW.Items) != 0 {
		t.Fatalf("partition 01 admin must not see the record: %+v", otherRW)
	}
	rr = doJSON(t, h, http.MethodGet, "/v1/umkm/"+created.ID, otherRWToken, nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("cross-partition get must be 404, got %d", rr.Code)
	}

	// An admin can register a record on behalf of a user in their partition.
	rr = doJSON(t, h, http.MethodPost, "/v1/umkm", sameRWToken, registry.Business{
		Name: "Bengkel Titipan", Status: registry.StatusActive, OwnerID: user.ID,
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("on-behalf create: %d %s", rr.Code, rr.Body.String())
	}
	var onBehalf registry.Business
	decodeBody(t, rr, &onBehalf)
	if onBehalf.OwnerID != user.ID {
		t.Fatalf("on-behalf record not attributed to the user: %+v", onBehalf)
	}
}

func TestAuthRequiredAndRejections(t *testing.T) {
	_, h := newTestAPI(t)

	rr := doJSON(t, h, http.MethodGet, "/v1/umkm", "", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rr.Code)
	}
	rr = doJSON(t, h, http.MethodGet, "/v1/umkm", "not.a.token", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for garbage token, got %d", rr.Code)
	}

	rr = doJSON(t, h, http.MethodPost, "/v1/auth/login", "", loginRequest{Username: "admin", Secret: "admin"})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("default admin login without partition must be 400, got %d", rr.Code)
	}
	rr = doJSON(t, h, http.MethodPost, "/v1/auth/login", "", loginRequest{Username: "sari", Secret: "nope"})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("unknown user login must be 401, got %d", rr.Code)
	}

	rr = doJSON(t, h, http.MethodPost, "/v1/auth/register", "", registerRequest{
		Username: "budi", Secret: "abc", Name: "Budi", Partition: "01",
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("short secret must be 400, got %d", rr.Code)
	}
	rr = doJSON(t, h, http.MethodPost, "/v1/auth/register", "", registerRequest{
		Username: "admin", Secret: "rahasia1", Name: "Impostor", Partition: "01",
	})
	if rr.Code != http.StatusConflict {
		t.Fatalf("reserved username must be 409, got %d", rr.Code)
	}
}

func TestChangeSecretOverHTTP(t *testing.T) {
	_, h := newTestAPI(t)

	token, admin := loginToken(t, h, "admin", "admin", "01")
	if !admin.MustRotateSecret {
		t.Fatalf("default admin login should force rotation: %+v", admin)
	}

	rr := doJSON(t, h, http.MethodPost, "/v1/auth/secret", token, changeSecretRequest{
		OldSecret: "admin", NewSecret: "kuncibaru",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("change secret: %d %s", rr.Code, rr.Body.String())
	}
	var resp loginResponse
	decodeBody(t, rr, &resp)
	if resp.Principal.MustRotateSecret {
		t.Fatalf("rotation flag not cleared: %+v", resp.Principal)
	}

	rr = doJSON(t, h, http.MethodPost, "/v1/auth/login", "", loginRequest{
		Username: "admin", Secret: "admin", Partition: "01",
	})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("default secret must be dead after rotation, got %d", rr.Code)
	}
	if _, p := loginToken(t, h, "admin", "kuncibaru", ""); p.Partition != "01" {
		t.Fatalf("override login resolved wrong identity: %+v", p)
	}
}

func TestHealthAndInfoArePublic(t *testing.T) {
	_, h := newTestAPI(t)

	for _, path := range []string{"/healthz", "/readyz", "/v1/info"} {
		rr := doJSON(t, h, http.MethodGet, path, "", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s: %d %s", path, rr.Code, rr.Body.String())
		}
	}

	rr := doJSON(t, h, http.MethodGet, "/v1/info", "", nil)
	var info map[string]any
	decodeBody(t, rr, &info)
	if info["remote_enabled"] != false {
		t.Fatalf("local-only service must report remote_enabled=false: %v", info)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	_, h := newTestAPI(t)

	rr := doJSON(t, h, http.MethodGet, "/v1/auth/login", "", nil)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
	if rr.Header().Get("Allow") != http.MethodPost {
		t.Fatalf("expected Allow header, got %q", rr.Header().Get("Allow"))
	}
}
