// Package identity owns principals, credentials, and the persisted session.
// It is the only component that reads or writes the session key in the
// durable store.
package identity

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"sentraumkm.org/internal/ids"
	"sentraumkm.org/internal/kv"
)

// Durable store keys. Registered users and admin secret overrides live
// under separate keys: the admin identity set is fixed while its secrets
// are mutable, so the two must not share a record.
const (
	sessionKey   = "auth_session"
	usersKey     = "registered_users"
	overridesKey = "admin_secret_overrides"
)

const minSecretLen = 6

// Manager produces, persists, and tears down the current Principal, and
// mediates every credential change.
type Manager struct {
	store kv.Store
	dir   Directory

	mu      sync.Mutex
	current *Principal

	now func() time.Time
}

// NewManager loads any persisted session from the durable store. A corrupt
// session blob is dropped rather than surfaced; the caller simply starts
// anonymous.
func NewManager(store kv.Store, dir Directory) (*Manager, error) {
	m := &Manager{store: store, dir: dir, now: time.Now}
	raw, ok, err := store.Get(sessionKey)
	if err != nil {
		return nil, fmt.Errorf("identity: load session: %w", err)
	}
	if ok {
		var p Principal
		if err := json.Unmarshal([]byte(raw), &p); err != nil || p.ID == "" {
			_ = store.Delete(sessionKey)
		} else {
			m.current = &p
		}
	}
	return m, nil
}

// Current returns the authenticated principal, if any.
func (m *Manager) Current() (Principal, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return Principal{}, false
	}
	return *m.current, true
}

// Login verifies credentials and starts a session.
//
// The administrative username is shared by every partition's admin, so a
// login with the factory-default secret must name the partition being
// claimed. A per-admin secret override is unique to one id, which makes the
// partition argument redundant on that path; if supplied anyway it must
// match.
func (m *Manager) Login(username, secret, partition string) (Principal, error) {
	username = strings.TrimSpace(username)
	if username == "" || secret == "" {
		return Principal{}, ErrInvalidCredentials
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if username == ReservedUsername {
		return m.loginAdmin(secret, partition)
	}
	return m.loginUser(username, secret)
}

func (m *Manager) loginAdmin(secret, partition string) (Principal, error) {
	overrides, err := m.loadOverrides()
	if err != nil {
		return Principal{}, err
	}

	// Override secrets are unique per admin id, so try them first.
	for _, admin := range m.dir.Admins() {
		hash, ok := overrides[admin.ID]
		if !ok || !VerifySecret(hash, secret) {
			continue
		}
		if partition != "" && partition != admin.Partition {
			return Principal{}, ErrInvalidCredentials
		}
		return m.startSession(m.adminPrincipal(admin, false))
	}

	if !m.dir.matchesDefault(secret) {
		return Principal{}, ErrInvalidCredentials
	}
	if partition == "" {
		return Principal{}, ErrPartitionRequired
	}
	admin, ok := m.dir.ByPartition(partition)
	if !ok {
		return Principal{}, ErrUnknownPartition
	}
	if _, rotated := overrides[admin.ID]; rotated {
		// An override permanently disables the factory default for this id.
		return Principal{}, ErrInvalidCredentials
	}
	return m.startSession(m.adminPrincipal(admin, true))
}

func (m *Manager) loginUser(username, secret string) (Principal, error) {
	users, err := m.loadUsers()
	if err != nil {
		return Principal{}, err
	}
	for _, u := range users {
		if u.Username != username || !VerifySecret(u.SecretHash, secret) {
			continue
		}
		return m.startSession(Principal{
			ID:        u.ID,
			Username:  u.Username,
			Name:      u.Name,
			Role:      RoleUser,
			Partition: u.Partition,
			CreatedAt: u.CreatedAt,
		})
	}
	return Principal{}, ErrInvalidCredentials
}

func (m *Manager) adminPrincipal(admin AdminIdentity, mustRotate bool) Principal {
	return Principal{
		ID:               admin.ID,
		Username:         ReservedUsername,
		Name:             admin.Name,
		Role:             RoleAdmin,
		Partition:        admin.Partition,
		MustRotateSecret: mustRotate,
	}
}

// Register stores a new user profile. It does not start a session; the
// caller logs in separately.
func (m *Manager) Register(username, secret, displayName, partition string) error {
	username = strings.TrimSpace(username)
	if username == "" || secret == "" {
		return ErrInvalidCredentials
	}
	if username == ReservedUsername {
		return ErrUsernameReserved
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	users, err := m.loadUsers()
	if err != nil {
		return err
	}
	for _, u := range users {
		if u.Username == username {
			return ErrUsernameTaken
		}
	}
	hash, err := HashSecret(secret)
	if err != nil {
		return fmt.Errorf("identity: hash secret: %w", err)
	}
	users = append(users, UserRecord{
		ID:         ids.NewOwner(),
		Username:   username,
		SecretHash: hash,
		Name:       displayName,
		Partition:  partition,
		CreatedAt:  m.now().UTC(),
	})
	return m.saveUsers(users)
}

// Logout clears the persisted session only; credential stores are untouched.
func (m *Manager) Logout() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = nil
	return m.store.Delete(sessionKey)
}

// ChangeSecret rotates the current principal's secret. For an admin this
// writes the override entry and clears the forced-rotation flag; for a
// regular user it rewrites the secret in their profile record.
func (m *Manager) ChangeSecret(oldSecret, newSecret string) (Principal, error) {
	if oldSecret == "" || newSecret == "" {
		return Principal{}, ErrInvalidCredentials
	}
	if len(newSecret) < minSecretLen {
		return Principal{}, ErrSecretTooShort
	}
	if oldSecret == newSecret {
		return Principal{}, ErrSecretUnchanged
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return Principal{}, ErrPrincipalNotFound
	}

	if m.current.Role == RoleAdmin {
		return m.rotateAdminSecret(oldSecret, newSecret)
	}
	return m.rotateUserSecret(oldSecret, newSecret)
}

func (m *Manager) rotateAdminSecret(oldSecret, newSecret string) (Principal, error) {
	overrides, err := m.loadOverrides()
	if err != nil {
		return Principal{}, err
	}
	if hash, ok := overrides[m.current.ID]; ok {
		if !VerifySecret(hash, oldSecret) {
			return Principal{}, ErrInvalidCredentials
		}
	} else if !m.dir.matchesDefault(oldSecret) {
		return Principal{}, ErrInvalidCredentials
	}

	hash, err := HashSecret(newSecret)
	if err != nil {
		return Principal{}, fmt.Errorf("identity: hash secret: %w", err)
	}
	overrides[m.current.ID] = hash
	if err := m.saveOverrides(overrides); err != nil {
		return Principal{}, err
	}

	updated := *m.current
	updated.MustRotateSecret = false
	return m.startSession(updated)
}

func (m *Manager) rotateUserSecret(oldSecret, newSecret string) (Principal, error) {
	users, err := m.loadUsers()
	if err != nil {
		return Principal{}, err
	}
	for i := range users {
		if users[i].ID != m.current.ID {
			continue
		}
		if !VerifySecret(users[i].SecretHash, oldSecret) {
			return Principal{}, ErrInvalidCredentials
		}
		hash, err := HashSecret(newSecret)
		if err != nil {
			return Principal{}, fmt.Errorf("identity: hash secret: %w", err)
		}
		users[i].SecretHash = hash
		users[i].LastSecretChange = m.now().UTC()
		if err := m.saveUsers(users); err != nil {
			return Principal{}, err
		}
		return *m.current, nil
	}
	return Principal{}, ErrPrincipalNotFound
}

// OwnerByID resolves an owner profile for remote synchronization. Admins
// come from the fixed directory, users from the registered collection.
func (m *Manager) OwnerByID(id string) (Owner, bool, error) {
	if admin, ok := m.dir.ByID(id); ok {
		return Owner{
			ID:        admin.ID,
			Username:  ReservedUsername,
			Name:      admin.Name,
			Role:      RoleAdmin,
			Partition: admin.Partition,
		}, true, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	users, err := m.loadUsers()
	if err != nil {
		return Owner{}, false, err
	}
	for _, u := range users {
		if u.ID == id {
			return Owner{
				ID:        u.ID,
				Username:  u.Username,
				Name:      u.Name,
				Role:      RoleUser,
				Partition: u.Partition,
			}, true, nil
		}
	}
	return Owner{}, false, nil
}

// OwnersInPartition returns the ids of regular users registered under the
// partition. This is the first hop of the admin visibility relation.
func (m *Manager) OwnersInPartition(partition string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	users, err := m.loadUsers()
	if err != nil {
		return nil, err
	}
	var out []string
	for _, u := range users {
		if u.Partition == partition {
			out = append(out, u.ID)
		}
	}
	return out, nil
}

func (m *Manager) startSession(p Principal) (Principal, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return Principal{}, fmt.Errorf("identity: encode session: %w", err)
	}
	if err := m.store.Set(sessionKey, string(data)); err != nil {
		return Principal{}, fmt.Errorf("identity: persist session: %w", err)
	}
	m.current = &p
	return p, nil
}

func (m *Manager) loadUsers() ([]UserRecord, error) {
	raw, ok, err := m.store.Get(usersKey)
	if err != nil {
		return nil, fmt.Errorf("identity: load users: %w", err)
	}
	if !ok || raw == "" {
		return nil, nil
	}
	var users []UserRecord
	if err := json.Unmarshal([]byte(raw), &users); err != nil {
		return nil, fmt.Errorf("identity: decode users: %w", err)
	}
	return users, nil
}

func (m *Manager) saveUsers(users []UserRecord) error {
	data, err := json.Marshal(users)
	if err != nil {
		return fmt.Errorf("identity: encode users: %w", err)
	}
	if err := m.store.Set(usersKey, string(data)); err != nil {
		return fmt.Errorf("identity: save users: %w", err)
	}
	return nil
}

func (m *Manager) loadOverrides() (map[string]string, error) {
	raw, ok, err := m.store.Get(overridesKey)
	if err != nil {
		return nil, fmt.Errorf("identity: load overrides: %w", err)
	}
	overrides := make(map[string]string)
	if ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &overrides); err != nil {
			return nil, fmt.Errorf("identity: decode overrides: %w", err)
		}
	}
	return overrides, nil
}

func (m *Manager) saveOverrides(overrides map[string]string) error {
	data, err := json.Marshal(overrides)
	if err != nil {
		return fmt.Errorf("identity: encode overrides: %w", err)
	}
	if err := m.store.Set(overridesKey, string(data)); err != nil {
		return fmt.Errorf("identity: save overrides: %w", err)
	}
	return nil
}
