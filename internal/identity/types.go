package identity

import "time"

// Role distinguishes partition administrators from self-registered users.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Principal is the authenticated identity handed to persistence callers.
// Partition is the RW code scoping an administrator's visibility; for
// regular users it is the partition they registered under.
type Principal struct {
	ID               string    `json:"id"`
	Username         string    `json:"username"`
	Name             string    `json:"name"`
	Role             Role      `json:"role"`
	Partition        string    `json:"partition,omitempty"`
	MustRotateSecret bool      `json:"must_rotate_secret,omitempty"`
	CreatedAt        time.Time `json:"created_at,omitempty"`
}

// AdminIdentity is one entry of the fixed administrative directory.
// The id is never reused across partitions.
type AdminIdentity struct {
	ID        string
	Name      string
	Partition string
}

// UserRecord is a registered user's profile plus credential, stored inline
// in the durable store.
type UserRecord struct {
	ID               string    `json:"id"`
	Username         string    `json:"username"`
	SecretHash       string    `json:"secret_hash"`
	Name             string    `json:"name"`
	Partition        string    `json:"partition"`
	CreatedAt        time.Time `json:"created_at"`
	LastSecretChange time.Time `json:"last_secret_change,omitempty"`
}

// Owner is the identity view the persistence layer needs when it syncs an
// owner row into the remote store.
type Owner struct {
	ID        string
	Username  string
	Name      string
	Role      Role
	Partition string
}
