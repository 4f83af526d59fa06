package identity

// ReservedUsername is shared by every partition's administrative identity.
// Registration rejects it unconditionally.
const ReservedUsername = "admin"

// Directory is the fixed, read-only set of administrative identities, one
// per partition, plus the hash of the factory-default secret they all start
// with. It is constant data injected into the Manager, never mutated.
type Directory struct {
	admins            []AdminIdentity
	defaultSecretHash string
}

// NewDirectory builds a directory from the given identities and default
// secret. The secret is hashed immediately and the plaintext discarded.
func NewDirectory(defaultSecret string, admins ...AdminIdentity) Directory {
	list := make([]AdminIdentity, len(admins))
	copy(list, admins)
	return Directory{
		admins:            list,
		defaultSecretHash: mustHashSecret(defaultSecret),
	}
}

// DefaultDirectory returns the production admin set: one chairperson
// identity per RW partition, with stable ids.
func DefaultDirectory() Directory {
	return NewDirectory("admin",
		AdminIdentity{
			ID:        "550e8400-e29b-41d4-a716-446655440001",
			Name:      "Ketua RW 01",
			Partition: "01",
		},
		AdminIdentity{
			ID:        "550e8400-e29b-41d4-a716-446655440004",
			Name:      "Ketua RW 04",
			Partition: "04",
		},
	)
}

// Admins returns a copy of the directory entries.
func (d Directory) Admins() []AdminIdentity {
	out := make([]AdminIdentity, len(d.admins))
	copy(out, d.admins)
	return out
}

// ByPartition looks an administrator up by partition code.
func (d Directory) ByPartition(partition string) (AdminIdentity, bool) {
	for _, a := range d.admins {
		if a.Partition == partition {
			return a, true
		}
	}
	return AdminIdentity{}, false
}

// ByID looks an administrator up by id.
func (d Directory) ByID(id string) (AdminIdentity, bool) {
	for _, a := range d.admins {
		if a.ID == id {
			return a, true
		}
	}
	return AdminIdentity{}, false
}

func (d Directory) matchesDefault(secret string) bool {
	return VerifySecret(d.defaultSecretHash, secret)
}
