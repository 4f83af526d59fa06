package identity

import "errors"

var (
	ErrInvalidCredentials = errors.New("identity: invalid credentials")
	ErrUsernameReserved   = errors.New("identity: username is reserved")
	ErrUsernameTaken      = errors.New("identity: username already taken")
	ErrSecretTooShort     = errors.New("identity: secret is too short")
	ErrSecretUnchanged    = errors.New("identity: new secret must differ from the old one")
	ErrPrincipalNotFound  = errors.New("identity: no authenticated principal")
	ErrPartitionRequired  = errors.New("identity: partition selection required")
	ErrUnknownPartition   = errors.New("identity: unknown partition")
)
