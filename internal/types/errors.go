package types

import "errors"

// Sentinel errors shared across features. Handlers translate these into HTTP
// statuses with errors.Is; services wrap them with context via fmt.Errorf.
var (
	ErrNotFound        = errors.New("requested item not found")
	ErrConflict        = errors.New("item already exists or conflict")
	ErrUnauthenticated = errors.New("authentication required or invalid credentials")
	ErrDeactivated     = errors.New("account is deactivated")
	ErrValidation      = errors.New("invalid input")
	ErrDependency      = errors.New("upstream dependency failed")
)
