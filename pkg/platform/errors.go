package platform

import (
	"errors"
	"fmt"
)

// Sentinel errors for platform operations.
var (
	// ErrNoCredentials is returned when no token can be resolved for a platform and endpoint.
	ErrNoCredentials = errors.New("no credentials found for platform")

	// ErrPRAlreadyExists is returned when an open pull request already exists for the branch.
	ErrPRAlreadyExists = errors.New("pull request already exists for this branch")

	// ErrPRNotFound is returned when a mutation targets a pull request that does not exist.
	ErrPRNotFound = errors.New("pull request not found")

	// ErrPRNotOpen is returned when a mutation targets a merged or declined pull request.
	ErrPRNotOpen = errors.New("pull request is not open")

	// ErrUnsupported matches every [UnsupportedError] through errors.Is.
	ErrUnsupported = errors.New("operation not supported by provider")

	// ErrInvalidRepository is returned when a repository identifier cannot be parsed.
	ErrInvalidRepository = errors.New("invalid repository identifier")

	// ErrUnknownPlatform is returned by the factory for an unrecognised platform name.
	ErrUnknownPlatform = errors.New("unknown platform")
)

// UnsupportedError reports an operation that a provider does not implement.
// It is distinct from remote failures so callers can branch on it.
type UnsupportedError struct {
	Provider  string
	Operation string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("%s: %s not supported", e.Provider, e.Operation)
}

// Is reports whether target is [ErrUnsupported].
func (e *UnsupportedError) Is(target error) bool {
	return target == ErrUnsupported
}

func unsupported(provider, operation string) error {
	return &UnsupportedError{Provider: provider, Operation: operation}
}
