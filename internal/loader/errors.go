package loader

import (
	"errors"
	"fmt"
)

var (
	// ErrResourceNotFound means the source was not configured or does not exist.
	ErrResourceNotFound = errors.New("resource not found")
	// ErrLoadFailure means the host reported an error while loading.
	ErrLoadFailure = errors.New("load failure")
	// ErrLoadTimeout means the bounded wait elapsed first.
	ErrLoadTimeout = errors.New("load timeout")
)

// LoadError records why an attempt ended without an asset. Kind is one of
// the sentinel errors above; both Kind and Err match errors.Is.
type LoadError struct {
	Resource Resource
	Tier     Tier
	Kind     error
	Err      error
}

func (e *LoadError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s %s: %v", e.Resource, e.Tier, e.Kind)
	}
	return fmt.Sprintf("%s %s: %v: %v", e.Resource, e.Tier, e.Kind, e.Err)
}

func (e *LoadError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// classify wraps a fetcher error into a LoadError, keeping not-found apart
// from generic failures.
func classify(res Resource, tier Tier, err error) *LoadError {
	var le *LoadError
	if errors.As(err, &le) {
		return le
	}
	kind := ErrLoadFailure
	if errors.Is(err, ErrResourceNotFound) {
		kind = ErrResourceNotFound
	}
	return &LoadError{Resource: res, Tier: tier, Kind: kind, Err: err}
}
