package sitecontent

import (
	"errors"
	"fmt"
)

// Error types
var (
	// ErrStoreUnavailable indicates the store could not be read or written
	ErrStoreUnavailable = errors.New("content store unavailable")

	// ErrDocumentNotFound indicates no document was ever saved under the key.
	// It also matches ErrStoreUnavailable.
	ErrDocumentNotFound = fmt.Errorf("%w: document not found", ErrStoreUnavailable)

	// ErrMalformedPayload indicates a request body that is not a JSON object
	ErrMalformedPayload = errors.New("malformed payload")

	// ErrInvalidationFailed indicates a consumer could not be told about stale views
	ErrInvalidationFailed = errors.New("invalidation failed")

	// ErrSectionNotFound indicates the document has no such top-level section
	ErrSectionNotFound = errors.New("section not found")

	// ErrPageNotFound indicates a page slug with no known sections
	ErrPageNotFound = errors.New("page not found")

	// ErrInvalidKey indicates an empty or unusable document key or section name
	ErrInvalidKey = errors.New("invalid key")

	// ErrUpdateRejected indicates a BeforeUpdate hook refused the patch
	ErrUpdateRejected = errors.New("update rejected")
)

// StoreError represents an error related to store operations
type StoreError struct {
	Backend string
	Key     string
	Op      string
	Err     error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store operation %s failed for key %s on backend %s: %v", e.Op, e.Key, e.Backend, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// UpdateError represents an error in a merge-and-persist cycle
type UpdateError struct {
	Key string
	Op  string
	Err error
}

func (e *UpdateError) Error() string {
	return fmt.Sprintf("content operation %s failed for document %s: %v", e.Op, e.Key, e.Err)
}

func (e *UpdateError) Unwrap() error {
	return e.Err
}

// NewStoreError wraps err so that it matches ErrStoreUnavailable unless it
// already matches a more specific sentinel of this package.
func NewStoreError(backend, key, op string, err error) error {
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrStoreUnavailable) {
		err = fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return &StoreError{Backend: backend, Key: key, Op: op, Err: err}
}
