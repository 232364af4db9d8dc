package access

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means the identity or row does not exist.
	ErrNotFound = errors.New("access: not found")
	// ErrInfrastructure marks storage failures; callers may retry.
	ErrInfrastructure = errors.New("access: infrastructure error")
	// ErrIllegalTransition rejects a status change from or to an invalid
	// state, or one missing its mandatory reason.
	ErrIllegalTransition = errors.New("access: illegal transition")
	// ErrInvalidConstraint rejects malformed input such as a temporary
	// suspension without a future expiry.
	ErrInvalidConstraint = errors.New("access: invalid constraint")
	// ErrSelfModification rejects an actor targeting their own account.
	ErrSelfModification = errors.New("access: actor cannot modify own account")
	// ErrConflict reports a uniqueness violation on create.
	ErrConflict = errors.New("access: conflict")
)

// infra wraps a storage error unless it is already one of the package
// sentinels that callers are expected to branch on.
func infra(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrConflict) || errors.Is(err, ErrInfrastructure) ||
		errors.Is(err, ErrIllegalTransition) || errors.Is(err, ErrInvalidConstraint) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrInfrastructure, op, err)
}
