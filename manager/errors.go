package manager

import (
	"errors"
	"fmt"

	"github.com/treelock/treelock/types"
)

var (
	// ErrAlreadyLocked indicates the request collided with an active lock
	// held by another party. Match with errors.Is; the concrete error is an
	// *AlreadyLockedError carrying the conflicting resource.
	ErrAlreadyLocked = errors.New("manager: resource already locked")

	// ErrConflict indicates the request contradicts the current lock state:
	// unlocking an unlocked resource, presenting an unknown lock token, or
	// refreshing a lease that has already ended.
	ErrConflict = errors.New("manager: lock state conflict")

	// ErrUnprocessable indicates the request itself is malformed: an
	// unknown scope or depth value.
	ErrUnprocessable = errors.New("manager: unprocessable lock request")

	// ErrNoPrincipal indicates no principal identity could be established
	// for the request.
	ErrNoPrincipal = errors.New("manager: no principal for request")
)

// AlreadyLockedError reports the resource whose active lock blocked a
// request. Partial marks an infinite-depth acquisition that registered the
// root and some descendants before hitting the conflict; the returned handle
// remains valid and can be unlocked to unwind the committed part.
type AlreadyLockedError struct {
	Resource types.ResourceID
	Partial  bool
}

func (e *AlreadyLockedError) Error() string {
	if e.Partial {
		return fmt.Sprintf("manager: resource already locked: %s (partial acquisition left in place)", e.Resource)
	}
	return fmt.Sprintf("manager: resource already locked: %s", e.Resource)
}

// Is reports a match against the ErrAlreadyLocked sentinel.
func (e *AlreadyLockedError) Is(target error) bool { return target == ErrAlreadyLocked }
