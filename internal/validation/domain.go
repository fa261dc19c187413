package validation

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/retrouvio/retrouvio/internal/perm"
)

// Status is the approval life-cycle state of an action record.
type Status string

const (
	// StatusPending awaits a super-admin decision.
	StatusPending Status = "pending"
	// StatusApproved is terminal.
	StatusApproved Status = "approved"
	// StatusRejected is terminal.
	StatusRejected Status = "rejected"
)

var (
	// ErrPermissionDenied indicates the approver lacks resolution rights.
	ErrPermissionDenied = errors.New("validation: permission denied")
	// ErrAlreadyResolved indicates the record already left the pending state.
	ErrAlreadyResolved = errors.New("validation: action already resolved")
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("validation: not found")
)

// Record is one audit entry for an attempted sensitive action. Records are
// never deleted; a pending record moves to exactly one terminal state.
type Record struct {
	ID          uuid.UUID
	ActionType  perm.ActionType
	RequestedBy uuid.UUID
	Details     string
	Status      Status
	ApprovedBy  *uuid.UUID
	RejectedBy  *uuid.UUID
	Comment     string
	CreatedAt   time.Time
	ResolvedAt  *time.Time
}

// Resolved reports whether the record reached a terminal state.
func (r Record) Resolved() bool {
	return r.Status != StatusPending
}
