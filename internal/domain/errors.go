package domain

import (
	"fmt"
)

// NotStartedError means the profile has no story collection yet. Distinct
// from an existing collection with zero records, which is an empty history.
type NotStartedError struct {
	Profile string
}

func (e NotStartedError) Error() string {
	if e.Profile == "" {
		return "story not started"
	}
	return fmt.Sprintf("story not started for %s", e.Profile)
}

// Is enables errors.Is matching on NotStartedError.
func (e NotStartedError) Is(target error) bool {
	_, ok := target.(NotStartedError)
	if !ok {
		_, ok = target.(*NotStartedError)
	}
	return ok
}

// ErrNotStarted is the sentinel for profiles without a story.
var ErrNotStarted = NotStartedError{}

// NetworkMismatchError blocks a write when the caller's active network is not
// the profile's resident network. It must be resolved by the user (switch
// network), never retried blindly.
type NetworkMismatchError struct {
	Active   uint64
	Resident uint64
}

func (e NetworkMismatchError) Error() string {
	return fmt.Sprintf("active network %d does not match profile network %d", e.Active, e.Resident)
}

func (e NetworkMismatchError) Is(target error) bool {
	_, ok := target.(NetworkMismatchError)
	if !ok {
		_, ok = target.(*NetworkMismatchError)
	}
	return ok
}

// ErrNetworkMismatch is the sentinel for network mismatches.
var ErrNetworkMismatch = NetworkMismatchError{}

// UserCancelledError means the signer explicitly declined. Not a failure:
// callers return to the pre-action state without logging an error.
type UserCancelledError struct{}

func (UserCancelledError) Error() string { return "user cancelled" }

func (UserCancelledError) Is(target error) bool {
	_, ok := target.(UserCancelledError)
	if !ok {
		_, ok = target.(*UserCancelledError)
	}
	return ok
}

// ErrUserCancelled is the sentinel for declined signatures.
var ErrUserCancelled = UserCancelledError{}

// TransactionRevertedError carries the ledger's rejection reason verbatim.
type TransactionRevertedError struct {
	Reason string
}

func (e TransactionRevertedError) Error() string {
	if e.Reason == "" {
		return "transaction reverted"
	}
	return fmt.Sprintf("transaction reverted: %s", e.Reason)
}

func (e TransactionRevertedError) Is(target error) bool {
	_, ok := target.(TransactionRevertedError)
	if !ok {
		_, ok = target.(*TransactionRevertedError)
	}
	return ok
}

// ErrTransactionReverted is the sentinel for ledger rejections.
var ErrTransactionReverted = TransactionRevertedError{}

// UpstreamError means the store or credential step failed before the ledger
// was reached. The commit never produced a transaction; retry is user-driven.
type UpstreamError struct {
	Op  string
	Err error
}

func (e UpstreamError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s failed", e.Op)
	}
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e UpstreamError) Unwrap() error { return e.Err }

func (e UpstreamError) Is(target error) bool {
	_, ok := target.(UpstreamError)
	if !ok {
		_, ok = target.(*UpstreamError)
	}
	return ok
}

// ErrUpstream is the sentinel for off-chain dependency failures.
var ErrUpstream = UpstreamError{}

// ValidationError rejects malformed caller input before any side effect.
type ValidationError struct {
	Detail string
}

func (e ValidationError) Error() string {
	if e.Detail == "" {
		return "invalid input"
	}
	return fmt.Sprintf("invalid input: %s", e.Detail)
}

func (e ValidationError) Is(target error) bool {
	_, ok := target.(ValidationError)
	if !ok {
		_, ok = target.(*ValidationError)
	}
	return ok
}

// ErrValidation is the sentinel for rejected input.
var ErrValidation = ValidationError{}
