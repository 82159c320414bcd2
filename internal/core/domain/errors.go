package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrReservationLost is returned when committing or releasing a reservation that is no longer held
	ErrReservationLost = errors.New("reservation is no longer held")
	// ErrIdentityNotFound is returned by identity providers when the username does not exist
	ErrIdentityNotFound = errors.New("identity not found")
	// ErrCooldownRecordNotFound no cooldown record exists for the identity
	ErrCooldownRecordNotFound = errors.New("cooldown record not found")
	// ErrPayoutUnconfirmed the payout was broadcast but its outcome is not known yet
	ErrPayoutUnconfirmed = errors.New("payout not confirmed")
)

// InputError is a malformed request, rejected before any external call
type InputError struct {
	Field   string
	Message string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// VerificationFailure means the account did not pass the verification policy
type VerificationFailure struct {
	Reasons []FailureReason
}

func (e *VerificationFailure) Error() string {
	reasons := make([]string, len(e.Reasons))
	for i, r := range e.Reasons {
		reasons[i] = string(r)
	}
	return "verification failed: " + strings.Join(reasons, ", ")
}

// CooldownActiveError denies a payout until RetryAfter has elapsed
type CooldownActiveError struct {
	RetryAfter time.Duration
	InFlight   bool
}

func (e *CooldownActiveError) Error() string {
	if e.InFlight {
		return fmt.Sprintf("a payout for this account is already in progress, retry after %s", e.RetryAfter.Round(time.Second))
	}
	return fmt.Sprintf("cooldown active, retry after %s", e.RetryAfter.Round(time.Second))
}

// IdentityLookupError means the identity provider could not answer. It is never a policy denial.
type IdentityLookupError struct {
	Username string
	Cause    error
}

func (e *IdentityLookupError) Error() string {
	return fmt.Sprintf("identity lookup for %q failed: %v", e.Username, e.Cause)
}

func (e *IdentityLookupError) Unwrap() error {
	return e.Cause
}

// ExecutionError means the payout capability did not transfer the funds
type ExecutionError struct {
	TxID  string
	Cause error
}

func (e *ExecutionError) Error() string {
	if e.TxID != "" {
		return fmt.Sprintf("payout %s failed: %v", e.TxID, e.Cause)
	}
	return fmt.Sprintf("payout failed: %v", e.Cause)
}

func (e *ExecutionError) Unwrap() error {
	return e.Cause
}
