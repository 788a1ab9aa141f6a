package contract

import "errors"

// Error categories. Every failure returned by an operation unwraps to one of these.
var (
	ErrUnauthorized        = errors.New("unauthorized")
	ErrNotFound            = errors.New("not found")
	ErrAlreadyApproved     = errors.New("already approved")
	ErrAlreadyExecuted     = errors.New("already executed")
	ErrAlreadyCanceled     = errors.New("already canceled")
	ErrInvalidInput        = errors.New("invalid input")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrWindowClosed        = errors.New("voting window closed")
	ErrWindowNotStarted    = errors.New("voting window not started")
	ErrWindowOpen          = errors.New("voting window still open")
	ErrQuorumNotReached    = errors.New("quorum not reached")
	ErrNotPassed           = errors.New("proposal not passed")
	ErrTransferFailed      = errors.New("transfer failed")
	ErrOverflow            = errors.New("overflow")
	ErrNotApproved         = errors.New("not approved")
	ErrAlreadyVoted        = errors.New("already voted")
	ErrNoVotingPower       = errors.New("no voting power")
	ErrNoActiveDelegation  = errors.New("no active delegation")
	ErrInitialized         = errors.New("already initialized")
	ErrNotInitialized      = errors.New("not initialized")
)

var categories = []error{
	ErrUnauthorized, ErrNotFound, ErrAlreadyApproved, ErrAlreadyExecuted, ErrAlreadyCanceled,
	ErrInvalidInput, ErrInsufficientBalance, ErrInsufficientFunds, ErrWindowClosed,
	ErrWindowNotStarted, ErrWindowOpen, ErrQuorumNotReached, ErrNotPassed, ErrTransferFailed,
	ErrOverflow, ErrNotApproved, ErrAlreadyVoted, ErrNoVotingPower, ErrNoActiveDelegation,
	ErrInitialized, ErrNotInitialized,
}

// Category returns the category err belongs to, or nil for failures that
// did not come from a contract (store, context).
func Category(err error) error {
	for _, c := range categories {
		if errors.Is(err, c) {
			return c
		}
	}
	return nil
}

// Error is a named failure that belongs to one of the categories above.
type Error struct {
	kind error
	msg  string
}

func newError(kind error, msg string) *Error {
	return &Error{kind: kind, msg: msg}
}

func (e *Error) Error() string { return e.msg }

// Unwrap exposes the category so errors.Is matches both the name and the kind.
func (e *Error) Unwrap() error { return e.kind }

var (
	ErrProposalNotFound            = newError(ErrNotFound, "proposal not found")
	ErrProposalCanceled            = newError(ErrAlreadyCanceled, "proposal canceled")
	ErrVotingNotStarted            = newError(ErrWindowNotStarted, "voting not started")
	ErrVotingEnded                 = newError(ErrWindowClosed, "voting ended")
	ErrVotingNotEnded              = newError(ErrWindowOpen, "voting not ended")
	ErrProposalNotPassed           = newError(ErrNotPassed, "proposal not passed")
	ErrEmptyDescription            = newError(ErrInvalidInput, "empty description")
	ErrInvalidRecipient            = newError(ErrInvalidInput, "invalid recipient")
	ErrInvalidAmount               = newError(ErrInvalidInput, "invalid amount")
	ErrInvalidDelegate             = newError(ErrInvalidInput, "invalid delegate")
	ErrInvalidAddress              = newError(ErrInvalidInput, "invalid address")
	ErrInvalidToken                = newError(ErrInvalidInput, "invalid token")
	ErrInvalidPeriod               = newError(ErrInvalidInput, "invalid voting period")
	ErrZeroValue                   = newError(ErrInvalidInput, "zero value")
	ErrInsufficientAllowance       = newError(ErrInsufficientBalance, "insufficient allowance")
	ErrInsufficientDelegatedAmount = newError(ErrInsufficientBalance, "insufficient delegated amount")
	ErrUnknownAction               = newError(ErrInvalidInput, "unknown action")
	ErrUnknownContract             = newError(ErrNotFound, "unknown contract")
	ErrBelowThreshold              = newError(ErrUnauthorized, "below proposal threshold")
	ErrCallDepth                   = newError(ErrTransferFailed, "call depth exceeded")
)
