// Package service implements the ticketing operations on top of the
// repositories: voucher validation, checkout, settlement (single, bulk
// and invitation), reconciliation of interrupted settlements and door
// check-in.
package service

import "errors"

// Reason is a stable, machine-readable outcome code.  Rejections are
// returned as reasons inside a result, never as errors.
type Reason string

const (
	ReasonCodeNotFound    Reason = "CODE_NOT_FOUND"
	ReasonVoucherDisabled Reason = "VOUCHER_DISABLED"
	ReasonUsageExhausted  Reason = "USAGE_EXHAUSTED"
	ReasonBelowMinimum    Reason = "BELOW_MINIMUM"
	ReasonOutOfWindow     Reason = "OUT_OF_WINDOW"
	ReasonWrongEvent      Reason = "WRONG_EVENT"
	ReasonInvalidTicket   Reason = "INVALID_TICKET"
	ReasonTicketDisabled  Reason = "TICKET_DISABLED"
	ReasonAlreadyUsed     Reason = "ALREADY_USED"
	ReasonValid           Reason = "VALID"
	ReasonSuccess         Reason = "SUCCESS"
	ReasonCheckInFailed   Reason = "CHECK_IN_FAILED"
)

var (
	// ErrOrderNotFound is returned when settling an unknown order.
	ErrOrderNotFound = errors.New("order not found")
	// ErrTicketNotFound is returned by Disable and Enable for an unknown credential.
	ErrTicketNotFound = errors.New("ticket not found")
	// ErrInvalidAmount is returned when a voucher is evaluated against a
	// non-positive order amount.
	ErrInvalidAmount = errors.New("order amount must be positive")
	ErrBatchTooLarge = errors.New("too many orders in one bulk confirmation")
	// ErrInvalidInvitation covers unknown or foreign ticket types and bad
	// quantities in a guest issuance request.
	ErrInvalidInvitation = errors.New("invalid invitation")
	ErrEventNotFound     = errors.New("event not found")
	// ErrEventClosed is returned by checkout for inactive events and
	// events outside their sale window.
	ErrEventClosed = errors.New("event is not on sale")
	ErrInvalidCart = errors.New("invalid cart")
	// ErrSoldOut is returned by checkout when a line asks for more than is
	// shown as remaining.
	ErrSoldOut = errors.New("not enough tickets remaining")
	// ErrVoucherRejected wraps a voucher rejection at checkout; the
	// CheckoutResult carries the reason.
	ErrVoucherRejected = errors.New("voucher rejected")
)
