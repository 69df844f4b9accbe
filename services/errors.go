// Package services holds the domain layer: catalog CRUD, the entitlement
// engine, and the purchase orchestrator. Handlers translate the sentinel
// errors below into HTTP status codes; a Forbidden is deliberately distinct
// from a NotFound so denial never masquerades as absence.
package services

import "errors"

var (
	// ErrNotFound means the record does not exist (or is soft-deleted).
	ErrNotFound = errors.New("record not found")

	// ErrForbidden means the caller is authenticated but not allowed.
	ErrForbidden = errors.New("operation not allowed")

	// ErrFreeContent means a purchase was attempted for free content.
	ErrFreeContent = errors.New("content is free and cannot be purchased")

	// ErrAlreadyPurchased means the caller already owns the content.
	ErrAlreadyPurchased = errors.New("content already purchased")

	// ErrUnknownProvider means the requested payment provider is not wired.
	ErrUnknownProvider = errors.New("unknown payment provider")

	// ErrNotPending means a lifecycle transition was attempted on a purchase
	// that already left the pending state.
	ErrNotPending = errors.New("purchase is not pending")

	// ErrProviderMismatch means the request targets a purchase created with
	// a different payment provider.
	ErrProviderMismatch = errors.New("purchase belongs to a different payment provider")
)
