// Package services defines the business logic for the purchase workflow and
// the notification outbox. This file centralizes common service-level error
// values so that they can be consistently returned by service methods and
// checked by callers.
//
// Translation into user-facing messages or HTTP status codes is performed at
// the handler layer.
package services

import "errors"

// Purchase-related errors.
var (
	// ErrPurchaseNotFound indicates that the requested purchase does not exist.
	ErrPurchaseNotFound = errors.New("purchase not found")

	// ErrInvalidTransition is returned when the requested operation is not
	// allowed from the purchase's current status.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrConflict is returned when the purchase state contradicts the request,
	// e.g. canceling a bought purchase or taking one already claimed.
	ErrConflict = errors.New("purchase state conflict")

	// ErrEmptyDescription is returned when a purchase is created without text.
	ErrEmptyDescription = errors.New("description is empty")

	// ErrDescriptionTooLong is returned when the description exceeds the
	// configured rune limit.
	ErrDescriptionTooLong = errors.New("description too long")

	// ErrInvalidPriority is returned for priorities other than normal/urgent.
	ErrInvalidPriority = errors.New("priority must be normal or urgent")

	// ErrEmptyComment is returned when a comment has no text.
	ErrEmptyComment = errors.New("comment is empty")

	// ErrCommentTooLong is returned when a comment exceeds the rune limit.
	ErrCommentTooLong = errors.New("comment too long")

	// ErrInvalidStatus is returned when filtering by an unknown status.
	ErrInvalidStatus = errors.New("unknown status")
)

// Outbox errors.
var (
	// ErrInvalidPurchaseID is returned when enqueueing a notification for a
	// non-positive purchase id.
	ErrInvalidPurchaseID = errors.New("purchase id must be positive")

	// ErrNoDeliverer is returned by DrainDue when no delivery channel is
	// configured; nothing is claimed in that case.
	ErrNoDeliverer = errors.New("no deliverer configured")
)
