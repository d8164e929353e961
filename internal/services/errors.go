// internal/services/errors.go
//
// Service-level sentinel errors. Handlers translate these into HTTP status
// codes; services return them for the predictable failure cases so every
// call site gets consistent treatment.
package services

import "errors"

var (
	// ErrProductNotFound indicates the product id has no record. The vote
	// aggregator never creates products implicitly; callers must go through
	// the explicit creation step first.
	ErrProductNotFound = errors.New("product not found")

	// ErrVoteNotFound indicates no vote exists for the (product, user) pair.
	ErrVoteNotFound = errors.New("vote not found")

	// ErrUserNotFound indicates the user record does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrPermissionDenied indicates an authorization rule rejected the
	// operation. Surfaced distinctly from not-found.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrProductExists is returned by explicit creation when the normalized
	// name already has a record. Callers decide whether to redirect the user
	// to the existing product or reject.
	ErrProductExists = errors.New("product already exists")

	// ErrEmptyProductName is returned when a display name is empty or
	// whitespace-only. Names are rejected before normalization.
	ErrEmptyProductName = errors.New("product name is empty")

	// ErrInvalidRating is returned when safety/taste fall outside [0,100]
	// or price outside {1..5}.
	ErrInvalidRating = errors.New("rating out of range")

	// ErrImageTooLarge is returned for photos over the 5 MB analysis cap.
	ErrImageTooLarge = errors.New("image exceeds maximum size")

	// ErrUnsupportedImageType is returned for MIME types outside
	// jpeg/jpg/png/webp.
	ErrUnsupportedImageType = errors.New("unsupported image type")
)
