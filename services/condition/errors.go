package condition

import "github.com/pkg/errors"

// Failure taxonomy of condition operations. Callers inspect the cause
// of a returned error against these sentinels, any additional context
// is carried in the wrapping message.
var (
	// ErrStreamNotFound is returned when the referenced stream does not exist.
	ErrStreamNotFound = errors.New("stream not found")

	// ErrConditionNotFound is returned when the referenced condition does not
	// exist within its stream.
	ErrConditionNotFound = errors.New("alert condition not found")

	// ErrUnknownConditionType is returned when a type identifier has no
	// registry entry.
	ErrUnknownConditionType = errors.New("unknown alert condition type")

	// ErrInvalidParameters is returned when condition parameters fail
	// decoding or validation.
	ErrInvalidParameters = errors.New("invalid alert condition parameters")

	// ErrTypeMismatch is returned when an update requests a different type
	// than the one the condition was created with.
	ErrTypeMismatch = errors.New("alert condition type cannot be changed")

	// ErrPermissionDenied is returned when the acting user lacks the
	// privilege for the operation.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrConflictingUpdate is returned when a condition disappears between
	// the read and the write of an update.
	ErrConflictingUpdate = errors.New("conflicting update")

	// ErrStorageUnavailable is returned once retries against the storage
	// layer are exhausted.
	ErrStorageUnavailable = errors.New("storage unavailable")
)
