package messaging

import "errors"

// Permission errors: the caller is authenticated but not allowed to act.
var (
	ErrNotParticipant = errors.New("messaging: user is not a participant in this conversation")
	ErrForbidden      = errors.New("messaging: admin access required")
)

// Validation errors: rejected before any write.
var (
	ErrInvalidContent   = errors.New("messaging: invalid message content")
	ErrSelfConversation = errors.New("messaging: cannot open a conversation with yourself")
)

// Not-found errors.
var ErrParticipantNotFound = errors.New("messaging: participant not found")

// Integrity errors mean a stored invariant is already broken; callers cannot fix them.
var (
	ErrIntegrity         = errors.New("messaging: data integrity violation")
	ErrRecipientNotFound = errors.New("messaging: conversation has no counterpart participant")
)

// ErrPersistence wraps failures coming from the store.
var ErrPersistence = errors.New("messaging: persistence error")

// IsInternal reports whether err should be surfaced as a generic server failure.
func IsInternal(err error) bool {
	return errors.Is(err, ErrIntegrity) || errors.Is(err, ErrPersistence)
}
