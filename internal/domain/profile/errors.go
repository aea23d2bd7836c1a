package profile

import "github.com/waykegoat/MATCH/internal/domain/shared"

// ══════════════════════════════════════════════════════════════════════════════
// ОШИБКИ ДОМЕНА
// ══════════════════════════════════════════════════════════════════════════════

// Ошибки профиля.
var (
	ErrProfileNotFound  = shared.NewDomainError("profile", "Find", shared.ErrNotFound, "profile not found")
	ErrProfileExists    = shared.NewDomainError("profile", "Create", shared.ErrAlreadyExists, "profile already exists")
	ErrInvalidProfileID = shared.NewDomainError("profile", "Validate", shared.ErrInvalidID, "invalid profile ID")
	ErrInvalidName      = shared.NewDomainError("profile", "Validate", shared.ErrInvalidInput, "name must be 2-50 characters")
	ErrInvalidAge       = shared.NewDomainError("profile", "Validate", shared.ErrValueOutOfRange, "age must be between 13 and 100")
	ErrInvalidRegion    = shared.NewDomainError("profile", "Validate", shared.ErrInvalidInput, "unknown region")
	ErrInvalidPlatform  = shared.NewDomainError("profile", "Validate", shared.ErrInvalidInput, "unknown platform")
	ErrNoInterests      = shared.NewDomainError("profile", "Validate", shared.ErrEmptyValue, "at least one interest is required")
	ErrAboutTooLong     = shared.NewDomainError("profile", "Validate", shared.ErrValueOutOfRange, "about text is too long")
)

// Ошибки вложений (фото).
var (
	ErrAttachmentLimit = shared.NewDomainError("profile", "AddAttachment", shared.ErrLimitExceeded, "attachment limit reached")
	ErrAttachmentEmpty = shared.NewDomainError("profile", "AddAttachment", shared.ErrEmptyValue, "attachment reference is empty")
	ErrAttachmentIndex = shared.NewDomainError("profile", "RemoveAttachment", shared.ErrValueOutOfRange, "attachment index out of range")
)

// Ошибки лайков и мэтчей.
var (
	// ErrSelfLike - попытка лайкнуть собственный профиль. Не ретраится.
	ErrSelfLike = shared.NewDomainError("matching", "RecordLike", shared.ErrInvalidInput, "cannot like own profile")

	// ErrUnknownUser - один из участников не найден (например, удалён между
	// показом карточки и лайком). Транспорт просто показывает следующего кандидата.
	ErrUnknownUser = shared.NewDomainError("matching", "RecordLike", shared.ErrNotFound, "unknown user")

	// ErrTargetHidden - профиль скрыт и не принимает новые лайки.
	ErrTargetHidden = shared.NewDomainError("matching", "RecordLike", shared.ErrInvalidState, "target profile is hidden")

	// ErrNoCandidates - подходящих кандидатов нет.
	ErrNoCandidates = shared.NewDomainError("matching", "NextCandidate", shared.ErrNotFound, "no candidates available")
)
