package domain

import "errors"

// Referential-integrity failures surfaced to callers. Vote rejections that
// are part of the settlement lifecycle (duplicate vote, banned actor, ban
// trigger) are outcomes, not errors.
var (
	ErrUnknownAccount = errors.New("unknown account")
	ErrUnknownField   = errors.New("unknown field")
	ErrUnknownTarget  = errors.New("unknown post or comment")
	ErrDuplicateField = errors.New("field already exists")
	ErrNameTaken      = errors.New("display name already taken")
	ErrBanned         = errors.New("account is banned")
	ErrLevelTooLow    = errors.New("level below write threshold")
)
