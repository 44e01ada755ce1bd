package services

import "errors"

var (
	ErrItemNotFound      = errors.New("item not found")
	ErrReactionNotFound  = errors.New("reaction not found")
	ErrInvalidKind       = errors.New("invalid reaction kind")
	ErrDuplicateReaction = errors.New("reaction already exists")
	ErrNotOwner          = errors.New("reaction belongs to another user")
	ErrInvalidPage       = errors.New("page must be 1 or greater")
	ErrInvalidActivity   = errors.New("place name is required and must be at most 200 characters")
	ErrUserNotFound      = errors.New("user not found")
)
