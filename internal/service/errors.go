package service

import "errors"

// Participant checks surface ErrCallNotFound instead of a distinct
// "forbidden" error so unauthorized callers cannot probe for call ids.
var (
	ErrUserNotFound    = errors.New("user not found")
	ErrCallNotFound    = errors.New("call not found")
	ErrCallNotActive   = errors.New("call is not active")
	ErrInvalidRating   = errors.New("rating must be between 1 and 5")
	ErrNoCandidate     = errors.New("no eligible candidate available")
	ErrSelfCall        = errors.New("cannot call yourself")
	ErrSelfFriend      = errors.New("cannot friend yourself")
	ErrRequestNotFound = errors.New("friend request not found")
	ErrRequestExists   = errors.New("friend request already exists")
	ErrAlreadyFriends  = errors.New("users are already friends")
)
