package domain

import "errors"

var ErrNotFound = errors.New("not found")
var ErrUnsupported = errors.New("unsupported operation")

var (
	ErrMalformedEvent = errors.New("malformed event")
	ErrInvalidRecord  = errors.New("invalid record")
	ErrInvalidLink    = errors.New("invalid link")
	ErrInvalidToken   = errors.New("invalid token")
	ErrExpired        = errors.New("token expired")
	ErrForbidden      = errors.New("forbidden")
	ErrLimitReached   = errors.New("limit reached")
	ErrDuplicate      = errors.New("duplicate file")
	// ErrRecipientGone is returned by the transport when the peer blocked the
	// bot or no longer exists.
	ErrRecipientGone = errors.New("recipient unavailable")
)
