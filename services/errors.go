package services

import (
	"errors"
	"fmt"
)

// Category sentinels. Handlers map these to HTTP statuses with errors.Is;
// anything not wrapping one of the four is treated as a persistence failure.
var (
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("forbidden")
	ErrConflict        = errors.New("conflict")
	ErrInvalidArgument = errors.New("invalid argument")
)

var (
	ErrRoomNotFound       = fmt.Errorf("room %w", ErrNotFound)
	ErrUserNotFound       = fmt.Errorf("user %w", ErrNotFound)
	ErrMembershipNotFound = fmt.Errorf("membership %w", ErrNotFound)

	ErrNotAdmin          = fmt.Errorf("%w: not admin", ErrForbidden)
	ErrNotOwner          = fmt.Errorf("%w: not owner", ErrForbidden)
	ErrBanned            = fmt.Errorf("%w: banned", ErrForbidden)
	ErrPasswordRequired  = fmt.Errorf("%w: password required", ErrForbidden)
	ErrIncorrectPassword = fmt.Errorf("%w: wrong password", ErrForbidden)

	ErrOwnerCannotLeave = fmt.Errorf("%w: owner cannot leave", ErrConflict)
	ErrLeaveWhileBanned = fmt.Errorf("%w: banned", ErrConflict)
	ErrLeaveWhileMuted  = fmt.Errorf("%w: muted", ErrConflict)

	ErrRoomNameRequired     = fmt.Errorf("%w: room name required", ErrInvalidArgument)
	ErrInvalidRoomType      = fmt.Errorf("%w: unknown room type", ErrInvalidArgument)
	ErrProtectedNeedsPasswd = fmt.Errorf("%w: protected room requires a password", ErrInvalidArgument)
	ErrDMWithSelf           = fmt.Errorf("%w: cannot open a dm with yourself", ErrInvalidArgument)
)

// ForbiddenRoomAccess is returned by GetRoomDetail when the viewer is not a
// member. It exposes whether the room has a password so the client can prompt
// for one before retrying via join.
type ForbiddenRoomAccess struct {
	HasPassword bool
}

func (e *ForbiddenRoomAccess) Error() string {
	return "forbidden: you are not in this room"
}

func (e *ForbiddenRoomAccess) Unwrap() error { return ErrForbidden }
