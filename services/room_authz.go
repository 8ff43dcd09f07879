package services

import (
	"time"

	"github.com/hakkacheyassin/ft-trans/models"
)

// Authorization decisions over membership snapshots. Pure functions so the
// same rules apply on every mutation path and can be tested without a
// database. The caller fetches the rows; nil means no membership exists.

// RequireAdmin succeeds iff a non-banned membership with admin rights exists.
func RequireAdmin(m *models.Membership) error {
	if m == nil || m.Banned || !m.Admin {
		return ErrNotAdmin
	}
	return nil
}

// RequireOwner succeeds iff an owner membership exists.
func RequireOwner(m *models.Membership) error {
	if m == nil || !m.Owner {
		return ErrNotOwner
	}
	return nil
}

// CanJoin checks ban state and, for protected rooms, the supplied password
// against the stored hash.
func CanJoin(room *models.Room, m *models.Membership, password string, hasher PasswordHasher) error {
	if m != nil && m.Banned {
		return ErrBanned
	}
	if room.Type == models.RoomProtected {
		if password == "" {
			return ErrPasswordRequired
		}
		if !hasher.Verify(room.Password, password) {
			return ErrIncorrectPassword
		}
	}
	return nil
}

// CanLeave rejects owners, banned members and actively muted members.
func CanLeave(m *models.Membership, now time.Time) error {
	if m == nil {
		return ErrMembershipNotFound
	}
	if m.Owner {
		return ErrOwnerCannotLeave
	}
	if m.Banned {
		return ErrLeaveWhileBanned
	}
	if m.MutedAt(now) {
		return ErrLeaveWhileMuted
	}
	return nil
}
