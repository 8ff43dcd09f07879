package services

import (
	"context"

	"github.com/hakkacheyassin/ft-trans/models"
)

// RoomRepository is the persistence contract of the room lifecycle. Each call
// is atomic with respect to a single row or composite key; the multi-row
// predicates (DM pair lookup, visibility filter, owner-gated update) are
// evaluated by the store at query time so the service never acts on a stale
// recomputation.
type RoomRepository interface {
	FindUser(ctx context.Context, id uint) (*models.User, error)
	FindRoom(ctx context.Context, id uint) (*models.Room, error)
	// FindMembership returns (nil, nil) when no row exists.
	FindMembership(ctx context.Context, roomID, userID uint) (*models.Membership, error)

	CreateRoom(ctx context.Context, room *models.Room) error
	CreateMembership(ctx context.Context, m *models.Membership) error
	DeleteMembership(ctx context.Context, roomID, userID uint) error
	UpdateMembership(ctx context.Context, roomID, userID uint, patch models.MembershipPatch) error

	// UpdateRoomOwnedBy applies the patch only if ownerID holds an owner
	// membership of the room, with the predicate evaluated inside the update
	// statement. Returns the number of rows matched.
	UpdateRoomOwnedBy(ctx context.Context, roomID, ownerID uint, patch RoomPatch) (int64, error)

	// FindDMRoom returns the dm room whose membership set is exactly the two
	// users, neither owner nor admin, or (nil, nil) when absent.
	FindDMRoom(ctx context.Context, userA, userB uint) (*models.Room, error)

	// ListVisibleRooms returns public and protected rooms, plus private and dm
	// rooms the viewer belongs to, newest first, with banned members excluded
	// from the participant avatars.
	ListVisibleRooms(ctx context.Context, viewerID uint) ([]models.RoomSummary, error)

	// ListMembers returns the full roster of a room, newest membership first.
	ListMembers(ctx context.Context, roomID uint) ([]models.RoomMember, error)
}

// EventSink broadcasts "room state changed" to connected clients. Fire and
// forget: no payload, no acknowledgment, no ordering. Consumers re-fetch.
type EventSink interface {
	NotifyRoomsChanged()
}

// PasswordHasher is a slow salted one-way hash for room passwords.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(hash, plaintext string) bool
}
