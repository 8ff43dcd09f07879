package services

import (
	"context"
	"fmt"
	"time"

	"github.com/hakkacheyassin/ft-trans/models"
)

// RoomPatch is the owner-editable subset of a room. Password is the new
// plaintext for protected rooms; it is hashed before storage and cleared for
// every other type.
type RoomPatch struct {
	Name     string          `json:"name"`
	Type     models.RoomType `json:"type"`
	Password string          `json:"password,omitempty"`
}

// RoomService orchestrates room lifecycle operations: authorization first,
// then the repository mutation, then a best-effort sink notification.
type RoomService struct {
	repo   RoomRepository
	sink   EventSink
	hasher PasswordHasher
	now    func() time.Time
}

func NewRoomService(repo RoomRepository, sink EventSink, hasher PasswordHasher) *RoomService {
	return &RoomService{
		repo:   repo,
		sink:   sink,
		hasher: hasher,
		now:    time.Now,
	}
}

// CreateRoom creates a non-dm room and its owner membership.
func (s *RoomService) CreateRoom(ctx context.Context, creatorID uint, name string, roomType models.RoomType, password string) (*models.Room, error) {
	if name == "" {
		return nil, ErrRoomNameRequired
	}
	switch roomType {
	case models.RoomPublic, models.RoomPrivate:
		password = ""
	case models.RoomProtected:
		if password == "" {
			return nil, ErrProtectedNeedsPasswd
		}
		hash, err := s.hasher.Hash(password)
		if err != nil {
			return nil, fmt.Errorf("hash room password: %w", err)
		}
		password = hash
	default:
		// dm rooms are only created through CreateOrGetDM
		return nil, ErrInvalidRoomType
	}

	room := &models.Room{
		Name:     name,
		Type:     roomType,
		Password: password,
	}
	if err := s.repo.CreateRoom(ctx, room); err != nil {
		return nil, fmt.Errorf("create room: %w", err)
	}
	membership := &models.Membership{
		RoomID: room.ID,
		UserID: creatorID,
		Owner:  true,
		Admin:  true,
	}
	if err := s.repo.CreateMembership(ctx, membership); err != nil {
		return nil, fmt.Errorf("create owner membership: %w", err)
	}
	s.sink.NotifyRoomsChanged()
	return room, nil
}

// CreateOrGetDM returns the dm room shared by the two users, creating it on
// first use. Calling it twice with the same pair returns the same room.
func (s *RoomService) CreateOrGetDM(ctx context.Context, userA, userB uint) (*models.Room, error) {
	if userA == userB {
		return nil, ErrDMWithSelf
	}
	existing, err := s.repo.FindDMRoom(ctx, userA, userB)
	if err != nil {
		return nil, fmt.Errorf("find dm room: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	a, err := s.repo.FindUser(ctx, userA)
	if err != nil {
		return nil, err
	}
	b, err := s.repo.FindUser(ctx, userB)
	if err != nil {
		return nil, err
	}

	room := &models.Room{
		Name: a.Username + " & " + b.Username,
		Type: models.RoomDM,
	}
	if err := s.repo.CreateRoom(ctx, room); err != nil {
		return nil, fmt.Errorf("create dm room: %w", err)
	}
	for _, id := range []uint{userA, userB} {
		m := &models.Membership{RoomID: room.ID, UserID: id}
		if err := s.repo.CreateMembership(ctx, m); err != nil {
			return nil, fmt.Errorf("create dm membership: %w", err)
		}
	}
	s.sink.NotifyRoomsChanged()
	return room, nil
}

// JoinRoom adds the user to the room as a plain member. Joining a room the
// user already belongs to is a no-op returning the existing membership.
func (s *RoomService) JoinRoom(ctx context.Context, roomID, userID uint, password string) (*models.Membership, error) {
	room, err := s.repo.FindRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	existing, err := s.repo.FindMembership(ctx, roomID, userID)
	if err != nil {
		return nil, fmt.Errorf("find membership: %w", err)
	}
	if err := CanJoin(room, existing, password, s.hasher); err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}
	membership := &models.Membership{RoomID: roomID, UserID: userID}
	if err := s.repo.CreateMembership(ctx, membership); err != nil {
		return nil, fmt.Errorf("create membership: %w", err)
	}
	s.sink.NotifyRoomsChanged()
	return membership, nil
}

// LeaveRoom removes the user's membership. Owners, banned members and muted
// members cannot leave.
func (s *RoomService) LeaveRoom(ctx context.Context, roomID, userID uint) error {
	membership, err := s.repo.FindMembership(ctx, roomID, userID)
	if err != nil {
		return fmt.Errorf("find membership: %w", err)
	}
	if err := CanLeave(membership, s.now()); err != nil {
		return err
	}
	if err := s.repo.DeleteMembership(ctx, roomID, userID); err != nil {
		return fmt.Errorf("delete membership: %w", err)
	}
	s.sink.NotifyRoomsChanged()
	return nil
}

// UpdateRoom renames or retypes a room. The ownership predicate is evaluated
// inside the update statement, so a concurrent ownership change cannot slip a
// non-owner write through.
func (s *RoomService) UpdateRoom(ctx context.Context, roomID, requesterID uint, patch RoomPatch) error {
	if !patch.Type.Valid() || patch.Type == models.RoomDM {
		return ErrInvalidRoomType
	}
	if patch.Name == "" {
		return ErrRoomNameRequired
	}
	if patch.Type == models.RoomProtected {
		if patch.Password == "" {
			return ErrProtectedNeedsPasswd
		}
		hash, err := s.hasher.Hash(patch.Password)
		if err != nil {
			return fmt.Errorf("hash room password: %w", err)
		}
		patch.Password = hash
	} else {
		patch.Password = ""
	}

	matched, err := s.repo.UpdateRoomOwnedBy(ctx, roomID, requesterID, patch)
	if err != nil {
		return fmt.Errorf("update room: %w", err)
	}
	// Notified even when no row matched: listeners only re-fetch.
	s.sink.NotifyRoomsChanged()
	if matched == 0 {
		return ErrNotOwner
	}
	return nil
}

// UpdateMembership lets a room admin change another member's moderation
// flags. The admin check and the write are two steps; see CanLeave and the
// repository contract for where predicates are pushed into the write instead.
func (s *RoomService) UpdateMembership(ctx context.Context, roomID, requesterID, targetID uint, patch models.MembershipPatch) error {
	requester, err := s.repo.FindMembership(ctx, roomID, requesterID)
	if err != nil {
		return fmt.Errorf("find requester membership: %w", err)
	}
	if err := RequireAdmin(requester); err != nil {
		return err
	}
	target, err := s.repo.FindMembership(ctx, roomID, targetID)
	if err != nil {
		return fmt.Errorf("find target membership: %w", err)
	}
	if target == nil {
		return ErrMembershipNotFound
	}
	if err := s.repo.UpdateMembership(ctx, roomID, targetID, patch); err != nil {
		return fmt.Errorf("update membership: %w", err)
	}
	s.sink.NotifyRoomsChanged()
	return nil
}

// ListVisibleRooms returns every room the viewer may see, newest first.
func (s *RoomService) ListVisibleRooms(ctx context.Context, viewerID uint) ([]models.RoomSummary, error) {
	rooms, err := s.repo.ListVisibleRooms(ctx, viewerID)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	return rooms, nil
}

// GetRoomDetail returns the full roster of a room the viewer belongs to. A
// non-member gets a forbidden error that reveals only whether the room is
// password protected.
func (s *RoomService) GetRoomDetail(ctx context.Context, roomID, viewerID uint) (*models.RoomDetail, error) {
	room, err := s.repo.FindRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	viewer, err := s.repo.FindMembership(ctx, roomID, viewerID)
	if err != nil {
		return nil, fmt.Errorf("find viewer membership: %w", err)
	}
	if viewer == nil || viewer.Banned {
		return nil, &ForbiddenRoomAccess{HasPassword: room.Password != ""}
	}
	members, err := s.repo.ListMembers(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	return &models.RoomDetail{
		ID:          room.ID,
		Name:        room.Name,
		Type:        room.Type,
		HasPassword: room.Password != "",
		Members:     members,
	}, nil
}
