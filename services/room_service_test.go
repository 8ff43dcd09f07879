package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hakkacheyassin/ft-trans/models"
)

type recordingSink struct {
	notifications int
}

func (s *recordingSink) NotifyRoomsChanged() { s.notifications++ }

type memberKey struct {
	roomID uint
	userID uint
}

// memRepo is an in-memory RoomRepository for service tests.
type memRepo struct {
	users       map[uint]*models.User
	rooms       map[uint]*models.Room
	memberships map[memberKey]*models.Membership
	roomOrder   []uint
	memberOrder []memberKey
	nextRoomID  uint
	clock       time.Time
}

func newMemRepo() *memRepo {
	return &memRepo{
		users:       make(map[uint]*models.User),
		rooms:       make(map[uint]*models.Room),
		memberships: make(map[memberKey]*models.Membership),
		clock:       time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (r *memRepo) tick() time.Time {
	r.clock = r.clock.Add(time.Second)
	return r.clock
}

func (r *memRepo) addUser(id uint, username string) {
	r.users[id] = &models.User{ID: id, Username: username, Avatar: username + ".png"}
}

func (r *memRepo) FindUser(_ context.Context, id uint) (*models.User, error) {
	user, ok := r.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (r *memRepo) FindRoom(_ context.Context, id uint) (*models.Room, error) {
	room, ok := r.rooms[id]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return room, nil
}

func (r *memRepo) FindMembership(_ context.Context, roomID, userID uint) (*models.Membership, error) {
	m, ok := r.memberships[memberKey{roomID, userID}]
	if !ok {
		return nil, nil
	}
	copied := *m
	return &copied, nil
}

func (r *memRepo) CreateRoom(_ context.Context, room *models.Room) error {
	r.nextRoomID++
	room.ID = r.nextRoomID
	room.CreatedAt = r.tick()
	stored := *room
	r.rooms[room.ID] = &stored
	r.roomOrder = append(r.roomOrder, room.ID)
	return nil
}

func (r *memRepo) CreateMembership(_ context.Context, m *models.Membership) error {
	key := memberKey{m.RoomID, m.UserID}
	if _, exists := r.memberships[key]; exists {
		return errors.New("duplicate membership row")
	}
	m.CreatedAt = r.tick()
	stored := *m
	r.memberships[key] = &stored
	r.memberOrder = append(r.memberOrder, key)
	return nil
}

func (r *memRepo) DeleteMembership(_ context.Context, roomID, userID uint) error {
	delete(r.memberships, memberKey{roomID, userID})
	return nil
}

func (r *memRepo) UpdateMembership(_ context.Context, roomID, userID uint, patch models.MembershipPatch) error {
	m, ok := r.memberships[memberKey{roomID, userID}]
	if !ok {
		return nil
	}
	if patch.Admin != nil {
		m.Admin = *patch.Admin
	}
	if patch.Banned != nil {
		m.Banned = *patch.Banned
	}
	if patch.Mute != nil {
		m.Mute = patch.Mute
	} else if patch.ClearMute {
		m.Mute = nil
	}
	return nil
}

func (r *memRepo) UpdateRoomOwnedBy(_ context.Context, roomID, ownerID uint, patch RoomPatch) (int64, error) {
	m, ok := r.memberships[memberKey{roomID, ownerID}]
	if !ok || !m.Owner {
		return 0, nil
	}
	room, ok := r.rooms[roomID]
	if !ok {
		return 0, nil
	}
	room.Name = patch.Name
	room.Type = patch.Type
	room.Password = patch.Password
	return 1, nil
}

func (r *memRepo) FindDMRoom(_ context.Context, userA, userB uint) (*models.Room, error) {
	for _, room := range r.rooms {
		if room.Type != models.RoomDM {
			continue
		}
		members := []*models.Membership{}
		for key, m := range r.memberships {
			if key.roomID == room.ID {
				members = append(members, m)
			}
		}
		if len(members) != 2 {
			continue
		}
		matched := true
		for _, m := range members {
			if m.Owner || m.Admin || (m.UserID != userA && m.UserID != userB) {
				matched = false
				break
			}
		}
		if matched && members[0].UserID != members[1].UserID {
			copied := *room
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *memRepo) ListVisibleRooms(_ context.Context, viewerID uint) ([]models.RoomSummary, error) {
	summaries := []models.RoomSummary{}
	for i := len(r.roomOrder) - 1; i >= 0; i-- {
		room := r.rooms[r.roomOrder[i]]
		visible := room.Type == models.RoomPublic || room.Type == models.RoomProtected
		if !visible {
			if m, ok := r.memberships[memberKey{room.ID, viewerID}]; ok && m != nil {
				visible = true
			}
		}
		if !visible {
			continue
		}
		avatars := []string{}
		for key, m := range r.memberships {
			if key.roomID == room.ID && !m.Banned {
				avatars = append(avatars, r.users[m.UserID].Avatar)
			}
		}
		summaries = append(summaries, models.RoomSummary{
			ID:      room.ID,
			Name:    room.Name,
			Type:    room.Type,
			Avatars: avatars,
		})
	}
	return summaries, nil
}

func (r *memRepo) ListMembers(_ context.Context, roomID uint) ([]models.RoomMember, error) {
	members := []models.RoomMember{}
	for i := len(r.memberOrder) - 1; i >= 0; i-- {
		key := r.memberOrder[i]
		if key.roomID != roomID {
			continue
		}
		m, ok := r.memberships[key]
		if !ok {
			continue
		}
		user := r.users[m.UserID]
		members = append(members, models.RoomMember{
			UserID:    m.UserID,
			Username:  user.Username,
			Avatar:    user.Avatar,
			Owner:     m.Owner,
			Admin:     m.Admin,
			Banned:    m.Banned,
			Mute:      m.Mute,
			CreatedAt: m.CreatedAt,
		})
	}
	return members, nil
}

func newTestService() (*RoomService, *memRepo, *recordingSink) {
	repo := newMemRepo()
	repo.addUser(1, "alice")
	repo.addUser(2, "bob")
	repo.addUser(3, "carol")
	sink := &recordingSink{}
	svc := NewRoomService(repo, sink, fakeHasher{})
	return svc, repo, sink
}

func TestCreateRoomValidation(t *testing.T) {
	svc, _, sink := newTestService()
	ctx := context.Background()

	tests := []struct {
		description string
		name        string
		roomType    models.RoomType
		password    string
		expected    error
	}{
		{"missing name", "", models.RoomPublic, "", ErrRoomNameRequired},
		{"protected without password", "Secret", models.RoomProtected, "", ErrProtectedNeedsPasswd},
		{"dm via create", "Sneaky", models.RoomDM, "", ErrInvalidRoomType},
		{"unknown type", "Odd", models.RoomType("group"), "", ErrInvalidRoomType},
	}
	for _, tc := range tests {
		_, err := svc.CreateRoom(ctx, 1, tc.name, tc.roomType, tc.password)
		assert.ErrorIs(t, err, tc.expected, tc.description)
		assert.ErrorIs(t, err, ErrInvalidArgument, tc.description)
	}
	assert.Equal(t, 0, sink.notifications, "failed creates must not notify")
}

func TestCreateRoomAndJoinFlow(t *testing.T) {
	svc, repo, sink := newTestService()
	ctx := context.Background()

	room, err := svc.CreateRoom(ctx, 1, "Lobby", models.RoomPublic, "")
	require.NoError(t, err)
	assert.Equal(t, 1, sink.notifications)

	creator := repo.memberships[memberKey{room.ID, 1}]
	require.NotNil(t, creator)
	assert.True(t, creator.Owner)
	assert.True(t, creator.Admin)

	membership, err := svc.JoinRoom(ctx, room.ID, 2, "")
	require.NoError(t, err)
	assert.False(t, membership.Owner)
	assert.False(t, membership.Admin)
	assert.Equal(t, 2, sink.notifications)

	// exactly one owner, however many join
	_, err = svc.JoinRoom(ctx, room.ID, 3, "")
	require.NoError(t, err)
	owners := 0
	for key, m := range repo.memberships {
		if key.roomID == room.ID && m.Owner {
			owners++
		}
	}
	assert.Equal(t, 1, owners)
}

func TestJoinRoomIdempotent(t *testing.T) {
	svc, repo, sink := newTestService()
	ctx := context.Background()

	room, err := svc.CreateRoom(ctx, 1, "Lobby", models.RoomPublic, "")
	require.NoError(t, err)

	first, err := svc.JoinRoom(ctx, room.ID, 2, "")
	require.NoError(t, err)
	notified := sink.notifications

	second, err := svc.JoinRoom(ctx, room.ID, 2, "")
	require.NoError(t, err)
	assert.Equal(t, first.RoomID, second.RoomID)
	assert.Equal(t, first.UserID, second.UserID)
	assert.Equal(t, notified, sink.notifications, "re-join must not notify")

	rows := 0
	for key := range repo.memberships {
		if key.roomID == room.ID && key.userID == 2 {
			rows++
		}
	}
	assert.Equal(t, 1, rows)
}

func TestJoinProtectedRoom(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	room, err := svc.CreateRoom(ctx, 1, "Secret", models.RoomProtected, "pw1")
	require.NoError(t, err)

	_, err = svc.JoinRoom(ctx, room.ID, 2, "")
	assert.ErrorIs(t, err, ErrPasswordRequired)

	_, err = svc.JoinRoom(ctx, room.ID, 2, "wrong")
	assert.ErrorIs(t, err, ErrIncorrectPassword)

	_, err = svc.JoinRoom(ctx, room.ID, 2, "pw1")
	assert.NoError(t, err)
}

func TestJoinRoomBanned(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	room, err := svc.CreateRoom(ctx, 1, "Lobby", models.RoomPublic, "")
	require.NoError(t, err)
	_, err = svc.JoinRoom(ctx, room.ID, 2, "")
	require.NoError(t, err)

	banned := true
	require.NoError(t, svc.UpdateMembership(ctx, room.ID, 1, 2, models.MembershipPatch{Banned: &banned}))

	_, err = svc.JoinRoom(ctx, room.ID, 2, "")
	assert.ErrorIs(t, err, ErrBanned)

	// the ban is a flag, not a deletion
	row := repo.memberships[memberKey{room.ID, 2}]
	require.NotNil(t, row)
	assert.True(t, row.Banned)
}

func TestCreateOrGetDMIdempotent(t *testing.T) {
	svc, repo, sink := newTestService()
	ctx := context.Background()

	room, err := svc.CreateOrGetDM(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, "alice & bob", room.Name)
	assert.Equal(t, models.RoomDM, room.Type)
	assert.Equal(t, 1, sink.notifications)

	for key, m := range repo.memberships {
		if key.roomID == room.ID {
			assert.False(t, m.Owner)
			assert.False(t, m.Admin)
		}
	}

	again, err := svc.CreateOrGetDM(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, room.ID, again.ID)
	assert.Equal(t, 1, sink.notifications, "existing dm must not notify")

	reversed, err := svc.CreateOrGetDM(ctx, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, room.ID, reversed.ID)

	assert.Len(t, repo.rooms, 1)
}

func TestCreateOrGetDMErrors(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	_, err := svc.CreateOrGetDM(ctx, 1, 1)
	assert.ErrorIs(t, err, ErrDMWithSelf)

	_, err = svc.CreateOrGetDM(ctx, 1, 99)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestLeaveRoom(t *testing.T) {
	svc, repo, sink := newTestService()
	ctx := context.Background()

	room, err := svc.CreateRoom(ctx, 1, "Lobby", models.RoomPublic, "")
	require.NoError(t, err)
	_, err = svc.JoinRoom(ctx, room.ID, 2, "")
	require.NoError(t, err)
	_, err = svc.JoinRoom(ctx, room.ID, 3, "")
	require.NoError(t, err)

	// the owner can never leave
	err = svc.LeaveRoom(ctx, room.ID, 1)
	assert.ErrorIs(t, err, ErrOwnerCannotLeave)

	// a muted member cannot leave until the mute expires
	mute := time.Now().Add(time.Hour)
	require.NoError(t, svc.UpdateMembership(ctx, room.ID, 1, 2, models.MembershipPatch{Mute: &mute}))
	err = svc.LeaveRoom(ctx, room.ID, 2)
	assert.ErrorIs(t, err, ErrLeaveWhileMuted)

	notified := sink.notifications
	require.NoError(t, svc.LeaveRoom(ctx, room.ID, 3))
	assert.Nil(t, repo.memberships[memberKey{room.ID, 3}])
	assert.Equal(t, notified+1, sink.notifications)

	err = svc.LeaveRoom(ctx, room.ID, 3)
	assert.ErrorIs(t, err, ErrMembershipNotFound)
}

func TestUpdateRoomByNonOwner(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	room, err := svc.CreateRoom(ctx, 1, "Lobby", models.RoomPublic, "")
	require.NoError(t, err)
	_, err = svc.JoinRoom(ctx, room.ID, 2, "")
	require.NoError(t, err)

	err = svc.UpdateRoom(ctx, room.ID, 2, RoomPatch{Name: "Hijacked", Type: models.RoomPrivate})
	assert.ErrorIs(t, err, ErrNotOwner)

	stored := repo.rooms[room.ID]
	assert.Equal(t, "Lobby", stored.Name)
	assert.Equal(t, models.RoomPublic, stored.Type)
}

func TestUpdateRoomByOwner(t *testing.T) {
	svc, repo, sink := newTestService()
	ctx := context.Background()

	room, err := svc.CreateRoom(ctx, 1, "Lobby", models.RoomPublic, "")
	require.NoError(t, err)

	err = svc.UpdateRoom(ctx, room.ID, 1, RoomPatch{Name: "Vault", Type: models.RoomProtected})
	assert.ErrorIs(t, err, ErrProtectedNeedsPasswd)

	notified := sink.notifications
	require.NoError(t, svc.UpdateRoom(ctx, room.ID, 1, RoomPatch{Name: "Vault", Type: models.RoomProtected, Password: "pw2"}))
	assert.Equal(t, notified+1, sink.notifications)

	stored := repo.rooms[room.ID]
	assert.Equal(t, "Vault", stored.Name)
	assert.Equal(t, models.RoomProtected, stored.Type)
	assert.Equal(t, "hashed:pw2", stored.Password)

	// switching away from protected clears the password
	require.NoError(t, svc.UpdateRoom(ctx, room.ID, 1, RoomPatch{Name: "Vault", Type: models.RoomPublic, Password: "ignored"}))
	assert.Empty(t, repo.rooms[room.ID].Password)
}

func TestUpdateMembership(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	room, err := svc.CreateRoom(ctx, 1, "Lobby", models.RoomPublic, "")
	require.NoError(t, err)
	_, err = svc.JoinRoom(ctx, room.ID, 2, "")
	require.NoError(t, err)
	_, err = svc.JoinRoom(ctx, room.ID, 3, "")
	require.NoError(t, err)

	admin := true
	err = svc.UpdateMembership(ctx, room.ID, 2, 3, models.MembershipPatch{Admin: &admin})
	assert.ErrorIs(t, err, ErrNotAdmin)

	require.NoError(t, svc.UpdateMembership(ctx, room.ID, 1, 2, models.MembershipPatch{Admin: &admin}))
	assert.True(t, repo.memberships[memberKey{room.ID, 2}].Admin)

	// the promoted admin can now moderate
	mute := time.Now().Add(time.Hour)
	require.NoError(t, svc.UpdateMembership(ctx, room.ID, 2, 3, models.MembershipPatch{Mute: &mute}))
	assert.NotNil(t, repo.memberships[memberKey{room.ID, 3}].Mute)

	require.NoError(t, svc.UpdateMembership(ctx, room.ID, 2, 3, models.MembershipPatch{ClearMute: true}))
	assert.Nil(t, repo.memberships[memberKey{room.ID, 3}].Mute)

	err = svc.UpdateMembership(ctx, room.ID, 1, 99, models.MembershipPatch{Admin: &admin})
	assert.ErrorIs(t, err, ErrMembershipNotFound)
}

func TestGetRoomDetail(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	_, err := svc.GetRoomDetail(ctx, 42, 1)
	assert.ErrorIs(t, err, ErrRoomNotFound)

	room, err := svc.CreateRoom(ctx, 1, "Secret", models.RoomProtected, "pw1")
	require.NoError(t, err)

	_, err = svc.GetRoomDetail(ctx, room.ID, 2)
	var access *ForbiddenRoomAccess
	require.ErrorAs(t, err, &access)
	assert.True(t, access.HasPassword)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.JoinRoom(ctx, room.ID, 2, "pw1")
	require.NoError(t, err)

	detail, err := svc.GetRoomDetail(ctx, room.ID, 2)
	require.NoError(t, err)
	assert.True(t, detail.HasPassword)
	require.Len(t, detail.Members, 2)
	// newest membership first
	assert.Equal(t, uint(2), detail.Members[0].UserID)
	assert.Equal(t, uint(1), detail.Members[1].UserID)
	assert.True(t, detail.Members[1].Owner)

	// a banned viewer is treated as a non-member
	banned := true
	require.NoError(t, svc.UpdateMembership(ctx, room.ID, 1, 2, models.MembershipPatch{Banned: &banned}))
	_, err = svc.GetRoomDetail(ctx, room.ID, 2)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestListVisibleRooms(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	_, err := svc.CreateRoom(ctx, 1, "Town Square", models.RoomPublic, "")
	require.NoError(t, err)
	private, err := svc.CreateRoom(ctx, 1, "Backroom", models.RoomPrivate, "")
	require.NoError(t, err)
	_, err = svc.CreateRoom(ctx, 1, "Vault", models.RoomProtected, "pw1")
	require.NoError(t, err)

	// carol is in no private room: public + protected only, newest first
	rooms, err := svc.ListVisibleRooms(ctx, 3)
	require.NoError(t, err)
	require.Len(t, rooms, 2)
	assert.Equal(t, "Vault", rooms[0].Name)
	assert.Equal(t, "Town Square", rooms[1].Name)

	_, err = svc.JoinRoom(ctx, private.ID, 3, "")
	require.NoError(t, err)
	rooms, err = svc.ListVisibleRooms(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, rooms, 3)
}
