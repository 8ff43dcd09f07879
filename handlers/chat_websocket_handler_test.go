package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hakkacheyassin/ft-trans/models"
	"github.com/hakkacheyassin/ft-trans/services"
)

// stubRepo serves FindMembership from a fixed map; chat handlers touch
// nothing else on the repository.
type stubRepo struct {
	memberships map[[2]uint]*models.Membership
}

func (r *stubRepo) FindMembership(_ context.Context, roomID, userID uint) (*models.Membership, error) {
	return r.memberships[[2]uint{roomID, userID}], nil
}

func (r *stubRepo) FindUser(context.Context, uint) (*models.User, error)    { return nil, nil }
func (r *stubRepo) FindRoom(context.Context, uint) (*models.Room, error)    { return nil, nil }
func (r *stubRepo) CreateRoom(context.Context, *models.Room) error          { return nil }
func (r *stubRepo) CreateMembership(context.Context, *models.Membership) error {
	return nil
}
func (r *stubRepo) DeleteMembership(context.Context, uint, uint) error { return nil }
func (r *stubRepo) UpdateMembership(context.Context, uint, uint, models.MembershipPatch) error {
	return nil
}
func (r *stubRepo) UpdateRoomOwnedBy(context.Context, uint, uint, services.RoomPatch) (int64, error) {
	return 0, nil
}
func (r *stubRepo) FindDMRoom(context.Context, uint, uint) (*models.Room, error) {
	return nil, nil
}
func (r *stubRepo) ListVisibleRooms(context.Context, uint) ([]models.RoomSummary, error) {
	return nil, nil
}
func (r *stubRepo) ListMembers(context.Context, uint) ([]models.RoomMember, error) {
	return nil, nil
}

func chatContext(userID uint, roomID string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("roomId")
	c.SetParamValues(roomID)
	c.Set("user", &models.User{ID: userID, Username: "alice"})
	return c, rec
}

func TestGetMessagesRequiresMembership(t *testing.T) {
	banned := &models.Membership{RoomID: 5, UserID: 3, Banned: true}
	h := &ChatWebSocketHandler{repo: &stubRepo{
		memberships: map[[2]uint]*models.Membership{{5, 3}: banned},
	}}

	// no membership at all
	c, rec := chatContext(2, "5")
	require.NoError(t, h.GetMessages(c))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// banned membership counts as absent
	c, rec = chatContext(3, "5")
	require.NoError(t, h.GetMessages(c))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	c, rec = chatContext(2, "not-a-number")
	require.NoError(t, h.GetMessages(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetOnlineUsersRequiresMembership(t *testing.T) {
	h := &ChatWebSocketHandler{repo: &stubRepo{memberships: map[[2]uint]*models.Membership{}}}

	c, rec := chatContext(2, "5")
	require.NoError(t, h.GetOnlineUsers(c))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func newChatTestClient(roomID uint, userID uint) *ChatClient {
	return &ChatClient{
		ID:       "conn-1",
		UserID:   userID,
		Username: "alice",
		Room: &ChatRoom{
			ID:        roomID,
			Broadcast: make(chan *BroadcastMessage, 4),
		},
		Send: make(chan map[string]interface{}, 4),
		ctx:  context.Background(),
	}
}

func TestChatMessageFromMutedMemberRejected(t *testing.T) {
	mute := time.Now().Add(time.Hour)
	muted := &models.Membership{RoomID: 5, UserID: 3, Mute: &mute}
	h := &ChatWebSocketHandler{
		repo:    &stubRepo{memberships: map[[2]uint]*models.Membership{{5, 3}: muted}},
		dbQueue: make(chan *models.Message, 4),
	}
	client := newChatTestClient(5, 3)

	h.handleChatMessage(client, map[string]interface{}{"content": "hello"})

	require.Len(t, client.Send, 1)
	reply := <-client.Send
	assert.Equal(t, "error", reply["type"])
	assert.Empty(t, client.Room.Broadcast, "a muted member's message must not be broadcast")
	assert.Empty(t, h.dbQueue, "a muted member's message must not be persisted")
}

func TestChatMessageAfterMuteExpires(t *testing.T) {
	expired := time.Now().Add(-time.Hour)
	member := &models.Membership{RoomID: 5, UserID: 3, Mute: &expired}
	h := &ChatWebSocketHandler{
		repo:    &stubRepo{memberships: map[[2]uint]*models.Membership{{5, 3}: member}},
		dbQueue: make(chan *models.Message, 4),
	}
	client := newChatTestClient(5, 3)

	h.handleChatMessage(client, map[string]interface{}{"content": "hello"})

	require.Len(t, client.Room.Broadcast, 1)
	broadcast := <-client.Room.Broadcast
	payload := broadcast.Data["payload"].(map[string]interface{})
	assert.Equal(t, "hello", payload["content"])
	require.Len(t, h.dbQueue, 1)
	saved := <-h.dbQueue
	assert.Equal(t, "hello", saved.Content)
	assert.Empty(t, client.Send)
}

func TestChatMessageFromBannedMemberRejected(t *testing.T) {
	banned := &models.Membership{RoomID: 5, UserID: 3, Banned: true}
	h := &ChatWebSocketHandler{
		repo:    &stubRepo{memberships: map[[2]uint]*models.Membership{{5, 3}: banned}},
		dbQueue: make(chan *models.Message, 4),
	}
	client := newChatTestClient(5, 3)

	h.handleChatMessage(client, map[string]interface{}{"content": "hello"})

	require.Len(t, client.Send, 1)
	assert.Empty(t, client.Room.Broadcast)
	assert.Empty(t, h.dbQueue)
}
