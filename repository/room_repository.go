package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/hakkacheyassin/ft-trans/models"
	"github.com/hakkacheyassin/ft-trans/services"
)

// GormRoomRepository implements services.RoomRepository on gorm/postgres.
type GormRoomRepository struct {
	db *gorm.DB
}

func NewGormRoomRepository(db *gorm.DB) *GormRoomRepository {
	return &GormRoomRepository{db: db}
}

func (r *GormRoomRepository) FindUser(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, services.ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *GormRoomRepository) FindRoom(ctx context.Context, id uint) (*models.Room, error) {
	var room models.Room
	if err := r.db.WithContext(ctx).First(&room, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, services.ErrRoomNotFound
		}
		return nil, err
	}
	return &room, nil
}

func (r *GormRoomRepository) FindMembership(ctx context.Context, roomID, userID uint) (*models.Membership, error) {
	var m models.Membership
	err := r.db.WithContext(ctx).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

func (r *GormRoomRepository) CreateRoom(ctx context.Context, room *models.Room) error {
	return r.db.WithContext(ctx).Create(room).Error
}

func (r *GormRoomRepository) CreateMembership(ctx context.Context, m *models.Membership) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *GormRoomRepository) DeleteMembership(ctx context.Context, roomID, userID uint) error {
	return r.db.WithContext(ctx).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Delete(&models.Membership{}).Error
}

func (r *GormRoomRepository) UpdateMembership(ctx context.Context, roomID, userID uint, patch models.MembershipPatch) error {
	values := map[string]interface{}{}
	if patch.Admin != nil {
		values["admin"] = *patch.Admin
	}
	if patch.Banned != nil {
		values["banned"] = *patch.Banned
	}
	if patch.Mute != nil {
		values["mute"] = *patch.Mute
	} else if patch.ClearMute {
		values["mute"] = nil
	}
	if len(values) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.Membership{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Updates(values).Error
}

// UpdateRoomOwnedBy folds the ownership check into the update predicate so the
// database evaluates it atomically with the write.
func (r *GormRoomRepository) UpdateRoomOwnedBy(ctx context.Context, roomID, ownerID uint, patch services.RoomPatch) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Room{}).
		Where(`id = ? AND EXISTS (
			SELECT 1 FROM memberships
			WHERE memberships.room_id = rooms.id
			  AND memberships.user_id = ?
			  AND memberships.owner
		)`, roomID, ownerID).
		Updates(map[string]interface{}{
			"name":     patch.Name,
			"type":     patch.Type,
			"password": patch.Password,
		})
	return result.RowsAffected, result.Error
}

// FindDMRoom hunts for the dm room whose membership set is exactly the two
// users with no elevated roles. Evaluated in one query so a concurrent insert
// cannot satisfy a stale count.
func (r *GormRoomRepository) FindDMRoom(ctx context.Context, userA, userB uint) (*models.Room, error) {
	var rooms []models.Room
	err := r.db.WithContext(ctx).Raw(`
		SELECT rooms.* FROM rooms
		WHERE rooms.type = 'dm'
		  AND (SELECT COUNT(*) FROM memberships m WHERE m.room_id = rooms.id) = 2
		  AND NOT EXISTS (
			SELECT 1 FROM memberships m
			WHERE m.room_id = rooms.id
			  AND (m.owner OR m.admin OR m.user_id NOT IN (?, ?))
		  )
		LIMIT 1
	`, userA, userB).Scan(&rooms).Error
	if err != nil {
		return nil, err
	}
	if len(rooms) == 0 {
		return nil, nil
	}
	return &rooms[0], nil
}

func (r *GormRoomRepository) ListVisibleRooms(ctx context.Context, viewerID uint) ([]models.RoomSummary, error) {
	var rooms []models.Room
	err := r.db.WithContext(ctx).
		Where("type IN ?", []models.RoomType{models.RoomPublic, models.RoomProtected}).
		Or(`type IN ? AND EXISTS (
			SELECT 1 FROM memberships
			WHERE memberships.room_id = rooms.id AND memberships.user_id = ?
		)`, []models.RoomType{models.RoomPrivate, models.RoomDM}, viewerID).
		Order("created_at DESC").
		Find(&rooms).Error
	if err != nil {
		return nil, err
	}
	if len(rooms) == 0 {
		return []models.RoomSummary{}, nil
	}

	roomIDs := make([]uint, 0, len(rooms))
	for _, room := range rooms {
		roomIDs = append(roomIDs, room.ID)
	}
	var participants []struct {
		RoomID uint
		Avatar string
	}
	err = r.db.WithContext(ctx).
		Table("memberships").
		Select("memberships.room_id, users.avatar").
		Joins("JOIN users ON users.id = memberships.user_id").
		Where("memberships.room_id IN ? AND memberships.banned = false", roomIDs).
		Scan(&participants).Error
	if err != nil {
		return nil, err
	}
	avatarsByRoom := make(map[uint][]string, len(rooms))
	for _, p := range participants {
		avatarsByRoom[p.RoomID] = append(avatarsByRoom[p.RoomID], p.Avatar)
	}

	summaries := make([]models.RoomSummary, 0, len(rooms))
	for _, room := range rooms {
		avatars := avatarsByRoom[room.ID]
		if avatars == nil {
			avatars = []string{}
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

func (r *GormRoomRepository) ListMembers(ctx context.Context, roomID uint) ([]models.RoomMember, error) {
	var members []models.RoomMember
	err := r.db.WithContext(ctx).
		Table("memberships").
		Select("memberships.user_id, users.username, users.avatar, memberships.owner, memberships.admin, memberships.banned, memberships.mute, memberships.created_at").
		Joins("JOIN users ON users.id = memberships.user_id").
		Where("memberships.room_id = ?", roomID).
		Order("memberships.created_at DESC").
		Scan(&members).Error
	if err != nil {
		return nil, err
	}
	return members, nil
}
