package models

import "time"

// RoomType is the closed set of room kinds. Every decision point (creation
// validation, visibility filter, join password requirement) switches over it.
type RoomType string

const (
	RoomPublic    RoomType = "public"
	RoomPrivate   RoomType = "private"
	RoomProtected RoomType = "protected"
	RoomDM        RoomType = "dm"
)

func (t RoomType) Valid() bool {
	switch t {
	case RoomPublic, RoomPrivate, RoomProtected, RoomDM:
		return true
	}
	return false
}

type Room struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Name      string    `json:"name"`
	Type      RoomType  `json:"type"`
	Password  string    `json:"-"` // bcrypt hash, set iff Type == protected
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RoomSummary is the list-view projection: the room plus its non-banned
// participants' avatars.
type RoomSummary struct {
	ID      uint     `json:"id"`
	Name    string   `json:"name"`
	Type    RoomType `json:"type"`
	Avatars []string `json:"avatars"`
}
