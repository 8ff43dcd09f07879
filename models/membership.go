package models

import "time"

// Membership links one user to one room. The composite primary key guarantees
// at most one row per (room, user) pair.
type Membership struct {
	RoomID    uint       `json:"room_id" gorm:"primaryKey;autoIncrement:false"`
	UserID    uint       `json:"user_id" gorm:"primaryKey;autoIncrement:false"`
	Owner     bool       `json:"owner"`
	Admin     bool       `json:"admin"`
	Banned    bool       `json:"banned"`
	Mute      *time.Time `json:"mute"` // nil = not muted, otherwise expiry
	CreatedAt time.Time  `json:"created_at"`
}

// MutedAt reports whether the mute is active at the given instant.
func (m *Membership) MutedAt(now time.Time) bool {
	return m.Mute != nil && m.Mute.After(now)
}

// MembershipPatch is a partial update of the moderation flags. Nil fields are
// left untouched. ClearMute distinguishes "unmute" from "leave mute alone",
// since Mute's zero value already means "no change".
type MembershipPatch struct {
	Admin     *bool      `json:"admin"`
	Banned    *bool      `json:"banned"`
	Mute      *time.Time `json:"mute"`
	ClearMute bool       `json:"clear_mute"`
}

// RoomMember is a roster entry: membership flags joined with the member's
// public profile.
type RoomMember struct {
	UserID    uint       `json:"user_id"`
	Username  string     `json:"username"`
	Avatar    string     `json:"avatar"`
	Owner     bool       `json:"owner"`
	Admin     bool       `json:"admin"`
	Banned    bool       `json:"banned"`
	Mute      *time.Time `json:"mute"`
	CreatedAt time.Time  `json:"created_at"`
}

// RoomDetail is the single-room view returned to members.
type RoomDetail struct {
	ID          uint         `json:"id"`
	Name        string       `json:"name"`
	Type        RoomType     `json:"type"`
	HasPassword bool         `json:"has_password"`
	Members     []RoomMember `json:"members"`
}
