package models

import "time"

type Message struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	RoomID    uint      `json:"room_id" gorm:"index"`
	UserID    uint      `json:"user_id"`
	Content   string    `json:"content" gorm:"type:text"`
	Type      string    `json:"type"` // text, system
	CreatedAt time.Time `json:"created_at"`
	Username  string    `json:"username" gorm:"-"`
}
