package models

import (
	"time"

	"gorm.io/gorm"
)

/** --------------------ENTITIES-------------------- */
// User represents the user entity
type User struct {
	gorm.Model
	Username string `gorm:"uniqueIndex;not null" json:"username"`
	Email    string `gorm:"uniqueIndex;not null" json:"email"`
	// Avatar is optional and can be used to store a profile picture URL
	Avatar string `json:"avatar,omitempty"`

	// Presence flags maintained best-effort by the realtime core.
	// The live connection registry is authoritative while the process runs.
	IsOnline bool      `gorm:"default:false" json:"isOnline"`
	LastSeen time.Time `json:"lastSeen"`

	Chats []*Chat `gorm:"many2many:chat_members" json:"-"`
}

/** -------------------- DTOs -------------------- */
// UserRef is the slim user shape embedded in realtime payloads
type UserRef struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar,omitempty"`
}

func (u *User) Ref() UserRef {
	return UserRef{
		ID:       u.ID,
		Username: u.Username,
		Avatar:   u.Avatar,
	}
}
