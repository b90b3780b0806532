package models

import (
	"fmt"

	"gorm.io/gorm"
)

// enum
type ChatType string

const (
	ChatTypeDirect ChatType = "direct"
	ChatTypeGroup  ChatType = "group"
)

/** --------------------ENTITIES-------------------- */
// Chat represents a conversation between two or more users.
// Its ID doubles as the identifier of the chat's realtime room.
type Chat struct {
	gorm.Model

	Name    string   `json:"name,omitempty"` // group chats only
	Type    ChatType `gorm:"not null;default:direct" json:"type"`
	Members []*User  `gorm:"many2many:chat_members" json:"members,omitempty"`

	LatestMessageID *uint    `json:"latestMessageId,omitempty"`
	LatestMessage   *Message `gorm:"foreignKey:LatestMessageID" json:"latestMessage,omitempty"`
}

// Validate checks the member count against the chat type
func (c *Chat) Validate() error {
	if c.Type == ChatTypeDirect && len(c.Members) != 0 && len(c.Members) != 2 {
		return fmt.Errorf("direct chat must have exactly 2 members, got %d", len(c.Members))
	}
	if c.Type == ChatTypeGroup && c.Name == "" {
		return fmt.Errorf("group chat requires a name")
	}
	return nil
}

func (c *Chat) IsGroup() bool {
	return c.Type == ChatTypeGroup
}

// MemberIDs returns the IDs of all chat members
func (c *Chat) MemberIDs() []uint {
	ids := make([]uint, 0, len(c.Members))
	for _, m := range c.Members {
		ids = append(ids, m.ID)
	}
	return ids
}
