package models

import (
	"gorm.io/gorm"
)

/** --------------------ENTITIES-------------------- */
// Message represents a chat message.
// ReadBy is the message's read receipt: the set of users who have seen it.
// It is append-only; rows in message_reads are never deleted.
type Message struct {
	gorm.Model

	ChatID   uint `gorm:"not null;index" json:"chatId"`
	SenderID uint `gorm:"not null" json:"senderId"`

	Text     *string `json:"text,omitempty"`
	URL      *string `json:"url,omitempty"`      // image or file attachment
	FileName *string `json:"fileName,omitempty"` // file attachment

	ReadBy []*User `gorm:"many2many:message_reads" json:"readBy,omitempty"`

	Chat   Chat `gorm:"foreignKey:ChatID" json:"-"`
	Sender User `gorm:"foreignKey:SenderID" json:"-"`
}

// ReadByUser reports whether userID is in the message's read receipt set
func (m *Message) ReadByUser(userID uint) bool {
	for _, u := range m.ReadBy {
		if u.ID == userID {
			return true
		}
	}
	return false
}

// Preview returns a short text representation for notification payloads
func (m *Message) Preview() string {
	if m.Text != nil {
		return *m.Text
	}
	if m.FileName != nil {
		return *m.FileName
	}
	if m.URL != nil {
		return *m.URL
	}
	return ""
}
