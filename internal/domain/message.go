package domain

import (
	"encoding/json"
	"time"
)

// Message types.
const (
	MessageNew     = "new"
	MessageDirty   = "dirty"
	MessageComment = "comment"
	MessageParent  = "parent"
)

// FieldChange is one entry of a change set: the value before and after
// the commit. Reference fields carry display names, not ids.
type FieldChange [2]any

// ChangeSet maps tracked fields to their old and new values.
type ChangeSet map[string]FieldChange

// Message is an immutable audit entry. The (model_name, model_id) link
// is deliberately weak: no foreign key, so audit survives its parent.
type Message struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	ModelName Kind      `gorm:"not null;size:20;index:idx_messages_model,priority:1" json:"model_name"`
	ModelID   uint      `gorm:"not null;index:idx_messages_model,priority:2" json:"model_id"`
	AuthorID  *uint     `gorm:"index" json:"author_id"`
	Author    *User     `gorm:"foreignKey:AuthorID" json:"-"`
	Type      string    `gorm:"not null;default:'comment';size:10" json:"type"`
	Body      string    `gorm:"not null;default:''" json:"body"`
	Changes   string    `gorm:"default:''" json:"-"`
	Date      time.Time `gorm:"autoCreateTime;index" json:"date"`
	Sent      bool      `gorm:"not null;default:false" json:"-"`
}

func (Message) TableName() string { return "messages" }

// ChangeSet decodes the JSON change mapping, nil when absent or invalid.
func (m *Message) ChangeSet() ChangeSet {
	if m.Changes == "" {
		return nil
	}
	var cs ChangeSet
	if err := json.Unmarshal([]byte(m.Changes), &cs); err != nil {
		return nil
	}
	return cs
}

func (m *Message) SetChangeSet(cs ChangeSet) error {
	if len(cs) == 0 {
		m.Changes = ""
		return nil
	}
	raw, err := json.Marshal(cs)
	if err != nil {
		return err
	}
	m.Changes = string(raw)
	return nil
}

// Follower subscribes a user to change notifications of one entity.
type Follower struct {
	ID        uint  `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    uint  `gorm:"not null;uniqueIndex:idx_followers_unique,priority:1" json:"user_id"`
	User      *User `gorm:"foreignKey:UserID" json:"-"`
	ModelName Kind  `gorm:"not null;size:20;uniqueIndex:idx_followers_unique,priority:2" json:"model_name"`
	ModelID   uint  `gorm:"not null;uniqueIndex:idx_followers_unique,priority:3" json:"model_id"`
}

func (Follower) TableName() string { return "followers" }
