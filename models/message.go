package models

import "time"

// Message is one chat line inside a consultation. Immutable once created;
// readers order by (created_at, id) so same-timestamp inserts stay stable.
type Message struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	ConsultationID uint      `gorm:"not null;index" json:"consultation_id"`
	SenderRole     string    `gorm:"type:enum('user','consultant');not null" json:"sender_role"`
	Content        string    `gorm:"type:text;not null" json:"content"`
	CreatedAt      time.Time `gorm:"index" json:"created_at"`
}

func (Message) TableName() string {
	return "messages"
}
