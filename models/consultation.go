package models

import "time"

// Consultation is one billed, time-bounded session between a user and a
// consultant. The transition active -> ended is one-way; the per-minute rate
// is snapshotted at start so later rate changes never touch a live session.
type Consultation struct {
	ID                     uint       `gorm:"primaryKey" json:"id"`
	UserID                 uint       `gorm:"not null;index" json:"user_id"`
	ConsultantID           uint       `gorm:"not null;index" json:"consultant_id"`
	Status                 string     `gorm:"type:enum('active','ended');default:'active'" json:"status"`
	StartedAt              time.Time  `gorm:"not null" json:"started_at"`
	EndedAt                *time.Time `json:"ended_at,omitempty"`
	PricePerMinuteSnapshot float64    `gorm:"type:decimal(10,2);not null" json:"price_per_minute_snapshot"`
	TotalCharged           float64    `gorm:"type:decimal(15,2);not null;default:0.00" json:"total_charged"`
	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              time.Time  `json:"-"`

	// Relations
	Consultant *Consultant `gorm:"foreignKey:ConsultantID" json:"consultant,omitempty"`
	Messages   []Message   `gorm:"foreignKey:ConsultationID" json:"messages,omitempty"`
}

func (Consultation) TableName() string {
	return "consultations"
}

const (
	ConsultationActive = "active"
	ConsultationEnded  = "ended"
)
