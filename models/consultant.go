package models

import "time"

// Consultant presence states. A consultant row shares its ID with the
// consultant's user row.
const (
	StatusOffline = "offline"
	StatusOnline  = "online"
	StatusBusy    = "busy"
)

type Consultant struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	Name           string    `gorm:"size:100;not null" json:"name"`
	Title          string    `gorm:"size:100" json:"title"`
	Status         string    `gorm:"type:enum('offline','online','busy');default:'offline'" json:"status"`
	PricePerMinute float64   `gorm:"type:decimal(10,2);not null" json:"price_per_minute"`
	CreatedAt      time.Time `json:"-"`
	UpdatedAt      time.Time `json:"-"`
}

func (Consultant) TableName() string {
	return "consultants"
}

// ValidPresenceStatus reports whether s is one of the known presence states.
func ValidPresenceStatus(s string) bool {
	return s == StatusOffline || s == StatusOnline || s == StatusBusy
}

// CanTransition encodes the presence state machine:
// offline <-> online <-> busy. busy is entered only by claiming an online
// consultant and left only by release; there is no offline -> busy edge and a
// busy consultant cannot be forced offline.
func CanTransition(from, to string) bool {
	switch from {
	case StatusOffline:
		return to == StatusOnline
	case StatusOnline:
		return to == StatusOffline || to == StatusBusy
	case StatusBusy:
		return to == StatusOnline
	}
	return false
}
