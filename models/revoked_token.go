package models

import "time"

// RevokedToken is the database fallback for access-token jti revocation when
// Redis is not configured. Rows are small and expire with the token, so a
// periodic cleanup job can prune by revoked_at.
type RevokedToken struct {
	ID        string    `gorm:"primaryKey;size:64" json:"id"`
	RevokedAt time.Time `json:"revoked_at"`
}

func (RevokedToken) TableName() string {
	return "revoked_tokens"
}
