package models

import "time"

// CreditTransaction is an append-only ledger entry. The user's cached balance
// must always equal the fold of these rows; no code path updates one without
// the other in the same transaction (see the ledger package).
type CreditTransaction struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserID       uint      `gorm:"not null;index" json:"user_id"`
	Kind         string    `gorm:"type:enum('credit','debit');not null" json:"kind"`
	Amount       float64   `gorm:"type:decimal(15,2);not null" json:"amount"`
	BalanceAfter float64   `gorm:"type:decimal(15,2);not null" json:"balance_after"`
	ReferenceID  string    `gorm:"type:varchar(64);not null;index" json:"reference_id"`
	CreatedAt    time.Time `json:"created_at"`
}

func (CreditTransaction) TableName() string {
	return "credits_transactions"
}

const (
	KindCredit = "credit"
	KindDebit  = "debit"
)
