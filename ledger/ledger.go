package ledger

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/developeragencia/conselhoscursor-sub001/billing"
	"github.com/developeragencia/conselhoscursor-sub001/models"
	"github.com/developeragencia/conselhoscursor-sub001/utils"
)

var ErrInvalidAmount = errors.New("ledger: amount must be positive")

// Debit charges up to requested against the user's balance and appends a
// debit row with the resulting balance. The user row is locked for the
// duration of the caller's transaction, so balance reads and the update are
// atomic. The returned amount is what was actually charged, which is less
// than requested when the balance cannot cover it.
func Debit(tx *gorm.DB, userID uint, requested float64, referenceID string) (float64, error) {
	if requested <= 0 {
		return 0, ErrInvalidAmount
	}

	var user models.User
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&user, userID).Error; err != nil {
		return 0, err
	}

	actual := billing.Settle(requested, user.Credits)
	balanceAfter := utils.RoundFloat(user.Credits-actual, 2)

	if err := tx.Model(&models.User{}).Where("id = ?", userID).
		Update("credits", balanceAfter).Error; err != nil {
		return 0, err
	}

	trx := models.CreditTransaction{
		UserID:       userID,
		Kind:         models.KindDebit,
		Amount:       actual,
		BalanceAfter: balanceAfter,
		ReferenceID:  referenceID,
	}
	if err := tx.Create(&trx).Error; err != nil {
		return 0, err
	}

	return actual, nil
}

// Credit adds amount to the user's balance and appends a credit row. Top-ups
// never clamp; a non-positive amount is rejected.
func Credit(tx *gorm.DB, userID uint, amount float64, referenceID string) (float64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}

	var user models.User
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&user, userID).Error; err != nil {
		return 0, err
	}

	amount = utils.RoundFloat(amount, 2)
	balanceAfter := utils.RoundFloat(user.Credits+amount, 2)

	if err := tx.Model(&models.User{}).Where("id = ?", userID).
		Update("credits", balanceAfter).Error; err != nil {
		return 0, err
	}

	trx := models.CreditTransaction{
		UserID:       userID,
		Kind:         models.KindCredit,
		Amount:       amount,
		BalanceAfter: balanceAfter,
		ReferenceID:  referenceID,
	}
	if err := tx.Create(&trx).Error; err != nil {
		return 0, err
	}

	return balanceAfter, nil
}
