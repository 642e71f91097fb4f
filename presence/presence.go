package presence

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/developeragencia/conselhoscursor-sub001/models"
)

var (
	ErrConsultantUnavailable = errors.New("presence: consultant is not online")
	ErrConsultantBusy        = errors.New("presence: consultant is in an active consultation")
	ErrUnknownStatus         = errors.New("presence: unknown status")
)

// Claim flips an online consultant to busy. The guarded UPDATE makes the
// check-and-set atomic: of two concurrent session starts, exactly one sees
// RowsAffected == 1 and the other gets ErrConsultantUnavailable.
func Claim(tx *gorm.DB, consultantID uint) error {
	res := tx.Model(&models.Consultant{}).
		Where("id = ? AND status = ?", consultantID, models.StatusOnline).
		Update("status", models.StatusBusy)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrConsultantUnavailable
	}
	return nil
}

// Release returns a busy consultant to online. Idempotent: releasing a
// consultant who is not busy is a no-op, so double session-end is safe.
func Release(tx *gorm.DB, consultantID uint) error {
	return tx.Model(&models.Consultant{}).
		Where("id = ? AND status = ?", consultantID, models.StatusBusy).
		Update("status", models.StatusOnline).Error
}

// SetStatus handles the consultant-driven transitions, online and offline.
// Busy is owned by the session lifecycle and can only be entered through
// Claim, so a busy consultant gets ErrConsultantBusy here.
func SetStatus(tx *gorm.DB, consultantID uint, status string) error {
	if status != models.StatusOnline && status != models.StatusOffline {
		return ErrUnknownStatus
	}

	var consultant models.Consultant
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&consultant, consultantID).Error; err != nil {
		return err
	}

	if consultant.Status == models.StatusBusy {
		return ErrConsultantBusy
	}
	if consultant.Status == status {
		return nil
	}
	if !models.CanTransition(consultant.Status, status) {
		return ErrUnknownStatus
	}

	return tx.Model(&models.Consultant{}).
		Where("id = ?", consultantID).
		Update("status", status).Error
}
