package ws

import (
	"time"

	"gorm.io/gorm"

	"github.com/developeragencia/conselhoscursor-sub001/database"
	"github.com/developeragencia/conselhoscursor-sub001/models"
	"github.com/developeragencia/conselhoscursor-sub001/utils"
)

// Database-backed implementations of the transport seams. Tests swap these
// for in-memory fakes.

type dbAuthorizer struct{}

func (dbAuthorizer) Authenticate(token string) (Identity, error) {
	userID, role, err := utils.IdentityFromToken(token)
	if err != nil {
		return Identity{}, err
	}
	return Identity{UserID: userID, Role: role}, nil
}

type dbDirectory struct{}

func (dbDirectory) Lookup(consultationID uint) (Session, error) {
	var c models.Consultation
	if err := database.DB.First(&c, consultationID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return Session{}, ErrSessionNotFound
		}
		return Session{}, err
	}
	return Session{
		ID:           c.ID,
		UserID:       c.UserID,
		ConsultantID: c.ConsultantID,
		Active:       c.Status == models.ConsultationActive,
	}, nil
}

func (dbDirectory) ActiveFor(userID uint) (Session, bool, error) {
	var c models.Consultation
	err := database.DB.
		Where("(user_id = ? OR consultant_id = ?) AND status = ?", userID, userID, models.ConsultationActive).
		First(&c).Error
	if err == gorm.ErrRecordNotFound {
		return Session{}, false, nil
	}
	if err != nil {
		return Session{}, false, err
	}
	return Session{
		ID:           c.ID,
		UserID:       c.UserID,
		ConsultantID: c.ConsultantID,
		Active:       true,
	}, true, nil
}

type dbStore struct{}

func (dbStore) Append(consultationID uint, senderRole, content string) (StoredMessage, error) {
	var stored StoredMessage
	err := database.DB.Transaction(func(tx *gorm.DB) error {
		var c models.Consultation
		if err := tx.Select("id, status").First(&c, consultationID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return ErrSessionNotFound
			}
			return err
		}
		if c.Status != models.ConsultationActive {
			return ErrSessionEnded
		}
		message := models.Message{
			ConsultationID: consultationID,
			SenderRole:     senderRole,
			Content:        content,
			CreatedAt:      time.Now().UTC(),
		}
		if err := tx.Create(&message).Error; err != nil {
			return err
		}
		stored = StoredMessage{
			ID:             message.ID,
			ConsultationID: message.ConsultationID,
			SenderRole:     message.SenderRole,
			Content:        message.Content,
			CreatedAt:      message.CreatedAt,
		}
		return nil
	})
	return stored, err
}

// NewDatabaseServer wires the transport to the shared database connection.
func NewDatabaseServer(idleTimeout time.Duration) *Server {
	return NewServer(dbAuthorizer{}, dbDirectory{}, dbStore{}, idleTimeout)
}
