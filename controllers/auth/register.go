package auth

import (
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/developeragencia/conselhoscursor-sub001/database"
	"github.com/developeragencia/conselhoscursor-sub001/middleware"
	"github.com/developeragencia/conselhoscursor-sub001/models"
	"github.com/developeragencia/conselhoscursor-sub001/utils"
)

type RegisterRequest struct {
	Name           string  `json:"name" validate:"required,nameok"`
	Email          string  `json:"email" validate:"required,email"`
	Password       string  `json:"password" validate:"required,pwdmin"`
	Role           string  `json:"role"`
	Title          string  `json:"title"`
	PricePerMinute float64 `json:"price_per_minute"`
}

func RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := middleware.ValidateJSON(w, r, &req); err != nil {
		return
	}

	role := strings.ToLower(strings.TrimSpace(req.Role))
	if role == "" {
		role = models.RoleUser
	}
	if role != models.RoleUser && role != models.RoleConsultant {
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "role must be user or consultant"})
		return
	}
	if role == models.RoleConsultant && req.PricePerMinute <= 0 {
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "price_per_minute must be positive"})
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "Server error"})
		return
	}

	user := models.User{
		Name:     strings.TrimSpace(req.Name),
		Email:    email,
		Password: string(hashed),
		Role:     role,
		Status:   "Active",
	}

	err = database.DB.Transaction(func(tx *gorm.DB) error {
		var existing models.User
		if err := tx.Where("email = ?", email).First(&existing).Error; err == nil {
			return errEmailTaken
		} else if err != gorm.ErrRecordNotFound {
			return err
		}
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		if role == models.RoleConsultant {
			consultant := models.Consultant{
				ID:             user.ID,
				Name:           user.Name,
				Title:          strings.TrimSpace(req.Title),
				Status:         models.StatusOffline,
				PricePerMinute: utils.RoundFloat(req.PricePerMinute, 2),
			}
			if err := tx.Create(&consultant).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err == errEmailTaken {
		utils.WriteJSON(w, http.StatusConflict, utils.APIResponse{Success: false, Message: "Email is already registered"})
		return
	}
	if err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "Server error"})
		return
	}

	utils.WriteJSON(w, http.StatusCreated, utils.APIResponse{
		Success: true,
		Message: "Account created",
		Data: map[string]interface{}{
			"user": map[string]interface{}{
				"id":    user.ID,
				"name":  user.Name,
				"email": user.Email,
				"role":  user.Role,
			},
		},
	})
}
