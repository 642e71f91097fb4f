package controllers

import (
	"crypto/subtle"
	"net/http"
	"os"
	"strconv"
	"time"

	"gorm.io/gorm"

	"github.com/developeragencia/conselhoscursor-sub001/database"
	"github.com/developeragencia/conselhoscursor-sub001/ledger"
	"github.com/developeragencia/conselhoscursor-sub001/middleware"
	"github.com/developeragencia/conselhoscursor-sub001/models"
	"github.com/developeragencia/conselhoscursor-sub001/utils"
)

// CreditBalanceHandler returns the caller's current credit balance.
func CreditBalanceHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := utils.GetUserID(r)
	if !ok {
		utils.WriteJSON(w, http.StatusUnauthorized, utils.APIResponse{Success: false, Message: "Unauthorized"})
		return
	}

	var user models.User
	if err := database.DB.Select("id, credits").First(&user, userID).Error; err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "Server error"})
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{
		Success: true,
		Message: "Successfully",
		Data:    map[string]interface{}{"credits": user.Credits},
	})
}

// CreditTransactionsHandler lists the caller's ledger rows, newest first.
func CreditTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := utils.GetUserID(r)
	if !ok {
		utils.WriteJSON(w, http.StatusUnauthorized, utils.APIResponse{Success: false, Message: "Unauthorized"})
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	offset := (page - 1) * limit

	query := database.DB.Model(&models.CreditTransaction{}).Where("user_id = ?", userID)
	if kind := r.URL.Query().Get("kind"); kind == models.KindCredit || kind == models.KindDebit {
		query = query.Where("kind = ?", kind)
	}

	var totalRows int64
	if err := query.Count(&totalRows).Error; err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "Server error"})
		return
	}

	var transactions []models.CreditTransaction
	if err := query.Order("id DESC").Limit(limit).Offset(offset).Find(&transactions).Error; err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "Server error"})
		return
	}

	out := make([]map[string]interface{}, 0, len(transactions))
	for _, trx := range transactions {
		out = append(out, map[string]interface{}{
			"id":            trx.ID,
			"kind":          trx.Kind,
			"amount":        trx.Amount,
			"balance_after": trx.BalanceAfter,
			"reference_id":  trx.ReferenceID,
			"created_at":    trx.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{
		Success: true,
		Message: "Successfully",
		Data: map[string]interface{}{
			"transactions": out,
			"page":         page,
			"limit":        limit,
			"total_rows":   totalRows,
		},
	})
}

type TopUpRequest struct {
	UserID uint    `json:"user_id" validate:"required"`
	Amount float64 `json:"amount" validate:"required"`
}

// TopUpHandler credits a user's balance. Gated by a shared admin key until a
// payment provider is wired in.
func TopUpHandler(w http.ResponseWriter, r *http.Request) {
	adminKey := os.Getenv("ADMIN_API_KEY")
	provided := r.Header.Get("X-Admin-Key")
	if adminKey == "" || subtle.ConstantTimeCompare([]byte(adminKey), []byte(provided)) != 1 {
		utils.WriteJSON(w, http.StatusUnauthorized, utils.APIResponse{Success: false, Message: "Unauthorized"})
		return
	}

	var req TopUpRequest
	if err := middleware.ValidateJSON(w, r, &req); err != nil {
		return
	}

	var balanceAfter float64
	err := database.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		balanceAfter, err = ledger.Credit(tx, req.UserID, req.Amount, utils.GenerateReferenceID("top"))
		return err
	})
	switch {
	case err == ledger.ErrInvalidAmount:
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "amount must be positive"})
		return
	case err == gorm.ErrRecordNotFound:
		utils.WriteJSON(w, http.StatusNotFound, utils.APIResponse{Success: false, Message: "User not found"})
		return
	case err != nil:
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "Server error"})
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{
		Success: true,
		Message: "Credits added",
		Data:    map[string]interface{}{"user_id": req.UserID, "credits": balanceAfter},
	})
}
