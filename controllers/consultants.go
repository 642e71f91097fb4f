package controllers

import (
	"net/http"
	"strings"

	"gorm.io/gorm"

	"github.com/developeragencia/conselhoscursor-sub001/database"
	"github.com/developeragencia/conselhoscursor-sub001/middleware"
	"github.com/developeragencia/conselhoscursor-sub001/models"
	"github.com/developeragencia/conselhoscursor-sub001/presence"
	"github.com/developeragencia/conselhoscursor-sub001/utils"
)

// ListConsultantsHandler returns the public consultant directory. Optional
// ?status= filters on presence state.
func ListConsultantsHandler(w http.ResponseWriter, r *http.Request) {
	status := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("status")))
	if status != "" && !models.ValidPresenceStatus(status) {
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "Unknown status filter"})
		return
	}

	query := database.DB.Model(&models.Consultant{})
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var consultants []models.Consultant
	if err := query.Order("name ASC").Find(&consultants).Error; err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "Server error"})
		return
	}

	out := make([]map[string]interface{}, 0, len(consultants))
	for _, c := range consultants {
		out = append(out, map[string]interface{}{
			"id":               c.ID,
			"name":             c.Name,
			"title":            c.Title,
			"status":           c.Status,
			"price_per_minute": c.PricePerMinute,
		})
	}

	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{
		Success: true,
		Message: "Successfully",
		Data:    map[string]interface{}{"consultants": out},
	})
}

type SetStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// SetConsultantStatusHandler lets the authenticated consultant toggle between
// online and offline. A busy consultant cannot change status until the active
// consultation ends.
func SetConsultantStatusHandler(w http.ResponseWriter, r *http.Request) {
	consultantID, ok := utils.GetUserID(r)
	if !ok {
		utils.WriteJSON(w, http.StatusUnauthorized, utils.APIResponse{Success: false, Message: "Unauthorized"})
		return
	}
	role, _ := utils.GetUserRole(r)
	if role != models.RoleConsultant {
		utils.WriteJSON(w, http.StatusForbidden, utils.APIResponse{Success: false, Message: "Access denied"})
		return
	}

	var req SetStatusRequest
	if err := middleware.ValidateJSON(w, r, &req); err != nil {
		return
	}
	status := strings.ToLower(strings.TrimSpace(req.Status))

	err := database.DB.Transaction(func(tx *gorm.DB) error {
		return presence.SetStatus(tx, consultantID, status)
	})
	switch {
	case err == presence.ErrUnknownStatus:
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "status must be online or offline"})
		return
	case err == presence.ErrConsultantBusy:
		utils.WriteJSON(w, http.StatusConflict, utils.APIResponse{Success: false, Message: "Cannot change status during an active consultation"})
		return
	case err == gorm.ErrRecordNotFound:
		utils.WriteJSON(w, http.StatusNotFound, utils.APIResponse{Success: false, Message: "Consultant profile not found"})
		return
	case err != nil:
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "Server error"})
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{
		Success: true,
		Message: "Status updated",
		Data:    map[string]interface{}{"status": status},
	})
}
