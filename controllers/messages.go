package controllers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"gorm.io/gorm"

	"github.com/developeragencia/conselhoscursor-sub001/database"
	"github.com/developeragencia/conselhoscursor-sub001/middleware"
	"github.com/developeragencia/conselhoscursor-sub001/models"
	"github.com/developeragencia/conselhoscursor-sub001/utils"
)

const maxMessageLen = 4000

type PostMessageRequest struct {
	Content string `json:"content" validate:"required"`
}

// PostMessageHandler appends a chat message to an active consultation over
// REST. The realtime path goes through the websocket; this endpoint exists
// for clients that fall back to polling.
func PostMessageHandler(w http.ResponseWriter, r *http.Request) {
	callerID, ok := utils.GetUserID(r)
	if !ok {
		utils.WriteJSON(w, http.StatusUnauthorized, utils.APIResponse{Success: false, Message: "Unauthorized"})
		return
	}

	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "Invalid consultation id"})
		return
	}

	var req PostMessageRequest
	if err := middleware.ValidateJSON(w, r, &req); err != nil {
		return
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "content is required"})
		return
	}
	if len(content) > maxMessageLen {
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "content is too long"})
		return
	}

	consultation, senderRole, status := loadConsultationForParty(uint(id), callerID)
	if status != 0 {
		writeConsultationError(w, status)
		return
	}
	if consultation.Status != models.ConsultationActive {
		utils.WriteJSON(w, http.StatusConflict, utils.APIResponse{Success: false, Message: "Consultation has ended"})
		return
	}

	message := models.Message{
		ConsultationID: consultation.ID,
		SenderRole:     senderRole,
		Content:        content,
		CreatedAt:      time.Now().UTC(),
	}
	if err := database.DB.Create(&message).Error; err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "Server error"})
		return
	}

	utils.WriteJSON(w, http.StatusCreated, utils.APIResponse{
		Success: true,
		Message: "Message sent",
		Data:    map[string]interface{}{"message": messagePayload(&message)},
	})
}

// ListMessagesHandler returns a consultation's messages ordered by
// (created_at, id). The optional ?after= cursor is a message id; only
// messages strictly after it are returned, which is what a reconnecting
// client uses to backfill.
func ListMessagesHandler(w http.ResponseWriter, r *http.Request) {
	callerID, ok := utils.GetUserID(r)
	if !ok {
		utils.WriteJSON(w, http.StatusUnauthorized, utils.APIResponse{Success: false, Message: "Unauthorized"})
		return
	}

	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "Invalid consultation id"})
		return
	}

	consultation, _, status := loadConsultationForParty(uint(id), callerID)
	if status != 0 {
		writeConsultationError(w, status)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}

	query := database.DB.Model(&models.Message{}).
		Where("consultation_id = ?", consultation.ID)

	if afterStr := r.URL.Query().Get("after"); afterStr != "" {
		after, err := strconv.ParseUint(afterStr, 10, 64)
		if err != nil {
			utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "Invalid after cursor"})
			return
		}
		var cursor models.Message
		if err := database.DB.Select("id, created_at").
			Where("id = ? AND consultation_id = ?", uint(after), consultation.ID).
			First(&cursor).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "Unknown after cursor"})
				return
			}
			utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "Server error"})
			return
		}
		query = query.Where("created_at > ? OR (created_at = ? AND id > ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var messages []models.Message
	if err := query.Order("created_at ASC, id ASC").Limit(limit).Find(&messages).Error; err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "Server error"})
		return
	}

	out := make([]map[string]interface{}, 0, len(messages))
	for i := range messages {
		out = append(out, messagePayload(&messages[i]))
	}

	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{
		Success: true,
		Message: "Successfully",
		Data:    map[string]interface{}{"messages": out},
	})
}

// loadConsultationForParty fetches a consultation when the caller is one of
// its two parties. The non-zero status return is the HTTP status to send.
func loadConsultationForParty(id, callerID uint) (*models.Consultation, string, int) {
	var consultation models.Consultation
	if err := database.DB.First(&consultation, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, "", http.StatusNotFound
		}
		return nil, "", http.StatusInternalServerError
	}
	switch callerID {
	case consultation.UserID:
		return &consultation, models.RoleUser, 0
	case consultation.ConsultantID:
		return &consultation, models.RoleConsultant, 0
	}
	return nil, "", http.StatusNotFound
}

func writeConsultationError(w http.ResponseWriter, status int) {
	if status == http.StatusNotFound {
		utils.WriteJSON(w, http.StatusNotFound, utils.APIResponse{Success: false, Message: "Consultation not found"})
		return
	}
	utils.WriteJSON(w, status, utils.APIResponse{Success: false, Message: "Server error"})
}

func messagePayload(m *models.Message) map[string]interface{} {
	return map[string]interface{}{
		"id":              m.ID,
		"consultation_id": m.ConsultationID,
		"sender_role":     m.SenderRole,
		"content":         m.Content,
		"created_at":      m.CreatedAt.UTC().Format(time.RFC3339),
	}
}
