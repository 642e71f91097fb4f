package controllers

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/developeragencia/conselhoscursor-sub001/billing"
	"github.com/developeragencia/conselhoscursor-sub001/database"
	"github.com/developeragencia/conselhoscursor-sub001/ledger"
	"github.com/developeragencia/conselhoscursor-sub001/middleware"
	"github.com/developeragencia/conselhoscursor-sub001/models"
	"github.com/developeragencia/conselhoscursor-sub001/presence"
	"github.com/developeragencia/conselhoscursor-sub001/utils"
)

var (
	errInsufficientCredits = errors.New("insufficient credits")
	errSessionInProgress   = errors.New("active consultation exists")
	errConsultantNotFound  = errors.New("consultant not found")
)

type StartConsultationRequest struct {
	ConsultantID uint `json:"consultant_id" validate:"required"`
}

// StartConsultationHandler opens a metered session between the authenticated
// user and an online consultant. Balance check, single-active-session check,
// the busy claim and the session insert all happen in one transaction, so two
// concurrent starts against the same consultant cannot both succeed.
func StartConsultationHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := utils.GetUserID(r)
	if !ok {
		utils.WriteJSON(w, http.StatusUnauthorized, utils.APIResponse{Success: false, Message: "Unauthorized"})
		return
	}
	role, _ := utils.GetUserRole(r)
	if role != models.RoleUser {
		utils.WriteJSON(w, http.StatusForbidden, utils.APIResponse{Success: false, Message: "Only users can start consultations"})
		return
	}

	var req StartConsultationRequest
	if err := middleware.ValidateJSON(w, r, &req); err != nil {
		return
	}

	var (
		consultation models.Consultation
		consultant   models.Consultant
	)
	err := database.DB.Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&user, userID).Error; err != nil {
			return err
		}
		if user.Credits < minStartBalance {
			return errInsufficientCredits
		}

		var activeCount int64
		if err := tx.Model(&models.Consultation{}).
			Where("user_id = ? AND status = ?", userID, models.ConsultationActive).
			Count(&activeCount).Error; err != nil {
			return err
		}
		if activeCount > 0 {
			return errSessionInProgress
		}

		if err := tx.First(&consultant, req.ConsultantID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return errConsultantNotFound
			}
			return err
		}

		if err := presence.Claim(tx, consultant.ID); err != nil {
			return err
		}

		consultation = models.Consultation{
			UserID:                 userID,
			ConsultantID:           consultant.ID,
			Status:                 models.ConsultationActive,
			StartedAt:              time.Now().UTC(),
			PricePerMinuteSnapshot: consultant.PricePerMinute,
		}
		return tx.Create(&consultation).Error
	})

	switch {
	case err == errInsufficientCredits:
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "Insufficient credits to start a consultation"})
		return
	case err == errSessionInProgress:
		utils.WriteJSON(w, http.StatusConflict, utils.APIResponse{Success: false, Message: "You already have an active consultation"})
		return
	case err == errConsultantNotFound:
		utils.WriteJSON(w, http.StatusNotFound, utils.APIResponse{Success: false, Message: "Consultant not found"})
		return
	case err == presence.ErrConsultantUnavailable:
		utils.WriteJSON(w, http.StatusConflict, utils.APIResponse{Success: false, Message: "Consultant is not available"})
		return
	case err != nil:
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "Server error"})
		return
	}

	utils.WriteJSON(w, http.StatusCreated, utils.APIResponse{
		Success: true,
		Message: "Consultation started",
		Data: map[string]interface{}{
			"consultation": consultationPayload(&consultation),
			"consultant":   consultantPublicPayload(&consultant),
		},
	})
}

// EndConsultationHandler settles and closes a session. Either party may end
// it. Ending an already ended session returns the recorded totals unchanged.
// Settlement and the status flip share one transaction, so a failed charge
// leaves the session active.
func EndConsultationHandler(w http.ResponseWriter, r *http.Request) {
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

	var consultation models.Consultation
	err = database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&consultation, uint(id)).Error; err != nil {
			return err
		}
		// a non-party caller gets the same answer as a missing session
		if consultation.UserID != callerID && consultation.ConsultantID != callerID {
			return gorm.ErrRecordNotFound
		}
		if consultation.Status == models.ConsultationEnded {
			return nil
		}

		now := time.Now().UTC()
		minutes := billing.ElapsedMinutes(consultation.StartedAt, now)
		raw := billing.Charge(minutes, consultation.PricePerMinuteSnapshot)

		var charged float64
		if raw > 0 {
			ref := utils.GenerateReferenceID("con")
			var err error
			charged, err = ledger.Debit(tx, consultation.UserID, raw, ref)
			if err != nil {
				return err
			}
		}

		consultation.Status = models.ConsultationEnded
		consultation.EndedAt = &now
		consultation.TotalCharged = charged
		if err := tx.Save(&consultation).Error; err != nil {
			return err
		}

		return presence.Release(tx, consultation.ConsultantID)
	})

	if err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.WriteJSON(w, http.StatusNotFound, utils.APIResponse{Success: false, Message: "Consultation not found"})
			return
		}
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "Server error"})
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{
		Success: true,
		Message: "Consultation ended",
		Data: map[string]interface{}{
			"consultation":     consultationPayload(&consultation),
			"duration_minutes": settledMinutes(&consultation),
			"total_charged":    consultation.TotalCharged,
		},
	})
}

// ActiveConsultationHandler returns the caller's active session, or null when
// there is none.
func ActiveConsultationHandler(w http.ResponseWriter, r *http.Request) {
	callerID, ok := utils.GetUserID(r)
	if !ok {
		utils.WriteJSON(w, http.StatusUnauthorized, utils.APIResponse{Success: false, Message: "Unauthorized"})
		return
	}

	var consultation models.Consultation
	err := database.DB.
		Where("(user_id = ? OR consultant_id = ?) AND status = ?", callerID, callerID, models.ConsultationActive).
		First(&consultation).Error
	if err == gorm.ErrRecordNotFound {
		utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "Successfully", Data: map[string]interface{}{"consultation": nil}})
		return
	}
	if err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "Server error"})
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{
		Success: true,
		Message: "Successfully",
		Data:    map[string]interface{}{"consultation": consultationPayload(&consultation)},
	})
}

// ConsultationHistoryHandler lists the caller's sessions, newest first.
func ConsultationHistoryHandler(w http.ResponseWriter, r *http.Request) {
	callerID, ok := utils.GetUserID(r)
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
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}

	query := database.DB.Model(&models.Consultation{}).
		Where("user_id = ? OR consultant_id = ?", callerID, callerID)

	var totalRows int64
	if err := query.Count(&totalRows).Error; err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "Server error"})
		return
	}
	totalPages := int(math.Ceil(float64(totalRows) / float64(limit)))
	offset := (page - 1) * limit

	var consultations []models.Consultation
	if err := query.Order("started_at DESC, id DESC").Limit(limit).Offset(offset).
		Find(&consultations).Error; err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "Server error"})
		return
	}

	out := make([]map[string]interface{}, 0, len(consultations))
	for i := range consultations {
		out = append(out, consultationPayload(&consultations[i]))
	}

	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{
		Success: true,
		Message: "Successfully",
		Data: map[string]interface{}{
			"consultations": out,
			"page":          page,
			"limit":         limit,
			"total_rows":    totalRows,
			"total_pages":   totalPages,
		},
	})
}

// GetConsultationHandler returns one consultation with the consultant's
// public profile. Only the two parties can see it; anyone else gets the same
// 404 a missing id gets.
func GetConsultationHandler(w http.ResponseWriter, r *http.Request) {
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

	var consultation models.Consultation
	err = database.DB.First(&consultation, uint(id)).Error
	if err == nil && consultation.UserID != callerID && consultation.ConsultantID != callerID {
		err = gorm.ErrRecordNotFound
	}
	if err == gorm.ErrRecordNotFound {
		utils.WriteJSON(w, http.StatusNotFound, utils.APIResponse{Success: false, Message: "Consultation not found"})
		return
	}
	if err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "Server error"})
		return
	}

	data := map[string]interface{}{"consultation": consultationPayload(&consultation)}
	var consultant models.Consultant
	if err := database.DB.First(&consultant, consultation.ConsultantID).Error; err == nil {
		data["consultant"] = consultantPublicPayload(&consultant)
	}

	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{
		Success: true,
		Message: "Successfully",
		Data:    data,
	})
}

// ConsultationStatsHandler aggregates the calling consultant's ended
// sessions: lifetime and trailing-30-day counts and earnings.
func ConsultationStatsHandler(w http.ResponseWriter, r *http.Request) {
	callerID, ok := utils.GetUserID(r)
	if !ok {
		utils.WriteJSON(w, http.StatusUnauthorized, utils.APIResponse{Success: false, Message: "Unauthorized"})
		return
	}
	role, _ := utils.GetUserRole(r)
	if role != models.RoleConsultant {
		utils.WriteJSON(w, http.StatusForbidden, utils.APIResponse{Success: false, Message: "Access denied"})
		return
	}

	type statsRow struct {
		Consultations int64
		Earnings      float64
	}
	endedQuery := func() *gorm.DB {
		return database.DB.Model(&models.Consultation{}).
			Where("consultant_id = ? AND status = ?", callerID, models.ConsultationEnded).
			Select("COUNT(*) AS consultations, COALESCE(SUM(total_charged), 0) AS earnings")
	}

	var total, monthly statsRow
	if err := endedQuery().Scan(&total).Error; err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "Server error"})
		return
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -30)
	if err := endedQuery().Where("ended_at >= ?", cutoff).Scan(&monthly).Error; err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "Server error"})
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{
		Success: true,
		Message: "Successfully",
		Data: map[string]interface{}{
			"total_consultations":   total.Consultations,
			"total_earnings":        total.Earnings,
			"monthly_consultations": monthly.Consultations,
			"monthly_earnings":      monthly.Earnings,
		},
	})
}

func consultationPayload(c *models.Consultation) map[string]interface{} {
	payload := map[string]interface{}{
		"id":               c.ID,
		"user_id":          c.UserID,
		"consultant_id":    c.ConsultantID,
		"status":           c.Status,
		"started_at":       c.StartedAt.UTC().Format(time.RFC3339),
		"price_per_minute": c.PricePerMinuteSnapshot,
		"total_charged":    c.TotalCharged,
	}
	if c.EndedAt != nil {
		payload["ended_at"] = c.EndedAt.UTC().Format(time.RFC3339)
		payload["duration_minutes"] = settledMinutes(c)
	}
	return payload
}

// settledMinutes derives the billed duration from the recorded timestamps,
// so repeated end calls report the same figure.
func settledMinutes(c *models.Consultation) int {
	if c.EndedAt == nil {
		return 0
	}
	return billing.ElapsedMinutes(c.StartedAt, *c.EndedAt)
}

func consultantPublicPayload(c *models.Consultant) map[string]interface{} {
	return map[string]interface{}{
		"id":               c.ID,
		"name":             c.Name,
		"title":            c.Title,
		"price_per_minute": c.PricePerMinute,
	}
}
