package controllers

import (
	"testing"
	"time"

	"github.com/developeragencia/conselhoscursor-sub001/config"
	"github.com/developeragencia/conselhoscursor-sub001/models"
)

func TestConsultationPayloadReportsSettledDuration(t *testing.T) {
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ended := started.Add(61 * time.Second)
	c := &models.Consultation{
		ID:                     9,
		UserID:                 1,
		ConsultantID:           2,
		Status:                 models.ConsultationEnded,
		StartedAt:              started,
		EndedAt:                &ended,
		PricePerMinuteSnapshot: 4.00,
		TotalCharged:           8.00,
	}

	p := consultationPayload(c)
	if p["duration_minutes"] != 2 {
		t.Fatalf("duration_minutes = %v, want 2", p["duration_minutes"])
	}
	// derived from recorded timestamps, so a repeated end call reports the
	// same figure
	if again := consultationPayload(c); again["duration_minutes"] != 2 {
		t.Fatalf("duration_minutes changed on re-read: %v", again["duration_minutes"])
	}
	if p["total_charged"] != 8.00 {
		t.Fatalf("total_charged = %v, want 8.00", p["total_charged"])
	}
}

func TestConsultationPayloadActiveHasNoDuration(t *testing.T) {
	c := &models.Consultation{
		ID:        3,
		Status:    models.ConsultationActive,
		StartedAt: time.Now().UTC(),
	}
	p := consultationPayload(c)
	if _, ok := p["duration_minutes"]; ok {
		t.Fatal("active consultation payload carries duration_minutes")
	}
	if _, ok := p["ended_at"]; ok {
		t.Fatal("active consultation payload carries ended_at")
	}
}

func TestConsultantPublicPayload(t *testing.T) {
	c := &models.Consultant{
		ID:             2,
		Name:           "Madame Vera",
		Title:          "Tarot",
		Status:         models.StatusBusy,
		PricePerMinute: 4.00,
	}
	p := consultantPublicPayload(c)
	if p["name"] != "Madame Vera" || p["title"] != "Tarot" {
		t.Fatalf("unexpected public payload: %v", p)
	}
	if p["price_per_minute"] != 4.00 {
		t.Fatalf("price_per_minute = %v, want 4.00", p["price_per_minute"])
	}
	if _, ok := p["status"]; ok {
		t.Fatal("public payload leaks presence status")
	}
}

func TestConfigureSetsStartBalanceFloor(t *testing.T) {
	defer func(old float64) { minStartBalance = old }(minStartBalance)

	Configure(config.Config{MinStartBalance: 12.50})
	if minStartBalance != 12.50 {
		t.Fatalf("minStartBalance = %v, want 12.50", minStartBalance)
	}
}
