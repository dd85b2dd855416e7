package messages

import (
	"time"

	"github.com/LeonardoBeccarini/fertilizer_advisor/internal/model/entities"
)

// FertilizerRecommendationEvent is published after the advisor produced a recommendation,
// so that fertigation controllers downstream can pick it up.
type FertilizerRecommendationEvent struct {
	EventID    string              `json:"event_id"`
	FieldID    string              `json:"field_id"`
	Fertilizer string              `json:"fertilizer"`
	RateKgHa   float64             `json:"rate_kg_ha"`
	Inputs     entities.SoilSample `json:"inputs"`
	Timestamp  time.Time           `json:"timestamp"`
}
