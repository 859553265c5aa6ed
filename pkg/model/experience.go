package model

import (
	"time"

	"github.com/google/uuid"
)

type ExperienceID string

// NewExperienceID generates a new unique ExperienceID
func NewExperienceID() ExperienceID {
	return ExperienceID(uuid.New().String())
}

// HealthExperience is a distilled memory unit extracted from a session. It is
// never mutated; newer experiences outrank it through recency decay.
type HealthExperience struct {
	ID        ExperienceID `json:"id" firestore:"id"`
	UserID    string       `json:"user_id" firestore:"user_id"`
	SessionID SessionID    `json:"session_id" firestore:"session_id"`
	Domain    Domain       `json:"domain" firestore:"domain"`
	Summary   string       `json:"summary" firestore:"summary"`
	Embedding []float32    `json:"embedding" firestore:"embedding"`
	Severity  float64      `json:"severity" firestore:"severity"`
	CreatedAt time.Time    `json:"created_at" firestore:"created_at"`
}

// ScoredExperience is a retrieval hit.
type ScoredExperience struct {
	Experience *HealthExperience `json:"experience"`
	Similarity float64           `json:"similarity"`
	Decay      float64           `json:"decay"`
	Score      float64           `json:"score"`
}
