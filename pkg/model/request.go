package model

import (
	"fmt"
	"slices"
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

// Hints are optional structured attributes that come with a request.
type Hints struct {
	Age            *int     `json:"age,omitempty"`
	Income         *float64 `json:"income,omitempty"`
	Country        string   `json:"country,omitempty"`
	TrainingLoad   *float64 `json:"training_load,omitempty"`
	MatchIntensity *float64 `json:"match_intensity,omitempty"`
	GamesPlayed    *int     `json:"games_played,omitempty"`
	RecoveryDays   *int     `json:"recovery_days,omitempty"`
	RecentInjury   bool     `json:"recent_injury,omitempty"`
	HealthConcerns []string `json:"health_concerns,omitempty"`
}

// Empty reports whether no hint is set
func (h Hints) Empty() bool {
	return h.Age == nil && h.Income == nil && h.Country == "" && !h.HasSportsMetrics() && len(h.HealthConcerns) == 0
}

// HasSportsMetrics reports whether any structured training metric is present
func (h Hints) HasSportsMetrics() bool {
	return h.TrainingLoad != nil || h.MatchIntensity != nil || h.GamesPlayed != nil || h.RecoveryDays != nil || h.RecentInjury
}

// Request is a free-form health query plus optional hints.
type Request struct {
	UserID string `json:"user_id"`
	Text   string `json:"text"`
	Hints  Hints  `json:"hints"`
}

// Validate rejects requests that cannot be assessed.
func (r *Request) Validate() error {
	if r == nil {
		return goerr.Wrap(ErrRequestInvalid, "request is nil")
	}
	if strings.TrimSpace(r.UserID) == "" {
		return goerr.Wrap(ErrRequestInvalid, "user id is empty")
	}
	if strings.TrimSpace(r.Text) == "" && r.Hints.Empty() {
		return goerr.Wrap(ErrRequestInvalid, "empty text and no structured hints", goerr.V("user_id", r.UserID))
	}

	h := r.Hints
	if h.Age != nil && *h.Age < 0 {
		return goerr.Wrap(ErrRequestInvalid, "age must not be negative", goerr.V("age", *h.Age))
	}
	if h.Income != nil && *h.Income < 0 {
		return goerr.Wrap(ErrRequestInvalid, "income must not be negative", goerr.V("income", *h.Income))
	}
	if h.TrainingLoad != nil && !inUnit(*h.TrainingLoad) {
		return goerr.Wrap(ErrRequestInvalid, "training_load must be in [0,1]", goerr.V("training_load", *h.TrainingLoad))
	}
	if h.MatchIntensity != nil && !inUnit(*h.MatchIntensity) {
		return goerr.Wrap(ErrRequestInvalid, "match_intensity must be in [0,1]", goerr.V("match_intensity", *h.MatchIntensity))
	}
	return nil
}

// DropInvalid clears hints that are unusable but do not make the request
// itself unusable, and returns a note for each one.
func (h *Hints) DropInvalid() []string {
	var dropped []string
	if h.Country != "" && !isCountryCode(strings.TrimSpace(h.Country)) {
		dropped = append(dropped, fmt.Sprintf("ignored country hint %q: not a two-letter code", h.Country))
		h.Country = ""
	}
	return dropped
}

func isCountryCode(s string) bool {
	if len(s) != 2 {
		return false
	}
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return false
		}
	}
	return true
}

func inUnit(v float64) bool {
	return v >= 0 && v <= 1
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Copy returns hints that share no memory with h
func (h Hints) Copy() Hints {
	c := h
	c.Age = clonePtr(h.Age)
	c.Income = clonePtr(h.Income)
	c.TrainingLoad = clonePtr(h.TrainingLoad)
	c.MatchIntensity = clonePtr(h.MatchIntensity)
	c.GamesPlayed = clonePtr(h.GamesPlayed)
	c.RecoveryDays = clonePtr(h.RecoveryDays)
	c.HealthConcerns = slices.Clone(h.HealthConcerns)
	return c
}

// Copy returns a deep copy of the request
func (r *Request) Copy() *Request {
	if r == nil {
		return nil
	}
	c := *r
	c.Hints = r.Hints.Copy()
	return &c
}
