package model

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

type SessionID string

// NewSessionID generates a new unique SessionID
func NewSessionID() SessionID {
	return SessionID(uuid.New().String())
}

// SessionRecord is one interaction. Immutable once written.
type SessionRecord struct {
	ID          SessionID         `json:"id"`
	UserID      string            `json:"user_id"`
	CreatedAt   time.Time         `json:"created_at"`
	Request     *Request          `json:"request"`
	Findings    []*AgentFinding   `json:"findings"`
	Unavailable []Domain          `json:"unavailable,omitempty"`
	Assessment  *HealthAssessment `json:"assessment"`
}

// WriteBack is the unit of persistence for one request. Either all parts land
// or none does.
type WriteBack struct {
	UserID      string
	At          time.Time
	Session     *SessionRecord
	Experiences []*HealthExperience
	Delta       *ProfileDelta
}

// Copy returns a deep copy of the record. Stores hand out and keep copies so
// a written record never changes.
func (s *SessionRecord) Copy() *SessionRecord {
	if s == nil {
		return nil
	}
	c := *s
	c.Request = s.Request.Copy()
	if s.Findings != nil {
		c.Findings = make([]*AgentFinding, len(s.Findings))
		for i, f := range s.Findings {
			c.Findings[i] = f.Copy()
		}
	}
	c.Unavailable = slices.Clone(s.Unavailable)
	c.Assessment = s.Assessment.Copy()
	return &c
}
