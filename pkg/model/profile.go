package model

import (
	"maps"
	"slices"
	"time"
)

// UserProfile is the durable per-user record.
type UserProfile struct {
	UserID        string         `json:"user_id" firestore:"user_id"`
	Age           *int           `json:"age,omitempty" firestore:"age"`
	Income        *float64       `json:"income,omitempty" firestore:"income"`
	Country       string         `json:"country,omitempty" firestore:"country"`
	BaselineFlags []string       `json:"baseline_flags,omitempty" firestore:"baseline_flags"`
	ConcernCounts map[string]int `json:"concern_counts,omitempty" firestore:"concern_counts"`
	CreatedAt     time.Time      `json:"created_at" firestore:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at" firestore:"updated_at"`
}

// NewUserProfile synthesizes a profile with all-default fields for a first-time user.
func NewUserProfile(userID string) *UserProfile {
	return &UserProfile{
		UserID:        userID,
		ConcernCounts: map[string]int{},
	}
}

// Copy returns a deep copy of the profile
func (p *UserProfile) Copy() *UserProfile {
	if p == nil {
		return nil
	}
	c := *p
	if p.Age != nil {
		age := *p.Age
		c.Age = &age
	}
	if p.Income != nil {
		income := *p.Income
		c.Income = &income
	}
	c.BaselineFlags = slices.Clone(p.BaselineFlags)
	c.ConcernCounts = maps.Clone(p.ConcernCounts)
	if c.ConcernCounts == nil {
		c.ConcernCounts = map[string]int{}
	}
	return &c
}

// ProfileDelta is the merge the coordinator issues after a session.
type ProfileDelta struct {
	TagIncrements map[string]int `json:"tag_increments,omitempty"`
	Age           *int           `json:"age,omitempty"`
	Income        *float64       `json:"income,omitempty"`
	Country       string         `json:"country,omitempty"`
}

// Empty reports whether applying the delta would change nothing
func (d *ProfileDelta) Empty() bool {
	return d == nil || (len(d.TagIncrements) == 0 && d.Age == nil && d.Income == nil && d.Country == "")
}

// Apply merges the delta. Counters only grow and demographic fields are only
// filled when absent; an explicit PutProfile is the only way to change them.
func (p *UserProfile) Apply(d *ProfileDelta, now time.Time) {
	if d.Empty() {
		return
	}
	if p.ConcernCounts == nil {
		p.ConcernCounts = map[string]int{}
	}
	for tag, n := range d.TagIncrements {
		if n > 0 {
			p.ConcernCounts[tag] += n
		}
	}
	if p.Age == nil && d.Age != nil {
		age := *d.Age
		p.Age = &age
	}
	if p.Income == nil && d.Income != nil {
		income := *d.Income
		p.Income = &income
	}
	if p.Country == "" && d.Country != "" {
		p.Country = d.Country
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
}
