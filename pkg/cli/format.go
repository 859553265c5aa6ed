package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/medley-health/medley/pkg/coordinator"
	"github.com/medley-health/medley/pkg/model"
)

var statusMark = map[model.Status]string{
	model.StatusStable:         "[ok]",
	model.StatusAttention:      "[!]",
	model.StatusUrgent:         "[!!]",
	model.StatusUnableToAssess: "[?]",
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return goerr.Wrap(err, "failed to marshal output")
	}
	fmt.Fprintf(w, "%s\n", string(data))
	return nil
}

// formatAssessment prints an assessment for humans
func formatAssessment(w io.Writer, a *model.HealthAssessment) {
	fmt.Fprintf(w, "%s overall status: %s (severity %.2f)\n", statusMark[a.Status], a.Status, a.CombinedSeverity)
	if a.SessionID != "" {
		fmt.Fprintf(w, "session: %s\n", a.SessionID)
	}
	if a.MemoryContext > 0 {
		fmt.Fprintf(w, "memory: %d past experience(s) considered\n", a.MemoryContext)
	}

	if len(a.RiskFlags) > 0 {
		fmt.Fprintf(w, "\nRisk flags:\n")
		for _, f := range a.RiskFlags {
			fmt.Fprintf(w, "  ! %s: %s\n", strings.ToUpper(string(f.Level)), f.Reason)
		}
	}

	for _, d := range model.AllDomains() {
		s := a.Summary(d)
		if s == nil {
			continue
		}
		fmt.Fprintf(w, "\n%s (severity %.2f)\n", d, s.Severity)
		for _, o := range s.Observations {
			fmt.Fprintf(w, "  - %s (%.0f%%)\n", o.Claim, o.Confidence*100)
		}
	}
	if len(a.Unavailable) > 0 {
		names := make([]string, 0, len(a.Unavailable))
		for _, d := range a.Unavailable {
			names = append(names, string(d))
		}
		fmt.Fprintf(w, "\nunavailable: %s\n", strings.Join(names, ", "))
	}

	if len(a.Recommendations) > 0 {
		fmt.Fprintf(w, "\nRecommendations:\n")
		for i, r := range a.Recommendations {
			line := fmt.Sprintf("  %d. %s %s [%s, p%d, %.0f%%]", i+1, r.Action, r.Target, r.Domain, r.Priority, r.Confidence*100)
			if r.Superseded {
				line += " (superseded by " + r.SupersededBy + ")"
			}
			fmt.Fprintln(w, line)
			if r.Rationale != "" {
				fmt.Fprintf(w, "     %s\n", r.Rationale)
			}
		}
	}

	if len(a.Warnings) > 0 {
		fmt.Fprintf(w, "\nWarnings:\n")
		for _, msg := range a.Warnings {
			fmt.Fprintf(w, "  * %s\n", msg)
		}
	}
}

func formatProfile(w io.Writer, p *model.UserProfile) {
	fmt.Fprintf(w, "user: %s\n", p.UserID)
	if p.Age != nil {
		fmt.Fprintf(w, "age: %d\n", *p.Age)
	}
	if p.Income != nil {
		fmt.Fprintf(w, "income: %.0f\n", *p.Income)
	}
	if p.Country != "" {
		fmt.Fprintf(w, "country: %s\n", p.Country)
	}
	if len(p.BaselineFlags) > 0 {
		fmt.Fprintf(w, "baseline: %s\n", strings.Join(p.BaselineFlags, ", "))
	}
	formatCounts(w, "concerns", p.ConcernCounts)
}

func formatCounts[K ~string](w io.Writer, title string, counts map[K]int) {
	if len(counts) == 0 {
		return
	}
	keys := make([]K, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})

	fmt.Fprintf(w, "%s:\n", title)
	for _, k := range keys {
		fmt.Fprintf(w, "  %-16s %d\n", k, counts[k])
	}
}

func formatSummary(w io.Writer, s *coordinator.HealthSummary) {
	fmt.Fprintf(w, "user: %s, last %d day(s)\n", s.UserID, s.Days)
	fmt.Fprintf(w, "sessions: %d, risk flags: %d\n", s.Sessions, s.RiskFlags)
	if s.LastSession != nil {
		fmt.Fprintf(w, "last session: %s\n", s.LastSession.Format("2006-01-02 15:04:05"))
	}
	formatCounts(w, "status", s.StatusCounts)
	formatCounts(w, "domains", s.DomainCounts)
	formatCounts(w, "concerns", s.ConcernCounts)
}

func formatSession(w io.Writer, s *model.SessionRecord) {
	status := "-"
	if s.Assessment != nil {
		status = string(s.Assessment.Status)
	}
	text := ""
	if s.Request != nil {
		text = s.Request.Text
		if r := []rune(text); len(r) > 60 {
			text = string(r[:60]) + "..."
		}
	}
	fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.ID, s.CreatedAt.Format("2006-01-02 15:04:05"), status, text)
}

func formatExperience(w io.Writer, e *model.ScoredExperience) {
	exp := e.Experience
	fmt.Fprintf(w, "%.3f\t%s\t%s\tseverity %.2f\t%s\n",
		e.Score, exp.CreatedAt.Format("2006-01-02"), exp.Domain, exp.Severity, exp.Summary)
}
