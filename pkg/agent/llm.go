package agent

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"strings"
	"text/template"

	"github.com/m-mizutani/goerr/v2"
	"github.com/medley-health/medley/pkg/model"
)

//go:embed prompt/finding.md
var findingPromptRaw string

var findingPrompt = template.Must(template.New("finding").Funcs(template.FuncMap{
	"deref": func(v *int) int { return *v },
}).Parse(findingPromptRaw))

// Generator answers a prompt with text. Implemented by the Gemini and Claude adapters.
type Generator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

// LLM is a model-backed adapter for any domain. It asks the generator for a
// JSON finding and validates it.
type LLM struct {
	domain    model.Domain
	generator Generator
	maxMemory int
}

// LLMOption is a functional option for LLM
type LLMOption func(*LLM)

// WithMaxMemory limits how many experiences are written into the prompt
func WithMaxMemory(n int) LLMOption {
	return func(l *LLM) {
		l.maxMemory = n
	}
}

// NewLLM creates a model-backed adapter for domain
func NewLLM(domain model.Domain, generator Generator, opts ...LLMOption) *LLM {
	l := &LLM{
		domain:    domain,
		generator: generator,
		maxMemory: 5,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *LLM) Domain() model.Domain {
	return l.domain
}

type promptData struct {
	Domain      model.Domain
	Profile     *model.UserProfile
	Experiences []*model.ScoredExperience
}

type rawFinding struct {
	Severity        float64                 `json:"severity"`
	Observations    []*model.Observation    `json:"observations"`
	Recommendations []*model.Recommendation `json:"recommendations"`
	Tags            []string                `json:"tags"`
}

func (l *LLM) Invoke(ctx context.Context, req *model.Request, bundle *Bundle) (*model.AgentFinding, error) {
	system, err := l.buildSystemPrompt(bundle)
	if err != nil {
		return nil, err
	}

	hints, err := json.Marshal(req.Hints)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to encode hints")
	}
	prompt := "Message:\n" + req.Text + "\n\nStructured hints:\n" + string(hints)

	out, err := l.generator.Generate(ctx, system, prompt)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate finding", goerr.V("domain", l.domain))
	}

	finding, err := ParseFinding(l.domain, out)
	if err != nil {
		return nil, err
	}
	return finding, nil
}

func (l *LLM) buildSystemPrompt(bundle *Bundle) (string, error) {
	data := promptData{Domain: l.domain}
	if bundle != nil {
		data.Profile = bundle.Profile
		data.Experiences = bundle.Experiences
		if len(data.Experiences) > l.maxMemory {
			data.Experiences = data.Experiences[:l.maxMemory]
		}
	}

	var buf bytes.Buffer
	if err := findingPrompt.Execute(&buf, data); err != nil {
		return "", goerr.Wrap(err, "failed to render prompt", goerr.V("domain", l.domain))
	}
	return buf.String(), nil
}

// ParseFinding decodes a model answer into a validated finding of domain.
// Code fences around the JSON are tolerated.
func ParseFinding(domain model.Domain, text string) (*model.AgentFinding, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")

	var raw rawFinding
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &raw); err != nil {
		return nil, goerr.Wrap(err, "failed to decode finding", goerr.V("domain", domain), goerr.V("text", text))
	}

	finding := &model.AgentFinding{
		Domain:          domain,
		Severity:        raw.Severity,
		Observations:    raw.Observations,
		Recommendations: raw.Recommendations,
		Tags:            raw.Tags,
	}
	for _, r := range finding.Recommendations {
		if r == nil {
			continue
		}
		// the domain is assigned by fusion, never by the model
		r.Domain = ""
		r.Superseded = false
		r.SupersededBy = ""
		if r.Priority < model.PriorityLow {
			r.Priority = model.PriorityLow
		}
		if r.Priority > model.PriorityCritical {
			r.Priority = model.PriorityCritical
		}
	}
	if err := finding.Validate(); err != nil {
		return nil, goerr.Wrap(err, "model returned an invalid finding", goerr.V("domain", domain))
	}
	return finding, nil
}
