package coordinator

import (
	"os"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/medley-health/medley/pkg/model"
	"gopkg.in/yaml.v3"
)

// Config holds the fusion and dispatch tunables
type Config struct {
	ConfidenceFloor float64                  `yaml:"confidence_floor"`
	SalienceFloor   float64                  `yaml:"salience_floor"`
	RiskThreshold   float64                  `yaml:"risk_threshold"`
	HalfLife        time.Duration            `yaml:"half_life"`
	DomainWeights   map[model.Domain]float64 `yaml:"domain_weights"`
	TopK            int                      `yaml:"top_k"`
	AgentTimeout    time.Duration            `yaml:"agent_timeout"`
	StatusAttention float64                  `yaml:"status_attention"`
	StatusUrgent    float64                  `yaml:"status_urgent"`
}

// DefaultConfig returns the default tunables
func DefaultConfig() *Config {
	return &Config{
		ConfidenceFloor: 0.3,
		SalienceFloor:   0.4,
		RiskThreshold:   0.8,
		HalfLife:        30 * 24 * time.Hour,
		DomainWeights: map[model.Domain]float64{
			model.DomainMental:   model.DomainMental.DefaultWeight(),
			model.DomainPhysical: model.DomainPhysical.DefaultWeight(),
			model.DomainEconomic: model.DomainEconomic.DefaultWeight(),
		},
		TopK:            5,
		AgentTimeout:    30 * time.Second,
		StatusAttention: 0.33,
		StatusUrgent:    0.66,
	}
}

// LoadConfig reads a YAML file over the defaults. Keys absent from the file
// keep their default value.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read config file", goerr.V("path", path))
	}

	cfg := DefaultConfig()
	defaults := cfg.DomainWeights
	cfg.DomainWeights = nil
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, goerr.Wrap(err, "failed to parse config file", goerr.V("path", path))
	}
	if cfg.DomainWeights == nil {
		cfg.DomainWeights = map[model.Domain]float64{}
	}
	for d, w := range defaults {
		if _, ok := cfg.DomainWeights[d]; !ok {
			cfg.DomainWeights[d] = w
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid config", goerr.V("path", path))
	}
	return cfg, nil
}

// Validate checks ranges and ordering of the tunables
func (c *Config) Validate() error {
	for name, v := range map[string]float64{
		"confidence_floor": c.ConfidenceFloor,
		"salience_floor":   c.SalienceFloor,
		"risk_threshold":   c.RiskThreshold,
		"status_attention": c.StatusAttention,
		"status_urgent":    c.StatusUrgent,
	} {
		if v < 0 || v > 1 {
			return goerr.New("value must be in [0,1]", goerr.V("key", name), goerr.V("value", v))
		}
	}
	if c.StatusAttention > c.StatusUrgent {
		return goerr.New("status_attention must not exceed status_urgent",
			goerr.V("status_attention", c.StatusAttention), goerr.V("status_urgent", c.StatusUrgent))
	}
	if c.TopK < 0 {
		return goerr.New("top_k must not be negative", goerr.V("top_k", c.TopK))
	}
	if c.AgentTimeout <= 0 {
		return goerr.New("agent_timeout must be positive", goerr.V("agent_timeout", c.AgentTimeout))
	}
	if c.HalfLife < 0 {
		return goerr.New("half_life must not be negative", goerr.V("half_life", c.HalfLife))
	}
	for d, w := range c.DomainWeights {
		if err := d.Validate(); err != nil {
			return goerr.Wrap(err, "unknown domain in domain_weights")
		}
		if w < 0 {
			return goerr.New("domain weight must not be negative", goerr.V("domain", d), goerr.V("weight", w))
		}
	}
	return nil
}

// Weight returns the configured weight of d, falling back to the default
func (c *Config) Weight(d model.Domain) float64 {
	if w, ok := c.DomainWeights[d]; ok {
		return w
	}
	return d.DefaultWeight()
}
