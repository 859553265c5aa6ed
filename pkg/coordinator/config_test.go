package coordinator_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/medley-health/medley/pkg/coordinator"
	"github.com/medley-health/medley/pkg/model"
)

func writeConfig(t *testing.T, body string) string {
	path := filepath.Join(t.TempDir(), "medley.yaml")
	gt.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := coordinator.DefaultConfig()
	gt.NoError(t, cfg.Validate())
	gt.Equal(t, cfg.ConfidenceFloor, 0.3)
	gt.Equal(t, cfg.SalienceFloor, 0.4)
	gt.Equal(t, cfg.RiskThreshold, 0.8)
	gt.Equal(t, cfg.TopK, 5)
	gt.Equal(t, cfg.HalfLife, 30*24*time.Hour)
	gt.Equal(t, cfg.Weight(model.DomainEconomic), 0.2)
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
risk_threshold: 0.9
agent_timeout: 5s
half_life: 168h
domain_weights:
  economic: 0.5
`)
	cfg, err := coordinator.LoadConfig(path)
	gt.NoError(t, err)
	gt.Equal(t, cfg.RiskThreshold, 0.9)
	gt.Equal(t, cfg.AgentTimeout, 5*time.Second)
	gt.Equal(t, cfg.HalfLife, 7*24*time.Hour)
	gt.Equal(t, cfg.Weight(model.DomainEconomic), 0.5)
	gt.Equal(t, cfg.Weight(model.DomainMental), 0.4)
	gt.Equal(t, cfg.ConfidenceFloor, 0.3)
}

func TestLoadConfigInvalid(t *testing.T) {
	testCases := map[string]string{
		"out of range":     "confidence_floor: 1.5\n",
		"buckets reversed": "status_attention: 0.7\nstatus_urgent: 0.5\n",
		"unknown domain":   "domain_weights:\n  spiritual: 0.3\n",
		"negative weight":  "domain_weights:\n  mental: -1\n",
		"zero timeout":     "agent_timeout: 0s\n",
		"negative top k":   "top_k: -1\n",
		"malformed yaml":   "risk_threshold: [\n",
	}

	for name, body := range testCases {
		t.Run(name, func(t *testing.T) {
			_, err := coordinator.LoadConfig(writeConfig(t, body))
			gt.Error(t, err)
		})
	}

	_, err := coordinator.LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	gt.Error(t, err)
}
