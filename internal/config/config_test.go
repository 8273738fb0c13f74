package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "council.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
version: "1.0"
deliberation:
  session_timeout: "45s"
  persona_timeout: "15s"
  grace_period: "500ms"
  support_band: 1.5
  quorum: 2
personas:
  architect:
    name: "Systems Architect"
    expertise: ["architecture", "scalability"]
    weight: 2.0
    stance: "neutral"
  security:
    name: "Security Reviewer"
    expertise: ["security"]
    stance: "skeptic"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 45*time.Second, cfg.Deliberation.SessionTimeoutDuration())
	assert.Equal(t, 15*time.Second, cfg.Deliberation.PersonaTimeoutDuration())
	assert.Equal(t, 500*time.Millisecond, cfg.Deliberation.GracePeriodDuration())
	assert.Equal(t, 1.5, *cfg.Deliberation.SupportBand)
	assert.Equal(t, 2, *cfg.Deliberation.Quorum)

	require.Len(t, cfg.Personas, 2)
	architect := cfg.Personas["architect"]
	security := cfg.Personas["security"]
	assert.Equal(t, 2.0, architect.EffectiveWeight())
	assert.Equal(t, 1.0, security.EffectiveWeight())
}

func TestLoad_DefaultsApplied(t *testing.T) {
	path := writeConfig(t, `
version: "1.0"
personas:
  solo:
    name: "Solo Advisor"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, DefaultSessionTimeout, cfg.Deliberation.SessionTimeoutDuration())
	assert.Equal(t, DefaultPersonaTimeout, cfg.Deliberation.PersonaTimeoutDuration())
	assert.Equal(t, DefaultGracePeriod, cfg.Deliberation.GracePeriodDuration())
	assert.Equal(t, DefaultSupportBand, *cfg.Deliberation.SupportBand)
	assert.Equal(t, DefaultQuorum, *cfg.Deliberation.Quorum)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config")
}

func TestValidate_Errors(t *testing.T) {
	weight := -1.0

	cases := []struct {
		name    string
		mutate  func(*CouncilConfig)
		wantErr string
	}{
		{
			name:    "wrong version",
			mutate:  func(c *CouncilConfig) { c.Version = "2.0" },
			wantErr: "unsupported version",
		},
		{
			name:    "no personas",
			mutate:  func(c *CouncilConfig) { c.Personas = nil },
			wantErr: "no personas defined",
		},
		{
			name: "persona without name",
			mutate: func(c *CouncilConfig) {
				c.Personas["bad"] = PersonaConfig{}
			},
			wantErr: "name is required",
		},
		{
			name: "non-positive weight",
			mutate: func(c *CouncilConfig) {
				c.Personas["bad"] = PersonaConfig{Name: "Bad", Weight: &weight}
			},
			wantErr: "weight must be > 0",
		},
		{
			name: "unknown capability",
			mutate: func(c *CouncilConfig) {
				c.Personas["bad"] = PersonaConfig{Name: "Bad", Capability: "llm"}
			},
			wantErr: "unknown capability",
		},
		{
			name: "invalid stance",
			mutate: func(c *CouncilConfig) {
				c.Personas["bad"] = PersonaConfig{Name: "Bad", Stance: "grumpy"}
			},
			wantErr: "invalid stance",
		},
		{
			name: "persona timeout exceeds session timeout",
			mutate: func(c *CouncilConfig) {
				c.Deliberation = &DeliberationConfig{SessionTimeout: "5s", PersonaTimeout: "10s"}
			},
			wantErr: "must not exceed session_timeout",
		},
		{
			name: "malformed duration",
			mutate: func(c *CouncilConfig) {
				c.Deliberation = &DeliberationConfig{SessionTimeout: "5 parsecs"}
			},
			wantErr: "invalid deliberation.session_timeout",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := &CouncilConfig{
				Version: "1.0",
				Personas: map[string]PersonaConfig{
					"ok": {Name: "OK"},
				},
			}
			tc.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestValidate_QuorumAndBandBounds(t *testing.T) {
	badQuorum := 0
	cfg := &CouncilConfig{
		Version:      "1.0",
		Personas:     map[string]PersonaConfig{"ok": {Name: "OK"}},
		Deliberation: &DeliberationConfig{Quorum: &badQuorum},
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quorum must be >= 1")

	badBand := -0.5
	cfg = &CouncilConfig{
		Version:      "1.0",
		Personas:     map[string]PersonaConfig{"ok": {Name: "OK"}},
		Deliberation: &DeliberationConfig{SupportBand: &badBand},
	}
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "support_band must be >= 0")
}
