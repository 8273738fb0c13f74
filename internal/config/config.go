package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied by Validate when council.yml omits tuning values.
const (
	DefaultSessionTimeout = 30 * time.Second
	DefaultPersonaTimeout = 10 * time.Second
	DefaultGracePeriod    = 250 * time.Millisecond
	DefaultSupportBand    = 1.0
	DefaultQuorum         = 1
)

// CouncilConfig represents the top-level council.yml configuration.
type CouncilConfig struct {
	Version      string                   `yaml:"version"`
	Deliberation *DeliberationConfig      `yaml:"deliberation,omitempty"`
	Personas     map[string]PersonaConfig `yaml:"personas"`
}

// DeliberationConfig specifies deliberation tuning. Durations use Go duration
// syntax ("30s", "1m30s"). Missing values get defaults in Validate.
type DeliberationConfig struct {
	SessionTimeout string   `yaml:"session_timeout,omitempty"` // Hard deadline for one deliberation
	PersonaTimeout string   `yaml:"persona_timeout,omitempty"` // Soft timeout per persona, nested in the session deadline
	GracePeriod    string   `yaml:"grace_period,omitempty"`    // How long to wait for stragglers after the deadline
	SupportBand    *float64 `yaml:"support_band,omitempty"`    // Std-dev multiplier below the weighted mean that still counts as supporting
	Quorum         *int     `yaml:"quorum,omitempty"`          // Minimum completed opinions for a non-degraded decision

	sessionTimeout time.Duration
	personaTimeout time.Duration
	gracePeriod    time.Duration
}

// PersonaConfig represents a single persona definition. The map key in
// CouncilConfig.Personas is the persona ID.
type PersonaConfig struct {
	Name       string   `yaml:"name"`                 // Required: display name
	Expertise  []string `yaml:"expertise,omitempty"`  // Domain tags used by the heuristic capability
	Weight     *float64 `yaml:"weight,omitempty"`     // Default 1.0
	Capability string   `yaml:"capability,omitempty"` // "heuristic" (default); other capabilities register at startup
	Stance     string   `yaml:"stance,omitempty"`     // "optimist", "skeptic", or "neutral" (default)
}

// Validate performs strict validation on the configuration and applies
// defaults in place.
func (c *CouncilConfig) Validate() error {
	// Required: version
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}

	// Required: at least one persona. An empty roster is a structural fault
	// and must be rejected before any deliberation starts.
	if len(c.Personas) == 0 {
		return fmt.Errorf("no personas defined")
	}

	for id, p := range c.Personas {
		if err := p.Validate(id); err != nil {
			return err
		}
	}

	if c.Deliberation == nil {
		c.Deliberation = &DeliberationConfig{}
	}
	if err := c.Deliberation.validate(); err != nil {
		return err
	}

	return nil
}

// validate parses durations and applies defaults.
func (d *DeliberationConfig) validate() error {
	var err error

	d.sessionTimeout, err = parseDurationOr("deliberation.session_timeout", d.SessionTimeout, DefaultSessionTimeout)
	if err != nil {
		return err
	}

	d.personaTimeout, err = parseDurationOr("deliberation.persona_timeout", d.PersonaTimeout, DefaultPersonaTimeout)
	if err != nil {
		return err
	}

	d.gracePeriod, err = parseDurationOr("deliberation.grace_period", d.GracePeriod, DefaultGracePeriod)
	if err != nil {
		return err
	}

	if d.personaTimeout > d.sessionTimeout {
		return fmt.Errorf("deliberation.persona_timeout (%v) must not exceed session_timeout (%v)",
			d.personaTimeout, d.sessionTimeout)
	}

	if d.SupportBand == nil {
		band := DefaultSupportBand
		d.SupportBand = &band
	}
	if *d.SupportBand < 0 {
		return fmt.Errorf("deliberation.support_band must be >= 0, got %v", *d.SupportBand)
	}

	if d.Quorum == nil {
		quorum := DefaultQuorum
		d.Quorum = &quorum
	}
	if *d.Quorum < 1 {
		return fmt.Errorf("deliberation.quorum must be >= 1, got %d", *d.Quorum)
	}

	return nil
}

func parseDurationOr(field, value string, fallback time.Duration) (time.Duration, error) {
	if value == "" {
		return fallback, nil
	}

	dur, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q (use Go duration syntax like '30s')", field, value)
	}
	if dur <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %v", field, dur)
	}
	return dur, nil
}

// SessionTimeoutDuration returns the parsed session deadline.
// Only valid after Validate.
func (d *DeliberationConfig) SessionTimeoutDuration() time.Duration {
	return d.sessionTimeout
}

// PersonaTimeoutDuration returns the parsed per-persona soft timeout.
// Only valid after Validate.
func (d *DeliberationConfig) PersonaTimeoutDuration() time.Duration {
	return d.personaTimeout
}

// GracePeriodDuration returns the parsed post-deadline grace period.
// Only valid after Validate.
func (d *DeliberationConfig) GracePeriodDuration() time.Duration {
	return d.gracePeriod
}

// Validate performs validation on a single persona configuration.
func (p *PersonaConfig) Validate(id string) error {
	if id == "" {
		return fmt.Errorf("persona ID cannot be empty")
	}

	if p.Name == "" {
		return fmt.Errorf("persona '%s': name is required", id)
	}

	if p.Weight != nil && *p.Weight <= 0 {
		return fmt.Errorf("persona '%s': weight must be > 0, got %v", id, *p.Weight)
	}

	if p.Capability != "" && p.Capability != "heuristic" {
		return fmt.Errorf("persona '%s': unknown capability: %s (only 'heuristic' is built in)", id, p.Capability)
	}

	switch p.Stance {
	case "", "neutral", "optimist", "skeptic":
	default:
		return fmt.Errorf("persona '%s': invalid stance: %s (must be 'optimist', 'skeptic', or 'neutral')", id, p.Stance)
	}

	return nil
}

// EffectiveWeight returns the configured weight or the 1.0 default.
func (p *PersonaConfig) EffectiveWeight() float64 {
	if p.Weight == nil {
		return 1.0
	}
	return *p.Weight
}

// Load reads and validates council.yml from the specified path.
func Load(path string) (*CouncilConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config CouncilConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}
