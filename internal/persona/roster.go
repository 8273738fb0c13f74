package persona

import (
	"fmt"
	"sort"

	"github.com/quorumworks/council/internal/config"
	"github.com/quorumworks/council/pkg/council"
)

// Roster is the full, immutable set of personas for one council instance.
// It is built once at process start from council.yml and is read-only
// afterwards, so it needs no locking.
type Roster struct {
	personas []Persona
	byID     map[string]Persona
}

// NewRoster builds a roster from concrete personas. Persona IDs must be
// unique and every persona definition must validate.
func NewRoster(personas ...Persona) (*Roster, error) {
	byID := make(map[string]Persona, len(personas))
	for _, p := range personas {
		info := p.Info()
		if err := info.Validate(); err != nil {
			return nil, fmt.Errorf("invalid persona definition: %w", err)
		}
		if _, exists := byID[info.ID]; exists {
			return nil, fmt.Errorf("duplicate persona ID: %s", info.ID)
		}
		byID[info.ID] = p
	}

	// Deterministic iteration order regardless of registration order
	ordered := make([]Persona, len(personas))
	copy(ordered, personas)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].Info().ID < ordered[j].Info().ID
	})

	return &Roster{personas: ordered, byID: byID}, nil
}

// FromConfig builds a roster from council.yml persona definitions, wiring
// each to its configured capability ("heuristic" is the only built-in).
func FromConfig(cfg *config.CouncilConfig) (*Roster, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	personas := make([]Persona, 0, len(cfg.Personas))
	for id, pc := range cfg.Personas {
		info := council.PersonaInfo{
			ID:        id,
			Name:      pc.Name,
			Expertise: pc.Expertise,
			Weight:    pc.EffectiveWeight(),
		}

		switch pc.Capability {
		case "", "heuristic":
			personas = append(personas, NewHeuristic(info, Stance(pc.Stance)))
		default:
			return nil, fmt.Errorf("persona '%s': unknown capability: %s", id, pc.Capability)
		}
	}

	return NewRoster(personas...)
}

// Personas returns the roster members sorted by persona ID.
// The returned slice must not be modified.
func (r *Roster) Personas() []Persona {
	return r.personas
}

// List returns the static definitions of all roster members, sorted by
// persona ID. This is the ListPersonas introspection surface.
func (r *Roster) List() []council.PersonaInfo {
	infos := make([]council.PersonaInfo, 0, len(r.personas))
	for _, p := range r.personas {
		infos = append(infos, p.Info())
	}
	return infos
}

// Get returns the definition of one persona by ID. This is the GetPersona
// introspection surface.
func (r *Roster) Get(id string) (council.PersonaInfo, error) {
	p, ok := r.byID[id]
	if !ok {
		return council.PersonaInfo{}, fmt.Errorf("persona not found: %s", id)
	}
	return p.Info(), nil
}

// Size returns the number of personas in the roster.
func (r *Roster) Size() int {
	return len(r.personas)
}

// Weights returns a persona ID -> weight map for consensus math.
func (r *Roster) Weights() map[string]float64 {
	weights := make(map[string]float64, len(r.personas))
	for _, p := range r.personas {
		info := p.Info()
		weights[info.ID] = info.Weight
	}
	return weights
}
