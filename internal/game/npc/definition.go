// Package npc provides the authored, read-only NPC definitions consumed by the
// interaction router, together with their loaders and self-validation.
package npc

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/npcintent/internal/game/tag"
)

// AIRelevance classifies how important AI is for an NPC. It describes
// expectations only and never selects behavior.
type AIRelevance int

const (
	// AIRelevanceNone marks an NPC with no AI involvement.
	AIRelevanceNone AIRelevance = iota
	// AIRelevanceAssisted marks an NPC whose authored behavior is AI assisted.
	AIRelevanceAssisted
	// AIRelevanceConversational marks an NPC expected to hold conversations.
	AIRelevanceConversational
	// AIRelevanceCoreAI marks an NPC that is central to the AI experience.
	AIRelevanceCoreAI
)

var aiRelevanceNames = map[AIRelevance]string{
	AIRelevanceNone:           "none",
	AIRelevanceAssisted:       "assisted",
	AIRelevanceConversational: "conversational",
	AIRelevanceCoreAI:         "core_ai",
}

// String returns the authored name of r.
func (r AIRelevance) String() string {
	if name, ok := aiRelevanceNames[r]; ok {
		return name
	}
	return fmt.Sprintf("ai_relevance(%d)", int(r))
}

// ParseAIRelevance converts an authored name into an AIRelevance.
// The empty string parses as AIRelevanceNone.
//
// Postcondition: Returns an error for unknown names.
func ParseAIRelevance(s string) (AIRelevance, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	if norm == "" {
		return AIRelevanceNone, nil
	}
	for r, name := range aiRelevanceNames {
		if name == norm {
			return r, nil
		}
	}
	return AIRelevanceNone, fmt.Errorf("unknown ai_relevance %q", s)
}

// UnmarshalYAML decodes the authored name form.
func (r *AIRelevance) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("decoding ai_relevance: %w", err)
	}
	parsed, err := ParseAIRelevance(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*r = parsed
	return nil
}

// MarshalYAML encodes r by name.
func (r AIRelevance) MarshalYAML() (interface{}, error) {
	return r.String(), nil
}

// Definition is the authored description of one NPC: identity, roles,
// capabilities, accepted interaction intents, and constraints.
//
// A Definition is loaded before the NPC begins play and is never mutated
// afterwards; every router and query reads it concurrently without locking.
type Definition struct {
	// ID is the stable internal identifier, unique within a catalog.
	ID string `yaml:"id"`
	// DisplayName is shown to players.
	DisplayName string `yaml:"display_name"`
	// ShortDescription is the editorial one-liner.
	ShortDescription string `yaml:"short_description"`

	// NarrativeRole is the single primary narrative tag; may be tag.None.
	NarrativeRole tag.Tag `yaml:"narrative_role"`
	// WorldRoles are system-facing roles.
	WorldRoles tag.Set `yaml:"world_roles"`
	// DefaultPlayerDisposition is the starting attitude toward players; may be tag.None.
	DefaultPlayerDisposition tag.Tag `yaml:"default_player_disposition"`

	// CapabilityTags describe what the NPC can do; queried by external systems.
	CapabilityTags tag.Set `yaml:"capabilities"`
	// AllowedInteractionIntents is the allow-list consulted by the router.
	AllowedInteractionIntents tag.Set `yaml:"allowed_intents"`
	// ConstraintTags are hard constraints interpreted by external systems only.
	ConstraintTags tag.Set `yaml:"constraints"`

	PersonaSummary string      `yaml:"persona_summary"`
	SpeechStyle    string      `yaml:"speech_style"`
	AIRelevance    AIRelevance `yaml:"ai_relevance"`

	// DebugLogInteractions enables verbose diagnostic output for this NPC.
	DebugLogInteractions bool `yaml:"debug_log_interactions"`

	// DesignerNotes is free-form authoring text with no runtime meaning.
	DesignerNotes string `yaml:"designer_notes"`
}

// IsAIRelevant reports whether the definition declares any AI involvement.
func (d *Definition) IsAIRelevant() bool {
	return d.AIRelevance != AIRelevanceNone
}
