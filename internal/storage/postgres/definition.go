package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/npcintent/internal/game/npc"
	"github.com/cory-johannsen/npcintent/internal/game/tag"
)

// ErrDefinitionNotFound is returned when a definition lookup yields no results.
var ErrDefinitionNotFound = errors.New("npc definition not found")

const definitionColumns = `id, display_name, short_description, narrative_role, world_roles,
	default_player_disposition, capabilities, allowed_intents, constraints,
	persona_summary, speech_style, ai_relevance, debug_log_interactions, designer_notes`

// DefinitionRepository provides NPC definition persistence operations.
type DefinitionRepository struct {
	db *pgxpool.Pool
}

// NewDefinitionRepository creates a DefinitionRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewDefinitionRepository(db *pgxpool.Pool) *DefinitionRepository {
	return &DefinitionRepository{db: db}
}

// Upsert inserts def or replaces the stored definition with the same ID.
//
// Precondition: def must be non-nil with a non-empty ID.
// Postcondition: The stored row mirrors def.
func (r *DefinitionRepository) Upsert(ctx context.Context, def *npc.Definition) error {
	if def == nil || def.ID == "" {
		return errors.New("upserting npc definition: id must not be empty")
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO npc_definitions (`+definitionColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		ON CONFLICT (id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			short_description = EXCLUDED.short_description,
			narrative_role = EXCLUDED.narrative_role,
			world_roles = EXCLUDED.world_roles,
			default_player_disposition = EXCLUDED.default_player_disposition,
			capabilities = EXCLUDED.capabilities,
			allowed_intents = EXCLUDED.allowed_intents,
			constraints = EXCLUDED.constraints,
			persona_summary = EXCLUDED.persona_summary,
			speech_style = EXCLUDED.speech_style,
			ai_relevance = EXCLUDED.ai_relevance,
			debug_log_interactions = EXCLUDED.debug_log_interactions,
			designer_notes = EXCLUDED.designer_notes,
			updated_at = NOW()`,
		def.ID, def.DisplayName, def.ShortDescription, def.NarrativeRole.String(),
		def.WorldRoles.Strings(), def.DefaultPlayerDisposition.String(),
		def.CapabilityTags.Strings(), def.AllowedInteractionIntents.Strings(),
		def.ConstraintTags.Strings(), def.PersonaSummary, def.SpeechStyle,
		def.AIRelevance.String(), def.DebugLogInteractions, def.DesignerNotes,
	)
	if err != nil {
		return fmt.Errorf("upserting npc definition %q: %w", def.ID, err)
	}
	return nil
}

// Get returns the definition with the given ID.
//
// Postcondition: Returns ErrDefinitionNotFound if no row matches.
func (r *DefinitionRepository) Get(ctx context.Context, id string) (*npc.Definition, error) {
	row := r.db.QueryRow(ctx, `SELECT `+definitionColumns+` FROM npc_definitions WHERE id = $1`, id)
	def, err := scanDefinition(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDefinitionNotFound
		}
		return nil, fmt.Errorf("getting npc definition %q: %w", id, err)
	}
	return def, nil
}

// List returns every stored definition ordered by ID.
//
// Postcondition: Returns a slice (may be empty) or a non-nil error.
func (r *DefinitionRepository) List(ctx context.Context) ([]*npc.Definition, error) {
	rows, err := r.db.Query(ctx, `SELECT `+definitionColumns+` FROM npc_definitions ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing npc definitions: %w", err)
	}
	return collectDefinitions(rows)
}

// ListWithCapability returns the definitions listing capability, ordered by ID.
//
// Postcondition: Returns a slice (may be empty) or a non-nil error.
func (r *DefinitionRepository) ListWithCapability(ctx context.Context, capability tag.Tag) ([]*npc.Definition, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+definitionColumns+` FROM npc_definitions
		WHERE capabilities @> ARRAY[$1::text] ORDER BY id ASC`,
		capability.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("listing npc definitions with %q: %w", capability, err)
	}
	return collectDefinitions(rows)
}

func collectDefinitions(rows pgx.Rows) ([]*npc.Definition, error) {
	defer rows.Close()
	out := []*npc.Definition{}
	for rows.Next() {
		def, err := scanDefinition(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning npc definition: %w", err)
		}
		out = append(out, def)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating npc definitions: %w", err)
	}
	return out, nil
}

func scanDefinition(row pgx.Row) (*npc.Definition, error) {
	var (
		def                                       npc.Definition
		narrativeRole, disposition, aiRelevance   string
		worldRoles, capabilities, intents, constr []string
	)
	err := row.Scan(
		&def.ID, &def.DisplayName, &def.ShortDescription, &narrativeRole, &worldRoles,
		&disposition, &capabilities, &intents, &constr,
		&def.PersonaSummary, &def.SpeechStyle, &aiRelevance, &def.DebugLogInteractions, &def.DesignerNotes,
	)
	if err != nil {
		return nil, err
	}

	def.NarrativeRole = tag.Tag(narrativeRole)
	def.DefaultPlayerDisposition = tag.Tag(disposition)
	if def.AIRelevance, err = npc.ParseAIRelevance(aiRelevance); err != nil {
		return nil, fmt.Errorf("definition %q: %w", def.ID, err)
	}
	sets := []struct {
		field  string
		values []string
		dst    *tag.Set
	}{
		{"world_roles", worldRoles, &def.WorldRoles},
		{"capabilities", capabilities, &def.CapabilityTags},
		{"allowed_intents", intents, &def.AllowedInteractionIntents},
		{"constraints", constr, &def.ConstraintTags},
	}
	for _, s := range sets {
		parsed, err := tag.ParseSet(s.values)
		if err != nil {
			return nil, fmt.Errorf("definition %q %s: %w", def.ID, s.field, err)
		}
		*s.dst = parsed
	}
	return &def, nil
}
