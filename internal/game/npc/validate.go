package npc

import (
	"go.uber.org/zap"
)

// Severity distinguishes findings that affect validity from advisory ones.
type Severity int

const (
	// SeverityRequired findings make a definition invalid.
	SeverityRequired Severity = iota
	// SeverityAdvisory findings are reported but never affect validity.
	SeverityAdvisory
)

// Finding is a single validation observation about a definition.
type Finding struct {
	Severity Severity
	Field    string
	Message  string
}

// Report aggregates the required and advisory findings of one check pass.
type Report struct {
	Required []Finding
	Advisory []Finding
}

// Valid reports whether no required rule failed. Advisory findings are ignored.
func (r Report) Valid() bool {
	return len(r.Required) == 0
}

// Findings returns required findings followed by advisory ones.
func (r Report) Findings() []Finding {
	out := make([]Finding, 0, len(r.Required)+len(r.Advisory))
	out = append(out, r.Required...)
	return append(out, r.Advisory...)
}

type rule struct {
	field  string
	failed func(d *Definition) bool
	msg    string
}

func blank(s string) bool {
	return s == ""
}

// requiredRules decide the boolean validity of a definition.
var requiredRules = []rule{
	{field: "id", msg: "id is not set", failed: func(d *Definition) bool { return blank(d.ID) }},
	{field: "display_name", msg: "display_name is empty", failed: func(d *Definition) bool { return blank(d.DisplayName) }},
	{field: "short_description", msg: "short_description is empty", failed: func(d *Definition) bool { return blank(d.ShortDescription) }},
}

// advisoryRules only produce diagnostics.
var advisoryRules = []rule{
	{
		field:  "narrative_role",
		msg:    "no narrative_role or world_roles defined",
		failed: func(d *Definition) bool { return !d.NarrativeRole.IsValid() && d.WorldRoles.IsEmpty() },
	},
	{field: "capabilities", msg: "capabilities is empty", failed: func(d *Definition) bool { return d.CapabilityTags.IsEmpty() }},
	{field: "allowed_intents", msg: "allowed_intents is empty", failed: func(d *Definition) bool { return d.AllowedInteractionIntents.IsEmpty() }},
	{
		field:  "persona_summary",
		msg:    "ai_relevance is set but persona_summary is empty",
		failed: func(d *Definition) bool { return d.IsAIRelevant() && blank(d.PersonaSummary) },
	},
	{
		field:  "speech_style",
		msg:    "ai_relevance is set but speech_style is empty",
		failed: func(d *Definition) bool { return d.IsAIRelevant() && blank(d.SpeechStyle) },
	},
}

func evaluate(d *Definition, rules []rule, sev Severity) []Finding {
	var out []Finding
	for _, r := range rules {
		if r.failed(d) {
			out = append(out, Finding{Severity: sev, Field: r.field, Message: r.msg})
		}
	}
	return out
}

// Check evaluates the required and advisory rule sets independently.
//
// Precondition: d must not be nil.
// Postcondition: Has no side effects. Report.Valid() is false iff id,
// display_name, or short_description is blank.
func (d *Definition) Check() Report {
	return Report{
		Required: evaluate(d, requiredRules, SeverityRequired),
		Advisory: evaluate(d, advisoryRules, SeverityAdvisory),
	}
}

// Validate runs Check, logs every finding as a warning, and returns whether
// the definition is valid. Invalid definitions remain fully usable.
//
// Precondition: d and logger must not be nil.
// Postcondition: Returns Check().Valid().
func (d *Definition) Validate(logger *zap.Logger) bool {
	report := d.Check()
	for _, f := range report.Findings() {
		logger.Warn("npc definition: "+f.Message,
			zap.String("definition", d.ID),
			zap.String("field", f.Field),
			zap.Bool("required", f.Severity == SeverityRequired),
			zap.String("ai_relevance", d.AIRelevance.String()),
		)
	}
	if d.DebugLogInteractions {
		logger.Info("npc definition validation complete",
			zap.String("definition", d.ID),
			zap.Bool("valid", report.Valid()),
			zap.Int("advisory_findings", len(report.Advisory)),
		)
	}
	return report.Valid()
}
