package interaction

import (
	"go.uber.org/zap"

	"github.com/cory-johannsen/npcintent/internal/game/npc"
	"github.com/cory-johannsen/npcintent/internal/game/tag"
)

// handler is one entry of the dispatch table.
type handler struct {
	label string
	hook  func(Requester)
}

// Router validates interaction requests for one NPC and dispatches allowed,
// recognized intents to the NPC's hooks.
//
// A Router holds no mutable state after construction. It must only be driven
// by the process that owns simulation authority over the NPC; enforcing that
// is the job of the transport in front of it.
type Router struct {
	name     string
	def      *npc.Definition
	logger   *zap.Logger
	recorder Recorder
	table    map[tag.Tag]handler
}

// Option configures a Router during construction.
type Option func(*Router)

// WithRecorder reports every request outcome to rec.
func WithRecorder(rec Recorder) Option {
	return func(r *Router) {
		r.recorder = rec
	}
}

// NewRouter creates a Router for the NPC called name.
//
// Precondition: logger must be non-nil. def may be nil, in which case every
// request is dropped. hooks may be nil, in which case NopHooks is used.
// Postcondition: The dispatch table maps each recognized intent to exactly one hook.
func NewRouter(name string, def *npc.Definition, hooks Hooks, logger *zap.Logger, opts ...Option) *Router {
	if hooks == nil {
		hooks = NopHooks{}
	}
	r := &Router{
		name:   name,
		def:    def,
		logger: logger.With(zap.String("npc", name)),
	}
	r.table = map[tag.Tag]handler{
		IntentInteract:    {label: "INTERACT", hook: hooks.OnInteract},
		IntentTalk:        {label: "TALK", hook: hooks.OnTalk},
		IntentObserve:     {label: "OBSERVE", hook: hooks.OnObserve},
		IntentRequestHelp: {label: "REQUEST HELP", hook: hooks.OnRequestHelp},
		IntentReceiveItem: {label: "RECEIVE ITEM", hook: hooks.OnReceiveItem},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Name returns the NPC name used in diagnostics.
func (r *Router) Name() string {
	return r.name
}

// Definition returns the attached definition, or nil.
func (r *Router) Definition() *npc.Definition {
	return r.def
}

// Start is called once when the NPC begins play on the authoritative host.
// It logs an error when no definition is attached and otherwise runs the
// definition's advisory validation.
//
// Postcondition: Returns whether a definition is attached.
func (r *Router) Start() bool {
	if r.def == nil {
		r.logger.Error("npc has no definition assigned")
		return false
	}
	r.def.Validate(r.logger)
	return true
}

// Interact requests the default Interact intent on behalf of requester.
func (r *Router) Interact(requester Requester) {
	r.RequestInteraction(requester, IntentInteract)
}

// RequestInteraction validates intent against the definition's allow-list and
// dispatches it.
//
// Malformed input and a missing definition are dropped without diagnostics.
// A disallowed intent and an allowed intent without a handler are each logged
// as a warning. Nothing is ever reported back to the requester.
//
// Postcondition: At most one hook fires, exactly once, with requester.
func (r *Router) RequestInteraction(requester Requester, intent tag.Tag) {
	outcome, hook := r.route(requester, intent)
	// Recorded before the hook runs so a panicking hook is still counted.
	r.record(intent, outcome)
	if hook != nil {
		hook(requester)
	}
}

// route resolves intent and returns the hook to fire, or nil.
func (r *Router) route(requester Requester, intent tag.Tag) (Outcome, func(Requester)) {
	if absent(requester) || !intent.IsValid() || r.def == nil {
		return OutcomeDropped, nil
	}

	if r.def.DebugLogInteractions {
		r.logger.Info("interaction requested",
			zap.String("requester", requester.RequesterID()),
			zap.String("intent", intent.String()),
		)
	}

	if !r.def.AllowedInteractionIntents.Has(intent) {
		r.logger.Warn("npc rejected interaction intent",
			zap.String("requester", requester.RequesterID()),
			zap.String("intent", intent.String()),
		)
		return OutcomeRejected, nil
	}

	h, ok := r.table[intent]
	if !ok {
		r.logger.Warn("npc received unhandled intent",
			zap.String("requester", requester.RequesterID()),
			zap.String("intent", intent.String()),
		)
		return OutcomeUnhandled, nil
	}

	r.logger.Info("npc handled "+h.label,
		zap.String("requester", requester.RequesterID()),
		zap.String("intent", intent.String()),
	)
	return OutcomeDispatched, h.hook
}

func (r *Router) record(intent tag.Tag, outcome Outcome) {
	if r.recorder != nil {
		r.recorder.RecordInteraction(intent, outcome)
	}
}

// HasCapability reports whether the definition lists capability exactly.
//
// Postcondition: Returns false when no definition is attached or capability is invalid.
func (r *Router) HasCapability(capability tag.Tag) bool {
	if r.def == nil || !capability.IsValid() {
		return false
	}
	return r.def.CapabilityTags.Has(capability)
}

// HasAllCapabilities reports whether every member of capabilities is listed.
//
// Postcondition: Returns false when no definition is attached or capabilities is empty.
func (r *Router) HasAllCapabilities(capabilities tag.Set) bool {
	if r.def == nil || capabilities.IsEmpty() {
		return false
	}
	return r.def.CapabilityTags.HasAll(capabilities)
}

// HasAnyCapability reports whether at least one member of capabilities is listed.
//
// Postcondition: Returns false when no definition is attached or capabilities is empty.
func (r *Router) HasAnyCapability(capabilities tag.Set) bool {
	if r.def == nil || capabilities.IsEmpty() {
		return false
	}
	return r.def.CapabilityTags.HasAny(capabilities)
}

// absent reports whether requester is missing. A Requester with an empty ID
// counts as missing.
func absent(requester Requester) bool {
	return requester == nil || requester.RequesterID() == ""
}
