// Package interaction implements the authoritative NPC interaction router:
// it validates requested intents against an NPC definition's allow-list and
// dispatches recognized intents to exactly one extension hook.
package interaction

import "github.com/cory-johannsen/npcintent/internal/game/tag"

// The closed vocabulary of intents with built-in handlers.
const (
	IntentInteract    tag.Tag = "NPC.Intent.Interact"
	IntentTalk        tag.Tag = "NPC.Intent.Talk"
	IntentObserve     tag.Tag = "NPC.Intent.Observe"
	IntentRequestHelp tag.Tag = "NPC.Intent.RequestHelp"
	IntentReceiveItem tag.Tag = "NPC.Intent.ReceiveItem"
)

// RecognizedIntents returns the five intents that have handlers, in a stable order.
func RecognizedIntents() []tag.Tag {
	return []tag.Tag{IntentInteract, IntentTalk, IntentObserve, IntentRequestHelp, IntentReceiveItem}
}

// IsRecognized reports whether intent is one of the five handled intents.
func IsRecognized(intent tag.Tag) bool {
	for _, t := range RecognizedIntents() {
		if t == intent {
			return true
		}
	}
	return false
}

// Outcome classifies how a single request was resolved.
type Outcome int

const (
	// OutcomeDropped means the request was silently ignored: absent requester,
	// malformed intent, or no definition attached.
	OutcomeDropped Outcome = iota
	// OutcomeRejected means the intent is not in the allow-list.
	OutcomeRejected
	// OutcomeUnhandled means the intent is allowed but has no handler.
	OutcomeUnhandled
	// OutcomeDispatched means exactly one hook fired.
	OutcomeDispatched
)

// String returns the metric label for o.
func (o Outcome) String() string {
	switch o {
	case OutcomeDropped:
		return "dropped"
	case OutcomeRejected:
		return "rejected"
	case OutcomeUnhandled:
		return "unhandled"
	case OutcomeDispatched:
		return "dispatched"
	default:
		return "unknown"
	}
}

// Recorder observes request outcomes, typically for metrics.
type Recorder interface {
	RecordInteraction(intent tag.Tag, outcome Outcome)
}
