package interaction

// Requester identifies whoever asked for an interaction. A nil Requester is
// treated as absent.
type Requester interface {
	RequesterID() string
}

// PlayerRef is a Requester identified only by ID.
type PlayerRef string

// RequesterID returns the player ID.
func (p PlayerRef) RequesterID() string {
	return string(p)
}

// Hooks receives exactly one notification per successfully dispatched intent.
// Implementations are supplied per NPC type and called synchronously on the
// NPC's authoritative goroutine.
type Hooks interface {
	OnInteract(r Requester)
	OnTalk(r Requester)
	OnObserve(r Requester)
	OnRequestHelp(r Requester)
	OnReceiveItem(r Requester)
}

// NopHooks ignores every notification. Embed it to implement a subset.
type NopHooks struct{}

func (NopHooks) OnInteract(Requester)    {}
func (NopHooks) OnTalk(Requester)        {}
func (NopHooks) OnObserve(Requester)     {}
func (NopHooks) OnRequestHelp(Requester) {}
func (NopHooks) OnReceiveItem(Requester) {}

// HookFuncs adapts plain functions to Hooks. Nil fields are no-ops.
type HookFuncs struct {
	Interact    func(Requester)
	Talk        func(Requester)
	Observe     func(Requester)
	RequestHelp func(Requester)
	ReceiveItem func(Requester)
}

func call(fn func(Requester), r Requester) {
	if fn != nil {
		fn(r)
	}
}

func (h HookFuncs) OnInteract(r Requester)    { call(h.Interact, r) }
func (h HookFuncs) OnTalk(r Requester)        { call(h.Talk, r) }
func (h HookFuncs) OnObserve(r Requester)     { call(h.Observe, r) }
func (h HookFuncs) OnRequestHelp(r Requester) { call(h.RequestHelp, r) }
func (h HookFuncs) OnReceiveItem(r Requester) { call(h.ReceiveItem, r) }

// Multi fans each notification out to every hook in order.
type Multi []Hooks

func (m Multi) OnInteract(r Requester) {
	for _, h := range m {
		h.OnInteract(r)
	}
}

func (m Multi) OnTalk(r Requester) {
	for _, h := range m {
		h.OnTalk(r)
	}
}

func (m Multi) OnObserve(r Requester) {
	for _, h := range m {
		h.OnObserve(r)
	}
}

func (m Multi) OnRequestHelp(r Requester) {
	for _, h := range m {
		h.OnRequestHelp(r)
	}
}

func (m Multi) OnReceiveItem(r Requester) {
	for _, h := range m {
		h.OnReceiveItem(r)
	}
}
