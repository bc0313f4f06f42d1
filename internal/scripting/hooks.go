package scripting

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/cory-johannsen/npcintent/internal/game/interaction"
)

// Lua global function names invoked for each dispatched intent.
const (
	HookInteract    = "on_interact"
	HookTalk        = "on_talk"
	HookObserve     = "on_observe"
	HookRequestHelp = "on_request_help"
	HookReceiveItem = "on_receive_item"
)

// luaHooks forwards interaction notifications to a definition's Lua VM.
type luaHooks struct {
	mgr          *Manager
	definitionID string
	instanceID   string
}

// HooksFor returns interaction hooks that call the Lua functions of
// definitionID with (instance_id, requester_id).
//
// Precondition: m must be non-nil.
// Postcondition: Missing Lua functions make the matching hook a no-op.
func (m *Manager) HooksFor(definitionID, instanceID string) interaction.Hooks {
	return &luaHooks{mgr: m, definitionID: definitionID, instanceID: instanceID}
}

func (h *luaHooks) fire(hook string, r interaction.Requester) {
	_, _ = h.mgr.CallHook(h.definitionID, hook, lua.LString(h.instanceID), lua.LString(r.RequesterID()))
}

func (h *luaHooks) OnInteract(r interaction.Requester)    { h.fire(HookInteract, r) }
func (h *luaHooks) OnTalk(r interaction.Requester)        { h.fire(HookTalk, r) }
func (h *luaHooks) OnObserve(r interaction.Requester)     { h.fire(HookObserve, r) }
func (h *luaHooks) OnRequestHelp(r interaction.Requester) { h.fire(HookRequestHelp, r) }
func (h *luaHooks) OnReceiveItem(r interaction.Requester) { h.fire(HookReceiveItem, r) }
