package scripting

import (
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// registerModules installs the npc.* table into L. key names the VM in logs.
func (m *Manager) registerModules(L *lua.LState, key string) {
	mod := L.NewTable()
	L.SetField(mod, "log", L.NewFunction(func(L *lua.LState) int {
		m.logger.Info("lua: "+L.CheckString(1), zap.String("vm", key))
		return 0
	}))
	L.SetField(mod, "warn", L.NewFunction(func(L *lua.LState) int {
		m.logger.Warn("lua: "+L.CheckString(1), zap.String("vm", key))
		return 0
	}))
	L.SetGlobal("npc", mod)
}
