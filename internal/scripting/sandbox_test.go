package scripting_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/npcintent/internal/scripting"
)

func TestNewSandboxedState_UnsafeLibsNil(t *testing.T) {
	L := scripting.NewSandboxedState()
	defer L.Close()
	for _, name := range []string{"os", "io", "debug", "package"} {
		assert.Equal(t, lua.LNil, L.GetGlobal(name), "expected %s to be nil", name)
	}
}

func TestNewSandboxedState_DangerousGlobalsNil(t *testing.T) {
	L := scripting.NewSandboxedState()
	defer L.Close()
	for _, name := range []string{"dofile", "loadfile", "load", "collectgarbage", "require"} {
		assert.Equal(t, lua.LNil, L.GetGlobal(name), "expected %s to be nil", name)
	}
}

func TestNewSandboxedState_SafeLibsAvailable(t *testing.T) {
	L := scripting.NewSandboxedState()
	defer L.Close()
	err := L.DoString(`
		local x = math.sqrt(4)
		assert(x == 2.0, "math.sqrt failed")
		local s = string.upper("hello")
		assert(s == "HELLO", "string.upper failed")
	`)
	assert.NoError(t, err)
}

func TestRunLimited_InfiniteLoopErrors(t *testing.T) {
	L := scripting.NewSandboxedState()
	defer L.Close()
	err := scripting.RunLimited(L, 100, func() error { return L.DoString(`while true do end`) })
	assert.Error(t, err)
}

func TestRunLimited_StateUsableAfterBudgetExhausted(t *testing.T) {
	L := scripting.NewSandboxedState()
	defer L.Close()
	require.Error(t, scripting.RunLimited(L, 50, func() error { return L.DoString(`while true do end`) }))
	assert.NoError(t, scripting.RunLimited(L, 0, func() error { return L.DoString(`local x = 1 + 1`) }))
}

func TestProperty_RunLimited_InfiniteLoopAlwaysErrors(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		limit := rapid.IntRange(1, 5000).Draw(rt, "limit")
		L := scripting.NewSandboxedState()
		defer L.Close()
		err := scripting.RunLimited(L, limit, func() error { return L.DoString(`while true do end`) })
		assert.Error(rt, err)
	})
}
