package scripting

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// globalKey is the reserved VM key for shared scripts loaded via LoadGlobal.
// CallHook falls back to this VM when no definition VM is found.
const globalKey = "__global__"

// vm is a single LState plus the lock that serializes access to it.
type vm struct {
	mu sync.Mutex
	L  *lua.LState
}

// Manager owns one sandboxed VM per NPC definition plus an optional global VM.
//
// Manager is safe for concurrent use. Each VM is single-threaded, so calls
// into the same VM are serialized while different VMs run concurrently.
type Manager struct {
	mu     sync.RWMutex
	vms    map[string]*vm
	limit  int
	logger *zap.Logger
}

// NewManager creates a Manager.
//
// Precondition: logger must be non-nil. instLimit <= 0 selects DefaultInstructionLimit.
// Postcondition: Returns a Manager with no VMs loaded.
func NewManager(logger *zap.Logger, instLimit int) *Manager {
	if instLimit <= 0 {
		instLimit = DefaultInstructionLimit
	}
	return &Manager{
		vms:    make(map[string]*vm),
		limit:  instLimit,
		logger: logger,
	}
}

// LoadDefinition creates the VM for definitionID from every *.lua file in scriptDir.
//
// Precondition: definitionID must be non-empty; scriptDir must be a readable directory.
// Postcondition: Replaces any previous VM for definitionID; returns error on Lua load failure.
func (m *Manager) LoadDefinition(definitionID, scriptDir string) error {
	if definitionID == "" {
		return fmt.Errorf("scripting: definition id must not be empty")
	}
	return m.loadInto(definitionID, scriptDir)
}

// LoadGlobal creates the shared fallback VM from every *.lua file in scriptDir.
//
// Precondition: scriptDir must be a readable directory.
func (m *Manager) LoadGlobal(scriptDir string) error {
	return m.loadInto(globalKey, scriptDir)
}

// LoadTree loads root/global as the global VM and every root/npcs/<id>
// directory as the VM for definition <id>. Missing directories are skipped.
//
// Postcondition: Returns the number of definition VMs loaded.
func (m *Manager) LoadTree(root string) (int, error) {
	globalDir := filepath.Join(root, "global")
	if info, err := os.Stat(globalDir); err == nil && info.IsDir() {
		if err := m.LoadGlobal(globalDir); err != nil {
			return 0, err
		}
	}

	npcsDir := filepath.Join(root, "npcs")
	entries, err := os.ReadDir(npcsDir)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("scripting: reading %q: %w", npcsDir, err)
	}

	loaded := 0
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if err := m.LoadDefinition(e.Name(), filepath.Join(npcsDir, e.Name())); err != nil {
			return loaded, err
		}
		loaded++
	}
	return loaded, nil
}

func (m *Manager) loadInto(key, scriptDir string) error {
	entries, err := os.ReadDir(scriptDir)
	if err != nil {
		return fmt.Errorf("scripting: reading script dir %q for %q: %w", scriptDir, key, err)
	}

	var luaFiles []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".lua" {
			luaFiles = append(luaFiles, filepath.Join(scriptDir, e.Name()))
		}
	}
	sort.Strings(luaFiles)

	L := NewSandboxedState()
	m.registerModules(L, key)
	for _, path := range luaFiles {
		if err := RunLimited(L, m.limit, func() error { return L.DoFile(path) }); err != nil {
			L.Close()
			return fmt.Errorf("scripting: loading %q for %q: %w", path, key, err)
		}
	}

	m.mu.Lock()
	old := m.vms[key]
	m.vms[key] = &vm{L: L}
	m.mu.Unlock()

	if old != nil {
		old.mu.Lock()
		old.L.Close()
		old.mu.Unlock()
	}
	return nil
}

// Has reports whether a VM exists for definitionID (the global VM is not consulted).
func (m *Manager) Has(definitionID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.vms[definitionID]
	return ok
}

// CallHook calls the named Lua global function in definitionID's VM, falling
// back to the global VM. Returns (LNil, nil) if no VM or no such function
// exists. Lua runtime errors, including an exhausted instruction budget, are
// logged at Warn level and never propagated.
//
// Postcondition: Returns the first return value of the hook, or LNil.
func (m *Manager) CallHook(definitionID, hook string, args ...lua.LValue) (lua.LValue, error) {
	m.mu.RLock()
	v, ok := m.vms[definitionID]
	if !ok {
		v = m.vms[globalKey]
	}
	m.mu.RUnlock()

	if v == nil {
		m.logger.Debug("scripting: no VM for definition",
			zap.String("definition", definitionID),
			zap.String("hook", hook),
		)
		return lua.LNil, nil
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	fn := v.L.GetGlobal(hook)
	if fn.Type() != lua.LTFunction {
		return lua.LNil, nil
	}

	err := RunLimited(v.L, m.limit, func() error {
		return v.L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, args...)
	})
	if err != nil {
		m.logger.Warn("scripting: Lua runtime error",
			zap.String("definition", definitionID),
			zap.String("hook", hook),
			zap.Error(err),
		)
		return lua.LNil, nil
	}

	ret := v.L.Get(-1)
	v.L.Pop(1)
	return ret, nil
}

// Close releases every VM.
//
// Postcondition: The Manager holds no VMs; later CallHook calls are no-ops.
func (m *Manager) Close() {
	m.mu.Lock()
	vms := m.vms
	m.vms = make(map[string]*vm)
	m.mu.Unlock()

	for _, v := range vms {
		v.mu.Lock()
		v.L.Close()
		v.mu.Unlock()
	}
}
