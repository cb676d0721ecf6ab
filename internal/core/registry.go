package core

import (
	"cmp"
	"fmt"
	"slices"
	"sync"
)

var (
	modules   = make(map[ModuleID]ModuleInfo)
	modulesMu sync.RWMutex
)

// RegisterModule adds a module to the compiled-in set. It panics on an
// empty or undotted ID, a nil constructor, or a duplicate ID. Call it from
// init.
func RegisterModule(instance Module) {
	info := instance.ModuleInfo()
	if info.ID.Namespace() == "" || info.ID.Name() == "" {
		panic(fmt.Sprintf("module ID %q must have the form namespace.name", info.ID))
	}
	if info.New == nil {
		panic(fmt.Sprintf("module %s: New function must not be nil", info.ID))
	}

	modulesMu.Lock()
	defer modulesMu.Unlock()

	if _, exists := modules[info.ID]; exists {
		panic(fmt.Sprintf("module already registered: %s", info.ID))
	}
	modules[info.ID] = info
}

// GetModule returns the ModuleInfo for id.
func GetModule(id string) (ModuleInfo, bool) {
	modulesMu.RLock()
	defer modulesMu.RUnlock()
	info, ok := modules[ModuleID(id)]
	return info, ok
}

// GetModules returns every registered module sorted by ID.
func GetModules() []ModuleInfo {
	return collect(func(ModuleID) bool { return true })
}

// ModulesIn returns the registered modules of one namespace, such as every
// "store.*" backend, sorted by ID.
func ModulesIn(namespace string) []ModuleInfo {
	return collect(func(id ModuleID) bool { return id.Namespace() == namespace })
}

func collect(keep func(ModuleID) bool) []ModuleInfo {
	modulesMu.RLock()
	defer modulesMu.RUnlock()

	var result []ModuleInfo
	for id, info := range modules {
		if keep(id) {
			result = append(result, info)
		}
	}
	slices.SortFunc(result, func(a, b ModuleInfo) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return result
}

// resetRegistry clears the registry. Only for testing.
func resetRegistry() {
	modulesMu.Lock()
	defer modulesMu.Unlock()
	modules = make(map[ModuleID]ModuleInfo)
}
