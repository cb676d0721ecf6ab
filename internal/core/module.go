package core

// ModuleID is a dotted module identifier such as "channel.telegram".
type ModuleID string

// Namespace returns the part of the ID before the first dot.
func (id ModuleID) Namespace() string {
	for i := 0; i < len(id); i++ {
		if id[i] == '.' {
			return string(id[:i])
		}
	}
	return ""
}

// ModuleInfo describes a registered module.
type ModuleInfo struct {
	// ID uniquely identifies the module.
	ID ModuleID

	// New returns a fresh, unconfigured instance.
	New func() Module
}

// Module is the minimal interface every module implements. Optional
// lifecycle hooks are discovered through Configurable, Provisioner,
// Validator, Starter and Stopper.
type Module interface {
	ModuleInfo() ModuleInfo
}

// Name returns the part of the ID after the first dot.
func (id ModuleID) Name() string {
	ns := id.Namespace()
	if ns == "" {
		return string(id)
	}
	return string(id[len(ns)+1:])
}
