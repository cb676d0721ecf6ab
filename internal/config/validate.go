package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/flemzord/tgrelay/internal/core"
)

// Required lists the modules every configuration must enable.
var Required = []string{"channel.telegram", "relay.manager"}

// Validate checks the structural validity of a Config.
// It verifies the version field, ensures the required modules are present,
// checks that all referenced module IDs exist in the registry and that at
// most one message store is enabled.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Version == "" {
		errs = append(errs, errors.New("config: version field is required"))
	} else if cfg.Version != "1" {
		errs = append(errs, fmt.Errorf("config: unsupported version %q (supported: \"1\")", cfg.Version))
	}

	if len(cfg.Modules) == 0 {
		errs = append(errs, errors.New("config: at least one module must be configured"))
	}

	var stores []string
	for _, id := range Resolve(cfg) {
		if _, ok := core.GetModule(id); !ok {
			errs = append(errs, unknownModule(id))
		}
		if core.ModuleID(id).Namespace() == "store" {
			stores = append(stores, id)
		}
	}
	if len(stores) > 1 {
		errs = append(errs, fmt.Errorf("config: only one store module may be enabled, got %s", strings.Join(stores, ", ")))
	}

	if len(cfg.Modules) > 0 {
		for _, id := range Required {
			if _, ok := cfg.Modules[id]; !ok {
				errs = append(errs, fmt.Errorf("config: module %q is required", id))
			}
		}
	}

	return errors.Join(errs...)
}

// unknownModule names the compiled-in alternatives from the same namespace,
// so "store.redis" points at store.sqlite and store.postgres.
func unknownModule(id string) error {
	siblings := core.ModulesIn(core.ModuleID(id).Namespace())
	if len(siblings) == 0 {
		return fmt.Errorf("config: unknown module %q", id)
	}
	names := make([]string, len(siblings))
	for i, info := range siblings {
		names[i] = string(info.ID)
	}
	return fmt.Errorf("config: unknown module %q (available: %s)", id, strings.Join(names, ", "))
}
