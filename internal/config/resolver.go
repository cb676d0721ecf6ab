package config

import (
	"cmp"
	"slices"

	"github.com/flemzord/tgrelay/internal/core"
)

// startRank orders namespaces for loading and starting. Tracing comes up
// first and goes down last, stores are ready before anything records,
// protocol clients provision before the relay manager that needs them, and
// the gateway starts accepting requests only once everything behind it runs.
var startRank = map[string]int{
	"telemetry": 0,
	"store":     1,
	"channel":   2,
	"relay":     3,
	"gateway":   4,
}

// Resolve returns the configured module IDs in load order: by namespace
// rank, then by ID. Unranked namespaces go last.
func Resolve(cfg *Config) []string {
	ids := make([]string, 0, len(cfg.Modules))
	for id := range cfg.Modules {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b string) int {
		return cmp.Or(
			cmp.Compare(rank(a), rank(b)),
			cmp.Compare(a, b),
		)
	})
	return ids
}

func rank(id string) int {
	if r, ok := startRank[core.ModuleID(id).Namespace()]; ok {
		return r
	}
	return len(startRank)
}
