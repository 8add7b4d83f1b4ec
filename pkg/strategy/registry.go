// Package strategy provides the registry of strategy variants.
//
// A variant pairs a signal.Signaler with an exit policy. Definitions are
// registered at init and built against a config.Strategy on demand.
package strategy

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/algomatic/regime-backtest/pkg/config"
	"github.com/algomatic/regime-backtest/pkg/exits"
	"github.com/algomatic/regime-backtest/pkg/signal"
)

// Default is the name of the strategy used when none is requested.
const Default = "regime"

// Strategy is a built variant ready to hand to the engine.
type Strategy struct {
	Name     string
	Signaler signal.Signaler
	Exit     exits.Policy
}

// Definition describes a registered variant.
type Definition struct {
	ID          int
	Name        string
	DisplayName string
	Description string
	Build       func(cfg config.Strategy) Strategy
}

var (
	mu               sync.RWMutex
	strategiesByID   = make(map[int]*Definition)
	strategiesByName = make(map[string]*Definition)
)

// Register adds a definition to the registry.
func Register(d *Definition) {
	mu.Lock()
	defer mu.Unlock()
	strategiesByID[d.ID] = d
	strategiesByName[d.Name] = d
}

// RegisterAll adds multiple definitions to the registry.
func RegisterAll(defs []*Definition) int {
	mu.Lock()
	defer mu.Unlock()
	count := 0
	for _, d := range defs {
		strategiesByID[d.ID] = d
		strategiesByName[d.Name] = d
		count++
	}
	slog.Debug("Registered strategies", "count", count, "total", len(strategiesByID))
	return count
}

// Get returns a definition by ID, or nil if not found.
func Get(id int) *Definition {
	mu.RLock()
	defer mu.RUnlock()
	return strategiesByID[id]
}

// GetByName returns a definition by name, or nil if not found.
func GetByName(name string) *Definition {
	mu.RLock()
	defer mu.RUnlock()
	return strategiesByName[name]
}

// GetAll returns all registered definitions sorted by ID.
func GetAll() []*Definition {
	mu.RLock()
	defer mu.RUnlock()
	result := make([]*Definition, 0, len(strategiesByID))
	for _, d := range strategiesByID {
		result = append(result, d)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})
	return result
}

// Build looks up a variant by name and builds it against cfg.
func Build(name string, cfg config.Strategy) (Strategy, error) {
	d := GetByName(name)
	if d == nil {
		return Strategy{}, fmt.Errorf("unknown strategy %q", name)
	}
	return d.Build(cfg), nil
}

// Count returns the number of registered definitions.
func Count() int {
	mu.RLock()
	defer mu.RUnlock()
	return len(strategiesByID)
}
