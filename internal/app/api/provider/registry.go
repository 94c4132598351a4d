package provider

import (
	"sort"
	"sync"

	"github.com/samber/lo"

	apperrors "whisper-transcribe/internal/app/errors"
	"whisper-transcribe/internal/config"
)

// EngineCreator builds an engine from the runtime configuration.
type EngineCreator func(cfg *config.Config) (Engine, error)

// engineRegistry stores engine creation functions, filled from init() in
// each engine package.
var (
	engineRegistry = make(map[string]EngineCreator)
	registryMutex  sync.RWMutex
)

// RegisterEngine registers an engine creator under name.
func RegisterEngine(name string, creator EngineCreator) {
	registryMutex.Lock()
	defer registryMutex.Unlock()
	engineRegistry[name] = creator
}

// NewEngine creates the engine registered under name.
func NewEngine(name string, cfg *config.Config) (Engine, error) {
	registryMutex.RLock()
	creator, ok := engineRegistry[name]
	registryMutex.RUnlock()

	if !ok {
		return nil, apperrors.Mark(
			apperrors.Newf("unknown engine %q (available: %v)", name, ListRegisteredEngines()),
			apperrors.ErrEngineNotFound,
		)
	}
	return creator(cfg)
}

// ListRegisteredEngines returns the registered engine names, sorted.
func ListRegisteredEngines() []string {
	registryMutex.RLock()
	defer registryMutex.RUnlock()

	names := lo.Keys(engineRegistry)
	sort.Strings(names)
	return names
}
