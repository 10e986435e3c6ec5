package engine

import (
	"asr-webservice-go/internal/domain/model"
	platformconfig "asr-webservice-go/internal/platform/config"
	platformerrors "asr-webservice-go/internal/platform/errors"
	"asr-webservice-go/internal/platform/logging"
)

// Deps bundles what a variant factory needs to construct an engine.
type Deps struct {
	Config  *platformconfig.ASRConfig
	Runtime model.Runtime
	Logger  *logging.Logger
}

// Factory builds one engine variant.
type Factory func(deps Deps) (Engine, error)

var factories = make(map[string]Factory)

// Register adds an engine variant factory under its configuration name.
// Variants register themselves from init, mirroring how providers plug in.
func Register(name string, factory Factory) {
	factories[name] = factory
}

// Create constructs the engine variant named in configuration. This runs once
// at startup; failures here are process-fatal, never per-request.
func Create(name string, deps Deps) (Engine, error) {
	factory, ok := factories[name]
	if !ok {
		return nil, platformerrors.New(platformerrors.KindEngineConstruction, "engine:create", "unknown ASR engine: "+name)
	}

	eng, err := factory(deps)
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindEngineConstruction, "engine:create", "failed to construct ASR engine "+name, err)
	}

	return eng, nil
}

// Registered returns whether a variant name is known.
func Registered(name string) bool {
	_, ok := factories[name]
	return ok
}
