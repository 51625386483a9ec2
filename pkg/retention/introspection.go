package retention

import (
	"github.com/aretw0/introspection"
)

// EngineState exposes internal state for observability.
type EngineState struct {
	Running bool `json:"running"`
}

// State implements introspection.Introspectable.
func (e *Engine) State() any {
	return EngineState{Running: e.running.Load()}
}

// ComponentType implements introspection.Component.
func (e *Engine) ComponentType() string {
	return "retention_engine"
}

var (
	_ introspection.Introspectable = (*Engine)(nil)
	_ introspection.Component      = (*Engine)(nil)
)
