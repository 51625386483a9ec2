package reposvc

import (
	"github.com/aretw0/introspection"
)

// ManagerState exposes internal state for observability.
type ManagerState struct {
	Root        string   `json:"root"`
	Ready       bool     `json:"ready"`
	Extensions  []string `json:"extensions"`
	HiddenFiles bool     `json:"hidden_files"`
	NestedRepos []string `json:"nested_repos,omitempty"`
}

// State implements introspection.Introspectable.
func (m *Manager) State() any {
	cfg := m.Config()
	return ManagerState{
		Root:        m.Root,
		Ready:       m.Ready(),
		Extensions:  cfg.Extensions,
		HiddenFiles: cfg.HiddenFiles,
		NestedRepos: cfg.NestedRepos,
	}
}

// ComponentType implements introspection.Component.
func (m *Manager) ComponentType() string {
	return "repository_manager"
}

var (
	_ introspection.Introspectable = (*Manager)(nil)
	_ introspection.Component      = (*Manager)(nil)
)
