package dispatcher

import (
	"context"

	"github.com/effective-security/toolbridge/registry"
	"github.com/effective-security/toolbridge/value"
)

// LocalSource is a ToolSource over an in-process registry
type LocalSource struct {
	Registry *registry.Registry
}

// NewLocalSource returns a source over the registry
func NewLocalSource(reg *registry.Registry) *LocalSource {
	return &LocalSource{Registry: reg}
}

// ListTools implements ToolSource
func (s *LocalSource) ListTools(_ context.Context) ([]registry.ToolInfo, error) {
	return s.Registry.List(), nil
}

// CallTool implements ToolSource
func (s *LocalSource) CallTool(ctx context.Context, name string, args value.Object) (any, error) {
	return s.Registry.Invoke(ctx, name, args)
}
