package tools

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/toolbridge/registry"
	"github.com/effective-security/toolbridge/utils"
)

// Sandbox confines file paths to a root directory.
// A Sandbox with an empty root accepts any path.
type Sandbox struct {
	root string
}

// NewSandbox returns a sandbox rooted at root
func NewSandbox(root string) (*Sandbox, error) {
	if root == "" {
		return &Sandbox{}, nil
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid root: %s", root)
	}
	return &Sandbox{root: filepath.Clean(abs)}, nil
}

// Root returns the root directory, empty if not confined
func (s *Sandbox) Root() string {
	if s == nil {
		return ""
	}
	return s.root
}

// Resolve returns the cleaned path, relative paths are resolved against the root.
// Paths outside of the root are refused.
func (s *Sandbox) Resolve(path string) (string, error) {
	if path == "" {
		return "", errors.New("path is required")
	}
	if s == nil || s.root == "" {
		return filepath.Clean(path), nil
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(s.root, path)
	}
	path = filepath.Clean(path)

	rel, err := filepath.Rel(s.root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errors.Errorf("path is outside of %s: %s", s.root, path)
	}
	return path, nil
}

type toolDescription struct {
	Name        string `json:"Name" yaml:"Name"`
	Description string `json:"Description" yaml:"Description"`
}

type toolsDescription struct {
	Tools []toolDescription `json:"Tools" yaml:"Tools"`
}

// GetDescriptions returns the names and descriptions of the tools
// as a fenced JSON block, to be used in a system prompt.
func GetDescriptions(list ...registry.ToolInfo) string {
	var d toolsDescription
	for _, tool := range list {
		d.Tools = append(d.Tools, toolDescription{
			Name:        tool.Name,
			Description: tool.Description,
		})
	}
	return fmt.Sprintf("```json\n%s\n```", utils.ToJSONIndent(d))
}
