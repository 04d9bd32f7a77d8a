// Package mathtool provides the add tool.
package mathtool

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/toolbridge/registry"
)

// ToolName is the name of the tool
const ToolName = "add"

// AddRequest is the input of add
type AddRequest struct {
	A int64 `json:"a" jsonschema:"description=First integer."`
	B int64 `json:"b" jsonschema:"description=Second integer."`
}

// New returns the add tool
func New() registry.ITool {
	return registry.MustTyped[AddRequest, int64](ToolName,
		"Adds two integers and returns the result.",
		Add)
}

// Add returns a+b, failing on overflow
func Add(_ context.Context, req *AddRequest) (int64, error) {
	sum := req.A + req.B
	if (req.B > 0 && sum < req.A) || (req.B < 0 && sum > req.A) {
		return 0, errors.Errorf("integer overflow: %d + %d", req.A, req.B)
	}
	return sum, nil
}

