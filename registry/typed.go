package registry

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/toolbridge/pkg/schema"
	"github.com/effective-security/toolbridge/value"
)

// RunFunc is the typed implementation of a tool
type RunFunc[I any, O any] func(ctx context.Context, in *I) (O, error)

// TypedTool is a tool with parameters derived from the structure I
type TypedTool[I any, O any] struct {
	name        string
	description string
	params      Params
	run         RunFunc[I, O]
}

// NewTyped returns a tool whose parameters are reflected from the
// json and jsonschema tags of I.
func NewTyped[I any, O any](name, description string, run RunFunc[I, O]) (*TypedTool[I, O], error) {
	if run == nil {
		return nil, errors.Errorf("tool %s: run function is required", name)
	}
	sc, err := schema.For[I]()
	if err != nil {
		return nil, errors.WithMessagef(err, "tool %s", name)
	}
	params, err := ParamsFromSchema(sc.Parameters)
	if err != nil {
		return nil, errors.WithMessagef(err, "tool %s", name)
	}
	return &TypedTool[I, O]{
		name:        name,
		description: description,
		params:      params,
		run:         run,
	}, nil
}

// MustTyped is like NewTyped but panics on error
func MustTyped[I any, O any](name, description string, run RunFunc[I, O]) *TypedTool[I, O] {
	t, err := NewTyped(name, description, run)
	if err != nil {
		panic(err)
	}
	return t
}

// Name returns the name of the Tool.
func (t *TypedTool[I, O]) Name() string {
	return t.name
}

// Description returns the description of the Tool.
func (t *TypedTool[I, O]) Description() string {
	return t.description
}

// Params returns the reflected parameters.
func (t *TypedTool[I, O]) Params() Params {
	return t.params
}

// Call decodes the arguments into I and runs the tool.
func (t *TypedTool[I, O]) Call(ctx context.Context, args value.Object) (any, error) {
	in := new(I)
	if len(args) > 0 {
		if err := args.Decode(in); err != nil {
			return nil, NewError(KindTypeMismatch, "%s", err.Error())
		}
	}
	return t.Run(ctx, in)
}

// Run executes the tool with typed input
func (t *TypedTool[I, O]) Run(ctx context.Context, in *I) (O, error) {
	return t.run(ctx, in)
}
