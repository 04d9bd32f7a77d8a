// Package tools contains the helpers shared by the built-in tools:
// path confinement for file based tools, and tool descriptions for prompts.
// The tools themselves live in the sub-packages and are wired by tools/builtin.
package tools
