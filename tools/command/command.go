// Package command provides tools implemented by external programs.
//
// A command tool is declared in configuration with its parameters,
// the program to run and argument templates.
// Templates use text/template with the sprig functions,
// the validated arguments are available by parameter name:
//
//	name: word_count
//	params:
//	  - name: file_path
//	    type: string
//	    required: true
//	command: wc
//	args: ["-w", "{{ .file_path }}"]
//
// An argument rendered to an empty string is omitted,
// so optional flags can be written as `{{ if .verbose }}-v{{ end }}`.
package command

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"strings"
	"text/template"
	"time"

	"github.com/Masterminds/sprig/v3"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/toolbridge/registry"
	"github.com/effective-security/toolbridge/value"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/toolbridge/tools", "command")

// Output formats
const (
	OutputText = "text"
	OutputJSON = "json"
)

// DefaultTimeout limits the run time of a command
const DefaultTimeout = 30 * time.Second

// maxStderr limits the stderr text reported in errors
const maxStderr = 1024

// Spec declares a command tool
type Spec struct {
	Name        string          `json:"name" yaml:"name" validate:"required"`
	Description string          `json:"description,omitempty" yaml:"description,omitempty"`
	Params      registry.Params `json:"params,omitempty" yaml:"params,omitempty"`
	// Command is the program to run, looked up in PATH
	Command string `json:"command" yaml:"command" validate:"required"`
	// Args are the argument templates
	Args []string `json:"args,omitempty" yaml:"args,omitempty"`
	// Env are additional NAME=VALUE templates
	Env []string `json:"env,omitempty" yaml:"env,omitempty"`
	// Dir is the working directory
	Dir string `json:"dir,omitempty" yaml:"dir,omitempty"`
	// Timeout is a duration such as 10s, DefaultTimeout is used if empty
	Timeout string `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	// Output is text or json, text by default.
	// JSON output is returned as structured value.
	Output string `json:"output,omitempty" yaml:"output,omitempty" validate:"omitempty,oneof=text json"`
}

// Tool is a registered command tool
type Tool struct {
	spec    Spec
	timeout time.Duration
	args    []*template.Template
	env     []*template.Template
}

var _ registry.ITool = (*Tool)(nil)

// New parses the templates of the spec and returns the tool
func New(spec Spec) (*Tool, error) {
	if spec.Name == "" {
		return nil, errors.New("command tool: name is required")
	}
	if spec.Command == "" {
		return nil, errors.Errorf("command tool %s: command is required", spec.Name)
	}
	if err := spec.Params.Validate(); err != nil {
		return nil, errors.WithMessagef(err, "command tool %s", spec.Name)
	}
	switch spec.Output {
	case "", OutputText, OutputJSON:
	default:
		return nil, errors.Errorf("command tool %s: unsupported output: %s", spec.Name, spec.Output)
	}

	t := &Tool{
		spec:    spec,
		timeout: DefaultTimeout,
	}
	if spec.Timeout != "" {
		d, err := time.ParseDuration(spec.Timeout)
		if err != nil || d <= 0 {
			return nil, errors.Errorf("command tool %s: invalid timeout: %s", spec.Name, spec.Timeout)
		}
		t.timeout = d
	}

	var err error
	if t.args, err = parseAll(spec.Name, "arg", spec.Args); err != nil {
		return nil, err
	}
	if t.env, err = parseAll(spec.Name, "env", spec.Env); err != nil {
		return nil, err
	}
	return t, nil
}

// NewAll returns the tools for the specs
func NewAll(specs []Spec) ([]registry.ITool, error) {
	list := make([]registry.ITool, 0, len(specs))
	for _, spec := range specs {
		t, err := New(spec)
		if err != nil {
			return nil, err
		}
		list = append(list, t)
	}
	return list, nil
}

func parseAll(name, kind string, texts []string) ([]*template.Template, error) {
	list := make([]*template.Template, len(texts))
	for i, text := range texts {
		tmpl, err := template.New(name).
			Funcs(sprig.TxtFuncMap()).
			Option("missingkey=error").
			Parse(text)
		if err != nil {
			return nil, errors.Wrapf(err, "command tool %s: invalid %s [%d]", name, kind, i)
		}
		list[i] = tmpl
	}
	return list, nil
}

// Name returns the name of the Tool.
func (t *Tool) Name() string {
	return t.spec.Name
}

// Description returns the description of the Tool.
func (t *Tool) Description() string {
	return t.spec.Description
}

// Params returns the declared parameters.
func (t *Tool) Params() registry.Params {
	return t.spec.Params
}

// Argv renders the command line for the arguments
func (t *Tool) Argv(args value.Object) ([]string, error) {
	data := t.data(args)
	argv, err := render(t.args, data)
	if err != nil {
		return nil, err
	}
	return append([]string{t.spec.Command}, argv...), nil
}

// Call runs the command with the rendered arguments
func (t *Tool) Call(ctx context.Context, args value.Object) (any, error) {
	data := t.data(args)
	argv, err := render(t.args, data)
	if err != nil {
		return nil, err
	}
	env, err := render(t.env, data)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, t.spec.Command, argv...)
	cmd.Dir = t.spec.Dir
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	started := time.Now()
	err = cmd.Run()
	logger.ContextKV(ctx, xlog.DEBUG,
		"tool", t.spec.Name,
		"command", t.spec.Command,
		"args", argv,
		"elapsed", time.Since(started).String())
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, errors.Errorf("command %s timed out after %s", t.spec.Command, t.timeout)
		}
		msg := strings.TrimSpace(stderr.String())
		if len(msg) > maxStderr {
			msg = msg[:maxStderr]
		}
		if msg != "" {
			return nil, errors.Wrapf(err, "command %s failed: %s", t.spec.Command, msg)
		}
		return nil, errors.Wrapf(err, "command %s failed", t.spec.Command)
	}

	if t.spec.Output == OutputJSON {
		var v value.Value
		if err = json.Unmarshal(stdout.Bytes(), &v); err != nil {
			return nil, errors.Wrapf(err, "command %s: invalid JSON output", t.spec.Command)
		}
		return v.Any(), nil
	}
	return strings.TrimSpace(stdout.String()), nil
}

// data returns the template data, absent parameters are empty strings
func (t *Tool) data(args value.Object) map[string]any {
	data := args.Any()
	if data == nil {
		data = map[string]any{}
	}
	for _, p := range t.spec.Params {
		if _, ok := data[p.Name]; !ok {
			data[p.Name] = ""
		}
	}
	return data
}

func render(list []*template.Template, data map[string]any) ([]string, error) {
	out := make([]string, 0, len(list))
	var buf bytes.Buffer
	for _, tmpl := range list {
		buf.Reset()
		if err := tmpl.Execute(&buf, data); err != nil {
			return nil, errors.Wrap(err, "failed to render arguments")
		}
		if buf.Len() > 0 {
			out = append(out, buf.String())
		}
	}
	return out, nil
}
