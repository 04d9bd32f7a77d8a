// Package fstools provides tools creating and deleting files.
package fstools

import (
	"context"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/toolbridge/registry"
	"github.com/effective-security/toolbridge/tools"
	"github.com/effective-security/toolbridge/value"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/toolbridge/tools", "fstools")

// Tool names
const (
	CreateFileToolName = "create_file"
	DeleteFileToolName = "delete_file"
)

// FS implements the file system tools
type FS struct {
	sandbox *tools.Sandbox
}

// New returns the file tools confined to the sandbox
func New(sandbox *tools.Sandbox) *FS {
	return &FS{sandbox: sandbox}
}

// Tools returns create_file and delete_file
func (f *FS) Tools() []registry.Tool {
	return []registry.Tool{
		{
			Name:        CreateFileToolName,
			Description: "Creates a new file at the specified path, optionally writing initial content to it.",
			Params: registry.Params{
				{Name: "file_path", Type: value.TypeString, Required: true, Description: "The full path to the file to be created."},
				{Name: "content", Type: value.TypeString, Default: "", Description: "The initial content to write to the file."},
			},
			Handler: f.createFile,
		},
		{
			Name:        DeleteFileToolName,
			Description: "Deletes the specified file if it exists.",
			Params: registry.Params{
				{Name: "file_path", Type: value.TypeString, Required: true, Description: "The full path to the file to be deleted."},
			},
			Handler: f.deleteFile,
		},
	}
}

// Register adds create_file and delete_file to the registry
func (f *FS) Register(reg *registry.Registry) error {
	for _, t := range f.Tools() {
		if err := reg.RegisterTool(t); err != nil {
			return err
		}
	}
	return nil
}

func (f *FS) createFile(ctx context.Context, args value.Object) (any, error) {
	filePath, _ := args["file_path"].Str()
	content, _ := args["content"].Str()

	path, err := f.sandbox.Resolve(filePath)
	if err != nil {
		return nil, err
	}
	if err = os.WriteFile(path, []byte(content), 0o644); err != nil {
		return nil, errors.Wrapf(err, "error creating file '%s'", filePath)
	}
	logger.ContextKV(ctx, xlog.INFO, "tool", CreateFileToolName, "file", path, "size", len(content))
	return true, nil
}

func (f *FS) deleteFile(ctx context.Context, args value.Object) (any, error) {
	filePath, _ := args["file_path"].Str()

	path, err := f.sandbox.Resolve(filePath)
	if err != nil {
		return nil, err
	}
	fi, err := os.Stat(path)
	if err != nil {
		return nil, errors.Errorf("File not found at %s", filePath)
	}
	if fi.IsDir() {
		return nil, errors.Errorf("%s is a directory", filePath)
	}
	if err = os.Remove(path); err != nil {
		return nil, errors.Wrapf(err, "error deleting file '%s'", filePath)
	}
	logger.ContextKV(ctx, xlog.INFO, "tool", DeleteFileToolName, "file", path)
	return true, nil
}
