// Package imagereader provides the read_image tool,
// answering a question about a local image with a Gemini model.
package imagereader

import (
	"context"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/toolbridge/registry"
	"github.com/effective-security/toolbridge/tools"
	"github.com/effective-security/xlog"
	"github.com/gabriel-vasile/mimetype"
	"google.golang.org/genai"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/toolbridge/tools", "imagereader")

// ToolName is the name of the tool
const ToolName = "read_image"

// DefaultModel is used when no model is configured
const DefaultModel = "gemini-2.5-pro"

// maxImageSize is the inline data limit of the API
const maxImageSize = 20 << 20

// ReadImageRequest is the input of read_image
type ReadImageRequest struct {
	ImagePath string `json:"image_path" jsonschema:"description=The path to the image file."`
	Query     string `json:"query" jsonschema:"description=Instruction or question about the image."`
}

// Reader sends images to the model
type Reader struct {
	client  *genai.Client
	model   string
	sandbox *tools.Sandbox
}

// New returns a new image reader
func New(client *genai.Client, model string, sandbox *tools.Sandbox) *Reader {
	if model == "" {
		model = DefaultModel
	}
	return &Reader{
		client:  client,
		model:   model,
		sandbox: sandbox,
	}
}

// Tool returns the read_image tool
func (r *Reader) Tool() registry.ITool {
	return registry.MustTyped[ReadImageRequest, string](ToolName,
		"Reads an image and answers the query about it.",
		r.Read)
}

// Read sends the image with the query and returns the model reply
func (r *Reader) Read(ctx context.Context, req *ReadImageRequest) (string, error) {
	path, err := r.sandbox.Resolve(req.ImagePath)
	if err != nil {
		return "", err
	}
	fi, err := os.Stat(path)
	if err != nil || fi.IsDir() {
		return "", errors.Errorf("Image not found at path: %s", req.ImagePath)
	}
	if fi.Size() > maxImageSize {
		return "", errors.Errorf("image is too large: %d bytes", fi.Size())
	}

	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return "", errors.Wrap(err, "failed to detect image type")
	}
	if !strings.HasPrefix(mtype.String(), "image/") {
		return "", errors.Errorf("unsupported image type: %s", mtype.String())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrap(err, "failed to read image")
	}

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{InlineData: &genai.Blob{MIMEType: mtype.String(), Data: data}},
				{Text: req.Query},
			},
		},
	}
	resp, err := r.client.Models.GenerateContent(ctx, r.model, contents, nil)
	if err != nil {
		return "", errors.Wrap(err, "error processing image")
	}

	logger.ContextKV(ctx, xlog.DEBUG,
		"tool", ToolName,
		"model", r.model,
		"mime", mtype.String(),
		"size", len(data))
	return resp.Text(), nil
}
