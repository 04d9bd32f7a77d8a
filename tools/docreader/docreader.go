// Package docreader provides tools reading local CSV and PDF documents.
package docreader

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/toolbridge/registry"
	"github.com/effective-security/toolbridge/tools"
	"github.com/effective-security/xlog"
	"github.com/ledongthuc/pdf"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/toolbridge/tools", "docreader")

// Tool names
const (
	ReadCSVToolName   = "read_csv"
	ReadPDFToolName   = "read_pdf"
	ListFilesToolName = "list_files_in_directory"
)

// ReadCSVRequest is the input of read_csv
type ReadCSVRequest struct {
	FilePath string `json:"file_path" jsonschema:"description=The absolute path to the file to read."`
	NthRow   int    `json:"nth_row" jsonschema:"description=The 1-indexed row number to retrieve. Must be >= 1."`
}

// ReadPDFRequest is the input of read_pdf
type ReadPDFRequest struct {
	FilePath   string `json:"file_path" jsonschema:"description=The absolute path to the PDF file."`
	PageNumber int    `json:"page_number" jsonschema:"description=The 1-indexed page number to read."`
}

// ListFilesRequest is the input of list_files_in_directory
type ListFilesRequest struct {
	DirectoryPath string `json:"directory_path" jsonschema:"description=The path to the directory."`
}

// Reader implements the document tools
type Reader struct {
	sandbox *tools.Sandbox
}

// New returns a document reader confined to the sandbox,
// nil sandbox allows any path.
func New(sandbox *tools.Sandbox) *Reader {
	return &Reader{sandbox: sandbox}
}

// Tools returns the document tools
func (r *Reader) Tools() []registry.ITool {
	return []registry.ITool{
		registry.MustTyped[ReadCSVRequest, string](ReadCSVToolName,
			"Reads a specific nth row from a CSV file and returns it along with the number of rows remaining after that row.",
			r.ReadCSV),
		registry.MustTyped[ReadPDFRequest, string](ReadPDFToolName,
			"Reads text from a specific page of a PDF file.",
			r.ReadPDF),
		registry.MustTyped[ListFilesRequest, []string](ListFilesToolName,
			"Lists all files (not directories) in the given directory path.",
			r.ListFiles),
	}
}

// Register adds the document tools to the registry
func (r *Reader) Register(reg *registry.Registry) error {
	return reg.Add(r.Tools()...)
}

// ReadCSV returns the header and the nth row, followed by the number of remaining rows
func (r *Reader) ReadCSV(_ context.Context, req *ReadCSVRequest) (string, error) {
	path, err := r.checkFile(req.FilePath, ".csv")
	if err != nil {
		return "", err
	}
	if req.NthRow < 1 {
		return "", errors.Errorf("nth_row must be >= 1, got %d", req.NthRow)
	}

	f, err := os.Open(path)
	if err != nil {
		return "", errors.Wrap(err, "error reading file")
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return "", errors.Wrap(err, "error reading file")
	}

	var header []string
	if len(records) > 0 {
		header, records = records[0], records[1:]
	}
	total := len(records)
	if req.NthRow > total {
		return "", errors.Errorf("Row %d does not exist in the file. Total rows: %d", req.NthRow, total)
	}

	logger.KV(xlog.DEBUG, "tool", ReadCSVToolName, "file", path, "row", req.NthRow, "total", total)

	table := renderRow(header, records[req.NthRow-1])
	return fmt.Sprintf("%s\n\nRows remaining: %d", table, total-req.NthRow), nil
}

// ReadPDF returns the plain text of a page
func (r *Reader) ReadPDF(_ context.Context, req *ReadPDFRequest) (string, error) {
	path, err := r.checkFile(req.FilePath, ".pdf")
	if err != nil {
		return "", err
	}
	if req.PageNumber < 1 {
		return "", errors.Errorf("page_number must be >= 1, got %d", req.PageNumber)
	}

	f, doc, err := pdf.Open(path)
	if err != nil {
		return "", errors.Wrap(err, "error reading PDF")
	}
	defer f.Close()

	total := doc.NumPage()
	if req.PageNumber > total {
		return "", errors.Errorf("Page %d does not exist. Total pages: %d", req.PageNumber, total)
	}

	var text string
	page := doc.Page(req.PageNumber)
	if !page.V.IsNull() {
		text, err = page.GetPlainText(nil)
		if err != nil {
			return "", errors.Wrap(err, "error reading PDF")
		}
	}
	text = strings.TrimSpace(text)
	if text == "" {
		text = "[No readable text]"
	}

	logger.KV(xlog.DEBUG, "tool", ReadPDFToolName, "file", path, "page", req.PageNumber, "total", total)
	return fmt.Sprintf("Text from page %d:\n\n%s", req.PageNumber, text), nil
}

// ListFiles returns the sorted names of the regular files in the directory
func (r *Reader) ListFiles(_ context.Context, req *ListFilesRequest) ([]string, error) {
	path, err := r.sandbox.Resolve(req.DirectoryPath)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, errors.Errorf("Directory '%s' not found", req.DirectoryPath)
		}
		return nil, errors.Wrap(err, "failed to list directory")
	}

	files := []string{}
	for _, e := range entries {
		if e.Type().IsRegular() {
			files = append(files, e.Name())
		}
	}
	slices.Sort(files)
	return files, nil
}

// checkFile resolves the path and checks the existence and the extension of the file
func (r *Reader) checkFile(filePath, ext string) (string, error) {
	path, err := r.sandbox.Resolve(filePath)
	if err != nil {
		return "", err
	}
	if _, err = os.Stat(path); err != nil {
		return "", errors.Errorf("File not found at %s", filePath)
	}

	actual := strings.ToLower(filepath.Ext(path))
	if actual != ext {
		if ext == ".pdf" {
			return "", errors.New("Unsupported file type. Only PDF is supported.")
		}
		return "", errors.Errorf("Unsupported file type '%s'. Only CSV is supported.", actual)
	}
	return path, nil
}

// renderRow renders the header and the row as right aligned columns
func renderRow(header, row []string) string {
	n := max(len(header), len(row))
	widths := make([]int, n)
	for i := range n {
		widths[i] = max(utf8.RuneCountInString(cell(header, i)), utf8.RuneCountInString(cell(row, i)))
	}

	var b strings.Builder
	writeLine := func(cells []string) {
		for i := range n {
			if i > 0 {
				b.WriteString("  ")
			}
			c := cell(cells, i)
			b.WriteString(strings.Repeat(" ", widths[i]-utf8.RuneCountInString(c)))
			b.WriteString(c)
		}
	}
	writeLine(header)
	b.WriteByte('\n')
	writeLine(row)
	return b.String()
}

func cell(cells []string, i int) string {
	if i < len(cells) {
		return cells[i]
	}
	return ""
}
