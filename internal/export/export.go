// Package export writes derived datasets to CSV and JSON Lines files.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	perrors "github.com/rohankatakam/prtimeline/internal/errors"
	"github.com/rohankatakam/prtimeline/internal/models"
)

const (
	FormatCSV   = "csv"
	FormatJSONL = "jsonl"
	FormatBoth  = "both"
)

// Writer exports a project's derived data under one output directory
type Writer struct {
	dir     string
	formats []string
}

// NewWriter creates a writer for format "csv", "jsonl" or "both"
func NewWriter(dir, format string) (*Writer, error) {
	var formats []string
	switch format {
	case FormatCSV, "":
		formats = []string{FormatCSV}
	case FormatJSONL:
		formats = []string{FormatJSONL}
	case FormatBoth:
		formats = []string{FormatCSV, FormatJSONL}
	default:
		return nil, perrors.ValidationErrorf("unknown export format %q", format)
	}
	return &Writer{dir: dir, formats: formats}, nil
}

// Bundle is everything exported for one project
type Bundle struct {
	Project string
	Rows    []models.DatasetRow
	Pulls   []models.PullSummary
	Patches []models.PatchChange
}

// Path returns <dir>/<slug>/<slug>_<kind>.<ext>
func Path(dir, project, kind, ext string) string {
	slug := models.Slug(project)
	return filepath.Join(dir, slug, fmt.Sprintf("%s_%s.%s", slug, kind, ext))
}

// Export writes the bundle and returns the written paths
func (w *Writer) Export(b *Bundle) ([]string, error) {
	var written []string
	for _, format := range w.formats {
		files := []struct {
			kind  string
			write func(io.Writer) error
		}{
			{"dataset", func(out io.Writer) error {
				if format == FormatCSV {
					return WriteDatasetCSV(out, b.Rows)
				}
				return WriteJSONL(out, b.Rows)
			}},
			{"pulls", func(out io.Writer) error {
				if format == FormatCSV {
					return WritePullsCSV(out, b.Pulls)
				}
				return WriteJSONL(out, b.Pulls)
			}},
			{"patches", func(out io.Writer) error {
				if format == FormatCSV {
					return WritePatchesCSV(out, b.Patches)
				}
				return WriteJSONL(out, b.Patches)
			}},
		}

		for _, f := range files {
			path := Path(w.dir, b.Project, f.kind, format)
			if err := writeFile(path, f.write); err != nil {
				return written, err
			}
			written = append(written, path)
		}
	}
	return written, nil
}

// WriteJSONL writes one JSON document per line
func WriteJSONL[T any](w io.Writer, items []T) error {
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	for i := range items {
		if err := encoder.Encode(&items[i]); err != nil {
			return err
		}
	}
	return nil
}

// writeFile writes through a temporary file so readers never see partial output
func writeFile(path string, write func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return perrors.FileSystemError(err, "failed to create output directory").WithContext("path", path)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return perrors.FileSystemError(err, "failed to create output file").WithContext("path", path)
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return perrors.FileSystemError(err, "failed to write output").WithContext("path", path)
	}
	if err := tmp.Close(); err != nil {
		return perrors.FileSystemError(err, "failed to close output").WithContext("path", path)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return perrors.FileSystemError(err, "failed to move output into place").WithContext("path", path)
	}
	return nil
}
