package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// ErrIO is returned when the export file cannot be written.
var ErrIO = errors.New("export failed")

// FileMode is the permission of every exported file.
const FileMode os.FileMode = 0o644

type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatForPath picks YAML for .yaml/.yml files and JSON for anything else.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Encode writes v as UTF-8 indented by two spaces. Non-ASCII text is written
// as-is and struct fields keep their declared order.
func Encode(w io.Writer, v any, format Format) error {
	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	case FormatJSON, "":
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	default:
		return fmt.Errorf("unsupported format %q", format)
	}
}

type Exporter struct {
	logger zerolog.Logger
}

func NewExporter(logger zerolog.Logger) *Exporter {
	return &Exporter{logger: logger}
}

// ToFile serializes v to path. The data is written to a temporary file in the
// same directory, synced and renamed over path, so path is either fully
// replaced or left untouched.
func (e *Exporter) ToFile(v any, path string) (err error) {
	format := FormatForPath(path)

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return e.fail(path, fmt.Errorf("create temp file: %w", err))
	}
	defer func() {
		if err != nil {
			os.Remove(tmp.Name())
		}
	}()

	if merr := tmp.Chmod(FileMode); merr != nil {
		return e.fail(path, multierr.Append(fmt.Errorf("chmod: %w", merr), tmp.Close()))
	}
	if werr := Encode(tmp, v, format); werr != nil {
		return e.fail(path, multierr.Append(fmt.Errorf("encode %s: %w", format, werr), tmp.Close()))
	}
	if serr := tmp.Sync(); serr != nil {
		return e.fail(path, multierr.Append(fmt.Errorf("sync: %w", serr), tmp.Close()))
	}
	if cerr := tmp.Close(); cerr != nil {
		return e.fail(path, fmt.Errorf("close: %w", cerr))
	}
	if rerr := os.Rename(tmp.Name(), path); rerr != nil {
		return e.fail(path, fmt.Errorf("rename: %w", rerr))
	}

	e.logger.Info().Str("path", path).Str("format", string(format)).Msg("data exported")
	return nil
}

func (e *Exporter) fail(path string, err error) error {
	e.logger.Error().Err(err).Str("path", path).Msg("export failed")
	return fmt.Errorf("%w: %s: %w", ErrIO, path, err)
}
