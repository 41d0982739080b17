package report

import (
	"encoding/json"
	"fmt"
	"io"
)

// Format represents output format type
type Format string

const (
	// FormatCLI is a human-readable summary
	FormatCLI Format = "cli"

	// FormatJSON is the machine-readable envelope
	FormatJSON Format = "json"
)

// Formatter produces output in a specific format. HTML and email
// rendering belong to external collaborators; the engine only supplies
// the structured event list.
type Formatter interface {
	// Format returns the format type
	Format() Format

	// Render produces output for the given result
	Render(w io.Writer, result *Result) error
}

// NewFormatter returns the formatter for a format name
func NewFormatter(format Format, showEvents bool) (Formatter, error) {
	switch format {
	case FormatJSON:
		return &JSONFormatter{}, nil
	case FormatCLI, "":
		return &CLIFormatter{ShowEvents: showEvents}, nil
	}
	return nil, fmt.Errorf("unknown output format %q", format)
}

// JSONFormatter renders the serialized envelope
type JSONFormatter struct{}

func (f *JSONFormatter) Format() Format {
	return FormatJSON
}

func (f *JSONFormatter) Render(w io.Writer, result *Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result.Envelope())
}

// CLIFormatter renders a human-readable summary
type CLIFormatter struct {
	// ShowEvents includes the per-event lines
	ShowEvents bool
}

func (f *CLIFormatter) Format() Format {
	return FormatCLI
}

func (f *CLIFormatter) Render(w io.Writer, result *Result) error {
	fmt.Fprintf(w, "execution %s: %s (%d errors, %d warnings)\n",
		result.ExecutionID, result.Status(), result.ErrorCount(), result.WarningCount())

	if !f.ShowEvents {
		return nil
	}
	for _, e := range result.Events {
		location := e.CatalogID
		if e.FieldName != "" {
			location += "." + e.FieldName
		}
		if e.RowIndex != nil {
			location += fmt.Sprintf(" row %d", *e.RowIndex)
		}
		name := e.RuleName
		if name == "" {
			name = string(e.Scope)
		}
		if _, err := fmt.Fprintf(w, "  [%s] %s (%s): %s\n", e.Severity, name, location, e.Description); err != nil {
			return err
		}
	}
	return nil
}
