package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/rodaine/table"
	"gopkg.in/yaml.v3"

	"github.com/chazuruo/tavernaplayer/internal/portal"
)

// OutputFormat defines the output format for listing commands.
type OutputFormat string

const (
	FormatTable OutputFormat = "table"
	FormatJSON  OutputFormat = "json"
	FormatYAML  OutputFormat = "yaml"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	failureStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	faintStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// newTable creates a table with styled headers writing to w.
func newTable(w io.Writer, columns ...interface{}) table.Table {
	headerFmt := func(format string, vals ...interface{}) string {
		return headerStyle.Render(fmt.Sprintf(format, vals...))
	}
	return table.New(columns...).WithHeaderFormatter(headerFmt).WithWriter(w)
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// printYAML writes v as YAML.
func printYAML(w io.Writer, v any) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}
	return encoder.Close()
}

// stateLine renders a run state with its color.
func stateLine(run *portal.Run) string {
	label := fmt.Sprintf("run %s: %s", run.ID, run.State)
	switch run.State {
	case portal.StateFinished:
		return successStyle.Render("✓ " + label)
	case portal.StateCancelled:
		return failureStyle.Render("✗ " + label)
	default:
		return faintStyle.Render(label)
	}
}
