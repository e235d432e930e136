// Package export renders finished runs as documents and writes decoded
// outputs to disk.
package export

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"text/template"
	"time"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/chazuruo/tavernaplayer/internal/bundle"
	"github.com/chazuruo/tavernaplayer/internal/portal"
)

// Format represents the export format.
type Format string

const (
	// FormatMarkdown exports a readable run report.
	FormatMarkdown Format = "md"
	// FormatYAML exports as YAML.
	FormatYAML Format = "yaml"
	// FormatJSON exports as JSON.
	FormatJSON Format = "json"
)

// Binary is a leaf that is not valid UTF-8 text.
type Binary struct {
	Encoding string `json:"encoding" yaml:"encoding"`
	Data     string `json:"data" yaml:"data"`
}

// Document is the exported form of a run. Output leaves are strings when
// they hold UTF-8 text and Binary values otherwise.
type Document struct {
	RunID      string         `json:"run_id" yaml:"run_id"`
	WorkflowID int            `json:"workflow_id,omitempty" yaml:"workflow_id,omitempty"`
	Name       string         `json:"name,omitempty" yaml:"name,omitempty"`
	State      string         `json:"state" yaml:"state"`
	StartTime  *time.Time     `json:"start_time,omitempty" yaml:"start_time,omitempty"`
	FinishTime *time.Time     `json:"finish_time,omitempty" yaml:"finish_time,omitempty"`
	Inputs     map[string]any `json:"inputs,omitempty" yaml:"inputs,omitempty"`
	Outputs    map[string]any `json:"outputs" yaml:"outputs"`
	Log        string         `json:"log,omitempty" yaml:"log,omitempty"`
}

// NewDocument builds the document for run with its decoded outputs.
func NewDocument(run *portal.Run, out bundle.Outputs) *Document {
	doc := &Document{
		RunID:      run.ID.String(),
		WorkflowID: run.WorkflowID,
		Name:       run.Name,
		State:      string(run.State),
		Inputs:     run.Inputs,
		Outputs:    make(map[string]any, len(out)),
		Log:        run.Log,
	}
	if !run.StartTime.IsZero() {
		t := run.StartTime
		doc.StartTime = &t
	}
	if !run.FinishTime.IsZero() {
		t := run.FinishTime
		doc.FinishTime = &t
	}
	for port, v := range out {
		doc.Outputs[port] = documentValue(v)
	}
	return doc
}

func documentValue(v any) any {
	switch v := v.(type) {
	case []byte:
		if utf8.Valid(v) {
			return string(v)
		}
		return Binary{Encoding: "base64", Data: base64.StdEncoding.EncodeToString(v)}
	case []any:
		list := make([]any, len(v))
		for i, e := range v {
			list[i] = documentValue(e)
		}
		return list
	default:
		return v
	}
}

// Exporter renders run documents in one format.
type Exporter struct {
	format   Format
	outPath  string
	template *template.Template
}

// Options contains export options.
type Options struct {
	Format Format
	// Out is a file to write the rendered document to. Empty or "-" only
	// returns it.
	Out string
	// CustomTemplate is a text/template file used for Markdown reports.
	CustomTemplate string
}

// NewExporter creates a new exporter.
func NewExporter(opts Options) (*Exporter, error) {
	e := &Exporter{
		format:  opts.Format,
		outPath: opts.Out,
	}

	switch e.format {
	case FormatJSON, FormatYAML:
		if opts.CustomTemplate != "" {
			return nil, fmt.Errorf("custom templates apply to %s only", FormatMarkdown)
		}
	case FormatMarkdown:
		tmpl, err := loadTemplate(opts.CustomTemplate)
		if err != nil {
			return nil, err
		}
		e.template = tmpl
	default:
		return nil, fmt.Errorf("unsupported format: %s", e.format)
	}

	return e, nil
}

var templateFuncs = template.FuncMap{
	"summary": Summary,
	"join":    strings.Join,
}

func loadTemplate(customPath string) (*template.Template, error) {
	content := builtinMarkdownTemplate
	if customPath != "" {
		data, err := os.ReadFile(customPath)
		if err != nil {
			return nil, fmt.Errorf("reading template file: %w", err)
		}
		content = string(data)
	}

	tmpl, err := template.New("export").Funcs(templateFuncs).Parse(content)
	if err != nil {
		return nil, fmt.Errorf("parsing template: %w", err)
	}
	return tmpl, nil
}

// Export renders doc and, when an output path is set, writes it there.
func (e *Exporter) Export(doc *Document) (string, error) {
	var (
		output []byte
		err    error
	)

	switch e.format {
	case FormatJSON:
		output, err = json.MarshalIndent(doc, "", "  ")
		output = append(output, '\n')
	case FormatYAML:
		output, err = yaml.Marshal(doc)
	case FormatMarkdown:
		var buf bytes.Buffer
		err = e.template.Execute(&buf, templateData(doc))
		output = buf.Bytes()
	}
	if err != nil {
		return "", fmt.Errorf("rendering %s: %w", e.format, err)
	}

	if e.outPath != "" && e.outPath != "-" {
		if err := os.WriteFile(e.outPath, output, 0644); err != nil {
			return "", fmt.Errorf("writing output file: %w", err)
		}
	}

	return string(output), nil
}

// templateData flattens doc for the Markdown template.
func templateData(doc *Document) map[string]interface{} {
	ports := make([]string, 0, len(doc.Outputs))
	for p := range doc.Outputs {
		ports = append(ports, p)
	}
	slices.Sort(ports)

	outputs := make([]map[string]interface{}, len(ports))
	for i, p := range ports {
		outputs[i] = map[string]interface{}{
			"name":  p,
			"value": doc.Outputs[p],
		}
	}

	inputNames := make([]string, 0, len(doc.Inputs))
	for name := range doc.Inputs {
		inputNames = append(inputNames, name)
	}
	slices.Sort(inputNames)
	inputs := make([]map[string]interface{}, len(inputNames))
	for i, name := range inputNames {
		inputs[i] = map[string]interface{}{
			"name":  name,
			"value": fmt.Sprint(doc.Inputs[name]),
		}
	}

	data := map[string]interface{}{
		"RunID":      doc.RunID,
		"WorkflowID": doc.WorkflowID,
		"Name":       doc.Name,
		"State":      doc.State,
		"Inputs":     inputs,
		"Outputs":    outputs,
		"Log":        strings.TrimSpace(doc.Log),
	}
	if doc.StartTime != nil {
		data["StartTime"] = doc.StartTime.Format(time.RFC3339)
	}
	if doc.FinishTime != nil {
		data["FinishTime"] = doc.FinishTime.Format(time.RFC3339)
	}
	return data
}

// Summary describes a document value in one line: the text of short leaves,
// the size of long or binary ones and the length of lists.
func Summary(v any) string {
	const maxText = 60

	switch v := v.(type) {
	case nil:
		return "(empty)"
	case string:
		if len(v) > maxText || strings.ContainsRune(v, '\n') {
			return fmt.Sprintf("text, %d bytes", len(v))
		}
		return v
	case []byte:
		return Summary(documentValue(v))
	case Binary:
		n, err := base64.StdEncoding.DecodeString(v.Data)
		if err != nil {
			return "binary"
		}
		return fmt.Sprintf("binary, %d bytes", len(n))
	case []any:
		return fmt.Sprintf("list of %d", len(v))
	default:
		return fmt.Sprint(v)
	}
}

// WriteTree writes decoded outputs under dir and returns the written paths
// in order. A leaf port becomes the file dir/<port>; a list becomes a
// directory whose elements are named by 1-based position. Gaps are skipped.
func WriteTree(dir string, out bundle.Outputs) ([]string, error) {
	var written []string
	for _, port := range out.Ports() {
		if port == "" || strings.ContainsAny(port, `/\`) || port == ".." {
			return written, fmt.Errorf("unsafe port name %q", port)
		}
		paths, err := writeValue(filepath.Join(dir, port), out[port])
		written = append(written, paths...)
		if err != nil {
			return written, err
		}
	}
	return written, nil
}

func writeValue(path string, v any) ([]string, error) {
	switch v := v.(type) {
	case nil:
		return nil, nil
	case []byte:
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating directory: %w", err)
		}
		if err := os.WriteFile(path, v, 0644); err != nil {
			return nil, fmt.Errorf("writing %s: %w", path, err)
		}
		return []string{path}, nil
	case []any:
		if err := os.MkdirAll(path, 0755); err != nil {
			return nil, fmt.Errorf("creating directory: %w", err)
		}
		var written []string
		for i, e := range v {
			paths, err := writeValue(filepath.Join(path, strconv.Itoa(i+1)), e)
			written = append(written, paths...)
			if err != nil {
				return written, err
			}
		}
		return written, nil
	default:
		return nil, fmt.Errorf("unexpected value %T at %s", v, path)
	}
}

// builtinMarkdownTemplate is the default Markdown report.
const builtinMarkdownTemplate = "# Run {{.RunID}}{{if .Name}}: {{.Name}}{{end}}\n\n" +
	"**State:** {{.State}}\n" +
	"{{if .WorkflowID}}**Workflow:** {{.WorkflowID}}\n{{end}}" +
	"{{if .StartTime}}**Started:** {{.StartTime}}\n{{end}}" +
	"{{if .FinishTime}}**Finished:** {{.FinishTime}}\n{{end}}" +
	"{{if .Inputs}}\n## Inputs\n\n{{range .Inputs}}- **{{.name}}**: {{.value}}\n{{end}}{{end}}" +
	"\n## Outputs\n\n{{range .Outputs}}- **{{.name}}**: {{summary .value}}\n{{else}}No outputs.\n{{end}}" +
	"{{if .Log}}\n## Log\n\n```\n{{.Log}}\n```\n{{end}}" +
	"\n---\n*Generated by tavernaplayer*\n"
