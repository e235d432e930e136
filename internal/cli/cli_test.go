package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/chazuruo/tavernaplayer/internal/config"
	tperrors "github.com/chazuruo/tavernaplayer/internal/errors"
	"github.com/chazuruo/tavernaplayer/internal/index"
	"github.com/chazuruo/tavernaplayer/internal/testutil"
)

const (
	testUser     = "alice"
	testPassword = "s3cret"
)

// setupPortal starts a fake portal with one runnable workflow and writes a
// config pointing at it. TUI mode is disabled for the test.
func setupPortal(t *testing.T) (*testutil.FakePortal, string) {
	t.Helper()

	prev := IsNoTUI()
	SetNoTUI(true)
	t.Cleanup(func() { SetNoTUI(prev) })

	p := testutil.NewFakePortal(t, testUser, testPassword)
	p.Catalog = []map[string]any{
		{"id": 5, "category": "Workflow", "description": "Ecological niche modelling", "title": "Species Distribution"},
		{"id": 9, "category": "Blueprint", "description": "cleaning", "title": "Data Refinement"},
	}
	p.Templates[5] = map[string]any{
		"inputs_attributes": []any{
			map[string]any{"name": "a"},
			map[string]any{"name": "b", "value": "dflt"},
		},
	}
	p.Outputs = testutil.BuildZip(t,
		testutil.ZipEntry{Name: "A/1.txt", Content: "first"},
		testutil.ZipEntry{Name: "A/2.txt", Content: "second"},
		testutil.ZipEntry{Name: "B.txt", Content: "single"},
	)
	p.Log = "workflow finished"

	cfg := config.DefaultConfig()
	cfg.Portal.URL = p.URL
	cfg.Portal.Username = testUser
	cfg.Portal.Password = testPassword

	dir := t.TempDir()
	cfg.Run.IndexPath = filepath.Join(dir, "runs.json")
	configPath := filepath.Join(dir, "config.toml")
	if err := config.Write(configPath, cfg); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return p, configPath
}

func newRunOptions(configPath string) (*RunOptions, *bytes.Buffer, *bytes.Buffer) {
	var out, errOut bytes.Buffer
	opts := &RunOptions{
		PortalOptions: PortalOptions{ConfigPath: configPath},
		ReportOptions: ReportOptions{Format: "table", Out: &out, ErrOut: &errOut},
		WorkflowID:    5,
	}
	return opts, &out, &errOut
}

func TestWorkflows_Table(t *testing.T) {
	_, configPath := setupPortal(t)

	var out bytes.Buffer
	opts := &WorkflowsOptions{PortalOptions: PortalOptions{ConfigPath: configPath}, Format: "table", Out: &out}
	if err := runWorkflows(context.Background(), opts); err != nil {
		t.Fatalf("runWorkflows() error = %v", err)
	}

	got := out.String()
	for _, want := range []string{"Species Distribution", "Data Refinement", "Total: 2 workflow(s)"} {
		if !strings.Contains(got, want) {
			t.Errorf("output should contain %q, got:\n%s", want, got)
		}
	}
}

func TestWorkflows_JSONWithCategory(t *testing.T) {
	_, configPath := setupPortal(t)

	var out bytes.Buffer
	opts := &WorkflowsOptions{
		PortalOptions: PortalOptions{ConfigPath: configPath},
		Category:      "blueprint",
		Format:        "json",
		Out:           &out,
	}
	if err := runWorkflows(context.Background(), opts); err != nil {
		t.Fatalf("runWorkflows() error = %v", err)
	}

	var decoded []map[string]any
	if err := json.Unmarshal(out.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out.String())
	}
	if len(decoded) != 1 || decoded[0]["title"] != "Data Refinement" {
		t.Errorf("unexpected workflows: %v", decoded)
	}
}

func TestWorkflows_InvalidFormat(t *testing.T) {
	_, configPath := setupPortal(t)

	opts := &WorkflowsOptions{PortalOptions: PortalOptions{ConfigPath: configPath}, Format: "xml", Out: &bytes.Buffer{}}
	err := runWorkflows(context.Background(), opts)
	if err == nil || !strings.Contains(err.Error(), "invalid format") {
		t.Errorf("expected invalid format error, got %v", err)
	}
}

func TestTemplate_Table(t *testing.T) {
	_, configPath := setupPortal(t)

	var out bytes.Buffer
	opts := &TemplateOptions{PortalOptions: PortalOptions{ConfigPath: configPath}, WorkflowID: 5, Format: "table", Out: &out}
	if err := runTemplate(context.Background(), opts); err != nil {
		t.Fatalf("runTemplate() error = %v", err)
	}

	got := out.String()
	if !strings.Contains(got, "(required)") || !strings.Contains(got, "dflt") {
		t.Errorf("template table missing ports:\n%s", got)
	}
}

func TestTemplate_YAML(t *testing.T) {
	_, configPath := setupPortal(t)

	var out bytes.Buffer
	opts := &TemplateOptions{PortalOptions: PortalOptions{ConfigPath: configPath}, WorkflowID: 5, Format: "yaml", Out: &out}
	if err := runTemplate(context.Background(), opts); err != nil {
		t.Fatalf("runTemplate() error = %v", err)
	}

	var ports []map[string]any
	if err := yaml.Unmarshal(out.Bytes(), &ports); err != nil {
		t.Fatalf("output is not YAML: %v", err)
	}
	if len(ports) != 2 || ports[0]["name"] != "a" || ports[1]["default"] != "dflt" {
		t.Errorf("unexpected ports: %v", ports)
	}
}

func TestRun_NonInteractive(t *testing.T) {
	p, configPath := setupPortal(t)
	outDir := filepath.Join(t.TempDir(), "results")

	opts, out, errOut := newRunOptions(configPath)
	opts.Inputs = []string{"a=x"}
	opts.Name = "analysis"
	opts.Format = "json"
	opts.FormatSet = true
	opts.OutputDir = outDir

	if err := runRun(context.Background(), opts); err != nil {
		t.Fatalf("runRun() error = %v", err)
	}

	created := p.Created()
	if len(created) != 1 {
		t.Fatalf("expected one run creation, got %d", len(created))
	}
	run := created[0]["run"].(map[string]any)
	if run["name"] != "analysis" || run["workflow_id"] != float64(5) {
		t.Errorf("unexpected run body: %v", run)
	}
	attrs := run["inputs_attributes"].([]any)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 input attributes, got %v", attrs)
	}
	if b := attrs[1].(map[string]any); b["name"] != "b" || b["value"] != "dflt" {
		t.Errorf("default not submitted: %v", b)
	}

	var doc map[string]any
	if err := json.Unmarshal(out.Bytes(), &doc); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out.String())
	}
	if doc["run_id"] != "7" || doc["state"] != "finished" {
		t.Errorf("unexpected document: %v", doc)
	}
	outputs := doc["outputs"].(map[string]any)
	if got := outputs["A"].([]any); len(got) != 2 || got[1] != "second" {
		t.Errorf("unexpected A output: %v", got)
	}

	data, err := os.ReadFile(filepath.Join(outDir, "A", "1"))
	if err != nil {
		t.Fatalf("output tree not written: %v", err)
	}
	if string(data) != "first" {
		t.Errorf("A/1 = %q, want %q", data, "first")
	}

	if !strings.Contains(errOut.String(), "Started run 7") {
		t.Errorf("expected start line, got:\n%s", errOut.String())
	}
	if n := p.Count("GET", "/runs/7"); n != 1 {
		t.Errorf("expected one poll of run 7, got %d", n)
	}
	if n := p.Count("GET", "/runs/7/download/outputs"); n != 1 {
		t.Errorf("expected one archive download, got %d", n)
	}
}

func TestRun_TimeoutKeepsRunRecorded(t *testing.T) {
	p, configPath := setupPortal(t)
	p.States = []string{"pending"}

	opts, _, errOut := newRunOptions(configPath)
	opts.Inputs = []string{"a=x"}
	opts.Timeout = 50 * time.Millisecond

	err := runRun(context.Background(), opts)
	if err == nil || !strings.Contains(err.Error(), "timed out waiting for run 7") {
		t.Fatalf("expected timeout error, got %v", err)
	}
	if !strings.Contains(errOut.String(), "Started run 7") {
		t.Errorf("start line should precede the wait, got:\n%s", errOut.String())
	}

	idx, err := index.Load(filepath.Join(filepath.Dir(configPath), "runs.json"))
	if err != nil {
		t.Fatalf("index.Load() error = %v", err)
	}
	if e := idx.Find(p.URL, "7"); e == nil || e.State != "pending" {
		t.Errorf("expected run 7 recorded as pending, got %+v", e)
	}
}

func TestRun_TableOutput(t *testing.T) {
	_, configPath := setupPortal(t)

	opts, out, _ := newRunOptions(configPath)
	opts.Inputs = []string{"a=x"}

	if err := runRun(context.Background(), opts); err != nil {
		t.Fatalf("runRun() error = %v", err)
	}

	got := out.String()
	for _, want := range []string{"PORT", "list of 2", "single"} {
		if !strings.Contains(got, want) {
			t.Errorf("output should contain %q, got:\n%s", want, got)
		}
	}
}

func TestRun_DefaultName(t *testing.T) {
	p, configPath := setupPortal(t)

	opts, _, _ := newRunOptions(configPath)
	opts.Inputs = []string{"a=x"}
	opts.Detach = true

	if err := runRun(context.Background(), opts); err != nil {
		t.Fatalf("runRun() error = %v", err)
	}

	name := p.Created()[0]["run"].(map[string]any)["name"].(string)
	if !strings.HasPrefix(name, "species-distribution-") {
		t.Errorf("run name = %q, want species-distribution- prefix", name)
	}
}

func TestRun_MissingInputWithoutTUI(t *testing.T) {
	p, configPath := setupPortal(t)

	opts, _, _ := newRunOptions(configPath)
	err := runRun(context.Background(), opts)
	if !tperrors.IsMissingInput(err) {
		t.Fatalf("expected missing input error, got %v", err)
	}
	if n := p.Count("POST", "/runs"); n != 0 {
		t.Errorf("no run should be created, got %d POSTs", n)
	}
}

func TestRun_RequiresWorkflowIDWithoutTUI(t *testing.T) {
	_, configPath := setupPortal(t)

	opts, _, _ := newRunOptions(configPath)
	opts.WorkflowID = 0
	err := runRun(context.Background(), opts)
	if err == nil || !strings.Contains(err.Error(), "workflow id is required") {
		t.Errorf("expected workflow id error, got %v", err)
	}
}

func TestRun_UnknownWorkflow(t *testing.T) {
	_, configPath := setupPortal(t)

	opts, _, _ := newRunOptions(configPath)
	opts.WorkflowID = 42
	if err := runRun(context.Background(), opts); !tperrors.IsUnknownWorkflow(err) {
		t.Errorf("expected unknown workflow error, got %v", err)
	}
}

func TestRun_DetachAndEmbed(t *testing.T) {
	p, configPath := setupPortal(t)

	opts, out, errOut := newRunOptions(configPath)
	opts.Inputs = []string{"a=x"}
	opts.Detach = true
	opts.Embed = true

	if err := runRun(context.Background(), opts); err != nil {
		t.Fatalf("runRun() error = %v", err)
	}

	if n := p.Count("GET", "/runs/7"); n != 0 {
		t.Errorf("detached run should not be polled, got %d polls", n)
	}
	want := `<iframe src="` + p.URL + `/runs/7?embedded=true"`
	if !strings.Contains(out.String(), want) {
		t.Errorf("expected iframe %q, got:\n%s", want, out.String())
	}
	if !strings.Contains(errOut.String(), "tavernaplayer results 7") {
		t.Errorf("expected hint for results, got:\n%s", errOut.String())
	}
}

func TestRun_Cancelled(t *testing.T) {
	p, configPath := setupPortal(t)
	p.States = []string{"cancelled"}

	opts, _, _ := newRunOptions(configPath)
	opts.Inputs = []string{"a=x"}

	if err := runRun(context.Background(), opts); !tperrors.IsRunCancelled(err) {
		t.Errorf("expected cancelled error, got %v", err)
	}
	if n := p.Count("GET", "/runs/7/download/outputs"); n != 0 {
		t.Errorf("outputs of a cancelled run should not be fetched, got %d", n)
	}

	idx, err := index.Load(filepath.Join(filepath.Dir(configPath), "runs.json"))
	if err != nil {
		t.Fatalf("index.Load() error = %v", err)
	}
	if e := idx.Find(p.URL, "7"); e == nil || e.State != "cancelled" {
		t.Errorf("expected run 7 recorded as cancelled, got %+v", e)
	}
}

func TestResults_YAML(t *testing.T) {
	p, configPath := setupPortal(t)

	var out bytes.Buffer
	opts := &ResultsOptions{
		PortalOptions: PortalOptions{ConfigPath: configPath},
		ReportOptions: ReportOptions{Format: "yaml", FormatSet: true, Out: &out, ErrOut: &bytes.Buffer{}},
		RunID:         "7",
	}
	if err := runResults(context.Background(), opts); err != nil {
		t.Fatalf("runResults() error = %v", err)
	}

	var doc map[string]any
	if err := yaml.Unmarshal(out.Bytes(), &doc); err != nil {
		t.Fatalf("output is not YAML: %v", err)
	}
	if doc["log"] != "workflow finished" {
		t.Errorf("unexpected log: %v", doc["log"])
	}
	if n := p.Count("POST", "/runs"); n != 0 {
		t.Errorf("results must not create runs, got %d", n)
	}
}

func TestRunsIndex_RecordsAndResumes(t *testing.T) {
	p, configPath := setupPortal(t)

	opts, _, _ := newRunOptions(configPath)
	opts.Inputs = []string{"a=x"}
	opts.Name = "analysis"
	opts.Detach = true
	if err := runRun(context.Background(), opts); err != nil {
		t.Fatalf("runRun() error = %v", err)
	}

	listRuns := func() []map[string]any {
		t.Helper()
		var out bytes.Buffer
		ro := &RunsOptions{PortalOptions: PortalOptions{ConfigPath: configPath}, Format: "json", Out: &out}
		if err := runRuns(ro); err != nil {
			t.Fatalf("runRuns() error = %v", err)
		}
		var runs []map[string]any
		if err := json.Unmarshal(out.Bytes(), &runs); err != nil {
			t.Fatalf("output is not JSON: %v\n%s", err, out.String())
		}
		return runs
	}

	runs := listRuns()
	if len(runs) != 1 || runs[0]["run_id"] != "7" || runs[0]["name"] != "analysis" || runs[0]["state"] != "pending" {
		t.Fatalf("unexpected runs after start: %v", runs)
	}
	if runs[0]["workflow_title"] != "Species Distribution" {
		t.Errorf("workflow title not recorded: %v", runs[0])
	}

	var errOut bytes.Buffer
	results := &ResultsOptions{
		PortalOptions: PortalOptions{ConfigPath: configPath},
		ReportOptions: ReportOptions{Format: "table", Out: &bytes.Buffer{}, ErrOut: &errOut},
	}
	if err := runResults(context.Background(), results); err != nil {
		t.Fatalf("runResults() error = %v", err)
	}
	if !strings.Contains(errOut.String(), "Using run 7 (analysis)") {
		t.Errorf("expected latest run to be used, got:\n%s", errOut.String())
	}
	if n := p.Count("GET", "/runs/7"); n != 1 {
		t.Errorf("expected one poll of run 7, got %d", n)
	}

	runs = listRuns()
	if runs[0]["state"] != "finished" {
		t.Errorf("state not updated: %v", runs[0])
	}
}

func TestResults_NoRecordedRuns(t *testing.T) {
	_, configPath := setupPortal(t)

	opts := &ResultsOptions{PortalOptions: PortalOptions{ConfigPath: configPath}}
	err := runResults(context.Background(), opts)
	if err == nil || !strings.Contains(err.Error(), "no runs recorded") {
		t.Errorf("expected no runs error, got %v", err)
	}
}

func TestRuns_EmptyTable(t *testing.T) {
	_, configPath := setupPortal(t)

	var out bytes.Buffer
	opts := &RunsOptions{PortalOptions: PortalOptions{ConfigPath: configPath}, Format: "table", Out: &out}
	if err := runRuns(opts); err != nil {
		t.Fatalf("runRuns() error = %v", err)
	}
	if !strings.Contains(out.String(), "No runs recorded.") {
		t.Errorf("unexpected output: %s", out.String())
	}
}

func TestResults_BlankRunID(t *testing.T) {
	_, configPath := setupPortal(t)

	opts := &ResultsOptions{PortalOptions: PortalOptions{ConfigPath: configPath}, RunID: "  "}
	if err := runResults(context.Background(), opts); !tperrors.IsPrecondition(err) {
		t.Errorf("expected precondition error, got %v", err)
	}
}

func TestEmbed(t *testing.T) {
	p, configPath := setupPortal(t)

	var out bytes.Buffer
	opts := &EmbedOptions{PortalOptions: PortalOptions{ConfigPath: configPath}, RunID: "10", Out: &out}
	if err := runEmbed(opts); err != nil {
		t.Fatalf("runEmbed() error = %v", err)
	}

	want := `<iframe src="` + p.URL + `/runs/10?embedded=true" width=1200px height=900px></iframe>` + "\n"
	if out.String() != want {
		t.Errorf("embed output = %q, want %q", out.String(), want)
	}
	if len(p.Requests()) != 0 {
		t.Errorf("embed should not contact the portal")
	}
}

func TestPing(t *testing.T) {
	_, configPath := setupPortal(t)

	var out bytes.Buffer
	opts := &PingOptions{PortalOptions: PortalOptions{ConfigPath: configPath}, Out: &out}
	if err := runPing(context.Background(), opts); err != nil {
		t.Fatalf("runPing() error = %v", err)
	}
	if !strings.Contains(out.String(), "portal reachable") {
		t.Errorf("unexpected output: %s", out.String())
	}
}

func TestPing_WrongUsername(t *testing.T) {
	_, configPath := setupPortal(t)

	opts := &PingOptions{PortalOptions: PortalOptions{ConfigPath: configPath, Username: "mallory"}, Out: &bytes.Buffer{}}
	if err := runPing(context.Background(), opts); !tperrors.IsUnreachable(err) {
		t.Errorf("expected unreachable error, got %v", err)
	}
}

func TestConnect_NoPassword(t *testing.T) {
	SetNoTUI(true)
	t.Cleanup(func() { SetNoTUI(false) })
	t.Setenv("TAVERNA_PASSWORD", "")

	cfg := config.DefaultConfig()
	cfg.Portal.URL = "https://portal.example.org"
	cfg.Portal.Username = testUser
	configPath := filepath.Join(t.TempDir(), "config.toml")
	if err := config.Write(configPath, cfg); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	opts := &PortalOptions{ConfigPath: configPath}
	_, _, err := opts.connect()
	if err == nil || !strings.Contains(err.Error(), "TAVERNA_PASSWORD") {
		t.Errorf("expected missing password error, got %v", err)
	}
}

func TestConnect_NoConfig(t *testing.T) {
	SetNoTUI(true)
	t.Cleanup(func() { SetNoTUI(false) })

	opts := &PortalOptions{ConfigPath: filepath.Join(t.TempDir(), "missing.toml")}
	_, _, err := opts.connect()
	if err == nil || !strings.Contains(err.Error(), "tavernaplayer init") {
		t.Errorf("expected hint to run init, got %v", err)
	}
}

func TestLoadInputs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inputs.yaml")
	if err := os.WriteFile(path, []byte("species: Mola_mola\nyears: 10\n"), 0644); err != nil {
		t.Fatalf("failed to write inputs file: %v", err)
	}

	inputs, err := loadInputs(path, []string{"species=Thunnus", "note=a=b"})
	if err != nil {
		t.Fatalf("loadInputs() error = %v", err)
	}
	if inputs["species"] != "Thunnus" {
		t.Errorf("flags should win over the file, got %v", inputs["species"])
	}
	if inputs["years"] != 10 {
		t.Errorf("years = %v, want 10", inputs["years"])
	}
	if inputs["note"] != "a=b" {
		t.Errorf("note = %v, want a=b", inputs["note"])
	}

	for _, bad := range []string{"novalue", "=x"} {
		if _, err := loadInputs("", []string{bad}); err == nil {
			t.Errorf("loadInputs(%q) expected error", bad)
		}
	}
}

func TestVersion(t *testing.T) {
	info := newBuildInfo("1.2.3", "abc", "today", "unknown")

	var out bytes.Buffer
	if err := runVersion(&VersionOptions{Short: true, Out: &out}, info); err != nil {
		t.Fatalf("runVersion() error = %v", err)
	}
	if out.String() != "1.2.3\n" {
		t.Errorf("short version = %q", out.String())
	}

	out.Reset()
	if err := runVersion(&VersionOptions{Format: "json", Out: &out}, info); err != nil {
		t.Fatalf("runVersion() error = %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(out.Bytes(), &doc); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if doc["commit"] != "abc" || doc["platform"] == "" {
		t.Errorf("unexpected build info: %v", doc)
	}
	if _, ok := doc["built_by"]; ok {
		t.Errorf("unknown builder should be omitted: %v", doc)
	}

	out.Reset()
	if err := runVersion(&VersionOptions{Format: "table", Out: &out}, info); err != nil {
		t.Fatalf("runVersion() error = %v", err)
	}
	if !strings.HasPrefix(out.String(), "tavernaplayer 1.2.3 (") {
		t.Errorf("unexpected table output:\n%s", out.String())
	}

	if err := runVersion(&VersionOptions{Format: "xml", Out: &out}, info); err == nil {
		t.Error("expected error for invalid format")
	}
}
