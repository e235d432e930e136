// Package portal is a client for the REST interface of a Taverna Player
// portal.
//
// A Client lists the registered workflows, reads their run templates,
// submits runs and waits for them to finish. Results arrive as a zip bundle
// that is decoded into a tree of byte leaves and ordered lists:
//
//	c, err := portal.New("https://portal.example.org", "user", "secret")
//	run, err := c.RunWorkflow(ctx, 42, "analysis", map[string]any{"x": "1"})
//	out, err := run.Outputs(ctx)
//
// Calls block until they finish. Waiting ends on a terminal run state or
// when ctx is done; an abandoned run keeps executing on the portal.
package portal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chazuruo/tavernaplayer/internal/bundle"
	tperrors "github.com/chazuruo/tavernaplayer/internal/errors"
)

// DefaultPollInterval is the wait between two polls of a pending run.
const DefaultPollInterval = 5 * time.Second

// Client is a session with one portal. Its workflow and template caches live
// as long as the client.
type Client struct {
	baseURL  string
	username string
	password string

	httpClient   *http.Client
	logger       *slog.Logger
	pollInterval time.Duration
	sleep        func(ctx context.Context, d time.Duration) error
	display      Display

	mu        sync.Mutex
	workflows map[int]*Workflow
	templates map[int]*RunTemplate
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for every request.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithPollInterval sets the wait between polls of a pending run.
func WithPollInterval(d time.Duration) Option {
	return func(c *Client) { c.pollInterval = d }
}

// WithSleep replaces the wait between polls. The function must return early
// with an error when ctx is done.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) { c.sleep = sleep }
}

// WithDisplay sets where embedded run views are shown.
func WithDisplay(d Display) Option {
	return func(c *Client) { c.display = d }
}

// New creates a client for the portal at baseURL. No request is made; use
// CheckURL to verify the portal can be contacted.
func New(baseURL, username, password string, opts ...Option) (*Client, error) {
	if baseURL == "" || username == "" || password == "" {
		return nil, tperrors.Precondition("url, username and password must be specified")
	}
	u, err := url.Parse(baseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, tperrors.Precondition("url must be an absolute http or https URL; got %q", baseURL)
	}

	c := &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		username:     username,
		password:     password,
		httpClient:   http.DefaultClient,
		logger:       slog.New(slog.DiscardHandler),
		pollInterval: DefaultPollInterval,
		sleep:        sleepContext,
		display:      discardDisplay{},
		workflows:    map[int]*Workflow{},
		templates:    map[int]*RunTemplate{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.pollInterval <= 0 {
		return nil, tperrors.Precondition("poll interval must be > 0; got %s", c.pollInterval)
	}
	return c, nil
}

// BaseURL returns the portal URL without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

// CheckURL verifies that the portal answers at its base URL.
func (c *Client) CheckURL(ctx context.Context) error {
	_, status, err := c.do(ctx, http.MethodGet, c.baseURL+"/", nil, "*/*")
	if err != nil {
		return failure("contact portal", c.baseURL, tperrors.ErrUnreachable, status, err)
	}
	return nil
}

// Workflows refreshes the catalog and returns every registered workflow in
// ascending id order. Workflows the portal still reports keep their existing
// handle; the others are dropped from the cache together with their run
// templates.
func (c *Client) Workflows(ctx context.Context) ([]*Workflow, error) {
	data, status, err := c.do(ctx, http.MethodGet, c.baseURL+"/workflows", nil, jsonMIME)
	if err != nil {
		return nil, failure("list workflows", "", tperrors.ErrCatalogFetch, status, err)
	}

	var entries []catalogEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, &tperrors.PortalError{Op: "list workflows", Err: tperrors.Malformed("%v", err)}
	}
	descriptors := make([]Descriptor, 0, len(entries))
	for i, e := range entries {
		d, err := e.descriptor()
		if err != nil {
			return nil, &tperrors.PortalError{Op: "list workflows", Err: fmt.Errorf("entry %d: %w", i, err)}
		}
		descriptors = append(descriptors, d)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	current := make(map[int]*Workflow, len(descriptors))
	for _, d := range descriptors {
		if w, ok := c.workflows[d.ID]; ok {
			current[d.ID] = w
			continue
		}
		current[d.ID] = newWorkflow(c, d)
	}
	for id := range c.workflows {
		if _, ok := current[id]; !ok {
			delete(c.templates, id)
			c.logger.Debug("workflow removed from catalog", slog.Int("workflow_id", id))
		}
	}
	c.workflows = current

	list := make([]*Workflow, 0, len(current))
	for _, w := range current {
		list = append(list, w)
	}
	slices.SortFunc(list, func(a, b *Workflow) int { return a.ID - b.ID })
	return list, nil
}

// Workflow refreshes the catalog and returns the workflow with id.
func (c *Client) Workflow(ctx context.Context, id int) (*Workflow, error) {
	if id <= 0 {
		return nil, tperrors.Precondition("workflow id must be a positive integer; got %d", id)
	}
	if _, err := c.Workflows(ctx); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	w, ok := c.workflows[id]
	if !ok {
		return nil, &tperrors.PortalError{Op: "get workflow", ID: strconv.Itoa(id), Err: tperrors.ErrUnknownWorkflow}
	}
	return w, nil
}

// RunTemplate returns the run template of a workflow. Each template is
// fetched once per client.
func (c *Client) RunTemplate(ctx context.Context, workflowID int) (*RunTemplate, error) {
	if workflowID <= 0 {
		return nil, tperrors.Precondition("workflow id must be a positive integer; got %d", workflowID)
	}

	c.mu.Lock()
	t, ok := c.templates[workflowID]
	c.mu.Unlock()
	if ok {
		return t, nil
	}

	id := strconv.Itoa(workflowID)
	location := c.baseURL + "/runs/new?workflow_id=" + id
	data, status, err := c.do(ctx, http.MethodGet, location, nil, jsonMIME)
	if err != nil {
		return nil, failure("get run template", id, tperrors.ErrTemplateFetch, status, err)
	}

	var desc struct {
		Run json.RawMessage `json:"run"`
	}
	if err := json.Unmarshal(data, &desc); err != nil {
		return nil, &tperrors.PortalError{Op: "get run template", ID: id, Err: tperrors.Malformed("%v", err)}
	}
	if len(desc.Run) == 0 || isNull(desc.Run) {
		return nil, &tperrors.PortalError{Op: "get run template", ID: id, Err: tperrors.Malformed("no run in workflow description")}
	}
	t, err = NewRunTemplate(desc.Run)
	if err != nil {
		return nil, &tperrors.PortalError{Op: "get run template", ID: id, Err: err}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if cached, ok := c.templates[workflowID]; ok {
		return cached, nil
	}
	c.templates[workflowID] = t
	return t, nil
}

type runRequest struct {
	Run runContents `json:"run"`
}

type runContents struct {
	WorkflowID       int              `json:"workflow_id"`
	Name             string           `json:"name"`
	Embedded         string           `json:"embedded"`
	InputsAttributes []InputAttribute `json:"inputs_attributes,omitempty"`
}

// StartRun resolves inputs against the workflow's template and creates one
// remote run. The returned run is pending and has no outputs.
//
// Only declared ports are submitted. The caller's map is not modified.
func (c *Client) StartRun(ctx context.Context, workflowID int, name string, inputs map[string]any) (*Run, error) {
	t, err := c.RunTemplate(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	attrs, effective, err := t.Resolve(inputs)
	if err != nil {
		return nil, err
	}

	req := runRequest{Run: runContents{
		WorkflowID:       workflowID,
		Name:             name,
		Embedded:         "true",
		InputsAttributes: attrs,
	}}
	data, status, err := c.do(ctx, http.MethodPost, c.baseURL+"/runs", req, jsonMIME)
	if err != nil {
		var se statusError
		if errors.As(err, &se) {
			return nil, &tperrors.RunCreationError{Kind: tperrors.CreateFailed, Status: status}
		}
		return nil, &tperrors.RunCreationError{Kind: tperrors.CreateFailed, Err: err}
	}

	id, err := parseRunID(data)
	if err != nil {
		return nil, &tperrors.RunCreationError{Kind: tperrors.LocateFailed, Status: status, Err: err}
	}

	c.logger.Info("run created",
		slog.String("run_id", id.String()),
		slog.Int("workflow_id", workflowID),
		slog.String("name", name),
	)
	return newRun(c, id, workflowID, name, effective), nil
}

// parseRunID reads the id of a created run, sent as a number or a string.
func parseRunID(data []byte) (RunID, error) {
	var created struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(data, &created); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(created.ID) == 0 || isNull(created.ID) {
		return "", fmt.Errorf("response has no id")
	}

	var s string
	if err := json.Unmarshal(created.ID, &s); err == nil && s != "" {
		return RunID(s), nil
	}
	var n json.Number
	if err := json.Unmarshal(created.ID, &n); err == nil {
		return RunID(n.String()), nil
	}
	return "", fmt.Errorf("unusable id %s", created.ID)
}

// Run attaches a handle to an existing remote run so its results can be
// collected.
func (c *Client) Run(id string) (*Run, error) {
	if strings.TrimSpace(id) == "" {
		return nil, tperrors.Precondition("run id must be specified")
	}
	return newRun(c, RunID(id), 0, "", nil), nil
}

// RunWorkflow starts a run, shows it on the display and waits for its
// results. When waiting fails the run is returned with the error so its
// state can be inspected.
func (c *Client) RunWorkflow(ctx context.Context, workflowID int, name string, inputs map[string]any) (*Run, error) {
	run, err := c.StartRun(ctx, workflowID, name, inputs)
	if err != nil {
		return nil, err
	}
	c.ShowRun(run)
	if _, err := run.Outputs(ctx); err != nil {
		return run, err
	}
	return run, nil
}

// runInfo is the poll response of GET /runs/{id}. Pointers mark keys a
// finished run must carry.
type runInfo struct {
	State      *string `json:"state"`
	StartTime  string  `json:"start_time"`
	FinishTime string  `json:"finish_time"`
	OutputsZip *string `json:"outputs_zip"`
	Log        *string `json:"log"`
}

// WaitForResults polls run until it is finished or cancelled. A finished run
// gets its times, outputs and log; outputs are stored before the log is
// fetched. There is no attempt limit. When ctx is done the wait stops with
// ctx's error and the run stays pending on the portal.
func (c *Client) WaitForResults(ctx context.Context, run *Run) error {
	id := run.ID.String()
	location := c.baseURL + "/runs/" + url.PathEscape(id)

	for polls := 1; ; polls++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		data, status, err := c.do(ctx, http.MethodGet, location, nil, jsonMIME)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return failure("poll run", id, tperrors.ErrRunQuery, status, err)
		}

		var info runInfo
		if err := json.Unmarshal(data, &info); err != nil {
			return &tperrors.PortalError{Op: "poll run", ID: id, Err: tperrors.Malformed("%v", err)}
		}
		if info.State == nil {
			return &tperrors.PortalError{Op: "poll run", ID: id, Err: tperrors.Malformed("no state in run information")}
		}

		switch State(*info.State) {
		case StateFinished:
			run.State = StateFinished
			c.logger.Info("run finished", slog.String("run_id", id), slog.Int("polls", polls))
			return c.collect(ctx, run, info)
		case StateCancelled:
			run.State = StateCancelled
			c.logger.Info("run cancelled", slog.String("run_id", id), slog.Int("polls", polls))
			return &tperrors.PortalError{Op: "poll run", ID: id, Err: tperrors.ErrRunCancelled}
		}

		c.logger.Debug("run not finished",
			slog.String("run_id", id),
			slog.String("state", *info.State),
			slog.Duration("retry_in", c.pollInterval),
		)
		if err := c.sleep(ctx, c.pollInterval); err != nil {
			return err
		}
	}
}

// collect fetches and stores the results of a finished run.
func (c *Client) collect(ctx context.Context, run *Run, info runInfo) error {
	id := run.ID.String()
	run.StartTime = c.parseTime(id, "start_time", info.StartTime)
	run.FinishTime = c.parseTime(id, "finish_time", info.FinishTime)

	if info.OutputsZip == nil || info.Log == nil {
		return &tperrors.PortalError{Op: "poll run", ID: id, Err: tperrors.Malformed("finished run lacks outputs_zip or log")}
	}

	archive, status, err := c.do(ctx, http.MethodGet, c.baseURL+*info.OutputsZip, nil, binaryMIME)
	if err != nil {
		return failure("fetch outputs", id, tperrors.ErrRunOutput, status, err)
	}
	out, err := bundle.Decode(archive)
	if err != nil {
		return &tperrors.PortalError{Op: "decode outputs", ID: id, Err: fmt.Errorf("%w: %w", tperrors.ErrRunOutput, err)}
	}
	run.setOutputs(out)

	logText, status, err := c.do(ctx, http.MethodGet, c.baseURL+*info.Log, nil, binaryMIME)
	if err != nil {
		return failure("fetch log", id, tperrors.ErrRunLog, status, err)
	}
	run.Log = string(logText)
	return nil
}

func (c *Client) parseTime(id, field, value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		c.logger.Warn("unparsable run time",
			slog.String("run_id", id),
			slog.String("field", field),
			slog.String("value", value),
		)
		return time.Time{}
	}
	return t
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
