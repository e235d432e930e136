package portal

import (
	"bytes"
	"encoding/json"
	"maps"

	tperrors "github.com/chazuruo/tavernaplayer/internal/errors"
)

// Port is one declared input of a workflow.
type Port struct {
	Name       string `json:"name" yaml:"name"`
	Default    any    `json:"default,omitempty" yaml:"default,omitempty"`
	HasDefault bool   `json:"has_default" yaml:"has_default"`
}

// InputAttribute is one name/value pair submitted with a new run.
type InputAttribute struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// RunTemplate lists the input ports a workflow expects, in the order the
// portal declared them. A RunTemplate is not modified after construction.
type RunTemplate struct {
	ports []Port
}

// NewRunTemplate builds a template from the "run" object of a run template
// response. A description without inputs_attributes has no ports.
func NewRunTemplate(run json.RawMessage) (*RunTemplate, error) {
	var desc struct {
		InputsAttributes []map[string]json.RawMessage `json:"inputs_attributes"`
	}
	if err := json.Unmarshal(run, &desc); err != nil {
		return nil, tperrors.Malformed("run description: %v", err)
	}

	t := &RunTemplate{}
	index := map[string]int{}
	for i, attr := range desc.InputsAttributes {
		rawName, ok := attr["name"]
		if !ok {
			return nil, tperrors.Malformed("input attribute %d has no name", i)
		}
		var name string
		if err := json.Unmarshal(rawName, &name); err != nil {
			return nil, tperrors.Malformed("input attribute %d name: %v", i, err)
		}

		port := Port{Name: name}
		if rawValue, ok := attr["value"]; ok && !isNull(rawValue) {
			if err := json.Unmarshal(rawValue, &port.Default); err != nil {
				return nil, tperrors.Malformed("input %s default: %v", name, err)
			}
			port.HasDefault = true
		}

		// A repeated name keeps its first position and its last value.
		if at, seen := index[name]; seen {
			t.ports[at] = port
			continue
		}
		index[name] = len(t.ports)
		t.ports = append(t.ports, port)
	}
	return t, nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// Ports returns a copy of the declared ports.
func (t *RunTemplate) Ports() []Port {
	ports := make([]Port, len(t.ports))
	for i, p := range t.ports {
		p.Default = cloneValue(p.Default)
		ports[i] = p
	}
	return ports
}

// Port looks up a declared port by name.
func (t *RunTemplate) Port(name string) (Port, bool) {
	for _, p := range t.ports {
		if p.Name == name {
			p.Default = cloneValue(p.Default)
			return p, true
		}
	}
	return Port{}, false
}

// Missing returns the ports that inputs leaves without a value and that have
// no default.
func (t *RunTemplate) Missing(inputs map[string]any) []string {
	var missing []string
	for _, p := range t.ports {
		if v, ok := inputs[p.Name]; (ok && v != nil) || p.HasDefault {
			continue
		}
		missing = append(missing, p.Name)
	}
	return missing
}

// Clone returns a deep copy of t.
func (t *RunTemplate) Clone() *RunTemplate {
	return &RunTemplate{ports: t.Ports()}
}

// Resolve merges caller inputs with the template defaults.
//
// It returns the attributes to submit, one per declared port in template
// order, and the effective input map to record on the run: a copy of inputs
// with every default that was used filled in. Names in inputs that the
// template does not declare are kept in the effective map but never
// submitted.
//
// A nil value counts as not supplied: the port takes its default when it has
// one, and only a port without a default fails with MissingInputError. A nil
// never reaches the portal as an explicit null.
func (t *RunTemplate) Resolve(inputs map[string]any) ([]InputAttribute, map[string]any, error) {
	effective := maps.Clone(inputs)
	if effective == nil {
		effective = map[string]any{}
	}

	attrs := make([]InputAttribute, 0, len(t.ports))
	for _, p := range t.ports {
		v, ok := inputs[p.Name]
		if !ok || v == nil {
			if !p.HasDefault {
				return nil, nil, &tperrors.MissingInputError{Port: p.Name}
			}
			v = cloneValue(p.Default)
			effective[p.Name] = v
		}
		attrs = append(attrs, InputAttribute{Name: p.Name, Value: v})
	}
	return attrs, effective, nil
}

// cloneValue copies the containers produced by encoding/json.
func cloneValue(v any) any {
	switch v := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, e := range v {
			out[k] = cloneValue(e)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}
