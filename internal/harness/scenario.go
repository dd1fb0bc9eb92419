package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/nopg/internal/errs"
)

// Scenario is an end-to-end test of a chain of session operations.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Steps run in order, each in its own session.
	Steps []Step `yaml:"steps"`

	// Assertions run after the last step against delivered events and the
	// committed store.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is one session operation.
type Step struct {
	// Op names the operation, see the Op* constants.
	Op string `yaml:"op"`

	// Type is the TypeDef name a document operation is scoped to.
	Type string `yaml:"type,omitempty"`

	// Name is the TypeDef or library name.
	Name string `yaml:"name,omitempty"`

	// Ref names an entity saved by an earlier step.
	Ref string `yaml:"ref,omitempty"`

	// Data is the entity data for creates, updates and declarations.
	Data map[string]any `yaml:"data,omitempty"`

	// Predicate is a search predicate: an object or an AND/OR array.
	Predicate any `yaml:"predicate,omitempty"`

	Match  string   `yaml:"match,omitempty"`
	Order  string   `yaml:"order,omitempty"`
	Fields []string `yaml:"fields,omitempty"`

	// Content is attachment content or library source.
	Content     string `yaml:"content,omitempty"`
	ContentType string `yaml:"content_type,omitempty"`

	// Target is the schema version for migrate.
	Target int `yaml:"target,omitempty"`

	// Save stores the fetched entity (or the first of a list) under a name
	// for later steps.
	Save string `yaml:"save,omitempty"`

	// Expect validates the fetched result. Nil means the step must succeed.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect describes what a step should produce.
type Expect struct {
	// Error is the expected error code, e.g. NOT_FOUND.
	Error string `yaml:"error,omitempty"`

	// Count is the expected length of a list result.
	Count *int `yaml:"count,omitempty"`

	// Result is matched as a subset against a single entity, or the first
	// entity of a list.
	Result map[string]any `yaml:"result,omitempty"`

	// Results are matched positionally against a list result.
	Results []map[string]any `yaml:"results,omitempty"`

	// Value is compared with a scalar result (typeExists, migrate, ...).
	Value any `yaml:"value,omitempty"`
}

// Assertion validates delivered events or committed state.
type Assertion struct {
	Type string `yaml:"type"`

	// Event is "<eventType>:<kind>", e.g. "created:Document".
	Event string `yaml:"event,omitempty"`

	// Events is the expected event order.
	Events []string `yaml:"events,omitempty"`

	// Kind selects the entity kind for stored_* assertions.
	Kind string `yaml:"kind,omitempty"`

	// TypeName scopes stored_* document assertions to a TypeDef.
	TypeName string `yaml:"type_name,omitempty"`

	Predicate any            `yaml:"predicate,omitempty"`
	Expect    map[string]any `yaml:"expect,omitempty"`
	Count     int            `yaml:"count,omitempty"`
}

// Step operations.
const (
	OpDeclareType          = "declareType"
	OpCreateType           = "createType"
	OpGetType              = "getType"
	OpTypeExists           = "typeExists"
	OpSearchTypes          = "searchTypes"
	OpCreate               = "create"
	OpSearch               = "search"
	OpSearchSingle         = "searchSingle"
	OpGetDocument          = "getDocument"
	OpUpdate               = "update"
	OpDelete               = "delete"
	OpAttach               = "attach"
	OpSearchAttachments    = "searchAttachments"
	OpImportLibrary        = "importLibrary"
	OpSearchLibraries      = "searchLibraries"
	OpMigrate              = "migrate"
	OpLatestAppliedVersion = "latestAppliedVersion"
)

var knownOps = map[string]bool{
	OpDeclareType: true, OpCreateType: true, OpGetType: true, OpTypeExists: true,
	OpSearchTypes: true, OpCreate: true, OpSearch: true, OpSearchSingle: true,
	OpGetDocument: true, OpUpdate: true, OpDelete: true, OpAttach: true,
	OpSearchAttachments: true, OpImportLibrary: true, OpSearchLibraries: true,
	OpMigrate: true, OpLatestAppliedVersion: true,
}

// Assertion type constants.
const (
	AssertEventContains  = "event_contains"
	AssertEventOrder     = "event_order"
	AssertEventCount     = "event_count"
	AssertStoredCount    = "stored_count"
	AssertStoredContains = "stored_contains"
)

var knownCodes = map[string]bool{
	string(errs.InvalidArgument):   true,
	string(errs.ValidationFailure): true,
	string(errs.NotFound):          true,
	string(errs.NotUnique):         true,
	string(errs.VersionRange):      true,
	string(errs.MigrationStep):     true,
	string(errs.SessionClosed):     true,
	string(errs.Unsupported):       true,
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	normalizeScenario(&scenario)

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// FindScenarios lists the .yaml and .yml files under dir, in walk order.
func FindScenarios(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		switch filepath.Ext(path) {
		case ".yaml", ".yml":
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// normalizeScenario rewrites YAML ints to int64 so values compare the way
// decoded JSON does.
func normalizeScenario(s *Scenario) {
	for i := range s.Steps {
		step := &s.Steps[i]
		step.Data = normalizeMap(step.Data)
		step.Predicate = normalizeValue(step.Predicate)
		if step.Expect != nil {
			step.Expect.Result = normalizeMap(step.Expect.Result)
			for j := range step.Expect.Results {
				step.Expect.Results[j] = normalizeMap(step.Expect.Results[j])
			}
			step.Expect.Value = normalizeValue(step.Expect.Value)
		}
	}
	for i := range s.Assertions {
		a := &s.Assertions[i]
		a.Predicate = normalizeValue(a.Predicate)
		a.Expect = normalizeMap(a.Expect)
	}
}

func normalizeMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	return normalizeValue(m).(map[string]any)
}

func normalizeValue(v any) any {
	switch val := v.(type) {
	case int:
		return int64(val)
	case []any:
		for i := range val {
			val[i] = normalizeValue(val[i])
		}
		return val
	case map[string]any:
		for k := range val {
			val[k] = normalizeValue(val[k])
		}
		return val
	default:
		return v
	}
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	saved := make(map[string]bool)
	for i, step := range s.Steps {
		if err := validateStep(i, step, saved); err != nil {
			return err
		}
		if step.Save != "" {
			saved[step.Save] = true
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

func validateStep(i int, step Step, saved map[string]bool) error {
	if step.Op == "" {
		return fmt.Errorf("steps[%d]: op is required", i)
	}
	if !knownOps[step.Op] {
		return fmt.Errorf("steps[%d]: unknown op %q", i, step.Op)
	}
	if step.Ref != "" && !saved[step.Ref] {
		return fmt.Errorf("steps[%d]: ref %q is not saved by an earlier step", i, step.Ref)
	}

	switch step.Op {
	case OpDeclareType, OpCreateType, OpGetType, OpTypeExists, OpImportLibrary:
		if step.Name == "" {
			return fmt.Errorf("steps[%d]: name is required for %s", i, step.Op)
		}
	case OpUpdate, OpDelete:
		if step.Ref == "" {
			return fmt.Errorf("steps[%d]: ref is required for %s", i, step.Op)
		}
	}

	if step.Expect != nil && step.Expect.Error != "" && !knownCodes[step.Expect.Error] {
		return fmt.Errorf("steps[%d].expect: unknown error code %q", i, step.Expect.Error)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertEventContains, AssertEventCount:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for %s", index, a.Type)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative", index)
		}
	case AssertEventOrder:
		if len(a.Events) == 0 {
			return fmt.Errorf("assertions[%d]: events list is required for event_order", index)
		}
	case AssertStoredCount:
		if a.Kind == "" {
			return fmt.Errorf("assertions[%d]: kind is required for stored_count", index)
		}
	case AssertStoredContains:
		if a.Kind == "" {
			return fmt.Errorf("assertions[%d]: kind is required for stored_contains", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for stored_contains", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
