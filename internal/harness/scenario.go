package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/panopticon/internal/ir"
)

// Defaults applied when a scenario omits them.
const (
	DefaultCollection = "documents"
	DefaultID         = "doc-1"
)

// Scenario defines a dispatch test.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Collection and ID locate the document. Defaults: documents, doc-1.
	Collection string `yaml:"collection,omitempty"`
	ID         string `yaml:"id,omitempty"`

	// CycleToken is the fixed token stamped on every cycle.
	// If empty, defaults to "test-cycle-default".
	CycleToken string `yaml:"cycle_token,omitempty"`

	// Rules is the rules tree; string leaves name actions ("record", "log",
	// "ignore").
	Rules map[string]any `yaml:"rules"`

	// RulesError, when set, is the error code building Rules must fail with.
	// Steps are not run.
	RulesError string `yaml:"rules_error,omitempty"`

	// Document holds the initial fields. The harness creates the document
	// and loads it before the first step.
	Document map[string]any `yaml:"document"`

	// Steps edit, save and reload the document in order.
	Steps []Step `yaml:"steps"`

	// Assertions are evaluated after the last step.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step edits the loaded document. Within a step the harness applies Set,
// then Unset, then saves, then reloads.
type Step struct {
	// Set maps dotted paths to new values. A null value stores null.
	Set map[string]any `yaml:"set,omitempty"`

	// Unset lists dotted paths to remove.
	Unset []string `yaml:"unset,omitempty"`

	// Save writes the document, firing the watcher.
	Save bool `yaml:"save,omitempty"`

	// Reload reads the document back, capturing a new original.
	Reload bool `yaml:"reload,omitempty"`

	// Expect checks what the save of this step dispatched.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect is the expected outcome of a save.
type Expect struct {
	// Calls lists the exact recorded calls of the save, in order.
	Calls []ExpectedCall `yaml:"calls"`

	// Error is the expected dispatch error code, e.g. INVALID_DIFF_SHAPE.
	Error string `yaml:"error,omitempty"`
}

// ExpectedCall describes one recorded handler call.
type ExpectedCall struct {
	Path string `yaml:"path"`
	Kind string `yaml:"kind"`

	// Value is compared only when present; `value: null` expects null.
	Value yaml.Node `yaml:"value,omitempty"`
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

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// FindScenarios returns the .yaml and .yml files under dir, sorted. A
// non-empty filter is a glob matched against the file name without its
// extension.
func FindScenarios(dir, filter string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}

		if filter != "" {
			name := strings.TrimSuffix(filepath.Base(path), ext)
			matched, err := filepath.Match(filter, name)
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}

		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.Sort(files)
	return files, nil
}

func (s *Scenario) collection() string {
	if s.Collection == "" {
		return DefaultCollection
	}
	return s.Collection
}

func (s *Scenario) id() string {
	if s.ID == "" {
		return DefaultID
	}
	return s.ID
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Rules == nil {
		return fmt.Errorf("rules is required")
	}
	if s.RulesError != "" {
		return nil
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if step.Expect != nil && !step.Save {
			return fmt.Errorf("step %d: expect requires save", i)
		}
		if len(step.Set) == 0 && len(step.Unset) == 0 && !step.Save && !step.Reload {
			return fmt.Errorf("step %d: step does nothing", i)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(a); err != nil {
			return fmt.Errorf("assertion %d: %w", i, err)
		}
	}
	return nil
}

// hasValue reports whether a YAML value was given at all.
func hasValue(n yaml.Node) bool {
	return n.Kind != 0
}

// decodeNode converts a YAML value node into an IRValue.
func decodeNode(n *yaml.Node) (ir.IRValue, error) {
	var raw any
	if err := n.Decode(&raw); err != nil {
		return nil, err
	}
	return ir.FromGo(raw)
}
