package rulespec

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/panopticon/internal/dispatch"
)

// RulesField is the top-level field holding the rules tree.
const RulesField = "rules"

// CompileError is a rules compilation error with source position.
// Err, when set, is the underlying dispatch error, so
// dispatch.IsInvalidRuleShapeError sees through a CompileError.
type CompileError struct {
	Path    []string
	Message string
	Pos     token.Pos
	Err     error
}

func (e *CompileError) Error() string {
	field := strings.Join(e.Path, ".")
	if field == "" {
		field = RulesField
	}
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			field, e.Message)
	}
	return fmt.Sprintf("%s: %s", field, e.Message)
}

func (e *CompileError) Unwrap() error {
	return e.Err
}

// Spec is a compiled rules file.
type Spec struct {
	// Rules is the rules tree, ready for watch.Attach.
	Rules dispatch.Group

	// Actions maps each dotted handler path to its action name.
	Actions map[string]string
}

// Paths returns the dotted handler paths, sorted.
func (s *Spec) Paths() []string {
	return s.Rules.Paths()
}

// Compile builds a Spec from the rules field of a CUE value.
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`rules: name: "log"`)
//	spec, err := rulespec.Compile(v, rulespec.NewRegistry())
func Compile(v cue.Value, reg *Registry) (*Spec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	rulesVal := v.LookupPath(cue.ParsePath(RulesField))
	if !rulesVal.Exists() {
		return nil, &CompileError{
			Message: "rules is required",
			Pos:     v.Pos(),
		}
	}

	spec := &Spec{Actions: make(map[string]string)}
	rules, err := compileGroup(rulesVal, nil, reg, spec)
	if err != nil {
		return nil, err
	}
	spec.Rules = rules
	return spec, nil
}

func compileGroup(v cue.Value, path []string, reg *Registry, spec *Spec) (dispatch.Group, error) {
	if v.IncompleteKind() != cue.StructKind {
		return nil, shapeError(v, path, fmt.Sprintf("rules must be a struct, got %s", v.IncompleteKind()))
	}

	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	group := dispatch.Group{}
	for iter.Next() {
		key := iter.Selector().Unquoted()
		child := iter.Value()
		childPath := append(slices.Clone(path), key)

		rule, err := compileRule(child, childPath, reg, spec)
		if err != nil {
			return nil, err
		}
		group[key] = rule
	}
	return group, nil
}

func compileRule(v cue.Value, path []string, reg *Registry, spec *Spec) (dispatch.Rule, error) {
	switch kind := v.IncompleteKind(); kind {
	case cue.StructKind:
		return compileGroup(v, path, reg, spec)

	case cue.ListKind:
		return nil, shapeError(v, path, "a rule cannot be an array")

	case cue.StringKind:
		name, err := v.String()
		if err != nil {
			return nil, &CompileError{
				Path:    path,
				Message: "action name must be a concrete string",
				Pos:     v.Pos(),
			}
		}
		h, err := reg.bind(name, path)
		if err != nil {
			return nil, &CompileError{Path: path, Message: err.Error(), Pos: v.Pos(), Err: err}
		}
		spec.Actions[strings.Join(path, ".")] = name
		return h, nil

	default:
		return nil, shapeError(v, path, fmt.Sprintf("rule must be an action name or a struct, got %s", kind))
	}
}

func shapeError(v cue.Value, path []string, msg string) *CompileError {
	return &CompileError{
		Path:    path,
		Message: msg,
		Pos:     v.Pos(),
		Err:     dispatch.NewInvalidRuleShapeError(path, msg),
	}
}

// LoadFile compiles a single CUE rules file.
func LoadFile(path string, reg *Registry) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}

	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(path))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return Compile(v, reg)
}

// LoadDir compiles the CUE package in dir. All files of the package are
// unified before the rules field is read.
func LoadDir(dir string, reg *Registry) (*Spec, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("rules directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", dir)
	}

	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, fmt.Errorf("no CUE instances loaded from %s", dir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, fmt.Errorf("loading CUE files: %w", inst.Err)
	}

	ctx := cuecontext.New()
	v := ctx.BuildInstance(inst)
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return Compile(v, reg)
}

// Load compiles path as a directory if it is one, otherwise as a file.
func Load(path string, reg *Registry) (*Spec, error) {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return LoadDir(path, reg)
	}
	return LoadFile(path, reg)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{
			Message: first.Error(),
			Pos:     positions[0],
			Err:     err,
		}
	}
	return err
}
