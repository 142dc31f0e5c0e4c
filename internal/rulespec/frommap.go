package rulespec

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/roach88/panopticon/internal/dispatch"
)

// FromMap builds a Spec from a decoded YAML or JSON map.
//
// String leaves name registered actions; nested maps are groups. Anything
// else, notably lists, is left for dispatch.Build to reject.
func FromMap(raw map[string]any, reg *Registry) (*Spec, error) {
	spec := &Spec{Actions: make(map[string]string)}

	resolved, err := resolve(raw, nil, reg, spec)
	if err != nil {
		return nil, err
	}

	rules, err := dispatch.Build(resolved)
	if err != nil {
		return nil, err
	}
	spec.Rules = rules
	return spec, nil
}

func resolve(raw map[string]any, path []string, reg *Registry, spec *Spec) (map[string]any, error) {
	out := make(map[string]any, len(raw))
	// Sorted so that the first error reported is always the same one.
	for _, key := range slices.Sorted(maps.Keys(raw)) {
		val := raw[key]
		childPath := append(slices.Clone(path), key)

		switch v := val.(type) {
		case string:
			h, err := reg.bind(v, childPath)
			if err != nil {
				return nil, fmt.Errorf("rules.%s: %w", strings.Join(childPath, "."), err)
			}
			spec.Actions[strings.Join(childPath, ".")] = v
			out[key] = h
		case map[string]any:
			group, err := resolve(v, childPath, reg, spec)
			if err != nil {
				return nil, err
			}
			out[key] = group
		default:
			out[key] = val
		}
	}
	return out, nil
}
