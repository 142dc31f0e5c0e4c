// Package rulespec builds rules trees from declarative sources.
//
// A rules file is CUE with a top-level struct named rules. Each field is
// either a struct (a rule group) or a string naming a registered action:
//
//	rules: {
//		name:  "audit"
//		email: "log"
//		address: {
//			line1: "audit"
//		}
//	}
//
// Lists are rejected wherever a rule is expected, with the CUE source
// position of the offending value. YAML and JSON maps go through FromMap,
// which applies the same rules via dispatch.Build.
package rulespec
