// Package rules loads, validates and compiles the rule file.
//
// Loading happens in three steps:
//  1. Structural validation of the YAML against the embedded CUE schema
//     (closed definitions, so unknown keys fail).
//  2. Strict decoding into Document with yaml.v3.
//  3. Semantic validation (expressions, enumerations, action/section
//     compatibility, transition shape) and compilation into a RuleSet.
//
// Every step collects all violations instead of stopping at the first, so
// a single `boardsync validate` run shows everything wrong with a file.
// The resulting RuleSet is immutable.
package rules
