package rules

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads and compiles the rule file at path. The returned error is a
// *LoadError listing every violation.
func Load(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Violations: []ValidationError{{
			Field:   "file",
			Message: err.Error(),
			Code:    ErrCodeRead,
		}}}
	}
	return Parse(path, data)
}

// Parse compiles rule file content. filename is used in positions and
// error messages only.
func Parse(filename string, data []byte) (*RuleSet, error) {
	rs, violations := parse(filename, data)
	if len(violations) > 0 {
		return nil, &LoadError{Path: filename, Violations: violations}
	}
	return rs, nil
}

// Validate returns every violation in the rule file content without
// building a RuleSet for the caller.
func Validate(filename string, data []byte) []ValidationError {
	_, violations := parse(filename, data)
	return violations
}

func parse(filename string, data []byte) (*RuleSet, []ValidationError) {
	if violations := validateStructure(filename, data); len(violations) > 0 {
		return nil, violations
	}

	doc, err := decodeDocument(data)
	if err != nil {
		return nil, []ValidationError{{Field: "document", Message: err.Error(), Code: ErrCodeParse}}
	}
	return Compile(doc)
}

// decodeDocument decodes with KnownFields so any key the schema let
// through but Document does not model is still rejected.
func decodeDocument(data []byte) (*Document, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding rule file: %w", err)
	}
	return &doc, nil
}
