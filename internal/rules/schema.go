package rules

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	cueyaml "cuelang.org/go/encoding/yaml"
)

//go:embed schema.cue
var schemaSource string

var (
	schemaOnce sync.Once
	schemaCtx  *cue.Context
	schemaDef  cue.Value
	schemaErr  error
)

// ruleFileSchema compiles the embedded schema once per process.
// cue.Context is not safe for concurrent use, so callers hold schemaMu.
func ruleFileSchema() (*cue.Context, cue.Value, error) {
	schemaOnce.Do(func() {
		schemaCtx = cuecontext.New()
		v := schemaCtx.CompileString(schemaSource, cue.Filename("schema.cue"))
		if err := v.Err(); err != nil {
			schemaErr = fmt.Errorf("compiling rule file schema: %w", err)
			return
		}
		schemaDef = v.LookupPath(cue.ParsePath("#RuleFile"))
		if err := schemaDef.Err(); err != nil {
			schemaErr = fmt.Errorf("looking up #RuleFile: %w", err)
		}
	})
	return schemaCtx, schemaDef, schemaErr
}

var schemaMu sync.Mutex

// validateStructure checks the raw YAML against #RuleFile and returns one
// ValidationError per CUE violation.
func validateStructure(filename string, data []byte) []ValidationError {
	schemaMu.Lock()
	defer schemaMu.Unlock()

	ctx, def, err := ruleFileSchema()
	if err != nil {
		return []ValidationError{{Field: "schema", Message: err.Error(), Code: ErrCodeSchema}}
	}

	file, err := cueyaml.Extract(filename, data)
	if err != nil {
		return []ValidationError{cueViolation(filename, ErrCodeParse, err)}
	}

	doc := ctx.BuildFile(file)
	if err := doc.Err(); err != nil {
		return collectCUEErrors(filename, ErrCodeParse, err)
	}

	unified := def.Unify(doc)
	if err := unified.Validate(cue.Concrete(true), cue.All()); err != nil {
		return collectCUEErrors(filename, ErrCodeSchema, err)
	}
	return nil
}

func collectCUEErrors(filename, code string, err error) []ValidationError {
	var out []ValidationError
	for _, e := range cueerrors.Errors(err) {
		out = append(out, cueViolation(filename, code, e))
	}
	if len(out) == 0 {
		out = append(out, ValidationError{Field: "document", Message: err.Error(), Code: code})
	}
	return out
}

func cueViolation(filename, code string, err error) ValidationError {
	v := ValidationError{Field: "document", Message: err.Error(), Code: code}

	var ce cueerrors.Error
	if e, ok := err.(cueerrors.Error); ok {
		ce = e
	}
	if ce == nil {
		return v
	}

	if path := ce.Path(); len(path) > 0 {
		v.Field = strings.Join(path, ".")
	}
	format, args := ce.Msg()
	v.Message = fmt.Sprintf(format, args...)
	v.Line = documentLine(filename, cueerrors.Positions(ce))
	return v
}

// documentLine picks the first position inside the rule file itself,
// ignoring positions in the embedded schema.
func documentLine(filename string, positions []token.Pos) int {
	for _, p := range positions {
		if p.IsValid() && p.Filename() == filename {
			return p.Line()
		}
	}
	return 0
}
