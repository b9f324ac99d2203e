package changeset

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

//go:embed schema.cue
var schemaCUE string

var (
	schemaOnce sync.Once
	schemaCtx  *cue.Context
	schemaDef  cue.Value
	schemaErr  error
)

func changesetDef() (*cue.Context, cue.Value, error) {
	schemaOnce.Do(func() {
		schemaCtx = cuecontext.New()
		v := schemaCtx.CompileString(schemaCUE, cue.Filename("schema.cue"))
		if err := v.Err(); err != nil {
			schemaErr = fmt.Errorf("compile changeset schema: %w", err)
			return
		}
		schemaDef = v.LookupPath(cue.ParsePath("#Changeset"))
		if !schemaDef.Exists() {
			schemaErr = fmt.Errorf("compile changeset schema: #Changeset not defined")
		}
	})
	return schemaCtx, schemaDef, schemaErr
}

// checkShape validates a decoded YAML document against #Changeset.
// Every CUE error is reported as a separate E200 problem.
func checkShape(doc any) error {
	ctx, def, err := changesetDef()
	if err != nil {
		return err
	}

	v := ctx.Encode(doc)
	if err := v.Err(); err != nil {
		return ValidationErrors{{Field: "document", Message: err.Error(), Code: ErrSchemaShape}}
	}

	unified := def.Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		var errs ValidationErrors
		for _, e := range cueerrors.Errors(err) {
			field := "document"
			if path := e.Path(); len(path) > 0 {
				field = strings.Join(path, ".")
			}
			format, args := e.Msg()
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf(format, args...),
				Code:    ErrSchemaShape,
			})
		}
		return errs
	}
	return nil
}
