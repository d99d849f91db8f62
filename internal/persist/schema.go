package persist

import (
	_ "embed"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	cuejson "cuelang.org/go/encoding/json"

	"github.com/roach88/multicast/internal/callback"
	"github.com/roach88/multicast/internal/ir"
)

//go:embed schema.cue
var schemaSource string

// Validation error codes (E200-E299)
const (
	ErrSchemaViolation  = "E200" // document does not match the record schema
	ErrHeadOutOfRange   = "E201" // head does not index an entry
	ErrBrokenLink       = "E202" // next out of range, cycle or unreachable entry
	ErrTargetIncomplete = "E203" // inline or ref target missing its payload
	ErrMissingSlot      = "E204" // ref names a slot absent from targets
	ErrUnusedSlot       = "E205" // targets holds a slot no entry refers to
	ErrEncodeFailed     = "E206" // record could not be rendered for checking
)

// ValidationError describes one problem found by Validate.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("[%s] %s", e.Code, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

var (
	schemaOnce  sync.Once
	schemaValue cue.Value
	schemaErr   error

	// schemaMu serializes use of the shared cue.Context.
	schemaMu sync.Mutex
)

// recordSchema compiles the embedded schema once per process.
func recordSchema() (cue.Value, error) {
	schemaOnce.Do(func() {
		ctx := cuecontext.New()
		v := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
		if err := v.Err(); err != nil {
			schemaErr = fmt.Errorf("compile record schema: %w", err)
			return
		}
		schemaValue = v.LookupPath(cue.ParsePath("#ChainRecord"))
		schemaErr = schemaValue.Err()
	})
	return schemaValue, schemaErr
}

// Validate checks rec against the record schema and its link structure.
// It returns every problem found rather than stopping at the first.
func Validate(rec ir.ChainRecord) []ValidationError {
	errs := validateSchema(rec)
	errs = append(errs, validateStructure(rec)...)
	return errs
}

func validateSchema(rec ir.ChainRecord) []ValidationError {
	schema, err := recordSchema()
	if err != nil {
		return []ValidationError{{Message: err.Error(), Code: ErrSchemaViolation}}
	}

	data, err := EncodeJSON(rec)
	if err != nil {
		return []ValidationError{{Message: err.Error(), Code: ErrEncodeFailed}}
	}
	expr, err := cuejson.Extract("record.json", data)
	if err != nil {
		return []ValidationError{{Message: err.Error(), Code: ErrEncodeFailed}}
	}

	schemaMu.Lock()
	defer schemaMu.Unlock()

	doc := schema.Context().BuildExpr(expr)
	err = schema.Unify(doc).Validate(cue.Concrete(true))
	if err == nil {
		return nil
	}

	var errs []ValidationError
	for _, e := range cueerrors.Errors(err) {
		format, args := e.Msg()
		errs = append(errs, ValidationError{
			Field:   strings.Join(e.Path(), "."),
			Message: fmt.Sprintf(format, args...),
			Code:    ErrSchemaViolation,
		})
	}
	return errs
}

func validateStructure(rec ir.ChainRecord) []ValidationError {
	var errs []ValidationError

	if _, err := walkLinks(rec); err != nil {
		code := ErrBrokenLink
		if len(rec.Entries) == 0 || rec.Head < 0 || rec.Head >= len(rec.Entries) {
			code = ErrHeadOutOfRange
		}
		field := "head"
		if idx := entryIndex(err); idx >= 0 {
			field = fmt.Sprintf("entries[%d].next", idx)
		}
		errs = append(errs, ValidationError{Field: field, Message: messageOf(err), Code: code})
	}

	used := make(map[string]bool)
	for i, e := range rec.Entries {
		field := fmt.Sprintf("entries[%d].target", i)
		switch e.Target.Kind {
		case ir.TargetInline:
			if e.Target.Inline == nil {
				errs = append(errs, ValidationError{Field: field, Message: "inline target has no object", Code: ErrTargetIncomplete})
			}
		case ir.TargetRef:
			if e.Target.Name == "" {
				errs = append(errs, ValidationError{Field: field, Message: "ref target has no name", Code: ErrTargetIncomplete})
				continue
			}
			used[e.Target.Name] = true
			if _, ok := rec.Targets[e.Target.Name]; !ok {
				errs = append(errs, ValidationError{
					Field:   field,
					Message: fmt.Sprintf("slot %q is not in targets", e.Target.Name),
					Code:    ErrMissingSlot,
				})
			}
		}
	}

	for _, name := range sortedSlotNames(rec.Targets) {
		if !used[name] {
			errs = append(errs, ValidationError{
				Field:   "targets." + name,
				Message: "slot is not referenced by any entry",
				Code:    ErrUnusedSlot,
			})
		}
	}
	return errs
}

func entryIndex(err error) int {
	if ce, ok := err.(*callback.Error); ok {
		return ce.Entry
	}
	return -1
}

func messageOf(err error) string {
	if ce, ok := err.(*callback.Error); ok {
		return ce.Message
	}
	return err.Error()
}

func sortedSlotNames(targets map[string]ir.Object) []string {
	return slices.Sorted(maps.Keys(targets))
}
