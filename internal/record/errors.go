package record

import (
	"fmt"
	"strings"
)

// ParseError reports structurally malformed JSON in the data file.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed JSON in %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// SchemaError reports a data file that parses as JSON but does not have
// the expected shape (missing or non-array "deployments" key).
type SchemaError struct {
	Path string
	Msg  string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("invalid schema in %s: %s", e.Path, e.Msg)
}

// ValidationError collects every invalid record field found in a batch.
// The whole batch fails; records are never silently dropped.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid deployment records:\n%s", strings.Join(e.Problems, "\n"))
}
