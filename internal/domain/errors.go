package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMissingInput reports that an expected input file is absent. Both jobs
// recover from it locally as a no-op.
var ErrMissingInput = errors.New("missing input")

// MalformedInputError reports an input file that exists but cannot be parsed
// as the expected tabular or columnar format.
type MalformedInputError struct {
	Path string
	Err  error
}

func (e *MalformedInputError) Error() string {
	return fmt.Sprintf("malformed input %s: %v", e.Path, e.Err)
}

func (e *MalformedInputError) Unwrap() error { return e.Err }

// SchemaError reports loaded data that lacks required columns or holds values
// the job cannot key or publish.
type SchemaError struct {
	Path    string
	Missing []string
	Reason  string
}

func (e *SchemaError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("schema error %s: missing column(s) %s", e.Path, strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("schema error %s: %s", e.Path, e.Reason)
}

// IOError reports a failed write, rename or delete.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }
