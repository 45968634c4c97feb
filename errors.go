package fffc

import "fmt"

// InputValidationError covers missing DWARF, missing ASan dependency,
// non-C language, and ambiguous PIE status. Fatal for the target the
// error was raised on; non-fatal for the batch (the driver moves on
// to the next target).
type InputValidationError struct {
	Target  string
	Message string
}

func (e InputValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Target, e.Message)
}

// GraphError reports a DWARF tree that contradicts itself, e.g. a
// subrange DIE carrying both upper_bound and count. Fatal for the
// target.
type GraphError struct {
	Unit    string
	Offset  string
	Message string
}

func (e GraphError) Error() string {
	return fmt.Sprintf("%s @ %s: %s", e.Unit, e.Offset, e.Message)
}

// ToolchainFailureError reports a non-zero exit or a missing
// executable from the preprocessor/compiler/linker. Fatal for the
// whole batch: there is no fallback.
type ToolchainFailureError struct {
	Tool    string
	Message string
}

func (e ToolchainFailureError) Error() string {
	return fmt.Sprintf("%s: %s", e.Tool, e.Message)
}

// OutputCollisionError reports that the destination directory exists
// and --overwrite was not set. Fatal for the target.
type OutputCollisionError struct {
	Path string
}

func (e OutputCollisionError) Error() string {
	return fmt.Sprintf("output path already exists (pass --overwrite): %s", e.Path)
}

// UnknownBaseTypeError reports a base type whose (encoding, size)
// doesn't match the canonical table. Intentionally non-fatal: the
// node is still created and the diagnostic exists so the table can be
// extended.
type UnknownBaseTypeError struct {
	Unit     string
	Offset   string
	Encoding int64
	ByteSize int64
}

func (e UnknownBaseTypeError) Error() string {
	return fmt.Sprintf("%s @ %s: no canonical name for base type (encoding=%d, size=%d)",
		e.Unit, e.Offset, e.Encoding, e.ByteSize)
}

// isFatalToTarget reports whether err, if returned while processing
// one target, should abort that target's generation without aborting
// the batch. ToolchainFailureError is deliberately excluded: it is
// fatal to the whole batch.
func isFatalToTarget(err error) bool {
	switch err.(type) {
	case InputValidationError, GraphError, OutputCollisionError:
		return true
	default:
		return false
	}
}
