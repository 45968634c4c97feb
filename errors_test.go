package fffc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, "a.out: not compiled with DWARF info; add -g",
		InputValidationError{Target: "a.out", Message: "not compiled with DWARF info; add -g"}.Error())

	assert.Equal(t, "a.c @ 0x10: missing required attribute DW_AT_type",
		GraphError{Unit: "a.c", Offset: "0x10", Message: "missing required attribute DW_AT_type"}.Error())

	assert.Equal(t, "cc: link failed",
		ToolchainFailureError{Tool: "cc", Message: "link failed"}.Error())

	assert.Equal(t, "output path already exists (pass --overwrite): /tmp/out",
		OutputCollisionError{Path: "/tmp/out"}.Error())

	assert.Contains(t, UnknownBaseTypeError{Unit: "a.c", Offset: "0x20", Encoding: 7, ByteSize: 3}.Error(), "encoding=7")
}

func TestIsFatalToTarget(t *testing.T) {
	assert.True(t, isFatalToTarget(InputValidationError{}))
	assert.True(t, isFatalToTarget(GraphError{}))
	assert.True(t, isFatalToTarget(OutputCollisionError{}))
	assert.False(t, isFatalToTarget(ToolchainFailureError{}))
	assert.False(t, isFatalToTarget(UnknownBaseTypeError{}))
}
