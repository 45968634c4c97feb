package fffc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMangleSuffixDeterministic(t *testing.T) {
	a := mangleSuffix("struct foo {\n    int x;\n}")
	b := mangleSuffix("struct foo {\n    int x;\n}")
	assert.Equal(t, a, b)
}

func TestMangleSuffixDiffersOnText(t *testing.T) {
	a := mangleSuffix("struct foo { int x; }")
	b := mangleSuffix("struct foo { int y; }")
	assert.NotEqual(t, a, b)
}

func TestMutatorAndSizeofNameSharePrefixAndSuffix(t *testing.T) {
	cfg := NewConfig()
	decl := "struct point { int x; int y; }"
	mut := mutatorName(cfg, decl)
	sizeof := sizeofName(cfg, decl)

	assert.Equal(t, cfg.GetString("mangle.prefix")+mangleSuffix(decl), mut)
	assert.Equal(t, cfg.GetString("mangle.sizeof_prefix")+mangleSuffix(decl), sizeof)

	suffix := mangleSuffix(decl)
	assert.Contains(t, mut, suffix)
	assert.Contains(t, sizeof, suffix)
}

func TestMutatorNameTextuallyIdenticalDeclarationsCollapse(t *testing.T) {
	cfg := NewConfig()
	declA := "struct point { int x; int y; }"
	declB := "struct point { int x; int y; }"
	assert.Equal(t, mutatorName(cfg, declA), mutatorName(cfg, declB))
}
