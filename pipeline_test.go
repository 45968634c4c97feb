package fffc

import (
	"debug/dwarf"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessTargetSimpleStructAndShim(t *testing.T) {
	intDie := newDie(dwarf.TagBaseType,
		dieAttr(dwarf.AttrName, "int"),
		uintAttr(dwarf.AttrEncoding, 5),
		uintAttr(dwarf.AttrByteSize, 4),
	)
	memberX := newDie(dwarf.TagMember, dieAttr(dwarf.AttrName, "x"), refAttr(dwarf.AttrType, intDie), uintAttr(dwarf.AttrDataMemberLoc, 0))
	memberY := newDie(dwarf.TagMember, dieAttr(dwarf.AttrName, "y"), refAttr(dwarf.AttrType, intDie), uintAttr(dwarf.AttrDataMemberLoc, 4))
	point := newDie(dwarf.TagStructType, dieAttr(dwarf.AttrName, "point"), uintAttr(dwarf.AttrByteSize, 8))
	point.addChild(memberX)
	point.addChild(memberY)

	param := newDie(dwarf.TagFormalParameter, dieAttr(dwarf.AttrName, "v"), refAttr(dwarf.AttrType, intDie))
	fn := newDie(dwarf.TagSubprogram,
		dieAttr(dwarf.AttrName, "consume"),
		flagAttr(dwarf.AttrExternal, true),
		addrAttr(dwarf.AttrLowpc, 0x1000),
	)
	fn.addChild(param)

	data, _ := buildDWARF("point.c", int64(LanguageC99), "GNU C17 11.4.0", []*dwNode{intDie, point, fn})

	target := &AcceptedTarget{Path: "/tmp/point.elf", Data: data, PIE: true}
	result, err := ProcessTarget(target, "/tmp/point.elf", NewConfig())
	require.NoError(t, err)
	require.Len(t, result.Units, 1)

	unit := result.Units[0]
	assert.Contains(t, unit.HeaderText, "struct point {")
	assert.Contains(t, unit.HeaderText, "int x;")
	assert.Contains(t, unit.HeaderText, "int y;")
	assert.NotEmpty(t, unit.MutatorDefinitions)
	assert.NotEmpty(t, result.BaseMutatorDefinitions, "every target carries the base mutator set its units' calls bottom out in")
	require.Contains(t, unit.Shims, "consume")
	assert.Contains(t, unit.Shims["consume"], "consume")
}

func TestProcessTargetSkipsNonCCompileUnit(t *testing.T) {
	data, _ := buildDWARF("odd.cc", 0x04, "GNU C++17 11.4.0", nil)
	target := &AcceptedTarget{Path: "/tmp/odd.elf", Data: data, PIE: false}

	result, err := ProcessTarget(target, "/tmp/odd.elf", NewConfig())
	require.NoError(t, err)
	assert.Empty(t, result.Units)
	require.NotEmpty(t, result.Diagnostics)
	_, ok := result.Diagnostics[0].(InputValidationError)
	assert.True(t, ok)
}
