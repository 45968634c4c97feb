package fffc

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMutatorSynthesizerStructBasic(t *testing.T) {
	tu := newFakeTU("point.c")
	cfg := NewConfig()
	tu.Scheduler = NewScheduler(tu, cfg)

	intType := newBaseTypeNode(tu, 0x10, ateSigned, 4, "int", "int")
	tu.put(0x10, intType)
	rec := newRecordNode(tu, 0x11, RecordStruct, "point", true)
	rec.Members = []RecordMember{
		{Name: "x", HasName: true, TypeID: 0x10},
		{Name: "y", HasName: true, TypeID: 0x10},
	}
	tu.put(0x11, rec)

	ms := NewMutatorSynthesizer(tu, cfg)
	mutatorFn, sizeofFn, err := ms.NameFor(rec)
	require.NoError(t, err)

	assert.Equal(t, "_Z_fffc_mutator_", mutatorFn[:len("_Z_fffc_mutator_")])
	assert.Equal(t, "fffc_get_sizeof_", sizeofFn[:len("fffc_get_sizeof_")])

	require.Len(t, ms.Definitions(), 1)
	def := ms.Definitions()[0]
	assert.Contains(t, def, "int "+mutatorFn+"(struct point *storage)")
	assert.Contains(t, def, "unsigned long "+sizeofFn+"(struct point *storage)")

	intMutator := mutatorName(cfg, "int")
	assert.Contains(t, def, intMutator+"(&storage->x);")
	assert.Contains(t, def, intMutator+"(&storage->y);")

	mutatorFn2, sizeofFn2, err := ms.NameFor(rec)
	require.NoError(t, err)
	assert.Equal(t, mutatorFn, mutatorFn2)
	assert.Equal(t, sizeofFn, sizeofFn2)
	assert.Len(t, ms.Definitions(), 1, "repeated synthesis of the same type must not duplicate output")
}

func TestMutatorSynthesizerPointer(t *testing.T) {
	tu := newFakeTU("ptr.c")
	cfg := NewConfig()
	tu.Scheduler = NewScheduler(tu, cfg)

	intType := newBaseTypeNode(tu, 0x20, ateSigned, 4, "int", "int")
	tu.put(0x20, intType)
	ptr := newPointerNode(tu, 0x21)
	ptr.Underlying = 0x20
	tu.put(0x21, ptr)

	ms := NewMutatorSynthesizer(tu, cfg)
	mutatorFn, _, err := ms.NameFor(ptr)
	require.NoError(t, err)

	require.Len(t, ms.Definitions(), 1)
	def := ms.Definitions()[0]
	assert.Contains(t, def, "int **storage)")
	pointeeMutator := mutatorName(cfg, "int")
	assert.Contains(t, def, pointeeMutator+"(*storage)")
	assert.Contains(t, def, "int "+mutatorFn+"(int **storage)")
	// The pointer's own size-of reports the pointer value's storage
	// size, not the pointee's.
	assert.Contains(t, def, "return sizeof(*storage);")
	assert.NotContains(t, def, sizeofName(cfg, "int")+"(*storage)")
}

func TestMutatorSynthesizerArrayOfPointers(t *testing.T) {
	tu := newFakeTU("arrptr.c")
	cfg := NewConfig()
	tu.Scheduler = NewScheduler(tu, cfg)

	intType := newBaseTypeNode(tu, 0x25, ateSigned, 4, "int", "int")
	tu.put(0x25, intType)
	ptr := newPointerNode(tu, 0x26)
	ptr.Underlying = 0x25
	tu.put(0x26, ptr)
	arr := newArrayNode(tu, 0x27)
	arr.Underlying = 0x26
	arr.Dimensions = []int64{4}
	tu.put(0x27, arr)

	ms := NewMutatorSynthesizer(tu, cfg)
	_, arraySizeof, err := ms.NameFor(arr)
	require.NoError(t, err)

	joined := strings.Join(ms.Definitions(), "")
	// The array's size is the element count times the pointer element's
	// own size (4 * sizeof(int *)): the delegated element size-of must
	// be the int-pointer helper, whose body reports sizeof(*storage).
	elemSizeof := sizeofName(cfg, "int *")
	assert.Contains(t, joined, "unsigned long "+arraySizeof+"(int * *storage)")
	assert.Contains(t, joined, "return 4 * "+elemSizeof+"(storage);")
	assert.Contains(t, joined, "unsigned long "+elemSizeof+"(int **storage) {\n    return sizeof(*storage);\n}")
	elemMutator := mutatorName(cfg, "int *")
	assert.Contains(t, joined, elemMutator+"(&storage[fffc_i]);")
}

func TestMutatorSynthesizerEnum(t *testing.T) {
	tu := newFakeTU("enum.c")
	cfg := NewConfig()
	tu.Scheduler = NewScheduler(tu, cfg)

	e := newEnumNode(tu, 0x30, "color", true)
	e.Members = []EnumMember{
		{Name: "RED", Value: 0},
		{Name: "GREEN", Value: 1},
		{Name: "BLUE", Value: 2},
	}
	tu.put(0x30, e)

	ms := NewMutatorSynthesizer(tu, cfg)
	mutatorFn, _, err := ms.NameFor(e)
	require.NoError(t, err)

	require.Len(t, ms.Definitions(), 1)
	def := ms.Definitions()[0]
	assert.Contains(t, def, "int "+mutatorFn+"(enum color *storage)")
	assert.Contains(t, def, "int values[3] = { 0, 1, 2 };")
}

func TestMutatorSynthesizerUnion(t *testing.T) {
	tu := newFakeTU("union.c")
	cfg := NewConfig()
	tu.Scheduler = NewScheduler(tu, cfg)

	intType := newBaseTypeNode(tu, 0x40, ateSigned, 4, "int", "int")
	floatType := newBaseTypeNode(tu, 0x41, ateFloat, 4, "float", "float")
	tu.put(0x40, intType)
	tu.put(0x41, floatType)

	u := newRecordNode(tu, 0x42, RecordUnion, "number", true)
	u.Members = []RecordMember{
		{Name: "i", HasName: true, TypeID: 0x40},
		{Name: "f", HasName: true, TypeID: 0x41},
	}
	tu.put(0x42, u)

	ms := NewMutatorSynthesizer(tu, cfg)
	mutatorFn, _, err := ms.NameFor(u)
	require.NoError(t, err)

	require.Len(t, ms.Definitions(), 1)
	def := ms.Definitions()[0]
	assert.Contains(t, def, "int "+mutatorFn+"(union number *storage)")
	assert.Contains(t, def, "fffc_get_random() % 2")
	assert.Contains(t, def, "if (rnd == 0) {")
	assert.Contains(t, def, "if (rnd == 1) {")
	assert.Contains(t, def, mutatorName(cfg, "int")+"(&storage->i);")
	assert.Contains(t, def, mutatorName(cfg, "float")+"(&storage->f);")
}

func TestEmitDoNothingStubsOneOfEachDepth(t *testing.T) {
	tu := newFakeTU("dn.c")
	cfg := NewConfig()
	ms := NewMutatorSynthesizer(tu, cfg)

	require.NoError(t, ms.EmitDoNothingStubs("mystery_t"))

	assert.Len(t, ms.Definitions(), 6)
	assert.Len(t, ms.Declarations(), 6)
}

func TestEmitDoNothingStubsDedupByMangledName(t *testing.T) {
	tu := newFakeTU("dn2.c")
	cfg := NewConfig()
	ms := NewMutatorSynthesizer(tu, cfg)

	require.NoError(t, ms.EmitDoNothingStubs("mystery_t"))
	require.NoError(t, ms.EmitDoNothingStubs("mystery_t"))

	assert.Len(t, ms.Definitions(), 6)
}

func TestSynthesizeBaseMutatorsCoversCanonicalTable(t *testing.T) {
	cfg := NewConfig()
	decls, defns, err := SynthesizeBaseMutators(cfg)
	require.NoError(t, err)
	require.Len(t, defns, len(canonicalBaseTypeNames)+1, "one definition per canonical base type plus void")
	assert.Len(t, decls, len(defns))

	joined := strings.Join(defns, "")
	assert.Contains(t, joined, "int "+mutatorName(cfg, "int")+"(int *storage)")
	assert.Contains(t, joined, "unsigned long "+sizeofName(cfg, "int")+"(int *storage)")
	assert.Contains(t, joined, mutatorName(cfg, "void"))
	assert.Contains(t, joined, mutatorName(cfg, "double"))
}

func TestSynthesizeBaseMutatorsDeterministicAcrossCalls(t *testing.T) {
	cfg := NewConfig()
	_, first, err := SynthesizeBaseMutators(cfg)
	require.NoError(t, err)
	_, second, err := SynthesizeBaseMutators(cfg)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestBaseMutatorNameMatchesStructMemberCall(t *testing.T) {
	tu := newFakeTU("link.c")
	cfg := NewConfig()
	tu.Scheduler = NewScheduler(tu, cfg)

	intType := newBaseTypeNode(tu, 0xa0, ateSigned, 4, "int", "int")
	tu.put(0xa0, intType)
	rec := newRecordNode(tu, 0xa1, RecordStruct, "holder", true)
	rec.Members = []RecordMember{{Name: "v", HasName: true, TypeID: 0xa0}}
	tu.put(0xa1, rec)

	ms := NewMutatorSynthesizer(tu, cfg)
	_, _, err := ms.NameFor(rec)
	require.NoError(t, err)

	_, baseDefns, err := SynthesizeBaseMutators(cfg)
	require.NoError(t, err)

	// The struct body's member call must resolve to a definition in the
	// target-wide base mutator set.
	memberCall := mutatorName(cfg, "int")
	assert.Contains(t, ms.Definitions()[0], memberCall+"(&storage->v);")
	assert.Contains(t, strings.Join(baseDefns, ""), "int "+memberCall+"(int *storage)")
}

func TestEmitDoNothingStubSeedsMatchDeclaratorSpelling(t *testing.T) {
	tu := newFakeTU("dn3.c")
	cfg := NewConfig()
	ms := NewMutatorSynthesizer(tu, cfg)

	require.NoError(t, ms.EmitDoNothingStubs("mystery_t"))

	joined := strings.Join(ms.Definitions(), "")
	assert.Contains(t, joined, mutatorName(cfg, "mystery_t"))
	assert.Contains(t, joined, mutatorName(cfg, "mystery_t *"))
	assert.Contains(t, joined, mutatorName(cfg, "mystery_t **"))
	assert.Contains(t, joined, sizeofName(cfg, "mystery_t"))
}

func TestStructBodyBitfieldCopiesLocalVariable(t *testing.T) {
	tu := newFakeTU("bf.c")
	cfg := NewConfig()
	tu.Scheduler = NewScheduler(tu, cfg)

	intType := newBaseTypeNode(tu, 0x50, ateSigned, 4, "int", "int")
	tu.put(0x50, intType)
	rec := newRecordNode(tu, 0x51, RecordStruct, "flags", true)
	rec.Members = []RecordMember{
		{Name: "bit", HasName: true, TypeID: 0x50, HasBitSize: true, BitSize: 1},
	}
	tu.put(0x51, rec)

	ms := NewMutatorSynthesizer(tu, cfg)
	_, _, err := ms.NameFor(rec)
	require.NoError(t, err)

	def := ms.Definitions()[0]
	assert.Contains(t, def, "storage->bit;")
	assert.Contains(t, def, "storage->bit = fffc_bf_0;")
}

func TestStructBodySkipsArrayTypedBitfield(t *testing.T) {
	tu := newFakeTU("abf.c")
	cfg := NewConfig()
	tu.Scheduler = NewScheduler(tu, cfg)

	intType := newBaseTypeNode(tu, 0x60, ateSigned, 4, "int", "int")
	tu.put(0x60, intType)
	arr := newArrayNode(tu, 0x61)
	arr.Underlying = 0x60
	arr.Dimensions = []int64{4}
	tu.put(0x61, arr)

	rec := newRecordNode(tu, 0x62, RecordStruct, "weird", true)
	rec.Members = []RecordMember{
		{Name: "bits", HasName: true, TypeID: 0x61, HasBitSize: true, BitSize: 4},
	}
	tu.put(0x62, rec)

	ms := NewMutatorSynthesizer(tu, cfg)
	_, _, err := ms.NameFor(rec)
	require.NoError(t, err)

	def := ms.Definitions()[0]
	assert.Contains(t, def, `skipping array-typed bitfield member "bits"`)
}

func TestStructBodyInlinesAnonymousAggregateMember(t *testing.T) {
	tu := newFakeTU("anon.c")
	cfg := NewConfig()
	tu.Scheduler = NewScheduler(tu, cfg)

	intType := newBaseTypeNode(tu, 0x70, ateSigned, 4, "int", "int")
	tu.put(0x70, intType)

	inner := newRecordNode(tu, 0x71, RecordStruct, "", false)
	inner.Members = []RecordMember{{Name: "z", HasName: true, TypeID: 0x70}}
	tu.put(0x71, inner)

	outer := newRecordNode(tu, 0x72, RecordStruct, "outer", true)
	outer.Members = []RecordMember{
		{Name: "", HasName: false, TypeID: 0x71},
	}
	tu.put(0x72, outer)

	ms := NewMutatorSynthesizer(tu, cfg)
	_, _, err := ms.NameFor(outer)
	require.NoError(t, err)

	def := ms.Definitions()[0]
	assert.Contains(t, def, mutatorName(cfg, "int")+"(&storage->z);")
}

func TestStructBodyInlinesAnonymousUnionMemberAsRandomArmPick(t *testing.T) {
	tu := newFakeTU("anonunion.c")
	cfg := NewConfig()
	tu.Scheduler = NewScheduler(tu, cfg)

	intType := newBaseTypeNode(tu, 0x80, ateSigned, 4, "int", "int")
	floatType := newBaseTypeNode(tu, 0x81, ateFloat, 4, "float", "float")
	tu.put(0x80, intType)
	tu.put(0x81, floatType)

	anonUnion := newRecordNode(tu, 0x82, RecordUnion, "", false)
	anonUnion.Members = []RecordMember{
		{Name: "i", HasName: true, TypeID: 0x80},
		{Name: "f", HasName: true, TypeID: 0x81},
	}
	tu.put(0x82, anonUnion)

	outer := newRecordNode(tu, 0x83, RecordStruct, "withAnonUnion", true)
	outer.Members = []RecordMember{
		{Name: "", HasName: false, TypeID: 0x82},
	}
	tu.put(0x83, outer)

	ms := NewMutatorSynthesizer(tu, cfg)
	_, _, err := ms.NameFor(outer)
	require.NoError(t, err)

	def := ms.Definitions()[0]
	// One arm picked at random, not every arm mutated unconditionally.
	assert.Contains(t, def, "fffc_get_random() % 2")
	assert.Contains(t, def, "if (")
	assert.Contains(t, def, mutatorName(cfg, "int")+"(&storage->i);")
	assert.Contains(t, def, mutatorName(cfg, "float")+"(&storage->f);")
	assert.NotContains(t, def, mutatorName(cfg, "int")+"(&storage->i);\n    "+mutatorName(cfg, "float"))
}

func TestStructBodyInlinesAnonymousEnumMemberAsRandomValuePick(t *testing.T) {
	tu := newFakeTU("anonenum.c")
	cfg := NewConfig()
	tu.Scheduler = NewScheduler(tu, cfg)

	anonEnum := newEnumNode(tu, 0x90, "", false)
	anonEnum.Members = []EnumMember{
		{Name: "RED", Value: 0},
		{Name: "GREEN", Value: 1},
		{Name: "BLUE", Value: 2},
	}
	tu.put(0x90, anonEnum)

	outer := newRecordNode(tu, 0x91, RecordStruct, "withAnonEnum", true)
	outer.Members = []RecordMember{
		{Name: "", HasName: false, TypeID: 0x90, ByteOffset: 4},
	}
	tu.put(0x91, outer)

	ms := NewMutatorSynthesizer(tu, cfg)
	_, _, err := ms.NameFor(outer)
	require.NoError(t, err)

	def := ms.Definitions()[0]
	assert.Contains(t, def, "0, 1, 2")
	assert.Contains(t, def, "fffc_get_random() % 3")
	assert.Contains(t, def, "(char *)storage + 4")
}
