package fffc

import "sort"

// baseTypeKey identifies a base type by its DW_AT_encoding and
// DW_AT_byte_size, the two attributes the canonical table is keyed
// on.
type baseTypeKey struct {
	Encoding int64
	ByteSize int64
}

// DWARF base-type encodings (DW_ATE_*) relevant to the canonical
// table below.
const (
	ateBoolean      = 0x02
	ateFloat        = 0x04
	ateSigned       = 0x05
	ateSignedChar   = 0x06
	ateUnsigned     = 0x07
	ateUnsignedChar = 0x08
)

// canonicalBaseTypeNames is the fixed (encoding, size) → name table.
// It is the authority the generator uses whenever it needs a type
// name a C compiler will accept, overriding whatever (possibly
// compiler-specific) name the DIE itself carries.
var canonicalBaseTypeNames = map[baseTypeKey]string{
	{ateBoolean, 1}: "_Bool",

	{ateSignedChar, 1}:   "char",
	{ateUnsignedChar, 1}: "unsigned char",

	{ateSigned, 2}:   "short",
	{ateUnsigned, 2}: "short unsigned int",

	{ateSigned, 4}:   "int",
	{ateUnsigned, 4}: "unsigned int",

	{ateSigned, 8}:   "long long int",
	{ateUnsigned, 8}: "size_t",

	{ateSigned, 16}:   "__int128",
	{ateUnsigned, 16}: "__int128 unsigned",

	{ateFloat, 4}:  "float",
	{ateFloat, 8}:  "double",
	{ateFloat, 16}: "long double",
}

// canonicalBaseTypeName looks up the fixed name for an (encoding,
// size) pair. The second return value is false for anything outside
// the table — the caller treats that as UnknownBaseTypeError:
// non-fatal, but surfaced, and the resulting header will fail to
// compile until the table is extended.
func canonicalBaseTypeName(encoding, byteSize int64) (string, bool) {
	name, ok := canonicalBaseTypeNames[baseTypeKey{encoding, byteSize}]
	return name, ok
}

// canonicalBaseTypeNameList returns every canonical base-type name in
// a fixed sorted order, so the base mutators synthesized from it come
// out byte-identical across runs.
func canonicalBaseTypeNameList() []string {
	names := make([]string, 0, len(canonicalBaseTypeNames))
	for _, name := range canonicalBaseTypeNames {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// rewriteSizetype applies the one per-producer naming workaround:
// some producers emit DW_AT_name "sizetype" for what is really
// size_t.
func rewriteSizetype(observedName string) string {
	if observedName == "sizetype" {
		return "size_t"
	}
	return observedName
}
