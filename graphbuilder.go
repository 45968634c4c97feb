package fffc

import (
	"debug/dwarf"
	"fmt"
)

// TypeGraphBuilder lazily materializes a TypeNode for each DIE offset
// of one translation unit: the first cross-reference to an offset
// constructs the node, every later reference reuses it. It is an
// offset-keyed arena rather than an owning-pointer graph, so cycles
// cost nothing.
type TypeGraphBuilder struct {
	tu    *TranslationUnit
	nodes map[dwarf.Offset]TypeNode
	void  *VoidNode
}

// NewTypeGraphBuilder creates an empty, per-translation-unit builder.
func NewTypeGraphBuilder(tu *TranslationUnit) *TypeGraphBuilder {
	return &TypeGraphBuilder{
		tu:    tu,
		nodes: make(map[dwarf.Offset]TypeNode),
		void:  newVoidNode(tu),
	}
}

// GetOrAdd returns the node for offset, constructing it from its raw
// DIE on first request. DIEs with tags outside the recognized
// dispatch set are reported as a GraphError: the
// only way a well-formed producer reaches one is a DW_AT_type
// attribute pointing at something that isn't a type, which is a
// contradiction in the DWARF tree, not a normal "unsupported" case.
func (b *TypeGraphBuilder) GetOrAdd(offset dwarf.Offset) (TypeNode, error) {
	if offset == NoType {
		return b.void, nil
	}
	if n, ok := b.nodes[offset]; ok {
		return n, nil
	}

	die, ok := b.tu.DIE(offset)
	if !ok {
		return nil, GraphError{
			Unit:    b.tu.SourceFile,
			Offset:  offsetHex(offset),
			Message: "referenced DWARF offset has no DIE in this translation unit",
		}
	}

	node, err := b.construct(die)
	if node == nil {
		return nil, err
	}
	b.nodes[offset] = node
	return node, err
}

// TypeRef resolves the DW_AT_type attribute of die, defaulting to
// NoType (and hence the void node) when it is absent.
func (b *TypeGraphBuilder) TypeRef(die *dwarf.Entry) (TypeNode, error) {
	off, ok := attrOffset(die, dwarf.AttrType)
	if !ok {
		return b.void, nil
	}
	return b.GetOrAdd(off)
}

// construct dispatches on die.Tag into the variant constructor table.
// Each branch only allocates and seeds the node; member/parameter/
// dimension materialization (which itself recurses through GetOrAdd)
// happens in the scheduler and the builder helpers below, keeping node
// construction separate from the walk that resolves children.
func (b *TypeGraphBuilder) construct(die *dwarf.Entry) (TypeNode, error) {
	switch die.Tag {
	case dwarf.TagBaseType:
		return b.buildBase(die)
	case dwarf.TagEnumerationType:
		return b.buildEnum(die)
	case dwarf.TagStructType:
		return b.buildRecord(die, RecordStruct)
	case dwarf.TagUnionType:
		return b.buildRecord(die, RecordUnion)
	case dwarf.TagSubroutineType, dwarf.TagSubprogram:
		return b.buildFunction(die)
	case dwarf.TagAtomicType:
		return b.buildQualified(die, QualAtomic)
	case dwarf.TagArrayType:
		return b.buildArray(die)
	case dwarf.TagConstType:
		return b.buildQualified(die, QualConst)
	case dwarf.TagPointerType:
		return b.buildPointer(die)
	case dwarf.TagRestrictType:
		return b.buildQualified(die, QualRestrict)
	case dwarf.TagTypedef:
		return b.buildTypedef(die)
	case dwarf.TagVolatileType:
		return b.buildQualified(die, QualVolatile)
	default:
		return nil, GraphError{
			Unit:    b.tu.SourceFile,
			Offset:  offsetHex(die.Offset),
			Message: fmt.Sprintf("DIE tag %s is outside the recognized type-node dispatch table", die.Tag),
		}
	}
}

func (b *TypeGraphBuilder) buildBase(die *dwarf.Entry) (TypeNode, error) {
	encoding, _ := attrInt(die, dwarf.AttrEncoding)
	byteSize, _ := attrInt(die, dwarf.AttrByteSize)
	observed, _ := attrString(die, dwarf.AttrName)
	observed = rewriteSizetype(observed)

	canonical, known := canonicalBaseTypeName(encoding, byteSize)
	if !known {
		// Non-fatal. The node is still created, as StatusNew and named
		// from whatever DWARF observed, so the rest of the graph can
		// proceed; the header produced from it simply won't compile
		// until the table is extended.
		name := observed
		if name == "" {
			name = fmt.Sprintf("__fffc_unknown_base_%s", offsetHex(die.Offset))
		}
		node := newBaseTypeNode(b.tu, die.Offset, encoding, byteSize, observed, name)
		node.status = StatusNew
		return node, UnknownBaseTypeError{
			Unit:     b.tu.SourceFile,
			Offset:   offsetHex(die.Offset),
			Encoding: encoding,
			ByteSize: byteSize,
		}
	}
	return newBaseTypeNode(b.tu, die.Offset, encoding, byteSize, observed, canonical), nil
}

func (b *TypeGraphBuilder) buildEnum(die *dwarf.Entry) (TypeNode, error) {
	name, hasName := attrString(die, dwarf.AttrName)
	node := newEnumNode(b.tu, die.Offset, name, hasName)
	node.Declaration, _ = attrBool(die, dwarf.AttrDeclaration)

	if !node.Declaration {
		for _, child := range b.tu.children(die) {
			if child.Tag != dwarf.TagEnumerator {
				continue
			}
			memberName, _ := attrString(child, dwarf.AttrName)
			value, _ := attrInt(child, dwarf.AttrConstValue)
			node.Members = append(node.Members, EnumMember{Name: memberName, Value: value})
		}
	}
	node.setStatus(StatusDone)
	return node, nil
}

func (b *TypeGraphBuilder) buildRecord(die *dwarf.Entry, kind RecordKind) (TypeNode, error) {
	name, hasName := attrString(die, dwarf.AttrName)
	node := newRecordNode(b.tu, die.Offset, kind, name, hasName)
	node.Declaration, _ = attrBool(die, dwarf.AttrDeclaration)

	if node.Declaration {
		node.setStatus(StatusDone)
		return node, nil
	}

	for _, child := range b.tu.children(die) {
		if child.Tag != dwarf.TagMember {
			continue
		}
		memberName, hasMemberName := attrString(child, dwarf.AttrName)
		// A member with no type at all is a contradiction in the tree,
		// not a legitimate absence-means-void case.
		typeOff, err := demandOffset(b.tu, child, dwarf.AttrType)
		if err != nil {
			return nil, err
		}
		byteOffset, _ := attrInt(child, dwarf.AttrDataMemberLoc)
		bitSize, hasBitSize := attrInt(child, dwarf.AttrBitSize)

		member := RecordMember{
			Name:       memberName,
			HasName:    hasMemberName,
			TypeID:     typeOff,
			HasBitSize: hasBitSize,
			BitSize:    bitSize,
			ByteOffset: byteOffset,
		}
		node.Members = append(node.Members, member)

		if memberByteSize, ok := b.memberByteSize(typeOff); ok && memberByteSize > 0 {
			if byteOffset%memberByteSize != 0 {
				node.Packed = true
			}
		}
	}

	// Members are recorded now; the scheduler resolves each TypeID
	// through GetOrAdd when it visits this node, so construction itself
	// never forces a dependency's node into existence — laziness
	// applies per-member, not just per-top-level-type.
	return node, nil
}

// memberByteSize is a best-effort lookup used only to detect the
// packed flag (recorded but never emitted — see DESIGN.md). It
// tolerates an unresolved reference by reporting false rather than
// erroring, since packed-detection is advisory.
func (b *TypeGraphBuilder) memberByteSize(typeOff dwarf.Offset) (int64, bool) {
	die, ok := b.tu.DIE(typeOff)
	if !ok {
		return 0, false
	}
	if die.Tag == dwarf.TagPointerType {
		return pointerSize, true
	}
	size, ok := attrInt(die, dwarf.AttrByteSize)
	return size, ok
}

func (b *TypeGraphBuilder) buildFunction(die *dwarf.Entry) (TypeNode, error) {
	name, hasName := attrString(die, dwarf.AttrName)
	node := newFunctionNode(b.tu, die.Offset, name, hasName)

	returnOff, hasReturn := attrOffset(die, dwarf.AttrType)
	if hasReturn {
		node.ReturnType = returnOff
	} else {
		node.ReturnType = NoType
	}

	for _, child := range b.tu.children(die) {
		switch child.Tag {
		case dwarf.TagFormalParameter:
			paramName, _ := attrString(child, dwarf.AttrName)
			paramType, _ := attrOffset(child, dwarf.AttrType)
			node.Params = append(node.Params, FunctionParam{Name: paramName, TypeID: paramType})
		case dwarf.TagUnspecifiedParameters:
			node.Variadic = true
		}
	}

	external, _ := attrBool(die, dwarf.AttrExternal)
	lowpc, hasLowPC := attrAddr(die, dwarf.AttrLowpc)
	node.HasLowPC = hasLowPC
	node.LowPC = lowpc
	// A DIE with the external attribute but no low-PC is demoted to
	// non-external: it cannot be interposed on.
	node.External = external && hasLowPC

	node.setStatus(StatusDone)
	return node, nil
}

func (b *TypeGraphBuilder) buildTypedef(die *dwarf.Entry) (TypeNode, error) {
	name, _ := attrString(die, dwarf.AttrName)
	node := newTypedefNode(b.tu, die.Offset, name)
	underlying, hasUnderlying := attrOffset(die, dwarf.AttrType)
	if hasUnderlying {
		node.Underlying = underlying
	} else {
		node.Underlying = NoType
	}
	return node, nil
}

func (b *TypeGraphBuilder) buildQualified(die *dwarf.Entry, kind QualKind) (TypeNode, error) {
	node := newQualifiedNode(b.tu, die.Offset, kind)
	underlying, hasUnderlying := attrOffset(die, dwarf.AttrType)
	if hasUnderlying {
		node.Underlying = underlying
	} else {
		node.Underlying = NoType
	}
	return node, nil
}

func (b *TypeGraphBuilder) buildPointer(die *dwarf.Entry) (TypeNode, error) {
	node := newPointerNode(b.tu, die.Offset)
	underlying, hasUnderlying := attrOffset(die, dwarf.AttrType)
	if hasUnderlying {
		node.Underlying = underlying
	} else {
		node.Underlying = NoType
	}
	return node, nil
}

// buildArray resolves dimensions from the array DIE's subrange
// children: prefer upper_bound+1, fall back to count, and when both
// are present prefer upper_bound+1 rather than erroring — some
// producers legitimately emit both. See DESIGN.md for the tie-break
// decision.
func (b *TypeGraphBuilder) buildArray(die *dwarf.Entry) (TypeNode, error) {
	node := newArrayNode(b.tu, die.Offset)
	underlying, hasUnderlying := attrOffset(die, dwarf.AttrType)
	if hasUnderlying {
		node.Underlying = underlying
	} else {
		node.Underlying = NoType
	}

	for _, child := range b.tu.children(die) {
		if child.Tag != dwarf.TagSubrangeType {
			continue
		}
		upper, hasUpper := attrInt(child, dwarf.AttrUpperBound)
		count, hasCount := attrInt(child, dwarf.AttrCount)
		switch {
		case hasUpper:
			node.Dimensions = append(node.Dimensions, upper+1)
		case hasCount:
			node.Dimensions = append(node.Dimensions, count)
		default:
			node.Dimensions = append(node.Dimensions, 0)
		}
	}

	node.setStatus(StatusDone)
	return node, nil
}

// --- attribute helpers ---
//
// attr collapses "attribute not found" control flow into a
// (value, ok) pair. demand is the error-returning counterpart, used by
// call sites for which a missing attribute is a GraphError, not a
// legitimate absence.

func attrString(die *dwarf.Entry, attr dwarf.Attr) (string, bool) {
	v, ok := die.Val(attr).(string)
	return v, ok
}

func attrInt(die *dwarf.Entry, attr dwarf.Attr) (int64, bool) {
	v, ok := die.Val(attr).(int64)
	return v, ok
}

func attrBool(die *dwarf.Entry, attr dwarf.Attr) (bool, bool) {
	v, ok := die.Val(attr).(bool)
	return v, ok
}

func attrAddr(die *dwarf.Entry, attr dwarf.Attr) (uint64, bool) {
	v, ok := die.Val(attr).(uint64)
	return v, ok
}

func attrOffset(die *dwarf.Entry, attr dwarf.Attr) (dwarf.Offset, bool) {
	switch v := die.Val(attr).(type) {
	case dwarf.Offset:
		return v, true
	default:
		return 0, false
	}
}

// demandOffset is the Result-flavored counterpart to attrOffset: a
// missing DW_AT_type on a DIE the scheduler has already committed to
// treating as referencing a sub-type is a contradiction in the tree,
// not a legitimate absence, so it is surfaced as a GraphError instead
// of silently defaulting to void.
func demandOffset(tu *TranslationUnit, die *dwarf.Entry, attr dwarf.Attr) (dwarf.Offset, error) {
	off, ok := attrOffset(die, attr)
	if !ok {
		return 0, GraphError{
			Unit:    tu.SourceFile,
			Offset:  offsetHex(die.Offset),
			Message: fmt.Sprintf("missing required attribute %s", attr),
		}
	}
	return off, nil
}
