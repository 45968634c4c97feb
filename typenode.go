package fffc

import "debug/dwarf"

// TypeId is a DWARF offset used purely as a handle into a translation
// unit's type graph. Mutual references between nodes are expressed
// only by this offset-keyed handle, never by a shared owning pointer —
// the graph can and does contain cycles (struct A has a *B, struct B
// has a *A), and an owning-pointer
// representation can't express that in a language without a GC doing
// the cycle collection for you.
type TypeId = dwarf.Offset

// NoType is the sentinel TypeId meaning "no DW_AT_type attribute was
// present". A DIE missing that attribute always means void: the void
// pseudo-type is returned whenever a type attribute is absent on a DIE
// that references a sub-type. Offset 0 is safe to reuse for this: it
// is always the section's first compile-unit header, never a type DIE
// a real DW_AT_type attribute would point to.
const NoType TypeId = 0

// NodeStatus is a type node's three-state lifecycle: monotonic,
// never regresses.
type NodeStatus int

const (
	StatusNew NodeStatus = iota
	StatusDeclared
	StatusDone
)

func (s NodeStatus) String() string {
	switch s {
	case StatusNew:
		return "NEW"
	case StatusDeclared:
		return "DECLARED"
	case StatusDone:
		return "DONE"
	default:
		return "?"
	}
}

// TypeNode is the sum type over every recognized DWARF type category.
// Every variant embeds *nodeBase for the attributes common to all of
// them (owning translation unit, source DIE, optional name, lifecycle
// status) and adds its own fields. Operations that differ per variant
// (declare, define, reference, mutator synthesis) are dispatched
// either through Accept/TypeNodeVisitor or by a type switch in the
// scheduler and synthesizer.
type TypeNode interface {
	TU() *TranslationUnit
	DIEOffset() dwarf.Offset
	// Name returns the type's name and whether it has one at all;
	// anonymous types (absent ⇒ unnamed struct/union/enum) return
	// ("", false).
	Name() (string, bool)
	Status() NodeStatus
	Accept(TypeNodeVisitor) error

	setStatus(NodeStatus)
}

type nodeBase struct {
	tu      *TranslationUnit
	offset  dwarf.Offset
	name    string
	hasName bool
	status  NodeStatus
}

func (n *nodeBase) TU() *TranslationUnit    { return n.tu }
func (n *nodeBase) DIEOffset() dwarf.Offset { return n.offset }
func (n *nodeBase) Name() (string, bool)    { return n.name, n.hasName }
func (n *nodeBase) Status() NodeStatus      { return n.status }

// setStatus advances the node's lifecycle. It panics on regression:
// transitions are monotonic and a DONE node never regresses, so a
// backwards move indicates a bug in the scheduler, not a legitimate
// DWARF shape.
func (n *nodeBase) setStatus(s NodeStatus) {
	if s < n.status {
		panic("fffc: type node status regression")
	}
	n.status = s
}

// TypeNodeVisitor dispatches per-variant behavior through Accept, for
// code that wants exhaustive per-kind handling instead of a type
// switch. No type in this package implements it: the scheduler and the
// mutator synthesizer both dispatch by type switch.
type TypeNodeVisitor interface {
	VisitVoid(*VoidNode) error
	VisitBase(*BaseTypeNode) error
	VisitEnum(*EnumNode) error
	VisitRecord(*RecordNode) error
	VisitFunction(*FunctionNode) error
	VisitTypedef(*TypedefNode) error
	VisitQualified(*QualifiedNode) error
	VisitPointer(*PointerNode) error
	VisitArray(*ArrayNode) error
}

// ---- Void ----

// VoidNode is the singleton pseudo-type returned whenever a DIE has
// no DW_AT_type attribute. It is always DONE.
type VoidNode struct{ nodeBase }

func newVoidNode(tu *TranslationUnit) *VoidNode {
	return &VoidNode{nodeBase{tu: tu, offset: NoType, name: "void", hasName: true, status: StatusDone}}
}

func (n *VoidNode) Accept(v TypeNodeVisitor) error { return v.VisitVoid(n) }

// ---- Base ----

// BaseTypeNode models a DW_TAG_base_type DIE. CanonicalName is looked
// up from the fixed (encoding, size) table in basetype.go; ObservedName
// is whatever DW_AT_name the producer wrote. Name() returns
// CanonicalName: that's the name every other node references this
// type by.
type BaseTypeNode struct {
	nodeBase
	Encoding      int64
	ByteSize      int64
	ObservedName  string
	CanonicalName string
}

func newBaseTypeNode(tu *TranslationUnit, offset dwarf.Offset, encoding, byteSize int64, observedName, canonicalName string) *BaseTypeNode {
	return &BaseTypeNode{
		nodeBase:      nodeBase{tu: tu, offset: offset, name: canonicalName, hasName: true, status: StatusDone},
		Encoding:      encoding,
		ByteSize:      byteSize,
		ObservedName:  observedName,
		CanonicalName: canonicalName,
	}
}

func (n *BaseTypeNode) Accept(v TypeNodeVisitor) error { return v.VisitBase(n) }

// ---- Enum ----

type EnumMember struct {
	Name  string
	Value int64
}

type EnumNode struct {
	nodeBase
	Members     []EnumMember
	Declaration bool
}

func newEnumNode(tu *TranslationUnit, offset dwarf.Offset, name string, hasName bool) *EnumNode {
	return &EnumNode{nodeBase: nodeBase{tu: tu, offset: offset, name: name, hasName: hasName, status: StatusNew}}
}

func (n *EnumNode) Accept(v TypeNodeVisitor) error { return v.VisitEnum(n) }

// ---- Struct / Union ----

type RecordKind int

const (
	RecordStruct RecordKind = iota
	RecordUnion
)

func (k RecordKind) Keyword() string {
	if k == RecordUnion {
		return "union"
	}
	return "struct"
}

// RecordMember is one struct/union member. TypeID is an offset-keyed
// reference resolved lazily through the owning translation unit's
// builder — never a direct TypeNode pointer.
type RecordMember struct {
	Name       string
	HasName    bool
	TypeID     TypeId
	HasBitSize bool
	BitSize    int64
	ByteOffset int64
}

type RecordNode struct {
	nodeBase
	Kind        RecordKind
	Members     []RecordMember
	Packed      bool
	Declaration bool
}

func newRecordNode(tu *TranslationUnit, offset dwarf.Offset, kind RecordKind, name string, hasName bool) *RecordNode {
	return &RecordNode{nodeBase: nodeBase{tu: tu, offset: offset, name: name, hasName: hasName, status: StatusNew}, Kind: kind}
}

func (n *RecordNode) Accept(v TypeNodeVisitor) error { return v.VisitRecord(n) }

// ---- Function ----

type FunctionParam struct {
	Name   string
	TypeID TypeId
}

// FunctionNode models both DW_TAG_subroutine_type (a function type,
// e.g. for a function pointer) and DW_TAG_subprogram (an actual
// function). Only the latter can ever be External with a LowPC,
// making it eligible as a shim target.
type FunctionNode struct {
	nodeBase
	ReturnType TypeId
	Params     []FunctionParam
	Variadic   bool
	External   bool
	HasLowPC   bool
	LowPC      uint64
}

func newFunctionNode(tu *TranslationUnit, offset dwarf.Offset, name string, hasName bool) *FunctionNode {
	return &FunctionNode{nodeBase: nodeBase{tu: tu, offset: offset, name: name, hasName: hasName, status: StatusNew}}
}

func (n *FunctionNode) Accept(v TypeNodeVisitor) error { return v.VisitFunction(n) }

// ShimEligible reports whether this function may be interposed on:
// external, with a known low-PC, non-variadic, and at least one
// parameter.
func (n *FunctionNode) ShimEligible() bool {
	return n.External && n.HasLowPC && !n.Variadic && len(n.Params) >= 1
}

// ---- Typedef ----

// TypedefNode is the one Modifier variant that owns its own name
// rather than behaving as anonymous.
type TypedefNode struct {
	nodeBase
	Underlying TypeId
}

func newTypedefNode(tu *TranslationUnit, offset dwarf.Offset, name string) *TypedefNode {
	return &TypedefNode{nodeBase: nodeBase{tu: tu, offset: offset, name: name, hasName: true, status: StatusNew}}
}

func (n *TypedefNode) Accept(v TypeNodeVisitor) error { return v.VisitTypedef(n) }

// ---- Qualified ----

type QualKind int

const (
	QualConst QualKind = iota
	QualVolatile
	QualRestrict
	QualAtomic
)

func (k QualKind) Keyword() string {
	switch k {
	case QualConst:
		return "const"
	case QualVolatile:
		return "volatile"
	case QualRestrict:
		return "restrict"
	case QualAtomic:
		return "_Atomic"
	default:
		return ""
	}
}

type QualifiedNode struct {
	nodeBase
	Kind       QualKind
	Underlying TypeId
}

func newQualifiedNode(tu *TranslationUnit, offset dwarf.Offset, kind QualKind) *QualifiedNode {
	return &QualifiedNode{nodeBase: nodeBase{tu: tu, offset: offset, status: StatusNew}, Kind: kind}
}

func (n *QualifiedNode) Accept(v TypeNodeVisitor) error { return v.VisitQualified(n) }

// ---- Pointer ----

// PointerNode is the only variant that, while defining itself,
// requires only a declaration of its pointee — the rule that breaks
// cycles in the dependency graph.
type PointerNode struct {
	nodeBase
	Underlying TypeId
}

const pointerSize = 8

func newPointerNode(tu *TranslationUnit, offset dwarf.Offset) *PointerNode {
	return &PointerNode{nodeBase: nodeBase{tu: tu, offset: offset, status: StatusNew}}
}

func (n *PointerNode) Accept(v TypeNodeVisitor) error { return v.VisitPointer(n) }

// ---- Array ----

type ArrayNode struct {
	nodeBase
	Underlying TypeId
	// Dimensions holds one resolved extent per subrange DIE, from the
	// outermost to the innermost declared dimension.
	Dimensions []int64
}

func newArrayNode(tu *TranslationUnit, offset dwarf.Offset) *ArrayNode {
	return &ArrayNode{nodeBase: nodeBase{tu: tu, offset: offset, status: StatusNew}}
}

func (n *ArrayNode) Accept(v TypeNodeVisitor) error { return v.VisitArray(n) }

// ElementCount is the product of all declared dimensions, used by
// both the size-of helper and the mutator's iteration bound.
func (n *ArrayNode) ElementCount() int64 {
	count := int64(1)
	for _, d := range n.Dimensions {
		count *= d
	}
	return count
}
