package fffc

import (
	"fmt"
	"strings"
)

// cWriter accumulates indented C source text for the bodies the
// scheduler composes (enum/struct/union definitions): indent and
// unindent raise and lower the indent level (callers raise it after an
// open brace and lower it before the close brace), and writeil/writei
// prefix a line with the current indent before appending it. This is
// the scheduler's own text-emission helper, not a general-purpose code
// generator — it only ever backs enumBodyText/recordBodyText below.
type cWriter struct {
	buffer      *strings.Builder
	indentLevel int
	space       string
}

func newCWriter(space string) *cWriter {
	return &cWriter{buffer: &strings.Builder{}, space: space}
}

func (o *cWriter) indent()   { o.indentLevel++ }
func (o *cWriter) unindent() { o.indentLevel-- }

func (o *cWriter) writeIndent() {
	for i := 0; i < o.indentLevel; i++ {
		o.buffer.WriteString(o.space)
	}
}

func (o *cWriter) writei(s string) {
	o.writeIndent()
	o.write(s)
}

func (o *cWriter) writeil(s string) {
	o.writeIndent()
	o.write(s)
	o.write("\n")
}

func (o *cWriter) writel(s string) {
	o.write(s)
	o.buffer.WriteString("\n")
}

func (o *cWriter) write(s string) { o.buffer.WriteString(s) }

// Scheduler orders declarations against definitions. It walks type
// nodes, asking each for its definition, which transitively forces
// declarations or definitions of dependencies according to the node's
// kind, emitting the resulting top-level forms into the translation
// unit's HeaderAccumulator in discovery order.
//
// Dispatch is a type switch rather than a full TypeNodeVisitor
// implementation per operation (the mutator synthesizer dispatches by
// type switch too): a single switch reads better than three 9-method
// visitor structs for declare, define and reference.
type Scheduler struct {
	tu  *TranslationUnit
	cfg *Config

	// emitted tracks, per DIE offset, the highest status this
	// scheduler has already emitted header text for. It is distinct
	// from the node's own Status(): an Enum node, or a Base node found
	// in the canonical table, is StatusDone the moment the graph
	// builder constructs it (its fields need no further resolution),
	// but its header text is only emitted once, the first time the
	// scheduler visits it. A Base node missing from the table starts
	// as StatusNew and becomes StatusDone when defineBase visits it.
	emitted map[TypeId]NodeStatus
}

// NewScheduler creates a scheduler for one translation unit.
func NewScheduler(tu *TranslationUnit, cfg *Config) *Scheduler {
	return &Scheduler{tu: tu, cfg: cfg, emitted: make(map[TypeId]NodeStatus)}
}

func (s *Scheduler) emittedAtLeast(node TypeNode, want NodeStatus) bool {
	return s.emitted[node.DIEOffset()] >= want
}

func (s *Scheduler) markEmitted(node TypeNode, status NodeStatus) {
	if cur := s.emitted[node.DIEOffset()]; status > cur {
		s.emitted[node.DIEOffset()] = status
	}
}

func (s *Scheduler) builder() *TypeGraphBuilder { return s.tu.Builder() }

func (s *Scheduler) underlying(id TypeId) (TypeNode, error) {
	return s.builder().GetOrAdd(id)
}

// tagName returns the name the scheduler uses in `struct`/`union`/
// `enum` forms: the DIE's own name, or an offset-derived synthetic tag
// for an anonymous aggregate (a pointer to an anonymous struct still
// needs some tag to forward-declare).
func (s *Scheduler) tagName(node TypeNode) string {
	name, hasName := node.Name()
	if hasName && name != "" {
		return name
	}
	return "fffc_anon_" + offsetHex(node.DIEOffset())
}

func isAnonymousAggregate(node TypeNode) bool {
	switch n := node.(type) {
	case *RecordNode:
		_, hasName := n.Name()
		return !hasName
	case *EnumNode:
		_, hasName := n.Name()
		return !hasName
	default:
		return false
	}
}

// Declare ensures node is at least StatusDeclared, emitting whatever
// header text that requires. Declare never requires a non-pointer
// dependency's full definition — only its own declaration or, for
// trivially-defined variants (Void, Base, Function-as-reference), the
// same work Define would do, since for those define and declare
// coincide.
func (s *Scheduler) Declare(node TypeNode) error {
	if s.emittedAtLeast(node, StatusDeclared) {
		return nil
	}
	switch n := node.(type) {
	case *VoidNode:
		s.markEmitted(node, StatusDeclared)
		return nil
	case *BaseTypeNode:
		return s.defineBase(n)
	case *EnumNode:
		return s.declareRecordLike(node, n.keyword())
	case *RecordNode:
		return s.declareRecordLike(node, n.Kind.Keyword())
	case *FunctionNode:
		s.markEmitted(node, StatusDeclared)
		return nil
	case *TypedefNode:
		s.markEmitted(node, StatusDeclared)
		return nil
	case *QualifiedNode:
		under, err := s.underlying(n.Underlying)
		if err != nil {
			return err
		}
		if err := s.Declare(under); err != nil {
			return err
		}
		s.markEmitted(node, StatusDeclared)
		return nil
	case *PointerNode:
		under, err := s.underlying(n.Underlying)
		if err != nil {
			return err
		}
		// The load-bearing cycle-breaking rule: a pointer only ever
		// requires a declaration of its pointee.
		if err := s.Declare(under); err != nil {
			return err
		}
		s.markEmitted(node, StatusDeclared)
		return nil
	case *ArrayNode:
		under, err := s.underlying(n.Underlying)
		if err != nil {
			return err
		}
		if err := s.Declare(under); err != nil {
			return err
		}
		s.markEmitted(node, StatusDeclared)
		return nil
	default:
		return fmt.Errorf("fffc: scheduler cannot declare unrecognized node type %T", node)
	}
}

// keyword lets EnumNode share declareRecordLike's "kw tag;"
// forward-declaration text with RecordNode without EnumNode having to
// carry a RecordKind of its own.
func (n *EnumNode) keyword() string { return "enum" }

// declareRecordLike emits the "kw tag;" forward declaration shared by
// struct, union and enum, used both as Declare's own effect and as the
// first step of defining any of the three — they always pass through a
// forward declaration on the way to a full definition.
func (s *Scheduler) declareRecordLike(node TypeNode, keyword string) error {
	if s.emittedAtLeast(node, StatusDeclared) {
		return nil
	}
	tag := s.tagName(node)
	s.tu.Header.Emit(CForm{Name: tag, Kind: FormDeclaration, Text: keyword + " " + tag + ";"})
	s.tu.Header.SetDefinedStatus(tag, StatusDeclared)
	if name, hasName := node.Name(); hasName {
		s.tu.Header.SetNamed(name, node)
	}
	s.markEmitted(node, StatusDeclared)
	return nil
}

// defineBase handles both Declare and Define for a base type: the two
// coincide, and the only possible emission is the canonical→observed
// alias typedef when the producer's own spelling differs from the
// canonical table entry.
func (s *Scheduler) defineBase(n *BaseTypeNode) error {
	if n.ObservedName != "" && n.ObservedName != n.CanonicalName {
		text := "typedef " + n.CanonicalName + " " + n.ObservedName + ";"
		s.tu.Header.Emit(CForm{Name: n.ObservedName, Kind: FormDeclaration, Text: text})
	}
	n.setStatus(StatusDone)
	s.markEmitted(n, StatusDone)
	return nil
}

// Define ensures node is StatusDone, recursively defining each
// non-pointer dependency (pointers only ever need their pointee
// declared — see Declare's PointerNode case).
func (s *Scheduler) Define(node TypeNode) error {
	if s.emittedAtLeast(node, StatusDone) {
		return nil
	}
	switch n := node.(type) {
	case *VoidNode:
		s.markEmitted(node, StatusDone)
		return nil
	case *BaseTypeNode:
		return s.defineBase(n)
	case *EnumNode:
		return s.defineEnum(n)
	case *RecordNode:
		return s.defineRecord(n)
	case *FunctionNode:
		return s.defineFunction(n)
	case *TypedefNode:
		return s.defineTypedef(n)
	case *QualifiedNode:
		under, err := s.underlying(n.Underlying)
		if err != nil {
			return err
		}
		if err := s.Define(under); err != nil {
			return err
		}
		s.markEmitted(node, StatusDone)
		return nil
	case *PointerNode:
		under, err := s.underlying(n.Underlying)
		if err != nil {
			return err
		}
		if err := s.Declare(under); err != nil {
			return err
		}
		s.markEmitted(node, StatusDone)
		return nil
	case *ArrayNode:
		under, err := s.underlying(n.Underlying)
		if err != nil {
			return err
		}
		if err := s.Define(under); err != nil {
			return err
		}
		s.markEmitted(node, StatusDone)
		return nil
	default:
		return fmt.Errorf("fffc: scheduler cannot define unrecognized node type %T", node)
	}
}

// defineEnum materializes the full "enum tag { A = 0, ... };" form.
// A DIE carrying the declaration flag degenerates define to declare;
// member constants are plain int literals.
func (s *Scheduler) defineEnum(n *EnumNode) error {
	if err := s.declareRecordLike(n, "enum"); err != nil {
		return err
	}
	if n.Declaration {
		n.setStatus(StatusDone)
		s.markEmitted(n, StatusDone)
		return nil
	}
	tag := s.tagName(n)
	text := s.enumBodyText(n, tag)
	s.tu.Header.Emit(CForm{Name: tag, Kind: FormDefinition, Text: text})
	s.tu.Header.SetDefinedStatus(tag, StatusDone)
	n.setStatus(StatusDone)
	s.markEmitted(n, StatusDone)
	return nil
}

func (s *Scheduler) enumBodyText(n *EnumNode, tag string) string {
	w := newCWriter("    ")
	w.write("enum ")
	if tag != "" {
		w.write(tag)
		w.write(" ")
	}
	w.writel("{")
	w.indent()
	for _, m := range n.Members {
		w.writeil(fmt.Sprintf("%s = %d,", m.Name, m.Value))
	}
	w.unindent()
	w.writei("};")
	return w.buffer.String()
}

// defineRecord materializes the full struct/union body, recursing into
// each member's type. Named members require their type Defined;
// anonymous aggregate members are inlined.
func (s *Scheduler) defineRecord(n *RecordNode) error {
	if err := s.declareRecordLike(n, n.Kind.Keyword()); err != nil {
		return err
	}
	if n.Declaration {
		n.setStatus(StatusDone)
		s.markEmitted(n, StatusDone)
		return nil
	}

	body, err := s.recordBodyText(n)
	if err != nil {
		return err
	}
	tag := s.tagName(n)
	s.tu.Header.Emit(CForm{Name: tag, Kind: FormDefinition, Text: n.Kind.Keyword() + " " + tag + " " + body + ";"})
	s.tu.Header.SetDefinedStatus(tag, StatusDone)
	n.setStatus(StatusDone)
	s.markEmitted(n, StatusDone)
	return nil
}

// recordBodyText renders just the braced member list, reused both for
// a top-level struct/union definition and for inlining an anonymous
// struct/union as someone else's member or as a typedef's underlying
// shape.
func (s *Scheduler) recordBodyText(n *RecordNode) (string, error) {
	w := newCWriter("    ")
	w.writel("{")
	w.indent()
	for _, m := range n.Members {
		memberNode, err := s.underlying(m.TypeID)
		if err != nil {
			return "", err
		}

		if !m.HasName && isAnonymousAggregate(memberNode) {
			inline, err := s.inlineBody(memberNode)
			if err != nil {
				return "", err
			}
			w.writeil(inline + ";")
			continue
		}

		if err := s.Define(memberNode); err != nil {
			return "", err
		}
		decl, err := s.Declarator(memberNode, m.Name)
		if err != nil {
			return "", err
		}
		if m.HasBitSize {
			w.writeil(fmt.Sprintf("%s : %d;", decl, m.BitSize))
		} else {
			w.writeil(decl + ";")
		}
	}
	w.unindent()
	w.writei("}")
	return w.buffer.String(), nil
}

// inlineBody prints an anonymous aggregate's body with no tag, for use
// as an inlined member or inlined typedef underlying shape.
func (s *Scheduler) inlineBody(node TypeNode) (string, error) {
	switch n := node.(type) {
	case *RecordNode:
		body, err := s.recordBodyText(n)
		if err != nil {
			return "", err
		}
		return n.Kind.Keyword() + " " + body, nil
	case *EnumNode:
		return s.enumBodyText(n, ""), nil
	default:
		return "", fmt.Errorf("fffc: %T has no inline body", node)
	}
}

// defineFunction emits a top-level prototype for a function used as
// its own top-level form (as opposed to FunctionPointerDeclaration,
// used by the shim synthesizer for a named function-pointer variable).
func (s *Scheduler) defineFunction(n *FunctionNode) error {
	returnNode, err := s.underlying(n.ReturnType)
	if err != nil {
		return err
	}
	if err := s.Declare(returnNode); err != nil {
		return err
	}
	for _, p := range n.Params {
		paramNode, err := s.underlying(p.TypeID)
		if err != nil {
			return err
		}
		if err := s.Declare(paramNode); err != nil {
			return err
		}
	}
	name, _ := n.Name()
	proto, err := s.functionSignature(n, name)
	if err != nil {
		return err
	}
	s.tu.Header.Emit(CForm{Name: name, Kind: FormFunctionDefinition, Text: proto + ";"})
	s.tu.Header.SetDefinedStatus(name, StatusDone)
	n.setStatus(StatusDone)
	s.markEmitted(n, StatusDone)
	return nil
}

// defineTypedef emits `typedef <underlying> <name>;`, inlining the
// underlying shape when it is an anonymous aggregate.
func (s *Scheduler) defineTypedef(n *TypedefNode) error {
	under, err := s.underlying(n.Underlying)
	if err != nil {
		return err
	}
	name, _ := n.Name()

	var text string
	if isAnonymousAggregate(under) {
		if err := s.defineAggregateMembers(under); err != nil {
			return err
		}
		body, err := s.inlineBody(under)
		if err != nil {
			return err
		}
		text = "typedef " + body + " " + name + ";"
	} else {
		if err := s.Define(under); err != nil {
			return err
		}
		decl, err := s.Declarator(under, name)
		if err != nil {
			return err
		}
		text = "typedef " + decl + ";"
	}

	s.tu.Header.Emit(CForm{Name: name, Kind: FormDeclaration, Text: text})
	s.tu.Header.SetDefinedStatus(name, StatusDone)
	s.tu.Header.SetNamed(name, n)
	n.setStatus(StatusDone)
	s.markEmitted(n, StatusDone)
	return nil
}

// defineAggregateMembers defines the named member dependencies of an
// anonymous aggregate without emitting a top-level form for the
// aggregate itself — used when the aggregate is about to be inlined
// into a typedef or a containing struct.
func (s *Scheduler) defineAggregateMembers(node TypeNode) error {
	rec, ok := node.(*RecordNode)
	if !ok {
		return nil
	}
	for _, m := range rec.Members {
		if m.HasName {
			memberNode, err := s.underlying(m.TypeID)
			if err != nil {
				return err
			}
			if err := s.Define(memberNode); err != nil {
				return err
			}
		}
	}
	return nil
}

// Reference returns a printable use of node (e.g. `struct S`, `int`,
// `T *`), first ensuring the type is at least declared. Declare may
// emit a top-level form, and so may Declarator for an array, whose
// element type it defines.
func (s *Scheduler) Reference(node TypeNode) (string, error) {
	if err := s.Declare(node); err != nil {
		return "", err
	}
	return s.Declarator(node, "")
}

// Declarator composes a full C declarator for node with ident spliced
// at the correct position — "int x", "int *p", "int a[4]", "int
// (*fp)(int)" — by recursing outside-in the way a real C declarator
// grammar does: pointer wraps by prefixing `*`, array wraps by
// appending `[n]` (parenthesizing a pointer ident first, since `*p[4]`
// and `(*p)[4]` mean different things), and the recursion bottoms out
// at a named base type.
//
// This is deliberately the minimal declarator composition the
// scheduler needs; a general C grammar's full declarator complexity
// (e.g. function-pointer-returning-function) belongs to a real C AST
// printer and is not reproduced here — see DESIGN.md.
func (s *Scheduler) Declarator(node TypeNode, ident string) (string, error) {
	switch n := node.(type) {
	case *PointerNode:
		under, err := s.underlying(n.Underlying)
		if err != nil {
			return "", err
		}
		if err := s.Declare(under); err != nil {
			return "", err
		}
		return s.Declarator(under, "*"+ident)
	case *ArrayNode:
		under, err := s.underlying(n.Underlying)
		if err != nil {
			return "", err
		}
		if err := s.Define(under); err != nil {
			return "", err
		}
		dims := ""
		for _, d := range n.Dimensions {
			dims += fmt.Sprintf("[%d]", d)
		}
		arrIdent := ident
		if strings.HasPrefix(arrIdent, "*") {
			arrIdent = "(" + arrIdent + ")"
		}
		return s.Declarator(under, arrIdent+dims)
	case *QualifiedNode:
		under, err := s.underlying(n.Underlying)
		if err != nil {
			return "", err
		}
		inner, err := s.Declarator(under, ident)
		if err != nil {
			return "", err
		}
		return n.Kind.Keyword() + " " + inner, nil
	case *FunctionNode:
		return s.functionSignature(n, ident)
	default:
		base, err := s.baseReference(node)
		if err != nil {
			return "", err
		}
		if ident == "" {
			return base, nil
		}
		return base + " " + ident, nil
	}
}

// baseReference prints the non-composite, non-recursive name of a
// node that terminates a declarator chain.
func (s *Scheduler) baseReference(node TypeNode) (string, error) {
	switch n := node.(type) {
	case *VoidNode:
		return "void", nil
	case *BaseTypeNode:
		return n.CanonicalName, nil
	case *EnumNode:
		return "enum " + s.tagName(n), nil
	case *RecordNode:
		return n.Kind.Keyword() + " " + s.tagName(n), nil
	case *TypedefNode:
		name, _ := n.Name()
		return name, nil
	default:
		return "", fmt.Errorf("fffc: %T has no base declarator form", node)
	}
}

// functionSignature renders a function's signature with ident spliced
// at the appropriate position: a bare name for a prototype ("void
// f(int)"), or a parenthesized pointer declarator for a function
// pointer ("void (*FFFC_target)(int)") when ident already carries a
// leading `*` from an enclosing PointerNode's Declarator call.
func (s *Scheduler) functionSignature(n *FunctionNode, ident string) (string, error) {
	returnNode, err := s.underlying(n.ReturnType)
	if err != nil {
		return "", err
	}
	if err := s.Declare(returnNode); err != nil {
		return "", err
	}
	retDecl, err := s.Declarator(returnNode, "")
	if err != nil {
		return "", err
	}

	params := make([]string, 0, len(n.Params))
	for _, p := range n.Params {
		paramNode, err := s.underlying(p.TypeID)
		if err != nil {
			return "", err
		}
		if err := s.Declare(paramNode); err != nil {
			return "", err
		}
		ptext, err := s.Declarator(paramNode, "")
		if err != nil {
			return "", err
		}
		params = append(params, ptext)
	}
	if n.Variadic {
		params = append(params, "...")
	}
	paramList := "void"
	if len(params) > 0 {
		paramList = strings.Join(params, ", ")
	}

	label := ident
	if strings.HasPrefix(label, "*") {
		label = "(" + label + ")"
	}
	if label == "" {
		label = "(*)"
	}
	return retDecl + " " + label + "(" + paramList + ")", nil
}

// FunctionPointerDeclaration renders a named function-pointer variable
// declaration for n — e.g. `void (*FFFC_target)(int);` — the exact
// form the Shim Synthesizer splices into its runner template.
func (s *Scheduler) FunctionPointerDeclaration(n *FunctionNode, varName string) (string, error) {
	sig, err := s.functionSignature(n, "*"+varName)
	if err != nil {
		return "", err
	}
	return sig + ";", nil
}
