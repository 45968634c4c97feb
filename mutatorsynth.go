package fffc

import (
	"fmt"
	"strconv"
	"strings"
)

// MutatorSynthesizer turns defined type nodes into C mutators: for
// every materialized, defined, non-primitive type it specializes one
// of the packaged C templates into a concrete mutator and size-of
// function, mangling the pair's names from the type's printed
// declaration so that textually-identical declarations always share
// one name.
type MutatorSynthesizer struct {
	tu  *TranslationUnit
	cfg *Config

	// emittedNames dedupes by mangled mutator name: two distinct
	// TypeNodes with textually identical printed declarations collapse
	// to a single synthesized mutator, synthesized only once.
	emittedNames map[string]bool

	declarations []string
	definitions  []string
}

// NewMutatorSynthesizer creates a synthesizer accumulating output for
// one translation unit.
func NewMutatorSynthesizer(tu *TranslationUnit, cfg *Config) *MutatorSynthesizer {
	return &MutatorSynthesizer{
		tu:           tu,
		cfg:          cfg,
		emittedNames: make(map[string]bool),
	}
}

// Declarations returns the accumulated K&R-style forward declarations
// (for mutator.h).
func (m *MutatorSynthesizer) Declarations() []string { return m.declarations }

// Definitions returns the accumulated full function definitions (for
// the per-CU `_mutator.c` file).
func (m *MutatorSynthesizer) Definitions() []string { return m.definitions }

// NameFor lazily synthesizes node's mutator and returns its (mutator,
// size-of) function name pair, synthesizing the template
// specialization on first request and reusing it on every later
// request for a textually-identical declaration.
func (m *MutatorSynthesizer) NameFor(node TypeNode) (mutatorFn, sizeofFn string, err error) {
	printed, err := m.tu.Scheduler.Declarator(node, "")
	if err != nil {
		return "", "", err
	}
	mutatorFn = mutatorName(m.cfg, printed)
	sizeofFn = sizeofName(m.cfg, printed)
	if m.emittedNames[mutatorFn] {
		return mutatorFn, sizeofFn, nil
	}
	m.emittedNames[mutatorFn] = true

	if err := m.synthesize(node, mutatorFn, sizeofFn); err != nil {
		return "", "", err
	}
	return mutatorFn, sizeofFn, nil
}

func (m *MutatorSynthesizer) synthesize(node TypeNode, mutatorFn, sizeofFn string) error {
	switch n := node.(type) {
	case *RecordNode:
		if n.Kind == RecordUnion {
			return m.synthesizeUnion(n, mutatorFn, sizeofFn)
		}
		return m.synthesizeStruct(n, mutatorFn, sizeofFn)
	case *EnumNode:
		return m.synthesizeEnum(n, mutatorFn, sizeofFn)
	case *ArrayNode:
		return m.synthesizeArray(n, mutatorFn, sizeofFn)
	case *PointerNode:
		return m.synthesizePointer(n, mutatorFn, sizeofFn)
	case *TypedefNode:
		return m.synthesizeModifier(node, n.Underlying, mutatorFn, sizeofFn)
	case *QualifiedNode:
		return m.synthesizeModifier(node, n.Underlying, mutatorFn, sizeofFn)
	case *FunctionNode:
		return m.synthesizeFunction(n, mutatorFn, sizeofFn)
	case *BaseTypeNode, *VoidNode:
		// Primitive types never get a per-unit mutator: the target-wide
		// base mutator set (SynthesizeBaseMutators) already defines one
		// under the same mangled name, since the name depends only on
		// the canonical type name. Emitting nothing here is what makes
		// every unit's member calls resolve to that single definition.
		return nil
	default:
		return fmt.Errorf("fffc: mutator synthesis has no category for %T", node)
	}
}

// emit renders category's template with the common substitutions plus
// extra, appending the forward declaration and the full definition to
// the synthesizer's accumulated output.
func (m *MutatorSynthesizer) emit(category MutatorCategory, node TypeNode, mutatorFn, sizeofFn string, extra map[string]string) error {
	tmpl, err := loadTemplate(category)
	if err != nil {
		return err
	}

	targetType, err := m.tu.Scheduler.Declarator(node, "")
	if err != nil {
		return err
	}

	replacements := map[string]string{
		"__FFFC_MUTATOR_NAME__": mutatorFn,
		"__FFFC_SIZEOF_NAME__":  sizeofFn,
		"__TARGET_TYPE__":       targetType,
	}
	for k, v := range extra {
		replacements[k] = v
	}

	text := tmpl
	for k, v := range replacements {
		text = strings.ReplaceAll(text, k, v)
	}

	m.definitions = append(m.definitions, text)
	m.declarations = append(m.declarations, krDeclaration(mutatorFn)+"\n"+krSizeofDeclaration(sizeofFn)+"\n")
	return nil
}

// krDeclaration renders the K&R-style empty-parameter-list forward
// declaration mutator.h carries for every generated function.
func krDeclaration(name string) string {
	return "int " + name + "();"
}

func krSizeofDeclaration(name string) string {
	return "unsigned long " + name + "();"
}

func (m *MutatorSynthesizer) synthesizeStruct(n *RecordNode, mutatorFn, sizeofFn string) error {
	body, err := m.structBody(n, "storage", NewNestingContext())
	if err != nil {
		return err
	}
	sizeofExpr, err := m.sizeofExpr(n)
	if err != nil {
		return err
	}
	return m.emit(CategoryStruct, n, mutatorFn, sizeofFn, map[string]string{
		"__FFFC_BODY__":        body,
		"fffc_get_sizeof_type": sizeofExpr,
	})
}

// structBody builds the per-member mutation calls: named members call
// their type's mutator by address; bit-size members copy into a local,
// mutate, copy back (addresses of bitfields are illegal in C);
// array-typed bitfield members are skipped with a comment. Anonymous
// aggregate members are dispatched by kind: an anonymous struct
// recurses
// inline against the same storage pointer; an anonymous union inlines
// its own random-arm-pick body instead of recursing, since a union's
// rule is "pick one arm", not "mutate every member"; an anonymous enum
// inlines its random-value-pick body the same way.
func (m *MutatorSynthesizer) structBody(n *RecordNode, receiver string, nc *NestingContext) (string, error) {
	var b strings.Builder
	for _, member := range n.Members {
		memberNode, err := m.tu.Builder().GetOrAdd(member.TypeID)
		if err != nil {
			return "", err
		}

		if !member.HasName && isAnonymousAggregate(memberNode) {
			switch rec := memberNode.(type) {
			case *RecordNode:
				if rec.Kind == RecordUnion {
					inline, err := m.inlineUnionBody(rec, receiver, nc)
					if err != nil {
						return "", err
					}
					b.WriteString(inline)
					continue
				}
				inline, err := m.structBody(rec, receiver, nc)
				if err != nil {
					return "", err
				}
				b.WriteString(inline)
				continue
			case *EnumNode:
				inline, err := m.inlineEnumBody(rec, receiver, member, nc)
				if err != nil {
					return "", err
				}
				b.WriteString(inline)
				continue
			}
		}

		if member.HasBitSize {
			if _, isArray := memberNode.(*ArrayNode); isArray {
				fmt.Fprintf(&b, "    /* fffc: skipping array-typed bitfield member %q */\n", member.Name)
				continue
			}
			mutatorFn, _, err := m.NameFor(memberNode)
			if err != nil {
				return "", err
			}
			declType, err := m.tu.Scheduler.Declarator(memberNode, "")
			if err != nil {
				return "", err
			}
			localName := fmt.Sprintf("fffc_bf_%d", nc.NextTmp())
			fmt.Fprintf(&b, "    {\n")
			fmt.Fprintf(&b, "        %s %s = %s->%s;\n", declType, localName, receiver, member.Name)
			fmt.Fprintf(&b, "        %s(&%s);\n", mutatorFn, localName)
			fmt.Fprintf(&b, "        %s->%s = %s;\n", receiver, member.Name, localName)
			fmt.Fprintf(&b, "    }\n")
			continue
		}

		if !member.HasName {
			// Unnamed, non-bitfield member whose type isn't an
			// anonymous aggregate (e.g. compiler-inserted padding) —
			// nothing to mutate through.
			continue
		}

		mutatorFn, _, err := m.NameFor(memberNode)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "    %s(&%s->%s);\n", mutatorFn, receiver, member.Name)
	}
	return b.String(), nil
}

// inlineUnionBody expands an anonymous union member's random-arm-pick
// body directly into the enclosing struct's mutator, mirroring
// synthesizeUnion's own "if (rnd == k)" ladder but addressing each arm
// through receiver directly: C11 promotes an anonymous union's own
// members into the enclosing struct's scope, so "receiver->ident" is
// valid C even though the union type itself has no name. nc supplies a
// nesting-unique name for the random-pick local so two anonymous
// unions nested inside the same top-level mutator never collide.
func (m *MutatorSynthesizer) inlineUnionBody(n *RecordNode, receiver string, nc *NestingContext) (string, error) {
	rndName := fmt.Sprintf("fffc_rnd_%d", nc.NextRnd())
	var b strings.Builder
	fmt.Fprintf(&b, "    {\n")
	fmt.Fprintf(&b, "        int %s = fffc_get_random() %% %d;\n", rndName, len(n.Members))
	for k, member := range n.Members {
		memberNode, err := m.tu.Builder().GetOrAdd(member.TypeID)
		if err != nil {
			return "", err
		}
		memberMutator, _, err := m.NameFor(memberNode)
		if err != nil {
			return "", err
		}
		ident := member.Name
		if ident == "" {
			ident = fmt.Sprintf("fffc_anon_member_%d", k)
		}
		fmt.Fprintf(&b, "        if (%s == %d) {\n            %s(&%s->%s);\n        }\n", rndName, k, memberMutator, receiver, ident)
	}
	fmt.Fprintf(&b, "    }\n")
	return b.String(), nil
}

// inlineEnumBody expands an anonymous enum member's random-value-pick
// body directly into the enclosing struct's mutator. Unlike an
// anonymous union or struct, an anonymous enum's own constants are not
// promoted into the enclosing struct's scope — there is no field name
// to write through — so the storage this member occupies is addressed
// by its own byte offset instead, reinterpreting that offset as a
// pointer to the member's declared type.
func (m *MutatorSynthesizer) inlineEnumBody(n *EnumNode, receiver string, member RecordMember, nc *NestingContext) (string, error) {
	declType, err := m.tu.Scheduler.Declarator(n, "")
	if err != nil {
		return "", err
	}
	literals := make([]string, len(n.Members))
	for i, mem := range n.Members {
		literals[i] = strconv.FormatInt(mem.Value, 10)
	}
	valuesName := fmt.Sprintf("fffc_values_%d", nc.NextValues())
	rndName := fmt.Sprintf("fffc_rnd_%d", nc.NextRnd())

	var b strings.Builder
	fmt.Fprintf(&b, "    {\n")
	fmt.Fprintf(&b, "        %s %s[%d] = { %s };\n", declType, valuesName, len(n.Members), strings.Join(literals, ", "))
	fmt.Fprintf(&b, "        int %s = fffc_get_random() %% %d;\n", rndName, len(n.Members))
	fmt.Fprintf(&b, "        *(%s *)((char *)%s + %d) = %s[%s];\n", declType, receiver, member.ByteOffset, valuesName, rndName)
	fmt.Fprintf(&b, "    }\n")
	return b.String(), nil
}

func (m *MutatorSynthesizer) sizeofExpr(node TypeNode) (string, error) {
	if isAnonymousAggregate(node) {
		return "fffc_estimate_allocation_size(storage)", nil
	}
	return "sizeof(*storage)", nil
}

// synthesizeUnion picks one random arm among N members: an if-ladder
// of arms each calling the chosen member's mutator on its address.
func (m *MutatorSynthesizer) synthesizeUnion(n *RecordNode, mutatorFn, sizeofFn string) error {
	var body strings.Builder
	for k, member := range n.Members {
		memberNode, err := m.tu.Builder().GetOrAdd(member.TypeID)
		if err != nil {
			return err
		}
		memberMutator, _, err := m.NameFor(memberNode)
		if err != nil {
			return err
		}
		ident := member.Name
		if ident == "" {
			ident = fmt.Sprintf("fffc_anon_member_%d", k)
		}
		fmt.Fprintf(&body, "    if (%s == %d) {\n        %s(&storage->%s);\n    }\n", "rnd", k, memberMutator, ident)
	}

	sizeofExpr, err := m.sizeofExpr(n)
	if err != nil {
		return err
	}
	return m.emit(CategoryUnion, n, mutatorFn, sizeofFn, map[string]string{
		"__FFFC_ARM_COUNT__":   strconv.Itoa(len(n.Members)),
		"__FFFC_RND_NAME__":    "rnd",
		"__FFFC_BODY__":        body.String(),
		"fffc_get_sizeof_type": sizeofExpr,
	})
}

// synthesizeEnum fills a values[] literal array with the enum's
// constants and stores one random pick through storage.
func (m *MutatorSynthesizer) synthesizeEnum(n *EnumNode, mutatorFn, sizeofFn string) error {
	literals := make([]string, len(n.Members))
	for i, mem := range n.Members {
		literals[i] = strconv.FormatInt(mem.Value, 10)
	}
	return m.emit(CategoryEnum, n, mutatorFn, sizeofFn, map[string]string{
		"__FFFC_VALUE_COUNT__": strconv.Itoa(len(n.Members)),
		"__FFFC_VALUES_LIST__": strings.Join(literals, ", "),
		"__FFFC_VALUES_NAME__": "values",
	})
}

// synthesizeArray iterates over the product of declared dimensions,
// delegating each element to the element type's mutator.
// __TARGET_TYPE__ here must print as the
// *element* type, not the array type, so the generated parameter is a
// flat, indexable pointer (arrays decay to pointers as C parameters
// anyway).
func (m *MutatorSynthesizer) synthesizeArray(n *ArrayNode, mutatorFn, sizeofFn string) error {
	elementNode, err := m.tu.Builder().GetOrAdd(n.Underlying)
	if err != nil {
		return err
	}
	elementMutator, elementSizeof, err := m.NameFor(elementNode)
	if err != nil {
		return err
	}

	tmpl, err := loadTemplate(CategoryArray)
	if err != nil {
		return err
	}
	targetType, err := m.tu.Scheduler.Declarator(elementNode, "")
	if err != nil {
		return err
	}
	replacements := map[string]string{
		"__FFFC_MUTATOR_NAME__":            mutatorFn,
		"__FFFC_SIZEOF_NAME__":             sizeofFn,
		"__TARGET_TYPE__":                  targetType,
		"__FFFC_ELEMENT_COUNT__":           strconv.FormatInt(n.ElementCount(), 10),
		"__FFFC_TMP_NAME__":                "fffc_i",
		"fffc_mutator_for_underlying_type": elementMutator,
		"fffc_get_sizeof_type":             elementSizeof + "(storage)",
	}
	text := tmpl
	for k, v := range replacements {
		text = strings.ReplaceAll(text, k, v)
	}
	m.definitions = append(m.definitions, text)
	m.declarations = append(m.declarations, krDeclaration(mutatorFn)+"\n"+krSizeofDeclaration(sizeofFn)+"\n")
	return nil
}

// synthesizePointer mutates through one dereference, delegating to
// the pointee's mutator. The size-of reports the pointer value's own
// storage size (sizeof(*storage), where storage is T **), never the
// pointee's: a pointer occupies a fixed 8 bytes regardless of what it
// points at. When the pointee is itself a function type, the template
// has no indexing step to trim, so nothing is required beyond picking
// the right pointee mutator.
func (m *MutatorSynthesizer) synthesizePointer(n *PointerNode, mutatorFn, sizeofFn string) error {
	pointeeNode, err := m.tu.Builder().GetOrAdd(n.Underlying)
	if err != nil {
		return err
	}
	pointeeMutator, _, err := m.NameFor(pointeeNode)
	if err != nil {
		return err
	}

	storageParam, err := m.tu.Scheduler.Declarator(n, "*storage")
	if err != nil {
		return err
	}

	tmpl, err := loadTemplate(CategoryPointer)
	if err != nil {
		return err
	}
	replacements := map[string]string{
		"__FFFC_MUTATOR_NAME__":            mutatorFn,
		"__FFFC_SIZEOF_NAME__":             sizeofFn,
		"__FFFC_STORAGE_PARAM__":           storageParam,
		"fffc_mutator_for_underlying_type": pointeeMutator,
		"fffc_get_sizeof_type":             "sizeof(*storage)",
	}
	text := tmpl
	for k, v := range replacements {
		text = strings.ReplaceAll(text, k, v)
	}
	m.definitions = append(m.definitions, text)
	m.declarations = append(m.declarations, krDeclaration(mutatorFn)+"\n"+krSizeofDeclaration(sizeofFn)+"\n")
	return nil
}

// synthesizeModifier handles Typedef and Qualified: both delegate
// unchanged to the underlying mutator and size-of.
func (m *MutatorSynthesizer) synthesizeModifier(node TypeNode, underlying TypeId, mutatorFn, sizeofFn string) error {
	underlyingNode, err := m.tu.Builder().GetOrAdd(underlying)
	if err != nil {
		return err
	}
	underlyingMutator, underlyingSizeof, err := m.NameFor(underlyingNode)
	if err != nil {
		return err
	}
	return m.emit(CategoryModifier, node, mutatorFn, sizeofFn, map[string]string{
		"fffc_mutator_for_underlying_type": underlyingMutator,
		"fffc_get_sizeof_type":             underlyingSizeof + "(storage)",
	})
}

func (m *MutatorSynthesizer) synthesizeFunction(n *FunctionNode, mutatorFn, sizeofFn string) error {
	storageParam, err := m.tu.Scheduler.Declarator(n, "*storage")
	if err != nil {
		return err
	}
	tmpl, err := loadTemplate(CategoryFunction)
	if err != nil {
		return err
	}
	text := tmpl
	for k, v := range map[string]string{
		"__FFFC_MUTATOR_NAME__":  mutatorFn,
		"__FFFC_SIZEOF_NAME__":   sizeofFn,
		"__FFFC_STORAGE_PARAM__": storageParam,
	} {
		text = strings.ReplaceAll(text, k, v)
	}
	m.definitions = append(m.definitions, text)
	m.declarations = append(m.declarations, krDeclaration(mutatorFn)+"\n"+krSizeofDeclaration(sizeofFn)+"\n")
	return nil
}

// EmitDoNothingStubs generates one stub per pointer-indirection depth
// 0-5 for a named type that reached the header but got no ordinary
// mutator (e.g. an unknown base type), so unknown types stay safe to
// encounter transitively. The
// caller supplies the type's own printed name as the mangling seed,
// since no TypeNode declarator is available to hash in that case; each
// depth's seed matches the declarator spelling a member reference of
// that depth would hash ("name", "name *", "name **", ...), so the
// stub resolves the same call the reference generates.
func (m *MutatorSynthesizer) EmitDoNothingStubs(typeName string) error {
	maxDepth := m.cfg.GetInt("mutator.donothing_max_depth")
	for depth := 0; depth <= maxDepth; depth++ {
		seed := typeName
		if depth > 0 {
			seed = typeName + " " + strings.Repeat("*", depth)
		}
		mutatorFn := mutatorName(m.cfg, seed)
		sizeofFn := sizeofName(m.cfg, seed)
		if m.emittedNames[mutatorFn] {
			continue
		}
		m.emittedNames[mutatorFn] = true

		tmpl, err := loadTemplate(CategoryDoNothing)
		if err != nil {
			return err
		}
		text := strings.ReplaceAll(tmpl, "__FFFC_MUTATOR_NAME__", mutatorFn)
		text = strings.ReplaceAll(text, "__FFFC_SIZEOF_NAME__", sizeofFn)
		m.definitions = append(m.definitions, text)
		m.declarations = append(m.declarations, krDeclaration(mutatorFn)+"\n"+krSizeofDeclaration(sizeofFn)+"\n")
	}
	return nil
}

// SynthesizeBaseMutators specializes the packaged base-type template
// once per canonical base type, plus the void no-op, producing the
// lowest-level mutators every composite mutator's member calls bottom
// out in. Synthesized once per target rather than per translation
// unit: the mangled name depends only on the canonical type name, so
// every unit's generated calls resolve to this single set of
// definitions at link time.
func SynthesizeBaseMutators(cfg *Config) (declarations, definitions []string, err error) {
	voidTmpl, err := loadTemplate(CategoryVoid)
	if err != nil {
		return nil, nil, err
	}
	baseTmpl, err := loadTemplate(CategoryBase)
	if err != nil {
		return nil, nil, err
	}

	emit := func(tmpl, typeName string) {
		mutatorFn := mutatorName(cfg, typeName)
		sizeofFn := sizeofName(cfg, typeName)
		text := strings.ReplaceAll(tmpl, "__FFFC_MUTATOR_NAME__", mutatorFn)
		text = strings.ReplaceAll(text, "__FFFC_SIZEOF_NAME__", sizeofFn)
		text = strings.ReplaceAll(text, "__TARGET_TYPE__", typeName)
		definitions = append(definitions, text)
		declarations = append(declarations, krDeclaration(mutatorFn)+"\n"+krSizeofDeclaration(sizeofFn)+"\n")
	}

	emit(voidTmpl, "void")
	for _, name := range canonicalBaseTypeNameList() {
		emit(baseTmpl, name)
	}
	return declarations, definitions, nil
}
