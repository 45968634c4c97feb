package fffc

import (
	"fmt"
	"strings"
)

// ShimTarget carries the input metadata the runner template needs
// that the type graph itself doesn't capture: which binary the
// symbol's code actually lives in (empty string for the main
// executable — "the loader represents that entry as the empty name")
// and whether that binary is position-independent.
type ShimTarget struct {
	// BinaryPath is the absolute path of the file providing fn's code,
	// or "" when fn lives in the main executable.
	BinaryPath string
	// PIE is true when that binary's ELF type is ET_DYN, false for
	// ET_EXEC.
	PIE bool
}

// ShimSynthesizer interposes on target functions: for each eligible
// function it specializes the packaged runner template into a
// concrete interposer that recovers the original's address, mutates
// each argument in place, and calls through.
type ShimSynthesizer struct {
	tu       *TranslationUnit
	cfg      *Config
	mutators *MutatorSynthesizer
}

// NewShimSynthesizer creates a shim synthesizer sharing tu's mutator
// synthesizer, so an argument's mutator is reused rather than
// re-synthesized (the two stages operate on the same type graph
// within one translation unit).
func NewShimSynthesizer(tu *TranslationUnit, cfg *Config, mutators *MutatorSynthesizer) *ShimSynthesizer {
	return &ShimSynthesizer{tu: tu, cfg: cfg, mutators: mutators}
}

// Synthesize renders the runner source for fn, or an error if fn isn't
// ShimEligible — the caller (pipeline) is expected to have already
// filtered by ShimEligible and only calls this for qualifying
// functions, but the check is repeated here since a runner for a
// variadic or zero-argument function is meaningless text, not merely
// unwanted output.
func (s *ShimSynthesizer) Synthesize(fn *FunctionNode, target ShimTarget) (string, error) {
	if !fn.ShimEligible() {
		return "", fmt.Errorf("fffc: %v is not shim-eligible", fn.DIEOffset())
	}
	name, _ := fn.Name()

	funcPointerDecl, err := s.tu.Scheduler.FunctionPointerDeclaration(fn, "FFFC_target")
	if err != nil {
		return "", err
	}

	proxySignature, err := s.proxySignature(fn, name)
	if err != nil {
		return "", err
	}

	mutatorCalls, err := s.mutatorCalls(fn)
	if err != nil {
		return "", err
	}

	callExpr, err := s.callExpression(fn)
	if err != nil {
		return "", err
	}

	pieFlag := "0"
	if target.PIE {
		pieFlag = "1"
	}

	tmpl, err := loadShimTemplate()
	if err != nil {
		return "", err
	}
	replacements := map[string]string{
		"__FFFC_TARGET_NAME__":       name,
		"__FFFC_INCLUDE__":           fmt.Sprintf("#include %q", s.tu.HeaderStem()+".h"),
		"__FFFC_FUNC_POINTER_DECL__": funcPointerDecl,
		"__FFFC_PROXY_SIGNATURE__":   proxySignature,
		"__FFFC_MUTATOR_CALLS__":     mutatorCalls,
		"__FFFC_CALL_EXPR__":         callExpr,
		"__FFFC_LOWPC_HEX__":         fmt.Sprintf("%x", fn.LowPC),
		"__FFFC_PIE_FLAG__":          pieFlag,
		"__FFFC_BINARY_PATH__":       target.BinaryPath,
	}
	text := tmpl
	for k, v := range replacements {
		text = strings.ReplaceAll(text, k, v)
	}
	return text, nil
}

// renamedParams renders fn's parameters with each identifier prefixed
// by `_`, avoiding collisions with local helper names in the template,
// falling back to a positional name for an unnamed DWARF parameter.
func (s *ShimSynthesizer) renamedParams(fn *FunctionNode) ([]string, []TypeNode, error) {
	names := make([]string, len(fn.Params))
	nodes := make([]TypeNode, len(fn.Params))
	for i, p := range fn.Params {
		node, err := s.tu.Builder().GetOrAdd(p.TypeID)
		if err != nil {
			return nil, nil, err
		}
		nodes[i] = node
		pname := p.Name
		if pname == "" {
			pname = fmt.Sprintf("arg%d", i)
		}
		names[i] = "_" + pname
	}
	return names, nodes, nil
}

// proxySignature renders "void <name>(<params>)" — the replacement
// function's own signature, always void-returning regardless of fn's
// actual return type, since the proxy's job is to mutate and call
// through, not to hand a value back to anyone.
func (s *ShimSynthesizer) proxySignature(fn *FunctionNode, name string) (string, error) {
	names, nodes, err := s.renamedParams(fn)
	if err != nil {
		return "", err
	}
	parts := make([]string, len(nodes))
	for i, node := range nodes {
		decl, err := s.tu.Scheduler.Declarator(node, names[i])
		if err != nil {
			return "", err
		}
		parts[i] = decl
	}
	paramList := "void"
	if len(parts) > 0 {
		paramList = strings.Join(parts, ", ")
	}
	return "void " + name + "(" + paramList + ")", nil
}

// mutatorCalls renders one mutator invocation per renamed argument,
// each synthesized (or reused, if already synthesized for this
// translation unit) via the shared mutator synthesizer.
func (s *ShimSynthesizer) mutatorCalls(fn *FunctionNode) (string, error) {
	names, nodes, err := s.renamedParams(fn)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for i, node := range nodes {
		mutatorFn, _, err := s.mutators.NameFor(node)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "    %s(&%s);\n", mutatorFn, names[i])
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

// callExpression renders the call to FFFC_target through the recovered
// function pointer: a plain void call when fn returns void, or a
// captured-and-discarded `retval = FFFC_target(args);` otherwise.
func (s *ShimSynthesizer) callExpression(fn *FunctionNode) (string, error) {
	names, _, err := s.renamedParams(fn)
	if err != nil {
		return "", err
	}
	argList := strings.Join(names, ", ")

	returnNode, err := s.tu.Builder().GetOrAdd(fn.ReturnType)
	if err != nil {
		return "", err
	}
	if _, isVoid := returnNode.(*VoidNode); isVoid {
		return fmt.Sprintf("FFFC_target(%s);", argList), nil
	}
	retDecl, err := s.tu.Scheduler.Declarator(returnNode, "retval")
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s = FFFC_target(%s);", retDecl, argList), nil
}
