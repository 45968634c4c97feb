package fffc

import "strings"

// CForm is a single already-printed top-level C form, plus just
// enough metadata for the header emitter to de-duplicate and order it.
// A real C-AST-backed printer would replace Text with a proper node;
// the emitter never needs more than print-once, name-keyed identity,
// so it is represented as plain text rather than a structured tree
// (see DESIGN.md).
type CForm struct {
	// Name is the form's printed type/function name, used only to
	// detect and suppress __builtin-prefixed forms.
	Name string
	// Kind separates declarations from function definitions so Flush
	// can blank-line-separate the definitions.
	Kind FormKind
	// Text is the form's full printed text, already terminated the way
	// its Kind requires (`;` for declarations, braces for definitions).
	Text string
}

type FormKind int

const (
	FormDeclaration FormKind = iota
	FormDefinition
	FormFunctionDefinition
)

// HeaderAccumulator is the per-translation-unit sink for emitted
// forms: two name-keyed maps ("defined" status, "named" node) plus an
// insertion-ordered, textually-deduplicated sequence of top-level
// forms. The scheduler is the only writer; the pipeline reads it back
// out via Flush when it writes the unit's header file.
type HeaderAccumulator struct {
	tu *TranslationUnit

	defined map[string]NodeStatus
	named   map[string]TypeNode

	forms    []CForm
	seenText map[string]bool
}

// NewHeaderAccumulator creates an empty accumulator for tu.
func NewHeaderAccumulator(tu *TranslationUnit) *HeaderAccumulator {
	return &HeaderAccumulator{
		tu:       tu,
		defined:  make(map[string]NodeStatus),
		named:    make(map[string]TypeNode),
		forms:    make([]CForm, 0),
		seenText: make(map[string]bool),
	}
}

// DefinedStatus reports the recorded status for a type name, if any.
func (h *HeaderAccumulator) DefinedStatus(name string) (NodeStatus, bool) {
	s, ok := h.defined[name]
	return s, ok
}

// SetDefinedStatus records a type name's best-known status, never
// regressing (mirrors nodeBase.setStatus's monotonic rule); the map
// exists to let the scheduler short-circuit a second declare/define
// request for the same name.
func (h *HeaderAccumulator) SetDefinedStatus(name string, status NodeStatus) {
	if cur, ok := h.defined[name]; ok && status < cur {
		return
	}
	h.defined[name] = status
}

// Named looks up a previously-registered node by its type name.
func (h *HeaderAccumulator) Named(name string) (TypeNode, bool) {
	n, ok := h.named[name]
	return n, ok
}

// SetNamed registers node under its own name, once. Anonymous nodes
// are never registered here.
func (h *HeaderAccumulator) SetNamed(name string, node TypeNode) {
	if _, ok := h.named[name]; ok {
		return
	}
	h.named[name] = node
}

// Emit appends form to the accumulated sequence unless its printed
// name starts with "__builtin" (such types are created but never
// emitted) or its printed text duplicates a form already emitted.
// Discovery order is otherwise preserved.
func (h *HeaderAccumulator) Emit(form CForm) {
	if strings.HasPrefix(form.Name, "__builtin") {
		return
	}
	if h.seenText[form.Text] {
		return
	}
	h.seenText[form.Text] = true
	h.forms = append(h.forms, form)
}

// Flush renders every accumulated form into the unit's header text, in
// insertion order, separating function definitions with a blank line.
func (h *HeaderAccumulator) Flush() string {
	var b strings.Builder
	for i, f := range h.forms {
		if i > 0 && (f.Kind == FormFunctionDefinition || h.forms[i-1].Kind == FormFunctionDefinition) {
			b.WriteString("\n")
		}
		b.WriteString(f.Text)
		b.WriteString("\n")
	}
	return b.String()
}

// mungeSourcePath derives the filesystem-safe stem segment of a
// header's filename: path separators replaced by `_`, and a trailing
// ".c" dropped (the caller appends its own ".h").
func mungeSourcePath(path string) string {
	munged := strings.ReplaceAll(path, "/", "_")
	munged = strings.ReplaceAll(munged, "\\", "_")
	munged = strings.TrimSuffix(munged, ".c")
	return munged
}
