package fffc

import "debug/dwarf"

// newFakeTU builds a TranslationUnit with no backing *dwarf.Data,
// for tests that inject type nodes directly into the builder's arena
// instead of constructing them from real DWARF DIEs.
func newFakeTU(sourceFile string) *TranslationUnit {
	tu := &TranslationUnit{
		SourceFile: sourceFile,
		RootOffset: 0,
		Language:   LanguageC99,
		dies:       make(map[dwarf.Offset]*dwarf.Entry),
	}
	tu.Header = NewHeaderAccumulator(tu)
	tu.builder = NewTypeGraphBuilder(tu)
	tu.Scheduler = NewScheduler(tu, NewConfig())
	return tu
}

// put registers node in tu's type graph arena under offset, so later
// GetOrAdd(offset) calls (and hence Declare/Define/Reference/member
// resolution) return it without needing a real DIE.
func (tu *TranslationUnit) put(offset dwarf.Offset, node TypeNode) {
	tu.builder.nodes[offset] = node
}
