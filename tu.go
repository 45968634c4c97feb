package fffc

import (
	"debug/dwarf"
	"fmt"
)

// offsetHex renders a DWARF offset the way the rest of the generator
// expects to compare and print cross-DIE references: absolute,
// hex-prefixed, so two textual offsets are comparable with ==, and
// so header file stems embed a stable, readable id.
func offsetHex(off dwarf.Offset) string {
	return fmt.Sprintf("0x%x", uint64(off))
}

// TranslationUnit is the per-compilation-unit index: an offset→DIE
// map for every DIE of the CU, plus the
// metadata needed to reject non-C units and to name the output files,
// plus the lazily-populated offset→type-node map and the header
// accumulator the scheduler emits into.
type TranslationUnit struct {
	SourceFile string
	RootOffset dwarf.Offset
	Language   Language
	Producer   Producer

	data *dwarf.Data

	// dies is the offset→DIE map. Built once, eagerly, when the
	// translation unit is constructed.
	dies map[dwarf.Offset]*dwarf.Entry

	// order records every DIE in the exact sequence indexDIEs visited
	// it — the DWARF stream's own order — so the pipeline can walk
	// top-level named types in discovery order without relying on
	// offsets happening to sort that way.
	order []*dwarf.Entry

	builder   *TypeGraphBuilder
	Header    *HeaderAccumulator
	Scheduler *Scheduler
}

// NewTranslationUnit walks one compilation unit's DIE subtree
// (rooted at cuEntry) out of data, builds its offset→DIE index, and
// rejects the unit if its source language isn't one the generator
// understands.
func NewTranslationUnit(data *dwarf.Data, cuEntry *dwarf.Entry, cfg *Config) (*TranslationUnit, error) {
	rawLang, _ := cuEntry.Val(dwarf.AttrLanguage).(int64)
	lang, ok := AcceptLanguage(rawLang)
	sourceFile, _ := cuEntry.Val(dwarf.AttrName).(string)
	if !ok {
		return nil, InputValidationError{
			Target:  sourceFile,
			Message: fmt.Sprintf("not written in C (DW_AT_language=0x%x); skipping", rawLang),
		}
	}

	producerRaw, _ := cuEntry.Val(dwarf.AttrProducer).(string)

	tu := &TranslationUnit{
		SourceFile: sourceFile,
		RootOffset: cuEntry.Offset,
		Language:   lang,
		Producer:   ParseProducer(producerRaw),
		data:       data,
		dies:       make(map[dwarf.Offset]*dwarf.Entry),
	}
	tu.Header = NewHeaderAccumulator(tu)

	if err := tu.indexDIEs(cuEntry); err != nil {
		return nil, err
	}

	tu.builder = NewTypeGraphBuilder(tu)
	tu.Scheduler = NewScheduler(tu, cfg)
	return tu, nil
}

// indexDIEs records offset→DIE for cuEntry and every descendant, using
// the Children flag plus the DWARF null-entry terminator to track
// nesting depth (the DWARF encoding has no sibling count up front).
func (tu *TranslationUnit) indexDIEs(cuEntry *dwarf.Entry) error {
	tu.dies[cuEntry.Offset] = cuEntry
	tu.order = append(tu.order, cuEntry)

	if !cuEntry.Children {
		return nil
	}

	r := tu.data.Reader()
	r.Seek(cuEntry.Offset)
	if _, err := r.Next(); err != nil { // re-read cuEntry to position the cursor
		return err
	}

	depth := 1
	for depth > 0 {
		e, err := r.Next()
		if err != nil {
			return err
		}
		if e == nil || e.Tag == 0 {
			// A null entry: either the terminator of the innermost
			// open sibling list, or (if depth was already 1) the
			// terminator of this CU's own children.
			depth--
			continue
		}
		tu.dies[e.Offset] = e
		tu.order = append(tu.order, e)
		if e.Children {
			depth++
		}
	}
	return nil
}

// children returns the direct descendants of die, resolved from the
// translation unit's own offset→DIE index by re-walking the section
// starting at die's offset. It is used by the graph builder to pull a
// record's members, an enum's enumerators, a function's parameters and
// an array's subranges without threading a second *dwarf.Reader through
// every constructor.
func (tu *TranslationUnit) children(die *dwarf.Entry) []*dwarf.Entry {
	if !die.Children {
		return nil
	}

	r := tu.data.Reader()
	r.Seek(die.Offset)
	if _, err := r.Next(); err != nil {
		return nil
	}

	var out []*dwarf.Entry
	depth := 1
	for depth > 0 {
		e, err := r.Next()
		if err != nil {
			return out
		}
		if e == nil || e.Tag == 0 {
			depth--
			continue
		}
		if depth == 1 {
			out = append(out, e)
		}
		if e.Children {
			depth++
		}
	}
	return out
}

// DIE looks up a raw DIE by offset. Returns false if the offset was
// never recorded for this translation unit (a cross-CU reference,
// which the generator treats as a graph error since it deliberately
// never deduplicates across units).
func (tu *TranslationUnit) DIE(off dwarf.Offset) (*dwarf.Entry, bool) {
	e, ok := tu.dies[off]
	return e, ok
}

// Builder returns the translation unit's type graph builder.
func (tu *TranslationUnit) Builder() *TypeGraphBuilder { return tu.builder }

// recognizedTypeTags is the Type Graph Builder's dispatch set, used
// here only to decide which top-level DIEs the scheduler should walk.
// construct() dispatches on these tags plus subroutine types and
// subprograms, which are left out here (SubprogramOffsets walks
// subprograms separately).
var recognizedTypeTags = map[dwarf.Tag]bool{
	dwarf.TagBaseType:        true,
	dwarf.TagEnumerationType: true,
	dwarf.TagStructType:      true,
	dwarf.TagUnionType:       true,
	dwarf.TagAtomicType:      true,
	dwarf.TagArrayType:       true,
	dwarf.TagConstType:       true,
	dwarf.TagPointerType:     true,
	dwarf.TagRestrictType:    true,
	dwarf.TagTypedef:         true,
	dwarf.TagVolatileType:    true,
}

// NamedTypeOffsets returns the offsets of every top-level, named,
// recognized-tag DIE in the unit, in DWARF stream order — the named
// types the scheduler walks to completion. A type is "top-level" here
// if it is a direct child of the compile-unit root;
// types nested purely as someone else's member or parameter dependency
// are reached transitively by the scheduler instead.
func (tu *TranslationUnit) NamedTypeOffsets() []dwarf.Offset {
	var out []dwarf.Offset
	for _, e := range tu.children(tu.dies[tu.RootOffset]) {
		if !recognizedTypeTags[e.Tag] {
			continue
		}
		if _, hasName := e.Val(dwarf.AttrName).(string); !hasName {
			continue
		}
		out = append(out, e.Offset)
	}
	return out
}

// SubprogramOffsets returns the offsets of every top-level
// DW_TAG_subprogram DIE in the unit, in DWARF stream order — the
// candidates the pipeline checks for shim eligibility.
func (tu *TranslationUnit) SubprogramOffsets() []dwarf.Offset {
	var out []dwarf.Offset
	for _, e := range tu.children(tu.dies[tu.RootOffset]) {
		if e.Tag == dwarf.TagSubprogram {
			out = append(out, e.Offset)
		}
	}
	return out
}

// HeaderStem returns the `<cu_offset_hex>_<munged_source_path>` stem
// used to derive every per-CU output filename.
func (tu *TranslationUnit) HeaderStem() string {
	return offsetHex(tu.RootOffset) + "_" + mungeSourcePath(tu.SourceFile)
}
