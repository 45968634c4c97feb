package fffc

import (
	"debug/dwarf"
	"path/filepath"
)

// TranslationUnitOutput is everything one compilation unit contributes
// to a target's generated output: its header text, its mutator
// declarations/definitions, and the runner source for each of its
// shim-eligible functions, keyed by function name.
type TranslationUnitOutput struct {
	Stem                string
	HeaderText          string
	MutatorDeclarations []string
	MutatorDefinitions  []string
	Shims               map[string]string
}

// TargetResult is everything ProcessTarget produced for one input
// target: one TranslationUnitOutput per accepted CU, plus the
// non-fatal diagnostics collected along the way (skipped CUs, unknown
// base types).
type TargetResult struct {
	Path        string
	Units       []TranslationUnitOutput
	Diagnostics []error

	// BaseMutatorDeclarations/Definitions are the target-wide base-type
	// mutator set (SynthesizeBaseMutators): shared by every unit's
	// generated mutators, emitted once per target.
	BaseMutatorDeclarations []string
	BaseMutatorDefinitions  []string
}

// ProcessTarget runs the full generation pipeline over one accepted
// target: translation-unit indexing, type graph construction,
// scheduling, mutator synthesis and shim synthesis, for every compile
// unit the target's DWARF data describes. executablePath is the
// loader's view of the program; when it differs from target.Path,
// every recovered shim address is attributed to target.Path as the
// providing binary, otherwise to the main executable (empty string,
// which is how the loader names that entry).
func ProcessTarget(target *AcceptedTarget, executablePath string, cfg *Config) (*TargetResult, error) {
	result := &TargetResult{Path: target.Path}

	baseDecls, baseDefns, err := SynthesizeBaseMutators(cfg)
	if err != nil {
		return nil, err
	}
	result.BaseMutatorDeclarations = baseDecls
	result.BaseMutatorDefinitions = baseDefns

	shimTarget := ShimTarget{PIE: target.PIE}
	if abs, err := filepath.Abs(target.Path); err == nil && abs != executablePathAbs(executablePath) {
		shimTarget.BinaryPath = abs
	}

	r := target.Data.Reader()
	for {
		entry, err := r.Next()
		if err != nil {
			return nil, GraphError{Unit: target.Path, Message: err.Error()}
		}
		if entry == nil {
			break
		}
		if entry.Tag != dwarf.TagCompileUnit {
			continue
		}

		unit, diags, err := processCompileUnit(target.Data, entry, cfg, shimTarget)
		result.Diagnostics = append(result.Diagnostics, diags...)
		if err != nil {
			if _, ok := err.(InputValidationError); ok {
				// Not written in one of the accepted C dialects: skip
				// this CU only.
				result.Diagnostics = append(result.Diagnostics, err)
				r.SkipChildren()
				continue
			}
			return nil, err
		}
		if unit != nil {
			result.Units = append(result.Units, *unit)
		}

		r.SkipChildren()
	}

	return result, nil
}

func executablePathAbs(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return abs
}

// processCompileUnit builds one TranslationUnit and walks it to
// completion: every named top-level type is declared/defined and
// mutator-synthesized, every eligible subprogram gets a shim.
//
// Returns (nil, nil, err) when err rejects the whole CU (wrong
// language). Otherwise returns the produced unit plus every non-fatal
// diagnostic collected along the way (e.g. one UnknownBaseTypeError
// per unrecognized base type); a nil third return means the CU built
// cleanly.
func processCompileUnit(data *dwarf.Data, cuEntry *dwarf.Entry, cfg *Config, shimTarget ShimTarget) (*TranslationUnitOutput, []error, error) {
	tu, err := NewTranslationUnit(data, cuEntry, cfg)
	if err != nil {
		return nil, nil, err
	}

	mutators := NewMutatorSynthesizer(tu, cfg)
	shims := NewShimSynthesizer(tu, cfg, mutators)

	var diags []error

	for _, off := range tu.NamedTypeOffsets() {
		node, constructErr := tu.Builder().GetOrAdd(off)
		if constructErr != nil {
			if isFatalToTarget(constructErr) {
				return nil, diags, constructErr
			}
			diags = append(diags, constructErr)
		}
		if node == nil {
			continue
		}

		if err := tu.Scheduler.Define(node); err != nil {
			if isFatalToTarget(err) {
				return nil, diags, err
			}
			diags = append(diags, err)
			continue
		}

		if base, ok := node.(*BaseTypeNode); ok {
			if _, isUnknown := constructErr.(UnknownBaseTypeError); isUnknown {
				if cfg.GetBool("mutator.emit_donothing_stubs") {
					if err := mutators.EmitDoNothingStubs(base.CanonicalName); err != nil {
						return nil, diags, err
					}
				}
				continue
			}
		}

		if _, _, err := mutators.NameFor(node); err != nil {
			return nil, diags, err
		}
	}

	unit := &TranslationUnitOutput{
		Stem:                tu.HeaderStem(),
		HeaderText:          tu.Header.Flush(),
		MutatorDeclarations: mutators.Declarations(),
		MutatorDefinitions:  mutators.Definitions(),
		Shims:               make(map[string]string),
	}

	for _, off := range tu.SubprogramOffsets() {
		node, err := tu.Builder().GetOrAdd(off)
		if err != nil {
			if isFatalToTarget(err) {
				return nil, diags, err
			}
			diags = append(diags, err)
			continue
		}
		fn, ok := node.(*FunctionNode)
		if !ok || !fn.ShimEligible() {
			continue
		}
		runner, err := shims.Synthesize(fn, shimTarget)
		if err != nil {
			return nil, diags, err
		}
		name, _ := fn.Name()
		unit.Shims[name] = runner
	}

	return unit, diags, nil
}
