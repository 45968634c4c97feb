package fffc

import (
	"debug/dwarf"
	"debug/elf"
	"fmt"
	"strings"
)

// AcceptedTarget is the result of running a target file through the
// input acceptance checks: its parsed DWARF data (ready
// for TranslationUnit construction) plus the PIE flag the Shim
// Synthesizer's runner template needs.
type AcceptedTarget struct {
	Path string
	Data *dwarf.Data
	// PIE is true when the target's ELF type is ET_DYN, false for
	// ET_EXEC.
	PIE bool
}

// AcceptTarget opens path and runs the two hard acceptance checks
// that gate any translation unit being built: DWARF must be present,
// and the target must have been compiled with ASan (its dynamic
// section must list some asan-named library). Per-CU language
// acceptance is checked later, per unit, by
// AcceptLanguage — a CU failing that check is skipped with a
// diagnostic rather than rejecting the whole target.
func AcceptTarget(path string, cfg *Config) (*AcceptedTarget, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, InputValidationError{Target: path, Message: fmt.Sprintf("not a valid ELF file: %v", err)}
	}
	defer f.Close()

	data, err := f.DWARF()
	if err != nil {
		return nil, InputValidationError{Target: path, Message: "not compiled with DWARF info; add -g"}
	}

	if !hasASan(f, cfg.GetString("runtime.asan_symbol_substring")) {
		return nil, InputValidationError{Target: path, Message: "not compiled with ASAN"}
	}

	return &AcceptedTarget{
		Path: path,
		Data: data,
		PIE:  f.Type == elf.ET_DYN,
	}, nil
}

// hasASan reports whether f's dynamic section lists a needed library
// whose name contains substr.
func hasASan(f *elf.File, substr string) bool {
	libs, err := f.ImportedLibraries()
	if err != nil {
		return false
	}
	for _, lib := range libs {
		if strings.Contains(strings.ToLower(lib), substr) {
			return true
		}
	}
	return false
}

// asanLibraryCacheKey is the compiler→ASan-library path cache's key.
// The lookup (driving the compiler to ask where its ASan runtime
// lives) is memoized write-once and shared across every translation
// unit processed in the run, rather than re-invoking the compiler once
// per unit for what is always the same answer for a given compiler
// executable.
type asanLibraryCacheKey string

// AsanLibraryCache is the one process-wide shared mutable cache the
// pipeline carries outside the nesting context: compiler→ASan-library
// path, write-once per key, shared across translation units.
type AsanLibraryCache = Memo[asanLibraryCacheKey, string]

// NewAsanLibraryCache creates the shared cache the pipeline threads
// through every target it processes in one run.
func NewAsanLibraryCache() *AsanLibraryCache {
	return NewMemo[asanLibraryCacheKey, string]()
}

// ResolveAsanLibrary returns the absolute path of compilerPath's ASan
// runtime library, invoking query (expected to shell out to the
// compiler, e.g. `cc -print-file-name=libasan.so`) at most once per
// distinct compiler path for the lifetime of cache.
func ResolveAsanLibrary(cache *AsanLibraryCache, compilerPath string, query func() (string, error)) (string, error) {
	return cache.GetOrCompute(asanLibraryCacheKey(compilerPath), query)
}
