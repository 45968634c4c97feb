package fffc

import "embed"

// templateFS packages the hand-written C mutator scaffolding the
// synthesizers only ever substitute placeholders into. The templates
// live on disk as ordinary files and are compiled into the binary, so
// the generator never depends on a runtime template directory.
//
//go:embed templates/*.tmpl templates/runtime/*
var templateFS embed.FS

// runtimeScaffoldFiles is the verbatim scaffolding written alongside
// the per-CU generated sources. The generator never edits these; the
// driver (cmd/fffcgen) just copies them into every output directory.
var runtimeScaffoldFiles = []string{
	"base.h",
	"fffc_runtime.h",
	"fffc_runtime.c",
	"env_adjuster.c",
	"do_nothing.c",
	"mutator.h",
}

// LoadRuntimeScaffold returns the verbatim text of every packaged
// runtime scaffold file, keyed by its output filename.
func LoadRuntimeScaffold() (map[string]string, error) {
	out := make(map[string]string, len(runtimeScaffoldFiles))
	for _, name := range runtimeScaffoldFiles {
		raw, err := templateFS.ReadFile("templates/runtime/" + name)
		if err != nil {
			return nil, ToolchainFailureError{Tool: "template-loader", Message: err.Error()}
		}
		out[name] = string(raw)
	}
	return out, nil
}

// MutatorCategory is the template category a type node specializes
// into.
type MutatorCategory int

const (
	CategoryStruct MutatorCategory = iota
	CategoryUnion
	CategoryEnum
	CategoryArray
	CategoryPointer
	CategoryModifier
	CategoryFunction
	CategoryDoNothing
	CategoryBase
	CategoryVoid
)

var templateFile = map[MutatorCategory]string{
	CategoryStruct:    "templates/struct_mutator.c.tmpl",
	CategoryUnion:     "templates/union_mutator.c.tmpl",
	CategoryEnum:      "templates/enum_mutator.c.tmpl",
	CategoryArray:     "templates/array_mutator.c.tmpl",
	CategoryPointer:   "templates/pointer_mutator.c.tmpl",
	CategoryModifier:  "templates/modifier_mutator.c.tmpl",
	CategoryFunction:  "templates/function_mutator.c.tmpl",
	CategoryDoNothing: "templates/donothing_mutator.c.tmpl",
	CategoryBase:      "templates/base_mutator.c.tmpl",
	CategoryVoid:      "templates/void_mutator.c.tmpl",
}

// loadTemplate reads one packaged template's raw text. Each
// specialization re-reads (rather than parses once into a shared
// mutable AST) because the substitution step here is a handful of
// textual replacements, not a persistent-data-structure clone of a
// parsed tree — there is no shared mutable tree to protect from
// concurrent specialization, and the pipeline is single-threaded
// regardless.
func loadTemplate(category MutatorCategory) (string, error) {
	name, ok := templateFile[category]
	if !ok {
		return "", InputValidationError{Target: "", Message: "unknown mutator template category"}
	}
	raw, err := templateFS.ReadFile(name)
	if err != nil {
		return "", ToolchainFailureError{Tool: "template-loader", Message: err.Error()}
	}
	return string(raw), nil
}

// shimTemplateFile is the packaged runner/shim template the Shim
// Synthesizer specializes per eligible function.
const shimTemplateFile = "templates/shim_runner.c.tmpl"

func loadShimTemplate() (string, error) {
	raw, err := templateFS.ReadFile(shimTemplateFile)
	if err != nil {
		return "", ToolchainFailureError{Tool: "template-loader", Message: err.Error()}
	}
	return string(raw), nil
}
