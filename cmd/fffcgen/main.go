// Command fffcgen walks one or more ELF targets' DWARF debugging
// information and emits, for every translation unit it describes, a
// C99 header, a mutator source, and one interposing shim per eligible
// function.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/binfuzz/fffc"
)

func main() {
	headersOnly := flag.Bool("headers_only", false, "only emit headers, skip mutator/shim synthesis")
	flag.BoolVar(headersOnly, "H", false, "shorthand for --headers_only")
	overwrite := flag.Bool("overwrite", false, "allow writing into an existing output directory")
	flag.BoolVar(overwrite, "O", false, "shorthand for --overwrite")
	flag.Parse()

	positional := flag.Args()
	if len(positional) < 2 {
		log.Fatal("usage: fffcgen [--headers_only] [--overwrite] target... output")
	}
	targets := positional[:len(positional)-1]
	outputDir := positional[len(positional)-1]

	cfg := fffc.NewConfig()
	cfg.SetBool("output.headers_only", *headersOnly)
	cfg.SetBool("output.overwrite", *overwrite)

	asanCache := fffc.NewAsanLibraryCache()
	toolchain := fffc.ExecToolchain{}

	exitCode := 0
	for _, target := range targets {
		// Each target gets its own subdirectory of the output directory
		// (matching the original intel/fffc behavior of Path(output) /
		// target), so a batch of targets never collides on filenames.
		targetOutputDir := filepath.Join(outputDir, filepath.Base(target))
		if err := processOneTarget(target, target, targetOutputDir, cfg, asanCache, toolchain); err != nil {
			// Per-target errors are caught and logged; processing
			// continues with the next target, except after a toolchain
			// failure, which ends the whole batch.
			log.Printf("%s: %v", target, err)
			if _, ok := err.(fffc.ToolchainFailureError); ok {
				os.Exit(1)
			}
			exitCode = 1
		}
	}
	os.Exit(exitCode)
}

func processOneTarget(executablePath, targetPath, outputDir string, cfg *fffc.Config, asanCache *fffc.AsanLibraryCache, toolchain fffc.Toolchain) error {
	if _, err := os.Stat(outputDir); err == nil && !cfg.GetBool("output.overwrite") {
		return fffc.OutputCollisionError{Path: outputDir}
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}
	if err := writeRuntimeScaffold(outputDir); err != nil {
		return err
	}

	accepted, err := fffc.AcceptTarget(targetPath, cfg)
	if err != nil {
		return err
	}

	result, err := fffc.ProcessTarget(accepted, executablePath, cfg)
	if err != nil {
		return err
	}
	for _, diag := range result.Diagnostics {
		log.Printf("%s: %v", targetPath, diag)
	}

	for _, unit := range result.Units {
		if err := writeUnit(unit, outputDir, cfg); err != nil {
			return err
		}
	}
	if cfg.GetBool("output.headers_only") {
		return nil
	}

	// The base mutator set is a pseudo-unit for declaration pooling: its
	// prototypes belong in mutator.h next to every real unit's, and its
	// definitions get their own source compiled alongside them.
	declUnits := append([]fffc.TranslationUnitOutput{{MutatorDeclarations: result.BaseMutatorDeclarations}}, result.Units...)
	if err := appendMutatorDeclarations(outputDir, declUnits); err != nil {
		return err
	}
	if err := writeBaseMutators(outputDir, result.BaseMutatorDefinitions); err != nil {
		return err
	}

	asanLib, err := fffc.ResolveAsanLibrary(asanCache, "cc", func() (string, error) {
		out, err := exec.Command("cc", "-print-file-name=libasan.so").Output()
		if err != nil {
			return "", fffc.ToolchainFailureError{Tool: "cc", Message: err.Error()}
		}
		return strings.TrimSpace(string(out)), nil
	})
	if err != nil {
		return err
	}

	supportObjs, err := compileSupportObjects(outputDir, result.Units, toolchain)
	if err != nil {
		return err
	}

	for _, unit := range result.Units {
		for fnName, runnerSrc := range unit.Shims {
			if err := writeShim(outputDir, fnName, runnerSrc, toolchain, asanLib, supportObjs); err != nil {
				return err
			}
		}
	}
	return nil
}

// writeBaseMutators writes the target-wide base-type mutator source,
// the definitions every unit's generated member calls bottom out in.
func writeBaseMutators(outputDir string, definitions []string) error {
	var b strings.Builder
	b.WriteString("#include \"mutator.h\"\n\n")
	for _, def := range definitions {
		b.WriteString(def)
		b.WriteString("\n")
	}
	return os.WriteFile(filepath.Join(outputDir, "base_mutators.c"), []byte(b.String()), 0644)
}

// compileSupportObjects compiles everything a shim links against
// besides its own runner: the runtime, the environment adjuster, the
// base-type mutators, the last-resort do-nothing mutator, and each
// unit's generated mutators. Compiled once per target and reused for
// every shim's link.
func compileSupportObjects(outputDir string, units []fffc.TranslationUnitOutput, toolchain fffc.Toolchain) ([]string, error) {
	sources := []string{"fffc_runtime.c", "env_adjuster.c", "base_mutators.c", "do_nothing.c"}
	for _, unit := range units {
		sources = append(sources, unit.Stem+"_mutator.c")
	}
	flags := []string{"-fPIC", "-Wno-incompatible-pointer-types-discards-qualifiers", "-I", outputDir}
	objs := make([]string, 0, len(sources))
	for _, src := range sources {
		srcPath := filepath.Join(outputDir, src)
		objPath := strings.TrimSuffix(srcPath, ".c") + ".o"
		if err := toolchain.Compile(srcPath, objPath, flags); err != nil {
			return nil, err
		}
		objs = append(objs, objPath)
	}
	return objs, nil
}

// appendMutatorDeclarations splices every unit's K&R-style forward
// declarations into the scaffolded mutator.h, ahead of any _mutator.c
// that references them. This is the step mutator.h's own header
// comment promises ("the forward declarations the driver appends per
// target"): without it, a mutually-recursive struct pair's generated
// mutators call each other before either is declared or defined
// anywhere in the translation unit, which is a hard error under C99.
//
// Declarations are deduplicated by text and pooled across every unit
// of the target, since mutator.h is shared by every unit's
// `_mutator.c` and re-declaring the same prototype twice is at best
// noise.
func appendMutatorDeclarations(outputDir string, units []fffc.TranslationUnitOutput) error {
	seen := make(map[string]bool)
	var pooled []string
	for _, unit := range units {
		for _, decl := range unit.MutatorDeclarations {
			if seen[decl] {
				continue
			}
			seen[decl] = true
			pooled = append(pooled, decl)
		}
	}
	if len(pooled) == 0 {
		return nil
	}

	path := filepath.Join(outputDir, "mutator.h")
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var decls strings.Builder
	for _, d := range pooled {
		decls.WriteString(d)
	}
	text := strings.Replace(string(raw), "#endif", decls.String()+"\n#endif", 1)
	return os.WriteFile(path, []byte(text), 0644)
}

func writeUnit(unit fffc.TranslationUnitOutput, outputDir string, cfg *fffc.Config) error {
	headerPath := filepath.Join(outputDir, unit.Stem+".h")
	if err := os.WriteFile(headerPath, []byte(unit.HeaderText), 0644); err != nil {
		return err
	}
	if cfg.GetBool("output.headers_only") {
		return nil
	}

	mutatorPath := filepath.Join(outputDir, unit.Stem+"_mutator.c")
	var mutatorSrc string
	mutatorSrc += "#include \"mutator.h\"\n"
	mutatorSrc += "#include \"" + unit.Stem + ".h\"\n\n"
	for _, def := range unit.MutatorDefinitions {
		mutatorSrc += def
		mutatorSrc += "\n"
	}
	return os.WriteFile(mutatorPath, []byte(mutatorSrc), 0644)
}

// writeShim compiles fnName's runner into a shared object and writes
// its companion scripts.
func writeShim(outputDir, fnName, runnerSrc string, toolchain fffc.Toolchain, asanLib string, supportObjs []string) error {
	runnerPath := filepath.Join(outputDir, fnName+"_runner.c")
	if err := os.WriteFile(runnerPath, []byte(runnerSrc), 0644); err != nil {
		return err
	}

	objPath := filepath.Join(outputDir, fnName+".o")
	soPath := filepath.Join(outputDir, fnName+".so")
	flags := []string{"-fPIC", "-Wno-incompatible-pointer-types-discards-qualifiers", "-I", outputDir}
	if err := toolchain.Compile(runnerPath, objPath, flags); err != nil {
		return err
	}
	var linkFlags []string
	if asanLib != "" {
		linkFlags = append(linkFlags, asanLib)
	}
	objs := append([]string{objPath}, supportObjs...)
	if err := toolchain.Link(objs, soPath, linkFlags); err != nil {
		return err
	}

	scripts := map[string]string{
		fnName + "_rebuild.sh": fmt.Sprintf("#!/bin/sh\nset -e\ncd \"$(dirname \"$0\")\"\ncc -fPIC -shared -I. -Wno-incompatible-pointer-types-discards-qualifiers -o %s.so %s_runner.c fffc_runtime.c env_adjuster.c base_mutators.c do_nothing.c *_mutator.c\n", fnName, fnName),
		fnName + "_runner.sh":  fmt.Sprintf("#!/bin/sh\nexec env LD_PRELOAD=\"$(dirname \"$0\")/%s.so\" \"$@\"\n", fnName),
		fnName + "_debug.gdb":  fmt.Sprintf("break %s\ncommands\n  printf \"fffc: entering %s\\n\"\nend\n", fnName, fnName),
		fnName + "_debug.sh":   fmt.Sprintf("#!/bin/sh\nexec env LD_PRELOAD=\"$(dirname \"$0\")/%s.so\" gdb -x \"$(dirname \"$0\")/%s_debug.gdb\" --args \"$@\"\n", fnName, fnName),
	}
	for name, text := range scripts {
		if err := os.WriteFile(filepath.Join(outputDir, name), []byte(text), 0755); err != nil {
			return err
		}
	}
	return nil
}

func writeRuntimeScaffold(outputDir string) error {
	files, err := fffc.LoadRuntimeScaffold()
	if err != nil {
		return err
	}
	for name, text := range files {
		if err := os.WriteFile(filepath.Join(outputDir, name), []byte(text), 0644); err != nil {
			return err
		}
	}
	return nil
}
