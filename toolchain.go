package fffc

import (
	"fmt"
	"os"
	"os/exec"
)

// Toolchain is the C preprocessor/compiler/linker collaborator used
// to compile generated sources and link shared objects. The generator
// only needs three operations from it — preprocess a source for
// inspection, compile a source to an object, and link objects into a
// shared object — so the interface is kept to exactly that shape
// rather than wrapping a full compiler driver. A real,
// exec.Command-backed implementation lives alongside an in-memory fake
// for tests.
type Toolchain interface {
	// Preprocess runs the C preprocessor over src, returning its
	// stdout.
	Preprocess(src string) (string, error)
	// Compile compiles src into a relocatable object at objPath.
	Compile(src, objPath string, flags []string) error
	// Link links objPaths into a shared object at soPath.
	Link(objPaths []string, soPath string, flags []string) error
}

// ExecToolchain shells out to a real C compiler, the way a production
// driver must. CC defaults to "cc" when empty.
type ExecToolchain struct {
	CC string
}

func (t ExecToolchain) cc() string {
	if t.CC == "" {
		return "cc"
	}
	return t.CC
}

func (t ExecToolchain) Preprocess(src string) (string, error) {
	cmd := exec.Command(t.cc(), "-E", src)
	out, err := cmd.Output()
	if err != nil {
		return "", ToolchainFailureError{Tool: t.cc(), Message: fmt.Sprintf("preprocess %s: %v", src, err)}
	}
	return string(out), nil
}

func (t ExecToolchain) Compile(src, objPath string, flags []string) error {
	args := append([]string{"-c", src, "-o", objPath}, flags...)
	cmd := exec.Command(t.cc(), args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return ToolchainFailureError{Tool: t.cc(), Message: fmt.Sprintf("compile %s: %v: %s", src, err, out)}
	}
	return nil
}

func (t ExecToolchain) Link(objPaths []string, soPath string, flags []string) error {
	args := append([]string{"-shared", "-o", soPath}, objPaths...)
	args = append(args, flags...)
	cmd := exec.Command(t.cc(), args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return ToolchainFailureError{Tool: t.cc(), Message: fmt.Sprintf("link %s: %v: %s", soPath, err, out)}
	}
	return nil
}

// FakeToolchain is an in-memory collaborator for tests: it records
// every invocation without shelling out to a real compiler, the way
// InMemoryImportLoader lets grammar import tests run without touching
// a filesystem.
type FakeToolchain struct {
	Preprocessed []string
	Compiled     []string
	Linked       []string
	// FailOn, if non-empty, makes the named operation fail — "preprocess",
	// "compile" or "link" — so callers can exercise ToolchainFailureError
	// propagation.
	FailOn string
}

func (t *FakeToolchain) Preprocess(src string) (string, error) {
	if t.FailOn == "preprocess" {
		return "", ToolchainFailureError{Tool: "fake-cc", Message: "preprocess forced failure"}
	}
	t.Preprocessed = append(t.Preprocessed, src)
	return "", nil
}

func (t *FakeToolchain) Compile(src, objPath string, flags []string) error {
	if t.FailOn == "compile" {
		return ToolchainFailureError{Tool: "fake-cc", Message: "compile forced failure"}
	}
	t.Compiled = append(t.Compiled, src)
	return os.WriteFile(objPath, []byte("fake-object"), 0644)
}

func (t *FakeToolchain) Link(objPaths []string, soPath string, flags []string) error {
	if t.FailOn == "link" {
		return ToolchainFailureError{Tool: "fake-cc", Message: "link forced failure"}
	}
	t.Linked = append(t.Linked, soPath)
	return os.WriteFile(soPath, []byte("fake-shared-object"), 0644)
}
