package fffc

import (
	"crypto/sha256"
	"encoding/hex"
)

// mangleSuffix hashes a type's printed top-level declaration into the
// stable hex suffix shared by its mutator and size-of helper names:
// any two types whose printed declarations are textually identical
// produce the same mangled name. sha256 with no per-run salt is what
// makes that hold across runs; only the upper half of the digest is
// kept, which is plenty of space to make accidental collisions
// negligible for the number of types one binary's DWARF will ever
// describe.
func mangleSuffix(printedDeclaration string) string {
	sum := sha256.Sum256([]byte(printedDeclaration))
	return hex.EncodeToString(sum[:len(sum)/2])
}

// mutatorName returns the mangled mutator function name for a type
// whose printed top-level declaration is printedDeclaration.
func mutatorName(cfg *Config, printedDeclaration string) string {
	return cfg.GetString("mangle.prefix") + mangleSuffix(printedDeclaration)
}

// sizeofName returns the mangled size-of helper name paired with
// mutatorName for the same printed declaration.
func sizeofName(cfg *Config, printedDeclaration string) string {
	return cfg.GetString("mangle.sizeof_prefix") + mangleSuffix(printedDeclaration)
}
