package fffc

import (
	"regexp"
	"strconv"
)

// Language is the DWARF source-language code, restricted to the three
// dialects the generated C mutators can safely splice into: K&R, ANSI
// and C99. Any other DW_LANG_* value causes the translation unit to be
// rejected with InputValidationError.
type Language uint8

const (
	LanguageKR   Language = 0x01
	LanguageANSI Language = 0x02
	LanguageC99  Language = 0x0C
)

var acceptedLanguages = map[int64]Language{
	int64(LanguageKR):   LanguageKR,
	int64(LanguageANSI): LanguageANSI,
	int64(LanguageC99):  LanguageC99,
}

// AcceptLanguage reports whether the raw DW_AT_language value is one
// of the three dialects this generator accepts, returning the decoded
// Language when it is.
func AcceptLanguage(raw int64) (Language, bool) {
	lang, ok := acceptedLanguages[raw]
	return lang, ok
}

// Compiler identifies the producer of a translation unit, as far as
// the generator cares: it is recorded on the TranslationUnit only. The
// "sizetype" to "size_t" rewrite (rewriteSizetype) applies whatever the
// producer.
type Compiler int

const (
	CompilerUnknown Compiler = iota
	CompilerGCC
	CompilerClang
)

func (c Compiler) String() string {
	switch c {
	case CompilerGCC:
		return "gcc"
	case CompilerClang:
		return "clang"
	default:
		return "unknown"
	}
}

// Producer is the parsed (compiler, major-version) pair extracted
// from a DW_AT_producer string such as "GNU C17 11.4.0 ..." or "clang
// version 16.0.0 ...".
type Producer struct {
	Compiler Compiler
	Major    int
}

var (
	gccProducerRE   = regexp.MustCompile(`GNU C\S*\s+(\d+)`)
	clangProducerRE = regexp.MustCompile(`clang version (\d+)`)
)

// ParseProducer extracts a (compiler, major) pair from a raw
// DW_AT_producer string. Producers it doesn't recognize parse to
// CompilerUnknown with Major 0 rather than erroring: the producer
// string never affects acceptance.
func ParseProducer(raw string) Producer {
	if m := gccProducerRE.FindStringSubmatch(raw); m != nil {
		major, _ := strconv.Atoi(m[1])
		return Producer{Compiler: CompilerGCC, Major: major}
	}
	if m := clangProducerRE.FindStringSubmatch(raw); m != nil {
		major, _ := strconv.Atoi(m[1])
		return Producer{Compiler: CompilerClang, Major: major}
	}
	return Producer{Compiler: CompilerUnknown}
}
