package fffc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAcceptLanguage(t *testing.T) {
	cases := []struct {
		name string
		raw  int64
		want Language
		ok   bool
	}{
		{"kr", int64(LanguageKR), LanguageKR, true},
		{"ansi", int64(LanguageANSI), LanguageANSI, true},
		{"c99", int64(LanguageC99), LanguageC99, true},
		{"cplusplus", 0x04, 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := AcceptLanguage(tc.raw)
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.Equal(t, tc.want, got)
			}
		})
	}
}

func TestParseProducerGCC(t *testing.T) {
	p := ParseProducer("GNU C17 11.4.0 -mtune=generic -march=x86-64 -g -O2")
	assert.Equal(t, CompilerGCC, p.Compiler)
	assert.Equal(t, 11, p.Major)
	assert.Equal(t, "gcc", p.Compiler.String())
}

func TestParseProducerClang(t *testing.T) {
	p := ParseProducer("clang version 16.0.0")
	assert.Equal(t, CompilerClang, p.Compiler)
	assert.Equal(t, 16, p.Major)
	assert.Equal(t, "clang", p.Compiler.String())
}

func TestParseProducerUnknown(t *testing.T) {
	p := ParseProducer("some exotic toolchain v1")
	assert.Equal(t, CompilerUnknown, p.Compiler)
	assert.Equal(t, 0, p.Major)
	assert.Equal(t, "unknown", p.Compiler.String())
}
