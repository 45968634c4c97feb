package fffc

import (
	"bytes"
	"debug/dwarf"
	"encoding/binary"
)

// This file builds minimal, hand-assembled DWARF v4 .debug_abbrev and
// .debug_info byte streams so tests can exercise TranslationUnit and
// TypeGraphBuilder construction against a real *dwarf.Data, the way
// debug/dwarf's own tests do against real ELF testdata (entry_test.go,
// type_test.go) — except here the bytes are synthesized directly
// rather than read from a compiled binary, since no C toolchain is
// available to produce one.
//
// Only the handful of raw DWARF form codes the fixtures below actually
// use are declared; this is not a general-purpose DWARF writer.
const (
	dwFormAddr   = 0x01
	dwFormString = 0x08
	dwFormFlag   = 0x0c
	dwFormUdata  = 0x0f
	dwFormRef4   = 0x13
)

// dwAttrSpec is one encoded attribute: either a string, an unsigned
// integer (written as ULEB128), a flag, an address, or a reference to
// another node (patched in once every node's offset is known).
type dwAttrSpec struct {
	attr dwarf.Attr
	form int
	str  string
	num  uint64
	flag bool
	addr uint64
	ref  *dwNode
}

type dwNode struct {
	tag      dwarf.Tag
	attrs    []dwAttrSpec
	children []*dwNode
	offset   dwarf.Offset
}

func dieAttr(attr dwarf.Attr, s string) dwAttrSpec {
	return dwAttrSpec{attr: attr, form: dwFormString, str: s}
}
func uintAttr(attr dwarf.Attr, n uint64) dwAttrSpec {
	return dwAttrSpec{attr: attr, form: dwFormUdata, num: n}
}
func flagAttr(attr dwarf.Attr, v bool) dwAttrSpec {
	return dwAttrSpec{attr: attr, form: dwFormFlag, flag: v}
}
func addrAttr(attr dwarf.Attr, v uint64) dwAttrSpec {
	return dwAttrSpec{attr: attr, form: dwFormAddr, addr: v}
}
func refAttr(attr dwarf.Attr, target *dwNode) dwAttrSpec {
	return dwAttrSpec{attr: attr, form: dwFormRef4, ref: target}
}

func newDie(tag dwarf.Tag, attrs ...dwAttrSpec) *dwNode {
	return &dwNode{tag: tag, attrs: attrs}
}

func (n *dwNode) addChild(c *dwNode) *dwNode {
	n.children = append(n.children, c)
	return n
}

type dwPatch struct {
	pos    int
	target *dwNode
}

// buildDWARF assembles a single compile unit containing root's
// children and returns a *dwarf.Data ready for TranslationUnit
// construction. root itself is never passed directly: buildCU
// constructs the DW_TAG_compile_unit entry from the given metadata and
// attaches topLevel as its children.
func buildDWARF(sourceFile string, language int64, producer string, topLevel []*dwNode) (*dwarf.Data, *dwNode) {
	cu := newDie(dwarf.TagCompileUnit,
		dieAttr(dwarf.AttrName, sourceFile),
		uintAttr(dwarf.AttrLanguage, uint64(language)),
		dieAttr(dwarf.AttrProducer, producer),
	)
	cu.children = topLevel

	var abbrevBuf bytes.Buffer
	var infoBuf bytes.Buffer
	var patches []dwPatch

	// 32-bit DWARF v4 header: 4-byte length placeholder, 2-byte
	// version, 4-byte abbrev offset (always 0, single table), 1-byte
	// address size.
	infoBuf.Write(make([]byte, 4))
	writeU16(&infoBuf, 4)
	writeU32(&infoBuf, 0)
	infoBuf.WriteByte(8)

	var nextAbbrevCode uint64 = 1
	var encode func(n *dwNode)
	encode = func(n *dwNode) {
		n.offset = dwarf.Offset(infoBuf.Len())
		code := nextAbbrevCode
		nextAbbrevCode++

		hasChildren := len(n.children) > 0
		writeAbbrevDecl(&abbrevBuf, code, n.tag, hasChildren, n.attrs)

		writeULEB(&infoBuf, code)
		for _, a := range n.attrs {
			switch a.form {
			case dwFormString:
				infoBuf.WriteString(a.str)
				infoBuf.WriteByte(0)
			case dwFormUdata:
				writeULEB(&infoBuf, a.num)
			case dwFormFlag:
				if a.flag {
					infoBuf.WriteByte(1)
				} else {
					infoBuf.WriteByte(0)
				}
			case dwFormAddr:
				writeU64(&infoBuf, a.addr)
			case dwFormRef4:
				patches = append(patches, dwPatch{pos: infoBuf.Len(), target: a.ref})
				writeU32(&infoBuf, 0)
			}
		}

		for _, c := range n.children {
			encode(c)
		}
		if hasChildren {
			infoBuf.WriteByte(0) // null entry terminates the sibling list
		}
	}
	encode(cu)
	abbrevBuf.WriteByte(0) // table terminator

	raw := infoBuf.Bytes()
	for _, p := range patches {
		binary.LittleEndian.PutUint32(raw[p.pos:p.pos+4], uint32(p.target.offset))
	}
	binary.LittleEndian.PutUint32(raw[0:4], uint32(len(raw)-4))

	data, err := dwarf.New(abbrevBuf.Bytes(), nil, nil, raw, nil, nil, nil, nil)
	if err != nil {
		panic(err)
	}
	return data, cu
}

func writeAbbrevDecl(buf *bytes.Buffer, code uint64, tag dwarf.Tag, hasChildren bool, attrs []dwAttrSpec) {
	writeULEB(buf, code)
	writeULEB(buf, uint64(tag))
	if hasChildren {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
	for _, a := range attrs {
		writeULEB(buf, uint64(a.attr))
		writeULEB(buf, uint64(a.form))
	}
	writeULEB(buf, 0)
	writeULEB(buf, 0)
}

func writeULEB(buf *bytes.Buffer, v uint64) {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			buf.WriteByte(b | 0x80)
		} else {
			buf.WriteByte(b)
			return
		}
	}
}

func writeU16(buf *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	buf.Write(b[:])
}

func writeU32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeU64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}
