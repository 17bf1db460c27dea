// Package wasmtest assembles small core WebAssembly modules for tests.
//
// It covers the handful of sections and instructions the engine tests need:
// function types, function imports, one exported memory, mutable i32
// globals, exported functions without locals, and active data segments.
package wasmtest

import (
	"math"
)

// ValType is a wasm value type.
type ValType byte

const (
	I32 ValType = 0x7F
	I64 ValType = 0x7E
	F32 ValType = 0x7D
)

const (
	sectionType     = 1
	sectionImport   = 2
	sectionFunction = 3
	sectionMemory   = 5
	sectionGlobal   = 6
	sectionExport   = 7
	sectionCode     = 10
	sectionData     = 11

	kindFunc   = 0x00
	kindMemory = 0x02
)

type funcType struct {
	params, results []ValType
}

type importFunc struct {
	module, name string
	typeIdx      uint32
}

type function struct {
	name    string
	typeIdx uint32
	body    []byte
}

type segment struct {
	offset uint32
	data   []byte
}

// Builder accumulates a module definition.
type Builder struct {
	types    []funcType
	imports  []importFunc
	funcs    []function
	globals  []int32
	data     []segment
	memPages uint32
	hasMem   bool
}

// New returns an empty module builder.
func New() *Builder {
	return &Builder{}
}

func (b *Builder) typeIndex(params, results []ValType) uint32 {
	for i, t := range b.types {
		if equal(t.params, params) && equal(t.results, results) {
			return uint32(i)
		}
	}
	b.types = append(b.types, funcType{params: params, results: results})
	return uint32(len(b.types) - 1)
}

// Import declares an imported function and returns its function index.
// Imports must be declared before any Func.
func (b *Builder) Import(module, name string, params, results []ValType) uint32 {
	if len(b.funcs) > 0 {
		panic("wasmtest: imports must precede functions")
	}
	b.imports = append(b.imports, importFunc{module: module, name: name, typeIdx: b.typeIndex(params, results)})
	return uint32(len(b.imports) - 1)
}

// Func defines a function from concatenated instructions and returns its
// index. A non-empty name exports it. The trailing end opcode is added.
func (b *Builder) Func(name string, params, results []ValType, body ...[]byte) uint32 {
	var code []byte
	for _, ins := range body {
		code = append(code, ins...)
	}
	b.funcs = append(b.funcs, function{name: name, typeIdx: b.typeIndex(params, results), body: code})
	return uint32(len(b.imports) + len(b.funcs) - 1)
}

// Memory declares the module memory, exported as "memory".
func (b *Builder) Memory(pages uint32) *Builder {
	b.memPages = pages
	b.hasMem = true
	return b
}

// Global declares a mutable i32 global and returns its index.
func (b *Builder) Global(init int32) uint32 {
	b.globals = append(b.globals, init)
	return uint32(len(b.globals) - 1)
}

// Data places bytes in memory at offset when the module is instantiated.
func (b *Builder) Data(offset uint32, data []byte) *Builder {
	b.data = append(b.data, segment{offset: offset, data: data})
	return b
}

// Bytes encodes the module.
func (b *Builder) Bytes() []byte {
	var w writer
	w.u32le(0x6D736100) // \0asm
	w.u32le(1)

	if len(b.types) > 0 {
		var s writer
		s.u32(uint32(len(b.types)))
		for _, t := range b.types {
			s.byte(0x60)
			valTypes(&s, t.params)
			valTypes(&s, t.results)
		}
		w.section(sectionType, s.bytes())
	}

	if len(b.imports) > 0 {
		var s writer
		s.u32(uint32(len(b.imports)))
		for _, imp := range b.imports {
			s.name(imp.module)
			s.name(imp.name)
			s.byte(kindFunc)
			s.u32(imp.typeIdx)
		}
		w.section(sectionImport, s.bytes())
	}

	if len(b.funcs) > 0 {
		var s writer
		s.u32(uint32(len(b.funcs)))
		for _, f := range b.funcs {
			s.u32(f.typeIdx)
		}
		w.section(sectionFunction, s.bytes())
	}

	if b.hasMem {
		var s writer
		s.u32(1)
		s.byte(0x00)
		s.u32(b.memPages)
		w.section(sectionMemory, s.bytes())
	}

	if len(b.globals) > 0 {
		var s writer
		s.u32(uint32(len(b.globals)))
		for _, g := range b.globals {
			s.byte(byte(I32))
			s.byte(0x01)
			s.raw(I32Const(g))
			s.byte(opEnd)
		}
		w.section(sectionGlobal, s.bytes())
	}

	var exports writer
	n := uint32(0)
	if b.hasMem {
		exports.name("memory")
		exports.byte(kindMemory)
		exports.u32(0)
		n++
	}
	for i, f := range b.funcs {
		if f.name == "" {
			continue
		}
		exports.name(f.name)
		exports.byte(kindFunc)
		exports.u32(uint32(len(b.imports) + i))
		n++
	}
	if n > 0 {
		var s writer
		s.u32(n)
		s.raw(exports.bytes())
		w.section(sectionExport, s.bytes())
	}

	if len(b.funcs) > 0 {
		var s writer
		s.u32(uint32(len(b.funcs)))
		for _, f := range b.funcs {
			var body writer
			body.u32(0) // no locals
			body.raw(f.body)
			body.byte(opEnd)
			s.u32(uint32(len(body.bytes())))
			s.raw(body.bytes())
		}
		w.section(sectionCode, s.bytes())
	}

	if len(b.data) > 0 {
		var s writer
		s.u32(uint32(len(b.data)))
		for _, seg := range b.data {
			s.byte(0x00)
			s.raw(I32Const(int32(seg.offset)))
			s.byte(opEnd)
			s.u32(uint32(len(seg.data)))
			s.raw(seg.data)
		}
		w.section(sectionData, s.bytes())
	}

	return w.bytes()
}

func valTypes(w *writer, types []ValType) {
	w.u32(uint32(len(types)))
	for _, t := range types {
		w.byte(byte(t))
	}
}

func equal(a, b []ValType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

const (
	opUnreachable = 0x00
	opEnd         = 0x0B
	opCall        = 0x10
	opDrop        = 0x1A
	opLocalGet    = 0x20
	opGlobalGet   = 0x23
	opGlobalSet   = 0x24
	opI32Const    = 0x41
	opI64Const    = 0x42
	opF32Const    = 0x43
	opI32Add      = 0x6A
	opPrefixFC    = 0xFC
	opMemoryCopy  = 0x0A
)

// I32Const pushes v.
func I32Const(v int32) []byte {
	var w writer
	w.byte(opI32Const)
	w.s64(int64(v))
	return w.bytes()
}

// I64Const pushes v.
func I64Const(v int64) []byte {
	var w writer
	w.byte(opI64Const)
	w.s64(v)
	return w.bytes()
}

// F32Const pushes v.
func F32Const(v float32) []byte {
	var w writer
	w.byte(opF32Const)
	w.u32le(math.Float32bits(v))
	return w.bytes()
}

// LocalGet pushes parameter i.
func LocalGet(i uint32) []byte { return withIndex(opLocalGet, i) }

// GlobalGet pushes global i.
func GlobalGet(i uint32) []byte { return withIndex(opGlobalGet, i) }

// GlobalSet pops into global i.
func GlobalSet(i uint32) []byte { return withIndex(opGlobalSet, i) }

// Call calls function idx.
func Call(idx uint32) []byte { return withIndex(opCall, idx) }

// I32Add adds the top two i32 values.
func I32Add() []byte { return []byte{opI32Add} }

// Drop discards the top value.
func Drop() []byte { return []byte{opDrop} }

// Unreachable traps.
func Unreachable() []byte { return []byte{opUnreachable} }

// MemoryCopy pops (dst, src, len) and copies within memory 0.
func MemoryCopy() []byte { return []byte{opPrefixFC, opMemoryCopy, 0x00, 0x00} }

func withIndex(op byte, i uint32) []byte {
	var w writer
	w.byte(op)
	w.u32(i)
	return w.bytes()
}
