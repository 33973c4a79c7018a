// This file is part of jvst-go - https://github.com/katef/jvst-go
//
// Copyright 2024 The jvst-go Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package vmprog

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/pkg/errors"

	"github.com/katef/jvst-go/internal/dfa"
	"github.com/katef/jvst-go/ir"
	"github.com/katef/jvst-go/opasm"
)

// magic identifies a VmProgram image; version guards against format
// drift the way db47h-ngaro's vm.Image.Load/Save never had to (that
// format never changed shape), but this one is expected to grow
// opcodes as the compiler does.
const (
	magic   = "JVSC"
	version = 1
)

// WriteTo packs p into w in binary form: a small header followed by
// every proc, expression and matcher automaton, length-prefixed the
// way internal/idtbl.Arena length-prefixes interned strings. Grounded
// on vm/image.go's Load/Save, which packs a Forth image the same way
// with encoding/binary and no third-party serialization library; this
// keeps that same ambient choice for the same kind of concern.
func (p *VmProgram) WriteTo(wr io.Writer) (int64, error) {
	w := &writer{w: wr}
	w.bytes([]byte(magic))
	w.u32(version)
	w.str(p.Entry)

	w.u32(uint32(len(p.Exprs)))
	for _, e := range p.Exprs {
		w.expr(e)
	}

	w.u32(uint32(len(p.FrameProc)))
	for k, v := range p.FrameProc {
		w.i32(int32(k))
		w.i32(int32(v))
	}

	w.u32(uint32(len(p.Procs)))
	for _, proc := range p.Procs {
		w.proc(proc)
	}
	return w.n, w.err
}

// ReadFrom unpacks a VmProgram previously written by WriteTo.
func (p *VmProgram) ReadFrom(rd io.Reader) (int64, error) {
	r := &reader{r: rd}
	got := r.bytes(len(magic))
	if r.err == nil && string(got) != magic {
		return r.n, errors.Errorf("vmprog: bad magic %q", got)
	}
	if v := r.u32(); r.err == nil && v != version {
		return r.n, errors.Errorf("vmprog: unsupported version %d", v)
	}
	p.Entry = r.str()

	nExprs := r.u32()
	p.Exprs = make([]ir.Expr, nExprs)
	for i := range p.Exprs {
		p.Exprs[i] = r.expr()
	}

	nFrames := r.u32()
	p.FrameProc = make(map[ir.Ref]int, nFrames)
	for i := uint32(0); i < nFrames; i++ {
		k := r.i32()
		v := r.i32()
		p.FrameProc[ir.Ref(k)] = int(v)
	}

	nProcs := r.u32()
	p.Procs = make([]VmProc, nProcs)
	p.ProcIndex = make(map[string]int, nProcs)
	for i := range p.Procs {
		p.Procs[i] = r.proc()
		p.ProcIndex[p.Procs[i].Label] = i
	}
	return r.n, r.err
}

// writer accumulates the first error encountered so every call site in
// WriteTo/the helper methods below can ignore errors inline and let
// the final return check w.err once, the same "sticky error" idiom
// bufio.Scanner and similar stdlib writers use internally.
type writer struct {
	w   io.Writer
	n   int64
	err error
}

func (w *writer) bytes(b []byte) {
	if w.err != nil {
		return
	}
	n, err := w.w.Write(b)
	w.n += int64(n)
	w.err = err
}

func (w *writer) u32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.bytes(b[:])
}

func (w *writer) i32(v int32) { w.u32(uint32(v)) }

func (w *writer) f64(v float64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], math.Float64bits(v))
	w.bytes(b[:])
}

func (w *writer) boolean(v bool) {
	if v {
		w.bytes([]byte{1})
	} else {
		w.bytes([]byte{0})
	}
}

func (w *writer) str(s string) {
	w.u32(uint32(len(s)))
	w.bytes([]byte(s))
}

func (w *writer) ints(vs []int) {
	w.u32(uint32(len(vs)))
	for _, v := range vs {
		w.i32(int32(v))
	}
}

func (w *writer) expr(e ir.Expr) {
	w.i32(int32(e.Kind))
	w.f64(e.Num)
	w.i32(int32(e.Size))
	w.boolean(e.Bool)
	w.i32(int32(e.TokKind))
	w.i32(int32(e.Left))
	w.i32(int32(e.Right))
	w.i32(int32(e.Arg))
	w.i32(int32(e.CounterIndex))
	w.i32(int32(e.BitvecIndex))
	w.i32(int32(e.BitIndex))
	w.f64(e.MultipleOf)
	w.u32(uint32(len(e.SplitFrames)))
	for _, f := range e.SplitFrames {
		w.i32(int32(f))
	}
	w.i32(int32(e.SplitKind))
}

func (w *writer) dfaVal(d *dfa.DFA) {
	if d == nil {
		w.i32(-1)
		return
	}
	w.i32(int32(d.NStates))
	for _, row := range d.Trans {
		for _, v := range row {
			w.i32(v)
		}
	}
	for _, acc := range d.Accept {
		w.ints(acc)
	}
}

func (w *writer) instr(ins opasm.OpInstr) {
	w.i32(int32(ins.Op))
	w.i32(int32(ins.Index))
	w.i32(int32(ins.Bit))
	w.i32(int32(ins.Delta))
	w.i32(int32(ins.Cond))
	w.i32(int32(ins.Target))
	w.i32(int32(ins.ProcIdx))
	w.i32(int32(ins.Code))
	w.u32(uint32(len(ins.Cases)))
	for _, c := range ins.Cases {
		w.ints(c.Labels)
		w.i32(int32(c.Target))
	}
	w.i32(int32(ins.DefaultTarget))
}

func (w *writer) proc(p VmProc) {
	w.str(p.Label)
	w.i32(int32(p.NCounters))
	w.i32(int32(p.NBitvectors))
	w.i32(int32(p.NUniqueSets))
	w.u32(uint32(len(p.Matchers)))
	for _, m := range p.Matchers {
		w.dfaVal(m)
	}
	w.u32(uint32(len(p.Code)))
	for _, ins := range p.Code {
		w.instr(ins)
	}
}

type reader struct {
	r   io.Reader
	n   int64
	err error
}

func (r *reader) bytes(n int) []byte {
	if r.err != nil {
		return nil
	}
	b := make([]byte, n)
	got, err := io.ReadFull(r.r, b)
	r.n += int64(got)
	if err != nil {
		r.err = err
		return nil
	}
	return b
}

func (r *reader) u32() uint32 {
	b := r.bytes(4)
	if r.err != nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *reader) i32() int32 { return int32(r.u32()) }

func (r *reader) f64() float64 {
	b := r.bytes(8)
	if r.err != nil {
		return 0
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(b))
}

func (r *reader) boolean() bool {
	b := r.bytes(1)
	return r.err == nil && len(b) == 1 && b[0] != 0
}

func (r *reader) str() string {
	n := r.u32()
	b := r.bytes(int(n))
	return string(b)
}

func (r *reader) ints() []int {
	n := r.u32()
	out := make([]int, n)
	for i := range out {
		out[i] = int(r.i32())
	}
	return out
}

func (r *reader) expr() ir.Expr {
	var e ir.Expr
	e.Kind = ir.ExprKind(r.i32())
	e.Num = r.f64()
	e.Size = int(r.i32())
	e.Bool = r.boolean()
	e.TokKind = ir.TokKind(r.i32())
	e.Left = ir.ExprRef(r.i32())
	e.Right = ir.ExprRef(r.i32())
	e.Arg = ir.ExprRef(r.i32())
	e.CounterIndex = int(r.i32())
	e.BitvecIndex = int(r.i32())
	e.BitIndex = int(r.i32())
	e.MultipleOf = r.f64()
	n := r.u32()
	e.SplitFrames = make([]ir.Ref, n)
	for i := range e.SplitFrames {
		e.SplitFrames[i] = ir.Ref(r.i32())
	}
	e.SplitKind = ir.SplitKind(r.i32())
	return e
}

func (r *reader) dfaVal() *dfa.DFA {
	nStates := r.i32()
	if nStates < 0 {
		return nil
	}
	d := &dfa.DFA{
		NStates: int(nStates),
		Trans:   make([][256]int32, nStates),
		Accept:  make([][]int, nStates),
	}
	for i := range d.Trans {
		for j := range d.Trans[i] {
			d.Trans[i][j] = r.i32()
		}
	}
	for i := range d.Accept {
		d.Accept[i] = r.ints()
	}
	return d
}

func (r *reader) instr() opasm.OpInstr {
	var ins opasm.OpInstr
	ins.Op = opasm.OpCode(r.i32())
	ins.Index = int(r.i32())
	ins.Bit = int(r.i32())
	ins.Delta = int(r.i32())
	ins.Cond = ir.ExprRef(r.i32())
	ins.Target = int(r.i32())
	ins.ProcIdx = int(r.i32())
	ins.Code = ir.InvalidCode(r.i32())
	n := r.u32()
	ins.Cases = make([]opasm.MatchJump, n)
	for i := range ins.Cases {
		ins.Cases[i] = opasm.MatchJump{Labels: r.ints(), Target: int(r.i32())}
	}
	ins.DefaultTarget = int(r.i32())
	return ins
}

func (r *reader) proc() VmProc {
	var p VmProc
	p.Label = r.str()
	p.NCounters = int(r.i32())
	p.NBitvectors = int(r.i32())
	p.NUniqueSets = int(r.i32())
	nMatchers := r.u32()
	p.Matchers = make([]*dfa.DFA, nMatchers)
	for i := range p.Matchers {
		p.Matchers[i] = r.dfaVal()
	}
	nCode := r.u32()
	p.Code = make([]opasm.OpInstr, nCode)
	for i := range p.Code {
		p.Code[i] = r.instr()
	}
	return p
}
