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

package vm_test

import (
	"testing"

	"github.com/katef/jvst-go/ir"
	"github.com/katef/jvst-go/opasm"
	"github.com/katef/jvst-go/vm"
	"github.com/katef/jvst-go/vmprog"
)

// fakeSource is a TokenSource stand-in for tests: it holds a
// pre-built event list and releases one more of them per non-empty
// Feed call, so a test can drive a Machine one token at a time
// without going through a real streaming JSON tokenizer.
type fakeSource struct {
	events   []vm.Event
	pos      int
	unlocked int
}

func (f *fakeSource) Feed(b []byte) {
	if len(b) > 0 {
		f.unlocked++
	}
}

func (f *fakeSource) Next(ev *vm.Event) (vm.Status, error) {
	if f.pos >= f.unlocked || f.pos >= len(f.events) {
		return vm.StatusMore, nil
	}
	*ev = f.events[f.pos]
	f.pos++
	return vm.StatusValid, nil
}

// assembleProgram runs a hand-built ir.Program through opasm.Assemble
// and vmprog.Encode, the same "bypass cnode/ir.Translate to exercise
// one stage in isolation" style opasm's own tests use.
func assembleProgram(t *testing.T, p *ir.Program) *vmprog.VmProgram {
	t.Helper()
	op, err := opasm.Assemble(p)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	return vmprog.Encode(op)
}

// run drives m with one event per Step call until it reaches a final
// Status, feeding one dummy byte each time to unlock fakeSource's next
// queued event.
func run(t *testing.T, m *vm.Machine, nEvents int) (vm.Status, vm.Code, error) {
	t.Helper()
	var st vm.Status
	var code vm.Code
	var err error
	for i := 0; i < nEvents+1; i++ {
		st, code, err = m.Step([]byte{1})
		if st != vm.StatusMore {
			return st, code, err
		}
	}
	return st, code, err
}

func TestMachine_ScalarTypeCheck(t *testing.T) {
	cases := []struct {
		name string
		ev   vm.Event
		want vm.Status
	}{
		{"number", vm.Event{Kind: ir.TokNumber, Num: 42}, vm.StatusValid},
		{"string", vm.Event{Kind: ir.TokString, Str: "x"}, vm.StatusInvalid},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			p := ir.NewProgram()
			tok := p.Alloc(ir.Stmt{Kind: ir.SToken})
			cond := p.AllocExpr(ir.Expr{Kind: ir.EIsTok, TokKind: ir.TokNumber})
			then := p.Alloc(ir.Stmt{Kind: ir.SValid})
			els := p.Alloc(ir.Stmt{Kind: ir.SInvalid, Code: ir.InvalidUnexpectedToken})
			iff := p.Alloc(ir.Stmt{Kind: ir.SIf, Cond: cond, Then: then, Else: els})
			root := p.Alloc(ir.Stmt{Kind: ir.SFrame, Label: "#", Children: []ir.Ref{tok, iff}})
			p.Frames["#"] = root
			p.Entry = "#"

			prog := assembleProgram(t, p)
			src := &fakeSource{events: []vm.Event{c.ev}}
			m := vm.New(prog, src, vm.Seed(1))

			st, _, err := run(t, m, 1)
			if err != nil {
				t.Fatalf("Step: %v", err)
			}
			if st != c.want {
				t.Fatalf("got status %v, want %v", st, c.want)
			}
		})
	}
}

// TestMachine_RefCall builds a root frame that SCalls a named
// "target" frame validating NUMBER, exercising OpCall without
// involving SPLIT.
func TestMachine_RefCall(t *testing.T) {
	p := ir.NewProgram()

	calleeTok := p.Alloc(ir.Stmt{Kind: ir.SToken})
	calleeCond := p.AllocExpr(ir.Expr{Kind: ir.EIsTok, TokKind: ir.TokNumber})
	calleeThen := p.Alloc(ir.Stmt{Kind: ir.SValid})
	calleeElse := p.Alloc(ir.Stmt{Kind: ir.SInvalid, Code: ir.InvalidUnexpectedToken})
	calleeIf := p.Alloc(ir.Stmt{Kind: ir.SIf, Cond: calleeCond, Then: calleeThen, Else: calleeElse})
	callee := p.Alloc(ir.Stmt{Kind: ir.SFrame, Label: "target", Children: []ir.Ref{calleeTok, calleeIf}})
	p.Frames["target"] = callee

	call := p.Alloc(ir.Stmt{Kind: ir.SCall, Callee: "target"})
	root := p.Alloc(ir.Stmt{Kind: ir.SFrame, Label: "#", Children: []ir.Ref{call}})
	p.Frames["#"] = root
	p.Entry = "#"

	prog := assembleProgram(t, p)
	src := &fakeSource{events: []vm.Event{{Kind: ir.TokNumber, Num: 7}}}
	m := vm.New(prog, src, vm.Seed(1))

	st, _, err := run(t, m, 1)
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if st != vm.StatusValid {
		t.Fatalf("got status %v, want valid", st)
	}
}

// buildTypeFrame builds a frame fetching its own token and accepting
// only the given TokKind, suitable as one ESplit child.
func buildTypeFrame(p *ir.Program, label string, want ir.TokKind) ir.Ref {
	tok := p.Alloc(ir.Stmt{Kind: ir.SToken})
	cond := p.AllocExpr(ir.Expr{Kind: ir.EIsTok, TokKind: want})
	then := p.Alloc(ir.Stmt{Kind: ir.SValid})
	els := p.Alloc(ir.Stmt{Kind: ir.SInvalid, Code: ir.InvalidUnexpectedToken})
	iff := p.Alloc(ir.Stmt{Kind: ir.SIf, Cond: cond, Then: then, Else: els})
	ref := p.Alloc(ir.Stmt{Kind: ir.SFrame, Label: label, Children: []ir.Ref{tok, iff}})
	p.Frames[label] = ref
	return ref
}

// TestMachine_SplitXor builds oneOf[type:number, type:string] the way
// translateComposite lowers XOR: two SPLIT children each fetching
// their own token, valid iff exactly one of them accepts.
func TestMachine_SplitXor(t *testing.T) {
	cases := []struct {
		name string
		ev   vm.Event
		want vm.Status
	}{
		{"number matches exactly one branch", vm.Event{Kind: ir.TokNumber, Num: 1}, vm.StatusValid},
		{"bool matches neither branch", vm.Event{Kind: ir.TokTrue}, vm.StatusInvalid},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			p := ir.NewProgram()
			numFrame := buildTypeFrame(p, "split$0", ir.TokNumber)
			strFrame := buildTypeFrame(p, "split$1", ir.TokString)

			count := p.AllocExpr(ir.Expr{
				Kind:        ir.ESplit,
				SplitFrames: []ir.Ref{numFrame, strFrame},
				SplitKind:   ir.SplitOne,
			})
			cond := p.AllocExpr(ir.Expr{
				Kind:  ir.EEq,
				Left:  count,
				Right: p.AllocExpr(ir.Expr{Kind: ir.ESize, Size: 1}),
			})
			then := p.Alloc(ir.Stmt{Kind: ir.SValid})
			els := p.Alloc(ir.Stmt{Kind: ir.SInvalid, Code: ir.InvalidSplitCondition})
			iff := p.Alloc(ir.Stmt{Kind: ir.SIf, Cond: cond, Then: then, Else: els})
			root := p.Alloc(ir.Stmt{Kind: ir.SFrame, Label: "#", Children: []ir.Ref{iff}})
			p.Frames["#"] = root
			p.Entry = "#"

			prog := assembleProgram(t, p)
			src := &fakeSource{events: []vm.Event{c.ev}}
			m := vm.New(prog, src, vm.Seed(1))

			st, _, err := run(t, m, 1)
			if err != nil {
				t.Fatalf("Step: %v", err)
			}
			if st != c.want {
				t.Fatalf("got status %v, want %v", st, c.want)
			}
		})
	}
}

// TestMachine_UniqueItems builds a two-element array ([x, y]) guarded
// by a single ARR_UNIQUE dedup set shared across iterations: each
// item is marked at its first (lookahead) token, its value consumed
// as NUMBER, then tested against the set. Exercises SUniqueMark's
// teeing into canonRecorder and OpUniqueTest's branch.
func TestMachine_UniqueItems(t *testing.T) {
	cases := []struct {
		name  string
		items []float64
		want  vm.Status
	}{
		{"distinct", []float64{1, 2}, vm.StatusValid},
		{"duplicate", []float64{5, 5}, vm.StatusInvalid},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			p := ir.NewProgram()

			uniqueIdx := 0
			mark := p.Alloc(ir.Stmt{Kind: ir.SUniqueMark, Index: uniqueIdx})
			valueValid := p.Alloc(ir.Stmt{Kind: ir.SValid})
			uniqTest := p.Alloc(ir.Stmt{
				Kind:  ir.SUniqueTest,
				Index: uniqueIdx,
				Then:  valueValid,
				Else:  p.Alloc(ir.Stmt{Kind: ir.SInvalid, Code: ir.InvalidUnique}),
			})
			itemSeq := p.Alloc(ir.Stmt{Kind: ir.SSeq, Children: []ir.Ref{mark, uniqTest}})

			isEnd := p.AllocExpr(ir.Expr{Kind: ir.EIsTok, TokKind: ir.TokArrayEnd})
			brk := p.Alloc(ir.Stmt{Kind: ir.SBreak, LoopName: "arr"})
			iff := p.Alloc(ir.Stmt{Kind: ir.SIf, Cond: isEnd, Then: brk, Else: itemSeq})
			tok := p.Alloc(ir.Stmt{Kind: ir.SToken})
			body := p.Alloc(ir.Stmt{Kind: ir.SSeq, Children: []ir.Ref{tok, iff}})
			loop := p.Alloc(ir.Stmt{Kind: ir.SLoop, LoopName: "arr", Children: []ir.Ref{body}})
			decl := p.Alloc(ir.Stmt{Kind: ir.SUniqueDecl, Index: uniqueIdx})
			arrTok := p.Alloc(ir.Stmt{Kind: ir.SToken})
			root := p.Alloc(ir.Stmt{
				Kind:        ir.SFrame,
				Label:       "#",
				Children:    []ir.Ref{arrTok, decl, loop},
				NUniqueSets: 1,
			})
			p.Frames["#"] = root
			p.Entry = "#"

			prog := assembleProgram(t, p)
			events := []vm.Event{{Kind: ir.TokArrayBeg}}
			for _, n := range c.items {
				events = append(events, vm.Event{Kind: ir.TokNumber, Num: n})
			}
			events = append(events, vm.Event{Kind: ir.TokArrayEnd})
			src := &fakeSource{events: events}
			m := vm.New(prog, src, vm.Seed(1))

			st, _, err := run(t, m, len(events))
			if err != nil {
				t.Fatalf("Step: %v", err)
			}
			if st != c.want {
				t.Fatalf("got status %v, want %v", st, c.want)
			}
		})
	}
}
