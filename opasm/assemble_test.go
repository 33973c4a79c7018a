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

package opasm_test

import (
	"testing"

	"github.com/katef/jvst-go/ir"
	"github.com/katef/jvst-go/opasm"
)

// buildProgram assembles a Program by hand (bypassing cnode/ir.Translate)
// so opasm can be exercised in isolation.
func buildProgram(build func(p *ir.Program) ir.Ref) *ir.Program {
	p := ir.NewProgram()
	root := build(p)
	rootStmt := p.At(root)
	rootStmt.Label = "#"
	p.Frames["#"] = root
	p.Entry = "#"
	return p
}

func TestAssemble_ifValidInvalid(t *testing.T) {
	p := buildProgram(func(p *ir.Program) ir.Ref {
		cond := p.AllocExpr(ir.Expr{Kind: ir.EBool, Bool: true})
		then := p.Alloc(ir.Stmt{Kind: ir.SValid})
		els := p.Alloc(ir.Stmt{Kind: ir.SInvalid, Code: ir.InvalidUnexpectedToken})
		iff := p.Alloc(ir.Stmt{Kind: ir.SIf, Cond: cond, Then: then, Else: els})
		return p.Alloc(ir.Stmt{Kind: ir.SFrame, Children: []ir.Ref{iff}})
	})

	out, err := opasm.Assemble(p)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if len(out.Procs) != 1 {
		t.Fatalf("expected 1 proc, got %d", len(out.Procs))
	}
	proc := out.Procs[0]

	var sawBranch, sawInvalid, sawTrailingValid bool
	for i, instr := range proc.Code {
		switch instr.Op {
		case opasm.OpBranch:
			sawBranch = true
			if instr.Target <= i {
				t.Errorf("branch target %d does not point forward of %d", instr.Target, i)
			}
		case opasm.OpInvalid:
			sawInvalid = true
			if instr.Code != ir.InvalidUnexpectedToken {
				t.Errorf("unexpected invalid code %v", instr.Code)
			}
		case opasm.OpValid:
			if i == len(proc.Code)-1 {
				sawTrailingValid = true
			}
		}
	}
	if !sawBranch || !sawInvalid || !sawTrailingValid {
		t.Fatalf("missing expected instructions: branch=%v invalid=%v trailingValid=%v", sawBranch, sawInvalid, sawTrailingValid)
	}
}

func TestAssemble_loopBreak(t *testing.T) {
	p := buildProgram(func(p *ir.Program) ir.Ref {
		isEnd := p.AllocExpr(ir.Expr{Kind: ir.EIsTok, TokKind: ir.TokArrayEnd})
		brk := p.Alloc(ir.Stmt{Kind: ir.SBreak, LoopName: "arr"})
		incr := p.Alloc(ir.Stmt{Kind: ir.SIncr, Index: 0, Delta: 1})
		iff := p.Alloc(ir.Stmt{Kind: ir.SIf, Cond: isEnd, Then: brk, Else: incr})
		tok := p.Alloc(ir.Stmt{Kind: ir.SToken})
		body := p.Alloc(ir.Stmt{Kind: ir.SSeq, Children: []ir.Ref{tok, iff}})
		loop := p.Alloc(ir.Stmt{Kind: ir.SLoop, LoopName: "arr", Children: []ir.Ref{body}})
		counter := p.Alloc(ir.Stmt{Kind: ir.SCounter, Index: 0})
		return p.Alloc(ir.Stmt{
			Kind:      ir.SFrame,
			Children:  []ir.Ref{counter, loop},
			NCounters: 1,
		})
	})

	out, err := opasm.Assemble(p)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	proc := out.Procs[0]
	if proc.NCounters != 1 {
		t.Fatalf("expected 1 counter, got %d", proc.NCounters)
	}

	var jumpBackPC, breakPC = -1, -1
	for i, instr := range proc.Code {
		if instr.Op == opasm.OpJump && instr.Target < i {
			jumpBackPC = i
		}
	}
	if jumpBackPC == -1 {
		t.Fatalf("expected a backward jump closing the loop")
	}
	for i, instr := range proc.Code {
		if instr.Op == opasm.OpJump && i != jumpBackPC && instr.Target == jumpBackPC+1 {
			breakPC = i
		}
	}
	if breakPC == -1 {
		t.Fatalf("expected SBreak's jump to target the loop exit (right after the back edge)")
	}
	if proc.Code[len(proc.Code)-1].Op != opasm.OpValid {
		t.Fatalf("expected trailing OpValid, got %v", proc.Code[len(proc.Code)-1].Op)
	}
}

func TestAssemble_call(t *testing.T) {
	p := ir.NewProgram()
	calleeBody := p.Alloc(ir.Stmt{Kind: ir.SValid})
	callee := p.Alloc(ir.Stmt{Kind: ir.SFrame, Label: "target", Children: []ir.Ref{calleeBody}})
	p.Frames["target"] = callee

	call := p.Alloc(ir.Stmt{Kind: ir.SCall, Callee: "target"})
	root := p.Alloc(ir.Stmt{Kind: ir.SFrame, Label: "#", Children: []ir.Ref{call}})
	p.Frames["#"] = root
	p.Entry = "#"

	out, err := opasm.Assemble(p)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	rootIdx := out.ProcIndex["#"]
	targetIdx := out.ProcIndex["target"]

	var found bool
	for _, instr := range out.Procs[rootIdx].Code {
		if instr.Op == opasm.OpCall {
			found = true
			if instr.ProcIdx != targetIdx {
				t.Errorf("expected call to resolve to proc %d, got %d", targetIdx, instr.ProcIdx)
			}
		}
	}
	if !found {
		t.Fatalf("expected an OpCall instruction in the root proc")
	}
}
