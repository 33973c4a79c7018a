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
	"reflect"
	"testing"

	"github.com/katef/jvst-go/ir"
	"github.com/katef/jvst-go/opasm"
)

// TestOptimize_RemovesNopAndRetargets builds the same if/valid/invalid
// frame TestAssemble_ifValidInvalid does (a Then arm of bare SValid,
// which Assemble always compiles to a standalone OpNop), then checks
// that Optimize drops the OpNop and that every jump/branch still lands
// on the instruction it originally pointed at, now at its shifted
// index.
func TestOptimize_RemovesNopAndRetargets(t *testing.T) {
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
	proc := out.Procs[0]

	sawNop := false
	for _, instr := range proc.Code {
		if instr.Op == opasm.OpNop {
			sawNop = true
		}
	}
	if !sawNop {
		t.Fatalf("expected assembled code to contain an OpNop before optimizing, got %+v", proc.Code)
	}
	before := len(proc.Code)

	out = opasm.Optimize(out)
	proc = out.Procs[0]

	for i, instr := range proc.Code {
		if instr.Op == opasm.OpNop {
			t.Fatalf("instruction %d is still an OpNop after Optimize: %+v", i, proc.Code)
		}
	}
	if len(proc.Code) != before-1 {
		t.Fatalf("expected optimize to remove exactly 1 instruction, got %d -> %d", before, len(proc.Code))
	}

	var branch, jump *opasm.OpInstr
	for i := range proc.Code {
		switch proc.Code[i].Op {
		case opasm.OpBranch:
			branch = &proc.Code[i]
		case opasm.OpJump:
			jump = &proc.Code[i]
		}
	}
	if branch == nil || jump == nil {
		t.Fatalf("expected both a branch and a jump to survive, got %+v", proc.Code)
	}
	if proc.Code[branch.Target].Op != opasm.OpInvalid {
		t.Fatalf("branch target %d is %v, want OpInvalid", branch.Target, proc.Code[branch.Target].Op)
	}
	if proc.Code[jump.Target].Op != opasm.OpValid {
		t.Fatalf("jump target %d is %v, want OpValid", jump.Target, proc.Code[jump.Target].Op)
	}
}

// TestOptimize_NoNopsIsNoop checks that a frame with nothing to strip
// is left byte-for-byte unchanged (exercises the "kept == len(old)"
// fast path).
func TestOptimize_NoNopsIsNoop(t *testing.T) {
	p := buildProgram(func(p *ir.Program) ir.Ref {
		return p.Alloc(ir.Stmt{Kind: ir.SFrame, Children: []ir.Ref{
			p.Alloc(ir.Stmt{Kind: ir.SInvalid, Code: ir.InvalidUnexpectedToken}),
		}})
	})

	out, err := opasm.Assemble(p)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	before := append([]opasm.OpInstr(nil), out.Procs[0].Code...)

	out = opasm.Optimize(out)
	if len(out.Procs[0].Code) != len(before) {
		t.Fatalf("expected no change, got %+v, want %+v", out.Procs[0].Code, before)
	}
	for i, instr := range out.Procs[0].Code {
		if !reflect.DeepEqual(instr, before[i]) {
			t.Fatalf("instruction %d changed: got %+v, want %+v", i, instr, before[i])
		}
	}
}
