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

// Package opasm assembles a tree-shaped ir.Program into a linear
// OpProgram: one flat instruction slice per frame, with every SIf/
// SLoop/SBreak/SMatch control edge resolved to a concrete program
// counter. There is no separate "linear IR blocks" stage in between;
// Assemble walks the ir.Program tree once, emitting instructions and
// patching forward-jump targets as their destinations become known,
// the same label-patching idiom db47h-ngaro's asm.Parser uses to
// resolve forward label references in one pass (see parser.go's
// makeLabelRef/the "write labels" loop at the end of Parse): write a
// placeholder, remember where it was written, fix it up once the
// address it refers to exists.
//
// Conditions and the SPLIT frame-count test stay exactly as
// ir.Expr trees rather than being compiled into their own bytecode;
// an OpBranch just carries the ir.ExprRef it tests, and the VM
// evaluates it by walking the same expression arena the compiler
// produced. This avoids inventing a second expression-bytecode
// language for a handful of arithmetic/comparison nodes that are
// cheap to interpret directly.
package opasm

import (
	"github.com/katef/jvst-go/internal/dfa"
	"github.com/katef/jvst-go/ir"
)

// OpCode names one assembled instruction.
type OpCode int

const (
	OpNop OpCode = iota

	// OpValid and OpInvalid both stop the current proc immediately;
	// OpValid is also appended implicitly after the last instruction
	// of every proc, so falling off the end of a frame's code means
	// the frame accepted its input.
	OpValid
	OpInvalid

	// OpToken asks the token source (or, inside a split/call child
	// proc, the broadcast) for the next token.
	OpToken

	// OpJump is an unconditional jump to Target.
	OpJump

	// OpBranch evaluates Cond; false jumps to Target, true falls
	// through to the next instruction.
	OpBranch

	// OpCall invokes the proc at ProcIdx. If it returns invalid, the
	// calling proc also stops immediately and returns invalid; if
	// valid, execution falls through to the next instruction.
	OpCall

	// OpIncr adds Delta (may be negative, covering SDecr) to the
	// counter at Index.
	OpIncr

	OpBSet
	OpBClear

	// OpMatch runs the matcher at Index against the current token and
	// dispatches via Cases/DefaultTarget; see MatchJump.
	OpMatch

	// OpUniqueTest records the current value's canonical encoding
	// against the dedup set at Index; Target is taken if the value
	// was already present (a duplicate), otherwise execution falls
	// through.
	OpUniqueTest

	// OpUniqueMark seeds dedup set Index's per-item recording buffer
	// with the current token and starts teeing subsequent token
	// fetches into it. Always paired with a later OpUniqueTest at the
	// same Index. See ir.SUniqueMark.
	OpUniqueMark
)

// MatchJump is one OpMatch arm: the matcher labels it fires for, and
// the instruction to jump to.
type MatchJump struct {
	Labels []int
	Target int
}

// OpInstr is one assembled instruction. Meaningful fields depend on Op.
type OpInstr struct {
	Op OpCode

	Index int // SCounter/SBitvector/SMatcher/SUniqueDecl index, reused
	Bit   int // OpBSet, OpBClear
	Delta int // OpIncr

	Cond   ir.ExprRef // OpBranch
	Target int        // OpJump, OpBranch (else), OpUniqueTest (duplicate)

	ProcIdx int // OpCall

	Code ir.InvalidCode // OpInvalid

	Cases         []MatchJump // OpMatch
	DefaultTarget int         // OpMatch
}

// OpProc is one assembled frame: a document root, a $ref target that
// turned out to need its own callable proc (see ir.Translate's
// inlining vs. SCall decision), or one branch frame of an ESplit.
type OpProc struct {
	Label string

	NCounters   int
	NBitvectors int
	NUniqueSets int

	// Matchers holds the compiled automaton for each SMatcher
	// declaration, indexed the same way the declaration's Index is.
	Matchers []*dfa.DFA

	Code []OpInstr
}

// OpProgram is every proc assembled from one ir.Program, ready for
// vmprog.Encode to pack into a binary image or for vm.Machine to run
// directly.
type OpProgram struct {
	Procs     []OpProc
	ProcIndex map[string]int
	Entry     string

	// IR is the source program the instructions' Cond/ESplit
	// expressions still reference; expressions are not recompiled
	// into OpInstr form (see the package doc comment).
	IR *ir.Program

	// FrameProcIdx maps an ESplit operand's ir.Ref (always an SFrame
	// statement) to the OpProc it was assembled into, so the VM can
	// resolve a split branch or $ref target without searching IR by
	// label at run time.
	FrameProcIdx map[ir.Ref]int
}
