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

package opasm

import (
	"fmt"

	"github.com/katef/jvst-go/internal/dfa"
	"github.com/katef/jvst-go/ir"
)

// Assemble lowers prog's frames into an OpProgram.
func Assemble(prog *ir.Program) (*OpProgram, error) {
	out := &OpProgram{
		ProcIndex:    map[string]int{},
		Entry:        prog.Entry,
		IR:           prog,
		FrameProcIdx: map[ir.Ref]int{},
	}

	// Assign every frame a proc index up front so OpCall and
	// FrameProcIdx never need a forward-reference patch list of their
	// own: by the time any frame's body is assembled, every callee's
	// index already exists.
	refs := make([]ir.Ref, 0, len(prog.Frames))
	for label, ref := range prog.Frames {
		idx := len(out.Procs)
		out.ProcIndex[label] = idx
		out.FrameProcIdx[ref] = idx
		out.Procs = append(out.Procs, OpProc{Label: label})
		refs = append(refs, ref)
	}
	// ESplit operands are frames that prog.Frames does not list; each
	// gets a proc too, reachable only through FrameProcIdx.
	for _, e := range prog.Exprs {
		for _, ref := range e.SplitFrames {
			if _, ok := out.FrameProcIdx[ref]; !ok {
				out.FrameProcIdx[ref] = len(out.Procs)
				out.Procs = append(out.Procs, OpProc{Label: prog.At(ref).Label})
				refs = append(refs, ref)
			}
		}
	}

	for _, ref := range refs {
		ap, err := assembleFrame(prog, out, ref)
		if err != nil {
			return nil, err
		}
		out.Procs[out.FrameProcIdx[ref]] = *ap
	}
	return out, nil
}

// asmProc accumulates one frame's instructions while it is being
// built.
type asmProc struct {
	prog *ir.Program
	out  *OpProgram

	proc OpProc

	// loopExit/loopBreaks track, for each currently-open SLoop (keyed
	// by LoopName), the pending SBreak jump sites to patch once the
	// loop's exit address is known. Mirrors db47h-ngaro's
	// parser.label.uses: record the use, patch it once the
	// destination is known.
	loopBreaks map[string][]int
}

func (a *asmProc) emit(i OpInstr) int {
	a.proc.Code = append(a.proc.Code, i)
	return len(a.proc.Code) - 1
}

func (a *asmProc) pc() int { return len(a.proc.Code) }

func assembleFrame(prog *ir.Program, out *OpProgram, ref ir.Ref) (*OpProc, error) {
	frame := prog.At(ref)
	if frame.Kind != ir.SFrame {
		return nil, fmt.Errorf("opasm: frame root is not SFrame (got %v)", frame.Kind)
	}

	a := &asmProc{
		prog:       prog,
		out:        out,
		loopBreaks: map[string][]int{},
	}
	a.proc.Label = frame.Label
	a.proc.NCounters = frame.NCounters
	a.proc.NBitvectors = frame.NBitvectors
	a.proc.NUniqueSets = frame.NUniqueSets
	a.proc.Matchers = make([]*dfa.DFA, frame.NMatchers)

	if err := a.emitChildren(frame.Children); err != nil {
		return nil, err
	}
	// Falling off the end of a frame's code means it accepted its
	// input; see OpValid's doc comment.
	a.emit(OpInstr{Op: OpValid})
	return &a.proc, nil
}

func (a *asmProc) emitChildren(children []ir.Ref) error {
	for _, c := range children {
		if err := a.emitStmt(c); err != nil {
			return err
		}
	}
	return nil
}

// emitStmt appends r's compiled form to the proc under construction.
// Every Stmt kind either falls through to the next instruction when
// it succeeds (SSeq members, SCounter/SMatcher/SBitvector/SUniqueDecl
// declarations, SToken, SIncr/SDecr, SBSet/SBClear, SCall, SNop,
// SValid, SUniqueMark) or transfers control explicitly (SIf, SLoop,
// SBreak, SMatch, SUniqueTest); SInvalid always stops the proc.
func (a *asmProc) emitStmt(r ir.Ref) error {
	if r == ir.NoRef {
		return nil
	}
	s := a.prog.At(r)
	switch s.Kind {
	case ir.SNop:
		a.emit(OpInstr{Op: OpNop})

	case ir.SValid:
		// A leaf pass: either more code follows in the enclosing
		// SSeq/SLoop (ordinary fallthrough) or this was the frame's
		// last statement, in which case it's redundant with the
		// implicit trailing OpValid assembleFrame appends. Either
		// way a no-op is correct.
		a.emit(OpInstr{Op: OpNop})

	case ir.SInvalid:
		a.emit(OpInstr{Op: OpInvalid, Code: s.Code})

	case ir.SSeq:
		return a.emitChildren(s.Children)

	case ir.SFrame:
		// Only reached if a frame is nested directly as a statement,
		// which ir.Translate never does (split/call targets are
		// always separate top-level frames); guard against it rather
		// than silently mis-assembling.
		return fmt.Errorf("opasm: unexpected nested SFrame %q", s.Label)

	case ir.SIf:
		return a.emitIf(s.Cond, s.Then, s.Else)

	case ir.SLoop:
		return a.emitLoop(s.LoopName, s.Children)

	case ir.SBreak:
		pc := a.emit(OpInstr{Op: OpJump, Target: -1})
		a.loopBreaks[s.LoopName] = append(a.loopBreaks[s.LoopName], pc)

	case ir.SToken:
		a.emit(OpInstr{Op: OpToken})

	case ir.SCounter, ir.SBitvector, ir.SUniqueDecl:
		// Pure declarations: ir.Translate already assigned Index
		// within the frame's counters/bitvectors/unique-sets space
		// (recorded on OpProc via NCounters/NBitvectors/NUniqueSets);
		// nothing to emit.

	case ir.SMatcher:
		a.proc.Matchers[s.Index] = s.MatcherDFA

	case ir.SBSet:
		a.emit(OpInstr{Op: OpBSet, Index: s.Index, Bit: s.BitIndex})
	case ir.SBClear:
		a.emit(OpInstr{Op: OpBClear, Index: s.Index, Bit: s.BitIndex})

	case ir.SIncr:
		a.emit(OpInstr{Op: OpIncr, Index: s.Index, Delta: s.Delta})
	case ir.SDecr:
		a.emit(OpInstr{Op: OpIncr, Index: s.Index, Delta: -s.Delta})

	case ir.SCall:
		procIdx, ok := a.out.ProcIndex[s.Callee]
		if !ok {
			return fmt.Errorf("opasm: call to unknown frame %q", s.Callee)
		}
		a.emit(OpInstr{Op: OpCall, ProcIdx: procIdx})

	case ir.SMatch:
		return a.emitMatch(s)

	case ir.SUniqueTest:
		return a.emitUniqueTest(s.Index, s.Then, s.Else)

	case ir.SUniqueMark:
		a.emit(OpInstr{Op: OpUniqueMark, Index: s.Index})

	default:
		return fmt.Errorf("opasm: unhandled statement kind %v", s.Kind)
	}
	return nil
}

// emitIf compiles "if cond then Then else Else", both arms falling
// through to whatever comes after the SIf in the enclosing sequence.
func (a *asmProc) emitIf(cond ir.ExprRef, thenRef, elseRef ir.Ref) error {
	branchPC := a.emit(OpInstr{Op: OpBranch, Cond: cond, Target: -1})
	if err := a.emitStmt(thenRef); err != nil {
		return err
	}
	jumpPC := a.emit(OpInstr{Op: OpJump, Target: -1})
	a.proc.Code[branchPC].Target = a.pc()
	if err := a.emitStmt(elseRef); err != nil {
		return err
	}
	a.proc.Code[jumpPC].Target = a.pc()
	return nil
}

// emitUniqueTest compiles like emitIf, but the branch condition is the
// VM's own dedup-set test rather than an ir.Expr.
func (a *asmProc) emitUniqueTest(index int, thenRef, elseRef ir.Ref) error {
	testPC := a.emit(OpInstr{Op: OpUniqueTest, Index: index, Target: -1})
	if err := a.emitStmt(thenRef); err != nil {
		return err
	}
	jumpPC := a.emit(OpInstr{Op: OpJump, Target: -1})
	a.proc.Code[testPC].Target = a.pc()
	if err := a.emitStmt(elseRef); err != nil {
		return err
	}
	a.proc.Code[jumpPC].Target = a.pc()
	return nil
}

// emitLoop compiles a loop body once, appends the back edge, then
// resolves every SBreak recorded for this loop name to the address
// right after that back edge (the loop's exit).
func (a *asmProc) emitLoop(name string, children []ir.Ref) error {
	start := a.pc()
	if err := a.emitChildren(children); err != nil {
		return err
	}
	a.emit(OpInstr{Op: OpJump, Target: start})
	exit := a.pc()
	for _, pc := range a.loopBreaks[name] {
		a.proc.Code[pc].Target = exit
	}
	delete(a.loopBreaks, name)
	return nil
}

// emitMatch compiles an SMatch the way a switch statement usually
// compiles: each case's body as its own block, an unconditional jump
// past the whole statement at the end of every block, and the
// dispatch table's targets patched once every block's start address
// is known.
func (a *asmProc) emitMatch(s *ir.Stmt) error {
	matchPC := a.emit(OpInstr{Op: OpMatch, Index: s.Index})
	var exitJumps []int
	cases := make([]MatchJump, len(s.Cases))
	for i, c := range s.Cases {
		cases[i] = MatchJump{Labels: c.Labels, Target: a.pc()}
		if err := a.emitStmt(c.Stmt); err != nil {
			return err
		}
		exitJumps = append(exitJumps, a.emit(OpInstr{Op: OpJump, Target: -1}))
	}
	defaultTarget := a.pc()
	if err := a.emitStmt(s.Default); err != nil {
		return err
	}
	exitJumps = append(exitJumps, a.emit(OpInstr{Op: OpJump, Target: -1}))

	exit := a.pc()
	for _, pc := range exitJumps {
		a.proc.Code[pc].Target = exit
	}
	a.proc.Code[matchPC].Cases = cases
	a.proc.Code[matchPC].DefaultTarget = defaultTarget
	return nil
}

