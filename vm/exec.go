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

package vm

import (
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/katef/jvst-go/internal/dfa"
	"github.com/katef/jvst-go/ir"
	"github.com/katef/jvst-go/opasm"
	"github.com/katef/jvst-go/vmprog"
)

// runProc runs one assembled proc to completion against it, the way
// db47h-ngaro's Run walks a flat instruction slice with an explicit
// pc instead of a recursive tree-walker. A fresh activation backs
// every call, including every OpCall invocation of this same
// function, so counters/bitvectors/uniqueness-sets never leak across
// a call boundary while it (the token feed, current-token register,
// and any SUniqueMark recorders) is shared across them.
func runProc(m *Machine, proc *vmprog.VmProc, it *interp) (bool, Code, error) {
	act := newActivation(proc.NCounters, proc.NBitvectors, proc.NUniqueSets, it.salt)
	ec := &evalCtx{m: m, it: it, act: act}

	pc := 0
	for {
		if pc < 0 || pc >= len(proc.Code) {
			return false, 0, fmt.Errorf("vm: pc %d out of range in proc %q", pc, proc.Label)
		}
		ins := &proc.Code[pc]
		switch ins.Op {
		case opasm.OpNop:
			pc++

		case opasm.OpValid:
			return true, 0, nil

		case opasm.OpInvalid:
			return false, ins.Code, nil

		case opasm.OpToken:
			if _, err := it.nextToken(); err != nil {
				return false, 0, err
			}
			pc++

		case opasm.OpJump:
			pc = ins.Target

		case opasm.OpBranch:
			ok, err := ec.evalBool(ins.Cond)
			if err != nil {
				return false, 0, err
			}
			if ok {
				pc++
			} else {
				pc = ins.Target
			}

		case opasm.OpCall:
			valid, code, err := runProc(m, &m.prog.Procs[ins.ProcIdx], it)
			if err != nil {
				return false, 0, err
			}
			if !valid {
				return false, code, nil
			}
			pc++

		case opasm.OpIncr:
			act.counters[ins.Index] += ins.Delta
			pc++

		case opasm.OpBSet:
			act.bitvectors[ins.Index].set(ins.Bit)
			pc++

		case opasm.OpBClear:
			act.bitvectors[ins.Index].clear(ins.Bit)
			pc++

		case opasm.OpMatch:
			target := matchTarget(proc.Matchers[ins.Index], it.cur.Str, ins.Cases, ins.DefaultTarget)
			pc = target

		case opasm.OpUniqueTest:
			rec := it.popRecorder()
			if act.uniqueSets[ins.Index].testAndAdd(rec.finalize()) {
				pc = ins.Target
			} else {
				pc++
			}

		case opasm.OpUniqueMark:
			it.pushRecorder(it.cur)
			pc++

		default:
			return false, 0, fmt.Errorf("vm: unhandled opcode %v in proc %q", ins.Op, proc.Label)
		}
	}
}

// matchTarget runs matcher over s and returns the first case whose
// labels intersect the accepting labels at the automaton's final
// state, or defaultTarget if none do.
func matchTarget(matcher *dfa.DFA, s string, cases []opasm.MatchJump, defaultTarget int) int {
	var state int32
	for i := 0; i < len(s); i++ {
		state = matcher.Step(state, s[i])
	}
	labels := matcher.Labels(state)
	for _, c := range cases {
		if hasCommon(c.Labels, labels) {
			return c.Target
		}
	}
	return defaultTarget
}

func hasCommon(a, b []int) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}

// evalCtx carries the state an ir.Expr tree is evaluated against:
// the current activation's counters/bitvectors and the call chain's
// current token.
type evalCtx struct {
	m   *Machine
	it  *interp
	act *activation
}

func (ec *evalCtx) expr(r ir.ExprRef) *ir.Expr { return &ec.m.prog.Exprs[r] }

// evalBool evaluates every ExprKind that can stand as an OpBranch
// condition or a boolean combinator operand.
func (ec *evalCtx) evalBool(r ir.ExprRef) (bool, error) {
	e := ec.expr(r)
	switch e.Kind {
	case ir.EBool:
		return e.Bool, nil

	case ir.ETokType, ir.EIsTok:
		return ec.it.cur.Kind == e.TokKind, nil

	case ir.ETokComplete:
		return !ec.it.cur.Partial, nil

	case ir.EBTest:
		return ec.act.bitvectors[e.BitvecIndex].test(e.BitIndex), nil

	case ir.EIsInt:
		v, err := ec.evalNum(e.Arg)
		if err != nil {
			return false, err
		}
		return v == math.Trunc(v), nil

	case ir.EAnd:
		l, err := ec.evalBool(e.Left)
		if err != nil || !l {
			return false, err
		}
		return ec.evalBool(e.Right)

	case ir.EOr:
		l, err := ec.evalBool(e.Left)
		if err != nil || l {
			return l, err
		}
		return ec.evalBool(e.Right)

	case ir.ENot:
		v, err := ec.evalBool(e.Arg)
		return !v, err

	case ir.EMultipleOf:
		v, err := ec.evalNum(e.Arg)
		if err != nil {
			return false, err
		}
		return isMultipleOf(v, e.MultipleOf), nil

	case ir.ENe, ir.ELt, ir.ELe, ir.EEq, ir.EGe, ir.EGt:
		l, err := ec.evalNum(e.Left)
		if err != nil {
			return false, err
		}
		rhs, err := ec.evalNum(e.Right)
		if err != nil {
			return false, err
		}
		switch e.Kind {
		case ir.ENe:
			return l != rhs, nil
		case ir.ELt:
			return l < rhs, nil
		case ir.ELe:
			return l <= rhs, nil
		case ir.EEq:
			return l == rhs, nil
		case ir.EGe:
			return l >= rhs, nil
		case ir.EGt:
			return l > rhs, nil
		}
	}
	return false, fmt.Errorf("vm: expression kind %v is not boolean-valued", e.Kind)
}

// evalNum evaluates every ExprKind that yields a number, including
// ESplit, whose value is the count of child frames that returned
// valid.
func (ec *evalCtx) evalNum(r ir.ExprRef) (float64, error) {
	e := ec.expr(r)
	switch e.Kind {
	case ir.ENum:
		return e.Num, nil
	case ir.ESize:
		return float64(e.Size), nil
	case ir.ETokNum:
		return ec.it.cur.Num, nil
	case ir.ETokLen:
		return float64(utf8.RuneCountInString(ec.it.cur.Str)), nil
	case ir.ECount:
		return float64(ec.act.counters[e.CounterIndex]), nil
	case ir.ESplit:
		return evalSplit(ec.m, ec.it, e)
	}
	return 0, fmt.Errorf("vm: expression kind %v is not numeric-valued", e.Kind)
}

// isMultipleOf reports whether v is an integer multiple of step,
// tolerating the same floating-point slop JSON-Schema's own reference
// suite expects for numbers like 0.0075 / 0.0001 that cannot be
// represented exactly in binary.
func isMultipleOf(v, step float64) bool {
	if step == 0 {
		return false
	}
	q := v / step
	return math.Abs(q-math.Round(q)) < 1e-9
}
