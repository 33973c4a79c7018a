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

// Optimize strips OpNop instructions out of every proc. Assemble emits
// one for every ir.SNop and ir.SValid statement reached mid-frame (a
// leaf that falls through to whatever follows it in its enclosing
// SSeq/SLoop, or to the implicit trailing OpValid at the end of a
// frame) purely to give that statement a program counter to fall
// through from; once assembly has finished and every jump/branch/
// match/unique-test target is a concrete index, the placeholder no
// longer does anything a plain fallthrough to the next surviving
// instruction wouldn't. Optimize removes them and retargets every
// control-transfer instruction accordingly. It mutates p's procs in
// place and also returns p for convenience chaining.
func Optimize(p *OpProgram) *OpProgram {
	for i := range p.Procs {
		optimizeProc(&p.Procs[i])
	}
	return p
}

func optimizeProc(proc *OpProc) {
	old := proc.Code

	// newPC[i] is the post-removal pc that position i in old falls
	// through to: the count of kept (non-nop) instructions strictly
	// before i. A jump/branch/match/unique-test target that pointed at
	// a since-removed OpNop lands here on exactly the instruction that
	// nop would have fallen through to, which is the correct
	// retargeted destination either way. newPC[len(old)] is the
	// sentinel for "falls off the end of the proc", used by targets
	// that pointed one past the last instruction.
	newPC := make([]int, len(old)+1)
	kept := 0
	for i, ins := range old {
		newPC[i] = kept
		if ins.Op != OpNop {
			kept++
		}
	}
	newPC[len(old)] = kept

	if kept == len(old) {
		return // nothing to remove
	}

	code := make([]OpInstr, 0, kept)
	for _, ins := range old {
		if ins.Op == OpNop {
			continue
		}
		retarget(&ins, newPC)
		code = append(code, ins)
	}
	proc.Code = code
}

// retarget rewrites every pc-valued field of ins in place using newPC.
func retarget(ins *OpInstr, newPC []int) {
	switch ins.Op {
	case OpJump, OpBranch, OpUniqueTest:
		ins.Target = newPC[ins.Target]
	case OpMatch:
		ins.DefaultTarget = newPC[ins.DefaultTarget]
		for i := range ins.Cases {
			ins.Cases[i].Target = newPC[ins.Cases[i].Target]
		}
	}
}
