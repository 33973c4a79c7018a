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
	"github.com/katef/jvst-go/internal/dfa"
	"github.com/katef/jvst-go/ir"
	"github.com/katef/jvst-go/opasm"
)

// Encode packs op into a self-contained VmProgram.
func Encode(op *opasm.OpProgram) *VmProgram {
	out := &VmProgram{
		Entry:     op.Entry,
		ProcIndex: make(map[string]int, len(op.ProcIndex)),
		Procs:     make([]VmProc, len(op.Procs)),
		Exprs:     append([]ir.Expr(nil), op.IR.Exprs...),
		FrameProc: make(map[ir.Ref]int, len(op.FrameProcIdx)),
	}
	for k, v := range op.ProcIndex {
		out.ProcIndex[k] = v
	}
	for k, v := range op.FrameProcIdx {
		out.FrameProc[k] = v
	}
	for i, p := range op.Procs {
		out.Procs[i] = VmProc{
			Label:       p.Label,
			NCounters:   p.NCounters,
			NBitvectors: p.NBitvectors,
			NUniqueSets: p.NUniqueSets,
			Matchers:    append([]*dfa.DFA(nil), p.Matchers...),
			Code:        append([]opasm.OpInstr(nil), p.Code...),
		}
	}
	return out
}
