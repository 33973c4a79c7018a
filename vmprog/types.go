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

// Package vmprog packs an opasm.OpProgram into a VmProgram: a
// self-contained value that owns every slice it needs (expressions,
// matcher automatons, frame labels) instead of holding a live pointer
// back into the ir package's translator state, and that can be
// written to and read from a binary image the way db47h-ngaro's
// vm.Image is (see image.go's Load/Save: a small header followed by
// binary.Write/Read over plain slices).
package vmprog

import (
	"github.com/katef/jvst-go/internal/dfa"
	"github.com/katef/jvst-go/ir"
	"github.com/katef/jvst-go/opasm"
)

// VmProgram is a compiled schema ready to run: every proc's code, the
// expression arena its OpBranch/OpUniqueTest conditions index into,
// and the label each ESplit/OpCall target resolves to a proc by.
type VmProgram struct {
	Entry     string
	ProcIndex map[string]int
	Procs     []VmProc

	// Exprs is ir.Program.Exprs copied verbatim: conditions are still
	// evaluated by walking this tree at run time rather than through
	// a second compiled form (see opasm's "expressions stay
	// tree-shaped" design note, which applies here too).
	Exprs []ir.Expr

	// FrameProc maps an ESplit operand's ir.Ref (an SFrame statement)
	// to the proc it was assembled into. Copied from
	// opasm.OpProgram.FrameProcIdx so VmProgram never needs to walk
	// ir.Program.Stmts at run time.
	FrameProc map[ir.Ref]int
}

// VmProc is one assembled, packed frame.
type VmProc struct {
	Label string

	NCounters   int
	NBitvectors int
	NUniqueSets int

	Matchers []*dfa.DFA
	Code     []opasm.OpInstr
}
