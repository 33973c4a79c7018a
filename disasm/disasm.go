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

// Package disasm prints a compiled vmprog.VmProgram as human-readable
// text, one mnemonic line per opasm.OpInstr. It is grounded on the
// teacher's own asm.Disassemble (asm/asm.go), which walks a flat
// []vm.Cell image and writes one opcode's mnemonic plus its argument
// per call; this package does the same over []opasm.OpInstr, proc by
// proc, since a VmProgram's instructions already carry a decoded
// opcode and operands rather than a raw cell stream to re-parse.
package disasm

import (
	"fmt"
	"io"
	"strings"

	"github.com/katef/jvst-go/opasm"
	"github.com/katef/jvst-go/vmprog"
)

var opNames = map[opasm.OpCode]string{
	opasm.OpNop:         "nop",
	opasm.OpValid:       "valid",
	opasm.OpInvalid:     "invalid",
	opasm.OpToken:       "token",
	opasm.OpJump:        "jump",
	opasm.OpBranch:      "branch",
	opasm.OpCall:        "call",
	opasm.OpIncr:        "incr",
	opasm.OpBSet:        "bset",
	opasm.OpBClear:      "bclear",
	opasm.OpMatch:       "match",
	opasm.OpUniqueTest:  "unique.test",
	opasm.OpUniqueMark:  "unique.mark",
}

// Fprint writes p's procs to w, one instruction per line, in program
// order. Every OpCall/OpJump/OpBranch target is printed both as a raw
// index and, for OpCall, resolved to the callee's label, so a reader
// need not cross-reference VmProgram.ProcIndex by hand.
func Fprint(w io.Writer, p *vmprog.VmProgram) error {
	procLabel := make(map[int]string, len(p.Procs))
	for i, proc := range p.Procs {
		procLabel[i] = proc.Label
	}

	for i, proc := range p.Procs {
		entry := ""
		if proc.Label == p.Entry {
			entry = " (entry)"
		}
		if _, err := fmt.Fprintf(w, "proc %d: %s%s  counters=%d bitvectors=%d uniquesets=%d matchers=%d\n",
			i, proc.Label, entry, proc.NCounters, proc.NBitvectors, proc.NUniqueSets, len(proc.Matchers)); err != nil {
			return err
		}
		for pc, ins := range proc.Code {
			if _, err := fmt.Fprintf(w, "  %4d  %s\n", pc, formatInstr(ins, procLabel)); err != nil {
				return err
			}
		}
	}
	return nil
}

func formatInstr(ins opasm.OpInstr, procLabel map[int]string) string {
	name, ok := opNames[ins.Op]
	if !ok {
		name = fmt.Sprintf("op(%d)", int(ins.Op))
	}

	switch ins.Op {
	case opasm.OpJump:
		return fmt.Sprintf("%s %d", name, ins.Target)
	case opasm.OpBranch:
		return fmt.Sprintf("%s cond=%%%d else=%d", name, int(ins.Cond), ins.Target)
	case opasm.OpCall:
		return fmt.Sprintf("%s %s (proc %d)", name, procLabel[ins.ProcIdx], ins.ProcIdx)
	case opasm.OpIncr:
		return fmt.Sprintf("%s counter=%d delta=%+d", name, ins.Index, ins.Delta)
	case opasm.OpBSet, opasm.OpBClear:
		return fmt.Sprintf("%s bitvector=%d bit=%d", name, ins.Index, ins.Bit)
	case opasm.OpMatch:
		return fmt.Sprintf("%s matcher=%d %s default=%d", name, ins.Index, formatCases(ins.Cases), ins.DefaultTarget)
	case opasm.OpUniqueTest:
		return fmt.Sprintf("%s set=%d dup=%d", name, ins.Index, ins.Target)
	case opasm.OpUniqueMark:
		return fmt.Sprintf("%s set=%d", name, ins.Index)
	case opasm.OpInvalid:
		return fmt.Sprintf("%s code=%s", name, ins.Code)
	default:
		return name
	}
}

func formatCases(cases []opasm.MatchJump) string {
	parts := make([]string, len(cases))
	for i, c := range cases {
		parts[i] = fmt.Sprintf("%v->%d", c.Labels, c.Target)
	}
	return strings.Join(parts, " ")
}
