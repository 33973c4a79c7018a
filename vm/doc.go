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

// Package vm executes a vmprog.VmProgram against a streaming token
// source, one event at a time, suspending with StatusMore whenever the
// source runs out of bytes and resuming exactly where it left off on
// the next Step call.
//
// The opcode-dispatch loop and the Option-style constructor are both
// carried over from db47h-ngaro's vm.Instance/vm.Instance.Run idiom
// (see the package's prior form: a switch over an opcode enum,
// running to completion or to a suspend point). What does not carry
// over is ngaro's concrete opcode set and stack machine: this VM has
// no data/address stack, no Forth word dictionary and no port I/O, so
// core.go/run.go/opcodes.go/mem.go/io.go's Forth-specific bodies were
// not adaptable line for line (see DESIGN.md for the per-file
// justification). In their place, Machine holds per-call-frame
// counters/bitvectors/uniqueness sets addressed by the small
// index-based instruction set opasm/vmprog produce, and a SPLIT
// expression's lock-step broadcast is implemented with one goroutine
// per child frame synchronized over unbuffered channels — the
// idiomatic Go stand-in for a resumable coroutine, since a plain
// recursive interpreter cannot suspend mid-call-stack without
// unwinding it.
package vm
