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

// Package idtbl provides the id/string interning tables shared by the
// compiler passes: a byte arena for interned strings (schema ids,
// property names, JSON-pointer locations) and a table mapping those
// interned ids to frame indices once the IR has been assembled.
//
// Every pass that needs to refer to "the tree rooted at this $id" or "the
// frame compiled from this $ref target" does so through a Label, never
// through a raw string compare: interning means label equality is a
// single integer comparison and label hashing is over the arena bytes
// exactly once, at intern time.
package idtbl

// Label is an interned identifier: an index into an Arena's table.
type Label int

// NoLabel is the zero value representing "no id".
const NoLabel Label = -1

// Arena interns strings into a single length-prefixed byte buffer and
// hands out small integer Labels for them. Comparing two Labels for
// equality is equivalent to comparing the underlying strings, but O(1).
type Arena struct {
	buf     []byte
	offsets []int // offsets[label] is the start offset of that label's bytes
	lens    []int
	index   map[string]Label
}

// NewArena returns an empty Arena.
func NewArena() *Arena {
	return &Arena{
		index: make(map[string]Label),
	}
}

// Intern returns the Label for s, allocating a new one if s was not seen
// before. The same string always yields the same Label.
func (a *Arena) Intern(s string) Label {
	if lbl, ok := a.index[s]; ok {
		return lbl
	}
	lbl := Label(len(a.offsets))
	a.offsets = append(a.offsets, len(a.buf))
	a.lens = append(a.lens, len(s))
	a.buf = append(a.buf, s...)
	a.index[s] = lbl
	return lbl
}

// Lookup returns the Label for s and whether it was already interned,
// without interning it.
func (a *Arena) Lookup(s string) (Label, bool) {
	lbl, ok := a.index[s]
	return lbl, ok
}

// String returns the string a Label was interned from.
func (a *Arena) String(l Label) string {
	if l < 0 || int(l) >= len(a.offsets) {
		return ""
	}
	off, n := a.offsets[l], a.lens[l]
	return string(a.buf[off : off+n])
}

// Len returns the number of distinct interned labels.
func (a *Arena) Len() int {
	return len(a.offsets)
}

// FrameTable maps Labels (schema ids / JSON-pointer locations) to the
// frame index that implements them once the IR program has been built.
// It is the Go analogue of the forest's all_ids/ref_ids tables after
// ir-translate assigns frame indices: every translated CNode forest
// becomes an IR program with one FRAME per forest tree.
type FrameTable struct {
	Arena *Arena
	frame map[Label]int
	// Refd records which labels were observed as $ref targets; only
	// those trees must survive canonification as callable frames.
	Refd map[Label]bool
}

// NewFrameTable returns an empty FrameTable backed by the given Arena.
func NewFrameTable(a *Arena) *FrameTable {
	return &FrameTable{
		Arena: a,
		frame: make(map[Label]int),
		Refd:  make(map[Label]bool),
	}
}

// Bind records that label l is implemented by frame index idx.
func (t *FrameTable) Bind(l Label, idx int) {
	t.frame[l] = idx
}

// Frame returns the frame index bound to label l, or (-1, false) if none.
func (t *FrameTable) Frame(l Label) (int, bool) {
	idx, ok := t.frame[l]
	return idx, ok
}

// MarkRef records that label l is the target of a $ref somewhere in the
// schema.
func (t *FrameTable) MarkRef(l Label) {
	t.Refd[l] = true
}

// IsRef reports whether label l was ever the target of a $ref.
func (t *FrameTable) IsRef(l Label) bool {
	return t.Refd[l]
}
