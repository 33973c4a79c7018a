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
	"bytes"
	"encoding/binary"
	"math"
	"sort"

	"github.com/katef/jvst-go/ir"
)

// Canonical encoding tags, one per Event.Kind a value can start with.
// Structural (BEG/END) tokens never appear in an encoded buffer
// directly; they only delimit what canonFrame.encode assembles.
const (
	tagNull byte = iota
	tagTrue
	tagFalse
	tagNumber
	tagString
	tagArray
	tagObject
)

func writeLenPrefixed(buf *bytes.Buffer, b []byte) {
	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(len(b)))
	buf.Write(n[:])
	buf.Write(b)
}

func encodeScalar(ev Event) []byte {
	var buf bytes.Buffer
	switch ev.Kind {
	case ir.TokNull:
		buf.WriteByte(tagNull)
	case ir.TokTrue:
		buf.WriteByte(tagTrue)
	case ir.TokFalse:
		buf.WriteByte(tagFalse)
	case ir.TokNumber:
		buf.WriteByte(tagNumber)
		v := ev.Num
		if v == 0 {
			v = 0 // normalize -0 to 0, per the source's canonical-hash rule
		}
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], math.Float64bits(v))
		buf.Write(b[:])
	}
	return buf.Bytes()
}

// canonFrame is one open composite being assembled by a canonRecorder:
// an array's children in arrival order, or an object's (key, value)
// pairs pending a lexicographic sort at close.
type canonFrame struct {
	kind ir.TokKind // TokArrayBeg or TokObjectBeg

	items []byte // array: children concatenated in order, already encoded
	keys  []string
	vals  [][]byte

	haveKey    bool
	pendingKey string
}

func (f *canonFrame) deliver(enc []byte) {
	if f.kind == ir.TokArrayBeg {
		f.items = append(f.items, enc...)
		return
	}
	f.keys = append(f.keys, f.pendingKey)
	f.vals = append(f.vals, enc)
	f.haveKey = false
}

func (f *canonFrame) encode() []byte {
	var buf bytes.Buffer
	if f.kind == ir.TokArrayBeg {
		buf.WriteByte(tagArray)
		buf.Write(f.items)
		return buf.Bytes()
	}
	buf.WriteByte(tagObject)
	idx := make([]int, len(f.keys))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return f.keys[idx[a]] < f.keys[idx[b]] })
	for _, i := range idx {
		writeLenPrefixed(&buf, []byte(f.keys[i]))
		buf.Write(f.vals[i])
	}
	return buf.Bytes()
}

// canonRecorder builds one array item's canonical byte encoding by
// observing every token fetched while it is active, the "pushdown
// automaton parallel to the main parse" the source describes: BEG
// tokens push a fresh canonFrame, END tokens pop and fold the finished
// child into whatever is now on top (or finish the recording if the
// stack is empty again), and scalars (after concatenating any partial
// STRING chunks) are delivered directly.
//
// A recorder is seeded by the item's already-fetched first token (the
// array loop's own lookahead token doubles as the item's start, so
// SUniqueMark primes the recorder with it directly instead of waiting
// for another OpToken).
type canonRecorder struct {
	stack  []*canonFrame
	strBuf string
	root   []byte
	done   bool
}

func newCanonRecorder(seed Event) *canonRecorder {
	r := &canonRecorder{}
	r.feed(seed)
	return r
}

func (r *canonRecorder) deliver(enc []byte) {
	if len(r.stack) == 0 {
		r.root = enc
		r.done = true
		return
	}
	r.stack[len(r.stack)-1].deliver(enc)
}

func (r *canonRecorder) feed(ev Event) {
	if r.done {
		return
	}
	switch ev.Kind {
	case ir.TokArrayBeg, ir.TokObjectBeg:
		r.stack = append(r.stack, &canonFrame{kind: ev.Kind})
		return
	case ir.TokArrayEnd, ir.TokObjectEnd:
		f := r.stack[len(r.stack)-1]
		r.stack = r.stack[:len(r.stack)-1]
		r.deliver(f.encode())
		return
	case ir.TokString:
		r.strBuf += ev.Str
		if ev.Partial {
			return
		}
		s := r.strBuf
		r.strBuf = ""
		if n := len(r.stack); n > 0 && r.stack[n-1].kind == ir.TokObjectBeg && !r.stack[n-1].haveKey {
			r.stack[n-1].pendingKey = s
			r.stack[n-1].haveKey = true
			return
		}
		var buf bytes.Buffer
		buf.WriteByte(tagString)
		writeLenPrefixed(&buf, []byte(s))
		r.deliver(buf.Bytes())
		return
	default:
		r.deliver(encodeScalar(ev))
	}
}

// finalize returns the completed canonical encoding. Only valid once
// feed has closed every composite the seed token opened (done==true);
// a caller driving OpToken correctly never calls it earlier, since
// SUniqueTest is only reached once the item's value schema has fully
// consumed the value.
func (r *canonRecorder) finalize() []byte {
	return r.root
}

// uniqueSet is one ARR_UNIQUE dedup set: the canonical encoding of
// every element seen so far in this array, bucketed by a content hash
// (fnv-1a over a per-Machine random salt||buffer, so adversarial input
// cannot predict hash collisions across runs, replacing
// original_source's own unresolved "XXX FIX SEED!" with an actual
// seed) purely to keep the per-item comparison cost O(bucket size)
// instead of O(n). The hash alone never decides duplicate-ness: two
// encodings landing in the same bucket are compared byte-for-byte
// before testAndAdd calls them equal, so a hash collision can cost a
// few wasted comparisons but never a false "not unique" verdict.
type uniqueSet struct {
	salt uint64
	seen map[uint64][][]byte
}

func newUniqueSet(salt uint64) *uniqueSet {
	return &uniqueSet{salt: salt, seen: map[uint64][][]byte{}}
}

// testAndAdd reports whether buf was already present, and records it
// either way would be wrong: only a fresh value gets added, so the
// caller can tell "already seen" from "seen now for the first time".
func (u *uniqueSet) testAndAdd(buf []byte) (duplicate bool) {
	h := fnv1a(u.salt, buf)
	bucket := u.seen[h]
	for _, prior := range bucket {
		if bytes.Equal(prior, buf) {
			return true
		}
	}
	u.seen[h] = append(bucket, buf)
	return false
}

func fnv1a(salt uint64, buf []byte) uint64 {
	const (
		offset = 1469598103934665603
		prime  = 1099511628211
	)
	h := uint64(offset) ^ salt
	for _, b := range buf {
		h ^= uint64(b)
		h *= prime
	}
	return h
}
