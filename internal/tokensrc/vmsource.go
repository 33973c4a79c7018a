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

package tokensrc

import (
	"io"

	"github.com/katef/jvst-go/ir"
	"github.com/katef/jvst-go/vm"
)

// blockingReader is the io.Reader the embedded json.Decoder reads from.
// Read blocks until MachineSource's orchestration loop has bytes to hand
// it (or has been told no more bytes will ever arrive), the same
// request/deliver handshake vm.Machine's own chanRootFeed uses to
// suspend a goroutine across a Step boundary: Read first announces "I
// need bytes" on req, then blocks receiving the actual chunk on data.
type blockingReader struct {
	req  chan struct{}
	data chan chunk
	rem  []byte
	eof  bool
}

type chunk struct {
	buf []byte
	eof bool
}

func (r *blockingReader) Read(p []byte) (int, error) {
	if len(r.rem) == 0 {
		if r.eof {
			return 0, io.EOF
		}
		r.req <- struct{}{}
		c := <-r.data
		if c.eof {
			r.eof = true
			return 0, io.EOF
		}
		r.rem = c.buf
	}
	n := copy(p, r.rem)
	r.rem = r.rem[n:]
	return n, nil
}

// tokenResult is one message the background decode goroutine reports:
// either a decoded Token or the terminal error that ended decoding
// (io.EOF on a clean end of the top-level value, or a malformed-input
// error otherwise).
type tokenResult struct {
	tok Token
	err error
}

// MachineSource adapts a Source (a pull-based tokenizer over an
// io.Reader) to vm.TokenSource's push/pull contract, so the default
// tokenizer can drive a vm.Machine directly: Feed appends bytes that
// become available, and Next reports the next decoded event or
// vm.StatusMore once the buffered bytes cannot complete another token.
//
// Decoding runs on its own goroutine reading from a blockingReader, the
// same "goroutine parked on a channel read is how suspension works"
// idiom vm.Machine.runRoot and vm.evalSplit both use (see vm/doc.go);
// MachineSource is simply this package's side of that same protocol.
type MachineSource struct {
	src *Source
	r   *blockingReader

	tokCh chan tokenResult

	started    bool
	closed     bool
	finished   bool
	pendingReq bool
	pendingBuf []byte
}

// NewMachineSource returns a MachineSource with no bytes fed yet.
func NewMachineSource() *MachineSource {
	r := &blockingReader{req: make(chan struct{}), data: make(chan chunk)}
	return &MachineSource{
		src:   New(r),
		r:     r,
		tokCh: make(chan tokenResult),
	}
}

func (m *MachineSource) ensureStarted() {
	if m.started {
		return
	}
	m.started = true
	go m.run()
}

func (m *MachineSource) run() {
	for {
		tok, err := m.src.Next()
		m.tokCh <- tokenResult{tok: tok, err: err}
		if err != nil {
			return
		}
	}
}

// Feed appends newly-available bytes. It never blocks: bytes are handed
// to the decode goroutine lazily, the next time Next is called.
func (m *MachineSource) Feed(b []byte) {
	m.ensureStarted()
	if len(b) == 0 {
		return
	}
	m.pendingBuf = append(m.pendingBuf, b...)
}

// Close reports that no further bytes will ever be fed. Without this, a
// document whose very last token has no following delimiter (a bare
// top-level number or literal) can never be confirmed complete, since
// the decoder cannot tell "4" from a prefix of "42" without either a
// terminating byte or a definitive end of input.
func (m *MachineSource) Close() {
	m.ensureStarted()
	m.closed = true
}

// Next reports the next event, or vm.StatusMore if the bytes fed so far
// cannot yet complete another one.
func (m *MachineSource) Next(ev *vm.Event) (vm.Status, error) {
	m.ensureStarted()
	if m.finished {
		return vm.StatusMore, nil
	}
	for {
		if !m.pendingReq {
			select {
			case <-m.r.req:
				m.pendingReq = true
			case res := <-m.tokCh:
				if res.err == io.EOF {
					// The top-level value is fully parsed: a clean,
					// expected end, not a malformed-input error. Any
					// further Next call just reports "nothing more" —
					// a well-formed program should already have a
					// verdict by now and never ask again.
					m.finished = true
					return vm.StatusMore, nil
				}
				return deliver(res, ev)
			}
		}

		if len(m.pendingBuf) == 0 {
			if !m.closed {
				return vm.StatusMore, nil
			}
			m.r.data <- chunk{eof: true}
			m.pendingReq = false
			continue
		}
		m.r.data <- chunk{buf: m.pendingBuf}
		m.pendingBuf = nil
		m.pendingReq = false
	}
}

func deliver(res tokenResult, ev *vm.Event) (vm.Status, error) {
	if res.err != nil {
		return vm.StatusInvalid, res.err
	}
	*ev = toEvent(res.tok)
	return vm.StatusValid, nil
}

// toEvent converts one tokenizer Token to the vm.Event shape the
// compiled program's TokKind comparisons expect. Key collapses onto
// TokString: nothing downstream branches on ir.TokKind to tell a
// property name apart from a string value, since the object loop's own
// structure (key-position SToken vs. value-position SToken) already
// supplies that distinction positionally.
func toEvent(tok Token) vm.Event {
	switch tok.Kind {
	case Null:
		return vm.Event{Kind: ir.TokNull}
	case True:
		return vm.Event{Kind: ir.TokTrue}
	case False:
		return vm.Event{Kind: ir.TokFalse}
	case Number:
		return vm.Event{Kind: ir.TokNumber, Num: tok.Number}
	case String, Key:
		return vm.Event{Kind: ir.TokString, Str: tok.String}
	case ObjectBeg:
		return vm.Event{Kind: ir.TokObjectBeg}
	case ObjectEnd:
		return vm.Event{Kind: ir.TokObjectEnd}
	case ArrayBeg:
		return vm.Event{Kind: ir.TokArrayBeg}
	case ArrayEnd:
		return vm.Event{Kind: ir.TokArrayEnd}
	default:
		return vm.Event{Kind: ir.TokNull}
	}
}
