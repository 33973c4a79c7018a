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
	"math/rand"

	"github.com/katef/jvst-go/vmprog"
)

var errEntryNotFound = fmt.Errorf("vm: entry proc not found in program")

// Option configures a Machine at construction time, the same
// functional-options idiom db47h-ngaro's vm.New uses (DataSize,
// AddressSize, Input, Output, Shrink): each Option mutates the Machine
// being built before Step is ever called.
type Option func(*Machine)

// Seed fixes the salt ARR_UNIQUE content hashing uses, overriding the
// default of a fresh random salt per Machine. Tests want this for
// reproducible runs; production callers should leave it to New's
// default so duplicate-detection hashes cannot be predicted from the
// outside.
func Seed(salt uint64) Option {
	return func(m *Machine) { m.salt = salt }
}

// rootResult is what the root goroutine reports back once runProc
// returns for the entry proc, or once it fails fatally.
type rootResult struct {
	valid bool
	code  Code
	err   error
}

// Machine runs one compiled vmprog.VmProgram against a TokenSource,
// one Step call at a time. The validation itself runs on a single
// root goroutine parked on rootReq/rootIn whenever it needs another
// token; this is what lets a frame suspended deep inside nested
// OpCall/SPLIT frames resume exactly where it left off, since the
// goroutine's own call stack already holds that nesting (see doc.go).
type Machine struct {
	prog *vmprog.VmProgram
	src  TokenSource
	salt uint64

	started  bool
	finished bool

	// pendingReq is set once the root goroutine has asked for its next
	// token (a receive on rootReq) but Step has not yet been able to
	// deliver one, because the source ran dry first. It carries that
	// fact across Step calls so the next call delivers straight to
	// rootIn instead of waiting on rootReq again — the root already
	// sent that request and is now blocked solely on rootIn.
	pendingReq bool

	finalStatus Status
	finalCode   Code
	finalErr    error

	rootReq chan struct{}
	rootIn  chan feedMsg
	rootOut chan rootResult
}

// New returns a Machine ready to validate a stream of JSON events
// tokenized by src against prog.
func New(prog *vmprog.VmProgram, src TokenSource, opts ...Option) *Machine {
	m := &Machine{
		prog: prog,
		src:  src,
		salt: rand.Uint64(),

		rootReq: make(chan struct{}),
		rootIn:  make(chan feedMsg),
		rootOut: make(chan rootResult),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Step feeds input into the token source and drives the machine
// forward as far as the bytes seen so far allow. It returns
// StatusMore once the source has no more buffered tokens to offer
// (more input is needed); any other Status is final and every further
// Step call returns the same answer without touching src again.
func (m *Machine) Step(input []byte) (Status, Code, error) {
	if m.finished {
		return m.finalStatus, m.finalCode, m.finalErr
	}
	if !m.started {
		m.started = true
		go m.runRoot()
	}
	m.src.Feed(input)

	for {
		if !m.pendingReq {
			// Wait for the root to either ask for another token or
			// reach a verdict without needing one (a schema that
			// accepts/rejects before its first OpToken, e.g. a bare
			// "true"/"false" schema).
			select {
			case <-m.rootReq:
				m.pendingReq = true
			case res := <-m.rootOut:
				return m.finishResult(res)
			}
		}

		var ev Event
		st, err := m.src.Next(&ev)
		if err != nil {
			return m.finish(StatusInvalid, 0, err)
		}
		if st == StatusMore {
			return StatusMore, 0, nil
		}
		m.rootIn <- feedMsg{ev: ev}
		m.pendingReq = false
	}
}

func (m *Machine) finish(status Status, code Code, err error) (Status, Code, error) {
	m.finished = true
	m.finalStatus, m.finalCode, m.finalErr = status, code, err
	return status, code, err
}

func (m *Machine) finishResult(res rootResult) (Status, Code, error) {
	if res.err != nil {
		return m.finish(StatusInvalid, 0, res.err)
	}
	if res.valid {
		return m.finish(StatusValid, 0, nil)
	}
	return m.finish(StatusInvalid, res.code, nil)
}

// runRoot is the machine's single root goroutine: it looks up the
// entry proc, builds the root interp wrapping rootReq/rootIn as its
// token feed, and runs the proc to completion, reporting the final
// verdict on rootOut. Every blocking token fetch anywhere in the call
// chain (plain OpToken, a nested OpCall, a SPLIT orchestrator's own
// pulls) resolves to this same request/deliver handshake, so this
// goroutine parks exactly where validation is waiting for more input
// and resumes from there.
func (m *Machine) runRoot() {
	procIdx, ok := m.prog.ProcIndex[m.prog.Entry]
	if !ok {
		m.rootOut <- rootResult{err: errEntryNotFound}
		return
	}
	it := &interp{feed: chanRootFeed{req: m.rootReq, in: m.rootIn}, salt: m.salt}
	valid, code, err := runProc(m, &m.prog.Procs[procIdx], it)
	m.rootOut <- rootResult{valid: valid, code: code, err: err}
}

// chanRootFeed is the root goroutine's tokenFeed: the same
// request-then-receive handshake splitChildFeed uses, so Step can tell
// apart "the root wants another token" from "the root is done"
// without any chance of the two racing each other.
type chanRootFeed struct {
	req chan struct{}
	in  chan feedMsg
}

func (r chanRootFeed) next() (Event, error) {
	r.req <- struct{}{}
	m := <-r.in
	return m.ev, m.err
}
