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

// feedMsg is one message on a tokenFeed channel: either a ready event
// or a fatal error forwarded down from the real token source.
type feedMsg struct {
	ev  Event
	err error
}

// tokenFeed is where the next token comes from for one call chain: the
// real token source for the root machine, or the broadcast channel a
// parent SPLIT orchestrator writes into for a split child. Blocking on
// it is exactly how suspension is implemented — see doc.go.
type tokenFeed interface {
	next() (Event, error)
}

// interp is the per-call-chain state threaded through runProc and its
// nested OpCall invocations: the token feed, the current token
// register, and whichever SUniqueMark recorders are active. A fresh
// interp is created only where a new call chain actually starts (the
// root machine, and each SPLIT child) — OpCall shares its caller's
// interp unchanged, which is what lets an array's uniqueness recorder
// keep seeing tokens fetched from inside a $ref callee.
type interp struct {
	feed      tokenFeed
	cur       Event
	recorders []*canonRecorder
	salt      uint64
}

// nextToken pulls the next event from feed, updates cur, and feeds
// every active recorder — the single chokepoint every token fetch
// goes through, whether from a plain OpToken or from a SPLIT
// orchestrator distributing the same event to its children.
func (it *interp) nextToken() (Event, error) {
	ev, err := it.feed.next()
	if err != nil {
		return Event{}, err
	}
	it.cur = ev
	for _, r := range it.recorders {
		r.feed(ev)
	}
	return ev, nil
}

func (it *interp) pushRecorder(seed Event) *canonRecorder {
	r := newCanonRecorder(seed)
	it.recorders = append(it.recorders, r)
	return r
}

func (it *interp) popRecorder() *canonRecorder {
	n := len(it.recorders)
	r := it.recorders[n-1]
	it.recorders = it.recorders[:n-1]
	return r
}
