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

	"github.com/katef/jvst-go/ir"
)

// childMsg is one split child's report to its orchestrator: either a
// request for the next broadcast token (req==true) or its final
// verdict once runProc returns for that child (req==false). Every
// child shares one ctl channel so the orchestrator only ever needs to
// watch a single receive, not one per child.
type childMsg struct {
	idx int
	req bool
	res rootResult
}

// splitChildFeed is the tokenFeed a split child's interp blocks on.
// next reports the child as ready via ctl, then waits for the
// orchestrator to deliver the broadcast token (or a fatal error) on
// in — the same two-step request/deliver handshake that lets the
// orchestrator know, race-free, whether every still-alive child is
// parked waiting for input before it pulls and broadcasts the next
// token.
type splitChildFeed struct {
	ctl chan childMsg
	idx int
	in  chan feedMsg
}

func (f splitChildFeed) next() (Event, error) {
	f.ctl <- childMsg{idx: f.idx, req: true}
	m := <-f.in
	return m.ev, m.err
}

// evalSplit runs expr's child frames in lock-step off the same
// broadcast token stream, the way original_source describes AND/OR/
// XOR/NOT all composing through one SPLIT primitive: every child sees
// the identical sequence of tokens, and a child that finishes early
// (accepts or rejects before the others do) simply stops asking for
// more. Tokens are still pulled through it.nextToken(), not a raw
// read off m's source, so a uniqueness recorder active in an
// enclosing frame keeps observing every token even when the composite
// sits inside an array item's value schema.
func evalSplit(m *Machine, it *interp, expr *ir.Expr) (float64, error) {
	n := len(expr.SplitFrames)
	ctl := make(chan childMsg)
	ins := make([]chan feedMsg, n)
	results := make([]rootResult, n)

	for i, frameRef := range expr.SplitFrames {
		procIdx, ok := m.prog.FrameProc[frameRef]
		if !ok {
			return 0, fmt.Errorf("vm: split frame %d has no assembled proc", frameRef)
		}
		ins[i] = make(chan feedMsg)
		childIt := &interp{feed: splitChildFeed{ctl: ctl, idx: i, in: ins[i]}, salt: it.salt}
		go func(i, procIdx int) {
			valid, code, err := runProc(m, &m.prog.Procs[procIdx], childIt)
			ctl <- childMsg{idx: i, req: false, res: rootResult{valid: valid, code: code, err: err}}
		}(i, procIdx)
	}

	aliveCount := n
	for aliveCount > 0 {
		var reqIdx []int
		for pending := aliveCount; pending > 0; pending-- {
			msg := <-ctl
			if msg.req {
				reqIdx = append(reqIdx, msg.idx)
				continue
			}
			results[msg.idx] = msg.res
			aliveCount--
		}
		if len(reqIdx) == 0 {
			break
		}

		ev, err := it.nextToken()
		if err != nil {
			// Fatal stream error: unblock every child still waiting so
			// its goroutine can exit, then report the error upward.
			// The whole Machine is aborting on this path (see
			// Machine.Step), so the remaining child goroutines' final
			// ctl sends being unread is not a leak that outlives the run.
			for _, i := range reqIdx {
				ins[i] <- feedMsg{err: err}
			}
			return 0, err
		}
		for _, i := range reqIdx {
			ins[i] <- feedMsg{ev: ev}
		}
	}

	var validCount float64
	for _, res := range results {
		if res.err != nil {
			return 0, res.err
		}
		if res.valid {
			validCount++
		}
	}
	return validCount, nil
}
