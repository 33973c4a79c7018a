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

package ir

import (
	"fmt"
	"regexp"

	"github.com/katef/jvst-go/cnode"
	"github.com/katef/jvst-go/internal/dfa"
)

// Translate lowers a canonified cnode.Forest into a tree-shaped
// Program: one callable SFrame per document root, plus one more per
// $ref target that turns out to be part of a reference cycle (acyclic
// references are inlined directly at their call site instead of
// costing a frame and an SCall).
//
// Every frame built here shares one calling convention: the frame
// fetches its own first token (with an SToken, or through the split
// branch frames or SCall target it starts with), so its caller must not
// have fetched that token already. This lets a frame be used uniformly as a
// document root, a SPLIT branch, or an SCall target. The one place
// that convention is relaxed is array element processing: the loop
// that decides ARRAY_END vs. not-ARRAY_END has already fetched the
// token an element starts with, so item schemas there are lowered
// through translateValueBody (no leading SToken) instead.
func Translate(f *cnode.Forest) (*Program, error) {
	t := &translator{
		cf:         f,
		prog:       NewProgram(),
		inlining:   map[string]bool{},
		built:      map[string]bool{},
		labelIndex: map[string]cnode.Ref{},
	}
	for lbl, r := range f.AllIDs {
		t.labelIndex[f.Arena.String(lbl)] = r
	}

	if len(f.Roots) == 0 {
		return nil, fmt.Errorf("ir: forest has no root")
	}
	entry := f.Arena.String(f.Labels[0])
	t.prog.Entry = entry

	if err := t.buildNamedFrame(entry, f.Roots[0]); err != nil {
		return nil, err
	}
	for len(t.pending) > 0 {
		label := t.pending[0]
		t.pending = t.pending[1:]
		if t.built[label] {
			continue
		}
		root, ok := t.labelRef(label)
		if !ok {
			return nil, fmt.Errorf("ir: unresolved frame label %q", label)
		}
		if err := t.buildNamedFrame(label, root); err != nil {
			return nil, err
		}
	}
	return t.prog, nil
}

type translator struct {
	cf   *cnode.Forest
	prog *Program

	inlining   map[string]bool // labels currently being inlined, for cycle detection
	built      map[string]bool
	pending    []string
	labelIndex map[string]cnode.Ref

	cur *frameCtx // the frame currently being built
}

// frameCtx accumulates the local declarations (counters, matchers,
// bitvectors, unique-sets) a single SFrame needs as its body is built.
type frameCtx struct {
	decls                                      []Ref
	nCounters, nMatchers, nBitvectors, nUnique int
	splitSeq                                   int
}

func (t *translator) labelRef(label string) (cnode.Ref, bool) {
	r, ok := t.labelIndex[label]
	return r, ok
}

func (t *translator) requestFrame(label string) {
	if t.built[label] {
		return
	}
	for _, p := range t.pending {
		if p == label {
			return
		}
	}
	t.pending = append(t.pending, label)
}

// buildNamedFrame builds a document root or $ref-cycle-target frame
// under a stable, caller-visible label and registers it in
// Program.Frames so SCall can resolve it.
func (t *translator) buildNamedFrame(label string, root cnode.Ref) error {
	ref := t.buildFrame(label, func() Ref {
		return t.translateValueSchema(root)
	})
	t.prog.Frames[label] = ref
	t.built[label] = true
	return nil
}

// buildFrame builds one SFrame: it runs body in a fresh declaration
// scope, then prepends whatever counters/matchers/bitvectors/unique
// sets that scope accumulated.
func (t *translator) buildFrame(label string, body func() Ref) Ref {
	parent := t.cur
	fc := &frameCtx{}
	t.cur = fc
	b := body()
	t.cur = parent

	children := append(append([]Ref{}, fc.decls...), b)
	return t.allocStmt(Stmt{
		Kind:        SFrame,
		Label:       label,
		Children:    children,
		NCounters:   fc.nCounters,
		NMatchers:   fc.nMatchers,
		NBitvectors: fc.nBitvectors,
		NUniqueSets: fc.nUnique,
	})
}

func (t *translator) allocStmt(s Stmt) Ref     { return t.prog.Alloc(s) }
func (t *translator) allocExpr(e Expr) ExprRef { return t.prog.AllocExpr(e) }

func (t *translator) newCounter() int {
	idx := t.cur.nCounters
	t.cur.nCounters++
	t.cur.decls = append(t.cur.decls, t.allocStmt(Stmt{Kind: SCounter, Index: idx}))
	return idx
}

func (t *translator) newBitvector() int {
	idx := t.cur.nBitvectors
	t.cur.nBitvectors++
	t.cur.decls = append(t.cur.decls, t.allocStmt(Stmt{Kind: SBitvector, Index: idx}))
	return idx
}

func (t *translator) newMatcher(d *dfa.DFA) int {
	idx := t.cur.nMatchers
	t.cur.nMatchers++
	t.cur.decls = append(t.cur.decls, t.allocStmt(Stmt{Kind: SMatcher, Index: idx, MatcherDFA: d}))
	return idx
}

func (t *translator) newUniqueSet() int {
	idx := t.cur.nUnique
	t.cur.nUnique++
	t.cur.decls = append(t.cur.decls, t.allocStmt(Stmt{Kind: SUniqueDecl, Index: idx}))
	return idx
}

func (t *translator) freshSplitLabel() string {
	t.cur.splitSeq++
	return fmt.Sprintf("split$%d", t.cur.splitSeq)
}

// translateValueSchema lowers r as a complete, self-contained "value
// schema": it fetches its own token before dispatching, unless the body
// is an SCall or a SPLIT comparison, whose target or branch frames fetch
// that token themselves. Every split branch, $ref target frame, document
// root, and object property value goes through this entry point.
func (t *translator) translateValueSchema(r cnode.Ref) Ref {
	body := t.translateValueBody(r)
	if s := t.prog.At(body); s.Kind == SCall {
		return body
	} else if s.Kind == SIf {
		if c := t.prog.Exprs[s.Cond]; (c.Kind == EEq || c.Kind == EGe) && t.prog.Exprs[c.Left].Kind == ESplit {
			return body
		}
	}
	tok := t.allocStmt(Stmt{Kind: SToken})
	return t.allocStmt(Stmt{Kind: SSeq, Children: []Ref{tok, body}})
}

// translateValueBody lowers r assuming the current token already
// holds its first token (no SToken is emitted). Array elements go
// through this path, since the array loop's own SToken call (made to
// test for ARRAY_END) already supplied it.
func (t *translator) translateValueBody(r cnode.Ref) Ref {
	n := t.cf.At(r)
	switch n.Kind {
	case cnode.KValid:
		return t.allocStmt(Stmt{Kind: SValid})
	case cnode.KInvalid:
		return t.allocStmt(Stmt{Kind: SInvalid, Code: InvalidUnexpectedToken})
	case cnode.KSwitch:
		return t.translateDispatch(n)
	case cnode.KAnd:
		return t.translateComposite(n.Children, SplitAll)
	case cnode.KOr:
		return t.translateComposite(n.Children, SplitAny)
	case cnode.KXor:
		return t.translateComposite(n.Children, SplitOne)
	case cnode.KNot:
		return t.translateComposite([]cnode.Ref{n.Child}, SplitNone)
	case cnode.KRef:
		return t.translateRef(n)
	default:
		// Scalar/object/array constraint kinds only ever occur nested
		// inside a KSwitch slot body, never directly in a value
		// position; reaching here means an upstream pass produced a
		// malformed tree.
		return t.allocStmt(Stmt{Kind: SInvalid, Code: InvalidUnexpectedToken})
	}
}

func (t *translator) translateRef(n *cnode.Node) Ref {
	label := t.cf.Arena.String(n.RefLabel)
	if t.inlining[label] {
		t.requestFrame(label)
		return t.allocStmt(Stmt{Kind: SCall, Callee: label})
	}
	target, ok := t.cf.AllIDs[n.RefLabel]
	if !ok {
		return t.allocStmt(Stmt{Kind: SInvalid, Code: InvalidRef})
	}
	t.inlining[label] = true
	body := t.translateValueBody(target)
	delete(t.inlining, label)
	return body
}

// translateComposite lowers an AND/OR/XOR/NOT: each child becomes its
// own SPLIT branch frame (a fresh value schema fetching its own
// token), and the branches run in lock-step off the same broadcast
// token stream (see vm.Machine). The pass/fail test is an explicit
// comparison against the branch count rather than baked into the
// SPLIT expression itself, mirroring how original_source lowers every
// one of these combinators through the same primitive with a
// different post-count check.
func (t *translator) translateComposite(children []cnode.Ref, kind SplitKind) Ref {
	frames := make([]Ref, len(children))
	for i, ch := range children {
		label := t.freshSplitLabel()
		frames[i] = t.buildFrame(label, func() Ref {
			return t.translateValueSchema(ch)
		})
	}
	count := t.allocExpr(Expr{Kind: ESplit, SplitFrames: frames, SplitKind: kind})

	var cond ExprRef
	code := InvalidSplitCondition
	switch kind {
	case SplitAll:
		cond = t.allocExpr(Expr{Kind: EEq, Left: count, Right: t.allocExpr(Expr{Kind: ESize, Size: len(children)})})
	case SplitAny:
		cond = t.allocExpr(Expr{Kind: EGe, Left: count, Right: t.allocExpr(Expr{Kind: ESize, Size: 1})})
	case SplitOne:
		cond = t.allocExpr(Expr{Kind: EEq, Left: count, Right: t.allocExpr(Expr{Kind: ESize, Size: 1})})
	case SplitNone:
		cond = t.allocExpr(Expr{Kind: EEq, Left: count, Right: t.allocExpr(Expr{Kind: ESize, Size: 0})})
		code = InvalidNot
	}
	return t.allocStmt(Stmt{
		Kind: SIf, Cond: cond,
		Then: t.allocStmt(Stmt{Kind: SValid}),
		Else: t.allocStmt(Stmt{Kind: SInvalid, Code: code}),
	})
}

// translateDispatch lowers a KSwitch's 9-way token dispatch into a
// chain of SIf/EIsTok tests, OBJECT_BEG and ARRAY_BEG routed to their
// looping slot translators and every other slot to the scalar one.
func (t *translator) translateDispatch(n *cnode.Node) Ref {
	order := []cnode.EventKind{
		cnode.EvArrayBeg, cnode.EvObjectBeg, cnode.EvString, cnode.EvNumber,
		cnode.EvFalse, cnode.EvTrue, cnode.EvNull,
	}
	chain := t.allocStmt(Stmt{Kind: SInvalid, Code: InvalidUnexpectedToken})
	for _, ev := range order {
		var body Ref
		switch ev {
		case cnode.EvObjectBeg:
			body = t.translateObjectSlot(n.Switch[ev])
		case cnode.EvArrayBeg:
			body = t.translateArraySlot(n.Switch[ev])
		default:
			body = t.translateScalarSlot(ev, n.Switch[ev], NoRef)
		}
		cond := t.allocExpr(Expr{Kind: EIsTok, TokKind: TokKind(ev)})
		chain = t.allocStmt(Stmt{Kind: SIf, Cond: cond, Then: body, Else: chain})
	}
	return chain
}

func codeForScalarKind(k cnode.Kind) InvalidCode {
	switch k {
	case cnode.KNumRange:
		return InvalidNumber
	case cnode.KNumMultipleOf:
		return InvalidMultipleOf
	case cnode.KNumInteger:
		return InvalidNotInteger
	case cnode.KLengthRange:
		return InvalidLengthRange
	case cnode.KStrMatch:
		return InvalidPatternMismatch
	default:
		return InvalidUnexpectedToken
	}
}

// translateScalarSlot lowers a NULL/TRUE/FALSE/NUMBER/STRING slot
// body: an AND-list of scalar leaf constraints tested against the
// current token's already-decoded fields, never fetching another
// token. onSuccess, if not NoRef, replaces the terminal SValid (used
// when this chain is gating something else, e.g. a propertyNames
// check gating the property value fetch that follows it).
func (t *translator) translateScalarSlot(ev cnode.EventKind, r cnode.Ref, onSuccess Ref) Ref {
	n := t.cf.At(r)
	term := onSuccess
	if term == NoRef {
		term = t.allocStmt(Stmt{Kind: SValid})
	}
	switch n.Kind {
	case cnode.KValid:
		return term
	case cnode.KInvalid:
		return t.allocStmt(Stmt{Kind: SInvalid, Code: InvalidUnexpectedToken})
	case cnode.KAnd:
		return t.gateScalarParts(n.Children, 0, term)
	default:
		return t.gateScalarParts([]cnode.Ref{r}, 0, term)
	}
}

func (t *translator) gateScalarParts(parts []cnode.Ref, i int, onSuccess Ref) Ref {
	if i >= len(parts) {
		return onSuccess
	}
	pn := t.cf.At(parts[i])
	rest := func() Ref { return t.gateScalarParts(parts, i+1, onSuccess) }

	switch pn.Kind {
	case cnode.KNumRange:
		cond := t.numRangeCond(pn)
		return t.allocStmt(Stmt{Kind: SIf, Cond: cond, Then: rest(), Else: t.invalidStmt(pn.Kind)})
	case cnode.KNumInteger:
		cond := t.allocExpr(Expr{Kind: EIsInt, Arg: t.allocExpr(Expr{Kind: ETokNum})})
		return t.allocStmt(Stmt{Kind: SIf, Cond: cond, Then: rest(), Else: t.invalidStmt(pn.Kind)})
	case cnode.KNumMultipleOf:
		cond := t.allocExpr(Expr{Kind: EMultipleOf, Arg: t.allocExpr(Expr{Kind: ETokNum}), MultipleOf: pn.MultipleOf})
		return t.allocStmt(Stmt{Kind: SIf, Cond: cond, Then: rest(), Else: t.invalidStmt(pn.Kind)})
	case cnode.KLengthRange:
		cond := t.lengthRangeCond(pn)
		return t.allocStmt(Stmt{Kind: SIf, Cond: cond, Then: rest(), Else: t.invalidStmt(pn.Kind)})
	case cnode.KStrMatch:
		idx := t.newMatcher(t.buildSinglePatternDFA(pn.Pattern, pn.Anchored))
		return t.allocStmt(Stmt{
			Kind:  SMatch,
			Index: idx,
			Cases: []MatchCase{{Labels: []int{0}, Stmt: rest()}},
			Default: t.invalidStmt(pn.Kind),
		})
	default:
		return rest()
	}
}

func (t *translator) invalidStmt(k cnode.Kind) Ref {
	return t.allocStmt(Stmt{Kind: SInvalid, Code: codeForScalarKind(k)})
}

func (t *translator) buildSinglePatternDFA(pattern string, anchored bool) *dfa.DFA {
	d, err := dfa.Build([]dfa.Pattern{{Label: 0, Regexp: pattern, Anchored: anchored}}, dfa.Options{})
	if err != nil {
		// A `pattern` keyword's regexp is not checked by any earlier
		// pass, so a malformed one lands here; it becomes a
		// never-accepting DFA, and every string then fails the match.
		d, _ = dfa.Build(nil, dfa.Options{})
	}
	return d
}

func (t *translator) numRangeCond(pn *cnode.Node) ExprRef {
	numExpr := t.allocExpr(Expr{Kind: ETokNum})
	var parts []ExprRef
	if pn.Flags&cnode.RangeMin != 0 {
		op := EGe
		if pn.Flags&cnode.RangeExclMin != 0 {
			op = EGt
		}
		parts = append(parts, t.allocExpr(Expr{Kind: op, Left: numExpr, Right: t.allocExpr(Expr{Kind: ENum, Num: pn.Min})}))
	}
	if pn.Flags&cnode.RangeMax != 0 {
		op := ELe
		if pn.Flags&cnode.RangeExclMax != 0 {
			op = ELt
		}
		parts = append(parts, t.allocExpr(Expr{Kind: op, Left: numExpr, Right: t.allocExpr(Expr{Kind: ENum, Num: pn.Max})}))
	}
	return t.andExprs(parts)
}

func (t *translator) lengthRangeCond(pn *cnode.Node) ExprRef {
	lenExpr := t.allocExpr(Expr{Kind: ETokLen})
	parts := []ExprRef{t.allocExpr(Expr{Kind: EGe, Left: lenExpr, Right: t.allocExpr(Expr{Kind: ESize, Size: int(pn.Min)})})}
	if pn.UpperBound {
		parts = append(parts, t.allocExpr(Expr{Kind: ELe, Left: lenExpr, Right: t.allocExpr(Expr{Kind: ESize, Size: int(pn.Max)})}))
	}
	return t.andExprs(parts)
}

func (t *translator) countRangeCond(counterIdx int, pn *cnode.Node) ExprRef {
	cntExpr := t.allocExpr(Expr{Kind: ECount, CounterIndex: counterIdx})
	parts := []ExprRef{t.allocExpr(Expr{Kind: EGe, Left: cntExpr, Right: t.allocExpr(Expr{Kind: ESize, Size: int(pn.Min)})})}
	if pn.UpperBound {
		parts = append(parts, t.allocExpr(Expr{Kind: ELe, Left: cntExpr, Right: t.allocExpr(Expr{Kind: ESize, Size: int(pn.Max)})}))
	}
	return t.andExprs(parts)
}

func (t *translator) andExprs(parts []ExprRef) ExprRef {
	if len(parts) == 0 {
		return t.allocExpr(Expr{Kind: EBool, Bool: true})
	}
	acc := parts[0]
	for _, p := range parts[1:] {
		acc = t.allocExpr(Expr{Kind: EAnd, Left: acc, Right: p})
	}
	return acc
}

// translateObjectSlot lowers an OBJECT_BEG slot body: a loop reading
// KEY tokens until OBJECT_END, dispatching each key through the
// compiled MATCH_SWITCH (if any), tracking REQMASK/REQBIT presence and
// a PROP_RANGE counter, then checking both once the object closes.
func (t *translator) translateObjectSlot(r cnode.Ref) Ref {
	n := t.cf.At(r)
	if n.Kind == cnode.KValid {
		return t.allocStmt(Stmt{Kind: SValid})
	}
	if n.Kind == cnode.KInvalid {
		return t.allocStmt(Stmt{Kind: SInvalid, Code: InvalidUnexpectedToken})
	}

	var parts []cnode.Ref
	if n.Kind == cnode.KAnd {
		// A canonified OBJ_REQUIRED is itself an AND of one REQMASK and
		// its REQBITs; flatten it into the same part list.
		for _, ch := range n.Children {
			if cn := t.cf.At(ch); cn.Kind == cnode.KAnd {
				parts = append(parts, cn.Children...)
			} else {
				parts = append(parts, ch)
			}
		}
	} else {
		parts = []cnode.Ref{r}
	}

	var matchSwitch *cnode.Node
	var reqMask *cnode.Node
	var reqBits []*cnode.Node
	var propRange *cnode.Node
	for _, p := range parts {
		pn := t.cf.At(p)
		switch pn.Kind {
		case cnode.KMatchSwitch:
			matchSwitch = pn
		case cnode.KObjReqMask:
			reqMask = pn
		case cnode.KObjReqBit:
			reqBits = append(reqBits, pn)
		case cnode.KPropRange:
			propRange = pn
		}
	}

	reqBitvecIdx := -1
	if reqMask != nil {
		reqBitvecIdx = t.newBitvector()
	}
	reqNameMatcherIdx := -1
	if len(reqBits) > 0 {
		pats := make([]dfa.Pattern, len(reqBits))
		for i, rb := range reqBits {
			pats[i] = dfa.Pattern{Label: rb.BitIndex, Regexp: "^" + regexp.QuoteMeta(rb.Pattern) + "$", Anchored: true}
		}
		d, err := dfa.Build(pats, dfa.Options{})
		if err != nil {
			d, _ = dfa.Build(nil, dfa.Options{})
		}
		reqNameMatcherIdx = t.newMatcher(d)
	}
	propCounterIdx := -1
	if propRange != nil {
		propCounterIdx = t.newCounter()
	}
	keyMatcherIdx := -1
	if matchSwitch != nil {
		keyMatcherIdx = t.newMatcher(matchSwitch.MatchDFA)
	}

	perKey := t.objectPerKeyStmt(reqBitvecIdx, reqBits, reqNameMatcherIdx, propCounterIdx, keyMatcherIdx, matchSwitch)

	loopTok := t.allocStmt(Stmt{Kind: SToken})
	isEnd := t.allocExpr(Expr{Kind: EIsTok, TokKind: TokObjectEnd})
	brk := t.allocStmt(Stmt{Kind: SBreak, LoopName: "obj"})
	loopIf := t.allocStmt(Stmt{Kind: SIf, Cond: isEnd, Then: brk, Else: perKey})
	loopBody := t.allocStmt(Stmt{Kind: SSeq, Children: []Ref{loopTok, loopIf}})
	loop := t.allocStmt(Stmt{Kind: SLoop, LoopName: "obj", Children: []Ref{loopBody}})

	final := t.objectFinalCheck(reqBitvecIdx, reqMask, propCounterIdx, propRange)
	return t.allocStmt(Stmt{Kind: SSeq, Children: []Ref{loop, final}})
}

func (t *translator) objectPerKeyStmt(reqBitvecIdx int, reqBits []*cnode.Node, reqNameMatcherIdx, propCounterIdx, keyMatcherIdx int, matchSwitch *cnode.Node) Ref {
	var steps []Ref

	if reqNameMatcherIdx >= 0 {
		cases := make([]MatchCase, len(reqBits))
		for i, rb := range reqBits {
			bset := t.allocStmt(Stmt{Kind: SBSet, Index: reqBitvecIdx, BitIndex: rb.BitIndex})
			cases[i] = MatchCase{Labels: []int{rb.BitIndex}, Stmt: bset}
		}
		steps = append(steps, t.allocStmt(Stmt{
			Kind: SMatch, Index: reqNameMatcherIdx, Cases: cases,
			Default: t.allocStmt(Stmt{Kind: SNop}),
		}))
	}

	if propCounterIdx >= 0 {
		steps = append(steps, t.allocStmt(Stmt{Kind: SIncr, Index: propCounterIdx, Delta: 1}))
	}

	var dispatch Ref
	if matchSwitch != nil {
		cases := make([]MatchCase, len(matchSwitch.Cases))
		for i, c := range matchSwitch.Cases {
			cases[i] = MatchCase{Labels: c.Labels, Stmt: t.translatePropertyValue(c)}
		}
		var def Ref
		if matchSwitch.Default != cnode.NoRef {
			def = t.translateObjPropDefault(matchSwitch.Default)
		} else {
			def = t.allocStmt(Stmt{Kind: SSeq, Children: []Ref{
				t.allocStmt(Stmt{Kind: SToken}), t.allocStmt(Stmt{Kind: SValid}),
			}})
		}
		dispatch = t.allocStmt(Stmt{Kind: SMatch, Index: keyMatcherIdx, Cases: cases, Default: def})
	} else {
		// No properties/patternProperties/additionalProperties at all:
		// still consume whatever value follows the key.
		dispatch = t.allocStmt(Stmt{Kind: SSeq, Children: []Ref{
			t.allocStmt(Stmt{Kind: SToken}), t.allocStmt(Stmt{Kind: SValid}),
		}})
	}
	steps = append(steps, dispatch)

	return t.allocStmt(Stmt{Kind: SSeq, Children: steps})
}

// translatePropertyValue lowers one MATCH_SWITCH case: an optional
// propertyNames check against the key just read (gating), followed by
// fetching and validating the property's value.
func (t *translator) translatePropertyValue(c cnode.MatchCaseEntry) Ref {
	value := t.translateValueSchema(c.ValueConstraint)
	if c.NameConstraint == cnode.NoRef {
		return value
	}
	return t.nameConstraintGate(c.NameConstraint, value)
}

func (t *translator) translateObjPropDefault(defaultRef cnode.Ref) Ref {
	n := t.cf.At(defaultRef)
	// KObjPropDefault wraps the additionalProperties value schema.
	child := n.Child
	if child == cnode.NoRef {
		child = defaultRef
	}
	return t.translateValueSchema(child)
}

// nameConstraintGate applies propertyNames's compiled string schema to
// the key token already in hand, running onPass only if it is
// satisfied. Only the common case (a plain type:string schema whose
// STRING slot is a simple AND of LENGTH_RANGE/STR_MATCH leaves) is
// supported; anything more exotic (nested combinators on the name
// schema) is treated as unconstrained, which is documented as a scope
// limitation rather than silently wrong in the common case.
func (t *translator) nameConstraintGate(r cnode.Ref, onPass Ref) Ref {
	n := t.cf.At(r)
	if n.Kind != cnode.KSwitch {
		return onPass
	}
	return t.translateScalarSlot(cnode.EvString, n.Switch[cnode.EvString], onPass)
}

// translateArraySlot lowers an ARRAY_BEG slot body: either the
// items/additionalItems/minItems/maxItems/uniqueItems constraint (the
// "main" array schema) or a hoisted ARR_CONTAINS re-scan (see
// cnode.translateSchema), each its own independent loop over the
// array's elements.
func (t *translator) translateArraySlot(r cnode.Ref) Ref {
	n := t.cf.At(r)
	if n.Kind == cnode.KValid {
		return t.allocStmt(Stmt{Kind: SValid})
	}
	if n.Kind == cnode.KInvalid {
		return t.allocStmt(Stmt{Kind: SInvalid, Code: InvalidUnexpectedToken})
	}

	var parts []cnode.Ref
	if n.Kind == cnode.KAnd {
		parts = n.Children
	} else {
		parts = []cnode.Ref{r}
	}

	var item *cnode.Node
	var itemRange *cnode.Node
	var unique bool
	var contains *cnode.Node
	for _, p := range parts {
		pn := t.cf.At(p)
		switch pn.Kind {
		case cnode.KArrItem:
			item = pn
		case cnode.KItemRange:
			itemRange = pn
		case cnode.KArrUnique:
			unique = true
		case cnode.KArrContains:
			contains = pn
		}
	}

	if contains != nil {
		return t.translateContainsSlot(contains)
	}

	idxCounterIdx := -1
	if itemRange != nil || item != nil {
		idxCounterIdx = t.newCounter()
	}
	uniqueIdx := -1
	if unique {
		uniqueIdx = t.newUniqueSet()
	}

	perItem := t.arrayPerItemStmt(item, idxCounterIdx, uniqueIdx)

	loopTok := t.allocStmt(Stmt{Kind: SToken})
	isEnd := t.allocExpr(Expr{Kind: EIsTok, TokKind: TokArrayEnd})
	brk := t.allocStmt(Stmt{Kind: SBreak, LoopName: "arr"})
	loopIf := t.allocStmt(Stmt{Kind: SIf, Cond: isEnd, Then: brk, Else: perItem})
	loopBody := t.allocStmt(Stmt{Kind: SSeq, Children: []Ref{loopTok, loopIf}})
	loop := t.allocStmt(Stmt{Kind: SLoop, LoopName: "arr", Children: []Ref{loopBody}})

	var final Ref
	if itemRange != nil {
		cond := t.countRangeCond(idxCounterIdx, itemRange)
		final = t.allocStmt(Stmt{
			Kind: SIf, Cond: cond,
			Then: t.allocStmt(Stmt{Kind: SValid}),
			Else: t.allocStmt(Stmt{Kind: SInvalid, Code: InvalidItemRange}),
		})
	} else {
		final = t.allocStmt(Stmt{Kind: SValid})
	}
	return t.allocStmt(Stmt{Kind: SSeq, Children: []Ref{loop, final}})
}

func (t *translator) arrayPerItemStmt(item *cnode.Node, idxCounterIdx, uniqueIdx int) Ref {
	var steps []Ref
	if uniqueIdx >= 0 {
		// Must run first, before the item's value schema consumes any
		// further tokens: the array loop's own lookahead SToken (the
		// one that tested for ARRAY_END) already holds this item's
		// first token, and SUniqueMark seeds the recording with it.
		steps = append(steps, t.allocStmt(Stmt{Kind: SUniqueMark, Index: uniqueIdx}))
	}
	if idxCounterIdx >= 0 {
		steps = append(steps, t.allocStmt(Stmt{Kind: SIncr, Index: idxCounterIdx, Delta: 1}))
	}

	var valueStmt Ref
	switch {
	case item == nil:
		valueStmt = t.allocStmt(Stmt{Kind: SValid})
	case len(item.ItemTuple) == 0:
		valueStmt = t.translateValueBody(item.ItemAdditional)
	default:
		// Tuple-typed items: each position's schema differs, so pick by
		// the running element-index counter via a nested comparison
		// chain, falling back to ItemAdditional past the tuple's end.
		valueStmt = t.tupleItemDispatch(item, idxCounterIdx)
	}
	steps = append(steps, valueStmt)

	if uniqueIdx >= 0 {
		// SUniqueTest runs after valueStmt, not before: the VM records a
		// canonical encoding of the element's tokens as a side effect of
		// the normal schema walk (a recording tee on the token source,
		// not a second independent read), so this is the first point a
		// complete encoding exists to test and record. Placing it last
		// also means an element that already fails its own schema never
		// reaches the dedup set, which is fine since the array is
		// invalid either way.
		steps = append(steps, t.allocStmt(Stmt{
			Kind:  SUniqueTest,
			Index: uniqueIdx,
			Then:  t.allocStmt(Stmt{Kind: SValid}),
			Else:  t.allocStmt(Stmt{Kind: SInvalid, Code: InvalidUnique}),
		}))
	}
	return t.allocStmt(Stmt{Kind: SSeq, Children: steps})
}

// tupleItemDispatch builds, for element index 1..len(tuple), a chain
// selecting ItemTuple[index-1]'s schema, and ItemAdditional once the
// index runs past the tuple. idxCounterIdx has already been
// incremented for the current element by the time this runs.
func (t *translator) tupleItemDispatch(item *cnode.Node, idxCounterIdx int) Ref {
	fallback := t.translateValueBody(item.ItemAdditional)
	chain := fallback
	for i := len(item.ItemTuple) - 1; i >= 0; i-- {
		cond := t.allocExpr(Expr{
			Kind: EEq,
			Left: t.allocExpr(Expr{Kind: ECount, CounterIndex: idxCounterIdx}),
			Right: t.allocExpr(Expr{Kind: ESize, Size: i + 1}),
		})
		body := t.translateValueBody(item.ItemTuple[i])
		chain = t.allocStmt(Stmt{Kind: SIf, Cond: cond, Then: body, Else: chain})
	}
	return chain
}

// translateContainsSlot lowers a hoisted ARR_CONTAINS: an independent
// scan of the whole array, counting how many elements satisfy Child,
// succeeding once that count is at least one.
func (t *translator) translateContainsSlot(n *cnode.Node) Ref {
	matchCounterIdx := t.newCounter()

	elemFrame := t.buildFrame(t.freshSplitLabel(), func() Ref {
		return t.translateValueSchema(n.Child)
	})
	splitCount := t.allocExpr(Expr{Kind: ESplit, SplitFrames: []Ref{elemFrame}, SplitKind: SplitAll})
	elemMatched := t.allocExpr(Expr{Kind: EEq, Left: splitCount, Right: t.allocExpr(Expr{Kind: ESize, Size: 1})})
	bump := t.allocStmt(Stmt{Kind: SIncr, Index: matchCounterIdx, Delta: 1})
	maybeBump := t.allocStmt(Stmt{Kind: SIf, Cond: elemMatched, Then: bump, Else: t.allocStmt(Stmt{Kind: SNop})})

	loopTok := t.allocStmt(Stmt{Kind: SToken})
	isEnd := t.allocExpr(Expr{Kind: EIsTok, TokKind: TokArrayEnd})
	brk := t.allocStmt(Stmt{Kind: SBreak, LoopName: "contains"})
	loopIf := t.allocStmt(Stmt{Kind: SIf, Cond: isEnd, Then: brk, Else: maybeBump})
	loopBody := t.allocStmt(Stmt{Kind: SSeq, Children: []Ref{loopTok, loopIf}})
	loop := t.allocStmt(Stmt{Kind: SLoop, LoopName: "contains", Children: []Ref{loopBody}})

	cond := t.allocExpr(Expr{
		Kind: EGe,
		Left: t.allocExpr(Expr{Kind: ECount, CounterIndex: matchCounterIdx}),
		Right: t.allocExpr(Expr{Kind: ESize, Size: 1}),
	})
	final := t.allocStmt(Stmt{
		Kind: SIf, Cond: cond,
		Then: t.allocStmt(Stmt{Kind: SValid}),
		Else: t.allocStmt(Stmt{Kind: SInvalid, Code: InvalidContains}),
	})
	return t.allocStmt(Stmt{Kind: SSeq, Children: []Ref{loop, final}})
}

// objectFinalCheck chains the required-properties check and the
// minProperties/maxProperties check as nested IFs (rather than one
// ANDed condition) so a rejection reports the InvalidCode matching
// whichever one actually failed.
func (t *translator) objectFinalCheck(reqBitvecIdx int, reqMask *cnode.Node, propCounterIdx int, propRange *cnode.Node) Ref {
	inner := t.allocStmt(Stmt{Kind: SValid})
	if propCounterIdx >= 0 && propRange != nil {
		cond := t.countRangeCond(propCounterIdx, propRange)
		inner = t.allocStmt(Stmt{
			Kind: SIf, Cond: cond,
			Then: t.allocStmt(Stmt{Kind: SValid}),
			Else: t.allocStmt(Stmt{Kind: SInvalid, Code: InvalidPropRange}),
		})
	}
	if reqBitvecIdx >= 0 && reqMask != nil {
		// All NBits required-property bits must have been set during
		// the scan; bit indices are contiguous 0..NBits-1 (see
		// cnode.canonifyRequired).
		allSet := NoExpr
		for i := 0; i < reqMask.NBits; i++ {
			bit := t.allocExpr(Expr{Kind: EBTest, BitvecIndex: reqBitvecIdx, BitIndex: i})
			if allSet == NoExpr {
				allSet = bit
			} else {
				allSet = t.allocExpr(Expr{Kind: EAnd, Left: allSet, Right: bit})
			}
		}
		inner = t.allocStmt(Stmt{
			Kind: SIf, Cond: allSet,
			Then: inner,
			Else: t.allocStmt(Stmt{Kind: SInvalid, Code: InvalidRequired}),
		})
	}
	return inner
}
