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

package cnode

import (
	"github.com/katef/jvst-go/internal/dfa"
)

// Canonify rewrites every tree in f into canonical-only form:
// each OBJ_REQUIRED becomes an indexed
// bitvector (REQMASK declaring the width, one REQBIT per name), and
// each OBJ_PROP_SET's pattern list (properties + patternProperties)
// becomes a single MATCH_SWITCH over a compiled DFA, with cases merged
// per the tie-break rule (ascending accepting-state order; multiple
// patterns accepting in the same state AND their value constraints
// together, in ascending origin-index order). Canonify must run after
// Simplify.
func Canonify(f *Forest) (*Forest, error) {
	c := &canonifier{f: f}
	for i, root := range f.Roots {
		r, err := c.canonify(root)
		if err != nil {
			return nil, err
		}
		f.Roots[i] = r
	}
	for lbl, r := range f.AllIDs {
		nr, err := c.canonify(r)
		if err != nil {
			return nil, err
		}
		f.AllIDs[lbl] = nr
	}
	return f, nil
}

type canonifier struct {
	f    *Forest
	seen map[Ref]Ref
}

func (c *canonifier) canonify(r Ref) (Ref, error) {
	if r == NoRef {
		return r, nil
	}
	if c.seen == nil {
		c.seen = map[Ref]Ref{}
	}
	if done, ok := c.seen[r]; ok {
		return done, nil
	}
	n := *c.f.At(r)

	for i, ch := range n.Children {
		nr, err := c.canonify(ch)
		if err != nil {
			return NoRef, err
		}
		n.Children[i] = nr
	}
	if n.Child != NoRef {
		nr, err := c.canonify(n.Child)
		if err != nil {
			return NoRef, err
		}
		n.Child = nr
	}
	for i, ch := range n.Switch {
		if ch == NoRef {
			continue
		}
		nr, err := c.canonify(ch)
		if err != nil {
			return NoRef, err
		}
		n.Switch[i] = nr
	}
	for i := range n.Props {
		nr, err := c.canonify(n.Props[i].Value)
		if err != nil {
			return NoRef, err
		}
		n.Props[i].Value = nr
	}
	if n.NameConstraint != NoRef {
		nr, err := c.canonify(n.NameConstraint)
		if err != nil {
			return NoRef, err
		}
		n.NameConstraint = nr
	}
	if n.Default != NoRef {
		nr, err := c.canonify(n.Default)
		if err != nil {
			return NoRef, err
		}
		n.Default = nr
	}
	for i, ch := range n.ItemTuple {
		nr, err := c.canonify(ch)
		if err != nil {
			return NoRef, err
		}
		n.ItemTuple[i] = nr
	}
	if n.ItemAdditional != NoRef {
		nr, err := c.canonify(n.ItemAdditional)
		if err != nil {
			return NoRef, err
		}
		n.ItemAdditional = nr
	}

	result := r
	*c.f.At(r) = n

	switch n.Kind {
	case KObjRequired:
		result = c.canonifyRequired(r, &n)
	case KObjPropSet:
		var err error
		result, err = c.canonifyPropSet(r, &n)
		if err != nil {
			return NoRef, err
		}
	}
	c.seen[r] = result
	return result, nil
}

// canonifyRequired turns a name-list OBJ_REQUIRED into
// AND(REQMASK{NBits}, REQBIT{0,name0}, REQBIT{1,name1}, ...). REQMASK
// declares a frame-local bitvector of that width, implicitly zeroed on
// frame entry and checked all-set at frame validation; each REQBIT
// names the property (by exact name, via Pattern) whose presence during
// the object scan sets that bit. Downstream IR translation ties REQBIT
// occurrences to the MATCH_SWITCH case(s) that match the same name.
func (c *canonifier) canonifyRequired(r Ref, n *Node) Ref {
	f := c.f
	if len(n.Required) == 0 {
		return f.Alloc(Node{Kind: KValid})
	}
	mask := f.Alloc(Node{Kind: KObjReqMask, NBits: len(n.Required), Required: n.Required})
	children := []Ref{mask}
	for i, name := range n.Required {
		children = append(children, f.Alloc(Node{Kind: KObjReqBit, BitIndex: i, Pattern: name}))
	}
	return f.Alloc(Node{Kind: KAnd, Children: children})
}

// canonifyPropSet compiles Props into a single DFA and lowers the node
// into a MATCH_SWITCH. The DFA's accepting states are visited in
// ascending order (the tie-break rule: when several
// source patterns accept in the same state, they are merged in
// ascending origin-index order, lowest index first in Labels). A
// propertyNames constraint applies uniformly to every matched and
// unmatched property name, so it is attached to every case and kept in
// the MATCH_SWITCH's NameConstraint; Default is carried over unchanged.
func (c *canonifier) canonifyPropSet(r Ref, n *Node) (Ref, error) {
	f := c.f
	if len(n.Props) == 0 {
		if n.Default == NoRef && n.NameConstraint == NoRef {
			return f.Alloc(Node{Kind: KValid}), nil
		}
		// No explicit patterns: a bare additionalProperties/propertyNames
		// constraint applies to every property uniformly; model it as a
		// MATCH_SWITCH with zero patterns (DFA that never accepts), so
		// every name falls through to Default/NameConstraint.
		d, err := dfa.Build(nil, dfa.Options{})
		if err != nil {
			return NoRef, err
		}
		return f.Alloc(Node{Kind: KMatchSwitch, MatchDFA: d, Default: n.Default, NameConstraint: n.NameConstraint}), nil
	}

	pats := make([]dfa.Pattern, len(n.Props))
	for i, p := range n.Props {
		pats[i] = dfa.Pattern{Label: i, Regexp: p.Pattern, Anchored: p.Anchored}
	}
	d, err := dfa.Build(pats, dfa.Options{})
	if err != nil {
		return NoRef, err
	}

	var cases []MatchCaseEntry
	for s := 0; s < d.NStates; s++ {
		labels := d.Labels(int32(s))
		if len(labels) == 0 {
			continue
		}
		var valueRefs []Ref
		for _, lbl := range labels {
			valueRefs = append(valueRefs, n.Props[lbl].Value)
		}
		cases = append(cases, MatchCaseEntry{
			Labels:          append([]int(nil), labels...),
			NameConstraint:  n.NameConstraint,
			ValueConstraint: f.andAll(valueRefs),
		})
	}

	return f.Alloc(Node{
		Kind:           KMatchSwitch,
		MatchDFA:       d,
		Cases:          cases,
		Default:        n.Default,
		NameConstraint: n.NameConstraint,
	}), nil
}
