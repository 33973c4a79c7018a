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

// Simplify rewrites every tree in f to a fixed point, applying
// structural rules only: flattening associative AND/OR/XOR, dropping
// VALID/INVALID absorbing and identity elements, eliding single-child
// combinators, collapsing an all-constant SWITCH to that constant, and
// dropping no-op property-set wrappers. It mutates f in place and also
// returns f for convenience chaining.
//
// It does not merge sibling range or property-set constraints, nor
// distribute AND over SWITCH; those are deferred (see DESIGN.md) since
// canonify's DFA construction already collapses the SWITCH-level
// redundancy they would target, and no case has yet needed the finer
// constraint-level merge.
func Simplify(f *Forest) *Forest {
	s := &simplifier{f: f}
	for _, root := range f.Roots {
		s.f.Nodes[root] = *s.f.At(s.rewrite(root))
	}
	return f
}

type simplifier struct {
	f *Forest
}

// rewrite applies rules bottom-up, then repeats at the current node
// until a pass makes no further change (a fixed point is reached
// quickly in practice since each rule strictly shrinks the tree).
func (s *simplifier) rewrite(r Ref) Ref {
	if r == NoRef {
		return r
	}
	n := s.f.At(r)
	s.rewriteChildren(n)

	for {
		next, changed := s.rewriteOnce(r)
		if !changed {
			return next
		}
		r = next
	}
}

func (s *simplifier) rewriteChildren(n *Node) {
	for i, c := range n.Children {
		n.Children[i] = s.rewrite(c)
	}
	if n.Child != NoRef {
		n.Child = s.rewrite(n.Child)
	}
	for i, c := range n.Switch {
		if c != NoRef {
			n.Switch[i] = s.rewrite(c)
		}
	}
	for i := range n.Props {
		n.Props[i].Value = s.rewrite(n.Props[i].Value)
	}
	if n.Default != NoRef {
		n.Default = s.rewrite(n.Default)
	}
	if n.NameConstraint != NoRef {
		n.NameConstraint = s.rewrite(n.NameConstraint)
	}
	for i, c := range n.ItemTuple {
		n.ItemTuple[i] = s.rewrite(c)
	}
	if n.ItemAdditional != NoRef {
		n.ItemAdditional = s.rewrite(n.ItemAdditional)
	}
}

// rewriteOnce applies a single top-level rule at r, returning the
// rewritten Ref and whether anything changed.
func (s *simplifier) rewriteOnce(r Ref) (Ref, bool) {
	n := s.f.At(r)
	switch n.Kind {
	case KAnd, KOr:
		return s.flattenAssoc(r, n)
	case KXor:
		return s.flattenXor(r, n)
	case KNot:
		return s.simplifyNot(r, n)
	case KSwitch:
		return s.simplifySwitch(r, n)
	case KObjPropSet:
		return s.simplifyPropSet(r, n)
	}
	return r, false
}

// flattenAssoc flattens nested AND-of-AND / OR-of-OR, drops the
// absorbing/identity element (VALID in AND, INVALID in OR is identity;
// INVALID in AND / VALID in OR short-circuits the whole node), and
// elides a single remaining child.
func (s *simplifier) flattenAssoc(r Ref, n *Node) (Ref, bool) {
	identity, absorb := KValid, KInvalid
	if n.Kind == KOr {
		identity, absorb = KInvalid, KValid
	}
	changed := false
	var flat []Ref
	for _, c := range n.Children {
		cn := s.f.At(c)
		if cn.Kind == absorb {
			return s.f.Alloc(Node{Kind: absorb}), true
		}
		if cn.Kind == identity {
			changed = true
			continue
		}
		if cn.Kind == n.Kind {
			flat = append(flat, cn.Children...)
			changed = true
			continue
		}
		flat = append(flat, c)
	}
	if len(flat) == 0 {
		return s.f.Alloc(Node{Kind: identity}), true
	}
	if len(flat) == 1 {
		return flat[0], true
	}
	if !changed {
		return r, false
	}
	return s.f.Alloc(Node{Kind: n.Kind, Children: flat}), true
}

// flattenXor drops INVALID children per the literal SPLIT-count
// semantics (SPEC_FULL.md's Open Question decision): XOR has no
// absorbing element short of being fully resolved, since whether
// exactly one child holds can depend on any of them. It only elides a
// single remaining child after dropping structurally-constant ones that
// can never hold (INVALID) — VALID children are kept, since more than
// one VALID child makes the XOR unsatisfiable (count != 1) rather than
// trivially true.
func (s *simplifier) flattenXor(r Ref, n *Node) (Ref, bool) {
	changed := false
	var flat []Ref
	for _, c := range n.Children {
		if s.f.At(c).Kind == KInvalid {
			changed = true
			continue
		}
		flat = append(flat, c)
	}
	if len(flat) == 0 {
		return s.f.Alloc(Node{Kind: KInvalid}), true
	}
	if len(flat) == 1 {
		return flat[0], true
	}
	if !changed {
		return r, false
	}
	return s.f.Alloc(Node{Kind: KXor, Children: flat}), true
}

// simplifyNot cancels NOT(NOT(x)) -> x and resolves NOT of a constant.
func (s *simplifier) simplifyNot(r Ref, n *Node) (Ref, bool) {
	c := s.f.At(n.Child)
	switch c.Kind {
	case KNot:
		return c.Child, true
	case KValid:
		return s.f.Alloc(Node{Kind: KInvalid}), true
	case KInvalid:
		return s.f.Alloc(Node{Kind: KValid}), true
	}
	return r, false
}

// simplifySwitch drops a SWITCH entirely when every slot is the same
// constant kind (VALID or INVALID): such a SWITCH accepts/rejects every
// token uniformly, so it collapses to that constant.
func (s *simplifier) simplifySwitch(r Ref, n *Node) (Ref, bool) {
	kind := s.f.At(n.Switch[0]).Kind
	if kind != KValid && kind != KInvalid {
		return r, false
	}
	for _, c := range n.Switch[1:] {
		if s.f.At(c).Kind != kind {
			return r, false
		}
	}
	return s.f.Alloc(Node{Kind: kind}), true
}

// simplifyPropSet drops a Default of VALID wrapped pointlessly, and
// merges a NameConstraint of VALID away (both are no-ops, but keeping
// them out of the tree keeps downstream canonify's DFA smaller).
func (s *simplifier) simplifyPropSet(r Ref, n *Node) (Ref, bool) {
	changed := false
	if n.Default != NoRef {
		if d := s.f.At(n.Default); d.Kind == KObjPropDefault && s.f.At(d.Child).Kind == KValid {
			n.Default = NoRef
			changed = true
		}
	}
	if n.NameConstraint != NoRef {
		if nc := s.f.At(n.NameConstraint); nc.Kind == KObjPropNames && s.f.At(nc.Child).Kind == KValid {
			n.NameConstraint = NoRef
			changed = true
		}
	}
	if len(n.Props) == 0 && n.Default == NoRef && n.NameConstraint == NoRef {
		return s.f.Alloc(Node{Kind: KValid}), true
	}
	return r, changed
}
