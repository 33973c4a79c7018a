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

import "github.com/katef/jvst-go/internal/dfa"

// Equal reports whether the trees rooted at ra (in fa) and rb (in fb)
// are structurally identical: same Kind at every node, same constant
// values, and the same shape of children, recursively. It never follows
// KRef by resolving the referenced tree (two trees that both reference
// the same id by label are equal without needing the referenced tree to
// be equal to itself), which keeps comparison well-defined on forests
// with cycles. This backs dump-equality tests that compare a
// freshly-canonified tree against a golden fixture.
func Equal(fa *Forest, ra Ref, fb *Forest, rb Ref) bool {
	if ra == NoRef || rb == NoRef {
		return ra == rb
	}
	na, nb := fa.At(ra), fb.At(rb)
	if na.Kind != nb.Kind {
		return false
	}

	switch na.Kind {
	case KInvalid, KValid:
		return true
	case KAnd, KOr, KXor:
		return equalRefSlice(fa, na.Children, fb, nb.Children)
	case KNot:
		return Equal(fa, na.Child, fb, nb.Child)
	case KSwitch:
		for i := range na.Switch {
			if !Equal(fa, na.Switch[i], fb, nb.Switch[i]) {
				return false
			}
		}
		return true
	case KLengthRange, KPropRange, KItemRange:
		return na.Min == nb.Min && na.Max == nb.Max && na.UpperBound == nb.UpperBound
	case KStrMatch:
		return na.Pattern == nb.Pattern && na.Anchored == nb.Anchored
	case KNumRange:
		return na.Min == nb.Min && na.Max == nb.Max && na.Flags == nb.Flags
	case KNumInteger:
		return true
	case KNumMultipleOf:
		return na.MultipleOf == nb.MultipleOf
	case KObjPropSet:
		if len(na.Props) != len(nb.Props) {
			return false
		}
		for i := range na.Props {
			if na.Props[i].Pattern != nb.Props[i].Pattern || na.Props[i].Anchored != nb.Props[i].Anchored {
				return false
			}
			if !Equal(fa, na.Props[i].Value, fb, nb.Props[i].Value) {
				return false
			}
		}
		return Equal(fa, na.Default, fb, nb.Default) && Equal(fa, na.NameConstraint, fb, nb.NameConstraint)
	case KObjPropMatch:
		return na.Pattern == nb.Pattern && na.Anchored == nb.Anchored && Equal(fa, na.Child, fb, nb.Child)
	case KObjPropDefault, KObjPropNames, KArrContains:
		return Equal(fa, na.Child, fb, nb.Child)
	case KObjRequired:
		return equalStringSlice(na.Required, nb.Required)
	case KArrItem:
		if !equalRefSlice(fa, na.ItemTuple, fb, nb.ItemTuple) {
			return false
		}
		return Equal(fa, na.ItemAdditional, fb, nb.ItemAdditional)
	case KArrUnique:
		return true
	case KRef:
		return fa.Arena.String(na.RefLabel) == fb.Arena.String(nb.RefLabel)
	case KObjReqMask:
		return na.NBits == nb.NBits && equalStringSlice(na.Required, nb.Required)
	case KObjReqBit:
		return na.BitIndex == nb.BitIndex && na.Pattern == nb.Pattern
	case KMatchSwitch:
		if !equalDFA(na.MatchDFA, nb.MatchDFA) {
			return false
		}
		if len(na.Cases) != len(nb.Cases) {
			return false
		}
		for i := range na.Cases {
			ca, cb := na.Cases[i], nb.Cases[i]
			if !equalIntSlice(ca.Labels, cb.Labels) {
				return false
			}
			if !Equal(fa, ca.NameConstraint, fb, cb.NameConstraint) {
				return false
			}
			if !Equal(fa, ca.ValueConstraint, fb, cb.ValueConstraint) {
				return false
			}
		}
		return Equal(fa, na.Default, fb, nb.Default) && Equal(fa, na.NameConstraint, fb, nb.NameConstraint)
	case KMatchCase:
		return true
	default:
		return false
	}
}

func equalRefSlice(fa *Forest, a []Ref, fb *Forest, b []Ref) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(fa, a[i], fb, b[i]) {
			return false
		}
	}
	return true
}

func equalStringSlice(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func equalIntSlice(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func equalDFA(a, b *dfa.DFA) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.NStates != b.NStates {
		return false
	}
	for s := 0; s < a.NStates; s++ {
		if !equalIntSlice(a.Labels(int32(s)), b.Labels(int32(s))) {
			return false
		}
		at, bt := a.Trans[s], b.Trans[s]
		for i := range at {
			if at[i] != bt[i] {
				return false
			}
		}
	}
	return true
}
