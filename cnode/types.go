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

// Package cnode implements the constraint tree (CNode), the high-level
// typed IR a JSON-Schema document is first translated into, and the two
// rewrite passes that bring it to canonical form: Simplify and Canonify.
//
// Nodes live in a Forest's arena and refer to each other by Ref (an
// index), an arena+index design rather than the raw-pointer/
// shared-reference style of the C original: each
// pass owns a typed arena, and cross-pass references (id -> frame index)
// are plain maps (see internal/idtbl).
package cnode

import (
	"github.com/katef/jvst-go/internal/dfa"
	"github.com/katef/jvst-go/internal/idtbl"
)

// Ref indexes a Node inside a Forest's arena. The zero value is a
// valid Ref (the first node allocated); use NoRef for "no node".
type Ref int32

// NoRef represents the absence of a child/subtree reference.
const NoRef Ref = -1

// Kind classifies a Node: control, token-switch, constraint, and
// (post-canonify) canonical-only kinds.
type Kind uint8

const (
	KInvalid Kind = iota
	KValid
	KAnd
	KOr
	KXor
	KNot

	KSwitch

	KLengthRange
	KPropRange
	KItemRange

	KStrMatch

	KNumRange
	KNumInteger
	KNumMultipleOf

	KObjPropSet
	KObjPropMatch
	KObjPropDefault
	KObjPropNames
	KObjRequired

	KArrItem
	KArrUnique
	KArrContains

	KRef

	// Canonical-only: produced by Canonify, never by Translate.
	KObjReqMask
	KObjReqBit
	KMatchSwitch
	KMatchCase
)

func (k Kind) String() string {
	switch k {
	case KInvalid:
		return "INVALID"
	case KValid:
		return "VALID"
	case KAnd:
		return "AND"
	case KOr:
		return "OR"
	case KXor:
		return "XOR"
	case KNot:
		return "NOT"
	case KSwitch:
		return "SWITCH"
	case KLengthRange:
		return "LENGTH_RANGE"
	case KPropRange:
		return "PROP_RANGE"
	case KItemRange:
		return "ITEM_RANGE"
	case KStrMatch:
		return "STR_MATCH"
	case KNumRange:
		return "NUM_RANGE"
	case KNumInteger:
		return "NUM_INTEGER"
	case KNumMultipleOf:
		return "NUM_MULTIPLE_OF"
	case KObjPropSet:
		return "OBJ_PROP_SET"
	case KObjPropMatch:
		return "OBJ_PROP_MATCH"
	case KObjPropDefault:
		return "OBJ_PROP_DEFAULT"
	case KObjPropNames:
		return "OBJ_PROP_NAMES"
	case KObjRequired:
		return "OBJ_REQUIRED"
	case KArrItem:
		return "ARR_ITEM"
	case KArrUnique:
		return "ARR_UNIQUE"
	case KArrContains:
		return "ARR_CONTAINS"
	case KRef:
		return "REF"
	case KObjReqMask:
		return "REQMASK"
	case KObjReqBit:
		return "REQBIT"
	case KMatchSwitch:
		return "MATCH_SWITCH"
	case KMatchCase:
		return "MATCH_CASE"
	default:
		return "?"
	}
}

// EventKind is one of the 9 JSON token kinds a SWITCH node dispatches
// on.
type EventKind int

const (
	EvNull EventKind = iota
	EvTrue
	EvFalse
	EvNumber
	EvString
	EvObjectBeg
	EvObjectEnd
	EvArrayBeg
	EvArrayEnd
	NumEventKinds
)

// RangeFlags marks which bounds of a NUM_RANGE are active.
type RangeFlags uint8

const (
	RangeMin RangeFlags = 1 << iota
	RangeMax
	RangeExclMin
	RangeExclMax
)

func (f RangeFlags) has(bit RangeFlags) bool { return f&bit != 0 }

// PropMatch is one properties/patternProperties entry: a labeled
// pattern and the subtree it guards (an OBJ_PROP_MATCH entry).
type PropMatch struct {
	Pattern  string
	Anchored bool
	Value    Ref // value constraint, applied to the property's value
}

// MatchCaseEntry is one accepting-state case of a canonical
// MATCH_SWITCH: the set of original pattern labels accepting in that
// state, plus the (already-intersected) name and value constraints for
// it.
type MatchCaseEntry struct {
	Labels          []int // origin indices into the pre-canonify pattern list, ascending
	NameConstraint  Ref   // NoRef if none
	ValueConstraint Ref
}

// Node is one constraint-tree node. Which fields are meaningful depends
// on Kind; see the comment on each Kind's zone below. This mirrors the
// tagged union of original_source's struct jvst_cnode, translated to
// Go's idiom of one struct with kind-dependent fields rather than a
// union, since arena-indexed trees make an interface-per-kind
// representation needlessly indirect here.
type Node struct {
	Kind Kind

	// KAnd, KOr, KXor: ordered, non-empty child list (invariant 3).
	// KMatchSwitch leaves it empty; its subtrees live in Cases.
	Children []Ref

	// KNot: the single negated child.
	Child Ref

	// KSwitch: one child per EventKind slot.
	Switch [NumEventKinds]Ref

	// KLengthRange, KPropRange, KItemRange: integer bounds.
	// KNumRange: float bounds, gated by Flags.
	Min, Max   float64
	Flags      RangeFlags // KNumRange only
	UpperBound bool       // KLengthRange/KPropRange/KItemRange: Max is active

	// KStrMatch: the pattern applied to a STRING token's value.
	Pattern  string
	Anchored bool

	// KNumMultipleOf.
	MultipleOf float64

	// KObjPropSet: entries plus optional default/name constraint.
	Props          []PropMatch
	Default        Ref // KObjPropDefault subtree, NoRef if absent (additionalProperties)
	NameConstraint Ref // KObjPropNames subtree, NoRef if absent (propertyNames)

	// KObjPropDefault, KObjPropNames: wrapped subtree.
	// (reuses Child)

	// KObjRequired: required property names.
	Required []string

	// KObjReqMask: width of the frame-level required bitvector.
	NBits int
	// KObjReqBit: which bit this occurrence sets/tests.
	BitIndex int

	// KArrItem: tuple items (possibly empty) plus the additionalItems
	// (or single "items") subtree.
	ItemTuple      []Ref
	ItemAdditional Ref

	// KArrContains: the subtree each array must contain at least once.
	// (reuses Child)

	// KRef: the resolved schema id this node refers to.
	RefLabel idtbl.Label

	// KMatchSwitch: the compiled automaton over the original Props
	// patterns (by origin index, matching MatchCaseEntry.Labels), plus
	// one case entry per reachable accepting state, in ascending
	// end-state order (the tie-break rule).
	MatchDFA *dfa.DFA
	Cases    []MatchCaseEntry
}

// Forest is an ordered list of CNode trees (one for the document root
// and one per $ref target; other $id / JSON-pointer locations get no
// tree of their own) plus the id tables used to resolve $ref.
type Forest struct {
	Nodes []Node // arena; Ref indexes into this slice

	// Roots[i] is the Ref of the i-th tree; Labels[i] names it (its
	// JSON-pointer path or $id).
	Roots  []Ref
	Labels []idtbl.Label

	Arena *idtbl.Arena

	// AllIDs maps the label of each tree in Roots (the document root and
	// every $ref target) to that tree's Ref; labels of other locations
	// are absent.
	AllIDs map[idtbl.Label]Ref
	// RefIDs is the set of labels that are the target of some $ref.
	RefIDs map[idtbl.Label]bool
}

// NewForest returns an empty Forest backed by a fresh interning arena.
func NewForest() *Forest {
	return &Forest{
		Arena:  idtbl.NewArena(),
		AllIDs: make(map[idtbl.Label]Ref),
		RefIDs: make(map[idtbl.Label]bool),
	}
}

// Alloc appends n to the arena and returns its Ref.
func (f *Forest) Alloc(n Node) Ref {
	f.Nodes = append(f.Nodes, n)
	return Ref(len(f.Nodes) - 1)
}

// At returns a pointer to the node referred to by r, so callers can
// mutate it in place during rewrite passes.
func (f *Forest) At(r Ref) *Node {
	return &f.Nodes[r]
}

// AddRoot registers a new root tree under label, returning its Ref slot
// (initially KInvalid; callers fill it in via At).
func (f *Forest) AddRoot(label idtbl.Label) Ref {
	r := f.Alloc(Node{Kind: KInvalid})
	f.Roots = append(f.Roots, r)
	f.Labels = append(f.Labels, label)
	f.AllIDs[label] = r
	return r
}
