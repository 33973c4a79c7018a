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

// Package ir is the tree-shaped intermediate representation a
// constraint forest (cnode.Forest) is translated into before op
// assembly: statements describe control flow (sequencing, branching,
// looping over object/array bodies), expressions describe the boolean
// and arithmetic conditions those branches test. This mirrors
// original_source's validate_ir.h almost declaration-for-declaration,
// translated to the arena+index idiom the rest of this compiler uses.
package ir

import (
	"fmt"

	"github.com/katef/jvst-go/internal/dfa"
)

// Ref indexes a Stmt in a Program's statement arena.
type Ref int32

// NoRef is the absence of a statement.
const NoRef Ref = -1

// ExprRef indexes an Expr in a Program's expression arena.
type ExprRef int32

// NoExpr is the absence of an expression.
const NoExpr ExprRef = -1

// StmtKind classifies a Stmt.
type StmtKind int

const (
	SInvalid StmtKind = iota
	SNop
	SValid
	SIf
	SLoop
	SSeq
	SBreak
	SToken
	SConsume
	SFrame
	SCounter
	SMatcher
	SBitvector
	SBSet
	SBClear
	SIncr
	SDecr
	SMatch
	// SCall is a Go-specific extension beyond validate_ir.h: it invokes
	// another named frame (the translation of a $ref target) and treats
	// its VALID/INVALID result as this statement's own. The C original
	// has no equivalent because it inlines $ref targets during cnode
	// construction; this compiler keeps them as separate callable
	// frames instead, to support recursive schemas ($ref cycles)
	// without infinite tree expansion.
	SCall

	// SUniqueDecl and SUniqueTest are Go-specific extensions for
	// ARR_UNIQUE: validate_ir.h has no content-hashing primitive since
	// the source keeps a single running comparison strategy outside the
	// IR entirely. SUniqueDecl reserves one frame-local dedup set;
	// SUniqueTest fetches no token: it takes the canonical encoding
	// recorded for the current array element, records it in that set,
	// and branches to Then if it was not already present (now recorded)
	// or Else if an equal value was already recorded, the same Then/Else
	// fields SIf uses.
	SUniqueDecl
	SUniqueTest

	// SUniqueMark is a Go-specific extension alongside SUniqueTest: it
	// seeds dedup set Index's per-item recording buffer with the
	// current token (the array loop's own lookahead token, already
	// fetched before the item's value schema runs) and starts teeing
	// every subsequent token fetch into it, so SUniqueTest has a
	// complete canonical encoding of the item by the time it runs
	// regardless of how deeply nested the item's value is.
	SUniqueMark
)

// InvalidCode identifies why a frame rejected its input. The first
// three values match original_source's jvst_invalid_code exactly; the
// rest extend it to cover every rejection this compiler's constraint
// kinds can raise, since the source's enum predates most of them.
type InvalidCode int

const (
	InvalidUnexpectedToken InvalidCode = iota + 1
	InvalidNotInteger
	InvalidNumber
	InvalidNumRange
	InvalidMultipleOf
	InvalidLengthRange
	InvalidPatternMismatch
	InvalidPropRange
	InvalidItemRange
	InvalidRequired
	InvalidUnique
	InvalidContains
	InvalidAdditionalProperty
	InvalidPropertyName
	InvalidSplitCondition
	InvalidNot
	InvalidRef
)

var invalidCodeNames = map[InvalidCode]string{
	InvalidUnexpectedToken:    "UNEXPECTED_TOKEN",
	InvalidNotInteger:         "NOT_INTEGER",
	InvalidNumber:             "NUMBER_OUT_OF_RANGE",
	InvalidNumRange:           "NUM_RANGE",
	InvalidMultipleOf:         "MULTIPLE_OF",
	InvalidLengthRange:        "LENGTH_RANGE",
	InvalidPatternMismatch:    "PATTERN_MISMATCH",
	InvalidPropRange:          "PROPERTY_RANGE",
	InvalidItemRange:          "ITEM_RANGE",
	InvalidRequired:           "REQUIRED",
	InvalidUnique:             "UNIQUE",
	InvalidContains:           "CONTAINS",
	InvalidAdditionalProperty: "ADDITIONAL_PROPERTY",
	InvalidPropertyName:       "PROPERTY_NAME",
	InvalidSplitCondition:     "SPLIT_CONDITION",
	InvalidNot:                "NOT",
	InvalidRef:                "REF",
}

func (c InvalidCode) String() string {
	if s, ok := invalidCodeNames[c]; ok {
		return s
	}
	return fmt.Sprintf("InvalidCode(%d)", int(c))
}

// ExprKind classifies an Expr.
type ExprKind int

const (
	ENone ExprKind = iota
	ENum
	ESize
	EBool
	ETokType
	ETokNum
	ETokComplete
	ETokLen
	ECount
	EBTest
	EIsTok
	EAnd
	EOr
	ENot
	ENe
	ELt
	ELe
	EEq
	EGe
	EGt
	EIsInt
	ESplit

	// EMultipleOf is a Go-specific extension beyond validate_ir.h's
	// expression enum, which has no division/modulo primitive: it tests
	// whether Num (a token's numeric value) is an integer multiple of
	// MultipleOf, the way NUM_MULTIPLE_OF needs to.
	EMultipleOf
)

// TokKind is the event kind an ETokType/EIsTok expression reasons
// about; it is numerically identical to cnode.EventKind but declared
// locally so ir does not need to import cnode (translate.go, the only
// file that bridges the two, imports both).
type TokKind int

const (
	TokNull TokKind = iota
	TokTrue
	TokFalse
	TokNumber
	TokString
	TokObjectBeg
	TokObjectEnd
	TokArrayBeg
	TokArrayEnd
)

// SplitKind says how a SPLIT expression's frame-pass-count is compared
// to decide pass/fail; it is recorded on the ESplit expression, while
// the comparison itself is the condition of the IF that tests it, mirroring how
// original_source lowers AND/OR/XOR/NOT all through the same SPLIT
// primitive with a different post-count comparison.
type SplitKind int

const (
	SplitAll SplitKind = iota // AND: every frame must return valid
	SplitAny                 // OR: at least one frame valid
	SplitOne                 // XOR: exactly one frame valid
	SplitNone                 // NOT: the single frame must be invalid
)

// Stmt is one IR statement. Meaningful fields depend on Kind.
type Stmt struct {
	Kind StmtKind

	// SIf.
	Cond            ExprRef
	Then, Else      Ref

	// SSeq, SFrame (body), SLoop (body): ordered children.
	Children []Ref

	// SLoop, SBreak: loop identity.
	LoopName string

	// SFrame: declares a callable validation frame. NCounters/
	// NMatchers/NBitvectors size its local storage; Label names it (for
	// SCall resolution and for $ref targets). Program.Entry names the
	// frame with no incoming SCall, i.e. the document root.
	Label        string
	NCounters    int
	NMatchers    int
	NBitvectors  int
	NUniqueSets  int

	// SCounter, SMatcher, SBitvector: declaration index within the
	// enclosing frame's counters/matchers/bitvectors space.
	Index int
	// SMatcher only: the compiled automaton it runs.
	MatcherDFA *dfa.DFA

	// SBSet, SBClear: which bitvector (Index, reused) and which bit.
	BitIndex int

	// SIncr, SDecr: which counter (Index, reused) and the delta.
	Delta int

	// SInvalid.
	Code InvalidCode
	Msg  string

	// SMatch: which matcher (Index, reused), its cases, and the
	// fallback for tokens accepted by no case.
	Cases       []MatchCase
	Default     Ref

	// SCall: the target frame's Label.
	Callee string
}

// MatchCase is one SMatch arm: the DFA labels it fires for (mirrors
// cnode.MatchCaseEntry.Labels) and the statement to run.
type MatchCase struct {
	Labels []int
	Stmt   Ref
}

// Expr is one IR expression. Meaningful fields depend on Kind.
type Expr struct {
	Kind ExprKind

	Num  float64
	Size int
	Bool bool

	TokKind TokKind // ETokType literal comparand / EIsTok target

	Left, Right ExprRef // EAnd, EOr, ENe/ELt/ELe/EEq/EGe/EGt
	Arg         ExprRef // ENot, EIsInt

	CounterIndex int // ECount
	BitvecIndex  int // EBTest
	BitIndex     int // EBTest

	MultipleOf float64 // EMultipleOf

	// ESplit: the child frames (each an SFrame Stmt) run in lock-step;
	// the expression's value is how many returned valid.
	SplitFrames []Ref
	SplitKind   SplitKind
}

// Program holds every Stmt/Expr allocated while translating one
// cnode.Forest, plus the Frames callable by name (document roots and
// $ref targets alike).
type Program struct {
	Stmts []Stmt
	Exprs []Expr

	// Frames maps a frame's Label to the Ref of its SFrame statement.
	Frames map[string]Ref
	// Entry is the Label of the document's root frame.
	Entry string
}

// NewProgram returns an empty Program.
func NewProgram() *Program {
	return &Program{Frames: map[string]Ref{}}
}

// Alloc appends s to the statement arena and returns its Ref.
func (p *Program) Alloc(s Stmt) Ref {
	p.Stmts = append(p.Stmts, s)
	return Ref(len(p.Stmts) - 1)
}

// AllocExpr appends e to the expression arena and returns its ExprRef.
func (p *Program) AllocExpr(e Expr) ExprRef {
	p.Exprs = append(p.Exprs, e)
	return ExprRef(len(p.Exprs) - 1)
}

// At returns a pointer to the statement r refers to.
func (p *Program) At(r Ref) *Stmt { return &p.Stmts[r] }

// Expr returns a pointer to the expression r refers to.
func (p *Program) Expr(r ExprRef) *Expr { return &p.Exprs[r] }
