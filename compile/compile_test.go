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

package compile_test

import (
	"strings"
	"testing"

	"github.com/katef/jvst-go/compile"
	"github.com/katef/jvst-go/ir"
	"github.com/katef/jvst-go/schemaast"
	"github.com/katef/jvst-go/vm"
)

// fakeSource is the same one-event-per-Feed-call TokenSource double
// vm_test.go uses, duplicated here rather than exported from vm, since
// only tests need it.
type fakeSource struct {
	events   []vm.Event
	pos      int
	unlocked int
}

func (f *fakeSource) Feed(b []byte) {
	if len(b) > 0 {
		f.unlocked++
	}
}

func (f *fakeSource) Next(ev *vm.Event) (vm.Status, error) {
	if f.pos >= f.unlocked || f.pos >= len(f.events) {
		return vm.StatusMore, nil
	}
	*ev = f.events[f.pos]
	f.pos++
	return vm.StatusValid, nil
}

func run(t *testing.T, m *vm.Machine, nEvents int) (vm.Status, vm.Code, error) {
	t.Helper()
	var st vm.Status
	var code vm.Code
	var err error
	for i := 0; i < nEvents+1; i++ {
		st, code, err = m.Step([]byte{1})
		if st != vm.StatusMore {
			return st, code, err
		}
	}
	return st, code, err
}

func mustParse(t *testing.T, schema string) *schemaast.Node {
	t.Helper()
	n, err := schemaast.Parse(strings.NewReader(schema))
	if err != nil {
		t.Fatalf("schemaast.Parse: %v", err)
	}
	return n
}

// TestCompile_ScalarType compiles {"type": "number"} end to end and
// checks the resulting program accepts a NUMBER and rejects a STRING,
// exercising the full cnode -> ir -> opasm -> vmprog -> vm pipeline at
// once.
func TestCompile_ScalarType(t *testing.T) {
	schema := mustParse(t, `{"type": "number"}`)
	prog, err := compile.Compile(schema)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	cases := []struct {
		name string
		ev   vm.Event
		want vm.Status
	}{
		{"number", vm.Event{Kind: ir.TokNumber, Num: 1}, vm.StatusValid},
		{"string", vm.Event{Kind: ir.TokString, Str: "x"}, vm.StatusInvalid},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			src := &fakeSource{events: []vm.Event{c.ev}}
			m := vm.New(prog, src, vm.Seed(1))
			st, _, err := run(t, m, 1)
			if err != nil {
				t.Fatalf("Step: %v", err)
			}
			if st != c.want {
				t.Fatalf("got status %v, want %v", st, c.want)
			}
		})
	}
}

// TestCompile_ObjectRequired compiles an object schema with a required
// property and checks both a satisfying and a missing-property document.
func TestCompile_ObjectRequired(t *testing.T) {
	schema := mustParse(t, `{
		"type": "object",
		"properties": {"name": {"type": "string"}},
		"required": ["name"]
	}`)
	prog, err := compile.Compile(schema)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	cases := []struct {
		name   string
		events []vm.Event
		want   vm.Status
	}{
		{
			"has required property",
			[]vm.Event{
				{Kind: ir.TokObjectBeg},
				{Kind: ir.TokString, Str: "name"},
				{Kind: ir.TokString, Str: "alice"},
				{Kind: ir.TokObjectEnd},
			},
			vm.StatusValid,
		},
		{
			"missing required property",
			[]vm.Event{
				{Kind: ir.TokObjectBeg},
				{Kind: ir.TokObjectEnd},
			},
			vm.StatusInvalid,
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			src := &fakeSource{events: c.events}
			m := vm.New(prog, src, vm.Seed(1))
			st, _, err := run(t, m, len(c.events))
			if err != nil {
				t.Fatalf("Step: %v", err)
			}
			if st != c.want {
				t.Fatalf("got status %v, want %v", st, c.want)
			}
		})
	}
}

// TestCompile_EmptySchemaAcceptsAnything compiles {} and checks every
// JSON value kind, including a nested array/object, is VALID: an empty
// schema's root SWITCH has every slot VALID by construction, so nothing
// a document can contain ever reaches an INVALID leaf.
func TestCompile_EmptySchemaAcceptsAnything(t *testing.T) {
	schema := mustParse(t, `{}`)
	prog, err := compile.Compile(schema)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	cases := []struct {
		name   string
		events []vm.Event
	}{
		{"null", []vm.Event{{Kind: ir.TokNull}}},
		{"true", []vm.Event{{Kind: ir.TokTrue}}},
		{"zero", []vm.Event{{Kind: ir.TokNumber, Num: 0}}},
		{"string", []vm.Event{{Kind: ir.TokString, Str: "x"}}},
		{"empty array", []vm.Event{{Kind: ir.TokArrayBeg}, {Kind: ir.TokArrayEnd}}},
		{"empty object", []vm.Event{{Kind: ir.TokObjectBeg}, {Kind: ir.TokObjectEnd}}},
		{
			"nested array",
			[]vm.Event{
				{Kind: ir.TokArrayBeg},
				{Kind: ir.TokNumber, Num: 1},
				{Kind: ir.TokArrayBeg},
				{Kind: ir.TokNumber, Num: 2},
				{Kind: ir.TokObjectBeg},
				{Kind: ir.TokObjectEnd},
				{Kind: ir.TokArrayEnd},
				{Kind: ir.TokArrayEnd},
			},
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			src := &fakeSource{events: c.events}
			m := vm.New(prog, src, vm.Seed(1))
			st, _, err := run(t, m, len(c.events))
			if err != nil {
				t.Fatalf("Step: %v", err)
			}
			if st != vm.StatusValid {
				t.Fatalf("got status %v, want valid", st)
			}
		})
	}
}

// TestCompile_TypeInteger compiles {"type": "integer"} and checks that
// a whole number passes while a fractional one is rejected with the
// dedicated NOT_INTEGER code rather than the generic type mismatch one.
func TestCompile_TypeInteger(t *testing.T) {
	schema := mustParse(t, `{"type": "integer"}`)
	prog, err := compile.Compile(schema)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	cases := []struct {
		name     string
		ev       vm.Event
		want     vm.Status
		wantCode vm.Code
	}{
		{"integer", vm.Event{Kind: ir.TokNumber, Num: 3}, vm.StatusValid, 0},
		{"fractional", vm.Event{Kind: ir.TokNumber, Num: 3.5}, vm.StatusInvalid, ir.InvalidNotInteger},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			src := &fakeSource{events: []vm.Event{c.ev}}
			m := vm.New(prog, src, vm.Seed(1))
			st, code, err := run(t, m, 1)
			if err != nil {
				t.Fatalf("Step: %v", err)
			}
			if st != c.want {
				t.Fatalf("got status %v, want %v", st, c.want)
			}
			if st == vm.StatusInvalid && code != c.wantCode {
				t.Fatalf("got code %v, want %v", code, c.wantCode)
			}
		})
	}
}

// TestCompile_Minimum compiles {"minimum": 1.1} and checks the boundary
// value, a value below it, and that a non-number is left unconstrained
// (minimum only restricts the NUMBER slot of the root SWITCH).
func TestCompile_Minimum(t *testing.T) {
	schema := mustParse(t, `{"minimum": 1.1}`)
	prog, err := compile.Compile(schema)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	cases := []struct {
		name     string
		ev       vm.Event
		want     vm.Status
		wantCode vm.Code
	}{
		{"at boundary", vm.Event{Kind: ir.TokNumber, Num: 1.1}, vm.StatusValid, 0},
		{"below boundary", vm.Event{Kind: ir.TokNumber, Num: 1.0}, vm.StatusInvalid, ir.InvalidNumber},
		{"non-number unconstrained", vm.Event{Kind: ir.TokString, Str: "x"}, vm.StatusValid, 0},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			src := &fakeSource{events: []vm.Event{c.ev}}
			m := vm.New(prog, src, vm.Seed(1))
			st, code, err := run(t, m, 1)
			if err != nil {
				t.Fatalf("Step: %v", err)
			}
			if st != c.want {
				t.Fatalf("got status %v, want %v", st, c.want)
			}
			if st == vm.StatusInvalid && code != c.wantCode {
				t.Fatalf("got code %v, want %v", code, c.wantCode)
			}
		})
	}
}

// TestCompile_Dependencies compiles {"dependencies": {"bar": ["foo"]}}
// and checks the trigger-present-and-satisfied, trigger-present-and-
// unsatisfied, and trigger-absent cases.
func TestCompile_Dependencies(t *testing.T) {
	schema := mustParse(t, `{"dependencies": {"bar": ["foo"]}}`)
	prog, err := compile.Compile(schema)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	cases := []struct {
		name     string
		events   []vm.Event
		want     vm.Status
		wantCode vm.Code
	}{
		{
			"bar present with foo",
			[]vm.Event{
				{Kind: ir.TokObjectBeg},
				{Kind: ir.TokString, Str: "bar"}, {Kind: ir.TokNumber, Num: 1},
				{Kind: ir.TokString, Str: "foo"}, {Kind: ir.TokNumber, Num: 2},
				{Kind: ir.TokObjectEnd},
			},
			vm.StatusValid, 0,
		},
		{
			"bar present without foo",
			[]vm.Event{
				{Kind: ir.TokObjectBeg},
				{Kind: ir.TokString, Str: "bar"}, {Kind: ir.TokNumber, Num: 1},
				{Kind: ir.TokObjectEnd},
			},
			vm.StatusInvalid, ir.InvalidSplitCondition,
		},
		{
			"bar absent",
			[]vm.Event{
				{Kind: ir.TokObjectBeg},
				{Kind: ir.TokString, Str: "foo"}, {Kind: ir.TokNumber, Num: 1},
				{Kind: ir.TokObjectEnd},
			},
			vm.StatusValid, 0,
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			src := &fakeSource{events: c.events}
			m := vm.New(prog, src, vm.Seed(1))
			st, code, err := run(t, m, len(c.events))
			if err != nil {
				t.Fatalf("Step: %v", err)
			}
			if st != c.want {
				t.Fatalf("got status %v, want %v", st, c.want)
			}
			if st == vm.StatusInvalid && code != c.wantCode {
				t.Fatalf("got code %v, want %v", code, c.wantCode)
			}
		})
	}
}

// TestCompile_RefRecursion compiles {"properties": {"foo": {"$ref":
// "#"}}} and feeds a document nesting "foo" two levels deep, exercising
// the self-recursive OpCall path end to end.
func TestCompile_RefRecursion(t *testing.T) {
	schema := mustParse(t, `{"properties": {"foo": {"$ref": "#"}}}`)
	prog, err := compile.Compile(schema)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	events := []vm.Event{
		{Kind: ir.TokObjectBeg},
		{Kind: ir.TokString, Str: "foo"},
		{Kind: ir.TokObjectBeg},
		{Kind: ir.TokString, Str: "foo"},
		{Kind: ir.TokObjectBeg},
		{Kind: ir.TokObjectEnd},
		{Kind: ir.TokObjectEnd},
		{Kind: ir.TokObjectEnd},
	}
	src := &fakeSource{events: events}
	m := vm.New(prog, src, vm.Seed(1))
	st, _, err := run(t, m, len(events))
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if st != vm.StatusValid {
		t.Fatalf("got status %v, want valid", st)
	}
}

// TestCompile_OneOfXor compiles {"oneOf": [{"type": "integer"},
// {"minimum": 2}]} and checks four cases, including the "x" case:
// {"type": "integer"} makes its branch's STRING slot INVALID, while
// {"minimum": 2} leaves it VALID, so exactly one branch validates "x"
// and XOR's count-equals-one rule accepts it.
func TestCompile_OneOfXor(t *testing.T) {
	schema := mustParse(t, `{"oneOf": [{"type": "integer"}, {"minimum": 2}]}`)
	prog, err := compile.Compile(schema)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	cases := []struct {
		name     string
		ev       vm.Event
		want     vm.Status
		wantCode vm.Code
	}{
		{"integer only", vm.Event{Kind: ir.TokNumber, Num: 1}, vm.StatusValid, 0},
		{"both branches match", vm.Event{Kind: ir.TokNumber, Num: 2}, vm.StatusInvalid, ir.InvalidSplitCondition},
		{"minimum only", vm.Event{Kind: ir.TokNumber, Num: 2.5}, vm.StatusValid, 0},
		{"string fails the integer branch only", vm.Event{Kind: ir.TokString, Str: "x"}, vm.StatusValid, 0},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			src := &fakeSource{events: []vm.Event{c.ev}}
			m := vm.New(prog, src, vm.Seed(1))
			st, code, err := run(t, m, 1)
			if err != nil {
				t.Fatalf("Step: %v", err)
			}
			if st != c.want {
				t.Fatalf("got status %v, want %v", st, c.want)
			}
			if st == vm.StatusInvalid && code != c.wantCode {
				t.Fatalf("got code %v, want %v", code, c.wantCode)
			}
		})
	}
}

// TestCompile_MalformedSchema checks that a schema JSON-Schema itself
// disagrees with (a non-object, non-boolean schema) is reported as a
// CompileError rather than a generic error.
func TestCompile_MalformedSchema(t *testing.T) {
	schema := mustParse(t, `"not a schema"`)
	_, err := compile.Compile(schema)
	if err == nil {
		t.Fatal("expected an error")
	}
	ce, ok := err.(*compile.CompileError)
	if !ok {
		t.Fatalf("got %T, want *compile.CompileError", err)
	}
	if ce.Kind != compile.ErrMalformedSchema {
		t.Fatalf("got kind %v, want %v", ce.Kind, compile.ErrMalformedSchema)
	}
}
