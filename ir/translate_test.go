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

package ir_test

import (
	"strings"
	"testing"

	"github.com/katef/jvst-go/cnode"
	"github.com/katef/jvst-go/ir"
	"github.com/katef/jvst-go/schemaast"
)

func translateSchema(t *testing.T, schema string) *ir.Program {
	t.Helper()
	n, err := schemaast.Parse(strings.NewReader(schema))
	if err != nil {
		t.Fatalf("schemaast.Parse: %v", err)
	}
	forest, err := cnode.Translate(n)
	if err != nil {
		t.Fatalf("cnode.Translate: %v", err)
	}
	forest = cnode.Simplify(forest)
	forest, err = cnode.Canonify(forest)
	if err != nil {
		t.Fatalf("cnode.Canonify: %v", err)
	}
	prog, err := ir.Translate(forest)
	if err != nil {
		t.Fatalf("ir.Translate: %v", err)
	}
	return prog
}

// countKinds walks every Stmt reachable from root, following every
// Ref-typed field a Stmt can hold, and tallies how many statements of
// each StmtKind it finds. Frames reached only via SCall (by Label, not
// by Ref) are not followed, since a schema with no $ref has none.
func countKinds(p *ir.Program, root ir.Ref) map[ir.StmtKind]int {
	counts := map[ir.StmtKind]int{}
	seen := map[ir.Ref]bool{}
	var walk func(r ir.Ref)
	walk = func(r ir.Ref) {
		if r == ir.NoRef || seen[r] {
			return
		}
		seen[r] = true
		s := p.Stmts[r]
		counts[s.Kind]++
		for _, c := range s.Children {
			walk(c)
		}
		walk(s.Then)
		walk(s.Else)
		walk(s.Default)
		for _, c := range s.Cases {
			walk(c.Stmt)
		}
	}
	walk(root)
	return counts
}

// TestTranslate_ScalarType checks that a bare {"type": "number"} schema
// lowers to a root frame whose body fetches a token (SToken) and
// branches on it (SIf), the minimal shape every scalar type check
// needs.
func TestTranslate_ScalarType(t *testing.T) {
	prog := translateSchema(t, `{"type": "number"}`)

	root, ok := prog.Frames[prog.Entry]
	if !ok {
		t.Fatalf("no frame registered for entry %q", prog.Entry)
	}
	if prog.Stmts[root].Kind != ir.SFrame {
		t.Fatalf("entry frame statement has kind %v, want SFrame", prog.Stmts[root].Kind)
	}

	counts := countKinds(prog, root)
	if counts[ir.SToken] == 0 {
		t.Fatalf("expected at least one SToken statement, got counts %v", counts)
	}
	if counts[ir.SIf] == 0 {
		t.Fatalf("expected at least one SIf statement, got counts %v", counts)
	}
}

// TestTranslate_SelfRefProducesCall checks that a recursive $ref (a
// schema that refers back to itself) breaks the cycle with an SCall
// back to the already-in-progress frame, rather than inlining forever
// (see Translate's package doc comment: "acyclic references are
// inlined directly at their call site instead of costing a frame and
// an SCall" — a self-reference can never be acyclic).
func TestTranslate_SelfRefProducesCall(t *testing.T) {
	prog := translateSchema(t, `{
		"type": "object",
		"properties": {"next": {"$ref": "#"}}
	}`)

	root, ok := prog.Frames[prog.Entry]
	if !ok {
		t.Fatalf("no frame registered for entry %q", prog.Entry)
	}

	counts := countKinds(prog, root)
	if counts[ir.SCall] == 0 {
		t.Fatalf("expected the root frame to reach an SCall statement, got counts %v", counts)
	}
}
