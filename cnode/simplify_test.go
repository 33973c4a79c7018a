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

package cnode_test

import (
	"testing"

	"github.com/katef/jvst-go/cnode"
)

// TestSimplify_EmptySchemaCollapsesToValid checks that an empty schema
// object ({}), which lowers to a SWITCH with every slot VALID, is
// collapsed by simplifySwitch to a single KValid node.
func TestSimplify_EmptySchemaCollapsesToValid(t *testing.T) {
	f, err := cnode.Translate(parseSchema(t, `{}`))
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	f = cnode.Simplify(f)

	root := f.Roots[0]
	if f.At(root).Kind != cnode.KValid {
		t.Fatalf("root kind = %v, want KValid", f.At(root).Kind)
	}
}

// TestSimplify_DoubleNotCancels checks that NOT(NOT(x)) rewrites to x
// directly: a schema with "not": {"not": {"type": "number"}} should
// simplify to the same KSwitch shape a bare {"type": "number"} schema
// produces, not to a tree that still mentions KNot anywhere.
func TestSimplify_DoubleNotCancels(t *testing.T) {
	f, err := cnode.Translate(parseSchema(t, `{"not": {"not": {"type": "number"}}}`))
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	f = cnode.Simplify(f)

	root := f.Roots[0]
	n := f.At(root)
	if n.Kind != cnode.KSwitch {
		t.Fatalf("root kind = %v, want KSwitch (NOT(NOT(x)) should cancel to x)", n.Kind)
	}
	if f.At(n.Switch[cnode.EvNumber]).Kind != cnode.KValid {
		t.Fatalf("NUMBER slot kind = %v, want KValid", f.At(n.Switch[cnode.EvNumber]).Kind)
	}
	if f.At(n.Switch[cnode.EvString]).Kind != cnode.KInvalid {
		t.Fatalf("STRING slot kind = %v, want KInvalid", f.At(n.Switch[cnode.EvString]).Kind)
	}
}

// TestSimplify_AndFlattensAndDropsIdentity checks that allOf nesting
// (which lowers to AND-of-AND) flattens into a single AND with VALID
// members dropped, rather than leaving nested AND wrappers or no-op
// VALID children in the tree.
func TestSimplify_AndFlattensAndDropsIdentity(t *testing.T) {
	f, err := cnode.Translate(parseSchema(t, `{
		"allOf": [
			true,
			{"type": "number"},
			{"minimum": 0}
		]
	}`))
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	f = cnode.Simplify(f)

	root := f.Roots[0]
	n := f.At(root)
	if n.Kind != cnode.KAnd {
		t.Fatalf("root kind = %v, want KAnd", n.Kind)
	}
	for _, c := range n.Children {
		if f.At(c).Kind == cnode.KValid {
			t.Fatalf("AND retained a VALID identity child: %v", n.Children)
		}
		if f.At(c).Kind == cnode.KAnd {
			t.Fatalf("AND was not flattened, found nested AND child: %v", n.Children)
		}
	}
}

// TestSimplify_OrAbsorbsValid checks that OR short-circuits to VALID
// entirely when any branch is the constant true schema, since OR's
// absorbing element is VALID.
func TestSimplify_OrAbsorbsValid(t *testing.T) {
	f, err := cnode.Translate(parseSchema(t, `{
		"anyOf": [
			{"type": "number"},
			true
		]
	}`))
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	f = cnode.Simplify(f)

	root := f.Roots[0]
	if f.At(root).Kind != cnode.KValid {
		t.Fatalf("root kind = %v, want KValid (OR absorbs a VALID branch)", f.At(root).Kind)
	}
}
