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
	"strings"
	"testing"

	"github.com/katef/jvst-go/cnode"
	"github.com/katef/jvst-go/schemaast"
)

func parseSchema(t *testing.T, schema string) *schemaast.Node {
	t.Helper()
	n, err := schemaast.Parse(strings.NewReader(schema))
	if err != nil {
		t.Fatalf("schemaast.Parse: %v", err)
	}
	return n
}

// TestTranslate_ScalarType checks that {"type": "number"} lowers to a
// KSwitch root with exactly the NUMBER slot valid and every other slot
// invalid, the minimal shape a declared type produces.
func TestTranslate_ScalarType(t *testing.T) {
	f, err := cnode.Translate(parseSchema(t, `{"type": "number"}`))
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}

	root := f.Roots[0]
	n := f.At(root)
	if n.Kind != cnode.KSwitch {
		t.Fatalf("root kind = %v, want KSwitch", n.Kind)
	}

	for ev := cnode.EventKind(0); ev < cnode.NumEventKinds; ev++ {
		child := f.At(n.Switch[ev])
		wantValid := ev == cnode.EvNumber
		if wantValid && child.Kind != cnode.KValid {
			t.Errorf("slot %v kind = %v, want KValid", ev, child.Kind)
		}
		if !wantValid && child.Kind != cnode.KInvalid {
			t.Errorf("slot %v kind = %v, want KInvalid", ev, child.Kind)
		}
	}
}

// TestTranslate_StringMinLength checks that minLength on a
// string-typed schema attaches a KLengthRange constraint to the STRING
// slot rather than leaving it bare KValid.
func TestTranslate_StringMinLength(t *testing.T) {
	f, err := cnode.Translate(parseSchema(t, `{"type": "string", "minLength": 3}`))
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}

	root := f.Roots[0]
	n := f.At(root)
	strSlot := f.At(n.Switch[cnode.EvString])
	if strSlot.Kind != cnode.KLengthRange {
		t.Fatalf("STRING slot kind = %v, want KLengthRange", strSlot.Kind)
	}
	if strSlot.Min != 3 {
		t.Fatalf("KLengthRange.Min = %v, want 3", strSlot.Min)
	}

	otherSlot := f.At(n.Switch[cnode.EvNumber])
	if otherSlot.Kind != cnode.KInvalid {
		t.Fatalf("NUMBER slot kind = %v, want KInvalid (string-only type)", otherSlot.Kind)
	}
}

// TestTranslate_NoTypeDefaultsValid checks that a schema with no "type"
// keyword leaves every untouched EventKind slot KValid rather than
// KInvalid, since nothing rules any type out.
func TestTranslate_NoTypeDefaultsValid(t *testing.T) {
	f, err := cnode.Translate(parseSchema(t, `{"minLength": 3}`))
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}

	root := f.Roots[0]
	n := f.At(root)
	boolSlot := f.At(n.Switch[cnode.EvTrue])
	if boolSlot.Kind != cnode.KValid {
		t.Fatalf("TRUE slot kind = %v, want KValid (no declared type)", boolSlot.Kind)
	}
}

// TestTranslate_MalformedSchema checks that a schema node which is
// neither a boolean nor an object (a bare JSON string) is rejected
// with ErrMalformedSchema rather than panicking or being silently
// accepted.
func TestTranslate_MalformedSchema(t *testing.T) {
	_, err := cnode.Translate(parseSchema(t, `"not a schema"`))
	if err == nil {
		t.Fatal("Translate: expected error, got nil")
	}
	te, ok := err.(*cnode.TranslateError)
	if !ok {
		t.Fatalf("Translate: error type = %T, want *cnode.TranslateError", err)
	}
	if te.Kind != cnode.ErrMalformedSchema {
		t.Fatalf("TranslateError.Kind = %v, want ErrMalformedSchema", te.Kind)
	}
}

// TestTranslate_UnresolvedRef checks that a $ref to a JSON-pointer
// location never reachable from the document is rejected with
// ErrUnresolvedRef, rather than left to fail later during IR
// translation.
func TestTranslate_UnresolvedRef(t *testing.T) {
	_, err := cnode.Translate(parseSchema(t, `{"$ref": "#/definitions/nope"}`))
	if err == nil {
		t.Fatal("Translate: expected error, got nil")
	}
	te, ok := err.(*cnode.TranslateError)
	if !ok {
		t.Fatalf("Translate: error type = %T, want *cnode.TranslateError", err)
	}
	if te.Kind != cnode.ErrUnresolvedRef {
		t.Fatalf("TranslateError.Kind = %v, want ErrUnresolvedRef", te.Kind)
	}
}

// TestTranslate_RefToDefinitions checks that a $ref which does resolve
// registers a label in both AllIDs and RefIDs (definitions are scanned
// and queued for translation even though they are never validated
// directly), and that the bare $ref schema simplifies down to a single
// KRef node once its (all-slots-valid) wrapping SWITCH is dropped by
// Simplify.
func TestTranslate_RefToDefinitions(t *testing.T) {
	f, err := cnode.Translate(parseSchema(t, `{
		"definitions": {"num": {"type": "number"}},
		"$ref": "#/definitions/num"
	}`))
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}

	f = cnode.Simplify(f)
	root := f.Roots[0]
	n := f.At(root)
	if n.Kind != cnode.KRef {
		t.Fatalf("root kind = %v, want KRef", n.Kind)
	}
	if _, ok := f.AllIDs[n.RefLabel]; !ok {
		t.Fatalf("RefLabel %v not registered in AllIDs", n.RefLabel)
	}
	if !f.RefIDs[n.RefLabel] {
		t.Fatalf("RefLabel %v not recorded in RefIDs", n.RefLabel)
	}
}
