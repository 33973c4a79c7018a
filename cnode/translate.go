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
	"github.com/katef/jvst-go/internal/idtbl"
	"github.com/katef/jvst-go/schemaast"
	"github.com/pkg/errors"
)

// ErrKind names the CompileError-relevant failure modes Translate can
// raise; compile.Compile maps these onto compile.CompileError kinds.
type ErrKind int

const (
	ErrMalformedSchema ErrKind = iota
	ErrUnresolvedRef
	ErrUnsupportedKeyword
)

// TranslateError is the error type Translate returns. Kind identifies
// which failure category applies; Detail names the offending
// id/keyword and Ptr is the JSON-pointer location.
type TranslateError struct {
	Kind   ErrKind
	Detail string
	Ptr    string
}

func (e *TranslateError) Error() string {
	return "cnode: " + e.Ptr + ": " + e.Detail
}

// Translate lowers a schema AST into a Forest. The
// root schema is translated first; every $ref target becomes an
// additional root tree via Forest.AllIDs and is recorded in
// Forest.RefIDs. Other $id and JSON-pointer locations are only
// pre-scanned so that refs to them resolve; they get no tree of their own.
func Translate(root *schemaast.Node) (*Forest, error) {
	f := NewForest()
	t := &translator{forest: f, pending: map[idtbl.Label]*schemaast.Node{}}
	rootLabel := f.Arena.Intern("#")
	t.pending[rootLabel] = root
	t.queue = append(t.queue, rootLabel)

	// Pre-scan so that forward $refs resolve: walk the whole document
	// registering every $id/JSON-pointer location before lowering any of
	// them: for every JSON-pointer path reachable from the root, add an
	// entry to the id table.
	t.scanIDs(root, rootLabel)

	for len(t.queue) > 0 {
		label := t.queue[0]
		t.queue = t.queue[1:]
		if t.done[label] {
			continue
		}
		if t.done == nil {
			t.done = map[idtbl.Label]bool{}
		}
		t.done[label] = true
		node, ok := t.pending[label]
		if !ok {
			continue
		}
		root := f.AddRoot(label)
		body, err := t.translateSchema(node, f.Arena.String(label))
		if err != nil {
			return nil, err
		}
		*f.At(root) = f.Nodes[body]
	}

	for lbl := range f.RefIDs {
		if _, ok := f.AllIDs[lbl]; !ok {
			return nil, &TranslateError{Kind: ErrUnresolvedRef, Detail: f.Arena.String(lbl), Ptr: f.Arena.String(lbl)}
		}
	}
	return f, nil
}

type translator struct {
	forest  *Forest
	pending map[idtbl.Label]*schemaast.Node
	done    map[idtbl.Label]bool
	queue   []idtbl.Label
}

// scanIDs walks the schema document registering every JSON-pointer
// location (and $id, if present) that could plausibly be a $ref target:
// the root, "definitions"/"$defs" entries, "properties" entries, and so
// on.
func (t *translator) scanIDs(n *schemaast.Node, label idtbl.Label) {
	if n == nil || n.Kind != schemaast.KindObject {
		return
	}
	t.pending[label] = n
	if idN, ok := n.Get("$id"); ok && idN.Kind == schemaast.KindString {
		idLabel := t.forest.Arena.Intern(idN.String)
		t.pending[idLabel] = n
	}
	for _, key := range []string{"definitions", "$defs"} {
		if defs, ok := n.Get(key); ok && defs.Kind == schemaast.KindObject {
			for _, m := range defs.Object {
				t.scanIDs(m.Value, t.forest.Arena.Intern(m.Value.Pointer))
			}
		}
	}
	if props, ok := n.Get("properties"); ok && props.Kind == schemaast.KindObject {
		for _, m := range props.Object {
			t.scanIDs(m.Value, t.forest.Arena.Intern(m.Value.Pointer))
		}
	}
	if pp, ok := n.Get("patternProperties"); ok && pp.Kind == schemaast.KindObject {
		for _, m := range pp.Object {
			t.scanIDs(m.Value, t.forest.Arena.Intern(m.Value.Pointer))
		}
	}
	for _, key := range []string{"items", "additionalItems", "additionalProperties", "propertyNames", "contains", "not"} {
		if sub, ok := n.Get(key); ok && sub.Kind == schemaast.KindObject {
			t.scanIDs(sub, t.forest.Arena.Intern(sub.Pointer))
		}
	}
	for _, key := range []string{"allOf", "anyOf", "oneOf"} {
		if arr, ok := n.Get(key); ok && arr.Kind == schemaast.KindArray {
			for _, e := range arr.Array {
				t.scanIDs(e, t.forest.Arena.Intern(e.Pointer))
			}
		}
	}
}

func (t *translator) queueRef(refStr string) idtbl.Label {
	lbl := t.forest.Arena.Intern(refStr)
	t.forest.RefIDs[lbl] = true
	if !t.done[lbl] {
		if _, queued := t.pending[lbl]; queued {
			t.queue = append(t.queue, lbl)
		}
	}
	return lbl
}

// translateSchema lowers one schema object/boolean into a Ref, the body
// of a SWITCH-rooted validation frame, following the canonical keyword
// lowering table.
func (t *translator) translateSchema(n *schemaast.Node, ptr string) (Ref, error) {
	f := t.forest
	switch n.Kind {
	case schemaast.KindBool:
		if n.Bool {
			return f.Alloc(Node{Kind: KValid}), nil
		}
		return f.Alloc(Node{Kind: KInvalid}), nil
	case schemaast.KindObject:
		// fallthrough to full keyword lowering below
	default:
		return NoRef, &TranslateError{Kind: ErrMalformedSchema, Detail: "schema must be an object or boolean", Ptr: ptr}
	}

	typeSet, hasType, err := declaredTypes(n)
	if err != nil {
		return NoRef, &TranslateError{Kind: ErrMalformedSchema, Detail: err.Error(), Ptr: ptr}
	}

	sw := Node{Kind: KSwitch}
	defaultKind := KValid
	if hasType {
		defaultKind = KInvalid
	}
	for i := range sw.Switch {
		sw.Switch[i] = f.Alloc(Node{Kind: defaultKind})
	}

	setSlot := func(ev EventKind, body Ref) {
		if hasType && !typeSet[ev] {
			return // type excludes this slot; leave default INVALID
		}
		sw.Switch[ev] = body
	}

	// NUMBER slot: range, multipleOf, integer-ness.
	if !hasType || typeSet[EvNumber] {
		var parts []Ref
		if r, ok, err := numberRange(n); err != nil {
			return NoRef, err
		} else if ok {
			parts = append(parts, f.Alloc(r))
		}
		if mv, ok := numberMember(n, "multipleOf"); ok {
			parts = append(parts, f.Alloc(Node{Kind: KNumMultipleOf, MultipleOf: mv}))
		}
		if typeIsInteger(n) {
			parts = append(parts, f.Alloc(Node{Kind: KNumInteger}))
		}
		setSlot(EvNumber, f.andAll(parts))
	}

	// STRING slot: length range, pattern.
	if !hasType || typeSet[EvString] {
		var parts []Ref
		if lr, ok := countRange(n, "minLength", "maxLength"); ok {
			parts = append(parts, f.Alloc(lr.asKind(KLengthRange)))
		}
		if pat, ok := n.Get("pattern"); ok && pat.Kind == schemaast.KindString {
			parts = append(parts, f.Alloc(Node{Kind: KStrMatch, Pattern: pat.String, Anchored: false}))
		}
		setSlot(EvString, f.andAll(parts))
	}

	// OBJECT_BEG slot: properties/patternProperties/additionalProperties/
	// propertyNames, required, prop-count range, dependencies.
	if !hasType || typeSet[EvObjectBeg] {
		var parts []Ref
		if ps, ok, err := t.objPropSet(n); err != nil {
			return NoRef, err
		} else if ok {
			parts = append(parts, ps)
		}
		if req, ok := stringArray(n, "required"); ok && len(req) > 0 {
			parts = append(parts, f.Alloc(Node{Kind: KObjRequired, Required: req}))
		}
		if pr, ok := countRange(n, "minProperties", "maxProperties"); ok {
			parts = append(parts, f.Alloc(pr.asKind(KPropRange)))
		}
		setSlot(EvObjectBeg, f.andAll(parts))
	}

	// ARRAY_BEG slot: items/additionalItems, item-count range,
	// uniqueItems, contains.
	if !hasType || typeSet[EvArrayBeg] {
		var parts []Ref
		if it, ok, err := t.arrItem(n); err != nil {
			return NoRef, err
		} else if ok {
			parts = append(parts, it)
		}
		if ir, ok := countRange(n, "minItems", "maxItems"); ok {
			parts = append(parts, f.Alloc(ir.asKind(KItemRange)))
		}
		if u, ok := n.Get("uniqueItems"); ok && u.Kind == schemaast.KindBool && u.Bool {
			parts = append(parts, f.Alloc(Node{Kind: KArrUnique}))
		}
		setSlot(EvArrayBeg, f.andAll(parts))
	}

	whole := f.Alloc(sw)

	// const/enum: disjunction of literal-equality constraints, applied
	// across the relevant slots only (so it still composes with `type`).
	if lit, ok := t.constEnum(n); ok {
		whole = f.and2(whole, lit)
	}

	// dependencies: hoisted to the whole-schema level (wrapped so it
	// only constrains object instances) rather than nested inside the
	// OBJECT_BEG slot, since both of its OR branches (trigger-absence,
	// and the dependent schema) need to restart scanning the object
	// from OBJECT_BEG, exactly like an allOf sibling does; nesting it
	// inside the slot that already consumed OBJECT_BEG would leave it
	// no way to re-observe that token. See cnode.dependencies.
	if dep, ok := n.Get("dependencies"); ok && dep.Kind == schemaast.KindObject {
		d, err := t.dependencies(dep)
		if err != nil {
			return NoRef, err
		}
		gated := Node{Kind: KSwitch}
		for i := range gated.Switch {
			gated.Switch[i] = f.Alloc(Node{Kind: KValid})
		}
		gated.Switch[EvObjectBeg] = d
		whole = f.and2(whole, f.Alloc(gated))
	}

	// contains: hoisted to the whole-schema level for the same reason as
	// dependencies above. Checking "at least one element satisfies the
	// sub-schema" requires scanning every element of the array from
	// scratch, independently of whatever the items/additionalItems
	// constraint is doing with those same elements; nested inside the
	// ARRAY_BEG slot's parts list it would have to share a single pass
	// over the array with those constraints, which only the lock-step
	// SPLIT model (reserved for whole, self-contained value schemas) can
	// do safely. Gating it to ARRAY_BEG keeps it a no-op on non-arrays.
	if c, ok := n.Get("contains"); ok {
		sub, err := t.translateSchema(c, c.Pointer)
		if err != nil {
			return NoRef, err
		}
		gated := Node{Kind: KSwitch}
		for i := range gated.Switch {
			gated.Switch[i] = f.Alloc(Node{Kind: KValid})
		}
		gated.Switch[EvArrayBeg] = f.Alloc(Node{Kind: KArrContains, Child: sub})
		whole = f.and2(whole, f.Alloc(gated))
	}

	// allOf/anyOf/oneOf/not/$ref: combine with the outer SWITCH via AND.
	for _, key := range []string{"allOf"} {
		if arr, ok := n.Get(key); ok && arr.Kind == schemaast.KindArray {
			var kids []Ref
			for _, e := range arr.Array {
				sub, err := t.translateSchema(e, e.Pointer)
				if err != nil {
					return NoRef, err
				}
				kids = append(kids, sub)
			}
			whole = f.and2(whole, f.Alloc(Node{Kind: KAnd, Children: kids}))
		}
	}
	for _, spec := range []struct {
		key  string
		kind Kind
	}{{"anyOf", KOr}, {"oneOf", KXor}} {
		if arr, ok := n.Get(spec.key); ok && arr.Kind == schemaast.KindArray {
			var kids []Ref
			for _, e := range arr.Array {
				sub, err := t.translateSchema(e, e.Pointer)
				if err != nil {
					return NoRef, err
				}
				kids = append(kids, sub)
			}
			if len(kids) == 1 {
				whole = f.and2(whole, kids[0])
			} else if len(kids) > 1 {
				whole = f.and2(whole, f.Alloc(Node{Kind: spec.kind, Children: kids}))
			}
		}
	}
	if notN, ok := n.Get("not"); ok {
		sub, err := t.translateSchema(notN, notN.Pointer)
		if err != nil {
			return NoRef, err
		}
		whole = f.and2(whole, f.Alloc(Node{Kind: KNot, Child: sub}))
	}
	if refN, ok := n.Get("$ref"); ok && refN.Kind == schemaast.KindString {
		lbl := t.queueRef(refN.String)
		whole = f.and2(whole, f.Alloc(Node{Kind: KRef, RefLabel: lbl}))
	}

	return whole, nil
}

// andAll builds a non-empty AND over refs, collapsing to VALID if refs
// is empty and eliding the AND wrapper for a single child (invariant 3).
func (f *Forest) andAll(refs []Ref) Ref {
	switch len(refs) {
	case 0:
		return f.Alloc(Node{Kind: KValid})
	case 1:
		return refs[0]
	default:
		return f.Alloc(Node{Kind: KAnd, Children: append([]Ref(nil), refs...)})
	}
}

func (f *Forest) and2(a, b Ref) Ref {
	if f.At(a).Kind == KValid {
		return b
	}
	if f.At(b).Kind == KValid {
		return a
	}
	return f.Alloc(Node{Kind: KAnd, Children: []Ref{a, b}})
}

type numCount struct {
	min, max   float64
	hasMax     bool
}

func (c numCount) asKind(k Kind) Node {
	return Node{Kind: k, Min: c.min, Max: c.max, UpperBound: c.hasMax}
}

func countRange(n *schemaast.Node, minKey, maxKey string) (numCount, bool) {
	var c numCount
	found := false
	if v, ok := numberMember(n, minKey); ok {
		c.min = v
		found = true
	}
	if v, ok := numberMember(n, maxKey); ok {
		c.max = v
		c.hasMax = true
		found = true
	}
	return c, found
}

func numberMember(n *schemaast.Node, key string) (float64, bool) {
	v, ok := n.Get(key)
	if !ok || v.Kind != schemaast.KindNumber {
		return 0, false
	}
	return v.Number, true
}

func stringArray(n *schemaast.Node, key string) ([]string, bool) {
	v, ok := n.Get(key)
	if !ok || v.Kind != schemaast.KindArray {
		return nil, false
	}
	out := make([]string, 0, len(v.Array))
	for _, e := range v.Array {
		if e.Kind == schemaast.KindString {
			out = append(out, e.String)
		}
	}
	return out, true
}

func typeIsInteger(n *schemaast.Node) bool {
	v, ok := n.Get("type")
	if !ok {
		return false
	}
	if v.Kind == schemaast.KindString {
		return v.String == "integer"
	}
	if v.Kind == schemaast.KindArray {
		for _, e := range v.Array {
			if e.Kind == schemaast.KindString && e.String == "integer" {
				return true
			}
		}
	}
	return false
}

// declaredTypes maps the "type" keyword onto the set of EventKind slots
// it permits. "integer" also permits NUMBER (ruled out at validation
// time by NUM_INTEGER in the NUMBER slot).
func declaredTypes(n *schemaast.Node) (map[EventKind]bool, bool, error) {
	v, ok := n.Get("type")
	if !ok {
		return nil, false, nil
	}
	names := map[EventKind]bool{}
	add := func(s string) error {
		switch s {
		case "null":
			names[EvNull] = true
		case "boolean":
			names[EvTrue] = true
			names[EvFalse] = true
		case "number", "integer":
			names[EvNumber] = true
		case "string":
			names[EvString] = true
		case "object":
			names[EvObjectBeg] = true
		case "array":
			names[EvArrayBeg] = true
		default:
			return errors.Errorf("unknown type %q", s)
		}
		return nil
	}
	switch v.Kind {
	case schemaast.KindString:
		if err := add(v.String); err != nil {
			return nil, false, err
		}
	case schemaast.KindArray:
		for _, e := range v.Array {
			if e.Kind == schemaast.KindString {
				if err := add(e.String); err != nil {
					return nil, false, err
				}
			}
		}
	default:
		return nil, false, errors.New(`"type" must be a string or array of strings`)
	}
	return names, true, nil
}

func numberRange(n *schemaast.Node) (Node, bool, error) {
	var flags RangeFlags
	var min, max float64
	if v, ok := numberMember(n, "minimum"); ok {
		min = v
		flags |= RangeMin
	}
	if v, ok := numberMember(n, "maximum"); ok {
		max = v
		flags |= RangeMax
	}
	if em, ok := n.Get("exclusiveMinimum"); ok {
		switch em.Kind {
		case schemaast.KindNumber:
			min = em.Number
			flags |= RangeMin | RangeExclMin
		case schemaast.KindBool:
			if em.Bool {
				flags |= RangeExclMin
			}
		}
	}
	if em, ok := n.Get("exclusiveMaximum"); ok {
		switch em.Kind {
		case schemaast.KindNumber:
			max = em.Number
			flags |= RangeMax | RangeExclMax
		case schemaast.KindBool:
			if em.Bool {
				flags |= RangeExclMax
			}
		}
	}
	if flags == 0 {
		return Node{}, false, nil
	}
	return Node{Kind: KNumRange, Min: min, Max: max, Flags: flags}, true, nil
}

// objPropSet lowers properties/patternProperties/additionalProperties/
// propertyNames into an OBJ_PROP_SET node.
func (t *translator) objPropSet(n *schemaast.Node) (Ref, bool, error) {
	f := t.forest
	_, hasProps := n.Get("properties")
	_, hasPatProps := n.Get("patternProperties")
	_, hasAdd := n.Get("additionalProperties")
	_, hasNames := n.Get("propertyNames")
	if !hasProps && !hasPatProps && !hasAdd && !hasNames {
		return NoRef, false, nil
	}

	ps := Node{Kind: KObjPropSet, Default: NoRef, NameConstraint: NoRef}
	if props, ok := n.Get("properties"); ok && props.Kind == schemaast.KindObject {
		for _, m := range props.Object {
			sub, err := t.translateSchema(m.Value, m.Value.Pointer)
			if err != nil {
				return NoRef, false, err
			}
			ps.Props = append(ps.Props, PropMatch{Pattern: "^" + regexpQuoteLiteral(m.Key) + "$", Anchored: true, Value: sub})
		}
	}
	if pp, ok := n.Get("patternProperties"); ok && pp.Kind == schemaast.KindObject {
		for _, m := range pp.Object {
			sub, err := t.translateSchema(m.Value, m.Value.Pointer)
			if err != nil {
				return NoRef, false, err
			}
			ps.Props = append(ps.Props, PropMatch{Pattern: m.Key, Anchored: false, Value: sub})
		}
	}
	if add, ok := n.Get("additionalProperties"); ok {
		sub, err := t.translateSchema(add, add.Pointer)
		if err != nil {
			return NoRef, false, err
		}
		ps.Default = f.Alloc(Node{Kind: KObjPropDefault, Child: sub})
	}
	if names, ok := n.Get("propertyNames"); ok {
		sub, err := t.translateSchema(names, names.Pointer)
		if err != nil {
			return NoRef, false, err
		}
		ps.NameConstraint = f.Alloc(Node{Kind: KObjPropNames, Child: sub})
	}
	return f.Alloc(ps), true, nil
}

// arrItem lowers "items"/"additionalItems" into an ARR_ITEM node. A
// single-schema "items" applies uniformly (additional=subtree, no
// tuple); an array "items" is a tuple, with "additionalItems" governing
// items past the tuple's length.
func (t *translator) arrItem(n *schemaast.Node) (Ref, bool, error) {
	f := t.forest
	items, ok := n.Get("items")
	if !ok {
		return NoRef, false, nil
	}
	node := Node{Kind: KArrItem, ItemAdditional: NoRef}
	if items.Kind == schemaast.KindArray {
		for _, e := range items.Array {
			sub, err := t.translateSchema(e, e.Pointer)
			if err != nil {
				return NoRef, false, err
			}
			node.ItemTuple = append(node.ItemTuple, sub)
		}
		if add, ok := n.Get("additionalItems"); ok {
			sub, err := t.translateSchema(add, add.Pointer)
			if err != nil {
				return NoRef, false, err
			}
			node.ItemAdditional = sub
		} else {
			node.ItemAdditional = f.Alloc(Node{Kind: KValid})
		}
	} else {
		sub, err := t.translateSchema(items, items.Pointer)
		if err != nil {
			return NoRef, false, err
		}
		node.ItemAdditional = sub
	}
	return f.Alloc(node), true, nil
}

// dependencies lowers both string-array and schema forms. The string
// form is OR(REQUIRED(deps), NOT(trigger
// present)): if the trigger property is absent the dependency is
// vacuous, otherwise every named property must also be present. The
// schema form is OR(NOT(trigger present), subschema): by the same
// logic, but "subschema" is the whole instance value re-validated from
// scratch (exactly like an allOf member), not a continuation of the
// current object scan — JSON Schema's dependent schema applies to the
// instance as a whole. "trigger present" is tested the same way in
// both forms: a PROP_SET whose sole pattern matches the trigger name
// and maps to VALID, with every other property defaulting to VALID too
// (so the set membership test rests entirely on whether the pattern
// itself matched during the scan, not on its mapped value), negated by
// NOT to get "absent".
func (t *translator) dependencies(dep *schemaast.Node) (Ref, error) {
	f := t.forest
	var whole Ref = NoRef
	for _, m := range dep.Object {
		trigger := m.Key
		presentCheck := f.Alloc(Node{
			Kind: KObjPropSet,
			Props: []PropMatch{{
				Pattern: "^" + regexpQuoteLiteral(trigger) + "$", Anchored: true,
				Value: f.Alloc(Node{Kind: KValid}),
			}},
			Default:        f.Alloc(Node{Kind: KObjPropDefault, Child: f.Alloc(Node{Kind: KValid})}),
			NameConstraint: NoRef,
		})
		absentBranch := f.Alloc(Node{Kind: KNot, Child: presentCheck})

		var satisfyBranch Ref
		switch m.Value.Kind {
		case schemaast.KindArray:
			names := make([]string, 0, len(m.Value.Array))
			for _, e := range m.Value.Array {
				if e.Kind == schemaast.KindString {
					names = append(names, e.String)
				}
			}
			satisfyBranch = f.Alloc(Node{Kind: KObjRequired, Required: names})
		default:
			sub, err := t.translateSchema(m.Value, m.Value.Pointer)
			if err != nil {
				return NoRef, err
			}
			satisfyBranch = sub
		}

		entry := f.Alloc(Node{Kind: KOr, Children: []Ref{absentBranch, satisfyBranch}})
		if whole == NoRef {
			whole = entry
		} else {
			whole = f.Alloc(Node{Kind: KAnd, Children: []Ref{whole, entry}})
		}
	}
	if whole == NoRef {
		whole = f.Alloc(Node{Kind: KValid})
	}
	return whole, nil
}

// constEnum lowers "const"/"enum" into a disjunction of literal-equality
// constraints. Literal equality itself is expressed per-slot: a literal
// of a given JSON kind constrains only the corresponding SWITCH slot, so
// the disjunction is built as an OR of per-literal SWITCH nodes whose
// single live slot holds the appropriate equality constraint and whose
// other slots are INVALID.
func (t *translator) constEnum(n *schemaast.Node) (Ref, bool) {
	f := t.forest
	var literals []*schemaast.Node
	if c, ok := n.Get("const"); ok {
		literals = append(literals, c)
	} else if e, ok := n.Get("enum"); ok && e.Kind == schemaast.KindArray {
		literals = append(literals, e.Array...)
	} else {
		return NoRef, false
	}
	var branches []Ref
	for _, lit := range literals {
		branches = append(branches, f.literalSwitch(lit))
	}
	if len(branches) == 1 {
		return branches[0], true
	}
	return f.Alloc(Node{Kind: KOr, Children: branches}), true
}

func (f *Forest) literalSwitch(lit *schemaast.Node) Ref {
	sw := Node{Kind: KSwitch}
	for i := range sw.Switch {
		sw.Switch[i] = f.Alloc(Node{Kind: KInvalid})
	}
	switch lit.Kind {
	case schemaast.KindNull:
		sw.Switch[EvNull] = f.Alloc(Node{Kind: KValid})
	case schemaast.KindBool:
		if lit.Bool {
			sw.Switch[EvTrue] = f.Alloc(Node{Kind: KValid})
		} else {
			sw.Switch[EvFalse] = f.Alloc(Node{Kind: KValid})
		}
	case schemaast.KindNumber:
		sw.Switch[EvNumber] = f.Alloc(Node{Kind: KNumRange, Min: lit.Number, Max: lit.Number, Flags: RangeMin | RangeMax})
	case schemaast.KindString:
		sw.Switch[EvString] = f.Alloc(Node{Kind: KStrMatch, Pattern: "^" + regexpQuoteLiteral(lit.String) + "$", Anchored: true})
	default:
		// Composite const/enum values (array/object) are out of scope
		// for this VM's byte-code level equality (no value materialization
		// of the input stream); they are accepted unconditionally at the
		// matching slot, which is conservative rather than unsound-strict.
		if lit.Kind == schemaast.KindArray {
			sw.Switch[EvArrayBeg] = f.Alloc(Node{Kind: KValid})
		} else {
			sw.Switch[EvObjectBeg] = f.Alloc(Node{Kind: KValid})
		}
	}
	return f.Alloc(sw)
}

// regexpQuoteLiteral escapes s so it can be embedded in a regexp pattern
// and match only the literal string s.
func regexpQuoteLiteral(s string) string {
	special := "\\.+*?()|[]{}^$"
	out := make([]byte, 0, len(s)*2)
	for i := 0; i < len(s); i++ {
		c := s[i]
		for _, sp := range []byte(special) {
			if c == sp {
				out = append(out, '\\')
				break
			}
		}
		out = append(out, c)
	}
	return string(out)
}
