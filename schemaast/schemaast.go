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

// Package schemaast is a JSON parser specialized for schema syntax.
// cnode.Translate takes a *Node as its input and never
// reaches back into this package's decoding details, so an alternate
// schema-AST producer (one backed by a streaming decoder, or one that
// preserves source positions for error messages) can be swapped in
// without touching the compiler.
package schemaast

import (
	"io"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
)

// Kind classifies a Node the way JSON itself does.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

// Member is one key/value pair of an object Node, kept in source order
// so that translation and diagnostics are deterministic.
type Member struct {
	Key   string
	Value *Node
}

// Node is one JSON value in a schema document, annotated with the
// JSON-pointer path it was found at (e.g. "#/properties/foo") so that
// cnode.Translate can build its id and $ref-target tables from it.
type Node struct {
	Kind    Kind
	Pointer string

	Bool   bool
	Number float64
	String string
	Array  []*Node
	Object []Member
}

// Get returns the value of the named member of an object Node, and
// whether it was present.
func (n *Node) Get(key string) (*Node, bool) {
	if n == nil || n.Kind != KindObject {
		return nil, false
	}
	for _, m := range n.Object {
		if m.Key == key {
			return m.Value, true
		}
	}
	return nil, false
}

// Parse decodes a schema document from r into a Node tree, tagging every
// node with its JSON-pointer location. It decodes token-by-token with
// goccy/go-json's streaming Decoder (a drop-in, faster replacement for
// encoding/json's own Decoder) so that object member order is preserved
// exactly as written; cnode.canonify's DFA tie-break rules depend on
// patterns being visited in source order.
func Parse(r io.Reader) (*Node, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	n, err := decodeValue(dec, "#")
	if err != nil {
		return nil, errors.Wrap(err, "schemaast: decode")
	}
	return n, nil
}

func decodeValue(dec *json.Decoder, ptr string) (*Node, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	return decodeToken(dec, tok, ptr)
}

func decodeToken(dec *json.Decoder, tok json.Token, ptr string) (*Node, error) {
	switch x := tok.(type) {
	case nil:
		return &Node{Kind: KindNull, Pointer: ptr}, nil
	case bool:
		return &Node{Kind: KindBool, Bool: x, Pointer: ptr}, nil
	case json.Number:
		f, _ := x.Float64()
		return &Node{Kind: KindNumber, Number: f, Pointer: ptr}, nil
	case string:
		return &Node{Kind: KindString, String: x, Pointer: ptr}, nil
	case json.Delim:
		switch x {
		case '[':
			var arr []*Node
			for i := 0; dec.More(); i++ {
				child, err := decodeValue(dec, ptr+"/"+itoa(i))
				if err != nil {
					return nil, err
				}
				arr = append(arr, child)
			}
			if _, err := dec.Token(); err != nil { // consume ']'
				return nil, err
			}
			return &Node{Kind: KindArray, Array: arr, Pointer: ptr}, nil
		case '{':
			var members []Member
			for dec.More() {
				kt, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, _ := kt.(string)
				child, err := decodeValue(dec, ptr+"/"+escape(key))
				if err != nil {
					return nil, err
				}
				members = append(members, Member{Key: key, Value: child})
			}
			if _, err := dec.Token(); err != nil { // consume '}'
				return nil, err
			}
			return &Node{Kind: KindObject, Object: members, Pointer: ptr}, nil
		}
	}
	return &Node{Kind: KindNull, Pointer: ptr}, nil
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	neg := i < 0
	if neg {
		i = -i
	}
	var buf [20]byte
	pos := len(buf)
	for i > 0 {
		pos--
		buf[pos] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}

// escape applies JSON-pointer member escaping (RFC 6901: ~ -> ~0, / -> ~1).
func escape(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '~':
			out = append(out, '~', '0')
		case '/':
			out = append(out, '~', '1')
		default:
			out = append(out, s[i])
		}
	}
	return string(out)
}
