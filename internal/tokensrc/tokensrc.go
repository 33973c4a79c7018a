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

// Package tokensrc is a streaming JSON tokenizer.
// vm.Machine only ever asks its vm.TokenSource for the next Token; this
// package's Source is one concrete producer of that sequence, built on
// goccy/go-json's Decoder the same way schemaast uses it, so that a
// validated document never needs to be buffered in full before the VM
// can start consuming it.
package tokensrc

import (
	"io"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
)

// Kind enumerates the token shapes a Source emits. It is a superset of
// cnode.EventKind: KEY has no SWITCH slot of its own (a property name
// is dispatched through MATCH_SWITCH, not through the 9-way SWITCH),
// but the VM needs to tell "this string is a property name" apart from
// "this string is a value" to do that dispatch.
type Kind int

const (
	Null Kind = iota
	True
	False
	Number
	String
	Key
	ObjectBeg
	ObjectEnd
	ArrayBeg
	ArrayEnd
)

func (k Kind) String() string {
	switch k {
	case Null:
		return "null"
	case True:
		return "true"
	case False:
		return "false"
	case Number:
		return "number"
	case String:
		return "string"
	case Key:
		return "key"
	case ObjectBeg:
		return "{"
	case ObjectEnd:
		return "}"
	case ArrayBeg:
		return "["
	case ArrayEnd:
		return "]"
	default:
		return "?"
	}
}

// Token is one lexical event. Number and String are populated only for
// the matching Kind.
type Token struct {
	Kind   Kind
	Number float64
	String string
}

// frame tracks one nesting level of the document so Source can tell
// object keys apart from values and object/array members apart from
// the top-level value.
type frame struct {
	inObject bool
	wantKey  bool // inObject only: true if the next string token is a key
}

// Source streams Tokens for one JSON document read from r. It is not
// safe for concurrent use; the VM that owns it calls Next from a single
// goroutine, suspending and resuming around it exactly as it would
// around any other blocking I/O (see vm.Machine.Step).
type Source struct {
	dec   *json.Decoder
	stack []frame
	done  bool
}

// New returns a Source reading tokens from r.
func New(r io.Reader) *Source {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	return &Source{dec: dec}
}

// Next returns the next token in the stream, or io.EOF once the
// top-level value (and any trailing whitespace) has been fully
// consumed.
func (s *Source) Next() (Token, error) {
	if s.done {
		return Token{}, io.EOF
	}

	if len(s.stack) > 0 {
		top := &s.stack[len(s.stack)-1]
		if top.inObject && top.wantKey {
			tok, err := s.dec.Token()
			if err != nil {
				return Token{}, errors.Wrap(err, "tokensrc: read key")
			}
			if d, ok := tok.(json.Delim); ok && d == '}' {
				s.stack = s.stack[:len(s.stack)-1]
				s.afterValue()
				return Token{Kind: ObjectEnd}, nil
			}
			key, ok := tok.(string)
			if !ok {
				return Token{}, errors.Errorf("tokensrc: expected object key, got %T", tok)
			}
			top.wantKey = false
			return Token{Kind: Key, String: key}, nil
		}
		if !top.inObject {
			if s.dec.More() {
				return s.nextValue()
			}
			if _, err := s.dec.Token(); err != nil { // consume ']'
				return Token{}, errors.Wrap(err, "tokensrc: close array")
			}
			s.stack = s.stack[:len(s.stack)-1]
			s.afterValue()
			return Token{Kind: ArrayEnd}, nil
		}
	}

	return s.nextValue()
}

// afterValue flips the parent frame (if any, and if it's an object)
// back into "expect a key next" mode, since a value was just consumed.
func (s *Source) afterValue() {
	if len(s.stack) == 0 {
		s.done = true
		return
	}
	top := &s.stack[len(s.stack)-1]
	if top.inObject {
		top.wantKey = true
	}
}

func (s *Source) nextValue() (Token, error) {
	tok, err := s.dec.Token()
	if err != nil {
		if err == io.EOF {
			s.done = true
		}
		return Token{}, err
	}
	switch x := tok.(type) {
	case nil:
		s.afterValue()
		return Token{Kind: Null}, nil
	case bool:
		s.afterValue()
		if x {
			return Token{Kind: True}, nil
		}
		return Token{Kind: False}, nil
	case json.Number:
		f, convErr := x.Float64()
		if convErr != nil {
			return Token{}, errors.Wrap(convErr, "tokensrc: malformed number")
		}
		s.afterValue()
		return Token{Kind: Number, Number: f}, nil
	case string:
		s.afterValue()
		return Token{Kind: String, String: x}, nil
	case json.Delim:
		switch x {
		case '{':
			s.stack = append(s.stack, frame{inObject: true, wantKey: true})
			return Token{Kind: ObjectBeg}, nil
		case '[':
			s.stack = append(s.stack, frame{inObject: false})
			return Token{Kind: ArrayBeg}, nil
		}
	}
	return Token{}, errors.Errorf("tokensrc: unexpected token %v", tok)
}
