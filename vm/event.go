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

package vm

import "github.com/katef/jvst-go/ir"

// Event is one token the source hands the machine: a scalar value, or
// the beginning/end of a composite. Kind reuses ir.TokKind so OpBranch
// conditions (ETokType/EIsTok) and Event agree on the same enumeration
// without a second token-kind type to keep in sync.
type Event struct {
	Kind ir.TokKind

	// Num is the token's numeric value when Kind == TokNumber.
	Num float64

	// Str is a string token's bytes (a property name or a STRING
	// value). Partial marks an incomplete chunk of a longer string;
	// the machine concatenates partials before treating the string as
	// complete, mirroring the source's "partial string tokens
	// accumulate" rule.
	Str     string
	Partial bool
}

// Status is the outcome of one Machine.Step call, and is reused by
// TokenSource.Next for the same three-way result (an event was
// produced, more input is needed, or validation has a final answer).
type Status int

const (
	StatusValid Status = iota
	StatusInvalid
	StatusMore
)

func (s Status) String() string {
	switch s {
	case StatusValid:
		return "valid"
	case StatusInvalid:
		return "invalid"
	case StatusMore:
		return "more"
	default:
		return "unknown"
	}
}

// Code identifies why a validation failed; it is ir.InvalidCode under
// the name the external API documents.
type Code = ir.InvalidCode

// TokenSource feeds the machine events from an incrementally-arriving
// byte stream. Feed appends newly-available input; Next reports the
// next event (StatusValid, by convention, since Status has no distinct
// "ok" member — see Status's doc comment) or StatusMore if every
// buffered byte has already been tokenized and more input is required
// before another event can be produced. A non-nil error is fatal: the
// underlying stream is malformed and the machine cannot continue.
type TokenSource interface {
	Feed(b []byte)
	Next(ev *Event) (Status, error)
}
