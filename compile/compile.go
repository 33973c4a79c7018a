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

// Package compile wires the whole pipeline together: a parsed schema AST
// goes in, a packed vmprog.VmProgram comes out. Every intermediate stage
// (cnode.Translate/Simplify/Canonify, ir.Translate, opasm.Assemble,
// vmprog.Encode) is this package's own private concern; callers never see
// a *cnode.Forest or *ir.Program.
package compile

import (
	"log"
	"os"

	"github.com/katef/jvst-go/cnode"
	"github.com/katef/jvst-go/ir"
	"github.com/katef/jvst-go/opasm"
	"github.com/katef/jvst-go/schemaast"
	"github.com/katef/jvst-go/vmprog"
)

// logger is the package-level diagnostic sink: a plain stdlib log.Logger
// writing to stderr rather than a structured logger, matching the rest of the
// VM/assembler tier.
var logger = log.New(os.Stderr, "compile: ", 0)

// ErrKind classifies why Compile failed.
type ErrKind int

const (
	ErrMalformedSchema ErrKind = iota
	ErrUnresolvedRef
	ErrUnsupportedKeyword
	ErrPatternCompileError
	ErrLiteralOutOfRange
	ErrBranchOutOfRange
)

func (k ErrKind) String() string {
	switch k {
	case ErrMalformedSchema:
		return "MALFORMED_SCHEMA"
	case ErrUnresolvedRef:
		return "UNRESOLVED_REF"
	case ErrUnsupportedKeyword:
		return "UNSUPPORTED_KEYWORD"
	case ErrPatternCompileError:
		return "PATTERN_COMPILE_ERROR"
	case ErrLiteralOutOfRange:
		return "LITERAL_OUT_OF_RANGE"
	case ErrBranchOutOfRange:
		return "BRANCH_OUT_OF_RANGE"
	default:
		return "UNKNOWN"
	}
}

// CompileError is the error type every Compile failure is reported as.
// Ptr is the JSON-pointer location of the offending schema node, when the
// failing stage was able to attribute one (only cnode.Translate does;
// Ptr is empty for cnode.Canonify, ir.Translate and opasm.Assemble
// failures).
type CompileError struct {
	Kind   ErrKind
	Detail string
	Ptr    string
	cause  error
}

func (e *CompileError) Error() string {
	if e.Ptr != "" {
		return "compile: " + e.Kind.String() + " at " + e.Ptr + ": " + e.Detail
	}
	return "compile: " + e.Kind.String() + ": " + e.Detail
}

func (e *CompileError) Cause() error  { return e.cause }
func (e *CompileError) Unwrap() error { return e.cause }

// Option configures Compile, following the functional-options pattern
// already used by vm.New and vmprog's sibling packages rather than
// growing a config struct parameter.
type Option func(*config)

type config struct {
	verbose bool
}

// Verbose turns on a one-line-per-stage trace to the package logger.
func Verbose(v bool) Option {
	return func(c *config) { c.verbose = v }
}

// Compile lowers a parsed schema AST all the way down to a packed
// vmprog.VmProgram, running every pipeline stage in turn and stopping at
// the first failure.
func Compile(schema *schemaast.Node, opts ...Option) (*vmprog.VmProgram, error) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}

	forest, err := cnode.Translate(schema)
	if err != nil {
		return nil, wrapTranslateErr(err)
	}
	if cfg.verbose {
		logger.Printf("translated schema into %d forest node(s)", len(forest.Nodes))
	}

	forest = cnode.Simplify(forest)
	if cfg.verbose {
		logger.Printf("simplified to %d forest node(s)", len(forest.Nodes))
	}

	forest, err = cnode.Canonify(forest)
	if err != nil {
		return nil, &CompileError{Kind: ErrPatternCompileError, Detail: err.Error(), cause: err}
	}
	if cfg.verbose {
		logger.Printf("canonified to %d forest node(s)", len(forest.Nodes))
	}

	prog, err := ir.Translate(forest)
	if err != nil {
		return nil, &CompileError{Kind: ErrUnresolvedRef, Detail: err.Error(), cause: err}
	}
	if cfg.verbose {
		logger.Printf("lowered to %d IR statement(s), %d frame(s)", len(prog.Stmts), len(prog.Frames))
	}

	op, err := opasm.Assemble(prog)
	if err != nil {
		return nil, &CompileError{Kind: ErrMalformedSchema, Detail: err.Error(), cause: err}
	}
	if cfg.verbose {
		logger.Printf("assembled %d proc(s)", len(op.Procs))
	}

	op = opasm.Optimize(op)
	if cfg.verbose {
		logger.Printf("optimized to %d total instruction(s)", instrCount(op))
	}

	return vmprog.Encode(op), nil
}

func instrCount(op *opasm.OpProgram) int {
	n := 0
	for _, p := range op.Procs {
		n += len(p.Code)
	}
	return n
}

// wrapTranslateErr maps a cnode.TranslateError onto the matching
// CompileError kind; any other error cnode.Translate might return (there
// are none as of this writing, but Translate's signature allows it) falls
// back to ErrMalformedSchema with no Ptr, rather than panicking on a
// failed type assertion.
func wrapTranslateErr(err error) *CompileError {
	te, ok := err.(*cnode.TranslateError)
	if !ok {
		return &CompileError{Kind: ErrMalformedSchema, Detail: err.Error(), cause: err}
	}
	var kind ErrKind
	switch te.Kind {
	case cnode.ErrUnresolvedRef:
		kind = ErrUnresolvedRef
	case cnode.ErrUnsupportedKeyword:
		kind = ErrUnsupportedKeyword
	case cnode.ErrMalformedSchema:
		kind = ErrMalformedSchema
	default:
		kind = ErrMalformedSchema
	}
	return &CompileError{Kind: kind, Detail: te.Detail, Ptr: te.Ptr, cause: err}
}
