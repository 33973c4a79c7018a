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

// Package errw provides small io.Writer/io.Reader wrappers that latch
// their first error, so a long chain of binary.Write/binary.Read calls
// (as used by vmprog's program-file encoder and decoder) can be
// written without checking err after every single field.
package errw

import (
	"io"

	"github.com/pkg/errors"
)

// Writer wraps an io.Writer and remembers the first error seen. Once
// Err is set, every subsequent Write is a no-op that returns that same
// error, so callers can fire off a sequence of binary.Write calls and
// check Err exactly once at the end.
type Writer struct {
	w   io.Writer
	Err error
}

// NewWriter returns a new Writer wrapping w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

func (w *Writer) Write(p []byte) (n int, err error) {
	if w.Err != nil {
		return 0, w.Err
	}
	n, err = w.w.Write(p)
	if err != nil {
		w.Err = errors.Wrap(err, "write failed")
	}
	return n, w.Err
}

// Reader is the read-side counterpart of Writer.
type Reader struct {
	r   io.Reader
	Err error
}

// NewReader returns a new Reader wrapping r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

func (r *Reader) Read(p []byte) (n int, err error) {
	if r.Err != nil {
		return 0, r.Err
	}
	n, err = io.ReadFull(r.r, p)
	if err != nil {
		r.Err = errors.Wrap(err, "read failed")
	}
	return n, r.Err
}
