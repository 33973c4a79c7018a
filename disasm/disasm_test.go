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

package disasm_test

import (
	"strings"
	"testing"

	"github.com/katef/jvst-go/compile"
	"github.com/katef/jvst-go/disasm"
	"github.com/katef/jvst-go/schemaast"
)

func TestFprint_ScalarType(t *testing.T) {
	schema, err := schemaast.Parse(strings.NewReader(`{"type": "number"}`))
	if err != nil {
		t.Fatalf("schemaast.Parse: %v", err)
	}
	prog, err := compile.Compile(schema)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	var sb strings.Builder
	if err := disasm.Fprint(&sb, prog); err != nil {
		t.Fatalf("Fprint: %v", err)
	}

	out := sb.String()
	for _, want := range []string{"proc 0:", "(entry)", "token", "valid", "invalid"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}
