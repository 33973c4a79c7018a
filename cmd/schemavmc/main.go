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

// Command schemavmc compiles JSON Schema documents to the bytecode
// vm.Machine runs, and drives that VM against input documents.
//
// Unlike cmd/retro (the Forth VM's own CLI, which parses its own
// flags with the standard library's flag package), schemavmc is built
// on cobra: this module's schemas and documents are better served by
// named subcommands (compile/validate/disasm) than by retro's single
// flat flag set, and cobra is already part of this module's dependency
// stack for exactly that shape of CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:           "schemavmc",
		Short:         "Compile and run JSON Schema validators",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newCompileCmd())
	root.AddCommand(newValidateCmd())
	root.AddCommand(newDisasmCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "schemavmc: %v\n", err)
		os.Exit(1)
	}
}
