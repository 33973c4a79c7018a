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

package main

import (
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/katef/jvst-go/disasm"
	"github.com/katef/jvst-go/vmprog"
)

func newDisasmCmd() *cobra.Command {
	var fromImage bool

	cmd := &cobra.Command{
		Use:   "disasm <schema.json|image>",
		Short: "Print a compiled VM program as text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var prog *vmprog.VmProgram
			var err error
			if fromImage {
				prog, err = readProgram(args[0])
			} else {
				prog, err = compileSchemaFile(args[0], false)
			}
			if err != nil {
				return err
			}
			return disasm.Fprint(os.Stdout, prog)
		},
	}
	cmd.Flags().BoolVar(&fromImage, "image", false, "treat the argument as an already-compiled image rather than a schema")
	return cmd
}

func readProgram(path string) (*vmprog.VmProgram, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening image")
	}
	defer f.Close()

	prog := &vmprog.VmProgram{}
	if _, err := prog.ReadFrom(f); err != nil {
		return nil, errors.Wrapf(err, "reading image %s", path)
	}
	return prog, nil
}
