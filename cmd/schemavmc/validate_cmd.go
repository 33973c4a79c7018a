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
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/katef/jvst-go/internal/tokensrc"
	"github.com/katef/jvst-go/vm"
	"github.com/katef/jvst-go/vmprog"
)

func newValidateCmd() *cobra.Command {
	var fromImage bool

	cmd := &cobra.Command{
		Use:   "validate <schema.json|image> <document.json>",
		Short: "Validate a document against a compiled schema",
		Args:  cobra.ExactArgs(2),
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

			doc, err := os.ReadFile(args[1])
			if err != nil {
				return errors.Wrap(err, "reading document")
			}

			valid, code, err := runValidate(prog, doc)
			if err != nil {
				return errors.Wrap(err, "running validator")
			}
			if valid {
				fmt.Println("valid")
				return nil
			}
			fmt.Printf("invalid: %s\n", code)
			os.Exit(1)
			return nil
		},
	}
	cmd.Flags().BoolVar(&fromImage, "image", false, "treat the schema argument as an already-compiled image")
	return cmd
}

// runValidate feeds doc to a fresh Machine in one shot, then signals
// end of input so a trailing bare scalar document (a lone "42" with no
// following byte) still resolves, the same two-step "feed, then Close"
// sequence internal/tokensrc's own MachineSource tests exercise.
func runValidate(prog *vmprog.VmProgram, doc []byte) (bool, vm.Code, error) {
	src := tokensrc.NewMachineSource()
	m := vm.New(prog, src)

	st, code, err := m.Step(doc)
	if st == vm.StatusMore {
		src.Close()
		st, code, err = m.Step(nil)
	}
	if err != nil {
		return false, 0, err
	}
	if st == vm.StatusMore {
		return false, 0, errors.New("document ended before the validator reached a verdict")
	}
	return st == vm.StatusValid, code, nil
}
