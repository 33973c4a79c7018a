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

	"github.com/katef/jvst-go/compile"
	"github.com/katef/jvst-go/schemaast"
	"github.com/katef/jvst-go/vmprog"
)

func newCompileCmd() *cobra.Command {
	var outFile string
	var verbose bool

	cmd := &cobra.Command{
		Use:   "compile <schema.json>",
		Short: "Compile a JSON Schema document into a packed VM image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prog, err := compileSchemaFile(args[0], verbose)
			if err != nil {
				return err
			}
			return writeProgram(prog, outFile)
		},
	}
	cmd.Flags().StringVarP(&outFile, "o", "o", "", "`filename` to write the compiled image to (default: stdout)")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "trace each pipeline stage to stderr")
	return cmd
}

// compileSchemaFile parses and compiles the schema at path, wrapping
// either failure with the file name the way cmd/retro's atExit
// attributes a failing image to the -image flag's filename.
func compileSchemaFile(path string, verbose bool) (*vmprog.VmProgram, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening schema")
	}
	defer f.Close()

	schema, err := schemaast.Parse(f)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing schema %s", path)
	}

	var opts []compile.Option
	if verbose {
		opts = append(opts, compile.Verbose(true))
	}
	prog, err := compile.Compile(schema, opts...)
	if err != nil {
		return nil, errors.Wrapf(err, "compiling schema %s", path)
	}
	return prog, nil
}

// writeProgram packs prog to outFile, or to stdout when outFile is
// empty, the same "empty -o means stdout" convention cmd/retro's own
// -o flag documents for saved memory images.
func writeProgram(prog *vmprog.VmProgram, outFile string) error {
	w := os.Stdout
	if outFile != "" {
		f, err := os.Create(outFile)
		if err != nil {
			return errors.Wrap(err, "creating output file")
		}
		defer f.Close()
		w = f
	}
	if _, err := prog.WriteTo(w); err != nil {
		return errors.Wrap(err, "writing compiled image")
	}
	return nil
}
