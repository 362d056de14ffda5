// Copyright (c) 2024 John Millikin <john@john-millikin.com>
//
// Permission to use, copy, modify, and/or distribute this software for any
// purpose with or without fee is hereby granted.
//
// THE SOFTWARE IS PROVIDED "AS IS" AND THE AUTHOR DISCLAIMS ALL WARRANTIES WITH
// REGARD TO THIS SOFTWARE INCLUDING ALL IMPLIED WARRANTIES OF MERCHANTABILITY
// AND FITNESS. IN NO EVENT SHALL THE AUTHOR BE LIABLE FOR ANY SPECIAL, DIRECT,
// INDIRECT, OR CONSEQUENTIAL DAMAGES OR ANY DAMAGES WHATSOEVER RESULTING FROM
// LOSS OF USE, DATA OR PROFITS, WHETHER IN AN ACTION OF CONTRACT, NEGLIGENCE OR
// OTHER TORTIOUS ACTION, ARISING OUT OF OR IN CONNECTION WITH THE USE OR
// PERFORMANCE OF THIS SOFTWARE.
//
// SPDX-License-Identifier: 0BSD

package main

import (
	"context"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/penumbra-zone/schemata"
	"github.com/penumbra-zone/schemata/codegen/golang"
)

type cmdCodegen struct {
	*env
	outDir     string
	language   string
	pluginPath string
	goPackage  string
	baseline   string
	lock       string
}

func (*cmdCodegen) help() *commandHelp {
	return &commandHelp{
		usage:   "codegen SCHEMA",
		summary: "Generate typed key accessors for a schema",
	}
}

func (cmd *cmdCodegen) flags(flags *pflag.FlagSet) {
	flags.StringVarP(&cmd.outDir, "output", "o", "", "Directory to write generated code to")
	flags.StringVarP(&cmd.language, "language", "l", golang.Language, "Target language")
	flags.StringVar(&cmd.pluginPath, "plugin-path", "", "Directories to search for codegen plugins")
	flags.StringVar(&cmd.goPackage, "go-package", "", "Import path of the output directory (overrides go.package)")
	flags.StringVar(&cmd.baseline, "baseline", "", "Key model JSON to check compatibility against")
	flags.StringVar(&cmd.lock, "lock", "", "Write the compiled key model JSON to this file")
}

func (cmd *cmdCodegen) run(ctx context.Context, argv []string) int {
	if len(argv) != 1 {
		fmt.Fprintln(cmd.stderr, "usage: schemata codegen SCHEMA -o DIR")
		return 2
	}
	if cmd.outDir == "" {
		fmt.Fprintln(cmd.stderr, "No output directory specified (set --output=)")
		return 2
	}

	var opts []schemata.Option
	if cmd.baseline != "" {
		opts = append(opts, schemata.WithBaselineFile(cmd.baseline))
	}
	gen := newGenerator(generatorOptions{
		language:   cmd.language,
		pluginPath: cmd.pluginPath,
		goPackage:  cmd.goPackage,
	})
	cmd.log.Debug().Str("language", cmd.language).Type("generator", gen).Msg("generating")

	result, err := schemata.Build(ctx, argv[0], gen, cmd.outDir, opts...)
	if result != nil {
		printDiagnostics(cmd.stderr, result.Diagnostics)
	}
	if err != nil {
		fmt.Fprintln(cmd.stderr, err)
		return 1
	}
	if result.Failed() {
		return 1
	}
	if cmd.lock != "" {
		if err := schemata.WriteLock(cmd.lock, result.Model); err != nil {
			fmt.Fprintln(cmd.stderr, err)
			return 1
		}
	}
	cmd.log.Info().Str("schema", argv[0]).Str("output", cmd.outDir).Msg("generated")
	return 0
}
