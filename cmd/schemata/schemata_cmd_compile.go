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
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/penumbra-zone/schemata"
	"github.com/penumbra-zone/schemata/encoding/modeltext"
	"github.com/penumbra-zone/schemata/keymodel"
)

type cmdCompile struct {
	*env
	outPath  string
	format   string
	baseline string
}

func (*cmdCompile) help() *commandHelp {
	return &commandHelp{
		usage:   "compile SCHEMA",
		summary: "Check a schema and print its key model",
	}
}

func (cmd *cmdCompile) flags(flags *pflag.FlagSet) {
	flags.StringVarP(&cmd.outPath, "output", "o", "", "Write the key model to this file instead of stdout")
	flags.StringVarP(&cmd.format, "format", "f", "", "Output format: text or json (default from the output extension)")
	flags.StringVar(&cmd.baseline, "baseline", "", "Key model JSON to check compatibility against")
}

func (cmd *cmdCompile) outputFormat() (string, error) {
	switch cmd.format {
	case "":
		if filepath.Ext(cmd.outPath) == ".json" {
			return "json", nil
		}
		return "text", nil
	case "text", "json":
		return cmd.format, nil
	}
	return "", fmt.Errorf("unsupported output format %q (choose 'text' or 'json')", cmd.format)
}

func (cmd *cmdCompile) run(ctx context.Context, argv []string) int {
	if len(argv) != 1 {
		fmt.Fprintln(cmd.stderr, "usage: schemata compile SCHEMA [-o FILE] [-f text|json]")
		return 2
	}
	format, err := cmd.outputFormat()
	if err != nil {
		fmt.Fprintln(cmd.stderr, err)
		return 2
	}

	var opts []schemata.Option
	if cmd.baseline != "" {
		opts = append(opts, schemata.WithBaselineFile(cmd.baseline))
	}
	result, err := schemata.CompileFile(argv[0], opts...)
	if err != nil {
		fmt.Fprintln(cmd.stderr, err)
		return 1
	}
	printDiagnostics(cmd.stderr, result.Diagnostics)
	if result.Failed() {
		return 1
	}

	var output []byte
	if format == "json" {
		if output, err = keymodel.Encode(result.Model); err != nil {
			fmt.Fprintln(cmd.stderr, err)
			return 1
		}
	} else {
		output = []byte(modeltext.Encode(result.Model))
	}

	if cmd.outPath == "" {
		if _, err := cmd.stdout.Write(output); err != nil {
			fmt.Fprintln(cmd.stderr, err)
			return 1
		}
		return 0
	}
	if err := writeFile(cmd.outPath, output); err != nil {
		fmt.Fprintln(cmd.stderr, err)
		return 1
	}
	cmd.log.Debug().Str("path", cmd.outPath).Str("format", format).Msg("wrote key model")
	return 0
}
