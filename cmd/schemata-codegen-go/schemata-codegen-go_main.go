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
	"log"
	"os"

	"github.com/spf13/pflag"

	"github.com/penumbra-zone/schemata"
	"github.com/penumbra-zone/schemata/codegen/golang"
)

func main() {
	log.SetFlags(0)

	flags := pflag.NewFlagSet(os.Args[0], pflag.ContinueOnError)
	outDir := flags.StringP("output", "o", ".", "Directory to write generated packages to")
	goPackage := flags.String("go-package", "", "Import path of the output directory")
	baseline := flags.String("baseline", "", "Key model JSON to check compatibility against")
	if err := flags.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}
	if flags.NArg() != 1 {
		log.Fatalf("usage: %s [-o DIR] SCHEMA", os.Args[0])
	}
	schemaPath := flags.Arg(0)

	var opts []schemata.Option
	if *baseline != "" {
		opts = append(opts, schemata.WithBaselineFile(*baseline))
	}
	gen := &golang.Generator{ImportPath: *goPackage}
	result, err := schemata.Build(context.Background(), schemaPath, gen, *outDir, opts...)
	if err != nil {
		log.Fatal(err)
	}
	for _, diag := range result.Diagnostics {
		fmt.Fprintln(os.Stderr, diag)
	}
	if result.Failed() {
		os.Exit(1)
	}
}
