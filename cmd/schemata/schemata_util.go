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
	"fmt"
	"io"
	"path/filepath"

	"github.com/penumbra-zone/schemata"
	"github.com/penumbra-zone/schemata/codegen"
	"github.com/penumbra-zone/schemata/codegen/golang"
	"github.com/penumbra-zone/schemata/codegen/plugin/wasmhost"
)

func printDiagnostics(w io.Writer, diags []schemata.Diagnostic) {
	for _, diag := range diags {
		fmt.Fprintln(w, diag)
	}
}

type generatorOptions struct {
	language   string
	pluginPath string
	goPackage  string
}

// newGenerator returns the built-in Go emitter for language "go" unless a
// plugin path was given explicitly. Other languages always run as plugins.
func newGenerator(opts generatorOptions) codegen.Generator {
	if opts.language == golang.Language && opts.pluginPath == "" {
		return &golang.Generator{ImportPath: opts.goPackage}
	}
	pluginOpts := make(map[string]string)
	if opts.goPackage != "" {
		pluginOpts[golang.OptionPackage] = opts.goPackage
	}
	return &wasmhost.Generator{
		Language:   opts.language,
		PluginPath: opts.pluginPath,
		Options:    pluginOpts,
	}
}

func writeFile(path string, content []byte) error {
	return codegen.WriteFiles(filepath.Dir(path), []codegen.OutputFile{
		{Path: filepath.Base(path), Content: content},
	})
}
