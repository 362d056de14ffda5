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

// Package golang generates Go key types from a key model.
//
// Each namespace becomes one package, written to `<ns>/<ns>.keys.go`. For
// a pattern P the package has an immutable PKey type, its constructor
// MakePKey, the inverse DecodePKey, PKeyPrefix for scans, and PutP/GetP
// typed to the pattern's value type.
package golang

import (
	"bytes"
	"context"
	"fmt"
	"go/format"
	"go/token"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/penumbra-zone/schemata/codegen"
	"github.com/penumbra-zone/schemata/keymodel"
)

const (
	// Language names this emitter in `--language` and plugin file names.
	Language = "go"

	// RuntimeImportPath is the package generated code depends on.
	RuntimeImportPath = "github.com/penumbra-zone/schemata/kv"

	uuidImportPath = "github.com/google/uuid"

	// OptionPackage is the model option holding the import path of the
	// output directory. Packages for each namespace live beneath it.
	OptionPackage = "go.package"

	// OptionType binds a value type to an existing Go type.
	OptionType = "go.type"
)

type Generator struct {
	// ImportPath overrides the `go.package` option of the model. It is
	// needed only when one namespace refers to an unbound value type or
	// a segment type of another.
	ImportPath string
}

var _ codegen.Generator = (*Generator)(nil)

func (g *Generator) Generate(ctx context.Context, model *keymodel.Model) ([]codegen.OutputFile, error) {
	if len(model.Delimiter) != 1 {
		return nil, fmt.Errorf("golang: invalid delimiter %q", model.Delimiter)
	}
	importPath := g.ImportPath
	if importPath == "" {
		importPath = model.Options[OptionPackage]
	}

	var files []codegen.OutputFile
	deps := make(map[string][]string)
	for ii := range model.Namespaces {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ns := &model.Namespaces[ii]
		if token.IsKeyword(ns.Name) {
			return nil, fmt.Errorf("golang: namespace %q is a Go keyword", ns.Name)
		}
		f := &file{
			model:      model,
			ns:         ns,
			importPath: importPath,
			imports:    make(map[string]string),
			names:      make(map[string]string),
		}
		content, err := f.generate()
		if err != nil {
			return nil, fmt.Errorf("golang: namespace %s: %w", ns.Name, err)
		}
		deps[ns.Name] = f.deps
		files = append(files, codegen.OutputFile{
			Path:    ns.Name + "/" + ns.Name + ".keys.go",
			Content: content,
		})
	}
	if cycle := importCycle(deps); cycle != nil {
		return nil, fmt.Errorf(
			"golang: namespace packages import each other: %s",
			strings.Join(cycle, " -> "),
		)
	}
	return files, nil
}

// importCycle returns a cycle in the namespace import graph, or nil.
func importCycle(deps map[string][]string) []string {
	const (
		visiting = 1
		done     = 2
	)
	state := make(map[string]int)
	var stack []string
	var visit func(ns string) []string
	visit = func(ns string) []string {
		switch state[ns] {
		case visiting:
			idx := slices.Index(stack, ns)
			return append(slices.Clone(stack[idx:]), ns)
		case done:
			return nil
		}
		state[ns] = visiting
		stack = append(stack, ns)
		for _, dep := range deps[ns] {
			if cycle := visit(dep); cycle != nil {
				return cycle
			}
		}
		stack = stack[:len(stack)-1]
		state[ns] = done
		return nil
	}

	names := slices.Sorted(maps.Keys(deps))
	for _, ns := range names {
		if cycle := visit(ns); cycle != nil {
			return cycle
		}
	}
	return nil
}

type file struct {
	model      *keymodel.Model
	ns         *keymodel.Namespace
	importPath string

	// imports maps import path to the package name used in this file.
	imports map[string]string
	// names maps each top-level identifier to what declared it.
	names map[string]string
	// deps lists the namespaces whose packages this file imports.
	deps []string

	body bytes.Buffer
}

func (f *file) p(format string, args ...any) {
	fmt.Fprintf(&f.body, format, args...)
	f.body.WriteByte('\n')
}

func (f *file) declare(ident, owner string) error {
	if prev, ok := f.names[ident]; ok {
		return fmt.Errorf("identifier %s of %s is already declared by %s", ident, owner, prev)
	}
	f.names[ident] = owner
	return nil
}

func (f *file) generate() ([]byte, error) {
	for _, decl := range f.ns.Segments {
		if err := f.segmentDecl(&decl); err != nil {
			return nil, err
		}
	}
	for _, value := range f.ns.ValueTypes {
		if err := f.valueDecl(&value); err != nil {
			return nil, err
		}
	}
	if len(f.ns.Patterns) > 0 {
		f.use(RuntimeImportPath)
		f.p("const keyDelimiter = %s", strconv.QuoteRune(rune(f.model.Delimiter[0])))
		f.p("")
	}
	for ii := range f.ns.Patterns {
		if err := f.pattern(&f.ns.Patterns[ii]); err != nil {
			return nil, err
		}
	}

	var out bytes.Buffer
	out.WriteString("// Code generated by schemata-codegen-go. DO NOT EDIT.\n\n")
	fmt.Fprintf(&out, "package %s\n\n", f.ns.Name)
	f.writeImports(&out)
	out.Write(f.body.Bytes())

	formatted, err := format.Source(out.Bytes())
	if err != nil {
		return nil, fmt.Errorf("format generated source: %w", err)
	}
	return formatted, nil
}
