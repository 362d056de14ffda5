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

// Package schemata drives the key schema pipeline: parse, resolve,
// validate, build the key model and emit generated code. Failures are
// reported as a list of structured Diagnostics.
package schemata

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/penumbra-zone/schemata/codegen"
	"github.com/penumbra-zone/schemata/compiler"
	"github.com/penumbra-zone/schemata/keymodel"
	"github.com/penumbra-zone/schemata/syntax"
)

type Option interface {
	apply(*Options)
}

type option func(*Options)

func (f option) apply(opts *Options) { f(opts) }

type Options struct {
	baseline     *keymodel.Model
	baselinePath string
}

// WithBaseline checks compatibility against an already loaded model.
func WithBaseline(baseline *keymodel.Model) Option {
	return option(func(opts *Options) {
		opts.baseline = baseline
	})
}

// WithBaselineFile loads the baseline from a key model JSON file. It
// takes precedence over the schema's `baseline` option.
func WithBaselineFile(path string) Option {
	return option(func(opts *Options) {
		opts.baselinePath = path
	})
}

func NewOptions(opts ...Option) *Options {
	options := &Options{}
	for _, opt := range opts {
		opt.apply(options)
	}
	return options
}

type Result struct {
	Path        string
	Model       *keymodel.Model
	Diagnostics []Diagnostic
}

// Failed reports whether any diagnostic is an error.
func (r *Result) Failed() bool {
	for _, diag := range r.Diagnostics {
		if diag.Severity == SeverityError {
			return true
		}
	}
	return false
}

func (r *Result) Errors() []Diagnostic {
	return r.filter(SeverityError)
}

func (r *Result) Warnings() []Diagnostic {
	return r.filter(SeverityWarning)
}

func (r *Result) filter(severity Severity) []Diagnostic {
	var out []Diagnostic
	for _, diag := range r.Diagnostics {
		if diag.Severity == severity {
			out = append(out, diag)
		}
	}
	return out
}

func CompileFile(path string, opts ...Option) (*Result, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Compile(path, src, opts...)
}

func Compile(path string, src []byte, opts ...Option) (*Result, error) {
	return NewOptions(opts...).Compile(path, src)
}

// Compile runs the front end of the pipeline. The returned error is
// reserved for environment failures such as an unreadable baseline; schema
// problems are reported as diagnostics.
func (opts *Options) Compile(path string, src []byte) (*Result, error) {
	idx := newLineIndex(path, src)
	result := &Result{Path: path}

	parsed, err := syntax.Parse(src)
	if err != nil {
		var parseErr *syntax.Error
		if errors.As(err, &parseErr) {
			result.Diagnostics = []Diagnostic{idx.parseDiagnostic(parseErr)}
			return result, nil
		}
		return nil, err
	}

	baseline, err := opts.loadBaseline(path, parsed)
	if err != nil {
		return nil, err
	}
	compileOpts := []compiler.CompileOption{compiler.WithSourcePath(path)}
	if baseline != nil {
		compileOpts = append(compileOpts, compiler.WithBaseline(baseline))
	}

	compiled := compiler.Compile(parsed, compileOpts...)
	result.Model = compiled.Model()
	result.Diagnostics = idx.compileDiagnostics(&compiled)
	return result, nil
}

func (opts *Options) loadBaseline(path string, parsed *syntax.Schema) (*keymodel.Model, error) {
	if opts.baseline != nil {
		return opts.baseline, nil
	}
	if opts.baselinePath != "" {
		return LoadBaseline(opts.baselinePath)
	}
	rel := baselineOption(parsed)
	if rel == "" {
		return nil, nil
	}
	if !filepath.IsAbs(rel) {
		rel = filepath.Join(filepath.Dir(path), rel)
	}
	return LoadBaseline(rel)
}

// baselineOption returns the value of the schema's `baseline` option, or
// "" if it is absent or not a text literal. Malformed values are reported
// by the validator.
func baselineOption(parsed *syntax.Schema) string {
	options := parsed.Options()
	if options == nil {
		return ""
	}
	for opt := range options.Options() {
		if opt.Name().Get() != "baseline" {
			continue
		}
		lit, ok := opt.Value().(*syntax.TextLit)
		if !ok {
			return ""
		}
		text, _ := lit.GetText()
		return text
	}
	return ""
}

func LoadBaseline(path string) (*keymodel.Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading baseline: %w", err)
	}
	model, err := keymodel.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decoding baseline %s: %w", path, err)
	}
	return model, nil
}

// WriteLock writes the key model JSON, for use as a later baseline.
func WriteLock(path string, model *keymodel.Model) error {
	data, err := keymodel.Encode(model)
	if err != nil {
		return err
	}
	return codegen.WriteFiles(filepath.Dir(path), []codegen.OutputFile{
		{Path: filepath.Base(path), Content: data},
	})
}

// Emit generates code for a compiled model and writes it under outDir. An
// EmissionIOError is reported as a diagnostic. Other generator failures are
// returned as errors.
func Emit(
	ctx context.Context,
	result *Result,
	gen codegen.Generator,
	outDir string,
) error {
	if result.Model == nil {
		return errors.New("no key model to emit")
	}
	files, err := gen.Generate(ctx, result.Model)
	if err != nil {
		return emitError(result, err)
	}
	if err := codegen.WriteFiles(outDir, files); err != nil {
		return emitError(result, err)
	}
	return nil
}

func emitError(result *Result, err error) error {
	var ioErr *codegen.EmissionIOError
	if errors.As(err, &ioErr) {
		result.Diagnostics = append(result.Diagnostics, emitDiagnostic(ioErr))
		return nil
	}
	return err
}

// Build compiles the schema at path and, if compilation succeeds, emits it.
func Build(
	ctx context.Context,
	path string,
	gen codegen.Generator,
	outDir string,
	opts ...Option,
) (*Result, error) {
	result, err := CompileFile(path, opts...)
	if err != nil {
		return nil, err
	}
	if result.Failed() {
		return result, nil
	}
	if err := Emit(ctx, result, gen, outDir); err != nil {
		return result, err
	}
	return result, nil
}
