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

// Package compiler turns a parsed schema into a canonical key model.
//
// Compilation runs in three stages. Resolve registers every declaration
// and binds every type reference. Validate checks the resolved schema and
// reports every violation it finds. BuildModel produces the sorted
// keymodel.Model. Resolve errors stop compilation before validation.
package compiler

import (
	"cmp"
	"slices"

	"github.com/penumbra-zone/schemata/keymodel"
	"github.com/penumbra-zone/schemata/syntax"
)

const (
	defaultDelimiter  = '/'
	collisionsScopeNS = "namespace"
	collisionsSchema  = "schema"
)

type CompileOption interface {
	apply(*CompileOptions)
}

type compileOption func(*CompileOptions)

func (f compileOption) apply(opts *CompileOptions) { f(opts) }

type CompileOptions struct {
	baseline   *keymodel.Model
	sourcePath string
}

// WithBaseline enables versioning checks against a previously compiled
// model.
func WithBaseline(baseline *keymodel.Model) CompileOption {
	return compileOption(func(opts *CompileOptions) {
		opts.baseline = baseline
	})
}

func WithSourcePath(sourcePath string) CompileOption {
	return compileOption(func(opts *CompileOptions) {
		opts.sourcePath = sourcePath
	})
}

func NewCompileOptions(opts ...CompileOption) *CompileOptions {
	compileOptions := &CompileOptions{}
	for _, opt := range opts {
		opt.apply(compileOptions)
	}
	return compileOptions
}

type CompileResult struct {
	model *keymodel.Model

	Errors   []*Error
	Warnings []*Warning
}

// Model is nil if compilation failed.
func (r *CompileResult) Model() *keymodel.Model {
	return r.model
}

func Compile(parsedSchema *syntax.Schema, opts ...CompileOption) CompileResult {
	return NewCompileOptions(opts...).Compile(parsedSchema)
}

func (opts *CompileOptions) Compile(parsedSchema *syntax.Schema) CompileResult {
	schema, errs := opts.Resolve(parsedSchema)
	if len(errs) > 0 {
		return CompileResult{Errors: errs}
	}
	errs, warnings := opts.Validate(schema)
	if len(errs) > 0 {
		return CompileResult{
			Errors:   errs,
			Warnings: warnings,
		}
	}
	return CompileResult{
		model:    BuildModel(schema),
		Warnings: warnings,
	}
}

// Schema is a resolved schema. It is owned by one compilation and is not
// modified after Resolve returns.
type Schema struct {
	parsed     *syntax.Schema
	sourcePath string

	options     []*optionInfo
	optionsByID map[string]*optionInfo
	version     string
	delimiter   byte
	collisions  string
	hostOptions map[string]string

	namespaces   []*namespaceInfo
	namespacesBy map[string]*namespaceInfo
}

func (s *Schema) SourcePath() string {
	return s.sourcePath
}

type optionInfo struct {
	name      string
	value     string
	valueNode syntax.Node
	node      syntax.Node
}

type namespaceInfo struct {
	name     string
	node     *syntax.Namespace
	segments []*segmentInfo
	values   []*valueInfo
	keys     []*keyInfo
	decls    map[string]any
}

type segmentInfo struct {
	ns      *namespaceInfo
	node    *syntax.SegmentDecl
	name    string
	options []*optionInfo

	// Set by resolveSegmentDecl()
	target  *segmentInfo
	typ     keymodel.SegmentType
	invalid bool
	used    bool
}

func (s *segmentInfo) qualifiedName() string {
	return s.ns.name + "." + s.name
}

type valueInfo struct {
	ns      *namespaceInfo
	node    *syntax.ValueDecl
	name    string
	options []*optionInfo

	// Set by resolveValueDecl()
	format keymodel.ValueFormat
	alias  *valueInfo
	compat []*compatRef
	used   bool
}

func (v *valueInfo) qualifiedName() string {
	return v.ns.name + "." + v.name
}

// target follows aliases to the declaration that defines a format.
func (v *valueInfo) target() *valueInfo {
	for v.alias != nil {
		v = v.alias
	}
	return v
}

// compatRef is a predecessor named by `compat`. It binds to a value
// declaration of the current schema if one exists, otherwise to a value
// type of the baseline.
type compatRef struct {
	node     *syntax.TypeName
	name     string
	decl     *valueInfo
	baseline *keymodel.ValueType
}

type keyInfo struct {
	ns       *namespaceInfo
	node     *syntax.KeyDecl
	name     string
	options  []*optionInfo
	segments []*segmentRef

	// Set by resolveKeyDecl()
	value *valueInfo
}

func (k *keyInfo) qualifiedName() string {
	return k.ns.name + "." + k.name
}

func (k *keyInfo) canonicalName() string {
	return keymodel.CanonicalName(k.ns.name, k.name)
}

// segmentRef is one component of a key pattern.
type segmentRef struct {
	literal     string
	literalNode *syntax.TextLit

	name     string
	nameNode *syntax.Ident
	typeNode *syntax.SegmentType
	ordinal  int
	decl     *segmentInfo
	typ      keymodel.SegmentType
}

func (s *segmentRef) isLiteral() bool {
	return s.literalNode != nil
}

func (s *Schema) allKeys() []*keyInfo {
	var out []*keyInfo
	for _, ns := range s.namespaces {
		out = append(out, ns.keys...)
	}
	return out
}

type compiler struct {
	opts     *CompileOptions
	schema   *Schema
	stage    Stage
	errors   []*Error
	warnings []*Warning
}

func (c *compiler) err(err error) {
	compileErr := err.(*Error)
	compileErr.stage = c.stage
	c.errors = append(c.errors, compileErr)
}

func (c *compiler) warn(warning *Warning) {
	c.warnings = append(c.warnings, warning)
}

// sortDiagnostics orders errors and warnings by source offset, then code.
func (c *compiler) sortDiagnostics() {
	slices.SortStableFunc(c.errors, func(a, b *Error) int {
		if x := cmp.Compare(a.span.Start(), b.span.Start()); x != 0 {
			return x
		}
		return cmp.Compare(a.code, b.code)
	})
	slices.SortStableFunc(c.warnings, func(a, b *Warning) int {
		if x := cmp.Compare(a.span.Start(), b.span.Start()); x != 0 {
			return x
		}
		return cmp.Compare(a.code, b.code)
	})
}
