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

package compiler

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/penumbra-zone/schemata/keymodel"
	"github.com/penumbra-zone/schemata/kv"
	"github.com/penumbra-zone/schemata/syntax"
)

var goTypeRe = regexp.MustCompile(
	`^([A-Za-z0-9_.~\-]+/)*[A-Za-z_][A-Za-z0-9_]*\.[A-Za-z_][A-Za-z0-9_]*$`,
)

// Validate checks a resolved schema and reports every violation.
func Validate(schema *Schema, opts ...CompileOption) ([]*Error, []*Warning) {
	return NewCompileOptions(opts...).Validate(schema)
}

func (opts *CompileOptions) Validate(schema *Schema) ([]*Error, []*Warning) {
	v := &validator{
		compiler: &compiler{
			opts:   opts,
			schema: schema,
			stage:  StageValidate,
		},
		segmentOK:   make(map[*segmentInfo]bool),
		invalidKeys: make(map[*keyInfo]bool),
	}
	v.checkSchemaOptions()
	v.checkDeclOptions()
	v.checkSegmentDecls()
	v.checkKeys()
	v.checkHostBindings()
	v.checkOverlaps()
	v.checkCanonicalNames()
	v.checkBaseline()
	v.checkUnused()

	v.sortDiagnostics()
	return v.errors, v.warnings
}

type validator struct {
	*compiler
	segmentOK   map[*segmentInfo]bool
	invalidKeys map[*keyInfo]bool
}

func isTextOption(opt *optionInfo) bool {
	_, ok := opt.valueNode.(*syntax.TextLit)
	return ok
}

func (v *validator) checkSchemaOptions() {
	schema := v.schema
	for _, opt := range schema.options {
		span := opt.valueNode.Span()
		switch opt.name {
		case "version":
			if !isTextOption(opt) {
				v.err(errInvalidOptionValue(opt.name, "expected a text literal", span))
			} else if _, err := semver.StrictNewVersion(opt.value); err != nil {
				v.err(errInvalidVersion(opt.value, span))
			}
		case "delimiter":
			if !isTextOption(opt) {
				v.err(errInvalidOptionValue(opt.name, "expected a text literal", span))
			} else if reason := checkDelimiter(opt.value); reason != "" {
				v.err(errInvalidOptionValue(opt.name, reason, span))
			}
		case "collisions":
			if opt.value != collisionsScopeNS && opt.value != collisionsSchema {
				v.err(errInvalidOptionValue(
					opt.name,
					fmt.Sprintf("expected %q or %q", collisionsScopeNS, collisionsSchema),
					span,
				))
			}
		case "baseline":
			if !isTextOption(opt) || opt.value == "" {
				v.err(errInvalidOptionValue(opt.name, "expected a file path", span))
			}
		default:
			if !isHostOption(opt.name) {
				v.warn(warnUnknownOption(opt.name, opt.node.(*syntax.OptionsOption).Name().Span()))
			}
		}
	}
}

func checkDelimiter(value string) string {
	if len(value) != 1 {
		return "must be a single byte"
	}
	c := value[0]
	switch {
	case c < 0x21 || c > 0x7E:
		return "must be a printable ASCII character"
	case (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9'):
		return "must not be a letter or digit"
	case c == '"' || c == '\\':
		return "must not be a quote or backslash"
	}
	return ""
}

func (v *validator) checkDeclOptions() {
	check := func(opts []*optionInfo) {
		for _, opt := range opts {
			if isHostOption(opt.name) {
				continue
			}
			var span syntax.Span
			switch node := opt.node.(type) {
			case *syntax.Option:
				span = node.Name().Span()
			case *syntax.OptionsOption:
				span = node.Name().Span()
			}
			v.warn(warnUnknownOption(opt.name, span))
		}
	}
	for _, ns := range v.schema.namespaces {
		for _, seg := range ns.segments {
			check(seg.options)
		}
		for _, value := range ns.values {
			check(value.options)
		}
		for _, key := range ns.keys {
			check(key.options)
		}
	}
}

func (v *validator) checkSegmentDecls() {
	for _, ns := range v.schema.namespaces {
		for _, seg := range ns.segments {
			v.segmentDeclOK(seg)
		}
	}
}

// segmentDeclOK checks a segment declaration once. A declaration that
// refers to an invalid declaration is itself invalid, without a second
// report.
func (v *validator) segmentDeclOK(seg *segmentInfo) bool {
	if ok, checked := v.segmentOK[seg]; checked {
		return ok
	}
	ok := v.checkSegmentType(seg.node.SegmentType(), seg.typ, seg.target)
	v.segmentOK[seg] = ok
	return ok
}

func (v *validator) checkSegmentType(
	node *syntax.SegmentType,
	typ keymodel.SegmentType,
	decl *segmentInfo,
) bool {
	name := syntax.Unparse(node.TypeName())
	span := node.Span()
	hasArgs := node.Encoding() != nil || node.Size() != nil

	if decl != nil {
		if hasArgs {
			v.err(errInvalidSegmentType(name, "declared segment types take no arguments", span))
			return false
		}
		return v.segmentDeclOK(decl)
	}

	switch typ.Kind {
	case keymodel.KindBytes:
		if node.Encoding() != nil {
			v.err(errInvalidSegmentType(name, "bytes takes no encoding", span))
			return false
		}
		size := node.Size()
		if size == nil {
			v.err(errInvalidSegmentType(name, "bytes requires a size, such as bytes[16]", span))
			return false
		}
		if n := size.GetUint64(); n < 1 || n > 255 {
			v.err(errInvalidSegmentType(name, "size must be between 1 and 255", span))
			return false
		}
	case keymodel.KindString:
		if node.Size() != nil {
			v.err(errInvalidSegmentType(name, "string takes no size", span))
			return false
		}
		encNode := node.Encoding()
		if encNode == nil || encNode.Get() == "raw" {
			v.err(errUnsafeEncoding(syntax.Unparse(node), span))
			return false
		}
		enc, ok := kv.ParseEncoding(encNode.Get())
		if !ok {
			v.err(errInvalidSegmentType(
				name,
				fmt.Sprintf("unknown string encoding '%s'", encNode.Get()),
				span,
			))
			return false
		}
		delim := v.schema.delimiter
		if enc.Allows(delim, delim) {
			v.err(errEncodingContainsDelimiter(enc.String(), delim, span))
			return false
		}
	default:
		if hasArgs {
			v.err(errInvalidSegmentType(name, fmt.Sprintf("'%s' takes no arguments", typ.Kind), span))
			return false
		}
	}
	return true
}

func (v *validator) checkKeys() {
	delim := v.schema.delimiter
	for _, ns := range v.schema.namespaces {
		for _, key := range ns.keys {
			names := make(map[string]struct{})
			for _, seg := range key.segments {
				if seg.isLiteral() {
					if !v.checkLiteral(seg.literalNode, delim) {
						v.invalidKeys[key] = true
					}
					continue
				}
				if _, dup := names[seg.name]; dup {
					v.err(errDuplicateVariable(key.name, seg.name, seg.nameNode.Span()))
					v.invalidKeys[key] = true
				}
				names[seg.name] = struct{}{}
				if !v.checkSegmentType(seg.typeNode, seg.typ, seg.decl) {
					v.invalidKeys[key] = true
				}
			}
		}
	}
}

func (v *validator) checkLiteral(node *syntax.TextLit, delim byte) bool {
	span := node.Span()
	literal, ok := node.GetText()
	if !ok {
		v.err(errInvalidLiteral(node.Raw(), "must be valid UTF-8 text without NUL", span))
		return false
	}
	if literal == "" {
		v.err(errInvalidLiteral(literal, "must not be empty", span))
		return false
	}
	if strings.IndexByte(literal, delim) >= 0 {
		v.err(errInvalidLiteral(literal, fmt.Sprintf("contains the delimiter %q", delim), span))
		return false
	}
	for _, c := range []byte(literal) {
		if c < 0x20 || c == 0x7F {
			v.err(errInvalidLiteral(literal, "contains a control character", span))
			return false
		}
	}
	return true
}

func (v *validator) checkHostBindings() {
	bound := make(map[string]*valueInfo)
	for _, ns := range v.schema.namespaces {
		for _, value := range ns.values {
			if value.alias != nil {
				continue
			}
			for _, opt := range value.options {
				if opt.name != "go.type" {
					continue
				}
				span := opt.node.Span()
				if !isTextOption(opt) || !goTypeRe.MatchString(opt.value) {
					v.err(errInvalidHostBinding(
						opt.name, opt.value, "expected \"import/path.TypeName\"", span,
					))
					continue
				}
				if prev, ok := bound[opt.value]; ok && prev.format != value.format {
					v.err(errInvalidHostBinding(
						opt.name,
						opt.value,
						fmt.Sprintf(
							"already bound to %s with format %s",
							prev.qualifiedName(), prev.format,
						),
						span,
					))
					continue
				}
				bound[opt.value] = value
			}
		}
	}
}

func (v *validator) checkCanonicalNames() {
	seen := make(map[string]*keyInfo)
	for _, key := range v.schema.allKeys() {
		canonical := key.canonicalName()
		if prev, ok := seen[canonical]; ok {
			v.err(errCanonicalNameCollision(
				canonical, key.qualifiedName(), prev.qualifiedName(), key.node.Span(),
			))
			continue
		}
		seen[canonical] = key
	}
}

func (v *validator) checkUnused() {
	for _, ns := range v.schema.namespaces {
		for _, seg := range ns.segments {
			if !seg.used {
				v.warn(warnUnusedSegment(ns.name, seg.name, seg.node.Name().Span()))
			}
		}
		for _, value := range ns.values {
			if !value.used {
				v.warn(warnUnusedValue(ns.name, value.name, value.node.Name().Span()))
			}
		}
	}
}
