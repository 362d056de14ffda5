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
	"strings"

	"github.com/penumbra-zone/schemata/syntax"
)

type Stage uint8

const (
	StageResolve Stage = iota + 1
	StageValidate
)

func (s Stage) String() string {
	switch s {
	case StageResolve:
		return "resolve"
	case StageValidate:
		return "validate"
	}
	return fmt.Sprintf("Stage(%d)", uint8(s))
}

type ErrorKind uint8

const (
	InvalidSchemaError ErrorKind = iota + 1
	UnresolvedReferenceError
	CyclicTypeReferenceError
	UnsafeSegmentEncodingError
	DuplicatePatternError
	PrefixCollisionError
	CanonicalNameCollisionError
	BreakingSchemaChangeError
)

var errorKindNames = map[ErrorKind]string{
	InvalidSchemaError:          "InvalidSchemaError",
	UnresolvedReferenceError:    "UnresolvedReferenceError",
	CyclicTypeReferenceError:    "CyclicTypeReferenceError",
	UnsafeSegmentEncodingError:  "UnsafeSegmentEncodingError",
	DuplicatePatternError:       "DuplicatePatternError",
	PrefixCollisionError:        "PrefixCollisionError",
	CanonicalNameCollisionError: "CanonicalNameCollisionError",
	BreakingSchemaChangeError:   "BreakingSchemaChangeError",
}

func (k ErrorKind) String() string {
	if name, ok := errorKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ErrorKind(%d)", uint8(k))
}

type Error struct {
	code    uint32
	message string
	span    syntax.Span
	stage   Stage
}

var _ error = (*Error)(nil)

func (err *Error) Error() string {
	return fmt.Sprintf("E%d: %s", err.code, err.message)
}

func (err *Error) Code() uint32 {
	return err.code
}

func (err *Error) Message() string {
	return err.message
}

func (err *Error) Span() syntax.Span {
	return err.span
}

func (err *Error) Stage() Stage {
	return err.stage
}

// Kind is fixed by the error code: E30xx InvalidSchemaError, E31xx
// UnresolvedReferenceError, and so on up to E37xx.
func (err *Error) Kind() ErrorKind {
	switch err.code / 100 {
	case 30:
		return InvalidSchemaError
	case 31:
		return UnresolvedReferenceError
	case 32:
		return CyclicTypeReferenceError
	case 33:
		return UnsafeSegmentEncodingError
	case 34:
		return DuplicatePatternError
	case 35:
		return PrefixCollisionError
	case 36:
		return CanonicalNameCollisionError
	case 37:
		return BreakingSchemaChangeError
	}
	return InvalidSchemaError
}

func errInvalidNamespace(name string, span syntax.Span) error {
	return &Error{
		code: 3000,
		message: fmt.Sprintf(
			"Invalid namespace name %q (must match [a-z][a-z0-9_]*)",
			name,
		),
		span: span,
	}
}

func errDuplicateNamespace(name string, span syntax.Span) error {
	return &Error{
		code:    3001,
		message: fmt.Sprintf("Duplicate namespace %q", name),
		span:    span,
	}
}

func errDuplicateDeclaration(ns, name string, span syntax.Span) error {
	return &Error{
		code:    3002,
		message: fmt.Sprintf("Duplicate declaration '%s' in namespace %q", name, ns),
		span:    span,
	}
}

func errInvalidOptionValue(name, reason string, span syntax.Span) error {
	return &Error{
		code:    3003,
		message: fmt.Sprintf("Invalid value for option '%s': %s", name, reason),
		span:    span,
	}
}

func errDuplicateOption(name string, span syntax.Span) error {
	return &Error{
		code:    3004,
		message: fmt.Sprintf("Duplicate option '%s'", name),
		span:    span,
	}
}

func errInvalidVersion(version string, span syntax.Span) error {
	return &Error{
		code:    3005,
		message: fmt.Sprintf("Schema version %q is not a valid semantic version", version),
		span:    span,
	}
}

func errInvalidLiteral(literal, reason string, span syntax.Span) error {
	return &Error{
		code:    3006,
		message: fmt.Sprintf("Invalid literal segment %q: %s", literal, reason),
		span:    span,
	}
}

func errDuplicateVariable(pattern, name string, span syntax.Span) error {
	return &Error{
		code: 3007,
		message: fmt.Sprintf(
			"Duplicate variable segment '%s' in key pattern '%s'",
			name, pattern,
		),
		span: span,
	}
}

func errInvalidSegmentType(typeName, reason string, span syntax.Span) error {
	return &Error{
		code:    3008,
		message: fmt.Sprintf("Invalid segment type '%s': %s", typeName, reason),
		span:    span,
	}
}

func errUnknownValueFormat(format string, span syntax.Span) error {
	return &Error{
		code: 3009,
		message: fmt.Sprintf(
			"Unknown value format '%s' (expected raw, text, json or yaml)",
			format,
		),
		span: span,
	}
}

func errInvalidHostBinding(option, value, reason string, span syntax.Span) error {
	return &Error{
		code:    3010,
		message: fmt.Sprintf("Invalid %s binding %q: %s", option, value, reason),
		span:    span,
	}
}

func errInvalidDeclarationName(name string, span syntax.Span) error {
	return &Error{
		code:    3011,
		message: fmt.Sprintf("Declaration name '%s' must start with an uppercase letter", name),
		span:    span,
	}
}

func errAliasWithOptions(name string, span syntax.Span) error {
	return &Error{
		code: 3012,
		message: fmt.Sprintf(
			"Value alias '%s' cannot carry options (set them on the aliased type)",
			name,
		),
		span: span,
	}
}

func errSegmentTypeNotFound(ns, name string, span syntax.Span) error {
	return &Error{
		code:    3100,
		message: fmt.Sprintf("Segment type '%s' not found in namespace %q", name, ns),
		span:    span,
	}
}

func errValueTypeNotFound(ns, name string, span syntax.Span) error {
	return &Error{
		code:    3101,
		message: fmt.Sprintf("Value type '%s' not found in namespace %q", name, ns),
		span:    span,
	}
}

func errNamespaceNotFound(ns string, span syntax.Span) error {
	return &Error{
		code:    3102,
		message: fmt.Sprintf("Namespace %q not found", ns),
		span:    span,
	}
}

func errWrongDeclarationKind(name, want, got string, span syntax.Span) error {
	return &Error{
		code:    3103,
		message: fmt.Sprintf("'%s' is a %s declaration, expected a %s", name, got, want),
		span:    span,
	}
}

func errSegmentCycle(cycle []string, span syntax.Span) error {
	return &Error{
		code:    3200,
		message: "Cyclic segment type reference: " + strings.Join(cycle, " -> "),
		span:    span,
	}
}

func errValueCycle(cycle []string, span syntax.Span) error {
	return &Error{
		code:    3201,
		message: "Cyclic value type reference: " + strings.Join(cycle, " -> "),
		span:    span,
	}
}

func errUnsafeEncoding(typeName string, span syntax.Span) error {
	return &Error{
		code: 3300,
		message: fmt.Sprintf(
			"Segment type '%s' has no delimiter-safe encoding"+
				" (use string(hex), string(base32), string(base64url) or string(percent))",
			typeName,
		),
		span: span,
	}
}

func errEncodingContainsDelimiter(encoding string, delim byte, span syntax.Span) error {
	return &Error{
		code: 3301,
		message: fmt.Sprintf(
			"Encoding '%s' can produce the key delimiter %q",
			encoding, delim,
		),
		span: span,
	}
}

func errDuplicatePattern(name, otherName, layout string, span syntax.Span) error {
	return &Error{
		code: 3400,
		message: fmt.Sprintf(
			"Key pattern '%s' duplicates '%s' (both are %s)",
			name, otherName, layout,
		),
		span: span,
	}
}

func errPrefixCollision(
	name, template, otherName, otherTemplate string,
	span syntax.Span,
) error {
	return &Error{
		code: 3500,
		message: fmt.Sprintf(
			"Key pattern '%s' (%s) collides with '%s' (%s):"+
				" some keys match both patterns",
			name, template, otherName, otherTemplate,
		),
		span: span,
	}
}

func errCanonicalNameCollision(canonical, name, otherName string, span syntax.Span) error {
	return &Error{
		code: 3600,
		message: fmt.Sprintf(
			"Key pattern '%s' has canonical name %q, already used by '%s'",
			name, canonical, otherName,
		),
		span: span,
	}
}

func errBreakingLayout(template, baselineTemplate string, span syntax.Span) error {
	return &Error{
		code: 3700,
		message: fmt.Sprintf(
			"Breaking change to key pattern %s: layout changed from baseline %s",
			template, baselineTemplate,
		),
		span: span,
	}
}

func errBreakingValueType(template, valueType, baselineValueType string, span syntax.Span) error {
	return &Error{
		code: 3701,
		message: fmt.Sprintf(
			"Breaking change to key pattern %s: value type %s is not"+
				" compatible with baseline value type %s",
			template, valueType, baselineValueType,
		),
		span: span,
	}
}

func errVersionRegression(version, baselineVersion string, span syntax.Span) error {
	return &Error{
		code: 3702,
		message: fmt.Sprintf(
			"Schema version %s is lower than baseline version %s",
			version, baselineVersion,
		),
		span: span,
	}
}
