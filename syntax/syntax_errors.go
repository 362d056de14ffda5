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

package syntax

import (
	"fmt"
	"math"
	"unicode/utf8"
)

// Error is a ParseError: the first syntax error found in a schema source.
type Error struct {
	code    uint32
	message string
	span    Span
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

func (err *Error) Span() Span {
	return err.span
}

func clampLen(n int) uint32 {
	if uint64(n) < math.MaxUint32 {
		return uint32(n)
	}
	return math.MaxUint32
}

func errSourceTooLong(srcLen int) error {
	return &Error{
		code: 1000,
		message: fmt.Sprintf(
			"Source file size (%d bytes) exceeds maximum (%d bytes)",
			srcLen, maxSrcLen,
		),
		span: Span{0, clampLen(srcLen)},
	}
}

func errInvalidUtf8(src []byte) error {
	var off uint32
	for len(src) > 0 {
		r, size := utf8.DecodeRune(src)
		if r == utf8.RuneError {
			break
		}
		off += uint32(size)
		src = src[size:]
	}
	return &Error{
		code:    1001,
		message: "Source file contains invalid UTF-8",
		span:    Span{off, 1},
	}
}

func errUnexpectedCharacter(start uint32, r rune) error {
	return &Error{
		code:    1002,
		message: fmt.Sprintf("Unexpected character '%s' (U+%04X)", string(r), r),
		span:    Span{start, uint32(utf8.RuneLen(r))},
	}
}

func errForbiddenControlCharacter(start uint32, c byte) error {
	return &Error{
		code:    1003,
		message: fmt.Sprintf("Forbidden control character U+%04X", c),
		span:    Span{start, 1},
	}
}

func errTokenTooLong(start uint32, tokenLen int) error {
	return &Error{
		code: 1004,
		message: fmt.Sprintf(
			"Token size (%d bytes) exceeds maximum (%d bytes)",
			tokenLen, maxTokenLen,
		),
		span: Span{start, clampLen(tokenLen)},
	}
}

func errIntLitInvalid(start uint32, token []byte) error {
	return &Error{
		code:    1005,
		message: fmt.Sprintf("Invalid integer literal %q", token),
		span:    Span{start, clampLen(len(token))},
	}
}

func errTextLitUnterminated(start, tokenLen uint32) error {
	return &Error{
		code:    1006,
		message: "Unterminated text literal",
		span:    Span{start, tokenLen},
	}
}

func errTextLitContainsNewline(start, newlineLen uint32) error {
	return &Error{
		code:    1007,
		message: "Text literal contains unescaped newline",
		span:    Span{start, newlineLen},
	}
}

func errIdentInvalid(start uint32, token []byte) error {
	return &Error{
		code:    1008,
		message: fmt.Sprintf("Invalid identifier %q", token),
		span:    Span{start, clampLen(len(token))},
	}
}

var sigilErrorCodes = map[TokenKind]struct {
	code uint32
	text string
}{
	T_AT:           {2000, "@"},
	T_COLON:        {2001, ":"},
	T_COMMA:        {2002, ","},
	T_DOT:          {2003, "."},
	T_EQ:           {2004, "="},
	T_SLASH:        {2005, "/"},
	T_OPEN_CURL:    {2006, "{"},
	T_CLOSE_CURL:   {2007, "}"},
	T_OPEN_PAREN:   {2008, "("},
	T_CLOSE_PAREN:  {2009, ")"},
	T_OPEN_SQUARE:  {2010, "["},
	T_CLOSE_SQUARE: {2011, "]"},
}

func errExpectedSigil(
	wantKind TokenKind,
	gotKind TokenKind,
	gotToken string,
	span Span,
) error {
	want, ok := sigilErrorCodes[wantKind]
	if !ok {
		panic("unreachable")
	}
	return &Error{
		code:    want.code,
		message: fmt.Sprintf("Expected sigil '%s', got (%s %q)", want.text, gotKind, gotToken),
		span:    span,
	}
}

func errExpectedIntLit(gotKind TokenKind, gotToken string, span Span) error {
	return &Error{
		code:    2012,
		message: fmt.Sprintf("Expected integer literal, got (%s %q)", gotKind, gotToken),
		span:    span,
	}
}

func errExpectedTextLit(gotKind TokenKind, gotToken string, span Span) error {
	return &Error{
		code:    2013,
		message: fmt.Sprintf("Expected text literal, got (%s %q)", gotKind, gotToken),
		span:    span,
	}
}

func errExpectedIdent(gotKind TokenKind, gotToken string, span Span) error {
	return &Error{
		code:    2014,
		message: fmt.Sprintf("Expected identifier, got (%s %q)", gotKind, gotToken),
		span:    span,
	}
}

func errExpectedKeywordNamespace(gotKind TokenKind, gotToken string, span Span) error {
	return &Error{
		code:    2015,
		message: fmt.Sprintf("Expected keyword 'namespace', got (%s %q)", gotKind, gotToken),
		span:    span,
	}
}

func errExpectedDeclaration(gotKind TokenKind, gotToken string, span Span) error {
	return &Error{
		code:    2016,
		message: fmt.Sprintf("Expected declaration keyword, got (%s %q)", gotKind, gotToken),
		span:    span,
	}
}

func errUnknownDeclaration(token string, span Span) error {
	return &Error{
		code:    2017,
		message: fmt.Sprintf("Unknown declaration keyword %q", token),
		span:    span,
	}
}

func errUnknownDecorator(token string, span Span) error {
	return &Error{
		code:    2018,
		message: fmt.Sprintf("Unknown decorator %q", token),
		span:    span,
	}
}

func errExpectedTypeName(gotKind TokenKind, gotToken string, span Span) error {
	return &Error{
		code:    2019,
		message: fmt.Sprintf("Expected type name, got (%s %q)", gotKind, gotToken),
		span:    span,
	}
}

func errExpectedOptionName(gotKind TokenKind, gotToken string, span Span) error {
	return &Error{
		code:    2020,
		message: fmt.Sprintf("Expected option name, got (%s %q)", gotKind, gotToken),
		span:    span,
	}
}

func errExpectedOptionValue(gotKind TokenKind, gotToken string, span Span) error {
	return &Error{
		code:    2021,
		message: fmt.Sprintf("Expected option value, got (%s %q)", gotKind, gotToken),
		span:    span,
	}
}

func errIntLitTooLarge(token string, start uint32) error {
	return &Error{
		code: 2022,
		message: fmt.Sprintf(
			"Integer literal too large (must be <= %d)",
			uint64(math.MaxUint64),
		),
		span: Span{start, clampLen(len(token))},
	}
}

func errTextLitInvalid(start uint32, token string) error {
	return &Error{
		code:    2023,
		message: fmt.Sprintf("Invalid text literal %q", token),
		span:    Span{start, clampLen(len(token))},
	}
}

func errExpectedKeySegment(gotKind TokenKind, gotToken string, span Span) error {
	return &Error{
		code: 2024,
		message: fmt.Sprintf(
			"Expected key segment (quoted literal or '{name: type}'), got (%s %q)",
			gotKind, gotToken,
		),
		span: span,
	}
}

func errExpectedValueForm(gotKind TokenKind, gotToken string, span Span) error {
	return &Error{
		code: 2025,
		message: fmt.Sprintf(
			"Expected ':' (format) or '=' (alias) in value declaration, got (%s %q)",
			gotKind, gotToken,
		),
		span: span,
	}
}
