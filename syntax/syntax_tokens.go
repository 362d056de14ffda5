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

const (
	maxSrcLen   = 0x7FFFFFFF // (2**31)-1
	maxTokenLen = int(math.MaxUint16)

	tokenFlagTextHasNoEscapes uint8 = 0x01
)

type Token struct {
	Len   uint16
	Kind  TokenKind
	flags uint8
}

type TokenKind uint8

const (
	T_EOF TokenKind = iota

	T_SPACE
	T_NEWLINE
	T_COMMENT

	T_AT
	T_COLON
	T_COMMA
	T_DOT
	T_EQ
	T_SLASH

	T_OPEN_CURL
	T_CLOSE_CURL
	T_OPEN_PAREN
	T_CLOSE_PAREN
	T_OPEN_SQUARE
	T_CLOSE_SQUARE

	T_INT_LIT
	T_HEX_INT_LIT

	T_TEXT_LIT

	T_IDENT
)

var tokenKindNames = [...]string{
	T_EOF:          "EOF",
	T_SPACE:        "SPACE",
	T_NEWLINE:      "NEWLINE",
	T_COMMENT:      "COMMENT",
	T_AT:           "AT",
	T_COLON:        "COLON",
	T_COMMA:        "COMMA",
	T_DOT:          "DOT",
	T_EQ:           "EQ",
	T_SLASH:        "SLASH",
	T_OPEN_CURL:    "OPEN_CURL",
	T_CLOSE_CURL:   "CLOSE_CURL",
	T_OPEN_PAREN:   "OPEN_PAREN",
	T_CLOSE_PAREN:  "CLOSE_PAREN",
	T_OPEN_SQUARE:  "OPEN_SQUARE",
	T_CLOSE_SQUARE: "CLOSE_SQUARE",
	T_INT_LIT:      "INT_LIT",
	T_HEX_INT_LIT:  "HEX_INT_LIT",
	T_TEXT_LIT:     "TEXT_LIT",
	T_IDENT:        "IDENT",
}

func (k TokenKind) String() string {
	if int(k) < len(tokenKindNames) {
		return tokenKindNames[k]
	}
	return fmt.Sprintf("TokenKind(%d)", uint8(k))
}

var sigilKinds = [256]TokenKind{
	'@': T_AT,
	':': T_COLON,
	',': T_COMMA,
	'.': T_DOT,
	'=': T_EQ,
	'/': T_SLASH,
	'{': T_OPEN_CURL,
	'}': T_CLOSE_CURL,
	'(': T_OPEN_PAREN,
	')': T_CLOSE_PAREN,
	'[': T_OPEN_SQUARE,
	']': T_CLOSE_SQUARE,
}

type Tokens struct {
	src    []byte
	offset uint32
}

func NewTokens(src []byte) (*Tokens, error) {
	if len(src) > maxSrcLen {
		return nil, errSourceTooLong(len(src))
	}
	if !utf8.Valid(src) {
		return nil, errInvalidUtf8(src)
	}
	return &Tokens{
		src: src,
	}, nil
}

func (t *Tokens) Next(token *Token) error {
	if len(t.src) == 0 {
		*token = Token{
			Kind: T_EOF,
		}
		return nil
	}

	c := t.src[0]
	if kind := sigilKinds[c]; kind != T_EOF {
		t.emit(token, kind, 1, 0)
		return nil
	}

	switch c {
	case '\t', ' ':
		return t.nextSpace(token)
	case '\n':
		t.emit(token, T_NEWLINE, 1, 0)
		return nil
	case '\r':
		if len(t.src) < 2 || t.src[1] != '\n' {
			return errForbiddenControlCharacter(t.offset, c)
		}
		t.emit(token, T_NEWLINE, 2, 0)
		return nil
	case '#':
		return t.nextComment(token)
	case '"':
		return t.nextTextLit(token)
	}

	if c >= '0' && c <= '9' {
		return t.nextNumLit(token)
	}

	if (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') {
		return t.nextIdent(token)
	}

	r, _ := utf8.DecodeRune(t.src)
	if r == '\u00A0' {
		return t.nextSpace(token)
	}

	if r < 0x20 || r == 0x7F {
		return errForbiddenControlCharacter(t.offset, c)
	}
	return errUnexpectedCharacter(t.offset, r)
}

func (t *Tokens) emit(token *Token, kind TokenKind, tokenLen uint16, flags uint8) {
	*token = Token{
		Kind:  kind,
		Len:   tokenLen,
		flags: flags,
	}
	t.offset += uint32(tokenLen)
	t.src = t.src[tokenLen:]
}

func (t *Tokens) nextSpace(token *Token) error {
	src := t.src
	for len(src) > 0 {
		if src[0] == ' ' || src[0] == '\t' {
			src = src[1:]
		} else if r, runeLen := utf8.DecodeRune(src); r == '\u00A0' {
			src = src[runeLen:]
		} else {
			break
		}
	}
	tokenLen, err := t.checkTokenLen(len(t.src) - len(src))
	if err != nil {
		return err
	}
	t.emit(token, T_SPACE, tokenLen, 0)
	return nil
}

func (t *Tokens) nextComment(token *Token) error {
	src := t.src
	for ii, c := range src {
		if c == '\n' || c == '\r' {
			src = src[:ii]
			break
		}
	}
	tokenLen, err := t.checkTokenLen(len(src))
	if err != nil {
		return err
	}
	t.emit(token, T_COMMENT, tokenLen, 0)
	return nil
}

func (t *Tokens) nextNumLit(token *Token) error {
	src := t.src
	kind := T_INT_LIT
	digits := src
	prefixLen := 0
	if len(src) > 1 && src[0] == '0' && src[1] == 'x' {
		kind = T_HEX_INT_LIT
		prefixLen = 2
		digits = src[2:]
	}

	invalid := false
	numLen := len(digits)
	for ii, c := range digits {
		isDigit := c >= '0' && c <= '9'
		if kind == T_HEX_INT_LIT {
			isDigit = isDigit || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
		}
		if isDigit || c == '_' {
			continue
		}
		if (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') {
			invalid = true
			continue
		}
		numLen = ii
		break
	}
	tokenLen := prefixLen + numLen

	if numLen == 0 {
		invalid = true
	}
	if kind == T_INT_LIT && numLen > 1 && src[0] == '0' {
		invalid = true
	}
	if numLen > 0 && (digits[0] == '_' || digits[numLen-1] == '_') {
		invalid = true
	}
	if invalid {
		return errIntLitInvalid(t.offset, src[:tokenLen])
	}

	checkedLen, err := t.checkTokenLen(tokenLen)
	if err != nil {
		return err
	}
	t.emit(token, kind, checkedLen, 0)
	return nil
}

func (t *Tokens) nextTextLit(token *Token) error {
	escaped := false
	hasEscapes := false
	end := -1
	for ii, c := range t.src {
		if ii == 0 {
			continue
		}
		if escaped {
			escaped = false
			continue
		}
		if c == '"' {
			end = ii + 1
			break
		}
		if (c <= 0x1F || c == 0x7F) && c != 0x09 {
			off := t.offset + uint32(ii)
			if c == 0x0A {
				return errTextLitContainsNewline(off, 1)
			}
			if c == 0x0D && ii+1 < len(t.src) && t.src[ii+1] == 0x0A {
				return errTextLitContainsNewline(off, 2)
			}
			return errForbiddenControlCharacter(off, c)
		}
		if c == '\\' {
			escaped = true
			hasEscapes = true
		}
	}
	if end < 0 {
		return errTextLitUnterminated(t.offset, uint32(len(t.src)))
	}

	var flags uint8
	if !hasEscapes {
		flags |= tokenFlagTextHasNoEscapes
	}
	tokenLen, err := t.checkTokenLen(end)
	if err != nil {
		return err
	}
	t.emit(token, T_TEXT_LIT, tokenLen, flags)
	return nil
}

func (t *Tokens) nextIdent(token *Token) error {
	src := t.src
	underscore := false
	invalid := false
	for ii, c := range src {
		if ii == 0 {
			continue
		}
		if c == '_' {
			if underscore {
				invalid = true
			}
			underscore = true
			continue
		}
		if (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') {
			underscore = false
			continue
		}
		src = src[:ii]
		break
	}

	if underscore || invalid {
		return errIdentInvalid(t.offset, src)
	}

	tokenLen, err := t.checkTokenLen(len(src))
	if err != nil {
		return err
	}
	t.emit(token, T_IDENT, tokenLen, 0)
	return nil
}

func (t *Tokens) checkTokenLen(len int) (uint16, error) {
	if len > maxTokenLen {
		return 0, errTokenTooLong(t.offset, len)
	}
	return uint16(len), nil
}
