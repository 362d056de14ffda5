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
	"bytes"
	"iter"
	"math"
	"slices"
	"strconv"
	"strings"
)

type Span struct {
	start, len uint32
}

func NewSpan(start, len uint32) Span {
	return Span{start, len}
}

func (s Span) Start() uint32 {
	return s.start
}

func (s Span) End() uint32 {
	return s.start + s.len
}

func (s Span) Len() uint32 {
	return s.len
}

type Node interface {
	Span() Span

	ChildNodes() iter.Seq[Node]

	privChildren() []Node

	UnparseTo(buf *bytes.Buffer)
}

func Unparse(node Node) string {
	var buf bytes.Buffer
	node.UnparseTo(&buf)
	return buf.String()
}

func Walk(node Node, walkFn func(Node) bool) {
	if node == nil || !walkFn(node) {
		return
	}
	for _, child := range node.privChildren() {
		Walk(child, walkFn)
	}
	walkFn(nil)
}

type leafNode struct{}

func (*leafNode) ChildNodes() iter.Seq[Node] {
	return func(_yield func(Node) bool) {}
}

func (*leafNode) privChildren() []Node {
	return nil
}

type branchNode struct {
	span       Span
	childNodes []Node
}

func (n *branchNode) Span() Span {
	return n.span
}

func (n *branchNode) ChildNodes() iter.Seq[Node] {
	return slices.Values(n.childNodes)
}

func (n *branchNode) privChildren() []Node {
	return n.childNodes
}

func (n *branchNode) UnparseTo(buf *bytes.Buffer) {
	for _, childNode := range n.childNodes {
		childNode.UnparseTo(buf)
	}
}

type decorated struct {
	decorators []*Decorator
}

func (d *decorated) Decorators() []*Decorator {
	return d.decorators
}

func (d *decorated) setDecorators(decorators []*Decorator) {
	d.decorators = decorators
}

type Space struct {
	leafNode
	raw   string
	start uint32
}

var _ Node = (*Space)(nil)

func (n *Space) Span() Span {
	return Span{n.start, uint32(len(n.raw))}
}

func (n *Space) UnparseTo(buf *bytes.Buffer) {
	buf.WriteString(n.raw)
}

type Newline struct {
	leafNode
	start uint32
	crlf  bool
}

var _ Node = (*Newline)(nil)

func (n *Newline) Span() Span {
	if n.crlf {
		return Span{n.start, 2}
	}
	return Span{n.start, 1}
}

func (n *Newline) UnparseTo(buf *bytes.Buffer) {
	if n.crlf {
		buf.WriteString("\r\n")
	} else {
		buf.WriteByte('\n')
	}
}

type Comment struct {
	leafNode
	raw   string
	start uint32
}

var _ Node = (*Comment)(nil)

func (n *Comment) Span() Span {
	return Span{n.start, uint32(len(n.raw))}
}

func (n *Comment) UnparseTo(buf *bytes.Buffer) {
	buf.WriteString(n.raw)
}

func (n *Comment) Text() string {
	return n.raw
}

func (n *Comment) IsDocComment() bool {
	return strings.HasPrefix(n.raw, "##")
}

type IntLit struct {
	leafNode
	raw   string
	value uint64
	start uint32
}

var _ Node = (*IntLit)(nil)

func (n *IntLit) Span() Span {
	return Span{n.start, uint32(len(n.raw))}
}

func (n *IntLit) UnparseTo(buf *bytes.Buffer) {
	buf.WriteString(n.raw)
}

func newIntLit(token string, kind TokenKind, start uint32) (*IntLit, error) {
	base := 10
	valueStr := strings.ReplaceAll(token, "_", "")
	if kind == T_HEX_INT_LIT {
		base = 16
		valueStr = valueStr[2:]
	}
	value, err := strconv.ParseUint(valueStr, base, 64)
	if err != nil {
		return nil, errIntLitTooLarge(token, start)
	}
	return &IntLit{
		raw:   token,
		value: value,
		start: start,
	}, nil
}

func (n *IntLit) GetUint8() (uint8, bool) {
	if n.value <= math.MaxUint8 {
		return uint8(n.value), true
	}
	return 0, false
}

func (n *IntLit) GetUint64() uint64 {
	return n.value
}

type TextLit struct {
	leafNode
	raw       string
	value     string
	start     uint32
	validText bool
}

var _ Node = (*TextLit)(nil)

func (n *TextLit) Span() Span {
	return Span{n.start, uint32(len(n.raw))}
}

func (n *TextLit) UnparseTo(buf *bytes.Buffer) {
	buf.WriteString(n.raw)
}

func newTextLit(token string, start uint32, flags uint8) (*TextLit, error) {
	value := token[1 : len(token)-1]
	if flags&tokenFlagTextHasNoEscapes != 0 {
		return &TextLit{
			raw:       token,
			value:     value,
			start:     start,
			validText: true,
		}, nil
	}

	invalid := func() (*TextLit, error) {
		return nil, errTextLitInvalid(start, token)
	}

	var buf bytes.Buffer
	escaped := false
	validText := true
	for len(value) > 0 {
		c := value[0]
		if !escaped {
			if c == '\\' {
				escaped = true
			} else {
				buf.WriteByte(c)
			}
			value = value[1:]
			continue
		}
		escaped = false

		switch c {
		case '"', '\\':
			buf.WriteByte(c)
			value = value[1:]
		case 'n':
			buf.WriteByte('\n')
			value = value[1:]
		case 't':
			buf.WriteByte('\t')
			value = value[1:]
		case 'x':
			if len(value) < 3 {
				return invalid()
			}
			b, err := strconv.ParseUint(value[1:3], 16, 8)
			if err != nil {
				return invalid()
			}
			if b == 0 || b > 0x7F {
				validText = false
			}
			buf.WriteByte(uint8(b))
			value = value[3:]
		case 'u':
			value = value[1:]
			if len(value) == 0 || value[0] != '{' {
				return invalid()
			}
			value = value[1:]
			end := strings.IndexByte(value, '}')
			if end <= 0 || end > 6 {
				return invalid()
			}
			scalar, err := strconv.ParseUint(value[:end], 16, 32)
			if err != nil || scalar > 0x10FFFF {
				return invalid()
			}
			if scalar == 0 {
				validText = false
			}
			buf.WriteRune(rune(scalar))
			value = value[end+1:]
		default:
			return invalid()
		}
	}
	if escaped {
		return invalid()
	}
	return &TextLit{
		raw:       token,
		value:     buf.String(),
		start:     start,
		validText: validText,
	}, nil
}

// GetText returns the unescaped value, or false if the value contains NUL
// or bytes that are not valid UTF-8.
func (n *TextLit) GetText() (string, bool) {
	if !n.validText {
		return "", false
	}
	return n.value, true
}

func (n *TextLit) Raw() string {
	return n.raw
}

type Sigil struct {
	leafNode
	raw   byte
	start uint32
}

var _ Node = (*Sigil)(nil)

func (n *Sigil) Span() Span {
	return Span{n.start, 1}
}

func (n *Sigil) UnparseTo(buf *bytes.Buffer) {
	buf.WriteByte(n.raw)
}

type Ident struct {
	leafNode
	raw   string
	start uint32
}

var _ Node = (*Ident)(nil)

func (n *Ident) Span() Span {
	return Span{n.start, uint32(len(n.raw))}
}

func (n *Ident) UnparseTo(buf *bytes.Buffer) {
	buf.WriteString(n.raw)
}

func (n *Ident) Get() string {
	return n.raw
}

type Keyword struct {
	leafNode
	raw   string
	start uint32
}

var _ Node = (*Keyword)(nil)

func (n *Keyword) Span() Span {
	return Span{n.start, uint32(len(n.raw))}
}

func (n *Keyword) UnparseTo(buf *bytes.Buffer) {
	buf.WriteString(n.raw)
}

type Schema struct {
	branchNode
	options    *Options
	namespaces []*Namespace
}

var _ Node = (*Schema)(nil)

func (n *Schema) Options() *Options {
	return n.options
}

func (n *Schema) Namespaces() []*Namespace {
	return n.namespaces
}

type Namespace struct {
	branchNode
	name     *Ident
	segments []*SegmentDecl
	values   []*ValueDecl
	keys     []*KeyDecl
}

var _ Node = (*Namespace)(nil)

func (n *Namespace) Name() *Ident {
	return n.name
}

func (n *Namespace) Segments() []*SegmentDecl {
	return n.segments
}

func (n *Namespace) Values() []*ValueDecl {
	return n.values
}

func (n *Namespace) Keys() []*KeyDecl {
	return n.keys
}

type Options struct {
	branchNode
	options []*OptionsOption
}

var _ Node = (*Options)(nil)

func (n *Options) Options() iter.Seq[*OptionsOption] {
	return slices.Values(n.options)
}

type OptionsOption struct {
	branchNode
	name  *OptionName
	value Node
}

var _ Node = (*OptionsOption)(nil)

func (n *OptionsOption) Name() *OptionName {
	return n.name
}

func (n *OptionsOption) Value() Node {
	return n.value
}

type Option struct {
	branchNode
	name  *OptionName
	value Node
}

var _ Node = (*Option)(nil)

func (n *Option) Name() *OptionName {
	return n.name
}

// Value is nil for a bare flag such as `@{deprecated}`.
func (n *Option) Value() Node {
	return n.value
}

type OptionName struct {
	branchNode
}

var _ Node = (*OptionName)(nil)

func (n *OptionName) Get() string {
	return Unparse(n)
}

type Decorator struct {
	branchNode
	value Node
}

var _ Node = (*Decorator)(nil)

func (n *Decorator) GetOptions() *Options {
	if value, ok := n.value.(*Options); ok {
		return value
	}
	return nil
}

func (n *Decorator) GetOption() *Option {
	if value, ok := n.value.(*Option); ok {
		return value
	}
	return nil
}

type TypeName struct {
	branchNode
	scope *Ident
	name  *Ident
}

var _ Node = (*TypeName)(nil)

func (n *TypeName) Scope() *Ident {
	return n.scope
}

func (n *TypeName) Name() *Ident {
	return n.name
}

type SegmentType struct {
	branchNode
	typeName *TypeName
	encoding *Ident
	size     *IntLit
}

var _ Node = (*SegmentType)(nil)

func (n *SegmentType) TypeName() *TypeName {
	return n.typeName
}

func (n *SegmentType) Encoding() *Ident {
	return n.encoding
}

func (n *SegmentType) Size() *IntLit {
	return n.size
}

type SegmentDecl struct {
	branchNode
	decorated
	name        *Ident
	segmentType *SegmentType
}

var _ Node = (*SegmentDecl)(nil)

func (n *SegmentDecl) Name() *Ident {
	return n.name
}

func (n *SegmentDecl) SegmentType() *SegmentType {
	return n.segmentType
}

type ValueDecl struct {
	branchNode
	decorated
	name   *Ident
	format *Ident
	compat []*TypeName
	alias  *TypeName
}

var _ Node = (*ValueDecl)(nil)

func (n *ValueDecl) Name() *Ident {
	return n.name
}

// Format is nil for alias declarations.
func (n *ValueDecl) Format() *Ident {
	return n.format
}

func (n *ValueDecl) Compat() []*TypeName {
	return n.compat
}

// Alias is nil unless the declaration has the form `value A = B`.
func (n *ValueDecl) Alias() *TypeName {
	return n.alias
}

type KeyDecl struct {
	branchNode
	decorated
	name       *Ident
	components []Node
	valueType  *TypeName
}

var _ Node = (*KeyDecl)(nil)

func (n *KeyDecl) Name() *Ident {
	return n.name
}

// Components yields *TextLit for literal segments and *VarSegment for
// variable segments, in source order.
func (n *KeyDecl) Components() []Node {
	return n.components
}

func (n *KeyDecl) ValueType() *TypeName {
	return n.valueType
}

type VarSegment struct {
	branchNode
	name        *Ident
	segmentType *SegmentType
}

var _ Node = (*VarSegment)(nil)

func (n *VarSegment) Name() *Ident {
	return n.name
}

func (n *VarSegment) SegmentType() *SegmentType {
	return n.segmentType
}
