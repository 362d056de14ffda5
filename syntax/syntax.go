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

// Package syntax parses schemata source text into a lossless node tree.
//
// Literal key segments are always quoted text and variable segments are
// always braced (`"user"/{id: uint}`), so the parser never has to guess
// which one a pattern component is.
package syntax

import (
	"bytes"
)

type ParseOption interface {
	apply(*ParseOptions)
}

type parseOptionFunc func(*ParseOptions)

func (f parseOptionFunc) apply(opts *ParseOptions) { f(opts) }

// WithoutTrivia drops spaces, newlines and comments from the tree. The
// resulting tree no longer unparses to the original source.
func WithoutTrivia() ParseOption {
	return parseOptionFunc(func(opts *ParseOptions) {
		opts.saveSpaces = false
		opts.saveNewlines = false
		opts.saveComments = false
	})
}

func Parse(src []uint8, opts ...ParseOption) (*Schema, error) {
	return NewParseOptions(opts...).ParseSchema(src)
}

type ParseOptions struct {
	saveSpaces   bool
	saveNewlines bool
	saveComments bool
}

func NewParseOptions(opts ...ParseOption) *ParseOptions {
	parseOpts := &ParseOptions{
		saveSpaces:   true,
		saveNewlines: true,
		saveComments: true,
	}
	for _, opt := range opts {
		opt.apply(parseOpts)
	}
	return parseOpts
}

func (opts *ParseOptions) ParseSchema(src []uint8) (*Schema, error) {
	ctx, err := newParseCtx[Schema](opts, src)
	if err != nil {
		return nil, err
	}
	return parseSchema(ctx)
}

func (opts *ParseOptions) ParseNamespace(src []uint8) (*Namespace, error) {
	ctx, err := newParseCtx[Namespace](opts, src)
	if err != nil {
		return nil, err
	}
	return parseNamespace(ctx)
}

func (opts *ParseOptions) ParseKey(src []uint8) (*KeyDecl, error) {
	ctx, err := newParseCtx[KeyDecl](opts, src)
	if err != nil {
		return nil, err
	}
	return parseKeyDecl(ctx)
}

type parseCtx[T any] struct {
	src        []uint8
	opts       *ParseOptions
	tokens     *Tokens
	childNodes []Node
	haveToken  bool
	token      Token
	err        error
	consumed   uint32
	offset     uint32
}

func newParseCtx[T any](opts *ParseOptions, src []uint8) (*parseCtx[T], error) {
	tokens, err := NewTokens(src)
	if err != nil {
		return nil, err
	}
	return &parseCtx[T]{
		src:    src,
		opts:   opts,
		tokens: tokens,
	}, nil
}

func (ctx *parseCtx[T]) ensureToken() error {
	if ctx.err != nil {
		return ctx.err
	}
	if ctx.haveToken {
		return nil
	}
	if err := ctx.tokens.Next(&ctx.token); err != nil {
		ctx.err = err
		return ctx.err
	}
	ctx.haveToken = true
	return nil
}

func (ctx *parseCtx[T]) readToken() []uint8 {
	return ctx.src[:ctx.token.Len]
}

func (ctx *parseCtx[T]) consumeToken(child Node) {
	ctx.src = ctx.src[ctx.token.Len:]
	ctx.consumed += uint32(ctx.token.Len)
	ctx.offset += uint32(ctx.token.Len)
	ctx.haveToken = false
	if child != nil {
		ctx.childNodes = append(ctx.childNodes, child)
	}
}

func (ctx *parseCtx[T]) tokenSpan() Span {
	return Span{
		start: ctx.offset,
		len:   uint32(ctx.token.Len),
	}
}

func (ctx *parseCtx[T]) fail(newErr func(TokenKind, string, Span) error) {
	if ctx.err != nil {
		return
	}
	ctx.err = newErr(ctx.token.Kind, string(ctx.readToken()), ctx.tokenSpan())
}

func (ctx *parseCtx[T]) loop(yield func(struct{}) bool) {
	if ctx.err != nil {
		return
	}
	for {
		consumed := ctx.consumed
		if !yield(struct{}{}) {
			return
		}
		if ctx.err != nil {
			return
		}
		if consumed == ctx.consumed {
			return
		}
	}
}

func (ctx *parseCtx[T]) space() {
	if err := ctx.ensureToken(); err != nil {
		return
	}
	if ctx.token.Kind != T_SPACE {
		return
	}
	ctx.consumeSpace()
}

func (ctx *parseCtx[T]) consumeSpace() {
	if !ctx.opts.saveSpaces {
		ctx.consumeToken(nil)
		return
	}

	tokenBytes := ctx.readToken()
	var token string
	if bytes.Equal(tokenBytes, []uint8{' '}) {
		token = " "
	} else {
		token = string(tokenBytes)
	}
	ctx.consumeToken(&Space{
		raw:   token,
		start: ctx.offset,
	})
}

// comments skips spaces, newlines and comments.
func (ctx *parseCtx[T]) comments() {
	for range ctx.loop {
		if err := ctx.ensureToken(); err != nil {
			return
		}
		switch ctx.token.Kind {
		case T_SPACE:
			ctx.consumeSpace()
		case T_NEWLINE:
			var child Node
			if ctx.opts.saveNewlines {
				child = &Newline{
					crlf:  ctx.token.Len == 2,
					start: ctx.offset,
				}
			}
			ctx.consumeToken(child)
		case T_COMMENT:
			var child Node
			if ctx.opts.saveComments {
				child = &Comment{
					raw:   string(ctx.readToken()),
					start: ctx.offset,
				}
			}
			ctx.consumeToken(child)
		default:
			return
		}
	}
}

func (ctx *parseCtx[T]) sigil(kind TokenKind) {
	if err := ctx.ensureToken(); err != nil {
		return
	}
	if ctx.token.Kind != kind {
		ctx.err = errExpectedSigil(
			kind,
			ctx.token.Kind,
			string(ctx.readToken()),
			ctx.tokenSpan(),
		)
		return
	}
	ctx.consumeToken(&Sigil{
		raw:   ctx.src[0],
		start: ctx.offset,
	})
}

func (ctx *parseCtx[T]) trySigil(kind TokenKind) bool {
	if err := ctx.ensureToken(); err != nil {
		return false
	}
	if ctx.token.Kind != kind {
		return false
	}
	ctx.consumeToken(&Sigil{
		raw:   ctx.src[0],
		start: ctx.offset,
	})
	return true
}

func (ctx *parseCtx[T]) peekKind() TokenKind {
	if err := ctx.ensureToken(); err != nil {
		return T_EOF
	}
	return ctx.token.Kind
}

func (ctx *parseCtx[T]) tryKeyword(keyword string) bool {
	if err := ctx.ensureToken(); err != nil {
		return false
	}
	if ctx.token.Kind != T_IDENT {
		return false
	}
	if string(ctx.readToken()) != keyword {
		return false
	}
	ctx.consumeToken(&Keyword{
		raw:   keyword,
		start: ctx.offset,
	})
	return true
}

func (ctx *parseCtx[T]) ident() *Ident {
	if err := ctx.ensureToken(); err != nil {
		return nil
	}
	if ctx.token.Kind != T_IDENT {
		ctx.fail(errExpectedIdent)
		return nil
	}
	ident := &Ident{
		raw:   string(ctx.readToken()),
		start: ctx.offset,
	}
	ctx.consumeToken(ident)
	return ident
}

func (ctx *parseCtx[T]) int() *IntLit {
	if err := ctx.ensureToken(); err != nil {
		return nil
	}
	if ctx.token.Kind != T_INT_LIT && ctx.token.Kind != T_HEX_INT_LIT {
		ctx.fail(errExpectedIntLit)
		return nil
	}
	intNode, err := newIntLit(string(ctx.readToken()), ctx.token.Kind, ctx.offset)
	if err != nil {
		ctx.err = err
		return nil
	}
	ctx.consumeToken(intNode)
	return intNode
}

func (ctx *parseCtx[T]) text() *TextLit {
	if err := ctx.ensureToken(); err != nil {
		return nil
	}
	if ctx.token.Kind != T_TEXT_LIT {
		ctx.fail(errExpectedTextLit)
		return nil
	}
	textNode, err := newTextLit(string(ctx.readToken()), ctx.offset, ctx.token.flags)
	if err != nil {
		ctx.err = err
		return nil
	}
	ctx.consumeToken(textNode)
	return textNode
}

func (ctx *parseCtx[T]) finish(
	build func(node branchNode) *T,
) (*T, error) {
	if ctx.err != nil {
		return nil, ctx.err
	}
	return build(branchNode{
		span: Span{
			start: ctx.offset - ctx.consumed,
			len:   ctx.consumed,
		},
		childNodes: ctx.childNodes,
	}), nil
}

func parseChild[P any, C any, PtrC interface {
	*C
	Node
}](
	ctx *parseCtx[P],
	parseChildFn func(*parseCtx[C]) (PtrC, error),
) (*C, bool) {
	if ctx.err != nil {
		return nil, false
	}
	childCtx := &parseCtx[C]{
		src:       ctx.src,
		opts:      ctx.opts,
		tokens:    ctx.tokens,
		haveToken: ctx.haveToken,
		token:     ctx.token,
		offset:    ctx.offset,
	}
	child, err := parseChildFn(childCtx)
	if err != nil {
		ctx.err = err
		return nil, false
	}

	ctx.haveToken = childCtx.haveToken
	ctx.token = childCtx.token

	if childCtx.consumed == 0 || child == nil {
		return nil, false
	}
	ctx.src = ctx.src[childCtx.consumed:]
	ctx.consumed += childCtx.consumed
	ctx.offset = childCtx.offset
	ctx.childNodes = append(ctx.childNodes, child)
	return child, true
}

func parseSchema(ctx *parseCtx[Schema]) (*Schema, error) {
	ctx.comments()
	options, _ := parseChild(ctx, parseOptions)

	var namespaces []*Namespace
	for range ctx.loop {
		ctx.comments()
		if ctx.peekKind() == T_EOF {
			break
		}
		ns, ok := parseChild(ctx, parseNamespace)
		if ok {
			namespaces = append(namespaces, ns)
		}
	}
	if ctx.err == nil && ctx.peekKind() != T_EOF {
		ctx.fail(errExpectedKeywordNamespace)
	}

	return ctx.finish(func(node branchNode) *Schema {
		return &Schema{
			branchNode: node,
			options:    options,
			namespaces: namespaces,
		}
	})
}

func parseNamespace(ctx *parseCtx[Namespace]) (*Namespace, error) {
	if !ctx.tryKeyword("namespace") {
		if ctx.err != nil {
			return nil, ctx.err
		}
		return nil, errExpectedKeywordNamespace(
			ctx.token.Kind,
			string(ctx.readToken()),
			ctx.tokenSpan(),
		)
	}
	ctx.space()
	name := ctx.ident()
	ctx.space()
	ctx.sigil(T_OPEN_CURL)

	var (
		segments []*SegmentDecl
		values   []*ValueDecl
		keys     []*KeyDecl
	)
	for range ctx.loop {
		ctx.comments()
		if ctx.trySigil(T_CLOSE_CURL) {
			break
		}
		decorators := parseDecorators(ctx)

		var ok bool
		if decl, found := parseChild(ctx, parseSegmentDecl); found {
			setDecorators(decl, decorators)
			segments = append(segments, decl)
			ok = true
		}
		if !ok && ctx.err == nil {
			if decl, found := parseChild(ctx, parseValueDecl); found {
				setDecorators(decl, decorators)
				values = append(values, decl)
				ok = true
			}
		}
		if !ok && ctx.err == nil {
			if decl, found := parseChild(ctx, parseKeyDecl); found {
				setDecorators(decl, decorators)
				keys = append(keys, decl)
				ok = true
			}
		}
		if ctx.err != nil {
			return nil, ctx.err
		}
		if !ok {
			token := string(ctx.readToken())
			span := ctx.tokenSpan()
			if ctx.token.Kind == T_IDENT {
				return nil, errUnknownDeclaration(token, span)
			}
			return nil, errExpectedDeclaration(ctx.token.Kind, token, span)
		}
	}

	return ctx.finish(func(node branchNode) *Namespace {
		return &Namespace{
			branchNode: node,
			name:       name,
			segments:   segments,
			values:     values,
			keys:       keys,
		}
	})
}

func parseOptions(ctx *parseCtx[Options]) (*Options, error) {
	if !ctx.tryKeyword("options") {
		return nil, nil
	}
	ctx.space()

	var options []*OptionsOption
	ctx.sigil(T_OPEN_CURL)
	ctx.comments()
	for range ctx.loop {
		if ctx.trySigil(T_CLOSE_CURL) {
			break
		}
		option, _ := parseChild(ctx, parseOptionsOption)
		options = append(options, option)
		ctx.comments()
	}

	return ctx.finish(func(node branchNode) *Options {
		return &Options{
			branchNode: node,
			options:    options,
		}
	})
}

func parseOptionsOption(
	ctx *parseCtx[OptionsOption],
) (*OptionsOption, error) {
	name, _ := parseChild(ctx, parseOptionName)
	ctx.space()
	ctx.sigil(T_EQ)
	ctx.space()
	value := parseOptionValue(ctx)

	return ctx.finish(func(node branchNode) *OptionsOption {
		return &OptionsOption{
			branchNode: node,
			name:       name,
			value:      value,
		}
	})
}

func parseOption(ctx *parseCtx[Option]) (*Option, error) {
	if !ctx.trySigil(T_OPEN_CURL) {
		return nil, nil
	}
	ctx.space()
	name, _ := parseChild(ctx, parseOptionName)
	ctx.space()

	var value Node
	if ctx.trySigil(T_EQ) {
		ctx.space()
		value = parseOptionValue(ctx)
	}

	ctx.space()
	ctx.sigil(T_CLOSE_CURL)

	return ctx.finish(func(node branchNode) *Option {
		return &Option{
			branchNode: node,
			name:       name,
			value:      value,
		}
	})
}

func parseOptionName(ctx *parseCtx[OptionName]) (*OptionName, error) {
	if err := ctx.ensureToken(); err != nil {
		return nil, err
	}
	if ctx.token.Kind != T_IDENT {
		return nil, errExpectedOptionName(
			ctx.token.Kind,
			string(ctx.readToken()),
			ctx.tokenSpan(),
		)
	}

	ctx.ident()
	for range ctx.loop {
		if ctx.trySigil(T_DOT) {
			ctx.ident()
		} else {
			break
		}
	}
	return ctx.finish(func(node branchNode) *OptionName {
		return &OptionName{branchNode: node}
	})
}

func parseOptionValue[T any](ctx *parseCtx[T]) Node {
	if err := ctx.ensureToken(); err != nil {
		return nil
	}
	switch ctx.token.Kind {
	case T_INT_LIT, T_HEX_INT_LIT:
		if child := ctx.int(); child != nil {
			return child
		}
	case T_TEXT_LIT:
		if child := ctx.text(); child != nil {
			return child
		}
	case T_IDENT:
		if child := ctx.ident(); child != nil {
			return child
		}
	}
	ctx.fail(errExpectedOptionValue)
	return nil
}

func setDecorators[T any](node *T, decorators []*Decorator) {
	type setter interface {
		setDecorators([]*Decorator)
	}
	if node != nil && len(decorators) > 0 {
		var iface interface{} = node
		iface.(setter).setDecorators(decorators)
	}
}

func parseDecorators[T any](ctx *parseCtx[T]) []*Decorator {
	var decorators []*Decorator
	for range ctx.loop {
		if decorator, ok := parseChild(ctx, parseDecorator); ok {
			decorators = append(decorators, decorator)
			ctx.comments()
		}
	}
	return decorators
}

func parseDecorator(ctx *parseCtx[Decorator]) (*Decorator, error) {
	if !ctx.trySigil(T_AT) {
		return nil, nil
	}

	var value Node
	value, ok := parseChild(ctx, parseOptions)
	if !ok && ctx.err == nil {
		value, ok = parseChild(ctx, parseOption)
	}
	if ctx.err != nil {
		return nil, ctx.err
	}
	if !ok {
		token := string(ctx.readToken())
		return nil, errUnknownDecorator(token, ctx.tokenSpan())
	}

	return ctx.finish(func(node branchNode) *Decorator {
		return &Decorator{
			branchNode: node,
			value:      value,
		}
	})
}

func parseTypeName(ctx *parseCtx[TypeName]) (*TypeName, error) {
	if err := ctx.ensureToken(); err != nil {
		return nil, err
	}
	if ctx.token.Kind != T_IDENT {
		return nil, errExpectedTypeName(
			ctx.token.Kind,
			string(ctx.readToken()),
			ctx.tokenSpan(),
		)
	}

	var scope, name *Ident
	name = ctx.ident()
	if ctx.trySigil(T_DOT) {
		scope = name
		name = ctx.ident()
	}
	return ctx.finish(func(node branchNode) *TypeName {
		return &TypeName{
			branchNode: node,
			scope:      scope,
			name:       name,
		}
	})
}

// segment_type = type_name [ "(" encoding ")" ] [ "[" size "]" ]
func parseSegmentType(ctx *parseCtx[SegmentType]) (*SegmentType, error) {
	typeName, _ := parseChild(ctx, parseTypeName)

	var encoding *Ident
	if ctx.trySigil(T_OPEN_PAREN) {
		ctx.space()
		encoding = ctx.ident()
		ctx.space()
		ctx.sigil(T_CLOSE_PAREN)
	}

	var size *IntLit
	if ctx.trySigil(T_OPEN_SQUARE) {
		ctx.space()
		size = ctx.int()
		ctx.space()
		ctx.sigil(T_CLOSE_SQUARE)
	}

	return ctx.finish(func(node branchNode) *SegmentType {
		return &SegmentType{
			branchNode: node,
			typeName:   typeName,
			encoding:   encoding,
			size:       size,
		}
	})
}

func parseSegmentDecl(ctx *parseCtx[SegmentDecl]) (*SegmentDecl, error) {
	if !ctx.tryKeyword("segment") {
		return nil, nil
	}
	ctx.space()
	name := ctx.ident()
	ctx.space()
	ctx.sigil(T_EQ)
	ctx.space()
	segmentType, _ := parseChild(ctx, parseSegmentType)

	return ctx.finish(func(node branchNode) *SegmentDecl {
		return &SegmentDecl{
			branchNode:  node,
			name:        name,
			segmentType: segmentType,
		}
	})
}

func parseValueDecl(ctx *parseCtx[ValueDecl]) (*ValueDecl, error) {
	if !ctx.tryKeyword("value") {
		return nil, nil
	}
	ctx.space()
	name := ctx.ident()
	ctx.space()

	var (
		format *Ident
		compat []*TypeName
		alias  *TypeName
	)
	if err := ctx.ensureToken(); err != nil {
		return nil, err
	}
	switch ctx.token.Kind {
	case T_COLON:
		ctx.sigil(T_COLON)
		ctx.space()
		format = ctx.ident()
		ctx.space()
		if ctx.tryKeyword("compat") {
			ctx.space()
			for range ctx.loop {
				typeName, _ := parseChild(ctx, parseTypeName)
				compat = append(compat, typeName)
				ctx.space()
				if !ctx.trySigil(T_COMMA) {
					break
				}
				ctx.space()
			}
		}
	case T_EQ:
		ctx.sigil(T_EQ)
		ctx.space()
		alias, _ = parseChild(ctx, parseTypeName)
	default:
		ctx.fail(errExpectedValueForm)
	}

	return ctx.finish(func(node branchNode) *ValueDecl {
		return &ValueDecl{
			branchNode: node,
			name:       name,
			format:     format,
			compat:     compat,
			alias:      alias,
		}
	})
}

// key_decl = "key" name "=" component { "/" component } ":" type_name
func parseKeyDecl(ctx *parseCtx[KeyDecl]) (*KeyDecl, error) {
	if !ctx.tryKeyword("key") {
		return nil, nil
	}
	ctx.space()
	name := ctx.ident()
	ctx.space()
	ctx.sigil(T_EQ)
	ctx.space()

	var components []Node
	for range ctx.loop {
		if component := parseKeyComponent(ctx); component != nil {
			components = append(components, component)
		}
		ctx.space()
		if !ctx.trySigil(T_SLASH) {
			break
		}
		ctx.space()
	}
	ctx.sigil(T_COLON)
	ctx.space()
	valueType, _ := parseChild(ctx, parseTypeName)

	return ctx.finish(func(node branchNode) *KeyDecl {
		return &KeyDecl{
			branchNode: node,
			name:       name,
			components: components,
			valueType:  valueType,
		}
	})
}

func parseKeyComponent(ctx *parseCtx[KeyDecl]) Node {
	switch ctx.peekKind() {
	case T_TEXT_LIT:
		if lit := ctx.text(); lit != nil {
			return lit
		}
	case T_OPEN_CURL:
		if segment, ok := parseChild(ctx, parseVarSegment); ok {
			return segment
		}
	default:
		ctx.fail(errExpectedKeySegment)
	}
	return nil
}

func parseVarSegment(ctx *parseCtx[VarSegment]) (*VarSegment, error) {
	ctx.sigil(T_OPEN_CURL)
	ctx.space()
	name := ctx.ident()
	ctx.space()
	ctx.sigil(T_COLON)
	ctx.space()
	segmentType, _ := parseChild(ctx, parseSegmentType)
	ctx.space()
	ctx.sigil(T_CLOSE_CURL)

	return ctx.finish(func(node branchNode) *VarSegment {
		return &VarSegment{
			branchNode:  node,
			name:        name,
			segmentType: segmentType,
		}
	})
}
