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
	"cmp"
	"math"
	"slices"
	"strconv"

	"github.com/penumbra-zone/schemata/keymodel"
	"github.com/penumbra-zone/schemata/syntax"
)

type resolveState uint8

const (
	unresolved resolveState = iota
	resolving
	resolved
)

func Resolve(parsedSchema *syntax.Schema, opts ...CompileOption) (*Schema, []*Error) {
	return NewCompileOptions(opts...).Resolve(parsedSchema)
}

func (opts *CompileOptions) Resolve(parsedSchema *syntax.Schema) (*Schema, []*Error) {
	c := &compiler{
		opts:  opts,
		stage: StageResolve,
		schema: &Schema{
			parsed:       parsedSchema,
			sourcePath:   opts.sourcePath,
			delimiter:    defaultDelimiter,
			collisions:   collisionsScopeNS,
			optionsByID:  make(map[string]*optionInfo),
			hostOptions:  make(map[string]string),
			namespacesBy: make(map[string]*namespaceInfo),
		},
	}
	r := &resolver{
		compiler:      c,
		segmentStates: make(map[*segmentInfo]resolveState),
		valueStates:   make(map[*valueInfo]resolveState),
	}
	r.registerOptions()
	r.registerNamespaces()
	r.resolveSegments()
	r.resolveValues()
	r.resolveKeys()

	c.sortDiagnostics()
	if len(c.errors) > 0 {
		return nil, c.errors
	}
	return c.schema, nil
}

type resolver struct {
	*compiler
	segmentStates map[*segmentInfo]resolveState
	valueStates   map[*valueInfo]resolveState
}

func optionValue(node syntax.Node) (string, bool) {
	switch node := node.(type) {
	case nil:
		return "true", true
	case *syntax.TextLit:
		return node.GetText()
	case *syntax.IntLit:
		return strconv.FormatUint(node.GetUint64(), 10), true
	case *syntax.Ident:
		return node.Get(), true
	}
	return "", false
}

func (r *resolver) newOption(
	seen map[string]*optionInfo,
	name *syntax.OptionName,
	valueNode syntax.Node,
	node syntax.Node,
) *optionInfo {
	optName := name.Get()
	if _, dup := seen[optName]; dup {
		r.err(errDuplicateOption(optName, name.Span()))
		return nil
	}
	value, _ := optionValue(valueNode)
	opt := &optionInfo{
		name:      optName,
		value:     value,
		valueNode: valueNode,
		node:      node,
	}
	seen[optName] = opt
	return opt
}

func (r *resolver) registerOptions() {
	schema := r.schema
	optionsNode := schema.parsed.Options()
	if optionsNode == nil {
		return
	}
	for node := range optionsNode.Options() {
		opt := r.newOption(schema.optionsByID, node.Name(), node.Value(), node)
		if opt == nil {
			continue
		}
		schema.options = append(schema.options, opt)

		switch opt.name {
		case "version":
			schema.version = opt.value
		case "delimiter":
			if len(opt.value) == 1 {
				schema.delimiter = opt.value[0]
			}
		case "collisions":
			schema.collisions = opt.value
		default:
			if isHostOption(opt.name) {
				schema.hostOptions[opt.name] = opt.value
			}
		}
	}
}

func (r *resolver) declOptions(decorators []*syntax.Decorator) []*optionInfo {
	var out []*optionInfo
	seen := make(map[string]*optionInfo)
	for _, decorator := range decorators {
		if option := decorator.GetOption(); option != nil {
			if opt := r.newOption(seen, option.Name(), option.Value(), option); opt != nil {
				out = append(out, opt)
			}
		}
		if options := decorator.GetOptions(); options != nil {
			for option := range options.Options() {
				if opt := r.newOption(seen, option.Name(), option.Value(), option); opt != nil {
					out = append(out, opt)
				}
			}
		}
	}
	return out
}

func (r *resolver) registerNamespaces() {
	schema := r.schema
	for _, node := range schema.parsed.Namespaces() {
		nameNode := node.Name()
		name := nameNode.Get()
		if err := checkNamespace(nameNode); err != nil {
			r.err(err)
		}
		if _, dup := schema.namespacesBy[name]; dup {
			r.err(errDuplicateNamespace(name, nameNode.Span()))
			continue
		}
		ns := &namespaceInfo{
			name:  name,
			node:  node,
			decls: make(map[string]any),
		}
		schema.namespaces = append(schema.namespaces, ns)
		schema.namespacesBy[name] = ns

		// Names are registered in source order so that the later of two
		// conflicting declarations is the one reported.
		type pending struct {
			name     *syntax.Ident
			register func()
		}
		var decls []pending
		for _, decl := range node.Segments() {
			decls = append(decls, pending{decl.Name(), func() {
				seg := &segmentInfo{
					ns:      ns,
					node:    decl,
					name:    decl.Name().Get(),
					options: r.declOptions(decl.Decorators()),
				}
				ns.segments = append(ns.segments, seg)
				ns.decls[seg.name] = seg
			}})
		}
		for _, decl := range node.Values() {
			decls = append(decls, pending{decl.Name(), func() {
				value := &valueInfo{
					ns:      ns,
					node:    decl,
					name:    decl.Name().Get(),
					options: r.declOptions(decl.Decorators()),
				}
				ns.values = append(ns.values, value)
				ns.decls[value.name] = value
			}})
		}
		for _, decl := range node.Keys() {
			decls = append(decls, pending{decl.Name(), func() {
				key := &keyInfo{
					ns:      ns,
					node:    decl,
					name:    decl.Name().Get(),
					options: r.declOptions(decl.Decorators()),
				}
				ns.keys = append(ns.keys, key)
				ns.decls[key.name] = key
			}})
		}
		slices.SortFunc(decls, func(a, b pending) int {
			return cmp.Compare(a.name.Span().Start(), b.name.Span().Start())
		})
		for _, decl := range decls {
			if r.registerDecl(ns, decl.name) {
				decl.register()
			}
		}
	}
}

// registerDecl reports invalid or duplicate declaration names. Segment,
// value and key declarations share one name space per namespace.
func (r *resolver) registerDecl(ns *namespaceInfo, nameNode *syntax.Ident) bool {
	name := nameNode.Get()
	if name[0] < 'A' || name[0] > 'Z' {
		r.err(errInvalidDeclarationName(name, nameNode.Span()))
	}
	if _, dup := ns.decls[name]; dup {
		r.err(errDuplicateDeclaration(ns.name, name, nameNode.Span()))
		return false
	}
	// Reserve the name before the declaration is built so that a later
	// duplicate of any kind is caught.
	ns.decls[name] = nil
	return true
}

func declKindName(decl any) string {
	switch decl.(type) {
	case *segmentInfo:
		return "segment"
	case *valueInfo:
		return "value"
	case *keyInfo:
		return "key"
	}
	return "unknown"
}

// lookup finds the declaration named by typeName, relative to ns. It
// reports unknown namespaces. A nil declaration with ok=true means the
// namespace exists but has no such name.
func (r *resolver) lookup(ns *namespaceInfo, typeName *syntax.TypeName) (any, *namespaceInfo, bool) {
	target := ns
	if scope := typeName.Scope(); scope != nil {
		var found bool
		target, found = r.schema.namespacesBy[scope.Get()]
		if !found {
			r.err(errNamespaceNotFound(scope.Get(), scope.Span()))
			return nil, nil, false
		}
	}
	return target.decls[typeName.Name().Get()], target, true
}

func (r *resolver) resolveSegments() {
	for _, ns := range r.schema.namespaces {
		for _, seg := range ns.segments {
			r.resolveSegmentDecl(seg, nil)
		}
	}
}

func (r *resolver) resolveSegmentDecl(seg *segmentInfo, stack []*segmentInfo) {
	switch r.segmentStates[seg] {
	case resolved:
		return
	case resolving:
		idx := slices.Index(stack, seg)
		r.reportSegmentCycle(stack[idx:])
		return
	}
	r.segmentStates[seg] = resolving
	typ, target, ok := r.resolveSegmentType(seg.ns, seg.node.SegmentType(), append(stack, seg))
	if ok {
		seg.typ = typ
		seg.target = target
	} else {
		seg.invalid = true
	}
	r.segmentStates[seg] = resolved
}

// resolveSegmentType binds a segment type to a builtin kind or to a
// segment declaration. Builtin kind names take precedence; declaration
// names start with an uppercase letter and cannot shadow them.
func (r *resolver) resolveSegmentType(
	ns *namespaceInfo,
	node *syntax.SegmentType,
	stack []*segmentInfo,
) (keymodel.SegmentType, *segmentInfo, bool) {
	typeName := node.TypeName()
	if typeName.Scope() == nil {
		if kind, ok := keymodel.ParseSegmentKind(typeName.Name().Get()); ok {
			typ := keymodel.SegmentType{Kind: kind}
			if size := node.Size(); size != nil {
				typ.Size = int(min(size.GetUint64(), math.MaxInt32))
			}
			if enc := node.Encoding(); enc != nil {
				typ.Encoding = enc.Get()
			}
			return typ, nil, true
		}
	}

	decl, target, ok := r.lookup(ns, typeName)
	if !ok {
		return keymodel.SegmentType{}, nil, false
	}
	name := syntax.Unparse(typeName)
	switch decl := decl.(type) {
	case nil:
		r.err(errSegmentTypeNotFound(target.name, typeName.Name().Get(), typeName.Span()))
	case *segmentInfo:
		decl.used = true
		r.resolveSegmentDecl(decl, stack)
		if decl.invalid {
			return keymodel.SegmentType{}, nil, false
		}
		typ := decl.typ
		typ.Name = decl.qualifiedName()
		return typ, decl, true
	default:
		r.err(errWrongDeclarationKind(name, "segment", declKindName(decl), typeName.Span()))
	}
	return keymodel.SegmentType{}, nil, false
}

func (r *resolver) reportSegmentCycle(cycle []*segmentInfo) {
	first := slices.MinFunc(cycle, func(a, b *segmentInfo) int {
		return compareDeclOrder(a.ns, a.node, b.ns, b.node)
	})
	start := slices.Index(cycle, first)
	var names []string
	for ii := range len(cycle) + 1 {
		seg := cycle[(start+ii)%len(cycle)]
		names = append(names, seg.qualifiedName())
		seg.invalid = true
	}
	r.err(errSegmentCycle(names, first.node.Name().Span()))
}

func (r *resolver) reportValueCycle(cycle []*valueInfo) {
	first := slices.MinFunc(cycle, func(a, b *valueInfo) int {
		return compareDeclOrder(a.ns, a.node, b.ns, b.node)
	})
	start := slices.Index(cycle, first)
	var names []string
	for ii := range len(cycle) + 1 {
		value := cycle[(start+ii)%len(cycle)]
		names = append(names, value.qualifiedName())
	}
	r.err(errValueCycle(names, first.node.Name().Span()))
}

func compareDeclOrder(nsA *namespaceInfo, a syntax.Node, nsB *namespaceInfo, b syntax.Node) int {
	if nsA != nsB {
		return cmp.Compare(nsA.node.Span().Start(), nsB.node.Span().Start())
	}
	return cmp.Compare(a.Span().Start(), b.Span().Start())
}

func (r *resolver) resolveValues() {
	for _, ns := range r.schema.namespaces {
		for _, value := range ns.values {
			r.resolveValueDecl(value, nil)
		}
	}
	for _, ns := range r.schema.namespaces {
		for _, value := range ns.values {
			r.resolveCompat(value)
		}
	}
}

// resolveValueDecl reports false if value is part of, or leads into, an
// alias cycle or an unresolved alias.
func (r *resolver) resolveValueDecl(value *valueInfo, stack []*valueInfo) bool {
	switch r.valueStates[value] {
	case resolved:
		return value.target().format != ""
	case resolving:
		idx := slices.Index(stack, value)
		r.reportValueCycle(stack[idx:])
		return false
	}
	r.valueStates[value] = resolving
	defer func() { r.valueStates[value] = resolved }()

	node := value.node
	if format := node.Format(); format != nil {
		parsed, ok := keymodel.ParseValueFormat(format.Get())
		if !ok {
			r.err(errUnknownValueFormat(format.Get(), format.Span()))
			return false
		}
		value.format = parsed
		return true
	}

	if len(value.options) > 0 {
		r.err(errAliasWithOptions(value.name, node.Name().Span()))
	}
	aliasName := node.Alias()
	decl, target, ok := r.lookup(value.ns, aliasName)
	if !ok {
		return false
	}
	switch decl := decl.(type) {
	case nil:
		r.err(errValueTypeNotFound(target.name, aliasName.Name().Get(), aliasName.Span()))
	case *valueInfo:
		decl.used = true
		if !r.resolveValueDecl(decl, append(stack, value)) {
			return false
		}
		value.alias = decl
		return true
	default:
		r.err(errWrongDeclarationKind(
			syntax.Unparse(aliasName), "value", declKindName(decl), aliasName.Span(),
		))
	}
	return false
}

func (r *resolver) resolveCompat(value *valueInfo) {
	for _, typeName := range value.node.Compat() {
		nsName := value.ns.name
		if scope := typeName.Scope(); scope != nil {
			nsName = scope.Get()
		}
		name := typeName.Name().Get()
		ref := &compatRef{
			node: typeName,
			name: nsName + "." + name,
		}

		if ns, ok := r.schema.namespacesBy[nsName]; ok {
			switch decl := ns.decls[name].(type) {
			case *valueInfo:
				decl.used = true
				target := decl.target()
				ref.decl = target
				ref.name = target.qualifiedName()
				value.compat = append(value.compat, ref)
				continue
			case nil:
			default:
				r.err(errWrongDeclarationKind(
					syntax.Unparse(typeName), "value", declKindName(decl), typeName.Span(),
				))
				continue
			}
		}

		if baseline := r.opts.baseline; baseline != nil {
			if vt := baseline.ValueType(ref.name); vt != nil {
				ref.baseline = vt
				value.compat = append(value.compat, ref)
				continue
			}
		}

		if _, ok := r.schema.namespacesBy[nsName]; !ok {
			scope := typeName.Scope()
			r.err(errNamespaceNotFound(nsName, scope.Span()))
		} else {
			r.err(errValueTypeNotFound(nsName, name, typeName.Span()))
		}
	}
}

func (r *resolver) resolveKeys() {
	for _, ns := range r.schema.namespaces {
		for _, key := range ns.keys {
			r.resolveKeyDecl(key)
		}
	}
}

func (r *resolver) resolveKeyDecl(key *keyInfo) {
	ordinal := 0
	for _, component := range key.node.Components() {
		switch component := component.(type) {
		case *syntax.TextLit:
			literal, _ := component.GetText()
			key.segments = append(key.segments, &segmentRef{
				literal:     literal,
				literalNode: component,
			})
		case *syntax.VarSegment:
			ref := &segmentRef{
				name:     component.Name().Get(),
				nameNode: component.Name(),
				typeNode: component.SegmentType(),
				ordinal:  ordinal,
			}
			ordinal++
			typ, decl, ok := r.resolveSegmentType(key.ns, ref.typeNode, nil)
			if ok {
				ref.typ = typ
				ref.decl = decl
			}
			key.segments = append(key.segments, ref)
		}
	}

	valueName := key.node.ValueType()
	decl, target, ok := r.lookup(key.ns, valueName)
	if !ok {
		return
	}
	switch decl := decl.(type) {
	case nil:
		r.err(errValueTypeNotFound(target.name, valueName.Name().Get(), valueName.Span()))
	case *valueInfo:
		decl.used = true
		if r.resolveValueDecl(decl, nil) {
			key.value = decl.target()
		}
	default:
		r.err(errWrongDeclarationKind(
			syntax.Unparse(valueName), "value", declKindName(decl), valueName.Span(),
		))
	}
}

func checkNamespace(node *syntax.Ident) error {
	name := node.Get()
	for ii, c := range []byte(name) {
		if c >= 'a' && c <= 'z' {
			continue
		}
		if ii > 0 && ((c >= '0' && c <= '9') || c == '_') {
			continue
		}
		return errInvalidNamespace(name, node.Span())
	}
	return nil
}

// isHostOption reports whether name belongs to a code generator, such as
// `go.package`. Host options are dotted and passed through to the model.
func isHostOption(name string) bool {
	for ii := 0; ii < len(name); ii++ {
		if name[ii] == '.' {
			return true
		}
	}
	return false
}
