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
	"maps"
	"slices"

	"github.com/penumbra-zone/schemata/keymodel"
)

// BuildModel converts a validated schema into its canonical key model.
// Value aliases are resolved away and every list is sorted by name, so
// declaration order in the source does not affect the result.
func BuildModel(schema *Schema) *keymodel.Model {
	m := &keymodel.Model{
		Format:    keymodel.FormatVersion,
		Version:   schema.version,
		Delimiter: string(schema.delimiter),
	}
	if len(schema.hostOptions) > 0 {
		m.Options = maps.Clone(schema.hostOptions)
	}

	for _, ns := range schema.namespaces {
		nsModel := keymodel.Namespace{Name: ns.name}
		for _, seg := range ns.segments {
			nsModel.Segments = append(nsModel.Segments, keymodel.SegmentDecl{
				Name:    seg.name,
				Type:    seg.typ,
				Options: hostOptionMap(seg.options),
			})
		}
		for _, value := range ns.values {
			if value.alias != nil {
				continue
			}
			nsModel.ValueTypes = append(nsModel.ValueTypes, keymodel.ValueType{
				Name:    value.name,
				Format:  value.format,
				Compat:  value.compatNames(),
				Options: hostOptionMap(value.options),
			})
		}
		for _, key := range ns.keys {
			nsModel.Patterns = append(nsModel.Patterns, key.pattern())
		}
		m.Namespaces = append(m.Namespaces, nsModel)
	}
	m.Sort()
	return m
}

func (k *keyInfo) pattern() keymodel.Pattern {
	p := keymodel.Pattern{
		Name:          k.name,
		CanonicalName: k.canonicalName(),
		Options:       hostOptionMap(k.options),
	}
	if k.value != nil {
		p.ValueType = k.value.qualifiedName()
	}
	for _, seg := range k.segments {
		if seg.isLiteral() {
			p.Segments = append(p.Segments, keymodel.Segment{
				Literal: seg.literal,
			})
			continue
		}
		typ := seg.typ
		p.Segments = append(p.Segments, keymodel.Segment{
			Name:    seg.name,
			Ordinal: seg.ordinal,
			Type:    &typ,
		})
	}
	return p
}

func (v *valueInfo) compatNames() []string {
	var names []string
	for _, ref := range v.compat {
		if !slices.Contains(names, ref.name) {
			names = append(names, ref.name)
		}
	}
	slices.Sort(names)
	return names
}

func hostOptionMap(opts []*optionInfo) map[string]string {
	var out map[string]string
	for _, opt := range opts {
		if !isHostOption(opt.name) {
			continue
		}
		if out == nil {
			out = make(map[string]string)
		}
		out[opt.name] = opt.value
	}
	return out
}
