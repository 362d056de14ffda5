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
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/penumbra-zone/schemata/syntax"
)

// checkBaseline compares the schema with the baseline model, matching
// patterns by canonical name.
func (v *validator) checkBaseline() {
	baseline := v.opts.baseline
	if baseline == nil {
		return
	}
	schema := v.schema

	if baseline.Version != "" && schema.version != "" {
		current, err := semver.StrictNewVersion(schema.version)
		previous, baseErr := semver.NewVersion(baseline.Version)
		if err == nil && baseErr == nil && current.LessThan(previous) {
			opt := schema.optionsByID["version"]
			v.err(errVersionRegression(schema.version, baseline.Version, opt.valueNode.Span()))
		}
	}

	current := make(map[string]*keyInfo)
	for _, key := range schema.allKeys() {
		if _, dup := current[key.canonicalName()]; !dup {
			current[key.canonicalName()] = key
		}
	}

	delim := string(schema.delimiter)
	for _, ns := range baseline.Namespaces {
		for _, prev := range ns.Patterns {
			prevTemplate := prev.Template(baseline.Delimiter)
			key, ok := current[prev.CanonicalName]
			if !ok {
				v.warn(warnPatternRemoved(prev.CanonicalName, prevTemplate, v.baselineSpan()))
				continue
			}

			p := key.pattern()
			template := p.Template(delim)
			if baseline.Delimiter != delim || prev.Layout(baseline.Delimiter) != p.Layout(delim) {
				v.err(errBreakingLayout(template, prevTemplate, key.node.Span()))
				continue
			}

			if !v.valueTypeCompatible(key.value, prev.ValueType) {
				v.err(errBreakingValueType(
					template,
					key.value.qualifiedName(),
					prev.ValueType,
					key.node.Span(),
				))
			}
		}
	}
}

func (v *validator) baselineSpan() syntax.Span {
	if opt, ok := v.schema.optionsByID["baseline"]; ok {
		return opt.valueNode.Span()
	}
	return syntax.NewSpan(0, 0)
}

// valueTypeCompatible reports whether values written as prevName can be
// read as value: the names and formats match, or prevName is in the
// transitive `compat` closure of value. Each name in the closure is looked
// up in the current schema first, then in the baseline.
func (v *validator) valueTypeCompatible(value *valueInfo, prevName string) bool {
	baseline := v.opts.baseline
	if value.qualifiedName() == prevName {
		if prev := baseline.ValueType(prevName); prev != nil {
			return prev.Format == value.format
		}
		return true
	}

	seen := map[string]struct{}{value.qualifiedName(): {}}
	queue := v.compatSuccessors(value.qualifiedName())
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		if name == prevName {
			return true
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		queue = append(queue, v.compatSuccessors(name)...)
	}
	return false
}

func (v *validator) compatSuccessors(qualifiedName string) []string {
	if value := v.schema.lookupValue(qualifiedName); value != nil {
		return value.compatNames()
	}
	if prev := v.opts.baseline.ValueType(qualifiedName); prev != nil {
		return prev.Compat
	}
	return nil
}

func (s *Schema) lookupValue(qualifiedName string) *valueInfo {
	nsName, name, ok := strings.Cut(qualifiedName, ".")
	if !ok {
		return nil
	}
	ns, ok := s.namespacesBy[nsName]
	if !ok {
		return nil
	}
	if value, ok := ns.decls[name].(*valueInfo); ok {
		return value.target()
	}
	return nil
}
