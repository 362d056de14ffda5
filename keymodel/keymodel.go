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

// Package keymodel defines the canonical key model: the resolved,
// validated and sorted form of a schema that code generators consume and
// that is stored as the compatibility baseline of later compilations.
package keymodel

import (
	"fmt"
	"slices"
	"strings"
)

// FormatVersion is the version of the serialized model.
const FormatVersion = 1

type SegmentKind string

const (
	KindInt    SegmentKind = "int"
	KindInt32  SegmentKind = "int32"
	KindUint   SegmentKind = "uint"
	KindUint32 SegmentKind = "uint32"
	KindUUID   SegmentKind = "uuid"
	KindBytes  SegmentKind = "bytes"
	KindString SegmentKind = "string"
)

var segmentKindWidths = map[SegmentKind]int{
	KindInt:    8,
	KindInt32:  4,
	KindUint:   8,
	KindUint32: 4,
	KindUUID:   16,
}

func ParseSegmentKind(name string) (SegmentKind, bool) {
	kind := SegmentKind(name)
	if _, ok := segmentKindWidths[kind]; ok {
		return kind, true
	}
	if kind == KindBytes || kind == KindString {
		return kind, true
	}
	return "", false
}

type ValueFormat string

const (
	FormatRaw  ValueFormat = "raw"
	FormatText ValueFormat = "text"
	FormatJSON ValueFormat = "json"
	FormatYAML ValueFormat = "yaml"
)

func ParseValueFormat(name string) (ValueFormat, bool) {
	switch format := ValueFormat(name); format {
	case FormatRaw, FormatText, FormatJSON, FormatYAML:
		return format, true
	}
	return "", false
}

// SegmentType is a concrete segment kind. Name is the qualified name of
// the segment declaration it was resolved through, if any.
type SegmentType struct {
	Kind     SegmentKind `json:"kind"`
	Size     int         `json:"size,omitempty"`
	Encoding string      `json:"encoding,omitempty"`
	Name     string      `json:"name,omitempty"`
}

// Width is the number of key bytes of a fixed-width kind, or -1 for
// string kinds.
func (t SegmentType) Width() int {
	if width, ok := segmentKindWidths[t.Kind]; ok {
		return width
	}
	if t.Kind == KindBytes {
		return t.Size
	}
	return -1
}

// Layout is the kind spelled the way schema source spells it, without
// the declaration name: `uint`, `bytes[16]`, `string(hex)`.
func (t SegmentType) Layout() string {
	switch t.Kind {
	case KindBytes:
		return fmt.Sprintf("bytes[%d]", t.Size)
	case KindString:
		if t.Encoding == "" {
			return "string"
		}
		return fmt.Sprintf("string(%s)", t.Encoding)
	}
	return string(t.Kind)
}

// Segment is a literal when Type is nil.
type Segment struct {
	Literal string       `json:"literal,omitempty"`
	Name    string       `json:"name,omitempty"`
	Ordinal int          `json:"ordinal,omitempty"`
	Type    *SegmentType `json:"type,omitempty"`
}

func (s *Segment) IsLiteral() bool {
	return s.Type == nil
}

type Pattern struct {
	Name          string            `json:"name"`
	CanonicalName string            `json:"canonical_name"`
	Segments      []Segment         `json:"segments"`
	ValueType     string            `json:"value_type"`
	Options       map[string]string `json:"options,omitempty"`
}

// Variables returns the variable segments in ordinal order.
func (p *Pattern) Variables() []*Segment {
	var out []*Segment
	for ii := range p.Segments {
		if !p.Segments[ii].IsLiteral() {
			out = append(out, &p.Segments[ii])
		}
	}
	return out
}

// Prefix returns the key bytes shared by every key of the pattern: the
// leading literals and the delimiter after them.
func (p *Pattern) Prefix(delimiter string) string {
	var buf strings.Builder
	for ii := range p.Segments {
		if ii > 0 {
			buf.WriteString(delimiter)
		}
		if !p.Segments[ii].IsLiteral() {
			break
		}
		buf.WriteString(p.Segments[ii].Literal)
	}
	return buf.String()
}

// Template renders the pattern in the shape used by diagnostics, with
// variable segments as `{name:kind}`: `session/{token:string}`.
func (p *Pattern) Template(delimiter string) string {
	var buf strings.Builder
	for ii, seg := range p.Segments {
		if ii > 0 {
			buf.WriteString(delimiter)
		}
		if seg.IsLiteral() {
			buf.WriteString(seg.Literal)
		} else {
			fmt.Fprintf(&buf, "{%s:%s}", seg.Name, seg.Type.Kind)
		}
	}
	return buf.String()
}

// Layout renders the pattern without variable names. Two patterns with
// the same layout match exactly the same keys.
func (p *Pattern) Layout(delimiter string) string {
	var buf strings.Builder
	for ii, seg := range p.Segments {
		if ii > 0 {
			buf.WriteString(delimiter)
		}
		if seg.IsLiteral() {
			fmt.Fprintf(&buf, "%q", seg.Literal)
		} else {
			fmt.Fprintf(&buf, "{%s}", seg.Type.Layout())
		}
	}
	return buf.String()
}

type ValueType struct {
	Name    string            `json:"name"`
	Format  ValueFormat       `json:"format"`
	Compat  []string          `json:"compat,omitempty"`
	Options map[string]string `json:"options,omitempty"`
}

type SegmentDecl struct {
	Name    string            `json:"name"`
	Type    SegmentType       `json:"type"`
	Options map[string]string `json:"options,omitempty"`
}

type Namespace struct {
	Name       string        `json:"name"`
	Segments   []SegmentDecl `json:"segments,omitempty"`
	ValueTypes []ValueType   `json:"value_types,omitempty"`
	Patterns   []Pattern     `json:"patterns,omitempty"`
}

func (ns *Namespace) ValueType(name string) *ValueType {
	for ii := range ns.ValueTypes {
		if ns.ValueTypes[ii].Name == name {
			return &ns.ValueTypes[ii]
		}
	}
	return nil
}

func (ns *Namespace) Segment(name string) *SegmentDecl {
	for ii := range ns.Segments {
		if ns.Segments[ii].Name == name {
			return &ns.Segments[ii]
		}
	}
	return nil
}

type Model struct {
	Format     int               `json:"format"`
	Version    string            `json:"version,omitempty"`
	Delimiter  string            `json:"delimiter"`
	Options    map[string]string `json:"options,omitempty"`
	Namespaces []Namespace       `json:"namespaces"`
}

func (m *Model) Namespace(name string) *Namespace {
	for ii := range m.Namespaces {
		if m.Namespaces[ii].Name == name {
			return &m.Namespaces[ii]
		}
	}
	return nil
}

// ValueType looks up a value type by its qualified name `namespace.Name`.
func (m *Model) ValueType(qualifiedName string) *ValueType {
	nsName, name, ok := strings.Cut(qualifiedName, ".")
	if !ok {
		return nil
	}
	if ns := m.Namespace(nsName); ns != nil {
		return ns.ValueType(name)
	}
	return nil
}

// Pattern looks up a pattern by canonical name.
func (m *Model) Pattern(canonicalName string) (*Namespace, *Pattern) {
	for ii := range m.Namespaces {
		ns := &m.Namespaces[ii]
		for jj := range ns.Patterns {
			if ns.Patterns[jj].CanonicalName == canonicalName {
				return ns, &ns.Patterns[jj]
			}
		}
	}
	return nil, nil
}

// FindPattern looks up a pattern by canonical name, or by `namespace.Name`.
func (m *Model) FindPattern(name string) (*Namespace, *Pattern) {
	if ns, p := m.Pattern(name); p != nil {
		return ns, p
	}
	nsName, patternName, ok := strings.Cut(name, ".")
	if !ok {
		return nil, nil
	}
	ns := m.Namespace(nsName)
	if ns == nil {
		return nil, nil
	}
	for ii := range ns.Patterns {
		if ns.Patterns[ii].Name == patternName {
			return ns, &ns.Patterns[ii]
		}
	}
	return nil, nil
}

// Sort puts namespaces, declarations and patterns in name order. Segment
// order within a pattern is meaningful and left unchanged.
func (m *Model) Sort() {
	slices.SortFunc(m.Namespaces, func(a, b Namespace) int {
		return strings.Compare(a.Name, b.Name)
	})
	for ii := range m.Namespaces {
		ns := &m.Namespaces[ii]
		slices.SortFunc(ns.Segments, func(a, b SegmentDecl) int {
			return strings.Compare(a.Name, b.Name)
		})
		slices.SortFunc(ns.ValueTypes, func(a, b ValueType) int {
			return strings.Compare(a.Name, b.Name)
		})
		slices.SortFunc(ns.Patterns, func(a, b Pattern) int {
			return strings.Compare(a.Name, b.Name)
		})
		for jj := range ns.ValueTypes {
			slices.Sort(ns.ValueTypes[jj].Compat)
		}
	}
}

// CanonicalName is lower(namespace) + "_" + lower(pattern), with every
// byte outside [a-z0-9_] replaced by '_'.
func CanonicalName(namespace, pattern string) string {
	raw := strings.ToLower(namespace) + "_" + strings.ToLower(pattern)
	buf := []byte(raw)
	for ii, c := range buf {
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '_' {
			continue
		}
		buf[ii] = '_'
	}
	return string(buf)
}
