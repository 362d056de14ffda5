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

// Package modeltext renders a key model as deterministic, human-readable
// text. The output uses schema source syntax where it can, with every
// reference resolved and every list sorted.
package modeltext

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/penumbra-zone/schemata/keymodel"
)

func Encode(m *keymodel.Model) string {
	var buf strings.Builder
	EncodeTo(m, &buf)
	return buf.String()
}

func EncodeTo(m *keymodel.Model, w io.Writer) error {
	e := encoder{w: w, delimiter: m.Delimiter}
	e.visitModel(m)
	return e.err
}

type encoder struct {
	w         io.Writer
	indent    int
	delimiter string
	err       error
}

func (e *encoder) line(s string) {
	if e.err != nil {
		return
	}
	if indent := strings.Repeat("\t", e.indent); indent != "" {
		if _, err := io.WriteString(e.w, indent); err != nil {
			e.err = err
			return
		}
	}
	if _, err := io.WriteString(e.w, s); err != nil {
		e.err = err
		return
	}
	if _, err := io.WriteString(e.w, "\n"); err != nil {
		e.err = err
		return
	}
}

func (e *encoder) linef(format string, a ...any) {
	e.line(fmt.Sprintf(format, a...))
}

func (e *encoder) visitModel(m *keymodel.Model) {
	e.linef("format = %d", m.Format)
	if m.Version != "" {
		e.linef("version = %s", quote(m.Version))
	}
	e.linef("delimiter = %s", quote(m.Delimiter))
	e.visitOptions("option ", m.Options)
	for ii := range m.Namespaces {
		e.visitNamespace(&m.Namespaces[ii])
	}
}

func (e *encoder) visitOptions(prefix string, options map[string]string) {
	for _, name := range slices.Sorted(maps.Keys(options)) {
		e.linef("%s%s = %s", prefix, name, quote(options[name]))
	}
}

func (e *encoder) visitNamespace(ns *keymodel.Namespace) {
	e.linef("namespace %s {", ns.Name)
	e.indent += 1
	for _, seg := range ns.Segments {
		e.linef("segment %s = %s", seg.Name, fmtSegmentType(seg.Type))
		e.visitDeclOptions(seg.Options)
	}
	for _, value := range ns.ValueTypes {
		if len(value.Compat) > 0 {
			e.linef(
				"value %s: %s compat %s",
				value.Name, value.Format, strings.Join(value.Compat, ", "),
			)
		} else {
			e.linef("value %s: %s", value.Name, value.Format)
		}
		e.visitDeclOptions(value.Options)
	}
	for ii := range ns.Patterns {
		e.visitPattern(&ns.Patterns[ii])
	}
	e.indent -= 1
	e.line("}")
}

func (e *encoder) visitDeclOptions(options map[string]string) {
	e.indent += 1
	e.visitOptions("@", options)
	e.indent -= 1
}

func (e *encoder) visitPattern(p *keymodel.Pattern) {
	var buf strings.Builder
	for ii, seg := range p.Segments {
		if ii > 0 {
			buf.WriteString("/")
		}
		if seg.IsLiteral() {
			buf.WriteString(quote(seg.Literal))
		} else {
			fmt.Fprintf(&buf, "{%s: %s}", seg.Name, fmtSegmentType(*seg.Type))
		}
	}
	e.linef("key %s = %s: %s", p.Name, buf.String(), p.ValueType)
	e.indent += 1
	e.linef("canonical_name = %s", quote(p.CanonicalName))
	e.linef("prefix = %s", quote(p.Prefix(e.delimiter)))
	e.visitOptions("@", p.Options)
	e.indent -= 1
}

func fmtSegmentType(t keymodel.SegmentType) string {
	if t.Name != "" {
		return t.Layout() + " via " + t.Name
	}
	return t.Layout()
}

func quote(s string) string {
	return strconv.Quote(s)
}
