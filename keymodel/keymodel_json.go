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

package keymodel

import (
	"bytes"
	"fmt"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/penumbra-zone/schemata/kv"
)

// Encode writes the model as indented JSON. Object keys are sorted, so
// equal models encode to equal bytes.
func Encode(m *Model) ([]byte, error) {
	buf, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("keymodel: encode: %w", err)
	}
	return append(buf, '\n'), nil
}

func Decode(data []byte) (*Model, error) {
	var m Model
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("keymodel: decode: %w", err)
	}
	if m.Format != FormatVersion {
		return nil, fmt.Errorf(
			"keymodel: unsupported model format %d (want %d)",
			m.Format, FormatVersion,
		)
	}
	if len(m.Delimiter) != 1 {
		return nil, fmt.Errorf("keymodel: invalid delimiter %q", m.Delimiter)
	}
	if err := m.check(); err != nil {
		return nil, fmt.Errorf("keymodel: decode: %w", err)
	}
	return &m, nil
}

// check rejects models that the compiler could not have written, so that
// codecs built from a decoded model can index segments by ordinal.
func (m *Model) check() error {
	for ii := range m.Namespaces {
		ns := &m.Namespaces[ii]
		for jj := range ns.Segments {
			decl := &ns.Segments[jj]
			if err := decl.Type.check(); err != nil {
				return fmt.Errorf("segment %s.%s: %w", ns.Name, decl.Name, err)
			}
		}
		for jj := range ns.ValueTypes {
			vt := &ns.ValueTypes[jj]
			if _, ok := ParseValueFormat(string(vt.Format)); !ok {
				return fmt.Errorf("value type %s.%s: unknown format %q", ns.Name, vt.Name, vt.Format)
			}
		}
		for jj := range ns.Patterns {
			p := &ns.Patterns[jj]
			if err := p.check(m.Delimiter); err != nil {
				return fmt.Errorf("pattern %s.%s: %w", ns.Name, p.Name, err)
			}
		}
	}
	return nil
}

func (p *Pattern) check(delimiter string) error {
	if len(p.Segments) == 0 {
		return fmt.Errorf("no segments")
	}
	ordinal := 0
	for ii := range p.Segments {
		seg := &p.Segments[ii]
		if seg.IsLiteral() {
			if seg.Literal == "" {
				return fmt.Errorf("segment %d: empty literal", ii)
			}
			if strings.Contains(seg.Literal, delimiter) {
				return fmt.Errorf("segment %d: literal %q contains the delimiter", ii, seg.Literal)
			}
			continue
		}
		if seg.Name == "" {
			return fmt.Errorf("segment %d: variable has no name", ii)
		}
		if seg.Ordinal != ordinal {
			return fmt.Errorf("segment %q: ordinal %d, want %d", seg.Name, seg.Ordinal, ordinal)
		}
		ordinal++
		if err := seg.Type.check(); err != nil {
			return fmt.Errorf("segment %q: %w", seg.Name, err)
		}
	}
	return nil
}

func (t *SegmentType) check() error {
	if _, ok := ParseSegmentKind(string(t.Kind)); !ok {
		return fmt.Errorf("unknown kind %q", t.Kind)
	}
	if t.Kind == KindBytes {
		if t.Size < 1 || t.Size > 255 {
			return fmt.Errorf("bytes size %d out of range 1..255", t.Size)
		}
	} else if t.Size != 0 {
		return fmt.Errorf("%s takes no size", t.Kind)
	}
	if t.Kind == KindString {
		if _, ok := kv.ParseEncoding(t.Encoding); !ok {
			return fmt.Errorf("unknown string encoding %q", t.Encoding)
		}
	} else if t.Encoding != "" {
		return fmt.Errorf("%s takes no encoding", t.Kind)
	}
	return nil
}
